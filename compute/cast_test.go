// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package compute_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/compute"
	"github.com/quiverdata/quiver/memory"
	"github.com/quiverdata/quiver/scalar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// scalarsFrom extracts the value at idx from each array input; scalar
// inputs pass through unchanged.
func scalarsFrom(inputs []compute.Datum, idx int) []scalar.Scalar {
	out := make([]scalar.Scalar, len(inputs))
	for i, in := range inputs {
		if ad, ok := in.(*compute.ArrayDatum); ok {
			arr := ad.MakeArray()
			defer arr.Release()
			out[i], _ = scalar.GetScalar(arr, idx)
			continue
		}
		out[i] = in.(*compute.ScalarDatum).Value
	}
	return out
}

func wrapDatums[T any](inputs []T) []compute.Datum {
	out := make([]compute.Datum, len(inputs))
	for i, in := range inputs {
		out[i] = compute.NewDatum(in)
	}
	return out
}

func requireDatumsEqual(t *testing.T, want, got compute.Datum) {
	require.Equal(t, want.Kind(), got.Kind())

	switch w := want.(type) {
	case *compute.ScalarDatum:
		g := got.(*compute.ScalarDatum)
		assert.Truef(t, scalar.Equals(w.Value, g.Value), "expected: %s\ngot: %s", w.Value, g.Value)
	case *compute.ArrayDatum:
		wantArr, gotArr := w.MakeArray(), got.(*compute.ArrayDatum).MakeArray()
		defer wantArr.Release()
		defer gotArr.Release()
		assert.Truef(t, array.Equal(wantArr, gotArr), "expected: %s\ngot: %s", wantArr, gotArr)
	default:
		assert.Truef(t, got.Equals(want), "expected: %s\ngot: %s", want, got)
	}
}

func checkScalarOnce(t *testing.T, funcName string, inputs []compute.Datum, expected compute.Datum, opts compute.FunctionOptions) {
	out, err := compute.CallFunction(context.Background(), funcName, opts, inputs...)
	assert.NoError(t, err)
	defer out.Release()
	requireDatumsEqual(t, expected, out)
}

func checkScalarFromScalars(t *testing.T, funcName string, inputs []scalar.Scalar, expected scalar.Scalar, opts compute.FunctionOptions) {
	datums := wrapDatums(inputs)
	defer func() {
		for _, d := range datums {
			d.Release()
		}
	}()

	out, err := compute.CallFunction(context.Background(), funcName, opts, datums...)
	assert.NoError(t, err)
	defer out.Release()

	result := out.(*compute.ScalarDatum)
	if scalar.Equals(result.Value, expected) {
		return
	}

	args := make([]string, len(inputs))
	for i, in := range inputs {
		args[i] = in.String()
	}
	msg := fmt.Sprintf("%s(%s) = %s != %s", funcName, strings.Join(args, ","), result.Value, expected)
	if !quiver.TypeEqual(result.Type(), expected.DataType()) {
		msg += fmt.Sprintf(" (types differed: %s vs %s)", result.Type(), expected.DataType())
	}
	t.Fatal(msg)
}

// checkScalarOp validates the whole-array result and then re-runs the
// function slot by slot with scalar arguments, which must agree with
// the array results.
func checkScalarOp(t *testing.T, funcName string, inputs []compute.Datum, expected compute.Datum, opts compute.FunctionOptions) {
	checkScalarOnce(t, funcName, inputs, expected, opts)

	if expected.Kind() == compute.KindScalar {
		return
	}

	exp := expected.(*compute.ArrayDatum).MakeArray()
	defer exp.Release()

	// at least one input must be an array, and all arrays share a length
	hasArray := false
	for _, in := range inputs {
		if in.Kind() == compute.KindArray {
			assert.EqualValues(t, exp.Len(), in.(*compute.ArrayDatum).Len())
			hasArray = true
		}
	}
	require.True(t, hasArray)

	for i := 0; i < exp.Len(); i++ {
		want, _ := scalar.GetScalar(exp, i)
		checkScalarFromScalars(t, funcName, scalarsFrom(inputs, i), want, opts)
	}
}

func requireBufferShared(t *testing.T, left, right quiver.Array, idx int) {
	assert.Same(t, left.Data().Buffers()[idx], right.Data().Buffers()[idx])
}

func checkUnaryOp(t *testing.T, funcName string, input compute.Datum, exp compute.Datum, opt compute.FunctionOptions) {
	checkScalarOp(t, funcName, []compute.Datum{input}, exp, opt)
}

func checkScalarBinary(t *testing.T, funcName string, left, right, expected compute.Datum, opts compute.FunctionOptions) {
	checkScalarOp(t, funcName, []compute.Datum{left, right}, expected, opts)
}

func checkCast(t *testing.T, input quiver.Array, exp quiver.Array, opts compute.CastOptions) {
	opts.ToType = exp.DataType()
	in, out := compute.NewDatum(input), compute.NewDatum(exp)
	defer in.Release()
	defer out.Release()
	checkUnaryOp(t, "cast", in, out, &opts)
}

func checkCastFails(t *testing.T, ctx context.Context, input quiver.Array, opt compute.CastOptions, wantErr error) {
	_, err := compute.CastArray(ctx, input, &opt)
	assert.ErrorIs(t, err, wantErr)
}

func checkCastZeroCopy(t *testing.T, input quiver.Array, toType quiver.DataType, opts *compute.CastOptions) {
	opts.ToType = toType
	out, err := compute.CastArray(context.Background(), input, opts)
	assert.NoError(t, err)
	defer out.Release()

	assert.Len(t, out.Data().Buffers(), len(input.Data().Buffers()))
	for i := range out.Data().Buffers() {
		requireBufferShared(t, out, input, i)
	}
}

var (
	integerTypes = []quiver.DataType{
		quiver.PrimitiveTypes.Uint8,
		quiver.PrimitiveTypes.Int8,
		quiver.PrimitiveTypes.Uint16,
		quiver.PrimitiveTypes.Int16,
		quiver.PrimitiveTypes.Uint32,
		quiver.PrimitiveTypes.Int32,
		quiver.PrimitiveTypes.Uint64,
		quiver.PrimitiveTypes.Int64,
	}
	numericTypes = append(integerTypes,
		quiver.PrimitiveTypes.Float32,
		quiver.PrimitiveTypes.Float64)
	baseBinaryTypes = []quiver.DataType{
		quiver.BinaryTypes.Binary,
		quiver.BinaryTypes.String,
	}
)

type CastSuite struct {
	suite.Suite

	mem *memory.CheckedAllocator
	ctx context.Context
}

func (c *CastSuite) SetupTest() {
	c.mem = memory.NewCheckedAllocator(memory.DefaultAllocator)
	c.ctx = compute.WithAllocator(context.Background(), c.mem)
}

func (c *CastSuite) TearDownTest() {
	c.mem.AssertSize(c.T(), 0)
}

func (c *CastSuite) fromJSON(dt quiver.DataType, data string) quiver.Array {
	arr, _, err := array.FromJSON(c.mem, dt, strings.NewReader(data))
	c.Require().NoError(err)
	return arr
}

func (c *CastSuite) TestCanCast() {
	expectCan := [][2]quiver.DataType{
		{quiver.PrimitiveTypes.Int8, quiver.PrimitiveTypes.Int64},
		{quiver.PrimitiveTypes.Int64, quiver.PrimitiveTypes.Int8},
		{quiver.PrimitiveTypes.Uint32, quiver.PrimitiveTypes.Float64},
		{quiver.PrimitiveTypes.Float64, quiver.PrimitiveTypes.Uint32},
		{quiver.FixedWidthTypes.Boolean, quiver.PrimitiveTypes.Int32},
		{quiver.Null, quiver.PrimitiveTypes.Float32},
		{quiver.BinaryTypes.String, quiver.BinaryTypes.Binary},
	}
	for _, pair := range expectCan {
		c.True(compute.CanCast(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	expectCannot := [][2]quiver.DataType{
		{quiver.PrimitiveTypes.Int32, quiver.FixedWidthTypes.Boolean},
		{quiver.BinaryTypes.Binary, quiver.BinaryTypes.String},
		{quiver.PrimitiveTypes.Int32, quiver.BinaryTypes.Binary},
	}
	for _, pair := range expectCannot {
		c.False(compute.CanCast(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func (c *CastSuite) TestIntToIntWidening() {
	in := c.fromJSON(quiver.PrimitiveTypes.Int8, `[0, null, 127, -1, -128]`)
	defer in.Release()
	exp := c.fromJSON(quiver.PrimitiveTypes.Int32, `[0, null, 127, -1, -128]`)
	defer exp.Release()

	checkCast(c.T(), in, exp, *compute.DefaultCastOptions(true))
}

func (c *CastSuite) TestIntToIntNarrowing() {
	in := c.fromJSON(quiver.PrimitiveTypes.Int32, `[0, null, 127, -1, -128]`)
	defer in.Release()
	exp := c.fromJSON(quiver.PrimitiveTypes.Int8, `[0, null, 127, -1, -128]`)
	defer exp.Release()

	checkCast(c.T(), in, exp, *compute.DefaultCastOptions(true))

	overflow := c.fromJSON(quiver.PrimitiveTypes.Int32, `[0, null, 256]`)
	defer overflow.Release()
	checkCastFails(c.T(), c.ctx, overflow, *compute.SafeCastOptions(quiver.PrimitiveTypes.Int8), quiver.ErrOverflow)

	// with overflow allowed the values wrap around
	wrapped := c.fromJSON(quiver.PrimitiveTypes.Int8, `[0, null, 0]`)
	defer wrapped.Release()
	checkCast(c.T(), overflow, wrapped, *compute.DefaultCastOptions(false))
}

func (c *CastSuite) TestSignedToUnsigned() {
	negative := c.fromJSON(quiver.PrimitiveTypes.Int32, `[0, null, -1]`)
	defer negative.Release()
	checkCastFails(c.T(), c.ctx, negative, *compute.SafeCastOptions(quiver.PrimitiveTypes.Uint32), quiver.ErrOverflow)

	wrapped := c.fromJSON(quiver.PrimitiveTypes.Uint32, `[0, null, 4294967295]`)
	defer wrapped.Release()
	checkCast(c.T(), negative, wrapped, *compute.DefaultCastOptions(false))
}

func (c *CastSuite) TestFloatingToInteger() {
	exact := c.fromJSON(quiver.PrimitiveTypes.Float64, `[0.0, null, 2.0, -3.0]`)
	defer exact.Release()
	expExact := c.fromJSON(quiver.PrimitiveTypes.Int32, `[0, null, 2, -3]`)
	defer expExact.Release()
	checkCast(c.T(), exact, expExact, *compute.DefaultCastOptions(true))

	trunc := c.fromJSON(quiver.PrimitiveTypes.Float64, `[1.5, null, 2.5]`)
	defer trunc.Release()
	checkCastFails(c.T(), c.ctx, trunc, *compute.SafeCastOptions(quiver.PrimitiveTypes.Int32), quiver.ErrInvalid)

	// truncation toward zero when allowed
	expTrunc := c.fromJSON(quiver.PrimitiveTypes.Int32, `[1, null, 2]`)
	defer expTrunc.Release()
	checkCast(c.T(), trunc, expTrunc, *compute.DefaultCastOptions(false))
}

func (c *CastSuite) TestIntegerToFloating() {
	in := c.fromJSON(quiver.PrimitiveTypes.Int32, `[0, null, 200, -100]`)
	defer in.Release()
	exp := c.fromJSON(quiver.PrimitiveTypes.Float64, `[0, null, 200, -100]`)
	defer exp.Release()
	checkCast(c.T(), in, exp, *compute.DefaultCastOptions(true))

	// 2^24 + 1 is not exactly representable as float32
	big := c.fromJSON(quiver.PrimitiveTypes.Int32, `[16777217]`)
	defer big.Release()
	checkCastFails(c.T(), c.ctx, big, *compute.SafeCastOptions(quiver.PrimitiveTypes.Float32), quiver.ErrOverflow)

	expBig := c.fromJSON(quiver.PrimitiveTypes.Float64, `[16777217]`)
	defer expBig.Release()
	checkCast(c.T(), big, expBig, *compute.DefaultCastOptions(true))
}

func (c *CastSuite) TestBooleanToNumber() {
	in := c.fromJSON(quiver.FixedWidthTypes.Boolean, `[true, false, null, true]`)
	defer in.Release()
	exp := c.fromJSON(quiver.PrimitiveTypes.Int32, `[1, 0, null, 1]`)
	defer exp.Release()

	checkCast(c.T(), in, exp, *compute.DefaultCastOptions(true))
}

func (c *CastSuite) TestNullToNumber() {
	in := c.fromJSON(quiver.Null, `[null, null, null]`)
	defer in.Release()
	exp := c.fromJSON(quiver.PrimitiveTypes.Float64, `[null, null, null]`)
	defer exp.Release()

	out, err := compute.CastToType(c.ctx, in, quiver.PrimitiveTypes.Float64)
	c.Require().NoError(err)
	defer out.Release()
	c.True(array.Equal(exp, out), "expected: %s\ngot: %s", exp, out)
}

func (c *CastSuite) TestCastSameType() {
	in := c.fromJSON(quiver.PrimitiveTypes.Int32, `[1, 2, 3]`)
	defer in.Release()

	out, err := compute.CastToType(c.ctx, in, quiver.PrimitiveTypes.Int32)
	c.Require().NoError(err)
	defer out.Release()

	for i := range in.Data().Buffers() {
		requireBufferShared(c.T(), in, out, i)
	}
}

func (c *CastSuite) TestStringToBinaryZeroCopy() {
	in := c.fromJSON(quiver.BinaryTypes.String, `["dog", null, "", "cat"]`)
	defer in.Release()

	checkCastZeroCopy(c.T(), in, quiver.BinaryTypes.Binary, compute.DefaultCastOptions(true))
}

func (c *CastSuite) TestUnsupportedTarget() {
	in := c.fromJSON(quiver.PrimitiveTypes.Int32, `[1, 2]`)
	defer in.Release()

	_, err := compute.CastToType(c.ctx, in, quiver.FixedWidthTypes.Boolean)
	c.ErrorIs(err, quiver.ErrNotImplemented)

	_, err = compute.CastToType(c.ctx, in, quiver.BinaryTypes.Binary)
	c.ErrorIs(err, quiver.ErrNotImplemented)
}

func (c *CastSuite) TestCastWithoutOptions() {
	in := c.fromJSON(quiver.PrimitiveTypes.Int32, `[1, 2]`)
	defer in.Release()
	datum := compute.NewDatum(in)
	defer datum.Release()

	_, err := compute.CallFunction(c.ctx, "cast", nil, datum)
	c.ErrorIs(err, quiver.ErrInvalid)
}

func (c *CastSuite) TestCastScalar() {
	out, err := compute.CastDatum(c.ctx, compute.NewDatum(scalar.NewInt8Scalar(5)),
		compute.SafeCastOptions(quiver.PrimitiveTypes.Int64))
	c.Require().NoError(err)
	defer out.Release()

	c.Equal(compute.KindScalar, out.Kind())
	c.True(scalar.Equals(scalar.NewInt64Scalar(5), out.(*compute.ScalarDatum).Value))
}

func TestCasts(t *testing.T) {
	suite.Run(t, new(CastSuite))
}
