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
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/testing/gen"
	"github.com/quiverdata/quiver/memory"
	"github.com/quiverdata/quiver/scalar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var compareFuncNames = []string{"equal", "not_equal", "less", "less_equal", "greater", "greater_equal"}

func refCmp[T exec.NumericTypes | string](fn string, a, b T) bool {
	switch fn {
	case "equal":
		return a == b
	case "not_equal":
		return a != b
	case "less":
		return a < b
	case "less_equal":
		return a <= b
	case "greater":
		return a > b
	case "greater_equal":
		return a >= b
	}
	return false
}

type CompareSuite struct {
	execTestSuite
}

func (c *CompareSuite) fromJSON(dt quiver.DataType, data string) quiver.Array {
	arr, _, err := array.FromJSON(c.mem, dt, strings.NewReader(data), array.WithUseNumber())
	c.Require().NoError(err)
	return arr
}

func (c *CompareSuite) checkCompareDatum(fn string, lhs, rhs, want compute.Datum) {
	got, err := compute.CallFunction(c.ctx, fn, nil, lhs, rhs)
	c.Require().NoError(err)
	defer got.Release()

	requireDatumsEqual(c.T(), want, got)
}

// checkCompare runs fn over two JSON-literal arrays of type dt and
// compares against a boolean JSON literal.
func (c *CompareSuite) checkCompare(fn string, dt quiver.DataType, lhs, rhs, want string) {
	l, r := c.fromJSON(dt, lhs), c.fromJSON(dt, rhs)
	w := c.fromJSON(quiver.FixedWidthTypes.Boolean, want)
	defer l.Release()
	defer r.Release()
	defer w.Release()

	c.checkCompareDatum(fn, &compute.ArrayDatum{Value: l.Data()},
		&compute.ArrayDatum{Value: r.Data()}, &compute.ArrayDatum{Value: w.Data()})
}

// checkWithScalar broadcasts sc against a JSON-literal array, in both
// argument orders when wantFlipped is non-empty.
func (c *CompareSuite) checkWithScalar(fn string, dt quiver.DataType, arr string, sc compute.Datum, want, wantFlipped string) {
	a := c.fromJSON(dt, arr)
	defer a.Release()

	w := c.fromJSON(quiver.FixedWidthTypes.Boolean, want)
	c.checkCompareDatum(fn, &compute.ArrayDatum{Value: a.Data()}, sc, &compute.ArrayDatum{Value: w.Data()})
	w.Release()

	if wantFlipped != "" {
		w = c.fromJSON(quiver.FixedWidthTypes.Boolean, wantFlipped)
		c.checkCompareDatum(fn, sc, &compute.ArrayDatum{Value: a.Data()}, &compute.ArrayDatum{Value: w.Data()})
		w.Release()
	}
}

type NumericCompareSuite[T exec.NumericTypes] struct {
	CompareSuite
}

func (n *NumericCompareSuite[T]) TestDegenerateInputs() {
	dt := exec.GetDataType[T]()
	two := compute.NewDatum(scalar.MakeScalar(T(2)))

	n.Run(dt.String(), func() {
		for _, fn := range compareFuncNames {
			// empty arrays and lone nulls pass through every operator
			n.checkWithScalar(fn, dt, `[]`, two, `[]`, `[]`)
			n.checkWithScalar(fn, dt, `[null]`, two, `[null]`, `[null]`)
			n.checkCompare(fn, dt, `[]`, `[]`, `[]`)
			n.checkCompare(fn, dt, `[null]`, `[null]`, `[null]`)
		}
	})
}

func (n *NumericCompareSuite[T]) TestArrayAgainstScalar() {
	dt := exec.GetDataType[T]()
	two := compute.NewDatum(scalar.MakeScalar(T(2)))
	const data = `[1, 2, 3, null, 2]`

	cases := []struct{ fn, want, flipped string }{
		{"equal", `[false, true, false, null, true]`, `[false, true, false, null, true]`},
		{"not_equal", `[true, false, true, null, false]`, `[true, false, true, null, false]`},
		{"less", `[true, false, false, null, false]`, `[false, false, true, null, false]`},
		{"less_equal", `[true, true, false, null, true]`, `[false, true, true, null, true]`},
		{"greater", `[false, false, true, null, false]`, `[true, false, false, null, false]`},
		{"greater_equal", `[false, true, true, null, true]`, `[true, true, false, null, true]`},
	}

	n.Run(dt.String(), func() {
		for _, tc := range cases {
			n.checkWithScalar(tc.fn, dt, data, two, tc.want, tc.flipped)
		}
	})
}

func (n *NumericCompareSuite[T]) TestArrayAgainstArray() {
	dt := exec.GetDataType[T]()
	const lhs = `[1, 2, 3, null, 5]`
	const rhs = `[5, 2, 1, 1, null]`

	cases := []struct{ fn, want string }{
		{"equal", `[false, true, false, null, null]`},
		{"not_equal", `[true, false, true, null, null]`},
		{"less", `[true, false, false, null, null]`},
		{"less_equal", `[true, true, false, null, null]`},
		{"greater", `[false, false, true, null, null]`},
		{"greater_equal", `[false, true, true, null, null]`},
	}

	n.Run(dt.String(), func() {
		for _, tc := range cases {
			n.checkCompare(tc.fn, dt, lhs, rhs, tc.want)
		}
	})
}

func (n *NumericCompareSuite[T]) TestNullScalarInvalidatesAll() {
	dt := exec.GetDataType[T]()
	null := compute.NewDatum(scalar.MakeNullScalar(dt))

	n.Run(dt.String(), func() {
		n.checkWithScalar("equal", dt, `[1, 2, 3]`, null,
			`[null, null, null]`, `[null, null, null]`)
		n.checkWithScalar("less", dt, `[1, null, 3]`, null,
			`[null, null, null]`, `[null, null, null]`)
	})
}

type CompareBooleanSuite struct {
	CompareSuite
}

func (c *CompareBooleanSuite) TestAgainstScalar() {
	dt := quiver.FixedWidthTypes.Boolean
	truth := compute.NewDatum(scalar.MakeScalar(true))
	const data = `[true, false, null, false]`

	c.checkWithScalar("equal", dt, `[]`, truth, `[]`, `[]`)
	c.checkWithScalar("equal", dt, data, truth, `[true, false, null, false]`, "")
	c.checkWithScalar("not_equal", dt, data, truth, `[false, true, null, true]`, "")
	// false orders before true
	c.checkWithScalar("less", dt, data, truth, `[false, true, null, true]`, "")
	c.checkWithScalar("greater_equal", dt, data, truth, `[true, false, null, false]`, "")
}

func (c *CompareBooleanSuite) TestAgainstArray() {
	dt := quiver.FixedWidthTypes.Boolean
	const lhs = `[true, false, true, null]`
	const rhs = `[false, false, true, true]`

	c.checkCompare("equal", dt, lhs, rhs, `[false, true, true, null]`)
	c.checkCompare("greater", dt, lhs, rhs, `[true, false, false, null]`)
	c.checkCompare("less_equal", dt, lhs, rhs, `[false, true, true, null]`)
}

type CompareStringSuite struct {
	CompareSuite
}

func (c *CompareStringSuite) TestAgainstScalar() {
	dt := quiver.BinaryTypes.String
	m := compute.NewDatum(scalar.MakeScalar("m"))
	const data = `["a", "m", "z", null]`

	c.checkWithScalar("equal", dt, `[]`, m, `[]`, `[]`)
	c.checkWithScalar("equal", dt, data, m, `[false, true, false, null]`, `[false, true, false, null]`)
	c.checkWithScalar("not_equal", dt, data, m, `[true, false, true, null]`, `[true, false, true, null]`)
	c.checkWithScalar("less", dt, data, m, `[true, false, false, null]`, `[false, false, true, null]`)

	// ordered comparisons are lexicographic on the raw bytes
	c.checkWithScalar("less", dt, `["lemon", "m", "ma", "z"]`, m,
		`[true, false, false, false]`, "")

	null := compute.NewDatum(scalar.MakeNullScalar(dt))
	c.checkWithScalar("equal", dt, data, null,
		`[null, null, null, null]`, `[null, null, null, null]`)
}

// stringGetter adapts an array or scalar datum to per-position access
// for the reference comparison below.
func stringGetter(d compute.Datum) (get func(int) (string, bool), done func()) {
	if d.Kind() == compute.KindScalar {
		s := d.(*compute.ScalarDatum).Value
		if !s.IsValid() {
			return func(int) (string, bool) { return "", false }, func() {}
		}
		v := string(s.(*scalar.String).Data())
		return func(int) (string, bool) { return v, true }, func() {}
	}

	arr := d.(*compute.ArrayDatum).MakeArray().(*array.String)
	return func(i int) (string, bool) { return arr.Value(i), arr.IsValid(i) }, arr.Release
}

func refCompareStrings(mem memory.Allocator, fn string, lhs, rhs compute.Datum) compute.Datum {
	n := int(lhs.Len())
	if lhs.Kind() == compute.KindScalar {
		n = int(rhs.Len())
	}

	lget, ldone := stringGetter(lhs)
	defer ldone()
	rget, rdone := stringGetter(rhs)
	defer rdone()

	bldr := array.NewBooleanBuilder(mem)
	defer bldr.Release()
	for i := 0; i < n; i++ {
		lv, lok := lget(i)
		rv, rok := rget(i)
		if lok && rok {
			bldr.Append(refCmp(fn, lv, rv))
		} else {
			bldr.AppendNull()
		}
	}

	out := bldr.NewArray()
	defer out.Release()
	return compute.NewDatum(out)
}

func (c *CompareStringSuite) checkAgainstReference(fn string, lhs, rhs compute.Datum) {
	want := refCompareStrings(c.mem, fn, lhs, rhs)
	defer want.Release()
	c.checkCompareDatum(fn, lhs, rhs, want)
}

func (c *CompareStringSuite) TestRandomAgainstScalar() {
	rng := gen.NewRandomArrayGenerator(0x5416447, c.mem)
	for _, length := range []int64{8, 64, 512} {
		c.Run(fmt.Sprintf("len=%d", length), func() {
			for _, nullProb := range []float64{0.0, 0.01, 0.1, 0.5, 1.0} {
				c.Run(fmt.Sprintf("nullprob=%0.2f", nullProb), func() {
					arr := rng.String(length, 0, 16, nullProb)
					defer arr.Release()
					sc := compute.NewDatum(scalar.MakeScalar("fuzz"))

					for _, fn := range []string{"equal", "not_equal"} {
						c.Run(fn, func() {
							c.checkAgainstReference(fn, &compute.ArrayDatum{Value: arr.Data()}, sc)
							c.checkAgainstReference(fn, sc, &compute.ArrayDatum{Value: arr.Data()})
						})
					}
				})
			}
		})
	}
}

func (c *CompareStringSuite) TestRandomAgainstArray() {
	rng := gen.NewRandomArrayGenerator(0x5416447, c.mem)
	for _, length := range []int64{8, 64, 512} {
		c.Run(fmt.Sprintf("len=%d", length), func() {
			for _, nullProb := range []float64{0.0, 0.01, 0.1, 0.5, 1.0} {
				c.Run(fmt.Sprintf("nullprob=%0.2f", nullProb), func() {
					lhs := rng.String(length, 0, 16, nullProb)
					defer lhs.Release()
					rhs := rng.String(length, 0, 16, nullProb)
					defer rhs.Release()

					for _, fn := range []string{"equal", "not_equal"} {
						c.Run(fn, func() {
							c.checkAgainstReference(fn,
								&compute.ArrayDatum{Value: lhs.Data()},
								&compute.ArrayDatum{Value: rhs.Data()})
						})
					}
				})
			}
		})
	}
}

func TestComparisons(t *testing.T) {
	suite.Run(t, new(NumericCompareSuite[int8]))
	suite.Run(t, new(NumericCompareSuite[int16]))
	suite.Run(t, new(NumericCompareSuite[int32]))
	suite.Run(t, new(NumericCompareSuite[int64]))
	suite.Run(t, new(NumericCompareSuite[uint8]))
	suite.Run(t, new(NumericCompareSuite[uint16]))
	suite.Run(t, new(NumericCompareSuite[uint32]))
	suite.Run(t, new(NumericCompareSuite[uint64]))
	suite.Run(t, new(NumericCompareSuite[float32]))
	suite.Run(t, new(NumericCompareSuite[float64]))
	suite.Run(t, new(CompareBooleanSuite))
	suite.Run(t, new(CompareStringSuite))
}

func TestCompareDispatchBest(t *testing.T) {
	var (
		i8   = quiver.PrimitiveTypes.Int8
		i16  = quiver.PrimitiveTypes.Int16
		i32  = quiver.PrimitiveTypes.Int32
		i64  = quiver.PrimitiveTypes.Int64
		u8   = quiver.PrimitiveTypes.Uint8
		u16  = quiver.PrimitiveTypes.Uint16
		u32  = quiver.PrimitiveTypes.Uint32
		u64  = quiver.PrimitiveTypes.Uint64
		f32  = quiver.PrimitiveTypes.Float32
		f64  = quiver.PrimitiveTypes.Float64
		str  = quiver.BinaryTypes.String
		bin  = quiver.BinaryTypes.Binary
		dict = &quiver.DictionaryType{IndexType: i8, ValueType: f64}
	)

	cases := []struct {
		left, right quiver.DataType
		common      quiver.DataType
	}{
		{i32, i32, i32},
		{i32, quiver.Null, i32},
		{quiver.Null, i32, i32},

		{i32, i8, i32},
		{i32, i16, i32},
		{i32, i64, i64},

		{i32, u8, i32},
		{i32, u16, i32},
		{i32, u32, i64},
		{i32, u64, i64},

		{u8, u8, u8},
		{u8, u16, u16},

		// integers wider than 16 bits do not fit a float32 mantissa, so
		// the common type jumps to float64
		{i32, f32, f64},
		{i16, f32, f32},
		{f32, i64, f64},
		{f64, i32, f64},

		{dict, f64, f64},
		{dict, i16, f64},

		{str, bin, bin},
	}

	for _, fn := range compareFuncNames {
		t.Run(fn, func(t *testing.T) {
			for _, tc := range cases {
				CheckDispatchBest(t, fn, []quiver.DataType{tc.left, tc.right},
					[]quiver.DataType{tc.common, tc.common})
			}
		})
	}
}

func TestCompareWithImplicitCasts(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	fromJSON := func(dt quiver.DataType, data string) quiver.Array {
		arr, _, err := array.FromJSON(mem, dt, strings.NewReader(data), array.WithUseNumber())
		require.NoError(t, err)
		return arr
	}

	cases := []struct {
		ltype, rtype quiver.DataType
		lhs, rhs     string
		want         string
	}{
		{quiver.PrimitiveTypes.Int32, quiver.PrimitiveTypes.Float64,
			`[0, 1, 2, null]`, `[0.5, 1.0, 1.5, 2.0]`, `[false, false, true, null]`},
		{quiver.PrimitiveTypes.Int8, quiver.PrimitiveTypes.Uint32,
			`[-16, 0, 16, null]`, `[3, 4, 5, 7]`, `[false, false, true, null]`},
		{quiver.PrimitiveTypes.Int8, quiver.PrimitiveTypes.Uint8,
			`[-16, 0, 16, null]`, `[255, 254, 1, 0]`, `[false, false, true, null]`},
		// "YQ==" / "Yg==" decode to "a" / "b"
		{quiver.BinaryTypes.String, quiver.BinaryTypes.Binary,
			`["b", "a", null]`, `["YQ==", "Yg==", "YQ=="]`, `[true, false, null]`},
	}

	for _, tc := range cases {
		lhs := fromJSON(tc.ltype, tc.lhs)
		rhs := fromJSON(tc.rtype, tc.rhs)
		want := fromJSON(quiver.FixedWidthTypes.Boolean, tc.want)

		checkScalarBinary(t, "greater", compute.NewDatumWithoutOwning(lhs),
			compute.NewDatumWithoutOwning(rhs),
			compute.NewDatumWithoutOwning(want), nil)

		lhs.Release()
		rhs.Release()
		want.Release()
	}
}

func TestCompareUint64PromotionEdgeCase(t *testing.T) {
	// int64 is the widest type the ladder can promote to
	CheckDispatchBest(t, "greater",
		[]quiver.DataType{quiver.PrimitiveTypes.Int8, quiver.PrimitiveTypes.Uint64},
		[]quiver.DataType{quiver.PrimitiveTypes.Int64, quiver.PrimitiveTypes.Int64})

	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	fromJSON := func(dt quiver.DataType, data string) quiver.Array {
		arr, _, err := array.FromJSON(mem, dt, strings.NewReader(data), array.WithUseNumber())
		require.NoError(t, err)
		return arr
	}

	// small uint64 values cast to int64 without loss
	neg := fromJSON(quiver.PrimitiveTypes.Int8, `[-1]`)
	defer neg.Release()
	zero := fromJSON(quiver.PrimitiveTypes.Uint64, `[0]`)
	defer zero.Release()
	want := fromJSON(quiver.FixedWidthTypes.Boolean, `[false]`)
	defer want.Release()

	checkScalarBinary(t, "greater", compute.NewDatumWithoutOwning(neg),
		compute.NewDatumWithoutOwning(zero), compute.NewDatumWithoutOwning(want), nil)

	// a uint64 beyond the int64 range cannot survive the implicit cast
	big := fromJSON(quiver.PrimitiveTypes.Uint64, `[18446744073709551615]`)
	defer big.Release()
	wide := fromJSON(quiver.PrimitiveTypes.Int64, `[-1]`)
	defer wide.Release()

	_, err := compute.CallFunction(context.TODO(), "greater", nil,
		compute.NewDatumWithoutOwning(wide), compute.NewDatumWithoutOwning(big))
	assert.ErrorIs(t, err, quiver.ErrOverflow)
}

func benchCompareArrayScalar(b *testing.B, sz int, nullprob float64, fn string, dt quiver.DataType) {
	b.Run(dt.String(), func(b *testing.B) {
		rng := gen.NewRandomArrayGenerator(randomSeed, memory.DefaultAllocator)
		arr := rng.ArrayOf(dt.ID(), int64(sz), nullprob)
		defer arr.Release()
		one := rng.ArrayOf(dt.ID(), 1, 0)
		defer one.Release()
		sc, _ := scalar.GetScalar(one, 0)

		lhs := compute.NewDatumWithoutOwning(arr)
		rhs := compute.NewDatum(sc)

		var nbytes int64
		if dt.ID() == quiver.STRING {
			nbytes = int64(len(arr.(*array.String).ValueBytes()) + sc.(*scalar.String).Value.Len())
		} else {
			nbytes = int64(arr.Data().Buffers()[1].Len() + len(sc.(scalar.PrimitiveScalar).Data()))
		}

		ctx := context.Background()
		b.ResetTimer()
		b.SetBytes(nbytes)
		for n := 0; n < b.N; n++ {
			got, err := compute.CallFunction(ctx, fn, nil, lhs, rhs)
			if err != nil {
				b.Fatal(err)
			}
			got.Release()
		}
	})
}

func benchCompareArrayArray(b *testing.B, sz int, nullprob float64, fn string, dt quiver.DataType) {
	b.Run(dt.String(), func(b *testing.B) {
		rng := gen.NewRandomArrayGenerator(randomSeed, memory.DefaultAllocator)
		lhsArr := rng.ArrayOf(dt.ID(), int64(sz), nullprob)
		defer lhsArr.Release()
		rhsArr := rng.ArrayOf(dt.ID(), int64(sz), nullprob)
		defer rhsArr.Release()

		lhs, rhs := compute.NewDatumWithoutOwning(lhsArr), compute.NewDatumWithoutOwning(rhsArr)
		var nbytes int64
		if dt.ID() == quiver.STRING {
			nbytes = int64(len(lhsArr.(*array.String).ValueBytes()) + len(rhsArr.(*array.String).ValueBytes()))
		} else {
			nbytes = int64(lhsArr.Data().Buffers()[1].Len() + rhsArr.Data().Buffers()[1].Len())
		}

		ctx := context.Background()
		b.ResetTimer()
		b.SetBytes(nbytes)
		for n := 0; n < b.N; n++ {
			got, err := compute.CallFunction(ctx, fn, nil, lhs, rhs)
			if err != nil {
				b.Fatal(err)
			}
			got.Release()
		}
	})
}

func BenchmarkCompare(b *testing.B) {
	var (
		sizes     = []int{CpuCacheSizes[0]}
		nullProbs = []float64{0.0001, 0.01, 0.1, 0.5, 1, 0}
	)

	for name, bench := range map[string]func(*testing.B, int, float64, string, quiver.DataType){
		"GreaterArrayScalar": benchCompareArrayScalar,
		"GreaterArrayArray":  benchCompareArrayArray,
	} {
		b.Run(name, func(b *testing.B) {
			for _, sz := range sizes {
				b.Run(fmt.Sprintf("size=%d", sz), func(b *testing.B) {
					for _, np := range nullProbs {
						b.Run(fmt.Sprintf("nullprob=%f", np), func(b *testing.B) {
							bench(b, sz, np, "greater", quiver.PrimitiveTypes.Int64)
							bench(b, sz, np, "greater", quiver.BinaryTypes.String)
						})
					}
				})
			}
		})
	}
}
