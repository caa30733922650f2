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

package compute

import (
	"context"
	"fmt"
	"testing"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/testing/gen"
	"github.com/quiverdata/quiver/memory"
	"github.com/quiverdata/quiver/scalar"
	"github.com/stretchr/testify/suite"
)

type computeSuiteBase struct {
	suite.Suite

	mem *memory.CheckedAllocator

	execCtx ExecCtx
	ctx     *exec.KernelCtx
	rng     gen.RandomArrayGenerator
}

func (c *computeSuiteBase) SetupTest() {
	c.mem = memory.NewCheckedAllocator(memory.DefaultAllocator)
	c.rng = gen.NewRandomArrayGenerator(0, c.mem)
	c.resetCtx()
}

func (c *computeSuiteBase) TearDownTest() {
	c.mem.AssertSize(c.T(), 0)
}

func (c *computeSuiteBase) resetCtx() {
	c.execCtx = DefaultExecCtx()
	c.execCtx.Alloc = c.mem
	c.ctx = &exec.KernelCtx{Ctx: SetExecCtx(WithAllocator(context.Background(), c.mem), c.execCtx)}
}

func (c *computeSuiteBase) getUint8Arr(sz int64, nullprob float64) quiver.Array {
	return c.rng.Uint8(sz, 0, 100, nullprob)
}

func (c *computeSuiteBase) getInt32Arr(sz int64, nullprob float64) quiver.Array {
	return c.rng.Int32(sz, 0, 1000, nullprob)
}

func (c *computeSuiteBase) assertArrayEqual(expected, actual quiver.Array) {
	c.Truef(array.Equal(expected, actual), "expected: %s\ngot: %s", expected, actual)
}

func (c *computeSuiteBase) assertDatumEqual(expected quiver.Array, actual Datum) {
	c.Equal(KindArray, actual.Kind())
	arr := actual.(*ArrayDatum).MakeArray()
	defer arr.Release()
	c.assertArrayEqual(expected, arr)
}

type NullPropagationSuite struct {
	computeSuiteBase
}

// propagateToSpan runs null propagation for a single-input batch into the
// given output span.
func (p *NullPropagationSuite) propagateToSpan(vals []Datum, length int, out *exec.ArraySpan) {
	batch := &ExecBatch{Values: vals, Len: int64(length)}
	p.NoError(propagateNulls(p.ctx, ExecSpanFromBatch(batch), out))
}

// boolInputWithBitmap builds a boolean input whose validity bitmap is the
// given bytes and whose null count is unknown, plus a bitmap-less output.
func boolInputWithBitmap(bitmap []byte, length int) (in, out quiver.ArrayData, nulls *memory.Buffer) {
	nulls = memory.NewBufferBytes(bitmap)
	out = array.NewData(quiver.FixedWidthTypes.Boolean, length, []*memory.Buffer{nil, nil}, nil, 0, 0)
	in = array.NewData(quiver.FixedWidthTypes.Boolean, length, []*memory.Buffer{nulls, nil}, nil, array.UnknownNullCount, 0)
	return
}

func (p *NullPropagationSuite) TestUnknownNullCountWithNullsZeroCopies() {
	const length = 16
	bitmap := [8]byte{254, 0, 0, 0, 0, 0, 0, 0}
	input, output, nulls := boolInputWithBitmap(bitmap[:], length)

	var span exec.ArraySpan
	span.SetMembers(output)
	p.propagateToSpan([]Datum{NewDatum(input)}, length, &span)

	// the input bitmap is shared untouched and the count stays unknown
	p.Same(nulls, span.Buffers[0].Owner)
	p.EqualValues(array.UnknownNullCount, span.Nulls)
	p.Equal(9, int(span.Len)-bitutil.CountSetBits(span.Buffers[0].Buf, int(span.Offset), int(span.Len)))
}

func (p *NullPropagationSuite) TestUnknownNullCountWithoutNulls() {
	const length = 16
	bitmap := [8]byte{255, 255, 0, 0, 0, 0, 0, 0}
	input, output, nulls := boolInputWithBitmap(bitmap[:], length)

	var span exec.ArraySpan
	span.SetMembers(output)
	p.propagateToSpan([]Datum{NewDatum(input)}, length, &span)

	p.EqualValues(-1, span.Nulls)
	p.Same(nulls, span.Buffers[0].Owner)
}

func (p *NullPropagationSuite) TestSetAllNulls() {
	const length = 16

	// when any input is all-null, every output bit must come out zero,
	// whether the output bitmap was preallocated or not
	checkAllNull := func(vals []Datum, prealloc bool) {
		raw := [2]byte{255, 255}
		preset := memory.NewBufferBytes(raw[:])

		out := &exec.ArraySpan{
			Type:  quiver.FixedWidthTypes.Boolean,
			Len:   length,
			Nulls: array.UnknownNullCount,
		}
		if prealloc {
			out.Buffers[0].SetBuffer(preset)
		}

		p.propagateToSpan(vals, length, out)

		if prealloc {
			p.Same(preset, out.Buffers[0].Owner)
		} else {
			defer out.Buffers[0].Owner.Release()
		}

		p.NotNil(out.Buffers[0].Buf)
		p.Equal([]byte{0, 0}, out.Buffers[0].Buf[:2])
	}

	const trueProb = 0.5
	p.Run("null scalar", func() {
		i32 := scalar.MakeScalar(int32(3))
		vals := []Datum{NewDatum(i32), NewDatum(scalar.MakeNullScalar(quiver.FixedWidthTypes.Boolean))}
		checkAllNull(vals, true)
		checkAllNull(vals, false)

		arr := p.rng.Boolean(length, trueProb, 0)
		defer arr.Release()
		vals[0] = NewDatum(arr)
		defer vals[0].Release()
		checkAllNull(vals, true)
		checkAllNull(vals, false)
	})

	p.Run("one all null", func() {
		allNulls := p.rng.Boolean(length, trueProb, 1)
		defer allNulls.Release()
		half := p.rng.Boolean(length, trueProb, 0.5)
		defer half.Release()

		vals := []Datum{NewDatum(half), NewDatum(allNulls)}
		defer vals[0].Release()
		defer vals[1].Release()
		checkAllNull(vals, true)
		checkAllNull(vals, false)
	})

	p.Run("one value is NullType", func() {
		nullArr := array.NewNull(length)
		defer nullArr.Release()
		arr := p.rng.Boolean(length, trueProb, 0)
		defer arr.Release()

		vals := []Datum{NewDatum(arr), NewDatum(nullArr)}
		defer vals[0].Release()
		checkAllNull(vals, true)
		checkAllNull(vals, false)
	})

	p.Run("all null zero copied", func() {
		// the all-null array's bitmap is shared even though a null
		// scalar appears earlier in the batch
		out := &exec.ArraySpan{
			Type: quiver.FixedWidthTypes.Boolean,
			Len:  length,
		}
		allNulls := p.rng.Boolean(length, trueProb, 1)
		defer allNulls.Release()

		vals := []Datum{
			NewDatum(scalar.MakeNullScalar(quiver.FixedWidthTypes.Boolean)),
			NewDatum(allNulls),
		}
		defer vals[1].Release()

		p.propagateToSpan(vals, length, out)
		p.Same(allNulls.Data().Buffers()[0], out.Buffers[0].Owner)
		out.Buffers[0].Owner.Release()
	})
}

func (p *NullPropagationSuite) TestSingleValueWithNulls() {
	const length int64 = 100
	arr := p.rng.Boolean(length, 0.5, 0.5)
	defer arr.Release()

	check := func(offset int64, prealloc bool, outOffset int64) {
		sliced := array.NewSlice(arr, offset, int64(arr.Len()))
		defer sliced.Release()
		vals := []Datum{NewDatum(sliced)}
		defer vals[0].Release()

		out := &exec.ArraySpan{
			Type:   quiver.FixedWidthTypes.Boolean,
			Len:    vals[0].Len(),
			Offset: outOffset,
		}

		var preset *memory.Buffer
		if prealloc {
			preset = memory.NewResizableBuffer(p.mem)
			defer preset.Release()
			preset.Resize(int(bitutil.BytesForBits(int64(sliced.Len()) + outOffset)))
			out.Buffers[0].SetBuffer(preset)
		} else {
			p.EqualValues(0, out.Offset)
		}

		p.propagateToSpan(vals, int(vals[0].Len()), out)

		switch {
		case prealloc:
			// must write into the provided bitmap, not swap it out
			p.Same(preset, out.Buffers[0].Owner)
		default:
			parent := arr.Data().Buffers()[0]
			switch {
			case offset == 0:
				// whole bitmap, shared as-is
				p.Same(parent, out.Buffers[0].Owner)
			case offset%8 == 0:
				// byte aligned, shared through a slice
				p.NotSame(parent, out.Buffers[0].Owner)
				p.Same(parent, out.Buffers[0].Owner.Parent())
				defer out.Buffers[0].Owner.Release()
			default:
				// unaligned, the bits had to be copied
				p.NotSame(parent, out.Buffers[0].Owner)
				p.Nil(out.Buffers[0].Owner.Parent())
				defer out.Buffers[0].Owner.Release()
			}
		}

		p.EqualValues(sliced.NullN(), out.UpdateNullCount())
	}

	for _, tt := range []struct {
		offset, outOffset int64
		prealloc          bool
	}{
		{8, 0, false},
		{7, 0, false},
		{8, 0, true},
		{7, 0, true},
		{8, 4, true},
		{7, 4, true},
	} {
		p.Run(fmt.Sprintf("off=%d,prealloc=%t,outoff=%d", tt.offset, tt.prealloc, tt.outOffset), func() {
			check(tt.offset, tt.prealloc, tt.outOffset)
		})
	}
}

func TestComputeInternals(t *testing.T) {
	suite.Run(t, new(NullPropagationSuite))
}
