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

package kernels

import (
	"fmt"
	"unsafe"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/bitutils"
	"github.com/quiverdata/quiver/internal/hashing"
	"github.com/quiverdata/quiver/memory"
)

// Grouper assigns dense group indices to the elements of an integer
// group id array. Indices are assigned in order of first appearance,
// reusing the memo tables which back the hash kernels, so identical
// inputs always produce identical groupings. A null group id maps to
// -1 and the grouped kernels skip such rows entirely.
type Grouper struct {
	mapper groupMapper
	typ    quiver.DataType
	mem    memory.Allocator
}

type groupMapper interface {
	mapGroups(arr *exec.ArraySpan, out []int32) error
	size() int
	writeUniques(mem memory.Allocator, dt quiver.DataType) (quiver.ArrayData, error)
}

type numericGroupMapper[T quiver.FixedWidthType] struct {
	memo numericMemo[T]
}

// mapGroups writes the dense index of each valid element into out,
// leaving null slots untouched.
func (m *numericGroupMapper[T]) mapGroups(arr *exec.ArraySpan, out []int32) error {
	values := exec.GetSpanValues[T](arr, 1)
	return bitutils.VisitBitBlocksShort(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos int64) error {
			idx, _, err := m.memo.InsertOrGet(values[pos])
			if err != nil {
				return err
			}
			out[pos] = int32(idx)
			return nil
		}, func() error { return nil })
}

func (m *numericGroupMapper[T]) size() int { return m.memo.Size() }

func (m *numericGroupMapper[T]) writeUniques(mem memory.Allocator, dt quiver.DataType) (quiver.ArrayData, error) {
	n := m.memo.Size()
	values := memory.NewResizableBuffer(mem)
	defer values.Release()
	values.Resize(m.memo.TypeTraits().BytesRequired(n))
	m.memo.WriteOut(values.Bytes())
	return array.NewData(dt, n, []*memory.Buffer{nil, values}, nil, 0, 0), nil
}

func newGroupMapper[T quiver.FixedWidthType]() groupMapper {
	return &numericGroupMapper[T]{memo: hashing.NewMemoTable[T](0)}
}

// NewGrouper constructs a Grouper for the given group id type, which
// must be one of the integer types.
func NewGrouper(mem memory.Allocator, dt quiver.DataType) (*Grouper, error) {
	g := &Grouper{typ: dt, mem: mem}
	switch dt.ID() {
	case quiver.INT8:
		g.mapper = newGroupMapper[int8]()
	case quiver.UINT8:
		g.mapper = newGroupMapper[uint8]()
	case quiver.INT16:
		g.mapper = newGroupMapper[int16]()
	case quiver.UINT16:
		g.mapper = newGroupMapper[uint16]()
	case quiver.INT32:
		g.mapper = newGroupMapper[int32]()
	case quiver.UINT32:
		g.mapper = newGroupMapper[uint32]()
	case quiver.INT64:
		g.mapper = newGroupMapper[int64]()
	case quiver.UINT64:
		g.mapper = newGroupMapper[uint64]()
	default:
		return nil, fmt.Errorf("%w: unsupported group id type %s", quiver.ErrNotImplemented, dt)
	}
	return g, nil
}

// Consume maps one span of group ids to dense group indices, with -1
// marking the null slots.
func (g *Grouper) Consume(arr *exec.ArraySpan) ([]int32, error) {
	indices := make([]int32, arr.Len)
	for i := range indices {
		indices[i] = -1
	}
	if err := g.mapper.mapGroups(arr, indices); err != nil {
		return nil, err
	}
	return indices, nil
}

// NumGroups returns the number of distinct group ids seen so far.
func (g *Grouper) NumGroups() int64 { return int64(g.mapper.size()) }

// Uniques returns the distinct group ids in first-appearance order.
func (g *Grouper) Uniques() (quiver.ArrayData, error) {
	return g.mapper.writeUniques(g.mem, g.typ)
}

// hashAggState is the kernel state held by every grouped aggregate
// kernel. Resize must grow the per-group accumulators before a consume
// may reference new group indices; Finalize emits one output slot per
// group, in group index order.
type hashAggState interface {
	Resize(numGroups int64) error
	Consume(ctx *exec.KernelCtx, batch *exec.ExecSpan) error
	Finalize(ctx *exec.KernelCtx, out *exec.ExecResult) error
}

func hashAggResize(ctx *exec.KernelCtx, numGroups int64) error {
	state, ok := ctx.State.(hashAggState)
	if !ok {
		return fmt.Errorf("%w: bad initialization of aggregate state", quiver.ErrInvalid)
	}
	return state.Resize(numGroups)
}

func hashAggConsume(ctx *exec.KernelCtx, batch *exec.ExecSpan) error {
	state, ok := ctx.State.(hashAggState)
	if !ok {
		return fmt.Errorf("%w: bad initialization of aggregate state", quiver.ErrInvalid)
	}
	return state.Consume(ctx, batch)
}

func hashAggFinalize(ctx *exec.KernelCtx, out *exec.ExecResult) error {
	state, ok := ctx.State.(hashAggState)
	if !ok {
		return fmt.Errorf("%w: bad initialization of aggregate state", quiver.ErrInvalid)
	}
	return state.Finalize(ctx, out)
}

func growSlice[T any](s []T, n int64) []T {
	if int64(len(s)) >= n {
		return s
	}
	return append(s, make([]T, n-int64(len(s)))...)
}

func checkGroupBounds(g int32, numGroups int) error {
	if int(g) >= numGroups {
		return fmt.Errorf("%w: group index %d out of range for %d groups",
			quiver.ErrIndexOutOfBounds, g, numGroups)
	}
	return nil
}

// finalizeGroupedValidity allocates the output validity bitmap when any
// group consumed zero valid elements, setting the bit of every group
// which saw at least one.
func finalizeGroupedValidity(ctx *exec.KernelCtx, seen []int64, out *exec.ExecResult) {
	var nulls int64
	for _, c := range seen {
		if c == 0 {
			nulls++
		}
	}
	out.Nulls = nulls
	if nulls == 0 {
		return
	}
	validity := ctx.AllocateBitmap(int64(len(seen)))
	for g, c := range seen {
		if c > 0 {
			bitutil.SetBit(validity.Bytes(), g)
		}
	}
	out.Buffers[0].WrapBuffer(validity)
}

type groupedSumState[T exec.NumericTypes, AccT int64 | uint64 | float64] struct {
	sums []AccT
}

func (s *groupedSumState[T, AccT]) Resize(n int64) error {
	s.sums = growSlice(s.sums, n)
	return nil
}

func (s *groupedSumState[T, AccT]) Consume(_ *exec.KernelCtx, batch *exec.ExecSpan) error {
	var (
		arr    = &batch.Values[0].Array
		values = exec.GetSpanValues[T](arr, 1)
		groups = exec.GetSpanValues[int32](&batch.Values[1].Array, 1)
	)
	return bitutils.VisitBitBlocksShort(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos int64) error {
			g := groups[pos]
			if g < 0 {
				return nil
			}
			if err := checkGroupBounds(g, len(s.sums)); err != nil {
				return err
			}
			s.sums[g] += AccT(values[pos])
			return nil
		}, func() error { return nil })
}

func (s *groupedSumState[T, AccT]) Finalize(ctx *exec.KernelCtx, out *exec.ExecResult) error {
	var z AccT
	out.Len = int64(len(s.sums))
	out.Nulls = 0
	out.Buffers[1].WrapBuffer(ctx.Allocate(len(s.sums) * int(unsafe.Sizeof(z))))
	copy(exec.GetData[AccT](out.Buffers[1].Buf), s.sums)
	return nil
}

func groupedSumInit[T exec.NumericTypes, AccT int64 | uint64 | float64](_ *exec.KernelCtx, _ exec.KernelInitArgs) (exec.KernelState, error) {
	return &groupedSumState[T, AccT]{}, nil
}

type groupedMeanState[T exec.NumericTypes] struct {
	sums []float64
	seen []int64
}

func (s *groupedMeanState[T]) Resize(n int64) error {
	s.sums = growSlice(s.sums, n)
	s.seen = growSlice(s.seen, n)
	return nil
}

func (s *groupedMeanState[T]) Consume(_ *exec.KernelCtx, batch *exec.ExecSpan) error {
	var (
		arr    = &batch.Values[0].Array
		values = exec.GetSpanValues[T](arr, 1)
		groups = exec.GetSpanValues[int32](&batch.Values[1].Array, 1)
	)
	return bitutils.VisitBitBlocksShort(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos int64) error {
			g := groups[pos]
			if g < 0 {
				return nil
			}
			if err := checkGroupBounds(g, len(s.sums)); err != nil {
				return err
			}
			s.sums[g] += float64(values[pos])
			s.seen[g]++
			return nil
		}, func() error { return nil })
}

func (s *groupedMeanState[T]) Finalize(ctx *exec.KernelCtx, out *exec.ExecResult) error {
	out.Len = int64(len(s.sums))
	out.Buffers[1].WrapBuffer(ctx.Allocate(len(s.sums) * quiver.Float64SizeBytes))
	means := exec.GetData[float64](out.Buffers[1].Buf)
	for g, sum := range s.sums {
		if s.seen[g] > 0 {
			means[g] = sum / float64(s.seen[g])
		}
	}
	finalizeGroupedValidity(ctx, s.seen, out)
	return nil
}

func groupedMeanInit[T exec.NumericTypes](_ *exec.KernelCtx, _ exec.KernelInitArgs) (exec.KernelState, error) {
	return &groupedMeanState[T]{}, nil
}

type groupedMinMaxState[T exec.NumericTypes] struct {
	op   minMaxOp
	mins []T
	maxs []T
	seen []int64
}

func (s *groupedMinMaxState[T]) Resize(n int64) error {
	s.mins = growSlice(s.mins, n)
	s.maxs = growSlice(s.maxs, n)
	s.seen = growSlice(s.seen, n)
	return nil
}

func (s *groupedMinMaxState[T]) Consume(_ *exec.KernelCtx, batch *exec.ExecSpan) error {
	var (
		arr    = &batch.Values[0].Array
		values = exec.GetSpanValues[T](arr, 1)
		groups = exec.GetSpanValues[int32](&batch.Values[1].Array, 1)
	)
	return bitutils.VisitBitBlocksShort(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos int64) error {
			g := groups[pos]
			if g < 0 {
				return nil
			}
			if err := checkGroupBounds(g, len(s.seen)); err != nil {
				return err
			}
			v := values[pos]
			if s.seen[g] == 0 {
				s.mins[g], s.maxs[g] = v, v
			} else {
				if v < s.mins[g] {
					s.mins[g] = v
				}
				if v > s.maxs[g] {
					s.maxs[g] = v
				}
			}
			s.seen[g]++
			return nil
		}, func() error { return nil })
}

func (s *groupedMinMaxState[T]) Finalize(ctx *exec.KernelCtx, out *exec.ExecResult) error {
	var z T
	src := s.mins
	if s.op == opMax {
		src = s.maxs
	}
	out.Len = int64(len(src))
	out.Buffers[1].WrapBuffer(ctx.Allocate(len(src) * int(unsafe.Sizeof(z))))
	copy(exec.GetData[T](out.Buffers[1].Buf), src)
	finalizeGroupedValidity(ctx, s.seen, out)
	return nil
}

func groupedMinMaxInit[T exec.NumericTypes](op minMaxOp) exec.KernelInitFn {
	return func(_ *exec.KernelCtx, _ exec.KernelInitArgs) (exec.KernelState, error) {
		return &groupedMinMaxState[T]{op: op}, nil
	}
}

type groupedCountState struct {
	mode   CountMode
	counts []int64
}

func (s *groupedCountState) Resize(n int64) error {
	s.counts = growSlice(s.counts, n)
	return nil
}

func (s *groupedCountState) Consume(_ *exec.KernelCtx, batch *exec.ExecSpan) error {
	var (
		arr    = &batch.Values[0].Array
		groups = exec.GetSpanValues[int32](&batch.Values[1].Array, 1)
		valid  = &bitutil.OptionalBitIndexer{Bitmap: arr.Buffers[0].Buf, Offset: int(arr.Offset)}
		// a null typed array carries no validity bitmap but every
		// element is null
		allNull = arr.Type.ID() == quiver.NULL
	)
	for pos := int64(0); pos < arr.Len; pos++ {
		g := groups[pos]
		if g < 0 {
			continue
		}
		if err := checkGroupBounds(g, len(s.counts)); err != nil {
			return err
		}
		isValid := !allNull && valid.GetBit(int(pos))
		switch s.mode {
		case CountOnlyValid:
			if isValid {
				s.counts[g]++
			}
		case CountOnlyNull:
			if !isValid {
				s.counts[g]++
			}
		case CountAll:
			s.counts[g]++
		}
	}
	return nil
}

func (s *groupedCountState) Finalize(ctx *exec.KernelCtx, out *exec.ExecResult) error {
	out.Len = int64(len(s.counts))
	out.Nulls = 0
	out.Buffers[1].WrapBuffer(ctx.Allocate(len(s.counts) * quiver.Int64SizeBytes))
	copy(exec.GetData[int64](out.Buffers[1].Buf), s.counts)
	return nil
}

func groupedCountInit(_ *exec.KernelCtx, args exec.KernelInitArgs) (exec.KernelState, error) {
	opts, ok := args.Options.(*CountOptions)
	if !ok {
		return nil, fmt.Errorf("%w: attempted to initialize kernel state from invalid function options",
			quiver.ErrInvalidOption)
	}
	switch opts.Mode {
	case CountOnlyValid, CountOnlyNull, CountAll:
	default:
		return nil, fmt.Errorf("%w: invalid count mode %d", quiver.ErrInvalidOption, opts.Mode)
	}
	return &groupedCountState{mode: opts.Mode}, nil
}

func newHashAggKernel(inType, outType quiver.DataType, init exec.KernelInitFn) exec.HashAggKernel {
	in := []exec.InputType{exec.NewExactInput(inType), exec.NewMatchedInput(exec.Integer())}
	return exec.NewHashAggKernel(in, exec.NewOutputType(outType), init,
		hashAggResize, hashAggConsume, hashAggFinalize)
}

// GetHashSumKernels returns the kernels for the hash_sum function, with
// the same accumulator widening as the scalar sum.
func GetHashSumKernels() []exec.HashAggKernel {
	kernels := make([]exec.HashAggKernel, 0, len(numericTypes))
	for _, ty := range numericTypes {
		var (
			init exec.KernelInitFn
			out  quiver.DataType
		)
		switch ty.ID() {
		case quiver.INT8:
			init, out = groupedSumInit[int8, int64], quiver.PrimitiveTypes.Int64
		case quiver.INT16:
			init, out = groupedSumInit[int16, int64], quiver.PrimitiveTypes.Int64
		case quiver.INT32:
			init, out = groupedSumInit[int32, int64], quiver.PrimitiveTypes.Int64
		case quiver.INT64:
			init, out = groupedSumInit[int64, int64], quiver.PrimitiveTypes.Int64
		case quiver.UINT8:
			init, out = groupedSumInit[uint8, uint64], quiver.PrimitiveTypes.Uint64
		case quiver.UINT16:
			init, out = groupedSumInit[uint16, uint64], quiver.PrimitiveTypes.Uint64
		case quiver.UINT32:
			init, out = groupedSumInit[uint32, uint64], quiver.PrimitiveTypes.Uint64
		case quiver.UINT64:
			init, out = groupedSumInit[uint64, uint64], quiver.PrimitiveTypes.Uint64
		case quiver.FLOAT32:
			init, out = groupedSumInit[float32, float64], quiver.PrimitiveTypes.Float64
		case quiver.FLOAT64:
			init, out = groupedSumInit[float64, float64], quiver.PrimitiveTypes.Float64
		}
		kernels = append(kernels, newHashAggKernel(ty, out, init))
	}
	return kernels
}

// GetHashMeanKernels returns the kernels for the hash_mean function.
func GetHashMeanKernels() []exec.HashAggKernel {
	kernels := make([]exec.HashAggKernel, 0, len(numericTypes))
	for _, ty := range numericTypes {
		var init exec.KernelInitFn
		switch ty.ID() {
		case quiver.INT8:
			init = groupedMeanInit[int8]
		case quiver.INT16:
			init = groupedMeanInit[int16]
		case quiver.INT32:
			init = groupedMeanInit[int32]
		case quiver.INT64:
			init = groupedMeanInit[int64]
		case quiver.UINT8:
			init = groupedMeanInit[uint8]
		case quiver.UINT16:
			init = groupedMeanInit[uint16]
		case quiver.UINT32:
			init = groupedMeanInit[uint32]
		case quiver.UINT64:
			init = groupedMeanInit[uint64]
		case quiver.FLOAT32:
			init = groupedMeanInit[float32]
		case quiver.FLOAT64:
			init = groupedMeanInit[float64]
		}
		kernels = append(kernels, newHashAggKernel(ty, quiver.PrimitiveTypes.Float64, init))
	}
	return kernels
}

func getHashMinMaxKernels(op minMaxOp) []exec.HashAggKernel {
	kernels := make([]exec.HashAggKernel, 0, len(numericTypes))
	for _, ty := range numericTypes {
		var init exec.KernelInitFn
		switch ty.ID() {
		case quiver.INT8:
			init = groupedMinMaxInit[int8](op)
		case quiver.INT16:
			init = groupedMinMaxInit[int16](op)
		case quiver.INT32:
			init = groupedMinMaxInit[int32](op)
		case quiver.INT64:
			init = groupedMinMaxInit[int64](op)
		case quiver.UINT8:
			init = groupedMinMaxInit[uint8](op)
		case quiver.UINT16:
			init = groupedMinMaxInit[uint16](op)
		case quiver.UINT32:
			init = groupedMinMaxInit[uint32](op)
		case quiver.UINT64:
			init = groupedMinMaxInit[uint64](op)
		case quiver.FLOAT32:
			init = groupedMinMaxInit[float32](op)
		case quiver.FLOAT64:
			init = groupedMinMaxInit[float64](op)
		}
		kernels = append(kernels, newHashAggKernel(ty, ty, init))
	}
	return kernels
}

// GetHashMinKernels returns the kernels for the hash_min function.
func GetHashMinKernels() []exec.HashAggKernel { return getHashMinMaxKernels(opMin) }

// GetHashMaxKernels returns the kernels for the hash_max function.
func GetHashMaxKernels() []exec.HashAggKernel { return getHashMinMaxKernels(opMax) }

// GetHashCountKernels returns the kernels for the hash_count function.
func GetHashCountKernels() []exec.HashAggKernel {
	kernels := make([]exec.HashAggKernel, 0, len(primitiveTypes))
	for _, ty := range primitiveTypes {
		kernels = append(kernels, newHashAggKernel(ty, quiver.PrimitiveTypes.Int64, groupedCountInit))
	}
	return kernels
}
