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

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/bitutils"
	"github.com/quiverdata/quiver/scalar"
)

type CountMode int8

const (
	// CountOnlyValid counts only the valid (non-null) elements.
	CountOnlyValid CountMode = iota
	// CountOnlyNull counts only the null elements.
	CountOnlyNull
	// CountAll counts every element regardless of validity.
	CountAll
)

// CountOptions configures which elements the count function tallies.
type CountOptions struct {
	Mode CountMode `compute:"mode"`
}

func (CountOptions) TypeName() string { return "CountOptions" }

// scalarAggState is the kernel state held by every scalar aggregate
// kernel: init creates it, Consume folds spans into it, Merge combines
// the states of parallel executions and Finalize emits the result. A
// merged state is indistinguishable from one which consumed the whole
// input sequentially, so chunk boundaries are unobservable.
type scalarAggState interface {
	Consume(ctx *exec.KernelCtx, batch *exec.ExecSpan) error
	Merge(other exec.KernelState) error
	Finalize(ctx *exec.KernelCtx) (scalar.Scalar, error)
}

func aggConsume(ctx *exec.KernelCtx, batch *exec.ExecSpan) error {
	state, ok := ctx.State.(scalarAggState)
	if !ok {
		return fmt.Errorf("%w: bad initialization of aggregate state", quiver.ErrInvalid)
	}
	return state.Consume(ctx, batch)
}

func aggMerge(ctx *exec.KernelCtx, other exec.KernelState) error {
	state, ok := ctx.State.(scalarAggState)
	if !ok {
		return fmt.Errorf("%w: bad initialization of aggregate state", quiver.ErrInvalid)
	}
	return state.Merge(other)
}

func aggFinalize(ctx *exec.KernelCtx) (scalar.Scalar, error) {
	state, ok := ctx.State.(scalarAggState)
	if !ok {
		return nil, fmt.Errorf("%w: bad initialization of aggregate state", quiver.ErrInvalid)
	}
	return state.Finalize(ctx)
}

// sumState accumulates in AccT, which is int64 for signed inputs,
// uint64 for unsigned inputs and float64 for floating point inputs, so
// narrow inputs cannot overflow the accumulator before the widened
// result does. The sum of zero valid elements is a valid zero.
type sumState[T exec.NumericTypes, AccT int64 | uint64 | float64] struct {
	sum AccT
}

func (s *sumState[T, AccT]) Consume(_ *exec.KernelCtx, batch *exec.ExecSpan) error {
	arr := &batch.Values[0].Array
	values := exec.GetSpanValues[T](arr, 1)
	return bitutils.VisitSetBitRuns(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos, length int64) error {
			for _, v := range values[pos : pos+length] {
				s.sum += AccT(v)
			}
			return nil
		})
}

func (s *sumState[T, AccT]) Merge(other exec.KernelState) error {
	o, ok := other.(*sumState[T, AccT])
	if !ok {
		return fmt.Errorf("%w: mismatched aggregate states for merge", quiver.ErrInvalid)
	}
	s.sum += o.sum
	return nil
}

func (s *sumState[T, AccT]) Finalize(_ *exec.KernelCtx) (scalar.Scalar, error) {
	return scalar.MakeScalar(s.sum), nil
}

func sumInit[T exec.NumericTypes, AccT int64 | uint64 | float64](_ *exec.KernelCtx, _ exec.KernelInitArgs) (exec.KernelState, error) {
	return &sumState[T, AccT]{}, nil
}

// meanState accumulates a float64 sum alongside the valid count. The
// mean of zero valid elements is null.
type meanState[T exec.NumericTypes] struct {
	sum  float64
	seen int64
}

func (s *meanState[T]) Consume(_ *exec.KernelCtx, batch *exec.ExecSpan) error {
	arr := &batch.Values[0].Array
	values := exec.GetSpanValues[T](arr, 1)
	return bitutils.VisitSetBitRuns(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos, length int64) error {
			for _, v := range values[pos : pos+length] {
				s.sum += float64(v)
			}
			s.seen += length
			return nil
		})
}

func (s *meanState[T]) Merge(other exec.KernelState) error {
	o, ok := other.(*meanState[T])
	if !ok {
		return fmt.Errorf("%w: mismatched aggregate states for merge", quiver.ErrInvalid)
	}
	s.sum += o.sum
	s.seen += o.seen
	return nil
}

func (s *meanState[T]) Finalize(_ *exec.KernelCtx) (scalar.Scalar, error) {
	if s.seen == 0 {
		return scalar.MakeNullScalar(quiver.PrimitiveTypes.Float64), nil
	}
	return scalar.NewFloat64Scalar(s.sum / float64(s.seen)), nil
}

func meanInit[T exec.NumericTypes](_ *exec.KernelCtx, _ exec.KernelInitArgs) (exec.KernelState, error) {
	return &meanState[T]{}, nil
}

type minMaxOp int8

const (
	opMin minMaxOp = iota
	opMax
)

// minMaxState tracks the extrema of the valid elements seen so far,
// seeding both from the first valid element so no sentinel values are
// needed. With zero valid elements the result is null.
type minMaxState[T exec.NumericTypes] struct {
	op       minMaxOp
	typ      quiver.DataType
	min, max T
	seen     int64
}

func (s *minMaxState[T]) Consume(_ *exec.KernelCtx, batch *exec.ExecSpan) error {
	arr := &batch.Values[0].Array
	values := exec.GetSpanValues[T](arr, 1)
	return bitutils.VisitSetBitRuns(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos, length int64) error {
			run := values[pos : pos+length]
			if s.seen == 0 {
				s.min, s.max = run[0], run[0]
			}
			for _, v := range run {
				if v < s.min {
					s.min = v
				}
				if v > s.max {
					s.max = v
				}
			}
			s.seen += length
			return nil
		})
}

func (s *minMaxState[T]) Merge(other exec.KernelState) error {
	o, ok := other.(*minMaxState[T])
	if !ok {
		return fmt.Errorf("%w: mismatched aggregate states for merge", quiver.ErrInvalid)
	}
	if o.seen == 0 {
		return nil
	}
	if s.seen == 0 {
		s.min, s.max = o.min, o.max
	} else {
		if o.min < s.min {
			s.min = o.min
		}
		if o.max > s.max {
			s.max = o.max
		}
	}
	s.seen += o.seen
	return nil
}

func (s *minMaxState[T]) Finalize(_ *exec.KernelCtx) (scalar.Scalar, error) {
	if s.seen == 0 {
		return scalar.MakeNullScalar(s.typ), nil
	}
	v := s.min
	if s.op == opMax {
		v = s.max
	}
	return scalar.MakeScalar(v), nil
}

func minMaxInit[T exec.NumericTypes](op minMaxOp, dt quiver.DataType) exec.KernelInitFn {
	return func(_ *exec.KernelCtx, _ exec.KernelInitArgs) (exec.KernelState, error) {
		return &minMaxState[T]{op: op, typ: dt}, nil
	}
}

// countState tallies elements by validity, so it never touches the
// value buffers and works for every type. The count of an empty input
// is a valid zero.
type countState struct {
	mode  CountMode
	count int64
}

func (s *countState) Consume(_ *exec.KernelCtx, batch *exec.ExecSpan) error {
	arr := &batch.Values[0].Array
	switch s.mode {
	case CountOnlyValid:
		s.count += arr.Len - arr.UpdateNullCount()
	case CountOnlyNull:
		s.count += arr.UpdateNullCount()
	case CountAll:
		s.count += arr.Len
	}
	return nil
}

func (s *countState) Merge(other exec.KernelState) error {
	o, ok := other.(*countState)
	if !ok {
		return fmt.Errorf("%w: mismatched aggregate states for merge", quiver.ErrInvalid)
	}
	s.count += o.count
	return nil
}

func (s *countState) Finalize(_ *exec.KernelCtx) (scalar.Scalar, error) {
	return scalar.NewInt64Scalar(s.count), nil
}

func countInit(_ *exec.KernelCtx, args exec.KernelInitArgs) (exec.KernelState, error) {
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
	return &countState{mode: opts.Mode}, nil
}

func newScalarAggKernel(inType, outType quiver.DataType, init exec.KernelInitFn) exec.ScalarAggKernel {
	return exec.NewScalarAggKernel([]exec.InputType{exec.NewExactInput(inType)},
		exec.NewOutputType(outType), init, aggConsume, aggMerge, aggFinalize)
}

// GetSumKernels returns the kernels for the sum function. Integer
// inputs widen to int64 or uint64 and floating point inputs to float64.
func GetSumKernels() []exec.ScalarAggKernel {
	kernels := make([]exec.ScalarAggKernel, 0, len(numericTypes))
	for _, ty := range numericTypes {
		var (
			init exec.KernelInitFn
			out  quiver.DataType
		)
		switch ty.ID() {
		case quiver.INT8:
			init, out = sumInit[int8, int64], quiver.PrimitiveTypes.Int64
		case quiver.INT16:
			init, out = sumInit[int16, int64], quiver.PrimitiveTypes.Int64
		case quiver.INT32:
			init, out = sumInit[int32, int64], quiver.PrimitiveTypes.Int64
		case quiver.INT64:
			init, out = sumInit[int64, int64], quiver.PrimitiveTypes.Int64
		case quiver.UINT8:
			init, out = sumInit[uint8, uint64], quiver.PrimitiveTypes.Uint64
		case quiver.UINT16:
			init, out = sumInit[uint16, uint64], quiver.PrimitiveTypes.Uint64
		case quiver.UINT32:
			init, out = sumInit[uint32, uint64], quiver.PrimitiveTypes.Uint64
		case quiver.UINT64:
			init, out = sumInit[uint64, uint64], quiver.PrimitiveTypes.Uint64
		case quiver.FLOAT32:
			init, out = sumInit[float32, float64], quiver.PrimitiveTypes.Float64
		case quiver.FLOAT64:
			init, out = sumInit[float64, float64], quiver.PrimitiveTypes.Float64
		}
		kernels = append(kernels, newScalarAggKernel(ty, out, init))
	}
	return kernels
}

// GetMeanKernels returns the kernels for the mean function, which
// always produces a float64 result.
func GetMeanKernels() []exec.ScalarAggKernel {
	kernels := make([]exec.ScalarAggKernel, 0, len(numericTypes))
	for _, ty := range numericTypes {
		var init exec.KernelInitFn
		switch ty.ID() {
		case quiver.INT8:
			init = meanInit[int8]
		case quiver.INT16:
			init = meanInit[int16]
		case quiver.INT32:
			init = meanInit[int32]
		case quiver.INT64:
			init = meanInit[int64]
		case quiver.UINT8:
			init = meanInit[uint8]
		case quiver.UINT16:
			init = meanInit[uint16]
		case quiver.UINT32:
			init = meanInit[uint32]
		case quiver.UINT64:
			init = meanInit[uint64]
		case quiver.FLOAT32:
			init = meanInit[float32]
		case quiver.FLOAT64:
			init = meanInit[float64]
		}
		kernels = append(kernels, newScalarAggKernel(ty, quiver.PrimitiveTypes.Float64, init))
	}
	return kernels
}

func getMinMaxKernels(op minMaxOp) []exec.ScalarAggKernel {
	kernels := make([]exec.ScalarAggKernel, 0, len(numericTypes))
	for _, ty := range numericTypes {
		var init exec.KernelInitFn
		switch ty.ID() {
		case quiver.INT8:
			init = minMaxInit[int8](op, ty)
		case quiver.INT16:
			init = minMaxInit[int16](op, ty)
		case quiver.INT32:
			init = minMaxInit[int32](op, ty)
		case quiver.INT64:
			init = minMaxInit[int64](op, ty)
		case quiver.UINT8:
			init = minMaxInit[uint8](op, ty)
		case quiver.UINT16:
			init = minMaxInit[uint16](op, ty)
		case quiver.UINT32:
			init = minMaxInit[uint32](op, ty)
		case quiver.UINT64:
			init = minMaxInit[uint64](op, ty)
		case quiver.FLOAT32:
			init = minMaxInit[float32](op, ty)
		case quiver.FLOAT64:
			init = minMaxInit[float64](op, ty)
		}
		kernels = append(kernels, newScalarAggKernel(ty, ty, init))
	}
	return kernels
}

// GetMinKernels returns the kernels for the min function. The result
// has the input type and is null when no valid elements were consumed.
func GetMinKernels() []exec.ScalarAggKernel { return getMinMaxKernels(opMin) }

// GetMaxKernels returns the kernels for the max function. The result
// has the input type and is null when no valid elements were consumed.
func GetMaxKernels() []exec.ScalarAggKernel { return getMinMaxKernels(opMax) }

// GetCountKernels returns the kernels for the count function, which
// accepts any supported type and produces an int64 count.
func GetCountKernels() []exec.ScalarAggKernel {
	kernels := make([]exec.ScalarAggKernel, 0, len(primitiveTypes))
	for _, ty := range primitiveTypes {
		kernels = append(kernels, newScalarAggKernel(ty, quiver.PrimitiveTypes.Int64, countInit))
	}
	return kernels
}

// MinMaxResult holds both extrema of an input. The scalars are null
// when the input had no valid elements.
type MinMaxResult struct {
	Min, Max scalar.Scalar
}

func minMaxOf[T exec.NumericTypes](batch *exec.ExecSpan, dt quiver.DataType) (MinMaxResult, error) {
	st := minMaxState[T]{typ: dt}
	if err := st.Consume(nil, batch); err != nil {
		return MinMaxResult{}, err
	}
	if st.seen == 0 {
		return MinMaxResult{Min: scalar.MakeNullScalar(dt), Max: scalar.MakeNullScalar(dt)}, nil
	}
	return MinMaxResult{Min: scalar.MakeScalar(st.min), Max: scalar.MakeScalar(st.max)}, nil
}

// MinMaxOf computes both extrema of the values in a single pass,
// sharing the accumulator used by the min and max functions.
func MinMaxOf(values *exec.ArraySpan) (MinMaxResult, error) {
	batch := &exec.ExecSpan{Len: values.Len, Values: []exec.ExecValue{{Array: *values}}}
	switch values.Type.ID() {
	case quiver.INT8:
		return minMaxOf[int8](batch, values.Type)
	case quiver.INT16:
		return minMaxOf[int16](batch, values.Type)
	case quiver.INT32:
		return minMaxOf[int32](batch, values.Type)
	case quiver.INT64:
		return minMaxOf[int64](batch, values.Type)
	case quiver.UINT8:
		return minMaxOf[uint8](batch, values.Type)
	case quiver.UINT16:
		return minMaxOf[uint16](batch, values.Type)
	case quiver.UINT32:
		return minMaxOf[uint32](batch, values.Type)
	case quiver.UINT64:
		return minMaxOf[uint64](batch, values.Type)
	case quiver.FLOAT32:
		return minMaxOf[float32](batch, values.Type)
	case quiver.FLOAT64:
		return minMaxOf[float64](batch, values.Type)
	}
	return MinMaxResult{}, fmt.Errorf("%w: unsupported type for min_max: %s", quiver.ErrNotImplemented, values.Type)
}
