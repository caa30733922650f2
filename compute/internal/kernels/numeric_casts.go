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
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/bitutils"
	"github.com/quiverdata/quiver/internal/debug"
	"golang.org/x/exp/constraints"
)

func CastIntToInt(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	arg := &batch.Values[0].Array
	if !ctx.State.(CastOptions).AllowIntOverflow {
		if err := intsCanFit(arg, out.Type.ID()); err != nil {
			return err
		}
	}
	castNumberToNumberUnsafe(arg, out)
	return nil
}

func CastFloatingToFloating(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	castNumberToNumberUnsafe(&batch.Values[0].Array, out)
	return nil
}

func CastFloatingToInteger(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	arg := &batch.Values[0].Array
	castNumberToNumberUnsafe(arg, out)
	if !ctx.State.(CastOptions).AllowFloatTruncate {
		return floatTruncCheck(arg, out)
	}
	return nil
}

func CastIntegerToFloating(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	arg := &batch.Values[0].Array
	if !ctx.State.(CastOptions).AllowFloatTruncate {
		if err := intToFloatCheck(arg, out.Type.ID()); err != nil {
			return err
		}
	}
	castNumberToNumberUnsafe(arg, out)
	return nil
}

func boolToNum[T numeric](_ *exec.KernelCtx, in []byte, out []T) error {
	for i := range out {
		out[i] = 0
		if bitutil.BitIsSet(in, i) {
			out[i] = 1
		}
	}
	return nil
}

// ensureFloatsExact reports an error for any valid value whose round trip
// through the already-written integer output changed it.
func ensureFloatsExact[S constraints.Float, D exec.IntTypes | exec.UintTypes](in, out *exec.ArraySpan) error {
	src := exec.GetSpanValues[S](in, 1)
	dst := exec.GetSpanValues[D](out, 1)

	lost := func(i int) bool { return S(dst[i]) != src[i] }

	bitmap := in.Buffers[0].Buf
	valid := func(i int64) bool { return bitutil.BitIsSet(bitmap, int(i)) }

	counter := bitutils.NewOptionalBitBlockCounter(bitmap, in.Offset, in.Len)
	for base := int64(0); base < in.Len; {
		block := counter.NextBlock()

		// cheap scan first, then a second pass to locate the culprit
		suspect := false
		switch {
		case block.AllSet():
			for i := 0; i < int(block.Len); i++ {
				suspect = suspect || lost(i)
			}
		case block.Popcnt > 0:
			for i := 0; i < int(block.Len); i++ {
				suspect = suspect || (valid(base+int64(i)) && lost(i))
			}
		}

		if suspect {
			for i := 0; i < int(block.Len); i++ {
				if lost(i) && (in.Nulls == 0 || valid(base+int64(i))) {
					return fmt.Errorf("%w: float value %f was truncated converting to %s",
						quiver.ErrInvalid, src[i], out.Type)
				}
			}
		}

		src = src[block.Len:]
		dst = dst[block.Len:]
		base += int64(block.Len)
	}
	return nil
}

func floatTruncCheckTo[S constraints.Float](in, out *exec.ArraySpan) error {
	switch out.Type.ID() {
	case quiver.INT8:
		return ensureFloatsExact[S, int8](in, out)
	case quiver.UINT8:
		return ensureFloatsExact[S, uint8](in, out)
	case quiver.INT16:
		return ensureFloatsExact[S, int16](in, out)
	case quiver.UINT16:
		return ensureFloatsExact[S, uint16](in, out)
	case quiver.INT32:
		return ensureFloatsExact[S, int32](in, out)
	case quiver.UINT32:
		return ensureFloatsExact[S, uint32](in, out)
	case quiver.INT64:
		return ensureFloatsExact[S, int64](in, out)
	case quiver.UINT64:
		return ensureFloatsExact[S, uint64](in, out)
	}
	debug.Assert(false, "float truncation check requires integer output")
	return nil
}

func floatTruncCheck(in, out *exec.ArraySpan) error {
	switch in.Type.ID() {
	case quiver.FLOAT32:
		return floatTruncCheckTo[float32](in, out)
	case quiver.FLOAT64:
		return floatTruncCheckTo[float64](in, out)
	}
	debug.Assert(false, "float truncation check requires float input")
	return nil
}

// intToFloatCheck verifies every value is exactly representable in the
// destination float type's integer-exact range.
func intToFloatCheck(in *exec.ArraySpan, outType quiver.Type) error {
	const (
		f32Exact = 1 << 24
		f64Exact = 1 << 53
	)

	switch in.Type.ID() {
	case quiver.INT8, quiver.INT16, quiver.UINT8, quiver.UINT16:
		// always exact in both float32 and float64
		return nil
	case quiver.INT32:
		if outType == quiver.FLOAT64 {
			return nil
		}
		return intsInRange(in, int32(-f32Exact), int32(f32Exact))
	case quiver.UINT32:
		if outType == quiver.FLOAT64 {
			return nil
		}
		return intsInRange(in, uint32(0), uint32(f32Exact))
	case quiver.INT64:
		if outType == quiver.FLOAT32 {
			return intsInRange(in, int64(-f32Exact), int64(f32Exact))
		}
		return intsInRange(in, int64(-f64Exact), int64(f64Exact))
	case quiver.UINT64:
		if outType == quiver.FLOAT32 {
			return intsInRange(in, uint64(0), uint64(f32Exact))
		}
		return intsInRange(in, uint64(0), uint64(f64Exact))
	}
	debug.Assert(false, "exactness check requires integer input")
	return nil
}

// numericCastKernels builds one kernel per numeric input type, routing
// integer and floating inputs to their respective exec functions.
func numericCastKernels(output exec.OutputType, fromInts, fromFloats exec.ArrayKernelExec) []exec.ScalarKernel {
	kernels := make([]exec.ScalarKernel, 0, len(intTypes)+len(floatingTypes))
	for _, in := range intTypes {
		kernels = append(kernels, exec.NewScalarKernel(
			[]exec.InputType{exec.NewExactInput(in)}, output, fromInts, nil))
	}
	for _, in := range floatingTypes {
		kernels = append(kernels, exec.NewScalarKernel(
			[]exec.InputType{exec.NewExactInput(in)}, output, fromFloats, nil))
	}
	return kernels
}

// withCommonCasts appends the shared cast kernels plus a boolean-to-number
// kernel for the destination type.
func withCommonCasts[T numeric](outTy quiver.DataType, kernels []exec.ScalarKernel) []exec.ScalarKernel {
	kernels = append(kernels, GetCommonCastKernels(outTy)...)
	return append(kernels, exec.NewScalarKernel(
		[]exec.InputType{exec.NewExactInput(quiver.FixedWidthTypes.Boolean)},
		exec.NewOutputType(outTy), ScalarUnaryBoolArg[T](boolToNum[T]), nil))
}

func GetCastToInteger[T exec.IntTypes | exec.UintTypes](outType quiver.DataType) []exec.ScalarKernel {
	kernels := numericCastKernels(exec.NewOutputType(outType), CastIntToInt, CastFloatingToInteger)
	return withCommonCasts[T](outType, kernels)
}

func GetCastToFloating[T constraints.Float](outType quiver.DataType) []exec.ScalarKernel {
	kernels := numericCastKernels(exec.NewOutputType(outType), CastIntegerToFloating, CastFloatingToFloating)
	return withCommonCasts[T](outType, kernels)
}
