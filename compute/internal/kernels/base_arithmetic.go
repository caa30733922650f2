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
	"math"
	"math/bits"

	"github.com/JohnCGriffin/overflow"
	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/debug"
	"golang.org/x/exp/constraints"
)

type ArithmeticOp int8

const (
	// wrapping variants, the results of overflow wrap around
	OpAdd ArithmeticOp = iota
	OpSub
	OpMul
	OpDiv
	OpNegate
	OpAbsoluteValue

	// checked variants fail with ErrOverflow instead of wrapping
	OpAddChecked
	OpSubChecked
	OpMulChecked
	OpDivChecked
	OpNegateChecked
	OpAbsoluteValueChecked
)

// loopsFromOp builds the three broadcast loop shapes from a single
// element-wise operation.
func loopsFromOp[T exec.FixedWidthTypes](op func(a, b T, e *error) T) binaryOps[T, T, T] {
	return binaryOps[T, T, T]{
		arrArr: func(_ *exec.KernelCtx, left, right, out []T) error {
			var err error
			for i := range out {
				out[i] = op(left[i], right[i], &err)
			}
			return err
		},
		arrScalar: func(_ *exec.KernelCtx, left []T, right T, out []T) error {
			var err error
			for i := range out {
				out[i] = op(left[i], right, &err)
			}
			return err
		},
		scalarArr: func(_ *exec.KernelCtx, left T, right, out []T) error {
			var err error
			for i := range out {
				out[i] = op(left, right[i], &err)
			}
			return err
		},
	}
}

// The checked ops for widths below 64 bits promote through the 64-bit
// checked operation and then range check against the narrow type. The
// 64-bit ops themselves fail directly.

func getArithmeticBinaryOpsSigned[T exec.IntTypes](op ArithmeticOp) binaryOps[T, T, T] {
	rangeCheck := func(v int64, e *error) T {
		if v < int64(MinOf[T]()) || v > int64(MaxOf[T]()) {
			*e = quiver.ErrOverflow
		}
		return T(v)
	}

	return loopsFromOp(map[ArithmeticOp]func(a, b T, e *error) T{
		OpAdd: func(a, b T, _ *error) T { return a + b },
		OpSub: func(a, b T, _ *error) T { return a - b },
		OpMul: func(a, b T, _ *error) T { return a * b },
		OpAddChecked: func(a, b T, e *error) T {
			result, ok := overflow.Add64(int64(a), int64(b))
			if !ok {
				*e = quiver.ErrOverflow
				return 0
			}
			return rangeCheck(result, e)
		},
		OpSubChecked: func(a, b T, e *error) T {
			result, ok := overflow.Sub64(int64(a), int64(b))
			if !ok {
				*e = quiver.ErrOverflow
				return 0
			}
			return rangeCheck(result, e)
		},
		OpMulChecked: func(a, b T, e *error) T {
			result, ok := overflow.Mul64(int64(a), int64(b))
			if !ok {
				*e = quiver.ErrOverflow
				return 0
			}
			return rangeCheck(result, e)
		},
	}[op])
}

func getArithmeticBinaryOpsUnsigned[T exec.UintTypes](op ArithmeticOp) binaryOps[T, T, T] {
	rangeCheck := func(v uint64, e *error) T {
		if v > uint64(MaxOf[T]()) {
			*e = quiver.ErrOverflow
		}
		return T(v)
	}

	return loopsFromOp(map[ArithmeticOp]func(a, b T, e *error) T{
		OpAdd: func(a, b T, _ *error) T { return a + b },
		OpSub: func(a, b T, _ *error) T { return a - b },
		OpMul: func(a, b T, _ *error) T { return a * b },
		OpAddChecked: func(a, b T, e *error) T {
			result, carry := bits.Add64(uint64(a), uint64(b), 0)
			if carry != 0 {
				*e = quiver.ErrOverflow
				return 0
			}
			return rangeCheck(result, e)
		},
		OpSubChecked: func(a, b T, e *error) T {
			result, borrow := bits.Sub64(uint64(a), uint64(b), 0)
			if borrow != 0 {
				*e = quiver.ErrOverflow
				return 0
			}
			return rangeCheck(result, e)
		},
		OpMulChecked: func(a, b T, e *error) T {
			hi, lo := bits.Mul64(uint64(a), uint64(b))
			if hi != 0 {
				*e = quiver.ErrOverflow
				return 0
			}
			return rangeCheck(lo, e)
		},
	}[op])
}

func getArithmeticBinaryOpsFloating[T constraints.Float](op ArithmeticOp) binaryOps[T, T, T] {
	return loopsFromOp(map[ArithmeticOp]func(a, b T, e *error) T{
		OpAdd:        func(a, b T, _ *error) T { return a + b },
		OpAddChecked: func(a, b T, _ *error) T { return a + b },
		OpSub:        func(a, b T, _ *error) T { return a - b },
		OpSubChecked: func(a, b T, _ *error) T { return a - b },
		OpMul:        func(a, b T, _ *error) T { return a * b },
		OpMulChecked: func(a, b T, _ *error) T { return a * b },
	}[op])
}

// Division only ever touches valid elements so that a zero divisor in a
// null slot does not fail the call.

func getDivideOpSigned[T exec.IntTypes](op ArithmeticOp) func(*exec.KernelCtx, T, T, *error) T {
	switch op {
	case OpDiv:
		return func(_ *exec.KernelCtx, a, b T, e *error) T {
			if b == 0 {
				*e = quiver.ErrDivideByZero
				return 0
			}
			// MinOf[T] / -1 wraps around, same as the Go quotient
			return a / b
		}
	case OpDivChecked:
		return func(_ *exec.KernelCtx, a, b T, e *error) T {
			if b == 0 {
				*e = quiver.ErrDivideByZero
				return 0
			}
			if a == MinOf[T]() && b == -1 {
				*e = quiver.ErrOverflow
				return 0
			}
			return a / b
		}
	}
	debug.Assert(false, "invalid divide op")
	return nil
}

func getDivideOpUnsigned[T exec.UintTypes](_ ArithmeticOp) func(*exec.KernelCtx, T, T, *error) T {
	return func(_ *exec.KernelCtx, a, b T, e *error) T {
		if b == 0 {
			*e = quiver.ErrDivideByZero
			return 0
		}
		return a / b
	}
}

func getDivideOpFloating[T constraints.Float](_ ArithmeticOp) func(*exec.KernelCtx, T, T, *error) T {
	return func(_ *exec.KernelCtx, a, b T, e *error) T {
		if b == 0 {
			*e = quiver.ErrDivideByZero
			return 0
		}
		return a / b
	}
}

func divideExec(ty quiver.Type, op ArithmeticOp) exec.ArrayKernelExec {
	switch ty {
	case quiver.INT8:
		return ScalarBinaryNotNullEqualTypes(getDivideOpSigned[int8](op))
	case quiver.UINT8:
		return ScalarBinaryNotNullEqualTypes(getDivideOpUnsigned[uint8](op))
	case quiver.INT16:
		return ScalarBinaryNotNullEqualTypes(getDivideOpSigned[int16](op))
	case quiver.UINT16:
		return ScalarBinaryNotNullEqualTypes(getDivideOpUnsigned[uint16](op))
	case quiver.INT32:
		return ScalarBinaryNotNullEqualTypes(getDivideOpSigned[int32](op))
	case quiver.UINT32:
		return ScalarBinaryNotNullEqualTypes(getDivideOpUnsigned[uint32](op))
	case quiver.INT64:
		return ScalarBinaryNotNullEqualTypes(getDivideOpSigned[int64](op))
	case quiver.UINT64:
		return ScalarBinaryNotNullEqualTypes(getDivideOpUnsigned[uint64](op))
	case quiver.FLOAT32:
		return ScalarBinaryNotNullEqualTypes(getDivideOpFloating[float32](op))
	case quiver.FLOAT64:
		return ScalarBinaryNotNullEqualTypes(getDivideOpFloating[float64](op))
	}
	debug.Assert(false, "invalid arithmetic type")
	return nil
}

func ArithmeticExec(ty quiver.Type, op ArithmeticOp) exec.ArrayKernelExec {
	if op == OpDiv || op == OpDivChecked {
		return divideExec(ty, op)
	}

	switch ty {
	case quiver.INT8:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsSigned[int8](op))
	case quiver.UINT8:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsUnsigned[uint8](op))
	case quiver.INT16:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsSigned[int16](op))
	case quiver.UINT16:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsUnsigned[uint16](op))
	case quiver.INT32:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsSigned[int32](op))
	case quiver.UINT32:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsUnsigned[uint32](op))
	case quiver.INT64:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsSigned[int64](op))
	case quiver.UINT64:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsUnsigned[uint64](op))
	case quiver.FLOAT32:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsFloating[float32](op))
	case quiver.FLOAT64:
		return ScalarBinaryEqualTypes(getArithmeticBinaryOpsFloating[float64](op))
	}
	debug.Assert(false, "invalid arithmetic type")
	return nil
}

// The wrapping unary variants run over every slot, invalid ones
// included; the checked ones only visit valid elements.

func getArithmeticUnaryOpSigned[T exec.IntTypes](op ArithmeticOp) func(*exec.KernelCtx, []T, []T) error {
	switch op {
	case OpNegate:
		return func(_ *exec.KernelCtx, in, out []T) error {
			for i, v := range in {
				out[i] = -v
			}
			return nil
		}
	case OpAbsoluteValue:
		return func(_ *exec.KernelCtx, in, out []T) error {
			for i, v := range in {
				if v < 0 {
					v = -v
				}
				out[i] = v
			}
			return nil
		}
	}
	debug.Assert(false, "invalid unary arithmetic op")
	return nil
}

func getArithmeticUnaryNotNullOpSigned[T exec.IntTypes](op ArithmeticOp) func(*exec.KernelCtx, T, *error) T {
	switch op {
	case OpNegateChecked:
		return func(_ *exec.KernelCtx, v T, e *error) T {
			if v == MinOf[T]() {
				*e = quiver.ErrOverflow
				return 0
			}
			return -v
		}
	case OpAbsoluteValueChecked:
		return func(_ *exec.KernelCtx, v T, e *error) T {
			if v == MinOf[T]() {
				*e = quiver.ErrOverflow
				return 0
			}
			if v < 0 {
				return -v
			}
			return v
		}
	}
	debug.Assert(false, "invalid unary arithmetic op")
	return nil
}

func getArithmeticUnaryOpFloating[T constraints.Float](op ArithmeticOp) func(*exec.KernelCtx, []T, []T) error {
	switch op {
	case OpNegate, OpNegateChecked:
		return func(_ *exec.KernelCtx, in, out []T) error {
			for i, v := range in {
				out[i] = -v
			}
			return nil
		}
	case OpAbsoluteValue, OpAbsoluteValueChecked:
		return func(_ *exec.KernelCtx, in, out []T) error {
			for i, v := range in {
				out[i] = T(math.Abs(float64(v)))
			}
			return nil
		}
	}
	debug.Assert(false, "invalid unary arithmetic op")
	return nil
}

func arithmeticUnaryExecSigned[T exec.IntTypes](op ArithmeticOp) exec.ArrayKernelExec {
	switch op {
	case OpNegateChecked, OpAbsoluteValueChecked:
		return ScalarUnaryNotNull(getArithmeticUnaryNotNullOpSigned[T](op))
	}
	return ScalarUnary(getArithmeticUnaryOpSigned[T](op))
}

func ArithmeticUnaryExec(ty quiver.Type, op ArithmeticOp) exec.ArrayKernelExec {
	switch ty {
	case quiver.INT8:
		return arithmeticUnaryExecSigned[int8](op)
	case quiver.INT16:
		return arithmeticUnaryExecSigned[int16](op)
	case quiver.INT32:
		return arithmeticUnaryExecSigned[int32](op)
	case quiver.INT64:
		return arithmeticUnaryExecSigned[int64](op)
	case quiver.FLOAT32:
		return ScalarUnary(getArithmeticUnaryOpFloating[float32](op))
	case quiver.FLOAT64:
		return ScalarUnary(getArithmeticUnaryOpFloating[float64](op))
	}
	debug.Assert(false, "invalid unary arithmetic type")
	return nil
}
