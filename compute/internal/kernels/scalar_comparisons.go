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
	"bytes"
	"fmt"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/debug"
	"github.com/quiverdata/quiver/scalar"
	"golang.org/x/exp/constraints"
)

type CompareOperator int8

const (
	CmpEQ CompareOperator = iota
	CmpNE
	CmpGT
	CmpGE
	CmpLT
	CmpLE
)

func (c CompareOperator) String() string {
	switch c {
	case CmpEQ:
		return "equal"
	case CmpNE:
		return "not_equal"
	case CmpGT:
		return "greater"
	case CmpGE:
		return "greater_equal"
	case CmpLT:
		return "less"
	case CmpLE:
		return "less_equal"
	}
	return fmt.Sprintf("CompareOperator(%d)", int8(c))
}

func getCmpOp[T constraints.Ordered](op CompareOperator) func(a, b T) bool {
	switch op {
	case CmpEQ:
		return func(a, b T) bool { return a == b }
	case CmpNE:
		return func(a, b T) bool { return a != b }
	case CmpGT:
		return func(a, b T) bool { return a > b }
	case CmpGE:
		return func(a, b T) bool { return a >= b }
	case CmpLT:
		return func(a, b T) bool { return a < b }
	case CmpLE:
		return func(a, b T) bool { return a <= b }
	}
	debug.Assert(false, "invalid compare operator")
	return nil
}

func getCmpBytesOp(op CompareOperator) func(a, b []byte) bool {
	switch op {
	case CmpEQ:
		return func(a, b []byte) bool { return bytes.Equal(a, b) }
	case CmpNE:
		return func(a, b []byte) bool { return !bytes.Equal(a, b) }
	case CmpGT:
		return func(a, b []byte) bool { return bytes.Compare(a, b) > 0 }
	case CmpGE:
		return func(a, b []byte) bool { return bytes.Compare(a, b) >= 0 }
	case CmpLT:
		return func(a, b []byte) bool { return bytes.Compare(a, b) < 0 }
	case CmpLE:
		return func(a, b []byte) bool { return bytes.Compare(a, b) <= 0 }
	}
	debug.Assert(false, "invalid compare operator")
	return nil
}

// compareNumericExec produces a bitmap of comparison results. Slots
// under a null in either input still get a bit written, the propagated
// validity bitmap masks them out.
func compareNumericExec[T exec.NumericTypes](op CompareOperator) exec.ArrayKernelExec {
	cmp := getCmpOp[T](op)
	return func(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
		var (
			left      = &batch.Values[0]
			right     = &batch.Values[1]
			outBitmap = out.Buffers[1].Buf
			outOffset = int(out.Offset)
		)
		switch {
		case left.IsArray() && right.IsArray():
			lv := exec.GetSpanValues[T](&left.Array, 1)
			rv := exec.GetSpanValues[T](&right.Array, 1)
			for i := range lv {
				bitutil.SetBitTo(outBitmap, outOffset+i, cmp(lv[i], rv[i]))
			}
		case left.IsArray():
			lv := exec.GetSpanValues[T](&left.Array, 1)
			rv := UnboxScalar[T](right.Scalar.(scalar.PrimitiveScalar))
			for i := range lv {
				bitutil.SetBitTo(outBitmap, outOffset+i, cmp(lv[i], rv))
			}
		case right.IsArray():
			lv := UnboxScalar[T](left.Scalar.(scalar.PrimitiveScalar))
			rv := exec.GetSpanValues[T](&right.Array, 1)
			for i := range rv {
				bitutil.SetBitTo(outBitmap, outOffset+i, cmp(lv, rv[i]))
			}
		default:
			debug.Assert(false, "comparison with two scalars handled before kernel execution")
			return fmt.Errorf("%w: compare kernel called with two scalars", quiver.ErrInvalid)
		}
		return nil
	}
}

func compareBoolExec(op CompareOperator) exec.ArrayKernelExec {
	cmp := getCmpOp[uint8](op)
	boolBit := func(b bool) uint8 {
		if b {
			return 1
		}
		return 0
	}
	return func(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
		var (
			left      = &batch.Values[0]
			right     = &batch.Values[1]
			outBitmap = out.Buffers[1].Buf
			outOffset = int(out.Offset)
		)
		switch {
		case left.IsArray() && right.IsArray():
			lr := bitutil.NewBitmapReader(left.Array.Buffers[1].Buf, int(left.Array.Offset), int(left.Array.Len))
			rr := bitutil.NewBitmapReader(right.Array.Buffers[1].Buf, int(right.Array.Offset), int(right.Array.Len))
			for i := 0; i < int(batch.Len); i++ {
				bitutil.SetBitTo(outBitmap, outOffset+i, cmp(boolBit(lr.Set()), boolBit(rr.Set())))
				lr.Next()
				rr.Next()
			}
		case left.IsArray():
			lr := bitutil.NewBitmapReader(left.Array.Buffers[1].Buf, int(left.Array.Offset), int(left.Array.Len))
			rv := boolBit(right.Scalar.(*scalar.Boolean).Value)
			for i := 0; i < int(batch.Len); i++ {
				bitutil.SetBitTo(outBitmap, outOffset+i, cmp(boolBit(lr.Set()), rv))
				lr.Next()
			}
		case right.IsArray():
			lv := boolBit(left.Scalar.(*scalar.Boolean).Value)
			rr := bitutil.NewBitmapReader(right.Array.Buffers[1].Buf, int(right.Array.Offset), int(right.Array.Len))
			for i := 0; i < int(batch.Len); i++ {
				bitutil.SetBitTo(outBitmap, outOffset+i, cmp(lv, boolBit(rr.Set())))
				rr.Next()
			}
		default:
			debug.Assert(false, "comparison with two scalars handled before kernel execution")
			return fmt.Errorf("%w: compare kernel called with two scalars", quiver.ErrInvalid)
		}
		return nil
	}
}

func compareBinaryExec(op CompareOperator) exec.ArrayKernelExec {
	cmp := getCmpBytesOp(op)
	return func(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
		var (
			left      = &batch.Values[0]
			right     = &batch.Values[1]
			outBitmap = out.Buffers[1].Buf
			outOffset = int(out.Offset)
		)
		switch {
		case left.IsArray() && right.IsArray():
			liter := exec.NewVarBinaryIter(&left.Array)
			riter := exec.NewVarBinaryIter(&right.Array)
			for i := 0; i < int(batch.Len); i++ {
				bitutil.SetBitTo(outBitmap, outOffset+i, cmp(liter.Next(), riter.Next()))
			}
		case left.IsArray():
			liter := exec.NewVarBinaryIter(&left.Array)
			rv := UnboxBinaryScalar(right.Scalar.(scalar.BinaryScalar))
			for i := 0; i < int(batch.Len); i++ {
				bitutil.SetBitTo(outBitmap, outOffset+i, cmp(liter.Next(), rv))
			}
		case right.IsArray():
			lv := UnboxBinaryScalar(left.Scalar.(scalar.BinaryScalar))
			riter := exec.NewVarBinaryIter(&right.Array)
			for i := 0; i < int(batch.Len); i++ {
				bitutil.SetBitTo(outBitmap, outOffset+i, cmp(lv, riter.Next()))
			}
		default:
			debug.Assert(false, "comparison with two scalars handled before kernel execution")
			return fmt.Errorf("%w: compare kernel called with two scalars", quiver.ErrInvalid)
		}
		return nil
	}
}

func numericCompareExec(ty quiver.Type, op CompareOperator) exec.ArrayKernelExec {
	switch ty {
	case quiver.INT8:
		return compareNumericExec[int8](op)
	case quiver.UINT8:
		return compareNumericExec[uint8](op)
	case quiver.INT16:
		return compareNumericExec[int16](op)
	case quiver.UINT16:
		return compareNumericExec[uint16](op)
	case quiver.INT32:
		return compareNumericExec[int32](op)
	case quiver.UINT32:
		return compareNumericExec[uint32](op)
	case quiver.INT64:
		return compareNumericExec[int64](op)
	case quiver.UINT64:
		return compareNumericExec[uint64](op)
	case quiver.FLOAT32:
		return compareNumericExec[float32](op)
	case quiver.FLOAT64:
		return compareNumericExec[float64](op)
	}
	debug.Assert(false, "invalid comparison type")
	return nil
}

// CompareKernels returns the scalar kernels implementing op for each
// comparable type. All of them produce boolean output with the usual
// intersection null handling.
func CompareKernels(op CompareOperator) []exec.ScalarKernel {
	outType := exec.NewOutputType(quiver.FixedWidthTypes.Boolean)

	kernels := make([]exec.ScalarKernel, 0, len(numericTypes)+len(baseBinaryTypes)+2)
	for _, ty := range numericTypes {
		kernels = append(kernels, exec.NewScalarKernel(
			[]exec.InputType{exec.NewExactInput(ty), exec.NewExactInput(ty)},
			outType, numericCompareExec(ty.ID(), op), nil))
	}

	kernels = append(kernels, exec.NewScalarKernel(
		[]exec.InputType{
			exec.NewExactInput(quiver.FixedWidthTypes.Boolean),
			exec.NewExactInput(quiver.FixedWidthTypes.Boolean)},
		outType, compareBoolExec(op), nil))

	for _, ty := range baseBinaryTypes {
		kernels = append(kernels, exec.NewScalarKernel(
			[]exec.InputType{exec.NewExactInput(ty), exec.NewExactInput(ty)},
			outType, compareBinaryExec(op), nil))
	}

	return append(kernels, NullExecKernel(2))
}
