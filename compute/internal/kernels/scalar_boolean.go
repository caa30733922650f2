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
	"github.com/quiverdata/quiver/scalar"
)

func copyBoolBits(arr *exec.ArraySpan, out *exec.ExecResult) {
	bitutil.CopyBitmap(arr.Buffers[1].Buf, int(arr.Offset), int(arr.Len),
		out.Buffers[1].Buf, int(out.Offset))
}

func invertBoolBits(arr *exec.ArraySpan, out *exec.ExecResult) {
	bitutil.InvertBitmap(arr.Buffers[1].Buf, arr.Offset, arr.Len,
		out.Buffers[1].Buf, out.Offset)
}

func fillBoolBits(out *exec.ExecResult, v bool) {
	bitutil.SetBitsTo(out.Buffers[1].Buf, out.Offset, out.Len, v)
}

var errTwoScalars = fmt.Errorf("%w: boolean kernel called with two scalars", quiver.ErrInvalid)

// AndOpExec computes the logical AND of two boolean inputs. Validity
// is handled by the regular intersection propagation, only the value
// bits are computed here.
func AndOpExec(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	left, right := &batch.Values[0], &batch.Values[1]
	switch {
	case left.IsArray() && right.IsArray():
		la, ra := &left.Array, &right.Array
		bitutil.BitmapAnd(la.Buffers[1].Buf, ra.Buffers[1].Buf,
			la.Offset, ra.Offset, out.Buffers[1].Buf, out.Offset, out.Len)
	case left.IsArray():
		andScalar(&left.Array, right.Scalar.(*scalar.Boolean), out)
	case right.IsArray():
		andScalar(&right.Array, left.Scalar.(*scalar.Boolean), out)
	default:
		return errTwoScalars
	}
	return nil
}

func andScalar(arr *exec.ArraySpan, s *scalar.Boolean, out *exec.ExecResult) {
	if !s.IsValid() {
		// output is entirely null via propagation
		return
	}
	if s.Value {
		copyBoolBits(arr, out)
	} else {
		fillBoolBits(out, false)
	}
}

func OrOpExec(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	left, right := &batch.Values[0], &batch.Values[1]
	switch {
	case left.IsArray() && right.IsArray():
		la, ra := &left.Array, &right.Array
		bitutil.BitmapOr(la.Buffers[1].Buf, ra.Buffers[1].Buf,
			la.Offset, ra.Offset, out.Buffers[1].Buf, out.Offset, out.Len)
	case left.IsArray():
		orScalar(&left.Array, right.Scalar.(*scalar.Boolean), out)
	case right.IsArray():
		orScalar(&right.Array, left.Scalar.(*scalar.Boolean), out)
	default:
		return errTwoScalars
	}
	return nil
}

func orScalar(arr *exec.ArraySpan, s *scalar.Boolean, out *exec.ExecResult) {
	if !s.IsValid() {
		return
	}
	if s.Value {
		fillBoolBits(out, true)
	} else {
		copyBoolBits(arr, out)
	}
}

func XorOpExec(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	left, right := &batch.Values[0], &batch.Values[1]
	switch {
	case left.IsArray() && right.IsArray():
		la, ra := &left.Array, &right.Array
		bitutil.BitmapXor(la.Buffers[1].Buf, ra.Buffers[1].Buf,
			la.Offset, ra.Offset, out.Buffers[1].Buf, out.Offset, out.Len)
	case left.IsArray():
		xorScalar(&left.Array, right.Scalar.(*scalar.Boolean), out)
	case right.IsArray():
		xorScalar(&right.Array, left.Scalar.(*scalar.Boolean), out)
	default:
		return errTwoScalars
	}
	return nil
}

func xorScalar(arr *exec.ArraySpan, s *scalar.Boolean, out *exec.ExecResult) {
	if !s.IsValid() {
		return
	}
	if s.Value {
		invertBoolBits(arr, out)
	} else {
		copyBoolBits(arr, out)
	}
}

// AndNotOpExec computes left AND NOT right. Not commutative, so the
// scalar cases are distinct for each side.
func AndNotOpExec(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	left, right := &batch.Values[0], &batch.Values[1]
	switch {
	case left.IsArray() && right.IsArray():
		la, ra := &left.Array, &right.Array
		bitutil.BitmapAndNot(la.Buffers[1].Buf, ra.Buffers[1].Buf,
			la.Offset, ra.Offset, out.Buffers[1].Buf, out.Offset, out.Len)
	case left.IsArray():
		s := right.Scalar.(*scalar.Boolean)
		if !s.IsValid() {
			return nil
		}
		if s.Value {
			fillBoolBits(out, false)
		} else {
			copyBoolBits(&left.Array, out)
		}
	case right.IsArray():
		s := left.Scalar.(*scalar.Boolean)
		if !s.IsValid() {
			return nil
		}
		if s.Value {
			invertBoolBits(&right.Array, out)
		} else {
			fillBoolBits(out, false)
		}
	default:
		return errTwoScalars
	}
	return nil
}

func NotOpExec(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	invertBoolBits(&batch.Values[0].Array, out)
	return nil
}

// booleanBits adapts an array or scalar boolean input to per-slot
// validity and value accessors for the Kleene evaluation loop.
type booleanBits struct {
	valid func(i int) bool
	value func(i int) bool
}

func makeBooleanBits(v *exec.ExecValue) booleanBits {
	if v.IsScalar() {
		s := v.Scalar.(*scalar.Boolean)
		return booleanBits{
			valid: func(int) bool { return s.IsValid() },
			value: func(int) bool { return s.Value },
		}
	}

	var (
		arr      = &v.Array
		validity = arr.Buffers[0].Buf
		values   = arr.Buffers[1].Buf
		offset   = int(arr.Offset)
	)
	return booleanBits{
		valid: func(i int) bool {
			return validity == nil || bitutil.BitIsSet(validity, offset+i)
		},
		value: func(i int) bool { return bitutil.BitIsSet(values, offset+i) },
	}
}

// computeKleene evaluates a Kleene logic operation expressed in terms
// of the "known true" and "known false" states of each side. It writes
// both the validity and the value bitmaps of the output.
func computeKleene(op func(lt, lf, rt, rf bool) (valid, value bool), batch *exec.ExecSpan, out *exec.ExecResult) error {
	if batch.Values[0].IsScalar() && batch.Values[1].IsScalar() {
		return errTwoScalars
	}

	var (
		left      = makeBooleanBits(&batch.Values[0])
		right     = makeBooleanBits(&batch.Values[1])
		validity  = out.Buffers[0].Buf
		values    = out.Buffers[1].Buf
		outOffset = int(out.Offset)
		nulls     int64
	)

	for i := 0; i < int(batch.Len); i++ {
		lv, l := left.valid(i), left.value(i)
		rv, r := right.valid(i), right.value(i)
		valid, value := op(lv && l, lv && !l, rv && r, rv && !r)
		if !valid {
			nulls++
		}
		bitutil.SetBitTo(validity, outOffset+i, valid)
		bitutil.SetBitTo(values, outOffset+i, value)
	}
	out.Nulls = nulls
	return nil
}

// Kleene logic treats null as "unknown": a known false short-circuits
// AND and a known true short-circuits OR regardless of the other side.

func AndKleeneOpExec(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	return computeKleene(func(lt, lf, rt, rf bool) (bool, bool) {
		return lf || rf || (lt && rt), lt && rt
	}, batch, out)
}

func OrKleeneOpExec(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	return computeKleene(func(lt, lf, rt, rf bool) (bool, bool) {
		return lt || rt || (lf && rf), lt || rt
	}, batch, out)
}

func AndNotKleeneOpExec(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	// and_not(l, r) is and_kleene(l, not r), so the right side states swap
	return computeKleene(func(lt, lf, rt, rf bool) (bool, bool) {
		return lf || rt || (lt && rf), lt && rf
	}, batch, out)
}

func makeBooleanKernel(nargs int, ex exec.ArrayKernelExec) exec.ScalarKernel {
	in := make([]exec.InputType, nargs)
	for i := range in {
		in[i] = exec.NewExactInput(quiver.FixedWidthTypes.Boolean)
	}
	return exec.NewScalarKernel(in, exec.NewOutputType(quiver.FixedWidthTypes.Boolean), ex, nil)
}

// GetBooleanBinaryKernel returns the kernel for a regular boolean
// binary op, with null intersection validity handling.
func GetBooleanBinaryKernel(ex exec.ArrayKernelExec) exec.ScalarKernel {
	return makeBooleanKernel(2, ex)
}

// GetBooleanKleeneKernel returns the kernel for a Kleene logic op,
// which computes its own validity bitmap.
func GetBooleanKleeneKernel(ex exec.ArrayKernelExec) exec.ScalarKernel {
	k := makeBooleanKernel(2, ex)
	k.NullHandling = exec.NullComputedPrealloc
	return k
}

func GetBooleanNotKernel() exec.ScalarKernel {
	return makeBooleanKernel(1, NotOpExec)
}
