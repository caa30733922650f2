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
	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/compute/exec"
)

// NullToNullExec is a no-op kernel exec for handling all-null inputs,
// the output is already an all-null array.
func NullToNullExec(_ *exec.KernelCtx, _ *exec.ExecSpan, _ *exec.ExecResult) error {
	return nil
}

func NullExecKernel(nargs int) exec.ScalarKernel {
	in := make([]exec.InputType, nargs)
	for i := range in {
		in[i] = exec.NewIDInput(quiver.NULL)
	}
	return exec.NewScalarKernel(in, exec.NewOutputType(quiver.Null), NullToNullExec, nil)
}

func GetArithmeticKernels(op ArithmeticOp) []exec.ScalarKernel {
	kernels := make([]exec.ScalarKernel, 0, len(numericTypes)+1)
	for _, ty := range numericTypes {
		kernels = append(kernels, exec.NewScalarKernel(
			[]exec.InputType{exec.NewExactInput(ty), exec.NewExactInput(ty)},
			exec.NewOutputType(ty), ArithmeticExec(ty.ID(), op), nil))
	}

	return append(kernels, NullExecKernel(2))
}

// GetArithmeticUnaryKernels returns kernels for negate and absolute
// value. Unsigned integers have no unary kernels, negating them is
// not meaningful and their absolute value is the identity.
func GetArithmeticUnaryKernels(op ArithmeticOp) []exec.ScalarKernel {
	tys := make([]quiver.DataType, 0, len(signedIntTypes)+len(floatingTypes))
	tys = append(tys, signedIntTypes...)
	tys = append(tys, floatingTypes...)

	kernels := make([]exec.ScalarKernel, 0, len(tys)+1)
	for _, ty := range tys {
		kernels = append(kernels, exec.NewScalarKernel(
			[]exec.InputType{exec.NewExactInput(ty)},
			exec.NewOutputType(ty), ArithmeticUnaryExec(ty.ID(), op), nil))
	}

	return append(kernels, NullExecKernel(1))
}
