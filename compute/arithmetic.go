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

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/compute/internal/kernels"
)

// ArithmeticOptions controls the behavior of the arithmetic wrapper
// functions. Overflow checking is on unless NoCheckOverflow is set, in
// which case integer results wrap around.
type ArithmeticOptions struct {
	NoCheckOverflow bool `compute:"check_overflow"`
}

func (ArithmeticOptions) TypeName() string { return "ArithmeticOptions" }

type arithmeticFunction struct {
	ScalarFunction
}

func (fn *arithmeticFunction) Execute(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
	return execInternal(ctx, fn, opts, -1, args...)
}

func (fn *arithmeticFunction) DispatchBest(vals ...quiver.DataType) (exec.Kernel, error) {
	if err := fn.checkArity(len(vals)); err != nil {
		return nil, err
	}

	if kn, err := fn.DispatchExact(vals...); err == nil {
		return kn, nil
	}

	ensureDictionaryDecoded(vals...)

	// only promote types for binary funcs
	if len(vals) == 2 {
		replaceNullWithOtherType(vals...)
		if dt := commonNumeric(vals...); dt != nil {
			replaceTypes(dt, vals...)
		}
	}

	return fn.DispatchExact(vals...)
}

var (
	addDoc = FunctionDoc{
		Summary:     "Add the arguments element-wise",
		Description: "Integer overflow raises an error,\nuse function \"add_unchecked\" if you want wrap-around instead.",
		ArgNames:    []string{"x", "y"},
	}
	subDoc = FunctionDoc{
		Summary:     "Subtract the arguments element-wise",
		Description: "Integer overflow raises an error,\nuse function \"subtract_unchecked\" if you want wrap-around instead.",
		ArgNames:    []string{"x", "y"},
	}
	mulDoc = FunctionDoc{
		Summary:     "Multiply the arguments element-wise",
		Description: "Integer overflow raises an error,\nuse function \"multiply_unchecked\" if you want wrap-around instead.",
		ArgNames:    []string{"x", "y"},
	}
	divDoc = FunctionDoc{
		Summary:     "Divide the arguments element-wise",
		Description: "A zero divisor raises an error in all cases. Integer overflow\nraises an error, use function \"divide_unchecked\" to wrap around.",
		ArgNames:    []string{"dividend", "divisor"},
	}
	negateDoc = FunctionDoc{
		Summary:     "Negate the argument element-wise",
		Description: "Negating the smallest value of a signed integer type raises an\nerror, use function \"negate_unchecked\" if you want wrap-around.",
		ArgNames:    []string{"x"},
	}
	absDoc = FunctionDoc{
		Summary:     "Calculate the absolute value of the argument element-wise",
		Description: "The absolute value of the smallest value of a signed integer type\nraises an error, \"abs_unchecked\" wraps around to the value itself.",
		ArgNames:    []string{"x"},
	}
)

func RegisterScalarArithmetic(reg FunctionRegistry) {
	binaryOps := []struct {
		funcName string
		op       kernels.ArithmeticOp
		doc      FunctionDoc
	}{
		{"add", kernels.OpAddChecked, addDoc},
		{"add_unchecked", kernels.OpAdd, addDoc},
		{"subtract", kernels.OpSubChecked, subDoc},
		{"subtract_unchecked", kernels.OpSub, subDoc},
		{"multiply", kernels.OpMulChecked, mulDoc},
		{"multiply_unchecked", kernels.OpMul, mulDoc},
		{"divide", kernels.OpDivChecked, divDoc},
		{"divide_unchecked", kernels.OpDiv, divDoc},
	}

	for _, o := range binaryOps {
		fn := &arithmeticFunction{*NewScalarFunction(o.funcName, Binary(), o.doc)}
		for _, k := range kernels.GetArithmeticKernels(o.op) {
			if err := fn.AddKernel(k); err != nil {
				panic(err)
			}
		}

		if err := reg.AddFunction(fn, false); err != nil {
			panic(err)
		}
	}

	unaryOps := []struct {
		funcName string
		op       kernels.ArithmeticOp
		doc      FunctionDoc
	}{
		{"negate", kernels.OpNegateChecked, negateDoc},
		{"negate_unchecked", kernels.OpNegate, negateDoc},
		{"abs", kernels.OpAbsoluteValueChecked, absDoc},
		{"abs_unchecked", kernels.OpAbsoluteValue, absDoc},
	}

	for _, o := range unaryOps {
		fn := &arithmeticFunction{*NewScalarFunction(o.funcName, Unary(), o.doc)}
		for _, k := range kernels.GetArithmeticUnaryKernels(o.op) {
			if err := fn.AddKernel(k); err != nil {
				panic(err)
			}
		}

		if err := reg.AddFunction(fn, false); err != nil {
			panic(err)
		}
	}
}

// Add performs an addition between the passed in arguments (scalar or array)
// and returns the result. If one argument is a scalar and the other is an
// array, the scalar value is added to each value of the array.
//
// ArithmeticOptions specifies whether or not to check for overflows,
// performance is faster if not explicitly checking for overflows but
// in that case integer results will wrap around.
func Add(ctx context.Context, opts ArithmeticOptions, left, right Datum) (Datum, error) {
	fn := "add"
	if opts.NoCheckOverflow {
		fn += "_unchecked"
	}
	return CallFunction(ctx, fn, nil, left, right)
}

// Subtract performs a subtraction between the passed in arguments (scalar or
// array) and returns the result. If one argument is a scalar and the other is
// an array, the scalar value is subtracted from each value of the array.
//
// ArithmeticOptions specifies whether or not to check for overflows,
// performance is faster if not explicitly checking for overflows but
// in that case integer results will wrap around.
func Subtract(ctx context.Context, opts ArithmeticOptions, left, right Datum) (Datum, error) {
	fn := "subtract"
	if opts.NoCheckOverflow {
		fn += "_unchecked"
	}
	return CallFunction(ctx, fn, nil, left, right)
}

// Multiply performs a multiplication between the passed in arguments (scalar
// or array) and returns the result. If one argument is a scalar and the other
// is an array, the scalar value is multiplied with each value of the array.
//
// ArithmeticOptions specifies whether or not to check for overflows,
// performance is faster if not explicitly checking for overflows but
// in that case integer results will wrap around.
func Multiply(ctx context.Context, opts ArithmeticOptions, left, right Datum) (Datum, error) {
	fn := "multiply"
	if opts.NoCheckOverflow {
		fn += "_unchecked"
	}
	return CallFunction(ctx, fn, nil, left, right)
}

// Divide performs a division between the passed in arguments (scalar or
// array) and returns the result. A zero divisor produces an error
// regardless of the options.
func Divide(ctx context.Context, opts ArithmeticOptions, left, right Datum) (Datum, error) {
	fn := "divide"
	if opts.NoCheckOverflow {
		fn += "_unchecked"
	}
	return CallFunction(ctx, fn, nil, left, right)
}

// Negate returns the result of the element-wise negation of the input,
// which must be of a signed integer or floating point type.
func Negate(ctx context.Context, opts ArithmeticOptions, input Datum) (Datum, error) {
	fn := "negate"
	if opts.NoCheckOverflow {
		fn += "_unchecked"
	}
	return CallFunction(ctx, fn, nil, input)
}

// AbsoluteValue returns the element-wise absolute value of the input,
// which must be of a signed integer or floating point type.
func AbsoluteValue(ctx context.Context, opts ArithmeticOptions, input Datum) (Datum, error) {
	fn := "abs"
	if opts.NoCheckOverflow {
		fn += "_unchecked"
	}
	return CallFunction(ctx, fn, nil, input)
}
