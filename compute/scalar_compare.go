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

type compareFunction struct {
	ScalarFunction
}

func (fn *compareFunction) Execute(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
	return execInternal(ctx, fn, opts, -1, args...)
}

func (fn *compareFunction) DispatchBest(vals ...quiver.DataType) (exec.Kernel, error) {
	if err := fn.checkArity(len(vals)); err != nil {
		return nil, err
	}

	if kn, err := fn.DispatchExact(vals...); err == nil {
		return kn, nil
	}

	ensureDictionaryDecoded(vals...)
	replaceNullWithOtherType(vals...)

	if dt := commonNumeric(vals...); dt != nil {
		replaceTypes(dt, vals...)
	} else if dt := commonBinary(vals...); dt != nil {
		replaceTypes(dt, vals...)
	}

	return fn.DispatchExact(vals...)
}

func makeCompareFn(name string, op kernels.CompareOperator, doc FunctionDoc) *compareFunction {
	fn := &compareFunction{*NewScalarFunction(name, Binary(), doc)}
	for _, k := range kernels.CompareKernels(op) {
		if err := fn.AddKernel(k); err != nil {
			panic(err)
		}
	}
	return fn
}

func RegisterScalarComparisons(reg FunctionRegistry) {
	ops := []struct {
		funcName string
		op       kernels.CompareOperator
		summary  string
	}{
		{"equal", kernels.CmpEQ, "Compare values for equality (x == y)"},
		{"not_equal", kernels.CmpNE, "Compare values for inequality (x != y)"},
		{"less", kernels.CmpLT, "Compare values for ordered inequality (x < y)"},
		{"less_equal", kernels.CmpLE, "Compare values for ordered inequality (x <= y)"},
		{"greater", kernels.CmpGT, "Compare values for ordered inequality (x > y)"},
		{"greater_equal", kernels.CmpGE, "Compare values for ordered inequality (x >= y)"},
	}

	for _, o := range ops {
		doc := FunctionDoc{
			Summary:     o.summary,
			Description: "A null on either side emits a null comparison result.",
			ArgNames:    []string{"x", "y"},
		}
		if err := reg.AddFunction(makeCompareFn(o.funcName, o.op, doc), false); err != nil {
			panic(err)
		}
	}
}

// Equal compares the values of the arguments for equality, returning a
// boolean Datum. Mixed numeric or mixed binary argument types are
// compared after implicit promotion to their common type.
func Equal(ctx context.Context, left, right Datum) (Datum, error) {
	return CallFunction(ctx, "equal", nil, left, right)
}

// NotEqual compares the values of the arguments for inequality,
// returning a boolean Datum.
func NotEqual(ctx context.Context, left, right Datum) (Datum, error) {
	return CallFunction(ctx, "not_equal", nil, left, right)
}

// Less returns a boolean Datum with whether left is less than right
// element-wise.
func Less(ctx context.Context, left, right Datum) (Datum, error) {
	return CallFunction(ctx, "less", nil, left, right)
}

// LessEqual returns a boolean Datum with whether left is less than or
// equal to right element-wise.
func LessEqual(ctx context.Context, left, right Datum) (Datum, error) {
	return CallFunction(ctx, "less_equal", nil, left, right)
}

// Greater returns a boolean Datum with whether left is greater than
// right element-wise.
func Greater(ctx context.Context, left, right Datum) (Datum, error) {
	return CallFunction(ctx, "greater", nil, left, right)
}

// GreaterEqual returns a boolean Datum with whether left is greater
// than or equal to right element-wise.
func GreaterEqual(ctx context.Context, left, right Datum) (Datum, error) {
	return CallFunction(ctx, "greater_equal", nil, left, right)
}
