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
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/compute/internal/kernels"
)

func RegisterScalarBoolean(reg FunctionRegistry) {
	binary := []struct {
		funcName string
		ex       exec.ArrayKernelExec
		summary  string
	}{
		{"and", kernels.AndOpExec, "Logical 'and' of two boolean values"},
		{"or", kernels.OrOpExec, "Logical 'or' of two boolean values"},
		{"xor", kernels.XorOpExec, "Logical 'xor' of two boolean values"},
		{"and_not", kernels.AndNotOpExec, "Logical 'and not' of two boolean values"},
	}

	for _, o := range binary {
		doc := FunctionDoc{
			Summary:     o.summary,
			Description: "A null on either side emits a null result.",
			ArgNames:    []string{"x", "y"},
		}
		fn := NewScalarFunction(o.funcName, Binary(), doc)
		if err := fn.AddKernel(kernels.GetBooleanBinaryKernel(o.ex)); err != nil {
			panic(err)
		}
		if err := reg.AddFunction(fn, false); err != nil {
			panic(err)
		}
	}

	kleene := []struct {
		funcName string
		ex       exec.ArrayKernelExec
		summary  string
	}{
		{"and_kleene", kernels.AndKleeneOpExec, "Logical 'and' of two boolean values, Kleene logic"},
		{"or_kleene", kernels.OrKleeneOpExec, "Logical 'or' of two boolean values, Kleene logic"},
		{"and_not_kleene", kernels.AndNotKleeneOpExec, "Logical 'and not' of two boolean values, Kleene logic"},
	}

	for _, o := range kleene {
		doc := FunctionDoc{
			Summary:     o.summary,
			Description: "Nulls are treated as unknown, so a null result only occurs when\nthe known operand does not decide the outcome on its own.",
			ArgNames:    []string{"x", "y"},
		}
		fn := NewScalarFunction(o.funcName, Binary(), doc)
		if err := fn.AddKernel(kernels.GetBooleanKleeneKernel(o.ex)); err != nil {
			panic(err)
		}
		if err := reg.AddFunction(fn, false); err != nil {
			panic(err)
		}
	}

	invertDoc := FunctionDoc{
		Summary:     "Invert boolean values",
		Description: "Nulls stay null.",
		ArgNames:    []string{"x"},
	}
	invert := NewScalarFunction("invert", Unary(), invertDoc)
	if err := invert.AddKernel(kernels.GetBooleanNotKernel()); err != nil {
		panic(err)
	}
	if err := reg.AddFunction(invert, false); err != nil {
		panic(err)
	}
}
