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
	"fmt"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/debug"
)

// CallFunction is a one-shot invoker for all types of functions.
//
// It looks up the function by name in the registry carried by the
// ExecCtx on ctx, falling back to the default registry, and executes
// it with the provided options and arguments.
func CallFunction(ctx context.Context, funcName string, opts FunctionOptions, args ...Datum) (Datum, error) {
	reg := GetExecCtx(ctx).Registry
	if reg == nil {
		reg = GetFunctionRegistry()
	}

	fn, ok := reg.GetFunction(funcName)
	if !ok {
		return nil, fmt.Errorf("%w: function '%s' not found", quiver.ErrInvalid, funcName)
	}

	return fn.Execute(ctx, opts, args...)
}

func execInternal(ctx context.Context, fn Function, opts FunctionOptions, passedLen int64, args ...Datum) (result Datum, err error) {
	if opts == nil {
		if err = checkOptions(fn, opts); err != nil {
			return
		}
		opts = fn.DefaultOptions()
	}

	if err = ensureValueDatums(args); err != nil {
		return
	}

	inTypes := make([]quiver.DataType, len(args))
	for i, a := range args {
		inTypes[i] = a.(ArrayLikeDatum).Type()
	}

	var (
		k        exec.Kernel
		executor kernelExecutor
	)

	switch fn.Kind() {
	case FuncScalar:
		executor = &scalarExecutor{}
	case FuncVector:
		executor = &vectorExecutor{}
	case FuncScalarAgg:
		executor = &scalarAggExecutor{}
	case FuncHashAgg:
		executor = &hashAggExecutor{}
	default:
		return nil, fmt.Errorf("%w: direct execution of %s", quiver.ErrNotImplemented, fn.Kind())
	}

	if k, err = fn.DispatchBest(inTypes...); err != nil {
		return
	}

	// DispatchBest mutates inTypes to the resolved common types. Any
	// argument whose type no longer matches is materialized by casting
	// it before the kernel runs.
	var newArgs []Datum
	for i, arg := range args {
		if quiver.TypeEqual(inTypes[i], arg.(ArrayLikeDatum).Type()) {
			continue
		}
		if newArgs == nil {
			newArgs = make([]Datum, len(args))
			copy(newArgs, args)
		}
		if newArgs[i], err = CastDatum(ctx, arg, SafeCastOptions(inTypes[i])); err != nil {
			return nil, err
		}
		defer newArgs[i].Release()
	}
	if newArgs != nil {
		args = newArgs
	}

	if ectx := GetExecCtx(ctx); ectx.Alloc != nil {
		ctx = exec.WithAllocator(ctx, ectx.Alloc)
	}

	kctx := &exec.KernelCtx{Ctx: ctx, Kernel: k}
	init := k.GetInitFn()
	kinitArgs := exec.KernelInitArgs{Kernel: k, Inputs: inTypes, Options: opts}
	if init != nil {
		kctx.State, err = init(kctx, kinitArgs)
		if err != nil {
			return
		}
	}

	if err = executor.Init(kctx, kinitArgs); err != nil {
		return
	}

	batch := ExecBatch{Values: args, Len: 0}
	if batch.NumValues() == 0 {
		if passedLen != -1 {
			batch.Len = passedLen
		}
	} else {
		inferred, allSame := commonBatchLength(batch.Values)
		batch.Len = inferred
		switch fn.Kind() {
		case FuncScalar:
			if passedLen != -1 && passedLen != inferred {
				return nil, fmt.Errorf("%w: passed batch length for execution did not match actual length for scalar fn execution",
					quiver.ErrInvalid)
			}
			if !allSame {
				return nil, fmt.Errorf("%w: arguments to '%s' must all be the same length",
					quiver.ErrLengthMismatch, fn.Name())
			}
		case FuncVector:
			vkernel := k.(*exec.VectorKernel)
			if vkernel.CanExecuteChunkWise {
				if !allSame {
					return nil, fmt.Errorf("%w: arguments to '%s' must all be the same length",
						quiver.ErrLengthMismatch, fn.Name())
				}
			} else {
				// the kernel consumes its arguments whole, e.g. "take"
				// where the indices length is independent of the values
				batch.Len = args[0].Len()
			}
		case FuncScalarAgg, FuncHashAgg:
			if !allSame {
				return nil, fmt.Errorf("%w: arguments to '%s' must all be the same length",
					quiver.ErrLengthMismatch, fn.Name())
			}
		}
	}

	if result, err = executor.Execute(ctx, &batch); err != nil {
		return nil, err
	}

	debug.Assert(executor.CheckResultType(result, fn.Name()) == nil, "invalid result type")
	return result, nil
}
