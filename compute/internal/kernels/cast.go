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
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/compute/exec"
)

type CastOptions struct {
	ToType             quiver.DataType `compute:"to_type"`
	AllowIntOverflow   bool            `compute:"allow_int_overflow"`
	AllowFloatTruncate bool            `compute:"allow_float_truncate"`
}

func (CastOptions) TypeName() string { return "CastOptions" }

// CastState is the kernel state for casting, which is just the options.
type CastState = CastOptions

// ZeroCopyCastExec aliases the input buffers under the output type.
func ZeroCopyCastExec(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	to := out.Type
	*out = batch.Values[0].Array
	out.Type = to
	return nil
}

// markBuffersOwned flags every populated buffer as self-allocated and
// retains its owner so the span keeps the array's buffers alive.
func markBuffersOwned(span *exec.ArraySpan) {
	for i := range span.Buffers {
		b := &span.Buffers[i]
		if len(b.Buf) == 0 {
			continue
		}
		b.SelfAlloc = true
		if b.Owner != nil {
			b.Owner.Retain()
		}
	}
	for i := range span.Children {
		markBuffersOwned(&span.Children[i])
	}
}

func CastFromNull(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	nulls := array.MakeArrayOfNull(exec.GetAllocator(ctx.Ctx), out.Type, int(batch.Len))
	defer nulls.Release()

	out.SetMembers(nulls.Data())
	markBuffersOwned(out)
	return nil
}

func noPrealloc(k exec.ScalarKernel) exec.ScalarKernel {
	k.NullHandling = exec.NullComputedNoPrealloc
	k.MemAlloc = exec.MemNoPrealloc
	return k
}

func GetZeroCastKernel(_ quiver.Type, inType exec.InputType, out exec.OutputType) exec.ScalarKernel {
	return noPrealloc(exec.NewScalarKernel([]exec.InputType{inType}, out, ZeroCopyCastExec, nil))
}

// GetCommonCastKernels returns the kernels every cast target shares,
// currently just null-to-anything.
func GetCommonCastKernels(outType quiver.DataType) []exec.ScalarKernel {
	fromNull := exec.NewScalarKernel(
		[]exec.InputType{exec.NewExactInput(quiver.Null)},
		exec.NewOutputType(outType), CastFromNull, nil)
	return []exec.ScalarKernel{noPrealloc(fromNull)}
}
