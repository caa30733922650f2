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
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/compute/internal/kernels"
)

var (
	uniqueDoc = FunctionDoc{
		Summary:     "Compute unique elements",
		Description: "Return an array with distinct values in order of first appearance.\nA null in the input occupies one null slot in the output.",
		ArgNames:    []string{"array"},
	}
	dictionaryEncodeDoc = FunctionDoc{
		Summary:     "Dictionary-encode array",
		Description: "Return a dictionary-encoded version of the input array. Nulls in the\ninput are kept as nulls in the indices, they never occupy a\ndictionary slot.",
		ArgNames:    []string{"array"},
	}
)

// The distinct values of a dictionary array are the distinct index
// values, the dictionary itself carries over untouched.
func uniqueDictImpl(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	dictArr := batch.Values[0].Array.MakeArray().(*array.Dictionary)
	defer dictArr.Release()

	indices, err := UniqueArray(ctx.Ctx, dictArr.Indices())
	if err != nil {
		return err
	}
	defer indices.Release()

	result := array.NewDictionaryArray(dictArr.DataType(), indices, dictArr.Dictionary())
	defer result.Release()

	out.TakeOwnership(result.Data())
	return nil
}

func dictEncodeDictImpl(_ *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	// already encoded
	data := batch.Values[0].Array.MakeData()
	defer data.Release()
	out.TakeOwnership(data)
	return nil
}

func RegisterVectorHash(reg FunctionRegistry) {
	uniqueKernels, dictEncodeKernels := kernels.GetVectorHashKernels()

	dictIn := []exec.InputType{exec.NewIDInput(quiver.DICTIONARY)}

	uniqueFn := NewVectorFunction("unique", Unary(), uniqueDoc)
	for _, k := range uniqueKernels {
		if err := uniqueFn.AddKernel(k); err != nil {
			panic(err)
		}
	}
	dk := exec.NewVectorKernel(dictIn, kernels.OutputFirstType, uniqueDictImpl, nil)
	dk.CanExecuteChunkWise = false
	if err := uniqueFn.AddKernel(dk); err != nil {
		panic(err)
	}
	if err := reg.AddFunction(uniqueFn, false); err != nil {
		panic(err)
	}

	encodeFn := NewVectorFunction("dictionary_encode", Unary(), dictionaryEncodeDoc)
	for _, k := range dictEncodeKernels {
		if err := encodeFn.AddKernel(k); err != nil {
			panic(err)
		}
	}
	dk = exec.NewVectorKernel(dictIn, kernels.OutputFirstType, dictEncodeDictImpl, nil)
	dk.CanExecuteChunkWise = false
	if err := encodeFn.AddKernel(dk); err != nil {
		panic(err)
	}
	if err := reg.AddFunction(encodeFn, false); err != nil {
		panic(err)
	}
}

// Unique returns an array Datum with the distinct values of the input
// in order of first appearance.
func Unique(ctx context.Context, values Datum) (Datum, error) {
	return CallFunction(ctx, "unique", nil, values)
}

// UniqueArray is a convenience for calling Unique directly on an array.
func UniqueArray(ctx context.Context, values quiver.Array) (quiver.Array, error) {
	v := NewDatum(values)
	defer v.Release()

	out, err := Unique(ctx, v)
	if err != nil {
		return nil, err
	}
	defer out.Release()

	return out.(*ArrayDatum).MakeArray(), nil
}

// DictionaryEncode returns a dictionary-encoded version of the input,
// with indices of type int32 and the distinct values as the dictionary.
// Dictionary input is returned unchanged.
func DictionaryEncode(ctx context.Context, values Datum) (Datum, error) {
	return CallFunction(ctx, "dictionary_encode", nil, values)
}
