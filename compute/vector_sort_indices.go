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

	"github.com/quiverdata/quiver/compute/internal/kernels"
)

type (
	SortOptions   = kernels.SortOptions
	SortOrder     = kernels.SortOrder
	NullPlacement = kernels.NullPlacement
)

const (
	SortAscending  = kernels.Ascending
	SortDescending = kernels.Descending
	NullsAtStart   = kernels.AtStart
	NullsAtEnd     = kernels.AtEnd
)

// DefaultSortOptions returns sort options for an ascending sort with
// nulls ordered at the end of the output.
func DefaultSortOptions() *SortOptions {
	return &SortOptions{Direction: SortAscending, NullPlacement: NullsAtEnd}
}

var (
	sortIndicesDoc = FunctionDoc{
		Summary:      "Return the indices that would sort an array",
		Description:  "This function computes an array of indices that define a stable sort\nof the input array. By default, null values are considered greater\nthan any other value and are therefore sorted at the end of the\ninput. For floating-point types, NaNs are considered greater than any\nother non-null value, but smaller than null values.",
		ArgNames:     []string{"array"},
		OptionsClass: "SortOptions",
	}
	sortDoc = FunctionDoc{
		Summary:      "Return a sorted copy of an array",
		Description:  "This applies \"sort_indices\" to the input and gathers the values\nthrough \"take\", producing a new array in sorted order.",
		ArgNames:     []string{"array"},
		OptionsClass: "SortOptions",
	}
)

// The "sort" meta-function is built at registration time, not as a
// package-level value: its body reaches back into CallFunction and the
// registry, which would make package initialization cyclic.
func newSortMetaFunc() *MetaFunction {
	fn := NewMetaFunction("sort", Unary(), sortDoc,
		func(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
			indices, err := CallFunction(ctx, "sort_indices", opts, args...)
			if err != nil {
				return nil, err
			}
			defer indices.Release()

			// the indices are a permutation of [0, len), no bounds check needed
			return Take(ctx, TakeOptions{}, args[0], indices)
		})
	fn.defaultOpts = DefaultSortOptions()
	return fn
}

// RegisterVectorSorting registers functions related to vector sorting,
// such as sort_indices.
func RegisterVectorSorting(reg FunctionRegistry) {
	vf := NewVectorFunction("sort_indices", Unary(), sortIndicesDoc)
	vf.defaultOpts = DefaultSortOptions()
	ks := kernels.GetVectorSortingKernels()
	for i := range ks {
		if err := vf.AddKernel(ks[i]); err != nil {
			panic(err)
		}
	}
	if err := reg.AddFunction(vf, false); err != nil {
		panic(err)
	}

	if err := reg.AddFunction(newSortMetaFunc(), false); err != nil {
		panic(err)
	}
}

// SortIndices computes the stable permutation of indices which would
// sort the input according to the options, as a uint64 array Datum.
func SortIndices(ctx context.Context, opts SortOptions, input Datum) (Datum, error) {
	return CallFunction(ctx, "sort_indices", &opts, input)
}
