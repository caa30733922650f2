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
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/compute/internal/kernels"
)

type (
	// FilterOptions determines the handling of nulls in the selection
	// filter: DropNulls excludes the corresponding value, EmitNulls
	// emits a null in its place.
	FilterOptions = kernels.FilterOptions
	// TakeOptions toggles validation of the indices against the length
	// of the values. With BoundsCheck disabled an out of bounds index
	// reads garbage rather than erroring, so only disable it for
	// indices that were produced by the engine itself.
	TakeOptions = kernels.TakeOptions

	NullSelectionBehavior = kernels.NullSelectionBehavior
)

const (
	SelectionDropNulls = kernels.DropNulls
	SelectionEmitNulls = kernels.EmitNulls
)

func DefaultFilterOptions() *FilterOptions { return &FilterOptions{} }

func DefaultTakeOptions() *TakeOptions { return &TakeOptions{BoundsCheck: true} }

var (
	filterDoc = FunctionDoc{
		Summary:      "Filter with a boolean selection filter",
		Description:  "The output is populated with values from the input at positions\nwhere the selection filter is true. Nulls in the selection filter\nare handled based on FilterOptions.",
		ArgNames:     []string{"input", "selection_filter"},
		OptionsClass: "FilterOptions",
	}
	takeDoc = FunctionDoc{
		Summary:      "Select values from an input based on indices from another array",
		Description:  "The output is populated with values from the input at positions\ngiven by \"indices\". Nulls in \"indices\" emit null in the output.",
		ArgNames:     []string{"input", "indices"},
		OptionsClass: "TakeOptions",
	}
)

// newFilterMetaFunc and newTakeMetaFunc are built at registration time,
// not as package-level values: their bodies reach back into CallFunction
// and the registry, which would make package initialization cyclic.
func newFilterMetaFunc() *MetaFunction {
	fn := NewMetaFunction("filter", Binary(), filterDoc,
		func(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
			if args[1].(ArrayLikeDatum).Type().ID() != quiver.BOOL {
				return nil, fmt.Errorf("%w: filter argument must be boolean type",
					quiver.ErrNotImplemented)
			}

			return CallFunction(ctx, "array_filter", opts, args...)
		})
	fn.defaultOpts = DefaultFilterOptions()
	return fn
}

func newTakeMetaFunc() *MetaFunction {
	fn := NewMetaFunction("take", Binary(), takeDoc,
		func(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
			if args[1].Kind() != KindArray {
				return nil, fmt.Errorf("%w: unsupported types for take operation: values=%s, indices=%s",
					quiver.ErrNotImplemented, args[0], args[1])
			}

			return CallFunction(ctx, "array_take", opts, args...)
		})
	fn.defaultOpts = DefaultTakeOptions()
	return fn
}

// callOnArrays wraps two arrays in datums, invokes fn, and unwraps the
// resulting array.
func callOnArrays(ctx context.Context, fn string, opts FunctionOptions, left, right quiver.Array) (quiver.Array, error) {
	l, r := NewDatum(left), NewDatum(right)
	defer l.Release()
	defer r.Release()

	out, err := CallFunction(ctx, fn, opts, l, r)
	if err != nil {
		return nil, err
	}
	defer out.Release()

	return out.(*ArrayDatum).MakeArray(), nil
}

// Take is a wrapper convenience equivalent to calling
// CallFunction(ctx, "array_take", &opts, values, indices).
func Take(ctx context.Context, opts TakeOptions, values, indices Datum) (Datum, error) {
	return CallFunction(ctx, "array_take", &opts, values, indices)
}

// TakeArray is a convenience method for applying "take" to a pair of
// arrays without having to construct the intervening Datum objects.
func TakeArray(ctx context.Context, values, indices quiver.Array) (quiver.Array, error) {
	return callOnArrays(ctx, "array_take", nil, values, indices)
}

// TakeArrayOpts is identical to TakeArray but allows passing TakeOptions.
func TakeArrayOpts(ctx context.Context, values, indices quiver.Array, opts TakeOptions) (quiver.Array, error) {
	return callOnArrays(ctx, "array_take", &opts, values, indices)
}

// Filter is a wrapper convenience that is equivalent to calling
// CallFunction(ctx, "filter", &options, values, filter) for filtering
// an input array (values) by a boolean array (filter). The two inputs
// must be the same length.
func Filter(ctx context.Context, values, filter Datum, options FilterOptions) (Datum, error) {
	return CallFunction(ctx, "filter", &options, values, filter)
}

// FilterArray is a convenience method for calling Filter directly on
// arrays, constructing the intervening Datum objects internally.
func FilterArray(ctx context.Context, values, filter quiver.Array, options FilterOptions) (quiver.Array, error) {
	return callOnArrays(ctx, "filter", &options, values, filter)
}

// selectDictionary selects from a dictionary array by applying sel to its
// indices only; the dictionary itself carries over to the result untouched.
func selectDictionary(batch *exec.ExecSpan, out *exec.ExecResult,
	sel func(indices, selection quiver.Array) (quiver.Array, error)) error {

	dict := batch.Values[0].Array.MakeArray().(*array.Dictionary)
	defer dict.Release()

	selection := batch.Values[1].Array.MakeArray()
	defer selection.Release()

	indices, err := sel(dict.Indices(), selection)
	if err != nil {
		return err
	}
	defer indices.Release()

	result := array.NewDictionaryArray(dict.DataType(), indices, dict.Dictionary())
	defer result.Release()

	out.TakeOwnership(result.Data())
	return nil
}

func dictionaryFilterImpl(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	return selectDictionary(batch, out, func(indices, selection quiver.Array) (quiver.Array, error) {
		return FilterArray(ctx.Ctx, indices, selection, ctx.State.(kernels.FilterState))
	})
}

func dictionaryTakeImpl(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	return selectDictionary(batch, out, func(indices, selection quiver.Array) (quiver.Array, error) {
		return TakeArrayOpts(ctx.Ctx, indices, selection, ctx.State.(kernels.TakeState))
	})
}

func mustAddFunction(reg FunctionRegistry, fn Function) {
	if err := reg.AddFunction(fn, false); err != nil {
		panic(err)
	}
}

// newSelectionFunction assembles a vector function from one kernel per
// value type, all sharing the selection input and base kernel config.
func newSelectionFunction(name string, base exec.VectorKernel, selType exec.InputType,
	kds []kernels.SelectionKernelData) *VectorFunction {

	fn := NewVectorFunction(name, Binary(), EmptyFuncDoc)
	for _, kd := range kds {
		base.Signature = &exec.KernelSignature{
			InputTypes: []exec.InputType{kd.In, selType},
			OutType:    kernels.OutputFirstType,
		}
		base.ExecFn = kd.Exec
		if err := fn.AddKernel(base); err != nil {
			panic(err)
		}
	}
	return fn
}

// RegisterVectorSelection registers functions that select specific
// values from arrays such as Take and Filter
func RegisterVectorSelection(reg FunctionRegistry) {
	mustAddFunction(reg, newFilterMetaFunc())
	mustAddFunction(reg, newTakeMetaFunc())

	filterKernels, takeKernels := kernels.GetVectorSelectionKernels()
	filterKernels = append(filterKernels, kernels.SelectionKernelData{
		In: exec.NewIDInput(quiver.DICTIONARY), Exec: dictionaryFilterImpl})
	takeKernels = append(takeKernels, kernels.SelectionKernelData{
		In: exec.NewIDInput(quiver.DICTIONARY), Exec: dictionaryTakeImpl})

	filterBase := exec.NewVectorKernelWithSig(nil, nil, exec.OptionsInit[kernels.FilterState])
	// the filter is applied element-wise so the executor may chunk the
	// batch, which also enforces that values and filter share a length
	filterBase.CanExecuteChunkWise = true
	filterFn := newSelectionFunction("array_filter", filterBase,
		exec.NewExactInput(quiver.FixedWidthTypes.Boolean), filterKernels)
	filterFn.defaultOpts = DefaultFilterOptions()
	mustAddFunction(reg, filterFn)

	takeBase := exec.NewVectorKernelWithSig(nil, nil, exec.OptionsInit[kernels.TakeState])
	takeFn := newSelectionFunction("array_take", takeBase,
		exec.NewMatchedInput(exec.Integer()), takeKernels)
	takeFn.defaultOpts = DefaultTakeOptions()
	mustAddFunction(reg, takeFn)
}
