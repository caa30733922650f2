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
	"github.com/quiverdata/quiver/compute/internal/kernels"
)

type (
	// CountOptions configures which elements the "count" and
	// "hash_count" functions tally.
	CountOptions = kernels.CountOptions
	// CountMode selects between counting valid elements, nulls, or
	// every element.
	CountMode = kernels.CountMode
	// MinMaxResult is the pair of extrema computed by MinMax. Both
	// scalars are null when the input had no valid values.
	MinMaxResult = kernels.MinMaxResult
)

const (
	CountOnlyValid = kernels.CountOnlyValid
	CountOnlyNull  = kernels.CountOnlyNull
	CountAll       = kernels.CountAll
)

// DefaultCountOptions counts only the valid (non-null) elements.
func DefaultCountOptions() *CountOptions {
	return &CountOptions{Mode: CountOnlyValid}
}

const groupedAggDesc = "The output has one element per distinct group id, in order of the\ngroups' first appearance. Elements whose group id is null are ignored."

var (
	sumDoc = FunctionDoc{
		Summary: "Compute the sum of a numeric array",
		Description: "Nulls are skipped. Integer inputs sum into the 64-bit integer of\n" +
			"their sign class and floating point inputs into a float64, so an\n" +
			"array with no valid values yields a sum of zero.",
		ArgNames: []string{"array"},
	}
	meanDoc = FunctionDoc{
		Summary: "Compute the mean of a numeric array",
		Description: "Nulls are skipped. The result is a float64 scalar, which is null\n" +
			"when the array has no valid values.",
		ArgNames: []string{"array"},
	}
	minDoc = FunctionDoc{
		Summary: "Compute the minimum of a numeric array",
		Description: "Nulls are skipped and the result keeps the input type. An array\n" +
			"with no valid values yields a null scalar.",
		ArgNames: []string{"array"},
	}
	maxDoc = FunctionDoc{
		Summary: "Compute the maximum of a numeric array",
		Description: "Nulls are skipped and the result keeps the input type. An array\n" +
			"with no valid values yields a null scalar.",
		ArgNames: []string{"array"},
	}
	countDoc = FunctionDoc{
		Summary: "Count the number of null / non-null values",
		Description: "By default only non-null values are counted; CountOptions can\n" +
			"select nulls or all values instead.",
		ArgNames:     []string{"array"},
		OptionsClass: "CountOptions",
	}

	hashSumDoc = FunctionDoc{
		Summary:     "Sum values in each group",
		Description: groupedAggDesc,
		ArgNames:    []string{"array", "group_id_array"},
	}
	hashMeanDoc = FunctionDoc{
		Summary:     "Compute the mean in each group",
		Description: groupedAggDesc,
		ArgNames:    []string{"array", "group_id_array"},
	}
	hashMinDoc = FunctionDoc{
		Summary:     "Compute the minimum in each group",
		Description: groupedAggDesc,
		ArgNames:    []string{"array", "group_id_array"},
	}
	hashMaxDoc = FunctionDoc{
		Summary:     "Compute the maximum in each group",
		Description: groupedAggDesc,
		ArgNames:    []string{"array", "group_id_array"},
	}
	hashCountDoc = FunctionDoc{
		Summary: "Count values in each group",
		Description: "By default only non-null values are counted. The output has one\n" +
			"element per distinct group id, in order of the groups' first\n" +
			"appearance; elements whose group id is null are ignored.",
		ArgNames:     []string{"array", "group_id_array"},
		OptionsClass: "CountOptions",
	}
)

// RegisterScalarAggregates adds the whole-array reductions "sum",
// "mean", "min", "max" and "count" to the registry.
func RegisterScalarAggregates(reg FunctionRegistry) {
	aggs := []struct {
		name string
		doc  FunctionDoc
		ks   []exec.ScalarAggKernel
		opts FunctionOptions
	}{
		{"sum", sumDoc, kernels.GetSumKernels(), nil},
		{"mean", meanDoc, kernels.GetMeanKernels(), nil},
		{"min", minDoc, kernels.GetMinKernels(), nil},
		{"max", maxDoc, kernels.GetMaxKernels(), nil},
		{"count", countDoc, kernels.GetCountKernels(), DefaultCountOptions()},
	}

	for _, a := range aggs {
		fn := NewScalarAggFunction(a.name, Unary(), a.doc)
		if a.opts != nil {
			fn.SetDefaultOptions(a.opts)
		}
		for _, k := range a.ks {
			if err := fn.AddKernel(k); err != nil {
				panic(err)
			}
		}
		if err := reg.AddFunction(fn, false); err != nil {
			panic(err)
		}
	}
}

// RegisterHashAggregates adds the grouped reductions "hash_sum",
// "hash_mean", "hash_min", "hash_max" and "hash_count" to the registry.
// Each takes the value array and a parallel integer array of group ids.
func RegisterHashAggregates(reg FunctionRegistry) {
	aggs := []struct {
		name string
		doc  FunctionDoc
		ks   []exec.HashAggKernel
		opts FunctionOptions
	}{
		{"hash_sum", hashSumDoc, kernels.GetHashSumKernels(), nil},
		{"hash_mean", hashMeanDoc, kernels.GetHashMeanKernels(), nil},
		{"hash_min", hashMinDoc, kernels.GetHashMinKernels(), nil},
		{"hash_max", hashMaxDoc, kernels.GetHashMaxKernels(), nil},
		{"hash_count", hashCountDoc, kernels.GetHashCountKernels(), DefaultCountOptions()},
	}

	for _, a := range aggs {
		fn := NewHashAggFunction(a.name, Binary(), a.doc)
		if a.opts != nil {
			fn.SetDefaultOptions(a.opts)
		}
		for _, k := range a.ks {
			if err := fn.AddKernel(k); err != nil {
				panic(err)
			}
		}
		if err := reg.AddFunction(fn, false); err != nil {
			panic(err)
		}
	}
}

// Sum returns the sum of all valid values in input as an int64, uint64
// or float64 scalar depending on the input's sign class. An input with
// no valid values produces a valid zero.
func Sum(ctx context.Context, input Datum) (Datum, error) {
	return CallFunction(ctx, "sum", nil, input)
}

// Mean returns the arithmetic mean of the valid values in input as a
// float64 scalar, null when there are no valid values.
func Mean(ctx context.Context, input Datum) (Datum, error) {
	return CallFunction(ctx, "mean", nil, input)
}

// Min returns the minimum of the valid values in input as a scalar of
// the input type, null when there are no valid values.
func Min(ctx context.Context, input Datum) (Datum, error) {
	return CallFunction(ctx, "min", nil, input)
}

// Max returns the maximum of the valid values in input as a scalar of
// the input type, null when there are no valid values.
func Max(ctx context.Context, input Datum) (Datum, error) {
	return CallFunction(ctx, "max", nil, input)
}

// Count returns the number of elements of input selected by opts.Mode
// as an int64 scalar.
func Count(ctx context.Context, opts CountOptions, input Datum) (Datum, error) {
	return CallFunction(ctx, "count", &opts, input)
}

// MinMax computes the minimum and maximum of input in a single pass
// over the values, sharing the accumulation done separately by the
// "min" and "max" functions.
func MinMax(ctx context.Context, input Datum) (MinMaxResult, error) {
	var span exec.ArraySpan
	switch v := input.(type) {
	case *ArrayDatum:
		span.SetMembers(v.Value)
	case *ScalarDatum:
		span.FillFromScalar(v.Value)
	default:
		return MinMaxResult{}, fmt.Errorf("%w: min_max accepts only array or scalar inputs, got %s",
			quiver.ErrInvalid, input)
	}
	return kernels.MinMaxOf(&span)
}

// groupedAggregate runs the named hash aggregate function and pairs its
// output with the distinct group ids, which the Grouper reports in
// order of first appearance to match the aggregate's output order.
func groupedAggregate(ctx context.Context, fnName string, opts FunctionOptions, values, groupIDs Datum) (groups, aggs Datum, err error) {
	ids, ok := groupIDs.(*ArrayDatum)
	if !ok {
		return nil, nil, fmt.Errorf("%w: grouped aggregation requires an array of group ids, got %s",
			quiver.ErrInvalid, groupIDs)
	}

	grouper, err := kernels.NewGrouper(exec.GetAllocator(ctx), ids.Type())
	if err != nil {
		return nil, nil, err
	}

	var span exec.ArraySpan
	span.SetMembers(ids.Value)
	if _, err = grouper.Consume(&span); err != nil {
		return nil, nil, err
	}

	uniques, err := grouper.Uniques()
	if err != nil {
		return nil, nil, err
	}
	groups = NewDatum(uniques)
	uniques.Release()

	if aggs, err = CallFunction(ctx, fnName, opts, values, groupIDs); err != nil {
		groups.Release()
		return nil, nil, err
	}
	return groups, aggs, nil
}

// GroupedSum partitions values by the parallel groupIDs array and sums
// each partition, returning the distinct group ids in order of first
// appearance alongside the per-group sums.
func GroupedSum(ctx context.Context, values, groupIDs Datum) (groups, sums Datum, err error) {
	return groupedAggregate(ctx, "hash_sum", nil, values, groupIDs)
}

// GroupedMean partitions values by the parallel groupIDs array and
// averages each partition.
func GroupedMean(ctx context.Context, values, groupIDs Datum) (groups, means Datum, err error) {
	return groupedAggregate(ctx, "hash_mean", nil, values, groupIDs)
}

// GroupedMin partitions values by the parallel groupIDs array and takes
// the minimum of each partition.
func GroupedMin(ctx context.Context, values, groupIDs Datum) (groups, mins Datum, err error) {
	return groupedAggregate(ctx, "hash_min", nil, values, groupIDs)
}

// GroupedMax partitions values by the parallel groupIDs array and takes
// the maximum of each partition.
func GroupedMax(ctx context.Context, values, groupIDs Datum) (groups, maxes Datum, err error) {
	return groupedAggregate(ctx, "hash_max", nil, values, groupIDs)
}

// GroupedCount counts the elements of values selected by opts.Mode in
// each partition.
func GroupedCount(ctx context.Context, opts CountOptions, values, groupIDs Datum) (groups, counts Datum, err error) {
	return groupedAggregate(ctx, "hash_count", &opts, values, groupIDs)
}
