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

package compute_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/compute"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/testing/gen"
	"github.com/quiverdata/quiver/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SortIndicesSuite struct {
	suite.Suite

	mem *memory.CheckedAllocator
	ctx context.Context

	valueType     quiver.DataType
	jsonData      string
	opts          compute.SortOptions
	expectIndices []uint64
}

func (s *SortIndicesSuite) SetupTest() {
	s.mem = memory.NewCheckedAllocator(memory.DefaultAllocator)
	s.ctx = compute.WithAllocator(context.Background(), s.mem)
}

func (s *SortIndicesSuite) TearDownTest() {
	s.mem.AssertSize(s.T(), 0)
}

func (s *SortIndicesSuite) TestSortIndices() {
	input, _, err := array.FromJSON(s.mem, s.valueType, strings.NewReader(s.jsonData), array.WithUseNumber())
	s.Require().NoError(err)
	defer input.Release()
	inputDatum := compute.NewDatum(input)
	defer inputDatum.Release()

	expected := exec.ArrayFromSlice(s.mem, s.expectIndices)
	defer expected.Release()

	result, err := compute.SortIndices(s.ctx, s.opts, inputDatum)
	s.Require().NoError(err)
	defer result.Release()

	actual := result.(*compute.ArrayDatum).MakeArray()
	defer actual.Release()
	assertArraysEqual(s.T(), expected, actual)
}

func TestSortIndicesFunctions(t *testing.T) {
	asc := compute.SortOptions{Direction: compute.SortAscending, NullPlacement: compute.NullsAtEnd}
	ascNullsFirst := compute.SortOptions{Direction: compute.SortAscending, NullPlacement: compute.NullsAtStart}
	desc := compute.SortOptions{Direction: compute.SortDescending, NullPlacement: compute.NullsAtEnd}

	tests := []struct {
		name      string
		data      string
		opts      compute.SortOptions
		expect    []uint64
		valueType quiver.DataType
	}{
		{"simple int32", `[1, 1, 0, -5, -5, -5, 255, 255]`, asc, []uint64{3, 4, 5, 2, 0, 1, 6, 7}, quiver.PrimitiveTypes.Int32},
		{"int32 descending", `[1, 1, 0, -5, -5, -5, 255, 255]`, desc, []uint64{6, 7, 0, 1, 2, 3, 4, 5}, quiver.PrimitiveTypes.Int32},
		{"uint32 with nulls", `[null, 1, 1, null, null, 5]`, asc, []uint64{1, 2, 5, 0, 3, 4}, quiver.PrimitiveTypes.Uint32},
		{"uint32 nulls at start", `[null, 1, 1, null, null, 5]`, ascNullsFirst, []uint64{0, 3, 4, 1, 2, 5}, quiver.PrimitiveTypes.Uint32},
		{"boolean", `[true, true, true, false, false]`, asc, []uint64{3, 4, 0, 1, 2}, quiver.FixedWidthTypes.Boolean},
		{"boolean with nulls desc", `[true, null, false, true]`, desc, []uint64{0, 3, 2, 1}, quiver.FixedWidthTypes.Boolean},
		{"float64 len=1", `[1.0]`, asc, []uint64{0}, quiver.PrimitiveTypes.Float64},
		// NaNs order greater than any valid value but ahead of nulls
		{"float64 nan and null", `[3.5, "NaN", null, 1.0]`, asc, []uint64{3, 0, 1, 2}, quiver.PrimitiveTypes.Float64},
		{"float64 nan and null desc", `[3.5, "NaN", null, 1.0]`, desc, []uint64{0, 3, 1, 2}, quiver.PrimitiveTypes.Float64},
		{"float64 nan nulls at start", `[3.5, "NaN", null, 1.0]`, ascNullsFirst, []uint64{2, 1, 3, 0}, quiver.PrimitiveTypes.Float64},
		{"str", `["foo", "foo", "foo", "bar", "bar", "baz", "bar", "bar", "foo", "foo"]`, asc, []uint64{3, 4, 6, 7, 5, 0, 1, 2, 8, 9}, quiver.BinaryTypes.String},
		{"str with nulls", `["foo", null, "bar"]`, asc, []uint64{2, 0, 1}, quiver.BinaryTypes.String},
		// base64: YWJj -> "abc", YWJh -> "aba"
		{"binary", `["YWJj", "YWJh", null]`, asc, []uint64{1, 0, 2}, quiver.BinaryTypes.Binary},
		{"uint64 boundary", `[18446744073709551615, 0, 9223372036854775808]`, asc, []uint64{1, 2, 0}, quiver.PrimitiveTypes.Uint64},
		{"empty array", `[]`, asc, []uint64{}, quiver.PrimitiveTypes.Float32},
		{"empty str array", `[]`, asc, []uint64{}, quiver.BinaryTypes.String},
		{"all null", `[null, null, null]`, asc, []uint64{0, 1, 2}, quiver.Null},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suite.Run(t, &SortIndicesSuite{
				valueType:     tt.valueType,
				jsonData:      tt.data,
				opts:          tt.opts,
				expectIndices: tt.expect,
			})
		})
	}
}

func TestSortIndicesRandom(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	ctx := compute.WithAllocator(context.Background(), mem)

	rng := gen.NewRandomArrayGenerator(randomSeed, mem)
	for _, nullProb := range []float64{0, 0.1, 0.5} {
		for i := 3; i < 8; i++ {
			length := int64(1 << i)
			t.Run(fmt.Sprintf("len %d nulls %.2f", length, nullProb), func(t *testing.T) {
				arr := rng.Numeric(quiver.INT32, length, -50, 50, nullProb)
				defer arr.Release()
				arrDatum := compute.NewDatum(arr)
				defer arrDatum.Release()

				result, err := compute.SortIndices(ctx, *compute.DefaultSortOptions(), arrDatum)
				require.NoError(t, err)
				defer result.Release()

				indices := result.(*compute.ArrayDatum).MakeArray()
				defer indices.Release()

				// the output must be a permutation of [0, len)
				u64 := indices.(*array.Uint64)
				seen := make([]bool, u64.Len())
				for j := 0; j < u64.Len(); j++ {
					v := u64.Value(j)
					require.Less(t, v, uint64(u64.Len()))
					require.False(t, seen[v])
					seen[v] = true
				}

				sorted, err := compute.TakeArray(ctx, arr, indices)
				require.NoError(t, err)
				defer sorted.Release()

				vals := sorted.(*array.Int32)
				assert.Equal(t, arr.NullN(), vals.NullN())
				seenNull := false
				prev := int32(-51)
				for j := 0; j < vals.Len(); j++ {
					if vals.IsNull(j) {
						seenNull = true
						continue
					}
					assert.False(t, seenNull, "valid value sorted after a null")
					assert.GreaterOrEqual(t, vals.Value(j), prev)
					prev = vals.Value(j)
				}
			})
		}
	}
}

func TestSortAlreadySorted(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	ctx := compute.WithAllocator(context.Background(), mem)

	// a sorted input with a matching null policy sorts to itself
	arr, _, err := array.FromJSON(mem, quiver.PrimitiveTypes.Int32,
		strings.NewReader(`[-5, 0, 3, 3, 9, null, null]`))
	require.NoError(t, err)
	defer arr.Release()

	arrDatum := compute.NewDatum(arr)
	defer arrDatum.Release()

	result, err := compute.SortIndices(ctx, *compute.DefaultSortOptions(), arrDatum)
	require.NoError(t, err)
	defer result.Release()

	indices := result.(*compute.ArrayDatum).MakeArray()
	defer indices.Release()

	sorted, err := compute.TakeArray(ctx, arr, indices)
	require.NoError(t, err)
	defer sorted.Release()

	assertArraysEqual(t, arr, sorted)
}

func TestSortValues(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	ctx := compute.WithAllocator(context.Background(), mem)

	tests := []struct {
		name     string
		dt       quiver.DataType
		data     string
		opts     *compute.SortOptions
		expected string
	}{
		{"int32 default options", quiver.PrimitiveTypes.Int32, `[3, 1, null, 2]`, nil, `[1, 2, 3, null]`},
		{"int32 descending nulls first", quiver.PrimitiveTypes.Int32, `[3, 1, null, 2]`,
			&compute.SortOptions{Direction: compute.SortDescending, NullPlacement: compute.NullsAtStart}, `[null, 3, 2, 1]`},
		{"string", quiver.BinaryTypes.String, `["b", null, "a", "c"]`, nil, `["a", "b", "c", null]`},
		{"boolean", quiver.FixedWidthTypes.Boolean, `[true, false, null, true]`, nil, `[false, true, true, null]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _, err := array.FromJSON(mem, tt.dt, strings.NewReader(tt.data), array.WithUseNumber())
			require.NoError(t, err)
			defer values.Release()
			expected, _, err := array.FromJSON(mem, tt.dt, strings.NewReader(tt.expected), array.WithUseNumber())
			require.NoError(t, err)
			defer expected.Release()

			valDatum := compute.NewDatum(values)
			defer valDatum.Release()

			var opts compute.FunctionOptions
			if tt.opts != nil {
				opts = tt.opts
			}
			out, err := compute.CallFunction(ctx, "sort", opts, valDatum)
			require.NoError(t, err)
			defer out.Release()

			actual := out.(*compute.ArrayDatum).MakeArray()
			defer actual.Release()
			assertArraysEqual(t, expected, actual)
		})
	}
}
