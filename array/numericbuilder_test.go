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

package array_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/memory"
)

// checkNumberBuilderLifecycle appends a fixed sequence with two nulls,
// verifies the resulting array, and confirms the builder resets and can
// be reused afterwards.
func checkNumberBuilderLifecycle[T quiver.FixedWidthType](t *testing.T, bldr *array.NumberBuilder[T]) {
	want := make([]T, 0, 10)
	for _, v := range []int{1, 2, 3, -1, 5, 6, -1, 8, 9, 10} {
		if v < 0 {
			bldr.AppendNull()
			want = append(want, 0)
		} else {
			bldr.Append(T(v))
			want = append(want, T(v))
		}
	}

	require.Equal(t, 10, bldr.Len())
	require.Equal(t, 2, bldr.NullN())

	arr := bldr.NewNumberArray()

	// the builder must come back empty
	assert.Zero(t, bldr.Len())
	assert.Zero(t, bldr.Cap())
	assert.Zero(t, bldr.NullN())

	assert.Equal(t, 2, arr.NullN())
	assert.Equal(t, want, arr.Values())
	// nulls at positions 3 and 6
	assert.Equal(t, []byte{0xb7}, arr.NullBitmapBytes()[:1])
	assert.True(t, arr.IsValid(0))
	assert.False(t, arr.IsValid(3))
	arr.Release()

	// and be usable for the next array
	bldr.Append(7)
	bldr.Append(8)

	arr = bldr.NewNumberArray()
	assert.Zero(t, arr.NullN())
	assert.Equal(t, []T{7, 8}, arr.Values())
	arr.Release()
}

func TestNumberBuilderLifecycle(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	t.Run("float64", func(t *testing.T) {
		bldr := array.NewFloat64Builder(mem)
		defer bldr.Release()
		checkNumberBuilderLifecycle(t, bldr)
	})

	t.Run("int64", func(t *testing.T) {
		bldr := array.NewInt64Builder(mem)
		defer bldr.Release()
		checkNumberBuilderLifecycle(t, bldr)
	})
}

func TestNumberBuilderAppendValues(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewInt64Builder(mem)
	defer bldr.Release()

	values := []int64{0, 1, 2, 3}
	bldr.AppendValues(values, nil)
	arr := bldr.NewNumberArray()
	assert.Equal(t, values, arr.Values())
	arr.Release()

	// empty and nil inputs produce empty arrays
	for _, empty := range [][]int64{{}, nil} {
		bldr.AppendValues(empty, nil)
		arr = bldr.NewNumberArray()
		assert.Zero(t, arr.Len())
		arr.Release()
	}

	bldr.AppendValues(values, []bool{true, false, true, false})
	arr = bldr.NewNumberArray()
	assert.Equal(t, 2, arr.NullN())
	assert.Equal(t, int64(0), arr.Value(0))
	assert.Equal(t, int64(2), arr.Value(2))
	arr.Release()
}

func TestNumberBuilderEmptyFinish(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewFloat64Builder(mem)
	defer bldr.Release()

	values := []float64{1.0, 1.1, 1.2, 1.3}
	bldr.AppendValues(values, nil)
	arr := bldr.NewNumberArray()
	assert.Equal(t, values, arr.Values())
	arr.Release()

	// finishing again right away yields an empty array
	arr = bldr.NewNumberArray()
	assert.Zero(t, arr.Len())
	arr.Release()
}

func TestNumberBuilderResize(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewFloat64Builder(mem)
	defer bldr.Release()

	assert.Zero(t, bldr.Cap())
	assert.Zero(t, bldr.Len())

	// capacity rounds up to the bitmap granularity
	bldr.Reserve(63)
	assert.Equal(t, 64, bldr.Cap())
	assert.Zero(t, bldr.Len())

	for i := 0; i < 63; i++ {
		bldr.Append(0)
	}
	assert.Equal(t, 64, bldr.Cap())
	assert.Equal(t, 63, bldr.Len())

	// shrinking drops elements, growing again does not bring them back
	bldr.Resize(5)
	assert.Equal(t, 5, bldr.Len())

	bldr.Resize(32)
	assert.Equal(t, 5, bldr.Len())
}

func TestNumberBuilderValidityFromBools(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewUint16Builder(mem)
	defer bldr.Release()

	values := []uint16{1, 2, 0, 4}
	bldr.AppendValues(values, []bool{true, true, false, true})

	arr := bldr.NewNumberArray()
	defer arr.Release()

	assert.Equal(t, 4, arr.Len())
	assert.Equal(t, 1, arr.NullN())
	assert.Equal(t, values, arr.Values())
	assert.True(t, arr.IsNull(2))
}

func TestNumberBuilderAppendEmptyValues(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewInt32Builder(mem)
	defer bldr.Release()

	bldr.Append(42)
	bldr.AppendEmptyValue()
	bldr.AppendEmptyValues(2)

	arr := bldr.NewNumberArray()
	defer arr.Release()

	// empty values are valid zeros, not nulls
	assert.Equal(t, 4, arr.Len())
	assert.Zero(t, arr.NullN())
	assert.Equal(t, []int32{42, 0, 0, 0}, arr.Values())
	assert.True(t, arr.IsValid(1))
}

func TestIntBuilderUnmarshalJSON(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewInt64Builder(mem)
	defer bldr.Release()

	// numbers may arrive quoted
	require.NoError(t, bldr.UnmarshalJSON([]byte(`[0, 1, null, -2, "-100"]`)))

	arr := bldr.NewNumberArray()
	defer arr.Release()

	assert.Equal(t, 5, arr.Len())
	assert.Equal(t, 1, arr.NullN())
	assert.Equal(t, int64(-2), arr.Value(3))
	assert.Equal(t, int64(-100), arr.Value(4))
	assert.True(t, arr.IsNull(2))
}

func TestFloatBuilderUnmarshalJSON(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewFloat64Builder(mem)
	defer bldr.Release()

	// non-finite values only have string representations in JSON
	require.NoError(t, bldr.UnmarshalJSON([]byte(`[0, 1.5, null, "NaN", "+Inf", "-Inf"]`)))

	arr := bldr.NewNumberArray()
	defer arr.Release()

	assert.Equal(t, 6, arr.Len())
	assert.Equal(t, 1, arr.NullN())
	assert.Equal(t, 1.5, arr.Value(1))
	assert.True(t, arr.IsNull(2))
	assert.True(t, math.IsNaN(arr.Value(3)))
	assert.True(t, math.IsInf(arr.Value(4), 1))
	assert.True(t, math.IsInf(arr.Value(5), -1))
}

func TestNumberBuilderErrorOnBadJSON(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewInt8Builder(mem)
	defer bldr.Release()

	assert.Error(t, bldr.UnmarshalJSON([]byte(`[true]`)))
	assert.Error(t, bldr.UnmarshalJSON([]byte(`{}`)))
}
