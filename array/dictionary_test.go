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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/memory"
)

func TestDictionaryBuilderBasic(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	expectedType := &quiver.DictionaryType{IndexType: quiver.PrimitiveTypes.Int8, ValueType: quiver.PrimitiveTypes.Int64}
	bldr := array.NewDictionaryBuilder(mem, expectedType)
	defer bldr.Release()

	builder := bldr.(*array.Int64DictionaryBuilder)
	assert.NoError(t, builder.Append(1))
	assert.NoError(t, builder.Append(2))
	assert.NoError(t, builder.Append(1))
	builder.AppendNull()

	assert.EqualValues(t, 4, builder.Len())
	assert.EqualValues(t, 1, builder.NullN())

	arr := builder.NewArray().(*array.Dictionary)
	defer arr.Release()

	assert.True(t, quiver.TypeEqual(expectedType, arr.DataType()))
	expectedDict, _, err := array.FromJSON(mem, expectedType.ValueType, strings.NewReader("[1, 2]"))
	assert.NoError(t, err)
	defer expectedDict.Release()

	expectedIndices, _, err := array.FromJSON(mem, expectedType.IndexType, strings.NewReader("[0, 1, 0, null]"))
	assert.NoError(t, err)
	defer expectedIndices.Release()

	expected := array.NewDictionaryArray(expectedType, expectedIndices, expectedDict)
	defer expected.Release()

	assert.True(t, array.Equal(expected, arr))
}

func TestDictionaryBuilderStrings(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dictType := &quiver.DictionaryType{IndexType: quiver.PrimitiveTypes.Int32, ValueType: quiver.BinaryTypes.String}
	bldr := array.NewDictionaryBuilder(mem, dictType)
	defer bldr.Release()

	builder := bldr.(*array.StringDictionaryBuilder)
	assert.NoError(t, builder.Append("test"))
	assert.NoError(t, builder.Append("test2"))
	assert.NoError(t, builder.Append("test"))

	arr := builder.NewDictionaryArray()
	defer arr.Release()

	assert.Equal(t, 3, arr.Len())
	assert.Equal(t, 2, arr.Dictionary().Len())
	assert.Equal(t, 0, arr.GetValueIndex(0))
	assert.Equal(t, 1, arr.GetValueIndex(1))
	assert.Equal(t, 0, arr.GetValueIndex(2))

	dict := arr.Dictionary().(*array.String)
	assert.Equal(t, "test", dict.Value(0))
	assert.Equal(t, "test2", dict.Value(1))
}

func TestDictionaryNewDelta(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dictType := &quiver.DictionaryType{IndexType: quiver.PrimitiveTypes.Int8, ValueType: quiver.BinaryTypes.String}
	bldr := array.NewDictionaryBuilder(mem, dictType)
	defer bldr.Release()

	builder := bldr.(*array.StringDictionaryBuilder)
	require.NoError(t, builder.Append("a"))
	require.NoError(t, builder.Append("b"))

	indices, delta, err := builder.NewDelta()
	require.NoError(t, err)
	defer indices.Release()
	defer delta.Release()

	assert.Equal(t, 2, indices.Len())
	assert.Equal(t, 2, delta.Len())

	// the memo table survives NewDelta, so "b" keeps its index and only
	// new values show up in the next delta.
	require.NoError(t, builder.Append("b"))
	require.NoError(t, builder.Append("c"))

	indices2, delta2, err := builder.NewDelta()
	require.NoError(t, err)
	defer indices2.Release()
	defer delta2.Release()

	assert.Equal(t, 2, indices2.Len())
	assert.Equal(t, 1, delta2.Len())
	assert.Equal(t, "c", delta2.(*array.String).Value(0))

	idx := indices2.(*array.Int8)
	assert.Equal(t, int8(1), idx.Value(0))
	assert.Equal(t, int8(2), idx.Value(1))
}

func TestDictionaryBuilderAppendArray(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	vals, _, err := array.FromJSON(mem, quiver.PrimitiveTypes.Float64, strings.NewReader("[1.5, 2.5, null, 1.5]"))
	require.NoError(t, err)
	defer vals.Release()

	dictType := &quiver.DictionaryType{IndexType: quiver.PrimitiveTypes.Int16, ValueType: quiver.PrimitiveTypes.Float64}
	bldr := array.NewDictionaryBuilder(mem, dictType)
	defer bldr.Release()

	require.NoError(t, bldr.AppendArray(vals))

	arr := bldr.NewDictionaryArray()
	defer arr.Release()

	assert.Equal(t, 4, arr.Len())
	assert.Equal(t, 1, arr.NullN())
	assert.Equal(t, 2, arr.Dictionary().Len())
	assert.True(t, arr.IsNull(2))
	assert.Equal(t, arr.GetValueIndex(0), arr.GetValueIndex(3))
}

func TestDictionaryBuilderAppendIndices(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dictType := &quiver.DictionaryType{IndexType: quiver.PrimitiveTypes.Int32, ValueType: quiver.BinaryTypes.String}
	bldr := array.NewDictionaryBuilder(mem, dictType)
	defer bldr.Release()

	builder := bldr.(*array.StringDictionaryBuilder)
	require.NoError(t, builder.InsertDictValues(stringArrayOf(t, mem, `["alpha", "beta", "gamma"]`)))

	builder.AppendIndices([]int{0, 2, 1, 2}, nil)

	arr := builder.NewDictionaryArray()
	defer arr.Release()

	assert.Equal(t, 4, arr.Len())
	assert.Zero(t, arr.NullN())
	assert.Equal(t, 3, arr.Dictionary().Len())
	assert.Equal(t, 2, arr.GetValueIndex(1))

	dict := arr.Dictionary().(*array.String)
	assert.Equal(t, "gamma", dict.Value(arr.GetValueIndex(3)))
}

func stringArrayOf(t *testing.T, mem memory.Allocator, jsonstr string) *array.String {
	t.Helper()
	arr, _, err := array.FromJSON(mem, quiver.BinaryTypes.String, strings.NewReader(jsonstr))
	require.NoError(t, err)
	t.Cleanup(arr.Release)
	return arr.(*array.String)
}

func TestDictionaryEncode(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	vals, _, err := array.FromJSON(mem, quiver.BinaryTypes.String, strings.NewReader(`["a", "b", "a", null, "c", "a"]`))
	require.NoError(t, err)
	defer vals.Release()

	dict, err := array.DictionaryEncode(mem, vals)
	require.NoError(t, err)
	defer dict.Release()

	assert.Equal(t, 6, dict.Len())
	assert.Equal(t, 1, dict.NullN())
	assert.Equal(t, 3, dict.Dictionary().Len())
	assert.Equal(t, dict.GetValueIndex(0), dict.GetValueIndex(2))
	assert.Equal(t, dict.GetValueIndex(0), dict.GetValueIndex(5))
	assert.True(t, dict.IsNull(3))
}

func TestDictionaryUnmarshalJSON(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dictType := &quiver.DictionaryType{IndexType: quiver.PrimitiveTypes.Int8, ValueType: quiver.PrimitiveTypes.Int32}
	bldr := array.NewDictionaryBuilder(mem, dictType)
	defer bldr.Release()

	require.NoError(t, bldr.UnmarshalJSON([]byte(`[5, 6, 5, null]`)))

	arr := bldr.NewArray().(*array.Dictionary)
	defer arr.Release()

	assert.Equal(t, 4, arr.Len())
	assert.Equal(t, 1, arr.NullN())
	assert.Equal(t, 2, arr.Dictionary().Len())

	indices := arr.Indices().(*array.Int8)
	assert.Equal(t, indices.Value(0), indices.Value(2))
}
