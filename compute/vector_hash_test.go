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
	"strings"
	"testing"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/compute"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// hashTestCtx builds a leak-checked allocator whose final size assertion
// runs after the test body's own deferred releases.
func hashTestCtx(t *testing.T) (context.Context, *memory.CheckedAllocator) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	t.Cleanup(func() { mem.AssertSize(t, 0) })
	return compute.WithAllocator(context.Background(), mem), mem
}

func fromJSON(t require.TestingT, mem memory.Allocator, dt quiver.DataType, data string) quiver.Array {
	arr, _, err := array.FromJSON(mem, dt, strings.NewReader(data))
	require.NoError(t, err)
	return arr
}

func uniqueOf(t *testing.T, ctx context.Context, input quiver.Array, wantType quiver.DataType, wantLen int) quiver.Array {
	result, err := compute.UniqueArray(ctx, input)
	require.NoError(t, err)

	require.Truef(t, quiver.TypeEqual(wantType, result.DataType()),
		"wanted: %s\ngot: %s", wantType, result.DataType())
	require.Equal(t, wantLen, result.Len())
	return result
}

// checkUniqueFixedWidth compares unique results element-wise ignoring
// order, since hash iteration order is not part of the contract.
func checkUniqueFixedWidth[T exec.FixedWidthTypes](t *testing.T, ctx context.Context, input, expected quiver.Array) {
	result := uniqueOf(t, ctx, input, expected.DataType(), expected.Len())
	defer result.Release()

	want := exec.GetValues[T](expected.Data(), 1)
	got := exec.GetValues[T](result.Data(), 1)
	assert.ElementsMatchf(t, got, want, "wanted: %v\ngot: %v", want, got)
}

func checkUniqueVariableWidth(t *testing.T, ctx context.Context, input, expected quiver.Array) {
	result := uniqueOf(t, ctx, input, expected.DataType(), expected.Len())
	defer result.Release()

	rawValues := func(v quiver.Array) [][]byte {
		offsets := exec.GetOffsets(v.Data(), 1)
		data := v.Data().Buffers()[2].Bytes()

		out := make([][]byte, v.Len())
		for i := range out {
			out[i] = data[offsets[i]:offsets[i+1]]
		}
		return out
	}

	assert.ElementsMatch(t, rawValues(expected), rawValues(result))
}

func checkDictionaryUnique(t *testing.T, ctx context.Context, input compute.Datum, expected quiver.Array) {
	out, err := compute.Unique(ctx, input)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, compute.KindArray, out.Kind())
	result := out.(*compute.ArrayDatum).MakeArray()
	defer result.Release()

	require.Truef(t, quiver.TypeEqual(expected.DataType(), result.DataType()),
		"wanted: %s\ngot: %s", expected.DataType(), result.DataType())
	assertArraysEqual(t, expected, result)
}

func checkDictEncode(t *testing.T, ctx context.Context, input, wantIndices, wantDict quiver.Array) {
	dictType := &quiver.DictionaryType{IndexType: quiver.PrimitiveTypes.Int32, ValueType: input.DataType()}
	expected := array.NewDictionaryArray(dictType, wantIndices, wantDict)
	defer expected.Release()

	out, err := compute.DictionaryEncode(ctx, &compute.ArrayDatum{Value: input.Data()})
	require.NoError(t, err)
	defer out.Release()

	result := out.(*compute.ArrayDatum).MakeArray()
	defer result.Release()

	require.Truef(t, quiver.TypeEqual(dictType, result.DataType()),
		"wanted: %s\ngot: %s", dictType, result.DataType())
	assertArraysEqual(t, expected, result)
}

type hashValue interface {
	exec.FixedWidthTypes | bool | string | []byte
}

type valuesAppender[T hashValue] interface {
	AppendValues([]T, []bool)
}

func makeArray[T hashValue](mem memory.Allocator, dt quiver.DataType, values []T, isValid []bool) quiver.Array {
	bldr := array.NewBuilder(mem, dt)
	defer bldr.Release()

	bldr.(valuesAppender[T]).AppendValues(values, isValid)
	return bldr.NewArray()
}

// hashSuiteBase provides each test with a leak-checked allocator and a
// context wired to it.
type hashSuiteBase struct {
	suite.Suite

	mem *memory.CheckedAllocator
	ctx context.Context
}

func (hs *hashSuiteBase) SetupTest() {
	hs.mem = memory.NewCheckedAllocator(memory.DefaultAllocator)
	hs.ctx = compute.WithAllocator(context.Background(), hs.mem)
}

func (hs *hashSuiteBase) TearDownTest() {
	hs.mem.AssertSize(hs.T(), 0)
}

type NumericHashSuite[T exec.FixedWidthTypes] struct {
	hashSuiteBase
	dt quiver.DataType
}

func (ps *NumericHashSuite[T]) SetupSuite() {
	ps.dt = exec.GetDataType[T]()
}

func (ps *NumericHashSuite[T]) getArr(dt quiver.DataType, str string) quiver.Array {
	arr, _, err := array.FromJSON(ps.mem, dt, strings.NewReader(str), array.WithUseNumber())
	ps.Require().NoError(err)
	return arr
}

func (ps *NumericHashSuite[T]) checkUnique(inValues, outValues []T, inValid, outValid []bool) {
	input := makeArray(ps.mem, ps.dt, inValues, inValid)
	defer input.Release()
	expected := makeArray(ps.mem, ps.dt, outValues, outValid)
	defer expected.Release()

	checkUniqueFixedWidth[T](ps.T(), ps.ctx, input, expected)
}

func (ps *NumericHashSuite[T]) TestUnique() {
	ps.Run(ps.dt.String(), func() {
		// the null slot lands where the first null appeared
		ps.checkUnique(
			[]T{2, 1, 2, 1}, []T{2, 0, 1},
			[]bool{true, false, true, true}, []bool{true, false, true})
		ps.checkUnique(
			[]T{2, 1, 3, 1}, []T{0, 3, 1},
			[]bool{false, false, true, true}, []bool{false, true, true})

		arr := ps.getArr(ps.dt, `[1, 2, null, 3, 2, null]`)
		defer arr.Release()
		input := array.NewSlice(arr, 1, 5)
		defer input.Release()

		expected := ps.getArr(ps.dt, `[2, null, 3]`)
		defer expected.Release()

		checkUniqueFixedWidth[T](ps.T(), ps.ctx, input, expected)
	})
}

func (ps *NumericHashSuite[T]) TestDictionaryEncode() {
	ps.Run(ps.dt.String(), func() {
		input := ps.getArr(ps.dt, `[1, 2, null, 3, 2, null]`)
		defer input.Release()
		wantIndices := ps.getArr(quiver.PrimitiveTypes.Int32, `[0, 1, null, 2, 1, null]`)
		defer wantIndices.Release()
		wantDict := ps.getArr(ps.dt, `[1, 2, 3]`)
		defer wantDict.Release()

		checkDictEncode(ps.T(), ps.ctx, input, wantIndices, wantDict)

		ps.Run("sliced", func() {
			sliced := array.NewSlice(input, 1, 5)
			defer sliced.Release()
			slicedIndices := ps.getArr(quiver.PrimitiveTypes.Int32, `[0, null, 1, 0]`)
			defer slicedIndices.Release()
			slicedDict := ps.getArr(ps.dt, `[2, 3]`)
			defer slicedDict.Release()

			checkDictEncode(ps.T(), ps.ctx, sliced, slicedIndices, slicedDict)
		})

		ps.Run("empty", func() {
			empty := ps.getArr(ps.dt, `[]`)
			defer empty.Release()
			emptyIndices := ps.getArr(quiver.PrimitiveTypes.Int32, `[]`)
			defer emptyIndices.Release()
			emptyDict := ps.getArr(ps.dt, `[]`)
			defer emptyDict.Release()

			checkDictEncode(ps.T(), ps.ctx, empty, emptyIndices, emptyDict)
		})
	})
}

type VarWidthHashSuite[T string | []byte] struct {
	hashSuiteBase
	dt quiver.DataType
}

func (bs *VarWidthHashSuite[T]) TestUnique() {
	bs.Run(bs.dt.String(), func() {
		input := makeArray(bs.mem, bs.dt,
			[]T{T("test"), T(""), T("test2"), T("test")}, []bool{true, false, true, true})
		defer input.Release()
		expected := makeArray(bs.mem, bs.dt,
			[]T{T("test"), T(""), T("test2")}, []bool{true, false, true})
		defer expected.Release()

		checkUniqueVariableWidth(bs.T(), bs.ctx, input, expected)
	})
}

func (bs *VarWidthHashSuite[T]) TestDictionaryEncode() {
	bs.Run(bs.dt.String(), func() {
		input := makeArray(bs.mem, bs.dt,
			[]T{T("abc"), T(""), T("abc"), T("def")}, []bool{true, false, true, true})
		defer input.Release()

		wantIndices := fromJSON(bs.T(), bs.mem, quiver.PrimitiveTypes.Int32, `[0, null, 0, 1]`)
		defer wantIndices.Release()
		wantDict := makeArray(bs.mem, bs.dt, []T{T("abc"), T("def")}, nil)
		defer wantDict.Release()

		checkDictEncode(bs.T(), bs.ctx, input, wantIndices, wantDict)
	})
}

func TestHashKernels(t *testing.T) {
	suite.Run(t, &NumericHashSuite[int8]{})
	suite.Run(t, &NumericHashSuite[uint8]{})
	suite.Run(t, &NumericHashSuite[int16]{})
	suite.Run(t, &NumericHashSuite[uint16]{})
	suite.Run(t, &NumericHashSuite[int32]{})
	suite.Run(t, &NumericHashSuite[uint32]{})
	suite.Run(t, &NumericHashSuite[int64]{})
	suite.Run(t, &NumericHashSuite[uint64]{})
	suite.Run(t, &NumericHashSuite[float32]{})
	suite.Run(t, &NumericHashSuite[float64]{})

	suite.Run(t, &VarWidthHashSuite[string]{dt: quiver.BinaryTypes.String})
	suite.Run(t, &VarWidthHashSuite[[]byte]{dt: quiver.BinaryTypes.Binary})
}

func TestUniqueBoolean(t *testing.T) {
	ctx, mem := hashTestCtx(t)
	dt := quiver.FixedWidthTypes.Boolean

	checkBoolUnique := func(in, want quiver.Array) {
		defer in.Release()
		defer want.Release()

		result, err := compute.UniqueArray(ctx, in)
		require.NoError(t, err)
		defer result.Release()
		assertArraysEqual(t, want, result)
	}

	checkBoolUnique(
		makeArray(mem, dt, []bool{true, true, false, true}, []bool{true, false, true, true}),
		makeArray(mem, dt, []bool{true, false, false}, []bool{true, false, true}))

	checkBoolUnique(
		makeArray(mem, dt, []bool{false, false, false}, nil),
		makeArray(mem, dt, []bool{false}, nil))
}

func TestDictionaryEncodeBoolean(t *testing.T) {
	ctx, mem := hashTestCtx(t)
	dt := quiver.FixedWidthTypes.Boolean

	input := makeArray(mem, dt, []bool{true, true, false, true}, []bool{true, false, true, true})
	defer input.Release()

	wantIndices := fromJSON(t, mem, quiver.PrimitiveTypes.Int32, `[0, null, 1, 0]`)
	defer wantIndices.Release()
	wantDict := makeArray(mem, dt, []bool{true, false}, nil)
	defer wantDict.Release()

	checkDictEncode(t, ctx, input, wantIndices, wantDict)
}

func TestUniqueNull(t *testing.T) {
	ctx, _ := hashTestCtx(t)

	for _, n := range []int{3, 0} {
		input := array.NewNull(n)
		defer input.Release()

		wantLen := 0
		if n > 0 {
			wantLen = 1
		}
		expected := array.NewNull(wantLen)
		defer expected.Release()

		result, err := compute.UniqueArray(ctx, input)
		require.NoError(t, err)
		defer result.Release()
		assertArraysEqual(t, expected, result)
	}
}

func TestDictionaryEncodeNull(t *testing.T) {
	ctx, mem := hashTestCtx(t)

	input := array.NewNull(3)
	defer input.Release()

	// every index is masked, the dictionary stays empty
	wantIndices := fromJSON(t, mem, quiver.PrimitiveTypes.Int32, `[null, null, null]`)
	defer wantIndices.Release()
	wantDict := array.NewNull(0)
	defer wantDict.Release()

	checkDictEncode(t, ctx, input, wantIndices, wantDict)
}

func TestDictionaryUnique(t *testing.T) {
	ctx, mem := hashTestCtx(t)

	dict := fromJSON(t, mem, quiver.PrimitiveTypes.Int64, `[10, 20, 30, 40]`)
	defer dict.Release()

	for _, idxType := range integerTypes {
		t.Run("index_type="+idxType.Name(), func(t *testing.T) {
			scope := memory.NewCheckedAllocatorScope(mem)
			defer scope.CheckSize(t)

			dictType := &quiver.DictionaryType{
				IndexType: idxType, ValueType: quiver.PrimitiveTypes.Int64}
			indices := fromJSON(t, mem, idxType, `[3, 0, 0, 0, 1, 1, 3, 0, 1, 3, 0, 1]`)
			defer indices.Release()
			wantIndices := fromJSON(t, mem, idxType, `[3, 0, 1]`)
			defer wantIndices.Release()

			input := array.NewDictionaryArray(dictType, indices, dict)
			defer input.Release()
			wantUniques := array.NewDictionaryArray(dictType, wantIndices, dict)
			defer wantUniques.Release()

			checkDictionaryUnique(t, ctx, &compute.ArrayDatum{Value: input.Data()}, wantUniques)

			t.Run("empty array", func(t *testing.T) {
				scope := memory.NewCheckedAllocatorScope(mem)
				defer scope.CheckSize(t)

				emptyIndices := fromJSON(t, mem, idxType, `[]`)
				defer emptyIndices.Release()

				// the dictionary carries over even when there are no indices
				emptyInput := array.NewDictionaryArray(dictType, emptyIndices, dict)
				defer emptyInput.Release()
				checkDictionaryUnique(t, ctx, &compute.ArrayDatum{Value: emptyInput.Data()}, emptyInput)
			})

			t.Run("encoded nulls", func(t *testing.T) {
				scope := memory.NewCheckedAllocatorScope(mem)
				defer scope.CheckSize(t)

				dictWithNull := fromJSON(t, mem, quiver.PrimitiveTypes.Int64, `[10, null, 30, 40]`)
				defer dictWithNull.Release()

				input := array.NewDictionaryArray(dictType, indices, dictWithNull)
				defer input.Release()
				wantUniques := array.NewDictionaryArray(dictType, wantIndices, dictWithNull)
				defer wantUniques.Release()
				checkDictionaryUnique(t, ctx, &compute.ArrayDatum{Value: input.Data()}, wantUniques)
			})

			t.Run("masked nulls", func(t *testing.T) {
				scope := memory.NewCheckedAllocatorScope(mem)
				defer scope.CheckSize(t)

				nullIndices := fromJSON(t, mem, idxType, `[3, 0, 0, 0, null, null, 3, 0, null, 3, 0, null]`)
				defer nullIndices.Release()
				wantNullIndices := fromJSON(t, mem, idxType, `[3, 0, null]`)
				defer wantNullIndices.Release()

				input := array.NewDictionaryArray(dictType, nullIndices, dict)
				defer input.Release()
				wantUniques := array.NewDictionaryArray(dictType, wantNullIndices, dict)
				defer wantUniques.Release()
				checkDictionaryUnique(t, ctx, &compute.ArrayDatum{Value: input.Data()}, wantUniques)
			})
		})
	}
}

func TestDictionaryEncodeDictionary(t *testing.T) {
	ctx, mem := hashTestCtx(t)

	dictType := &quiver.DictionaryType{
		IndexType: quiver.PrimitiveTypes.Int32, ValueType: quiver.BinaryTypes.String}
	indices := fromJSON(t, mem, quiver.PrimitiveTypes.Int32, `[0, 1, null, 0]`)
	defer indices.Release()
	dict := fromJSON(t, mem, quiver.BinaryTypes.String, `["a", "b"]`)
	defer dict.Release()

	input := array.NewDictionaryArray(dictType, indices, dict)
	defer input.Release()

	// encoding an already encoded array is a no-op
	out, err := compute.DictionaryEncode(ctx, &compute.ArrayDatum{Value: input.Data()})
	require.NoError(t, err)
	defer out.Release()

	result := out.(*compute.ArrayDatum).MakeArray()
	defer result.Release()
	assertArraysEqual(t, input, result)
}

func TestDictionaryDecodeRoundTrip(t *testing.T) {
	ctx, mem := hashTestCtx(t)

	for _, tc := range []struct {
		dt   quiver.DataType
		json string
	}{
		{quiver.PrimitiveTypes.Int32, `[4, null, 4, 7, 9, null, 7]`},
		{quiver.PrimitiveTypes.Float64, `[1.5, 0.25, null, 1.5]`},
		{quiver.BinaryTypes.String, `["b", "a", null, "b", "c"]`},
	} {
		t.Run(tc.dt.String(), func(t *testing.T) {
			input := fromJSON(t, mem, tc.dt, tc.json)
			defer input.Release()

			encoded, err := compute.DictionaryEncode(ctx, &compute.ArrayDatum{Value: input.Data()})
			require.NoError(t, err)
			defer encoded.Release()

			dict := encoded.(*compute.ArrayDatum).MakeArray().(*array.Dictionary)
			defer dict.Release()

			// taking the dictionary values by the encoded indices must
			// reproduce the input, nulls included
			decoded, err := compute.TakeArray(ctx, dict.Dictionary(), dict.Indices())
			require.NoError(t, err)
			defer decoded.Release()

			assertArraysEqual(t, input, decoded)
		})
	}
}
