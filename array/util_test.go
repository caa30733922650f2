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
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/memory"
)

func TestIntegerJSONRoundTrip(t *testing.T) {
	const input = `[0, 1, 2, 3, 4, 5, 6, 7, 8, 9]`

	for _, dt := range []quiver.DataType{
		quiver.PrimitiveTypes.Int8,
		quiver.PrimitiveTypes.Uint8,
		quiver.PrimitiveTypes.Int16,
		quiver.PrimitiveTypes.Uint16,
		quiver.PrimitiveTypes.Int32,
		quiver.PrimitiveTypes.Uint32,
		quiver.PrimitiveTypes.Int64,
		quiver.PrimitiveTypes.Uint64,
	} {
		t.Run(fmt.Sprint(dt), func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			arr, _, err := array.FromJSON(mem, dt, strings.NewReader(input))
			require.NoError(t, err)
			defer arr.Release()

			assert.Equal(t, 10, arr.Len())
			assert.Zero(t, arr.NullN())

			// marshaling the array must reproduce the input
			out, err := json.Marshal(arr)
			require.NoError(t, err)
			assert.JSONEq(t, input, string(out))
		})
	}
}

func TestIntegerJSONErrors(t *testing.T) {
	for _, bad := range []string{"", "[", "0", "{}"} {
		t.Run("input "+bad, func(t *testing.T) {
			_, _, err := array.FromJSON(memory.DefaultAllocator, quiver.PrimitiveTypes.Int32, strings.NewReader(bad))
			assert.Error(t, err)
			if bad == "[" {
				assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
			}
		})
	}
}

func TestStringsJSON(t *testing.T) {
	for _, tc := range []struct {
		json   string
		values []string
		valids []bool
	}{
		{"[]", []string{}, []bool{}},
		{`["", "foo"]`, []string{"", "foo"}, nil},
		{`["", null]`, []string{"", ""}, []bool{true, false}},
		// NUL and other bytes below 0x20 arrive as unicode escapes
		{`["", "some\u0000char"]`, []string{"", "some\x00char"}, nil},
		{`["\u0000\u001f"]`, []string{"\x00\x1f"}, nil},
	} {
		t.Run("json "+tc.json, func(t *testing.T) {
			bldr := array.NewStringBuilder(memory.DefaultAllocator)
			defer bldr.Release()
			bldr.AppendValues(tc.values, tc.valids)

			want := bldr.NewStringArray()
			defer want.Release()

			arr, _, err := array.FromJSON(memory.DefaultAllocator, quiver.BinaryTypes.String, strings.NewReader(tc.json))
			require.NoError(t, err)
			defer arr.Release()

			assert.True(t, array.Equal(want, arr))
		})
	}

	for _, bad := range []string{"[0]", "[[]]"} {
		t.Run("bad input "+bad, func(t *testing.T) {
			_, _, err := array.FromJSON(memory.DefaultAllocator, quiver.BinaryTypes.String, strings.NewReader(bad))
			assert.Error(t, err)
		})
	}
}

func TestFromJSONUseNumber(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	// 2^53+1 cannot round trip through a float64 token
	const big = "9007199254740993"

	arr, _, err := array.FromJSON(mem, quiver.PrimitiveTypes.Int64,
		strings.NewReader("["+big+"]"), array.WithUseNumber())
	require.NoError(t, err)
	defer arr.Release()

	assert.Equal(t, int64(9007199254740993), arr.(*array.Int64).Value(0))
}

func TestFromJSONMultipleArrays(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	input := `[1, 2, 3][4, 5]`

	first, off, err := array.FromJSON(mem, quiver.PrimitiveTypes.Int32, strings.NewReader(input))
	require.NoError(t, err)
	defer first.Release()

	assert.Equal(t, 3, first.Len())

	second, _, err := array.FromJSON(mem, quiver.PrimitiveTypes.Int32,
		strings.NewReader(input), array.WithStartOffset(off))
	require.NoError(t, err)
	defer second.Release()

	assert.Equal(t, 2, second.Len())
	assert.Equal(t, int32(4), second.(*array.Int32).Value(0))
}

func TestBooleanJSONRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	arr, _, err := array.FromJSON(mem, quiver.FixedWidthTypes.Boolean,
		strings.NewReader(`[true, null, false, true]`))
	require.NoError(t, err)
	defer arr.Release()

	assert.Equal(t, 4, arr.Len())
	assert.Equal(t, 1, arr.NullN())

	out, err := json.Marshal(arr)
	require.NoError(t, err)
	assert.JSONEq(t, `[true, null, false, true]`, string(out))
}

func TestFloatJSONNonFinite(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	arr, _, err := array.FromJSON(mem, quiver.PrimitiveTypes.Float64,
		strings.NewReader(`[1.5, "NaN", "+Inf", "-Inf", null]`))
	require.NoError(t, err)
	defer arr.Release()

	out, err := json.Marshal(arr)
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, "NaN", "+Inf", "-Inf", null]`, string(out))
}

func TestBinaryJSONBase64(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	// "Zm9v" is base64 for "foo"
	arr, _, err := array.FromJSON(mem, quiver.BinaryTypes.Binary,
		strings.NewReader(`["Zm9v", null]`))
	require.NoError(t, err)
	defer arr.Release()

	assert.Equal(t, []byte("foo"), arr.(*array.Binary).Value(0))
	assert.True(t, arr.IsNull(1))

	out, err := json.Marshal(arr)
	require.NoError(t, err)
	assert.JSONEq(t, `["Zm9v", null]`, string(out))
}
