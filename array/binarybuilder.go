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

package array

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/internal/debug"
	"github.com/quiverdata/quiver/memory"
)

// A BinaryBuilder is used to build a Binary array using the Append methods.
// It serves both variable length binary types, Binary and String, depending
// on the data type it is constructed with.
type BinaryBuilder struct {
	builder

	dtype   quiver.BinaryDataType
	offsets *int32BufferBuilder
	values  *byteBufferBuilder
}

func NewBinaryBuilder(mem memory.Allocator, dtype quiver.BinaryDataType) *BinaryBuilder {
	return &BinaryBuilder{
		builder: builder{refCount: 1, mem: mem},
		dtype:   dtype,
		offsets: newInt32BufferBuilder(mem),
		values:  newByteBufferBuilder(mem),
	}
}

func (b *BinaryBuilder) Type() quiver.DataType { return b.dtype }

// Release decreases the reference count by 1.
// When the reference count goes to zero, the memory is freed.
// Release may be called simultaneously from multiple goroutines.
func (b *BinaryBuilder) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) != 0 {
		return
	}

	if b.nullBitmap != nil {
		b.nullBitmap.Release()
		b.nullBitmap = nil
	}
	if b.offsets != nil {
		b.offsets.Release()
		b.offsets = nil
	}
	if b.values != nil {
		b.values.Release()
		b.values = nil
	}
}

// markOffset records where the next value's bytes begin.
func (b *BinaryBuilder) markOffset() {
	b.offsets.AppendValue(int32(b.values.Len()))
}

// appendSlot adds one element with no bytes, valid or null.
func (b *BinaryBuilder) appendSlot(valid bool) {
	b.Reserve(1)
	b.markOffset()
	b.UnsafeAppendBoolToBitmap(valid)
}

func (b *BinaryBuilder) Append(v []byte) {
	b.Reserve(1)
	b.markOffset()
	b.values.Append(v)
	b.UnsafeAppendBoolToBitmap(true)
}

func (b *BinaryBuilder) AppendString(v string) { b.Append([]byte(v)) }

func (b *BinaryBuilder) AppendNull() { b.appendSlot(false) }

func (b *BinaryBuilder) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.appendSlot(false)
	}
}

func (b *BinaryBuilder) AppendEmptyValue() { b.appendSlot(true) }

func (b *BinaryBuilder) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.appendSlot(true)
	}
}

// appendAll bulk-appends n values fetched through get, with valid marking
// the non-null elements. An empty valid slice means everything is valid.
func (b *BinaryBuilder) appendAll(n int, get func(int) []byte, valid []bool) {
	if len(valid) != 0 && len(valid) != n {
		panic("quiver/array: mismatched value and validity lengths")
	}
	if n == 0 {
		return
	}

	b.Reserve(n)
	for i := 0; i < n; i++ {
		b.markOffset()
		// null slots contribute an empty extent, never their bytes
		if len(valid) == 0 || valid[i] {
			b.values.Append(get(i))
		}
	}
	b.builder.unsafeAppendBoolsToBitmap(valid, n)
}

// AppendValues will append the values in the v slice. The valid slice determines which values
// in v are valid (not null). The valid slice must either be empty or be equal in length to v. If empty,
// all values in v are appended and considered valid.
func (b *BinaryBuilder) AppendValues(v [][]byte, valid []bool) {
	b.appendAll(len(v), func(i int) []byte { return v[i] }, valid)
}

// AppendStringValues will append the values in the v slice. The valid slice determines which values
// in v are valid (not null). The valid slice must either be empty or be equal in length to v. If empty,
// all values in v are appended and considered valid.
func (b *BinaryBuilder) AppendStringValues(v []string, valid []bool) {
	b.appendAll(len(v), func(i int) []byte { return []byte(v[i]) }, valid)
}

// Value returns the byte slice at index i. The slice aliases the builder's
// internal memory and is only valid until the next builder mutation.
func (b *BinaryBuilder) Value(i int) []byte {
	offsets := b.offsets.Values()
	end := b.values.Len()
	if i < b.length-1 {
		end = int(offsets[i+1])
	}
	return b.values.Bytes()[offsets[i]:end]
}

func (b *BinaryBuilder) init(capacity int) {
	b.builder.init(capacity)
	b.offsets.resize((capacity + 1) * quiver.Int32SizeBytes)
}

// DataLen returns the number of bytes in the data array.
func (b *BinaryBuilder) DataLen() int { return b.values.length }

// DataCap returns the total number of bytes that can be stored
// without allocating additional memory.
func (b *BinaryBuilder) DataCap() int { return b.values.capacity }

// Reserve ensures there is enough space for appending n elements
// by checking the capacity and calling Resize if necessary.
func (b *BinaryBuilder) Reserve(n int) {
	b.builder.reserve(n, b.Resize)
}

// ReserveData ensures there is enough space for appending n bytes
// by checking the capacity and resizing the data buffer if necessary.
func (b *BinaryBuilder) ReserveData(n int) {
	if b.values.capacity < b.values.length+n {
		b.values.resize(b.values.Len() + n)
	}
}

// Resize adjusts the space allocated by b to n elements. If n is greater than b.Cap(),
// additional memory will be allocated. If n is smaller, the allocated memory may be reduced.
func (b *BinaryBuilder) Resize(n int) {
	b.offsets.resize((n + 1) * quiver.Int32SizeBytes)
	if n*quiver.Int32SizeBytes < b.offsets.Len() {
		b.offsets.SetLength(n * quiver.Int32SizeBytes)
	}
	b.builder.resize(n, b.init)
}

// ResizeData adjusts the space allocated by b for n bytes. If n is greater than b.DataCap(),
// additional memory will be allocated. If n is smaller, the allocated memory may be reduced.
func (b *BinaryBuilder) ResizeData(n int) {
	b.values.length = n
}

// NewArray creates a Binary array from the memory buffers used by the builder and resets the BinaryBuilder
// so it can be used to build a new array.
func (b *BinaryBuilder) NewArray() quiver.Array {
	return b.NewBinaryArray()
}

// NewBinaryArray creates a Binary array from the memory buffers used by the builder and resets the BinaryBuilder
// so it can be used to build a new array.
func (b *BinaryBuilder) NewBinaryArray() *Binary {
	data := b.newData()
	defer data.Release()
	return NewBinaryData(data)
}

func (b *BinaryBuilder) newData() *Data {
	// close out the offsets buffer with the final end offset
	b.markOffset()

	offsets, values := b.offsets.Finish(), b.values.Finish()
	data := NewData(b.dtype, b.length, []*memory.Buffer{b.nullBitmap, offsets, values}, nil, b.nulls, 0)
	if offsets != nil {
		offsets.Release()
	}
	if values != nil {
		values.Release()
	}

	b.builder.reset()
	return data
}

func (b *BinaryBuilder) UnmarshalOne(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := t.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return err
		}
		b.Append(decoded)
	case []byte:
		b.Append(v)
	case nil:
		b.AppendNull()
	default:
		return &json.UnmarshalTypeError{
			Value:  fmt.Sprint(t),
			Type:   reflect.TypeOf([]byte{}),
			Offset: dec.InputOffset(),
		}
	}
	return nil
}

func (b *BinaryBuilder) Unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.UnmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

func (b *BinaryBuilder) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("binary builder must unpack from json array, found %s", delim)
	}

	return b.Unmarshal(dec)
}

var _ Builder = (*BinaryBuilder)(nil)
