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
	"fmt"
	"reflect"
	"strconv"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/internal/debug"
	"github.com/quiverdata/quiver/memory"
)

// BooleanBuilder accumulates booleans into a bit-packed values buffer.
type BooleanBuilder struct {
	builder

	data    *memory.Buffer
	rawData []byte
}

func NewBooleanBuilder(mem memory.Allocator) *BooleanBuilder {
	return &BooleanBuilder{builder: builder{refCount: 1, mem: mem}}
}

func (b *BooleanBuilder) Type() quiver.DataType { return quiver.FixedWidthTypes.Boolean }

// Release decreases the reference count by 1. The buffers are freed when
// the count reaches zero. Safe to call from multiple goroutines.
func (b *BooleanBuilder) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")
	if atomic.AddInt64(&b.refCount, -1) != 0 {
		return
	}

	if b.nullBitmap != nil {
		b.nullBitmap.Release()
		b.nullBitmap = nil
	}
	b.dropData()
}

func (b *BooleanBuilder) dropData() {
	if b.data != nil {
		b.data.Release()
		b.data = nil
		b.rawData = nil
	}
}

func (b *BooleanBuilder) Append(v bool) {
	b.Reserve(1)
	b.UnsafeAppend(v)
}

func (b *BooleanBuilder) UnsafeAppend(v bool) {
	bitutil.SetBit(b.nullBitmap.Bytes(), b.length)
	bitutil.SetBitTo(b.rawData, b.length, v)
	b.length++
}

func (b *BooleanBuilder) AppendNull() {
	b.Reserve(1)
	b.UnsafeAppendBoolToBitmap(false)
}

func (b *BooleanBuilder) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
}

// AppendEmptyValue appends a valid false.
func (b *BooleanBuilder) AppendEmptyValue() {
	b.Append(false)
}

func (b *BooleanBuilder) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.AppendEmptyValue()
	}
}

// AppendValues appends the values in v. valid marks which of them are
// non-null; it must be empty (all valid) or the same length as v.
func (b *BooleanBuilder) AppendValues(v []bool, valid []bool) {
	if len(valid) != 0 && len(valid) != len(v) {
		panic("quiver/array: mismatched value and validity lengths")
	}
	if len(v) == 0 {
		return
	}

	b.Reserve(len(v))
	for i, set := range v {
		bitutil.SetBitTo(b.rawData, b.length+i, set)
	}
	b.unsafeAppendBoolsToBitmap(valid, len(v))
}

// Value returns the value accumulated at index i.
func (b *BooleanBuilder) Value(i int) bool {
	return bitutil.BitIsSet(b.rawData, i)
}

func (b *BooleanBuilder) init(capacity int) {
	b.builder.init(capacity)

	b.data = memory.NewResizableBuffer(b.mem)
	b.data.Resize(int(bitutil.BytesForBits(int64(capacity))))
	b.rawData = b.data.Bytes()
}

// Reserve ensures space for appending n more elements.
func (b *BooleanBuilder) Reserve(n int) {
	b.builder.reserve(n, b.Resize)
}

// Resize adjusts the builder to hold n elements, growing or shrinking
// the allocated buffers as needed.
func (b *BooleanBuilder) Resize(n int) {
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}

	if b.capacity == 0 {
		b.init(n)
		return
	}

	b.builder.resize(n, b.init)
	b.data.Resize(int(bitutil.BytesForBits(int64(n))))
	b.rawData = b.data.Bytes()
}

// NewArray finishes the builder, returning the accumulated values as a
// Boolean array and resetting the builder for reuse.
func (b *BooleanBuilder) NewArray() quiver.Array {
	return b.NewBooleanArray()
}

// NewBooleanArray is NewArray with a concrete return type.
func (b *BooleanBuilder) NewBooleanArray() *Boolean {
	data := b.newData()
	defer data.Release()
	return NewBooleanData(data)
}

func (b *BooleanBuilder) newData() *Data {
	nbytes := int(bitutil.BytesForBits(int64(b.length)))
	b.data.Resize(nbytes)
	if b.nullBitmap != nil {
		b.nullBitmap.Resize(nbytes)
	}

	out := NewData(quiver.FixedWidthTypes.Boolean, b.length, []*memory.Buffer{b.nullBitmap, b.data}, nil, b.nulls, 0)
	b.reset()
	b.dropData()
	return out
}

func (b *BooleanBuilder) UnmarshalOne(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case nil:
		b.AppendNull()
	case bool:
		b.Append(v)
	case string:
		return b.appendParsed(v)
	case json.Number:
		return b.appendParsed(v.String())
	default:
		return &json.UnmarshalTypeError{
			Value:  fmt.Sprint(tok),
			Type:   reflect.TypeOf(true),
			Offset: dec.InputOffset(),
		}
	}
	return nil
}

func (b *BooleanBuilder) appendParsed(repr string) error {
	v, err := strconv.ParseBool(repr)
	if err != nil {
		return err
	}
	b.Append(v)
	return nil
}

func (b *BooleanBuilder) Unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.UnmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

func (b *BooleanBuilder) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("boolean builder must unpack from json array, found %s", delim)
	}
	return b.Unmarshal(dec)
}

var _ Builder = (*BooleanBuilder)(nil)
