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
	"unsafe"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/internal/debug"
	"github.com/quiverdata/quiver/memory"
)

// NumberBuilder builds the fixed-width numeric arrays. The instantiated
// builders are exported under the usual aliases (Int8Builder through
// Float64Builder).
type NumberBuilder[T quiver.FixedWidthType] struct {
	builder

	dtype   quiver.DataType
	data    *memory.Buffer
	rawData []T
}

type (
	Int8Builder    = NumberBuilder[int8]
	Int16Builder   = NumberBuilder[int16]
	Int32Builder   = NumberBuilder[int32]
	Int64Builder   = NumberBuilder[int64]
	Uint8Builder   = NumberBuilder[uint8]
	Uint16Builder  = NumberBuilder[uint16]
	Uint32Builder  = NumberBuilder[uint32]
	Uint64Builder  = NumberBuilder[uint64]
	Float32Builder = NumberBuilder[float32]
	Float64Builder = NumberBuilder[float64]
)

func newNumberBuilder[T quiver.FixedWidthType](mem memory.Allocator, dtype quiver.DataType) *NumberBuilder[T] {
	return &NumberBuilder[T]{builder: builder{refCount: 1, mem: mem}, dtype: dtype}
}

func NewInt8Builder(mem memory.Allocator) *Int8Builder {
	return newNumberBuilder[int8](mem, quiver.PrimitiveTypes.Int8)
}

func NewInt16Builder(mem memory.Allocator) *Int16Builder {
	return newNumberBuilder[int16](mem, quiver.PrimitiveTypes.Int16)
}

func NewInt32Builder(mem memory.Allocator) *Int32Builder {
	return newNumberBuilder[int32](mem, quiver.PrimitiveTypes.Int32)
}

func NewInt64Builder(mem memory.Allocator) *Int64Builder {
	return newNumberBuilder[int64](mem, quiver.PrimitiveTypes.Int64)
}

func NewUint8Builder(mem memory.Allocator) *Uint8Builder {
	return newNumberBuilder[uint8](mem, quiver.PrimitiveTypes.Uint8)
}

func NewUint16Builder(mem memory.Allocator) *Uint16Builder {
	return newNumberBuilder[uint16](mem, quiver.PrimitiveTypes.Uint16)
}

func NewUint32Builder(mem memory.Allocator) *Uint32Builder {
	return newNumberBuilder[uint32](mem, quiver.PrimitiveTypes.Uint32)
}

func NewUint64Builder(mem memory.Allocator) *Uint64Builder {
	return newNumberBuilder[uint64](mem, quiver.PrimitiveTypes.Uint64)
}

func NewFloat32Builder(mem memory.Allocator) *Float32Builder {
	return newNumberBuilder[float32](mem, quiver.PrimitiveTypes.Float32)
}

func NewFloat64Builder(mem memory.Allocator) *Float64Builder {
	return newNumberBuilder[float64](mem, quiver.PrimitiveTypes.Float64)
}

func (b *NumberBuilder[T]) Type() quiver.DataType { return b.dtype }

// elemBytes converts an element count to a byte count for T.
func (b *NumberBuilder[T]) elemBytes(n int) int {
	var z T
	return int(unsafe.Sizeof(z)) * n
}

func (b *NumberBuilder[T]) dropData() {
	if b.data != nil {
		b.data.Release()
		b.data = nil
		b.rawData = nil
	}
}

// Release decreases the reference count by 1.
// When the reference count goes to zero, the memory is freed.
func (b *NumberBuilder[T]) Release() {
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

func (b *NumberBuilder[T]) Append(v T) {
	b.Reserve(1)
	b.UnsafeAppend(v)
}

func (b *NumberBuilder[T]) UnsafeAppend(v T) {
	bitutil.SetBit(b.nullBitmap.Bytes(), b.length)
	b.rawData[b.length] = v
	b.length++
}

func (b *NumberBuilder[T]) AppendNull() {
	b.Reserve(1)
	b.UnsafeAppendBoolToBitmap(false)
}

func (b *NumberBuilder[T]) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
}

func (b *NumberBuilder[T]) AppendEmptyValue() {
	var z T
	b.Append(z)
}

func (b *NumberBuilder[T]) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.AppendEmptyValue()
	}
}

// AppendValues will append the values in the v slice. The valid slice determines which values
// in v are valid (not null). The valid slice must either be empty or be equal in length to v. If empty,
// all values in v are appended and considered valid.
func (b *NumberBuilder[T]) AppendValues(v []T, valid []bool) {
	if len(valid) != 0 && len(valid) != len(v) {
		panic("quiver/array: mismatched value and validity lengths")
	}
	if len(v) == 0 {
		return
	}

	b.Reserve(len(v))
	copy(b.rawData[b.length:], v)
	b.builder.unsafeAppendBoolsToBitmap(valid, len(v))
}

// Value returns the value at index i.
func (b *NumberBuilder[T]) Value(i int) T { return b.rawData[i] }

func (b *NumberBuilder[T]) init(capacity int) {
	b.builder.init(capacity)

	b.data = memory.NewResizableBuffer(b.mem)
	b.data.Resize(b.elemBytes(capacity))
	b.rawData = quiver.GetData[T](b.data.Bytes())
}

// Reserve ensures there is enough space for appending n elements
// by checking the capacity and calling Resize if necessary.
func (b *NumberBuilder[T]) Reserve(n int) {
	b.builder.reserve(n, b.Resize)
}

// Resize adjusts the space allocated by b to n elements. If n is greater than b.Cap(),
// additional memory will be allocated. If n is smaller, the allocated memory may reduced.
func (b *NumberBuilder[T]) Resize(n int) {
	if b.capacity == 0 {
		b.init(max(n, minBuilderCapacity))
		return
	}

	b.builder.resize(n, b.init)
	b.data.Resize(b.elemBytes(max(n, minBuilderCapacity)))
	b.rawData = quiver.GetData[T](b.data.Bytes())
}

// NewArray creates an array from the memory buffers used by the builder and resets the builder
// so it can be used to build a new array.
func (b *NumberBuilder[T]) NewArray() quiver.Array {
	return b.NewNumberArray()
}

// NewNumberArray creates an array from the memory buffers used by the builder and resets the builder
// so it can be used to build a new array.
func (b *NumberBuilder[T]) NewNumberArray() *Number[T] {
	data := b.newData()
	defer data.Release()
	return newNumberData[T](data)
}

func (b *NumberBuilder[T]) newData() *Data {
	if n := b.elemBytes(b.length); n > 0 && n < b.data.Len() {
		// trim off the unused tail
		b.data.Resize(n)
	}

	data := NewData(b.dtype, b.length, []*memory.Buffer{b.nullBitmap, b.data}, nil, b.nulls, 0)
	b.reset()
	b.dropData()
	return data
}

func (b *NumberBuilder[T]) appendStringValue(s string) error {
	bitSize := b.elemBytes(8)

	var z T
	switch any(z).(type) {
	case float32, float64:
		v, err := strconv.ParseFloat(s, bitSize)
		if err != nil {
			return err
		}
		b.Append(T(v))
	case uint8, uint16, uint32, uint64:
		v, err := strconv.ParseUint(s, 10, bitSize)
		if err != nil {
			return err
		}
		b.Append(T(v))
	default:
		v, err := strconv.ParseInt(s, 10, bitSize)
		if err != nil {
			return err
		}
		b.Append(T(v))
	}
	return nil
}

func (b *NumberBuilder[T]) UnmarshalOne(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}

	badValue := func(repr string) error {
		var z T
		return &json.UnmarshalTypeError{
			Value:  repr,
			Type:   reflect.TypeOf(z),
			Offset: dec.InputOffset(),
		}
	}

	switch v := t.(type) {
	case nil:
		b.AppendNull()
	case float64:
		b.Append(T(v))
	case string:
		if err := b.appendStringValue(v); err != nil {
			return badValue(v)
		}
	case json.Number:
		if err := b.appendStringValue(v.String()); err != nil {
			return badValue(v.String())
		}
	default:
		return badValue(fmt.Sprint(t))
	}
	return nil
}

func (b *NumberBuilder[T]) Unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.UnmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

func (b *NumberBuilder[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("numeric builder must unpack from json array, found %s", delim)
	}

	return b.Unmarshal(dec)
}

var (
	_ Builder = (*Int64Builder)(nil)
	_ Builder = (*Float32Builder)(nil)
)
