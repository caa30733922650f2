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
	"fmt"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/internal/debug"
	"github.com/quiverdata/quiver/internal/hashing"
	"github.com/quiverdata/quiver/memory"
)

// Dictionary is an array whose values are looked up through a level of
// indirection: an integral indices array paired with a value array (the
// "dictionary") holding the distinct values.
//
// The logical array
//
//	["foo", "bar", "foo", "bar"]
//
// encoded against the dictionary ["bar", "foo"] is stored as
//
//	indices: [1, 0, 1, 0]
//	dictionary: ["bar", "foo"]
//
// Any integer type may serve as the index type.
type Dictionary struct {
	array

	dict    quiver.Array
	indices quiver.Array
}

// NewDictionaryArray pairs an indices array with a dictionary array under
// the given dictionary type.
func NewDictionaryArray(typ quiver.DataType, indices, dict quiver.Array) *Dictionary {
	idxData := indices.Data()
	data := NewData(typ, indices.Len(), idxData.Buffers(), idxData.Children(), indices.NullN(), idxData.Offset())
	defer data.Release()

	data.dictionary = dict.Data().(*Data)
	dict.Data().Retain()

	out := &Dictionary{}
	out.refCount = 1
	out.setData(data)
	return out
}

// NewDictionaryData wraps ArrayData whose type is quiver.DICTIONARY, and
// which carries a dictionary, as a strongly typed Dictionary array.
func NewDictionaryData(data quiver.ArrayData) *Dictionary {
	out := &Dictionary{}
	out.refCount = 1
	out.setData(data.(*Data))
	return out
}

func (d *Dictionary) Retain() {
	atomic.AddInt64(&d.refCount, 1)
}

func (d *Dictionary) Release() {
	debug.Assert(atomic.LoadInt64(&d.refCount) > 0, "too many releases")

	if atomic.AddInt64(&d.refCount, -1) != 0 {
		return
	}
	d.data.Release()
	d.data, d.nullBitmapBytes = nil, nil
	d.indices.Release()
	d.indices = nil
	if d.dict != nil {
		d.dict.Release()
		d.dict = nil
	}
}

func (d *Dictionary) setData(data *Data) {
	d.array.setData(data)

	dt := data.DataType().(*quiver.DictionaryType)
	switch {
	case data.dictionary != nil:
		debug.Assert(quiver.TypeEqual(data.dictionary.DataType(), dt.ValueType), "mismatched dictionary value types")
	case data.length > 0:
		panic("quiver/array: no dictionary set in Data for Dictionary array")
	}

	idxData := NewData(dt.IndexType, data.length, data.buffers, data.childData, data.nulls, data.offset)
	d.indices = MakeFromData(idxData)
	idxData.Release()
}

// Dictionary returns the value array the indices point into.
func (d *Dictionary) Dictionary() quiver.Array {
	if d.dict == nil {
		d.dict = MakeFromData(d.data.dictionary)
	}
	return d.dict
}

// Indices returns the index array on its own.
func (d *Dictionary) Indices() quiver.Array {
	return d.indices
}

// CanCompareIndices reports whether two dictionary arrays may be compared
// index-by-index without unifying their dictionaries first. That requires
// matching index types and one dictionary being a prefix of the other.
func (d *Dictionary) CanCompareIndices(other *Dictionary) bool {
	if !quiver.TypeEqual(d.indices.DataType(), other.indices.DataType()) {
		return false
	}

	common := int64(min(d.data.dictionary.length, other.data.dictionary.length))
	return SliceEqual(d.Dictionary(), 0, common, other.Dictionary(), 0, common)
}

func (d *Dictionary) String() string {
	return fmt.Sprintf("{ dictionary: %v\n  indices: %v }", d.Dictionary(), d.Indices())
}

// GetValueIndex returns the dictionary position referenced by element i.
// Look the value itself up via d.Dictionary().(valuetype).Value(...).
func (d *Dictionary) GetValueIndex(i int) int {
	raw := d.data.buffers[1].Bytes()
	pos := d.data.offset + i
	// indices are never negative, so reading through the unsigned
	// representation is always safe.
	switch d.indices.DataType().(quiver.FixedWidthDataType).Bytes() {
	case 1:
		return int(raw[pos])
	case 2:
		return int(quiver.GetData[uint16](raw)[pos])
	case 4:
		return int(quiver.GetData[uint32](raw)[pos])
	case 8:
		return int(quiver.GetData[uint64](raw)[pos])
	}
	debug.Assert(false, "unreachable dictionary index width")
	return -1
}

func (d *Dictionary) GetOneForMarshal(i int) interface{} {
	if d.IsNull(i) {
		return nil
	}
	return d.Dictionary().GetOneForMarshal(d.GetValueIndex(i))
}

func (d *Dictionary) MarshalJSON() ([]byte, error) {
	vals := make([]interface{}, d.Len())
	for i := range vals {
		vals[i] = d.GetOneForMarshal(i)
	}
	return json.Marshal(vals)
}

func arrayEqualDict(l, r *Dictionary) bool {
	return Equal(l.Dictionary(), r.Dictionary()) && Equal(l.indices, r.indices)
}

// indexAppender wraps the concrete builder for the index type behind an
// untyped add(int) so the dictionary builder needn't care about the width.
type indexAppender struct {
	Builder
	add func(int)
}

func addAs[T quiver.FixedWidthType](b Builder) func(int) {
	nb := b.(*NumberBuilder[T])
	return func(idx int) { nb.Append(T(idx)) }
}

func newIndexAppender(mem memory.Allocator, dt quiver.FixedWidthDataType) (indexAppender, error) {
	out := indexAppender{Builder: NewBuilder(mem, dt)}
	switch dt.ID() {
	case quiver.INT8:
		out.add = addAs[int8](out.Builder)
	case quiver.UINT8:
		out.add = addAs[uint8](out.Builder)
	case quiver.INT16:
		out.add = addAs[int16](out.Builder)
	case quiver.UINT16:
		out.add = addAs[uint16](out.Builder)
	case quiver.INT32:
		out.add = addAs[int32](out.Builder)
	case quiver.UINT32:
		out.add = addAs[uint32](out.Builder)
	case quiver.INT64:
		out.add = addAs[int64](out.Builder)
	case quiver.UINT64:
		out.add = addAs[uint64](out.Builder)
	default:
		debug.Assert(false, "dictionary index type must be integral")
		return out, fmt.Errorf("%w: dictionary index type must be integral, not %s", quiver.ErrInvalid, dt)
	}
	return out, nil
}

func newMemoTable(mem memory.Allocator, dt quiver.DataType) (hashing.MemoTable, error) {
	switch dt.ID() {
	case quiver.NULL:
		return nil, nil
	case quiver.INT8:
		return hashing.NewInt8MemoTable(0), nil
	case quiver.UINT8:
		return hashing.NewUint8MemoTable(0), nil
	case quiver.INT16:
		return hashing.NewInt16MemoTable(0), nil
	case quiver.UINT16:
		return hashing.NewUint16MemoTable(0), nil
	case quiver.INT32:
		return hashing.NewInt32MemoTable(0), nil
	case quiver.UINT32:
		return hashing.NewUint32MemoTable(0), nil
	case quiver.INT64:
		return hashing.NewInt64MemoTable(0), nil
	case quiver.UINT64:
		return hashing.NewUint64MemoTable(0), nil
	case quiver.FLOAT32:
		return hashing.NewFloat32MemoTable(0), nil
	case quiver.FLOAT64:
		return hashing.NewFloat64MemoTable(0), nil
	case quiver.BINARY:
		return hashing.NewBinaryMemoTable(0, 0, NewBinaryBuilder(mem, quiver.BinaryTypes.Binary)), nil
	case quiver.STRING:
		return hashing.NewBinaryMemoTable(0, 0, NewBinaryBuilder(mem, quiver.BinaryTypes.String)), nil
	}
	return nil, fmt.Errorf("%w: unsupported dictionary value type %s", quiver.ErrNotImplemented, dt)
}

type DictionaryBuilder interface {
	Builder

	NewDictionaryArray() *Dictionary
	NewDelta() (indices, delta quiver.Array, err error)
	AppendArray(quiver.Array) error
	AppendIndices([]int, []bool)
	ResetFull()
	DictionarySize() int
}

type dictionaryBuilder struct {
	builder

	dt         *quiver.DictionaryType
	deltaStart int
	memo       hashing.MemoTable
	idx        indexAppender
}

func withInitialDict[T quiver.FixedWidthType](core dictionaryBuilder, init quiver.Array) numberDictionaryBuilder[T] {
	out := numberDictionaryBuilder[T]{core}
	if init != nil {
		if err := out.InsertDictValues(init.(*Number[T])); err != nil {
			panic(err)
		}
	}
	return out
}

// NewDictionaryBuilderWithDict creates a dictionary builder whose dictionary
// is seeded with the values of init. The seeded values are dictionary entries
// only; no array elements are appended for them.
func NewDictionaryBuilderWithDict(mem memory.Allocator, dt *quiver.DictionaryType, init quiver.Array) DictionaryBuilder {
	if init != nil && !quiver.TypeEqual(dt.ValueType, init.DataType()) {
		panic(fmt.Errorf("quiver/array: cannot initialize dictionary type %T with array of type %T", dt.ValueType, init.DataType()))
	}

	idx, err := newIndexAppender(mem, dt.IndexType.(quiver.FixedWidthDataType))
	if err != nil {
		panic(fmt.Errorf("quiver/array: unsupported builder for index type of %T", dt))
	}

	memo, err := newMemoTable(mem, dt.ValueType)
	if err != nil {
		panic(fmt.Errorf("quiver/array: unsupported builder for value type of %T", dt))
	}

	core := dictionaryBuilder{
		builder: builder{refCount: 1, mem: mem},
		dt:      dt,
		memo:    memo,
		idx:     idx,
	}

	switch dt.ValueType.ID() {
	case quiver.NULL:
		debug.Assert(init == nil, "quiver/array: doesn't make sense to init a null dictionary")
		return &NullDictionaryBuilder{core}
	case quiver.INT8:
		return &Int8DictionaryBuilder{withInitialDict[int8](core, init)}
	case quiver.UINT8:
		return &Uint8DictionaryBuilder{withInitialDict[uint8](core, init)}
	case quiver.INT16:
		return &Int16DictionaryBuilder{withInitialDict[int16](core, init)}
	case quiver.UINT16:
		return &Uint16DictionaryBuilder{withInitialDict[uint16](core, init)}
	case quiver.INT32:
		return &Int32DictionaryBuilder{withInitialDict[int32](core, init)}
	case quiver.UINT32:
		return &Uint32DictionaryBuilder{withInitialDict[uint32](core, init)}
	case quiver.INT64:
		return &Int64DictionaryBuilder{withInitialDict[int64](core, init)}
	case quiver.UINT64:
		return &Uint64DictionaryBuilder{withInitialDict[uint64](core, init)}
	case quiver.FLOAT32:
		return &Float32DictionaryBuilder{withInitialDict[float32](core, init)}
	case quiver.FLOAT64:
		return &Float64DictionaryBuilder{withInitialDict[float64](core, init)}
	case quiver.STRING:
		out := &StringDictionaryBuilder{core}
		if init != nil {
			if err = out.InsertDictValues(init.(*String)); err != nil {
				panic(err)
			}
		}
		return out
	case quiver.BINARY:
		out := &BinaryDictionaryBuilder{core}
		if init != nil {
			if err = out.InsertDictValues(init.(*Binary)); err != nil {
				panic(err)
			}
		}
		return out
	}
	panic(fmt.Errorf("quiver/array: unsupported dictionary value type %s", dt.ValueType))
}

// NewDictionaryBuilder creates a dictionary builder starting from an empty
// dictionary.
func NewDictionaryBuilder(mem memory.Allocator, dt *quiver.DictionaryType) DictionaryBuilder {
	return NewDictionaryBuilderWithDict(mem, dt, nil)
}

func (b *dictionaryBuilder) Type() quiver.DataType { return b.dt }

func (b *dictionaryBuilder) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) != 0 {
		return
	}
	b.idx.Release()
	b.idx.Builder = nil
	if bm, ok := b.memo.(*hashing.BinaryMemoTable); ok {
		bm.Release()
	}
	b.memo = nil
}

func (b *dictionaryBuilder) AppendNull() {
	b.length++
	b.nulls++
	b.idx.AppendNull()
}

func (b *dictionaryBuilder) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
}

func (b *dictionaryBuilder) AppendEmptyValue() {
	b.length++
	b.idx.AppendEmptyValue()
}

func (b *dictionaryBuilder) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.AppendEmptyValue()
	}
}

func (b *dictionaryBuilder) Reserve(n int) { b.idx.Reserve(n) }

func (b *dictionaryBuilder) Resize(n int) {
	b.idx.Resize(n)
	b.length = b.idx.Len()
}

func (b *dictionaryBuilder) IsNull(i int) bool { return b.idx.IsNull(i) }

func (b *dictionaryBuilder) Cap() int { return b.idx.Cap() }

// ResetFull discards the accumulated indices and the memo table, so the
// next array built starts from an empty dictionary.
func (b *dictionaryBuilder) ResetFull() {
	b.builder.reset()
	b.idx.NewArray().Release()
	b.memo.Reset()
}

// decodeInto runs one of the value builder's unmarshal entry points and
// dictionary-encodes whatever it produced.
func (b *dictionaryBuilder) decodeInto(decode func(Builder) error) error {
	vb := NewBuilder(b.mem, b.dt.ValueType)
	defer vb.Release()

	if err := decode(vb); err != nil {
		return err
	}

	arr := vb.NewArray()
	defer arr.Release()
	return b.AppendArray(arr)
}

func (b *dictionaryBuilder) UnmarshalOne(dec *json.Decoder) error {
	return b.decodeInto(func(vb Builder) error { return vb.UnmarshalOne(dec) })
}

func (b *dictionaryBuilder) Unmarshal(dec *json.Decoder) error {
	return b.decodeInto(func(vb Builder) error { return vb.Unmarshal(dec) })
}

func (b *dictionaryBuilder) UnmarshalJSON(data []byte) error {
	return b.decodeInto(func(vb Builder) error { return vb.UnmarshalJSON(data) })
}

func (b *dictionaryBuilder) NewArray() quiver.Array {
	return b.NewDictionaryArray()
}

func (b *dictionaryBuilder) finishData() *Data {
	indices, dict, err := b.finishWithOffset(0)
	if err != nil {
		panic(err)
	}

	indices.dtype = b.dt
	indices.dictionary = dict
	return indices
}

func (b *dictionaryBuilder) NewDictionaryArray() *Dictionary {
	out := &Dictionary{}
	out.refCount = 1

	data := b.finishData()
	out.setData(data)
	data.Release()
	return out
}

func (b *dictionaryBuilder) finishWithOffset(offset int) (indices, dict *Data, err error) {
	idxArr := b.idx.NewArray()
	defer idxArr.Release()

	indices = idxArr.Data().(*Data)
	indices.Retain()

	b.deltaStart = b.memo.Size()
	dict, err = dictFromMemo(b.mem, b.dt.ValueType, b.memo, offset)
	b.reset()
	return
}

// NewDelta finishes the current indices along with the dictionary values
// added since the previous finish. The builder state resets but the memo
// table is kept, so later appends continue the same dictionary.
func (b *dictionaryBuilder) NewDelta() (indices, delta quiver.Array, err error) {
	idxData, deltaData, err := b.finishWithOffset(b.deltaStart)
	if err != nil {
		return nil, nil, err
	}

	defer idxData.Release()
	defer deltaData.Release()
	return MakeFromData(idxData), MakeFromData(deltaData), nil
}

func (b *dictionaryBuilder) memoInsert(val interface{}) error {
	_, _, err := b.memo.GetOrInsert(val)
	return err
}

func (b *dictionaryBuilder) memoInsertBytes(val []byte) error {
	_, _, err := b.memo.GetOrInsertBytes(val)
	return err
}

func (b *dictionaryBuilder) appendValue(val interface{}) error {
	pos, _, err := b.memo.GetOrInsert(val)
	b.idx.add(pos)
	b.length++
	return err
}

func (b *dictionaryBuilder) appendBytes(val []byte) error {
	pos, _, err := b.memo.GetOrInsertBytes(val)
	b.idx.add(pos)
	b.length++
	return err
}

func boxedValue[T quiver.FixedWidthType](arr *Number[T]) func(int) interface{} {
	return func(i int) interface{} { return arr.Value(i) }
}

func valueGetter(arr quiver.Array) func(i int) interface{} {
	switch arr := arr.(type) {
	case *Number[int8]:
		return boxedValue(arr)
	case *Number[uint8]:
		return boxedValue(arr)
	case *Number[int16]:
		return boxedValue(arr)
	case *Number[uint16]:
		return boxedValue(arr)
	case *Number[int32]:
		return boxedValue(arr)
	case *Number[uint32]:
		return boxedValue(arr)
	case *Number[int64]:
		return boxedValue(arr)
	case *Number[uint64]:
		return boxedValue(arr)
	case *Number[float32]:
		return boxedValue(arr)
	case *Number[float64]:
		return boxedValue(arr)
	case *String:
		return func(i int) interface{} { return arr.Value(i) }
	case *Binary:
		return func(i int) interface{} { return arr.Value(i) }
	}
	panic(fmt.Errorf("quiver/array: cannot append array of type %s to dictionary", arr.DataType()))
}

func (b *dictionaryBuilder) AppendArray(arr quiver.Array) error {
	debug.Assert(quiver.TypeEqual(b.dt.ValueType, arr.DataType()), "wrong value type of array to append to dict")

	value := valueGetter(arr)
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			b.AppendNull()
			continue
		}
		if err := b.appendValue(value(i)); err != nil {
			return err
		}
	}
	return nil
}

func bulkAppendIndices[T quiver.FixedWidthType](b Builder, indices []int, valid []bool) {
	vals := make([]T, len(indices))
	for i, idx := range indices {
		vals[i] = T(idx)
	}
	b.(*NumberBuilder[T]).AppendValues(vals, valid)
}

func (b *dictionaryBuilder) AppendIndices(indices []int, valid []bool) {
	b.length += len(indices)
	switch b.dt.IndexType.ID() {
	case quiver.INT8:
		bulkAppendIndices[int8](b.idx.Builder, indices, valid)
	case quiver.UINT8:
		bulkAppendIndices[uint8](b.idx.Builder, indices, valid)
	case quiver.INT16:
		bulkAppendIndices[int16](b.idx.Builder, indices, valid)
	case quiver.UINT16:
		bulkAppendIndices[uint16](b.idx.Builder, indices, valid)
	case quiver.INT32:
		bulkAppendIndices[int32](b.idx.Builder, indices, valid)
	case quiver.UINT32:
		bulkAppendIndices[uint32](b.idx.Builder, indices, valid)
	case quiver.INT64:
		bulkAppendIndices[int64](b.idx.Builder, indices, valid)
	case quiver.UINT64:
		bulkAppendIndices[uint64](b.idx.Builder, indices, valid)
	}

	for _, v := range valid {
		if !v {
			b.nulls++
		}
	}
}

func (b *dictionaryBuilder) DictionarySize() int {
	return b.memo.Size()
}

type NullDictionaryBuilder struct {
	dictionaryBuilder
}

func (b *NullDictionaryBuilder) NewArray() quiver.Array {
	return b.NewDictionaryArray()
}

func (b *NullDictionaryBuilder) finishData() *Data {
	idxArr := b.idx.NewArray()
	defer idxArr.Release()

	indices := idxArr.Data().(*Data)
	indices.Retain()
	indices.dtype = b.dt
	indices.dictionary = NewData(quiver.Null, 0, []*memory.Buffer{nil}, nil, 0, 0)
	return indices
}

func (b *NullDictionaryBuilder) NewDictionaryArray() *Dictionary {
	out := &Dictionary{}
	out.refCount = 1

	data := b.finishData()
	out.setData(data)
	data.Release()
	return out
}

func (b *NullDictionaryBuilder) DictionarySize() int { return 0 }

func (b *NullDictionaryBuilder) ResetFull() {
	b.builder.reset()
	b.idx.NewArray().Release()
}

func (b *NullDictionaryBuilder) AppendArray(arr quiver.Array) error {
	if arr.DataType().ID() != quiver.NULL {
		return fmt.Errorf("%w: cannot append non-null array to null dictionary", quiver.ErrInvalid)
	}

	for i := 0; i < arr.Len(); i++ {
		b.AppendNull()
	}
	return nil
}

type numberDictionaryBuilder[T quiver.FixedWidthType] struct {
	dictionaryBuilder
}

func (b *numberDictionaryBuilder[T]) Append(v T) error { return b.appendValue(v) }

func (b *numberDictionaryBuilder[T]) InsertDictValues(arr *Number[T]) error {
	for _, v := range arr.values {
		if err := b.memoInsert(v); err != nil {
			return err
		}
	}
	return nil
}

type (
	Int8DictionaryBuilder    struct{ numberDictionaryBuilder[int8] }
	Uint8DictionaryBuilder   struct{ numberDictionaryBuilder[uint8] }
	Int16DictionaryBuilder   struct{ numberDictionaryBuilder[int16] }
	Uint16DictionaryBuilder  struct{ numberDictionaryBuilder[uint16] }
	Int32DictionaryBuilder   struct{ numberDictionaryBuilder[int32] }
	Uint32DictionaryBuilder  struct{ numberDictionaryBuilder[uint32] }
	Int64DictionaryBuilder   struct{ numberDictionaryBuilder[int64] }
	Uint64DictionaryBuilder  struct{ numberDictionaryBuilder[uint64] }
	Float32DictionaryBuilder struct{ numberDictionaryBuilder[float32] }
	Float64DictionaryBuilder struct{ numberDictionaryBuilder[float64] }
)

type BinaryDictionaryBuilder struct {
	dictionaryBuilder
}

func (b *BinaryDictionaryBuilder) Append(v []byte) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	return b.appendBytes(v)
}

func (b *BinaryDictionaryBuilder) AppendString(v string) error { return b.appendBytes([]byte(v)) }

func (b *BinaryDictionaryBuilder) InsertDictValues(arr *Binary) error {
	for i := 0; i < arr.Len(); i++ {
		if err := b.memoInsertBytes(arr.Value(i)); err != nil {
			return err
		}
	}
	return nil
}

type StringDictionaryBuilder struct {
	dictionaryBuilder
}

func (b *StringDictionaryBuilder) Append(v string) error { return b.appendValue(v) }

func (b *StringDictionaryBuilder) InsertDictValues(arr *String) error {
	for i := 0; i < arr.Len(); i++ {
		if err := b.memoInsert(arr.Value(i)); err != nil {
			return err
		}
	}
	return nil
}

// dictFromMemo materializes dictionary values from the memo table as array
// data, skipping the first start entries for delta dictionaries.
func dictFromMemo(mem memory.Allocator, valueType quiver.DataType, memo hashing.MemoTable, start int) (*Data, error) {
	n := memo.Size() - start
	bufs := []*memory.Buffer{nil, memory.NewResizableBuffer(mem)}
	defer bufs[1].Release()

	switch tbl := memo.(type) {
	case hashing.NumericMemoTable:
		bufs[1].Resize(tbl.TypeTraits().BytesRequired(n))
		tbl.WriteOutSubset(start, bufs[1].Bytes())
	case *hashing.BinaryMemoTable:
		bufs = append(bufs, memory.NewResizableBuffer(mem))
		defer bufs[2].Release()

		bufs[1].Resize(quiver.Int32Traits.BytesRequired(n + 1))
		offsets := quiver.Int32Traits.CastFromBytes(bufs[1].Bytes())
		tbl.CopyOffsetsSubset(start, offsets)

		bufs[2].Resize(int(offsets[len(offsets)-1] - offsets[0]))
		tbl.CopyValuesSubset(start, bufs[2].Bytes())
	default:
		return nil, fmt.Errorf("%w: unimplemented dictionary value type %s", quiver.ErrNotImplemented, valueType)
	}

	nulls := 0
	if pos, ok := memo.GetNull(); ok && pos >= start {
		bufs[0] = memory.NewResizableBuffer(mem)
		defer bufs[0].Release()

		bufs[0].Resize(int(bitutil.BytesForBits(int64(n))))
		memory.Set(bufs[0].Bytes(), 0xFF)
		bitutil.ClearBit(bufs[0].Bytes(), pos)
		nulls = 1
	}

	return NewData(valueType, n, bufs, nil, nulls, 0), nil
}

// DictionaryEncode builds a dictionary-encoded copy of arr with int32
// indices.
func DictionaryEncode(mem memory.Allocator, arr quiver.Array) (*Dictionary, error) {
	dt := &quiver.DictionaryType{IndexType: quiver.PrimitiveTypes.Int32, ValueType: arr.DataType()}
	bldr := NewDictionaryBuilder(mem, dt)
	defer bldr.Release()

	if err := bldr.AppendArray(arr); err != nil {
		return nil, err
	}
	return bldr.NewDictionaryArray(), nil
}

var (
	_ quiver.Array = (*Dictionary)(nil)
	_ Builder      = (*dictionaryBuilder)(nil)
)
