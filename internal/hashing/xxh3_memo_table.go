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

// Package hashing provides utilities for and an implementation of a hash
// table which is more performant than the default go map implementation
// by leveraging xxh3 and some custom hash functions.
package hashing

import (
	"bytes"
	"math/bits"
	"unsafe"

	"github.com/zeebo/xxh3"
)

type TypeTraits interface {
	BytesRequired(n int) int
}

type ByteSlice interface {
	Bytes() []byte
}

// Hash computes the hash of the given byte slice, using the extended
// avalanche mixer when alg is nonzero so multiple independent hash
// functions can be derived for the same input.
func Hash(b []byte, alg uint64) uint64 {
	h := xxh3.Hash(b)
	if alg > 0 {
		h = exthash(h)
	}
	return h
}

// exthash is a faithful copy of the xxh3 bit mixer for deriving a second
// independent hash function from a computed hash.
func exthash(h uint64) uint64 {
	h ^= h >> 37
	h *= 0x165667919e3779f9
	h ^= h >> 32
	return h
}

var hashIntMultipliers = [2]uint64{11400714785074694791, 14029467366897019727}

func hashInt(val uint64, alg uint64) uint64 {
	// Multiplying by the prime number mixes the low bits into the high bits,
	// then byte-swapping (which is a single CPU instruction) allows the
	// combined high and low bits to participate in the initial hash table index.
	return bits.ReverseBytes64(hashIntMultipliers[alg&1] * val)
}

func hashFloat32(val float32, alg uint64) uint64 {
	// grab the raw byte pattern of the value
	bt := *(*[4]byte)(unsafe.Pointer(&val))
	x := uint64(*(*uint32)(unsafe.Pointer(&bt[0])))
	hx := hashInt(x, alg)
	hy := hashInt(x, alg^1)
	return 4 ^ hx ^ hy
}

func hashFloat64(val float64, alg uint64) uint64 {
	bt := *(*[8]byte)(unsafe.Pointer(&val))
	hx := hashInt(uint64(*(*uint32)(unsafe.Pointer(&bt[4]))), alg)
	hy := hashInt(uint64(*(*uint32)(unsafe.Pointer(&bt[0]))), alg^1)
	return 8 ^ hx ^ hy
}

func hashString(val string, alg uint64) uint64 {
	if val == "" {
		return Hash([]byte{}, alg)
	}
	return Hash(unsafe.Slice(unsafe.StringData(val), len(val)), alg)
}

// KeyNotFound is the constant returned by memo table functions when a key isn't found in the table
const KeyNotFound = -1

const (
	sentinel   uint64 = 0
	loadFactor uint64 = 2
)

// MemoTable interface that can be used to swap out the implementation of
// the table, values inserted remember the order they were inserted in so a
// valid dictionary can be generated from a table.
type MemoTable interface {
	// Reset drops everything in the table allowing it to be reused
	Reset()
	// Size returns the current number of unique values stored in the table,
	// including whether or not a null value has been inserted via GetOrInsertNull
	Size() int
	// GetOrInsert returns the index of the table the specified value is,
	// and a boolean indicating whether or not the value was found in the
	// table (if false, the value was inserted). An error is returned if the
	// val is not the appropriate type for the table.
	GetOrInsert(val interface{}) (idx int, existed bool, err error)
	// GetOrInsertBytes returns the index of the table the specified value is,
	// and a boolean indicating whether or not the value was found in the
	// table (if false, the value was inserted). An error is returned if the
	// value cannot be inserted (e.g. the table only holds numeric values).
	GetOrInsertBytes(val []byte) (idx int, existed bool, err error)
	// GetOrInsertNull returns the index of the null value in the table,
	// inserting one if it hasn't already been inserted. It returns a boolean
	// indicating if the null value already existed or not in the table.
	GetOrInsertNull() (idx int, existed bool)
	// GetNull returns the index of the null value in the table, but does not
	// insert one if it doesn't already exist. The bool returned indicates
	// whether or not a null value exists in the table.
	GetNull() (idx int, exists bool)
	// WriteOut copies the unique values of the memotable out to the byte slice
	// provided. Must have allocated enough bytes for all the values.
	WriteOut(out []byte)
	// WriteOutSubset is like WriteOut, but only writes a subset of values
	// starting with the index offset.
	WriteOutSubset(offset int, out []byte)
}

// NumericMemoTable is an extension of the MemoTable interface for tables
// backed by fixed width data, exposing the traits of that data so a caller
// can size output buffers without knowing the concrete value type.
type NumericMemoTable interface {
	MemoTable
	TypeTraits() TypeTraits
}

// BinaryBuilderIFace is a subset of the binary array builder functions that
// the binary memo table uses to accumulate its distinct values, avoiding a
// circular dependency on the array package.
type BinaryBuilderIFace interface {
	Retain()
	Release()
	Reserve(int)
	ReserveData(int)
	Resize(int)
	ResizeData(int)
	DataLen() int
	Len() int
	Value(int) []byte
	AppendNull()
	AppendString(string)
	Append([]byte)
}

// BinaryMemoTable is our hashtable for binary data using a binary array
// builder to construct the actual data in an easy to pass around way with
// minimal copies while using a hash table to keep track of the indexes into
// the dictionary that is created as we go.
type BinaryMemoTable struct {
	tbl     *Int32HashTable
	builder BinaryBuilderIFace
	nullIdx int
}

// NewBinaryMemoTable returns a hash table for Binary data. The table takes
// over the caller's reference on bldr, dropping it in Release; the initial
// size and valuesize are used to reserve space in the builder.
func NewBinaryMemoTable(initial, valuesize int, bldr BinaryBuilderIFace) *BinaryMemoTable {
	bldr.Reserve(initial)
	datasize := valuesize
	if datasize <= 0 {
		datasize = initial * 4
	}
	bldr.ReserveData(datasize)
	return &BinaryMemoTable{tbl: NewInt32HashTable(uint64(initial)), builder: bldr, nullIdx: KeyNotFound}
}

// Release releases the reference on the internal builder.
func (s *BinaryMemoTable) Release() { s.builder.Release() }

// Reset dumps all of the data in the table allowing it to be reutilized.
func (s *BinaryMemoTable) Reset() {
	s.tbl.Reset(32)
	s.builder.Resize(0)
	s.builder.ResizeData(0)
	s.nullIdx = KeyNotFound
}

// GetNull returns the index of a null that has been inserted into the table or
// false if one has not yet been inserted.
func (s *BinaryMemoTable) GetNull() (int, bool) {
	return s.nullIdx, s.nullIdx != KeyNotFound
}

// Size returns the current size of the table including the null value if one
// has been inserted.
func (s *BinaryMemoTable) Size() int {
	sz := int(s.tbl.size)
	if _, ok := s.GetNull(); ok {
		sz++
	}
	return sz
}

func (s *BinaryMemoTable) valAsBytes(val interface{}) []byte {
	switch v := val.(type) {
	case []byte:
		return v
	case string:
		if v == "" {
			return []byte{}
		}
		return unsafe.Slice(unsafe.StringData(v), len(v))
	case ByteSlice:
		return v.Bytes()
	}
	return nil
}

func (s *BinaryMemoTable) getHash(val interface{}) uint64 {
	switch v := val.(type) {
	case string:
		return hashString(v, 0)
	case []byte:
		return Hash(v, 0)
	case ByteSlice:
		return Hash(v.Bytes(), 0)
	}
	return 0
}

func (s *BinaryMemoTable) appendVal(val interface{}) {
	switch v := val.(type) {
	case string:
		s.builder.AppendString(v)
	case []byte:
		s.builder.Append(v)
	case ByteSlice:
		s.builder.Append(v.Bytes())
	}
}

func (s *BinaryMemoTable) lookup(h uint64, val []byte) (*entry[int32], bool) {
	return s.tbl.Lookup(h, func(i int32) bool {
		return bytes.Equal(val, s.builder.Value(int(i)))
	})
}

// Get returns the index of the specified value in the table or KeyNotFound,
// and a boolean indicating whether it was found in the table.
func (s *BinaryMemoTable) Get(val interface{}) (int, bool) {
	if p, ok := s.lookup(s.getHash(val), s.valAsBytes(val)); ok {
		return int(p.payload.val), ok
	}
	return KeyNotFound, false
}

// GetOrInsertBytes returns the index of the given value in the table, if not
// found it is inserted into the table. The boolean returned is true if the
// value was found in the table.
func (s *BinaryMemoTable) GetOrInsertBytes(val []byte) (idx int, found bool, err error) {
	h := Hash(val, 0)
	p, found := s.lookup(h, val)
	if found {
		return int(p.payload.val), true, nil
	}

	idx = s.Size()
	s.builder.Append(val)
	if err = s.tbl.Insert(p, h, int32(idx), -1); err != nil {
		return 0, false, err
	}
	return idx, false, nil
}

// GetOrInsert returns the index of the given value in the table, if not found
// it is inserted into the table. The boolean returned is true if the value was
// found in the table. Accepts strings, byte slices or ByteSlice values.
func (s *BinaryMemoTable) GetOrInsert(val interface{}) (idx int, found bool, err error) {
	h := s.getHash(val)
	p, found := s.lookup(h, s.valAsBytes(val))
	if found {
		return int(p.payload.val), true, nil
	}

	idx = s.Size()
	s.appendVal(val)
	if err = s.tbl.Insert(p, h, int32(idx), -1); err != nil {
		return 0, false, err
	}
	return idx, false, nil
}

// GetOrInsertNull retrieves the index of a null in the table or inserts a null
// into the table, returning the index and a boolean indicating if it was
// already in the table.
func (s *BinaryMemoTable) GetOrInsertNull() (idx int, found bool) {
	idx, found = s.GetNull()
	if !found {
		idx = s.Size()
		s.nullIdx = idx
		s.builder.AppendNull()
	}
	return
}

// CopyOffsets copies the list of offsets into the passed in slice, the offsets
// being the start and end values of the underlying allocated bytes in the
// builder for the individual values of the table. out should be at least
// Size()+1 in length.
func (s *BinaryMemoTable) CopyOffsets(out []int32) {
	s.CopyOffsetsSubset(0, out)
}

// CopyOffsetsSubset is like CopyOffsets but instead of copying all of the
// offsets, it gets a subset of the offsets in the table starting at the index
// provided by start. The copied offsets are rebased to zero so they line up
// with the bytes written by CopyValuesSubset for the same start.
func (s *BinaryMemoTable) CopyOffsetsSubset(start int, out []int32) {
	if s.builder.Len() <= start {
		return
	}

	var pos int32
	n := s.Size() - start
	for i := 0; i < n; i++ {
		out[i] = pos
		pos += int32(len(s.builder.Value(start + i)))
	}
	out[n] = pos
}

// CopyValues copies the raw binary data bytes out, out should be a []byte
// with at least ValuesSize bytes allocated to copy into.
func (s *BinaryMemoTable) CopyValues(out interface{}) {
	s.CopyValuesSubset(0, out)
}

// CopyValuesSubset copies the raw binary data bytes out starting with the
// value at the index start, out should be a []byte with enough bytes allocated.
func (s *BinaryMemoTable) CopyValuesSubset(start int, out interface{}) {
	outval := out.([]byte)
	var offset int
	for i := start; i < s.Size(); i++ {
		v := s.builder.Value(i)
		copy(outval[offset:], v)
		offset += len(v)
	}
}

func (s *BinaryMemoTable) WriteOut(out []byte) {
	s.CopyValues(out)
}

func (s *BinaryMemoTable) WriteOutSubset(start int, out []byte) {
	s.CopyValuesSubset(start, out)
}

// CopyFixedWidthValues exists to cope with the fact that the table doesn't
// keep track of the fixed width when inserting the null value into the
// databuffer, only the offsets list.
func (s *BinaryMemoTable) CopyFixedWidthValues(start, width int, out []byte) {
	if start >= s.Size() {
		return
	}

	nullIndex, hasNull := s.GetNull()
	if !hasNull || nullIndex < start {
		// nothing to skip, proceed as usual
		s.CopyValuesSubset(start, out)
		return
	}

	leftOffset := width * (nullIndex - start)
	s.CopyValuesSubset(start, out[:leftOffset])
	s.CopyValuesSubset(nullIndex+1, out[leftOffset+width:])
}

// VisitValues exists to run the visitFn on each value currently in the hash
// table, starting with the value at the index start.
func (s *BinaryMemoTable) VisitValues(start int, visitFn func([]byte)) {
	for i := start; i < s.Size(); i++ {
		visitFn(s.builder.Value(i))
	}
}

// ValuesSize returns the current total size of all the raw bytes that have
// been inserted into the memotable so far.
func (s *BinaryMemoTable) ValuesSize() int { return s.builder.DataLen() }
