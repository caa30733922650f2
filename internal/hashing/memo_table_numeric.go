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

package hashing

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/internal/utils"
)

func hashFixed[T quiver.FixedWidthType](val T, alg uint64) uint64 {
	switch v := any(val).(type) {
	case int8:
		return hashInt(uint64(v), alg)
	case int16:
		return hashInt(uint64(v), alg)
	case int32:
		return hashInt(uint64(v), alg)
	case int64:
		return hashInt(uint64(v), alg)
	case uint8:
		return hashInt(uint64(v), alg)
	case uint16:
		return hashInt(uint64(v), alg)
	case uint32:
		return hashInt(uint64(v), alg)
	case uint64:
		return hashInt(v, alg)
	case float32:
		return hashFloat32(v, alg)
	case float64:
		return hashFloat64(v, alg)
	}
	return 0
}

// canonicalValue collapses all NaN bit patterns to a single canonical NaN so
// that NaN values memoize to one dictionary entry.
func canonicalValue[T quiver.FixedWidthType](val T) T {
	switch v := any(&val).(type) {
	case *float32:
		if math.IsNaN(float64(*v)) {
			*v = float32(math.NaN())
		}
	case *float64:
		if math.IsNaN(*v) {
			*v = math.NaN()
		}
	}
	return val
}

func valueCmp[T quiver.FixedWidthType](val T) func(T) bool {
	switch v := any(val).(type) {
	case float32:
		if math.IsNaN(float64(v)) {
			return func(other T) bool { return math.IsNaN(float64(any(other).(float32))) }
		}
	case float64:
		if math.IsNaN(v) {
			return func(other T) bool { return math.IsNaN(any(other).(float64)) }
		}
	}
	return func(other T) bool { return val == other }
}

type payload[T quiver.FixedWidthType] struct {
	val     T
	memoIdx int32
}

type entry[T quiver.FixedWidthType] struct {
	h       uint64
	payload payload[T]
}

func (e entry[T]) Valid() bool { return e.h != sentinel }

// HashTable is an open addressing hash table for fixed width values which is
// used as the backing store for the numeric memo tables.
type HashTable[T quiver.FixedWidthType] struct {
	cap     uint64
	capMask uint64
	size    uint64

	entries []entry[T]
}

// NewHashTable returns a new hash table for values of type T initialized with
// the passed in capacity or 32 whichever is larger.
func NewHashTable[T quiver.FixedWidthType](cap uint64) *HashTable[T] {
	initCap := uint64(bitutil.NextPowerOf2(int(utils.Max(cap, 32))))
	return &HashTable[T]{
		cap:     initCap,
		capMask: initCap - 1,
		entries: make([]entry[T], initCap),
	}
}

// Reset drops all of the values in this table and re-initializes it with the
// specified initial capacity as if by calling New, but without having to
// reallocate the object.
func (h *HashTable[T]) Reset(cap uint64) {
	h.cap = uint64(bitutil.NextPowerOf2(int(utils.Max(cap, 32))))
	h.capMask = h.cap - 1
	h.size = 0
	h.entries = make([]entry[T], h.cap)
}

// CopyValues is used for copying the values out of the hash table into the
// passed in slice, in the order that they were first inserted.
func (h *HashTable[T]) CopyValues(out []T) {
	h.CopyValuesSubset(0, out)
}

// CopyValuesSubset copies a subset of the values in the hashtable out, starting
// with the value at start, in the order that they were inserted.
func (h *HashTable[T]) CopyValuesSubset(start int, out []T) {
	h.VisitEntries(func(e *entry[T]) {
		idx := e.payload.memoIdx - int32(start)
		if idx >= 0 {
			out[idx] = e.payload.val
		}
	})
}

func (h *HashTable[T]) WriteOut(out []byte) {
	h.WriteOutSubset(0, out)
}

func (h *HashTable[T]) WriteOutSubset(start int, out []byte) {
	h.CopyValuesSubset(start, quiver.GetData[T](out))
}

func (h *HashTable[T]) needUpsize() bool { return h.size*loadFactor >= h.cap }

func (HashTable[T]) fixHash(v uint64) uint64 {
	if v == sentinel {
		return 42
	}
	return v
}

// Lookup retrieves the entry for the given hash value, and calls the cmp func
// against the payload to confirm a value match. The returned entry points at
// either the matching entry or the insertion slot for it.
func (h *HashTable[T]) Lookup(v uint64, cmp func(T) bool) (*entry[T], bool) {
	v = h.fixHash(v)
	return h.lookup(v, h.capMask, h.entries, cmp)
}

func (h *HashTable[T]) lookup(v, szMask uint64, entries []entry[T], cmp func(T) bool) (*entry[T], bool) {
	idx := v & szMask
	for {
		e := &entries[idx]
		switch {
		case e.h == v && cmp(e.payload.val):
			return e, true
		case e.h == sentinel:
			return e, false
		}
		idx = (idx + 1) & szMask
	}
}

func (h *HashTable[T]) upsize(newcap uint64) error {
	newMask := newcap - 1

	oldEntries := h.entries
	h.entries = make([]entry[T], newcap)
	for _, e := range oldEntries {
		if e.Valid() {
			newEntry, _ := h.lookup(e.h, newMask, h.entries, func(T) bool { return false })
			*newEntry = e
		}
	}
	h.cap = newcap
	h.capMask = newMask
	return nil
}

// Insert updates the given entry (from a previous Lookup) with the hash value,
// the value and the memo index, growing the table as needed.
func (h *HashTable[T]) Insert(e *entry[T], v uint64, val T, memoIdx int32) error {
	e.h = h.fixHash(v)
	e.payload.val = val
	e.payload.memoIdx = memoIdx
	h.size++

	if h.needUpsize() {
		return h.upsize(h.cap * 2)
	}
	return nil
}

// VisitEntries will call the passed in function on each *valid* entry in the
// hash table, a valid entry being one which has had a value inserted into it.
func (h *HashTable[T]) VisitEntries(visit func(*entry[T])) {
	for i := range h.entries {
		if h.entries[i].Valid() {
			visit(&h.entries[i])
		}
	}
}

type numTraits[T quiver.FixedWidthType] struct{}

func (numTraits[T]) BytesRequired(n int) int {
	var z T
	return int(unsafe.Sizeof(z)) * n
}

// memoTable is the memo table for a fixed width value type, keeping track of
// the distinct values inserted in insertion order.
type memoTable[T quiver.FixedWidthType] struct {
	tbl     *HashTable[T]
	nullIdx int32
}

// exported names for each instantiation so callers read the same as they
// would with per-type tables
type (
	Int8MemoTable    = memoTable[int8]
	Int16MemoTable   = memoTable[int16]
	Int32MemoTable   = memoTable[int32]
	Int64MemoTable   = memoTable[int64]
	Uint8MemoTable   = memoTable[uint8]
	Uint16MemoTable  = memoTable[uint16]
	Uint32MemoTable  = memoTable[uint32]
	Uint64MemoTable  = memoTable[uint64]
	Float32MemoTable = memoTable[float32]
	Float64MemoTable = memoTable[float64]

	Int32HashTable = HashTable[int32]
)

func NewMemoTable[T quiver.FixedWidthType](num int64) *memoTable[T] {
	return &memoTable[T]{tbl: NewHashTable[T](uint64(num)), nullIdx: KeyNotFound}
}

func NewInt8MemoTable(num int64) *Int8MemoTable       { return NewMemoTable[int8](num) }
func NewInt16MemoTable(num int64) *Int16MemoTable     { return NewMemoTable[int16](num) }
func NewInt32MemoTable(num int64) *Int32MemoTable     { return NewMemoTable[int32](num) }
func NewInt64MemoTable(num int64) *Int64MemoTable     { return NewMemoTable[int64](num) }
func NewUint8MemoTable(num int64) *Uint8MemoTable     { return NewMemoTable[uint8](num) }
func NewUint16MemoTable(num int64) *Uint16MemoTable   { return NewMemoTable[uint16](num) }
func NewUint32MemoTable(num int64) *Uint32MemoTable   { return NewMemoTable[uint32](num) }
func NewUint64MemoTable(num int64) *Uint64MemoTable   { return NewMemoTable[uint64](num) }
func NewFloat32MemoTable(num int64) *Float32MemoTable { return NewMemoTable[float32](num) }
func NewFloat64MemoTable(num int64) *Float64MemoTable { return NewMemoTable[float64](num) }

func NewInt32HashTable(cap uint64) *Int32HashTable { return NewHashTable[int32](cap) }

// TypeTraits returns the type traits for the value type of this table.
func (s *memoTable[T]) TypeTraits() TypeTraits { return numTraits[T]{} }

// Reset drops all the values currently in the table, replacing with an
// initial empty state.
func (s *memoTable[T]) Reset() {
	s.tbl.Reset(32)
	s.nullIdx = KeyNotFound
}

// Size returns the current number of inserted elements into the table
// including if a null has been inserted.
func (s *memoTable[T]) Size() int {
	sz := int(s.tbl.size)
	if _, ok := s.GetNull(); ok {
		sz++
	}
	return sz
}

// GetNull returns the index of an inserted null or false if null was not inserted.
func (s *memoTable[T]) GetNull() (int, bool) {
	return int(s.nullIdx), s.nullIdx != KeyNotFound
}

// GetOrInsertNull will return the index of the null entry in the table,
// inserting it if it doesn't already exist.
func (s *memoTable[T]) GetOrInsertNull() (idx int, found bool) {
	idx, found = s.GetNull()
	if !found {
		idx = s.Size()
		s.nullIdx = int32(idx)
	}
	return
}

// CopyValues copies the values of the table out into the slice which should
// be a slice of the value type.
func (s *memoTable[T]) CopyValues(out interface{}) {
	s.CopyValuesSubset(0, out)
}

// CopyValuesSubset is like CopyValues but only copies a subset of values
// starting at the provided start index.
func (s *memoTable[T]) CopyValuesSubset(start int, out interface{}) {
	s.tbl.CopyValuesSubset(start, out.([]T))
}

func (s *memoTable[T]) WriteOut(out []byte) {
	s.tbl.WriteOut(out)
}

func (s *memoTable[T]) WriteOutSubset(start int, out []byte) {
	s.tbl.WriteOutSubset(start, out)
}

// Get returns the index of the requested value in the hash table or KeyNotFound
// along with a boolean indicating if it was found or not.
func (s *memoTable[T]) Get(val interface{}) (int, bool) {
	v, ok := val.(T)
	if !ok {
		return KeyNotFound, false
	}
	return s.GetValue(v)
}

// GetValue is like Get but avoids boxing the value into an interface.
func (s *memoTable[T]) GetValue(v T) (int, bool) {
	v = canonicalValue(v)
	if e, ok := s.tbl.Lookup(hashFixed(v, 0), valueCmp(v)); ok {
		return int(e.payload.memoIdx), ok
	}
	return KeyNotFound, false
}

// GetOrInsert returns the index of the value in the table, if not found it is
// inserted into the table. The boolean returned is true if the value was found
// in the table, false if it was inserted. An error is returned if val is not
// the value type for this table.
func (s *memoTable[T]) GetOrInsert(val interface{}) (idx int, found bool, err error) {
	v, ok := val.(T)
	if !ok {
		var z T
		return 0, false, fmt.Errorf("%w: cannot insert %T into memo table of %T", quiver.ErrInvalid, val, z)
	}
	return s.InsertOrGet(v)
}

// GetOrInsertBytes is unimplemented for the numeric memo tables.
func (s *memoTable[T]) GetOrInsertBytes(val []byte) (idx int, found bool, err error) {
	panic("unimplemented")
}

// InsertOrGet is like GetOrInsert but avoids boxing the value into an interface.
func (s *memoTable[T]) InsertOrGet(val T) (idx int, found bool, err error) {
	val = canonicalValue(val)
	h := hashFixed(val, 0)
	e, ok := s.tbl.Lookup(h, valueCmp(val))

	if ok {
		idx = int(e.payload.memoIdx)
		found = true
	} else {
		idx = s.Size()
		err = s.tbl.Insert(e, h, val, int32(idx))
	}
	return
}
