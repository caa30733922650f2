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
	"sync/atomic"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/internal/debug"
	"github.com/quiverdata/quiver/memory"
)

// Data represents the memory and metadata of an array.
type Data struct {
	refCount int64
	dtype    quiver.DataType
	nulls    int
	offset   int
	length   int

	// for dictionary arrays: the values of the unique dictionary
	dictionary *Data

	buffers   []*memory.Buffer
	childData []quiver.ArrayData
}

// NewData creates a new Data.
func NewData(dtype quiver.DataType, length int, buffers []*memory.Buffer, childData []quiver.ArrayData, nulls, offset int) *Data {
	for _, b := range buffers {
		if b != nil {
			b.Retain()
		}
	}

	for _, child := range childData {
		if child != nil {
			child.Retain()
		}
	}

	return &Data{
		refCount:  1,
		dtype:     dtype,
		nulls:     nulls,
		length:    length,
		offset:    offset,
		buffers:   buffers,
		childData: childData,
	}
}

// NewDataWithDictionary creates a new data object, but also sets the provided dictionary into the data if it's not nil
func NewDataWithDictionary(dtype quiver.DataType, length int, buffers []*memory.Buffer, nulls, offset int, dict *Data) *Data {
	data := NewData(dtype, length, buffers, nil, nulls, offset)
	if dict != nil {
		dict.Retain()
	}
	data.dictionary = dict
	return data
}

// Reset sets the Data for re-use.
func (d *Data) Reset(dtype quiver.DataType, length int, buffers []*memory.Buffer, childData []quiver.ArrayData, nulls, offset int) {
	// Retain new buffers before releasing existing buffers in-case they're the same ones to prevent accidental premature
	// release.
	for _, b := range buffers {
		if b != nil {
			b.Retain()
		}
	}
	for _, b := range d.buffers {
		if b != nil {
			b.Release()
		}
	}
	d.buffers = buffers

	// Retain new children data before releasing existing children data in-case they're the same ones to prevent accidental
	// premature release.
	for _, d := range childData {
		if d != nil {
			d.Retain()
		}
	}
	for _, d := range d.childData {
		if d != nil {
			d.Release()
		}
	}
	d.childData = childData

	d.dtype = dtype
	d.length = length
	d.nulls = nulls
	d.offset = offset
}

// Retain increases the reference count by 1.
// Retain may be called simultaneously from multiple goroutines.
func (d *Data) Retain() {
	atomic.AddInt64(&d.refCount, 1)
}

// Release decreases the reference count by 1.
// When the reference count goes to zero, the memory is freed.
// Release may be called simultaneously from multiple goroutines.
func (d *Data) Release() {
	debug.Assert(atomic.LoadInt64(&d.refCount) > 0, "too many releases")

	if atomic.AddInt64(&d.refCount, -1) == 0 {
		for _, b := range d.buffers {
			if b != nil {
				b.Release()
			}
		}

		for _, b := range d.childData {
			b.Release()
		}

		if d.dictionary != nil {
			d.dictionary.Release()
		}
		d.dictionary, d.buffers, d.childData = nil, nil, nil
	}
}

// DataType returns the DataType of the data.
func (d *Data) DataType() quiver.DataType { return d.dtype }

// NullN returns the number of nulls, which may be UnknownNullCount.
func (d *Data) NullN() int { return d.nulls }

// Len returns the length.
func (d *Data) Len() int { return d.length }

// Offset returns the offset.
func (d *Data) Offset() int { return d.offset }

// Buffers returns the buffers.
func (d *Data) Buffers() []*memory.Buffer { return d.buffers }

// Children returns the children.
func (d *Data) Children() []quiver.ArrayData { return d.childData }

// Dictionary returns the ArrayData object for the dictionary if this is a
// dictionary array, nil otherwise.
func (d *Data) Dictionary() quiver.ArrayData {
	if d.dictionary == nil {
		return nil
	}
	return d.dictionary
}

// SetDictionary allows replacing the dictionary for this particular Data object.
func (d *Data) SetDictionary(dict quiver.ArrayData) {
	if d.dictionary != nil {
		d.dictionary.Release()
		d.dictionary = nil
	}
	if dict != nil {
		d.dictionary = dict.(*Data)
		d.dictionary.Retain()
	}
}

// SetNullN sets the number of nulls for this data object.
func (d *Data) SetNullN(n int) { d.nulls = n }

// Copy returns a new copy of the Data, but doesn't copy the underlying
// buffers, just the slices referencing them. As a result buffers can be
// swapped out on the copy without affecting the original. The copy must
// be Release()'d after use.
func (d *Data) Copy() *Data {
	bufs := make([]*memory.Buffer, len(d.buffers))
	copy(bufs, d.buffers)

	var children []quiver.ArrayData
	if len(d.childData) > 0 {
		children = make([]quiver.ArrayData, len(d.childData))
		copy(children, d.childData)
	}

	data := NewData(d.dtype, d.length, bufs, children, d.nulls, d.offset)
	if d.dictionary != nil {
		data.SetDictionary(d.dictionary)
	}
	return data
}

// NewSliceData returns a new slice that shares backing data with the input.
// The returned Data slice starts at i and extends j-i elements, such as:
//
//	Data {0, 1, 2, 3, 4, 5, 6}
//	NewSliceData(data, 2, 4) => Data {2, 3}
//
// The returned data must be Release()'d after use.
func NewSliceData(data quiver.ArrayData, i, j int64) quiver.ArrayData {
	if j > int64(data.Len()) || i > j || data.Offset()+int(i) > data.Offset()+data.Len() {
		panic("quiver/array: index out of range")
	}

	for _, b := range data.Buffers() {
		if b != nil {
			b.Retain()
		}
	}

	for _, child := range data.Children() {
		if child != nil {
			child.Retain()
		}
	}

	if data.(*Data).dictionary != nil {
		data.(*Data).dictionary.Retain()
	}

	o := &Data{
		refCount:   1,
		dtype:      data.DataType(),
		nulls:      UnknownNullCount,
		length:     int(j - i),
		offset:     data.Offset() + int(i),
		buffers:    data.Buffers(),
		childData:  data.Children(),
		dictionary: data.(*Data).dictionary,
	}

	if data.NullN() == 0 {
		o.nulls = 0
	}

	return o
}
