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
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/internal/debug"
)

const (
	// UnknownNullCount specifies the NullN should be calculated from the null bitmap buffer.
	UnknownNullCount = -1
)

type array struct {
	refCount        int64
	data            *Data
	nullBitmapBytes []byte
}

// Retain increases the reference count by 1.
// Retain may be called simultaneously from multiple goroutines.
func (a *array) Retain() {
	atomic.AddInt64(&a.refCount, 1)
}

// Release decreases the reference count by 1.
// Release may be called simultaneously from multiple goroutines.
// When the reference count goes to zero, the memory is freed.
func (a *array) Release() {
	debug.Assert(atomic.LoadInt64(&a.refCount) > 0, "too many releases")

	if atomic.AddInt64(&a.refCount, -1) == 0 {
		a.data.Release()
		a.data, a.nullBitmapBytes = nil, nil
	}
}

// DataType returns the type metadata for this instance.
func (a *array) DataType() quiver.DataType { return a.data.dtype }

// NullN returns the number of null values.
func (a *array) NullN() int {
	if a.data.nulls < 0 {
		a.data.nulls = a.data.length - bitutil.CountSetBits(a.nullBitmapBytes, a.data.offset, a.data.length)
	}
	return a.data.nulls
}

// NullBitmapBytes returns a byte slice of the validity bitmap.
func (a *array) NullBitmapBytes() []byte { return a.nullBitmapBytes }

func (a *array) Data() quiver.ArrayData { return a.data }

// Len returns the number of elements in the array.
func (a *array) Len() int { return a.data.length }

// IsNull returns true if value at index is null.
// NOTE: IsNull will panic if NullBitmapBytes is not empty and 0 > i ≥ Len.
func (a *array) IsNull(i int) bool {
	return len(a.nullBitmapBytes) != 0 && bitutil.BitIsNotSet(a.nullBitmapBytes, a.data.offset+i)
}

// IsValid returns true if value at index is not null.
// NOTE: IsValid will panic if NullBitmapBytes is not empty and 0 > i ≥ Len.
func (a *array) IsValid(i int) bool {
	return len(a.nullBitmapBytes) == 0 || bitutil.BitIsSet(a.nullBitmapBytes, a.data.offset+i)
}

func (a *array) setData(data *Data) {
	// Retain before releasing in case a.data is the same as data.
	data.Retain()

	if a.data != nil {
		a.data.Release()
	}

	if len(data.buffers) > 0 && data.buffers[0] != nil {
		a.nullBitmapBytes = data.buffers[0].Bytes()
	}
	a.data = data
}

func (a *array) Offset() int {
	return a.data.Offset()
}

type arrayConstructorFn func(quiver.ArrayData) quiver.Array

var makeArrayFn [16]arrayConstructorFn

func invalidDataType(data quiver.ArrayData) quiver.Array {
	panic("invalid data type: " + data.DataType().ID().String())
}

// MakeFromData constructs a strongly-typed array instance from generic Data.
func MakeFromData(data quiver.ArrayData) quiver.Array {
	return makeArrayFn[byte(data.DataType().ID()&0xf)](data)
}

// NewSlice constructs a zero-copy slice of the array with the indicated
// indices i and j, corresponding to array[i:j].
// The returned array must be Release()'d after use.
//
// NewSlice panics if the slice is outside the valid range of the input array.
// NewSlice panics if j < i.
func NewSlice(arr quiver.Array, i, j int64) quiver.Array {
	data := NewSliceData(arr.Data(), i, j)
	slice := MakeFromData(data)
	data.Release()
	return slice
}

func init() {
	makeArrayFn = [...]arrayConstructorFn{
		quiver.NULL:       func(data quiver.ArrayData) quiver.Array { return NewNullData(data) },
		quiver.BOOL:       func(data quiver.ArrayData) quiver.Array { return NewBooleanData(data) },
		quiver.UINT8:      func(data quiver.ArrayData) quiver.Array { return NewUint8Data(data) },
		quiver.INT8:       func(data quiver.ArrayData) quiver.Array { return NewInt8Data(data) },
		quiver.UINT16:     func(data quiver.ArrayData) quiver.Array { return NewUint16Data(data) },
		quiver.INT16:      func(data quiver.ArrayData) quiver.Array { return NewInt16Data(data) },
		quiver.UINT32:     func(data quiver.ArrayData) quiver.Array { return NewUint32Data(data) },
		quiver.INT32:      func(data quiver.ArrayData) quiver.Array { return NewInt32Data(data) },
		quiver.UINT64:     func(data quiver.ArrayData) quiver.Array { return NewUint64Data(data) },
		quiver.INT64:      func(data quiver.ArrayData) quiver.Array { return NewInt64Data(data) },
		quiver.FLOAT32:    func(data quiver.ArrayData) quiver.Array { return NewFloat32Data(data) },
		quiver.FLOAT64:    func(data quiver.ArrayData) quiver.Array { return NewFloat64Data(data) },
		quiver.STRING:     func(data quiver.ArrayData) quiver.Array { return NewStringData(data) },
		quiver.BINARY:     func(data quiver.ArrayData) quiver.Array { return NewBinaryData(data) },
		quiver.DICTIONARY: func(data quiver.ArrayData) quiver.Array { return NewDictionaryData(data) },
		15:                invalidDataType,
	}
}
