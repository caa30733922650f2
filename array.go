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

package quiver

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver/memory"
)

// ArrayData is the underlying memory and metadata of an array, allowing
// the implementations of the concrete array types to share the same
// buffer management. It is refcounted: Retain/Release govern when the
// buffers are handed back to the allocator.
type ArrayData interface {
	// Retain increases the reference count by 1, it is safe to call
	// in multiple goroutines simultaneously.
	Retain()
	// Release decreases the reference count by 1, it is safe to call
	// in multiple goroutines simultaneously. Data is removed when reference
	// count is 0.
	Release()
	// DataType returns the current datatype stored in the object.
	DataType() DataType
	// NullN returns the number of nulls, which may be UnknownNullCount.
	NullN() int
	// Len returns the length of this data instance.
	Len() int
	// Offset returns the offset into the raw buffers where this data begins.
	Offset() int
	// Buffers returns the slice of raw data buffers for this data instance.
	// Their content and ordering is dependent on the DataType.
	Buffers() []*memory.Buffer
	// Children returns the children of this data instance.
	Children() []ArrayData
	// Reset allows the data instance to be reused, updating the internal
	// values without requiring a new object.
	Reset(newtype DataType, newlength int, newbuffers []*memory.Buffer, newchildren []ArrayData, newnulls int, newoffset int)
	// Dictionary returns the ArrayData of the dictionary values if this
	// is dictionary-encoded data, nil otherwise.
	Dictionary() ArrayData
	// SetDictionary stores the given ArrayData as the dictionary values.
	SetDictionary(ArrayData)
}

// Array represents an immutable sequence of values using the columnar
// memory layout: zero or more contiguous buffers plus an optional
// validity bitmap marking which slots hold meaningful values.
type Array interface {
	fmt.Stringer
	json.Marshaler

	// DataType returns the type metadata for this instance.
	DataType() DataType

	// NullN returns the number of null values.
	NullN() int

	// NullBitmapBytes returns a byte slice of the validity bitmap.
	NullBitmapBytes() []byte

	// IsNull returns true if value at index is null.
	// NOTE: IsNull will panic if NullBitmapBytes is not empty and 0 > i ≥ Len.
	IsNull(i int) bool

	// IsValid returns true if value at index is not null.
	// NOTE: IsValid will panic if NullBitmapBytes is not empty and 0 > i ≥ Len.
	IsValid(i int) bool

	// GetOneForMarshal returns the value at index i for marshalling to JSON,
	// nil for a null slot.
	GetOneForMarshal(i int) interface{}

	Data() ArrayData

	// Len returns the number of elements in the array.
	Len() int

	// Retain increases the reference count by 1.
	// Retain may be called simultaneously from multiple goroutines.
	Retain()

	// Release decreases the reference count by 1.
	// Release may be called simultaneously from multiple goroutines.
	// When the reference count goes to zero, the memory is freed.
	Release()
}
