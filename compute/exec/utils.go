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

package exec

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/memory"
	"golang.org/x/exp/constraints"
)

type (
	// IntTypes is a type constraint for raw values represented as signed
	// integer types. We aren't just using constraints.Signed because we
	// don't want to include the raw `int` type here whose size changes
	// based on the architecture.
	IntTypes interface {
		~int8 | ~int16 | ~int32 | ~int64
	}

	// UintTypes is a type constraint for raw values represented as
	// unsigned integer types. We aren't just using constraints.Unsigned
	// because we don't want to include the raw `uint` type here whose
	// size changes based on the architecture.
	UintTypes interface {
		~uint8 | ~uint16 | ~uint32 | ~uint64
	}

	// FloatTypes is a type constraint for raw values represented as
	// floating point types.
	FloatTypes interface {
		constraints.Float
	}

	NumericTypes interface {
		IntTypes | UintTypes | FloatTypes
	}

	// FixedWidthTypes is a type constraint for raw values that can be
	// represented as fixed-width byte slices. Specifically this is for
	// using Go generics to easily re-type a byte slice to a
	// properly-typed slice. Booleans are excluded since they are
	// represented as a bitmap and not a fixed number of bytes.
	FixedWidthTypes interface {
		NumericTypes
	}
)

// HashCombine mixes a new value into an existing hash seed the same way
// for every hashed component, so composite hashes stay stable.
func HashCombine(seed, value uint64) uint64 {
	seed ^= value + 0x9e3779b9 + (seed << 6) + (seed >> 2)
	return seed
}

// GetSpanValues returns a properly typed slice by reinterpreting the
// buffer at index i using unsafe.Slice. This will take into account the
// offset of the given ArraySpan.
func GetSpanValues[T FixedWidthTypes](span *ArraySpan, i int) []T {
	if len(span.Buffers[i].Buf) == 0 {
		return nil
	}
	ret := unsafe.Slice((*T)(unsafe.Pointer(&span.Buffers[i].Buf[0])), span.Offset+span.Len)
	return ret[span.Offset:]
}

// GetSpanOffsets is like GetSpanValues, except it is only for int32 and
// adds the additional expected value for an offsets buffer
// (ie. len(output) == span.Len+1).
func GetSpanOffsets(span *ArraySpan, i int) []int32 {
	ret := unsafe.Slice((*int32)(unsafe.Pointer(&span.Buffers[i].Buf[0])), span.Offset+span.Len+1)
	return ret[span.Offset:]
}

// GetBytes reinterprets a slice of T to a slice of bytes.
func GetBytes[T FixedWidthTypes](in []T) []byte {
	if len(in) == 0 {
		return nil
	}
	var z T
	return unsafe.Slice((*byte)(unsafe.Pointer(&in[0])), len(in)*int(unsafe.Sizeof(z)))
}

// GetData reinterprets a slice of bytes to a slice of T.
//
// NOTE: the length of the byte slice must be a multiple of the size of T.
func GetData[T FixedWidthTypes](in []byte) []T {
	if len(in) == 0 {
		return nil
	}
	var z T
	return unsafe.Slice((*T)(unsafe.Pointer(&in[0])), len(in)/int(unsafe.Sizeof(z)))
}

// GetValues implements the logic of GetSpanValues but for an
// ArrayData object instead of an ArraySpan.
func GetValues[T FixedWidthTypes](data quiver.ArrayData, i int) []T {
	if data.Len() == 0 || data.Buffers()[i] == nil || data.Buffers()[i].Len() == 0 {
		return nil
	}
	ret := unsafe.Slice((*T)(unsafe.Pointer(&data.Buffers()[i].Bytes()[0])), data.Offset()+data.Len())
	return ret[data.Offset():]
}

// Min is a generic min function for any ordered type.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max is a generic max function for any ordered type.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// OptionsInit should be used in the case where a KernelState is simply
// represented with a specific type by value (instead of pointer).
// This will initialize the KernelState as a value-copied instance of the
// passed in function options argument to ensure that the options are
// not modified by the kernel execution.
func OptionsInit[T any](_ *KernelCtx, args KernelInitArgs) (KernelState, error) {
	if opts, ok := args.Options.(*T); ok {
		return *opts, nil
	}

	return nil, fmt.Errorf("%w: attempted to initialize kernel state from invalid function options",
		quiver.ErrInvalidOption)
}

var typMap = map[reflect.Type]quiver.DataType{
	reflect.TypeOf(false):      quiver.FixedWidthTypes.Boolean,
	reflect.TypeOf(int8(0)):    quiver.PrimitiveTypes.Int8,
	reflect.TypeOf(int16(0)):   quiver.PrimitiveTypes.Int16,
	reflect.TypeOf(int32(0)):   quiver.PrimitiveTypes.Int32,
	reflect.TypeOf(int64(0)):   quiver.PrimitiveTypes.Int64,
	reflect.TypeOf(uint8(0)):   quiver.PrimitiveTypes.Uint8,
	reflect.TypeOf(uint16(0)):  quiver.PrimitiveTypes.Uint16,
	reflect.TypeOf(uint32(0)):  quiver.PrimitiveTypes.Uint32,
	reflect.TypeOf(uint64(0)):  quiver.PrimitiveTypes.Uint64,
	reflect.TypeOf(float32(0)): quiver.PrimitiveTypes.Float32,
	reflect.TypeOf(float64(0)): quiver.PrimitiveTypes.Float64,
	reflect.TypeOf(string("")): quiver.BinaryTypes.String,
	reflect.TypeOf([]byte{}):   quiver.BinaryTypes.Binary,
}

// GetDataType returns the appropriate quiver.DataType for the given type T.
func GetDataType[T NumericTypes | bool | string | []byte]() quiver.DataType {
	var z T
	return typMap[reflect.TypeOf(z)]
}

// GetType returns the appropriate quiver.Type type ID for the given type T.
func GetType[T NumericTypes | bool | string]() quiver.Type {
	var z T
	return typMap[reflect.TypeOf(z)].ID()
}

// ArrayIter is a convenience for iterating the values of an ArraySpan
// one element at a time during kernel execution.
type ArrayIter[T any] interface {
	Next() T
}

// BoolIter is an ArrayIter for bitmap-packed boolean values.
type BoolIter struct {
	Rdr *bitutil.BitmapReader
}

func NewBoolIter(arr *ArraySpan) ArrayIter[bool] {
	return &BoolIter{
		Rdr: bitutil.NewBitmapReader(arr.Buffers[1].Buf, int(arr.Offset), int(arr.Len))}
}

func (b *BoolIter) Next() (out bool) {
	out = b.Rdr.Set()
	b.Rdr.Next()
	return
}

// PrimitiveIter is an ArrayIter for fixed-width value buffers.
type PrimitiveIter[T FixedWidthTypes] struct {
	Values []T
}

func NewPrimitiveIter[T FixedWidthTypes](arr *ArraySpan) ArrayIter[T] {
	return &PrimitiveIter[T]{Values: GetSpanValues[T](arr, 1)}
}

func (p *PrimitiveIter[T]) Next() (v T) {
	v = p.Values[0]
	p.Values = p.Values[1:]
	return
}

// VarBinaryIter is an ArrayIter for variable-width binary buffers,
// yielding the value bytes for each element in order.
type VarBinaryIter struct {
	Offsets []int32
	Data    []byte
	Pos     int64
}

func NewVarBinaryIter(arr *ArraySpan) ArrayIter[[]byte] {
	return &VarBinaryIter{
		Offsets: GetSpanOffsets(arr, 1),
		Data:    arr.Buffers[2].Buf,
	}
}

func (v *VarBinaryIter) Next() []byte {
	cur := v.Pos
	v.Pos++
	return v.Data[v.Offsets[cur]:v.Offsets[cur+1]]
}

type builder[T NumericTypes | bool | string] interface {
	AppendValues([]T, []bool)
	NewArray() quiver.Array
	Release()
}

// ArrayFromSlice is a helper function for creating an array from a slice
// of known values, generally used for testing.
func ArrayFromSlice[T NumericTypes | bool | string](mem memory.Allocator, data []T) quiver.Array {
	bldr := array.NewBuilder(mem, GetDataType[T]()).(builder[T])
	defer bldr.Release()

	bldr.AppendValues(data, nil)
	return bldr.NewArray()
}

// ArrayFromSliceWithValid is like ArrayFromSlice but accepts a slice of
// booleans determining the validity of the corresponding elements.
func ArrayFromSliceWithValid[T NumericTypes | bool | string](mem memory.Allocator, data []T, valid []bool) quiver.Array {
	bldr := array.NewBuilder(mem, GetDataType[T]()).(builder[T])
	defer bldr.Release()

	bldr.AppendValues(data, valid)
	return bldr.NewArray()
}

// GetOffsets returns the sliced offsets buffer of a binary-like array,
// with the extra trailing offset included (len(output) == data.Len()+1).
func GetOffsets(data quiver.ArrayData, i int) []int32 {
	ret := unsafe.Slice((*int32)(unsafe.Pointer(&data.Buffers()[i].Bytes()[0])), data.Offset()+data.Len()+1)
	return ret[data.Offset():]
}
