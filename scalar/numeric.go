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

package scalar

import (
	"fmt"
	"unsafe"

	"github.com/quiverdata/quiver"
)

// Number is the generic scalar for the fixed-width numeric types. The
// exported aliases (Int8 through Float64) follow the data type names.
type Number[T quiver.FixedWidthType] struct {
	scalar

	Value T
}

func (s *Number[T]) value() interface{} { return s.Value }

// Data returns the raw bytes of the value in native byte order.
func (s *Number[T]) Data() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&s.Value)), unsafe.Sizeof(s.Value))
}

func (s *Number[T]) equals(rhs Scalar) bool {
	return s.Value == rhs.(*Number[T]).Value
}

func (s *Number[T]) String() string {
	if !s.Valid {
		return "null"
	}
	return fmt.Sprintf("%v", s.Value)
}

func (s *Number[T]) CastTo(to quiver.DataType) (Scalar, error) {
	if !s.Valid {
		return MakeNullScalar(to), nil
	}

	switch to.ID() {
	case quiver.BOOL:
		return NewBooleanScalar(s.Value != 0), nil
	case quiver.UINT8:
		return NewUint8Scalar(uint8(s.Value)), nil
	case quiver.INT8:
		return NewInt8Scalar(int8(s.Value)), nil
	case quiver.UINT16:
		return NewUint16Scalar(uint16(s.Value)), nil
	case quiver.INT16:
		return NewInt16Scalar(int16(s.Value)), nil
	case quiver.UINT32:
		return NewUint32Scalar(uint32(s.Value)), nil
	case quiver.INT32:
		return NewInt32Scalar(int32(s.Value)), nil
	case quiver.UINT64:
		return NewUint64Scalar(uint64(s.Value)), nil
	case quiver.INT64:
		return NewInt64Scalar(int64(s.Value)), nil
	case quiver.FLOAT32:
		return NewFloat32Scalar(float32(s.Value)), nil
	case quiver.FLOAT64:
		return NewFloat64Scalar(float64(s.Value)), nil
	case quiver.STRING:
		return NewStringScalar(fmt.Sprintf("%v", s.Value)), nil
	}

	return nil, fmt.Errorf("%w: cannot cast non-null %s scalar to type %s", quiver.ErrNotImplemented, s.Type, to)
}

type (
	Int8    = Number[int8]
	Uint8   = Number[uint8]
	Int16   = Number[int16]
	Uint16  = Number[uint16]
	Int32   = Number[int32]
	Uint32  = Number[uint32]
	Int64   = Number[int64]
	Uint64  = Number[uint64]
	Float32 = Number[float32]
	Float64 = Number[float64]
)

// NewInt8Scalar creates a new valid Int8 scalar.
func NewInt8Scalar(val int8) *Int8 {
	return &Int8{scalar{quiver.PrimitiveTypes.Int8, true}, val}
}

// NewUint8Scalar creates a new valid Uint8 scalar.
func NewUint8Scalar(val uint8) *Uint8 {
	return &Uint8{scalar{quiver.PrimitiveTypes.Uint8, true}, val}
}

// NewInt16Scalar creates a new valid Int16 scalar.
func NewInt16Scalar(val int16) *Int16 {
	return &Int16{scalar{quiver.PrimitiveTypes.Int16, true}, val}
}

// NewUint16Scalar creates a new valid Uint16 scalar.
func NewUint16Scalar(val uint16) *Uint16 {
	return &Uint16{scalar{quiver.PrimitiveTypes.Uint16, true}, val}
}

// NewInt32Scalar creates a new valid Int32 scalar.
func NewInt32Scalar(val int32) *Int32 {
	return &Int32{scalar{quiver.PrimitiveTypes.Int32, true}, val}
}

// NewUint32Scalar creates a new valid Uint32 scalar.
func NewUint32Scalar(val uint32) *Uint32 {
	return &Uint32{scalar{quiver.PrimitiveTypes.Uint32, true}, val}
}

// NewInt64Scalar creates a new valid Int64 scalar.
func NewInt64Scalar(val int64) *Int64 {
	return &Int64{scalar{quiver.PrimitiveTypes.Int64, true}, val}
}

// NewUint64Scalar creates a new valid Uint64 scalar.
func NewUint64Scalar(val uint64) *Uint64 {
	return &Uint64{scalar{quiver.PrimitiveTypes.Uint64, true}, val}
}

// NewFloat32Scalar creates a new valid Float32 scalar.
func NewFloat32Scalar(val float32) *Float32 {
	return &Float32{scalar{quiver.PrimitiveTypes.Float32, true}, val}
}

// NewFloat64Scalar creates a new valid Float64 scalar.
func NewFloat64Scalar(val float64) *Float64 {
	return &Float64{scalar{quiver.PrimitiveTypes.Float64, true}, val}
}

var (
	_ Scalar          = (*Int8)(nil)
	_ Scalar          = (*Uint64)(nil)
	_ PrimitiveScalar = (*Int64)(nil)
	_ PrimitiveScalar = (*Float64)(nil)
)
