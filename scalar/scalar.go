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

// Package scalar provides the Scalar interface and its implementations: a
// scalar couples a single value with a data type and a validity flag. Compute
// functions accept and return scalars wherever a length-1 array would be
// wasteful, such as the right-hand side of an array-plus-constant addition or
// the result of a reduction.
package scalar

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"reflect"
	"strconv"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/endian"
	"github.com/quiverdata/quiver/memory"
)

// Scalar represents a single value with a specific DataType. Scalars are
// useful for passing single value inputs to compute functions or for
// representing individual array elements, at the cost of a boxing overhead
// that a full array amortizes away.
type Scalar interface {
	fmt.Stringer
	// IsValid returns true if the value is non-null, false otherwise.
	IsValid() bool
	// The datatype of the value in this scalar
	DataType() quiver.DataType
	// Performs cheap validation checks, returns nil if successful
	Validate() error
	// Perform more expensive validation checks, returns nil if successful
	ValidateFull() error
	// Cast this scalar's value to the desired datatype, returning an error
	// if the cast is unsupported. Casting a null scalar produces a null
	// scalar of the target type.
	CastTo(quiver.DataType) (Scalar, error)

	value() interface{}
	equals(Scalar) bool
}

// Releasable is implemented by the scalars that hold a reference on a
// buffer or an array and should be released when no longer needed.
type Releasable interface {
	Retain()
	Release()
}

type scalar struct {
	Type  quiver.DataType
	Valid bool
}

func (s *scalar) String() string {
	if !s.Valid {
		return "null"
	}
	return "..."
}

func (s *scalar) IsValid() bool             { return s.Valid }
func (s *scalar) DataType() quiver.DataType { return s.Type }
func (s *scalar) value() interface{}        { return nil }

func (s *scalar) Validate() error {
	if s.Type == nil {
		return fmt.Errorf("%w: scalar lacks a type", quiver.ErrInvalid)
	}
	return nil
}

func (s *scalar) ValidateFull() error { return s.Validate() }

// validateOptional checks that a scalar holding a reference value agrees
// with its validity flag. A valid scalar must carry a value, a null scalar
// must not.
func validateOptional(s *scalar, value interface{}, desc string) error {
	if s.Valid && reflect.ValueOf(value).IsNil() {
		return fmt.Errorf("%w: %s scalar is marked valid but doesn't have a %s", quiver.ErrInvalid, s.Type, desc)
	}
	if !s.Valid && value != nil && !reflect.ValueOf(value).IsNil() {
		return fmt.Errorf("%w: %s scalar is marked null but has a %s", quiver.ErrInvalid, s.Type, desc)
	}
	return nil
}

// Null is a scalar of the NULL type, it can have no value. Typed nulls of
// the other types are represented by their scalar type with the validity
// flag unset.
type Null struct {
	scalar
}

func (n *Null) equals(Scalar) bool { return true }
func (n *Null) CastTo(to quiver.DataType) (Scalar, error) {
	return MakeNullScalar(to), nil
}

func (n *Null) Validate() (err error) {
	err = n.scalar.Validate()
	if err != nil {
		return
	}
	if n.Valid {
		err = fmt.Errorf("%w: null scalar should have Valid = false", quiver.ErrInvalid)
	}
	return
}

func (n *Null) ValidateFull() error { return n.Validate() }

// ScalarNull is a singleton instance for the null scalar of the NULL type.
var ScalarNull *Null = &Null{scalar{Type: quiver.Null, Valid: false}}

// Boolean is a scalar holding a bool value.
type Boolean struct {
	scalar
	Value bool
}

func (b *Boolean) value() interface{} { return b.Value }
func (b *Boolean) equals(rhs Scalar) bool {
	return b.Value == rhs.(*Boolean).Value
}

func (b *Boolean) String() string {
	if !b.Valid {
		return "null"
	}
	return strconv.FormatBool(b.Value)
}

func (b *Boolean) CastTo(to quiver.DataType) (Scalar, error) {
	if !b.Valid {
		return MakeNullScalar(to), nil
	}

	switch {
	case to.ID() == quiver.BOOL:
		return b, nil
	case quiver.IsNumeric(to.ID()):
		var val uint8
		if b.Value {
			val = 1
		}
		return NewUint8Scalar(val).CastTo(to)
	case to.ID() == quiver.STRING:
		return NewStringScalar(strconv.FormatBool(b.Value)), nil
	}

	return nil, fmt.Errorf("%w: cannot cast non-null boolean scalar to type %s", quiver.ErrNotImplemented, to)
}

// NewBooleanScalar creates a valid scalar holding a bool value.
func NewBooleanScalar(val bool) *Boolean {
	return &Boolean{scalar{quiver.FixedWidthTypes.Boolean, true}, val}
}

// PrimitiveScalar is implemented by the scalars that are backed by a
// fixed-width value, exposing the raw bytes in native byte order.
type PrimitiveScalar interface {
	Scalar
	Data() []byte
}

// Dictionary is a scalar of dictionary-encoded type: an integral index
// scalar together with the dictionary array the index points into.
type Dictionary struct {
	scalar

	Value struct {
		Index Scalar
		Dict  quiver.Array
	}
}

// NewDictScalar constructs a dictionary scalar from an index scalar and a
// dictionary array, retaining the dictionary. The scalar is valid whenever
// the index is.
func NewDictScalar(index Scalar, dict quiver.Array) *Dictionary {
	dict.Retain()
	ret := &Dictionary{scalar: scalar{&quiver.DictionaryType{
		IndexType: index.DataType(), ValueType: dict.DataType()}, index.IsValid()}}
	ret.Value.Index = index
	ret.Value.Dict = dict
	return ret
}

func (s *Dictionary) Retain() {
	if s.Value.Dict != nil {
		s.Value.Dict.Retain()
	}
}

func (s *Dictionary) Release() {
	if s.Value.Dict != nil {
		s.Value.Dict.Release()
	}
}

func (s *Dictionary) value() interface{} { return s.Value }

func (s *Dictionary) equals(rhs Scalar) bool {
	lv, err := s.GetEncodedValue()
	if err != nil {
		return false
	}
	rv, err := rhs.(*Dictionary).GetEncodedValue()
	if err != nil {
		return false
	}
	return Equals(lv, rv)
}

func (s *Dictionary) String() string {
	if !s.Valid {
		return "null"
	}
	val, err := s.GetEncodedValue()
	if err != nil {
		return "..."
	}
	return val.String()
}

func (s *Dictionary) indexValue() (int, error) {
	// every integral scalar is a Number[T] with a Value field,
	// so one reflective read covers all eight index types
	v := reflect.Indirect(reflect.ValueOf(s.Value.Index)).FieldByName("Value")
	switch v.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(v.Uint()), nil
	}
	return -1, fmt.Errorf("%w: dictionary index type must be integral, got %s",
		quiver.ErrInvalid, s.Value.Index.DataType())
}

// GetEncodedValue returns the dictionary value the index scalar points at,
// or a null scalar of the value type if this scalar is null.
func (s *Dictionary) GetEncodedValue() (Scalar, error) {
	if !s.Valid {
		return MakeNullScalar(s.Type.(*quiver.DictionaryType).ValueType), nil
	}

	idx, err := s.indexValue()
	if err != nil {
		return nil, err
	}
	return GetScalar(s.Value.Dict, idx)
}

func (s *Dictionary) CastTo(to quiver.DataType) (Scalar, error) {
	if !s.Valid {
		return MakeNullScalar(to), nil
	}

	val, err := s.GetEncodedValue()
	if err != nil {
		return nil, err
	}
	return val.CastTo(to)
}

func (s *Dictionary) Validate() (err error) {
	if err = s.scalar.Validate(); err != nil {
		return
	}
	if err = s.Value.Index.Validate(); err != nil {
		return
	}

	dt := s.Type.(*quiver.DictionaryType)
	if !quiver.TypeEqual(dt.IndexType, s.Value.Index.DataType()) {
		return fmt.Errorf("%w: dictionary scalar index type %s doesn't match type %s",
			quiver.ErrInvalid, s.Value.Index.DataType(), dt)
	}
	if s.Valid {
		if s.Value.Dict == nil {
			return fmt.Errorf("%w: non-null dictionary scalar lacks a dictionary", quiver.ErrInvalid)
		}
		if !quiver.TypeEqual(dt.ValueType, s.Value.Dict.DataType()) {
			return fmt.Errorf("%w: dictionary scalar dictionary type %s doesn't match type %s",
				quiver.ErrInvalid, s.Value.Dict.DataType(), dt)
		}
	}
	return
}

func (s *Dictionary) ValidateFull() (err error) {
	if err = s.Validate(); err != nil {
		return
	}
	if s.Valid {
		var idx int
		if idx, err = s.indexValue(); err != nil {
			return
		}
		if idx < 0 || idx >= s.Value.Dict.Len() {
			return fmt.Errorf("%w: dictionary scalar index %d for dictionary of length %d",
				quiver.ErrIndexOutOfBounds, idx, s.Value.Dict.Len())
		}
	}
	return
}

type scalarMakeNullFn func(quiver.DataType) Scalar

var makeNullFn [16]scalarMakeNullFn

func invalidScalarType(dt quiver.DataType) Scalar {
	panic("invalid scalar type: " + dt.ID().String())
}

func init() {
	makeNullFn = [...]scalarMakeNullFn{
		quiver.NULL:    func(quiver.DataType) Scalar { return ScalarNull },
		quiver.BOOL:    func(dt quiver.DataType) Scalar { return &Boolean{scalar: scalar{dt, false}} },
		quiver.UINT8:   func(dt quiver.DataType) Scalar { return &Uint8{scalar: scalar{dt, false}} },
		quiver.INT8:    func(dt quiver.DataType) Scalar { return &Int8{scalar: scalar{dt, false}} },
		quiver.UINT16:  func(dt quiver.DataType) Scalar { return &Uint16{scalar: scalar{dt, false}} },
		quiver.INT16:   func(dt quiver.DataType) Scalar { return &Int16{scalar: scalar{dt, false}} },
		quiver.UINT32:  func(dt quiver.DataType) Scalar { return &Uint32{scalar: scalar{dt, false}} },
		quiver.INT32:   func(dt quiver.DataType) Scalar { return &Int32{scalar: scalar{dt, false}} },
		quiver.UINT64:  func(dt quiver.DataType) Scalar { return &Uint64{scalar: scalar{dt, false}} },
		quiver.INT64:   func(dt quiver.DataType) Scalar { return &Int64{scalar: scalar{dt, false}} },
		quiver.FLOAT32: func(dt quiver.DataType) Scalar { return &Float32{scalar: scalar{dt, false}} },
		quiver.FLOAT64: func(dt quiver.DataType) Scalar { return &Float64{scalar: scalar{dt, false}} },
		quiver.STRING:  func(dt quiver.DataType) Scalar { return &String{&Binary{scalar: scalar{dt, false}}} },
		quiver.BINARY:  func(dt quiver.DataType) Scalar { return &Binary{scalar: scalar{dt, false}} },
		quiver.DICTIONARY: func(dt quiver.DataType) Scalar {
			ret := &Dictionary{scalar: scalar{dt, false}}
			ret.Value.Index = MakeNullScalar(dt.(*quiver.DictionaryType).IndexType)
			return ret
		},
		15: invalidScalarType,
	}
}

// MakeNullScalar creates a null scalar of the given data type.
func MakeNullScalar(dt quiver.DataType) Scalar {
	return makeNullFn[byte(dt.ID()&0xf)](dt)
}

// Hash returns a stable hash of the scalar's type and value using the given
// seed. Scalars that compare equal via Equals hash to the same value; all
// null scalars hash to zero.
func Hash(seed maphash.Seed, s Scalar) uint64 {
	if !s.IsValid() || s.DataType().ID() == quiver.NULL {
		return 0
	}

	var h maphash.Hash
	h.SetSeed(seed)
	binary.Write(&h, endian.Native, uint64(s.DataType().ID()))
	out := h.Sum64()
	h.Reset()

	hash := func() {
		out ^= h.Sum64()
		h.Reset()
	}

	switch s := s.(type) {
	case *Boolean:
		if s.Value {
			h.WriteByte(1)
		} else {
			h.WriteByte(0)
		}
		hash()
	case *Dictionary:
		out ^= Hash(seed, s.Value.Index)
	case PrimitiveScalar:
		h.Write(s.Data())
		hash()
	}

	return out
}

// GetScalar creates a scalar object from the value at a given index in the
// passed in array, returning an error if unable to do so.
func GetScalar(arr quiver.Array, idx int) (Scalar, error) {
	if arr.IsNull(idx) {
		return MakeNullScalar(arr.DataType()), nil
	}

	switch arr := arr.(type) {
	case *array.Null:
		return ScalarNull, nil
	case *array.Boolean:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Int8:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Uint8:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Int16:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Uint16:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Int32:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Uint32:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Int64:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Uint64:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Float32:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Float64:
		return MakeScalar(arr.Value(idx)), nil
	case *array.Binary:
		buf := memory.NewBufferBytes(arr.Value(idx))
		defer buf.Release()
		return NewBinaryScalar(buf, arr.DataType()), nil
	case *array.String:
		return NewStringScalar(arr.Value(idx)), nil
	case *array.Dictionary:
		ty := arr.DataType().(*quiver.DictionaryType)
		width := ty.IndexType.(quiver.FixedWidthDataType).BitWidth()

		var (
			index Scalar
			err   error
		)
		switch {
		case quiver.IsSignedInteger(ty.IndexType.ID()):
			index, err = MakeIntegerScalar(int64(arr.GetValueIndex(idx)), width)
		case quiver.IsUnsignedInteger(ty.IndexType.ID()):
			index, err = MakeUnsignedIntegerScalar(uint64(arr.GetValueIndex(idx)), width)
		default:
			err = fmt.Errorf("%w: dictionary index type must be integral, got %s", quiver.ErrInvalid, ty.IndexType)
		}
		if err != nil {
			return nil, err
		}
		return NewDictScalar(index, arr.Dictionary()), nil
	}

	return nil, fmt.Errorf("%w: cannot create scalar from array of type %s", quiver.ErrNotImplemented, arr.DataType())
}

// MakeArrayFromScalar returns an array of the given length filled with the
// scalar's value, using mem for the backing buffers. A null scalar produces
// an all-null array of its type.
func MakeArrayFromScalar(sc Scalar, length int, mem memory.Allocator) (quiver.Array, error) {
	if !sc.IsValid() {
		return array.MakeArrayOfNull(mem, sc.DataType(), length), nil
	}

	buildArray := func(buffers ...*memory.Buffer) quiver.Array {
		data := array.NewData(sc.DataType(), length, buffers, nil, 0, 0)
		defer data.Release()
		return array.MakeFromData(data)
	}

	// repeatBytes tiles the value's bytes length times into a fresh buffer
	repeatBytes := func(data []byte) *memory.Buffer {
		buf := memory.NewResizableBuffer(mem)
		buf.Resize(len(data) * length)
		dst := buf.Bytes()
		for i := 0; i < length; i++ {
			copy(dst[i*len(data):], data)
		}
		return buf
	}

	switch s := sc.(type) {
	case *Boolean:
		buf := memory.NewResizableBuffer(mem)
		buf.Resize(int(bitutil.BytesForBits(int64(length))))
		defer buf.Release()
		bitutil.SetBitsTo(buf.Bytes(), 0, int64(length), s.Value)
		return buildArray(nil, buf), nil
	case BinaryScalar:
		data := s.Data()
		offsets := memory.NewResizableBuffer(mem)
		offsets.Resize(quiver.Int32Traits.BytesRequired(length + 1))
		defer offsets.Release()

		// every slot holds the same value, so offsets advance by a
		// fixed stride
		out := quiver.Int32Traits.CastFromBytes(offsets.Bytes())
		for i := range out {
			out[i] = int32(i * len(data))
		}

		values := repeatBytes(data)
		defer values.Release()
		return buildArray(nil, offsets, values), nil
	case PrimitiveScalar:
		buf := repeatBytes(s.Data())
		defer buf.Release()
		return buildArray(nil, buf), nil
	case *Dictionary:
		indices, err := MakeArrayFromScalar(s.Value.Index, length, mem)
		if err != nil {
			return nil, err
		}
		defer indices.Release()
		return array.NewDictionaryArray(sc.DataType(), indices, s.Value.Dict), nil
	}

	return nil, fmt.Errorf("%w: array from scalar not implemented for type %s", quiver.ErrNotImplemented, sc.DataType())
}

var (
	_ Scalar     = (*Null)(nil)
	_ Scalar     = (*Boolean)(nil)
	_ Scalar     = (*Dictionary)(nil)
	_ Releasable = (*Dictionary)(nil)
)
