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

package compute

import (
	"fmt"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/scalar"
)

// DatumKind is an enum used for denoting which kind of type a datum is
// encapsulating.
type DatumKind int

const (
	KindNone   DatumKind = iota // none
	KindScalar                  // scalar
	KindArray                   // array
)

var datumKindNames = [...]string{"none", "scalar", "array"}

func (d DatumKind) String() string {
	if d < 0 || int(d) >= len(datumKindNames) {
		return "none"
	}
	return datumKindNames[d]
}

const UnknownLength int64 = -1

// Datum is a variant interface for wrapping the various values
// passed to and from compute functions.
type Datum interface {
	fmt.Stringer
	Kind() DatumKind
	Len() int64
	Equals(Datum) bool
	Release()
}

// ArrayLikeDatum is an interface for treating a Datum similarly to an
// Array, so that it is easy to differentiate between Record/Table like
// values and those that hold a single type.
type ArrayLikeDatum interface {
	Datum
	NullN() int64
	Type() quiver.DataType
}

// EmptyDatum is the null case, a datum with no value.
type EmptyDatum struct{}

func (EmptyDatum) String() string  { return "nullptr" }
func (EmptyDatum) Kind() DatumKind { return KindNone }
func (EmptyDatum) Len() int64      { return UnknownLength }
func (EmptyDatum) Release()        {}
func (EmptyDatum) Equals(other Datum) bool {
	_, ok := other.(EmptyDatum)
	return ok
}

// ScalarDatum contains a scalar value.
type ScalarDatum struct {
	Value scalar.Scalar
}

func (ScalarDatum) Kind() DatumKind            { return KindScalar }
func (ScalarDatum) Len() int64                 { return 1 }
func (d *ScalarDatum) Type() quiver.DataType   { return d.Value.DataType() }
func (d *ScalarDatum) String() string          { return d.Value.String() }
func (d *ScalarDatum) ToScalar() scalar.Scalar { return d.Value }

func (d *ScalarDatum) NullN() int64 {
	if !d.Value.IsValid() {
		return 1
	}
	return 0
}

type releasable interface {
	Release()
}

func (d *ScalarDatum) Release() {
	if v, ok := d.Value.(releasable); ok {
		v.Release()
	}
}

func (d *ScalarDatum) Equals(other Datum) bool {
	rhs, ok := other.(*ScalarDatum)
	return ok && scalar.Equals(d.Value, rhs.Value)
}

// ArrayDatum references an array's underlying data, so that releasing
// the datum does not invalidate other views of the same data.
type ArrayDatum struct {
	Value quiver.ArrayData
}

func (ArrayDatum) Kind() DatumKind          { return KindArray }
func (d *ArrayDatum) Type() quiver.DataType { return d.Value.DataType() }
func (d *ArrayDatum) Len() int64            { return int64(d.Value.Len()) }
func (d *ArrayDatum) NullN() int64          { return int64(d.Value.NullN()) }
func (d *ArrayDatum) String() string        { return fmt.Sprintf("Array:{%s}", d.Value.DataType()) }

// MakeArray constructs a strongly typed array from the datum's data,
// sharing (and retaining) the underlying buffers.
func (d *ArrayDatum) MakeArray() quiver.Array { return array.MakeFromData(d.Value) }

func (d *ArrayDatum) Release() {
	d.Value.Release()
	d.Value = nil
}

func (d *ArrayDatum) Equals(other Datum) bool {
	rhs, ok := other.(*ArrayDatum)
	if !ok {
		return false
	}

	left := d.MakeArray()
	defer left.Release()
	right := rhs.MakeArray()
	defer right.Release()

	return array.Equal(left, right)
}

// NewDatum constructs a Datum for the given value. Arrays and array
// data are wrapped in an ArrayDatum, retaining the data. Scalars are
// wrapped in a ScalarDatum, and any other value is converted to a
// scalar via scalar.MakeScalar, so plain Go values such as int64 or
// string can be passed directly to compute functions.
func NewDatum(value interface{}) Datum {
	switch v := value.(type) {
	case Datum:
		return NewDatum(datumToValue(v))
	case quiver.Array:
		v.Data().Retain()
		return &ArrayDatum{Value: v.Data()}
	case quiver.ArrayData:
		v.Retain()
		return &ArrayDatum{Value: v}
	case scalar.Scalar:
		return &ScalarDatum{Value: v}
	default:
		return &ScalarDatum{Value: scalar.MakeScalar(value)}
	}
}

// NewDatumWithoutOwning is like NewDatum, except it does not retain a
// reference to the passed in value. The caller keeps ownership and the
// returned Datum should not be released.
func NewDatumWithoutOwning(value interface{}) Datum {
	switch v := value.(type) {
	case quiver.Array:
		return &ArrayDatum{Value: v.Data()}
	case quiver.ArrayData:
		return &ArrayDatum{Value: v}
	default:
		return NewDatum(value)
	}
}

func datumToValue(d Datum) interface{} {
	switch d := d.(type) {
	case *ArrayDatum:
		return d.Value
	case *ScalarDatum:
		return d.Value
	}
	panic(fmt.Sprintf("no value for datum kind %s", d.Kind()))
}

// DatumIsValue returns true if the datum passed is a Scalar or Array
// value, i.e. it can be used as an argument to a function call.
func DatumIsValue(d Datum) bool {
	k := d.Kind()
	return k == KindScalar || k == KindArray
}
