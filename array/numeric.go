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
	"math"
	"strings"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver"
)

// Number is an immutable sequence of fixed-width numeric values, its
// concrete instantiations are exported under the usual type aliases
// (Int8 through Float64).
type Number[T quiver.FixedWidthType] struct {
	array
	values []T
}

// Aliases for the instantiated numeric array types. The rest of the
// codebase refers to arrays through these names.
type (
	Int8    = Number[int8]
	Int16   = Number[int16]
	Int32   = Number[int32]
	Int64   = Number[int64]
	Uint8   = Number[uint8]
	Uint16  = Number[uint16]
	Uint32  = Number[uint32]
	Uint64  = Number[uint64]
	Float32 = Number[float32]
	Float64 = Number[float64]
)

func newNumberData[T quiver.FixedWidthType](data quiver.ArrayData) *Number[T] {
	a := &Number[T]{}
	a.refCount = 1
	a.setData(data.(*Data))
	return a
}

func NewInt8Data(data quiver.ArrayData) *Int8       { return newNumberData[int8](data) }
func NewInt16Data(data quiver.ArrayData) *Int16     { return newNumberData[int16](data) }
func NewInt32Data(data quiver.ArrayData) *Int32     { return newNumberData[int32](data) }
func NewInt64Data(data quiver.ArrayData) *Int64     { return newNumberData[int64](data) }
func NewUint8Data(data quiver.ArrayData) *Uint8     { return newNumberData[uint8](data) }
func NewUint16Data(data quiver.ArrayData) *Uint16   { return newNumberData[uint16](data) }
func NewUint32Data(data quiver.ArrayData) *Uint32   { return newNumberData[uint32](data) }
func NewUint64Data(data quiver.ArrayData) *Uint64   { return newNumberData[uint64](data) }
func NewFloat32Data(data quiver.ArrayData) *Float32 { return newNumberData[float32](data) }
func NewFloat64Data(data quiver.ArrayData) *Float64 { return newNumberData[float64](data) }

// Reset resets the array for re-use.
func (a *Number[T]) Reset(data *Data) {
	a.setData(data)
}

// Value returns the value at the specified index.
func (a *Number[T]) Value(i int) T { return a.values[i] }

// Values returns the values.
func (a *Number[T]) Values() []T { return a.values }

func (a *Number[T]) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range a.values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if a.IsNull(i) {
			sb.WriteString("(null)")
		} else {
			fmt.Fprintf(&sb, "%v", v)
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func (a *Number[T]) setData(data *Data) {
	a.array.setData(data)
	if buf := data.buffers[1]; buf != nil {
		beg := a.data.offset
		a.values = quiver.GetData[T](buf.Bytes())[beg : beg+a.data.length]
	}
}

func (a *Number[T]) GetOneForMarshal(i int) interface{} {
	if a.IsNull(i) {
		return nil
	}
	v := a.values[i]
	switch f := any(v).(type) {
	case float32:
		if s := nonFiniteName(float64(f)); s != "" {
			return s
		}
	case float64:
		if s := nonFiniteName(f); s != "" {
			return s
		}
	}
	return v
}

// nonFiniteName returns the string substituted for the float values JSON
// cannot represent as numbers, or "" if f is finite. The builders parse
// these names back via strconv.ParseFloat.
func nonFiniteName(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return ""
}

func (a *Number[T]) MarshalJSON() ([]byte, error) {
	vals := make([]interface{}, a.Len())
	for i := range a.values {
		vals[i] = a.GetOneForMarshal(i)
	}
	return json.Marshal(vals)
}

func arrayEqualNumber[T quiver.FixedWidthType](left, right *Number[T]) bool {
	for i := 0; i < left.Len(); i++ {
		if !left.IsNull(i) && left.Value(i) != right.Value(i) {
			return false
		}
	}
	return true
}

var (
	_ quiver.Array = (*Int64)(nil)
	_ quiver.Array = (*Float64)(nil)
)
