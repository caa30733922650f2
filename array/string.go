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
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"unsafe"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/memory"
)

// String represents an immutable sequence of variable-length UTF-8 strings.
type String struct {
	array
	offsets []int32
	values  string
}

// NewStringData constructs a new String array from data.
func NewStringData(data quiver.ArrayData) *String {
	a := &String{}
	a.refCount = 1
	a.setData(data.(*Data))
	return a
}

// Reset resets the String with a different set of Data.
func (a *String) Reset(data quiver.ArrayData) {
	a.setData(data.(*Data))
}

func (a *String) setData(data *Data) {
	if len(data.buffers) != 3 {
		panic("len(data.buffers) != 3")
	}

	a.array.setData(data)

	if buf := data.buffers[2]; buf != nil {
		b := buf.Bytes()
		a.values = *(*string)(unsafe.Pointer(&b))
	}
	if buf := data.buffers[1]; buf != nil {
		a.offsets = quiver.Int32Traits.CastFromBytes(buf.Bytes())
	}

	if a.data.length < 1 {
		return
	}

	need := a.data.offset + a.data.length + 1
	if len(a.offsets) < need {
		panic(fmt.Errorf("quiver/array: string offset buffer must have at least %d values", need))
	}
	if int(a.offsets[need-1]) > len(a.values) {
		panic("quiver/array: string offsets out of bounds of data buffer")
	}
}

// Value returns the slice at index i. This value should not be mutated.
func (a *String) Value(i int) string {
	j := i + a.data.offset
	return a.values[a.offsets[j]:a.offsets[j+1]]
}

// ValueOffset returns the offset of the value at index i.
func (a *String) ValueOffset(i int) int {
	if i < 0 || i > a.data.length {
		panic("quiver/array: index out of range")
	}
	return int(a.offsets[i+a.data.offset])
}

func (a *String) ValueLen(i int) int {
	if i < 0 || i >= a.data.length {
		panic("quiver/array: index out of range")
	}
	j := a.data.offset + i
	return int(a.offsets[j+1] - a.offsets[j])
}

func (a *String) ValueOffsets() []int32 {
	beg := a.data.offset
	return a.offsets[beg : beg+a.data.length+1]
}

func (a *String) ValueBytes() []byte {
	if a.data.buffers[2] == nil {
		return nil
	}
	beg := a.data.offset
	end := beg + a.data.length
	return a.data.buffers[2].Bytes()[a.offsets[beg]:a.offsets[end]]
}

func (a *String) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < a.Len(); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if a.IsNull(i) {
			sb.WriteString("(null)")
		} else {
			fmt.Fprintf(&sb, "%q", a.Value(i))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func (a *String) GetOneForMarshal(i int) interface{} {
	if a.IsNull(i) {
		return nil
	}
	return a.Value(i)
}

func (a *String) MarshalJSON() ([]byte, error) {
	vals := make([]interface{}, a.Len())
	for i := range vals {
		vals[i] = a.GetOneForMarshal(i)
	}
	return json.Marshal(vals)
}

func arrayEqualString(left, right *String) bool {
	for i := 0; i < left.Len(); i++ {
		if !left.IsNull(i) && left.Value(i) != right.Value(i) {
			return false
		}
	}
	return true
}

// A StringBuilder is used to build a String array using the Append methods.
// It wraps the binary builder, converting between string and []byte at the
// boundary.
type StringBuilder struct {
	*BinaryBuilder
}

// NewStringBuilder creates a new StringBuilder.
func NewStringBuilder(mem memory.Allocator) *StringBuilder {
	return &StringBuilder{NewBinaryBuilder(mem, quiver.BinaryTypes.String)}
}

func (b *StringBuilder) Type() quiver.DataType { return quiver.BinaryTypes.String }

// Append appends a string to the builder.
func (b *StringBuilder) Append(v string) {
	b.BinaryBuilder.Append([]byte(v))
}

// AppendValues will append the values in the v slice. The valid slice determines which values
// in v are valid (not null). The valid slice must either be empty or be equal in length to v. If empty,
// all values in v are appended and considered valid.
func (b *StringBuilder) AppendValues(v []string, valid []bool) {
	b.BinaryBuilder.AppendStringValues(v, valid)
}

// Value returns the string at index i.
func (b *StringBuilder) Value(i int) string {
	return string(b.BinaryBuilder.Value(i))
}

// NewArray creates a String array from the memory buffers used by the builder and resets the StringBuilder
// so it can be used to build a new array.
func (b *StringBuilder) NewArray() quiver.Array {
	return b.NewStringArray()
}

// NewStringArray creates a String array from the memory buffers used by the builder and resets the StringBuilder
// so it can be used to build a new array.
func (b *StringBuilder) NewStringArray() *String {
	data := b.newData()
	defer data.Release()
	return NewStringData(data)
}

func (b *StringBuilder) UnmarshalOne(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := t.(type) {
	case nil:
		b.AppendNull()
	case string:
		b.Append(v)
	default:
		return &json.UnmarshalTypeError{
			Value:  fmt.Sprint(t),
			Type:   reflect.TypeOf(""),
			Offset: dec.InputOffset(),
		}
	}
	return nil
}

func (b *StringBuilder) Unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.UnmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

func (b *StringBuilder) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("string builder must unpack from json array, found %s", delim)
	}

	return b.Unmarshal(dec)
}

var (
	_ quiver.Array = (*String)(nil)
	_ Builder      = (*StringBuilder)(nil)
)
