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
	"strings"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/memory"
)

// Boolean is an immutable sequence of booleans, stored one bit per value.
type Boolean struct {
	array
	values []byte
}

// NewBoolean creates a boolean array over the given value bitmap. nullBitmap
// may be nil when every element is valid; pass UnknownNullCount for nulls to
// have NullN computed lazily from the bitmap.
func NewBoolean(length int, data *memory.Buffer, nullBitmap *memory.Buffer, nulls int) *Boolean {
	ad := NewData(quiver.FixedWidthTypes.Boolean, length, []*memory.Buffer{nullBitmap, data}, nil, nulls, 0)
	return NewBooleanData(ad)
}

func NewBooleanData(data quiver.ArrayData) *Boolean {
	a := &Boolean{}
	a.refCount = 1
	a.setData(data.(*Data))
	return a
}

func (a *Boolean) setData(data *Data) {
	a.array.setData(data)
	if buf := data.buffers[1]; buf != nil {
		a.values = buf.Bytes()
	}
}

func (a *Boolean) Value(i int) bool {
	if i < 0 || i >= a.data.length {
		panic("quiver/array: index out of range")
	}
	return bitutil.BitIsSet(a.values, a.data.offset+i)
}

func (a *Boolean) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < a.Len(); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if a.IsNull(i) {
			sb.WriteString("(null)")
		} else {
			fmt.Fprintf(&sb, "%v", a.Value(i))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func (a *Boolean) GetOneForMarshal(i int) interface{} {
	if a.IsNull(i) {
		return nil
	}
	return a.Value(i)
}

func (a *Boolean) MarshalJSON() ([]byte, error) {
	vals := make([]interface{}, a.Len())
	for i := range vals {
		vals[i] = a.GetOneForMarshal(i)
	}
	return json.Marshal(vals)
}

// arrayEqualBoolean assumes both sides already have equal length and
// identical null bitmaps.
func arrayEqualBoolean(left, right *Boolean) bool {
	for i := 0; i < left.Len(); i++ {
		if !left.IsNull(i) && left.Value(i) != right.Value(i) {
			return false
		}
	}
	return true
}

var _ quiver.Array = (*Boolean)(nil)
