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
	"strings"
	"unsafe"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver"
)

// A type which represents an immutable sequence of variable-length binary strings.
type Binary struct {
	array
	valueOffsets []int32
	valueBytes   []byte
}

// NewBinaryData constructs a new Binary array from data.
func NewBinaryData(data quiver.ArrayData) *Binary {
	a := &Binary{}
	a.refCount = 1
	a.setData(data.(*Data))
	return a
}

func (a *Binary) setData(data *Data) {
	if len(data.buffers) != 3 {
		panic("len(data.buffers) != 3")
	}

	a.array.setData(data)

	if buf := data.buffers[2]; buf != nil {
		a.valueBytes = buf.Bytes()
	}
	if buf := data.buffers[1]; buf != nil {
		a.valueOffsets = quiver.Int32Traits.CastFromBytes(buf.Bytes())
	}

	if a.data.length < 1 {
		return
	}

	// a length-n array needs n+1 offsets, the last of which bounds the
	// value bytes
	need := a.data.offset + a.data.length + 1
	if len(a.valueOffsets) < need {
		panic(fmt.Errorf("quiver/array: binary offset buffer must have at least %d values", need))
	}
	if int(a.valueOffsets[need-1]) > len(a.valueBytes) {
		panic("quiver/array: binary offsets out of bounds of data buffer")
	}
}

// Value returns the slice at index i. This value should not be mutated.
func (a *Binary) Value(i int) []byte {
	if i < 0 || i >= a.data.length {
		panic("quiver/array: index out of range")
	}
	j := a.data.offset + i
	return a.valueBytes[a.valueOffsets[j]:a.valueOffsets[j+1]]
}

// ValueString returns the string at index i without performing additional allocations.
// The string is only valid for the lifetime of the Binary array.
func (a *Binary) ValueString(i int) string {
	b := a.Value(i)
	return *(*string)(unsafe.Pointer(&b))
}

func (a *Binary) ValueOffset(i int) int {
	if i < 0 || i > a.data.length {
		panic("quiver/array: index out of range")
	}
	return int(a.valueOffsets[a.data.offset+i])
}

func (a *Binary) ValueLen(i int) int {
	if i < 0 || i >= a.data.length {
		panic("quiver/array: index out of range")
	}
	j := a.data.offset + i
	return int(a.valueOffsets[j+1] - a.valueOffsets[j])
}

func (a *Binary) ValueOffsets() []int32 {
	beg := a.data.offset
	return a.valueOffsets[beg : beg+a.data.length+1]
}

func (a *Binary) ValueBytes() []byte {
	beg := a.data.offset
	end := beg + a.data.length
	return a.valueBytes[a.valueOffsets[beg]:a.valueOffsets[end]]
}

func (a *Binary) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < a.Len(); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if a.IsNull(i) {
			sb.WriteString("(null)")
		} else {
			fmt.Fprintf(&sb, "%q", a.ValueString(i))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func (a *Binary) GetOneForMarshal(i int) interface{} {
	if a.IsNull(i) {
		return nil
	}
	return a.Value(i)
}

func (a *Binary) MarshalJSON() ([]byte, error) {
	vals := make([]interface{}, a.Len())
	for i := range vals {
		vals[i] = a.GetOneForMarshal(i)
	}
	// a []byte value marshals as a base64-encoded string per the
	// encoding/json conventions, which the binary builder decodes.
	return json.Marshal(vals)
}

func arrayEqualBinary(left, right *Binary) bool {
	for i := 0; i < left.Len(); i++ {
		if !left.IsNull(i) && !bytes.Equal(left.Value(i), right.Value(i)) {
			return false
		}
	}
	return true
}

var _ quiver.Array = (*Binary)(nil)
