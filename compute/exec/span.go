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
	"sync/atomic"
	"unsafe"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/memory"
	"github.com/quiverdata/quiver/scalar"
)

// BufferSpan is a non-owning view of one buffer of an ArraySpan. It can
// point into an existing memory.Buffer or directly at raw bytes.
type BufferSpan struct {
	// Buf is the byte view of the buffer; a nil Buf means the span is
	// empty.
	Buf []byte
	// Owner, when non-nil, is the memory.Buffer the bytes live in. The
	// span holds no reference on it, so the buffer must stay alive for
	// as long as the span points at it.
	Owner *memory.Buffer
	// SelfAlloc marks spans whose Owner was allocated for this span
	// alone, as happens with preallocated output buffers or buffers a
	// kernel allocated for its result. Converting such a span into
	// ArrayData transfers that reference instead of adding one.
	SelfAlloc bool
}

// SetBuffer points the span at an externally owned buffer.
func (b *BufferSpan) SetBuffer(buf *memory.Buffer) {
	b.Buf = buf.Bytes()
	b.Owner = buf
	b.SelfAlloc = false
}

// WrapBuffer points the span at a buffer allocated for this execution,
// whose reference the span now tracks.
func (b *BufferSpan) WrapBuffer(buf *memory.Buffer) {
	b.Buf = buf.Bytes()
	b.Owner = buf
	b.SelfAlloc = true
}

// reset detaches the span from any buffer.
func (b *BufferSpan) reset() {
	b.Buf = nil
	b.Owner = nil
	b.SelfAlloc = false
}

func getNumBuffers(dt quiver.DataType) int {
	switch dt.ID() {
	case quiver.NULL:
		return 1
	case quiver.BINARY, quiver.STRING:
		return 3
	default:
		return 2
	}
}

// FillZeroLength configures span as a zero-length array of the given type,
// pointing its buffers at the scratch space so nothing is allocated.
func FillZeroLength(dt quiver.DataType, span *ArraySpan) {
	span.Scratch[0], span.Scratch[1] = 0, 0
	span.Type = dt
	span.Len = 0
	if dt.ID() == quiver.NULL {
		span.Nulls = 0
	}

	n := getNumBuffers(dt)
	for i := range span.Buffers {
		span.Buffers[i].reset()
		if i < n {
			span.Buffers[i].Buf = quiver.GetBytes(span.Scratch[:])[:0]
		}
	}

	if dt.ID() == quiver.DICTIONARY {
		span.resizeChildren(1)
		FillZeroLength(dt.(*quiver.DictionaryType).ValueType, &span.Children[0])
		return
	}
	span.Children = span.Children[:0]
}

// PromoteExecSpanScalars replaces every scalar value in the span with a
// length-1 ArraySpan, so kernels need only handle array inputs.
func PromoteExecSpanScalars(span ExecSpan) {
	for i := range span.Values {
		v := &span.Values[i]
		if v.Scalar != nil {
			v.Array.FillFromScalar(v.Scalar)
			v.Scalar = nil
		}
	}
}

// ArraySpan is the non-owning counterpart of ArrayData used inside the
// execution engine. Buffers are plain views that can be repointed freely
// without any retain/release bookkeeping during computation.
type ArraySpan struct {
	Type    quiver.DataType
	Len     int64
	Nulls   int64
	Offset  int64
	Buffers [3]BufferSpan

	// Scratch holds the small allocations needed when a scalar is viewed
	// as an array: a one-element offsets buffer or a boxed value.
	Scratch [2]uint64

	// Children is used only by dictionary spans, where Children[0] holds
	// the dictionary itself.
	Children []ArraySpan
}

// UpdateNullCount returns the null count, counting the validity bitmap
// bits first if the count is currently unknown.
func (a *ArraySpan) UpdateNullCount() int64 {
	if n := atomic.LoadInt64(&a.Nulls); n != array.UnknownNullCount {
		return n
	}

	n := a.Len - int64(bitutil.CountSetBits(a.Buffers[0].Buf, int(a.Offset), int(a.Len)))
	atomic.StoreInt64(&a.Nulls, n)
	return n
}

// Dictionary returns the child span holding the dictionary values.
func (a *ArraySpan) Dictionary() *ArraySpan { return &a.Children[0] }

// NumBuffers returns how many buffers this span's type uses.
func (a *ArraySpan) NumBuffers() int { return getNumBuffers(a.Type) }

// MayHaveNulls reports whether a validity bitmap exists and the null
// count is nonzero; the count itself may still be unknown.
func (a *ArraySpan) MayHaveNulls() bool {
	return atomic.LoadInt64(&a.Nulls) != 0 && a.Buffers[0].Buf != nil
}

// MakeData converts the span into an ArrayData object, transferring the
// references of any self-allocated buffers to it.
func (a *ArraySpan) MakeData() quiver.ArrayData {
	var bufs [3]*memory.Buffer
	for i := range bufs {
		bufs[i] = a.GetBuffer(i)
		if bufs[i] != nil && a.Buffers[i].SelfAlloc {
			// ArrayData now holds the reference this span was tracking
			defer bufs[i].Release()
		}
	}

	nulls := int(a.Nulls)
	switch {
	case a.Type.ID() == quiver.NULL:
		nulls = int(a.Len)
	case len(a.Buffers[0].Buf) == 0:
		nulls = 0
	}

	out := array.NewData(a.Type, int(a.Len), bufs[:a.NumBuffers()], nil, nulls, int(a.Offset))
	if a.Type.ID() == quiver.DICTIONARY {
		dict := a.Dictionary().MakeData()
		defer dict.Release()
		out.SetDictionary(dict)
	}
	return out
}

// MakeArray is shorthand for array.MakeFromData(a.MakeData()).
func (a *ArraySpan) MakeArray() quiver.Array {
	d := a.MakeData()
	defer d.Release()
	return array.MakeFromData(d)
}

// SetSlice points the span at a sub-range of its buffers.
func (a *ArraySpan) SetSlice(off, length int64) {
	if off == a.Offset && length == a.Len {
		// the full span, null count stays valid
		return
	}

	a.Offset, a.Len = off, length
	if a.Type.ID() == quiver.NULL {
		a.Nulls = a.Len
	} else {
		a.Nulls = array.UnknownNullCount
	}
}

// GetBuffer returns the memory.Buffer behind buffer idx: the owning buffer
// when there is one, otherwise a fresh zero-copy wrapper around the raw
// bytes, or nil for an empty span.
func (a *ArraySpan) GetBuffer(idx int) *memory.Buffer {
	b := &a.Buffers[idx]
	switch {
	case b.Owner != nil:
		return b.Owner
	case b.Buf != nil:
		return memory.NewBufferBytes(b.Buf)
	}
	return nil
}

func (a *ArraySpan) resizeChildren(n int) {
	if cap(a.Children) >= n {
		a.Children = a.Children[:n]
	} else {
		a.Children = make([]ArraySpan, n)
	}
}

func bitBytes(v bool) []byte {
	if v {
		return []byte{0x01}
	}
	return []byte{0x00}
}

// FillFromScalar configures the span as a length-1 array holding only the
// scalar's value, using the scratch space so nothing is allocated.
func (a *ArraySpan) FillFromScalar(val scalar.Scalar) {
	a.Type = val.DataType()
	a.Len = 1
	a.Nulls = 1
	if val.IsValid() {
		a.Nulls = 0
	}

	id := a.Type.ID()
	if id != quiver.NULL {
		a.Buffers[0] = BufferSpan{Buf: bitBytes(val.IsValid())}
	}

	switch {
	case id == quiver.BOOL:
		a.Buffers[1] = BufferSpan{Buf: bitBytes(val.(*scalar.Boolean).Value)}
	case quiver.IsNumeric(id):
		a.Buffers[1] = BufferSpan{Buf: val.(scalar.PrimitiveScalar).Data()}
	case id == quiver.DICTIONARY:
		sc := val.(*scalar.Dictionary)
		a.Buffers[1] = BufferSpan{Buf: sc.Value.Index.(scalar.PrimitiveScalar).Data()}
		a.resizeChildren(1)
		a.Children[0].SetMembers(sc.Value.Dict.Data())
	case quiver.IsBaseBinary(id):
		sc := val.(scalar.BinaryScalar)
		a.Buffers[1] = BufferSpan{Buf: quiver.GetBytes(a.Scratch[:])}

		var data []byte
		if sc.IsValid() {
			data = sc.Data()
		}
		setOffsetsForScalar(a,
			unsafe.Slice((*int32)(unsafe.Pointer(&a.Scratch[0])), 2),
			int64(len(data)), 1)
		a.Buffers[2] = BufferSpan{Buf: data}
	}
}

// setFrom points the span at the given ArrayData, retaining buffer
// references when own is true.
func (a *ArraySpan) setFrom(data quiver.ArrayData, own bool) {
	a.Type = data.DataType()
	a.Len = int64(data.Len())
	a.Offset = int64(data.Offset())
	if a.Type.ID() == quiver.NULL {
		a.Nulls = a.Len
	} else {
		a.Nulls = int64(data.NullN())
	}

	for i := range a.Buffers {
		a.Buffers[i].reset()
		if i >= len(data.Buffers()) {
			continue
		}
		b := data.Buffers()[i]
		if b == nil {
			continue
		}
		if own {
			a.Buffers[i].WrapBuffer(b)
			b.Retain()
		} else {
			a.Buffers[i].SetBuffer(b)
		}
	}

	if a.Buffers[0].Buf == nil && a.Type.ID() != quiver.NULL {
		// no validity bitmap means no nulls
		a.Nulls = 0
	}

	if a.Type.ID() == quiver.DICTIONARY {
		a.resizeChildren(1)
		a.Children[0].setFrom(data.Dictionary(), own)
	} else if len(a.Children) > 0 {
		a.Children = a.Children[:0]
	}
}

// SetMembers points the span at the given ArrayData without taking any
// buffer references; the ArrayData must outlive the span's use.
func (a *ArraySpan) SetMembers(data quiver.ArrayData) {
	a.setFrom(data, false)
}

// TakeOwnership is SetMembers plus a Retain on every buffer, so the
// ArrayData may be released while the span lives on.
func (a *ArraySpan) TakeOwnership(data quiver.ArrayData) {
	a.setFrom(data, true)
}

// ReleaseBuffers drops the references the span holds on buffers it
// allocated or took ownership of.
func (a *ArraySpan) ReleaseBuffers() {
	for i := range a.Buffers {
		b := &a.Buffers[i]
		if b.SelfAlloc && b.Owner != nil {
			b.Owner.Release()
		}
		b.reset()
	}
	for i := range a.Children {
		a.Children[i].ReleaseBuffers()
	}
}

// ExecValue is one input to an execution, either an array or a scalar.
type ExecValue struct {
	Array  ArraySpan
	Scalar scalar.Scalar
}

func (e *ExecValue) IsArray() bool  { return e.Scalar == nil }
func (e *ExecValue) IsScalar() bool { return !e.IsArray() }

func (e *ExecValue) Type() quiver.DataType {
	if e.IsArray() {
		return e.Array.Type
	}
	return e.Scalar.DataType()
}

// ExecResult is the output span a kernel writes into.
type ExecResult = ArraySpan

// ExecSpan is one chunk of execution input: a batch length plus the
// values, each an array or scalar.
type ExecSpan struct {
	Len    int64
	Values []ExecValue
}
