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

package kernels

import (
	"fmt"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/bitutils"
	"github.com/quiverdata/quiver/internal/hashing"
	"github.com/quiverdata/quiver/memory"
)

type hashAction int8

const (
	// actionUnique memoizes every element, nulls included, and keeps
	// no per-element output.
	actionUnique hashAction = iota
	// actionEncode memoizes the valid elements and buffers one int32
	// memo index per input element. Null elements get a placeholder
	// index which the caller masks with the input validity bitmap, so
	// nulls never enter the dictionary.
	actionEncode
)

// HashState accumulates the distinct values of consumed array spans in
// a memo table, assigning each new value the next dense int32 memo
// index so the distinct values are kept in order of first appearance.
type HashState interface {
	// Append consumes one span of the input.
	Append(ctx *exec.KernelCtx, arr *exec.ArraySpan) error
	// Flush transfers the buffered memo indices into out's data
	// buffer. Only meaningful for actionEncode.
	Flush(out *exec.ExecResult)
	// Uniques returns the distinct values seen so far in order of
	// first appearance.
	Uniques() (quiver.ArrayData, error)
	ValueType() quiver.DataType
	Release()
}

type hashStateBase struct {
	mem     memory.Allocator
	typ     quiver.DataType
	action  hashAction
	indices *typedBufBuilder[int32]
}

func (h *hashStateBase) ValueType() quiver.DataType { return h.typ }

func (h *hashStateBase) observe(memoIdx int) {
	if h.action == actionEncode {
		h.indices.unsafeAppend(int32(memoIdx))
	}
}

func (h *hashStateBase) Flush(out *exec.ExecResult) {
	out.Buffers[1].WrapBuffer(h.indices.finish())
}

func (h *hashStateBase) Release() {
	if h.indices != nil && h.indices.buffer != nil {
		h.indices.finish().Release()
	}
}

// numericMemo is the part of the typed memo table API the hash kernels
// consume.
type numericMemo[T quiver.FixedWidthType] interface {
	InsertOrGet(val T) (idx int, found bool, err error)
	GetOrInsertNull() (idx int, found bool)
	GetNull() (idx int, found bool)
	Size() int
	TypeTraits() hashing.TypeTraits
	WriteOut(out []byte)
}

type hashNumericState[T quiver.FixedWidthType] struct {
	hashStateBase
	memo numericMemo[T]
}

func (s *hashNumericState[T]) observeNull() {
	if s.action == actionUnique {
		s.memo.GetOrInsertNull()
		return
	}
	s.indices.unsafeAppend(0)
}

func (s *hashNumericState[T]) Append(_ *exec.KernelCtx, arr *exec.ArraySpan) error {
	if s.action == actionEncode {
		s.indices.reserve(int(arr.Len))
	}
	data := exec.GetSpanValues[T](arr, 1)
	return bitutils.VisitBitBlocksShort(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos int64) error {
			idx, _, err := s.memo.InsertOrGet(data[pos])
			if err != nil {
				return err
			}
			s.observe(idx)
			return nil
		}, func() error {
			s.observeNull()
			return nil
		})
}

func (s *hashNumericState[T]) Uniques() (quiver.ArrayData, error) {
	dictLen := s.memo.Size()
	values := memory.NewResizableBuffer(s.mem)
	defer values.Release()
	values.Resize(s.memo.TypeTraits().BytesRequired(dictLen))
	s.memo.WriteOut(values.Bytes())

	bufs := []*memory.Buffer{nil, values}
	var nulls int
	if idx, ok := s.memo.GetNull(); ok {
		validity := memory.NewResizableBuffer(s.mem)
		defer validity.Release()
		validity.Resize(int(bitutil.BytesForBits(int64(dictLen))))
		memory.Set(validity.Bytes(), 0xFF)
		bitutil.ClearBit(validity.Bytes(), idx)
		bufs[0] = validity
		nulls = 1
	}
	return array.NewData(s.typ, dictLen, bufs, nil, nulls, 0), nil
}

type binaryHashState struct {
	hashStateBase
	memo *hashing.BinaryMemoTable
}

func (s *binaryHashState) observeNull() {
	if s.action == actionUnique {
		s.memo.GetOrInsertNull()
		return
	}
	s.indices.unsafeAppend(0)
}

func (s *binaryHashState) Append(_ *exec.KernelCtx, arr *exec.ArraySpan) error {
	if s.action == actionEncode {
		s.indices.reserve(int(arr.Len))
	}
	var (
		offsets = exec.GetSpanOffsets(arr, 1)
		data    = arr.Buffers[2].Buf
	)
	return bitutils.VisitBitBlocksShort(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos int64) error {
			idx, _, err := s.memo.GetOrInsertBytes(data[offsets[pos]:offsets[pos+1]])
			if err != nil {
				return err
			}
			s.observe(idx)
			return nil
		}, func() error {
			s.observeNull()
			return nil
		})
}

func (s *binaryHashState) Uniques() (quiver.ArrayData, error) {
	dictLen := s.memo.Size()
	offsets := memory.NewResizableBuffer(s.mem)
	defer offsets.Release()
	offsets.Resize(quiver.Int32Traits.BytesRequired(dictLen + 1))
	rawOffsets := quiver.Int32Traits.CastFromBytes(offsets.Bytes())
	s.memo.CopyOffsets(rawOffsets)

	values := memory.NewResizableBuffer(s.mem)
	defer values.Release()
	values.Resize(int(rawOffsets[dictLen] - rawOffsets[0]))
	s.memo.CopyValues(values.Bytes())

	bufs := []*memory.Buffer{nil, offsets, values}
	var nulls int
	if idx, ok := s.memo.GetNull(); ok {
		validity := memory.NewResizableBuffer(s.mem)
		defer validity.Release()
		validity.Resize(int(bitutil.BytesForBits(int64(dictLen))))
		memory.Set(validity.Bytes(), 0xFF)
		bitutil.ClearBit(validity.Bytes(), idx)
		bufs[0] = validity
		nulls = 1
	}
	return array.NewData(s.typ, dictLen, bufs, nil, nulls, 0), nil
}

func (s *binaryHashState) Release() {
	s.memo.Release()
	s.hashStateBase.Release()
}

// booleanHashState tracks the three possible boolean slots directly
// instead of carrying a memo table.
type booleanHashState struct {
	hashStateBase
	trueIdx, falseIdx, nullIdx int32
	size                       int32
}

func (s *booleanHashState) observeNull() {
	if s.action == actionUnique {
		if s.nullIdx == hashing.KeyNotFound {
			s.nullIdx = s.size
			s.size++
		}
		return
	}
	s.indices.unsafeAppend(0)
}

func (s *booleanHashState) Append(_ *exec.KernelCtx, arr *exec.ArraySpan) error {
	if s.action == actionEncode {
		s.indices.reserve(int(arr.Len))
	}
	values := arr.Buffers[1].Buf
	offset := arr.Offset
	bitutils.VisitBitBlocks(arr.Buffers[0].Buf, arr.Offset, arr.Len,
		func(pos int64) {
			slot := &s.falseIdx
			if bitutil.BitIsSet(values, int(offset+pos)) {
				slot = &s.trueIdx
			}
			if *slot == hashing.KeyNotFound {
				*slot = s.size
				s.size++
			}
			s.observe(int(*slot))
		}, func() {
			s.observeNull()
		})
	return nil
}

func (s *booleanHashState) Uniques() (quiver.ArrayData, error) {
	dictLen := int(s.size)
	values := memory.NewResizableBuffer(s.mem)
	defer values.Release()
	values.Resize(int(bitutil.BytesForBits(int64(dictLen))))
	if s.trueIdx != hashing.KeyNotFound {
		bitutil.SetBit(values.Bytes(), int(s.trueIdx))
	}

	bufs := []*memory.Buffer{nil, values}
	var nulls int
	if s.nullIdx != hashing.KeyNotFound {
		validity := memory.NewResizableBuffer(s.mem)
		defer validity.Release()
		validity.Resize(int(bitutil.BytesForBits(int64(dictLen))))
		memory.Set(validity.Bytes(), 0xFF)
		bitutil.ClearBit(validity.Bytes(), int(s.nullIdx))
		bufs[0] = validity
		nulls = 1
	}
	return array.NewData(quiver.FixedWidthTypes.Boolean, dictLen, bufs, nil, nulls, 0), nil
}

type nullHashState struct {
	hashStateBase
	seenNull bool
}

func (s *nullHashState) Append(_ *exec.KernelCtx, arr *exec.ArraySpan) error {
	if arr.Len > 0 {
		s.seenNull = true
	}
	if s.action == actionEncode {
		s.indices.reserve(int(arr.Len))
		if arr.Len > 0 {
			s.indices.unsafeAppendN(int(arr.Len), 0)
		}
	}
	return nil
}

func (s *nullHashState) Uniques() (quiver.ArrayData, error) {
	var length int
	if s.action == actionUnique && s.seenNull {
		length = 1
	}
	return array.NewData(quiver.Null, length, []*memory.Buffer{nil}, nil, length, 0), nil
}

func newNumericHashState[T quiver.FixedWidthType](base hashStateBase) HashState {
	return &hashNumericState[T]{hashStateBase: base, memo: hashing.NewMemoTable[T](0)}
}

func newHashState(mem memory.Allocator, dt quiver.DataType, action hashAction) (HashState, error) {
	base := hashStateBase{mem: mem, typ: dt, action: action}
	if action == actionEncode {
		base.indices = newTypedBufBuilder[int32](mem)
	}

	switch dt.ID() {
	case quiver.NULL:
		return &nullHashState{hashStateBase: base}, nil
	case quiver.BOOL:
		return &booleanHashState{hashStateBase: base,
			trueIdx: hashing.KeyNotFound, falseIdx: hashing.KeyNotFound, nullIdx: hashing.KeyNotFound}, nil
	case quiver.INT8:
		return newNumericHashState[int8](base), nil
	case quiver.UINT8:
		return newNumericHashState[uint8](base), nil
	case quiver.INT16:
		return newNumericHashState[int16](base), nil
	case quiver.UINT16:
		return newNumericHashState[uint16](base), nil
	case quiver.INT32:
		return newNumericHashState[int32](base), nil
	case quiver.UINT32:
		return newNumericHashState[uint32](base), nil
	case quiver.INT64:
		return newNumericHashState[int64](base), nil
	case quiver.UINT64:
		return newNumericHashState[uint64](base), nil
	case quiver.FLOAT32:
		return newNumericHashState[float32](base), nil
	case quiver.FLOAT64:
		return newNumericHashState[float64](base), nil
	case quiver.STRING, quiver.BINARY:
		return &binaryHashState{hashStateBase: base,
			memo: hashing.NewBinaryMemoTable(0, 0, array.NewBinaryBuilder(mem, dt.(quiver.BinaryDataType)))}, nil
	}
	return nil, fmt.Errorf("%w: unsupported type for hash kernels: %s", quiver.ErrNotImplemented, dt)
}

func uniqueExec(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	arr := &batch.Values[0].Array
	state, err := newHashState(exec.GetAllocator(ctx.Ctx), arr.Type, actionUnique)
	if err != nil {
		return err
	}
	defer state.Release()

	if err := state.Append(ctx, arr); err != nil {
		return err
	}

	uniques, err := state.Uniques()
	if err != nil {
		return err
	}
	defer uniques.Release()

	out.TakeOwnership(uniques)
	return nil
}

func dictEncodeExec(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	arr := &batch.Values[0].Array
	state, err := newHashState(exec.GetAllocator(ctx.Ctx), arr.Type, actionEncode)
	if err != nil {
		return err
	}
	defer state.Release()

	if err := state.Append(ctx, arr); err != nil {
		return err
	}

	out.Len = arr.Len
	state.Flush(out)

	switch {
	case arr.Type.ID() == quiver.NULL:
		// fresh bitmaps are zero initialized, leaving every index masked
		out.Buffers[0].WrapBuffer(ctx.AllocateBitmap(arr.Len))
		out.Nulls = arr.Len
	case arr.MayHaveNulls():
		out.Buffers[0].WrapBuffer(ctx.AllocateBitmap(arr.Len))
		bitutil.CopyBitmap(arr.Buffers[0].Buf, int(arr.Offset), int(arr.Len), out.Buffers[0].Buf, 0)
		out.Nulls = arr.UpdateNullCount()
	default:
		out.Nulls = 0
	}

	uniques, err := state.Uniques()
	if err != nil {
		return err
	}
	defer uniques.Release()

	out.Children = append(out.Children[:0], exec.ArraySpan{})
	out.Children[0].TakeOwnership(uniques)
	return nil
}

// GetVectorHashKernels returns the kernels for the unique and
// dictionary_encode functions. Both need the whole array in one pass so
// that the memo indices are dense and in first-appearance order.
func GetVectorHashKernels() (uniqueKernels, dictEncodeKernels []exec.VectorKernel) {
	dictOutType := exec.NewComputedOutputType(func(_ *exec.KernelCtx, args []quiver.DataType) (quiver.DataType, error) {
		return &quiver.DictionaryType{IndexType: quiver.PrimitiveTypes.Int32, ValueType: args[0]}, nil
	})

	for _, ty := range primitiveTypes {
		in := []exec.InputType{exec.NewExactInput(ty)}

		k := exec.NewVectorKernel(in, OutputFirstType, uniqueExec, nil)
		k.CanExecuteChunkWise = false
		uniqueKernels = append(uniqueKernels, k)

		k = exec.NewVectorKernel(in, dictOutType, dictEncodeExec, nil)
		k.CanExecuteChunkWise = false
		dictEncodeKernels = append(dictEncodeKernels, k)
	}
	return
}
