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

	"github.com/JohnCGriffin/overflow"
	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/bitutils"
)

// NullSelectionBehavior controls what filter does with predicate slots
// that are null: drop the row or emit a null row.
type NullSelectionBehavior int8

const (
	DropNulls NullSelectionBehavior = iota
	EmitNulls
)

type FilterOptions struct {
	NullSelection NullSelectionBehavior `compute:"null_selection_behavior"`
}

func (FilterOptions) TypeName() string { return "FilterOptions" }

type FilterState = FilterOptions

type TakeOptions struct {
	BoundsCheck bool `compute:"boundscheck"`
}

func (TakeOptions) TypeName() string { return "TakeOptions" }

type TakeState = TakeOptions

func checkIndicesInRange[T exec.IntTypes | exec.UintTypes](idxs *exec.ArraySpan, limit uint64) error {
	var (
		data  = exec.GetSpanValues[T](idxs, 1)
		valid = idxs.Buffers[0].Buf
		oob   = func(at int64) bool { return data[at] < 0 || uint64(data[at]) >= limit }
	)

	blocks := bitutils.NewOptionalBitBlockCounter(valid, idxs.Offset, idxs.Len)
	for at := int64(0); at < idxs.Len; {
		blk := blocks.NextBlock()
		bad := false
		switch {
		case blk.AllSet():
			// branch-free scan over a fully valid block
			for n := int64(0); n < int64(blk.Len); n++ {
				bad = bad || oob(at+n)
			}
		case blk.Popcnt > 0:
			// null indices are exempt from the bounds check
			for n := int64(0); n < int64(blk.Len); n++ {
				bad = bad || (bitutil.BitIsSet(valid, int(idxs.Offset+at+n)) && oob(at+n))
			}
		}
		if bad {
			// rescan to report the offending index
			for n := int64(0); n < int64(blk.Len); n++ {
				if (!idxs.MayHaveNulls() || bitutil.BitIsSet(valid, int(idxs.Offset+at+n))) && oob(at+n) {
					return fmt.Errorf("%w: index %d out of bounds for array of length %d",
						quiver.ErrIndexOutOfBounds, data[at+n], limit)
				}
			}
		}
		at += int64(blk.Len)
	}
	return nil
}

// validateTakeIndices verifies every non-null index falls in [0, limit).
func validateTakeIndices(idxs *exec.ArraySpan, limit uint64) error {
	switch idxs.Type.ID() {
	case quiver.INT8:
		return checkIndicesInRange[int8](idxs, limit)
	case quiver.UINT8:
		return checkIndicesInRange[uint8](idxs, limit)
	case quiver.INT16:
		return checkIndicesInRange[int16](idxs, limit)
	case quiver.UINT16:
		return checkIndicesInRange[uint16](idxs, limit)
	case quiver.INT32:
		return checkIndicesInRange[int32](idxs, limit)
	case quiver.UINT32:
		return checkIndicesInRange[uint32](idxs, limit)
	case quiver.INT64:
		return checkIndicesInRange[int64](idxs, limit)
	case quiver.UINT64:
		return checkIndicesInRange[uint64](idxs, limit)
	default:
		return fmt.Errorf("%w: take indices must be integers, got %s", quiver.ErrInvalid, idxs.Type)
	}
}

// filterOutputLength counts how many rows the filter will select:
// popcount of (predicate AND valid) when nulls drop, popcount of
// (predicate OR NOT valid) when nulls emit.
func filterOutputLength(pred *exec.ArraySpan, keep NullSelectionBehavior) int64 {
	if !pred.MayHaveNulls() {
		return int64(bitutil.CountSetBits(pred.Buffers[1].Buf, int(pred.Offset), int(pred.Len)))
	}

	blocks := bitutils.NewBinaryBitBlockCounter(pred.Buffers[1].Buf,
		pred.Buffers[0].Buf, pred.Offset, pred.Offset, pred.Len)
	next := blocks.NextAndWord
	if keep == EmitNulls {
		next = blocks.NextOrNotWord
	}

	var n int64
	for at := int64(0); at < pred.Len; {
		blk := next()
		n += int64(blk.Popcnt)
		at += int64(blk.Len)
	}
	return n
}

func allocateSelectionOutput(ctx *exec.KernelCtx, n int64, bitWidth int, withValidity bool, out *exec.ExecResult) {
	out.Len = n
	if withValidity {
		out.Buffers[0].WrapBuffer(ctx.AllocateBitmap(n))
	}
	if bitWidth == 1 {
		out.Buffers[1].WrapBuffer(ctx.AllocateBitmap(n))
	} else {
		out.Buffers[1].WrapBuffer(ctx.Allocate(int(n) * (bitWidth / 8)))
	}
}

// selWriter moves selected elements into the preallocated output data
// buffer. The caller maintains the output validity bitmap.
type selWriter interface {
	pos() int
	one(at int64)
	run(start, n int64)
	null()
}

type fixedSelWriter[T exec.UintTypes] struct {
	n   int
	src []T
	dst []T
}

func (w *fixedSelWriter[T]) pos() int { return w.n }

func (w *fixedSelWriter[T]) one(at int64) {
	w.dst[w.n] = w.src[at]
	w.n++
}

func (w *fixedSelWriter[T]) run(start, n int64) {
	copy(w.dst[w.n:], w.src[start:start+n])
	w.n += int(n)
}

func (w *fixedSelWriter[T]) null() {
	var zero T
	w.dst[w.n] = zero
	w.n++
}

func newFixedSelWriter[T exec.UintTypes](vals *exec.ArraySpan, out *exec.ExecResult) selWriter {
	return &fixedSelWriter[T]{
		src: exec.GetSpanValues[T](vals, 1),
		dst: exec.GetSpanValues[T](out, 1),
	}
}

type bitSelWriter struct {
	n      int
	srcOff int
	dstOff int
	src    []byte
	dst    []byte
}

func (w *bitSelWriter) pos() int { return w.n }

func (w *bitSelWriter) one(at int64) {
	bitutil.SetBitTo(w.dst, w.dstOff+w.n, bitutil.BitIsSet(w.src, w.srcOff+int(at)))
	w.n++
}

func (w *bitSelWriter) run(start, n int64) {
	bitutil.CopyBitmap(w.src, w.srcOff+int(start), int(n), w.dst, w.dstOff+w.n)
	w.n += int(n)
}

func (w *bitSelWriter) null() {
	bitutil.ClearBit(w.dst, w.dstOff+w.n)
	w.n++
}

// keepBlocks walks the predicate in 64-bit blocks counting bits that are
// both set and non-null.
type keepBlocks struct {
	and   *bitutils.BinaryBitBlockCounter
	plain *bitutils.BitBlockCounter
}

func newKeepBlocks(validity, bits []byte, offset, length int64) *keepBlocks {
	if len(validity) > 0 {
		return &keepBlocks{and: bitutils.NewBinaryBitBlockCounter(bits, validity, offset, offset, length)}
	}
	return &keepBlocks{plain: bitutils.NewBitBlockCounter(bits, offset, length)}
}

func (k *keepBlocks) next() bitutils.BitBlockCount {
	if k.and != nil {
		return k.and.NextAndWord()
	}
	return k.plain.NextWord()
}

func filterFixedLoop(w selWriter, vals, pred *exec.ArraySpan, keep NullSelectionBehavior, out *exec.ExecResult) {
	var (
		valsValid = vals.Buffers[0].Buf
		predValid = pred.Buffers[0].Buf
		predBits  = pred.Buffers[1].Buf
		outValid  = out.Buffers[0].Buf
	)

	if pred.Nulls == 0 && vals.Nulls == 0 {
		// neither side carries nulls: selected runs copy straight across
		bitutils.VisitSetBitRunsNoErr(predBits, pred.Offset, vals.Len,
			func(at, n int64) { w.run(at, n) })
		return
	}

	var (
		kept       = newKeepBlocks(predValid, predBits, pred.Offset, vals.Len)
		valsBlocks = bitutils.NewOptionalBitBlockCounter(valsValid, vals.Offset, vals.Len)
		predBlocks = bitutils.NewOptionalBitBlockCounter(predValid, pred.Offset, vals.Len)

		emitValid = func(at int64) {
			bitutil.SetBit(outValid, int(out.Offset)+w.pos())
			w.one(at)
		}
		emit = func(at int64) {
			bitutil.SetBitTo(outValid, int(out.Offset)+w.pos(),
				bitutil.BitIsSet(valsValid, int(vals.Offset+at)))
			w.one(at)
		}
	)

	for in := int64(0); in < vals.Len; {
		keptBlk := kept.next()
		predBlk := predBlocks.NextWord()
		valsBlk := valsBlocks.NextWord()

		switch {
		case keptBlk.AllSet() && valsBlk.AllSet():
			// whole block selected, nothing null anywhere
			bitutil.SetBitsTo(outValid, out.Offset+int64(w.pos()), int64(keptBlk.Len), true)
			w.run(in, int64(keptBlk.Len))
			in += int64(keptBlk.Len)
		case keptBlk.AllSet():
			// whole block selected; value validity carries over bitwise
			bitutil.CopyBitmap(valsValid, int(vals.Offset+in), int(keptBlk.Len),
				outValid, int(out.Offset)+w.pos())
			w.run(in, int64(keptBlk.Len))
			in += int64(keptBlk.Len)
		case keptBlk.NoneSet() && keep == DropNulls:
			// nothing selected: common for low-selectivity predicates
			in += int64(keptBlk.Len)
		default:
			put := emit
			if valsBlk.AllSet() {
				put = emitValid
			}
			switch {
			case predBlk.AllSet():
				// predicate has false slots but no null slots
				for n := 0; n < int(keptBlk.Len); n++ {
					if bitutil.BitIsSet(predBits, int(pred.Offset+in)) {
						put(in)
					}
					in++
				}
			case keep == DropNulls:
				for n := 0; n < int(keptBlk.Len); n++ {
					if bitutil.BitIsSet(predValid, int(pred.Offset+in)) &&
						bitutil.BitIsSet(predBits, int(pred.Offset+in)) {
						put(in)
					}
					in++
				}
			default: // EmitNulls
				for n := 0; n < int(keptBlk.Len); n++ {
					switch ok := bitutil.BitIsSet(predValid, int(pred.Offset+in)); {
					case ok && bitutil.BitIsSet(predBits, int(pred.Offset+in)):
						put(in)
					case !ok:
						bitutil.ClearBit(outValid, int(out.Offset)+w.pos())
						w.null()
					}
					in++
				}
			}
		}
	}
}

// FilterFixedWidth filters boolean and fixed-width primitive values.
func FilterFixedWidth(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	var (
		vals = &batch.Values[0].Array
		pred = &batch.Values[1].Array
		keep = ctx.State.(FilterState).NullSelection
		n    = filterOutputLength(pred, keep)
	)

	// the output null count is only known up front when no input nulls
	// can reach the output
	if vals.Nulls == 0 && (keep == DropNulls || pred.Nulls == 0) {
		out.Nulls = 0
	} else {
		out.Nulls = array.UnknownNullCount
	}

	withValidity := vals.Nulls != 0 || pred.Nulls != 0
	width := vals.Type.(quiver.FixedWidthDataType).BitWidth()
	allocateSelectionOutput(ctx, n, width, withValidity, out)

	var w selWriter
	switch width {
	case 1:
		w = &bitSelWriter{
			srcOff: int(vals.Offset),
			dstOff: int(out.Offset),
			src:    vals.Buffers[1].Buf,
			dst:    out.Buffers[1].Buf,
		}
	case 8:
		w = newFixedSelWriter[uint8](vals, out)
	case 16:
		w = newFixedSelWriter[uint16](vals, out)
	case 32:
		w = newFixedSelWriter[uint32](vals, out)
	case 64:
		w = newFixedSelWriter[uint64](vals, out)
	default:
		return fmt.Errorf("%w: unsupported bit width %d for filter", quiver.ErrType, width)
	}

	filterFixedLoop(w, vals, pred, keep, out)
	return nil
}

func takeFixedLoop[IdxT exec.UintTypes, ValT exec.IntTypes](vals, idxs *exec.ArraySpan, out *exec.ExecResult) {
	var (
		src      = exec.GetSpanValues[ValT](vals, 1)
		srcValid = vals.Buffers[0].Buf
		srcOff   = vals.Offset

		idxData  = exec.GetSpanValues[IdxT](idxs, 1)
		idxValid = idxs.Buffers[0].Buf
		idxOff   = idxs.Offset

		dst      = exec.GetSpanValues[ValT](out, 1)
		dstValid = out.Buffers[0].Buf
		dstOff   = out.Offset
	)

	if vals.Nulls == 0 && idxs.Nulls == 0 {
		// no validity anywhere and no output bitmap was allocated
		for i, idx := range idxData {
			dst[i] = src[idx]
		}
		out.Nulls = 0
		return
	}

	var (
		at, valid int64
		blocks    = bitutils.NewOptionalBitBlockCounter(idxValid, idxOff, idxs.Len)
	)
	for at < idxs.Len {
		blk := blocks.NextBlock()
		switch {
		case vals.Nulls == 0:
			// only index nulls can produce output nulls
			valid += int64(blk.Popcnt)
			switch {
			case blk.AllSet():
				bitutil.SetBitsTo(dstValid, dstOff+at, int64(blk.Len), true)
				for n := 0; n < int(blk.Len); n++ {
					dst[at] = src[idxData[at]]
					at++
				}
			case blk.Popcnt > 0:
				for n := 0; n < int(blk.Len); n++ {
					if bitutil.BitIsSet(idxValid, int(idxOff+at)) {
						bitutil.SetBit(dstValid, int(dstOff+at))
						dst[at] = src[idxData[at]]
					}
					at++
				}
			default:
				at += int64(blk.Len)
			}
		case blk.AllSet():
			// indices all valid; probe the values bitmap per element
			for n := 0; n < int(blk.Len); n++ {
				if bitutil.BitIsSet(srcValid, int(srcOff)+int(idxData[at])) {
					dst[at] = src[idxData[at]]
					bitutil.SetBit(dstValid, int(dstOff+at))
					valid++
				}
				at++
			}
		case blk.Popcnt > 0:
			// nulls possible on both sides, check element by element
			for n := 0; n < int(blk.Len); n++ {
				if bitutil.BitIsSet(idxValid, int(idxOff+at)) &&
					bitutil.BitIsSet(srcValid, int(srcOff)+int(idxData[at])) {
					dst[at] = src[idxData[at]]
					bitutil.SetBit(dstValid, int(dstOff+at))
					valid++
				}
				at++
			}
		default:
			at += int64(blk.Len)
		}
	}
	out.Nulls = out.Len - valid
}

func takeBitsLoop[IdxT exec.UintTypes](vals, idxs *exec.ArraySpan, out *exec.ExecResult) {
	var (
		srcBits  = vals.Buffers[1].Buf
		srcValid = vals.Buffers[0].Buf
		srcOff   = vals.Offset

		idxData  = exec.GetSpanValues[IdxT](idxs, 1)
		idxValid = idxs.Buffers[0].Buf
		idxOff   = idxs.Offset

		dstBits  = out.Buffers[1].Buf
		dstValid = out.Buffers[0].Buf
		dstOff   = out.Offset
	)

	place := func(at int64, idx IdxT) {
		bitutil.SetBitTo(dstBits, int(dstOff+at), bitutil.BitIsSet(srcBits, int(srcOff)+int(idx)))
	}

	if vals.Nulls == 0 && idxs.Nulls == 0 {
		for i, idx := range idxData {
			place(int64(i), idx)
		}
		out.Nulls = 0
		return
	}

	var (
		at, valid int64
		blocks    = bitutils.NewOptionalBitBlockCounter(idxValid, idxOff, idxs.Len)
	)
	for at < idxs.Len {
		blk := blocks.NextBlock()
		switch {
		case vals.Nulls == 0:
			valid += int64(blk.Popcnt)
			switch {
			case blk.AllSet():
				bitutil.SetBitsTo(dstValid, dstOff+at, int64(blk.Len), true)
				for n := 0; n < int(blk.Len); n++ {
					place(at, idxData[at])
					at++
				}
			case blk.Popcnt > 0:
				for n := 0; n < int(blk.Len); n++ {
					if bitutil.BitIsSet(idxValid, int(idxOff+at)) {
						bitutil.SetBit(dstValid, int(dstOff+at))
						place(at, idxData[at])
					}
					at++
				}
			default:
				at += int64(blk.Len)
			}
		case blk.AllSet():
			for n := 0; n < int(blk.Len); n++ {
				if bitutil.BitIsSet(srcValid, int(srcOff)+int(idxData[at])) {
					bitutil.SetBit(dstValid, int(dstOff+at))
					place(at, idxData[at])
					valid++
				}
				at++
			}
		case blk.Popcnt > 0:
			for n := 0; n < int(blk.Len); n++ {
				if bitutil.BitIsSet(idxValid, int(idxOff+at)) &&
					bitutil.BitIsSet(srcValid, int(srcOff)+int(idxData[at])) {
					place(at, idxData[at])
					bitutil.SetBit(dstValid, int(dstOff+at))
					valid++
				}
				at++
			}
		default:
			at += int64(blk.Len)
		}
	}
	out.Nulls = out.Len - valid
}

func takeBits(vals, idxs *exec.ArraySpan, out *exec.ExecResult) error {
	switch idxs.Type.(quiver.FixedWidthDataType).Bytes() {
	case 1:
		takeBitsLoop[uint8](vals, idxs, out)
	case 2:
		takeBitsLoop[uint16](vals, idxs, out)
	case 4:
		takeBitsLoop[uint32](vals, idxs, out)
	case 8:
		takeBitsLoop[uint64](vals, idxs, out)
	default:
		return fmt.Errorf("%w: invalid take index width", quiver.ErrInvalid)
	}
	return nil
}

func takeFixed[ValT exec.IntTypes](vals, idxs *exec.ArraySpan, out *exec.ExecResult) error {
	switch idxs.Type.(quiver.FixedWidthDataType).Bytes() {
	case 1:
		takeFixedLoop[uint8, ValT](vals, idxs, out)
	case 2:
		takeFixedLoop[uint16, ValT](vals, idxs, out)
	case 4:
		takeFixedLoop[uint32, ValT](vals, idxs, out)
	case 8:
		takeFixedLoop[uint64, ValT](vals, idxs, out)
	default:
		return fmt.Errorf("%w: invalid take index width", quiver.ErrInvalid)
	}
	return nil
}

// TakeFixedWidth gathers boolean and fixed-width primitive values by index.
func TakeFixedWidth(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	var (
		vals = &batch.Values[0].Array
		idxs = &batch.Values[1].Array
	)

	if ctx.State.(TakeState).BoundsCheck {
		if err := validateTakeIndices(idxs, uint64(vals.Len)); err != nil {
			return err
		}
	}

	width := vals.Type.(quiver.FixedWidthDataType).BitWidth()
	withValidity := vals.Nulls != 0 || idxs.Nulls != 0
	allocateSelectionOutput(ctx, idxs.Len, width, withValidity, out)

	switch width {
	case 1:
		return takeBits(vals, idxs, out)
	case 8:
		return takeFixed[int8](vals, idxs, out)
	case 16:
		return takeFixed[int16](vals, idxs, out)
	case 32:
		return takeFixed[int32](vals, idxs, out)
	case 64:
		return takeFixed[int64](vals, idxs, out)
	default:
		return fmt.Errorf("%w: unsupported bit width %d for take", quiver.ErrInvalid, width)
	}
}

// TakeNullType handles take over null-typed values, where only the output
// length matters.
func TakeNullType(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	if ctx.State.(TakeState).BoundsCheck {
		if err := validateTakeIndices(&batch.Values[1].Array, uint64(batch.Values[0].Array.Len)); err != nil {
			return err
		}
	}

	// the batch length reflects the values, not the index count
	out.Len = batch.Values[1].Array.Len
	out.Type = quiver.Null
	return nil
}

func FilterNullType(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	out.Len = filterOutputLength(&batch.Values[1].Array, ctx.State.(FilterState).NullSelection)
	out.Type = quiver.Null
	return nil
}

// filterVarBinaryDense is the no-null fast path for var-width filter:
// selected runs of values bulk-copy into the output.
func filterVarBinaryDense(ctx *exec.KernelCtx, vals, pred *exec.ArraySpan, outLen int64, out *exec.ExecResult) error {
	var (
		mem        = exec.GetAllocator(ctx.Ctx)
		offsetBld  = newTypedBufBuilder[int32](mem)
		dataBld    = newTypedBufBuilder[uint8](mem)
		srcOffsets = exec.GetSpanOffsets(vals, 1)
		srcData    = vals.Buffers[2].Buf
	)

	offsetBld.reserve(int(outLen) + 1)
	if vals.Len > 0 {
		// presize off the mean value length
		avg := float64(srcOffsets[vals.Len]-srcOffsets[0]) / float64(vals.Len)
		dataBld.reserve(int(avg * float64(outLen)))
	}

	room := dataBld.cap()
	var off int32
	err := bitutils.VisitSetBitRuns(pred.Buffers[1].Buf, pred.Offset, pred.Len,
		func(at, n int64) error {
			lo, hi := srcOffsets[at], srcOffsets[at+n]
			if int(hi-lo) > room {
				dataBld.reserve(int(hi - lo))
				room = dataBld.cap() - dataBld.len()
			}
			dataBld.unsafeAppendSlice(srcData[lo:hi])
			room -= int(hi - lo)
			for i := int64(0); i < n; i++ {
				offsetBld.unsafeAppend(off)
				off += srcOffsets[at+i+1] - srcOffsets[at+i]
			}
			return nil
		})
	if err != nil {
		return err
	}

	offsetBld.unsafeAppend(off)
	out.Len = outLen
	out.Buffers[1].WrapBuffer(offsetBld.finish())
	out.Buffers[2].WrapBuffer(dataBld.finish())
	return nil
}

func filterVarBinaryWithNulls(ctx *exec.KernelCtx, vals, pred *exec.ArraySpan, outLen int64, keep NullSelectionBehavior, out *exec.ExecResult) error {
	var (
		predBits  = pred.Buffers[1].Buf
		predValid = pred.Buffers[0].Buf
		predOff   = pred.Offset

		valsValid = vals.Buffers[0].Buf
		valsOff   = vals.Offset
		// freshly allocated bitmap is zeroed; only true bits get written
		outValid = out.Buffers[0].Buf

		srcOffsets = exec.GetSpanOffsets(vals, 1)
		srcData    = vals.Buffers[2].Buf
		mem        = exec.GetAllocator(ctx.Ctx)
		offsetBld  = newTypedBufBuilder[int32](mem)
		dataBld    = newTypedBufBuilder[uint8](mem)
	)

	offsetBld.reserve(int(outLen) + 1)
	if vals.Len > 0 {
		avg := float64(srcOffsets[vals.Len]-srcOffsets[0]) / float64(vals.Len)
		dataBld.reserve(int(avg * float64(outLen)))
	}

	var (
		room    = dataBld.cap()
		off     int32
		in, dst int64

		valsBlocks = bitutils.NewOptionalBitBlockCounter(valsValid, valsOff, vals.Len)
		predBlocks = bitutils.NewOptionalBitBlockCounter(predValid, predOff, pred.Len)
		predBits64 = bitutils.NewBitBlockCounter(predBits, predOff, pred.Len)
	)

	grow := func(data []byte) {
		if len(data) > room {
			dataBld.reserve(len(data))
			room = dataBld.cap() - dataBld.len()
		}
		dataBld.unsafeAppendSlice(data)
		room -= len(data)
	}

	appendCur := func() {
		data := srcData[srcOffsets[in]:srcOffsets[in+1]]
		grow(data)
		off += int32(len(data))
	}

	// emit the current input row; valsAllValid skips the values bitmap
	// probe for blocks known to be fully valid
	emit := func(valsAllValid bool) {
		offsetBld.unsafeAppend(off)
		if valsAllValid || bitutil.BitIsSet(valsValid, int(valsOff+in)) {
			bitutil.SetBit(outValid, int(dst))
			appendCur()
		}
		dst++
	}

	for in < pred.Len {
		predBlk, valsBlk := predBlocks.NextWord(), valsBlocks.NextWord()
		bitsBlk := predBits64.NextWord()

		switch {
		case bitsBlk.NoneSet() && keep == DropNulls:
			// nothing selected in this block
			in += int64(bitsBlk.Len)
		case predBlk.AllSet():
			// no null predicate slots in this block
			switch {
			case bitsBlk.AllSet() && valsBlk.AllSet():
				// everything selected and valid: bulk copy the run
				bitutil.SetBitsTo(outValid, dst, int64(bitsBlk.Len), true)
				lo, hi := srcOffsets[in], srcOffsets[in+int64(bitsBlk.Len)]
				grow(srcData[lo:hi])
				for n := 0; n < int(bitsBlk.Len); n++ {
					offsetBld.unsafeAppend(off)
					off += srcOffsets[in+1] - srcOffsets[in]
					in++
				}
				dst += int64(bitsBlk.Len)
			case bitsBlk.AllSet():
				// everything selected, some values null
				for n := 0; n < int(bitsBlk.Len); n++ {
					emit(false)
					in++
				}
			default:
				for n := 0; n < int(bitsBlk.Len); n++ {
					if bitutil.BitIsSet(predBits, int(predOff+in)) {
						emit(valsBlk.AllSet())
					}
					in++
				}
			}
		case keep == DropNulls:
			// null predicate slots count as false
			for n := 0; n < int(bitsBlk.Len); n++ {
				if bitutil.BitIsSet(predValid, int(predOff+in)) &&
					bitutil.BitIsSet(predBits, int(predOff+in)) {
					emit(valsBlk.AllSet())
				}
				in++
			}
		default:
			// EmitNulls: null predicate slots become null output rows
			for n := 0; n < int(bitsBlk.Len); n++ {
				switch ok := bitutil.BitIsSet(predValid, int(predOff+in)); {
				case ok && bitutil.BitIsSet(predBits, int(predOff+in)):
					emit(valsBlk.AllSet())
				case !ok:
					offsetBld.unsafeAppend(off)
					dst++
				}
				in++
			}
		}
	}

	offsetBld.unsafeAppend(off)
	out.Len = outLen
	out.Buffers[1].WrapBuffer(offsetBld.finish())
	out.Buffers[2].WrapBuffer(dataBld.finish())
	return nil
}

// FilterVarBinary filters string and binary values.
func FilterVarBinary(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	var (
		keep   = ctx.State.(FilterState).NullSelection
		vals   = &batch.Values[0].Array
		pred   = &batch.Values[1].Array
		outLen = filterOutputLength(pred, keep)
	)

	if !quiver.IsBaseBinary(vals.Type.ID()) {
		return fmt.Errorf("%w: invalid type for binary filter", quiver.ErrInvalid)
	}

	if vals.Nulls == 0 && (keep == DropNulls || pred.Nulls == 0) {
		out.Nulls = 0
	} else {
		out.Nulls = array.UnknownNullCount
	}

	if vals.Nulls == 0 && pred.Nulls == 0 {
		return filterVarBinaryDense(ctx, vals, pred, outLen, out)
	}

	out.Buffers[0].WrapBuffer(ctx.AllocateBitmap(outLen))
	return filterVarBinaryWithNulls(ctx, vals, pred, outLen, keep, out)
}

func takeVisitLoop[T exec.UintTypes](ctx *exec.KernelCtx, outLen int64, vals, idxs *exec.ArraySpan, out *exec.ExecResult, onValid func(int64) error, onNull func() error) error {
	var (
		validity = bitmapBuilder{mem: exec.GetAllocator(ctx.Ctx)}
		idxData  = exec.GetSpanValues[T](idxs, 1)
		idxValid = idxs.Buffers[0].Buf

		valsHaveNulls = vals.MayHaveNulls()
		idxBit        = bitutil.OptionalBitIndexer{Bitmap: idxValid, Offset: int(idxs.Offset)}
		valBit        = bitutil.OptionalBitIndexer{Bitmap: vals.Buffers[0].Buf, Offset: int(vals.Offset)}
		blocks        = bitutils.NewOptionalBitBlockCounter(idxValid, idxs.Offset, idxs.Len)
	)

	validity.Reserve(outLen)
	for at := int64(0); at < idxs.Len; {
		blk := blocks.NextBlock()
		someIdxNull := blk.Popcnt < blk.Len
		switch {
		case !someIdxNull && !valsHaveNulls:
			// whole block passes through valid
			validity.UnsafeAppendN(int64(blk.Len), true)
			for n := 0; n < int(blk.Len); n++ {
				if err := onValid(int64(idxData[at])); err != nil {
					return err
				}
				at++
			}
		case blk.Popcnt > 0:
			// one loop covers both "null index" and "null value" rows
			for n := 0; n < int(blk.Len); n++ {
				if (!someIdxNull || idxBit.GetBit(int(at))) && valBit.GetBit(int(idxData[at])) {
					validity.UnsafeAppend(true)
					if err := onValid(int64(idxData[at])); err != nil {
						return err
					}
				} else {
					validity.UnsafeAppend(false)
					if err := onNull(); err != nil {
						return err
					}
				}
				at++
			}
		default:
			// every index in the block is null
			validity.UnsafeAppendN(int64(blk.Len), false)
			for n := 0; n < int(blk.Len); n++ {
				if err := onNull(); err != nil {
					return err
				}
			}
			at += int64(blk.Len)
		}
	}

	out.Len = int64(validity.bitLength)
	out.Nulls = int64(validity.falseCount)
	out.Buffers[0].WrapBuffer(validity.Finish())
	return nil
}

func visitTakeIndices(ctx *exec.KernelCtx, outLen int64, vals, idxs *exec.ArraySpan, out *exec.ExecResult, onValid func(int64) error, onNull func() error) error {
	switch idxs.Type.(quiver.FixedWidthDataType).Bytes() {
	case 1:
		return takeVisitLoop[uint8](ctx, outLen, vals, idxs, out, onValid, onNull)
	case 2:
		return takeVisitLoop[uint16](ctx, outLen, vals, idxs, out, onValid, onNull)
	case 4:
		return takeVisitLoop[uint32](ctx, outLen, vals, idxs, out, onValid, onNull)
	case 8:
		return takeVisitLoop[uint64](ctx, outLen, vals, idxs, out, onValid, onNull)
	default:
		return fmt.Errorf("%w: invalid take index width", quiver.ErrInvalid)
	}
}

type visitOutputFn func(*exec.KernelCtx, int64, *exec.ArraySpan, *exec.ArraySpan, *exec.ExecResult, func(int64) error, func() error) error
type selectionExecFn func(*exec.KernelCtx, *exec.ExecSpan, int64, *exec.ExecResult, visitOutputFn) error

func makeTakeExec(impl selectionExecFn, visit visitOutputFn) exec.ArrayKernelExec {
	return func(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
		if ctx.State.(TakeState).BoundsCheck {
			if err := validateTakeIndices(&batch.Values[1].Array, uint64(batch.Values[0].Array.Len)); err != nil {
				return err
			}
		}
		return impl(ctx, batch, batch.Values[1].Array.Len, out, visit)
	}
}

func selectVarBinary(ctx *exec.KernelCtx, batch *exec.ExecSpan, outLen int64, out *exec.ExecResult, visit visitOutputFn) error {
	var (
		vals       = &batch.Values[0].Array
		sel        = &batch.Values[1].Array
		srcOffsets = exec.GetSpanOffsets(vals, 1)
		srcData    = vals.Buffers[2].Buf
		mem        = exec.GetAllocator(ctx.Ctx)
		offsetBld  = newTypedBufBuilder[int32](mem)
		dataBld    = newTypedBufBuilder[uint8](mem)
	)

	if vals.Len > 0 {
		avg := float64(srcOffsets[vals.Len]-srcOffsets[0]) / float64(vals.Len)
		dataBld.reserve(int(avg))
	}

	offsetBld.reserve(int(outLen) + 1)
	room := dataBld.cap()
	var off int32
	err := visit(ctx, outLen, vals, sel, out,
		func(at int64) error {
			offsetBld.unsafeAppend(off)
			lo := srcOffsets[at]
			size := srcOffsets[at+1] - lo

			// repeated indices can push the output past the 2GB reach of
			// 32-bit offsets even when the input fit them
			next, ok := overflow.Add32(off, size)
			if !ok {
				return fmt.Errorf("%w: binary output exceeds the 2GB offset limit",
					quiver.ErrAllocation)
			}

			off = next
			if int(size) > room {
				dataBld.reserve(int(size))
				room = dataBld.cap() - dataBld.len()
			}
			dataBld.unsafeAppendSlice(srcData[lo : lo+size])
			room -= int(size)
			return nil
		}, func() error {
			offsetBld.unsafeAppend(off)
			return nil
		})
	if err != nil {
		return err
	}

	offsetBld.unsafeAppend(off)
	out.Buffers[1].WrapBuffer(offsetBld.finish())
	out.Buffers[2].WrapBuffer(dataBld.finish())
	return nil
}

// SelectionKernelData pairs the value-argument input type with the kernel
// body for a filter or take kernel.
type SelectionKernelData struct {
	In   exec.InputType
	Exec exec.ArrayKernelExec
}

func GetVectorSelectionKernels() (filterKernels, takeKernels []SelectionKernelData) {
	filterKernels = []SelectionKernelData{
		{In: exec.NewMatchedInput(exec.Primitive()), Exec: FilterFixedWidth},
		{In: exec.NewExactInput(quiver.Null), Exec: FilterNullType},
		{In: exec.NewMatchedInput(exec.BinaryLike()), Exec: FilterVarBinary},
	}

	takeKernels = []SelectionKernelData{
		{In: exec.NewExactInput(quiver.Null), Exec: TakeNullType},
		{In: exec.NewMatchedInput(exec.Primitive()), Exec: TakeFixedWidth},
		{In: exec.NewMatchedInput(exec.BinaryLike()), Exec: makeTakeExec(selectVarBinary, visitTakeIndices)},
	}
	return
}
