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

package bitutil

import (
	"bytes"
	"math/bits"

	"github.com/quiverdata/quiver/endian"
	"github.com/quiverdata/quiver/internal/debug"
)

const (
	wordBits  = 64
	wordBytes = 8
)

// lsbByte extracts the byte holding the lowest-order bits of a word read
// through endian.Native.
func lsbByte(w uint64) byte {
	if endian.IsBigEndian {
		return byte(w >> 56)
	}
	return byte(w)
}

func putLSB(w *uint64, b byte) {
	if endian.IsBigEndian {
		*w = (*w &^ (uint64(0xff) << 56)) | (uint64(b) << 56)
		return
	}
	*w = (*w &^ uint64(0xff)) | uint64(b)
}

// BitmapReader yields bits from a byte slice one at a time.
type BitmapReader struct {
	buf []byte
	pos int
	len int

	cur     byte
	curByte int
	curBit  int
}

// NewBitmapReader positions a reader at bit offset within bitmap, covering
// length bits.
func NewBitmapReader(bitmap []byte, offset, length int) *BitmapReader {
	r := &BitmapReader{
		buf:     bitmap,
		len:     length,
		curByte: offset / 8,
		curBit:  offset % 8,
	}
	if length > 0 && bitmap != nil {
		r.cur = bitmap[r.curByte]
	}
	return r
}

// Set reports whether the bit under the reader is 1.
func (r *BitmapReader) Set() bool { return r.cur&(1<<r.curBit) != 0 }

// NotSet reports whether the bit under the reader is 0.
func (r *BitmapReader) NotSet() bool { return r.cur&(1<<r.curBit) == 0 }

// Next moves the reader forward one bit.
func (r *BitmapReader) Next() {
	r.pos++
	r.curBit++
	if r.curBit < 8 {
		return
	}
	r.curBit = 0
	r.curByte++
	if r.pos < r.len {
		r.cur = r.buf[r.curByte]
	}
}

// Pos returns how many bits the reader has consumed.
func (r *BitmapReader) Pos() int { return r.pos }

// Len returns the number of bits the reader covers.
func (r *BitmapReader) Len() int { return r.len }

// BitmapWriter writes individual bits into a byte slice, leaving bits
// outside the written range untouched.
type BitmapWriter struct {
	buf []byte
	pos int
	len int

	cur     byte
	mask    byte
	curByte int
}

// NewBitmapWriter positions a writer at bit offset start, expecting length
// bits to be written.
func NewBitmapWriter(bitmap []byte, start, length int) *BitmapWriter {
	w := &BitmapWriter{
		buf:     bitmap,
		len:     length,
		curByte: start / 8,
		mask:    BitMask[start%8],
	}
	if length > 0 {
		w.cur = bitmap[w.curByte]
	}
	return w
}

// Reset repositions the writer so the same slice can be written again.
func (w *BitmapWriter) Reset(start, length int) {
	w.pos = 0
	w.len = length
	w.curByte = start / 8
	w.mask = BitMask[start%8]
	if length > 0 {
		w.cur = w.buf[w.curByte]
	}
}

func (w *BitmapWriter) Pos() int { return w.pos }
func (w *BitmapWriter) Set()     { w.cur |= w.mask }
func (w *BitmapWriter) Clear()   { w.cur &= ^w.mask }

// Next moves the writer forward one bit, flushing the working byte when it
// fills up.
func (w *BitmapWriter) Next() {
	w.pos++
	w.mask <<= 1
	if w.mask != 0 {
		return
	}
	w.mask = 0x01
	w.buf[w.curByte] = w.cur
	w.curByte++
	if w.pos < w.len {
		w.cur = w.buf[w.curByte]
	}
}

// AppendBools writes the booleans as bits and returns how many fit in the
// writer's remaining space.
func (w *BitmapWriter) AppendBools(in []bool) int {
	n := min(w.len-w.pos, len(in))
	if n == 0 {
		return 0
	}

	bit := bits.TrailingZeros32(uint32(w.mask))
	// work on the byte range the n bits will land in, seeded with the
	// pending working byte
	dst := w.buf[w.curByte : w.curByte+int(BytesForBits(int64(bit+n)))]
	dst[0] = w.cur
	for i, v := range in[:n] {
		if v {
			SetBit(dst, bit+i)
		} else {
			ClearBit(dst, bit+i)
		}
	}

	w.pos += n
	w.curByte += (bit + n) / 8
	w.mask = BitMask[(bit+n)%8]
	w.cur = dst[len(dst)-1]
	return n
}

// Finish stores the working byte if it holds bits not yet flushed.
func (w *BitmapWriter) Finish() {
	if w.len > 0 && (w.mask != 0x01 || w.pos < w.len) {
		w.buf[w.curByte] = w.cur
	}
}

// BitmapWordReader reads a bitmap one uint64 at a time, then exposes any
// remaining bits byte by byte.
type BitmapWordReader struct {
	buf           []byte
	offset        int
	words         int
	trailingBits  int
	trailingBytes int
	word          uint64
}

// NewBitmapWordReader builds a word reader over length bits of bitmap
// starting at bit offset.
func NewBitmapWordReader(bitmap []byte, offset, length int) *BitmapWordReader {
	shift := offset % 8
	start := offset / 8
	rd := &BitmapWordReader{
		offset: shift,
		buf:    bitmap[start : start+int(BytesForBits(int64(shift+length)))],
		// one word is held back since an unaligned read can touch the
		// word after it
		words: length/wordBits - 1,
	}
	if rd.words < 0 {
		rd.words = 0
	}
	rd.trailingBits = length - rd.words*wordBits
	rd.trailingBytes = int(BytesForBits(int64(rd.trailingBits)))

	switch {
	case rd.words > 0:
		rd.word = toFromLEFunc(endian.Native.Uint64(rd.buf))
	case length > 0:
		putLSB(&rd.word, rd.buf[0])
	}
	return rd
}

// NextWord reads the next full word. Calling it more than Words() times
// reads past the slice and panics; no bounds check is done here.
func (rd *BitmapWordReader) NextWord() uint64 {
	rd.buf = rd.buf[wordBytes:]
	word := rd.word
	next := toFromLEFunc(endian.Native.Uint64(rd.buf))
	if rd.offset != 0 {
		// an unaligned word straddles the held word and the one after:
		// take the top (64-offset) bits of the held word and fill the
		// rest from the bottom of next
		word >>= uint64(rd.offset)
		word |= next << (wordBits - int64(rd.offset))
	}
	rd.word = next
	return word
}

// NextTrailingByte reads the next byte after the words are exhausted and
// reports how many of its bits are valid. validBits is only less than 8 for
// the final byte, unless the bitmap ends byte aligned; drain via
// TrailingBytes rather than watching for a short byte.
func (rd *BitmapWordReader) NextTrailingByte() (val byte, validBits int) {
	debug.Assert(rd.trailingBits > 0, "next trailing byte called with no trailing bits")

	if rd.trailingBits <= 8 {
		// final byte, collect the remaining bits one at a time
		validBits = rd.trailingBits
		rd.trailingBits = 0
		bit := NewBitmapReader(rd.buf, rd.offset, validBits)
		for i := 0; i < validBits; i++ {
			val >>= 1
			if bit.Set() {
				val |= 0x80
			}
			bit.Next()
		}
		val >>= (8 - validBits)
		return
	}

	rd.buf = rd.buf[1:]
	next := rd.buf[0]
	val = lsbByte(rd.word)
	if rd.offset != 0 {
		val >>= byte(rd.offset)
		val |= next << (8 - rd.offset)
	}
	putLSB(&rd.word, next)
	rd.trailingBits -= 8
	rd.trailingBytes--
	validBits = 8
	return
}

func (rd *BitmapWordReader) Words() int         { return rd.words }
func (rd *BitmapWordReader) TrailingBytes() int { return rd.trailingBytes }

// BitmapWordWriter writes a bitmap one uint64 at a time, with
// PutNextTrailingByte for whatever is left after the final full word.
type BitmapWordWriter struct {
	buf    []byte
	offset int
	len    int

	mask uint64
	word uint64
}

// NewBitmapWordWriter builds a word writer targeting len bits of bitmap
// starting at bit offset start.
func NewBitmapWordWriter(bitmap []byte, start, len int) *BitmapWordWriter {
	wr := &BitmapWordWriter{
		buf:    bitmap[start/8:],
		len:    len,
		offset: start % 8,
		mask:   (uint64(1) << uint64(start%8)) - 1,
	}
	if wr.offset != 0 {
		switch {
		case wr.len >= wordBits:
			wr.word = toFromLEFunc(endian.Native.Uint64(wr.buf))
		case wr.len > 0:
			putLSB(&wr.word, wr.buf[0])
		}
	}
	return wr
}

// PutNextWord writes word into the bitmap, splitting it over two adjacent
// words when the destination is not word aligned.
func (wr *BitmapWordWriter) PutNextWord(word uint64) {
	if wr.offset == 0 {
		endian.Native.PutUint64(wr.buf, toFromLEFunc(word))
		wr.buf = wr.buf[wordBytes:]
		return
	}

	// rotate the word by offset, then blend its two halves into the
	// current and following destination words without disturbing the
	// bits outside our range
	word = (word << uint64(wr.offset)) | (word >> (wordBits - int64(wr.offset)))
	next := toFromLEFunc(endian.Native.Uint64(wr.buf[wordBytes:]))
	wr.word = (wr.word & wr.mask) | (word &^ wr.mask)
	next = (next &^ wr.mask) | (word & wr.mask)
	endian.Native.PutUint64(wr.buf, toFromLEFunc(wr.word))
	endian.Native.PutUint64(wr.buf[wordBytes:], toFromLEFunc(next))
	wr.word = next
	wr.buf = wr.buf[wordBytes:]
}

// PutNextTrailingByte writes validBits bits of b into the bitmap.
func (wr *BitmapWordWriter) PutNextTrailingByte(b byte, validBits int) {
	if validBits == 8 {
		if wr.offset != 0 {
			cur := lsbByte(wr.word)
			mask := byte(wr.mask)
			b = (b << wr.offset) | (b >> (8 - wr.offset))
			next := wr.buf[1]
			wr.buf[0] = (cur & mask) | (b &^ mask)
			wr.buf[1] = (next &^ mask) | (b & mask)
			wr.word = uint64(wr.buf[1])
		} else {
			wr.buf[0] = b
		}
		wr.buf = wr.buf[1:]
		return
	}

	debug.Assert(validBits > 0 && validBits < 8, "invalid valid bits in bitmap word writer")
	debug.Assert(BytesForBits(int64(wr.offset+validBits)) <= int64(len(wr.buf)), "writing trailing byte outside of bounds of bitmap")
	bit := NewBitmapWriter(wr.buf, wr.offset, validBits)
	for i := 0; i < validBits; i++ {
		if b&0x01 != 0 {
			bit.Set()
		} else {
			bit.Clear()
		}
		bit.Next()
		b >>= 1
	}
	bit.Finish()
}

// CopyBitmap copies length bits of src beginning at bit srcOffset into dst
// beginning at bit dstOffset.
func CopyBitmap(src []byte, srcOffset, length int, dst []byte, dstOffset int) {
	if length == 0 {
		return
	}

	if srcOffset%8 != 0 || dstOffset%8 != 0 {
		// unaligned on either end, stream through the word reader/writer
		rd := NewBitmapWordReader(src, srcOffset, length)
		wr := NewBitmapWordWriter(dst, dstOffset, length)

		for n := rd.Words(); n > 0; n-- {
			wr.PutNextWord(rd.NextWord())
		}
		for n := rd.TrailingBytes(); n > 0; n-- {
			b, valid := rd.NextTrailingByte()
			wr.PutNextTrailingByte(b, valid)
		}
		return
	}

	// both byte aligned, bulk copy then patch the partial final byte so
	// the bits beyond length keep their previous destination values
	src = src[srcOffset/8:]
	dst = dst[dstOffset/8:]
	nbytes := int(BytesForBits(int64(length)))
	keep := nbytes*8 - length
	tail := byte(uint(1)<<(8-keep)) - 1

	last := src[nbytes-1]
	copy(dst, src[:nbytes-1])
	dst[nbytes-1] = (dst[nbytes-1] &^ tail) | (last & tail)
}

type bitmapWordOp func(uint64, uint64) uint64

// blendByte combines the masked bits of old with the unmasked bits of new.
func blendByte(old, new, mask byte) byte {
	return (old & mask) | (new &^ mask)
}

func alignedBitmapOp(op bitmapWordOp, left, right []byte, lOffset, rOffset int64, out []byte, outOffset int64, length int64) {
	debug.Assert(lOffset%8 == rOffset%8, "aligned bitmap op called with unaligned offsets")
	debug.Assert(lOffset%8 == outOffset%8, "aligned bitmap op called with unaligned output offset")

	left = left[lOffset/8:]
	right = right[rOffset/8:]
	out = out[outOffset/8:]

	opByte := func(l, r byte) byte { return byte(op(uint64(l), uint64(r))) }

	nbytes := BytesForBits(length + lOffset%8)
	headMask := PrecedingBitmask[lOffset%8]
	tailMask := byte(0)
	if end := (lOffset + length) % 8; end != 0 {
		tailMask = ^PrecedingBitmask[end]
	}

	switch nbytes {
	case 0:
	case 1:
		// whole range inside one byte, protect both ends at once
		out[0] = blendByte(out[0], opByte(left[0], right[0]), headMask|tailMask)
	default:
		out[0] = blendByte(out[0], opByte(left[0], right[0]), headMask)
		for i := int64(1); i < nbytes-1; i++ {
			out[i] = opByte(left[i], right[i])
		}
		out[nbytes-1] = blendByte(out[nbytes-1], opByte(left[nbytes-1], right[nbytes-1]), tailMask)
	}
}

func unalignedBitmapOp(op bitmapWordOp, left, right []byte, lOffset, rOffset int64, out []byte, outOffset int64, length int64) {
	lrd := NewBitmapWordReader(left, int(lOffset), int(length))
	rrd := NewBitmapWordReader(right, int(rOffset), int(length))
	wr := NewBitmapWordWriter(out, int(outOffset), int(length))

	for n := lrd.Words(); n > 0; n-- {
		wr.PutNextWord(op(lrd.NextWord(), rrd.NextWord()))
	}
	for n := lrd.TrailingBytes(); n > 0; n-- {
		lb, lvalid := lrd.NextTrailingByte()
		rb, rvalid := rrd.NextTrailingByte()
		debug.Assert(lvalid == rvalid, "mismatched trailing bytes in unaligned bitmap op")
		wr.PutNextTrailingByte(byte(op(uint64(lb), uint64(rb))), lvalid)
	}
}

func bitmapOp(op bitmapWordOp, left, right []byte, lOffset, rOffset int64, out []byte, outOffset, length int64) {
	if lOffset%8 == outOffset%8 && rOffset%8 == outOffset%8 {
		alignedBitmapOp(op, left, right, lOffset, rOffset, out, outOffset, length)
	} else {
		unalignedBitmapOp(op, left, right, lOffset, rOffset, out, outOffset, length)
	}
}

// BitmapAnd writes the bitwise AND of the two input bitmaps, each read from
// its own bit offset, into out at outOffset.
func BitmapAnd(left, right []byte, lOffset, rOffset int64, out []byte, outOffset int64, length int64) {
	bitmapOp(func(l, r uint64) uint64 { return l & r }, left, right, lOffset, rOffset, out, outOffset, length)
}

// BitmapOr writes the bitwise OR of the two input bitmaps, each read from
// its own bit offset, into out at outOffset.
func BitmapOr(left, right []byte, lOffset, rOffset int64, out []byte, outOffset int64, length int64) {
	bitmapOp(func(l, r uint64) uint64 { return l | r }, left, right, lOffset, rOffset, out, outOffset, length)
}

// BitmapAndNot writes left AND NOT right into out at outOffset.
func BitmapAndNot(left, right []byte, lOffset, rOffset int64, out []byte, outOffset int64, length int64) {
	bitmapOp(func(l, r uint64) uint64 { return l &^ r }, left, right, lOffset, rOffset, out, outOffset, length)
}

// BitmapXor writes the bitwise XOR of the two input bitmaps into out at
// outOffset.
func BitmapXor(left, right []byte, lOffset, rOffset int64, out []byte, outOffset int64, length int64) {
	bitmapOp(func(l, r uint64) uint64 { return l ^ r }, left, right, lOffset, rOffset, out, outOffset, length)
}

// InvertBitmap copies length bits of src into dst with every bit flipped.
func InvertBitmap(src []byte, srcOffset int64, length int64, dst []byte, dstOffset int64) {
	rd := NewBitmapWordReader(src, int(srcOffset), int(length))
	wr := NewBitmapWordWriter(dst, int(dstOffset), int(length))

	for n := rd.Words(); n > 0; n-- {
		wr.PutNextWord(^rd.NextWord())
	}
	for n := rd.TrailingBytes(); n > 0; n-- {
		b, valid := rd.NextTrailingByte()
		wr.PutNextTrailingByte(^b, valid)
	}
}

// BitmapEquals reports whether length bits of the two bitmaps, each read
// from its own bit offset, hold the same values.
func BitmapEquals(left, right []byte, lOffset, rOffset int64, length int64) bool {
	if lOffset%8 == 0 && rOffset%8 == 0 {
		// compare whole bytes, then the leftover bits individually
		nbytes := length / 8
		l := left[lOffset/8:]
		r := right[rOffset/8:]
		if !bytes.Equal(l[:nbytes], r[:nbytes]) {
			return false
		}
		for i := nbytes * 8; i < length; i++ {
			if BitIsSet(left, int(lOffset+i)) != BitIsSet(right, int(rOffset+i)) {
				return false
			}
		}
		return true
	}

	lrd := NewBitmapWordReader(left, int(lOffset), int(length))
	rrd := NewBitmapWordReader(right, int(rOffset), int(length))

	for n := lrd.Words(); n > 0; n-- {
		if lrd.NextWord() != rrd.NextWord() {
			return false
		}
	}
	for n := lrd.TrailingBytes(); n > 0; n-- {
		lb, _ := lrd.NextTrailingByte()
		rb, _ := rrd.NextTrailingByte()
		if lb != rb {
			return false
		}
	}
	return true
}

// OptionalBitIndexer reads bits from a bitmap that may be nil, in which
// case every bit reads as set.
type OptionalBitIndexer struct {
	Bitmap []byte
	Offset int
}

func (b *OptionalBitIndexer) GetBit(i int) bool {
	return b.Bitmap == nil || BitIsSet(b.Bitmap, b.Offset+i)
}
