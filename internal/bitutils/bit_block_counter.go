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

package bitutils

import (
	"math"
	"math/bits"
	"unsafe"

	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/internal/utils"
)

func loadWord(byt []byte) uint64 {
	return utils.ToLEUint64(*(*uint64)(unsafe.Pointer(&byt[0])))
}

// shiftWord assembles an aligned 64-bit view from two adjacent words of an
// unaligned bitmap.
func shiftWord(current, next uint64, shift int64) uint64 {
	if shift == 0 {
		return current
	}
	return (current >> uint64(shift)) | (next << (64 - uint64(shift)))
}

// BitBlockCount describes a run of bits scanned from a bitmap: the run
// length and how many of those bits were set.
type BitBlockCount struct {
	Len    int16
	Popcnt int16
}

// NoneSet returns true if no bit in the block was set.
func (b BitBlockCount) NoneSet() bool { return b.Popcnt == 0 }

// AllSet returns true if every bit in the block was set.
func (b BitBlockCount) AllSet() bool { return b.Len == b.Popcnt }

const (
	wordBits      = 64
	fourWordsBits = wordBits * 4
)

// BitBlockCounter scans a bitmap a word (or four words) at a time,
// popcounting as it goes.
type BitBlockCounter struct {
	bitmap        []byte
	bitsRemaining int64
	bitOffset     int8
}

// NewBitBlockCounter returns a BitBlockCounter over nbits bits of bitmap
// beginning at startOffset.
func NewBitBlockCounter(bitmap []byte, startOffset, nbits int64) *BitBlockCounter {
	return &BitBlockCounter{
		bitmap:        bitmap[startOffset/8:],
		bitsRemaining: nbits,
		bitOffset:     int8(startOffset % 8),
	}
}

// countTail handles the final partial block, counting bit by bit.
func (b *BitBlockCounter) countTail(blockSize int64) BitBlockCount {
	n := int16(utils.Min(b.bitsRemaining, blockSize))
	popcnt := int16(bitutil.CountSetBits(b.bitmap, int(b.bitOffset), int(n)))
	b.bitsRemaining -= int64(n)
	b.bitmap = b.bitmap[n/8:]
	return BitBlockCount{n, popcnt}
}

// countWords popcounts nwords full words. Calls after the bitmap is
// exhausted return zero-length blocks.
func (b *BitBlockCounter) countWords(nwords int64) BitBlockCount {
	if b.bitsRemaining == 0 {
		return BitBlockCount{}
	}

	blockBits := nwords * wordBits
	popcnt := 0
	if b.bitOffset == 0 {
		if b.bitsRemaining < blockBits {
			return b.countTail(blockBits)
		}
		for i := int64(0); i < nwords; i++ {
			popcnt += bits.OnesCount64(loadWord(b.bitmap[i*8:]))
		}
	} else {
		// an unaligned read needs one word past the last full one
		if b.bitsRemaining < blockBits+int64(b.bitOffset) {
			return b.countTail(blockBits)
		}
		cur := loadWord(b.bitmap)
		for i := int64(0); i < nwords; i++ {
			next := loadWord(b.bitmap[(i+1)*8:])
			popcnt += bits.OnesCount64(shiftWord(cur, next, int64(b.bitOffset)))
			cur = next
		}
	}

	b.bitmap = b.bitmap[blockBits/8:]
	b.bitsRemaining -= blockBits
	return BitBlockCount{int16(blockBits), int16(popcnt)}
}

// NextFourWords returns the next run of up to 256 bits with its popcount.
// The final block is shorter when the bitmap length is not a multiple of
// 256; after that, zero-length blocks.
func (b *BitBlockCounter) NextFourWords() BitBlockCount {
	return b.countWords(4)
}

// NextWord is NextFourWords with a 64-bit block size.
func (b *BitBlockCounter) NextWord() BitBlockCount {
	return b.countWords(1)
}

// OptionalBitBlockCounter behaves like BitBlockCounter but tolerates a nil
// bitmap, letting one code path serve both the with-nulls and no-nulls
// cases.
type OptionalBitBlockCounter struct {
	hasBitmap bool
	pos       int64
	len       int64
	counter   BitBlockCounter
}

func NewOptionalBitBlockCounter(bitmap []byte, offset, length int64) *OptionalBitBlockCounter {
	var counter BitBlockCounter
	if bitmap != nil {
		counter = *NewBitBlockCounter(bitmap, offset, length)
	}
	return &OptionalBitBlockCounter{
		hasBitmap: bitmap != nil,
		len:       length,
		counter:   counter,
	}
}

// allValid emits a fully-set block of up to limit bits, used when there is
// no bitmap so every value counts as valid.
func (obc *OptionalBitBlockCounter) allValid(limit int64) BitBlockCount {
	n := int16(utils.Min(limit, obc.len-obc.pos))
	obc.pos += int64(n)
	return BitBlockCount{n, n}
}

// NextBlock returns the count for the next word when a bitmap is present,
// or an all-valid block of up to INT16_MAX bits when there is none.
func (obc *OptionalBitBlockCounter) NextBlock() BitBlockCount {
	if !obc.hasBitmap {
		return obc.allValid(math.MaxInt16)
	}
	block := obc.counter.NextWord()
	obc.pos += int64(block.Len)
	return block
}

// NextWord is like NextBlock but caps the no-bitmap case at word size.
func (obc *OptionalBitBlockCounter) NextWord() BitBlockCount {
	if !obc.hasBitmap {
		return obc.allValid(wordBits)
	}
	block := obc.counter.NextWord()
	obc.pos += int64(block.Len)
	return block
}

// VisitBitBlocksShort walks the bits of a bitmap block by block, calling
// visitValid with the position of each set bit and visitInvalid for each
// clear one. Returning an error from either visitor stops the walk. A nil
// bitmap is treated as all-set. Prefer a hand-written loop where
// performance matters.
func VisitBitBlocksShort(bitmap []byte, offset, length int64, visitValid func(pos int64) error, visitInvalid func() error) error {
	counter := NewOptionalBitBlockCounter(bitmap, offset, length)
	for pos := int64(0); pos < length; {
		block := counter.NextBlock()
		switch {
		case block.AllSet():
			for i := 0; i < int(block.Len); i, pos = i+1, pos+1 {
				if err := visitValid(pos); err != nil {
					return err
				}
			}
		case block.NoneSet():
			for i := 0; i < int(block.Len); i, pos = i+1, pos+1 {
				if err := visitInvalid(); err != nil {
					return err
				}
			}
		default:
			for i := 0; i < int(block.Len); i, pos = i+1, pos+1 {
				var err error
				if bitutil.BitIsSet(bitmap, int(offset+pos)) {
					err = visitValid(pos)
				} else {
					err = visitInvalid()
				}
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// VisitBitBlocks is VisitBitBlocksShort without the ability to stop early.
func VisitBitBlocks(bitmap []byte, offset, length int64, visitValid func(pos int64), visitInvalid func()) {
	VisitBitBlocksShort(bitmap, offset, length,
		func(pos int64) error { visitValid(pos); return nil },
		func() error { visitInvalid(); return nil })
}

// VisitTwoBitBlocks visits two bitmaps in lockstep, calling visitValid with
// the position when the bit is set in both, and visitNull otherwise. Either
// bitmap may be nil, a nil bitmap being treated as all-set.
func VisitTwoBitBlocks(leftBitmap, rightBitmap []byte, leftOffset, rightOffset int64, len int64, visitValid func(pos int64), visitNull func()) {
	if leftBitmap == nil || rightBitmap == nil {
		// at most one bitmap is present, fall back to the unary walk
		if leftBitmap == nil {
			VisitBitBlocks(rightBitmap, rightOffset, len, visitValid, visitNull)
		} else {
			VisitBitBlocks(leftBitmap, leftOffset, len, visitValid, visitNull)
		}
		return
	}

	counter := NewBinaryBitBlockCounter(leftBitmap, rightBitmap, leftOffset, rightOffset, len)
	for pos := int64(0); pos < len; {
		block := counter.NextAndWord()
		switch {
		case block.AllSet():
			for i := 0; i < int(block.Len); i, pos = i+1, pos+1 {
				visitValid(pos)
			}
		case block.NoneSet():
			for i := 0; i < int(block.Len); i, pos = i+1, pos+1 {
				visitNull()
			}
		default:
			for i := 0; i < int(block.Len); i, pos = i+1, pos+1 {
				if bitutil.BitIsSet(leftBitmap, int(leftOffset+pos)) && bitutil.BitIsSet(rightBitmap, int(rightOffset+pos)) {
					visitValid(pos)
				} else {
					visitNull()
				}
			}
		}
	}
}

type binaryBitOp struct {
	bit  func(bool, bool) bool
	word func(uint64, uint64) uint64
}

var (
	bitBlockAnd = binaryBitOp{
		bit:  func(a, b bool) bool { return a && b },
		word: func(a, b uint64) uint64 { return a & b },
	}
	bitBlockAndNot = binaryBitOp{
		bit:  func(a, b bool) bool { return a && !b },
		word: func(a, b uint64) uint64 { return a &^ b },
	}
	bitBlockOr = binaryBitOp{
		bit:  func(a, b bool) bool { return a || b },
		word: func(a, b uint64) uint64 { return a | b },
	}
	bitBlockOrNot = binaryBitOp{
		bit:  func(a, b bool) bool { return a || !b },
		word: func(a, b uint64) uint64 { return a | ^b },
	}
)

// BinaryBitBlockCounter computes popcounts on the result of a bitwise
// operation between two bitmaps, 64 bits at a time.
type BinaryBitBlockCounter struct {
	left          []byte
	right         []byte
	bitsRemaining int64
	leftOffset    int64
	rightOffset   int64

	bitsRequiredForWords int64
}

// NewBinaryBitBlockCounter constructs a counter over the two bitmaps with
// their respective bit offsets.
func NewBinaryBitBlockCounter(left, right []byte, leftOffset, rightOffset int64, length int64) *BinaryBitBlockCounter {
	ret := &BinaryBitBlockCounter{
		left:          left[leftOffset/8:],
		right:         right[rightOffset/8:],
		leftOffset:    leftOffset % 8,
		rightOffset:   rightOffset % 8,
		bitsRemaining: length,
	}

	// an unaligned side needs its offset's worth of extra bits for the
	// shifted word read
	need := func(offset int64) int64 {
		if offset != 0 {
			return wordBits + offset
		}
		return wordBits
	}
	ret.bitsRequiredForWords = utils.Max(need(ret.leftOffset), need(ret.rightOffset))
	return ret
}

// NextAndWord returns the popcount of the bitwise-and of the next run of
// up to 64 bits. The final block is shorter when the bitmap length is not
// a word multiple; after that, zero-length blocks.
func (b *BinaryBitBlockCounter) NextAndWord() BitBlockCount { return b.nextWord(bitBlockAnd) }

// NextAndNotWord is like NextAndWord but computes x &^ y.
func (b *BinaryBitBlockCounter) NextAndNotWord() BitBlockCount { return b.nextWord(bitBlockAndNot) }

// NextOrWord is like NextAndWord but computes x | y.
func (b *BinaryBitBlockCounter) NextOrWord() BitBlockCount { return b.nextWord(bitBlockOr) }

// NextOrNotWord is like NextAndWord but computes x | ^y.
func (b *BinaryBitBlockCounter) NextOrNotWord() BitBlockCount { return b.nextWord(bitBlockOrNot) }

func (b *BinaryBitBlockCounter) nextWord(op binaryBitOp) BitBlockCount {
	if b.bitsRemaining == 0 {
		return BitBlockCount{}
	}

	if b.bitsRemaining < b.bitsRequiredForWords {
		// not enough bits left for a shifted word read, count one by one.
		// This path runs at most twice; the first time the run length is
		// a multiple of 8.
		n := int16(utils.Min(b.bitsRemaining, int64(wordBits)))
		var popcnt int16
		for i := int16(0); i < n; i++ {
			if op.bit(bitutil.BitIsSet(b.left, int(b.leftOffset)+int(i)),
				bitutil.BitIsSet(b.right, int(b.rightOffset)+int(i))) {
				popcnt++
			}
		}
		b.left = b.left[n/8:]
		b.right = b.right[n/8:]
		b.bitsRemaining -= int64(n)
		return BitBlockCount{Len: n, Popcnt: popcnt}
	}

	var popcnt int
	if b.leftOffset == 0 && b.rightOffset == 0 {
		popcnt = bits.OnesCount64(op.word(loadWord(b.left), loadWord(b.right)))
	} else {
		lw := shiftWord(loadWord(b.left), loadWord(b.left[8:]), b.leftOffset)
		rw := shiftWord(loadWord(b.right), loadWord(b.right[8:]), b.rightOffset)
		popcnt = bits.OnesCount64(op.word(lw, rw))
	}
	b.left = b.left[wordBits/8:]
	b.right = b.right[wordBits/8:]
	b.bitsRemaining -= wordBits
	return BitBlockCount{Len: int16(wordBits), Popcnt: int16(popcnt)}
}
