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
	"encoding/binary"
	"math/bits"
	"unsafe"

	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/internal/utils"
)

// SetBitRun describes a run of contiguous set bits in a bitmap with Pos being
// the starting position of the run and Length being the number of bits.
type SetBitRun struct {
	Pos    int64
	Length int64
}

// AtEnd returns true if this bit run is the end of the set by checking
// that the length is 0.
func (s SetBitRun) AtEnd() bool { return s.Length == 0 }

// Equal returns whether rhs is the same run as s
func (s SetBitRun) Equal(rhs SetBitRun) bool {
	return s.Pos == rhs.Pos && s.Length == rhs.Length
}

// VisitFn is a callback function for visiting runs of contiguous bits
type VisitFn func(pos int64, length int64) error

// SetBitRunReader is an interface for reading groups of contiguous set bits
// from a bitmap. The interface allows us to create different reader
// implementations that share the same interface easily such as a reverse
// set reader.
type SetBitRunReader interface {
	// NextRun will return the next run of contiguous set bits in the bitmap
	NextRun() SetBitRun
	// Reset allows re-using the reader by providing a new bitmap, offset
	// and length. The arguments match the New function for the reader being used.
	Reset([]byte, int64, int64)
	// VisitSetBitRuns calls visitFn for each set run in a loop starting from
	// the current position. It's roughly equivalent to simply looping, calling
	// NextRun and calling visitFn on the run for each run.
	VisitSetBitRuns(visitFn VisitFn) error
}

type baseSetBitRunReader struct {
	bitmap      []byte
	startOffset int64
	length      int64
	consumed    int64
	curWord     uint64
	curNumBits  int32
	reversed    bool
}

// NewSetBitRunReader returns a SetBitRunReader for the bitmap starting at startOffset
// which will read numvalues bits.
func NewSetBitRunReader(validBits []byte, startOffset, numValues int64) SetBitRunReader {
	return newBaseSetBitRunReader(validBits, startOffset, numValues, false)
}

// NewReverseSetBitRunReader returns a SetBitRunReader like NewSetBitRunReader, except
// it will return runs starting from the end of the bitmap until it reaches startOffset
// rather than starting at startOffset and reading from there. The SetBitRuns will
// still operate the same, so Pos will still be the position of the "left-most" bit
// of the run or the "start" of the run. It just returns runs starting from the end
// instead of starting from the beginning.
func NewReverseSetBitRunReader(validBits []byte, startOffset, numValues int64) SetBitRunReader {
	return newBaseSetBitRunReader(validBits, startOffset, numValues, true)
}

func newBaseSetBitRunReader(bitmap []byte, startOffset, length int64, reverse bool) *baseSetBitRunReader {
	ret := &baseSetBitRunReader{reversed: reverse}
	ret.Reset(bitmap, startOffset, length)
	return ret
}

func (br *baseSetBitRunReader) Reset(bitmap []byte, startOffset, length int64) {
	br.bitmap = bitmap
	br.startOffset = startOffset
	br.length = length
	br.consumed = 0
	br.curWord = 0
	br.curNumBits = 0

	if length == 0 {
		return
	}

	if !br.reversed {
		// load the bits of the first byte to get to a byte boundary,
		// subsequent loads are then byte aligned.
		bitOffset := startOffset % 8
		if bitOffset != 0 {
			br.curNumBits = int32(utils.Min(length, 8-bitOffset))
			b := br.bitmap[startOffset/8]
			br.curWord = uint64(b) >> uint(bitOffset)
			br.curWord &= uint64(1)<<uint(br.curNumBits) - 1
		}
		return
	}

	// for the reverse reader the current word is consumed from the most
	// significant bit down, bit 63 being the next bit to read.
	end := startOffset + length
	endOffset := end % 8
	if endOffset != 0 {
		br.curNumBits = int32(utils.Min(length, endOffset))
		b := br.bitmap[end/8]
		br.curWord = uint64(b) << uint(wordBits-endOffset)
		br.curWord &= ^(^uint64(0) >> uint(br.curNumBits))
	}
}

// loadNextWord loads up to 64 bits adjacent to the already consumed region,
// returning false when the bitmap is exhausted. Invalid bits of the loaded
// word are cleared so run counting stops at the window boundary.
func (br *baseSetBitRunReader) loadNextWord() bool {
	rem := br.length - br.consumed
	if rem <= 0 {
		return false
	}
	n := int32(utils.Min(rem, int64(wordBits)))

	if !br.reversed {
		p := br.startOffset + br.consumed // byte aligned after Reset
		if n == wordBits {
			br.curWord = binary.LittleEndian.Uint64(br.bitmap[p/8:])
		} else {
			nbytes := bitutil.BytesForBits(int64(n))
			var w [8]byte
			copy(w[:], br.bitmap[p/8:p/8+nbytes])
			br.curWord = utils.ToLEUint64(*(*uint64)(unsafe.Pointer(&w[0])))
			br.curWord &= uint64(1)<<uint(n) - 1
		}
	} else {
		e := br.startOffset + br.length - br.consumed // byte aligned after Reset
		if n == wordBits {
			br.curWord = binary.LittleEndian.Uint64(br.bitmap[e/8-8:])
		} else {
			firstByte := (e - int64(n)) / 8
			nbytes := e/8 - firstByte
			var w [8]byte
			copy(w[:], br.bitmap[firstByte:firstByte+nbytes])
			tmp := utils.ToLEUint64(*(*uint64)(unsafe.Pointer(&w[0])))
			br.curWord = tmp << uint(int64(wordBits)-nbytes*8)
			br.curWord &= ^(^uint64(0) >> uint(n))
		}
	}
	br.curNumBits = n
	return true
}

func (br *baseSetBitRunReader) countFirstZeros(word uint64) int32 {
	if br.reversed {
		return int32(bits.LeadingZeros64(word))
	}
	return int32(bits.TrailingZeros64(word))
}

func (br *baseSetBitRunReader) consumeBits(word uint64, nbits int32) uint64 {
	if br.reversed {
		return word << uint(nbits)
	}
	return word >> uint(nbits)
}

// NextRun returns the next run of set bits in the bitmap, with Pos always
// relative to the reader's start offset. A zero Length indicates the end
// of the bitmap.
func (br *baseSetBitRunReader) NextRun() SetBitRun {
	var (
		pos    int64
		length int64
	)

	// skip over zeros to find the start of the next set run
	for {
		if br.curNumBits == 0 {
			if !br.loadNextWord() {
				return SetBitRun{0, 0}
			}
		}
		zeros := br.countFirstZeros(br.curWord)
		if zeros >= br.curNumBits {
			// the rest of the word is zeros
			br.consumed += int64(br.curNumBits)
			br.curNumBits = 0
			continue
		}
		br.curWord = br.consumeBits(br.curWord, zeros)
		br.consumed += int64(zeros)
		br.curNumBits -= zeros
		break
	}

	if !br.reversed {
		pos = br.consumed
	}

	// count the length of the run, which may span word boundaries
	for {
		ones := br.countFirstZeros(^br.curWord)
		if ones >= br.curNumBits {
			// the rest of the word is ones
			length += int64(br.curNumBits)
			br.consumed += int64(br.curNumBits)
			br.curNumBits = 0
			if !br.loadNextWord() {
				break
			}
			continue
		}
		length += int64(ones)
		br.consumed += int64(ones)
		br.curWord = br.consumeBits(br.curWord, ones)
		br.curNumBits -= ones
		break
	}

	if br.reversed {
		pos = br.length - br.consumed
	}
	return SetBitRun{pos, length}
}

func (br *baseSetBitRunReader) VisitSetBitRuns(visitFn VisitFn) error {
	for {
		run := br.NextRun()
		if run.Length == 0 {
			break
		}
		if err := visitFn(run.Pos, run.Length); err != nil {
			return err
		}
	}
	return nil
}

// VisitSetBitRuns calls visitFn for each set bit run in the bitmap. A nil
// bitmap is considered entirely set, producing a single run.
func VisitSetBitRuns(bitmap []byte, bitmapOffset, length int64, visitFn VisitFn) error {
	if length == 0 {
		return nil
	}
	if bitmap == nil {
		return visitFn(0, length)
	}
	rdr := NewSetBitRunReader(bitmap, bitmapOffset, length)
	for {
		run := rdr.NextRun()
		if run.Length == 0 {
			break
		}
		if err := visitFn(run.Pos, run.Length); err != nil {
			return err
		}
	}
	return nil
}

// VisitSetBitRunsNoErr is like VisitSetBitRuns but takes a visit function
// which cannot fail.
func VisitSetBitRunsNoErr(bitmap []byte, bitmapOffset, length int64, visitFn func(pos, length int64)) {
	if length == 0 {
		return
	}
	if bitmap == nil {
		visitFn(0, length)
		return
	}
	rdr := NewSetBitRunReader(bitmap, bitmapOffset, length)
	for {
		run := rdr.NextRun()
		if run.Length == 0 {
			break
		}
		visitFn(run.Pos, run.Length)
	}
}
