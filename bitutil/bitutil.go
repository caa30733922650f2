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
	"math"
	"math/bits"
	"unsafe"

	"github.com/quiverdata/quiver/endian"
)

var (
	// BitMask holds the single-bit mask for each position within a byte.
	BitMask = [8]byte{1, 2, 4, 8, 16, 32, 64, 128}

	// FlippedBitMask is the bitwise complement of BitMask.
	FlippedBitMask = [8]byte{254, 253, 251, 247, 239, 223, 191, 127}

	// PrecedingBitmask[i] masks the i bits below position i within a byte.
	PrecedingBitmask = [8]byte{0, 1, 3, 7, 15, 31, 63, 127}
)

// IsMultipleOf8 returns whether v is a multiple of 8.
func IsMultipleOf8(v int64) bool { return v&7 == 0 }

// IsMultipleOf64 returns whether v is a multiple of 64.
func IsMultipleOf64(v int64) bool { return v&63 == 0 }

// LeastSignificantBitMask returns a mask covering the index lowest bits.
func LeastSignificantBitMask(index int64) uint64 {
	return (uint64(1) << index) - 1
}

// BytesForBits returns the number of bytes needed to hold bits bits.
func BytesForBits(bits int64) int64 { return (bits + 7) >> 3 }

// NextPowerOf2 rounds x up to the next power of two.
func NextPowerOf2(x int) int { return 1 << uint(bits.Len(uint(x))) }

// CeilByte rounds size up to the next multiple of 8.
func CeilByte(size int) int { return (size + 7) &^ 7 }

// CeilByte64 rounds size up to the next multiple of 8.
func CeilByte64(size int64) int64 { return (size + 7) &^ 7 }

// BitIsSet returns true if bit i of buf is 1.
func BitIsSet(buf []byte, i int) bool { return (buf[uint(i)/8] & BitMask[byte(i)%8]) != 0 }

// BitIsNotSet returns true if bit i of buf is 0.
func BitIsNotSet(buf []byte, i int) bool { return (buf[uint(i)/8] & BitMask[byte(i)%8]) == 0 }

// SetBit sets bit i of buf to 1.
func SetBit(buf []byte, i int) { buf[uint(i)/8] |= BitMask[byte(i)%8] }

// ClearBit sets bit i of buf to 0.
func ClearBit(buf []byte, i int) { buf[uint(i)/8] &= FlippedBitMask[byte(i)%8] }

// SetBitTo sets bit i of buf to val.
func SetBitTo(buf []byte, i int, val bool) {
	if val {
		SetBit(buf, i)
	} else {
		ClearBit(buf, i)
	}
}

// SetBitsTo assigns areSet to the length bits starting at startOffset.
func SetBitsTo(bits []byte, startOffset, length int64, areSet bool) {
	if length == 0 {
		return
	}

	var fill uint8
	if areSet {
		fill = math.MaxUint8
	}

	first := startOffset / 8
	end := startOffset + length
	last := end/8 + 1

	// keep holds the bits of a boundary byte that must not change
	headKeep := PrecedingBitmask[startOffset%8]
	tailKeep := ^PrecedingBitmask[end%8]
	if end%8 == 0 {
		tailKeep = 0
	}

	blend := func(idx int64, keep uint8) {
		bits[idx] = bits[idx]&keep | fill&^keep
	}

	if last == first+1 {
		// the run fits inside one byte, so both masks apply to it
		keep := headKeep
		if end%8 != 0 {
			keep |= tailKeep
		}
		blend(first, keep)
		return
	}

	blend(first, headKeep)
	for i := first + 1; i < last-1; i++ {
		bits[i] = fill
	}
	if end%8 != 0 {
		blend(last-1, tailKeep)
	}
}

func asUint64s(b []byte) []uint64 {
	if len(b) < 8 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}

// CountSetBits counts the 1 bits among the n bits starting at offset.
func CountSetBits(buf []byte, offset, n int) int {
	if offset > 0 {
		return countSetBitsOffset(buf, offset, n)
	}

	count := 0

	// whole 64-bit words, then whole bytes, then the stragglers
	words := n / 8 &^ 7
	for _, w := range asUint64s(buf[:words]) {
		count += bits.OnesCount64(w)
	}
	for _, b := range buf[words : n/8] {
		count += bits.OnesCount8(b)
	}
	for i := n &^ 7; i < n; i++ {
		if BitIsSet(buf, i) {
			count++
		}
	}
	return count
}

// countSetBitsOffset counts the leading unaligned bits one at a time,
// then hands the byte-aligned remainder to CountSetBits.
func countSetBitsOffset(buf []byte, offset, n int) int {
	aligned := roundUpTo(offset, 8)
	head := aligned - offset
	if head > n {
		head = n
	}

	count := 0
	for i := offset; i < offset+head; i++ {
		if BitIsSet(buf, i) {
			count++
		}
	}
	if head < n {
		count += CountSetBits(buf[aligned/8:], 0, n-head)
	}
	return count
}

func roundUpTo(v, f int) int { return (v + (f - 1)) / f * f }

var toFromLEFunc = func(in uint64) uint64 { return in }

func init() {
	if endian.IsBigEndian {
		toFromLEFunc = bits.ReverseBytes64
	}
}
