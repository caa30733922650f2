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

package bitutils_test

import (
	"testing"

	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/internal/bitutils"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

const wordBits = 64

func expectBlock(t *testing.T, block bitutils.BitBlockCount, length, popcnt int64) {
	t.Helper()
	assert.EqualValues(t, length, block.Len)
	assert.EqualValues(t, popcnt, block.Popcnt)
}

func allOnes(nbytes int64) []byte {
	buf := make([]byte, nbytes)
	for i := range buf {
		buf[i] = 0xFF
	}
	return buf
}

func TestBitBlockCounterOneWord(t *testing.T) {
	const nbytes = 1024
	buf := make([]byte, nbytes)
	counter := bitutils.NewBitBlockCounter(buf, 0, nbytes*8)

	var scanned int64
	for i := 0; i < nbytes/8; i++ {
		block := counter.NextWord()
		expectBlock(t, block, wordBits, 0)
		scanned += int64(block.Len)
	}
	assert.EqualValues(t, nbytes*8, scanned)

	// an exhausted counter keeps handing out empty blocks
	block := counter.NextWord()
	expectBlock(t, block, 0, 0)
	assert.True(t, block.NoneSet())
}

func TestBitBlockCounterFourWords(t *testing.T) {
	const nbytes = 1024
	buf := make([]byte, nbytes)
	counter := bitutils.NewBitBlockCounter(buf, 0, nbytes*8)

	var scanned int64
	for i := 0; i < nbytes/32; i++ {
		block := counter.NextFourWords()
		expectBlock(t, block, 4*wordBits, 0)
		scanned += int64(block.Len)
	}
	assert.EqualValues(t, nbytes*8, scanned)
	expectBlock(t, counter.NextFourWords(), 0, 0)
}

func TestBitBlockCounterOneWordOffsets(t *testing.T) {
	const nwords = 4

	for offset := int64(0); offset < 8; offset++ {
		buf := allOnes(nwords*8 + 1)
		// leave one bit off the end so the final block is a remainder
		counter := bitutils.NewBitBlockCounter(buf, offset, nwords*wordBits-offset-1)

		expectBlock(t, counter.NextWord(), wordBits, wordBits)

		// clear a single bit in the second word
		bitutil.SetBitTo(buf, int(wordBits+offset), false)
		expectBlock(t, counter.NextWord(), wordBits, wordBits-1)

		// third word entirely unset
		bitutil.SetBitsTo(buf, 2*wordBits+offset, wordBits, false)
		expectBlock(t, counter.NextWord(), wordBits, 0)

		block := counter.NextWord()
		expectBlock(t, block, wordBits-offset-1, wordBits-offset-1)
		assert.True(t, block.AllSet())

		// reading past the end stays safe
		expectBlock(t, counter.NextWord(), 0, 0)
	}
}

func TestBitBlockCounterFourWordOffsets(t *testing.T) {
	const nwords = 17

	for offset := int64(0); offset < 8; offset++ {
		buf := allOnes(nwords*8 + 1)
		// leave one bit off the end so the final block is a remainder
		counter := bitutils.NewBitBlockCounter(buf, offset, nwords*wordBits-offset-1)

		expectBlock(t, counter.NextFourWords(), 4*wordBits, 4*wordBits)

		// clear one bit in each of the next three words
		for word := int64(4); word < 7; word++ {
			bitutil.ClearBit(buf, int(word*wordBits+offset))
		}
		expectBlock(t, counter.NextFourWords(), 4*wordBits, 4*wordBits-3)

		// two whole words unset leaves the block half full
		bitutil.SetBitsTo(buf, 8*wordBits+offset, 2*wordBits, false)
		expectBlock(t, counter.NextFourWords(), 4*wordBits, 2*wordBits)

		expectBlock(t, counter.NextFourWords(), 4*wordBits, 4*wordBits)

		// the trailing partial block
		expectBlock(t, counter.NextFourWords(), wordBits-offset-1, wordBits-offset-1)

		// reading past the end stays safe
		expectBlock(t, counter.NextFourWords(), 0, 0)
	}
}

func TestBitBlockCounterFourWordsRandomData(t *testing.T) {
	const nbytes = 1024

	buf := make([]byte, nbytes)
	r := rand.New(rand.NewSource(0))
	r.Read(buf)

	for offset := int64(0); offset < 8; offset++ {
		counter := bitutils.NewBitBlockCounter(buf, offset, nbytes*8-offset)
		for i := 0; i < nbytes/32; i++ {
			block := counter.NextFourWords()
			want := bitutil.CountSetBits(buf, i*256+int(offset), int(block.Len))
			assert.EqualValues(t, want, block.Popcnt)
		}
	}
}
