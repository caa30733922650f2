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
	"github.com/quiverdata/quiver/internal/utils"
	"github.com/stretchr/testify/suite"
)

func reversed(runs []bitutils.SetBitRun) []bitutils.SetBitRun {
	out := make([]bitutils.SetBitRun, len(runs))
	for i, r := range runs {
		out[len(runs)-1-i] = r
	}
	return out
}

// parseBitmap turns a string of '0'/'1' characters into a bitmap,
// ignoring whitespace.
func parseBitmap(s string) []byte {
	out := make([]byte, bitutil.BytesForBits(int64(len(s))))
	n := 0
	for _, c := range s {
		switch c {
		case '0':
			bitutil.ClearBit(out, n)
			n++
		case '1':
			bitutil.SetBit(out, n)
			n++
		case ' ', '\t', '\r', '\n':
		default:
			panic("unexpected character for bitmap string")
		}
	}
	return out[:bitutil.BytesForBits(int64(n))]
}

// naiveSetRuns computes the expected set-bit runs with a simple
// bit-at-a-time scan.
func naiveSetRuns(data []byte, offset, length int) []bitutils.SetBitRun {
	out := make([]bitutils.SetBitRun, 0)
	rdr := bitutil.NewBitmapReader(data, offset, length)

	for pos := 0; pos < length; {
		set := rdr.Set()
		n := int64(0)
		for rdr.Pos() < rdr.Len() && rdr.Set() == set {
			n++
			rdr.Next()
		}
		if set {
			out = append(out, bitutils.SetBitRun{Pos: int64(pos), Length: n})
		}
		pos += int(n)
	}
	return out
}

type BitSetRunReaderSuite struct {
	suite.Suite

	testOffsets []int64
}

func TestBitSetRunReader(t *testing.T) {
	suite.Run(t, new(BitSetRunReaderSuite))
}

func (br *BitSetRunReaderSuite) SetupSuite() {
	br.testOffsets = []int64{0, 1, 6, 7, 8, 33, 63, 64, 65, 71}
	br.T().Parallel()
}

type bitRange struct {
	offset, len int64
}

func (r bitRange) end() int64 { return r.offset + r.len }

// testRanges builds offset/length combinations covering the byte and
// word boundaries of buf.
func (br *BitSetRunReaderSuite) testRanges(buf []byte) []bitRange {
	nbits := int64(len(buf) * 8)
	out := make([]bitRange, 0, 2*len(br.testOffsets)*len(br.testOffsets))
	for _, offset := range br.testOffsets {
		for _, adjust := range br.testOffsets {
			for _, length := range []int64{utils.Min(nbits-offset, adjust), utils.Min(nbits-offset, nbits-adjust)} {
				br.GreaterOrEqual(length, int64(0))
				out = append(out, bitRange{offset, length})
			}
		}
	}
	return out
}

func collectRuns(rdr bitutils.SetBitRunReader) []bitutils.SetBitRun {
	out := make([]bitutils.SetBitRun, 0)
	for {
		run := rdr.NextRun()
		if run.Length == 0 {
			return out
		}
		out = append(out, run)
	}
}

// checkRuns verifies both reader directions against the expected
// forward-order runs.
func (br *BitSetRunReaderSuite) checkRuns(buf []byte, start, length int64, want []bitutils.SetBitRun) {
	br.Equal(want, collectRuns(bitutils.NewSetBitRunReader(buf, start, length)))
	br.Equal(reversed(want), collectRuns(bitutils.NewReverseSetBitRunReader(buf, start, length)))
}

func (br *BitSetRunReaderSuite) TestEmpty() {
	for _, offset := range br.testOffsets {
		br.checkRuns(nil, offset, 0, []bitutils.SetBitRun{})
	}
}

func (br *BitSetRunReaderSuite) TestOneByte() {
	buf := parseBitmap("01101101")
	br.checkRuns(buf, 0, 8, []bitutils.SetBitRun{
		{Pos: 1, Length: 2}, {Pos: 4, Length: 2}, {Pos: 7, Length: 1},
	})

	for _, str := range []string{"01101101", "10110110", "00000000", "11111111"} {
		buf := parseBitmap(str)
		for offset := 0; offset < 8; offset++ {
			for length := 0; length <= 8-offset; length++ {
				br.checkRuns(buf, int64(offset), int64(length), naiveSetRuns(buf, offset, length))
			}
		}
	}
}

func (br *BitSetRunReaderSuite) TestTiny() {
	buf := parseBitmap("11100011 10001110 00111000 11100011 10001110 00111000")

	// runs of three set bits every six positions; trimming the range
	// drops whole runs only when it cuts into them
	threes := func(start int64, n int) []bitutils.SetBitRun {
		out := make([]bitutils.SetBitRun, n)
		for i := range out {
			out[i] = bitutils.SetBitRun{Pos: start + int64(6*i), Length: 3}
		}
		return out
	}

	for _, tc := range []struct {
		offset, length int64
		want           []bitutils.SetBitRun
	}{
		{0, 48, threes(0, 8)},
		{0, 46, threes(0, 8)},
		{0, 45, threes(0, 8)},
		{0, 42, threes(0, 7)},
		{3, 45, threes(3, 7)},
		{3, 43, threes(3, 7)},
		{3, 42, threes(3, 7)},
		{3, 39, threes(3, 6)},
	} {
		br.checkRuns(buf, tc.offset, tc.length, tc.want)
	}
}

func (br *BitSetRunReaderSuite) TestAllZeros() {
	const nbits = 256
	buf := make([]byte, int(bitutil.BytesForBits(nbits)))

	for _, rg := range br.testRanges(buf) {
		br.checkRuns(buf, rg.offset, rg.len, []bitutils.SetBitRun{})
	}
}

func (br *BitSetRunReaderSuite) TestAllOnes() {
	const nbits = 256
	buf := make([]byte, int(bitutil.BytesForBits(nbits)))
	bitutil.SetBitsTo(buf, 0, nbits, true)

	for _, rg := range br.testRanges(buf) {
		want := []bitutils.SetBitRun{}
		if rg.len > 0 {
			want = []bitutils.SetBitRun{{Pos: 0, Length: rg.len}}
		}
		br.checkRuns(buf, rg.offset, rg.len, want)
	}
}

func (br *BitSetRunReaderSuite) TestSmall() {
	// a run of ones at each end, zeros in the middle
	const (
		nbits     = 256
		onesLen   = 64
		onesStart = nbits - onesLen
	)

	buf := make([]byte, int(bitutil.BytesForBits(nbits)))
	bitutil.SetBitsTo(buf, 0, onesLen, true)
	bitutil.SetBitsTo(buf, onesStart, onesLen, true)

	for _, rg := range br.testRanges(buf) {
		want := []bitutils.SetBitRun{}
		if rg.offset < onesLen && rg.len > 0 {
			want = append(want, bitutils.SetBitRun{Pos: 0, Length: utils.Min(onesLen-rg.offset, rg.len)})
		}
		if rg.end() > onesStart {
			want = append(want, bitutils.SetBitRun{Pos: onesStart - rg.offset, Length: rg.end() - onesStart})
		}
		br.checkRuns(buf, rg.offset, rg.len, want)
	}
}

func (br *BitSetRunReaderSuite) TestSingleRun() {
	// a lone run of ones placed at varying positions
	const nbits = 512
	buf := make([]byte, int(bitutil.BytesForBits(nbits)))

	for _, ones := range br.testRanges(buf) {
		bitutil.SetBitsTo(buf, 0, nbits, false)
		bitutil.SetBitsTo(buf, ones.offset, ones.len, true)

		for _, rg := range br.testRanges(buf) {
			want := []bitutils.SetBitRun{}
			if rg.len != 0 && ones.len != 0 && rg.offset < ones.end() && ones.offset < rg.end() {
				start := utils.Max(rg.offset, ones.offset)
				stop := utils.Min(rg.end(), ones.end())
				want = append(want, bitutils.SetBitRun{Pos: start - rg.offset, Length: stop - start})
			}
			br.checkRuns(buf, rg.offset, rg.len, want)
		}
	}
}

func TestVisitSetBitRunsEmpty(t *testing.T) {
	// a nil bitmap counts as all-set, but a zero-length window still has
	// no runs to visit
	err := bitutils.VisitSetBitRuns(nil, 0, 0, func(pos, length int64) error {
		t.Errorf("unexpected visit of run (%d, %d)", pos, length)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	bitutils.VisitSetBitRunsNoErr(nil, 0, 0, func(pos, length int64) {
		t.Errorf("unexpected visit of run (%d, %d)", pos, length)
	})
}
