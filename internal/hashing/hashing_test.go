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

package hashing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func distinctIntegers(n int) []uint64 {
	rng := rand.New(rand.NewSource(42))
	seen := make(map[uint64]bool, n)
	for len(seen) < n {
		seen[uint64(rng.Int())] = true
	}
	out := make([]uint64, 0, n)
	for v := range seen {
		out = append(out, v)
	}
	return out
}

func sequentialIntegers(n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(i)
	}
	return out
}

func distinctStrings(n int) []string {
	rng := rand.New(rand.NewSource(42))
	seen := make(map[string]bool, n)
	for len(seen) < n {
		data := make([]byte, rng.Intn(24))
		for i := range data {
			data[i] = byte('0' + rng.Intn('z'-'0'+1))
		}
		seen[string(data)] = true
	}
	out := make([]string, 0, n)
	for v := range seen {
		out = append(out, v)
	}
	return out
}

// with two seeds per input, at least 96% of the hashes of 10k distinct
// values should themselves be distinct
func TestHashingQualityInt(t *testing.T) {
	const n = 10000

	for name, input := range map[string][]uint64{
		"distinct":   distinctIntegers(n),
		"sequential": sequentialIntegers(n),
	} {
		t.Run(name, func(t *testing.T) {
			seen := make(map[uint64]bool, 2*n)
			for _, v := range input {
				seen[hashInt(v, 0)] = true
				seen[hashInt(v, 1)] = true
			}
			assert.GreaterOrEqual(t, float64(len(seen)), 0.96*float64(2*len(input)))
		})
	}
}

func TestHashingQualityString(t *testing.T) {
	const n = 10000

	seen := make(map[uint64]bool, 2*n)
	for _, v := range distinctStrings(n) {
		seen[hashString(v, 0)] = true
		seen[hashString(v, 1)] = true
	}
	assert.GreaterOrEqual(t, float64(len(seen)), 0.96*float64(2*n))
}

// flipping the final byte must change the hash for nearly every value,
// across lengths straddling the small-input special cases
func TestHashingBoundsStrings(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 5, 7, 8, 9, 15, 16, 17, 18, 19, 20, 21} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i)
		}

		base := Hash(data, 1)
		changed := 0
		for b := 0; b < 120; b++ {
			data[size-1] = byte(b)
			if Hash(data, 1) != base {
				changed++
			}
		}
		assert.GreaterOrEqual(t, changed, 118, "size %d", size)
	}
}
