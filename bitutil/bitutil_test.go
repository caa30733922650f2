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

package bitutil_test

import (
	"fmt"
	"testing"

	"github.com/quiverdata/quiver/bitutil"
	"github.com/stretchr/testify/assert"
)

func TestSetBitsTo(t *testing.T) {
	ranges := []struct {
		offset, length int64
	}{
		{0, 8},
		{0, 3},
		{3, 3},
		{2, 11},
		{5, 21},
		{8, 16},
		{13, 1},
		{21, 0},
		{129, 64},
		{120, 49},
	}

	for _, areSet := range []bool{true, false} {
		for _, r := range ranges {
			t.Run(fmt.Sprintf("set=%t offset=%d length=%d", areSet, r.offset, r.length), func(t *testing.T) {
				buf := make([]byte, 32)
				for i := range buf {
					buf[i] = 0xAA
				}

				bitutil.SetBitsTo(buf, r.offset, r.length, areSet)

				for i := int64(0); i < int64(len(buf)*8); i++ {
					want := i%2 == 1 // the 0xAA background
					if i >= r.offset && i < r.offset+r.length {
						want = areSet
					}
					assert.Equal(t, want, bitutil.BitIsSet(buf, int(i)), "bit %d", i)
				}
			})
		}
	}
}

// A cleared run whose end lands one bit into a byte must leave the rest
// of that byte alone.
func TestSetBitsToTailByte(t *testing.T) {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = 0xFF
	}

	bitutil.SetBitsTo(buf, 129, 64, false)

	assert.True(t, bitutil.BitIsSet(buf, 128))
	for i := 129; i < 193; i++ {
		assert.False(t, bitutil.BitIsSet(buf, i), "bit %d", i)
	}
	assert.True(t, bitutil.BitIsSet(buf, 193))
}
