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

package array_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/memory"
)

func TestNullArray(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewNullBuilder(mem)
	defer bldr.Release()

	bldr.AppendNull()
	bldr.AppendNulls(2)

	arr := bldr.NewArray().(*array.Null)
	defer arr.Release()

	assert.Equal(t, 3, arr.Len())
	assert.Equal(t, 3, arr.NullN())
	assert.Equal(t, quiver.Null, arr.DataType())

	arr.Retain()
	arr.Release()
	assert.NotNil(t, arr.Data())

	// the builder is empty again after NewArray
	next := bldr.NewNullArray()
	defer next.Release()
	assert.Zero(t, next.Len())

	fixed := array.NewNull(10)
	defer fixed.Release()
	assert.Equal(t, 10, fixed.Len())
	assert.Equal(t, 10, fixed.NullN())
}

func TestNullSlice(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	arr := array.NewNull(10)
	defer arr.Release()

	slice := array.NewSlice(arr, 2, 5).(*array.Null)
	defer slice.Release()

	assert.Equal(t, 3, slice.Len())
	assert.Equal(t, 3, slice.NullN())
}
