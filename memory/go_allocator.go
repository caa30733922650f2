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

package memory

// GoAllocator allocates garbage-collected byte slices. Free is a no-op;
// the runtime reclaims the memory once the last reference drops.
type GoAllocator struct{}

func NewGoAllocator() *GoAllocator { return &GoAllocator{} }

// Allocate over-allocates by one alignment unit so the returned slice can
// start on a 64-byte boundary regardless of where the runtime placed it.
func (GoAllocator) Allocate(size int) []byte {
	raw := make([]byte, size+alignment)
	shift := roundUpToMultipleOf64(int(addressOf(raw))) - int(addressOf(raw))
	return raw[shift : shift+size : shift+size]
}

func (a GoAllocator) Reallocate(size int, b []byte) []byte {
	if size == len(b) {
		return b
	}
	out := a.Allocate(size)
	copy(out, b)
	return out
}

func (GoAllocator) Free([]byte) {}

var _ Allocator = (*GoAllocator)(nil)
