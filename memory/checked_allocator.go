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

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Allocations normally happen inside memory.Buffer rather than through
// direct Allocate/Reallocate calls, so a few frames must be skipped to
// report the caller that actually triggered the allocation (Resize,
// Reserve, ...). The skip depths can be tuned with the
// QUIVER_CHECKED_ALLOC_FRAMES and QUIVER_CHECKED_REALLOC_FRAMES
// environment variables when hunting a leak.
var allocFrames, reallocFrames = 4, 3

func init() {
	framesFromEnv := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	framesFromEnv("QUIVER_CHECKED_ALLOC_FRAMES", &allocFrames)
	framesFromEnv("QUIVER_CHECKED_REALLOC_FRAMES", &reallocFrames)
}

// allocSite remembers where an outstanding allocation came from.
type allocSite struct {
	pc   uintptr
	line int
	size int
}

// CheckedAllocator wraps another allocator and tracks every outstanding
// allocation along with the call site that made it, so tests can assert
// that everything handed out was returned.
type CheckedAllocator struct {
	mem Allocator
	cur int64

	live sync.Map // uintptr -> *allocSite
}

func NewCheckedAllocator(mem Allocator) *CheckedAllocator {
	return &CheckedAllocator{mem: mem}
}

func (a *CheckedAllocator) CurrentAlloc() int { return int(atomic.LoadInt64(&a.cur)) }

func bufKey(b []byte) uintptr { return uintptr(unsafe.Pointer(&b[0])) }

func (a *CheckedAllocator) track(b []byte, skip int) {
	// skip+1 accounts for this helper's own frame
	if pc, _, line, ok := runtime.Caller(skip + 1); ok {
		a.live.Store(bufKey(b), &allocSite{pc: pc, line: line, size: len(b)})
	}
}

func (a *CheckedAllocator) Allocate(size int) []byte {
	atomic.AddInt64(&a.cur, int64(size))
	out := a.mem.Allocate(size)
	if size != 0 {
		a.track(out, allocFrames)
	}
	return out
}

func (a *CheckedAllocator) Reallocate(size int, b []byte) []byte {
	if len(b) == 0 {
		return a.Allocate(size)
	}

	atomic.AddInt64(&a.cur, int64(size-len(b)))
	a.live.Delete(bufKey(b))
	out := a.mem.Reallocate(size, b)
	if size != 0 {
		a.track(out, reallocFrames)
	}
	return out
}

func (a *CheckedAllocator) Free(b []byte) {
	atomic.AddInt64(&a.cur, -int64(len(b)))
	if len(b) != 0 {
		a.live.Delete(bufKey(b))
	}
	a.mem.Free(b)
}

// TestingT is the subset of testing.TB the assertions below need.
type TestingT interface {
	Errorf(format string, args ...interface{})
	Helper()
}

// AssertSize reports an error for every allocation still outstanding and
// for any mismatch between the expected and tracked byte totals.
func (a *CheckedAllocator) AssertSize(t TestingT, sz int) {
	t.Helper()
	a.live.Range(func(_, v interface{}) bool {
		site := v.(*allocSite)
		t.Errorf("leaked %d bytes allocated from %s line %d",
			site.size, runtime.FuncForPC(site.pc).Name(), site.line)
		return true
	})

	if got := a.CurrentAlloc(); got != sz {
		t.Errorf("allocation size mismatch: want %d, got %d", sz, got)
	}
}

// CheckedAllocatorScope snapshots the tracked size so a region of a test
// can verify it released whatever it allocated.
type CheckedAllocatorScope struct {
	alloc *CheckedAllocator
	sz    int
}

func NewCheckedAllocatorScope(alloc *CheckedAllocator) *CheckedAllocatorScope {
	return &CheckedAllocatorScope{alloc: alloc, sz: alloc.CurrentAlloc()}
}

func (c *CheckedAllocatorScope) CheckSize(t TestingT) {
	if got := c.alloc.CurrentAlloc(); got != c.sz {
		t.Helper()
		t.Errorf("allocation size mismatch: want %d, got %d", c.sz, got)
	}
}

var _ Allocator = (*CheckedAllocator)(nil)
