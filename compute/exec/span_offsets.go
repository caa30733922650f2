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

package exec

import (
	"unsafe"
)

// setOffsetsForScalar fills the offsets buffer of a length-1 binary-like
// span, pointing the span's offsets buffer at the typed slice without
// copying. The spare scratch slot keeps the two offsets alive.
func setOffsetsForScalar(span *ArraySpan, buf []int32, valueSize int64, bufidx int) {
	buf[0] = 0
	buf[1] = int32(valueSize)

	span.Buffers[bufidx].Buf = unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), 2*int(unsafe.Sizeof(int32(0))))
	span.Buffers[bufidx].Owner = nil
	span.Buffers[bufidx].SelfAlloc = false
}
