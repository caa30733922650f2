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

package quiver

import (
	"unsafe"
)

const (
	Int8SizeBytes    = int(unsafe.Sizeof(int8(0)))
	Int16SizeBytes   = int(unsafe.Sizeof(int16(0)))
	Int32SizeBytes   = int(unsafe.Sizeof(int32(0)))
	Int64SizeBytes   = int(unsafe.Sizeof(int64(0)))
	Uint8SizeBytes   = int(unsafe.Sizeof(uint8(0)))
	Uint16SizeBytes  = int(unsafe.Sizeof(uint16(0)))
	Uint32SizeBytes  = int(unsafe.Sizeof(uint32(0)))
	Uint64SizeBytes  = int(unsafe.Sizeof(uint64(0)))
	Float32SizeBytes = int(unsafe.Sizeof(float32(0)))
	Float64SizeBytes = int(unsafe.Sizeof(float64(0)))
)

// FixedWidthType is the constraint covering the Go value types that the
// fixed-width arrays store contiguously.
type FixedWidthType interface {
	int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// GetBytes reinterprets a slice of T to a slice of bytes.
func GetBytes[T FixedWidthType](in []T) []byte {
	if len(in) == 0 {
		return nil
	}
	var z T
	return unsafe.Slice((*byte)(unsafe.Pointer(&in[0])), len(in)*int(unsafe.Sizeof(z)))
}

// GetData reinterprets a slice of bytes to a slice of T.
//
// NOTE: len(in) must be a multiple of T's size.
func GetData[T FixedWidthType](in []byte) []T {
	if len(in) == 0 {
		return nil
	}
	var z T
	return unsafe.Slice((*T)(unsafe.Pointer(&in[0])), len(in)/int(unsafe.Sizeof(z)))
}

type int32Traits struct{}

// Int32Traits provides the offset-buffer arithmetic for the
// variable-width binary types.
var Int32Traits int32Traits

// BytesRequired returns the number of bytes required to store n elements in memory.
func (int32Traits) BytesRequired(n int) int { return Int32SizeBytes * n }

// CastFromBytes reinterprets the slice b to a slice of type int32.
func (int32Traits) CastFromBytes(b []byte) []int32 { return GetData[int32](b) }

// CastToBytes reinterprets the slice b to a slice of bytes.
func (int32Traits) CastToBytes(b []int32) []byte { return GetBytes(b) }

type int64Traits struct{}

var Int64Traits int64Traits

func (int64Traits) BytesRequired(n int) int      { return Int64SizeBytes * n }
func (int64Traits) CastFromBytes(b []byte) []int64 { return GetData[int64](b) }
func (int64Traits) CastToBytes(b []int64) []byte { return GetBytes(b) }
