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

package kernels

import (
	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/internal/debug"
)

func doStaticCast[InT, OutT numeric](in []InT, out []OutT) {
	for i, v := range in {
		out[i] = OutT(v)
	}
}

func castNumberTo[T numeric](in []T, out any) {
	switch out := out.(type) {
	case []int8:
		doStaticCast(in, out)
	case []uint8:
		doStaticCast(in, out)
	case []int16:
		doStaticCast(in, out)
	case []uint16:
		doStaticCast(in, out)
	case []int32:
		doStaticCast(in, out)
	case []uint32:
		doStaticCast(in, out)
	case []int64:
		doStaticCast(in, out)
	case []uint64:
		doStaticCast(in, out)
	case []float32:
		doStaticCast(in, out)
	case []float64:
		doStaticCast(in, out)
	}
}

func castNumbersUnsafe(in, out any) {
	switch in := in.(type) {
	case []int8:
		castNumberTo(in, out)
	case []uint8:
		castNumberTo(in, out)
	case []int16:
		castNumberTo(in, out)
	case []uint16:
		castNumberTo(in, out)
	case []int32:
		castNumberTo(in, out)
	case []uint32:
		castNumberTo(in, out)
	case []int64:
		castNumberTo(in, out)
	case []uint64:
		castNumberTo(in, out)
	case []float32:
		castNumberTo(in, out)
	case []float64:
		castNumberTo(in, out)
	}
}

// typedNumericSlice reinterprets the first n elements of a raw value
// buffer as a slice of the Go type backing the given type ID.
func typedNumericSlice(id quiver.Type, buf []byte, n int) any {
	switch id {
	case quiver.INT8:
		return quiver.GetData[int8](buf)[:n]
	case quiver.UINT8:
		return quiver.GetData[uint8](buf)[:n]
	case quiver.INT16:
		return quiver.GetData[int16](buf)[:n]
	case quiver.UINT16:
		return quiver.GetData[uint16](buf)[:n]
	case quiver.INT32:
		return quiver.GetData[int32](buf)[:n]
	case quiver.UINT32:
		return quiver.GetData[uint32](buf)[:n]
	case quiver.INT64:
		return quiver.GetData[int64](buf)[:n]
	case quiver.UINT64:
		return quiver.GetData[uint64](buf)[:n]
	case quiver.FLOAT32:
		return quiver.GetData[float32](buf)[:n]
	case quiver.FLOAT64:
		return quiver.GetData[float64](buf)[:n]
	}
	debug.Assert(false, "typedNumericSlice: not a numeric type")
	return nil
}

// castNumericUnsafe converts the raw values between any two numeric
// types using plain Go conversions, without any bounds checking. The
// byte slices must start at the first element (offsets already applied).
func castNumericUnsafe(inID, outID quiver.Type, in, out []byte, n int) {
	castNumbersUnsafe(typedNumericSlice(inID, in, n), typedNumericSlice(outID, out, n))
}
