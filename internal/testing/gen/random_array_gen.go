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

package gen

import (
	"math"
	"unsafe"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/memory"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// RandomArrayGenerator constructs random arrays for use with testing.
// The same seed always reproduces the same sequence of arrays.
type RandomArrayGenerator struct {
	seed  uint64
	extra uint64
	mem   memory.Allocator
}

// NewRandomArrayGenerator constructs a new generator with the requested Seed
func NewRandomArrayGenerator(seed uint64, mem memory.Allocator) RandomArrayGenerator {
	return RandomArrayGenerator{seed: seed, mem: mem}
}

// GenerateBitmap fills buffer with n random bits, each zero with
// probability prob, and returns how many bits were left at zero. The
// buffer must come in zeroed since only ones are ever written.
func (r *RandomArrayGenerator) GenerateBitmap(buffer []byte, n int64, prob float64) int64 {
	r.extra++
	dist := distuv.Bernoulli{P: 1 - prob, Src: rand.NewSource(r.seed + r.extra)}

	var zeros int64
	for i := int64(0); i < n; i++ {
		if dist.Rand() == 0 {
			zeros++
			continue
		}
		bitutil.SetBit(buffer, int(i))
	}
	return zeros
}

// bitmapBuffer allocates a bitmap of size bits and randomizes it,
// returning the buffer along with the count of zero bits.
func (r *RandomArrayGenerator) bitmapBuffer(size int64, prob float64) (*memory.Buffer, int64) {
	buf := memory.NewResizableBuffer(r.mem)
	buf.Resize(int(bitutil.BytesForBits(size)))
	zeros := r.GenerateBitmap(buf.Bytes(), size, prob)
	return buf, zeros
}

func (r *RandomArrayGenerator) Boolean(size int64, prob, nullProb float64) quiver.Array {
	validity, nulls := r.bitmapBuffer(size, nullProb)
	defer validity.Release()
	values, _ := r.bitmapBuffer(size, prob)
	defer values.Release()

	data := array.NewData(quiver.FixedWidthTypes.Boolean, int(size),
		[]*memory.Buffer{validity, values}, nil, int(nulls), 0)
	defer data.Release()
	return array.NewBooleanData(data)
}

func (r *RandomArrayGenerator) baseGenPrimitive(size int64, prob float64, byteWidth int) ([]*memory.Buffer, int64) {
	validity, nulls := r.bitmapBuffer(size, prob)

	values := memory.NewResizableBuffer(r.mem)
	values.Resize(int(size) * byteWidth)

	return []*memory.Buffer{validity, values}, nulls
}

// genPrimitive writes one value per slot produced by the value func,
// including the slots the validity bitmap marked null.
func genPrimitive[T quiver.FixedWidthType](r *RandomArrayGenerator, dt quiver.DataType, size int64, nullProb float64, value func(*rand.Rand) T) quiver.Array {
	var z T
	buffers, nullCount := r.baseGenPrimitive(size, nullProb, int(unsafe.Sizeof(z)))
	for _, b := range buffers {
		defer b.Release()
	}

	r.extra++
	rng := rand.New(rand.NewSource(r.seed + r.extra))
	out := quiver.GetData[T](buffers[1].Bytes())
	for i := range out {
		out[i] = value(rng)
	}

	data := array.NewData(dt, int(size), buffers, nil, int(nullCount), 0)
	defer data.Release()
	return array.MakeFromData(data)
}

// genSmallInt draws 8 and 16 bit integers uniformly from [min, max].
func genSmallInt[T int8 | uint8 | int16 | uint16](r *RandomArrayGenerator, dt quiver.DataType, size int64, min, max T, prob float64) quiver.Array {
	return genPrimitive(r, dt, size, prob, func(rng *rand.Rand) T {
		return T(rng.Intn(int(max)-int(min)+1)) + min
	})
}

func genFloat[T float32 | float64](r *RandomArrayGenerator, dt quiver.DataType, size int64, min, max T, prob float64) quiver.Array {
	return genPrimitive(r, dt, size, prob, func(rng *rand.Rand) T {
		return min + T(rng.Float64())*(max-min)
	})
}

func (r *RandomArrayGenerator) Int8(size int64, min, max int8, prob float64) quiver.Array {
	return genSmallInt(r, quiver.PrimitiveTypes.Int8, size, min, max, prob)
}

func (r *RandomArrayGenerator) Uint8(size int64, min, max uint8, prob float64) quiver.Array {
	return genSmallInt(r, quiver.PrimitiveTypes.Uint8, size, min, max, prob)
}

func (r *RandomArrayGenerator) Int16(size int64, min, max int16, prob float64) quiver.Array {
	return genSmallInt(r, quiver.PrimitiveTypes.Int16, size, min, max, prob)
}

func (r *RandomArrayGenerator) Uint16(size int64, min, max uint16, prob float64) quiver.Array {
	return genSmallInt(r, quiver.PrimitiveTypes.Uint16, size, min, max, prob)
}

func (r *RandomArrayGenerator) Int32(size int64, min, max int32, prob float64) quiver.Array {
	return genPrimitive(r, quiver.PrimitiveTypes.Int32, size, prob, func(rng *rand.Rand) int32 {
		return min + int32(rng.Int63n(int64(max)-int64(min)+1))
	})
}

func (r *RandomArrayGenerator) Uint32(size int64, min, max uint32, prob float64) quiver.Array {
	return genPrimitive(r, quiver.PrimitiveTypes.Uint32, size, prob, func(rng *rand.Rand) uint32 {
		return min + uint32(rng.Uint64n(uint64(max)-uint64(min)+1))
	})
}

func (r *RandomArrayGenerator) Int64(size int64, min, max int64, prob float64) quiver.Array {
	value := func(rng *rand.Rand) int64 { return min + rng.Int63n(max-min+1) }
	if min == math.MinInt64 && max == math.MaxInt64 {
		// the full domain, where the range arithmetic would overflow
		value = func(rng *rand.Rand) int64 { return int64(rng.Uint64()) }
	}
	return genPrimitive(r, quiver.PrimitiveTypes.Int64, size, prob, value)
}

func (r *RandomArrayGenerator) Uint64(size int64, min, max uint64, prob float64) quiver.Array {
	value := func(rng *rand.Rand) uint64 { return min + rng.Uint64n(max-min+1) }
	if max == math.MaxUint64 {
		value = func(rng *rand.Rand) uint64 { return min + rng.Uint64() }
	}
	return genPrimitive(r, quiver.PrimitiveTypes.Uint64, size, prob, value)
}

func (r *RandomArrayGenerator) Float32(size int64, min, max float32, prob float64) quiver.Array {
	return genFloat(r, quiver.PrimitiveTypes.Float32, size, min, max, prob)
}

func (r *RandomArrayGenerator) Float64(size int64, min, max float64, prob float64) quiver.Array {
	return genFloat(r, quiver.PrimitiveTypes.Float64, size, min, max, prob)
}

// eachRandomLength draws a random length per slot and hands the valid
// ones to appendOne; null slots go to the builder directly.
func (r *RandomArrayGenerator) eachRandomLength(size int64, minLength, maxLength int, nullProb float64,
	bldr array.Builder, appendOne func(rng *rand.Rand, n int32)) quiver.Array {

	lengths := r.Int32(size, int32(minLength), int32(maxLength), nullProb).(*array.Int32)
	defer lengths.Release()

	r.extra++
	rng := rand.New(rand.NewSource(r.seed + r.extra))

	for i := 0; i < lengths.Len(); i++ {
		if lengths.IsNull(i) {
			bldr.AppendNull()
			continue
		}
		appendOne(rng, lengths.Value(i))
	}
	return bldr.NewArray()
}

func (r *RandomArrayGenerator) String(size int64, minLength, maxLength int, nullProb float64) quiver.Array {
	bldr := array.NewStringBuilder(r.mem)
	defer bldr.Release()

	buf := make([]byte, maxLength)
	return r.eachRandomLength(size, minLength, maxLength, nullProb, bldr, func(rng *rand.Rand, n int32) {
		out := buf[:n]
		for i := range out {
			out[i] = byte('A' + rng.Int31n('z'-'A'+1))
		}
		bldr.Append(string(out))
	})
}

func (r *RandomArrayGenerator) Binary(size int64, minLength, maxLength int, nullProb float64) quiver.Array {
	bldr := array.NewBinaryBuilder(r.mem, quiver.BinaryTypes.Binary)
	defer bldr.Release()

	buf := make([]byte, maxLength)
	return r.eachRandomLength(size, minLength, maxLength, nullProb, bldr, func(rng *rand.Rand, n int32) {
		out := buf[:n]
		rng.Read(out)
		bldr.Append(out)
	})
}

func (r *RandomArrayGenerator) Numeric(dt quiver.Type, size int64, min, max int64, nullprob float64) quiver.Array {
	switch dt {
	case quiver.INT8:
		return r.Int8(size, int8(min), int8(max), nullprob)
	case quiver.UINT8:
		return r.Uint8(size, uint8(min), uint8(max), nullprob)
	case quiver.INT16:
		return r.Int16(size, int16(min), int16(max), nullprob)
	case quiver.UINT16:
		return r.Uint16(size, uint16(min), uint16(max), nullprob)
	case quiver.INT32:
		return r.Int32(size, int32(min), int32(max), nullprob)
	case quiver.UINT32:
		return r.Uint32(size, uint32(min), uint32(max), nullprob)
	case quiver.INT64:
		return r.Int64(size, min, max, nullprob)
	case quiver.UINT64:
		return r.Uint64(size, uint64(min), uint64(max), nullprob)
	case quiver.FLOAT32:
		return r.Float32(size, float32(min), float32(max), nullprob)
	case quiver.FLOAT64:
		return r.Float64(size, float64(min), float64(max), nullprob)
	}
	panic("invalid type for random numeric array")
}

func (r *RandomArrayGenerator) ArrayOf(dt quiver.Type, size int64, nullprob float64) quiver.Array {
	switch dt {
	case quiver.BOOL:
		return r.Boolean(size, 0.50, nullprob)
	case quiver.STRING:
		return r.String(size, 0, 20, nullprob)
	case quiver.BINARY:
		return r.Binary(size, 0, 20, nullprob)
	case quiver.INT8:
		return r.Int8(size, math.MinInt8, math.MaxInt8, nullprob)
	case quiver.UINT8:
		return r.Uint8(size, 0, math.MaxUint8, nullprob)
	case quiver.INT16:
		return r.Int16(size, math.MinInt16, math.MaxInt16, nullprob)
	case quiver.UINT16:
		return r.Uint16(size, 0, math.MaxUint16, nullprob)
	case quiver.INT32:
		return r.Int32(size, math.MinInt32, math.MaxInt32, nullprob)
	case quiver.UINT32:
		return r.Uint32(size, 0, math.MaxUint32, nullprob)
	case quiver.INT64:
		return r.Int64(size, math.MinInt64, math.MaxInt64, nullprob)
	case quiver.UINT64:
		return r.Uint64(size, 0, math.MaxUint64, nullprob)
	case quiver.FLOAT32:
		// bounded to keep the values finite
		return r.Float32(size, -1e6, 1e6, nullprob)
	case quiver.FLOAT64:
		return r.Float64(size, -1e6, 1e6, nullprob)
	}
	panic("unimplemented ArrayOf type")
}
