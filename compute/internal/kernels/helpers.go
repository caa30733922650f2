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
	"fmt"
	"unsafe"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/bitutils"
	"github.com/quiverdata/quiver/internal/debug"
	"github.com/quiverdata/quiver/memory"
	"github.com/quiverdata/quiver/scalar"
	"golang.org/x/exp/constraints"
)

// ScalarUnary returns a kernel for performing a unary operation on
// FixedWidth types which is implemented using the passed in function
// which will receive a slice containing the raw input data along with
// a slice to populate for the output data.
//
// Note that bool is not included in exec.FixedWidthTypes since it is
// represented as a bitmap, not as a slice of bool.
func ScalarUnary[OutT, Arg0T exec.FixedWidthTypes](op func(*exec.KernelCtx, []Arg0T, []OutT) error) exec.ArrayKernelExec {
	return func(ctx *exec.KernelCtx, in *exec.ExecSpan, out *exec.ExecResult) error {
		arg0 := in.Values[0].Array
		return op(ctx, exec.GetSpanValues[Arg0T](&arg0, 1), exec.GetSpanValues[OutT](out, 1))
	}
}

// denseWriter appends kernel outputs left to right, with the zero value
// standing in for positions the op is never called on.
type denseWriter[T exec.FixedWidthTypes] struct {
	out []T
	pos int
}

func (w *denseWriter[T]) write(v T) {
	w.out[w.pos] = v
	w.pos++
}

func (w *denseWriter[T]) writeZero() {
	var zero T
	w.out[w.pos] = zero
	w.pos++
}

// ScalarUnaryNotNull is for generating a kernel to operate only on the
// non-null values in the input array. The zerovalue of the output type
// is used for any null input values.
func ScalarUnaryNotNull[OutT, Arg0T exec.FixedWidthTypes](op func(*exec.KernelCtx, Arg0T, *error) OutT) exec.ArrayKernelExec {
	return func(ctx *exec.KernelCtx, in *exec.ExecSpan, out *exec.ExecResult) error {
		var (
			err    error
			arg0   = &in.Values[0].Array
			values = exec.GetSpanValues[Arg0T](arg0, 1)
			w      = denseWriter[OutT]{out: exec.GetSpanValues[OutT](out, 1)}
		)
		bitutils.VisitBitBlocks(arg0.Buffers[0].Buf, arg0.Offset, arg0.Len,
			func(pos int64) { w.write(op(ctx, values[pos], &err)) },
			w.writeZero)
		return err
	}
}

// ScalarUnaryBoolArg is like ScalarUnary except it specifically expects a
// function that takes a byte slice since boolean arrays are represented
// as a bitmap.
func ScalarUnaryBoolArg[OutT exec.FixedWidthTypes](op func(*exec.KernelCtx, []byte, []OutT) error) exec.ArrayKernelExec {
	return func(ctx *exec.KernelCtx, in *exec.ExecSpan, out *exec.ExecResult) error {
		return op(ctx, in.Values[0].Array.Buffers[1].Buf, exec.GetSpanValues[OutT](out, 1))
	}
}

// UnboxScalar reinterprets the raw value bytes of a fixed-width scalar as
// the concrete Go type. The caller is responsible for checking validity
// when the distinction matters; the bytes of a null scalar are the zero
// value.
func UnboxScalar[T exec.FixedWidthTypes](val scalar.PrimitiveScalar) T {
	return *(*T)(unsafe.Pointer(&val.Data()[0]))
}

// UnboxBinaryScalar returns the value bytes of a binary-like scalar, or
// nil if the scalar is null.
func UnboxBinaryScalar(val scalar.BinaryScalar) []byte {
	if !val.IsValid() {
		return nil
	}
	return val.Data()
}

// dispatchBinary routes a two-operand batch to the loop matching the
// shapes of its operands. Two scalar operands never reach a kernel; the
// executor turns that case into length-1 spans beforehand.
func dispatchBinary(
	arrArr func(*exec.KernelCtx, *exec.ArraySpan, *exec.ArraySpan, *exec.ExecResult) error,
	arrScalar func(*exec.KernelCtx, *exec.ArraySpan, scalar.Scalar, *exec.ExecResult) error,
	scalarArr func(*exec.KernelCtx, scalar.Scalar, *exec.ArraySpan, *exec.ExecResult) error,
) exec.ArrayKernelExec {
	return func(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
		lhs, rhs := &batch.Values[0], &batch.Values[1]
		switch {
		case lhs.IsArray() && rhs.IsArray():
			return arrArr(ctx, &lhs.Array, &rhs.Array, out)
		case lhs.IsArray():
			return arrScalar(ctx, &lhs.Array, rhs.Scalar, out)
		case rhs.IsArray():
			return scalarArr(ctx, lhs.Scalar, &rhs.Array, out)
		}
		debug.Assert(false, "scalar binary kernel called with two scalars")
		return fmt.Errorf("%w: scalar binary kernel called with two scalars", quiver.ErrInvalid)
	}
}

// binaryOps holds the three loop shapes a binary kernel needs so that
// scalar operands are broadcast without a per-element branch.
type binaryOps[OutT, Arg0T, Arg1T exec.FixedWidthTypes] struct {
	arrArr    func(*exec.KernelCtx, []Arg0T, []Arg1T, []OutT) error
	arrScalar func(*exec.KernelCtx, []Arg0T, Arg1T, []OutT) error
	scalarArr func(*exec.KernelCtx, Arg0T, []Arg1T, []OutT) error
}

// ScalarBinary constructs a kernel exec from the three loop variants,
// dispatching on which of the two operands are arrays.
func ScalarBinary[OutT, Arg0T, Arg1T exec.FixedWidthTypes](ops binaryOps[OutT, Arg0T, Arg1T]) exec.ArrayKernelExec {
	return dispatchBinary(
		func(ctx *exec.KernelCtx, left, right *exec.ArraySpan, out *exec.ExecResult) error {
			return ops.arrArr(ctx,
				exec.GetSpanValues[Arg0T](left, 1),
				exec.GetSpanValues[Arg1T](right, 1),
				exec.GetSpanValues[OutT](out, 1))
		},
		func(ctx *exec.KernelCtx, left *exec.ArraySpan, right scalar.Scalar, out *exec.ExecResult) error {
			return ops.arrScalar(ctx,
				exec.GetSpanValues[Arg0T](left, 1),
				UnboxScalar[Arg1T](right.(scalar.PrimitiveScalar)),
				exec.GetSpanValues[OutT](out, 1))
		},
		func(ctx *exec.KernelCtx, left scalar.Scalar, right *exec.ArraySpan, out *exec.ExecResult) error {
			return ops.scalarArr(ctx,
				UnboxScalar[Arg0T](left.(scalar.PrimitiveScalar)),
				exec.GetSpanValues[Arg1T](right, 1),
				exec.GetSpanValues[OutT](out, 1))
		})
}

// ScalarBinaryEqualTypes is a convenience alias of ScalarBinary for the
// common case where both operands share one type.
func ScalarBinaryEqualTypes[OutT, ArgT exec.FixedWidthTypes](ops binaryOps[OutT, ArgT, ArgT]) exec.ArrayKernelExec {
	return ScalarBinary(ops)
}

// ScalarBinaryNotNull generates a kernel which only invokes the operation
// for elements where both operands are valid, writing the output zero
// value elsewhere. Kernels built this way can treat per-element failures
// (like division by zero) as errors without tripping over null slots.
func ScalarBinaryNotNull[OutT, Arg0T, Arg1T exec.FixedWidthTypes](op func(*exec.KernelCtx, Arg0T, Arg1T, *error) OutT) exec.ArrayKernelExec {
	return dispatchBinary(
		func(ctx *exec.KernelCtx, left, right *exec.ArraySpan, out *exec.ExecResult) (err error) {
			var (
				leftData  = exec.GetSpanValues[Arg0T](left, 1)
				rightData = exec.GetSpanValues[Arg1T](right, 1)
				w         = denseWriter[OutT]{out: exec.GetSpanValues[OutT](out, 1)}
			)
			bitutils.VisitTwoBitBlocks(left.Buffers[0].Buf, right.Buffers[0].Buf,
				left.Offset, right.Offset, left.Len,
				func(pos int64) { w.write(op(ctx, leftData[pos], rightData[pos], &err)) },
				w.writeZero)
			return
		},
		func(ctx *exec.KernelCtx, left *exec.ArraySpan, right scalar.Scalar, out *exec.ExecResult) (err error) {
			if !right.IsValid() {
				// every output is null, nothing to compute
				return nil
			}
			var (
				leftData = exec.GetSpanValues[Arg0T](left, 1)
				rightVal = UnboxScalar[Arg1T](right.(scalar.PrimitiveScalar))
				w        = denseWriter[OutT]{out: exec.GetSpanValues[OutT](out, 1)}
			)
			bitutils.VisitBitBlocks(left.Buffers[0].Buf, left.Offset, left.Len,
				func(pos int64) { w.write(op(ctx, leftData[pos], rightVal, &err)) },
				w.writeZero)
			return
		},
		func(ctx *exec.KernelCtx, left scalar.Scalar, right *exec.ArraySpan, out *exec.ExecResult) (err error) {
			if !left.IsValid() {
				return nil
			}
			var (
				leftVal   = UnboxScalar[Arg0T](left.(scalar.PrimitiveScalar))
				rightData = exec.GetSpanValues[Arg1T](right, 1)
				w         = denseWriter[OutT]{out: exec.GetSpanValues[OutT](out, 1)}
			)
			bitutils.VisitBitBlocks(right.Buffers[0].Buf, right.Offset, right.Len,
				func(pos int64) { w.write(op(ctx, leftVal, rightData[pos], &err)) },
				w.writeZero)
			return
		})
}

// ScalarBinaryNotNullEqualTypes is ScalarBinaryNotNull for operands of
// one shared type.
func ScalarBinaryNotNullEqualTypes[OutT, ArgT exec.FixedWidthTypes](op func(*exec.KernelCtx, ArgT, ArgT, *error) OutT) exec.ArrayKernelExec {
	return ScalarBinaryNotNull[OutT, ArgT, ArgT](op)
}

// SizeOf returns the byte width of the integer type as an untyped-friendly
// constant expression.
func SizeOf[T constraints.Integer]() uint {
	var zero T
	return uint(unsafe.Sizeof(zero))
}

// MinOf returns the minimum value of the integer type, since the stdlib
// math constants cannot be used generically.
func MinOf[T constraints.Integer]() T {
	var zero T
	if ^zero > 0 {
		return 0
	}
	return ^zero << (8*SizeOf[T]() - 1)
}

// MaxOf returns the maximum value of the integer type.
func MaxOf[T constraints.Integer]() T {
	if MinOf[T]() == 0 {
		return ^T(0)
	}
	return ^MinOf[T]()
}

// The fit* helpers compute the bounds of the intersection of two integer
// types' ranges, expressed in the input type I so a value of I can be
// compared against them directly.

func fitMinSameSign[I, O constraints.Integer]() I {
	if SizeOf[I]() > SizeOf[O]() {
		return I(MinOf[O]())
	}
	return MinOf[I]()
}

func fitMaxSameSign[I, O constraints.Integer]() I {
	if SizeOf[I]() > SizeOf[O]() {
		return I(MaxOf[O]())
	}
	return MaxOf[I]()
}

func fitMaxInUnsigned[I constraints.Signed, O constraints.Unsigned]() I {
	if SizeOf[I]() <= SizeOf[O]() {
		return MaxOf[I]()
	}
	return I(MaxOf[O]())
}

func fitMaxInSigned[I constraints.Unsigned, O constraints.Signed]() I {
	if SizeOf[I]() < SizeOf[O]() {
		return MaxOf[I]()
	}
	return I(MaxOf[O]())
}

func signedBoundsFor[T constraints.Signed](target quiver.Type) (lo, hi T) {
	switch target {
	case quiver.UINT8:
		lo, hi = 0, fitMaxInUnsigned[T, uint8]()
	case quiver.UINT16:
		lo, hi = 0, fitMaxInUnsigned[T, uint16]()
	case quiver.UINT32:
		lo, hi = 0, fitMaxInUnsigned[T, uint32]()
	case quiver.UINT64:
		lo, hi = 0, fitMaxInUnsigned[T, uint64]()
	case quiver.INT8:
		lo, hi = fitMinSameSign[T, int8](), fitMaxSameSign[T, int8]()
	case quiver.INT16:
		lo, hi = fitMinSameSign[T, int16](), fitMaxSameSign[T, int16]()
	case quiver.INT32:
		lo, hi = fitMinSameSign[T, int32](), fitMaxSameSign[T, int32]()
	case quiver.INT64:
		lo, hi = fitMinSameSign[T, int64](), fitMaxSameSign[T, int64]()
	}
	return
}

func unsignedBoundsFor[T constraints.Unsigned](target quiver.Type) (lo, hi T) {
	switch target {
	case quiver.UINT8:
		hi = fitMaxSameSign[T, uint8]()
	case quiver.UINT16:
		hi = fitMaxSameSign[T, uint16]()
	case quiver.UINT32:
		hi = fitMaxSameSign[T, uint32]()
	case quiver.UINT64:
		hi = fitMaxSameSign[T, uint64]()
	case quiver.INT8:
		hi = fitMaxInSigned[T, int8]()
	case quiver.INT16:
		hi = fitMaxInSigned[T, int16]()
	case quiver.INT32:
		hi = fitMaxInSigned[T, int32]()
	case quiver.INT64:
		hi = fitMaxInSigned[T, int64]()
	}
	return
}

// intsCanFit reports whether every non-null value of the integer span
// is representable in the target integer type.
func intsCanFit(data *exec.ArraySpan, target quiver.Type) error {
	if !quiver.IsInteger(target) {
		return fmt.Errorf("%w: target type is not an integer type %s", quiver.ErrInvalid, target)
	}

	switch data.Type.ID() {
	case quiver.INT8:
		lo, hi := signedBoundsFor[int8](target)
		return intsInRange(data, lo, hi)
	case quiver.UINT8:
		lo, hi := unsignedBoundsFor[uint8](target)
		return intsInRange(data, lo, hi)
	case quiver.INT16:
		lo, hi := signedBoundsFor[int16](target)
		return intsInRange(data, lo, hi)
	case quiver.UINT16:
		lo, hi := unsignedBoundsFor[uint16](target)
		return intsInRange(data, lo, hi)
	case quiver.INT32:
		lo, hi := signedBoundsFor[int32](target)
		return intsInRange(data, lo, hi)
	case quiver.UINT32:
		lo, hi := unsignedBoundsFor[uint32](target)
		return intsInRange(data, lo, hi)
	case quiver.INT64:
		lo, hi := signedBoundsFor[int64](target)
		return intsInRange(data, lo, hi)
	case quiver.UINT64:
		lo, hi := unsignedBoundsFor[uint64](target)
		return intsInRange(data, lo, hi)
	default:
		return fmt.Errorf("%w: invalid type for int bounds checking", quiver.ErrInvalid)
	}
}

// intsInRange errors with the first non-null value outside
// [lowerBound, upperBound].
func intsInRange[T exec.IntTypes | exec.UintTypes](data *exec.ArraySpan, lowerBound, upperBound T) error {
	if MinOf[T]() >= lowerBound && MaxOf[T]() <= upperBound {
		return nil
	}

	outOfRange := func(v T) bool { return v < lowerBound || v > upperBound }
	rangeErr := func(v T) error {
		return fmt.Errorf("%w: integer value %d not in range: %d to %d",
			quiver.ErrOverflow, v, lowerBound, upperBound)
	}

	var (
		values = exec.GetSpanValues[T](data, 1)
		bitmap = data.Buffers[0].Buf
		blocks = bitutils.NewOptionalBitBlockCounter(bitmap, data.Offset, data.Len)
		at     = int(data.Offset)
	)
	for len(values) > 0 {
		block := blocks.NextBlock()
		n := int(block.Len)

		// accumulate a flag instead of branching per element, and only
		// rescan to locate the offending value once a block is known bad
		bad := false
		switch {
		case block.AllSet():
			for _, v := range values[:n] {
				bad = bad || outOfRange(v)
			}
			if bad {
				for _, v := range values[:n] {
					if outOfRange(v) {
						return rangeErr(v)
					}
				}
			}
		case block.Popcnt > 0:
			for i, v := range values[:n] {
				bad = bad || (bitutil.BitIsSet(bitmap, at+i) && outOfRange(v))
			}
			if bad {
				for i, v := range values[:n] {
					if bitutil.BitIsSet(bitmap, at+i) && outOfRange(v) {
						return rangeErr(v)
					}
				}
			}
		}

		values = values[n:]
		at += n
	}
	return nil
}

type numeric interface {
	exec.IntTypes | exec.UintTypes | constraints.Float
}

// castNumberToNumberUnsafe converts between numeric representations with
// no bounds checking, truncating or extending per Go conversion rules.
func castNumberToNumberUnsafe(in, out *exec.ArraySpan) {
	inWidth := in.Type.(quiver.FixedWidthDataType).Bytes()
	src := in.Buffers[1].Buf[inWidth*int(in.Offset):]

	if in.Type.ID() == out.Type.ID() {
		// same representation, a byte copy covers every width
		dst := out.Buffers[1].Buf[inWidth*int(out.Offset):]
		copy(dst, src[:inWidth*int(in.Len)])
		return
	}

	outWidth := out.Type.(quiver.FixedWidthDataType).Bytes()
	castNumericUnsafe(in.Type.ID(), out.Type.ID(), src, out.Buffers[1].Buf[outWidth*int(out.Offset):], int(in.Len))
}

func ResolveOutputFromOptions(ctx *exec.KernelCtx, _ []quiver.DataType) (quiver.DataType, error) {
	opts := ctx.State.(CastState)
	return opts.ToType, nil
}

var OutputTargetType = exec.NewComputedOutputType(ResolveOutputFromOptions)

func resolveToFirstType(_ *exec.KernelCtx, args []quiver.DataType) (quiver.DataType, error) {
	return args[0], nil
}

var OutputFirstType = exec.NewComputedOutputType(resolveToFirstType)

// bitmapBuilder accumulates a validity bitmap bit by bit, tracking the
// false count so the null count of the finished buffer is known without
// a rescan. The Unsafe methods require a prior Reserve/Resize.
type bitmapBuilder struct {
	mem    memory.Allocator
	buffer *memory.Buffer

	data       []byte
	bitLength  int
	falseCount int
}

func (v *bitmapBuilder) buf() *memory.Buffer {
	if v.buffer == nil {
		v.buffer = memory.NewResizableBuffer(v.mem)
	}
	return v.buffer
}

func (v *bitmapBuilder) Resize(n int64) {
	v.buf().ResizeNoShrink(int(bitutil.BytesForBits(n)))
	v.data = v.buffer.Bytes()
}

func (v *bitmapBuilder) Reserve(n int64) {
	v.buf().Reserve(v.buffer.Cap() + int(bitutil.BytesForBits(n)))
	v.data = v.buffer.Buf()
}

func (v *bitmapBuilder) UnsafeAppend(val bool) { v.UnsafeAppendN(1, val) }

func (v *bitmapBuilder) UnsafeAppendN(n int64, val bool) {
	bitutil.SetBitsTo(v.data, int64(v.bitLength), n, val)
	v.bitLength += int(n)
	if !val {
		v.falseCount += int(n)
	}
}

func (v *bitmapBuilder) Append(val bool) { v.AppendN(1, val) }

func (v *bitmapBuilder) AppendN(n int64, val bool) {
	v.Reserve(n)
	v.UnsafeAppendN(n, val)
}

func (v *bitmapBuilder) Finish() (buf *memory.Buffer) {
	if v.bitLength > 0 {
		v.buffer.Resize(int(bitutil.BytesForBits(int64(v.bitLength))))
	}
	buf, v.buffer = v.buffer, nil
	v.bitLength, v.falseCount = 0, 0
	return
}

// byteBufBuilder builds a raw byte buffer incrementally. Unlike the
// array builders it does not retain what it builds; finish hands the
// buffer to the caller and resets.
type byteBufBuilder struct {
	mem    memory.Allocator
	buffer *memory.Buffer
	data   []byte
	sz     int
}

func (b *byteBufBuilder) buf() *memory.Buffer {
	if b.buffer == nil {
		b.buffer = memory.NewResizableBuffer(b.mem)
	}
	return b.buffer
}

func (b *byteBufBuilder) resize(newcap int) {
	b.buf().ResizeNoShrink(newcap)
	b.data = b.buffer.Bytes()
}

func (b *byteBufBuilder) reserve(additional int) {
	if mincap := b.sz + additional; mincap > cap(b.data) {
		b.buf().ResizeNoShrink(mincap)
		b.data = b.buffer.Buf()
	}
}

func (b *byteBufBuilder) unsafeAppend(data []byte) {
	copy(b.data[b.sz:], data)
	b.sz += len(data)
}

// unsafeAppendN writes n copies of val, doubling the copied region each
// pass instead of storing bytes one at a time.
func (b *byteBufBuilder) unsafeAppendN(n int, val byte) {
	region := b.data[b.sz : b.sz+n]
	region[0] = val
	for filled := 1; filled < n; filled *= 2 {
		copy(region[filled:], region[:filled])
	}
	b.sz += n
}

func (b *byteBufBuilder) append(data []byte) {
	if b.sz+len(data) > cap(b.data) {
		b.resize(b.sz + len(data))
	}
	b.unsafeAppend(data)
}

func (b *byteBufBuilder) appendN(n int, val byte) {
	b.reserve(n)
	b.unsafeAppendN(n, val)
}

func (b *byteBufBuilder) advance(n int) {
	b.reserve(n)
	b.sz += n
}

func (b *byteBufBuilder) unsafeAdvance(n int) {
	b.sz += n
}

func (b *byteBufBuilder) finish() (buf *memory.Buffer) {
	b.buffer.Resize(b.sz)
	buf, b.buffer, b.sz = b.buffer, nil, 0
	return
}

// typedBufBuilder adapts byteBufBuilder to a fixed-width element type,
// counting in elements rather than bytes.
type typedBufBuilder[T exec.FixedWidthTypes] struct {
	byteBufBuilder
	zero T
}

func newTypedBufBuilder[T exec.FixedWidthTypes](mem memory.Allocator) *typedBufBuilder[T] {
	return &typedBufBuilder[T]{byteBufBuilder: byteBufBuilder{mem: mem}}
}

func (b *typedBufBuilder[T]) width() int { return int(unsafe.Sizeof(b.zero)) }

func (b *typedBufBuilder[T]) len() int { return b.sz / b.width() }

func (b *typedBufBuilder[T]) cap() int { return cap(b.data) / b.width() }

func (b *typedBufBuilder[T]) reserve(additional int) {
	b.byteBufBuilder.reserve(additional * b.width())
}

func (b *typedBufBuilder[T]) resize(newcap int) {
	b.byteBufBuilder.resize(newcap * b.width())
}

func (b *typedBufBuilder[T]) advance(n int) {
	b.byteBufBuilder.advance(n * b.width())
}

func (b *typedBufBuilder[T]) append(value T) {
	b.byteBufBuilder.append(exec.GetBytes([]T{value}))
}

func (b *typedBufBuilder[T]) unsafeAppend(value T) {
	b.byteBufBuilder.unsafeAppend(exec.GetBytes([]T{value}))
}

func (b *typedBufBuilder[T]) unsafeAppendSlice(values []T) {
	b.byteBufBuilder.unsafeAppend(exec.GetBytes(values))
}

func (b *typedBufBuilder[T]) unsafeAppendN(n int, value T) {
	vals := exec.GetData[T](b.data)[b.len():]
	b.unsafeAdvance(n * b.width())
	vals[0] = value
	for filled := 1; filled < n; filled *= 2 {
		copy(vals[filled:], vals[:filled])
	}
}

func (b *typedBufBuilder[T]) appendN(n int, value T) {
	b.reserve(n + b.len())
	b.unsafeAppendN(n, value)
}

func (b *typedBufBuilder[T]) appendSlice(values []T) {
	b.byteBufBuilder.append(exec.GetBytes(values))
}
