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

package compute

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/compute/internal/kernels"
	"github.com/quiverdata/quiver/internal/debug"
	"github.com/quiverdata/quiver/memory"
	"github.com/quiverdata/quiver/scalar"
	"golang.org/x/sync/errgroup"
)

// ExecCtx holds the configuration for function execution. A default
// is used if the context given to CallFunction does not carry one, see
// SetExecCtx.
type ExecCtx struct {
	// Alloc, when non-nil, overrides the allocator carried by the
	// context for all output and temporary buffers.
	Alloc memory.Allocator
	// ChunkSize is the maximum length of the spans that a batch is
	// broken into during execution.
	ChunkSize int64
	// PreallocContiguous determines whether kernels which support it
	// write into slices of one contiguous preallocation rather than
	// allocating per chunk.
	PreallocContiguous bool
	// NumParallel caps the number of goroutines used to execute the
	// chunks of a batch. Values < 2 force sequential execution.
	NumParallel int
	// Registry is used to look up functions by name.
	Registry FunctionRegistry
}

type ctxExecKey struct{}

const DefaultMaxChunkSize = math.MaxInt64

var defaultExecCtx ExecCtx

func init() {
	// filled in at init time so GetFunctionRegistry can run its own
	// one-time initialization first
	defaultExecCtx = ExecCtx{
		ChunkSize:          DefaultMaxChunkSize,
		PreallocContiguous: true,
		NumParallel:        runtime.NumCPU(),
		Registry:           GetFunctionRegistry(),
	}
}

// DefaultExecCtx returns the configuration that is used when the
// context passed to an execution does not contain one.
func DefaultExecCtx() ExecCtx { return defaultExecCtx }

// SetExecCtx returns a new child context containing the passed in ExecCtx.
func SetExecCtx(ctx context.Context, ec ExecCtx) context.Context {
	return context.WithValue(ctx, ctxExecKey{}, ec)
}

// WithAllocator returns a new context with the provided allocator
// embedded into the context.
func WithAllocator(ctx context.Context, mem memory.Allocator) context.Context {
	return exec.WithAllocator(ctx, mem)
}

// GetAllocator retrieves the allocator from the context, or the default
// allocator if the context does not carry one.
func GetAllocator(ctx context.Context) memory.Allocator {
	return exec.GetAllocator(ctx)
}

// GetExecCtx returns an embedded ExecCtx from the provided context.
// If it does not contain one, the default ExecCtx is returned.
func GetExecCtx(ctx context.Context) ExecCtx {
	if ec, ok := ctx.Value(ctxExecKey{}).(ExecCtx); ok {
		return ec
	}
	return defaultExecCtx
}

// ExecBatch is a unit of work for kernel execution. It contains a
// collection of Array and Scalar values.
//
// ExecBatch is semantically similar to a RecordBatch but for a SQL-style
// execution context. It represents a collection or records, but constant
// "columns" are represented by Scalar values rather than having to be
// converted into arrays with repeated values.
type ExecBatch struct {
	Values []Datum
	// Len is the semantic length of this ExecBatch. When the values are
	// all scalars, the length should be set to 1 for non-aggregate kernels.
	// Otherwise the length is taken from the array values.
	Len int64
}

func (e ExecBatch) NumValues() int { return len(e.Values) }

// ExecSpanFromBatch constructs and returns a new ExecSpan from the values
// inside of the ExecBatch which could be scalar or arrays.
//
// This is mostly used for tests but is also a convenience method for other
// cases.
func ExecSpanFromBatch(batch *ExecBatch) *exec.ExecSpan {
	span := &exec.ExecSpan{Len: batch.Len, Values: make([]exec.ExecValue, batch.NumValues())}
	for i, v := range batch.Values {
		datumToExecValue(v, &span.Values[i])
	}
	return span
}

func datumToExecValue(d Datum, out *exec.ExecValue) {
	switch d := d.(type) {
	case *ArrayDatum:
		out.Array.SetMembers(d.Value)
	case *ScalarDatum:
		out.Scalar = d.Value
	default:
		debug.Assert(false, "should be array or scalar!")
	}
}

// preallocSpec describes one output data buffer to allocate up front:
// its element width in bits and how many extra elements beyond the
// output length it needs (one for offset buffers).
type preallocSpec struct {
	bits  int
	extra int
}

func allocBuffer(ctx *exec.KernelCtx, length, bits int) *memory.Buffer {
	if bits == 1 {
		return ctx.AllocateBitmap(int64(length))
	}
	return ctx.Allocate(int(bitutil.BytesForBits(int64(length * bits))))
}

func appendPreallocSpecs(dt quiver.DataType, specs []preallocSpec) []preallocSpec {
	if fw, ok := dt.(quiver.FixedWidthDataType); ok {
		return append(specs, preallocSpec{bits: fw.BitWidth()})
	}
	if dt.ID() == quiver.BINARY || dt.ID() == quiver.STRING {
		// offsets buffer only, the data buffer length is unknowable here
		return append(specs, preallocSpec{bits: 32, extra: 1})
	}
	return specs
}

// validityClass is the summary of an input's validity that null
// propagation operates on: known all-valid inputs drop out of the
// bitmap intersection and a known all-null input short-circuits it.
type validityClass int8

const (
	validityUnknown validityClass = iota
	validityAllValid
	validityAllNull
)

func classifyValidity(val *exec.ExecValue) validityClass {
	if val.Type().ID() == quiver.NULL {
		return validityAllNull
	}
	if val.IsScalar() {
		if val.Scalar.IsValid() {
			return validityAllValid
		}
		return validityAllNull
	}

	arr := &val.Array
	switch {
	case arr.Nulls == 0 || arr.Buffers[0].Buf == nil:
		// a still-unknown null count with no bitmap counts as all-valid
		return validityAllValid
	case arr.Nulls == arr.Len:
		return validityAllNull
	}
	return validityUnknown
}

func classifyDatumValidity(datum Datum) validityClass {
	var val exec.ExecValue
	datumToExecValue(datum, &val)
	return classifyValidity(&val)
}

// propagateNulls computes the validity bitmap of out as the intersection
// of the validities of the batch values, writing into the preallocated
// bitmap if out has one and sharing or allocating a bitmap otherwise.
func propagateNulls(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	if out.Type.ID() == quiver.NULL {
		// null output type is a no-op (rare but it happens)
		return nil
	}

	preallocated := out.Buffers[0].Buf != nil
	// a non-zero output offset only makes sense when writing into
	// somebody else's preallocation
	if out.Offset != 0 && !preallocated {
		return fmt.Errorf("%w: can only propagate nulls into pre-allocated memory when the output offset is non-zero", quiver.ErrInvalid)
	}

	var (
		withNulls  []*exec.ArraySpan
		sawAllNull bool
	)
	for i := range batch.Values {
		v := &batch.Values[i]
		cls := classifyValidity(v)
		if cls == validityAllNull {
			sawAllNull = true
		}
		if cls != validityAllValid && v.IsArray() {
			withNulls = append(withNulls, &v.Array)
		}
	}

	claimBitmap := func() []byte {
		out.Buffers[0].WrapBuffer(ctx.AllocateBitmap(int64(out.Len)))
		return out.Buffers[0].Buf
	}

	target := out.Buffers[0].Buf
	if sawAllNull {
		// some input is entirely null, so the whole output is
		out.Nulls = out.Len
		if !preallocated {
			// an input bitmap that is already all zeros can be shared
			// instead of writing a fresh one
			for _, arr := range withNulls {
				if arr.Nulls == arr.Len && arr.Buffers[0].Owner != nil {
					buf := arr.GetBuffer(0)
					buf.Retain()
					out.Buffers[0].SetBuffer(buf)
					return nil
				}
			}
			target = claimBitmap()
		}
		bitutil.SetBitsTo(target, out.Offset, out.Len, false)
		return nil
	}

	switch len(withNulls) {
	case 0:
		out.Nulls = 0
		if preallocated {
			bitutil.SetBitsTo(target, out.Offset, out.Len, true)
		}
	case 1:
		arr := withNulls[0]
		out.Nulls = arr.Nulls
		if preallocated {
			bitutil.CopyBitmap(arr.Buffers[0].Buf, int(arr.Offset), int(arr.Len), target, int(out.Offset))
			return nil
		}

		// share the input bitmap when possible, zero-copy for aligned
		// offsets and a fresh copy otherwise
		if arr.Offset == 0 {
			out.Buffers[0] = arr.Buffers[0]
			out.Buffers[0].Owner.Retain()
		} else if arr.Offset%8 == 0 {
			sliced := memory.SliceBuffer(arr.GetBuffer(0), int(arr.Offset)/8, int(bitutil.BytesForBits(arr.Len)))
			out.Buffers[0].SetBuffer(sliced)
		} else {
			bitutil.CopyBitmap(arr.Buffers[0].Buf, int(arr.Offset), int(arr.Len), claimBitmap(), 0)
		}
	default:
		out.Nulls = array.UnknownNullCount
		if !preallocated {
			target = claimBitmap()
		}

		intersect := func(left, right *exec.ArraySpan) {
			debug.Assert(left.Buffers[0].Buf != nil && right.Buffers[0].Buf != nil,
				"null intersection requires both bitmaps")
			bitutil.BitmapAnd(left.Buffers[0].Buf, right.Buffers[0].Buf, left.Offset, right.Offset, target, out.Offset, out.Len)
		}
		intersect(withNulls[0], withNulls[1])
		for _, arr := range withNulls[2:] {
			intersect(out, arr)
		}
	}
	return nil
}

// commonBatchLength returns the shared length of the value arrays, or 1
// if all values are scalar. The second result is false if two arrays
// disagree.
func commonBatchLength(values []Datum) (int64, bool) {
	length := int64(-1)
	for _, v := range values {
		arr, ok := v.(*ArrayDatum)
		if !ok {
			continue
		}
		if length < 0 {
			length = arr.Len()
		} else if length != arr.Len() {
			return length, false
		}
	}

	if length < 0 {
		// no arrays at all
		if len(values) > 0 {
			return 1, true
		}
		return 0, true
	}
	return length, true
}

// kernelExecutor adapts a dispatched kernel to the four function kinds.
// Init must be called before Execute with the same KernelInitArgs the
// kernel state was initialized from.
type kernelExecutor interface {
	Init(*exec.KernelCtx, exec.KernelInitArgs) error
	Execute(context.Context, *ExecBatch) (Datum, error)
	CheckResultType(out Datum, fn string) error
}

// execBase carries the pieces shared by the scalar and vector executors.
type execBase struct {
	kctx           *exec.KernelCtx
	opts           ExecCtx
	kernel         exec.NonAggKernel
	outType        quiver.DataType
	numBufs        int
	prealloc       []preallocSpec
	preallocBitmap bool
}

func (e *execBase) Init(ctx *exec.KernelCtx, args exec.KernelInitArgs) (err error) {
	e.kctx, e.kernel = ctx, args.Kernel.(exec.NonAggKernel)
	e.outType, err = e.kernel.GetSig().OutType.Resolve(ctx, args.Inputs)
	e.opts = GetExecCtx(ctx.Ctx)
	return
}

func (e *execBase) prepareOutput(length int) *exec.ExecResult {
	out := &exec.ArraySpan{Type: e.outType, Len: int64(length), Nulls: array.UnknownNullCount}
	if e.kernel.GetNullHandling() == exec.NullNoOutput {
		out.Nulls = 0
	}

	if e.preallocBitmap {
		out.Buffers[0].WrapBuffer(e.kctx.AllocateBitmap(int64(length)))
	}
	for i, spec := range e.prealloc {
		if spec.bits < 0 {
			continue
		}
		out.Buffers[i+1].WrapBuffer(allocBuffer(e.kctx, length+spec.extra, spec.bits))
	}
	return out
}

func (e *execBase) CheckResultType(out Datum, fn string) error {
	return checkResultType(e.outType, out, fn)
}

func checkResultType(want quiver.DataType, out Datum, fn string) error {
	got := out.(ArrayLikeDatum).Type()
	if got != nil && !quiver.TypeEqual(want, got) {
		return fmt.Errorf("%w: function '%s' resolved output type %s but its kernel produced %s",
			quiver.ErrType, fn, want, got)
	}
	return nil
}

type spanSeq func() (exec.ExecSpan, int64, bool)

func ensureValueDatums(vals []Datum) error {
	for _, v := range vals {
		if !DatumIsValue(v) {
			return fmt.Errorf("%w: functions accept only array and scalar arguments, got %s",
				quiver.ErrInvalid, v)
		}
	}
	return nil
}

func allScalarBatch(batch *ExecBatch) bool {
	for _, v := range batch.Values {
		if v.Kind() != KindScalar {
			return false
		}
	}
	return batch.NumValues() > 0
}

// newSpanIterator returns a function to iterate the provided batch in
// spans of at most maxChunkSize rows. The returned spans share a Values
// slice, they must be deep-copied if they are kept past the next call.
func newSpanIterator(batch *ExecBatch, maxChunkSize int64, promoteIfAllScalar bool) (haveAllScalars bool, itr spanSeq, err error) {
	if batch.NumValues() > 0 {
		inferred, sameLen := commonBatchLength(batch.Values)
		if inferred != batch.Len {
			return false, nil, fmt.Errorf("%w: batch length disagrees with the lengths of its values", quiver.ErrInvalid)
		}
		if !sameLen {
			return false, nil, fmt.Errorf("%w: array args must all be the same length", quiver.ErrLengthMismatch)
		}
	}

	haveAllScalars = allScalarBatch(batch)
	total := batch.Len
	maxChunkSize = exec.Min(total, maxChunkSize)

	// base offsets of the array args, advanced by consumed as the
	// iterator slices its way through the batch
	base := make([]int64, len(batch.Values))
	consumed := make([]int64, len(batch.Values))

	span := exec.ExecSpan{Values: make([]exec.ExecValue, len(batch.Values))}
	for i, v := range batch.Values {
		switch v := v.(type) {
		case *ScalarDatum:
			span.Values[i].Scalar = v.Value
		case *ArrayDatum:
			span.Values[i].Array.SetMembers(v.Value)
			base[i] = int64(v.Value.Offset())
		}
	}

	if haveAllScalars && promoteIfAllScalar {
		exec.PromoteExecSpanScalars(span)
	}

	var pos int64
	return haveAllScalars, func() (exec.ExecSpan, int64, bool) {
		if pos == total {
			return exec.ExecSpan{}, pos, false
		}

		span.Len = exec.Min(total-pos, maxChunkSize)
		for i, v := range batch.Values {
			if v.Kind() == KindScalar {
				continue
			}
			span.Values[i].Array.SetSlice(base[i]+consumed[i], span.Len)
			consumed[i] += span.Len
		}

		pos += span.Len
		debug.Assert(pos <= total, "bad state for iteration exec span")
		return span, pos, true
	}, nil
}

type scalarExecutor struct {
	execBase

	skipBitmap   bool
	fullPrealloc bool
	sliceable    bool
	scalarsOnly  bool
	next         spanSeq
	batchLen     int64
}

func (s *scalarExecutor) Execute(ctx context.Context, batch *ExecBatch) (Datum, error) {
	if batch.Len == 0 {
		// the kernel is never run on an empty batch, the result is just
		// an empty array of the resolved output type
		empty := array.MakeArrayOfNull(exec.GetAllocator(s.kctx.Ctx), s.outType, 0)
		defer empty.Release()
		span := &exec.ArraySpan{}
		span.SetMembers(empty.Data())
		return s.emitResult(span)
	}

	s.setupPrealloc(batch.Values)

	// when the output cannot be built up from slices of one contiguous
	// preallocation the kernel has to see the whole batch as one span
	chunkSize := s.opts.ChunkSize
	if !s.sliceable {
		chunkSize = DefaultMaxChunkSize
	}

	var err error
	if s.scalarsOnly, s.next, err = newSpanIterator(batch, chunkSize, true); err != nil {
		return nil, err
	}
	s.batchLen = batch.Len
	return s.executeSpans()
}

func (s *scalarExecutor) setupPrealloc(args []Datum) {
	s.numBufs = (&exec.ArraySpan{Type: s.outType}).NumBuffers()
	outID := s.outType.ID()

	// no validity preallocation for null-type output or when the kernel
	// computes validity without prealloc (or emits none at all)
	s.preallocBitmap = false
	if outID != quiver.NULL {
		switch s.kernel.GetNullHandling() {
		case exec.NullComputedPrealloc:
			s.preallocBitmap = true
		case exec.NullIntersection:
			// when every input is known all-valid the intersection is
			// trivially all-valid and the bitmap can be elided entirely
			s.skipBitmap = true
			for _, a := range args {
				s.skipBitmap = s.skipBitmap && classifyDatumValidity(a) == validityAllValid
			}
			s.preallocBitmap = !s.skipBitmap
		case exec.NullNoOutput:
			s.skipBitmap = true
		}
	}

	if s.kernel.GetMemAlloc() == exec.MemPrealloc {
		s.prealloc = appendPreallocSpecs(s.outType, s.prealloc)
	}

	// everything preallocated (validity settled one way or the other,
	// all data buffers covered) only holds for non-dictionary primitives
	s.fullPrealloc = (s.preallocBitmap || s.skipBitmap) &&
		len(s.prealloc) == s.numBufs-1 && outID != quiver.DICTIONARY

	// writing into slices of one contiguous allocation additionally
	// requires kernel support
	s.sliceable = s.opts.PreallocContiguous && s.kernel.CanFillSlices() && s.fullPrealloc
}

func (s *scalarExecutor) executeSingleSpan(input *exec.ExecSpan, out *exec.ExecResult) error {
	switch nh := s.kernel.GetNullHandling(); {
	case out.Type.ID() == quiver.NULL:
		out.Nulls = out.Len
	case nh == exec.NullIntersection && !s.skipBitmap:
		if err := propagateNulls(s.kctx, input, out); err != nil {
			return err
		}
	case nh == exec.NullNoOutput:
		out.Nulls = 0
	}
	return s.kernel.Exec(s.kctx, input, out)
}

func (s *scalarExecutor) executeSpans() (Datum, error) {
	if !s.sliceable {
		// the iterator was created without a chunk limit so the entire
		// batch comes through as a single span with its own allocations
		input, _, ok := s.next()
		if !ok {
			return nil, fmt.Errorf("%w: scalar execution with no input spans", quiver.ErrInvalid)
		}

		output := *s.prepareOutput(int(input.Len))
		if err := s.executeSingleSpan(&input, &output); err != nil {
			output.ReleaseBuffers()
			return nil, err
		}
		return s.emitResult(&output)
	}

	// one big output alloc, with each span's result written into the
	// corresponding slice of it
	prealloc := s.prepareOutput(int(s.batchLen))

	if s.canExecuteParallel() {
		return s.executeSpansParallel(prealloc)
	}

	output := *prealloc
	output.Offset = 0
	var at int64
	for {
		input, consumed, ok := s.next()
		if !ok {
			break
		}
		output.SetSlice(at, input.Len)
		if err := s.executeSingleSpan(&input, &output); err != nil {
			prealloc.ReleaseBuffers()
			return nil, err
		}
		at = consumed
	}
	return s.emitResult(prealloc)
}

func (s *scalarExecutor) canExecuteParallel() bool {
	if s.scalarsOnly || s.opts.NumParallel <= 1 || s.batchLen <= s.opts.ChunkSize {
		return false
	}
	// chunks must cover whole bytes of the output bitmaps, otherwise
	// adjacent chunks would interleave writes within a single byte
	if s.opts.ChunkSize%8 != 0 {
		return false
	}
	k, ok := s.kernel.(*exec.ScalarKernel)
	return ok && k.Parallelizable
}

func (s *scalarExecutor) executeSpansParallel(prealloc *exec.ExecResult) (Datum, error) {
	type chunk struct {
		span exec.ExecSpan
		at   int64
	}

	// snapshot all the spans up front since the iterator reuses its state
	chunks := make([]chunk, 0, int((s.batchLen+s.opts.ChunkSize-1)/s.opts.ChunkSize))
	var at int64
	for {
		input, consumed, ok := s.next()
		if !ok {
			break
		}
		vals := make([]exec.ExecValue, len(input.Values))
		copy(vals, input.Values)
		chunks = append(chunks, chunk{exec.ExecSpan{Len: input.Len, Values: vals}, at})
		at = consumed
	}

	var grp errgroup.Group
	grp.SetLimit(s.opts.NumParallel)
	for i := range chunks {
		c := &chunks[i]
		grp.Go(func() error {
			out := *prealloc
			out.Offset = 0
			out.SetSlice(c.at, c.span.Len)
			return s.executeSingleSpan(&c.span, &out)
		})
	}
	if err := grp.Wait(); err != nil {
		prealloc.ReleaseBuffers()
		return nil, err
	}
	return s.emitResult(prealloc)
}

func (s *scalarExecutor) emitResult(result *exec.ArraySpan) (Datum, error) {
	if s.scalarsOnly {
		// scalar inputs were boxed as length-1 arrays, unbox the output
		arr := result.MakeArray()
		defer arr.Release()
		sc, err := scalar.GetScalar(arr, 0)
		if err != nil {
			return nil, err
		}
		return NewDatum(sc), nil
	}
	d := result.MakeData()
	defer d.Release()
	return NewDatum(d), nil
}

type vectorExecutor struct {
	execBase
}

func (v *vectorExecutor) Execute(ctx context.Context, batch *ExecBatch) (Datum, error) {
	// vector kernels compute over whole arrays, so the batch always goes
	// through as a single span even when the arguments differ in length
	span := ExecSpanFromBatch(batch)
	if allScalarBatch(batch) {
		exec.PromoteExecSpanScalars(*span)
	} else {
		// a lone scalar among arrays is seen by the kernel as a length-1 array
		for i := range span.Values {
			if span.Values[i].IsScalar() {
				span.Values[i].Array.FillFromScalar(span.Values[i].Scalar)
				span.Values[i].Scalar = nil
			}
		}
	}

	output := v.prepareOutput(int(span.Len))
	if v.kernel.GetNullHandling() == exec.NullIntersection {
		if err := propagateNulls(v.kctx, span, output); err != nil {
			return nil, err
		}
	}

	if err := v.kernel.Exec(v.kctx, span, output); err != nil {
		output.ReleaseBuffers()
		return nil, err
	}

	d := output.MakeData()
	defer d.Release()
	return NewDatum(d), nil
}

type scalarAggExecutor struct {
	kctx     *exec.KernelCtx
	opts     ExecCtx
	kernel   *exec.ScalarAggKernel
	initArgs exec.KernelInitArgs
	outType  quiver.DataType
}

func (s *scalarAggExecutor) Init(ctx *exec.KernelCtx, args exec.KernelInitArgs) (err error) {
	s.kctx, s.initArgs = ctx, args
	s.kernel = args.Kernel.(*exec.ScalarAggKernel)
	s.outType, err = s.kernel.GetSig().OutType.Resolve(ctx, args.Inputs)
	s.opts = GetExecCtx(ctx.Ctx)
	return
}

// newState initializes a fresh kernel state sharing everything else
// with the primary kernel context.
func (s *scalarAggExecutor) newState() (*exec.KernelCtx, error) {
	kctx := &exec.KernelCtx{Ctx: s.kctx.Ctx, Kernel: s.kctx.Kernel}
	init := s.kernel.GetInitFn()
	debug.Assert(init != nil, "aggregate kernels require a state init")
	st, err := init(kctx, s.initArgs)
	if err != nil {
		return nil, err
	}
	kctx.State = st
	return kctx, nil
}

func (s *scalarAggExecutor) Execute(ctx context.Context, batch *ExecBatch) (Datum, error) {
	_, iter, err := newSpanIterator(batch, s.opts.ChunkSize, true)
	if err != nil {
		return nil, err
	}

	var spans []exec.ExecSpan
	for {
		input, _, ok := iter()
		if !ok {
			break
		}
		vals := make([]exec.ExecValue, len(input.Values))
		copy(vals, input.Values)
		spans = append(spans, exec.ExecSpan{Len: input.Len, Values: vals})
	}

	switch len(spans) {
	case 0:
		// empty input, finalize the initial state untouched
	case 1:
		if err := s.kernel.Consume(s.kctx, &spans[0]); err != nil {
			return nil, err
		}
	default:
		// each chunk aggregates into its own state which are then merged
		// back in chunk order, so the result never depends on scheduling
		states := make([]*exec.KernelCtx, len(spans))
		states[0] = s.kctx
		for i := 1; i < len(states); i++ {
			if states[i], err = s.newState(); err != nil {
				return nil, err
			}
		}

		var grp errgroup.Group
		grp.SetLimit(exec.Max(s.opts.NumParallel, 1))
		for i := range spans {
			i := i
			grp.Go(func() error {
				return s.kernel.Consume(states[i], &spans[i])
			})
		}
		if err := grp.Wait(); err != nil {
			return nil, err
		}

		for _, st := range states[1:] {
			if err := s.kernel.Merge(s.kctx, st.State); err != nil {
				return nil, err
			}
		}
	}

	res, err := s.kernel.Finalize(s.kctx)
	if err != nil {
		return nil, err
	}
	return NewDatum(res), nil
}

func (s *scalarAggExecutor) CheckResultType(out Datum, fn string) error {
	return checkResultType(s.outType, out, fn)
}

type hashAggExecutor struct {
	kctx    *exec.KernelCtx
	opts    ExecCtx
	kernel  *exec.HashAggKernel
	outType quiver.DataType
}

func (h *hashAggExecutor) Init(ctx *exec.KernelCtx, args exec.KernelInitArgs) (err error) {
	h.kctx = ctx
	h.kernel = args.Kernel.(*exec.HashAggKernel)
	h.outType, err = h.kernel.GetSig().OutType.Resolve(ctx, args.Inputs)
	h.opts = GetExecCtx(ctx.Ctx)
	return
}

func (h *hashAggExecutor) Execute(ctx context.Context, batch *ExecBatch) (Datum, error) {
	for _, v := range batch.Values {
		if v.Kind() != KindArray {
			return nil, fmt.Errorf("%w: grouped aggregation requires array arguments, got %s",
				quiver.ErrInvalid, v)
		}
	}

	// the last argument carries the group ids. they are mapped to dense
	// group indices so the kernel only ever sees ids in [0, numGroups),
	// or -1 for rows whose group id is null.
	idArg := len(batch.Values) - 1
	grouper, err := kernels.NewGrouper(exec.GetAllocator(h.kctx.Ctx), batch.Values[idArg].(ArrayLikeDatum).Type())
	if err != nil {
		return nil, err
	}

	_, iter, err := newSpanIterator(batch, h.opts.ChunkSize, false)
	if err != nil {
		return nil, err
	}

	for {
		span, _, ok := iter()
		if !ok {
			break
		}

		groups, err := grouper.Consume(&span.Values[idArg].Array)
		if err != nil {
			return nil, err
		}
		if err = h.kernel.Resize(h.kctx, grouper.NumGroups()); err != nil {
			return nil, err
		}

		idSpan := exec.ArraySpan{Type: quiver.PrimitiveTypes.Int32, Len: span.Len}
		if len(groups) > 0 {
			idSpan.Buffers[1].Buf = exec.GetBytes(groups)
		}

		vals := make([]exec.ExecValue, len(span.Values))
		copy(vals, span.Values)
		vals[idArg] = exec.ExecValue{Array: idSpan}
		chunk := exec.ExecSpan{Len: span.Len, Values: vals}
		if err = h.kernel.Consume(h.kctx, &chunk); err != nil {
			return nil, err
		}
	}

	out := &exec.ExecResult{Type: h.outType}
	if err = h.kernel.Finalize(h.kctx, out); err != nil {
		return nil, err
	}

	d := out.MakeData()
	defer d.Release()
	return NewDatum(d), nil
}

func (h *hashAggExecutor) CheckResultType(out Datum, fn string) error {
	return checkResultType(h.outType, out, fn)
}
