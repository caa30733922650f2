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
	"context"
	"fmt"
	"hash/maphash"
	"strings"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/internal/debug"
	"github.com/quiverdata/quiver/memory"
	"github.com/quiverdata/quiver/scalar"
)

var hashSeed = maphash.MakeSeed()

// seededHash returns the process-stable starting value the signature
// hashes chain from.
func seededHash() uint64 {
	var h maphash.Hash
	h.SetSeed(hashSeed)
	return h.Sum64()
}

type ctxAllocKey struct{}

// WithAllocator attaches the allocator to the returned context.
func WithAllocator(ctx context.Context, mem memory.Allocator) context.Context {
	return context.WithValue(ctx, ctxAllocKey{}, mem)
}

// GetAllocator pulls the allocator out of the context, falling back to
// memory.DefaultAllocator when none was attached.
func GetAllocator(ctx context.Context) memory.Allocator {
	if alloc, ok := ctx.Value(ctxAllocKey{}).(memory.Allocator); ok {
		return alloc
	}
	return memory.DefaultAllocator
}

// KernelCtx carries the per-execution state a kernel sees: the context of
// the invocation, the kernel itself and whatever its init function built.
type KernelCtx struct {
	Ctx    context.Context
	Kernel Kernel
	State  KernelState
}

func (k *KernelCtx) Allocate(bufsize int) *memory.Buffer {
	buf := memory.NewResizableBuffer(GetAllocator(k.Ctx))
	buf.Resize(bufsize)
	return buf
}

func (k *KernelCtx) AllocateBitmap(nbits int64) *memory.Buffer {
	return k.Allocate(int(bitutil.BytesForBits(nbits)))
}

// TypeMatcher checks candidate input or output types during kernel
// dispatch when a rule is broader than a single concrete DataType.
type TypeMatcher interface {
	fmt.Stringer
	Matches(typ quiver.DataType) bool
	Equals(other TypeMatcher) bool
}

type sameTypeIDMatcher struct {
	accepted quiver.Type
}

func (s *sameTypeIDMatcher) Matches(typ quiver.DataType) bool { return s.accepted == typ.ID() }

func (s *sameTypeIDMatcher) Equals(other TypeMatcher) bool {
	o, ok := other.(*sameTypeIDMatcher)
	return ok && s.accepted == o.accepted
}

func (s *sameTypeIDMatcher) String() string {
	return fmt.Sprintf("Type::%s", s.accepted)
}

// SameTypeID returns a matcher accepting any DataType carrying the given
// type ID.
func SameTypeID(id quiver.Type) TypeMatcher { return &sameTypeIDMatcher{id} }

// predicateMatcher matches a class of types through a predicate over the
// type ID. Two predicate matchers are equal when their names are.
type predicateMatcher struct {
	name string
	pred func(quiver.Type) bool
}

func (p predicateMatcher) String() string { return p.name }

func (p predicateMatcher) Matches(typ quiver.DataType) bool { return p.pred(typ.ID()) }

func (p predicateMatcher) Equals(other TypeMatcher) bool {
	o, ok := other.(predicateMatcher)
	return ok && p.name == o.name
}

// Integer returns a matcher accepting any integral type.
func Integer() TypeMatcher {
	return predicateMatcher{name: "integer", pred: quiver.IsInteger}
}

// BinaryLike returns a matcher accepting Binary or String.
func BinaryLike() TypeMatcher {
	return predicateMatcher{name: "binary-like", pred: quiver.IsBaseBinary}
}

// Primitive returns a matcher accepting anything quiver.IsPrimitive does.
func Primitive() TypeMatcher {
	return predicateMatcher{name: "primitive", pred: quiver.IsPrimitive}
}

// InputKind selects how an InputType checks an argument: accept anything,
// require one exact type, or delegate to a TypeMatcher.
type InputKind int8

const (
	InputAny InputKind = iota
	InputExact
	InputUseMatcher
)

// InputType is a single argument's type-checking rule inside a
// KernelSignature, given either as a concrete DataType or as a custom
// TypeMatcher.
type InputType struct {
	Kind    InputKind
	Type    quiver.DataType
	Matcher TypeMatcher
}

func NewExactInput(dt quiver.DataType) InputType { return InputType{Kind: InputExact, Type: dt} }

func NewMatchedInput(match TypeMatcher) InputType {
	return InputType{Kind: InputUseMatcher, Matcher: match}
}

func NewIDInput(id quiver.Type) InputType { return NewMatchedInput(SameTypeID(id)) }

func (it InputType) MatchID() quiver.Type {
	switch it.Kind {
	case InputExact:
		return it.Type.ID()
	case InputUseMatcher:
		if sm, ok := it.Matcher.(*sameTypeIDMatcher); ok {
			return sm.accepted
		}
	}
	debug.Assert(false, "MatchID called on non-id input")
	return -1
}

func (it InputType) String() string {
	switch it.Kind {
	case InputExact:
		return it.Type.String()
	case InputUseMatcher:
		return it.Matcher.String()
	default:
		return "any"
	}
}

func (it *InputType) Equals(other *InputType) bool {
	if it == other {
		return true
	}
	if it.Kind != other.Kind {
		return false
	}

	switch it.Kind {
	case InputExact:
		return quiver.TypeEqual(it.Type, other.Type)
	case InputUseMatcher:
		return it.Matcher.Equals(other.Matcher)
	default:
		return it.Kind == InputAny
	}
}

func (it InputType) Hash() uint64 {
	code := HashCombine(seededHash(), uint64(it.Kind))
	if it.Kind == InputExact {
		code = HashCombine(code, quiver.HashType(hashSeed, it.Type))
	}
	return code
}

func (it InputType) Matches(dt quiver.DataType) bool {
	switch it.Kind {
	case InputExact:
		return quiver.TypeEqual(it.Type, dt)
	case InputUseMatcher:
		return it.Matcher.Matches(dt)
	default:
		debug.Assert(it.Kind == InputAny, "invalid InputKind")
		return true
	}
}

// ResolveKind says whether an OutputType names a fixed type or computes
// one from the inputs through a resolver.
type ResolveKind int8

const (
	ResolveFixed ResolveKind = iota
	ResolveComputed
)

// TypeResolver computes a kernel's output type from its input types.
type TypeResolver = func(*KernelCtx, []quiver.DataType) (quiver.DataType, error)

type OutputType struct {
	Kind     ResolveKind
	Type     quiver.DataType
	Resolver TypeResolver
}

// NewOutputType declares a fixed output type.
func NewOutputType(dt quiver.DataType) OutputType {
	return OutputType{Kind: ResolveFixed, Type: dt}
}

// NewComputedOutputType declares an output whose type is resolved from the
// input types at dispatch time.
func NewComputedOutputType(resolver TypeResolver) OutputType {
	return OutputType{Kind: ResolveComputed, Resolver: resolver}
}

func (o OutputType) String() string {
	if o.Kind == ResolveComputed {
		return "computed"
	}
	return o.Type.String()
}

func (o OutputType) Resolve(ctx *KernelCtx, types []quiver.DataType) (quiver.DataType, error) {
	if o.Kind == ResolveComputed {
		return o.Resolver(ctx, types)
	}
	return o.Type, nil
}

// NullHandling declares how the output validity bitmap of a kernel comes
// to be.
type NullHandling int8

const (
	// The executor intersects the argument validity bitmaps with
	// bitwise AND, so any null argument value nulls the output slot.
	NullIntersection NullHandling = iota
	// The kernel fills in a validity bitmap the executor preallocated.
	NullComputedPrealloc
	// The kernel allocates and populates the validity bitmap itself.
	NullComputedNoPrealloc
	// The output contains no nulls, skip the validity bitmap entirely.
	NullNoOutput
)

// MemAlloc declares whether the executor should preallocate the data
// buffer of a fixed-width output before invoking the kernel.
type MemAlloc int8

const (
	// The executor hands the kernel a preallocated data buffer to write
	// into, sized to the execution batch length. Only fixed-width output
	// types can be preallocated; others always allocate their own
	// buffers, and vector kernels whose output length differs from the
	// input length must not request preallocation.
	//
	// Data preallocation is independent of validity-bitmap
	// preallocation; either may be enabled without the other.
	MemPrealloc MemAlloc = iota
	// The kernel allocates its own data buffer even for fixed-width
	// output types.
	MemNoPrealloc
)

// KernelState is whatever a kernel's init function builds. Each execution
// of a kernel receives a fresh state value.
type KernelState any

// KernelInitArgs feed a kernel's init function: the kernel being set up,
// the resolved input types, and the (kernel-specific, possibly nil)
// options value.
type KernelInitArgs struct {
	Kernel  Kernel
	Inputs  []quiver.DataType
	Options any
}

// KernelInitFn builds the state for one execution of a kernel.
type KernelInitFn = func(*KernelCtx, KernelInitArgs) (KernelState, error)

// Kernel is the lowest common denominator of all execution kernels: a
// signature plus optional state initialization.
type Kernel interface {
	GetInitFn() KernelInitFn
	GetSig() *KernelSignature
}

// NonAggKernel extends Kernel for the non-aggregate kernels, adding the
// exec function itself along with the kernel's null handling and memory
// preallocation preferences.
type NonAggKernel interface {
	Kernel
	Exec(*KernelCtx, *ExecSpan, *ExecResult) error
	GetNullHandling() NullHandling
	GetMemAlloc() MemAlloc
	CanFillSlices() bool
}

// KernelSignature pairs a kernel's input type rules with its output type.
//
// For a varargs function with at least N arguments, the signature holds N
// input types: the first N-1 check the first N-1 arguments and the last
// one checks every remaining argument.
type KernelSignature struct {
	InputTypes []InputType
	OutType    OutputType
	IsVarArgs  bool

	// memoized Hash() result
	hashCode uint64
}

func (k KernelSignature) String() string {
	names := make([]string, len(k.InputTypes))
	for i, in := range k.InputTypes {
		names[i] = in.String()
	}

	argList := strings.Join(names, ", ")
	if k.IsVarArgs {
		return fmt.Sprintf("varargs[%s*] -> %s", argList, k.OutType)
	}
	return fmt.Sprintf("(%s) -> %s", argList, k.OutType)
}

// Equals compares only the input types: a function can hold at most one
// kernel per distinct argument list, the output type never disambiguates.
func (k KernelSignature) Equals(other KernelSignature) bool {
	if k.IsVarArgs != other.IsVarArgs || len(k.InputTypes) != len(other.InputTypes) {
		return false
	}

	for i := range k.InputTypes {
		if !k.InputTypes[i].Equals(&other.InputTypes[i]) {
			return false
		}
	}
	return true
}

func (k *KernelSignature) Hash() uint64 {
	if k.hashCode != 0 {
		return k.hashCode
	}

	code := seededHash()
	for _, in := range k.InputTypes {
		code = HashCombine(code, in.Hash())
	}
	k.hashCode = code
	return code
}

func (k KernelSignature) MatchesInputs(types []quiver.DataType) bool {
	last := len(k.InputTypes) - 1
	if k.IsVarArgs {
		// everything before the vararg slot must be present
		if len(types) < last {
			return false
		}
	} else if len(types) != len(k.InputTypes) {
		return false
	}

	for i, dt := range types {
		// surplus varargs arguments all check against the final rule
		if !k.InputTypes[Min(i, last)].Matches(dt) {
			return false
		}
	}
	return true
}

// ArrayKernelExec is the execution function of a kernel.
//
// Stateful kernels reach their state through the KernelCtx.
type ArrayKernelExec = func(*KernelCtx, *ExecSpan, *ExecResult) error

type kernel struct {
	Init           KernelInitFn
	Signature      *KernelSignature
	Data           KernelState
	Parallelizable bool
}

func (k kernel) GetInitFn() KernelInitFn  { return k.Init }
func (k kernel) GetSig() *KernelSignature { return k.Signature }

// ScalarKernel implements a scalar function: one output element per input
// element. Beyond the base kernel it records the null handling and memory
// preallocation preferences the executor honors.
type ScalarKernel struct {
	kernel

	ExecFn             ArrayKernelExec
	CanWriteIntoSlices bool
	NullHandling       NullHandling
	MemAlloc           MemAlloc
}

// NewScalarKernel builds a scalar-execution kernel from the input and
// output types, the exec function, and an optional state init function.
func NewScalarKernel(in []InputType, out OutputType, execFn ArrayKernelExec, init KernelInitFn) ScalarKernel {
	sig := &KernelSignature{InputTypes: in, OutType: out}
	return NewScalarKernelWithSig(sig, execFn, init)
}

// NewScalarKernelWithSig is NewScalarKernel for callers that already hold
// a signature.
func NewScalarKernelWithSig(sig *KernelSignature, execFn ArrayKernelExec, init KernelInitFn) ScalarKernel {
	return ScalarKernel{
		kernel:             kernel{Init: init, Signature: sig, Parallelizable: true},
		ExecFn:             execFn,
		CanWriteIntoSlices: true,
		NullHandling:       NullIntersection,
		MemAlloc:           MemPrealloc,
	}
}

func (s *ScalarKernel) Exec(ctx *KernelCtx, batch *ExecSpan, out *ExecResult) error {
	return s.ExecFn(ctx, batch, out)
}

func (s ScalarKernel) GetNullHandling() NullHandling { return s.NullHandling }
func (s ScalarKernel) GetMemAlloc() MemAlloc         { return s.MemAlloc }
func (s ScalarKernel) CanFillSlices() bool           { return s.CanWriteIntoSlices }

// VectorKernel implements a vector function, one whose output length may
// differ from its input length (filtering, sorting) and which may need the
// whole input at once.
type VectorKernel struct {
	kernel

	ExecFn       ArrayKernelExec
	NullHandling NullHandling
	MemAlloc     MemAlloc
	// CanExecuteChunkWise permits running the kernel over slices of the
	// input independently. Kernels that must see the full input, such as
	// sorting, leave this false and receive the batch in one call.
	CanExecuteChunkWise bool
}

// NewVectorKernel builds a vector-execution kernel; by default the whole
// batch is passed through in a single call.
func NewVectorKernel(in []InputType, out OutputType, execFn ArrayKernelExec, init KernelInitFn) VectorKernel {
	sig := &KernelSignature{InputTypes: in, OutType: out}
	return NewVectorKernelWithSig(sig, execFn, init)
}

// NewVectorKernelWithSig is NewVectorKernel for callers that already hold
// a signature.
func NewVectorKernelWithSig(sig *KernelSignature, execFn ArrayKernelExec, init KernelInitFn) VectorKernel {
	return VectorKernel{
		kernel:       kernel{Init: init, Signature: sig, Parallelizable: true},
		ExecFn:       execFn,
		NullHandling: NullComputedNoPrealloc,
		MemAlloc:     MemNoPrealloc,
	}
}

func (s *VectorKernel) Exec(ctx *KernelCtx, batch *ExecSpan, out *ExecResult) error {
	return s.ExecFn(ctx, batch, out)
}

func (s VectorKernel) GetNullHandling() NullHandling { return s.NullHandling }
func (s VectorKernel) GetMemAlloc() MemAlloc         { return s.MemAlloc }
func (s VectorKernel) CanFillSlices() bool           { return false }

// ScalarAggKernel implements a scalar aggregate function, reducing its
// input to one scalar. Each execution gets its own state from the init
// function; input chunks feed ConsumeFn, states from parallel executions
// combine through MergeFn, and FinalizeFn emits the result.
type ScalarAggKernel struct {
	kernel

	ConsumeFn  func(*KernelCtx, *ExecSpan) error
	MergeFn    func(*KernelCtx, KernelState) error
	FinalizeFn func(*KernelCtx) (scalar.Scalar, error)
}

// NewScalarAggKernel builds a scalar aggregate kernel from its state
// init, consume, merge and finalize implementations.
func NewScalarAggKernel(in []InputType, out OutputType, init KernelInitFn, consume func(*KernelCtx, *ExecSpan) error, merge func(*KernelCtx, KernelState) error, finalize func(*KernelCtx) (scalar.Scalar, error)) ScalarAggKernel {
	return ScalarAggKernel{
		kernel:     kernel{Init: init, Signature: &KernelSignature{InputTypes: in, OutType: out}, Parallelizable: true},
		ConsumeFn:  consume,
		MergeFn:    merge,
		FinalizeFn: finalize,
	}
}

// Consume accumulates the values of batch into the state in ctx.
func (s *ScalarAggKernel) Consume(ctx *KernelCtx, batch *ExecSpan) error {
	return s.ConsumeFn(ctx, batch)
}

// Merge combines the accumulated state other into the state in ctx.
func (s *ScalarAggKernel) Merge(ctx *KernelCtx, other KernelState) error {
	return s.MergeFn(ctx, other)
}

// Finalize produces the aggregate result from the state in ctx.
func (s *ScalarAggKernel) Finalize(ctx *KernelCtx) (scalar.Scalar, error) {
	return s.FinalizeFn(ctx)
}

// HashAggKernel implements a grouped aggregate function. Input batches
// carry each value's group id as the final argument; ResizeFn runs before
// each consume so state exists for every group id seen so far, and
// FinalizeFn emits one output slot per group.
type HashAggKernel struct {
	kernel

	ResizeFn   func(*KernelCtx, int64) error
	ConsumeFn  func(*KernelCtx, *ExecSpan) error
	FinalizeFn func(*KernelCtx, *ExecResult) error
}

// NewHashAggKernel builds a grouped aggregate kernel from its state init,
// resize, consume and finalize implementations.
func NewHashAggKernel(in []InputType, out OutputType, init KernelInitFn, resize func(*KernelCtx, int64) error, consume func(*KernelCtx, *ExecSpan) error, finalize func(*KernelCtx, *ExecResult) error) HashAggKernel {
	return HashAggKernel{
		kernel:     kernel{Init: init, Signature: &KernelSignature{InputTypes: in, OutType: out}},
		ResizeFn:   resize,
		ConsumeFn:  consume,
		FinalizeFn: finalize,
	}
}

// Resize ensures the state in ctx covers numGroups groups.
func (s *HashAggKernel) Resize(ctx *KernelCtx, numGroups int64) error {
	return s.ResizeFn(ctx, numGroups)
}

// Consume accumulates the values of batch into their groups' states.
func (s *HashAggKernel) Consume(ctx *KernelCtx, batch *ExecSpan) error {
	return s.ConsumeFn(ctx, batch)
}

// Finalize produces the per-group aggregate results from the state in ctx.
func (s *HashAggKernel) Finalize(ctx *KernelCtx, out *ExecResult) error {
	return s.FinalizeFn(ctx, out)
}
