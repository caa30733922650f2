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
	"strings"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/compute/exec"
)

// FunctionOptions can be any type which has a TypeName function. The fields
// of the options type are what is used to control the behavior of a kernel
// when executed.
type FunctionOptions interface {
	TypeName() string
}

type Function interface {
	Name() string
	Kind() FuncKind
	Arity() Arity
	Doc() FunctionDoc
	NumKernels() int
	Execute(context.Context, FunctionOptions, ...Datum) (Datum, error)
	DispatchExact(...quiver.DataType) (exec.Kernel, error)
	DispatchBest(...quiver.DataType) (exec.Kernel, error)
	DefaultOptions() FunctionOptions
	Validate() error
}

// Arity defines the number of required arguments for a function.
//
// Naming conventions are taken from https://en.wikipedia.org/wiki/Arity
type Arity struct {
	NArgs     int
	IsVarArgs bool
}

func Nullary() Arity            { return Arity{0, false} }
func Unary() Arity              { return Arity{1, false} }
func Binary() Arity             { return Arity{2, false} }
func Ternary() Arity            { return Arity{3, false} }
func VarArgs(minArgs int) Arity { return Arity{minArgs, true} }

type FunctionDoc struct {
	// A one-line summary of the function, using a verb.
	//
	// For example, "Add two numeric arrays or scalars"
	Summary string
	// A detailed description of the function, meant to follow the summary.
	Description string
	// Symbolic names (identifiers) for the function arguments.
	//
	// Can be used to generate nicer function signatures.
	ArgNames []string
	// Name of the options struct type, if any
	OptionsClass string
	// Whether or not options are required for function execution.
	//
	// If false, then either there are no options for this function,
	// or there is a usable default options value.
	OptionsRequired bool
}

// EmptyFuncDoc is a reusable empty function doc definition for convenience.
var EmptyFuncDoc FunctionDoc

// FuncKind is an enum representing the type of a function
type FuncKind int8

const (
	// A function that performs scalar data operations on whole arrays
	// of data. Can generally process Array or Scalar values. The size
	// of the output will be the same as the size (or broadcasted size,
	// in the case of mixing Array and Scalar values) of the input.
	FuncScalar FuncKind = iota // Scalar
	// A function with array input and output whose behavior depends on
	// the values of the entire arrays passed, rather than the value of
	// each scalar value.
	FuncVector // Vector
	// A function that computes a scalar summary statistic from array input.
	FuncScalarAgg // ScalarAggregate
	// A function that computes grouped summary statistics from array
	// input and an array of group identifiers.
	FuncHashAgg // HashAggregate
	// A function that dispatches to other functions and does not contain
	// its own kernels.
	FuncMeta // Meta
)

// indexed by FuncKind, which is why the order must track the const block
var funcKindNames = [...]string{"Scalar", "Vector", "ScalarAggregate", "HashAggregate", "Meta"}

func (f FuncKind) String() string {
	if f >= 0 && int(f) < len(funcKindNames) {
		return funcKindNames[f]
	}
	return ""
}

func ValidateFunctionSummary(summary string) error {
	switch {
	case strings.Contains(summary, "\n"):
		return fmt.Errorf("%w: summary contains a newline", quiver.ErrInvalid)
	case summary[len(summary)-1] == '.':
		return fmt.Errorf("%w: summary ends with a point", quiver.ErrInvalid)
	}
	return nil
}

func ValidateFunctionDescription(desc string) error {
	if len(desc) != 0 && desc[len(desc)-1] == '\n' {
		return fmt.Errorf("%w: description ends with a newline", quiver.ErrInvalid)
	}

	const maxLineSize = 78
	for _, ln := range strings.Split(desc, "\n") {
		if len(ln) > maxLineSize {
			return fmt.Errorf("%w: description line length exceeds %d characters", quiver.ErrInvalid, maxLineSize)
		}
	}
	return nil
}

// baseFunction is the base class for compute functions. Function
// implementations should embed this rather than implementing the whole
// interface themselves.
type baseFunction struct {
	name        string
	kind        FuncKind
	arity       Arity
	doc         FunctionDoc
	defaultOpts FunctionOptions
}

func newBaseFunction(name string, kind FuncKind, arity Arity, doc FunctionDoc) baseFunction {
	return baseFunction{name: name, kind: kind, arity: arity, doc: doc}
}

func (b *baseFunction) Name() string                    { return b.name }
func (b *baseFunction) Kind() FuncKind                  { return b.kind }
func (b *baseFunction) Arity() Arity                    { return b.arity }
func (b *baseFunction) Doc() FunctionDoc                { return b.doc }
func (b *baseFunction) DefaultOptions() FunctionOptions { return b.defaultOpts }

func (b *baseFunction) SetDefaultOptions(opts FunctionOptions) { b.defaultOpts = opts }

func (b *baseFunction) Validate() error {
	if b.doc.Summary == "" {
		return nil
	}

	argCount := len(b.doc.ArgNames)
	if argCount != b.arity.NArgs && !(b.arity.IsVarArgs && argCount == b.arity.NArgs+1) {
		return fmt.Errorf("in function '%s': doc argument names do not match the function arity", b.name)
	}

	if err := ValidateFunctionSummary(b.doc.Summary); err != nil {
		return err
	}
	return ValidateFunctionDescription(b.doc.Description)
}

func (b *baseFunction) checkArity(nargs int) error {
	switch {
	case b.arity.IsVarArgs && nargs < b.arity.NArgs:
		return fmt.Errorf("%w: varargs function '%s' requires at least %d arguments, got %d",
			quiver.ErrInvalid, b.name, b.arity.NArgs, nargs)
	case !b.arity.IsVarArgs && nargs != b.arity.NArgs:
		return fmt.Errorf("%w: function '%s' takes %d arguments, got %d",
			quiver.ErrInvalid, b.name, b.arity.NArgs, nargs)
	}
	return nil
}

// newSignature validates the input types against the function's arity and
// builds a kernel signature from them.
func (b *baseFunction) newSignature(inTypes []exec.InputType, outType exec.OutputType) (*exec.KernelSignature, error) {
	if err := b.checkArity(len(inTypes)); err != nil {
		return nil, err
	}
	if b.arity.IsVarArgs && len(inTypes) != 1 {
		return nil, fmt.Errorf("%w: varargs signatures must have exactly one input type", quiver.ErrInvalid)
	}

	return &exec.KernelSignature{
		InputTypes: inTypes,
		OutType:    outType,
		IsVarArgs:  b.arity.IsVarArgs,
	}, nil
}

func checkOptions(fn Function, opts FunctionOptions) error {
	if opts == nil && fn.Doc().OptionsRequired {
		return fmt.Errorf("%w: function '%s' cannot be called without options", quiver.ErrInvalid, fn.Name())
	}
	return nil
}

type kernelType interface {
	exec.ScalarKernel | exec.VectorKernel | exec.ScalarAggKernel | exec.HashAggKernel

	exec.Kernel
}

type funcImpl[KT kernelType] struct {
	baseFunction

	kernels []KT
}

func newFuncImpl[KT kernelType](name string, kind FuncKind, arity Arity, doc FunctionDoc) funcImpl[KT] {
	return funcImpl[KT]{baseFunction: newBaseFunction(name, kind, arity, doc)}
}

func (fi *funcImpl[KT]) DispatchExact(vals ...quiver.DataType) (*KT, error) {
	if err := fi.checkArity(len(vals)); err != nil {
		return nil, err
	}

	for i := range fi.kernels {
		if fi.kernels[i].GetSig().MatchesInputs(vals) {
			return &fi.kernels[i], nil
		}
	}

	return nil, fmt.Errorf("%w: no kernel of function '%s' accepts the input types %s",
		quiver.ErrNoMatchingKernel, fi.name, quiver.TypesToString(vals))
}

// addKernel appends a kernel to the function after verifying its arity
// and that no existing kernel shares its input signature. Only one
// kernel may be dispatched to for a given argument list, so accepting a
// second one would make resolution order-dependent.
func (fi *funcImpl[KT]) addKernel(k KT) error {
	sig := k.GetSig()
	if err := fi.checkArity(len(sig.InputTypes)); err != nil {
		return err
	}

	if fi.arity.IsVarArgs && !sig.IsVarArgs {
		return fmt.Errorf("%w: function accepts varargs but kernel signature does not", quiver.ErrInvalid)
	}

	for i := range fi.kernels {
		if fi.kernels[i].GetSig().Equals(*sig) {
			return fmt.Errorf("%w: function '%s' already has a kernel with signature %s",
				quiver.ErrDuplicateSignature, fi.name, sig)
		}
	}

	fi.kernels = append(fi.kernels, k)
	return nil
}

func (fi *funcImpl[KT]) NumKernels() int { return len(fi.kernels) }

func (fi *funcImpl[KT]) Kernels() []*KT {
	out := make([]*KT, len(fi.kernels))
	for i := range fi.kernels {
		out[i] = &fi.kernels[i]
	}
	return out
}

// A ScalarFunction is a function that executes element-wise operations
// on arrays, where the output array is the same length as the input
// array. Output values are computed from the corresponding input values
// without regard to any other values in the inputs.
type ScalarFunction struct {
	funcImpl[exec.ScalarKernel]
}

// NewScalarFunction constructs a new ScalarFunction object with the passed in
// name, arity and function doc.
func NewScalarFunction(name string, arity Arity, doc FunctionDoc) *ScalarFunction {
	return &ScalarFunction{newFuncImpl[exec.ScalarKernel](name, FuncScalar, arity, doc)}
}

func (s *ScalarFunction) DispatchExact(vals ...quiver.DataType) (exec.Kernel, error) {
	return s.funcImpl.DispatchExact(vals...)
}

func (s *ScalarFunction) DispatchBest(vals ...quiver.DataType) (exec.Kernel, error) {
	return s.DispatchExact(vals...)
}

// AddNewKernel constructs a new kernel with the provided signature and
// execution/init functions and then adds it to the function's list of
// kernels. This assumes default null handling (intersection of validity
// bitmaps).
func (s *ScalarFunction) AddNewKernel(inTypes []exec.InputType, outType exec.OutputType, execFn exec.ArrayKernelExec, init exec.KernelInitFn) error {
	sig, err := s.newSignature(inTypes, outType)
	if err != nil {
		return err
	}
	return s.addKernel(exec.NewScalarKernelWithSig(sig, execFn, init))
}

// AddKernel adds the provided kernel to the list of kernels, returning
// an error if the kernel's signature collides with an existing one.
func (s *ScalarFunction) AddKernel(k exec.ScalarKernel) error {
	return s.addKernel(k)
}

// Execute dispatches on the argument types and runs the matched kernel,
// batching and allocating as directed by the exec context carried in ctx.
//
// If opts is nil, then the DefaultOptions() will be used.
func (s *ScalarFunction) Execute(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
	return execInternal(ctx, s, opts, -1, args...)
}

// A VectorFunction is a function which the output depends on the
// contents of the whole input array, such as sorting or filtering.
// Output length may differ from input length.
type VectorFunction struct {
	funcImpl[exec.VectorKernel]
}

// NewVectorFunction constructs a new VectorFunction object with the
// provided name, arity and function doc.
func NewVectorFunction(name string, arity Arity, doc FunctionDoc) *VectorFunction {
	return &VectorFunction{newFuncImpl[exec.VectorKernel](name, FuncVector, arity, doc)}
}

func (f *VectorFunction) DispatchExact(vals ...quiver.DataType) (exec.Kernel, error) {
	return f.funcImpl.DispatchExact(vals...)
}

func (f *VectorFunction) DispatchBest(vals ...quiver.DataType) (exec.Kernel, error) {
	return f.DispatchExact(vals...)
}

func (f *VectorFunction) AddNewKernel(inTypes []exec.InputType, outType exec.OutputType, execFn exec.ArrayKernelExec, init exec.KernelInitFn) error {
	sig, err := f.newSignature(inTypes, outType)
	if err != nil {
		return err
	}
	return f.addKernel(exec.NewVectorKernelWithSig(sig, execFn, init))
}

func (f *VectorFunction) AddKernel(k exec.VectorKernel) error {
	return f.addKernel(k)
}

func (f *VectorFunction) Execute(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
	return execInternal(ctx, f, opts, -1, args...)
}

// A ScalarAggFunction reduces array input to a single scalar output,
// such as a sum or a minimum.
type ScalarAggFunction struct {
	funcImpl[exec.ScalarAggKernel]
}

// NewScalarAggFunction constructs a new ScalarAggFunction object with
// the provided name, arity and function doc.
func NewScalarAggFunction(name string, arity Arity, doc FunctionDoc) *ScalarAggFunction {
	return &ScalarAggFunction{newFuncImpl[exec.ScalarAggKernel](name, FuncScalarAgg, arity, doc)}
}

func (f *ScalarAggFunction) DispatchExact(vals ...quiver.DataType) (exec.Kernel, error) {
	return f.funcImpl.DispatchExact(vals...)
}

func (f *ScalarAggFunction) DispatchBest(vals ...quiver.DataType) (exec.Kernel, error) {
	return f.DispatchExact(vals...)
}

func (f *ScalarAggFunction) AddKernel(k exec.ScalarAggKernel) error {
	return f.addKernel(k)
}

func (f *ScalarAggFunction) Execute(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
	return execInternal(ctx, f, opts, -1, args...)
}

// A HashAggFunction computes per-group summary statistics: its final
// argument is an integer array assigning a group id to each input row
// and its output has one slot per distinct group id.
type HashAggFunction struct {
	funcImpl[exec.HashAggKernel]
}

// NewHashAggFunction constructs a new HashAggFunction object with the
// provided name, arity and function doc.
func NewHashAggFunction(name string, arity Arity, doc FunctionDoc) *HashAggFunction {
	return &HashAggFunction{newFuncImpl[exec.HashAggKernel](name, FuncHashAgg, arity, doc)}
}

func (f *HashAggFunction) DispatchExact(vals ...quiver.DataType) (exec.Kernel, error) {
	return f.funcImpl.DispatchExact(vals...)
}

func (f *HashAggFunction) DispatchBest(vals ...quiver.DataType) (exec.Kernel, error) {
	return f.DispatchExact(vals...)
}

func (f *HashAggFunction) AddKernel(k exec.HashAggKernel) error {
	return f.addKernel(k)
}

func (f *HashAggFunction) Execute(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
	return execInternal(ctx, f, opts, -1, args...)
}

// MetaFunctionImpl is the signature needed for implementing a MetaFunction
// which is a function that dispatches to another function instead.
type MetaFunctionImpl func(context.Context, FunctionOptions, ...Datum) (Datum, error)

// MetaFunction is a function which contains no execution kernels of its
// own and instead delegates to other functions, such as dispatching on
// the kind of its arguments.
type MetaFunction struct {
	baseFunction
	impl MetaFunctionImpl
}

// NewMetaFunction constructs a new MetaFunction which will call the
// provided impl for dispatching with the expected arity.
//
// Will panic if impl is nil.
func NewMetaFunction(name string, arity Arity, doc FunctionDoc, impl MetaFunctionImpl) *MetaFunction {
	if impl == nil {
		panic("compute: cannot construct MetaFunction with nil impl")
	}
	return &MetaFunction{
		baseFunction: newBaseFunction(name, FuncMeta, arity, doc),
		impl:         impl,
	}
}

func (MetaFunction) NumKernels() int { return 0 }

func (m *MetaFunction) DispatchExact(...quiver.DataType) (exec.Kernel, error) {
	return nil, fmt.Errorf("%w: dispatch for metafunction", quiver.ErrNotImplemented)
}

func (m *MetaFunction) DispatchBest(vals ...quiver.DataType) (exec.Kernel, error) {
	return m.DispatchExact(vals...)
}

func (m *MetaFunction) Execute(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
	if err := m.checkArity(len(args)); err != nil {
		return nil, err
	}
	if err := checkOptions(m, opts); err != nil {
		return nil, err
	}

	if opts == nil {
		opts = m.defaultOpts
	}
	return m.impl(ctx, opts, args...)
}
