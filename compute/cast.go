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
	"sync"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/compute/internal/kernels"
	"golang.org/x/exp/slices"
)

// CastOptions controls the behavior of the "cast" function. ToType is
// the type the input is converted to, the Allow flags disable the
// individual safety checks so that lossy casts succeed.
type CastOptions = kernels.CastOptions

// DefaultCastOptions returns a new CastOptions with all safety checks
// enabled when safe is true, or all disabled otherwise. ToType must
// still be populated before use.
func DefaultCastOptions(safe bool) *CastOptions {
	if safe {
		return &CastOptions{}
	}
	return &CastOptions{
		AllowIntOverflow:   true,
		AllowFloatTruncate: true,
	}
}

// NewCastOptions is a convenience for constructing CastOptions with the
// requested target type and safety level.
func NewCastOptions(dt quiver.DataType, safe bool) *CastOptions {
	opts := DefaultCastOptions(safe)
	opts.ToType = dt
	return opts
}

// SafeCastOptions returns CastOptions to cast to the provided type
// with all safety checks enabled.
func SafeCastOptions(dt quiver.DataType) *CastOptions {
	return NewCastOptions(dt, true)
}

// UnsafeCastOptions returns CastOptions to cast to the provided type
// with the safety checks disabled.
func UnsafeCastOptions(dt quiver.DataType) *CastOptions {
	return NewCastOptions(dt, false)
}

var (
	castTable map[quiver.Type]*castFunction
	castInit  sync.Once

	castDoc = FunctionDoc{
		Summary:         "cast values to another data type",
		Description:     "Behavior when values wouldn't fit in the target type\ncan be controlled through CastOptions.",
		ArgNames:        []string{"input"},
		OptionsClass:    "CastOptions",
		OptionsRequired: true,
	}
)

// The "cast" meta-function is built at registration time, not as a
// package-level value: its body reaches into the cast-function table
// and CallFunction, which would make package initialization cyclic.
func newCastMetaFunc() *MetaFunction {
	return NewMetaFunction("cast", Unary(), castDoc,
		func(ctx context.Context, fo FunctionOptions, d ...Datum) (Datum, error) {
			castOpts, ok := fo.(*CastOptions)
			if !ok || castOpts.ToType == nil {
				return nil, fmt.Errorf("%w: cast requires that options be passed with a ToType", quiver.ErrInvalid)
			}

			inType := d[0].(ArrayLikeDatum).Type()
			if quiver.TypeEqual(inType, castOpts.ToType) {
				return NewDatum(d[0]), nil
			}

			fn, err := getCastFunction(castOpts.ToType)
			if err != nil {
				return nil, fmt.Errorf("%w from %s", err, inType)
			}
			return fn.Execute(ctx, fo, d...)
		})
}

func RegisterScalarCast(reg FunctionRegistry) {
	if err := reg.AddFunction(newCastMetaFunc(), false); err != nil {
		panic(err)
	}
}

// castFunction is a scalar function keyed by the target type. Each of
// its kernels converts one source type id, tracked in inIDs so that
// CanCast can answer without dispatching.
type castFunction struct {
	ScalarFunction

	inIDs []quiver.Type
	out   quiver.Type
}

func newCastFunction(name string, outType quiver.Type) *castFunction {
	return &castFunction{
		ScalarFunction: *NewScalarFunction(name, Unary(), EmptyFuncDoc),
		out:            outType,
	}
}

func (cf *castFunction) AddTypeCast(in quiver.Type, kernel exec.ScalarKernel) error {
	kernel.Init = exec.OptionsInit[kernels.CastState]
	if err := cf.AddKernel(kernel); err != nil {
		return err
	}
	cf.inIDs = append(cf.inIDs, in)
	return nil
}

func (cf *castFunction) DispatchExact(vals ...quiver.DataType) (exec.Kernel, error) {
	if err := cf.checkArity(len(vals)); err != nil {
		return nil, err
	}

	// both an exact-type and a same-type-id kernel may match; prefer
	// the exact one, otherwise any match will do
	var fallback *exec.ScalarKernel
	for i := range cf.kernels {
		k := &cf.kernels[i]
		if !k.Signature.MatchesInputs(vals) {
			continue
		}
		if k.Signature.InputTypes[0].Kind == exec.InputExact {
			return k, nil
		}
		if fallback == nil {
			fallback = k
		}
	}

	if fallback == nil {
		return nil, fmt.Errorf("%w: unsupported cast from %s to %s using function %s",
			quiver.ErrNotImplemented, vals[0], cf.out, cf.name)
	}
	return fallback, nil
}

func (cf *castFunction) DispatchBest(vals ...quiver.DataType) (exec.Kernel, error) {
	return cf.DispatchExact(vals...)
}

func (cf *castFunction) Execute(ctx context.Context, opts FunctionOptions, args ...Datum) (Datum, error) {
	return execInternal(ctx, cf, opts, -1, args...)
}

// castFromKernels builds a castFunction with one type cast per kernel,
// keyed by each kernel's first input type id.
func castFromKernels(name string, ty quiver.Type, kns []exec.ScalarKernel) *castFunction {
	fn := newCastFunction(name, ty)
	for _, k := range kns {
		if err := fn.AddTypeCast(k.Signature.InputTypes[0].MatchID(), k); err != nil {
			panic(err)
		}
	}
	return fn
}

func initCastTable() {
	castTable = make(map[quiver.Type]*castFunction)
	for _, f := range getNumericCasts() {
		castTable[f.out] = f
	}
	for _, f := range getBinaryLikeCasts() {
		castTable[f.out] = f
	}
}

func getCastFunction(to quiver.DataType) (*castFunction, error) {
	castInit.Do(initCastTable)

	if fn, ok := castTable[to.ID()]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: unsupported cast to %s", quiver.ErrNotImplemented, to)
}

func getNumericCasts() []*castFunction {
	return []*castFunction{
		castFromKernels("cast_int8", quiver.INT8, kernels.GetCastToInteger[int8](quiver.PrimitiveTypes.Int8)),
		castFromKernels("cast_int16", quiver.INT16, kernels.GetCastToInteger[int16](quiver.PrimitiveTypes.Int16)),
		castFromKernels("cast_int32", quiver.INT32, kernels.GetCastToInteger[int32](quiver.PrimitiveTypes.Int32)),
		castFromKernels("cast_int64", quiver.INT64, kernels.GetCastToInteger[int64](quiver.PrimitiveTypes.Int64)),
		castFromKernels("cast_uint8", quiver.UINT8, kernels.GetCastToInteger[uint8](quiver.PrimitiveTypes.Uint8)),
		castFromKernels("cast_uint16", quiver.UINT16, kernels.GetCastToInteger[uint16](quiver.PrimitiveTypes.Uint16)),
		castFromKernels("cast_uint32", quiver.UINT32, kernels.GetCastToInteger[uint32](quiver.PrimitiveTypes.Uint32)),
		castFromKernels("cast_uint64", quiver.UINT64, kernels.GetCastToInteger[uint64](quiver.PrimitiveTypes.Uint64)),
		castFromKernels("cast_float", quiver.FLOAT32, kernels.GetCastToFloating[float32](quiver.PrimitiveTypes.Float32)),
		castFromKernels("cast_double", quiver.FLOAT64, kernels.GetCastToFloating[float64](quiver.PrimitiveTypes.Float64)),
	}
}

func getBinaryLikeCasts() []*castFunction {
	fn := castFromKernels("cast_binary", quiver.BINARY,
		kernels.GetCommonCastKernels(quiver.BinaryTypes.Binary))

	// utf8 is valid binary as-is, so this cast is zero copy
	k := kernels.GetZeroCastKernel(quiver.STRING,
		exec.NewExactInput(quiver.BinaryTypes.String),
		exec.NewOutputType(quiver.BinaryTypes.Binary))
	if err := fn.AddTypeCast(quiver.STRING, k); err != nil {
		panic(err)
	}

	return []*castFunction{fn}
}

// CastDatum is a convenience function for casting a Datum to another type.
// It is equivalent to calling CallFunction(ctx, "cast", opts, val), and
// should work for scalar or array Datums.
func CastDatum(ctx context.Context, val Datum, opts *CastOptions) (Datum, error) {
	return CallFunction(ctx, "cast", opts, val)
}

// CastArray is a convenience function for casting an Array to another type.
func CastArray(ctx context.Context, val quiver.Array, opts *CastOptions) (quiver.Array, error) {
	d := NewDatum(val)
	defer d.Release()

	out, err := CastDatum(ctx, d, opts)
	if err != nil {
		return nil, err
	}

	defer out.Release()
	return out.(*ArrayDatum).MakeArray(), nil
}

// CastToType is a convenience function equivalent to calling
// CastArray(ctx, val, SafeCastOptions(toType)).
func CastToType(ctx context.Context, val quiver.Array, toType quiver.DataType) (quiver.Array, error) {
	return CastArray(ctx, val, SafeCastOptions(toType))
}

// CanCast returns true if there is an implemented cast from values of
// the specified type to the desired output type.
func CanCast(from, to quiver.DataType) bool {
	fn, err := getCastFunction(to)
	if err != nil {
		return false
	}
	return slices.Contains(fn.inIDs, from.ID())
}
