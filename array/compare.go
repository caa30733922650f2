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

package array

import (
	"fmt"
	"math"

	"github.com/quiverdata/quiver"
)

// Equal reports whether the two provided arrays are equal.
func Equal(left, right quiver.Array) bool {
	if !baseArrayEqual(left, right) {
		return false
	}
	if left.Len() == 0 || left.NullN() == left.Len() {
		return true
	}

	// types, lengths and validity bitmaps already match, so only the
	// values at the valid slots remain to be compared
	switch l := left.(type) {
	case *Null:
		return true
	case *Boolean:
		return arrayEqualBoolean(l, right.(*Boolean))
	case *Int8:
		return arrayEqualNumber(l, right.(*Int8))
	case *Uint8:
		return arrayEqualNumber(l, right.(*Uint8))
	case *Int16:
		return arrayEqualNumber(l, right.(*Int16))
	case *Uint16:
		return arrayEqualNumber(l, right.(*Uint16))
	case *Int32:
		return arrayEqualNumber(l, right.(*Int32))
	case *Uint32:
		return arrayEqualNumber(l, right.(*Uint32))
	case *Int64:
		return arrayEqualNumber(l, right.(*Int64))
	case *Uint64:
		return arrayEqualNumber(l, right.(*Uint64))
	case *Float32:
		return arrayEqualNumber(l, right.(*Float32))
	case *Float64:
		return arrayEqualNumber(l, right.(*Float64))
	case *String:
		return arrayEqualString(l, right.(*String))
	case *Binary:
		return arrayEqualBinary(l, right.(*Binary))
	case *Dictionary:
		return arrayEqualDict(l, right.(*Dictionary))
	default:
		panic(fmt.Errorf("quiver/array: unknown array type %T", l))
	}
}

// SliceEqual reports whether slices left[lbeg:lend] and right[rbeg:rend] are equal.
func SliceEqual(left quiver.Array, lbeg, lend int64, right quiver.Array, rbeg, rend int64) bool {
	l, r := NewSlice(left, lbeg, lend), NewSlice(right, rbeg, rend)
	defer l.Release()
	defer r.Release()

	return Equal(l, r)
}

const defaultAbsoluteTolerance = 1e-5

type equalOption struct {
	absTol    float64
	equalNaNs bool
}

func (eq equalOption) floatsEqual(f1, f2 float64) bool {
	if eq.equalNaNs && math.IsNaN(f1) && math.IsNaN(f2) {
		return true
	}
	return math.Abs(f1-f2) <= eq.absTol
}

func newEqualOption(opts ...EqualOption) equalOption {
	eq := equalOption{absTol: defaultAbsoluteTolerance}
	for _, opt := range opts {
		opt(&eq)
	}
	return eq
}

// EqualOption is a functional option type used to configure how Arrays are compared
// (such as approximate comparison of floats, defining a tolerance to use, etc)
type EqualOption func(*equalOption)

// WithNaNsEqual configures the comparison functions so that NaNs are considered equal.
func WithNaNsEqual(v bool) EqualOption {
	return func(o *equalOption) { o.equalNaNs = v }
}

// WithAbsTolerance configures the comparison functions so that 2 floating point values
// v1 and v2 are considered equal if |v1-v2| <= atol.
func WithAbsTolerance(atol float64) EqualOption {
	return func(o *equalOption) { o.absTol = atol }
}

// ApproxEqual reports whether the two provided arrays are approximately equal.
// For non-floating point arrays, it is equivalent to Equal.
func ApproxEqual(left, right quiver.Array, opts ...EqualOption) bool {
	return arrayApproxEqual(left, right, newEqualOption(opts...))
}

// SliceApproxEqual reports whether slices left[lbeg:lend] and right[rbeg:rend]
// are approximately equal.
func SliceApproxEqual(left quiver.Array, lbeg, lend int64, right quiver.Array, rbeg, rend int64, opts ...EqualOption) bool {
	l, r := NewSlice(left, lbeg, lend), NewSlice(right, rbeg, rend)
	defer l.Release()
	defer r.Release()

	return arrayApproxEqual(l, r, newEqualOption(opts...))
}

func arrayApproxEqual(left, right quiver.Array, opt equalOption) bool {
	if !baseArrayEqual(left, right) {
		return false
	}
	if left.Len() == 0 || left.NullN() == left.Len() {
		return true
	}

	switch l := left.(type) {
	case *Float32:
		return arrayApproxEqualFloat(l, right.(*Float32), opt)
	case *Float64:
		return arrayApproxEqualFloat(l, right.(*Float64), opt)
	case *Dictionary:
		r := right.(*Dictionary)
		return arrayApproxEqual(l.Dictionary(), r.Dictionary(), opt) &&
			arrayApproxEqual(l.Indices(), r.Indices(), opt)
	default:
		return Equal(left, right)
	}
}

func arrayApproxEqualFloat[T float32 | float64](left, right *Number[T], opt equalOption) bool {
	for i := 0; i < left.Len(); i++ {
		if left.IsNull(i) {
			continue
		}
		if !opt.floatsEqual(float64(left.Value(i)), float64(right.Value(i))) {
			return false
		}
	}
	return true
}

func baseArrayEqual(left, right quiver.Array) bool {
	if left.Len() != right.Len() || left.NullN() != right.NullN() {
		return false
	}
	if !quiver.TypeEqual(left.DataType(), right.DataType()) {
		return false
	}
	// the null counts match, so the bitmaps must match slot for slot
	for i := 0; i < left.Len(); i++ {
		if left.IsNull(i) != right.IsNull(i) {
			return false
		}
	}
	return true
}
