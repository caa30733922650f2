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
	"bytes"
	"fmt"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"golang.org/x/exp/slices"
)

type SortOrder int8

const (
	Ascending SortOrder = iota
	Descending
)

func (s SortOrder) String() string {
	if s == Descending {
		return "descending"
	}
	return "ascending"
}

type NullPlacement int8

const (
	AtStart NullPlacement = iota
	AtEnd
)

func (n NullPlacement) String() string {
	if n == AtEnd {
		return "at_end"
	}
	return "at_start"
}

type SortOptions struct {
	Direction     SortOrder     `compute:"order"`
	NullPlacement NullPlacement `compute:"null_placement"`
}

func (SortOptions) TypeName() string { return "SortOptions" }

type SortState = SortOptions

// Elements are ordered by rank before value: nulls gather at the
// configured end of the output and NaNs sit just inside them, so an
// ascending sort with nulls at the end produces
// valid values < NaN < null.
const (
	rankValid = iota
	rankNaN
	rankNull
)

func numericSortCmp[T exec.NumericTypes](values *exec.ArraySpan, opts SortState) func(a, b uint64) int {
	var (
		data     = exec.GetSpanValues[T](values, 1)
		validity = values.Buffers[0].Buf
		offset   = int(values.Offset)
		desc     = opts.Direction == Descending
		atStart  = opts.NullPlacement == AtStart
	)

	rank := func(i uint64) int {
		switch {
		case len(validity) > 0 && !bitutil.BitIsSet(validity, offset+int(i)):
			return rankNull
		case data[i] != data[i]: // NaN
			return rankNaN
		default:
			return rankValid
		}
	}

	return func(a, b uint64) int {
		ra, rb := rank(a), rank(b)
		if ra != rb {
			if atStart {
				return rb - ra
			}
			return ra - rb
		}
		if ra != rankValid {
			// both null or both NaN, the stable sort keeps input order
			return 0
		}

		var c int
		switch {
		case data[a] < data[b]:
			c = -1
		case data[b] < data[a]:
			c = 1
		}
		if desc {
			return -c
		}
		return c
	}
}

func booleanSortCmp(values *exec.ArraySpan, opts SortState) func(a, b uint64) int {
	var (
		data     = values.Buffers[1].Buf
		validity = values.Buffers[0].Buf
		offset   = int(values.Offset)
		desc     = opts.Direction == Descending
		atStart  = opts.NullPlacement == AtStart
	)

	isNull := func(i uint64) bool {
		return len(validity) > 0 && !bitutil.BitIsSet(validity, offset+int(i))
	}
	value := func(i uint64) int {
		if bitutil.BitIsSet(data, offset+int(i)) {
			return 1
		}
		return 0
	}

	return func(a, b uint64) int {
		na, nb := isNull(a), isNull(b)
		switch {
		case na && nb:
			return 0
		case na:
			if atStart {
				return -1
			}
			return 1
		case nb:
			if atStart {
				return 1
			}
			return -1
		}

		// false sorts before true
		c := value(a) - value(b)
		if desc {
			return -c
		}
		return c
	}
}

func binarySortCmp(values *exec.ArraySpan, opts SortState) func(a, b uint64) int {
	var (
		offsets  = exec.GetSpanOffsets(values, 1)
		data     = values.Buffers[2].Buf
		validity = values.Buffers[0].Buf
		offset   = int(values.Offset)
		desc     = opts.Direction == Descending
		atStart  = opts.NullPlacement == AtStart
	)

	isNull := func(i uint64) bool {
		return len(validity) > 0 && !bitutil.BitIsSet(validity, offset+int(i))
	}
	value := func(i uint64) []byte {
		return data[offsets[i]:offsets[i+1]]
	}

	return func(a, b uint64) int {
		na, nb := isNull(a), isNull(b)
		switch {
		case na && nb:
			return 0
		case na:
			if atStart {
				return -1
			}
			return 1
		case nb:
			if atStart {
				return 1
			}
			return -1
		}

		c := bytes.Compare(value(a), value(b))
		if desc {
			return -c
		}
		return c
	}
}

func sortComparator(values *exec.ArraySpan, opts SortState) (func(a, b uint64) int, error) {
	switch values.Type.ID() {
	case quiver.NULL:
		// every element is null, the identity permutation is already sorted
		return func(a, b uint64) int { return 0 }, nil
	case quiver.BOOL:
		return booleanSortCmp(values, opts), nil
	case quiver.INT8:
		return numericSortCmp[int8](values, opts), nil
	case quiver.UINT8:
		return numericSortCmp[uint8](values, opts), nil
	case quiver.INT16:
		return numericSortCmp[int16](values, opts), nil
	case quiver.UINT16:
		return numericSortCmp[uint16](values, opts), nil
	case quiver.INT32:
		return numericSortCmp[int32](values, opts), nil
	case quiver.UINT32:
		return numericSortCmp[uint32](values, opts), nil
	case quiver.INT64:
		return numericSortCmp[int64](values, opts), nil
	case quiver.UINT64:
		return numericSortCmp[uint64](values, opts), nil
	case quiver.FLOAT32:
		return numericSortCmp[float32](values, opts), nil
	case quiver.FLOAT64:
		return numericSortCmp[float64](values, opts), nil
	case quiver.STRING, quiver.BINARY:
		return binarySortCmp(values, opts), nil
	}
	return nil, fmt.Errorf("%w: unsupported type for sort_indices: %s", quiver.ErrNotImplemented, values.Type)
}

// sortIndicesExec writes the stable permutation which would sort the
// input array into a fresh uint64 output buffer. The permutation is
// computed with a comparator resolved once per call from the input
// type and the sort options.
func sortIndicesExec(ctx *exec.KernelCtx, batch *exec.ExecSpan, out *exec.ExecResult) error {
	values := &batch.Values[0].Array
	opts, ok := ctx.State.(SortState)
	if !ok {
		return fmt.Errorf("%w: bad initialization of sort state", quiver.ErrInvalid)
	}

	out.Type = quiver.PrimitiveTypes.Uint64
	out.Len = values.Len
	out.Nulls = 0
	out.Buffers[1].WrapBuffer(ctx.Allocate(int(values.Len) * quiver.Uint64SizeBytes))

	indices := exec.GetSpanValues[uint64](out, 1)
	for i := range indices {
		indices[i] = uint64(i)
	}

	cmp, err := sortComparator(values, opts)
	if err != nil {
		return err
	}
	slices.SortStableFunc(indices, cmp)
	return nil
}

func GetVectorSortingKernels() []exec.VectorKernel {
	outType := exec.NewOutputType(quiver.PrimitiveTypes.Uint64)
	ks := make([]exec.VectorKernel, 0, len(primitiveTypes))
	for _, ty := range primitiveTypes {
		k := exec.NewVectorKernel([]exec.InputType{exec.NewExactInput(ty)}, outType,
			sortIndicesExec, exec.OptionsInit[SortState])
		k.CanExecuteChunkWise = false
		ks = append(ks, k)
	}
	return ks
}
