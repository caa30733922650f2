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

package compute_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/array"
	"github.com/quiverdata/quiver/compute"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/testing/gen"
	"github.com/quiverdata/quiver/memory"
	"github.com/quiverdata/quiver/scalar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ScalarAggSuite struct {
	suite.Suite

	mem *memory.CheckedAllocator
	ctx context.Context
}

func (s *ScalarAggSuite) SetupTest() {
	s.mem = memory.NewCheckedAllocator(memory.DefaultAllocator)
	s.ctx = compute.WithAllocator(context.Background(), s.mem)
}

func (s *ScalarAggSuite) TearDownTest() {
	s.mem.AssertSize(s.T(), 0)
}

func (s *ScalarAggSuite) getArr(dt quiver.DataType, str string) quiver.Array {
	arr, _, err := array.FromJSON(s.mem, dt, strings.NewReader(str), array.WithUseNumber())
	s.Require().NoError(err)
	return arr
}

func (s *ScalarAggSuite) assertAgg(expected scalar.Scalar, actual compute.Datum) {
	s.Require().Equal(compute.KindScalar, actual.Kind())
	got := actual.(*compute.ScalarDatum).Value
	s.Truef(scalar.Equals(expected, got), "expected: %s\ngot: %s", expected, got)
}

// sumScalar builds the scalar a sum over dt is expected to produce,
// widened to the 64-bit type of dt's sign class.
func sumScalar(dt quiver.DataType, v int64) scalar.Scalar {
	switch {
	case quiver.IsUnsignedInteger(dt.ID()):
		return scalar.NewUint64Scalar(uint64(v))
	case quiver.IsSignedInteger(dt.ID()):
		return scalar.NewInt64Scalar(v)
	default:
		return scalar.NewFloat64Scalar(float64(v))
	}
}

func (s *ScalarAggSuite) TestSum() {
	for _, dt := range numericTypes {
		s.Run(dt.String(), func() {
			arr := s.getArr(dt, `[1, 2, null, 4]`)
			defer arr.Release()
			in := compute.NewDatum(arr)
			defer in.Release()

			res, err := compute.Sum(s.ctx, in)
			s.Require().NoError(err)
			defer res.Release()
			s.assertAgg(sumScalar(dt, 7), res)

			// with no valid values the sum is a valid zero
			empty := s.getArr(dt, `[]`)
			defer empty.Release()
			emptyDatum := compute.NewDatum(empty)
			defer emptyDatum.Release()

			res, err = compute.Sum(s.ctx, emptyDatum)
			s.Require().NoError(err)
			defer res.Release()
			s.assertAgg(sumScalar(dt, 0), res)

			nulls := s.getArr(dt, `[null, null, null]`)
			defer nulls.Release()
			nullsDatum := compute.NewDatum(nulls)
			defer nullsDatum.Release()

			res, err = compute.Sum(s.ctx, nullsDatum)
			s.Require().NoError(err)
			defer res.Release()
			s.assertAgg(sumScalar(dt, 0), res)
		})
	}
}

func (s *ScalarAggSuite) TestSumUint64Boundary() {
	arr := s.getArr(quiver.PrimitiveTypes.Uint64, `[9223372036854775808, 9223372036854775807, null]`)
	defer arr.Release()
	in := compute.NewDatum(arr)
	defer in.Release()

	res, err := compute.Sum(s.ctx, in)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.NewUint64Scalar(math.MaxUint64), res)
}

func (s *ScalarAggSuite) TestSumFloat() {
	arr := s.getArr(quiver.PrimitiveTypes.Float64, `[1.5, 2.25, null, 0.25]`)
	defer arr.Release()
	in := compute.NewDatum(arr)
	defer in.Release()

	res, err := compute.Sum(s.ctx, in)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.NewFloat64Scalar(4), res)
}

func (s *ScalarAggSuite) TestSumScalarInput() {
	in := compute.NewDatum(scalar.NewInt32Scalar(5))
	defer in.Release()

	res, err := compute.Sum(s.ctx, in)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.NewInt64Scalar(5), res)

	null := compute.NewDatum(scalar.MakeNullScalar(quiver.PrimitiveTypes.Int32))
	defer null.Release()

	res, err = compute.Sum(s.ctx, null)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.NewInt64Scalar(0), res)
}

func (s *ScalarAggSuite) TestSumUnsupported() {
	arr := s.getArr(quiver.BinaryTypes.String, `["a", "b"]`)
	defer arr.Release()
	in := compute.NewDatum(arr)
	defer in.Release()

	_, err := compute.Sum(s.ctx, in)
	s.ErrorIs(err, quiver.ErrNoMatchingKernel)
}

func (s *ScalarAggSuite) TestMean() {
	arr := s.getArr(quiver.PrimitiveTypes.Int32, `[1, 2, 3, null]`)
	defer arr.Release()
	in := compute.NewDatum(arr)
	defer in.Release()

	res, err := compute.Mean(s.ctx, in)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.NewFloat64Scalar(2), res)

	fl := s.getArr(quiver.PrimitiveTypes.Float64, `[1, 2]`)
	defer fl.Release()
	flDatum := compute.NewDatum(fl)
	defer flDatum.Release()

	res, err = compute.Mean(s.ctx, flDatum)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.NewFloat64Scalar(1.5), res)

	// the mean of no valid values is null, not NaN
	nulls := s.getArr(quiver.PrimitiveTypes.Int32, `[null, null]`)
	defer nulls.Release()
	nullsDatum := compute.NewDatum(nulls)
	defer nullsDatum.Release()

	res, err = compute.Mean(s.ctx, nullsDatum)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.MakeNullScalar(quiver.PrimitiveTypes.Float64), res)
}

func (s *ScalarAggSuite) TestMinMaxFunctions() {
	arr := s.getArr(quiver.PrimitiveTypes.Int32, `[5, null, -3, 7]`)
	defer arr.Release()
	in := compute.NewDatum(arr)
	defer in.Release()

	res, err := compute.Min(s.ctx, in)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.NewInt32Scalar(-3), res)

	res, err = compute.Max(s.ctx, in)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.NewInt32Scalar(7), res)

	fl := s.getArr(quiver.PrimitiveTypes.Float64, `[0.5, -1.25, null]`)
	defer fl.Release()
	flDatum := compute.NewDatum(fl)
	defer flDatum.Release()

	res, err = compute.Min(s.ctx, flDatum)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.NewFloat64Scalar(-1.25), res)

	// min and max of no valid values are null scalars of the input type
	empty := s.getArr(quiver.PrimitiveTypes.Int32, `[]`)
	defer empty.Release()
	emptyDatum := compute.NewDatum(empty)
	defer emptyDatum.Release()

	res, err = compute.Min(s.ctx, emptyDatum)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.MakeNullScalar(quiver.PrimitiveTypes.Int32), res)

	res, err = compute.Max(s.ctx, emptyDatum)
	s.Require().NoError(err)
	defer res.Release()
	s.assertAgg(scalar.MakeNullScalar(quiver.PrimitiveTypes.Int32), res)
}

func (s *ScalarAggSuite) TestCount() {
	arr := s.getArr(quiver.PrimitiveTypes.Int32, `[1, null, 3]`)
	defer arr.Release()
	in := compute.NewDatum(arr)
	defer in.Release()

	tests := []struct {
		name     string
		mode     compute.CountMode
		expected int64
	}{
		{"only valid", compute.CountOnlyValid, 2},
		{"only null", compute.CountOnlyNull, 1},
		{"all", compute.CountAll, 3},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			res, err := compute.Count(s.ctx, compute.CountOptions{Mode: tt.mode}, in)
			s.Require().NoError(err)
			defer res.Release()
			s.assertAgg(scalar.NewInt64Scalar(tt.expected), res)
		})
	}

	s.Run("default options", func() {
		res, err := compute.CallFunction(s.ctx, "count", nil, in)
		s.Require().NoError(err)
		defer res.Release()
		s.assertAgg(scalar.NewInt64Scalar(2), res)
	})

	s.Run("invalid mode", func() {
		_, err := compute.Count(s.ctx, compute.CountOptions{Mode: 99}, in)
		s.ErrorIs(err, quiver.ErrInvalidOption)
	})

	s.Run("strings", func() {
		strArr := s.getArr(quiver.BinaryTypes.String, `["a", null, "b"]`)
		defer strArr.Release()
		strDatum := compute.NewDatum(strArr)
		defer strDatum.Release()

		res, err := compute.Count(s.ctx, compute.CountOptions{Mode: compute.CountOnlyValid}, strDatum)
		s.Require().NoError(err)
		defer res.Release()
		s.assertAgg(scalar.NewInt64Scalar(2), res)
	})

	s.Run("null type", func() {
		nullArr := array.NewNull(3)
		defer nullArr.Release()
		nullDatum := compute.NewDatum(nullArr)
		defer nullDatum.Release()

		res, err := compute.Count(s.ctx, compute.CountOptions{Mode: compute.CountOnlyValid}, nullDatum)
		s.Require().NoError(err)
		defer res.Release()
		s.assertAgg(scalar.NewInt64Scalar(0), res)

		res, err = compute.Count(s.ctx, compute.CountOptions{Mode: compute.CountOnlyNull}, nullDatum)
		s.Require().NoError(err)
		defer res.Release()
		s.assertAgg(scalar.NewInt64Scalar(3), res)
	})
}

// TestChunkedExecution splits the input into small chunks so every
// aggregate goes through the consume-per-chunk-then-merge path, which
// must be indistinguishable from consuming the whole array at once.
func (s *ScalarAggSuite) TestChunkedExecution() {
	arr := s.getArr(quiver.PrimitiveTypes.Int32, `[5, 1, null, 7, null, -2, 9, 4, null, 0, 3]`)
	defer arr.Release()
	in := compute.NewDatum(arr)
	defer in.Release()

	ectx := compute.DefaultExecCtx()
	ectx.ChunkSize = 3
	ectx.NumParallel = 4
	chunked := compute.SetExecCtx(s.ctx, ectx)

	for _, fn := range []string{"sum", "mean", "min", "max", "count"} {
		s.Run(fn, func() {
			whole, err := compute.CallFunction(s.ctx, fn, nil, in)
			s.Require().NoError(err)
			defer whole.Release()

			merged, err := compute.CallFunction(chunked, fn, nil, in)
			s.Require().NoError(err)
			defer merged.Release()

			requireDatumsEqual(s.T(), whole, merged)
		})
	}
}

func TestScalarAggregates(t *testing.T) {
	suite.Run(t, new(ScalarAggSuite))
}

func TestMinMaxSinglePass(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	ctx := compute.WithAllocator(context.Background(), mem)

	arr, _, err := array.FromJSON(mem, quiver.PrimitiveTypes.Int32, strings.NewReader(`[5, null, -3, 7]`))
	require.NoError(t, err)
	defer arr.Release()
	in := compute.NewDatum(arr)
	defer in.Release()

	res, err := compute.MinMax(ctx, in)
	require.NoError(t, err)
	assert.True(t, scalar.Equals(scalar.NewInt32Scalar(-3), res.Min), "min: %s", res.Min)
	assert.True(t, scalar.Equals(scalar.NewInt32Scalar(7), res.Max), "max: %s", res.Max)

	t.Run("empty", func(t *testing.T) {
		empty, _, err := array.FromJSON(mem, quiver.PrimitiveTypes.Int32, strings.NewReader(`[]`))
		require.NoError(t, err)
		defer empty.Release()
		emptyDatum := compute.NewDatum(empty)
		defer emptyDatum.Release()

		res, err := compute.MinMax(ctx, emptyDatum)
		require.NoError(t, err)
		assert.True(t, scalar.Equals(scalar.MakeNullScalar(quiver.PrimitiveTypes.Int32), res.Min))
		assert.True(t, scalar.Equals(scalar.MakeNullScalar(quiver.PrimitiveTypes.Int32), res.Max))
	})

	t.Run("scalar input", func(t *testing.T) {
		sc := compute.NewDatum(scalar.NewInt64Scalar(42))
		defer sc.Release()

		res, err := compute.MinMax(ctx, sc)
		require.NoError(t, err)
		assert.True(t, scalar.Equals(scalar.NewInt64Scalar(42), res.Min))
		assert.True(t, scalar.Equals(scalar.NewInt64Scalar(42), res.Max))
	})

	t.Run("unsupported type", func(t *testing.T) {
		strArr, _, err := array.FromJSON(mem, quiver.BinaryTypes.String, strings.NewReader(`["a"]`))
		require.NoError(t, err)
		defer strArr.Release()
		strDatum := compute.NewDatum(strArr)
		defer strDatum.Release()

		_, err = compute.MinMax(ctx, strDatum)
		assert.ErrorIs(t, err, quiver.ErrNotImplemented)
	})

	t.Run("agrees with min and max", func(t *testing.T) {
		rng := gen.NewRandomArrayGenerator(randomSeed, mem)
		vals := rng.Numeric(quiver.INT64, 512, -1000, 1000, 0.1)
		defer vals.Release()
		valsDatum := compute.NewDatum(vals)
		defer valsDatum.Release()

		res, err := compute.MinMax(ctx, valsDatum)
		require.NoError(t, err)

		mn, err := compute.Min(ctx, valsDatum)
		require.NoError(t, err)
		defer mn.Release()
		mx, err := compute.Max(ctx, valsDatum)
		require.NoError(t, err)
		defer mx.Release()

		assert.True(t, scalar.Equals(mn.(*compute.ScalarDatum).Value, res.Min))
		assert.True(t, scalar.Equals(mx.(*compute.ScalarDatum).Value, res.Max))
	})
}

type GroupedAggSuite struct {
	suite.Suite

	mem *memory.CheckedAllocator
	ctx context.Context
}

func (g *GroupedAggSuite) SetupTest() {
	g.mem = memory.NewCheckedAllocator(memory.DefaultAllocator)
	g.ctx = compute.WithAllocator(context.Background(), g.mem)
}

func (g *GroupedAggSuite) TearDownTest() {
	g.mem.AssertSize(g.T(), 0)
}

func (g *GroupedAggSuite) getArr(dt quiver.DataType, str string) quiver.Array {
	arr, _, err := array.FromJSON(g.mem, dt, strings.NewReader(str), array.WithUseNumber())
	g.Require().NoError(err)
	return arr
}

func (g *GroupedAggSuite) checkDatum(expected quiver.Array, actual compute.Datum) {
	g.Require().Equal(compute.KindArray, actual.Kind())
	arr := actual.(*compute.ArrayDatum).MakeArray()
	defer arr.Release()
	assertArraysEqual(g.T(), expected, arr)
}

func (g *GroupedAggSuite) datums(values, ids quiver.Array) (compute.Datum, compute.Datum) {
	return compute.NewDatum(values), compute.NewDatum(ids)
}

func (g *GroupedAggSuite) TestSum() {
	values := g.getArr(quiver.PrimitiveTypes.Int64, `[1, 2, 3, 4]`)
	defer values.Release()

	for _, idType := range integerTypes {
		g.Run("ids="+idType.Name(), func() {
			ids := g.getArr(idType, `[1, 2, 1, 2]`)
			defer ids.Release()
			valuesDatum, idsDatum := g.datums(values, ids)
			defer valuesDatum.Release()
			defer idsDatum.Release()

			groups, sums, err := compute.GroupedSum(g.ctx, valuesDatum, idsDatum)
			g.Require().NoError(err)
			defer groups.Release()
			defer sums.Release()

			expGroups := g.getArr(idType, `[1, 2]`)
			defer expGroups.Release()
			expSums := g.getArr(quiver.PrimitiveTypes.Int64, `[4, 6]`)
			defer expSums.Release()

			g.checkDatum(expGroups, groups)
			g.checkDatum(expSums, sums)
		})
	}
}

func (g *GroupedAggSuite) TestSumWidening() {
	ids := g.getArr(quiver.PrimitiveTypes.Int32, `[0, 1, 0]`)
	defer ids.Release()
	idsDatum := compute.NewDatum(ids)
	defer idsDatum.Release()

	g.Run("unsigned", func() {
		values := g.getArr(quiver.PrimitiveTypes.Uint16, `[60000, 2, 60000]`)
		defer values.Release()
		valuesDatum := compute.NewDatum(values)
		defer valuesDatum.Release()

		groups, sums, err := compute.GroupedSum(g.ctx, valuesDatum, idsDatum)
		g.Require().NoError(err)
		defer groups.Release()
		defer sums.Release()

		expSums := g.getArr(quiver.PrimitiveTypes.Uint64, `[120000, 2]`)
		defer expSums.Release()
		g.checkDatum(expSums, sums)
	})

	g.Run("float", func() {
		values := g.getArr(quiver.PrimitiveTypes.Float32, `[0.5, 2, 0.25]`)
		defer values.Release()
		valuesDatum := compute.NewDatum(values)
		defer valuesDatum.Release()

		groups, sums, err := compute.GroupedSum(g.ctx, valuesDatum, idsDatum)
		g.Require().NoError(err)
		defer groups.Release()
		defer sums.Release()

		expSums := g.getArr(quiver.PrimitiveTypes.Float64, `[0.75, 2]`)
		defer expSums.Release()
		g.checkDatum(expSums, sums)
	})
}

func (g *GroupedAggSuite) TestFirstAppearanceOrder() {
	values := g.getArr(quiver.PrimitiveTypes.Int64, `[1, 2, 3, 4, 5]`)
	defer values.Release()
	ids := g.getArr(quiver.PrimitiveTypes.Int64, `[5, 3, 5, 3, 9]`)
	defer ids.Release()
	valuesDatum, idsDatum := g.datums(values, ids)
	defer valuesDatum.Release()
	defer idsDatum.Release()

	groups, sums, err := compute.GroupedSum(g.ctx, valuesDatum, idsDatum)
	g.Require().NoError(err)
	defer groups.Release()
	defer sums.Release()

	expGroups := g.getArr(quiver.PrimitiveTypes.Int64, `[5, 3, 9]`)
	defer expGroups.Release()
	expSums := g.getArr(quiver.PrimitiveTypes.Int64, `[4, 6, 5]`)
	defer expSums.Release()

	g.checkDatum(expGroups, groups)
	g.checkDatum(expSums, sums)
}

func (g *GroupedAggSuite) TestNullGroupIDs() {
	// rows with a null group id belong to no group at all
	values := g.getArr(quiver.PrimitiveTypes.Int64, `[10, 20, 30]`)
	defer values.Release()
	ids := g.getArr(quiver.PrimitiveTypes.Int32, `[1, null, 1]`)
	defer ids.Release()
	valuesDatum, idsDatum := g.datums(values, ids)
	defer valuesDatum.Release()
	defer idsDatum.Release()

	groups, sums, err := compute.GroupedSum(g.ctx, valuesDatum, idsDatum)
	g.Require().NoError(err)
	defer groups.Release()
	defer sums.Release()

	expGroups := g.getArr(quiver.PrimitiveTypes.Int32, `[1]`)
	defer expGroups.Release()
	expSums := g.getArr(quiver.PrimitiveTypes.Int64, `[40]`)
	defer expSums.Release()

	g.checkDatum(expGroups, groups)
	g.checkDatum(expSums, sums)

	g.Run("all ids null", func() {
		nullIDs := g.getArr(quiver.PrimitiveTypes.Int32, `[null, null, null]`)
		defer nullIDs.Release()
		nullIDsDatum := compute.NewDatum(nullIDs)
		defer nullIDsDatum.Release()

		groups, sums, err := compute.GroupedSum(g.ctx, valuesDatum, nullIDsDatum)
		g.Require().NoError(err)
		defer groups.Release()
		defer sums.Release()

		expGroups := g.getArr(quiver.PrimitiveTypes.Int32, `[]`)
		defer expGroups.Release()
		expSums := g.getArr(quiver.PrimitiveTypes.Int64, `[]`)
		defer expSums.Release()

		g.checkDatum(expGroups, groups)
		g.checkDatum(expSums, sums)
	})
}

func (g *GroupedAggSuite) TestNullValues() {
	values := g.getArr(quiver.PrimitiveTypes.Int64, `[1, null, 3]`)
	defer values.Release()
	ids := g.getArr(quiver.PrimitiveTypes.Int32, `[7, 7, 7]`)
	defer ids.Release()
	valuesDatum, idsDatum := g.datums(values, ids)
	defer valuesDatum.Release()
	defer idsDatum.Release()

	groups, sums, err := compute.GroupedSum(g.ctx, valuesDatum, idsDatum)
	g.Require().NoError(err)
	defer groups.Release()
	defer sums.Release()

	expGroups := g.getArr(quiver.PrimitiveTypes.Int32, `[7]`)
	defer expGroups.Release()
	expSums := g.getArr(quiver.PrimitiveTypes.Int64, `[4]`)
	defer expSums.Release()

	g.checkDatum(expGroups, groups)
	g.checkDatum(expSums, sums)

	g.Run("group of only nulls sums to zero", func() {
		vals := g.getArr(quiver.PrimitiveTypes.Int64, `[null, 5]`)
		defer vals.Release()
		splitIDs := g.getArr(quiver.PrimitiveTypes.Int32, `[1, 2]`)
		defer splitIDs.Release()
		valsDatum, splitDatum := g.datums(vals, splitIDs)
		defer valsDatum.Release()
		defer splitDatum.Release()

		groups, sums, err := compute.GroupedSum(g.ctx, valsDatum, splitDatum)
		g.Require().NoError(err)
		defer groups.Release()
		defer sums.Release()

		expSums := g.getArr(quiver.PrimitiveTypes.Int64, `[0, 5]`)
		defer expSums.Release()
		g.checkDatum(expSums, sums)
	})
}

func (g *GroupedAggSuite) TestMean() {
	values := g.getArr(quiver.PrimitiveTypes.Int32, `[1, 2, 3, null]`)
	defer values.Release()
	ids := g.getArr(quiver.PrimitiveTypes.Int32, `[0, 0, 1, 1]`)
	defer ids.Release()
	valuesDatum, idsDatum := g.datums(values, ids)
	defer valuesDatum.Release()
	defer idsDatum.Release()

	groups, means, err := compute.GroupedMean(g.ctx, valuesDatum, idsDatum)
	g.Require().NoError(err)
	defer groups.Release()
	defer means.Release()

	expGroups := g.getArr(quiver.PrimitiveTypes.Int32, `[0, 1]`)
	defer expGroups.Release()
	expMeans := g.getArr(quiver.PrimitiveTypes.Float64, `[1.5, 3]`)
	defer expMeans.Release()

	g.checkDatum(expGroups, groups)
	g.checkDatum(expMeans, means)

	g.Run("group of only nulls is null", func() {
		vals := g.getArr(quiver.PrimitiveTypes.Int32, `[null, 4]`)
		defer vals.Release()
		splitIDs := g.getArr(quiver.PrimitiveTypes.Int32, `[5, 6]`)
		defer splitIDs.Release()
		valsDatum, splitDatum := g.datums(vals, splitIDs)
		defer valsDatum.Release()
		defer splitDatum.Release()

		groups, means, err := compute.GroupedMean(g.ctx, valsDatum, splitDatum)
		g.Require().NoError(err)
		defer groups.Release()
		defer means.Release()

		expMeans := g.getArr(quiver.PrimitiveTypes.Float64, `[null, 4]`)
		defer expMeans.Release()
		g.checkDatum(expMeans, means)
	})
}

func (g *GroupedAggSuite) TestMinMax() {
	values := g.getArr(quiver.PrimitiveTypes.Int32, `[5, -3, null, 7, 2]`)
	defer values.Release()
	ids := g.getArr(quiver.PrimitiveTypes.Int32, `[1, 1, 2, 2, 1]`)
	defer ids.Release()
	valuesDatum, idsDatum := g.datums(values, ids)
	defer valuesDatum.Release()
	defer idsDatum.Release()

	groups, mins, err := compute.GroupedMin(g.ctx, valuesDatum, idsDatum)
	g.Require().NoError(err)
	defer groups.Release()
	defer mins.Release()

	expGroups := g.getArr(quiver.PrimitiveTypes.Int32, `[1, 2]`)
	defer expGroups.Release()
	expMins := g.getArr(quiver.PrimitiveTypes.Int32, `[-3, 7]`)
	defer expMins.Release()
	g.checkDatum(expGroups, groups)
	g.checkDatum(expMins, mins)

	groups2, maxes, err := compute.GroupedMax(g.ctx, valuesDatum, idsDatum)
	g.Require().NoError(err)
	defer groups2.Release()
	defer maxes.Release()

	expMaxes := g.getArr(quiver.PrimitiveTypes.Int32, `[5, 7]`)
	defer expMaxes.Release()
	g.checkDatum(expGroups, groups2)
	g.checkDatum(expMaxes, maxes)

	g.Run("group of only nulls is null", func() {
		vals := g.getArr(quiver.PrimitiveTypes.Int32, `[null, 9]`)
		defer vals.Release()
		splitIDs := g.getArr(quiver.PrimitiveTypes.Int32, `[1, 2]`)
		defer splitIDs.Release()
		valsDatum, splitDatum := g.datums(vals, splitIDs)
		defer valsDatum.Release()
		defer splitDatum.Release()

		groups, mins, err := compute.GroupedMin(g.ctx, valsDatum, splitDatum)
		g.Require().NoError(err)
		defer groups.Release()
		defer mins.Release()

		expMins := g.getArr(quiver.PrimitiveTypes.Int32, `[null, 9]`)
		defer expMins.Release()
		g.checkDatum(expMins, mins)
	})
}

func (g *GroupedAggSuite) TestCount() {
	values := g.getArr(quiver.PrimitiveTypes.Int64, `[1, null, 3, null]`)
	defer values.Release()
	ids := g.getArr(quiver.PrimitiveTypes.Int32, `[1, 1, 2, null]`)
	defer ids.Release()
	valuesDatum, idsDatum := g.datums(values, ids)
	defer valuesDatum.Release()
	defer idsDatum.Release()

	tests := []struct {
		name     string
		mode     compute.CountMode
		expected string
	}{
		{"only valid", compute.CountOnlyValid, `[1, 1]`},
		{"only null", compute.CountOnlyNull, `[1, 0]`},
		{"all", compute.CountAll, `[2, 1]`},
	}
	for _, tt := range tests {
		g.Run(tt.name, func() {
			groups, counts, err := compute.GroupedCount(g.ctx,
				compute.CountOptions{Mode: tt.mode}, valuesDatum, idsDatum)
			g.Require().NoError(err)
			defer groups.Release()
			defer counts.Release()

			expGroups := g.getArr(quiver.PrimitiveTypes.Int32, `[1, 2]`)
			defer expGroups.Release()
			expCounts := g.getArr(quiver.PrimitiveTypes.Int64, tt.expected)
			defer expCounts.Release()

			g.checkDatum(expGroups, groups)
			g.checkDatum(expCounts, counts)
		})
	}
}

func (g *GroupedAggSuite) TestInvalidInputs() {
	values := g.getArr(quiver.PrimitiveTypes.Int64, `[1, 2]`)
	defer values.Release()
	ids := g.getArr(quiver.PrimitiveTypes.Int32, `[0, 1]`)
	defer ids.Release()
	valuesDatum, idsDatum := g.datums(values, ids)
	defer valuesDatum.Release()
	defer idsDatum.Release()

	g.Run("scalar group ids", func() {
		sc := compute.NewDatum(scalar.NewInt32Scalar(0))
		defer sc.Release()
		_, _, err := compute.GroupedSum(g.ctx, valuesDatum, sc)
		g.ErrorIs(err, quiver.ErrInvalid)
	})

	g.Run("scalar values", func() {
		sc := compute.NewDatum(scalar.NewInt64Scalar(1))
		defer sc.Release()
		_, _, err := compute.GroupedSum(g.ctx, sc, idsDatum)
		g.ErrorIs(err, quiver.ErrInvalid)
	})

	g.Run("float group ids", func() {
		floatIDs := g.getArr(quiver.PrimitiveTypes.Float32, `[0, 1]`)
		defer floatIDs.Release()
		floatDatum := compute.NewDatum(floatIDs)
		defer floatDatum.Release()
		_, _, err := compute.GroupedSum(g.ctx, valuesDatum, floatDatum)
		g.ErrorIs(err, quiver.ErrNotImplemented)
	})

	g.Run("length mismatch", func() {
		shortIDs := g.getArr(quiver.PrimitiveTypes.Int32, `[0]`)
		defer shortIDs.Release()
		shortDatum := compute.NewDatum(shortIDs)
		defer shortDatum.Release()
		_, _, err := compute.GroupedSum(g.ctx, valuesDatum, shortDatum)
		g.ErrorIs(err, quiver.ErrLengthMismatch)
	})

	g.Run("string values", func() {
		strValues := g.getArr(quiver.BinaryTypes.String, `["a", "b"]`)
		defer strValues.Release()
		strDatum := compute.NewDatum(strValues)
		defer strDatum.Release()
		_, _, err := compute.GroupedSum(g.ctx, strDatum, idsDatum)
		g.ErrorIs(err, quiver.ErrNoMatchingKernel)
	})
}

// TestChunkedConsume forces grouping to happen across several small
// chunks, so groups keep being discovered after the first consume.
func (g *GroupedAggSuite) TestChunkedConsume() {
	values := g.getArr(quiver.PrimitiveTypes.Int64, `[1, 2, 3, 4, 5, 6, 7]`)
	defer values.Release()
	ids := g.getArr(quiver.PrimitiveTypes.Int32, `[4, 9, 4, 9, 4, 2, 9]`)
	defer ids.Release()
	valuesDatum, idsDatum := g.datums(values, ids)
	defer valuesDatum.Release()
	defer idsDatum.Release()

	ectx := compute.DefaultExecCtx()
	ectx.ChunkSize = 2
	chunked := compute.SetExecCtx(g.ctx, ectx)

	groups, sums, err := compute.GroupedSum(chunked, valuesDatum, idsDatum)
	g.Require().NoError(err)
	defer groups.Release()
	defer sums.Release()

	expGroups := g.getArr(quiver.PrimitiveTypes.Int32, `[4, 9, 2]`)
	defer expGroups.Release()
	expSums := g.getArr(quiver.PrimitiveTypes.Int64, `[9, 13, 6]`)
	defer expSums.Release()

	g.checkDatum(expGroups, groups)
	g.checkDatum(expSums, sums)
}

// TestRandomSum checks GroupedSum against a simple map-based reference
// aggregation.
func (g *GroupedAggSuite) TestRandomSum() {
	rng := gen.NewRandomArrayGenerator(randomSeed, g.mem)

	values := rng.Numeric(quiver.INT64, 512, -100, 100, 0.15)
	defer values.Release()
	ids := rng.Numeric(quiver.INT16, 512, 0, 8, 0.1)
	defer ids.Release()

	var (
		valArr = values.(*array.Int64)
		idArr  = ids.(*array.Int16)
		order  []int16
		sums   []int64
		seen   = make(map[int16]int)
	)
	for i := 0; i < idArr.Len(); i++ {
		if idArr.IsNull(i) {
			continue
		}
		id := idArr.Value(i)
		slot, ok := seen[id]
		if !ok {
			slot = len(order)
			seen[id] = slot
			order = append(order, id)
			sums = append(sums, 0)
		}
		if valArr.IsValid(i) {
			sums[slot] += valArr.Value(i)
		}
	}

	expGroups := exec.ArrayFromSlice(g.mem, order)
	defer expGroups.Release()
	expSums := exec.ArrayFromSlice(g.mem, sums)
	defer expSums.Release()

	valuesDatum, idsDatum := g.datums(values, ids)
	defer valuesDatum.Release()
	defer idsDatum.Release()

	groups, got, err := compute.GroupedSum(g.ctx, valuesDatum, idsDatum)
	g.Require().NoError(err)
	defer groups.Release()
	defer got.Release()

	g.checkDatum(expGroups, groups)
	g.checkDatum(expSums, got)
}

func TestGroupedAggregates(t *testing.T) {
	suite.Run(t, new(GroupedAggSuite))
}
