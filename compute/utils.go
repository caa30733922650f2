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
	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/bitutil"
	"github.com/quiverdata/quiver/compute/exec"
	"github.com/quiverdata/quiver/internal/debug"
)

// The helpers in this file are used by the DispatchBest implementations
// to find a common type for the arguments of a function call when no
// kernel matches the argument types exactly. They mutate the passed in
// slice in place, the caller then inserts implicit casts for any
// argument whose type changed.

func ensureDictionaryDecoded(vals ...quiver.DataType) {
	for i, v := range vals {
		if v.ID() == quiver.DICTIONARY {
			vals[i] = v.(*quiver.DictionaryType).ValueType
		}
	}
}

func replaceNullWithOtherType(vals ...quiver.DataType) {
	debug.Assert(len(vals) == 2, "should be length 2")

	if vals[0].ID() == quiver.NULL {
		vals[0] = vals[1]
		return
	}

	if vals[1].ID() == quiver.NULL {
		vals[1] = vals[0]
	}
}

func replaceTypes(w quiver.DataType, vals ...quiver.DataType) {
	for i := range vals {
		vals[i] = w
	}
}

func maxBitWidth(width int, dt quiver.DataType) int {
	return exec.Max(dt.(quiver.FixedWidthDataType).BitWidth(), width)
}

// commonNumeric returns the smallest numeric type which all of the
// provided types promote to losslessly, or nil if the types have no
// common numeric type.
//
// Mixed signedness promotes to the signed type wide enough to hold
// every value of the unsigned operand, saturating at int64. An integer
// paired with a float promotes to float32 only when the integer is
// narrow enough for exact representation, otherwise to float64.
func commonNumeric(vals ...quiver.DataType) quiver.DataType {
	for _, v := range vals {
		if !quiver.IsFloating(v.ID()) && !quiver.IsInteger(v.ID()) {
			// a common numeric type is only possible if all are numeric
			return nil
		}
	}

	for _, v := range vals {
		if v.ID() == quiver.FLOAT64 {
			return quiver.PrimitiveTypes.Float64
		}
	}

	for _, v := range vals {
		if v.ID() == quiver.FLOAT32 {
			for _, v := range vals {
				if quiver.IsInteger(v.ID()) && v.(quiver.FixedWidthDataType).BitWidth() > 16 {
					return quiver.PrimitiveTypes.Float64
				}
			}
			return quiver.PrimitiveTypes.Float32
		}
	}

	maxWidthSigned, maxWidthUnsigned := 0, 0
	for _, v := range vals {
		switch {
		case quiver.IsSignedInteger(v.ID()):
			maxWidthSigned = maxBitWidth(maxWidthSigned, v)
		default:
			maxWidthUnsigned = maxBitWidth(maxWidthUnsigned, v)
		}
	}

	if maxWidthSigned == 0 {
		switch {
		case maxWidthUnsigned >= 64:
			return quiver.PrimitiveTypes.Uint64
		case maxWidthUnsigned == 32:
			return quiver.PrimitiveTypes.Uint32
		case maxWidthUnsigned == 16:
			return quiver.PrimitiveTypes.Uint16
		default:
			debug.Assert(maxWidthUnsigned == 8, "bad maxWidthUnsigned")
			return quiver.PrimitiveTypes.Uint8
		}
	}

	if maxWidthSigned <= maxWidthUnsigned {
		maxWidthSigned = bitutil.NextPowerOf2(maxWidthUnsigned + 1)
	}

	switch {
	case maxWidthSigned >= 64:
		return quiver.PrimitiveTypes.Int64
	case maxWidthSigned == 32:
		return quiver.PrimitiveTypes.Int32
	case maxWidthSigned == 16:
		return quiver.PrimitiveTypes.Int16
	default:
		debug.Assert(maxWidthSigned == 8, "bad maxWidthSigned")
		return quiver.PrimitiveTypes.Int8
	}
}

// commonBinary returns the type that a mix of binary and utf8 operands
// is compared as, which is binary since it imposes no validation on the
// values. Uniform or non-binary inputs have no promotion.
func commonBinary(vals ...quiver.DataType) quiver.DataType {
	var haveString, haveBinary bool
	for _, v := range vals {
		switch v.ID() {
		case quiver.STRING:
			haveString = true
		case quiver.BINARY:
			haveBinary = true
		default:
			return nil
		}
	}

	if haveString && haveBinary {
		return quiver.BinaryTypes.Binary
	}
	return nil
}
