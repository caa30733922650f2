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

package scalar

import (
	"math/bits"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/memory"
)

// MakeScalar creates a scalar of the corresponding type for the passed in
// Go value: a Go int8 produces an Int8 scalar, a string produces a String
// scalar and so on. A nil value produces ScalarNull. MakeScalar panics for
// Go types with no corresponding scalar; use MakeScalarParam for the
// parameterized types.
func MakeScalar(val interface{}) Scalar {
	switch v := val.(type) {
	case nil:
		return ScalarNull
	case Scalar:
		return v
	case bool:
		return NewBooleanScalar(v)
	case int8:
		return NewInt8Scalar(v)
	case uint8:
		return NewUint8Scalar(v)
	case int16:
		return NewInt16Scalar(v)
	case uint16:
		return NewUint16Scalar(v)
	case int32:
		return NewInt32Scalar(v)
	case uint32:
		return NewUint32Scalar(v)
	case int64:
		return NewInt64Scalar(v)
	case uint64:
		return NewUint64Scalar(v)
	case int:
		// width depends on the platform
		if bits.UintSize == 32 {
			return NewInt32Scalar(int32(v))
		}
		return NewInt64Scalar(int64(v))
	case uint:
		if bits.UintSize == 32 {
			return NewUint32Scalar(uint32(v))
		}
		return NewUint64Scalar(uint64(v))
	case float32:
		return NewFloat32Scalar(v)
	case float64:
		return NewFloat64Scalar(v)
	case string:
		return NewStringScalar(v)
	case []byte:
		buf := memory.NewBufferBytes(v)
		defer buf.Release()
		return NewBinaryScalar(buf, quiver.BinaryTypes.Binary)
	}

	panic(xerrors.Errorf("makescalar not implemented for type value %#v", val))
}

// binaryLikeScalar binds an existing buffer to a variable-width type.
func binaryLikeScalar(buf *memory.Buffer, dt quiver.DataType) (Scalar, error) {
	switch dt.ID() {
	case quiver.BINARY:
		return NewBinaryScalar(buf, dt), nil
	case quiver.STRING:
		return NewStringScalarFromBuffer(buf), nil
	}
	return nil, xerrors.Errorf("cannot create %s scalar from binary data: %w", dt, quiver.ErrType)
}

// MakeScalarParam creates a scalar of the given data type from the passed
// in Go value, converting where necessary: numeric Go values cast to the
// requested numeric type, strings parse per ParseScalar, and byte slices
// and buffers bind to the variable-width binary types.
func MakeScalarParam(val interface{}, dt quiver.DataType) (Scalar, error) {
	switch v := val.(type) {
	case nil:
		return MakeNullScalar(dt), nil
	case Scalar:
		return v.CastTo(dt)
	case *memory.Buffer:
		return binaryLikeScalar(v, dt)
	case []byte:
		buf := memory.NewBufferBytes(v)
		defer buf.Release()
		return binaryLikeScalar(buf, dt)
	case string:
		if dt.ID() == quiver.STRING {
			return NewStringScalar(v), nil
		}
		return ParseScalar(dt, v)
	}

	sc := MakeScalar(val)
	if quiver.TypeEqual(sc.DataType(), dt) {
		return sc, nil
	}
	return sc.CastTo(dt)
}

// MakeIntegerScalar creates a scalar of the signed integer type with the
// requested bit width.
func MakeIntegerScalar(v int64, bitsize int) (Scalar, error) {
	switch bitsize {
	case 8:
		return MakeScalar(int8(v)), nil
	case 16:
		return MakeScalar(int16(v)), nil
	case 32:
		return MakeScalar(int32(v)), nil
	case 64:
		return MakeScalar(v), nil
	}
	return nil, xerrors.Errorf("invalid bitsize for integer scalar: %d", bitsize)
}

// MakeUnsignedIntegerScalar creates a scalar of the unsigned integer type
// with the requested bit width.
func MakeUnsignedIntegerScalar(v uint64, bitsize int) (Scalar, error) {
	switch bitsize {
	case 8:
		return MakeScalar(uint8(v)), nil
	case 16:
		return MakeScalar(uint16(v)), nil
	case 32:
		return MakeScalar(uint32(v)), nil
	case 64:
		return MakeScalar(v), nil
	}
	return nil, xerrors.Errorf("invalid bitsize for uint scalar: %d", bitsize)
}

// ParseScalar parses the string representation of a value to create a
// scalar of the given data type. Integer strings accept the usual base
// prefixes (0x, 0o, 0b) and float strings accept NaN, +Inf and -Inf.
func ParseScalar(dt quiver.DataType, repr string) (Scalar, error) {
	width := 0
	if fw, ok := dt.(quiver.FixedWidthDataType); ok {
		width = fw.BitWidth()
	}

	switch dt.ID() {
	case quiver.STRING:
		return NewStringScalar(repr), nil
	case quiver.BINARY:
		buf := memory.NewBufferBytes([]byte(repr))
		defer buf.Release()
		return NewBinaryScalar(buf, dt), nil
	case quiver.BOOL:
		v, err := strconv.ParseBool(repr)
		if err != nil {
			return nil, err
		}
		return NewBooleanScalar(v), nil
	case quiver.INT8, quiver.INT16, quiver.INT32, quiver.INT64:
		v, err := strconv.ParseInt(repr, 0, width)
		if err != nil {
			return nil, err
		}
		return MakeIntegerScalar(v, width)
	case quiver.UINT8, quiver.UINT16, quiver.UINT32, quiver.UINT64:
		v, err := strconv.ParseUint(repr, 0, width)
		if err != nil {
			return nil, err
		}
		return MakeUnsignedIntegerScalar(v, width)
	case quiver.FLOAT32, quiver.FLOAT64:
		v, err := strconv.ParseFloat(repr, width)
		if err != nil {
			return nil, err
		}
		if width == 32 {
			return MakeScalar(float32(v)), nil
		}
		return MakeScalar(v), nil
	}

	return nil, xerrors.Errorf("parsing of scalar for type %s not implemented", dt)
}
