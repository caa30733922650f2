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

package quiver

type BooleanType struct{}

func (t *BooleanType) ID() Type            { return BOOL }
func (t *BooleanType) Name() string        { return "bool" }
func (t *BooleanType) String() string      { return "bool" }
func (t *BooleanType) Fingerprint() string { return typeFingerprint(t) }

// BitWidth returns the number of bits required to store a single element of this data type in memory.
func (t *BooleanType) BitWidth() int { return 1 }

// Bytes returns the number of bytes required to store a single element of this data type in memory.
func (t *BooleanType) Bytes() int { return 1 }

type Int8Type struct{}

func (t *Int8Type) ID() Type            { return INT8 }
func (t *Int8Type) Name() string        { return "int8" }
func (t *Int8Type) String() string      { return "int8" }
func (t *Int8Type) BitWidth() int       { return 8 }
func (t *Int8Type) Bytes() int          { return 1 }
func (t *Int8Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Int8Type) numeric()            {}

type Int16Type struct{}

func (t *Int16Type) ID() Type            { return INT16 }
func (t *Int16Type) Name() string        { return "int16" }
func (t *Int16Type) String() string      { return "int16" }
func (t *Int16Type) BitWidth() int       { return 16 }
func (t *Int16Type) Bytes() int          { return 2 }
func (t *Int16Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Int16Type) numeric()            {}

type Int32Type struct{}

func (t *Int32Type) ID() Type            { return INT32 }
func (t *Int32Type) Name() string        { return "int32" }
func (t *Int32Type) String() string      { return "int32" }
func (t *Int32Type) BitWidth() int       { return 32 }
func (t *Int32Type) Bytes() int          { return 4 }
func (t *Int32Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Int32Type) numeric()            {}

type Int64Type struct{}

func (t *Int64Type) ID() Type            { return INT64 }
func (t *Int64Type) Name() string        { return "int64" }
func (t *Int64Type) String() string      { return "int64" }
func (t *Int64Type) BitWidth() int       { return 64 }
func (t *Int64Type) Bytes() int          { return 8 }
func (t *Int64Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Int64Type) numeric()            {}

type Uint8Type struct{}

func (t *Uint8Type) ID() Type            { return UINT8 }
func (t *Uint8Type) Name() string        { return "uint8" }
func (t *Uint8Type) String() string      { return "uint8" }
func (t *Uint8Type) BitWidth() int       { return 8 }
func (t *Uint8Type) Bytes() int          { return 1 }
func (t *Uint8Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Uint8Type) numeric()            {}

type Uint16Type struct{}

func (t *Uint16Type) ID() Type            { return UINT16 }
func (t *Uint16Type) Name() string        { return "uint16" }
func (t *Uint16Type) String() string      { return "uint16" }
func (t *Uint16Type) BitWidth() int       { return 16 }
func (t *Uint16Type) Bytes() int          { return 2 }
func (t *Uint16Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Uint16Type) numeric()            {}

type Uint32Type struct{}

func (t *Uint32Type) ID() Type            { return UINT32 }
func (t *Uint32Type) Name() string        { return "uint32" }
func (t *Uint32Type) String() string      { return "uint32" }
func (t *Uint32Type) BitWidth() int       { return 32 }
func (t *Uint32Type) Bytes() int          { return 4 }
func (t *Uint32Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Uint32Type) numeric()            {}

type Uint64Type struct{}

func (t *Uint64Type) ID() Type            { return UINT64 }
func (t *Uint64Type) Name() string        { return "uint64" }
func (t *Uint64Type) String() string      { return "uint64" }
func (t *Uint64Type) BitWidth() int       { return 64 }
func (t *Uint64Type) Bytes() int          { return 8 }
func (t *Uint64Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Uint64Type) numeric()            {}

type Float32Type struct{}

func (t *Float32Type) ID() Type            { return FLOAT32 }
func (t *Float32Type) Name() string        { return "float32" }
func (t *Float32Type) String() string      { return "float32" }
func (t *Float32Type) BitWidth() int       { return 32 }
func (t *Float32Type) Bytes() int          { return 4 }
func (t *Float32Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Float32Type) numeric()            {}

type Float64Type struct{}

func (t *Float64Type) ID() Type            { return FLOAT64 }
func (t *Float64Type) Name() string        { return "float64" }
func (t *Float64Type) String() string      { return "float64" }
func (t *Float64Type) BitWidth() int       { return 64 }
func (t *Float64Type) Bytes() int          { return 8 }
func (t *Float64Type) Fingerprint() string { return typeFingerprint(t) }
func (t *Float64Type) numeric()            {}

var (
	// FixedWidthTypes contains the fixed-width logical types that are not
	// plain numerics.
	FixedWidthTypes = struct {
		Boolean FixedWidthDataType
	}{
		Boolean: &BooleanType{},
	}

	// PrimitiveTypes holds the singleton instances for the numeric types.
	PrimitiveTypes = struct {
		Int8    DataType
		Int16   DataType
		Int32   DataType
		Int64   DataType
		Uint8   DataType
		Uint16  DataType
		Uint32  DataType
		Uint64  DataType
		Float32 DataType
		Float64 DataType
	}{
		Int8:    &Int8Type{},
		Int16:   &Int16Type{},
		Int32:   &Int32Type{},
		Int64:   &Int64Type{},
		Uint8:   &Uint8Type{},
		Uint16:  &Uint16Type{},
		Uint32:  &Uint32Type{},
		Uint64:  &Uint64Type{},
		Float32: &Float32Type{},
		Float64: &Float64Type{},
	}

	_ NumericDataType = (*Int8Type)(nil)
	_ NumericDataType = (*Uint64Type)(nil)
	_ NumericDataType = (*Float64Type)(nil)
)

// GetDataType returns the singleton DataType for the given numeric,
// boolean or variable-width type ID, or nil if the ID has no singleton
// (NULL and DICTIONARY are parameterized by construction).
func GetDataType(id Type) DataType {
	switch id {
	case BOOL:
		return FixedWidthTypes.Boolean
	case INT8:
		return PrimitiveTypes.Int8
	case INT16:
		return PrimitiveTypes.Int16
	case INT32:
		return PrimitiveTypes.Int32
	case INT64:
		return PrimitiveTypes.Int64
	case UINT8:
		return PrimitiveTypes.Uint8
	case UINT16:
		return PrimitiveTypes.Uint16
	case UINT32:
		return PrimitiveTypes.Uint32
	case UINT64:
		return PrimitiveTypes.Uint64
	case FLOAT32:
		return PrimitiveTypes.Float32
	case FLOAT64:
		return PrimitiveTypes.Float64
	case STRING:
		return BinaryTypes.String
	case BINARY:
		return BinaryTypes.Binary
	case NULL:
		return Null
	}
	return nil
}
