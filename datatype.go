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

import (
	"fmt"
	"hash/maphash"
	"strconv"
	"strings"
)

// Type is a logical type. A logical type is expressed as either a primitive
// physical type (bytes or bits of some fixed size), a variable-width type
// whose values carry their own lengths, or an encoded type built from
// another data type (e.g. dictionary indices into a set of unique values).
type Type int

const (
	// NULL type having no physical storage
	NULL Type = iota

	// BOOL is a 1 bit, LSB bit-packed ordering
	BOOL

	// UINT8 is an Unsigned 8-bit little-endian integer
	UINT8

	// INT8 is a Signed 8-bit little-endian integer
	INT8

	// UINT16 is an Unsigned 16-bit little-endian integer
	UINT16

	// INT16 is a Signed 16-bit little-endian integer
	INT16

	// UINT32 is an Unsigned 32-bit little-endian integer
	UINT32

	// INT32 is a Signed 32-bit little-endian integer
	INT32

	// UINT64 is an Unsigned 64-bit little-endian integer
	UINT64

	// INT64 is a Signed 64-bit little-endian integer
	INT64

	// FLOAT32 is a 4-byte floating point value
	FLOAT32

	// FLOAT64 is an 8-byte floating point value
	FLOAT64

	// STRING is a UTF8 variable-length string
	STRING

	// BINARY is a Variable-length byte type (no guarantee of UTF8-ness)
	BINARY

	// DICTIONARY aka Category type
	DICTIONARY
)

var typeNames = [...]string{
	"NULL", "BOOL",
	"UINT8", "INT8", "UINT16", "INT16", "UINT32", "INT32", "UINT64", "INT64",
	"FLOAT32", "FLOAT64",
	"STRING", "BINARY",
	"DICTIONARY",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// DataType is the representation of a logical array type.
type DataType interface {
	fmt.Stringer
	ID() Type
	// Name is name of the data type.
	Name() string
	Fingerprint() string
}

// TypesToString is a convenience function for building a comma delimited
// string of the string representations of a list of types.
func TypesToString(types []DataType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// FixedWidthDataType is the representation of a type that
// requires a fixed number of bits in memory for each element.
type FixedWidthDataType interface {
	DataType
	// BitWidth returns the number of bits required to store a single element of this data type in memory.
	BitWidth() int
	// Bytes returns the number of bytes required to store a single element of this data type in memory.
	Bytes() int
}

// BinaryDataType is implemented by the variable-width binary types, i.e.
// types whose second buffer holds value offsets and whose third buffer
// holds the value bytes.
type BinaryDataType interface {
	DataType
	IsUtf8() bool
	binary()
}

// NumericDataType covers the integral and floating point types.
type NumericDataType interface {
	FixedWidthDataType
	numeric()
}

// HashType computes a hash of the data type's identity using the
// given seed. Equal types (per TypeEqual) hash equal.
func HashType(seed maphash.Seed, dt DataType) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(dt.Fingerprint())
	return h.Sum64()
}

func typeFingerprint(typ DataType) string {
	return "@" + string(rune('A'+int(typ.ID())))
}

// IsInteger returns true if the type ID provided is one of the signed
// or unsigned integral types.
func IsInteger(t Type) bool {
	return IsSignedInteger(t) || IsUnsignedInteger(t)
}

// IsUnsignedInteger returns true if the type ID provided is one of the
// unsigned integral types.
func IsUnsignedInteger(t Type) bool {
	return t == UINT8 || t == UINT16 || t == UINT32 || t == UINT64
}

// IsSignedInteger returns true if the type ID provided is one of the
// signed integral types.
func IsSignedInteger(t Type) bool {
	return t == INT8 || t == INT16 || t == INT32 || t == INT64
}

// IsFloating returns true if the type ID provided is one of the
// floating point types.
func IsFloating(t Type) bool {
	return t == FLOAT32 || t == FLOAT64
}

// IsNumeric returns true if the type ID is an integral or floating
// point type.
func IsNumeric(t Type) bool { return IsInteger(t) || IsFloating(t) }

// IsPrimitive returns true for the types whose values are stored
// contiguously at a fixed width, including BOOL.
func IsPrimitive(t Type) bool { return t == BOOL || IsNumeric(t) }

// IsBaseBinary returns true for the variable-width binary types.
func IsBaseBinary(t Type) bool { return t == STRING || t == BINARY }
