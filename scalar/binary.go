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
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/memory"
)

// BinaryScalar is implemented by scalars backed by a refcounted byte buffer.
type BinaryScalar interface {
	Scalar

	Retain()
	Release()
	Data() []byte
}

type Binary struct {
	scalar

	Value *memory.Buffer
}

func NewBinaryScalar(buf *memory.Buffer, dt quiver.DataType) *Binary {
	buf.Retain()
	return &Binary{scalar{dt, true}, buf}
}

func (s *Binary) Retain()            { s.Value.Retain() }
func (s *Binary) Release()           { s.Value.Release() }
func (s *Binary) Data() []byte       { return s.Value.Bytes() }
func (s *Binary) value() interface{} { return s.Value }

func (s *Binary) equals(rhs Scalar) bool {
	return bytes.Equal(s.Data(), rhs.(BinaryScalar).Data())
}

func (s *Binary) String() string {
	if !s.Valid {
		return "null"
	}
	return string(s.Data())
}

func (s *Binary) CastTo(to quiver.DataType) (Scalar, error) {
	switch {
	case !s.Valid:
		return MakeNullScalar(to), nil
	case to.ID() == quiver.BINARY:
		return s, nil
	case to.ID() == quiver.STRING:
		return NewStringScalarFromBuffer(s.Value), nil
	}
	return nil, fmt.Errorf("%w: cannot cast non-null binary scalar to type %s", quiver.ErrNotImplemented, to)
}

func (s *Binary) Validate() error {
	if err := s.scalar.Validate(); err != nil {
		return err
	}
	return validateOptional(&s.scalar, s.Value, "value")
}

func (s *Binary) ValidateFull() error { return s.Validate() }

// String wraps Binary with utf8 validation and string-parsing casts.
type String struct {
	*Binary
}

func NewStringScalar(val string) *String {
	buf := memory.NewBufferBytes([]byte(val))
	defer buf.Release()
	return NewStringScalarFromBuffer(buf)
}

func NewStringScalarFromBuffer(buf *memory.Buffer) *String {
	return &String{NewBinaryScalar(buf, quiver.BinaryTypes.String)}
}

func (s *String) Validate() error { return s.Binary.Validate() }

func (s *String) ValidateFull() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Valid && !utf8.Valid(s.Data()) {
		return fmt.Errorf("%w: %s scalar contains invalid utf8 data", quiver.ErrInvalid, s.Type)
	}
	return nil
}

// CastTo parses the string value for non-string targets, so the string
// "7" casts to the int8 scalar 7.
func (s *String) CastTo(to quiver.DataType) (Scalar, error) {
	if !s.Valid {
		return MakeNullScalar(to), nil
	}
	return ParseScalar(to, string(s.Data()))
}

var (
	_ BinaryScalar = (*Binary)(nil)
	_ BinaryScalar = (*String)(nil)
	_ Releasable   = (*Binary)(nil)
)
