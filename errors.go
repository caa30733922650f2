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

import "errors"

// The sentinel errors wrapped by every failure the library returns.
// Callers discriminate with errors.Is; the wrapping message carries
// the specifics (function name, offending types, lengths, indices).
var (
	ErrInvalid        = errors.New("invalid")
	ErrNotImplemented = errors.New("not implemented")
	ErrType           = errors.New("type error")

	ErrDuplicateSignature = errors.New("duplicate kernel signature")
	ErrNoMatchingKernel   = errors.New("no matching kernel")
	ErrLengthMismatch     = errors.New("length mismatch")
	ErrIndexOutOfBounds   = errors.New("index out of bounds")
	ErrOverflow           = errors.New("overflow")
	ErrDivideByZero       = errors.New("divide by zero")
	ErrAllocation         = errors.New("allocation failed")
	ErrInvalidOption      = errors.New("invalid option")
)
