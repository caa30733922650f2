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
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/memory"
)

type fromJSONCfg struct {
	startOffset int64
	useNumber   bool
}

type FromJSONOption func(*fromJSONCfg)

// WithStartOffset attempts to start decoding from the reader at the offset
// passed in. If the provided reader does not support io.Seeker this option
// is ignored.
func WithStartOffset(off int64) FromJSONOption {
	return func(c *fromJSONCfg) {
		c.startOffset = off
	}
}

// WithUseNumber enables the UseNumber option on the json decoder, using
// the json.Number type for all numeric values instead of assuming float64.
// This preserves the full precision of 64-bit integers at the cost of
// re-parsing the text of each value.
func WithUseNumber() FromJSONOption {
	return func(c *fromJSONCfg) {
		c.useNumber = true
	}
}

// MakeArrayOfNull creates an array of the given length which is entirely
// null of the given data type.
func MakeArrayOfNull(mem memory.Allocator, dt quiver.DataType, length int) quiver.Array {
	if dt.ID() == quiver.NULL {
		return NewNull(length)
	}

	bldr := NewBuilder(mem, dt)
	defer bldr.Release()

	bldr.AppendNulls(length)
	return bldr.NewArray()
}

// FromJSON creates a quiver.Array from a corresponding JSON stream and defined
// data type. If the types in the json do not match the type provided, it will
// return errors. It also returns the input offset in the reader where it
// finished decoding since the decoder is byte based instead of line based; a
// single general purpose stream of json data isn't able to be read by the
// decoder so the caller needs to be able to know where it left off.
//
// The top level of the json stream must be an array, with values matching the
// data type:
//
//	null values are always accepted and append a null to the builder
//	numeric types accept json numbers, or strings that parse as the value type
//	float types additionally accept the strings "NaN", "+Inf" and "-Inf"
//	string arrays expect json strings, binary arrays expect base64 encoded strings
//	dictionary arrays expect the json representation of their value type
func FromJSON(mem memory.Allocator, dt quiver.DataType, r io.Reader, opts ...FromJSONOption) (arr quiver.Array, offset int64, err error) {
	var cfg fromJSONCfg
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.startOffset != 0 {
		seeker, ok := r.(io.Seeker)
		if ok {
			if _, err = seeker.Seek(cfg.startOffset, io.SeekStart); err != nil {
				return nil, 0, err
			}
		}
	}

	bldr := NewBuilder(mem, dt)
	defer bldr.Release()

	dec := json.NewDecoder(r)
	defer func() {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("failed parsing json: %w", io.ErrUnexpectedEOF)
		}
	}()

	if cfg.useNumber {
		dec.UseNumber()
	}

	t, err := dec.Token()
	if err != nil {
		return nil, dec.InputOffset(), err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return nil, dec.InputOffset(), fmt.Errorf("%w: json doc must be an array, found %s", quiver.ErrInvalid, t)
	}

	if err = bldr.Unmarshal(dec); err != nil {
		return nil, dec.InputOffset(), err
	}

	// consume the last ']'
	if _, err = dec.Token(); err != nil {
		return nil, dec.InputOffset(), err
	}

	return bldr.NewArray(), dec.InputOffset(), nil
}
