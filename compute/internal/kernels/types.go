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
	"github.com/quiverdata/quiver"
)

var (
	unsignedIntTypes = []quiver.DataType{
		quiver.PrimitiveTypes.Uint8,
		quiver.PrimitiveTypes.Uint16,
		quiver.PrimitiveTypes.Uint32,
		quiver.PrimitiveTypes.Uint64,
	}
	signedIntTypes = []quiver.DataType{
		quiver.PrimitiveTypes.Int8,
		quiver.PrimitiveTypes.Int16,
		quiver.PrimitiveTypes.Int32,
		quiver.PrimitiveTypes.Int64,
	}
	intTypes      = append(unsignedIntTypes, signedIntTypes...)
	floatingTypes = []quiver.DataType{
		quiver.PrimitiveTypes.Float32,
		quiver.PrimitiveTypes.Float64,
	}
	numericTypes = append(intTypes, floatingTypes...)
	// binary-like types, all using 32-bit offsets
	baseBinaryTypes = []quiver.DataType{
		quiver.BinaryTypes.Binary,
		quiver.BinaryTypes.String}
	// non-parametric, non-dictionary types
	primitiveTypes = append(append([]quiver.DataType{
		quiver.Null, quiver.FixedWidthTypes.Boolean},
		numericTypes...), baseBinaryTypes...)
)
