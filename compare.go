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

// TypeEqual checks if two DataType instances are equal. The non-parameterized
// types compare equal by ID alone; dictionary types additionally require
// equal index and value types and matching orderedness.
func TypeEqual(left, right DataType) bool {
	switch {
	case left == nil || right == nil:
		return left == nil && right == nil
	case left.ID() != right.ID():
		return false
	}

	switch l := left.(type) {
	case *DictionaryType:
		r := right.(*DictionaryType)
		if l.Ordered != r.Ordered {
			return false
		}
		return TypeEqual(l.IndexType, r.IndexType) && TypeEqual(l.ValueType, r.ValueType)
	default:
		return true
	}
}
