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

// Package compute is a native-go vectorized expression engine for
// quiver arrays.
//
// Functions are looked up by name in a registry and invoked through
// CallFunction with Datum arguments, which wrap either whole arrays or
// single scalar values. Each function owns a set of kernels, one per
// type signature; dispatch picks the kernel matching the argument
// types, implicitly promoting numeric arguments to a common type where
// no exact match exists. Execution then slices the inputs into spans,
// propagates validity bitmaps, and runs the kernel over each span,
// in parallel where the kernel allows it.
//
// The registered function families are scalar arithmetic, comparisons
// and boolean logic, casts, the vector functions (filter, take,
// sort_indices, unique, dictionary_encode), and the scalar and grouped
// aggregates. Convenience wrappers such as Add, Filter or Sum cover
// the common calls; everything else is reachable through CallFunction.
//
// Everything in this package should be considered Experimental for now.
package compute
