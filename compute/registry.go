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
	"fmt"
	"sync"

	"github.com/quiverdata/quiver"
	"golang.org/x/exp/slices"
)

var (
	registry FunctionRegistry
	once     sync.Once
)

// GetFunctionRegistry returns the process-global function registry,
// populating it with the built-in function families on first use.
// Registration is append-only after this point; lookups afterwards are
// cheap read-locked map accesses.
func GetFunctionRegistry() FunctionRegistry {
	once.Do(func() {
		registry = NewRegistry()
		RegisterScalarArithmetic(registry)
		RegisterScalarBoolean(registry)
		RegisterScalarCast(registry)
		RegisterScalarComparisons(registry)
		RegisterVectorSelection(registry)
		RegisterVectorSorting(registry)
		RegisterVectorHash(registry)
		RegisterScalarAggregates(registry)
		RegisterHashAggregates(registry)
	})
	return registry
}

// FunctionRegistry is an interface for providing a way to register and
// look up compute functions by name. Aliases may be added so a function
// can be found under more than one name.
type FunctionRegistry interface {
	CanAddFunction(fn Function, allowOverwrite bool) bool
	// AddFunction registers fn under its name, failing with an error
	// wrapping ErrDuplicateSignature if the name is already registered
	// (here or in a parent registry) and allowOverwrite is false.
	AddFunction(fn Function, allowOverwrite bool) error
	CanAddAlias(target, source string) bool
	// AddAlias registers the existing function named source under the
	// additional name target.
	AddAlias(target, source string) error
	GetFunction(name string) (Function, bool)
	// GetFunctionNames returns the registered names, including those of
	// any parent registries, in sorted order.
	GetFunctionNames() []string
	NumFunctions() int

	canAddFuncName(string, bool) bool
}

// NewRegistry creates a new, empty registry.
func NewRegistry() FunctionRegistry {
	return &funcRegistry{nameToFunction: make(map[string]Function)}
}

// NewChildRegistry creates a new registry that has a view into the
// functions of its parent. Functions and aliases added to the child do
// not affect the parent, but the child cannot register a name the
// parent already has unless allowOverwrite is passed; the child's
// function then shadows the parent's for lookups through the child.
func NewChildRegistry(parent FunctionRegistry) FunctionRegistry {
	return &funcRegistry{
		parent:         parent.(*funcRegistry),
		nameToFunction: make(map[string]Function),
	}
}

type funcRegistry struct {
	mx             sync.RWMutex
	nameToFunction map[string]Function
	parent         *funcRegistry
}

func (reg *funcRegistry) CanAddFunction(fn Function, allowOverwrite bool) bool {
	return reg.doAddFunction(fn, allowOverwrite, false) == nil
}

func (reg *funcRegistry) AddFunction(fn Function, allowOverwrite bool) error {
	return reg.doAddFunction(fn, allowOverwrite, true)
}

func (reg *funcRegistry) CanAddAlias(target, source string) bool {
	return reg.doAddAlias(target, source, false) == nil
}

func (reg *funcRegistry) AddAlias(target, source string) error {
	return reg.doAddAlias(target, source, true)
}

func (reg *funcRegistry) GetFunction(name string) (Function, bool) {
	reg.mx.RLock()
	fn, ok := reg.nameToFunction[name]
	reg.mx.RUnlock()

	if !ok && reg.parent != nil {
		return reg.parent.GetFunction(name)
	}
	return fn, ok
}

func (reg *funcRegistry) GetFunctionNames() (out []string) {
	if reg.parent != nil {
		out = reg.parent.GetFunctionNames()
	} else {
		out = make([]string, 0, len(reg.nameToFunction))
	}

	reg.mx.RLock()
	for name := range reg.nameToFunction {
		if _, found := slices.BinarySearch(out, name); !found {
			out = append(out, name)
		}
	}
	reg.mx.RUnlock()

	slices.Sort(out)
	return
}

func (reg *funcRegistry) NumFunctions() int {
	return len(reg.GetFunctionNames())
}

// canAddFuncName reports whether name is free for registration in this
// registry and every parent, so a child cannot silently shadow a parent
// function.
func (reg *funcRegistry) canAddFuncName(name string, allowOverwrite bool) bool {
	if reg.parent != nil && !reg.parent.canAddFuncName(name, allowOverwrite) {
		return false
	}

	if allowOverwrite {
		return true
	}

	reg.mx.RLock()
	_, exists := reg.nameToFunction[name]
	reg.mx.RUnlock()
	return !exists
}

func (reg *funcRegistry) doAddFunction(fn Function, allowOverwrite, add bool) error {
	if err := fn.Validate(); err != nil {
		return err
	}

	name := fn.Name()
	if !reg.canAddFuncName(name, allowOverwrite) {
		return fmt.Errorf("%w: already have a function registered with name: %s",
			quiver.ErrDuplicateSignature, name)
	}

	if add {
		reg.mx.Lock()
		reg.nameToFunction[name] = fn
		reg.mx.Unlock()
	}
	return nil
}

func (reg *funcRegistry) doAddAlias(target, source string, add bool) error {
	// the source function must exist somewhere in this registry chain
	fn, ok := reg.GetFunction(source)
	if !ok {
		return fmt.Errorf("%w: no function registered with name: %s", quiver.ErrInvalid, source)
	}

	if !reg.canAddFuncName(target, false) {
		return fmt.Errorf("%w: already have a function registered with name: %s",
			quiver.ErrDuplicateSignature, target)
	}

	if add {
		reg.mx.Lock()
		reg.nameToFunction[target] = fn
		reg.mx.Unlock()
	}
	return nil
}
