// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package builtin holds the compile-time registry of constructible actor
// kinds used by the loader actor's createChild operation. No
// reflective loading is performed; every class_id maps to an explicit
// factory registered here.
package builtin

import (
	"fmt"

	"github.com/ironloom/stagehand/internal/actorsystem"
)

// Factory builds a new Actor named name, registered against sys so the
// actor can recurse into ask/tell calls against its siblings.
type Factory func(sys *actorsystem.System, name string) (actorsystem.Actor, error)

// registry maps a stable class_id to its Factory. Populated by each
// built-in's init().
var registry = map[string]Factory{}

// Register adds classID to the registry. Called from package init; a
// duplicate classID is a programming error and panics at startup rather
// than silently shadowing a built-in.
func Register(classID string, factory Factory) {
	if _, exists := registry[classID]; exists {
		panic(fmt.Sprintf("builtin: class_id %q already registered", classID))
	}
	registry[classID] = factory
}

// IsBuiltin reports whether classID names a registered actor kind.
func IsBuiltin(classID string) bool {
	_, ok := registry[classID]
	return ok
}

// New constructs and registers a new actor of the given class_id under
// name, used by loader.createChild.
func New(sys *actorsystem.System, classID, name string) (actorsystem.Actor, error) {
	factory, ok := registry[classID]
	if !ok {
		return nil, fmt.Errorf("builtin: unknown class_id: %s", classID)
	}
	actor, err := factory(sys, name)
	if err != nil {
		return nil, fmt.Errorf("builtin: construct %s (%s): %w", name, classID, err)
	}
	sys.Register(actor)
	return actor, nil
}

// Names returns every registered class_id, for `stagehand describe`-style
// introspection.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
