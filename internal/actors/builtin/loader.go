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

package builtin

import (
	"context"
	"fmt"

	"github.com/ironloom/stagehand/internal/actorsystem"
)

func init() {
	Register("loader", func(sys *actorsystem.System, name string) (actorsystem.Actor, error) {
		return NewLoaderActor(name, sys), nil
	})
}

// LoaderActor exposes createChild(name, class_id), the only dynamic actor
// creation path in the system.
// class_id must name one of the Factory entries registered in this
// package's registry.
type LoaderActor struct {
	name string
	sys  *actorsystem.System
}

// NewLoaderActor returns a LoaderActor named name, bound to sys so it can
// register the children it creates.
func NewLoaderActor(name string, sys *actorsystem.System) *LoaderActor {
	return &LoaderActor{name: name, sys: sys}
}

// Name implements actorsystem.Actor.
func (l *LoaderActor) Name() string { return l.name }

// Actions implements actorsystem.Actor.
func (l *LoaderActor) Actions() map[string]actorsystem.Handler {
	return map[string]actorsystem.Handler{
		"createChild": l.createChild,
	}
}

// createChild takes ["<parent>", "<child-name>", "<class_id>"] (the
// two-argument form omits the parent) and instantiates + registers the
// new actor. Returns the child's name on success.
func (l *LoaderActor) createChild(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	args, err := actorsystem.DecodeArgs(argsJSON)
	if err != nil || len(args) < 2 {
		return actorsystem.ActionResult{Success: false, Result: "Error: loader.createChild requires [parent, name, class_id]"}
	}
	if len(args) > 2 {
		args = args[1:]
	}
	childName, classID := args[0], args[1]

	if _, exists := l.sys.Lookup(childName); exists {
		return actorsystem.ActionResult{Success: false, Result: fmt.Sprintf("Error: actor %s already exists", childName)}
	}

	if _, err := New(l.sys, classID, childName); err != nil {
		return actorsystem.ActionResult{Success: false, Result: "Error: " + err.Error()}
	}
	return actorsystem.ActionResult{Success: true, Result: childName}
}
