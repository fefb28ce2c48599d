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

	"github.com/ironloom/stagehand/internal/actorsystem"
)

func init() {
	Register("noop", func(sys *actorsystem.System, name string) (actorsystem.Actor, error) {
		return NewNoopActor(name), nil
	})
}

// NoopActor always succeeds without side effects. Useful for
// workflow-document smoke tests and as a placeholder actor while a
// workflow is under development.
type NoopActor struct {
	name string
}

// NewNoopActor returns a NoopActor registered under name.
func NewNoopActor(name string) *NoopActor {
	return &NoopActor{name: name}
}

// Name implements actorsystem.Actor.
func (n *NoopActor) Name() string { return n.name }

// Actions implements actorsystem.Actor.
func (n *NoopActor) Actions() map[string]actorsystem.Handler {
	return map[string]actorsystem.Handler{
		"run": func(ctx context.Context, argsJSON string) actorsystem.ActionResult {
			return actorsystem.ActionResult{Success: true, Result: "ok"}
		},
	}
}
