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
	"github.com/ironloom/stagehand/internal/interpreter"
)

func init() {
	Register("subWorkflow", func(sys *actorsystem.System, name string) (actorsystem.Actor, error) {
		return NewSubWorkflowActor(name), nil
	})
}

// SubWorkflowActor exposes a single `call` action that recurses into a
// named workflow file as an independent sub-interpreter sharing the
// caller's ActorSystem. It holds no reference back to
// whichever Interpreter invoked it; everything it needs travels in on the
// request context as a CallContext.
type SubWorkflowActor struct {
	name string
}

// NewSubWorkflowActor returns a SubWorkflowActor registered under name.
func NewSubWorkflowActor(name string) *SubWorkflowActor {
	return &SubWorkflowActor{name: name}
}

// Name implements actorsystem.Actor.
func (s *SubWorkflowActor) Name() string { return s.name }

// Actions implements actorsystem.Actor.
func (s *SubWorkflowActor) Actions() map[string]actorsystem.Handler {
	return map[string]actorsystem.Handler{
		"call": s.call,
		"doNothing": func(ctx context.Context, argsJSON string) actorsystem.ActionResult {
			return actorsystem.ActionResult{Success: true}
		},
	}
}

func (s *SubWorkflowActor) call(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	args, err := actorsystem.DecodeArgs(argsJSON)
	if err != nil || len(args) < 1 {
		return actorsystem.ActionResult{Success: false, Result: "Error: subWorkflow.call requires a workflow name argument"}
	}

	cc, ok := interpreter.CallContextFrom(ctx)
	if !ok {
		return actorsystem.ActionResult{Success: false, Result: "Error: no call context available for sub-workflow recursion"}
	}
	return interpreter.RunSubWorkflow(ctx, cc, args[0])
}
