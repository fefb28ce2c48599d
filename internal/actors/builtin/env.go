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
	"os"

	"github.com/ironloom/stagehand/internal/actorsystem"
)

func init() {
	Register("env", func(sys *actorsystem.System, name string) (actorsystem.Actor, error) {
		return NewEnvActor(name), nil
	})
}

// EnvActor is a guard actor exposing has(key)/get(key) over process
// environment variables, for workflow guards like
// `{actor: env, method: has, arguments: [AWS_PROFILE]}`.
type EnvActor struct {
	name string
}

// NewEnvActor returns an EnvActor registered under name.
func NewEnvActor(name string) *EnvActor {
	return &EnvActor{name: name}
}

// Name implements actorsystem.Actor.
func (e *EnvActor) Name() string { return e.name }

// Actions implements actorsystem.Actor.
func (e *EnvActor) Actions() map[string]actorsystem.Handler {
	return map[string]actorsystem.Handler{
		"has": e.has,
		"get": e.get,
	}
}

func (e *EnvActor) has(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	args, err := actorsystem.DecodeArgs(argsJSON)
	if err != nil || len(args) < 1 {
		return actorsystem.ActionResult{Success: false, Result: "Error: env.has requires one argument"}
	}
	_, set := os.LookupEnv(args[0])
	if set {
		return actorsystem.ActionResult{Success: true, Result: "true"}
	}
	return actorsystem.ActionResult{Success: true, Result: "false"}
}

func (e *EnvActor) get(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	args, err := actorsystem.DecodeArgs(argsJSON)
	if err != nil || len(args) < 1 {
		return actorsystem.ActionResult{Success: false, Result: "Error: env.get requires one argument"}
	}
	return actorsystem.ActionResult{Success: true, Result: os.Getenv(args[0])}
}
