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

package accumulator

import (
	"context"

	"github.com/ironloom/stagehand/internal/actorsystem"
)

// ActorName is the name the multiplexer is always registered under, so
// workflow actions can emit output the same way they call any other actor.
const ActorName = "outputMultiplexer"

// MultiplexerActor exposes a Multiplexer as the distinguished
// `outputMultiplexer` actor: its `add` action delegates the
// (source, type, data) triple to every attached sink.
type MultiplexerActor struct {
	mux *Multiplexer
}

// NewMultiplexerActor wraps mux for registration with an ActorSystem.
func NewMultiplexerActor(mux *Multiplexer) *MultiplexerActor {
	return &MultiplexerActor{mux: mux}
}

// Name implements actorsystem.Actor.
func (a *MultiplexerActor) Name() string { return ActorName }

// Actions implements actorsystem.Actor.
func (a *MultiplexerActor) Actions() map[string]actorsystem.Handler {
	return map[string]actorsystem.Handler{
		"add": a.add,
	}
}

func (a *MultiplexerActor) add(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	args, err := actorsystem.DecodeArgs(argsJSON)
	if err != nil || len(args) < 3 {
		return actorsystem.ActionResult{Success: false, Result: "Error: outputMultiplexer.add requires [source, type, data]"}
	}
	if err := a.mux.Add(args[0], OutputType(args[1]), args[2]); err != nil {
		return actorsystem.ActionResult{Success: false, Result: "Error: " + err.Error()}
	}
	return actorsystem.ActionResult{Success: true}
}
