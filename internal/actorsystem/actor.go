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

// Package actorsystem implements the named-actor registry and per-actor
// single-writer mailbox discipline that the workflow interpreter dispatches
// through. Actors never share memory; every cross-actor effect is a
// message exchange mediated by the System.
package actorsystem

import (
	"context"
	"encoding/json"
	"fmt"
)

// ActionResult is the universal contract returned by every actor action.
// Success is carried as a bool; Result is a free-form string payload. This
// uniform, language-neutral edge is what lets the interpreter dispatch to
// remote hosts, in-process services, and plugins without caring which.
type ActionResult struct {
	Success bool
	Result  string
}

// Handler is an action implementation registered against a method name.
// argsJSON is the compact JSON-array encoding of the caller's arguments
// (see Interpreter's Action formatting); handlers parse it themselves.
type Handler func(ctx context.Context, argsJSON string) ActionResult

// Actor is a named, stateful entity with a single-consumer mailbox. State is
// owned exclusively by the actor implementation; the System never reaches
// into it directly, only through dispatch.
type Actor interface {
	// Name returns the actor's registered name.
	Name() string

	// Actions returns the method-name to Handler table. Called once at
	// registration; the returned map is treated as immutable afterwards.
	Actions() map[string]Handler
}

// mailboxMsg is a single enqueued unit of work: an action invocation whose
// result is delivered over reply.
type mailboxMsg struct {
	ctx      context.Context
	action   string
	argsJSON string
	reply    chan ActionResult
}

// FormatArgs renders args as the compact JSON array the dispatch contract
// requires (e.g. ["deploy.yaml"]).
func FormatArgs(args ...string) string {
	b, err := json.Marshal(args)
	if err != nil {
		// args are always strings; Marshal of []string cannot fail.
		return "[]"
	}
	return string(b)
}

// DecodeArgs parses the compact JSON array produced by FormatArgs.
func DecodeArgs(argsJSON string) ([]string, error) {
	if argsJSON == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(argsJSON), &out); err != nil {
		return nil, fmt.Errorf("actorsystem: invalid argument encoding: %w", err)
	}
	return out, nil
}
