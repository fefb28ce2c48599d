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

package interpreter

import (
	"context"

	"github.com/ironloom/stagehand/internal/actorsystem"
)

type ctxKey struct{}

// CallContext is the ambient information an actor action (in particular the
// `subWorkflow` actor's `call` handler) needs to recurse into a fresh
// Interpreter sharing the caller's ActorSystem, without the actor holding a
// back-pointer to the interpreter that invoked it: actors hold a
// non-owning handle, never a back-pointer to an owner.
type CallContext struct {
	System       *actorsystem.System
	Logger       ActionLogger
	NodeID       string
	BaseDir      string
	OverlayDir   string
	SubMaxSteps  int
	LoadWorkflow SubWorkflowLoader
}

// withCallContext returns a context carrying cc.
func withCallContext(ctx context.Context, cc CallContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, cc)
}

// CallContextFrom extracts the CallContext previously attached by the
// Interpreter driving the current action, if any.
func CallContextFrom(ctx context.Context) (CallContext, bool) {
	cc, ok := ctx.Value(ctxKey{}).(CallContext)
	return cc, ok
}

// RunSubWorkflow resolves, loads, and runs name to completion as an
// independent sub-interpreter sharing cc.System, then discards it. It is
// the implementation the `subWorkflow` actor's `call` action delegates to.
func RunSubWorkflow(ctx context.Context, cc CallContext, name string) actorsystem.ActionResult {
	if cc.LoadWorkflow == nil {
		return actorsystem.ActionResult{Success: false, Result: "Error: no sub-workflow loader configured"}
	}

	wf, err := cc.LoadWorkflow(cc.BaseDir, name)
	if err != nil {
		return actorsystem.ActionResult{Success: false, Result: "Error: " + err.Error()}
	}

	budget := cc.SubMaxSteps
	if budget <= 0 {
		budget = DefaultSubWorkflowMaxSteps
	}

	sub := New(cc.NodeID, cc.System, cc.Logger).
		WithWorkflowBaseDir(cc.BaseDir).
		WithOverlayDir(cc.OverlayDir).
		WithSubWorkflowLoader(cc.LoadWorkflow).
		WithSubWorkflowMaxSteps(budget)
	sub.Load(wf)

	return sub.RunUntilEnd(ctx, budget)
}
