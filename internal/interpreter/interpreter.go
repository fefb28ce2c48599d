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

// Package interpreter implements the guarded state-machine executor:
// transition selection, action invocation, step budget, hooks, and
// sub-workflow recursion. Remote execution and action dispatch are
// injected, never reached for directly, so the same Interpreter drives a
// remote host, an in-process service, or a plugin.
package interpreter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ironloom/stagehand/internal/actorsystem"
	"github.com/ironloom/stagehand/internal/metrics"
	"github.com/ironloom/stagehand/internal/workflowdoc"
)

// DefaultMaxSteps is the parent interpreter's step budget.
const DefaultMaxSteps = 10000

// DefaultSubWorkflowMaxSteps is the budget a sub-workflow call runs with
// when the caller does not override it. Sub-interpreters get their own,
// smaller default rather than inheriting the parent's step budget.
const DefaultSubWorkflowMaxSteps = 1000

// StepKind classifies a single step() outcome.
type StepKind int

const (
	// KindProgressed means a transition was selected and fully executed.
	KindProgressed StepKind = iota
	// KindTerminated means the interpreter was already in a terminal state.
	KindTerminated
	// KindNoEligibleTransition means no transition's guards all held.
	KindNoEligibleTransition
	// KindFailed means an action in the selected transition failed, or the
	// step budget was exhausted.
	KindFailed
)

// StepOutcome is the result of a single step() call.
type StepOutcome struct {
	Kind   StepKind
	From   string // set for KindProgressed
	To     string // set for KindProgressed
	State  string // set for KindNoEligibleTransition
	Reason string // set for KindFailed
}

// ActionLogger receives a structured record for every action invocation
// and transition, destined for LogStore. It intentionally mirrors
// LogRecord's shape without importing the logstore package, so the
// interpreter has no dependency on persistence.
type ActionLogger interface {
	LogAction(nodeID, label, actionName string, level string, message string, exitCode *int, durationMS *int64)
}

// Hooks are optional callbacks invoked around transition execution in
// place of a subclass-based extension point: composition over
// inheritance.
type Hooks struct {
	OnEnterTransition func(t workflowdoc.Transition)
	OnExitTransition  func(t workflowdoc.Transition, outcome StepOutcome)
}

// SubWorkflowLoader resolves and parses a sub-workflow file referenced by
// name from the current workflow's base directory.
type SubWorkflowLoader func(baseDir, name string) (*workflowdoc.Workflow, error)

// Interpreter drives one Workflow through its states for one node. It
// exclusively owns its own state and step counter; it is never shared
// between nodes.
type Interpreter struct {
	NodeID string // e.g. "cli", "nodeGroup", "node-<host>"

	system *actorsystem.System
	logger ActionLogger
	hooks  Hooks

	workflowBaseDir string
	overlayDir      string
	loadWorkflow    SubWorkflowLoader
	subMaxSteps     int

	wf        *workflowdoc.Workflow
	state     string
	stepCount int
}

// New constructs an Interpreter bound to an ActorSystem and log sink.
func New(nodeID string, system *actorsystem.System, logger ActionLogger) *Interpreter {
	return &Interpreter{
		NodeID:      nodeID,
		system:      system,
		logger:      logger,
		subMaxSteps: DefaultSubWorkflowMaxSteps,
	}
}

// WithHooks sets the onEnter/onExit hook table.
func (it *Interpreter) WithHooks(h Hooks) *Interpreter { it.hooks = h; return it }

// WithWorkflowBaseDir sets the directory sub-workflow calls resolve
// relative to.
func (it *Interpreter) WithWorkflowBaseDir(dir string) *Interpreter { it.workflowBaseDir = dir; return it }

// WithOverlayDir sets the overlay directory passed to the loader actor.
func (it *Interpreter) WithOverlayDir(dir string) *Interpreter { it.overlayDir = dir; return it }

// WithSubWorkflowLoader installs the resolver used by `call(workflow_name)`
// actions to construct nested interpreters.
func (it *Interpreter) WithSubWorkflowLoader(l SubWorkflowLoader) *Interpreter {
	it.loadWorkflow = l
	return it
}

// WithSubWorkflowMaxSteps overrides the step budget given to sub-workflows
// that this interpreter's actions call.
func (it *Interpreter) WithSubWorkflowMaxSteps(n int) *Interpreter { it.subMaxSteps = n; return it }

// OverlayDir returns the overlay directory configured for this interpreter.
func (it *Interpreter) OverlayDir() string { return it.overlayDir }

// State returns the interpreter's current state.
func (it *Interpreter) State() string { return it.state }

// StepCount returns the number of transitions executed so far.
func (it *Interpreter) StepCount() int { return it.stepCount }

// Load assigns wf and resets state to wf.InitialState, step_count to 0.
func (it *Interpreter) Load(wf *workflowdoc.Workflow) {
	it.wf = wf
	it.state = wf.InitialState
	it.stepCount = 0
}

// Step advances the interpreter by exactly one transition, or reports
// why it could not.
func (it *Interpreter) Step(ctx context.Context, maxSteps int) StepOutcome {
	if it.wf.IsTerminal(it.state) {
		metrics.RecordInterpreterStep(it.NodeID, "terminated")
		return StepOutcome{Kind: KindTerminated}
	}
	if it.stepCount >= maxSteps {
		metrics.RecordInterpreterStep(it.NodeID, "failed")
		return StepOutcome{Kind: KindFailed, Reason: "max steps exceeded"}
	}

	selected, selectedIdx := it.selectTransition()
	if selectedIdx < 0 {
		metrics.RecordInterpreterStep(it.NodeID, "no_eligible_transition")
		return StepOutcome{Kind: KindNoEligibleTransition, State: it.state}
	}

	if it.hooks.OnEnterTransition != nil {
		it.hooks.OnEnterTransition(selected)
	}

	from := selected.From()
	to := selected.To()

	callCtx := it.withCallContext(ctx)

	for _, action := range selected.Actions {
		start := time.Now()
		argsJSON := actorsystem.FormatArgs(action.Arguments...)
		result := it.dispatchAction(callCtx, selected, action, argsJSON)
		duration := time.Since(start).Milliseconds()

		it.logActionResult(selected, action, result, duration)

		if !result.Success {
			outcome := StepOutcome{Kind: KindFailed, Reason: result.Result}
			it.emitTransitionLog(from, to, selected.Note, false, result.Result)
			metrics.RecordInterpreterStep(it.NodeID, "failed")
			if it.hooks.OnExitTransition != nil {
				it.hooks.OnExitTransition(selected, outcome)
			}
			return outcome
		}
	}

	it.state = to
	it.stepCount++
	it.emitTransitionLog(from, to, selected.Note, true, "")
	metrics.RecordInterpreterStep(it.NodeID, "progressed")

	outcome := StepOutcome{Kind: KindProgressed, From: from, To: to}
	if it.hooks.OnExitTransition != nil {
		it.hooks.OnExitTransition(selected, outcome)
	}
	return outcome
}

// dispatchAction invokes the action's actor.method, bounding the call by
// the transition's timeout_ms when set. A timeout expiring before the
// actor replies is reported exactly like any other action failure, with
// result "timeout".
func (it *Interpreter) dispatchAction(ctx context.Context, t workflowdoc.Transition, action workflowdoc.Action, argsJSON string) actorsystem.ActionResult {
	if t.TimeoutMS <= 0 {
		return it.system.CallByActionName(ctx, action.Actor, action.Method, argsJSON)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.TimeoutMS)*time.Millisecond)
	defer cancel()

	type reply struct{ result actorsystem.ActionResult }
	done := make(chan reply, 1)
	go func() {
		done <- reply{it.system.CallByActionName(timeoutCtx, action.Actor, action.Method, argsJSON)}
	}()

	select {
	case r := <-done:
		return r.result
	case <-timeoutCtx.Done():
		return actorsystem.ActionResult{Success: false, Result: "timeout"}
	}
}

// withCallContext attaches this interpreter's CallContext so nested actor
// actions (notably `subWorkflow.call`) can recurse without a back-pointer.
func (it *Interpreter) withCallContext(ctx context.Context) context.Context {
	return withCallContext(ctx, CallContext{
		System:       it.system,
		Logger:       it.logger,
		NodeID:       it.NodeID,
		BaseDir:      it.workflowBaseDir,
		OverlayDir:   it.overlayDir,
		SubMaxSteps:  it.subMaxSteps,
		LoadWorkflow: it.loadWorkflow,
	})
}

// selectTransition iterates transitions in declaration order and returns
// the first whose From matches the current state and whose guards all
// hold. Selection is deterministic: ties broken by declaration order.
func (it *Interpreter) selectTransition() (workflowdoc.Transition, int) {
	for i, t := range it.wf.Transitions {
		if t.From() != it.state {
			continue
		}
		if it.guardsHold(t.Guards) {
			return t, i
		}
	}
	return workflowdoc.Transition{}, -1
}

// guardsHold evaluates guards in order, stopping at the first failure.
func (it *Interpreter) guardsHold(guards []workflowdoc.Guard) bool {
	callCtx := it.withCallContext(context.Background())
	for _, g := range guards {
		argsJSON := actorsystem.FormatArgs(g.Arguments...)
		result := it.system.CallByActionName(callCtx, g.Actor, g.Method, argsJSON)
		if !result.Success {
			return false
		}
		if g.Expect != nil && result.Result != *g.Expect {
			return false
		}
	}
	return true
}

// RunUntilEnd drives Step repeatedly until a terminal state is reached, a
// transition fails, no eligible transition exists, or maxSteps is hit.
func (it *Interpreter) RunUntilEnd(ctx context.Context, maxSteps int) actorsystem.ActionResult {
	for {
		outcome := it.Step(ctx, maxSteps)
		switch outcome.Kind {
		case KindTerminated:
			return actorsystem.ActionResult{Success: true, Result: "terminated"}
		case KindNoEligibleTransition:
			reason := fmt.Sprintf("no eligible transition from %s", outcome.State)
			it.logError(reason)
			return actorsystem.ActionResult{Success: false, Result: reason}
		case KindFailed:
			it.logError(outcome.Reason)
			return actorsystem.ActionResult{Success: false, Result: outcome.Reason}
		case KindProgressed:
			// continue looping
		}
	}
}

func (it *Interpreter) logActionResult(t workflowdoc.Transition, a workflowdoc.Action, result actorsystem.ActionResult, durationMS int64) {
	if it.logger == nil {
		return
	}
	level := "INFO"
	if !result.Success {
		level = "ERROR"
	}
	actionName := fmt.Sprintf("%s.%s", a.Actor, a.Method)
	label := transitionLabel(t)
	dur := durationMS
	it.logger.LogAction(it.NodeID, label, actionName, level, result.Result, nil, &dur)
}

// emitTransitionLog records the per-transition summary row the reporter's
// TransitionHistory section parses back out: "Transition
// <from>→<to>: SUCCESS" / "... FAILED - <reason>", with an optional
// " [<note>]" suffix carrying the transition's declared note.
func (it *Interpreter) emitTransitionLog(from, to, note string, success bool, reason string) {
	if it.logger == nil {
		return
	}
	msg := fmt.Sprintf("Transition %s→%s: SUCCESS", from, to)
	level := "INFO"
	if !success {
		msg = fmt.Sprintf("Transition %s→%s: FAILED - %s", from, to, reason)
		level = "ERROR"
	}
	if note != "" {
		msg = fmt.Sprintf("%s [%s]", msg, note)
	}
	it.logger.LogAction(it.NodeID, "", "", level, msg, nil, nil)
}

func (it *Interpreter) logError(reason string) {
	if it.logger == nil {
		return
	}
	it.logger.LogAction(it.NodeID, "", "", "ERROR", reason, nil, nil)
}

// transitionLabel renders the first few lines of the transition as a short
// YAML-like excerpt for the log record's label field.
func transitionLabel(t workflowdoc.Transition) string {
	lines := []string{
		fmt.Sprintf("states: [%s, %s]", t.From(), t.To()),
	}
	if t.Label != "" {
		lines = append(lines, fmt.Sprintf("label: %s", t.Label))
	}
	if t.Note != "" {
		lines = append(lines, fmt.Sprintf("note: %s", t.Note))
	}
	const maxLines = 5
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return strings.Join(lines, "\n")
}
