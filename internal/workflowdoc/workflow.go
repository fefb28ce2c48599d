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

// Package workflowdoc holds the immutable Workflow data structure and
// the YAML/JSON/XML loader behind the `run`/`list`/`describe` commands,
// including a `vars` templating pass applied before parsing.
package workflowdoc

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/ironloom/stagehand/pkg/errors"
)

// Guard is a predicate implemented as an action whose result is compared
// against Expect. An empty Expect means only Success must hold.
type Guard struct {
	Actor     string   `yaml:"actor" json:"actor"`
	Method    string   `yaml:"method" json:"method"`
	Arguments []string `yaml:"arguments" json:"arguments"`
	Expect    *string  `yaml:"expect" json:"expect"`
}

// Action is a named call actor.method(args) executed as part of a
// transition.
type Action struct {
	Actor     string   `yaml:"actor" json:"actor"`
	Method    string   `yaml:"method" json:"method"`
	Arguments []string `yaml:"arguments" json:"arguments"`
}

// Transition is a directed edge (From, To) gated by Guards and carrying
// an ordered Actions list.
type Transition struct {
	States    [2]string `yaml:"states" json:"states"`
	Guards    []Guard   `yaml:"guards" json:"guards"`
	Actions   []Action  `yaml:"actions" json:"actions"`
	Label     string    `yaml:"label" json:"label"`
	Note      string    `yaml:"note" json:"note"`
	TimeoutMS int       `yaml:"timeout_ms" json:"timeout_ms"`
}

// From returns the transition's source state.
func (t Transition) From() string { return t.States[0] }

// To returns the transition's destination state.
func (t Transition) To() string { return t.States[1] }

// Workflow is the immutable, parsed state-machine document.
type Workflow struct {
	Name         string            `yaml:"name" json:"name"`
	Description  string            `yaml:"description" json:"description"`
	InitialState string            `yaml:"initial_state" json:"initial_state"`
	Vars         map[string]string `yaml:"vars" json:"vars"`
	Transitions  []Transition      `yaml:"-" json:"-"`

	// Path is the resolved absolute source path, set by Load, not parsed.
	Path string `yaml:"-" json:"-"`
}

// rawDocument mirrors the accepted YAML/JSON shape, which allows either
// `steps` or `transitions` as the sequence key.
type rawDocument struct {
	Name         string            `yaml:"name" json:"name"`
	Description  string            `yaml:"description" json:"description"`
	InitialState string            `yaml:"initial_state" json:"initial_state"`
	Vars         map[string]string `yaml:"vars" json:"vars"`
	Steps        []Transition      `yaml:"steps" json:"steps"`
	Transitions  []Transition      `yaml:"transitions" json:"transitions"`
}

// Parse decodes raw YAML bytes into a Workflow, applying `vars`
// templating and deriving InitialState when absent (the `from` of the
// first transition).
func Parse(raw []byte) (*Workflow, error) {
	rendered, err := renderVars(raw)
	if err != nil {
		return nil, fmt.Errorf("workflowdoc: vars templating: %w", err)
	}

	var doc rawDocument
	if err := yaml.Unmarshal(rendered, &doc); err != nil {
		return nil, fmt.Errorf("workflowdoc: parse: %w", err)
	}

	return finishDocument(doc)
}

// Load reads a workflow document from path and parses it according to its
// extension: `.yaml`/`.yml` through Parse's YAML+vars
// path, `.json` through encoding/json, `.xml` through encoding/xml. The
// resulting Workflow's Path is set to the absolute form of path so
// downstream consumers (the reporter's WorkflowFile section, NodeGroup's
// per-node workflow reuse) always see a stable, comparable location.
func Load(path string) (*Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflowdoc: read %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	var wf *Workflow
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		wf, err = Parse(raw)
	case ".json":
		wf, err = parseJSON(raw)
	case ".xml":
		wf, err = parseXML(raw)
	default:
		return nil, fmt.Errorf("workflowdoc: unsupported workflow file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	wf.Path = abs
	return wf, nil
}

// parseJSON decodes a workflow document expressed as JSON, sharing
// rawDocument's field shape with the YAML path.
func parseJSON(raw []byte) (*Workflow, error) {
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("workflowdoc: parse json: %w", err)
	}
	return finishDocument(doc)
}

// xmlDocument mirrors rawDocument for the XML dialect. encoding/xml can't
// reuse Transition's yaml struct tags (and a [2]string doesn't map onto
// repeated child elements cleanly), so the XML shape gets its own
// element types and is converted to Transition afterward.
type xmlDocument struct {
	XMLName      xml.Name        `xml:"workflow"`
	Name         string          `xml:"name"`
	Description  string          `xml:"description"`
	InitialState string          `xml:"initial_state"`
	Vars         []xmlVar        `xml:"vars>var"`
	Steps        []xmlTransition `xml:"steps>step"`
	Transitions  []xmlTransition `xml:"transitions>transition"`
}

type xmlVar struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlGuard struct {
	Actor     string   `xml:"actor"`
	Method    string   `xml:"method"`
	Arguments []string `xml:"arguments>argument"`
	Expect    *string  `xml:"expect"`
}

type xmlAction struct {
	Actor     string   `xml:"actor"`
	Method    string   `xml:"method"`
	Arguments []string `xml:"arguments>argument"`
}

type xmlTransition struct {
	From      string      `xml:"states>from"`
	To        string      `xml:"states>to"`
	Guards    []xmlGuard  `xml:"guards>guard"`
	Actions   []xmlAction `xml:"actions>action"`
	Label     string      `xml:"label"`
	Note      string      `xml:"note"`
	TimeoutMS int         `xml:"timeout_ms"`
}

func (x xmlTransition) toTransition() Transition {
	guards := make([]Guard, len(x.Guards))
	for i, g := range x.Guards {
		guards[i] = Guard{Actor: g.Actor, Method: g.Method, Arguments: g.Arguments, Expect: g.Expect}
	}
	actions := make([]Action, len(x.Actions))
	for i, a := range x.Actions {
		actions[i] = Action{Actor: a.Actor, Method: a.Method, Arguments: a.Arguments}
	}
	return Transition{
		States:    [2]string{x.From, x.To},
		Guards:    guards,
		Actions:   actions,
		Label:     x.Label,
		Note:      x.Note,
		TimeoutMS: x.TimeoutMS,
	}
}

// parseXML decodes a workflow document expressed as XML.
func parseXML(raw []byte) (*Workflow, error) {
	var x xmlDocument
	if err := xml.Unmarshal(raw, &x); err != nil {
		return nil, fmt.Errorf("workflowdoc: parse xml: %w", err)
	}

	vars := map[string]string{}
	for _, v := range x.Vars {
		vars[v.Name] = v.Value
	}

	toTransitions := func(in []xmlTransition) []Transition {
		out := make([]Transition, len(in))
		for i, t := range in {
			out[i] = t.toTransition()
		}
		return out
	}

	return finishDocument(rawDocument{
		Name:         x.Name,
		Description:  x.Description,
		InitialState: x.InitialState,
		Vars:         vars,
		Steps:        toTransitions(x.Steps),
		Transitions:  toTransitions(x.Transitions),
	})
}

// finishDocument applies the shared steps-or-transitions fallback,
// initial-state inference, and validation that Parse applies after YAML
// decoding, so JSON and XML get identical semantics regardless of which
// format a workflow happens to be written in.
func finishDocument(doc rawDocument) (*Workflow, error) {
	transitions := doc.Transitions
	if len(transitions) == 0 {
		transitions = doc.Steps
	}

	wf := &Workflow{
		Name:         doc.Name,
		Description:  doc.Description,
		InitialState: doc.InitialState,
		Vars:         doc.Vars,
		Transitions:  transitions,
	}

	if wf.InitialState == "" && len(transitions) > 0 {
		wf.InitialState = transitions[0].From()
	}

	if err := Validate(wf); err != nil {
		return nil, err
	}

	return wf, nil
}

// renderVars performs a first-pass `{{.vars.NAME}}` substitution over the
// raw document using Go's text/template, scoped to the `vars` map declared
// at the top of the document. This is intentionally not a general
// programming language: it is a single, one-shot, non-recursive
// substitution pass over string scalars.
func renderVars(raw []byte) ([]byte, error) {
	if !bytes.Contains(raw, []byte("{{")) {
		return raw, nil
	}

	var probe struct {
		Vars map[string]string `yaml:"vars"`
	}
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	tmpl, err := template.New("workflow").Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	data := map[string]any{"vars": probe.Vars}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate enforces that a transition's `from` state must appear
// somewhere in the workflow's state set (the initial state or some
// transition's `to`), plus the basic non-empty shape checks.
func Validate(wf *Workflow) error {
	if wf.InitialState == "" {
		return &errors.ValidationError{
			Field:   "initial_state",
			Message: "initial_state is required (and no transitions to infer it from)",
			Hint:    "set initial_state, or declare at least one transition",
		}
	}

	states := map[string]bool{wf.InitialState: true}
	for _, t := range wf.Transitions {
		if t.From() == "" || t.To() == "" {
			return &errors.ValidationError{
				Field:   "states",
				Message: "transition states must both be non-empty",
			}
		}
		states[t.To()] = true
	}
	for _, t := range wf.Transitions {
		if !states[t.From()] {
			return &errors.ValidationError{
				Field:   "states",
				Message: fmt.Sprintf("transition from state %q is unreachable: not the initial state or any transition's destination", t.From()),
			}
		}
	}
	return nil
}

// IsTerminal reports whether state has no eligible outgoing transition
// possibility at all (no transition declares it as `from`) and its name
// case-insensitively equals "end".
func (wf *Workflow) IsTerminal(state string) bool {
	if !strings.EqualFold(state, "end") {
		return false
	}
	for _, t := range wf.Transitions {
		if t.From() == state {
			return false
		}
	}
	return true
}
