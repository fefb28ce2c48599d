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

// Package reporter composes the post-execution report: an ordered
// pipeline of section builders reading from LogStore, joined into one
// string and routed back through the output multiplexer.
package reporter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ironloom/stagehand/internal/accumulator"
	"github.com/ironloom/stagehand/internal/logstore"
)

// DefaultTargetNode is the node id TransitionHistory renders for when the
// caller does not narrow it, the aggregate fan-out actor.
const DefaultTargetNode = "nodeGroup"

// ReportContext carries everything a Section needs: the log database, the
// session being reported on, and the workflow document fields that do not
// live in the database.
type ReportContext struct {
	Store               *logstore.LogStore
	SessionID           int64
	WorkflowName        string
	WorkflowFile        string
	WorkflowDescription string
	TargetNode          string
	IncludeChildren     bool
}

func (rc ReportContext) targetNode() string {
	if rc.TargetNode == "" {
		return DefaultTargetNode
	}
	return rc.TargetNode
}

// Section is one report component. Order breaks ties by ascending value;
// Generate returning "" suppresses the section entirely.
type Section interface {
	Order() int
	Name() string
	Generate(ctx context.Context, rc ReportContext) (string, error)
}

// sectionFunc adapts a plain function into a Section, so each section can
// be a small closure instead of a dedicated struct type.
type sectionFunc struct {
	order int
	name  string
	fn    func(ctx context.Context, rc ReportContext) (string, error)
}

func (s sectionFunc) Order() int   { return s.order }
func (s sectionFunc) Name() string { return s.name }
func (s sectionFunc) Generate(ctx context.Context, rc ReportContext) (string, error) {
	return s.fn(ctx, rc)
}

// DefaultSections returns the six required section builders.
func DefaultSections() []Section {
	return []Section{
		sectionFunc{order: 100, name: "WorkflowName", fn: workflowNameSection},
		sectionFunc{order: 105, name: "WorkflowFile", fn: workflowFileSection},
		sectionFunc{order: 110, name: "WorkflowDescription", fn: workflowDescriptionSection},
		sectionFunc{order: 500, name: "CheckResults", fn: checkResultsSection},
		sectionFunc{order: 550, name: "TransitionHistory", fn: transitionHistorySection},
		sectionFunc{order: 600, name: "GpuSummary", fn: gpuSummarySection},
	}
}

// Reporter composes a ReportContext into one string through its section
// pipeline and, optionally, republishes it through a Multiplexer.
type Reporter struct {
	sections []Section
}

// New builds a Reporter over sections, defaulting to DefaultSections when
// none are given.
func New(sections ...Section) *Reporter {
	if len(sections) == 0 {
		sections = DefaultSections()
	}
	cp := make([]Section, len(sections))
	copy(cp, sections)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Order() < cp[j].Order() })
	return &Reporter{sections: cp}
}

// Compose runs every section in order, drops the empty ones, and joins the
// survivors with a blank line.
func (r *Reporter) Compose(ctx context.Context, rc ReportContext) (string, error) {
	var parts []string
	for _, s := range r.sections {
		text, err := s.Generate(ctx, rc)
		if err != nil {
			return "", fmt.Errorf("reporter: section %s: %w", s.Name(), err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// Report composes rc and, if the result is non-empty, routes it through mux
// as source=workflow-reporter, type=plugin-result.
func (r *Reporter) Report(ctx context.Context, mux *accumulator.Multiplexer, rc ReportContext) error {
	text, err := r.Compose(ctx, rc)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return mux.Add("workflow-reporter", accumulator.TypePluginResult, text)
}
