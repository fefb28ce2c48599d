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

// Package nodegroup implements the per-node fan-out scheduler: one
// RemoteShell + Interpreter pair per inventory host, run concurrently and
// aggregated into a single pass/fail verdict without one node's failure
// interrupting its siblings.
package nodegroup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ironloom/stagehand/internal/accumulator"
	"github.com/ironloom/stagehand/internal/actorsystem"
	"github.com/ironloom/stagehand/internal/interpreter"
	"github.com/ironloom/stagehand/internal/inventory"
	"github.com/ironloom/stagehand/internal/logstore"
	"github.com/ironloom/stagehand/internal/remoteshell"
	"github.com/ironloom/stagehand/internal/workflowdoc"
)

// NodeFactory builds the RemoteShell + Interpreter pair for one inventory
// host. Separated out so NodeGroup does not need to know how to dial SSH
// or load workflows itself.
type NodeFactory func(host inventory.Host) (remoteshell.Shell, *interpreter.Interpreter, error)

// WorkflowLoader loads and parses the workflow document at path.
type WorkflowLoader func(path string) (*workflowdoc.Workflow, error)

// NodeResult is one node's terminal outcome, mirroring logstore.NodeResult
// without a storage dependency.
type NodeResult struct {
	NodeID string
	Status logstore.NodeResultStatus
	Reason string
}

// NodeGroup is registered as a single actor ("nodeGroup") exposing the
// fan-out operations as actions; it is also usable directly as a
// plain Go value for callers that do not need actor dispatch (e.g. tests).
type NodeGroup struct {
	mu          sync.Mutex
	sys         *actorsystem.System
	store       *logstore.LogStore
	mux         *accumulator.Multiplexer
	factory     NodeFactory
	loadWF      WorkflowLoader
	sessionID   int64
	workflowPth string
	maxSteps    int

	hosts []inventory.Host
	nodes map[string]*nodeHandle
}

type nodeHandle struct {
	hostname string
	shell    remoteshell.Shell
	it       *interpreter.Interpreter
}

// New creates an empty NodeGroup. factory builds the shell+interpreter
// pair for each host; store and mux are where per-node outcomes and
// output are recorded.
func New(sys *actorsystem.System, store *logstore.LogStore, mux *accumulator.Multiplexer, factory NodeFactory, loadWF WorkflowLoader) *NodeGroup {
	return &NodeGroup{
		sys:     sys,
		store:   store,
		mux:     mux,
		factory: factory,
		loadWF:  loadWF,
		nodes:   map[string]*nodeHandle{},
	}
}

// SetSession binds the session id that node_results rows are recorded
// against.
func (ng *NodeGroup) SetSession(sessionID int64) {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	ng.sessionID = sessionID
}

// SetHosts records the candidate inventory the actor-facing
// createNodeActors action draws from when it is invoked with a group name
// instead of an explicit host list.
func (ng *NodeGroup) SetHosts(hosts []inventory.Host) {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	ng.hosts = hosts
}

// SetMaxSteps sets the step budget the actor-facing runUntilEnd action
// uses when its argument list omits one.
func (ng *NodeGroup) SetMaxSteps(n int) {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	ng.maxSteps = n
}

// hostsForGroup returns the stored hosts belonging to group, or all of
// them when group is empty.
func (ng *NodeGroup) hostsForGroup(group string) []inventory.Host {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	if group == "" {
		return ng.hosts
	}
	var out []inventory.Host
	for _, h := range ng.hosts {
		for _, g := range h.Groups {
			if g == group {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// CreateNodeActors instantiates a RemoteShell + Interpreter per host in
// hosts and registers each as `node-<hostname>`.
// An empty hosts slice (e.g. after a host-limit with no matches) is
// rejected by the caller before reaching here (inventory.WithHostLimit
// already returns a hard error in that case).
func (ng *NodeGroup) CreateNodeActors(hosts []inventory.Host) error {
	ng.mu.Lock()
	defer ng.mu.Unlock()

	for _, h := range hosts {
		shell, it, err := ng.factory(h)
		if err != nil {
			return fmt.Errorf("nodegroup: create node %s: %w", h.Hostname, err)
		}
		name := "node-" + h.Hostname
		handle := &nodeHandle{hostname: h.Hostname, shell: shell, it: it}
		ng.nodes[name] = handle
		ng.sys.Register(&nodeActor{name: name, handle: handle})
	}
	return nil
}

// GetSessionID implements the reporter accessor.
func (ng *NodeGroup) GetSessionID() int64 {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	return ng.sessionID
}

// GetWorkflowPath implements the reporter accessor.
func (ng *NodeGroup) GetWorkflowPath() string {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	return ng.workflowPth
}

// ApplyWorkflowToAllNodes loads the workflow at path once and assigns it
// to every created node's Interpreter.
func (ng *NodeGroup) ApplyWorkflowToAllNodes(path string) error {
	wf, err := ng.loadWF(path)
	if err != nil {
		return fmt.Errorf("nodegroup: load workflow %s: %w", path, err)
	}

	ng.mu.Lock()
	ng.workflowPth = path
	handles := make([]*nodeHandle, 0, len(ng.nodes))
	for _, h := range ng.nodes {
		handles = append(handles, h)
	}
	ng.mu.Unlock()

	for _, h := range handles {
		h.it.Load(wf)
	}
	return nil
}

// RunUntilEndResult is the aggregate outcome of RunUntilEnd.
type RunUntilEndResult struct {
	Success bool
	Reason  string
	Nodes   []NodeResult
}

// RunUntilEnd runs every node's Interpreter to completion concurrently,
// at most concurrency nodes at a time via errgroup's SetLimit (all nodes
// at once when concurrency <= 0), and aggregates the per-node verdicts. Blocks until every
// per-node task completes.
//
// One node's failure never cancels its siblings: each goroutine always
// returns nil to the errgroup so errgroup.WithContext's context is never
// cancelled early: its SetLimit is used purely as a concurrency gate here,
// never its fail-fast error propagation.
func (ng *NodeGroup) RunUntilEnd(ctx context.Context, maxSteps, concurrency int) RunUntilEndResult {
	ng.mu.Lock()
	handles := make([]*nodeHandle, 0, len(ng.nodes))
	for _, h := range ng.nodes {
		handles = append(handles, h)
	}
	sessionID := ng.sessionID
	ng.mu.Unlock()

	if concurrency <= 0 {
		concurrency = len(handles)
	}

	results := make([]NodeResult, len(handles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			results[i] = ng.runNode(gctx, sessionID, h, maxSteps)
			return nil
		})
	}
	_ = g.Wait()

	return aggregate(results)
}

func (ng *NodeGroup) runNode(ctx context.Context, sessionID int64, h *nodeHandle, maxSteps int) NodeResult {
	outcome := h.it.RunUntilEnd(ctx, maxSteps)

	status := logstore.NodeSuccess
	reason := ""
	if !outcome.Success {
		status = logstore.NodeFailed
		reason = outcome.Result
	}

	if ng.store != nil {
		if err := ng.store.RecordNodeResult(ctx, sessionID, h.hostname, status, reason); err != nil {
			ng.mux.Add("nodeGroup", accumulator.LogType("WARNING"), err.Error())
		}
	}

	return NodeResult{NodeID: h.hostname, Status: status, Reason: reason}
}

func aggregate(results []NodeResult) RunUntilEndResult {
	var failed []NodeResult
	for _, r := range results {
		if r.Status == logstore.NodeFailed {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return RunUntilEndResult{Success: true, Nodes: results}
	}

	names := make([]string, 0, len(failed))
	for _, f := range failed {
		names = append(names, f.NodeID)
	}
	sort.Strings(names)
	reason := fmt.Sprintf("%d of %d nodes failed: [%s]", len(failed), len(results), strings.Join(names, ", "))
	return RunUntilEndResult{Success: false, Reason: reason, Nodes: results}
}
