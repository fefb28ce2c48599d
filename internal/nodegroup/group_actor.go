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

package nodegroup

import (
	"context"
	"strconv"

	"github.com/ironloom/stagehand/internal/actorsystem"
	"github.com/ironloom/stagehand/internal/interpreter"
)

// ActorName is the name the fan-out orchestrator is always registered
// under.
const ActorName = "nodeGroup"

// GroupActor exposes a NodeGroup's fan-out operations as actor actions,
// so workflows and the reporter can address the orchestrator the same way
// they address any node.
type GroupActor struct {
	ng *NodeGroup
}

// NewGroupActor wraps ng for registration with an ActorSystem.
func NewGroupActor(ng *NodeGroup) *GroupActor {
	return &GroupActor{ng: ng}
}

// Name implements actorsystem.Actor.
func (g *GroupActor) Name() string { return ActorName }

// Actions implements actorsystem.Actor.
func (g *GroupActor) Actions() map[string]actorsystem.Handler {
	return map[string]actorsystem.Handler{
		"createNodeActors":        g.createNodeActors,
		"applyWorkflowToAllNodes": g.applyWorkflowToAllNodes,
		"runUntilEnd":             g.runUntilEnd,
		"getSessionId":            g.getSessionID,
		"getWorkflowPath":         g.getWorkflowPath,
	}
}

// createNodeActors instantiates per-node shells and interpreters for the
// hosts previously bound with SetHosts, optionally narrowed to a single
// group given as the first argument.
func (g *GroupActor) createNodeActors(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	args, err := actorsystem.DecodeArgs(argsJSON)
	if err != nil {
		return actorsystem.ActionResult{Success: false, Result: "Error: " + err.Error()}
	}
	group := ""
	if len(args) > 0 {
		group = args[0]
	}
	hosts := g.ng.hostsForGroup(group)
	if len(hosts) == 0 {
		return actorsystem.ActionResult{Success: false, Result: "Error: no hosts matched group: " + group}
	}
	if err := g.ng.CreateNodeActors(hosts); err != nil {
		return actorsystem.ActionResult{Success: false, Result: "Error: " + err.Error()}
	}
	return actorsystem.ActionResult{Success: true, Result: strconv.Itoa(len(hosts))}
}

func (g *GroupActor) applyWorkflowToAllNodes(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	args, err := actorsystem.DecodeArgs(argsJSON)
	if err != nil || len(args) < 1 {
		return actorsystem.ActionResult{Success: false, Result: "Error: applyWorkflowToAllNodes requires a workflow path"}
	}
	if err := g.ng.ApplyWorkflowToAllNodes(args[0]); err != nil {
		return actorsystem.ActionResult{Success: false, Result: "Error: " + err.Error()}
	}
	return actorsystem.ActionResult{Success: true}
}

// runUntilEnd drives every node to completion. The optional first
// argument overrides the step budget; concurrency stays bounded by the
// shared user pool either way.
func (g *GroupActor) runUntilEnd(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	args, err := actorsystem.DecodeArgs(argsJSON)
	if err != nil {
		return actorsystem.ActionResult{Success: false, Result: "Error: " + err.Error()}
	}

	maxSteps := g.ng.maxStepsOrDefault()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return actorsystem.ActionResult{Success: false, Result: "Error: runUntilEnd: invalid max_steps: " + args[0]}
		}
		maxSteps = n
	}

	result := g.ng.RunUntilEnd(ctx, maxSteps, 0)
	if !result.Success {
		return actorsystem.ActionResult{Success: false, Result: result.Reason}
	}
	return actorsystem.ActionResult{Success: true}
}

func (g *GroupActor) getSessionID(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	return actorsystem.ActionResult{Success: true, Result: strconv.FormatInt(g.ng.GetSessionID(), 10)}
}

func (g *GroupActor) getWorkflowPath(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	return actorsystem.ActionResult{Success: true, Result: g.ng.GetWorkflowPath()}
}

func (ng *NodeGroup) maxStepsOrDefault() int {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	if ng.maxSteps > 0 {
		return ng.maxSteps
	}
	return interpreter.DefaultMaxSteps
}
