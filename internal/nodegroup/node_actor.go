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

	"github.com/ironloom/stagehand/internal/actorsystem"
)

// nodeActor is the `node-<hostname>` actor workflows address
// directly. It wraps the node's RemoteShell so transition
// actions/guards can run commands on the host without the interpreter
// ever holding a reference to the shell itself.
type nodeActor struct {
	name   string
	handle *nodeHandle
}

// Name implements actorsystem.Actor.
func (n *nodeActor) Name() string { return n.name }

// Actions implements actorsystem.Actor.
func (n *nodeActor) Actions() map[string]actorsystem.Handler {
	return map[string]actorsystem.Handler{
		"run": n.run,
	}
}

// run executes a single command on the node's shell. Success is exit code
// zero; the returned result carries stdout on success, stderr on failure
// so transition failure reasons surface something useful in the log.
func (n *nodeActor) run(ctx context.Context, argsJSON string) actorsystem.ActionResult {
	args, err := actorsystem.DecodeArgs(argsJSON)
	if err != nil || len(args) < 1 {
		return actorsystem.ActionResult{Success: false, Result: "Error: node.run requires a command argument"}
	}

	res, err := n.handle.shell.Run(ctx, args[0])
	if err != nil {
		return actorsystem.ActionResult{Success: false, Result: "Error: " + err.Error()}
	}
	if res.ExitCode != 0 {
		return actorsystem.ActionResult{Success: false, Result: res.Stderr}
	}
	return actorsystem.ActionResult{Success: true, Result: res.Stdout}
}
