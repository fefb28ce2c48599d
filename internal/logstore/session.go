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

package logstore

import (
	"context"
	"fmt"
	"time"
)

// OpenSessionParams carries the provenance fields recorded with a new
// session row.
type OpenSessionParams struct {
	WorkflowName  string
	OverlayName   string
	InventoryName string
	NodeCount     int
	CWD           string
	GitCommit     string
	GitBranch     string
	CommandLine   string
	ToolVersion   string
	ToolCommit    string
}

// OpenSession inserts a new RUNNING session row directly on the write
// connection (session bookkeeping is low-volume and not worth routing
// through the batched queue) and returns its id.
func (ls *LogStore) OpenSession(ctx context.Context, p OpenSessionParams) (int64, error) {
	res, err := ls.writeDB.ExecContext(ctx, `
		INSERT INTO sessions
			(workflow_name, overlay_name, inventory_name, node_count, status,
			 cwd, git_commit, git_branch, command_line, tool_version, tool_commit, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.WorkflowName, p.OverlayName, p.InventoryName, p.NodeCount, string(SessionRunning),
		p.CWD, p.GitCommit, p.GitBranch, p.CommandLine, p.ToolVersion, p.ToolCommit,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("logstore: open session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("logstore: open session: %w", err)
	}
	return id, nil
}

// RecordNodeResult upserts the terminal verdict for one node within a
// session: at most one row per session/node pair.
func (ls *LogStore) RecordNodeResult(ctx context.Context, sessionID int64, nodeID string, status NodeResultStatus, reason string) error {
	_, err := ls.writeDB.ExecContext(ctx, `
		INSERT INTO node_results (session_id, node_id, status, reason)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, node_id) DO UPDATE SET status = excluded.status, reason = excluded.reason`,
		sessionID, nodeID, string(status), reason)
	if err != nil {
		return fmt.Errorf("logstore: record node result: %w", err)
	}
	return nil
}
