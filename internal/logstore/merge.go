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

// ImportSession copies sess, its log rows, and its node_results rows into
// this store as a brand-new session, renumbering the session id (and
// every log/node_result row's foreign key along with it) rather than
// preserving the source database's ids — the `log-merge` command's core
// operation. Runs on the write connection directly, bypassing the
// batched queue: merges are an offline maintenance operation, not a
// concurrent producer, so there is no reason to pay the 100ms poll
// latency a live run relies on.
func (ls *LogStore) ImportSession(ctx context.Context, sess Session, logs []LogRecord, nodeResults []NodeResult) (int64, error) {
	tx, err := ls.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("logstore: import session: begin: %w", err)
	}
	defer tx.Rollback()

	var endedAt any
	if sess.EndedAt != nil {
		endedAt = sess.EndedAt.UTC().Format(time.RFC3339Nano)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions
			(workflow_name, overlay_name, inventory_name, node_count, status,
			 cwd, git_commit, git_branch, command_line, tool_version, tool_commit, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.WorkflowName, sess.OverlayName, sess.InventoryName, sess.NodeCount, string(sess.Status),
		sess.CWD, sess.GitCommit, sess.GitBranch, sess.CommandLine, sess.ToolVersion, sess.ToolCommit,
		sess.StartedAt.UTC().Format(time.RFC3339Nano), endedAt)
	if err != nil {
		return 0, fmt.Errorf("logstore: import session: insert session: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("logstore: import session: session id: %w", err)
	}

	logStmt, err := tx.PrepareContext(ctx, `INSERT INTO logs
		(session_id, timestamp, node_id, label, action_name, level, message, exit_code, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("logstore: import session: prepare logs: %w", err)
	}
	defer logStmt.Close()

	for _, r := range logs {
		if _, err := logStmt.ExecContext(ctx, newID, r.Timestamp.UTC().Format(time.RFC3339Nano), r.NodeID,
			r.Label, r.ActionName, string(r.Level), r.Message, r.ExitCode, r.DurationMS); err != nil {
			return 0, fmt.Errorf("logstore: import session: insert log: %w", err)
		}
	}

	nrStmt, err := tx.PrepareContext(ctx, `INSERT INTO node_results (session_id, node_id, status, reason)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, node_id) DO UPDATE SET status = excluded.status, reason = excluded.reason`)
	if err != nil {
		return 0, fmt.Errorf("logstore: import session: prepare node_results: %w", err)
	}
	defer nrStmt.Close()

	for _, nr := range nodeResults {
		if _, err := nrStmt.ExecContext(ctx, newID, nr.NodeID, string(nr.Status), nr.Reason); err != nil {
			return 0, fmt.Errorf("logstore: import session: insert node_result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("logstore: import session: commit: %w", err)
	}
	return newID, nil
}
