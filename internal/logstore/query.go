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
	"database/sql"
	"fmt"
	"time"
)

// LatestSessionID returns the highest session id, or 0 if none exist.
func (ls *LogStore) LatestSessionID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := ls.readDB.QueryRowContext(ctx, `SELECT MAX(id) FROM sessions`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("logstore: latest session id: %w", err)
	}
	return id.Int64, nil
}

// ListSessions returns the most recent limit sessions, newest first. A
// non-positive limit means unbounded.
func (ls *LogStore) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	return ls.ListSessionsFiltered(ctx, SessionFilter{Limit: limit})
}

// ListSessionsFiltered applies the optional constraints in f.
func (ls *LogStore) ListSessionsFiltered(ctx context.Context, f SessionFilter) ([]Session, error) {
	query := `SELECT id, workflow_name, overlay_name, inventory_name, node_count, status,
		cwd, git_commit, git_branch, command_line, tool_version, tool_commit, started_at, ended_at
		FROM sessions WHERE 1=1`
	var args []any

	if f.WorkflowName != "" {
		query += " AND workflow_name = ?"
		args = append(args, f.WorkflowName)
	}
	if f.OverlayName != "" {
		query += " AND overlay_name = ?"
		args = append(args, f.OverlayName)
	}
	if f.InventoryName != "" {
		query += " AND inventory_name = ?"
		args = append(args, f.InventoryName)
	}
	if f.StartedAfter != nil {
		query += " AND started_at >= ?"
		args = append(args, f.StartedAfter.UTC().Format(time.RFC3339Nano))
	}
	if f.EndedAfter != nil {
		query += " AND ended_at >= ?"
		args = append(args, f.EndedAfter.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY started_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := ls.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("logstore: list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSession(rows *sql.Rows) (Session, error) {
	var s Session
	var overlay, inventory, cwd, gitCommit, gitBranch, cmdLine, toolVersion, toolCommit sql.NullString
	var startedAt string
	var endedAt sql.NullString
	if err := rows.Scan(&s.ID, &s.WorkflowName, &overlay, &inventory, &s.NodeCount, &s.Status,
		&cwd, &gitCommit, &gitBranch, &cmdLine, &toolVersion, &toolCommit, &startedAt, &endedAt); err != nil {
		return Session{}, fmt.Errorf("logstore: scan session: %w", err)
	}
	s.OverlayName, s.InventoryName, s.CWD = overlay.String, inventory.String, cwd.String
	s.GitCommit, s.GitBranch, s.CommandLine = gitCommit.String, gitBranch.String, cmdLine.String
	s.ToolVersion, s.ToolCommit = toolVersion.String, toolCommit.String
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		s.StartedAt = t
	}
	if endedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, endedAt.String); err == nil {
			s.EndedAt = &t
		}
	}
	return s, nil
}

// GetLogsByNode returns every log row for session scoped to node, oldest
// first.
func (ls *LogStore) GetLogsByNode(ctx context.Context, sessionID int64, nodeID string) ([]LogRecord, error) {
	rows, err := ls.readDB.QueryContext(ctx, `
		SELECT id, session_id, timestamp, node_id, label, action_name, level, message, exit_code, duration_ms
		FROM logs WHERE session_id = ? AND node_id = ? ORDER BY id ASC`, sessionID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("logstore: get logs by node: %w", err)
	}
	defer rows.Close()
	return scanLogRows(rows)
}

// GetLogsByLevel returns every log row at or above minLevel for a session.
func (ls *LogStore) GetLogsByLevel(ctx context.Context, sessionID int64, minLevel Level) ([]LogRecord, error) {
	rows, err := ls.readDB.QueryContext(ctx, `
		SELECT id, session_id, timestamp, node_id, label, action_name, level, message, exit_code, duration_ms
		FROM logs WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("logstore: get logs by level: %w", err)
	}
	defer rows.Close()

	all, err := scanLogRows(rows)
	if err != nil {
		return nil, err
	}
	threshold := levelRank[minLevel]
	var out []LogRecord
	for _, r := range all {
		if levelRank[r.Level] >= threshold {
			out = append(out, r)
		}
	}
	return out, nil
}

func scanLogRows(rows *sql.Rows) ([]LogRecord, error) {
	var out []LogRecord
	for rows.Next() {
		var r LogRecord
		var nodeID, label, actionName sql.NullString
		var level, ts string
		var exitCode, durationMS sql.NullInt64
		if err := rows.Scan(&r.ID, &r.SessionID, &ts, &nodeID, &label, &actionName, &level, &r.Message, &exitCode, &durationMS); err != nil {
			return nil, fmt.Errorf("logstore: scan log record: %w", err)
		}
		r.NodeID, r.Label, r.ActionName, r.Level = nodeID.String, label.String, actionName.String, Level(level)
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			r.Timestamp = t
		}
		if exitCode.Valid {
			v := int(exitCode.Int64)
			r.ExitCode = &v
		}
		if durationMS.Valid {
			v := durationMS.Int64
			r.DurationMS = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetNodesInSession returns the distinct non-empty node ids that produced
// at least one log row in session.
func (ls *LogStore) GetNodesInSession(ctx context.Context, sessionID int64) ([]string, error) {
	rows, err := ls.readDB.QueryContext(ctx, `
		SELECT DISTINCT node_id FROM logs WHERE session_id = ? AND node_id IS NOT NULL AND node_id != '' ORDER BY node_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("logstore: get nodes in session: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNodeResults returns every node_results row for session, in insertion
// order. Used by the `log-merge` command to carry verdicts across
// into a target database alongside their session's log rows.
func (ls *LogStore) GetNodeResults(ctx context.Context, sessionID int64) ([]NodeResult, error) {
	rows, err := ls.readDB.QueryContext(ctx, `
		SELECT id, session_id, node_id, status, reason
		FROM node_results WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("logstore: get node results: %w", err)
	}
	defer rows.Close()

	var out []NodeResult
	for rows.Next() {
		var r NodeResult
		var reason sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &r.NodeID, &r.Status, &reason); err != nil {
			return nil, fmt.Errorf("logstore: scan node result: %w", err)
		}
		r.Reason = reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSummary aggregates node_results and logs counts for session in a
// single call.
func (ls *LogStore) GetSummary(ctx context.Context, sessionID int64) (SessionSummary, error) {
	sessions, err := ls.ListSessionsFiltered(ctx, SessionFilter{Limit: 0})
	if err != nil {
		return SessionSummary{}, err
	}
	var summary SessionSummary
	for _, s := range sessions {
		if s.ID == sessionID {
			summary.Session = s
			break
		}
	}

	row := ls.readDB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM node_results WHERE session_id = ?`, string(NodeSuccess), string(NodeFailed), sessionID)
	var total, success, failed sql.NullInt64
	if err := row.Scan(&total, &success, &failed); err != nil {
		return SessionSummary{}, fmt.Errorf("logstore: summary node_results: %w", err)
	}
	summary.NodesTotal = int(total.Int64)
	summary.NodesSuccess = int(success.Int64)
	summary.NodesFailed = int(failed.Int64)

	rows, err := ls.readDB.QueryContext(ctx, `SELECT level, COUNT(*) FROM logs WHERE session_id = ? GROUP BY level`, sessionID)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("logstore: summary logs: %w", err)
	}
	defer rows.Close()
	summary.LogsByLevel = map[Level]int{}
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return SessionSummary{}, err
		}
		summary.LogsByLevel[Level(level)] = count
	}

	okRow := ls.readDB.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN message LIKE 'Transition %' AND level != ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN message LIKE 'Transition %' AND level = ? THEN 1 ELSE 0 END)
		FROM logs WHERE session_id = ?`, string(LevelError), string(LevelError), sessionID)
	var ok, ko sql.NullInt64
	if err := okRow.Scan(&ok, &ko); err != nil {
		return SessionSummary{}, fmt.Errorf("logstore: summary transitions: %w", err)
	}
	summary.TransitionsOK = int(ok.Int64)
	summary.TransitionsKO = int(ko.Int64)

	return summary, rows.Err()
}
