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

// Package logstore implements the append-only, queryable relational log:
// sessions, logs, node_results, served by a single writer goroutine
// over a bounded multi-producer queue and a read-only query surface on a
// second connection.
package logstore

import "time"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "RUNNING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
)

// Level classifies a LogRecord's severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelRank orders levels for getLogsByLevel's "minimum level" filter.
var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Session is one top-level CLI execution; the root of the log hierarchy.
type Session struct {
	ID            int64
	WorkflowName  string
	OverlayName   string
	InventoryName string
	NodeCount     int
	Status        SessionStatus
	CWD           string
	GitCommit     string
	GitBranch     string
	CommandLine   string
	ToolVersion   string
	ToolCommit    string
	StartedAt     time.Time
	EndedAt       *time.Time
}

// LogRecord is an append-only row capturing a single logged event.
type LogRecord struct {
	ID         int64
	SessionID  int64
	Timestamp  time.Time
	NodeID     string
	Label      string
	ActionName string
	Level      Level
	Message    string
	ExitCode   *int
	DurationMS *int64
}

// NodeResultStatus is the terminal verdict for one node within a session.
type NodeResultStatus string

const (
	NodeSuccess NodeResultStatus = "SUCCESS"
	NodeFailed  NodeResultStatus = "FAILED"
)

// NodeResult is the per-node terminal verdict within a session. At
// most one row exists per (SessionID, NodeID).
type NodeResult struct {
	ID        int64
	SessionID int64
	NodeID    string
	Status    NodeResultStatus
	Reason    string
}

// SessionSummary aggregates counts from node_results and logs for one
// session, produced by a single query call.
type SessionSummary struct {
	Session       Session
	NodesTotal    int
	NodesSuccess  int
	NodesFailed   int
	LogsByLevel   map[Level]int
	TransitionsOK int
	TransitionsKO int
}

// SessionFilter narrows listSessionsFiltered's result set; zero values are
// unconstrained.
type SessionFilter struct {
	WorkflowName  string
	OverlayName   string
	InventoryName string
	StartedAfter  *time.Time
	EndedAfter    *time.Time
	Limit         int
}
