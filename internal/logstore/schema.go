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
)

func configurePragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("logstore: pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_name TEXT NOT NULL,
			overlay_name TEXT,
			inventory_name TEXT,
			node_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'RUNNING',
			cwd TEXT,
			git_commit TEXT,
			git_branch TEXT,
			command_line TEXT,
			tool_version TEXT,
			tool_commit TEXT,
			started_at TEXT NOT NULL,
			ended_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_workflow ON sessions(workflow_name)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			node_id TEXT,
			label TEXT,
			action_name TEXT,
			level TEXT NOT NULL,
			message TEXT,
			exit_code INTEGER,
			duration_ms INTEGER,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_session_id ON logs(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_node_id ON logs(session_id, node_id)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(session_id, level)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp)`,
		`CREATE TABLE IF NOT EXISTS node_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			UNIQUE(session_id, node_id),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_node_results_session ON node_results(session_id)`,
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("logstore: migration failed: %w", err)
		}
	}
	return nil
}
