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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogStore_ImportSessionRenumbersAndCopiesRows(t *testing.T) {
	src := newTestStore(t)
	target := newTestStore(t)
	ctx := context.Background()

	srcID, err := src.OpenSession(ctx, OpenSessionParams{WorkflowName: "deploy.yaml", NodeCount: 1})
	require.NoError(t, err)
	src.LogActionForSession(srcID, "node-a", "", "shell.run", "INFO", "hello", nil, nil)
	require.NoError(t, src.RecordNodeResult(ctx, srcID, "node-a", NodeSuccess, ""))
	require.NoError(t, src.EndSession(ctx, srcID, SessionCompleted))

	// Give target an unrelated pre-existing session, so srcID colliding
	// with a target id would be a real bug, not a coincidence.
	_, err = target.OpenSession(ctx, OpenSessionParams{WorkflowName: "other.yaml"})
	require.NoError(t, err)

	sessions, err := src.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	logs, err := src.GetLogsByLevel(ctx, srcID, LevelDebug)
	require.NoError(t, err)
	nodeResults, err := src.GetNodeResults(ctx, srcID)
	require.NoError(t, err)

	newID, err := target.ImportSession(ctx, sessions[0], logs, nodeResults)
	require.NoError(t, err)
	assert.NotEqual(t, srcID, newID)

	imported, err := target.GetLogsByNode(ctx, newID, "node-a")
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, "hello", imported[0].Message)

	results, err := target.GetNodeResults(ctx, newID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, NodeSuccess, results[0].Status)

	targetSessions, err := target.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, targetSessions, 2)
}
