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

package reporter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironloom/stagehand/internal/accumulator"
	"github.com/ironloom/stagehand/internal/actorsystem"
	"github.com/ironloom/stagehand/internal/logstore"
)

func newTestStore(t *testing.T) (*logstore.LogStore, int64) {
	t.Helper()
	sys := actorsystem.New(2)
	t.Cleanup(sys.Shutdown)

	path := filepath.Join(t.TempDir(), "log.db")
	ls, err := logstore.Open(path, sys.DatabasePool())
	require.NoError(t, err)
	t.Cleanup(func() { ls.Close() })

	id, err := ls.OpenSession(context.Background(), logstore.OpenSessionParams{WorkflowName: "deploy.yaml", NodeCount: 2})
	require.NoError(t, err)
	return ls, id
}

func TestCompose_WorkflowHeaderSections(t *testing.T) {
	ls, id := newTestStore(t)
	require.NoError(t, ls.EndSession(context.Background(), id, logstore.SessionCompleted))

	r := New()
	text, err := r.Compose(context.Background(), ReportContext{
		Store:               ls,
		SessionID:           id,
		WorkflowName:        "deploy",
		WorkflowFile:        "/etc/stagehand/deploy.yaml",
		WorkflowDescription: "line one\nline two",
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Workflow: deploy")
	assert.Contains(t, text, "File: /etc/stagehand/deploy.yaml")
	assert.Contains(t, text, "Description:\n  line one\n  line two")
}

func TestCompose_SuppressesEmptySections(t *testing.T) {
	ls, id := newTestStore(t)
	require.NoError(t, ls.EndSession(context.Background(), id, logstore.SessionCompleted))

	r := New()
	text, err := r.Compose(context.Background(), ReportContext{Store: ls, SessionID: id})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestCompose_CheckResultsDeduplicatesAndSorts(t *testing.T) {
	ls, id := newTestStore(t)
	ls.LogActionForSession(id, "node-b", "", "", "INFO", "[node-b] %disk ok", nil, nil)
	ls.LogActionForSession(id, "node-a", "", "", "INFO", "%cpu ok", nil, nil)
	ls.LogActionForSession(id, "node-a", "", "", "INFO", "%cpu ok", nil, nil)
	require.NoError(t, ls.EndSession(context.Background(), id, logstore.SessionCompleted))

	r := New()
	text, err := r.Compose(context.Background(), ReportContext{Store: ls, SessionID: id})
	require.NoError(t, err)

	require.Contains(t, text, "Check results:")
	cpuIdx := indexOf(text, "%cpu ok")
	diskIdx := indexOf(text, "%disk ok")
	require.GreaterOrEqual(t, cpuIdx, 0)
	require.GreaterOrEqual(t, diskIdx, 0)
	assert.Less(t, cpuIdx, diskIdx, "%%cpu sorts before %%disk")

	count := 0
	for i := 0; i+len("%cpu ok") <= len(text); i++ {
		if text[i:i+len("%cpu ok")] == "%cpu ok" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCompose_TransitionHistoryRendersPerNode(t *testing.T) {
	ls, id := newTestStore(t)
	ls.LogActionForSession(id, "node-a", "", "", "INFO", "Transition 0→end: SUCCESS [deploy]", nil, nil)
	ls.LogActionForSession(id, "node-b", "", "", "ERROR", "Transition 0→end: FAILED - boom", nil, nil)
	require.NoError(t, ls.EndSession(context.Background(), id, logstore.SessionCompleted))

	r := New()
	text, err := r.Compose(context.Background(), ReportContext{
		Store: ls, SessionID: id, TargetNode: "nodeGroup", IncludeChildren: true,
	})
	require.NoError(t, err)

	assert.Contains(t, text, "node-a:")
	assert.Contains(t, text, "node-b:")
	assert.Contains(t, text, "o ")
	assert.Contains(t, text, "x ")
	assert.Contains(t, text, "[deploy]")
	assert.Contains(t, text, "boom")
}

func TestCompose_GpuSummaryParsesLspciAndRocm(t *testing.T) {
	ls, id := newTestStore(t)
	ls.LogActionForSession(id, "node-a", "", "", "INFO", "01:00.0 VGA compatible controller: NVIDIA Corporation GA102 [RTX 3090]", nil, nil)
	ls.LogActionForSession(id, "node-b", "", "", "INFO", "Card series: Vega 20", nil, nil)
	require.NoError(t, ls.EndSession(context.Background(), id, logstore.SessionCompleted))

	r := New()
	text, err := r.Compose(context.Background(), ReportContext{Store: ls, SessionID: id})
	require.NoError(t, err)

	assert.Contains(t, text, "GPU summary:")
	assert.Contains(t, text, "RTX 3090")
	assert.Contains(t, text, "Vega 20")
	assert.Contains(t, text, "nodes")
}

func TestReport_RoutesThroughMultiplexerAsPluginResult(t *testing.T) {
	ls, id := newTestStore(t)
	ls.LogActionForSession(id, "node-a", "", "", "INFO", "%ok", nil, nil)
	require.NoError(t, ls.EndSession(context.Background(), id, logstore.SessionCompleted))

	var got struct {
		source string
		typ    accumulator.OutputType
		data   string
	}
	mux := accumulator.NewMultiplexer(func(string) {})
	mux.Attach(recordingSink{onAdd: func(source string, typ accumulator.OutputType, data string) {
		got.source, got.typ, got.data = source, typ, data
	}})

	r := New()
	require.NoError(t, r.Report(context.Background(), mux, ReportContext{Store: ls, SessionID: id, WorkflowName: "deploy"}))

	assert.Equal(t, "workflow-reporter", got.source)
	assert.Equal(t, accumulator.TypePluginResult, got.typ)
	assert.Contains(t, got.data, "Workflow: deploy")
	assert.Contains(t, got.data, "%ok")
}

type recordingSink struct {
	onAdd func(source string, typ accumulator.OutputType, data string)
}

func (r recordingSink) Add(source string, typ accumulator.OutputType, data string) error {
	r.onAdd(source, typ, data)
	return nil
}
func (r recordingSink) Close() error { return nil }

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
