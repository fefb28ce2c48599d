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

package accumulator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironloom/stagehand/internal/actorsystem"
)

type recordingSink struct {
	calls []string
	err   error
}

func (r *recordingSink) Add(source string, typ OutputType, data string) error {
	r.calls = append(r.calls, source+"|"+string(typ)+"|"+data)
	return r.err
}
func (r *recordingSink) Close() error { return nil }

func TestMultiplexer_FanOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	mux := NewMultiplexer(nil)
	mux.Attach(a)
	mux.Attach(b)

	require.NoError(t, mux.Add("node-1", TypeStdout, "hello"))
	assert.Equal(t, []string{"node-1|stdout|hello"}, a.calls)
	assert.Equal(t, []string{"node-1|stdout|hello"}, b.calls)
}

func TestMultiplexer_SinkFailureIsolated(t *testing.T) {
	failing := &recordingSink{err: errors.New("disk full")}
	ok := &recordingSink{}
	var diag string
	mux := NewMultiplexer(func(msg string) { diag = msg })
	mux.Attach(failing)
	mux.Attach(ok)

	require.NoError(t, mux.Add("node-1", TypeStdout, "x"))
	assert.Len(t, ok.calls, 1)
	assert.Contains(t, diag, "disk full")
}

func TestConsoleAccumulator_QuietStillCounts(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsoleAccumulator(&out, &errOut, true)
	require.NoError(t, c.Add("node-1", TypeStdout, "line one\nline two"))
	assert.Equal(t, 1, c.Count())
	assert.Empty(t, out.String())
}

func TestConsoleAccumulator_RoutesStderrType(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsoleAccumulator(&out, &errOut, false)
	require.NoError(t, c.Add("node-1", TypeStderr, "boom"))
	assert.Contains(t, errOut.String(), "[node-1] boom")
	assert.Empty(t, out.String())
}

func TestFileAccumulator_AppendsAndCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	f, err := NewFileAccumulator(path)
	require.NoError(t, err)

	require.NoError(t, f.Add("node-1", TypeStdout, "first\nsecond"))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "[node-1] first\n")
	assert.Contains(t, string(body), "[node-1] second\n")
}

type capturingSubmitter struct {
	sessionID int64
	nodeID    string
	level     string
	message   string
}

func (c *capturingSubmitter) SubmitLog(sessionID int64, nodeID, level, message string) {
	c.sessionID, c.nodeID, c.level, c.message = sessionID, nodeID, level, message
}

func TestDatabaseAccumulator_LevelMapping(t *testing.T) {
	cases := []struct {
		typ  OutputType
		want string
	}{
		{LogType("SEVERE"), "ERROR"},
		{LogType("WARNING"), "WARN"},
		{LogType("INFO"), "INFO"},
		{TypeStdout, "INFO"},
		{TypePluginResult, "INFO"},
	}
	for _, tc := range cases {
		sub := &capturingSubmitter{}
		d := NewDatabaseAccumulator(sub, 7, "node-1")
		require.NoError(t, d.Add("node-1", tc.typ, "msg"))
		assert.Equal(t, tc.want, sub.level, "typ=%s", tc.typ)
		assert.Equal(t, int64(7), sub.sessionID)
	}
}

func TestMultiplexerActor_AddDelegatesToSinks(t *testing.T) {
	sink := &recordingSink{}
	mux := NewMultiplexer(nil)
	mux.Attach(sink)

	sys := actorsystem.New(2)
	t.Cleanup(sys.Shutdown)
	sys.Register(NewMultiplexerActor(mux))

	res := sys.Ask(context.Background(), ActorName, "add", actorsystem.FormatArgs("node-1", "stdout", "hello"))
	require.True(t, res.Success)
	assert.Equal(t, []string{"node-1|stdout|hello"}, sink.calls)

	res = sys.Ask(context.Background(), ActorName, "add", actorsystem.FormatArgs("too-few"))
	assert.False(t, res.Success)
}

func TestDatabaseAccumulator_PrefixesEveryLine(t *testing.T) {
	sub := &capturingSubmitter{}
	d := NewDatabaseAccumulator(sub, 7, "")
	require.NoError(t, d.Add("node-x", TypeStdout, "a\nb"))
	assert.Equal(t, "[node-x] a\n[node-x] b", sub.message)
	assert.Equal(t, "node-x", sub.nodeID)
}
