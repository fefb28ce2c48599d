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

package logservice

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironloom/stagehand/internal/logstore"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func startService(t *testing.T) (*Service, int) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	port := freePort(t)
	for port <= PortOffset {
		port = freePort(t)
	}

	svc, err := New(Options{DBPath: dbPath, Port: port, Version: "test"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		shCtx, shCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shCancel()
		_ = svc.Shutdown(shCtx)
		<-done
	})

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return svc, port
}

func TestService_ClientRoundTrip(t *testing.T) {
	_, port := startService(t)
	ctx := context.Background()

	client, err := Dial(ctx, fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer client.Close()

	sessionID, err := client.OpenSession(ctx, logstore.OpenSessionParams{WorkflowName: "deploy"})
	require.NoError(t, err)
	assert.NotZero(t, sessionID)

	client.SubmitLog(sessionID, "node-a", "INFO", "hello")
	require.NoError(t, client.RecordNodeResult(ctx, sessionID, "node-a", logstore.NodeSuccess, ""))
	require.NoError(t, client.EndSession(ctx, sessionID, logstore.SessionCompleted))
}

func TestDiscover_MatchesByCanonicalDBPath(t *testing.T) {
	svc, port := startService(t)
	ctx := context.Background()

	found, err := Discover(ctx, "127.0.0.1", svc.Store().Path(), port)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("127.0.0.1:%d", port), found.Addr)

	_, err = Discover(ctx, "127.0.0.1", "/nonexistent/other.db", port)
	assert.Error(t, err)
}
