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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ironloom/stagehand/internal/logstore"
)

// Client is a single persistent connection to a remote LogService's
// relational endpoint. Shared (distributed) mode uses a Client in
// place of a local *logstore.LogStore wherever an ActionLogger or
// LogSubmitter is needed; the writer contract stays identical from the
// caller's point of view.
type Client struct {
	mu  sync.Mutex
	nc  net.Conn
	dec *json.Decoder
	enc *json.Encoder
}

// Dial opens a connection to a LogService listening at addr (host:port,
// the TCP port, not the HTTP one).
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := net.Dialer{}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("logservice: dial %s: %w", addr, err)
	}
	return &Client{
		nc:  nc,
		dec: json.NewDecoder(bufio.NewReader(nc)),
		enc: json.NewEncoder(nc),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.nc.Close()
}

func (c *Client) call(method string, args any) (response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.Marshal(args)
	if err != nil {
		return response{}, err
	}
	if err := c.enc.Encode(request{Method: method, Args: raw}); err != nil {
		return response{}, err
	}
	var resp response
	if err := c.dec.Decode(&resp); err != nil {
		return response{}, err
	}
	if resp.Error != "" {
		return response{}, fmt.Errorf("logservice: %s: %s", method, resp.Error)
	}
	return resp, nil
}

// OpenSession opens a new session on the remote store and returns its id.
func (c *Client) OpenSession(ctx context.Context, p logstore.OpenSessionParams) (int64, error) {
	resp, err := c.call("open_session", openSessionArgs{p})
	if err != nil {
		return 0, err
	}
	m, ok := resp.Data.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("logservice: open_session: unexpected response shape")
	}
	id, _ := m["session_id"].(float64)
	return int64(id), nil
}

// LogActionForSession implements the remote half of interpreter.ActionLogger.
// Transport failures are swallowed (discarded, not propagated) to match
// LogStore's own fire-and-forget contract — a disconnected LogService must
// never fail the workflow it's merely observing.
func (c *Client) LogActionForSession(sessionID int64, nodeID, label, actionName, level, message string, exitCode *int, durationMS *int64) {
	_, _ = c.call("log_action", logActionArgs{
		SessionID: sessionID, NodeID: nodeID, Label: label, ActionName: actionName,
		Level: level, Message: message, ExitCode: exitCode, DurationMS: durationMS,
	})
}

// SubmitLog implements the remote half of accumulator.LogSubmitter.
func (c *Client) SubmitLog(sessionID int64, nodeID, level, message string) {
	_, _ = c.call("submit_log", submitLogArgs{SessionID: sessionID, NodeID: nodeID, Level: level, Message: message})
}

// RecordNodeResult forwards a NodeGroup result to the remote store.
func (c *Client) RecordNodeResult(ctx context.Context, sessionID int64, nodeID string, status logstore.NodeResultStatus, reason string) error {
	_, err := c.call("record_node_result", recordNodeResultArgs{
		SessionID: sessionID, NodeID: nodeID, Status: string(status), Reason: reason,
	})
	return err
}

// EndSession marks the remote session finished.
func (c *Client) EndSession(ctx context.Context, sessionID int64, status logstore.SessionStatus) error {
	_, err := c.call("end_session", endSessionArgs{SessionID: sessionID, Status: string(status)})
	return err
}

// dialTimeout is how long Discover waits for each candidate port's /info
// before moving on.
const dialTimeout = 300 * time.Millisecond
