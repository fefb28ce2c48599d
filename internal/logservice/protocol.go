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
	"io"
	"net"

	"github.com/ironloom/stagehand/internal/logstore"
)

// request is one newline-delimited JSON call against the relational
// endpoint, letting other processes open client sessions against a
// shared log database. method names the LogStore operation; args
// carries its parameters as a single JSON object.
type request struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

// response is the {data, error} envelope every relational-endpoint reply
// is wrapped in.
type response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type openSessionArgs struct {
	logstore.OpenSessionParams
}

type logActionArgs struct {
	SessionID  int64  `json:"session_id"`
	NodeID     string `json:"node_id"`
	Label      string `json:"label"`
	ActionName string `json:"action_name"`
	Level      string `json:"level"`
	Message    string `json:"message"`
	ExitCode   *int   `json:"exit_code"`
	DurationMS *int64 `json:"duration_ms"`
}

type submitLogArgs struct {
	SessionID int64  `json:"session_id"`
	NodeID    string `json:"node_id"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

type recordNodeResultArgs struct {
	SessionID int64  `json:"session_id"`
	NodeID    string `json:"node_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

type endSessionArgs struct {
	SessionID int64  `json:"session_id"`
	Status    string `json:"status"`
}

// handleConn services one attached session: it decodes newline-delimited
// requests until the peer disconnects, dispatching each to the store and
// writing back a response line. One connection, one goroutine, no shared
// mutable decode state — mirrors the single-writer-per-mailbox discipline
// actorsystem.System uses internally.
func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(bufio.NewReader(conn))
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if err != io.EOF {
				s.logger.Debug("logservice: decode error", "error", err)
			}
			return
		}
		s.touch()
		resp := s.dispatch(conn.RemoteAddr(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Service) dispatch(_ net.Addr, req request) response {
	ctx := context.Background()

	switch req.Method {
	case "open_session":
		var a openSessionArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return response{Error: err.Error()}
		}
		id, err := s.store.OpenSession(ctx, a.OpenSessionParams)
		if err != nil {
			return response{Error: err.Error()}
		}
		return response{Data: map[string]int64{"session_id": id}}

	case "log_action":
		var a logActionArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return response{Error: err.Error()}
		}
		s.store.LogActionForSession(a.SessionID, a.NodeID, a.Label, a.ActionName, a.Level, a.Message, a.ExitCode, a.DurationMS)
		return response{Data: true}

	case "submit_log":
		var a submitLogArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return response{Error: err.Error()}
		}
		s.store.SubmitLog(a.SessionID, a.NodeID, a.Level, a.Message)
		return response{Data: true}

	case "record_node_result":
		var a recordNodeResultArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return response{Error: err.Error()}
		}
		if err := s.store.RecordNodeResult(ctx, a.SessionID, a.NodeID, logstore.NodeResultStatus(a.Status), a.Reason); err != nil {
			return response{Error: err.Error()}
		}
		return response{Data: true}

	case "end_session":
		var a endSessionArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return response{Error: err.Error()}
		}
		if err := s.store.EndSession(ctx, a.SessionID, logstore.SessionStatus(a.Status)); err != nil {
			return response{Error: err.Error()}
		}
		return response{Data: true}

	default:
		return response{Error: "unknown method: " + req.Method}
	}
}
