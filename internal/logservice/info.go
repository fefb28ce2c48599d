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
	"net/http"
	"path/filepath"
	"time"

	"github.com/ironloom/stagehand/internal/httputil"
)

// InfoResponse is the exact JSON shape `/info` returns.
type InfoResponse struct {
	Server            string `json:"server"`
	Version           string `json:"version"`
	Port              int    `json:"port"`
	HTTPPort          int    `json:"http_port"`
	DBPath            string `json:"db_path"`
	DBFile            string `json:"db_file"`
	StartedAt         string `json:"started_at"`
	SessionCount      int    `json:"session_count"`
	ActiveConnections int    `json:"active_connections"`
	IdleTimeMS        int64  `json:"idle_time_ms"`
}

func (s *Service) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sessions, err := s.store.ListSessions(ctx, 1<<30)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, InfoResponse{
		Server:            "stagehandd",
		Version:           s.version,
		Port:              s.port,
		HTTPPort:          s.httpPort,
		DBPath:            s.store.Path(),
		DBFile:            filepath.Base(s.store.Path()),
		StartedAt:         s.startedAt.Format(time.RFC3339),
		SessionCount:      len(sessions),
		ActiveConnections: s.ActiveConnections(),
		IdleTimeMS:        s.idleTime().Milliseconds(),
	})
}
