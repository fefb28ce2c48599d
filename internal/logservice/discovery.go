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
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
)

// DiscoveredServer is what a successful Discover call reports about the
// matching service.
type DiscoveredServer struct {
	Addr string // host:port of the TCP relational endpoint
	Info InfoResponse
}

// Discover scans [basePort, basePort+ScanRangeWidth) on host, fetching
// `/info` from each open HTTP port (TCP port - PortOffset) and reporting
// the first one whose canonicalised db_path equals dbPath. It
// never starts a server; an unanswered port is simply skipped.
func Discover(ctx context.Context, host, dbPath string, basePort int) (*DiscoveredServer, error) {
	want, err := canonicalizePath(dbPath)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: dialTimeout}

	for port := basePort; port < basePort+ScanRangeWidth; port++ {
		httpPort := port - PortOffset
		if httpPort <= 0 {
			continue
		}

		info, ok := fetchInfo(ctx, client, host, httpPort)
		if !ok {
			continue
		}

		got, err := canonicalizePath(info.DBPath)
		if err != nil {
			continue
		}
		if got == want {
			return &DiscoveredServer{Addr: fmt.Sprintf("%s:%d", host, port), Info: info}, nil
		}
	}

	return nil, fmt.Errorf("logservice: discovery: no running service owns %s in port range [%d, %d)", dbPath, basePort, basePort+ScanRangeWidth)
}

func fetchInfo(ctx context.Context, client *http.Client, host string, httpPort int) (InfoResponse, bool) {
	url := fmt.Sprintf("http://%s:%d/info", host, httpPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return InfoResponse{}, false
	}
	resp, err := client.Do(req)
	if err != nil {
		return InfoResponse{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return InfoResponse{}, false
	}

	var info InfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return InfoResponse{}, false
	}
	return info, true
}

// canonicalizePath normalizes a path for the db_path equality check,
// resolving `.`/`..` segments without requiring the file to exist
// (discovery must work against a path a client hasn't opened yet).
func canonicalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
