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

// Package logs implements `stagehand logs`: queries against the LogStore
// database.
package logs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironloom/stagehand/internal/actorsystem"
	"github.com/ironloom/stagehand/internal/cli"
	"github.com/ironloom/stagehand/internal/logstore"
	"github.com/ironloom/stagehand/internal/reporter"
)

// NewCommand builds `stagehand logs`.
func NewCommand() *cobra.Command {
	var (
		dbPath      string
		sessionID   int64
		node        string
		level       string
		limit       int
		list        bool
		listNodes   bool
		summary     bool
		workflow    string
		overlay     string
		inventoryPt string
		after       string
		since       string
		endedSince  string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the log database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return cli.NewMissingArgsError("logs requires --db", nil)
			}

			store, err := logstore.Open(dbPath, actorsystem.NewPool(1))
			if err != nil {
				return cli.NewFailureError("opening log database", err)
			}
			defer store.Close()

			ctx := cmd.Context()
			format := reporter.ParseRenderFormat(output)

			startedAfter, err := resolveAfter(after, since)
			if err != nil {
				return cli.NewMissingArgsError("--after/--since", err)
			}
			endedAfter, err := resolveSince(endedSince)
			if err != nil {
				return cli.NewMissingArgsError("--ended-since", err)
			}

			switch {
			case list:
				sessions, err := store.ListSessionsFiltered(ctx, logstore.SessionFilter{
					WorkflowName:  workflow,
					OverlayName:   overlay,
					InventoryName: inventoryPt,
					StartedAfter:  startedAfter,
					EndedAfter:    endedAfter,
					Limit:         limit,
				})
				if err != nil {
					return cli.NewFailureError("listing sessions", err)
				}
				return reporter.RenderSessions(os.Stdout, format, sessions)

			case listNodes:
				if sessionID == 0 {
					return cli.NewMissingArgsError("--list-nodes requires --session", nil)
				}
				nodes, err := store.GetNodesInSession(ctx, sessionID)
				if err != nil {
					return cli.NewFailureError("listing nodes", err)
				}
				return reporter.RenderNodes(os.Stdout, format, nodes)

			case summary:
				if sessionID == 0 {
					sessionID, err = store.LatestSessionID(ctx)
					if err != nil {
						return cli.NewFailureError("resolving latest session", err)
					}
				}
				s, err := store.GetSummary(ctx, sessionID)
				if err != nil {
					return cli.NewFailureError("summarizing session", err)
				}
				return reporter.RenderSummary(os.Stdout, format, s)

			default:
				if sessionID == 0 {
					sessionID, err = store.LatestSessionID(ctx)
					if err != nil {
						return cli.NewFailureError("resolving latest session", err)
					}
				}

				var records []logstore.LogRecord
				if node != "" {
					records, err = store.GetLogsByNode(ctx, sessionID, node)
				} else {
					minLevel := logstore.LevelDebug
					if level != "" {
						minLevel = logstore.Level(strings.ToUpper(level))
					}
					records, err = store.GetLogsByLevel(ctx, sessionID, minLevel)
				}
				if err != nil {
					return cli.NewFailureError("querying logs", err)
				}
				if limit > 0 && len(records) > limit {
					records = records[len(records)-limit:]
				}
				return reporter.RenderLogs(os.Stdout, format, records)
			}
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "LogStore database path (required)")
	cmd.Flags().Int64Var(&sessionID, "session", 0, "Session id (default: the latest session)")
	cmd.Flags().StringVar(&node, "node", "", "Restrict to one node id")
	cmd.Flags().StringVar(&level, "level", "", "Minimum log level (DEBUG, INFO, WARN, ERROR)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit the number of rows returned")
	cmd.Flags().BoolVar(&list, "list", false, "List sessions instead of log rows")
	cmd.Flags().BoolVar(&listNodes, "list-nodes", false, "List the nodes that logged in --session")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print an aggregate summary for --session")
	cmd.Flags().StringVar(&workflow, "workflow", "", "Filter --list by workflow name")
	cmd.Flags().StringVar(&overlay, "overlay", "", "Filter --list by overlay name")
	cmd.Flags().StringVar(&inventoryPt, "inventory", "", "Filter --list by inventory name")
	cmd.Flags().StringVar(&after, "after", "", "Filter --list to sessions started at or after this ISO-8601 timestamp")
	cmd.Flags().StringVar(&since, "since", "", "Filter --list to sessions started within the last Nh|Nd|Nw")
	cmd.Flags().StringVar(&endedSince, "ended-since", "", "Filter --list to sessions ended within the last Nh|Nd|Nw")
	cmd.Flags().StringVar(&output, "output", "table", "Output format: table or json")

	return cmd
}

// resolveAfter prefers an explicit --after timestamp over --since's
// relative window.
func resolveAfter(after, since string) (*time.Time, error) {
	if after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			return nil, fmt.Errorf("parse --after: %w", err)
		}
		return &t, nil
	}
	return resolveSince(since)
}

// resolveSince parses a relative window like "24h", "7d", or "2w" into an
// absolute "since" timestamp.
func resolveSince(since string) (*time.Time, error) {
	if since == "" {
		return nil, nil
	}
	if len(since) < 2 {
		return nil, fmt.Errorf("invalid duration %q", since)
	}

	n, err := strconv.Atoi(since[:len(since)-1])
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", since, err)
	}

	var d time.Duration
	switch since[len(since)-1] {
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	case 'w':
		d = time.Duration(n) * 7 * 24 * time.Hour
	default:
		return nil, fmt.Errorf("invalid duration unit in %q (want h, d, or w)", since)
	}

	t := time.Now().Add(-d)
	return &t, nil
}
