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
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/ironloom/stagehand/internal/logstore"
)

// RenderFormat selects how `logs` prints its query results: a
// human-readable table, or JSON for scripting. Each JSON render writes one
// value on a single line (an array for list results, an object for a
// summary); list results are not split into one object per line.
type RenderFormat string

const (
	FormatTable RenderFormat = "table"
	FormatJSON  RenderFormat = "json"
)

// ParseRenderFormat maps a --output flag value to a RenderFormat,
// defaulting to table for an empty or unrecognized value.
func ParseRenderFormat(s string) RenderFormat {
	if RenderFormat(s) == FormatJSON {
		return FormatJSON
	}
	return FormatTable
}

// RenderSessions writes sessions to w in the requested format.
func RenderSessions(w io.Writer, format RenderFormat, sessions []logstore.Session) error {
	if format == FormatJSON {
		return writeJSONL(w, sessions)
	}

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORKFLOW\tSTATUS\tNODES\tSTARTED\tENDED")
	for _, s := range sessions {
		ended := "-"
		if s.EndedAt != nil {
			ended = humanize.Time(*s.EndedAt)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.WorkflowName, s.Status, s.NodeCount, humanize.Time(s.StartedAt), ended)
	}
	return tw.Flush()
}

// RenderLogs writes log records to w in the requested format.
func RenderLogs(w io.Writer, format RenderFormat, records []logstore.LogRecord) error {
	if format == FormatJSON {
		return writeJSONL(w, records)
	}

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tNODE\tLEVEL\tACTION\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Format("15:04:05.000"), r.NodeID, r.Level, r.ActionName, r.Message)
	}
	return tw.Flush()
}

// RenderSummary writes a single SessionSummary to w in the requested
// format.
func RenderSummary(w io.Writer, format RenderFormat, summary logstore.SessionSummary) error {
	if format == FormatJSON {
		return writeJSONL(w, summary)
	}

	fmt.Fprintf(w, "session:     %d (%s)\n", summary.Session.ID, summary.Session.WorkflowName)
	fmt.Fprintf(w, "nodes:       %d total, %d ok, %d failed\n",
		summary.NodesTotal, summary.NodesSuccess, summary.NodesFailed)
	fmt.Fprintf(w, "transitions: %d ok, %d failed\n", summary.TransitionsOK, summary.TransitionsKO)
	for _, level := range []logstore.Level{logstore.LevelDebug, logstore.LevelInfo, logstore.LevelWarn, logstore.LevelError} {
		if n, ok := summary.LogsByLevel[level]; ok {
			fmt.Fprintf(w, "  %-5s %s\n", level, humanize.Comma(int64(n)))
		}
	}
	return nil
}

// RenderNodes writes a list of node ids to w in the requested format.
func RenderNodes(w io.Writer, format RenderFormat, nodes []string) error {
	if format == FormatJSON {
		return writeJSONL(w, nodes)
	}
	for _, n := range nodes {
		fmt.Fprintln(w, n)
	}
	return nil
}

// writeJSONL emits v as a single JSON line, the scripting contract for
// `--output json`.
func writeJSONL(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}
