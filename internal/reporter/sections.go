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
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ironloom/stagehand/internal/logstore"
)

func workflowNameSection(_ context.Context, rc ReportContext) (string, error) {
	name := rc.WorkflowName
	if name == "" && rc.WorkflowFile != "" {
		name = filepath.Base(rc.WorkflowFile)
	}
	if name == "" {
		return "", nil
	}
	return "Workflow: " + name, nil
}

func workflowFileSection(_ context.Context, rc ReportContext) (string, error) {
	if rc.WorkflowFile == "" {
		return "", nil
	}
	abs, err := filepath.Abs(rc.WorkflowFile)
	if err != nil {
		abs = rc.WorkflowFile
	}
	return "File: " + abs, nil
}

func workflowDescriptionSection(_ context.Context, rc ReportContext) (string, error) {
	if strings.TrimSpace(rc.WorkflowDescription) == "" {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("Description:\n")
	for _, line := range strings.Split(rc.WorkflowDescription, "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// nodePrefixRE strips the "[node-web-01] " prefix the console accumulator
// prepends to every line, so CheckResults/GpuSummary see the bare
// message the node actually emitted.
var nodePrefixRE = regexp.MustCompile(`^\[[^\]]+\]\s?`)

// allLogs fetches every log row for the session, oldest first. minLevel
// DEBUG is the lowest rank, so GetLogsByLevel becomes "all rows" here
// without a dedicated query.
func allLogs(ctx context.Context, store *logstore.LogStore, sessionID int64) ([]logstore.LogRecord, error) {
	if store == nil {
		return nil, nil
	}
	return store.GetLogsByLevel(ctx, sessionID, logstore.LevelDebug)
}

func checkResultsSection(ctx context.Context, rc ReportContext) (string, error) {
	logs, err := allLogs(ctx, rc.Store, rc.SessionID)
	if err != nil {
		return "", err
	}

	seen := map[string]bool{}
	var checks []string
	for _, rec := range logs {
		for _, line := range strings.Split(rec.Message, "\n") {
			line = nodePrefixRE.ReplaceAllString(line, "")
			if !strings.HasPrefix(line, "%") {
				continue
			}
			if seen[line] {
				continue
			}
			seen[line] = true
			checks = append(checks, line)
		}
	}
	if len(checks) == 0 {
		return "", nil
	}
	sort.Strings(checks)

	var b strings.Builder
	b.WriteString("Check results:\n")
	for _, c := range checks {
		b.WriteString(c)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// transitionLineRE matches the summary row emitTransitionLog writes:
// "Transition <from>→<to>: SUCCESS|FAILED [- reason] [[note]]".
var transitionLineRE = regexp.MustCompile(`^Transition (.+?)→(.+?): (SUCCESS|FAILED)(?: - ([^\[]*))?(?: \[(.*)\])?$`)

type parsedTransition struct {
	from, to, note, reason string
	ok                     bool
	timestamp              string
}

func parseTransitionLine(rec logstore.LogRecord) (parsedTransition, bool) {
	m := transitionLineRE.FindStringSubmatch(strings.TrimSpace(rec.Message))
	if m == nil {
		return parsedTransition{}, false
	}
	pt := parsedTransition{
		from:      m[1],
		to:        m[2],
		ok:        m[3] == "SUCCESS",
		reason:    strings.TrimSpace(m[4]),
		note:      m[5],
		timestamp: rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
	return pt, true
}

func renderTransitionLine(pt parsedTransition) string {
	symbol := "o"
	if !pt.ok {
		symbol = "x"
	}
	line := fmt.Sprintf("%s %s %s→%s", symbol, pt.timestamp, pt.from, pt.to)
	if pt.note != "" {
		line += fmt.Sprintf(" [%s]", pt.note)
	}
	if !pt.ok && pt.reason != "" {
		line += ": " + pt.reason
	}
	return line
}

func transitionHistorySection(ctx context.Context, rc ReportContext) (string, error) {
	logs, err := allLogs(ctx, rc.Store, rc.SessionID)
	if err != nil {
		return "", err
	}

	target := rc.targetNode()
	var b strings.Builder
	b.WriteString("Transition history:\n")
	wrote := false

	if rc.IncludeChildren && target == DefaultTargetNode {
		byNode := map[string][]string{}
		for _, rec := range logs {
			pt, ok := parseTransitionLine(rec)
			if !ok {
				continue
			}
			byNode[rec.NodeID] = append(byNode[rec.NodeID], renderTransitionLine(pt))
		}
		nodes := make([]string, 0, len(byNode))
		for n := range byNode {
			nodes = append(nodes, n)
		}
		sort.Strings(nodes)
		for _, n := range nodes {
			b.WriteString(n)
			b.WriteString(":\n")
			for _, line := range byNode[n] {
				b.WriteString("  ")
				b.WriteString(line)
				b.WriteString("\n")
			}
			wrote = true
		}
	} else {
		for _, rec := range logs {
			if rec.NodeID != target {
				continue
			}
			pt, ok := parseTransitionLine(rec)
			if !ok {
				continue
			}
			b.WriteString(renderTransitionLine(pt))
			b.WriteString("\n")
			wrote = true
		}
	}

	if !wrote {
		return "", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// The three GPU source formats recognized below: nvidia-smi
// --format=csv, rocm-smi key/value, and `lspci` VGA/3D lines.
var (
	nvidiaCSVHeaderRE = regexp.MustCompile(`(?i)^\s*(name|index)\s*,`)
	rocmKVRE          = regexp.MustCompile(`^\s*([A-Za-z0-9_ ]+)\s*:\s*(.+?)\s*$`)
	lspciVGARE        = regexp.MustCompile(`(?i)^([0-9a-f:.]+)\s+(VGA compatible controller|3D controller):\s*(.+)$`)
	memoryMiBRE       = regexp.MustCompile(`(?i)(\d+)\s*mi?b`)
)

type gpuAttr struct {
	node, attr, value string
}

func gpuSummarySection(ctx context.Context, rc ReportContext) (string, error) {
	logs, err := allLogs(ctx, rc.Store, rc.SessionID)
	if err != nil {
		return "", err
	}

	var attrs []gpuAttr
	for _, rec := range logs {
		for _, raw := range strings.Split(rec.Message, "\n") {
			line := nodePrefixRE.ReplaceAllString(raw, "")
			attrs = append(attrs, parseGPULine(rec.NodeID, line)...)
		}
	}
	if len(attrs) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("GPU summary:\n")
	for _, a := range attrs {
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", a.node, a.attr, a.value))
	}
	b.WriteString(fmt.Sprintf("%s detected across %s\n",
		humanize.Comma(int64(len(attrs))), pluralNodes(attrs)))
	return strings.TrimRight(b.String(), "\n"), nil
}

func pluralNodes(attrs []gpuAttr) string {
	seen := map[string]bool{}
	for _, a := range attrs {
		seen[a.node] = true
	}
	n := len(seen)
	if n == 1 {
		return "1 node"
	}
	return strconv.Itoa(n) + " nodes"
}

func parseGPULine(node, line string) []gpuAttr {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return nil
	}

	if m := lspciVGARE.FindStringSubmatch(line); m != nil {
		return []gpuAttr{{node: node, attr: "pci:" + m[1], value: m[3]}}
	}

	if nvidiaCSVHeaderRE.MatchString(line) {
		return nil // header row, not a value row
	}
	if strings.Contains(line, ",") && looksLikeNvidiaCSVRow(line) {
		fields := strings.Split(line, ",")
		var out []gpuAttr
		for i, f := range fields {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			out = append(out, gpuAttr{node: node, attr: fmt.Sprintf("nvidia.field%d", i), value: humanizeIfBytes(f)})
		}
		return out
	}

	if m := rocmKVRE.FindStringSubmatch(line); m != nil && looksLikeGPUKey(m[1]) {
		return []gpuAttr{{node: node, attr: strings.TrimSpace(m[1]), value: strings.TrimSpace(m[2])}}
	}

	return nil
}

// looksLikeNvidiaCSVRow rejects arbitrary comma-separated log lines by
// requiring at least one field to look like a GPU model name or a MiB
// memory figure, the two columns every --query-gpu preset includes.
func looksLikeNvidiaCSVRow(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "nvidia") || memoryMiBRE.MatchString(line)
}

func looksLikeGPUKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	for _, want := range []string{"card", "gpu", "vram", "temperature", "power", "clock", "name"} {
		if strings.Contains(lower, want) {
			return true
		}
	}
	return false
}

func humanizeIfBytes(field string) string {
	m := memoryMiBRE.FindStringSubmatch(field)
	if m == nil {
		return field
	}
	mib, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return field
	}
	return humanize.Bytes(uint64(mib) * 1024 * 1024)
}
