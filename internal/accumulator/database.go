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
	"fmt"
	"strings"
)

// LogSubmitter is the narrow slice of logstore.LogStore that
// DatabaseAccumulator needs. Declaring it here rather than importing the
// logstore package keeps the dependency direction pointing one way, the
// same decoupling the interpreter's ActionLogger interface uses.
type LogSubmitter interface {
	SubmitLog(sessionID int64, nodeID, level, message string)
}

// DatabaseAccumulator bridges multiplexer triples into the relational log
// by submitting them to a LogSubmitter. It is fire-and-forget: Add returns
// as soon as the record has been handed off, never waiting on persistence.
// One instance is attached to the Multiplexer for the whole session and
// sees triples from every source (cli, nodeGroup, node-<host>,
// workflow-reporter, ...), so the record's node_id always comes from the
// Add call's source, never a value fixed at construction.
type DatabaseAccumulator struct {
	sessionID     int64
	defaultNodeID string
	sink          LogSubmitter
}

// NewDatabaseAccumulator binds a sink to the given session. defaultNodeID
// is used only when a caller emits an empty source; pass "" when every
// caller is expected to supply one.
func NewDatabaseAccumulator(sink LogSubmitter, sessionID int64, defaultNodeID string) *DatabaseAccumulator {
	return &DatabaseAccumulator{sessionID: sessionID, defaultNodeID: defaultNodeID, sink: sink}
}

// Add implements Accumulator, deriving the log level from typ:
// log-SEVERE maps to ERROR, log-WARNING to WARN, log-INFO to INFO, and
// everything else (stdout, stderr, cowsay, plugin-result) to INFO. The
// stored message carries the same "[source] line" prefixing the console
// and file sinks emit, so a log row reads identically to the terminal.
func (d *DatabaseAccumulator) Add(source string, typ OutputType, data string) error {
	nodeID := source
	if nodeID == "" {
		nodeID = d.defaultNodeID
	}
	lines := strings.Split(data, "\n")
	for i, line := range lines {
		lines[i] = fmt.Sprintf("[%s] %s", source, line)
	}
	d.sink.SubmitLog(d.sessionID, nodeID, levelFor(typ), strings.Join(lines, "\n"))
	return nil
}

// Close is a no-op: the underlying LogSubmitter owns its own lifecycle.
func (d *DatabaseAccumulator) Close() error { return nil }

func levelFor(typ OutputType) string {
	switch {
	case typ == LogType("SEVERE"):
		return "ERROR"
	case typ == LogType("WARNING"):
		return "WARN"
	case typ == LogType("INFO"):
		return "INFO"
	case strings.HasPrefix(string(typ), "log-"):
		return "INFO"
	default:
		return "INFO"
	}
}
