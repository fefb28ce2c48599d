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

// Package session captures the provenance of one run command invocation
// and binds the relational log to it. A session is opened once per `run`
// (or `log-serve` remote attach) and every action, transition, and output
// line produced during that invocation is tagged with its id.
package session

import (
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CorrelationID mints a fresh opaque token (a random UUID) for
// cross-process correlation.
func CorrelationID() string {
	return uuid.NewString()
}

// Context describes the environment a run was launched from (
// sessions columns: cwd, git_commit, git_branch, command_line,
// tool_version, tool_commit). It is captured once at process start and
// threaded into logstore.OpenSessionParams.
type Context struct {
	CWD         string
	GitCommit   string
	GitBranch   string
	CommandLine string
	ToolVersion string
	ToolCommit  string
}

// Capture builds a Context from the current process: its working
// directory, the invoking command line, and (best-effort) the git
// commit/branch of the directory it's running from. toolVersion and
// toolCommit come from the ldflags-injected build info cmd/stagehand
// sets at link time; Capture never overrides them.
func Capture(toolVersion, toolCommit string) Context {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	return Context{
		CWD:         cwd,
		GitCommit:   gitOutput(cwd, "rev-parse", "HEAD"),
		GitBranch:   gitOutput(cwd, "rev-parse", "--abbrev-ref", "HEAD"),
		CommandLine: strings.Join(os.Args, " "),
		ToolVersion: toolVersion,
		ToolCommit:  toolCommit,
	}
}

// gitOutput runs `git <args...>` in dir and returns its trimmed stdout,
// or "" if git is unavailable or dir isn't inside a repository. Session
// provenance is best-effort: a missing git binary must never fail a run.
func gitOutput(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Logger is the narrow slice of logstore.LogStore's write surface a bound
// Recorder needs. Declaring it here rather than importing the logstore
// package keeps the dependency direction pointing the same way
// interpreter.ActionLogger and accumulator.LogSubmitter already do.
type Logger interface {
	LogActionForSession(sessionID int64, nodeID, label, actionName, level, message string, exitCode *int, durationMS *int64)
}

// Recorder implements interpreter.ActionLogger by closing over a fixed
// session id, so every Interpreter created for this run tags its action
// and transition records with the session LogStore.OpenSession returned —
// the interpreter package itself never has to know a session id exists.
type Recorder struct {
	sessionID int64
	sink      Logger
}

// NewRecorder binds sink to sessionID.
func NewRecorder(sink Logger, sessionID int64) *Recorder {
	return &Recorder{sessionID: sessionID, sink: sink}
}

// LogAction implements interpreter.ActionLogger.
func (r *Recorder) LogAction(nodeID, label, actionName, level, message string, exitCode *int, durationMS *int64) {
	r.sink.LogActionForSession(r.sessionID, nodeID, label, actionName, level, message, exitCode, durationMS)
}

// ID formats an int64 session id the way CLI flags and report headers
// expect it: a plain base-10 string, no padding.
func ID(sessionID int64) string {
	return strconv.FormatInt(sessionID, 10)
}
