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

// Package cli builds stagehand's root Cobra command and the shared
// exit-code machinery every subcommand funnels its terminal error through.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion records the ldflags-injected build identity; called once from
// cmd/stagehand's main before the root command runs.
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns the build identity set by SetVersion.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// NewRootCommand builds the stagehand root command. Subcommands are added
// by cmd/stagehand/main.go; this only wires the global flags and the
// error-handling discipline.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stagehand",
		Short: "stagehand runs agentless infrastructure workflows",
		Long: `stagehand interprets a declarative, guarded state-machine workflow
and executes it against one or more inventory hosts without an agent
installed on the target. Sessions, per-action output, and per-node
outcomes are recorded in a queryable log database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("db", "", "LogStore database path (default: XDG config dir)")
	cmd.PersistentFlags().Bool("quiet", false, "Suppress non-error console output")

	return cmd
}
