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

// stagehand is the CLI entrypoint: run, list, describe, logs,
// log-serve, log-merge, db-clear.
package main

import (
	"github.com/ironloom/stagehand/internal/cli"
	"github.com/ironloom/stagehand/internal/commands/dbclear"
	"github.com/ironloom/stagehand/internal/commands/describe"
	"github.com/ironloom/stagehand/internal/commands/list"
	"github.com/ironloom/stagehand/internal/commands/logmerge"
	"github.com/ironloom/stagehand/internal/commands/logs"
	"github.com/ironloom/stagehand/internal/commands/logserve"
	"github.com/ironloom/stagehand/internal/commands/run"
)

// Version information (injected via ldflags at build time).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(list.NewCommand())
	rootCmd.AddCommand(describe.NewCommand())
	rootCmd.AddCommand(logs.NewCommand())
	rootCmd.AddCommand(logserve.NewCommand())
	rootCmd.AddCommand(logmerge.NewCommand())
	rootCmd.AddCommand(dbclear.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
