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

// Package remoteshell implements the command-execution adapter that
// backs every per-node actor: a local subprocess runner for the
// node-less case and an SSH-backed runner for inventory hosts.
package remoteshell

import "context"

// Result is the outcome of one command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Shell runs one command to completion and returns its captured output.
// Implementations block the calling actor for the duration of the call;
// concurrency across nodes comes from each node running as its own actor.
type Shell interface {
	Run(ctx context.Context, command string) (Result, error)
	Close() error
}
