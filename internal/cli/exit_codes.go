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

package cli

import (
	"errors"
	"fmt"
	"os"

	pkgerrors "github.com/ironloom/stagehand/pkg/errors"
)

// Exit codes. Every command uses 2 for missing required flags; beyond
// that each command either succeeds (0) or fails (1), and db-clear also
// uses 1 for "a log service still owns this database".
const (
	ExitSuccess     = 0
	ExitFailure     = 1 // workflow/command execution failure
	ExitMissingArgs = 2 // configuration error: missing/invalid flags
)

// ExitError is an error that carries the process exit code it should
// produce.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Cause }

// NewFailureError creates an error for command execution failures (exit 1).
func NewFailureError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitFailure, Message: msg, Cause: cause}
}

// NewMissingArgsError creates an error for configuration/argument problems
// (exit 2); these must never be logged as ERROR since the session was
// never opened.
func NewMissingArgsError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitMissingArgs, Message: msg, Cause: cause}
}

// HandleExitError prints err (if any) to stderr and calls os.Exit with the
// code an *ExitError carries, defaulting to ExitFailure for plain errors.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		printUserVisibleSuggestion(err)
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	printUserVisibleSuggestion(err)
	os.Exit(ExitFailure)
}

// printUserVisibleSuggestion walks the error chain for a UserVisibleError
// and prints its suggestion, if any.
func printUserVisibleSuggestion(err error) {
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				if s := userErr.Suggestion(); s != "" {
					fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", s)
				}
			}
			return
		}
		err = errors.Unwrap(err)
	}
}
