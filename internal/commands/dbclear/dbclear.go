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

// Package dbclear implements `stagehand db-clear`: delete a LogStore
// database's files, after checking no LogService currently owns it.
package dbclear

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironloom/stagehand/internal/cli"
	"github.com/ironloom/stagehand/internal/logservice"
)

// sidecarSuffixes are the extra files SQLite's WAL mode leaves next to the
// main database file; all three must go together or a stale -wal/-shm
// file could resurrect rows on next open.
var sidecarSuffixes = []string{"", "-wal", "-shm", "-journal"}

// NewCommand builds `stagehand db-clear`.
func NewCommand() *cobra.Command {
	var (
		dbPath string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "db-clear",
		Short: "Delete a LogStore database's files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return cli.NewMissingArgsError("db-clear requires --db", nil)
			}

			if !force {
				if found, err := logservice.Discover(cmd.Context(), "localhost", dbPath, logservice.DefaultPort); err == nil {
					return cli.NewFailureError(
						fmt.Sprintf("a log service at %s still owns %s; stop it first or pass --force", found.Addr, dbPath),
						nil)
				}
			}

			removed := 0
			for _, suffix := range sidecarSuffixes {
				path := dbPath + suffix
				if err := os.Remove(path); err != nil {
					if os.IsNotExist(err) {
						continue
					}
					return cli.NewFailureError(fmt.Sprintf("removing %s", path), err)
				}
				removed++
			}
			if removed == 0 {
				fmt.Printf("db-clear: %s did not exist\n", dbPath)
			} else {
				fmt.Printf("db-clear: removed %s (%d file(s))\n", dbPath, removed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "LogStore database path (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Delete even if a log service appears to own the database")

	return cmd
}
