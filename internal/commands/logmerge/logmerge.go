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

// Package logmerge implements `stagehand log-merge`: fold one or more
// source LogStore databases into a target database, renumbering sessions
// so ids never collide with rows already present in the target.
package logmerge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironloom/stagehand/internal/actorsystem"
	"github.com/ironloom/stagehand/internal/cli"
	"github.com/ironloom/stagehand/internal/logstore"
)

// sidecarSuffixes are SQLite WAL-mode sidecar files a directory scan must
// never treat as a standalone source database.
var sidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// NewCommand builds `stagehand log-merge`.
func NewCommand() *cobra.Command {
	var (
		target         string
		scanDir        string
		dryRun         bool
		skipDuplicates bool
	)

	cmd := &cobra.Command{
		Use:   "log-merge [source-db ...]",
		Short: "Merge one or more log databases into a target, renumbering sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				return cli.NewMissingArgsError("log-merge requires --target", nil)
			}

			sources, err := resolveSources(scanDir, args, target)
			if err != nil {
				return cli.NewMissingArgsError("log-merge", err)
			}
			if len(sources) == 0 {
				return cli.NewMissingArgsError("log-merge requires --scan DIR or a list of source databases", nil)
			}

			store, err := logstore.Open(target, actorsystem.NewPool(1))
			if err != nil {
				return cli.NewFailureError("opening target database", err)
			}
			defer store.Close()

			ctx := cmd.Context()
			seen, err := existingDedupKeys(ctx, store)
			if err != nil {
				return cli.NewFailureError("reading target sessions", err)
			}

			totalMerged, totalSkipped := 0, 0
			for _, src := range sources {
				merged, skipped, err := mergeOne(ctx, store, src, dryRun, skipDuplicates, seen)
				if err != nil {
					return cli.NewFailureError(fmt.Sprintf("merging %s", src), err)
				}
				totalMerged += merged
				totalSkipped += skipped
			}

			verb := "merged"
			if dryRun {
				verb = "would merge"
			}
			fmt.Printf("log-merge: %s %d session(s) from %d source(s) into %s (%d skipped as duplicates)\n",
				verb, totalMerged, len(sources), target, totalSkipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target database path (required)")
	cmd.Flags().StringVar(&scanDir, "scan", "", "Directory to scan for source databases, instead of listing files as arguments")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be merged without writing to --target")
	cmd.Flags().BoolVar(&skipDuplicates, "skip-duplicates", false, "Skip sessions whose workflow_name|started_at key already exists in the target")

	return cmd
}

// resolveSources returns the source database paths: either every regular,
// non-sidecar file under scanDir (excluding target itself), or the
// explicit file list in args.
func resolveSources(scanDir string, args []string, target string) ([]string, error) {
	if scanDir != "" {
		entries, err := os.ReadDir(scanDir)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", scanDir, err)
		}
		targetAbs, _ := filepath.Abs(target)

		var out []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if isSidecarFile(e.Name()) {
				continue
			}
			path := filepath.Join(scanDir, e.Name())
			if abs, err := filepath.Abs(path); err == nil && abs == targetAbs {
				continue
			}
			out = append(out, path)
		}
		sort.Strings(out)
		return out, nil
	}
	return args, nil
}

func isSidecarFile(name string) bool {
	for _, suffix := range sidecarSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// dedupKey is the `workflow_name|started_at` identity --skip-duplicates
// matches sessions on.
func dedupKey(s logstore.Session) string {
	return s.WorkflowName + "|" + s.StartedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// existingDedupKeys seeds the dedup set from sessions already present in
// target, so a second --skip-duplicates run over the same sources is a
// no-op rather than re-merging everything the first run already copied.
func existingDedupKeys(ctx context.Context, store *logstore.LogStore) (map[string]bool, error) {
	sessions, err := store.ListSessions(ctx, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		seen[dedupKey(s)] = true
	}
	return seen, nil
}

// mergeOne copies every session from the database at path into target,
// oldest first, skipping any whose dedup key is already in seen when
// skipDuplicates is set. seen is updated in place so later sources in the
// same invocation see earlier ones' keys too.
func mergeOne(ctx context.Context, target *logstore.LogStore, path string, dryRun, skipDuplicates bool, seen map[string]bool) (merged, skipped int, err error) {
	// Each source gets its own writer pool: sharing target's width-1 pool
	// would queue the source's writer goroutine behind target's, which
	// never exits while target stays open, stalling every Close() here
	// for the full 5s join cap.
	src, err := logstore.Open(path, actorsystem.NewPool(1))
	if err != nil {
		return 0, 0, fmt.Errorf("open: %w", err)
	}
	defer src.Close()

	sessions, err := src.ListSessions(ctx, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("list sessions: %w", err)
	}
	// ListSessions orders newest-first; merge oldest-first so a target
	// that already has some of these sessions sees the same id ordering
	// a fresh run would have produced.
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	for _, s := range sessions {
		key := dedupKey(s)
		if skipDuplicates && seen[key] {
			skipped++
			continue
		}

		if !dryRun {
			logs, err := src.GetLogsByLevel(ctx, s.ID, logstore.LevelDebug)
			if err != nil {
				return merged, skipped, fmt.Errorf("read logs for session %d: %w", s.ID, err)
			}
			nodeResults, err := src.GetNodeResults(ctx, s.ID)
			if err != nil {
				return merged, skipped, fmt.Errorf("read node results for session %d: %w", s.ID, err)
			}
			if _, err := target.ImportSession(ctx, s, logs, nodeResults); err != nil {
				return merged, skipped, fmt.Errorf("import session %d: %w", s.ID, err)
			}
		}

		seen[key] = true
		merged++
	}
	return merged, skipped, nil
}
