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

// Package list implements `stagehand list`: enumerate workflow documents
// under a directory.
package list

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironloom/stagehand/internal/cli"
)

var workflowExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
	".xml":  true,
}

// NewCommand builds `stagehand list`.
func NewCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Enumerate workflow files under a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return cli.NewMissingArgsError("list requires --dir", nil)
			}

			files, err := Find(dir)
			if err != nil {
				return cli.NewFailureError("listing workflows", err)
			}
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to scan for workflow files (required)")
	return cmd
}

// Find returns every `.yaml`/`.yml`/`.json`/`.xml` file directly under
// dir, sorted for stable output.
func Find(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if workflowExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
