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

// Package describe implements `stagehand describe`: print a workflow's
// name, path, and description, and optionally its per-step notes.
package describe

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ironloom/stagehand/internal/cli"
	"github.com/ironloom/stagehand/internal/workflowdoc"
)

// NewCommand builds `stagehand describe`.
func NewCommand() *cobra.Command {
	var (
		dir      string
		workflow string
		steps    bool
	)

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print a workflow's name, path, and description",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" || workflow == "" {
				return cli.NewMissingArgsError("describe requires --dir and --workflow", nil)
			}

			path := filepath.Join(dir, workflow)
			wf, err := workflowdoc.Load(path)
			if err != nil {
				return cli.NewFailureError("loading workflow", err)
			}

			fmt.Printf("name: %s\n", wf.Name)
			fmt.Printf("path: %s\n", wf.Path)
			fmt.Printf("description: %s\n", wf.Description)

			if steps {
				fmt.Println("steps:")
				for _, t := range wf.Transitions {
					note := t.Note
					if note == "" {
						note = t.Label
					}
					fmt.Printf("  %s -> %s: %s\n", t.From(), t.To(), note)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Workflow base directory (required)")
	cmd.Flags().StringVar(&workflow, "workflow", "", "Workflow file name, relative to --dir (required)")
	cmd.Flags().BoolVar(&steps, "steps", false, "Also print each transition's note")

	return cmd
}
