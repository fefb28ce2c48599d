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

// Package cowsay renders the `--cowfile` closing banner `run` prints
// after its report. Cowfile dialect parsing is out of scope; this
// package only supplies the fixed speech-bubble frame stagehand wraps a
// report in when `--cowfile` is set, so the flag has an effect without
// pulling in a cowfile-dialect parser.
package cowsay

import (
	"strings"
)

const defaultCow = `        \   ^__^
         \  (oo)\_______
            (__)\       )\/\
                ||----w |
                ||     ||`

// Say wraps message in a speech bubble followed by the fixed cow art.
// cowfile is accepted (so the flag round-trips) but does not select a
// different figure; see the package doc and DESIGN.md.
func Say(message, cowfile string) string {
	lines := strings.Split(strings.TrimRight(message, "\n"), "\n")
	width := 0
	for _, l := range lines {
		if len(l) > width {
			width = len(l)
		}
	}

	var b strings.Builder
	b.WriteString(" " + strings.Repeat("_", width+2) + "\n")
	for i, l := range lines {
		border := "|"
		if len(lines) > 1 {
			switch i {
			case 0:
				border = "/"
			case len(lines) - 1:
				border = "\\"
			default:
				border = "|"
			}
		}
		b.WriteString(border + " " + l + strings.Repeat(" ", width-len(l)) + " " + border + "\n")
	}
	b.WriteString(" " + strings.Repeat("-", width+2) + "\n")
	b.WriteString(defaultCow + "\n")
	return b.String()
}
