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

package accumulator

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleAccumulator formats each line as "[source] data" and routes
// stderr-typed output to stderr, everything else to stdout. A quiet flag
// suppresses output while still counting entries.
type ConsoleAccumulator struct {
	mu     sync.Mutex
	stdout *bufio.Writer
	stderr *bufio.Writer
	quiet  bool
	count  int

	errColor  *color.Color
	warnColor *color.Color
}

// NewConsoleAccumulator wraps stdout/stderr writers. quiet suppresses
// output while the sink keeps counting entries it received.
func NewConsoleAccumulator(stdout, stderr io.Writer, quiet bool) *ConsoleAccumulator {
	return &ConsoleAccumulator{
		stdout:    bufio.NewWriter(stdout),
		stderr:    bufio.NewWriter(stderr),
		quiet:     quiet,
		errColor:  color.New(color.FgRed),
		warnColor: color.New(color.FgYellow),
	}
}

// Add implements Accumulator.
func (c *ConsoleAccumulator) Add(source string, typ OutputType, data string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if c.quiet {
		return nil
	}

	w := c.stdout
	colorer := (*color.Color)(nil)
	switch {
	case typ == TypeStderr:
		w = c.stderr
	case typ == LogType("ERROR"), typ == LogType("SEVERE"):
		colorer = c.errColor
	case typ == LogType("WARN"), typ == LogType("WARNING"):
		colorer = c.warnColor
	}

	for _, line := range strings.Split(data, "\n") {
		formatted := fmt.Sprintf("[%s] %s\n", source, line)
		if colorer != nil {
			formatted = colorer.Sprint(formatted)
		}
		if _, err := w.WriteString(formatted); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Close is a no-op: Console owns no resource beyond the provided writers.
func (c *ConsoleAccumulator) Close() error { return nil }

// Count returns the number of Add calls observed, including while quiet.
func (c *ConsoleAccumulator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
