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
	"fmt"
	"os"
)

// DefaultStderrWriter is the fallback diagnostic sink for Multiplexer: it
// writes sink-failure reports directly to the process's stderr, bypassing
// every registered Accumulator so a broken sink can never recurse into
// itself through the pipeline it belongs to.
func DefaultStderrWriter(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}
