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

package workflowdoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
name: deploy
description: deploys the release
vars:
  env: staging
transitions:
  - states: [start, build]
    actions:
      - actor: loader
        method: createChild
        arguments: ["worker", "noop"]
    label: kick off build
  - states: [build, end]
    guards:
      - actor: env
        method: has
        arguments: ["{{.vars.env}}"]
    note: promote when staged
`

func TestParse_DerivesInitialStateFromFirstTransition(t *testing.T) {
	wf, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "deploy", wf.Name)
	assert.Equal(t, "start", wf.InitialState)
	require.Len(t, wf.Transitions, 2)
	assert.Equal(t, "staging", wf.Transitions[1].Guards[0].Arguments[0])
}

func TestParse_RejectsUnreachableFromState(t *testing.T) {
	_, err := Parse([]byte(`
name: broken
transitions:
  - states: [start, end]
  - states: [orphan, end]
`))
	assert.Error(t, err)
}

func TestIsTerminal_RequiresEndNameAndNoOutgoing(t *testing.T) {
	wf, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.True(t, wf.IsTerminal("end"))
	assert.False(t, wf.IsTerminal("build"))
	assert.False(t, wf.IsTerminal("start"))
}

func TestLoad_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "flow.yaml")
	writeFile(t, yamlPath, []byte(`
name: yaml-flow
transitions:
  - states: [start, end]
`))
	wf, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "yaml-flow", wf.Name)
	assert.Equal(t, yamlPath, wf.Path)

	jsonPath := filepath.Join(dir, "flow.json")
	writeFile(t, jsonPath, []byte(`{
		"name": "json-flow",
		"transitions": [{"states": ["start", "end"]}]
	}`))
	wf, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "json-flow", wf.Name)

	xmlPath := filepath.Join(dir, "flow.xml")
	writeFile(t, xmlPath, []byte(`<workflow>
		<name>xml-flow</name>
		<transitions>
			<transition><states><from>start</from><to>end</to></states></transition>
		</transitions>
	</workflow>`))
	wf, err = Load(xmlPath)
	require.NoError(t, err)
	assert.Equal(t, "xml-flow", wf.Name)
	assert.Equal(t, "start", wf.InitialState)
}

func TestLoad_RejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.toml")
	writeFile(t, path, []byte("name = 'flow'"))
	_, err := Load(path)
	assert.Error(t, err)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
