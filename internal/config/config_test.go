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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 4, cfg.Threads)
	assert.Equal(t, 10000, cfg.MaxSteps)
	assert.Equal(t, 29090, cfg.LogServicePort)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("STAGEHAND_THREADS", "8")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Threads)
}

func TestConfigDir_RespectsXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Contains(t, got, dir)
	assert.Contains(t, got, "stagehand")
}
