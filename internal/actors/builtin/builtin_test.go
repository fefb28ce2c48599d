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

package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironloom/stagehand/internal/actorsystem"
)

func newTestSystem(t *testing.T) *actorsystem.System {
	sys := actorsystem.New(2)
	t.Cleanup(sys.Shutdown)
	return sys
}

func TestEnvActor_HasAndGet(t *testing.T) {
	sys := newTestSystem(t)
	sys.Register(NewEnvActor("env"))
	t.Setenv("STAGEHAND_TEST_VAR", "hello")

	res := sys.Ask(context.Background(), "env", "has", actorsystem.FormatArgs("STAGEHAND_TEST_VAR"))
	require.True(t, res.Success)
	assert.Equal(t, "true", res.Result)

	res = sys.Ask(context.Background(), "env", "get", actorsystem.FormatArgs("STAGEHAND_TEST_VAR"))
	require.True(t, res.Success)
	assert.Equal(t, "hello", res.Result)

	res = sys.Ask(context.Background(), "env", "has", actorsystem.FormatArgs("STAGEHAND_DOES_NOT_EXIST"))
	require.True(t, res.Success)
	assert.Equal(t, "false", res.Result)
}

func TestNoopActor_AlwaysSucceeds(t *testing.T) {
	sys := newTestSystem(t)
	sys.Register(NewNoopActor("noop"))

	res := sys.Ask(context.Background(), "noop", "run", "")
	require.True(t, res.Success)
}

func TestLoaderActor_CreateChild(t *testing.T) {
	sys := newTestSystem(t)
	sys.Register(NewLoaderActor("loader", sys))

	res := sys.Ask(context.Background(), "loader", "createChild", actorsystem.FormatArgs("my-env", "env"))
	require.True(t, res.Success)
	assert.Equal(t, "my-env", res.Result)

	_, ok := sys.Lookup("my-env")
	assert.True(t, ok)

	res = sys.Ask(context.Background(), "loader", "createChild", actorsystem.FormatArgs("my-env", "env"))
	assert.False(t, res.Success)

	res = sys.Ask(context.Background(), "loader", "createChild", actorsystem.FormatArgs("other", "not-a-class"))
	assert.False(t, res.Success)
}

func TestIsBuiltin(t *testing.T) {
	assert.True(t, IsBuiltin("env"))
	assert.True(t, IsBuiltin("noop"))
	assert.True(t, IsBuiltin("subWorkflow"))
	assert.True(t, IsBuiltin("loader"))
	assert.False(t, IsBuiltin("not-a-real-class"))
}
