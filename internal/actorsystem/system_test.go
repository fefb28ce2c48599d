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

package actorsystem

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActor struct {
	name    string
	counter *int64
}

func (f *fakeActor) Name() string { return f.name }

func (f *fakeActor) Actions() map[string]Handler {
	return map[string]Handler{
		"inc": func(ctx context.Context, argsJSON string) ActionResult {
			atomic.AddInt64(f.counter, 1)
			return ActionResult{Success: true, Result: "ok"}
		},
		"boom": func(ctx context.Context, argsJSON string) ActionResult {
			panic("kaboom")
		},
		"echo": func(ctx context.Context, argsJSON string) ActionResult {
			return ActionResult{Success: true, Result: argsJSON}
		},
	}
}

func TestSystem_UnknownActor(t *testing.T) {
	sys := New(2)
	defer sys.Shutdown()

	res := sys.Ask(context.Background(), "ghost", "inc", "[]")
	assert.False(t, res.Success)
	assert.Contains(t, res.Result, "Unknown actor")
}

func TestSystem_UnknownAction(t *testing.T) {
	sys := New(2)
	defer sys.Shutdown()

	var counter int64
	sys.Register(&fakeActor{name: "a", counter: &counter})

	res := sys.Ask(context.Background(), "a", "nope", "[]")
	assert.False(t, res.Success)
	assert.Contains(t, res.Result, "Unknown action")
}

func TestSystem_PanicConvertsToFailure(t *testing.T) {
	sys := New(2)
	defer sys.Shutdown()

	var counter int64
	sys.Register(&fakeActor{name: "a", counter: &counter})

	res := sys.Ask(context.Background(), "a", "boom", "[]")
	assert.False(t, res.Success)
	assert.Contains(t, res.Result, "kaboom")
}

func TestSystem_TellDoesNotBlockAndSerializesPerActor(t *testing.T) {
	sys := New(4)
	defer sys.Shutdown()

	var counter int64
	sys.Register(&fakeActor{name: "a", counter: &counter})

	const n = 100
	for i := 0; i < n; i++ {
		sys.Tell(context.Background(), "a", "inc", "[]")
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&counter) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSystem_AskBlocksForReply(t *testing.T) {
	sys := New(2)
	defer sys.Shutdown()

	var counter int64
	sys.Register(&fakeActor{name: "a", counter: &counter})

	res := sys.CallByActionName(context.Background(), "a", "inc", "[]")
	assert.True(t, res.Success)
	assert.Equal(t, int64(1), counter)
}

func TestFormatAndDecodeArgs(t *testing.T) {
	encoded := FormatArgs("deploy.yaml", "prod")
	assert.Equal(t, `["deploy.yaml","prod"]`, encoded)

	decoded, err := DecodeArgs(encoded)
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy.yaml", "prod"}, decoded)

	_, err = DecodeArgs("not-json")
	assert.Error(t, err)
}
