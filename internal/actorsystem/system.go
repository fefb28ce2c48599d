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
	"fmt"
	"sync"
	"time"

	"github.com/ironloom/stagehand/internal/metrics"
)

// DefaultPoolWidth is the default width of the shared user pool.
const DefaultPoolWidth = 4

// registeredActor pairs an Actor with its resolved action table and mailbox.
type registeredActor struct {
	actor   Actor
	actions map[string]Handler
	box     *mailbox
}

// System is the process-local registry from actor name to handle. It owns
// every actor instance; external callers only ever hold a name.
type System struct {
	mu     sync.RWMutex
	actors map[string]*registeredActor

	userPool *Pool // shared pool: actor dispatch, per-node interpreter runs
	dbPool   *Pool // width-1 pool reserved for database writes
}

// New creates a System with the given user-pool width (a non-positive
// width means DefaultPoolWidth) and
// a dedicated width-1 database pool.
func New(userPoolWidth int) *System {
	if userPoolWidth <= 0 {
		userPoolWidth = DefaultPoolWidth
	}
	return &System{
		actors:   make(map[string]*registeredActor),
		userPool: NewPool(userPoolWidth),
		dbPool:   NewPool(1),
	}
}

// DatabasePool returns the width-1 pool reserved for database writes, so
// LogStore's writer never competes with workflow execution for a slot.
func (s *System) DatabasePool() *Pool { return s.dbPool }

// UserPool returns the shared pool used for actor dispatch and per-node
// interpreter execution.
func (s *System) UserPool() *Pool { return s.userPool }

// Register adds an actor under its own name: a name resolves to at
// most one actor at any moment. Register overwrites any prior actor with
// that name, which must not happen for two live actors with the same
// name).
func (s *System) Register(a Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[a.Name()] = &registeredActor{
		actor:   a,
		actions: a.Actions(),
		box:     &mailbox{},
	}
}

// Unregister removes an actor, e.g. at system termination or when the
// loader destroys a dynamically created child.
func (s *System) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.actors, name)
}

// Lookup reports whether name currently resolves to a registered actor.
func (s *System) Lookup(name string) (Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ra, ok := s.actors[name]
	if !ok {
		return nil, false
	}
	return ra.actor, true
}

func (s *System) find(name string) (*registeredActor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ra, ok := s.actors[name]
	return ra, ok
}

// Tell enqueues an action invocation and returns as soon as it is
// enqueued; it does not wait for a reply.
func (s *System) Tell(ctx context.Context, actor, action, argsJSON string) {
	s.dispatch(ctx, actor, action, argsJSON, nil)
}

// Ask enqueues an action invocation and blocks until the single reply is
// produced (or ctx is cancelled, in which case the actor's eventual reply
// is silently discarded).
func (s *System) Ask(ctx context.Context, actor, action, argsJSON string) ActionResult {
	reply := make(chan ActionResult, 1)
	s.dispatch(ctx, actor, action, argsJSON, reply)
	select {
	case r := <-reply:
		return r
	case <-ctx.Done():
		return ActionResult{Success: false, Result: fmt.Sprintf("Error: %v", ctx.Err())}
	}
}

// CallByActionName is the ergonomic form used by workflow actions; it is
// internally an Ask.
func (s *System) CallByActionName(ctx context.Context, actor, action, argsJSON string) ActionResult {
	return s.Ask(ctx, actor, action, argsJSON)
}

// dispatch enqueues msg on actor's mailbox, scheduling a drain on the user
// pool if the mailbox was previously idle. An unknown actor is
// resolved eagerly (no need to touch the pool) so callers see it
// immediately even under Ask; an unknown action is reported when the
// mailbox is drained.
func (s *System) dispatch(ctx context.Context, actorName, action, argsJSON string, reply chan ActionResult) {
	ra, ok := s.find(actorName)
	if !ok {
		if reply != nil {
			reply <- ActionResult{Success: false, Result: fmt.Sprintf("Unknown actor: %s", actorName)}
		}
		return
	}

	msg := mailboxMsg{ctx: ctx, action: action, argsJSON: argsJSON, reply: reply}
	if ra.box.enqueue(msg) {
		s.userPool.Submit(func() { s.drain(ra) })
	}
}

// drain processes every message currently queued for ra, one at a time
// (single-writer discipline), rescheduling itself implicitly via the
// mailbox's scheduled flag if more arrive mid-drain.
func (s *System) drain(ra *registeredActor) {
	for {
		batch, ok := ra.box.dequeueAll()
		if !ok {
			return
		}
		for _, msg := range batch {
			start := time.Now()
			result := invoke(ra, msg.ctx, msg.action, msg.argsJSON)
			metrics.ObserveActorDispatch(ra.actor.Name(), msg.action, time.Since(start))
			if msg.reply != nil {
				msg.reply <- result
			}
		}
	}
}

// invoke calls the named handler, converting unknown actions and panics
// into a failed ActionResult. Actors never crash the system.
func invoke(ra *registeredActor, ctx context.Context, action, argsJSON string) (result ActionResult) {
	handler, ok := ra.actions[action]
	if !ok {
		return ActionResult{Success: false, Result: fmt.Sprintf("Unknown action: %s", action)}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	defer func() {
		if r := recover(); r != nil {
			result = ActionResult{Success: false, Result: fmt.Sprintf("Error: %v", r)}
		}
	}()

	return handler(ctx, argsJSON)
}

// Shutdown stops both pools, allowing in-flight work to complete.
func (s *System) Shutdown() {
	s.userPool.Shutdown()
	s.dbPool.Shutdown()
}
