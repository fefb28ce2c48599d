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

import "sync"

// mailbox is a FIFO queue of pending messages for one actor. At most one
// pool worker ever drains a given mailbox at a time: scheduled tracks
// whether a drain task is already in flight, so a burst of tell/ask calls
// schedules exactly one drain loop instead of one task per message.
type mailbox struct {
	mu        sync.Mutex
	queue     []mailboxMsg
	scheduled bool
}

// enqueue appends msg and reports whether the caller must schedule a drain
// (true the first time the mailbox transitions from idle to busy).
func (m *mailbox) enqueue(msg mailboxMsg) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, msg)
	if m.scheduled {
		return false
	}
	m.scheduled = true
	return true
}

// dequeueAll returns every currently queued message, or marks the mailbox
// idle again if it is empty (the caller's drain loop then exits).
func (m *mailbox) dequeueAll() ([]mailboxMsg, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		m.scheduled = false
		return nil, false
	}
	batch := m.queue
	m.queue = nil
	return batch, true
}
