// Copyright © 2025 Meroxa, Inc.
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

package actor

import (
	"sync"

	"github.com/gammazero/deque"
)

// mailbox is an unbounded FIFO queue of envelopes. Producers never block,
// the owning goroutine is woken up through a buffered signal channel.
type mailbox struct {
	m      sync.Mutex
	queue  deque.Deque[Envelope]
	closed bool

	// signal is buffered to ensure signals don't get lost if the actor is busy
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// Push appends env to the mailbox. It fails with ErrUnreachable once the
// mailbox is closed.
func (mb *mailbox) Push(env Envelope) error {
	mb.m.Lock()
	if mb.closed {
		mb.m.Unlock()
		return ErrUnreachable
	}
	mb.queue.PushBack(env)
	mb.m.Unlock()

	select {
	case mb.signal <- struct{}{}:
	default:
		// a signal is already pending
	}
	return nil
}

// Pop removes the oldest envelope from the mailbox.
func (mb *mailbox) Pop() (Envelope, bool) {
	mb.m.Lock()
	defer mb.m.Unlock()
	if mb.queue.Len() == 0 {
		return Envelope{}, false
	}
	return mb.queue.PopFront(), true
}

func (mb *mailbox) Len() int {
	mb.m.Lock()
	defer mb.m.Unlock()
	return mb.queue.Len()
}

// Close rejects further pushes and returns the envelopes that were still
// queued.
func (mb *mailbox) Close() []Envelope {
	mb.m.Lock()
	defer mb.m.Unlock()
	mb.closed = true
	dropped := make([]Envelope, 0, mb.queue.Len())
	for mb.queue.Len() > 0 {
		dropped = append(dropped, mb.queue.PopFront())
	}
	return dropped
}
