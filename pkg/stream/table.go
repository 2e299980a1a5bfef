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

package stream

import (
	"time"

	"github.com/conduitio/creditflow/pkg/actor"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
)

// Entry holds everything one actor knows about one stream: its slots and the
// behavior instance working on them.
type Entry struct {
	ID        ID
	Role      Role
	Requester actor.Address
	// Inbound is set for stages and sinks.
	Inbound *Slot
	// Outbound is set for sources and stages.
	Outbound *Slot

	opened time.Time

	src sourceInstance
	stg stageInstance
	snk sinkInstance
}

// peers returns the addresses this entry exchanges messages with.
func (e *Entry) peers() []actor.Address {
	var out []actor.Address
	if e.Inbound != nil && !e.Inbound.Upstream.IsZero() {
		out = append(out, e.Inbound.Upstream)
	}
	if e.Outbound != nil && !e.Outbound.Downstream.IsZero() {
		out = append(out, e.Outbound.Downstream)
	}
	return out
}

func (e *Entry) upstream() actor.Address {
	if e.Inbound != nil {
		return e.Inbound.Upstream
	}
	return actor.Address{}
}

func (e *Entry) downstream() actor.Address {
	if e.Outbound != nil {
		return e.Outbound.Downstream
	}
	return actor.Address{}
}

// handshaking returns true until the downstream chain acknowledged the open.
func (e *Entry) handshaking() bool {
	if e.Outbound != nil {
		return e.Outbound.State == StateHandshaking
	}
	return e.Inbound.State == StateHandshaking
}

// setState moves every slot of the entry into s.
func (e *Entry) setState(s State) {
	if e.Inbound != nil {
		e.Inbound.State = s
	}
	if e.Outbound != nil {
		e.Outbound.State = s
	}
}

var errDuplicateStream = cerrors.New("stream already exists")

// Table maps stream identifiers to the entries of one actor. It is owned by
// that actor and not safe for concurrent use.
type Table struct {
	entries map[ID]*Entry
}

func NewTable() *Table {
	return &Table{entries: make(map[ID]*Entry)}
}

// Put adds an entry. It fails if an entry with the same ID exists.
func (t *Table) Put(e *Entry) error {
	if _, ok := t.entries[e.ID]; ok {
		return cerrors.Errorf("%v: %w", e.ID, errDuplicateStream)
	}
	t.entries[e.ID] = e
	return nil
}

func (t *Table) Get(id ID) (*Entry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// Remove deletes the entry and reports whether it existed. Only the first
// call for an ID returns true.
func (t *Table) Remove(id ID) bool {
	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	return true
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns all entries in no particular order.
func (t *Table) Entries() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}
