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
	"github.com/conduitio/creditflow/pkg/actor"
	"github.com/gammazero/deque"
)

// Role is the position of a participant in a pipeline.
type Role int

const (
	RoleSource Role = iota + 1
	RoleStage
	RoleSink
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleStage:
		return "stage"
	case RoleSink:
		return "sink"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a slot.
type State int

const (
	StateHandshaking State = iota
	StateOpen
	StateDraining
	StateClosing
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal returns true for closed and aborted.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateAborted
}

// sentBatch records an unacknowledged batch on an outbound slot.
type sentBatch struct {
	seq uint64
	n   uint64
}

// Slot is the state one participant keeps for one edge of one stream. A
// source owns an outbound slot, a sink an inbound one and a stage both.
type Slot struct {
	Role       Role
	State      State
	Upstream   actor.Address
	Downstream actor.Address

	// Inbound is the credit given away to the upstream peer.
	Inbound CreditWindow
	// Outbound is the credit received from the downstream peer.
	Outbound CreditWindow

	// Pending holds elements not yet sent downstream.
	Pending deque.Deque[any]
	// NextSeq is the sequence number of the next batch sent on this edge.
	NextSeq uint64

	unacked deque.Deque[sentBatch]

	// lastSeq is the sequence number of the last received batch, valid once
	// received is set.
	lastSeq   uint64
	received  bool
	lastGrant uint64
}

func newSlot(role Role, upstream, downstream actor.Address, capacity uint64) *Slot {
	return &Slot{
		Role:       role,
		State:      StateHandshaking,
		Upstream:   upstream,
		Downstream: downstream,
		Inbound:    NewCreditWindow(capacity),
		Outbound:   NewCreditWindow(0),
	}
}

// inflight returns the number of elements sent in batches that were not
// acknowledged yet.
func (s *Slot) inflight() uint64 {
	var n uint64
	for i := 0; i < s.unacked.Len(); i++ {
		n += s.unacked.At(i).n
	}
	return n
}

// ack forgets every batch up to and including seq.
func (s *Slot) ack(seq uint64) {
	for s.unacked.Len() > 0 && s.unacked.Front().seq <= seq {
		s.unacked.PopFront()
	}
}

// takeBatch removes up to the granted number of pending elements, records
// them as unacknowledged and returns them together with their sequence
// number. It returns nil if there is nothing to send or no credit.
func (s *Slot) takeBatch() ([]any, uint64) {
	n := min(uint64(s.Pending.Len()), s.Outbound.Granted())
	if n == 0 {
		return nil, 0
	}
	elems := make([]any, n)
	for i := range elems {
		elems[i] = s.Pending.PopFront()
	}
	_ = s.Outbound.Consume(n) // n <= granted
	seq := s.NextSeq
	s.NextSeq++
	s.unacked.PushBack(sentBatch{seq: seq, n: n})
	return elems, seq
}

// settled returns true when no batch is waiting for an acknowledgement.
func (s *Slot) settled() bool {
	return s.unacked.Len() == 0
}
