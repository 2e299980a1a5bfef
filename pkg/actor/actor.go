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

// Package actor is a small actor runtime. Every actor owns a mailbox drained
// by a single goroutine, so state touched only from Receive needs no locking.
// Messages between one sender and one receiver are delivered in send order.
package actor

import (
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/google/uuid"
)

var (
	// ErrUnreachable is returned when a message can not be delivered because
	// the target actor does not exist, has stopped or lives on a node that
	// is not connected.
	ErrUnreachable = cerrors.New("actor unreachable")
	// ErrShutdown is the stop reason of actors that were stopped because the
	// system shut down.
	ErrShutdown = cerrors.New("actor system shut down")
)

// Address identifies an actor. The node part names the actor system the
// actor lives on.
type Address struct {
	Node string    `json:"node"`
	ID   uuid.UUID `json:"id"`
}

// IsZero returns true if the address does not point to any actor.
func (a Address) IsZero() bool {
	return a.ID == uuid.Nil
}

func (a Address) String() string {
	if a.IsZero() {
		return "<none>"
	}
	return a.Node + "/" + a.ID.String()
}

// Envelope is a message in transit.
type Envelope struct {
	From Address
	To   Address
	Msg  any
}

// Actor processes messages one at a time. Receive is never called
// concurrently for the same actor.
type Actor interface {
	Receive(ctx *Context, env Envelope)
}

// Func is an adapter that turns a plain function into an Actor.
type Func func(ctx *Context, env Envelope)

func (f Func) Receive(ctx *Context, env Envelope) { f(ctx, env) }

// Starter can be implemented by an actor to run code in its own goroutine
// before the first message is received.
type Starter interface {
	Started(ctx *Context)
}

// Stopper can be implemented by an actor to get notified when it stops. The
// reason is nil if the actor stopped normally.
type Stopper interface {
	Stopped(ctx *Context, reason error)
}

// Down is delivered to every watcher of an actor once that actor stops or
// becomes unreachable. Reason is nil if the actor stopped normally.
type Down struct {
	Addr   Address
	Reason error
}

// Sender is the part of Context needed to talk to other actors.
//
//go:generate mockgen -typed -destination=mock/sender.go -package=mock -mock_names=Sender=Sender . Sender
type Sender interface {
	Self() Address
	Send(to Address, msg any) error
}

// Router delivers envelopes addressed to actors on other nodes.
type Router interface {
	// Route delivers env to a remote node. It returns ErrUnreachable if the
	// node is not connected.
	Route(env Envelope) error
	// Monitor arranges for watcher to receive Down once target stops or
	// the connection to its node is lost.
	Monitor(watcher, target Address) error
}
