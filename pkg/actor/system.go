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
	"context"
	"sync"

	"github.com/conduitio/creditflow/pkg/foundation/cchan"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/creditflow/pkg/foundation/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
	"gopkg.in/tomb.v2"
)

// DefaultNode is the node name used when a system is created without one.
const DefaultNode = "local"

// System hosts actors and delivers messages between them. Addresses that
// point to another node are handed to the configured Router.
type System struct {
	node   string
	logger log.CtxLogger

	// t supervises all actor goroutines
	t   *tomb.Tomb
	ctx context.Context

	m      sync.RWMutex
	procs  map[uuid.UUID]*process
	router Router
	closed bool
}

type process struct {
	addr    Address
	name    string
	actor   Actor
	mailbox *mailbox

	m        sync.Mutex
	dead     bool
	watchers map[Address]int
	funcs    []func(Down)
}

// stopSignal is queued in the mailbox when an actor is stopped from outside.
type stopSignal struct {
	reason error
}

// NewSystem creates an actor system for the given node.
func NewSystem(node string, logger log.CtxLogger) *System {
	if node == "" {
		node = DefaultNode
	}
	t := &tomb.Tomb{}
	s := &System{
		node:   node,
		logger: logger.WithComponent("actor.System"),
		t:      t,
		procs:  make(map[uuid.UUID]*process),
	}
	s.ctx = t.Context(context.Background())

	// keep the tomb alive until Shutdown is called, actors come and go
	t.Go(func() error {
		<-t.Dying()
		return nil
	})
	return s
}

// Node returns the name of the node this system runs on.
func (s *System) Node() string {
	return s.node
}

// SetRouter configures the router used for addresses on other nodes.
func (s *System) SetRouter(r Router) {
	s.m.Lock()
	defer s.m.Unlock()
	s.router = r
}

func (s *System) getRouter() Router {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.router
}

// Spawn starts a new actor and returns its address. Spawning on a system
// that was shut down returns an address that is unreachable.
func (s *System) Spawn(name string, a Actor) Address {
	addr := Address{Node: s.node, ID: uuid.New()}
	p := &process{
		addr:     addr,
		name:     name,
		actor:    a,
		mailbox:  newMailbox(),
		watchers: make(map[Address]int),
	}

	s.m.Lock()
	defer s.m.Unlock()
	if s.closed {
		return addr
	}
	s.procs[addr.ID] = p
	s.t.Go(func() error {
		s.run(p)
		return nil
	})
	return addr
}

// Send delivers msg to the actor at address to.
func (s *System) Send(from, to Address, msg any) error {
	return s.Deliver(Envelope{From: from, To: to, Msg: msg})
}

// Deliver pushes an envelope into the mailbox of its recipient. Envelopes
// for other nodes are routed.
func (s *System) Deliver(env Envelope) error {
	if env.To.IsZero() {
		return ErrUnreachable
	}
	if env.To.Node != s.node {
		r := s.getRouter()
		if r == nil {
			return ErrUnreachable
		}
		return r.Route(env)
	}
	p, ok := s.lookup(env.To)
	if !ok {
		return ErrUnreachable
	}
	return p.mailbox.Push(env)
}

// Stop asks a local actor to stop once it has processed the messages already
// in its mailbox.
func (s *System) Stop(addr Address, reason error) {
	if p, ok := s.lookup(addr); ok {
		_ = p.mailbox.Push(Envelope{To: addr, Msg: stopSignal{reason: reason}})
	}
}

// Alive returns true if the actor exists on this system and did not stop.
func (s *System) Alive(addr Address) bool {
	_, ok := s.lookup(addr)
	return ok
}

// Monitor arranges for watcher to receive a Down message once target stops.
// If target is already gone the Down message is sent right away.
func (s *System) Monitor(watcher, target Address) {
	if target.Node != s.node {
		r := s.getRouter()
		if r == nil {
			_ = s.Send(target, watcher, Down{Addr: target, Reason: ErrUnreachable})
			return
		}
		if err := r.Monitor(watcher, target); err != nil {
			_ = s.Send(target, watcher, Down{Addr: target, Reason: ErrUnreachable})
		}
		return
	}

	p, ok := s.lookup(target)
	if ok {
		p.m.Lock()
		if !p.dead {
			p.watchers[watcher]++
			p.m.Unlock()
			return
		}
		p.m.Unlock()
	}
	_ = s.Send(target, watcher, Down{Addr: target, Reason: ErrUnreachable})
}

// Demonitor removes one monitor previously established by Monitor. Remote
// monitors are not removed, a stale Down is ignored by the watcher.
func (s *System) Demonitor(watcher, target Address) {
	p, ok := s.lookup(target)
	if !ok {
		return
	}
	p.m.Lock()
	defer p.m.Unlock()
	if p.watchers[watcher] <= 1 {
		delete(p.watchers, watcher)
		return
	}
	p.watchers[watcher]--
}

// MonitorFunc calls f once the local actor target stops. It returns false if
// the actor does not exist anymore, in that case f is not called.
func (s *System) MonitorFunc(target Address, f func(Down)) bool {
	p, ok := s.lookup(target)
	if !ok {
		return false
	}
	p.m.Lock()
	defer p.m.Unlock()
	if p.dead {
		return false
	}
	p.funcs = append(p.funcs, f)
	return true
}

// Len returns the number of running actors.
func (s *System) Len() int {
	s.m.RLock()
	defer s.m.RUnlock()
	return len(s.procs)
}

// Shutdown stops all actors and waits for their goroutines to return.
func (s *System) Shutdown(ctx context.Context) error {
	s.m.Lock()
	s.closed = true
	s.m.Unlock()

	s.t.Kill(nil)
	done := make(chan error, 1)
	go func() {
		done <- s.t.Wait()
	}()
	err, _, ctxErr := cchan.ChanOut[error](done).Recv(ctx)
	if ctxErr != nil {
		return cerrors.Errorf("waiting for actors to stop: %w", ctxErr)
	}
	return err
}

func (s *System) lookup(addr Address) (*process, bool) {
	if addr.Node != s.node {
		return nil, false
	}
	s.m.RLock()
	defer s.m.RUnlock()
	p, ok := s.procs[addr.ID]
	return p, ok
}

func (s *System) run(p *process) {
	ctx := s.newContext(p)
	var (
		reason  error
		stopped bool
	)
	stop := func(r error) {
		reason = r
		stopped = true
	}

	if st, ok := p.actor.(Starter); ok {
		if err := s.turn(p, func() { st.Started(ctx) }); err != nil {
			stop(err)
		}
	}
	if !stopped && ctx.stopping {
		stop(ctx.stopReason)
	}

	for !stopped {
		select {
		case <-p.mailbox.signal:
		case <-s.t.Dying():
			stop(ErrShutdown)
			continue
		}

		for !stopped {
			env, ok := p.mailbox.Pop()
			if !ok {
				break
			}
			if sig, ok := env.Msg.(stopSignal); ok {
				stop(sig.reason)
				break
			}
			if err := s.turn(p, func() { p.actor.Receive(ctx, env) }); err != nil {
				stop(err)
				break
			}
			if ctx.stopping {
				stop(ctx.stopReason)
			}
		}
	}

	s.finalize(ctx, p, reason)
}

// turn runs f and converts a panic into an error.
func (s *System) turn(p *process, f func()) error {
	var pc panics.Catcher
	pc.Try(f)
	if r := pc.Recovered(); r != nil {
		return cerrors.Errorf("actor %q panicked: %w", p.name, r.AsError())
	}
	return nil
}

func (s *System) finalize(ctx *Context, p *process, reason error) {
	dropped := p.mailbox.Close()

	s.m.Lock()
	delete(s.procs, p.addr.ID)
	s.m.Unlock()

	p.m.Lock()
	p.dead = true
	watchers := p.watchers
	funcs := p.funcs
	p.watchers, p.funcs = nil, nil
	p.m.Unlock()

	if st, ok := p.actor.(Stopper); ok {
		if err := s.turn(p, func() { st.Stopped(ctx, reason) }); err != nil {
			s.logger.Err(ctx.Context(), err).Msg("stop hook failed")
		}
	}

	level := zerolog.DebugLevel
	if reason != nil && !cerrors.Is(reason, ErrShutdown) {
		level = zerolog.ErrorLevel
	}
	s.logger.WithLevel(ctx.Context(), level).
		Err(reason).
		Str(log.ActorNameField, p.name).
		Int("dropped_messages", len(dropped)).
		Msg("actor stopped")

	down := Down{Addr: p.addr, Reason: reason}
	for w := range watchers {
		_ = s.Send(p.addr, w, down)
	}
	for _, f := range funcs {
		f(down)
	}
}
