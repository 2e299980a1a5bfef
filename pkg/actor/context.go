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
	"time"

	"github.com/conduitio/creditflow/pkg/foundation/ctxutil"
	"github.com/conduitio/creditflow/pkg/foundation/log"
)

// Context is handed to an actor in every call to Receive. It must not be
// used outside of the actor's own goroutine.
type Context struct {
	ctx    context.Context
	sys    *System
	p      *process
	logger log.CtxLogger

	stopping   bool
	stopReason error
}

var _ Sender = (*Context)(nil)

func (s *System) newContext(p *process) *Context {
	return &Context{
		ctx:    ctxutil.ContextWithActor(s.ctx, p.addr.String()),
		sys:    s,
		p:      p,
		logger: s.logger.WithComponent(p.name),
	}
}

// Context returns a context that carries the actor address and is canceled
// when the system shuts down.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Self returns the address of the current actor.
func (c *Context) Self() Address {
	return c.p.addr
}

// Name returns the name the actor was spawned with.
func (c *Context) Name() string {
	return c.p.name
}

// System returns the system hosting the current actor.
func (c *Context) System() *System {
	return c.sys
}

// Logger returns a logger with the actor name as the component.
func (c *Context) Logger() log.CtxLogger {
	return c.logger
}

// Send delivers msg to the actor at address to.
func (c *Context) Send(to Address, msg any) error {
	return c.sys.Send(c.p.addr, to, msg)
}

// Timer is a pending message scheduled with SendAfter.
type Timer struct {
	t *time.Timer
}

// Stop prevents the timer from firing. It returns false if the timer already
// fired or was stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.t == nil {
		return false
	}
	return t.t.Stop()
}

// SendAfter delivers msg to the current actor after d has elapsed.
func (c *Context) SendAfter(d time.Duration, msg any) *Timer {
	self := c.p.addr
	sys := c.sys
	return &Timer{t: time.AfterFunc(d, func() {
		_ = sys.Send(self, self, msg)
	})}
}

// Monitor makes the current actor receive a Down message once target stops.
func (c *Context) Monitor(target Address) {
	c.sys.Monitor(c.p.addr, target)
}

// Demonitor undoes one call to Monitor.
func (c *Context) Demonitor(target Address) {
	c.sys.Demonitor(c.p.addr, target)
}

// Stop stops the current actor after the current message is processed.
func (c *Context) Stop(reason error) {
	c.stopping = true
	c.stopReason = reason
}
