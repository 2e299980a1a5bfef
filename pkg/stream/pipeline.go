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
	"context"

	"github.com/conduitio/creditflow/pkg/actor"
	"github.com/conduitio/creditflow/pkg/foundation/cchan"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/creditflow/pkg/foundation/multierror"
)

var errInvalidHandle = cerrors.New("invalid handle")

// Handle refers to a participant added to a Builder.
type Handle struct {
	b   *Builder
	idx int
}

// Builder assembles linear pipelines out of participants. Every Add call
// spawns one participant actor, the same pipeline can be run any number of
// times, also concurrently. Construction errors are collected and returned
// by Run.
type Builder struct {
	sys   *actor.System
	cfg   Config
	nodes []*pipelineNode
	err   error
}

type pipelineNode struct {
	role Role
	name string
	sys  *actor.System
	addr actor.Address
	part *Participant
	next int
}

// Option configures a participant added to a Builder.
type Option func(*addOptions)

type addOptions struct {
	sys  *actor.System
	name string
}

// OnSystem places the participant on another actor system. The builder's
// system needs a router that reaches it.
func OnSystem(sys *actor.System) Option {
	return func(o *addOptions) { o.sys = sys }
}

// WithName sets the actor name of the participant, used in logs.
func WithName(name string) Option {
	return func(o *addOptions) { o.name = name }
}

func NewBuilder(sys *actor.System, cfg Config) *Builder {
	return &Builder{sys: sys, cfg: cfg}
}

// AddSource spawns a source participant. The payload is handed to the
// source's Init and sent to the next participant.
func (b *Builder) AddSource(payload Payload, h SourceHandler, opts ...Option) Handle {
	return b.add(NewSourceParticipant(b.cfg, payload, h), "source", opts)
}

// AddStage spawns a stage participant reading from in.
func (b *Builder) AddStage(in Handle, payload Payload, h StageHandler, opts ...Option) Handle {
	out := b.add(NewStageParticipant(b.cfg, payload, h), "stage", opts)
	b.link(in, out)
	return out
}

// AddSink spawns a sink participant reading from in.
func (b *Builder) AddSink(in Handle, h SinkHandler, opts ...Option) Handle {
	out := b.add(NewSinkParticipant(b.cfg, h), "sink", opts)
	b.link(in, out)
	return out
}

func (b *Builder) add(p *Participant, name string, opts []Option) Handle {
	o := addOptions{sys: b.sys, name: name}
	for _, opt := range opts {
		opt(&o)
	}
	n := &pipelineNode{
		role: p.Role(),
		name: o.name,
		sys:  o.sys,
		part: p,
		next: -1,
	}
	n.addr = o.sys.Spawn(o.name, p)
	b.nodes = append(b.nodes, n)
	return Handle{b: b, idx: len(b.nodes) - 1}
}

func (b *Builder) link(in, out Handle) {
	from, err := b.node(in)
	if err != nil {
		b.err = multierror.Append(b.err, err)
		return
	}
	switch {
	case from.role == RoleSink:
		b.err = multierror.Append(b.err, cerrors.Errorf("%w: sink %q can not have a downstream", ErrAmbiguousDownstream, from.name))
	case from.next >= 0:
		b.err = multierror.Append(b.err, cerrors.Errorf("%w: %q already has a downstream", ErrAmbiguousDownstream, from.name))
	default:
		from.next = out.idx
	}
}

func (b *Builder) node(h Handle) (*pipelineNode, error) {
	if h.b != b || h.idx < 0 || h.idx >= len(b.nodes) {
		return nil, errInvalidHandle
	}
	return b.nodes[h.idx], nil
}

// Addr returns the actor address of the participant.
func (b *Builder) Addr(h Handle) actor.Address {
	n, err := b.node(h)
	if err != nil {
		return actor.Address{}
	}
	return n.addr
}

// Participant returns the participant behind the handle, nil if the handle
// does not belong to the builder.
func (b *Builder) Participant(h Handle) *Participant {
	n, err := b.node(h)
	if err != nil {
		return nil
	}
	return n.part
}

// WaitIdle blocks until no participant of the builder holds a slot.
func (b *Builder) WaitIdle(ctx context.Context) error {
	for _, n := range b.nodes {
		if err := n.part.WaitIdle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops every participant, streams still running are aborted.
func (b *Builder) Stop() {
	for _, n := range b.nodes {
		n.sys.Stop(n.addr, nil)
	}
}

// route returns the hops downstream of the source.
func (b *Builder) route(src Handle) ([]Hop, *pipelineNode, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	n, err := b.node(src)
	if err != nil {
		return nil, nil, err
	}
	if n.role != RoleSource {
		return nil, nil, cerrors.Errorf("%w: %q is a %s, not a source", errInvalidHandle, n.name, n.role)
	}

	var route []Hop
	last := n
	for i := n.next; i >= 0; i = b.nodes[i].next {
		last = b.nodes[i]
		route = append(route, Hop{Addr: last.addr, Role: last.role})
	}
	if last.role != RoleSink {
		return nil, nil, cerrors.Errorf("%w: %q is not followed by a sink", ErrNoDownstream, last.name)
	}
	return route, n, nil
}

// Run starts one stream on the pipeline beginning at src and blocks until
// the sink delivered its result or the stream was aborted. Cancelling ctx
// aborts the stream and returns the context error.
func (b *Builder) Run(ctx context.Context, src Handle) (any, error) {
	route, n, err := b.route(src)
	if err != nil {
		return nil, err
	}

	r := newRequester(n.addr)
	addr := b.sys.Spawn("requester", r)
	err = b.sys.Send(addr, n.addr, Request{Route: route, Requester: addr})
	if err != nil {
		b.sys.Stop(addr, nil)
		return nil, unreachable(err)
	}

	o, _, err := cchan.ChanOut[outcome](r.out).Recv(ctx)
	if err != nil {
		_ = b.sys.Send(actor.Address{}, addr, cancelRun{reason: err})
		return nil, err
	}
	return o.value, o.err
}

// RunAs runs the pipeline and converts the result into R.
func RunAs[R any](ctx context.Context, b *Builder, src Handle) (R, error) {
	v, err := b.Run(ctx, src)
	if err != nil {
		var zero R
		return zero, err
	}
	return coerce[R](v)
}
