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
	"github.com/conduitio/creditflow/pkg/foundation/log"
	"github.com/conduitio/creditflow/pkg/foundation/rollback"
)

var errNoRoleHandler = cerrors.New("participant can not take this role")

// handleRequest starts a new stream on a source.
func (p *Participant) handleRequest(ctx *actor.Context, req Request) {
	fail := func(err error) {
		p.logger.Warn(ctx.Context()).Err(err).
			Str(log.PeerField, req.Requester.String()).
			Msg("rejecting stream request")
		_ = ctx.Send(req.Requester, Result{Err: err})
	}

	if p.role != RoleSource {
		fail(initFailed(cerrors.Errorf("%s: %w", p.role, errNoRoleHandler)))
		return
	}
	if len(req.Route) == 0 {
		fail(ErrNoDownstream)
		return
	}
	inst, err := p.source.newSource(p.payload)
	if err != nil {
		fail(err)
		return
	}

	p.nextSeq++
	next := req.Route[0]
	e := &Entry{
		ID:        ID{Origin: ctx.Self(), Seq: p.nextSeq},
		Role:      RoleSource,
		Requester: req.Requester,
		Outbound:  newSlot(RoleSource, actor.Address{}, next.Addr, p.capacity),
		opened:    time.Now(),
		src:       inst,
	}
	if err := p.put(ctx, e); err != nil {
		inst.cleanup(err)
		fail(err)
		return
	}

	p.send(ctx, e, req.Requester, Started{ID: e.ID})
	err = ctx.Send(next.Addr, Open{
		ID:        e.ID,
		Payload:   p.payload,
		Source:    ctx.Self(),
		Requester: req.Requester,
		Route:     req.Route[1:],
	})
	if err != nil {
		p.abort(ctx, e, actor.Address{}, unreachable(err))
	}
}

func (p *Participant) handleOpen(ctx *actor.Context, from actor.Address, msg Open) {
	if _, ok := p.table.Get(msg.ID); ok {
		p.logger.Warn(p.streamCtx(ctx, msg.ID)).
			Str(log.PeerField, from.String()).
			Msg("dropping open for existing stream")
		return
	}
	switch p.role {
	case RoleStage:
		p.openStage(ctx, from, msg)
	case RoleSink:
		p.openSink(ctx, from, msg)
	default:
		p.reject(ctx, from, msg.ID, initFailed(cerrors.Errorf("%s: %w", p.role, errNoRoleHandler)))
	}
}

// reject answers an open with an abort. No slot exists at this point.
func (p *Participant) reject(ctx *actor.Context, to actor.Address, id ID, reason error) {
	p.logger.Err(p.streamCtx(ctx, id), reason).
		Str(log.PeerField, to.String()).
		Msg("rejecting stream")
	abortsTotal.WithValues(ReasonCode(reason)).Inc()
	_ = ctx.Send(to, Abort{ID: id, Reason: reason})
}

func (p *Participant) openStage(ctx *actor.Context, from actor.Address, msg Open) {
	inst, err := p.stage.newStage(msg.Payload)
	if err != nil {
		p.reject(ctx, from, msg.ID, err)
		return
	}

	e := &Entry{
		ID:        msg.ID,
		Role:      RoleStage,
		Requester: msg.Requester,
		Inbound:   newSlot(RoleStage, from, actor.Address{}, p.capacity),
		Outbound:  newSlot(RoleStage, actor.Address{}, actor.Address{}, p.capacity),
		opened:    time.Now(),
		stg:       inst,
	}
	if len(msg.Route) > 0 {
		e.Outbound.Downstream = msg.Route[0].Addr
	}

	var (
		r      rollback.R
		reason error
	)
	defer r.Execute()
	if err := p.put(ctx, e); err != nil {
		inst.cleanup(err)
		p.reject(ctx, from, msg.ID, err)
		return
	}
	r.Append(func() {
		p.remove(ctx, e, StateAborted, reason)
		p.reject(ctx, from, msg.ID, reason)
	})

	if len(msg.Route) == 0 {
		reason = ErrNoDownstream
		return
	}
	err = ctx.Send(e.Outbound.Downstream, Open{
		ID:        msg.ID,
		Payload:   p.payload,
		Source:    msg.Source,
		Requester: msg.Requester,
		Route:     msg.Route[1:],
	})
	if err != nil {
		reason = unreachable(err)
		return
	}
	r.Skip()
}

func (p *Participant) openSink(ctx *actor.Context, from actor.Address, msg Open) {
	if len(msg.Route) > 0 {
		p.reject(ctx, from, msg.ID, cerrors.Errorf("%w: sink has %d more hops", ErrAmbiguousDownstream, len(msg.Route)))
		return
	}
	inst, err := p.sink.newSink(msg.Payload)
	if err != nil {
		p.reject(ctx, from, msg.ID, err)
		return
	}

	e := &Entry{
		ID:        msg.ID,
		Role:      RoleSink,
		Requester: msg.Requester,
		Inbound:   newSlot(RoleSink, from, actor.Address{}, p.capacity),
		opened:    time.Now(),
		snk:       inst,
	}
	if err := p.put(ctx, e); err != nil {
		inst.cleanup(err)
		p.reject(ctx, from, msg.ID, err)
		return
	}
	e.Inbound.State = StateOpen
	p.grantInitial(ctx, e)
}

// handleAckOpen opens the outbound slot once the downstream chain accepted
// the stream. A stage then acknowledges its own upstream.
func (p *Participant) handleAckOpen(ctx *actor.Context, e *Entry, from actor.Address, msg AckOpen) {
	out := e.Outbound
	if out == nil || !p.expectPeer(ctx, e, from, out.Downstream, "ack_open") {
		return
	}
	if out.State != StateHandshaking {
		p.logger.Warn(p.streamCtx(ctx, e.ID)).Msg("dropping duplicate ack_open")
		return
	}
	out.Outbound.SetMax(msg.InitialCredit)
	out.Outbound.Set(msg.InitialCredit)
	out.State = StateOpen
	p.elapsedHandshake(e)
	p.logger.Debug(p.streamCtx(ctx, e.ID)).
		Str(log.RoleField, e.Role.String()).
		Uint64(log.CreditField, msg.InitialCredit).
		Msg("stream open")

	switch e.Role {
	case RoleSource:
		p.pumpSource(ctx, e)
	case RoleStage:
		e.Inbound.State = StateOpen
		p.grantInitial(ctx, e)
	}
}

// grantInitial replies AckOpen upstream with the current headroom.
func (p *Participant) grantInitial(ctx *actor.Context, e *Entry) {
	in := e.Inbound
	grant := p.headroom(e)
	in.Inbound.Set(grant)
	in.lastGrant = grant
	creditGranted.WithValues(e.Role.String()).Inc(float64(grant))
	if err := ctx.Send(in.Upstream, AckOpen{ID: e.ID, InitialCredit: grant}); err != nil {
		p.abort(ctx, e, actor.Address{}, unreachable(err))
	}
}

// headroom returns the number of elements the upstream may send. A sink
// consumes synchronously and always has full capacity, a stage has what is
// left of its buffer divided by its expansion factor.
func (p *Participant) headroom(e *Entry) uint64 {
	if e.Role == RoleSink {
		return p.capacity
	}
	pending := uint64(e.Outbound.Pending.Len())
	if pending >= p.capacity {
		return 0
	}
	return (p.capacity - pending) / p.stage.expansion()
}
