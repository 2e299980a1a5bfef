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
	"github.com/conduitio/creditflow/pkg/foundation/log"
)

// stageBatch runs every element of the batch through the stage, flushes the
// buffer downstream and only then acknowledges the batch upstream, so the
// grant reflects the room left after flushing.
func (p *Participant) stageBatch(ctx *actor.Context, e *Entry, msg Batch) {
	in, out := e.Inbound, e.Outbound
	if in.State != StateOpen {
		p.logger.Warn(p.streamCtx(ctx, e.ID)).
			Str(log.StateField, in.State.String()).
			Msg("dropping batch for slot that is not open")
		return
	}
	if err := in.Inbound.Consume(uint64(len(msg.Elements))); err != nil {
		p.abort(ctx, e, actor.Address{}, err)
		return
	}
	in.lastSeq, in.received = msg.Seq, true

	for _, v := range msg.Elements {
		elems, err := e.stg.step(v)
		if err != nil {
			p.abort(ctx, e, actor.Address{}, err)
			return
		}
		for _, o := range elems {
			out.Pending.PushBack(o)
		}
	}

	if !p.stageFlush(ctx, e) {
		return
	}
	grant := p.headroom(e)
	in.Inbound.Set(grant)
	in.lastGrant = grant
	creditGranted.WithValues(e.Role.String()).Inc(float64(grant))
	p.send(ctx, e, in.Upstream, AckBatch{ID: e.ID, Grant: grant, Seq: msg.Seq})
}

// stageFlush sends buffered elements downstream and closes the downstream
// edge once the upstream closed and the buffer is empty. It returns false if
// the entry is gone afterwards.
func (p *Participant) stageFlush(ctx *actor.Context, e *Entry) bool {
	out := e.Outbound
	if out.State == StateOpen || out.State == StateDraining {
		if !p.sendBatch(ctx, e) {
			return false
		}
		if e.Inbound.State == StateClosed {
			if out.Pending.Len() == 0 {
				p.closeDownstream(ctx, e)
			} else {
				out.State = StateDraining
			}
		}
	}
	if _, ok := p.table.Get(e.ID); !ok {
		return false
	}
	p.finishClosing(ctx, e)
	_, ok := p.table.Get(e.ID)
	return ok
}

// regrant tells the upstream about room freed since the last acknowledgement.
// Only increases are announced, the upstream never lowers credit on an
// unsolicited grant.
func (p *Participant) regrant(ctx *actor.Context, e *Entry) {
	in := e.Inbound
	if in == nil || in.State != StateOpen || !in.received {
		return
	}
	grant := p.headroom(e)
	if grant <= in.lastGrant {
		return
	}
	in.Inbound.Set(grant)
	in.lastGrant = grant
	creditGranted.WithValues(e.Role.String()).Inc(float64(grant))
	p.logger.Trace(p.streamCtx(ctx, e.ID)).
		Uint64(log.GrantField, grant).
		Msg("regranting credit")
	p.send(ctx, e, in.Upstream, AckBatch{ID: e.ID, Grant: grant, Seq: in.lastSeq, Unsolicited: true})
}
