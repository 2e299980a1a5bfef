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

func (p *Participant) sinkBatch(ctx *actor.Context, e *Entry, msg Batch) {
	in := e.Inbound
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
		if err := e.snk.step(v); err != nil {
			p.abort(ctx, e, actor.Address{}, err)
			return
		}
	}

	grant := p.headroom(e)
	in.Inbound.Set(grant)
	in.lastGrant = grant
	creditGranted.WithValues(e.Role.String()).Inc(float64(grant))
	p.send(ctx, e, in.Upstream, AckBatch{ID: e.ID, Grant: grant, Seq: msg.Seq})
}

// sinkClose finalizes the stream and delivers the result to the requester.
func (p *Participant) sinkClose(ctx *actor.Context, e *Entry) {
	v, err := e.snk.finalize()
	if err != nil {
		p.abort(ctx, e, actor.Address{}, err)
		return
	}
	p.logger.Debug(p.streamCtx(ctx, e.ID)).
		Str(log.PeerField, e.Requester.String()).
		Msg("stream finalized")
	p.send(ctx, e, e.Requester, Result{ID: e.ID, Value: v})
	p.remove(ctx, e, StateClosed, nil)
}
