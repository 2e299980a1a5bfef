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

// pumpSource pulls elements while the source has outstanding credit and
// sends them downstream. Once the source is exhausted and its buffer is
// empty the stream is closed.
func (p *Participant) pumpSource(ctx *actor.Context, e *Entry) {
	out := e.Outbound
	switch out.State {
	case StateOpen, StateDraining:
	case StateClosing:
		p.finishClosing(ctx, e)
		return
	default:
		return
	}

	for {
		var pulled int
		exhausted, err := e.src.done()
		if err != nil {
			p.abort(ctx, e, actor.Address{}, err)
			return
		}
		if out.State == StateOpen && !exhausted {
			pending := uint64(out.Pending.Len())
			if granted := out.Outbound.Granted(); granted > pending {
				elems, err := e.src.pull(granted-pending, p.capacity-pending)
				if err != nil {
					p.abort(ctx, e, actor.Address{}, err)
					return
				}
				for _, v := range elems {
					out.Pending.PushBack(v)
				}
				pulled = len(elems)
				p.logger.Trace(p.streamCtx(ctx, e.ID)).
					Uint64(log.CreditField, granted).
					Int(log.ElementsField, pulled).
					Int(log.PendingField, out.Pending.Len()).
					Msg("pulled source")
			}
		}
		if !p.sendBatch(ctx, e) {
			return
		}
		if pulled == 0 || out.Outbound.Granted() == 0 {
			break
		}
	}

	exhausted, err := e.src.done()
	if err != nil {
		p.abort(ctx, e, actor.Address{}, err)
		return
	}
	if !exhausted {
		return
	}
	if out.Pending.Len() == 0 {
		p.closeDownstream(ctx, e)
		return
	}
	if out.State == StateOpen {
		p.logger.Debug(p.streamCtx(ctx, e.ID)).
			Int(log.PendingField, out.Pending.Len()).
			Msg("source exhausted, draining buffer")
		out.State = StateDraining
	}
}
