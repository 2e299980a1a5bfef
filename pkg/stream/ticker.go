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
)

// armCreditRound schedules the next credit round. At most one round is
// pending and none is scheduled while the participant holds no slots.
func (p *Participant) armCreditRound(ctx *actor.Context) {
	if p.roundArmed || p.table.Len() == 0 {
		return
	}
	p.roundArmed = true
	ctx.SendAfter(p.cfg.CreditRoundInterval, creditRound{})
}

// handleCreditRound retries work that did not happen because a peer had no
// credit or a source had nothing to emit. Grants made here only ever raise
// the upstream's credit.
func (p *Participant) handleCreditRound(ctx *actor.Context) {
	p.roundArmed = false
	for _, e := range p.table.Entries() {
		if _, ok := p.table.Get(e.ID); !ok {
			continue
		}
		switch e.Role {
		case RoleSource:
			p.pumpSource(ctx, e)
		case RoleStage:
			if p.stageFlush(ctx, e) {
				p.regrant(ctx, e)
			}
		case RoleSink:
			p.regrant(ctx, e)
		}
	}
}
