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
	"github.com/conduitio/creditflow/pkg/foundation/ctxutil"
	"github.com/conduitio/creditflow/pkg/foundation/log"
)

// cancelRun is sent by Run to its requester when the caller gave up.
type cancelRun struct {
	reason error
}

type outcome struct {
	value any
	err   error
}

// requester is the actor a pipeline run waits on. It completes exactly once,
// with the first result or abort reason it learns about, then stops.
type requester struct {
	source actor.Address
	out    chan outcome

	id        ID
	started   bool
	cancelled error
	done      bool

	logger log.CtxLogger
}

func newRequester(source actor.Address) *requester {
	return &requester{
		source: source,
		out:    make(chan outcome, 1),
	}
}

func (r *requester) Started(ctx *actor.Context) {
	r.logger = ctx.Logger()
	ctx.Monitor(r.source)
}

func (r *requester) Receive(ctx *actor.Context, env actor.Envelope) {
	switch msg := env.Msg.(type) {
	case Started:
		r.id, r.started = msg.ID, true
		r.logger.Debug(ctxWithStream(ctx, msg.ID)).Msg("stream started")
		if r.cancelled != nil {
			r.cancel(ctx)
		}
	case Result:
		if r.started && msg.ID != r.id && !msg.ID.IsZero() {
			r.logger.Warn(ctxWithStream(ctx, msg.ID)).
				Str(log.PeerField, env.From.String()).
				Msg("dropping result of another stream")
			return
		}
		r.complete(ctx, outcome{value: msg.Value, err: msg.Err})
		ctx.Stop(nil)
	case cancelRun:
		r.cancelled = msg.reason
		r.complete(ctx, outcome{err: msg.reason})
		if r.started {
			r.cancel(ctx)
		}
	case actor.Down:
		if msg.Addr != r.source {
			return
		}
		r.complete(ctx, outcome{err: unreachable(msg.Reason)})
		ctx.Stop(nil)
	}
}

func (r *requester) cancel(ctx *actor.Context) {
	if err := r.abortSource(ctx); err != nil {
		r.logger.Debug(ctxWithStream(ctx, r.id)).Err(err).Msg("could not abort source")
	}
	ctx.Stop(nil)
}

// abortSource injects the cancellation reason at the source.
func (r *requester) abortSource(s actor.Sender) error {
	return s.Send(r.source, Abort{ID: r.id, Reason: r.cancelled})
}

func (r *requester) complete(ctx *actor.Context, o outcome) {
	if r.done {
		r.logger.Debug(ctxWithStream(ctx, r.id)).Err(o.err).Msg("dropping outcome, run already completed")
		return
	}
	r.done = true
	r.out <- o
}

func ctxWithStream(ctx *actor.Context, id ID) context.Context {
	if id.IsZero() {
		return ctx.Context()
	}
	return ctxutil.ContextWithStreamID(ctx.Context(), id.String())
}
