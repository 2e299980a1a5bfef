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
	"time"

	"github.com/conduitio/creditflow/pkg/actor"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/creditflow/pkg/foundation/csync"
	"github.com/conduitio/creditflow/pkg/foundation/ctxutil"
	"github.com/conduitio/creditflow/pkg/foundation/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Participant is an actor hosting one behavior (a source, a stage or a sink).
// It takes part in any number of concurrent streams and keeps one Entry per
// stream in its Table. All state is only touched from Receive.
type Participant struct {
	cfg      Config
	capacity uint64
	role     Role
	payload  Payload

	source SourceHandler
	stage  StageHandler
	sink   SinkHandler

	table      *Table
	tombstones *lru.Cache[ID, State]
	nextSeq    uint64
	roundArmed bool

	streams csync.ValueWatcher[[]StreamInfo]
	logger  log.CtxLogger
}

var (
	_ actor.Actor   = (*Participant)(nil)
	_ actor.Starter = (*Participant)(nil)
	_ actor.Stopper = (*Participant)(nil)
)

// StreamInfo describes one stream a participant takes part in.
type StreamInfo struct {
	ID      ID
	Role    Role
	State   State
	Pending int
}

func newParticipant(cfg Config, role Role, payload Payload) *Participant {
	cfg = cfg.withDefaults()
	// New only fails for a non-positive size, withDefaults prevents that
	tombstones, _ := lru.New[ID, State](cfg.Tombstones)
	if payload == nil {
		payload = NoPayload{}
	}
	return &Participant{
		cfg:        cfg,
		capacity:   uint64(cfg.Capacity),
		role:       role,
		payload:    payload,
		table:      NewTable(),
		tombstones: tombstones,
		logger:     log.Nop(),
	}
}

// NewSourceParticipant returns a participant that starts streams when it
// receives a Request. The payload is handed to Init of the source and sent
// to the first downstream participant.
func NewSourceParticipant(cfg Config, payload Payload, h SourceHandler) *Participant {
	p := newParticipant(cfg, RoleSource, payload)
	p.source = h
	return p
}

// NewStageParticipant returns a participant relaying streams. The payload is
// sent to its downstream participant.
func NewStageParticipant(cfg Config, payload Payload, h StageHandler) *Participant {
	p := newParticipant(cfg, RoleStage, payload)
	p.stage = h
	return p
}

// NewSinkParticipant returns a participant terminating streams.
func NewSinkParticipant(cfg Config, h SinkHandler) *Participant {
	p := newParticipant(cfg, RoleSink, nil)
	p.sink = h
	return p
}

func (p *Participant) Role() Role {
	return p.role
}

// Streams returns a snapshot of the streams the participant holds slots for,
// taken at the end of its last turn.
func (p *Participant) Streams() []StreamInfo {
	return p.streams.Get()
}

// StreamCount returns the number of streams the participant holds slots for.
func (p *Participant) StreamCount() int {
	return len(p.streams.Get())
}

// WaitIdle blocks until the participant holds no slots.
func (p *Participant) WaitIdle(ctx context.Context) error {
	_, err := p.streams.Watch(ctx, func(v []StreamInfo) bool {
		return len(v) == 0
	})
	return err
}

func (p *Participant) Started(ctx *actor.Context) {
	p.logger = ctx.Logger()
}

// Stopped aborts every stream the participant still takes part in.
func (p *Participant) Stopped(ctx *actor.Context, reason error) {
	for _, e := range p.table.Entries() {
		p.abort(ctx, e, actor.Address{}, unreachable(reason))
	}
	p.publish()
}

func (p *Participant) Receive(ctx *actor.Context, env actor.Envelope) {
	switch msg := env.Msg.(type) {
	case Request:
		p.handleRequest(ctx, msg)
	case Open:
		p.handleOpen(ctx, env.From, msg)
	case AckOpen:
		if e, ok := p.lookup(ctx, msg.ID, "ack_open"); ok {
			p.handleAckOpen(ctx, e, env.From, msg)
		}
	case Batch:
		if e, ok := p.lookup(ctx, msg.ID, "batch"); ok {
			p.handleBatch(ctx, e, env.From, msg)
		}
	case AckBatch:
		if e, ok := p.lookup(ctx, msg.ID, "ack_batch"); ok {
			p.handleAckBatch(ctx, e, env.From, msg)
		}
	case Close:
		if e, ok := p.lookup(ctx, msg.ID, "close"); ok {
			p.handleClose(ctx, e, env.From)
		}
	case Abort:
		// abort is idempotent, a second one for the same stream is dropped
		if e, ok := p.table.Get(msg.ID); ok {
			p.abort(ctx, e, env.From, msg.Reason)
		}
	case actor.Down:
		p.handleDown(ctx, msg)
	case creditRound:
		p.handleCreditRound(ctx)
	default:
		p.logger.Warn(ctx.Context()).
			Type(log.MessageTypeField, env.Msg).
			Str(log.PeerField, env.From.String()).
			Msg("dropping unexpected message")
	}

	p.armCreditRound(ctx)
	p.publish()
}

func (p *Participant) streamCtx(ctx *actor.Context, id ID) context.Context {
	return ctxutil.ContextWithStreamID(ctx.Context(), id.String())
}

func (p *Participant) lookup(ctx *actor.Context, id ID, msgType string) (*Entry, bool) {
	if e, ok := p.table.Get(id); ok {
		return e, true
	}
	if p.tombstones.Contains(id) {
		p.logger.Debug(p.streamCtx(ctx, id)).
			Str(log.MessageTypeField, msgType).
			Msg("dropping message for terminated stream")
	} else {
		p.logger.Warn(p.streamCtx(ctx, id)).
			Str(log.MessageTypeField, msgType).
			Msg("dropping message for unknown stream")
	}
	return nil, false
}

// expectPeer returns true if from is the peer the message should come from.
func (p *Participant) expectPeer(ctx *actor.Context, e *Entry, from, want actor.Address, msgType string) bool {
	if from == want {
		return true
	}
	p.logger.Warn(p.streamCtx(ctx, e.ID)).
		Str(log.MessageTypeField, msgType).
		Str(log.PeerField, from.String()).
		Msg("dropping message from unexpected peer")
	return false
}

// put adds the entry to the table and monitors its peers.
func (p *Participant) put(ctx *actor.Context, e *Entry) error {
	if err := p.table.Put(e); err != nil {
		return err
	}
	for _, peer := range e.peers() {
		ctx.Monitor(peer)
	}
	openStreams.WithValues(e.Role.String()).Inc()
	p.logger.Debug(p.streamCtx(ctx, e.ID)).
		Str(log.RoleField, e.Role.String()).
		Msg("stream slot created")
	return nil
}

// remove deletes the entry, remembers its ID and runs the behavior cleanup.
// Only the first call for an entry has an effect.
func (p *Participant) remove(ctx *actor.Context, e *Entry, state State, reason error) {
	if !p.table.Remove(e.ID) {
		return
	}
	e.setState(state)
	for _, peer := range e.peers() {
		ctx.Demonitor(peer)
	}
	p.tombstones.Add(e.ID, state)
	openStreams.WithValues(e.Role.String()).Dec()

	switch {
	case e.src != nil:
		e.src.cleanup(reason)
	case e.stg != nil:
		e.stg.cleanup(reason)
	case e.snk != nil:
		e.snk.cleanup(reason)
	}

	p.logger.Debug(p.streamCtx(ctx, e.ID)).
		Str(log.RoleField, e.Role.String()).
		Str(log.StateField, state.String()).
		Msg("stream slot removed")
}

// abort tears the stream down on this participant and forwards the abort to
// every side except the one it came from. A zero from means the failure
// happened locally.
func (p *Participant) abort(ctx *actor.Context, e *Entry, from actor.Address, reason error) {
	if reason == nil {
		reason = runtimeErr(cerrors.New("aborted without reason"))
	}
	lctx := p.streamCtx(ctx, e.ID)
	if from.IsZero() || from == ctx.Self() {
		p.logger.Err(lctx, reason).
			Str(log.RoleField, e.Role.String()).
			Msg("aborting stream")
	} else {
		p.logger.Debug(lctx).
			Err(reason).
			Str(log.RoleField, e.Role.String()).
			Str(log.PeerField, from.String()).
			Msg("stream aborted by peer")
	}
	abortsTotal.WithValues(ReasonCode(reason)).Inc()

	msg := Abort{ID: e.ID, Reason: reason}
	if up := e.upstream(); !up.IsZero() && up != from {
		p.send(ctx, e, up, msg)
	}
	if down := e.downstream(); !down.IsZero() && down != from {
		p.send(ctx, e, down, msg)
	}
	if e.Role != RoleStage && !e.Requester.IsZero() && e.Requester != from {
		p.send(ctx, e, e.Requester, Result{ID: e.ID, Err: reason})
	}
	p.remove(ctx, e, StateAborted, reason)
}

// send delivers a message to a peer. Delivery failures are only logged, a
// peer that is gone is reported through its monitor.
func (p *Participant) send(ctx *actor.Context, e *Entry, to actor.Address, msg any) bool {
	if err := ctx.Send(to, msg); err != nil {
		p.logger.Debug(p.streamCtx(ctx, e.ID)).
			Err(err).
			Type(log.MessageTypeField, msg).
			Str(log.PeerField, to.String()).
			Msg("could not deliver message")
		return false
	}
	return true
}

func (p *Participant) handleDown(ctx *actor.Context, d actor.Down) {
	for _, e := range p.table.Entries() {
		for _, peer := range e.peers() {
			if peer == d.Addr {
				p.abort(ctx, e, d.Addr, unreachable(d.Reason))
				break
			}
		}
	}
}

func (p *Participant) publish() {
	infos := make([]StreamInfo, 0, p.table.Len())
	for _, e := range p.table.Entries() {
		info := StreamInfo{ID: e.ID, Role: e.Role}
		if e.Outbound != nil {
			info.State = e.Outbound.State
			info.Pending = e.Outbound.Pending.Len()
		} else {
			info.State = e.Inbound.State
		}
		infos = append(infos, info)
	}
	p.streams.Set(infos)
}

func (p *Participant) handleBatch(ctx *actor.Context, e *Entry, from actor.Address, msg Batch) {
	if e.Inbound == nil || !p.expectPeer(ctx, e, from, e.Inbound.Upstream, "batch") {
		return
	}
	switch e.Role {
	case RoleStage:
		p.stageBatch(ctx, e, msg)
	case RoleSink:
		p.sinkBatch(ctx, e, msg)
	}
}

func (p *Participant) handleAckBatch(ctx *actor.Context, e *Entry, from actor.Address, msg AckBatch) {
	out := e.Outbound
	if out == nil || !p.expectPeer(ctx, e, from, out.Downstream, "ack_batch") {
		return
	}
	out.ack(msg.Seq)
	var credit uint64
	if inflight := out.inflight(); msg.Grant > inflight {
		credit = msg.Grant - inflight
	}
	if msg.Unsolicited {
		out.Outbound.Raise(credit)
	} else {
		out.Outbound.Set(credit)
	}
	p.logger.Trace(p.streamCtx(ctx, e.ID)).
		Uint64(log.BatchSeqField, msg.Seq).
		Uint64(log.GrantField, msg.Grant).
		Uint64(log.CreditField, out.Outbound.Granted()).
		Bool("unsolicited", msg.Unsolicited).
		Msg("received credit")

	switch e.Role {
	case RoleSource:
		p.pumpSource(ctx, e)
	case RoleStage:
		p.stageFlush(ctx, e)
		p.regrant(ctx, e)
	}
}

func (p *Participant) handleClose(ctx *actor.Context, e *Entry, from actor.Address) {
	if e.Inbound == nil || !p.expectPeer(ctx, e, from, e.Inbound.Upstream, "close") {
		return
	}
	if e.Inbound.State.Terminal() {
		return
	}
	switch e.Role {
	case RoleStage:
		e.Inbound.State = StateClosed
		p.stageFlush(ctx, e)
	case RoleSink:
		p.sinkClose(ctx, e)
	}
}

// sendBatch moves as many pending elements downstream as credit allows.
// It returns false if the stream was aborted.
func (p *Participant) sendBatch(ctx *actor.Context, e *Entry) bool {
	out := e.Outbound
	elems, seq := out.takeBatch()
	if elems == nil {
		return true
	}
	if err := ctx.Send(out.Downstream, Batch{ID: e.ID, Seq: seq, Elements: elems}); err != nil {
		p.abort(ctx, e, actor.Address{}, unreachable(err))
		return false
	}
	role := e.Role.String()
	batchesSent.WithValues(role).Inc()
	elementsSent.WithValues(role).Inc(float64(len(elems)))
	p.logger.Trace(p.streamCtx(ctx, e.ID)).
		Uint64(log.BatchSeqField, seq).
		Int(log.ElementsField, len(elems)).
		Uint64(log.CreditField, out.Outbound.Granted()).
		Msg("sent batch")
	return true
}

// closeDownstream sends Close and moves the outbound slot to closing. The
// entry is removed right away if every batch was acknowledged.
func (p *Participant) closeDownstream(ctx *actor.Context, e *Entry) {
	out := e.Outbound
	if err := ctx.Send(out.Downstream, Close{ID: e.ID}); err != nil {
		p.abort(ctx, e, actor.Address{}, unreachable(err))
		return
	}
	out.State = StateClosing
	p.finishClosing(ctx, e)
}

func (p *Participant) finishClosing(ctx *actor.Context, e *Entry) {
	if e.Outbound.State == StateClosing && e.Outbound.settled() {
		p.remove(ctx, e, StateClosed, nil)
	}
}

func (p *Participant) elapsedHandshake(e *Entry) {
	handshakeDuration.WithValues(e.Role.String()).Update(time.Since(e.opened))
}
