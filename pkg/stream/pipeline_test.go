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
	"testing"
	"time"

	"github.com/conduitio/creditflow/pkg/actor"
	"github.com/conduitio/creditflow/pkg/foundation/cchan"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/creditflow/pkg/foundation/log"
	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestSystem(t *testing.T) *actor.System {
	sys := actor.NewSystem("", log.Test(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := sys.Shutdown(ctx); err != nil {
			t.Errorf("shutdown failed: %v", err)
		}
	})
	return sys
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CreditRoundInterval = 10 * time.Millisecond
	return cfg
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// rangeSource emits the integers from..to.
func rangeSource(from, to int, delay time.Duration) SourceHandler {
	return Source[int, int](SourceFuncs[int, int]{
		InitFunc: func(Payload) (int, error) { return from, nil },
		PullFunc: func(next int, out *Downstream[int], demand uint64) (int, error) {
			time.Sleep(delay)
			for ; demand > 0 && next <= to; demand-- {
				out.Push(next)
				next++
			}
			return next, nil
		},
		IsDoneFunc: func(next int) bool { return next > to },
	})
}

// endlessSource emits increasing integers until the stream is torn down. The
// cleanup reason is sent to cleaned.
func endlessSource(cleaned chan<- error) SourceHandler {
	return Source[int, int](SourceFuncs[int, int]{
		PullFunc: func(next int, out *Downstream[int], demand uint64) (int, error) {
			out.Push(next)
			return next + 1, nil
		},
		CleanupFunc: func(_ int, reason error) { cleaned <- reason },
	})
}

func filterOdd() StageHandler {
	return Stage[struct{}, int, int](StageFuncs[struct{}, int, int]{
		StepFunc: func(s struct{}, in int, out *Downstream[int]) (struct{}, error) {
			if in%2 == 1 {
				out.Push(in)
			}
			return s, nil
		},
	})
}

func sumSink() SinkHandler {
	return Sink[int, int, int](SinkFuncs[int, int, int]{
		StepFunc: func(sum int, in int) (int, error) { return sum + in, nil },
	})
}

func collectSink() SinkHandler {
	return Sink[[]int, int, []int](SinkFuncs[[]int, int, []int]{
		StepFunc: func(s []int, in int) ([]int, error) { return append(s, in), nil },
	})
}

// batchRecorder is a hand-written sink speaking the stream protocol. It
// records the batches it receives and acknowledges them after delay.
type batchRecorder struct {
	capacity uint64
	delay    time.Duration
	batches  chan []int

	requester actor.Address
	sum       int
}

func newBatchRecorder(delay time.Duration) *batchRecorder {
	return &batchRecorder{
		capacity: DefaultCapacity,
		delay:    delay,
		batches:  make(chan []int, 100),
	}
}

func (r *batchRecorder) Receive(ctx *actor.Context, env actor.Envelope) {
	switch msg := env.Msg.(type) {
	case Open:
		r.requester = msg.Requester
		_ = ctx.Send(env.From, AckOpen{ID: msg.ID, InitialCredit: r.capacity})
	case Batch:
		time.Sleep(r.delay)
		batch := make([]int, len(msg.Elements))
		for i, v := range msg.Elements {
			batch[i] = v.(int)
			r.sum += batch[i]
		}
		r.batches <- batch
		_ = ctx.Send(env.From, AckBatch{ID: msg.ID, Grant: r.capacity, Seq: msg.Seq})
	case Close:
		close(r.batches)
		_ = ctx.Send(r.requester, Result{ID: msg.ID, Value: r.sum})
	}
}

func (r *batchRecorder) recorded() [][]int {
	var out [][]int
	for b := range r.batches {
		out = append(out, b)
	}
	return out
}

// runRoute starts a stream on the source participant at src and waits for
// its outcome.
func runRoute(t *testing.T, sys *actor.System, src actor.Address, route ...Hop) (any, error) {
	t.Helper()
	r := newRequester(src)
	addr := sys.Spawn("requester", r)
	if err := sys.Send(addr, src, Request{Route: route, Requester: addr}); err != nil {
		t.Fatalf("could not send request: %v", err)
	}
	o, _, err := cchan.ChanOut[outcome](r.out).Recv(testContext(t))
	if err != nil {
		t.Fatalf("stream did not complete: %v", err)
	}
	return o.value, o.err
}

// tap is an actor that forwards everything it receives into a channel.
type tap struct {
	addr actor.Address
	in   chan actor.Envelope
}

func newTap(sys *actor.System) *tap {
	p := &tap{in: make(chan actor.Envelope, 100)}
	p.addr = sys.Spawn("tap", actor.Func(func(_ *actor.Context, env actor.Envelope) {
		p.in <- env
	}))
	return p
}

func (p *tap) recv(t *testing.T) actor.Envelope {
	t.Helper()
	env, _, err := cchan.ChanOut[actor.Envelope](p.in).RecvTimeout(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("tap did not receive a message: %v", err)
	}
	return env
}

func (p *tap) expectNothing(t *testing.T) {
	t.Helper()
	env, _, err := cchan.ChanOut[actor.Envelope](p.in).RecvTimeout(context.Background(), 50*time.Millisecond)
	if err == nil {
		t.Fatalf("unexpected message %T: %+v", env.Msg, env.Msg)
	}
}

func TestPipeline_SourceSink(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, rangeSource(0, 9, 0))
	b.AddSink(src, sumSink())

	sum, err := RunAs[int](ctx, b, src)
	is.NoErr(err)
	is.Equal(sum, 45)
	is.NoErr(b.WaitIdle(ctx))
}

func TestPipeline_SourceBatchesRespectCredit(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)

	src := sys.Spawn("source", NewSourceParticipant(testConfig(), NoPayload{}, rangeSource(0, 9, 0)))
	rec := newBatchRecorder(10 * time.Millisecond)
	sink := sys.Spawn("recorder", rec)

	sum, err := runRoute(t, sys, src, Hop{Addr: sink, Role: RoleSink})
	is.NoErr(err)
	is.Equal(sum, 45)

	want := [][]int{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}}
	if diff := cmp.Diff(want, rec.recorded()); diff != "" {
		t.Errorf("unexpected batches (-want +got):\n%s", diff)
	}
}

func TestPipeline_FilterStageBatches(t *testing.T) {
	testCases := []struct {
		name      string
		pullDelay time.Duration
		ackDelay  time.Duration
	}{
		{"slow stage-sink edge", 0, 20 * time.Millisecond},
		{"slow source-stage edge", 20 * time.Millisecond, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			sys := newTestSystem(t)
			cfg := testConfig()

			src := NewSourceParticipant(cfg, NoPayload{}, rangeSource(1, 9, tc.pullDelay))
			stage := NewStageParticipant(cfg, NoPayload{}, filterOdd())
			srcAddr := sys.Spawn("source", src)
			stageAddr := sys.Spawn("stage", stage)
			rec := newBatchRecorder(tc.ackDelay)
			sink := sys.Spawn("recorder", rec)

			sum, err := runRoute(t, sys, srcAddr,
				Hop{Addr: stageAddr, Role: RoleStage},
				Hop{Addr: sink, Role: RoleSink},
			)
			is.NoErr(err)
			is.Equal(sum, 25)

			want := [][]int{{1, 3, 5}, {7, 9}}
			if diff := cmp.Diff(want, rec.recorded()); diff != "" {
				t.Errorf("unexpected stage batches (-want +got):\n%s", diff)
			}

			ctx := testContext(t)
			is.NoErr(src.WaitIdle(ctx))
			is.NoErr(stage.WaitIdle(ctx))
		})
	}
}

func TestPipeline_StageInitFailed(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	cleaned := make(chan error, 1)
	b := NewBuilder(sys, testConfig())
	src := b.AddSource(IntPayload(7), endlessSource(cleaned))
	stage := b.AddStage(src, NoPayload{}, Stage[string, int, int](StageFuncs[string, int, int]{
		InitFunc: func(p Payload) (string, error) { return ExpectString(p) },
		StepFunc: func(s string, in int, out *Downstream[int]) (string, error) { return s, nil },
	}))
	b.AddSink(stage, sumSink())

	_, err := b.Run(ctx, src)
	is.True(cerrors.Is(err, ErrStreamInitFailed))

	is.NoErr(b.WaitIdle(ctx))
	is.Equal(b.Participant(src).StreamCount(), 0)
	is.Equal(b.Participant(stage).StreamCount(), 0)
	is.True(cerrors.Is(<-cleaned, ErrStreamInitFailed))
}

func TestPipeline_NoDownstream(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, rangeSource(0, 9, 0))

	_, err := b.Run(ctx, src)
	is.True(cerrors.Is(err, ErrNoDownstream))
	is.Equal(b.Participant(src).StreamCount(), 0)

	// a source followed by a stage only is rejected as well
	b.AddStage(src, NoPayload{}, filterOdd())
	_, err = b.Run(ctx, src)
	is.True(cerrors.Is(err, ErrNoDownstream))
}

func TestParticipant_RequestWithoutRoute(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)

	src := NewSourceParticipant(testConfig(), NoPayload{}, rangeSource(0, 9, 0))
	srcAddr := sys.Spawn("source", src)
	p := newTap(sys)

	is.NoErr(sys.Send(p.addr, srcAddr, Request{Requester: p.addr}))
	res, ok := p.recv(t).Msg.(Result)
	is.True(ok)
	is.True(cerrors.Is(res.Err, ErrNoDownstream))
	is.Equal(src.StreamCount(), 0)
}

func TestBuilder_AmbiguousDownstream(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)

	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, rangeSource(0, 9, 0))
	sink := b.AddSink(src, sumSink())
	b.AddSink(src, sumSink())
	b.AddStage(sink, NoPayload{}, filterOdd())

	_, err := b.Run(testContext(t), src)
	is.True(cerrors.Is(err, ErrAmbiguousDownstream))
}

func TestParticipant_StageWithoutDownstream(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	stage := NewStageParticipant(testConfig(), NoPayload{}, filterOdd())
	stageAddr := sys.Spawn("stage", stage)
	p := newTap(sys)

	id := ID{Origin: p.addr, Seq: 1}
	is.NoErr(sys.Send(p.addr, stageAddr, Open{ID: id, Payload: NoPayload{}, Source: p.addr, Requester: p.addr}))
	abort, ok := p.recv(t).Msg.(Abort)
	is.True(ok)
	is.Equal(abort.ID, id)
	is.True(cerrors.Is(abort.Reason, ErrNoDownstream))
	is.NoErr(stage.WaitIdle(ctx))
}

func TestParticipant_SinkWithDownstream(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)

	sink := sys.Spawn("sink", NewSinkParticipant(testConfig(), sumSink()))
	p := newTap(sys)

	id := ID{Origin: p.addr, Seq: 1}
	is.NoErr(sys.Send(p.addr, sink, Open{
		ID:        id,
		Source:    p.addr,
		Requester: p.addr,
		Route:     []Hop{{Addr: p.addr, Role: RoleSink}},
	}))
	abort, ok := p.recv(t).Msg.(Abort)
	is.True(ok)
	is.True(cerrors.Is(abort.Reason, ErrAmbiguousDownstream))
}

func TestParticipant_SinkOverflow(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	sink := NewSinkParticipant(testConfig(), sumSink())
	sinkAddr := sys.Spawn("sink", sink)
	p := newTap(sys)

	id := ID{Origin: p.addr, Seq: 1}
	is.NoErr(sys.Send(p.addr, sinkAddr, Open{ID: id, Source: p.addr, Requester: p.addr}))
	ack, ok := p.recv(t).Msg.(AckOpen)
	is.True(ok)
	is.Equal(ack.InitialCredit, uint64(DefaultCapacity))

	is.NoErr(sys.Send(p.addr, sinkAddr, Batch{ID: id, Elements: []any{1, 2, 3, 4, 5, 6}}))

	// the tap is both upstream and requester
	var (
		gotAbort  bool
		gotResult bool
	)
	for i := 0; i < 2; i++ {
		switch msg := p.recv(t).Msg.(type) {
		case Abort:
			gotAbort = true
			is.True(cerrors.Is(msg.Reason, ErrBufferOverflow))
		case Result:
			gotResult = true
			is.True(cerrors.Is(msg.Err, ErrBufferOverflow))
		}
	}
	is.True(gotAbort && gotResult)
	is.NoErr(sink.WaitIdle(ctx))
}

func TestParticipant_IdempotentTeardown(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)

	sink := sys.Spawn("sink", NewSinkParticipant(testConfig(), sumSink()))
	p := newTap(sys)

	id := ID{Origin: p.addr, Seq: 1}
	is.NoErr(sys.Send(p.addr, sink, Open{ID: id, Source: p.addr, Requester: p.addr}))
	_ = p.recv(t) // ack_open
	is.NoErr(sys.Send(p.addr, sink, Batch{ID: id, Seq: 0, Elements: []any{20, 22}}))
	_ = p.recv(t) // ack_batch
	is.NoErr(sys.Send(p.addr, sink, Close{ID: id}))

	res, ok := p.recv(t).Msg.(Result)
	is.True(ok)
	is.NoErr(res.Err)
	is.Equal(res.Value, 42)

	is.NoErr(sys.Send(p.addr, sink, Close{ID: id}))
	is.NoErr(sys.Send(p.addr, sink, Abort{ID: id, Reason: ErrRuntime}))
	is.NoErr(sys.Send(p.addr, sink, Abort{ID: id, Reason: ErrRuntime}))
	p.expectNothing(t)
}

func TestPipeline_Conservation(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, rangeSource(0, 999, 0))
	double := b.AddStage(src, NoPayload{}, Stage[struct{}, int, int](StageFuncs[struct{}, int, int]{
		StepFunc: func(s struct{}, in int, out *Downstream[int]) (struct{}, error) {
			out.Push(in, in)
			return s, nil
		},
	}, WithExpansion(2)))
	b.AddSink(double, collectSink())

	got, err := RunAs[[]int](ctx, b, src)
	is.NoErr(err)

	want := make([]int, 0, 2000)
	for i := 0; i <= 999; i++ {
		want = append(want, i, i)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("elements lost or reordered (-want +got):\n%s", diff)
	}
	is.NoErr(b.WaitIdle(ctx))
}

func TestPipeline_ConcurrentStreams(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, rangeSource(1, 9, 0))
	odd := b.AddStage(src, NoPayload{}, filterOdd())
	b.AddSink(odd, sumSink())

	const n = 10
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			sum, err := RunAs[int](ctx, b, src)
			if err == nil && sum != 25 {
				err = cerrors.Errorf("expected 25, got %d", sum)
			}
			results <- err
		}()
	}
	for i := 0; i < n; i++ {
		is.NoErr(<-results)
	}
	is.NoErr(b.WaitIdle(ctx))
}

func TestPipeline_ExpansionExceeded(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, rangeSource(0, 9, 0))
	dup := b.AddStage(src, NoPayload{}, Stage[struct{}, int, int](StageFuncs[struct{}, int, int]{
		StepFunc: func(s struct{}, in int, out *Downstream[int]) (struct{}, error) {
			out.Push(in, in)
			return s, nil
		},
	}))
	b.AddSink(dup, sumSink())

	_, err := b.Run(ctx, src)
	is.True(cerrors.Is(err, ErrBufferOverflow))
	is.NoErr(b.WaitIdle(ctx))
}

func TestPipeline_RuntimeErrors(t *testing.T) {
	boom := cerrors.New("boom")
	testCases := []struct {
		name  string
		cause error
		step  func(s struct{}, in int, out *Downstream[int]) (struct{}, error)
	}{{
		name:  "error",
		cause: boom,
		step: func(s struct{}, in int, out *Downstream[int]) (struct{}, error) {
			if in == 7 {
				return s, boom
			}
			out.Push(in)
			return s, nil
		},
	}, {
		name: "panic",
		step: func(s struct{}, in int, out *Downstream[int]) (struct{}, error) {
			if in == 7 {
				panic(boom)
			}
			out.Push(in)
			return s, nil
		},
	}}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			sys := newTestSystem(t)
			ctx := testContext(t)

			stageReason := make(chan error, 1)
			b := NewBuilder(sys, testConfig())
			src := b.AddSource(NoPayload{}, rangeSource(0, 9, 0))
			stage := b.AddStage(src, NoPayload{}, Stage[struct{}, int, int](StageFuncs[struct{}, int, int]{
				StepFunc:    tc.step,
				CleanupFunc: func(_ struct{}, reason error) { stageReason <- reason },
			}))
			b.AddSink(stage, sumSink())

			_, err := b.Run(ctx, src)
			is.True(cerrors.Is(err, ErrRuntime))
			if tc.cause != nil {
				is.True(cerrors.Is(err, tc.cause))
			}
			is.True(cerrors.Is(<-stageReason, ErrRuntime))
			is.NoErr(b.WaitIdle(ctx))
		})
	}
}

func TestPipeline_SourceRuntimeErrors(t *testing.T) {
	boom := cerrors.New("boom")
	upTo9 := func(next int, out *Downstream[int], demand uint64) (int, error) {
		for ; demand > 0 && next <= 9; demand-- {
			out.Push(next)
			next++
		}
		return next, nil
	}
	testCases := []struct {
		name   string
		want   error
		cause  error
		pull   func(next int, out *Downstream[int], demand uint64) (int, error)
		isDone func(next int) bool
	}{{
		name:  "pull error",
		want:  ErrRuntime,
		cause: boom,
		pull: func(next int, out *Downstream[int], demand uint64) (int, error) {
			if next >= 3 {
				return next, boom
			}
			return upTo9(next, out, demand)
		},
	}, {
		name: "pull panic",
		want: ErrRuntime,
		pull: func(next int, out *Downstream[int], demand uint64) (int, error) {
			if next >= 3 {
				panic(boom)
			}
			return upTo9(next, out, demand)
		},
	}, {
		name: "is done panic",
		want: ErrRuntime,
		pull: upTo9,
		isDone: func(next int) bool {
			if next >= 3 {
				panic(boom)
			}
			return false
		},
	}, {
		name: "demand exceeded",
		want: ErrBufferOverflow,
		pull: func(next int, out *Downstream[int], demand uint64) (int, error) {
			for i := uint64(0); i <= demand; i++ {
				out.Push(next)
				next++
			}
			return next, nil
		},
	}}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			sys := newTestSystem(t)
			ctx := testContext(t)

			isDone := tc.isDone
			if isDone == nil {
				isDone = func(next int) bool { return next > 9 }
			}
			srcReason := make(chan error, 1)
			b := NewBuilder(sys, testConfig())
			src := b.AddSource(NoPayload{}, Source[int, int](SourceFuncs[int, int]{
				PullFunc:    tc.pull,
				IsDoneFunc:  isDone,
				CleanupFunc: func(_ int, reason error) { srcReason <- reason },
			}))
			b.AddSink(src, sumSink())

			_, err := b.Run(ctx, src)
			is.True(cerrors.Is(err, tc.want))
			if tc.cause != nil {
				is.True(cerrors.Is(err, tc.cause))
			}
			is.True(cerrors.Is(<-srcReason, tc.want))
			is.NoErr(b.WaitIdle(ctx))
		})
	}
}

func TestPipeline_FinalizeError(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, rangeSource(0, 3, 0))
	b.AddSink(src, Sink[int, int, int](SinkFuncs[int, int, int]{
		StepFunc:     func(s, in int) (int, error) { return s + in, nil },
		FinalizeFunc: func(int) (int, error) { return 0, cerrors.New("finalize failed") },
	}))

	_, err := b.Run(ctx, src)
	is.True(cerrors.Is(err, ErrRuntime))
	is.NoErr(b.WaitIdle(ctx))
}

func TestPipeline_Cancel(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)

	cleaned := make(chan error, 1)
	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, endlessSource(cleaned))
	b.AddSink(src, sumSink())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.Run(ctx, src)
	is.True(cerrors.Is(err, context.DeadlineExceeded))

	reason, _, err := cchan.ChanOut[error](cleaned).RecvTimeout(context.Background(), time.Second)
	is.NoErr(err)
	is.True(cerrors.Is(reason, context.DeadlineExceeded))
	is.NoErr(b.WaitIdle(testContext(t)))
}

func TestPipeline_PeerUnreachable(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	cleaned := make(chan error, 1)
	started := make(chan struct{})
	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, endlessSource(cleaned))
	sink := b.AddSink(src, Sink[int, int, int](SinkFuncs[int, int, int]{
		StepFunc: func(s, in int) (int, error) {
			if in == 0 {
				close(started)
			}
			return s + in, nil
		},
	}))

	go func() {
		<-started
		sys.Stop(b.Addr(sink), nil)
	}()

	_, err := b.Run(ctx, src)
	is.True(cerrors.Is(err, ErrUnreachable))
	is.True(cerrors.Is(<-cleaned, ErrUnreachable))
	is.NoErr(b.Participant(src).WaitIdle(ctx))
}

func TestParticipant_UnknownStreamDropped(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)

	sink := NewSinkParticipant(testConfig(), sumSink())
	sinkAddr := sys.Spawn("sink", sink)
	p := newTap(sys)

	id := ID{Origin: p.addr, Seq: 99}
	is.NoErr(sys.Send(p.addr, sinkAddr, Batch{ID: id, Elements: []any{1}}))
	is.NoErr(sys.Send(p.addr, sinkAddr, Close{ID: id}))
	is.NoErr(sys.Send(p.addr, sinkAddr, "garbage"))
	p.expectNothing(t)
	is.Equal(sink.StreamCount(), 0)
}

type idleCounter struct {
	next  int
	pulls int
}

func TestPipeline_IdleSourceResumedByCreditRound(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	// only every third pull yields elements, an empty pull with nothing in
	// flight is only retried by the credit round
	b := NewBuilder(sys, testConfig())
	src := b.AddSource(NoPayload{}, Source[idleCounter, int](SourceFuncs[idleCounter, int]{
		PullFunc: func(c idleCounter, out *Downstream[int], demand uint64) (idleCounter, error) {
			c.pulls++
			if c.pulls%3 != 0 {
				return c, nil
			}
			for ; demand > 0 && c.next <= 9; demand-- {
				out.Push(c.next)
				c.next++
			}
			return c, nil
		},
		IsDoneFunc: func(c idleCounter) bool { return c.next > 9 },
	}))
	b.AddSink(src, sumSink())

	sum, err := RunAs[int](ctx, b, src)
	is.NoErr(err)
	is.Equal(sum, 45)
	is.NoErr(b.WaitIdle(ctx))
}

func intElems(from, to int) []any {
	out := make([]any, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestParticipant_CreditRoundOnlyRaises(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	ctx := testContext(t)

	stage := NewStageParticipant(testConfig(), NoPayload{}, Stage[struct{}, int, int](StageFuncs[struct{}, int, int]{
		StepFunc: func(s struct{}, in int, out *Downstream[int]) (struct{}, error) {
			out.Push(in)
			return s, nil
		},
	}))
	stageAddr := sys.Spawn("stage", stage)
	up, down := newTap(sys), newTap(sys)

	recvBatch := func() Batch {
		t.Helper()
		msg, ok := down.recv(t).Msg.(Batch)
		is.True(ok)
		return msg
	}
	recvAck := func() AckBatch {
		t.Helper()
		msg, ok := up.recv(t).Msg.(AckBatch)
		is.True(ok)
		return msg
	}

	id := ID{Origin: up.addr, Seq: 1}
	is.NoErr(sys.Send(up.addr, stageAddr, Open{
		ID:        id,
		Payload:   NoPayload{},
		Source:    up.addr,
		Requester: up.addr,
		Route:     []Hop{{Addr: down.addr, Role: RoleSink}},
	}))
	_, ok := down.recv(t).Msg.(Open)
	is.True(ok)
	is.NoErr(sys.Send(down.addr, stageAddr, AckOpen{ID: id, InitialCredit: DefaultCapacity}))
	ackOpen, ok := up.recv(t).Msg.(AckOpen)
	is.True(ok)
	is.Equal(ackOpen.InitialCredit, uint64(DefaultCapacity))

	// the first batch passes straight through
	is.NoErr(sys.Send(up.addr, stageAddr, Batch{ID: id, Seq: 0, Elements: intElems(1, 5)}))
	is.Equal(recvBatch().Seq, uint64(0))
	ack := recvAck()
	is.Equal(ack.Grant, uint64(DefaultCapacity))
	is.True(!ack.Unsolicited)

	// the second one stays buffered, downstream has no credit left
	is.NoErr(sys.Send(up.addr, stageAddr, Batch{ID: id, Seq: 1, Elements: intElems(6, 10)}))
	ack = recvAck()
	is.Equal(ack.Grant, uint64(0))
	is.True(!ack.Unsolicited)

	// credit rounds keep quiet while the headroom does not change
	up.expectNothing(t)
	down.expectNothing(t)

	// freed room is announced once
	is.NoErr(sys.Send(down.addr, stageAddr, AckBatch{ID: id, Seq: 0, Grant: DefaultCapacity}))
	batch := recvBatch()
	is.Equal(batch.Seq, uint64(1))
	is.Equal(len(batch.Elements), DefaultCapacity)
	ack = recvAck()
	is.Equal(ack.Grant, uint64(DefaultCapacity))
	is.True(ack.Unsolicited)
	up.expectNothing(t)

	// a smaller unsolicited grant does not take away credit
	is.NoErr(sys.Send(down.addr, stageAddr, AckBatch{ID: id, Seq: 1, Grant: DefaultCapacity}))
	is.NoErr(sys.Send(down.addr, stageAddr, AckBatch{ID: id, Seq: 1, Grant: 2, Unsolicited: true}))
	is.NoErr(sys.Send(up.addr, stageAddr, Batch{ID: id, Seq: 2, Elements: intElems(11, 15)}))
	batch = recvBatch()
	is.Equal(batch.Seq, uint64(2))
	if diff := cmp.Diff(intElems(11, 15), batch.Elements); diff != "" {
		t.Errorf("unexpected batch (-want +got):\n%s", diff)
	}
	_ = recvAck()

	is.NoErr(sys.Send(up.addr, stageAddr, Close{ID: id}))
	_, ok = down.recv(t).Msg.(Close)
	is.True(ok)
	is.NoErr(sys.Send(down.addr, stageAddr, AckBatch{ID: id, Seq: 2, Grant: DefaultCapacity}))
	is.NoErr(stage.WaitIdle(ctx))
}
