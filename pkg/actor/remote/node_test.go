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

package remote_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/conduitio/creditflow/pkg/actor"
	"github.com/conduitio/creditflow/pkg/actor/remote"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/creditflow/pkg/foundation/log"
	"github.com/conduitio/creditflow/pkg/stream"
	"github.com/matryer/is"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type cluster struct {
	a, b         *actor.System
	nodeA, nodeB *remote.Node
}

// newCluster starts two actor systems connected through a websocket.
func newCluster(t *testing.T) *cluster {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	codec := remote.NewCodec()
	stream.RegisterWire(codec)

	c := &cluster{
		a: actor.NewSystem("a", log.Test(t)),
		b: actor.NewSystem("b", log.Test(t)),
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.a.Shutdown(ctx)
		_ = c.b.Shutdown(ctx)
	})

	c.nodeA = remote.NewNode(c.a, codec, log.Test(t))
	c.nodeB = remote.NewNode(c.b, codec, log.Test(t))
	srv := httptest.NewServer(c.nodeB)
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		_ = c.nodeA.Close()
		_ = c.nodeB.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if err := c.nodeA.Dial(ctx, url); err != nil {
		t.Fatalf("could not connect nodes: %v", err)
	}
	// wait until b registered the connection as well
	for len(c.nodeB.Peers()) == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("node b did not register node a")
		case <-time.After(time.Millisecond):
		}
	}
	return c
}

func sumSink() stream.SinkHandler {
	return stream.Sink[int, int, int](stream.SinkFuncs[int, int, int]{
		StepFunc: func(sum, in int) (int, error) { return sum + in, nil },
	})
}

func rangeSource(from, to int) stream.SourceHandler {
	return stream.Source[int, int](stream.SourceFuncs[int, int]{
		InitFunc: func(stream.Payload) (int, error) { return from, nil },
		PullFunc: func(next int, out *stream.Downstream[int], demand uint64) (int, error) {
			for ; demand > 0 && next <= to; demand-- {
				out.Push(next)
				next++
			}
			return next, nil
		},
		IsDoneFunc: func(next int) bool { return next > to },
	})
}

func TestNode_StreamAcrossNodes(t *testing.T) {
	is := is.New(t)
	c := newCluster(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := stream.NewBuilder(c.a, stream.DefaultConfig())
	src := b.AddSource(stream.IntPayload(2), rangeSource(1, 9))
	odd := b.AddStage(src, stream.NoPayload{}, stream.Stage[int64, int, int](stream.StageFuncs[int64, int, int]{
		InitFunc: func(p stream.Payload) (int64, error) { return stream.ExpectInt(p) },
		StepFunc: func(mod int64, in int, out *stream.Downstream[int]) (int64, error) {
			if int64(in)%mod == 1 {
				out.Push(in)
			}
			return mod, nil
		},
	}), stream.OnSystem(c.b))
	b.AddSink(odd, sumSink())

	sum, err := stream.RunAs[int](ctx, b, src)
	is.NoErr(err)
	is.Equal(sum, 25)

	// the result travels back over the wire when the sink is remote
	b2 := stream.NewBuilder(c.a, stream.DefaultConfig())
	src2 := b2.AddSource(stream.NoPayload{}, rangeSource(0, 9))
	b2.AddSink(src2, sumSink(), stream.OnSystem(c.b))

	sum, err = stream.RunAs[int](ctx, b2, src2)
	is.NoErr(err)
	is.Equal(sum, 45)

	is.NoErr(b.WaitIdle(ctx))
	is.NoErr(b2.WaitIdle(ctx))
}

func TestNode_InitFailureAcrossNodes(t *testing.T) {
	is := is.New(t)
	c := newCluster(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := stream.NewBuilder(c.a, stream.DefaultConfig())
	src := b.AddSource(stream.StringPayload("not an int"), rangeSource(0, 9))
	b.AddSink(src, stream.Sink[int, int, int](stream.SinkFuncs[int, int, int]{
		InitFunc: func(p stream.Payload) (int, error) {
			n, err := stream.ExpectInt(p)
			return int(n), err
		},
		StepFunc: func(sum, in int) (int, error) { return sum + in, nil },
	}), stream.OnSystem(c.b))

	_, err := b.Run(ctx, src)
	is.True(cerrors.Is(err, stream.ErrStreamInitFailed))
	is.NoErr(b.WaitIdle(ctx))
}

func TestNode_ConnectionLost(t *testing.T) {
	is := is.New(t)
	c := newCluster(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	started := make(chan struct{})
	b := stream.NewBuilder(c.a, stream.DefaultConfig())
	src := b.AddSource(stream.NoPayload{}, stream.Source[int, int](stream.SourceFuncs[int, int]{
		PullFunc: func(next int, out *stream.Downstream[int], _ uint64) (int, error) {
			if next == 0 {
				close(started)
			}
			out.Push(next)
			return next + 1, nil
		},
	}))
	b.AddSink(src, sumSink(), stream.OnSystem(c.b))

	go func() {
		<-started
		_ = c.nodeB.Close()
	}()

	_, err := b.Run(ctx, src)
	is.True(cerrors.Is(err, actor.ErrUnreachable))
	is.NoErr(b.Participant(src).WaitIdle(ctx))
}

func TestNode_RouteWithoutConnection(t *testing.T) {
	is := is.New(t)
	sys := actor.NewSystem("lonely", log.Test(t))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sys.Shutdown(ctx)
	}()
	n := remote.NewNode(sys, remote.NewCodec(), log.Test(t))
	defer n.Close()

	err := sys.Send(actor.Address{}, actor.Address{Node: "elsewhere"}, "hello")
	is.True(cerrors.Is(err, actor.ErrUnreachable))
}
