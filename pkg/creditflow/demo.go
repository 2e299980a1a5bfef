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

package creditflow

import (
	"github.com/conduitio/creditflow/pkg/actor"
	"github.com/conduitio/creditflow/pkg/stream"
)

// counter is the state of the demo source, it emits next..last.
type counter struct {
	next, last int64
}

// countSource emits the numbers from 1 up to the payload.
var countSource = stream.SourceFuncs[counter, int64]{
	InitFunc: func(p stream.Payload) (counter, error) {
		n, err := stream.ExpectInt(p)
		if err != nil {
			return counter{}, err
		}
		return counter{next: 1, last: n}, nil
	},
	PullFunc: func(c counter, out *stream.Downstream[int64], demand uint64) (counter, error) {
		for ; demand > 0 && c.next <= c.last; demand-- {
			out.Push(c.next)
			c.next++
		}
		return c, nil
	},
	IsDoneFunc: func(c counter) bool { return c.next > c.last },
}

var oddFilter = stream.StageFuncs[struct{}, int64, int64]{
	StepFunc: func(s struct{}, in int64, out *stream.Downstream[int64]) (struct{}, error) {
		if in%2 != 0 {
			out.Push(in)
		}
		return s, nil
	},
}

var sumSink = stream.SinkFuncs[int64, int64, int64]{
	StepFunc: func(total, in int64) (int64, error) { return total + in, nil },
}

// demoPipeline is a pipeline built once and run repeatedly, every run is a
// separate stream through the same participants.
type demoPipeline struct {
	name string
	b    *stream.Builder
	src  stream.Handle
	size int64
}

func newDemoPipeline(sys *actor.System, cfg Config) (*demoPipeline, error) {
	b := stream.NewBuilder(sys, cfg.StreamConfig())
	src := b.AddSource(
		stream.IntPayload(cfg.Demo.Size),
		stream.Source[counter, int64](countSource),
		stream.WithName("demo-source"),
	)
	last := src
	switch cfg.Demo.Pipeline {
	case DemoPipelineSum:
	case DemoPipelineOdd:
		last = b.AddStage(last, stream.NoPayload{}, stream.Stage[struct{}, int64, int64](oddFilter), stream.WithName("demo-odd"))
	default:
		return nil, invalidConfigFieldErr("demo.pipeline")
	}
	b.AddSink(last, stream.Sink[int64, int64, int64](sumSink), stream.WithName("demo-sum"))

	return &demoPipeline{
		name: cfg.Demo.Pipeline,
		b:    b,
		src:  src,
		size: int64(cfg.Demo.Size),
	}, nil
}

// expected returns the result a successful run produces.
func (p *demoPipeline) expected() int64 {
	n := p.size
	if p.name == DemoPipelineOdd {
		odd := (n + 1) / 2
		return odd * odd
	}
	return n * (n + 1) / 2
}
