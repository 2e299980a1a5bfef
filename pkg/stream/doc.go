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

// Package stream implements credit-based streaming between actors.
//
// A pipeline is a linear chain of participants: one source, any number of
// stages and one sink. Each participant is an actor hosting one behavior and
// taking part in any number of streams at once. A stream is set up with an
// open/ack_open handshake walking the chain downstream and back. Data then
// flows downstream in batches, a producer only ever sends as many elements
// as its consumer granted. Consumers grant credit with every batch
// acknowledgement and with unsolicited grants sent by a periodic credit
// round. The source closes the stream once it is exhausted, the sink
// finalizes the result and delivers it to the requester. An abort travels in
// both directions from where it was raised and removes every slot of the
// stream.
//
// Pipelines are usually assembled with a Builder:
//
//	b := stream.NewBuilder(sys, stream.DefaultConfig())
//	src := b.AddSource(stream.NoPayload{}, stream.Source(counter))
//	odd := b.AddStage(src, stream.NoPayload{}, stream.Stage(filterOdd))
//	b.AddSink(odd, stream.Sink(summer))
//	total, err := stream.RunAs[int](ctx, b, src)
package stream
