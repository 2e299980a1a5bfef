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
	"github.com/goccy/go-json"
)

// Hop is one downstream participant of a pipeline.
type Hop struct {
	Addr actor.Address `json:"addr"`
	Role Role          `json:"role"`
}

// Request asks a source to start a new stream through Route.
type Request struct {
	Route     []Hop         `json:"route"`
	Requester actor.Address `json:"requester"`
}

// Started tells the requester the ID of the stream it asked for.
type Started struct {
	ID ID `json:"id"`
}

// Result is the outcome of a stream, sent to the requester exactly once per
// participant that ends it.
type Result struct {
	ID    ID
	Value any
	Err   error
}

// Open walks down the pipeline during the handshake.
type Open struct {
	ID        ID
	Payload   Payload
	Source    actor.Address
	Requester actor.Address
	// Route holds the hops after the recipient.
	Route []Hop
}

// AckOpen is the reply to Open once the rest of the chain accepted the
// stream.
type AckOpen struct {
	ID            ID     `json:"id"`
	InitialCredit uint64 `json:"initialCredit"`
}

// Batch carries elements downstream.
type Batch struct {
	ID       ID     `json:"id"`
	Seq      uint64 `json:"seq"`
	Elements []any  `json:"elements"`
}

// AckBatch grants credit upstream. Grant is the headroom of the receiver
// after processing batch Seq. Unsolicited acks are sent by the credit round
// and never reduce the credit of the upstream.
type AckBatch struct {
	ID          ID     `json:"id"`
	Grant       uint64 `json:"grant"`
	Seq         uint64 `json:"seq"`
	Unsolicited bool   `json:"unsolicited,omitempty"`
}

// Close tells the downstream that no further batches follow.
type Close struct {
	ID ID `json:"id"`
}

// Abort tears down the stream.
type Abort struct {
	ID     ID
	Reason error
}

// creditRound is the self-timer message of the credit round ticker.
type creditRound struct{}

type reasonJSON struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func encodeReason(err error) reasonJSON {
	if err == nil {
		return reasonJSON{}
	}
	return reasonJSON{Code: ReasonCode(err), Message: err.Error()}
}

func (r reasonJSON) decode() error {
	return reasonFromWire(r.Code, r.Message)
}

type abortJSON struct {
	ID     ID         `json:"id"`
	Reason reasonJSON `json:"reason"`
}

func (m Abort) MarshalJSON() ([]byte, error) {
	return json.Marshal(abortJSON{ID: m.ID, Reason: encodeReason(m.Reason)})
}

func (m *Abort) UnmarshalJSON(b []byte) error {
	var v abortJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	m.ID = v.ID
	m.Reason = v.Reason.decode()
	return nil
}

type resultJSON struct {
	ID    ID              `json:"id"`
	Value json.RawMessage `json:"value,omitempty"`
	Err   reasonJSON      `json:"err"`
}

func (m Result) MarshalJSON() ([]byte, error) {
	v := resultJSON{ID: m.ID, Err: encodeReason(m.Err)}
	if m.Err == nil {
		raw, err := json.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		v.Value = raw
	}
	return json.Marshal(v)
}

func (m *Result) UnmarshalJSON(b []byte) error {
	var v resultJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	m.ID = v.ID
	m.Err = v.Err.decode()
	if len(v.Value) > 0 {
		m.Value = RawValue(v.Value)
	}
	return nil
}

type openJSON struct {
	ID        ID            `json:"id"`
	Payload   payloadJSON   `json:"payload"`
	Source    actor.Address `json:"source"`
	Requester actor.Address `json:"requester"`
	Route     []Hop         `json:"route"`
}

func (m Open) MarshalJSON() ([]byte, error) {
	return json.Marshal(openJSON{
		ID:        m.ID,
		Payload:   encodePayload(m.Payload),
		Source:    m.Source,
		Requester: m.Requester,
		Route:     m.Route,
	})
}

func (m *Open) UnmarshalJSON(b []byte) error {
	var v openJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	p, err := decodePayload(v.Payload)
	if err != nil {
		return err
	}
	*m = Open{ID: v.ID, Payload: p, Source: v.Source, Requester: v.Requester, Route: v.Route}
	return nil
}

type batchJSON struct {
	ID       ID                `json:"id"`
	Seq      uint64            `json:"seq"`
	Elements []json.RawMessage `json:"elements"`
}

func (m *Batch) UnmarshalJSON(b []byte) error {
	var v batchJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	m.ID, m.Seq = v.ID, v.Seq
	m.Elements = make([]any, len(v.Elements))
	for i, raw := range v.Elements {
		m.Elements[i] = RawValue(raw)
	}
	return nil
}

// WireRegistry is implemented by envelope codecs that carry messages between
// actor systems.
type WireRegistry interface {
	Register(name string, newFn func() any)
}

// RegisterWire registers every message exchanged between participants.
func RegisterWire(r WireRegistry) {
	r.Register("stream.Request", func() any { return &Request{} })
	r.Register("stream.Started", func() any { return &Started{} })
	r.Register("stream.Result", func() any { return &Result{} })
	r.Register("stream.Open", func() any { return &Open{} })
	r.Register("stream.AckOpen", func() any { return &AckOpen{} })
	r.Register("stream.Batch", func() any { return &Batch{} })
	r.Register("stream.AckBatch", func() any { return &AckBatch{} })
	r.Register("stream.Close", func() any { return &Close{} })
	r.Register("stream.Abort", func() any { return &Abort{} })
}
