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
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/goccy/go-json"
)

// Payload is the value a participant hands to the next one when a stream is
// opened. It is a closed set of shapes, the receiving behavior validates the
// shape it expects in Init.
type Payload interface {
	isPayload()
}

type (
	NoPayload     struct{}
	StringPayload string
	IntPayload    int64
	BytesPayload  []byte
)

func (NoPayload) isPayload()     {}
func (StringPayload) isPayload() {}
func (IntPayload) isPayload()    {}
func (BytesPayload) isPayload()  {}

func payloadKind(p Payload) string {
	switch p.(type) {
	case nil, NoPayload:
		return "none"
	case StringPayload:
		return "string"
	case IntPayload:
		return "int"
	case BytesPayload:
		return "bytes"
	default:
		return "unknown"
	}
}

func mismatch(want string, got Payload) error {
	return cerrors.Errorf("%w: expected %s payload, got %s", ErrStreamInitFailed, want, payloadKind(got))
}

// ExpectString returns the string held by p or ErrStreamInitFailed.
func ExpectString(p Payload) (string, error) {
	if v, ok := p.(StringPayload); ok {
		return string(v), nil
	}
	return "", mismatch("string", p)
}

// ExpectInt returns the integer held by p or ErrStreamInitFailed.
func ExpectInt(p Payload) (int64, error) {
	if v, ok := p.(IntPayload); ok {
		return int64(v), nil
	}
	return 0, mismatch("int", p)
}

// ExpectBytes returns the bytes held by p or ErrStreamInitFailed.
func ExpectBytes(p Payload) ([]byte, error) {
	if v, ok := p.(BytesPayload); ok {
		return v, nil
	}
	return nil, mismatch("bytes", p)
}

// ExpectNone fails with ErrStreamInitFailed unless p is empty.
func ExpectNone(p Payload) error {
	switch p.(type) {
	case nil, NoPayload:
		return nil
	default:
		return mismatch("no", p)
	}
}

type payloadJSON struct {
	Kind   string `json:"kind"`
	String string `json:"string,omitempty"`
	Int    int64  `json:"int,omitempty"`
	Bytes  []byte `json:"bytes,omitempty"`
}

func encodePayload(p Payload) payloadJSON {
	out := payloadJSON{Kind: payloadKind(p)}
	switch v := p.(type) {
	case StringPayload:
		out.String = string(v)
	case IntPayload:
		out.Int = int64(v)
	case BytesPayload:
		out.Bytes = v
	}
	return out
}

func decodePayload(in payloadJSON) (Payload, error) {
	switch in.Kind {
	case "", "none":
		return NoPayload{}, nil
	case "string":
		return StringPayload(in.String), nil
	case "int":
		return IntPayload(in.Int), nil
	case "bytes":
		return BytesPayload(in.Bytes), nil
	default:
		return nil, cerrors.Errorf("unknown payload kind %q", in.Kind)
	}
}

// RawValue is an element or result that arrived from another node and has
// not been decoded yet. Behaviors never see it, it is decoded into their
// element type before Step is called.
type RawValue json.RawMessage

// Decode unmarshals the raw value into dst.
func (v RawValue) Decode(dst any) error {
	return json.Unmarshal(v, dst)
}

func (v RawValue) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return v, nil
}

// decoder is implemented by values that still need to be decoded.
type decoder interface {
	Decode(dst any) error
}

// coerce converts an element or result into T. Values produced on the same
// node are passed through, values that crossed the wire are decoded.
func coerce[T any](v any) (T, error) {
	switch vv := v.(type) {
	case T:
		return vv, nil
	case decoder:
		var out T
		if err := vv.Decode(&out); err != nil {
			return out, cerrors.Errorf("decoding %T: %w", out, err)
		}
		return out, nil
	case nil:
		var zero T
		return zero, nil
	default:
		var zero T
		return zero, cerrors.Errorf("unexpected value type %T, expected %T", v, zero)
	}
}
