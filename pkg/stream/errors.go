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
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
)

var (
	// ErrNoDownstream is returned when a source or stage has nothing to send
	// its output to.
	ErrNoDownstream = cerrors.New("no downstream defined")
	// ErrAmbiguousDownstream is returned when a participant would have more
	// than one downstream, or a sink would have any.
	ErrAmbiguousDownstream = cerrors.New("ambiguous downstream")
	// ErrStreamInitFailed is the abort reason of a participant that could not
	// initialize its behavior from the handshake payload.
	ErrStreamInitFailed = cerrors.New("stream init failed")
	// ErrBufferOverflow is returned when a participant receives or produces
	// more elements than its buffer can hold.
	ErrBufferOverflow = cerrors.New("buffer overflow")
	// ErrRuntime wraps errors returned by behavior callbacks after the stream
	// was opened.
	ErrRuntime = cerrors.New("stream runtime error")
	// ErrUnreachable is the abort reason injected when a peer stops or can
	// not be reached anymore.
	ErrUnreachable = actor.ErrUnreachable
)

// kindError attaches a sentinel to a cause, so both can be matched with
// cerrors.Is.
type kindError struct {
	kind  error
	cause error
}

func withKind(kind, cause error) error {
	switch {
	case cause == nil:
		return kind
	case cerrors.Is(cause, kind):
		return cause
	default:
		return &kindError{kind: kind, cause: cause}
	}
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

func initFailed(cause error) error { return withKind(ErrStreamInitFailed, cause) }

func runtimeErr(cause error) error { return withKind(ErrRuntime, cause) }

func unreachable(cause error) error { return withKind(ErrUnreachable, cause) }

// reasonCodes maps sentinels to the codes used when an abort reason crosses
// the wire. Order matters, the first match wins.
var reasonCodes = []struct {
	code string
	err  error
}{
	{"stream_init_failed", ErrStreamInitFailed},
	{"no_downstream", ErrNoDownstream},
	{"ambiguous_downstream", ErrAmbiguousDownstream},
	{"buffer_overflow", ErrBufferOverflow},
	{"unreachable", ErrUnreachable},
	{"canceled", context.Canceled},
	{"deadline_exceeded", context.DeadlineExceeded},
	{"runtime", ErrRuntime},
}

const reasonUnknown = "unknown"

// ReasonCode returns a short stable name for an abort reason, used for wire
// encoding and as a metric label.
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	for _, rc := range reasonCodes {
		if cerrors.Is(err, rc.err) {
			return rc.code
		}
	}
	return reasonUnknown
}

// wireError is an abort reason rebuilt from its code and message.
type wireError struct {
	kind error
	msg  string
}

func (e *wireError) Error() string { return e.msg }

func (e *wireError) Unwrap() error { return e.kind }

// reasonFromWire rebuilds an error so that cerrors.Is matches the same
// sentinel as on the sending node.
func reasonFromWire(code, msg string) error {
	if code == "" {
		return nil
	}
	for _, rc := range reasonCodes {
		if rc.code == code {
			return &wireError{kind: rc.err, msg: msg}
		}
	}
	return cerrors.New(msg)
}
