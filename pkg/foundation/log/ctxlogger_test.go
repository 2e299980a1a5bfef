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

package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

type testHook struct{}

func (testHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	if v, ok := e.GetCtx().Value(ctxKey{}).(string); ok {
		e.Str("ctxval", v)
	}
}

func decodeLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	is := is.New(t)
	var got map[string]any
	is.NoErr(json.Unmarshal(b, &got))
	return got
}

func TestCtxLogger_Levels(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		logfunc func(CtxLogger) *zerolog.Event
		want    string
	}{
		{name: "trace", logfunc: func(l CtxLogger) *zerolog.Event { return l.Trace(ctx) }, want: "trace"},
		{name: "debug", logfunc: func(l CtxLogger) *zerolog.Event { return l.Debug(ctx) }, want: "debug"},
		{name: "info", logfunc: func(l CtxLogger) *zerolog.Event { return l.Info(ctx) }, want: "info"},
		{name: "warn", logfunc: func(l CtxLogger) *zerolog.Event { return l.Warn(ctx) }, want: "warn"},
		{name: "error", logfunc: func(l CtxLogger) *zerolog.Event { return l.Error(ctx) }, want: "error"},
		{name: "with level", logfunc: func(l CtxLogger) *zerolog.Event { return l.WithLevel(ctx, zerolog.InfoLevel) }, want: "info"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			var out bytes.Buffer
			logger := New(zerolog.New(&out).Level(zerolog.TraceLevel))

			tc.logfunc(logger).Str("foo", "bar").Msg("hello")

			got := decodeLine(t, out.Bytes())
			is.Equal(got["level"], tc.want)
			is.Equal(got["foo"], "bar")
			is.Equal(got["message"], "hello")
			_, ok := got[ComponentField]
			is.True(!ok) // no component configured
		})
	}
}

func TestCtxLogger_Err(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	var out bytes.Buffer
	logger := New(zerolog.New(&out))

	logger.Err(ctx, nil).Msg("")
	got := decodeLine(t, out.Bytes())
	is.Equal(got["level"], "info")
}

func TestCtxLogger_WithComponent(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	var out bytes.Buffer
	logger := New(zerolog.New(&out)).WithComponent("mailbox")

	logger.Info(ctx).Msg("")
	got := decodeLine(t, out.Bytes())
	is.Equal(got[ComponentField], "mailbox")
	is.Equal(logger.Component(), "mailbox")
}

type genericThing[T any] struct{ _ T }

func TestCtxLogger_WithComponentFromType(t *testing.T) {
	is := is.New(t)

	logger := Nop().WithComponentFromType(&bytes.Buffer{})
	is.Equal(logger.Component(), "bytes.Buffer")

	logger = Nop().WithComponentFromType(genericThing[int]{})
	is.Equal(logger.Component(), "foundation.log.genericThing")
}

func TestCtxLogger_Hooks(t *testing.T) {
	is := is.New(t)
	var out bytes.Buffer
	logger := New(zerolog.New(&out).Hook(testHook{}))

	ctx := context.WithValue(context.Background(), ctxKey{}, "bar")
	logger.Info(ctx).Msg("")
	got := decodeLine(t, out.Bytes())
	is.Equal(got["ctxval"], "bar")

	out.Reset()
	logger.Info(context.Background()).Msg("")
	got = decodeLine(t, out.Bytes())
	_, ok := got["ctxval"]
	is.True(!ok)
}

func TestParseFormat(t *testing.T) {
	is := is.New(t)

	f, err := ParseFormat("json")
	is.NoErr(err)
	is.Equal(f, FormatJSON)

	f, err = ParseFormat("cli")
	is.NoErr(err)
	is.Equal(f, FormatCLI)

	_, err = ParseFormat("xml")
	is.True(err != nil)
}
