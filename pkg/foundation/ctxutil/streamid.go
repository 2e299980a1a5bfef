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

package ctxutil

import (
	"context"

	"github.com/conduitio/creditflow/pkg/foundation/log"
	"github.com/rs/zerolog"
)

// streamIDCtxKey is used as the key when saving the stream ID in a context.
type streamIDCtxKey struct{}

// ContextWithStreamID wraps ctx and returns a context that contains streamID.
func ContextWithStreamID(ctx context.Context, streamID string) context.Context {
	return context.WithValue(ctx, streamIDCtxKey{}, streamID)
}

// StreamIDFromContext fetches the stream ID from the context. If the context
// does not contain a stream ID it returns an empty string.
func StreamIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	streamID := ctx.Value(streamIDCtxKey{})
	if streamID != nil {
		return streamID.(string)
	}
	return ""
}

// StreamIDLogCtxHook fetches the stream ID from the context and if it exists
// it adds the stream ID to the log output.
type StreamIDLogCtxHook struct{}

// Run executes the log hook.
func (h StreamIDLogCtxHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	p := StreamIDFromContext(e.GetCtx())
	if p != "" {
		e.Str(log.StreamIDField, p)
	}
}
