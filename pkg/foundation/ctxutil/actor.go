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

// actorCtxKey is used as the key when saving the actor address in a context.
type actorCtxKey struct{}

// ContextWithActor wraps ctx and returns a context that contains the address
// of the actor currently handling a message.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFromContext fetches the actor address from the context. If the context
// does not contain an actor it returns an empty string.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	actor := ctx.Value(actorCtxKey{})
	if actor != nil {
		return actor.(string)
	}
	return ""
}

// ActorLogCtxHook adds the actor address to the log output if the context
// contains one.
type ActorLogCtxHook struct{}

// Run executes the log hook.
func (h ActorLogCtxHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	p := ActorFromContext(e.GetCtx())
	if p != "" {
		e.Str(log.ActorField, p)
	}
}
