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

// Package cchan wraps channels with context aware receives. The actor system
// waits for stopped actors with it and requesters for stream outcomes.
package cchan

import (
	"context"
	"time"
)

// ChanOut is a receive-only channel.
type ChanOut[T any] <-chan T

// Recv blocks until a value arrives, the channel is closed or ctx is done.
// The bool is false if the channel was closed, the error is set only if ctx
// ended first.
func (c ChanOut[T]) Recv(ctx context.Context) (T, bool, error) {
	select {
	case val, ok := <-c:
		return val, ok, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// RecvTimeout is Recv bounded by timeout, a stream that does not finish in
// time returns context.DeadlineExceeded.
func (c ChanOut[T]) RecvTimeout(ctx context.Context, timeout time.Duration) (T, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Recv(ctx)
}
