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

package csync

import (
	"context"
	"sync"

	"github.com/conduitio/creditflow/pkg/foundation/cchan"
)

// ValueWatcher holds a value that is written by one goroutine and observed by
// others. Watch blocks until the value satisfies a condition.
type ValueWatcher[T any] struct {
	m       sync.Mutex
	val     T
	changed chan struct{}
}

type ValueWatcherFunc[T any] func(val T) bool

// Set stores val and wakes up all goroutines blocked in Watch.
func (h *ValueWatcher[T]) Set(val T) {
	h.m.Lock()
	defer h.m.Unlock()

	h.val = val
	if h.changed != nil {
		close(h.changed)
		h.changed = nil
	}
}

// Get returns the current value.
func (h *ValueWatcher[T]) Get() T {
	h.m.Lock()
	defer h.m.Unlock()
	return h.val
}

// Watch blocks until f returns true for the current or a future value and
// returns that value. Values set in quick succession may be skipped, f only
// sees the latest one. If ctx is cancelled first the context error is
// returned.
func (h *ValueWatcher[T]) Watch(ctx context.Context, f ValueWatcherFunc[T]) (T, error) {
	for {
		val, changed := h.snapshot()
		if f(val) {
			return val, nil
		}
		if _, _, err := cchan.ChanOut[struct{}](changed).Recv(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
}

// snapshot returns the current value and a channel closed on the next Set.
func (h *ValueWatcher[T]) snapshot() (T, chan struct{}) {
	h.m.Lock()
	defer h.m.Unlock()
	if h.changed == nil {
		h.changed = make(chan struct{})
	}
	return h.val, h.changed
}
