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
)

// CreditWindow tracks granted but unused capacity in one direction of one
// stream edge. The granted value never exceeds max.
type CreditWindow struct {
	granted uint64
	max     uint64
}

// NewCreditWindow returns a window with nothing granted that can hold at most
// max credit.
func NewCreditWindow(max uint64) CreditWindow {
	return CreditWindow{max: max}
}

func (w *CreditWindow) Granted() uint64 { return w.granted }

func (w *CreditWindow) Max() uint64 { return w.max }

// SetMax changes the upper bound and clamps the granted value to it.
func (w *CreditWindow) SetMax(max uint64) {
	w.max = max
	if w.granted > max {
		w.granted = max
	}
}

// Set replaces the granted value, clamped to max.
func (w *CreditWindow) Set(n uint64) {
	w.granted = min(n, w.max)
}

// Raise sets the granted value to n if n is larger. Credit is never reduced.
func (w *CreditWindow) Raise(n uint64) {
	if n > w.granted {
		w.Set(n)
	}
}

// Consume uses n credits. It fails without changing the window if fewer than
// n credits are granted.
func (w *CreditWindow) Consume(n uint64) error {
	if n > w.granted {
		return cerrors.Errorf("%w: consuming %d credits with only %d granted", ErrBufferOverflow, n, w.granted)
	}
	w.granted -= n
	return nil
}
