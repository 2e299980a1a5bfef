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
	"time"

	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/creditflow/pkg/foundation/multierror"
)

const (
	DefaultCapacity            = 5
	DefaultCreditRoundInterval = 100 * time.Millisecond
	DefaultTombstones          = 1024
)

// Config holds the flow control settings of a participant.
type Config struct {
	// Capacity is the number of elements a participant buffers per stream
	// edge. It is also the initial credit a sink grants.
	Capacity int
	// CreditRoundInterval is the period of the credit round ticker.
	CreditRoundInterval time.Duration
	// Tombstones is the number of terminated stream IDs remembered so late
	// messages for them can be told apart from messages for unknown streams.
	Tombstones int
}

func DefaultConfig() Config {
	return Config{
		Capacity:            DefaultCapacity,
		CreditRoundInterval: DefaultCreditRoundInterval,
		Tombstones:          DefaultTombstones,
	}
}

// Validate returns an error if the config can not be used.
func (c Config) Validate() error {
	var err error
	if c.Capacity <= 0 {
		err = multierror.Append(err, cerrors.Errorf("capacity must be positive, got %d", c.Capacity))
	}
	if c.CreditRoundInterval <= 0 {
		err = multierror.Append(err, cerrors.Errorf("credit round interval must be positive, got %v", c.CreditRoundInterval))
	}
	if c.Tombstones <= 0 {
		err = multierror.Append(err, cerrors.Errorf("tombstones must be positive, got %d", c.Tombstones))
	}
	return err
}

// withDefaults replaces unset fields with default values.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.CreditRoundInterval <= 0 {
		c.CreditRoundInterval = d.CreditRoundInterval
	}
	if c.Tombstones <= 0 {
		c.Tombstones = d.Tombstones
	}
	return c
}
