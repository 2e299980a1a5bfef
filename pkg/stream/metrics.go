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
	"github.com/conduitio/creditflow/pkg/foundation/metrics"
)

var (
	batchesSent = metrics.NewLabeledCounter("creditflow_stream_batches_total",
		"Number of batches sent downstream by participant role.",
		[]string{"role"})
	elementsSent = metrics.NewLabeledCounter("creditflow_stream_elements_total",
		"Number of elements sent downstream by participant role.",
		[]string{"role"})
	creditGranted = metrics.NewLabeledCounter("creditflow_stream_credit_granted_total",
		"Credit granted upstream by participant role.",
		[]string{"role"})
	openStreams = metrics.NewLabeledGauge("creditflow_stream_open",
		"Number of streams a participant currently holds slots for, by role.",
		[]string{"role"})
	abortsTotal = metrics.NewLabeledCounter("creditflow_stream_aborts_total",
		"Number of streams aborted by reason.",
		[]string{"reason"})
	handshakeDuration = metrics.NewLabeledTimer("creditflow_stream_handshake_duration_seconds",
		"Time from creating a slot until the downstream chain acknowledged it.",
		[]string{"role"})
)
