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
	"strconv"

	"github.com/conduitio/creditflow/pkg/actor"
)

// ID names one pipeline instance. It is minted by the source actor and is
// never reused while a slot referencing it exists.
type ID struct {
	Origin actor.Address `json:"origin"`
	Seq    uint64        `json:"seq"`
}

func (id ID) IsZero() bool {
	return id.Origin.IsZero() && id.Seq == 0
}

func (id ID) String() string {
	return id.Origin.String() + "#" + strconv.FormatUint(id.Seq, 10)
}
