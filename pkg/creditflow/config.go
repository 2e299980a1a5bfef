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

package creditflow

import (
	"net/url"
	"strings"
	"time"

	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/creditflow/pkg/foundation/log"
	"github.com/conduitio/creditflow/pkg/stream"
	"github.com/rs/zerolog"
)

const (
	DemoPipelineNone = "none"
	DemoPipelineSum  = "sum"
	DemoPipelineOdd  = "odd"
)

// Config holds all configurable values for creditflow.
type Config struct {
	ConfigFile struct {
		Path string `long:"config.path" usage:"global creditflow configuration file"`
	} `mapstructure:"config"`

	Log struct {
		Level  string `long:"log.level" usage:"sets logging level; accepts debug, info, warn, error, trace"`
		Format string `long:"log.format" usage:"sets the format of the logging; accepts json, cli"`
	}

	Stream struct {
		Capacity            int           `long:"stream.capacity" usage:"number of elements buffered per stream edge and initial credit granted by sinks"`
		CreditRoundInterval time.Duration `long:"stream.credit-round-interval" usage:"period of the credit round ticker" mapstructure:"credit-round-interval"`
		Tombstones          int           `long:"stream.tombstones" usage:"number of terminated stream IDs remembered per participant"`
	}

	Metrics struct {
		Address string `long:"metrics.address" usage:"address for serving prometheus metrics, empty disables the endpoint"`
	}

	Remote struct {
		Node    string `long:"remote.node" usage:"name of this node in a cluster of actor systems"`
		Address string `long:"remote.address" usage:"address accepting websocket connections from peer nodes, empty disables it"`
		Peers   string `long:"remote.peers" usage:"comma separated websocket URLs of peer nodes to connect to"`
	}

	Demo struct {
		Pipeline string        `long:"demo.pipeline" usage:"demo pipeline to run; accepts none, sum, odd"`
		Size     int           `long:"demo.size" usage:"number of elements emitted by the demo source"`
		Interval time.Duration `long:"demo.interval" usage:"pause between two runs of the demo pipeline"`
	}
}

func DefaultConfig() Config {
	var cfg Config
	cfg.ConfigFile.Path = "./creditflow.yaml"
	cfg.Log.Level = "info"
	cfg.Log.Format = "cli"
	cfg.Stream.Capacity = stream.DefaultCapacity
	cfg.Stream.CreditRoundInterval = stream.DefaultCreditRoundInterval
	cfg.Stream.Tombstones = stream.DefaultTombstones
	cfg.Metrics.Address = ":9090"
	cfg.Remote.Node = "node1"
	cfg.Demo.Pipeline = DemoPipelineOdd
	cfg.Demo.Size = 100
	cfg.Demo.Interval = 5 * time.Second
	return cfg
}

// StreamConfig returns the flow control settings handed to participants.
func (c Config) StreamConfig() stream.Config {
	return stream.Config{
		Capacity:            c.Stream.Capacity,
		CreditRoundInterval: c.Stream.CreditRoundInterval,
		Tombstones:          c.Stream.Tombstones,
	}
}

// PeerURLs splits the configured peers.
func (c Config) PeerURLs() []string {
	var urls []string
	for _, p := range strings.Split(c.Remote.Peers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

func (c Config) Validate() error {
	if c.Log.Level == "" {
		return requiredConfigFieldErr("log.level")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return invalidConfigFieldErr("log.level")
	}
	if c.Log.Format == "" {
		return requiredConfigFieldErr("log.format")
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		return invalidConfigFieldErr("log.format")
	}

	if c.Stream.Capacity <= 0 {
		return invalidConfigFieldErr("stream.capacity")
	}
	if c.Stream.CreditRoundInterval <= 0 {
		return invalidConfigFieldErr("stream.credit-round-interval")
	}
	if c.Stream.Tombstones <= 0 {
		return invalidConfigFieldErr("stream.tombstones")
	}

	if c.Remote.Node == "" && (c.Remote.Address != "" || c.Remote.Peers != "") {
		return requiredConfigFieldErr("remote.node")
	}
	for _, p := range c.PeerURLs() {
		u, err := url.Parse(p)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return invalidConfigFieldErr("remote.peers")
		}
	}

	switch c.Demo.Pipeline {
	case DemoPipelineNone:
	case DemoPipelineSum, DemoPipelineOdd:
		if c.Demo.Size < 0 {
			return invalidConfigFieldErr("demo.size")
		}
		if c.Demo.Interval <= 0 {
			return invalidConfigFieldErr("demo.interval")
		}
	case "":
		return requiredConfigFieldErr("demo.pipeline")
	default:
		return invalidConfigFieldErr("demo.pipeline")
	}
	return nil
}

func invalidConfigFieldErr(name string) error {
	return cerrors.Errorf("%q config value is invalid", name)
}

func requiredConfigFieldErr(name string) error {
	return cerrors.Errorf("%q config value is required", name)
}
