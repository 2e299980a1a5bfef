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

package run

import (
	"context"

	"github.com/conduitio/creditflow/pkg/creditflow"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithFlags   = (*RunCommand)(nil)
	_ ecdysis.CommandWithExecute = (*RunCommand)(nil)
	_ ecdysis.CommandWithDocs    = (*RunCommand)(nil)
	_ ecdysis.CommandWithConfig  = (*RunCommand)(nil)
)

type RunFlags struct {
	creditflow.Config
}

type RunCommand struct {
	flags RunFlags
	Cfg   creditflow.Config
}

func (c *RunCommand) Execute(_ context.Context) error {
	e := &creditflow.Entrypoint{}
	e.Serve(c.Cfg)
	return nil
}

func (c *RunCommand) Config() ecdysis.Config {
	return ecdysis.Config{
		EnvPrefix:     "CREDITFLOW",
		Parsed:        &c.Cfg,
		Path:          c.flags.ConfigFile.Path,
		DefaultValues: creditflow.DefaultConfig(),
	}
}

func (c *RunCommand) Usage() string { return "run" }

func (c *RunCommand) Flags() []ecdysis.Flag {
	flags := ecdysis.BuildFlags(&c.flags)

	c.Cfg = creditflow.DefaultConfig()
	flags.SetDefault("config.path", c.Cfg.ConfigFile.Path)
	flags.SetDefault("log.level", c.Cfg.Log.Level)
	flags.SetDefault("log.format", c.Cfg.Log.Format)
	flags.SetDefault("stream.capacity", c.Cfg.Stream.Capacity)
	flags.SetDefault("stream.credit-round-interval", c.Cfg.Stream.CreditRoundInterval)
	flags.SetDefault("stream.tombstones", c.Cfg.Stream.Tombstones)
	flags.SetDefault("metrics.address", c.Cfg.Metrics.Address)
	flags.SetDefault("remote.node", c.Cfg.Remote.Node)
	flags.SetDefault("remote.address", c.Cfg.Remote.Address)
	flags.SetDefault("remote.peers", c.Cfg.Remote.Peers)
	flags.SetDefault("demo.pipeline", c.Cfg.Demo.Pipeline)
	flags.SetDefault("demo.size", c.Cfg.Demo.Size)
	flags.SetDefault("demo.interval", c.Cfg.Demo.Interval)
	return flags
}

func (c *RunCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Run creditflow",
		Long: `Starts an actor system running credit based streams. Depending on the
configuration it serves prometheus metrics, accepts connections from peer
nodes and repeatedly runs a demo pipeline.`,
	}
}
