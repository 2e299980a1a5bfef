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

package root

import (
	"context"
	"fmt"

	"github.com/conduitio/creditflow/cmd/creditflow/root/config"
	"github.com/conduitio/creditflow/cmd/creditflow/root/demo"
	"github.com/conduitio/creditflow/cmd/creditflow/root/run"
	"github.com/conduitio/creditflow/cmd/creditflow/root/version"
	"github.com/conduitio/creditflow/pkg/creditflow"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithFlags       = (*RootCommand)(nil)
	_ ecdysis.CommandWithExecute     = (*RootCommand)(nil)
	_ ecdysis.CommandWithDocs        = (*RootCommand)(nil)
	_ ecdysis.CommandWithSubCommands = (*RootCommand)(nil)
)

type RootFlags struct {
	Version bool `long:"version" short:"v" usage:"show version" persistent:"true"`
}

type RootCommand struct {
	flags RootFlags
}

func (c *RootCommand) Execute(ctx context.Context) error {
	cmd := ecdysis.CobraCmdFromContext(ctx)
	if c.flags.Version {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", creditflow.Version(true))
		return nil
	}
	return cmd.Help()
}

func (c *RootCommand) Usage() string { return "creditflow" }

func (c *RootCommand) Flags() []ecdysis.Flag {
	return ecdysis.BuildFlags(&c.flags)
}

func (c *RootCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "creditflow runs streams between actors under credit based flow control",
		Long: `creditflow connects sources, stages and sinks living in actors. Elements only
flow downstream when the consumer granted credit for them, so no participant
ever buffers more than it announced.`,
	}
}

func (c *RootCommand) SubCommands() []ecdysis.Command {
	return []ecdysis.Command{
		&run.RunCommand{},
		&config.ConfigCommand{RunCmd: &run.RunCommand{}},
		&demo.DemoCommand{RunCmd: &run.RunCommand{}},
		&version.VersionCommand{},
	}
}
