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

package demo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alexeyco/simpletable"
	"github.com/conduitio/creditflow/cmd/creditflow/root/run"
	"github.com/conduitio/creditflow/pkg/creditflow"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithExecute = (*DemoCommand)(nil)
	_ ecdysis.CommandWithDocs    = (*DemoCommand)(nil)
	_ ecdysis.CommandWithFlags   = (*DemoCommand)(nil)
	_ ecdysis.CommandWithConfig  = (*DemoCommand)(nil)
)

type DemoFlags struct {
	Runs int `long:"runs" usage:"number of times the demo pipeline is run" default:"3"`
}

// DemoCommand runs the configured demo pipeline a few times in a local actor
// system and prints the outcome of every run.
type DemoCommand struct {
	flags  DemoFlags
	RunCmd *run.RunCommand
}

func (c *DemoCommand) Config() ecdysis.Config {
	return c.RunCmd.Config()
}

func (c *DemoCommand) Flags() []ecdysis.Flag {
	return append(c.RunCmd.Flags(), ecdysis.BuildFlags(&c.flags)...)
}

func (c *DemoCommand) Usage() string { return "demo" }

func (c *DemoCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Runs the demo pipeline locally and shows the results.",
		Long: `Builds the demo pipeline selected with --demo.pipeline in a local actor system,
runs it the given number of times and prints a table with the result and
duration of every run. Metrics and remote connections are disabled.`,
	}
}

func (c *DemoCommand) Execute(ctx context.Context) error {
	cfg := c.RunCmd.Cfg
	if cfg.Demo.Pipeline == creditflow.DemoPipelineNone {
		return cerrors.Errorf("no demo pipeline selected, use --demo.pipeline")
	}
	if c.flags.Runs <= 0 {
		return cerrors.Errorf("runs must be positive, got %d", c.flags.Runs)
	}
	cfg.Metrics.Address = ""
	cfg.Remote.Address = ""
	cfg.Remote.Peers = ""

	r, err := creditflow.NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	}()

	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "RUN"},
			{Align: simpletable.AlignCenter, Text: "PIPELINE"},
			{Align: simpletable.AlignCenter, Text: "RESULT"},
			{Align: simpletable.AlignCenter, Text: "DURATION"},
		},
	}

	var failed int
	for i := 1; i <= c.flags.Runs; i++ {
		start := time.Now()
		total, err := r.RunDemo(ctx)
		result := strconv.FormatInt(total, 10)
		if err != nil {
			failed++
			result = err.Error()
		}
		table.Body.Cells = append(table.Body.Cells, []*simpletable.Cell{
			{Align: simpletable.AlignRight, Text: strconv.Itoa(i)},
			{Align: simpletable.AlignLeft, Text: cfg.Demo.Pipeline},
			{Align: simpletable.AlignRight, Text: result},
			{Align: simpletable.AlignRight, Text: time.Since(start).Round(time.Microsecond).String()},
		})
	}
	table.SetStyle(simpletable.StyleCompact)

	out := ecdysis.CobraCmdFromContext(ctx).OutOrStdout()
	_, _ = fmt.Fprintln(out, table.String())
	if failed > 0 {
		return cerrors.Errorf("%d of %d runs failed", failed, c.flags.Runs)
	}
	return nil
}
