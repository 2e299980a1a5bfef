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

package config

import (
	"context"
	"fmt"
	"reflect"

	"github.com/conduitio/creditflow/cmd/creditflow/internal"
	"github.com/conduitio/creditflow/cmd/creditflow/root/run"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithExecute = (*ConfigCommand)(nil)
	_ ecdysis.CommandWithDocs    = (*ConfigCommand)(nil)
	_ ecdysis.CommandWithFlags   = (*ConfigCommand)(nil)
	_ ecdysis.CommandWithConfig  = (*ConfigCommand)(nil)
)

type ConfigCommand struct {
	RunCmd *run.RunCommand
}

func (c *ConfigCommand) Config() ecdysis.Config {
	return c.RunCmd.Config()
}

func (c *ConfigCommand) Flags() []ecdysis.Flag {
	return c.RunCmd.Flags()
}

func (c *ConfigCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Shows the configuration to be used when running creditflow.",
		Long: `creditflow runs based on the default configuration jointly with a provided
configuration file (optional), the set environment variables, and the flags
used. This command prints that configuration as YAML, it can be used as a
starting point for a configuration file.`,
	}
}

func (c *ConfigCommand) Usage() string { return "config" }

func (c *ConfigCommand) Execute(ctx context.Context) error {
	tree := internal.NewYAMLTree()
	insertStruct(reflect.ValueOf(c.RunCmd.Cfg), tree)

	out := ecdysis.CobraCmdFromContext(ctx).OutOrStdout()
	if err := tree.Encode(out); err != nil {
		return cerrors.Errorf("failed to write config: %w", err)
	}
	return nil
}

// insertStruct adds every non-empty field carrying a long tag to the tree,
// the usage of the field becomes the comment.
func insertStruct(v reflect.Value, tree *internal.YAMLTree) {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if fieldValue.Kind() == reflect.Struct {
			insertStruct(fieldValue, tree)
			continue
		}

		longName := field.Tag.Get("long")
		if longName == "" {
			continue
		}
		value := fmt.Sprintf("%v", fieldValue.Interface())
		if value != "" {
			tree.Insert(longName, value, field.Tag.Get("usage"))
		}
	}
}
