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

package cli

import (
	"os"

	"github.com/conduitio/creditflow/cmd/creditflow/root"
	"github.com/conduitio/ecdysis"
)

// Run executes the creditflow command line and exits the process with its
// status. The error of a failed command is printed by the command itself.
func Run() {
	cmd := ecdysis.New().MustBuildCobraCommand(&root.RootCommand{})
	cmd.CompletionOptions.DisableDefaultCmd = true
	// a failed demo run or a node that can't reach its peers is not a usage
	// error, --help still prints the usage
	cmd.SilenceUsage = true

	os.Exit(exitCode(cmd.Execute()))
}

func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
