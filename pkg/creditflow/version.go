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
	"fmt"
	"runtime"
	"runtime/debug"
)

// version is injected into release builds, e.g.
// -ldflags "-X github.com/conduitio/creditflow/pkg/creditflow.version=v0.1.0".
var version string

// Version returns the creditflow release a node runs. Binaries built with go
// install report their module version, anything else is "development".
// The platform is appended when appendOSArch is set, which is what
// `creditflow version` prints.
func Version(appendOSArch bool) string {
	v := version
	if v == "" {
		v = "development"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	if !appendOSArch {
		return v
	}
	return fmt.Sprintf("%s %s/%s", v, runtime.GOOS, runtime.GOARCH)
}
