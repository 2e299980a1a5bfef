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
	"context"
	"io"
	"net/http"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/matryer/is"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	cfg.Stream.CreditRoundInterval = 10 * time.Millisecond
	cfg.Metrics.Address = "127.0.0.1:0"
	cfg.Demo.Size = 9
	cfg.Demo.Interval = 10 * time.Millisecond
	return cfg
}

// startRuntime runs r in the background and waits until it is ready. The
// returned function stops the runtime and returns the error of Run.
func startRuntime(t *testing.T, r *Runtime) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() {
		errC <- r.Run(ctx)
	}()

	select {
	case <-r.Ready:
	case err := <-errC:
		cancel()
		t.Fatalf("runtime stopped before it was ready: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("runtime did not get ready")
	}

	var stopped bool
	var err error
	stop := func() error {
		if stopped {
			return err
		}
		stopped = true
		cancel()
		select {
		case err = <-errC:
		case <-time.After(exitTimeout):
			t.Error("runtime did not stop")
		}
		return err
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func TestNewRuntime_InvalidConfig(t *testing.T) {
	is := is.New(t)

	cfg := testConfig()
	cfg.Log.Format = "xml"
	_, err := NewRuntime(cfg)
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), `"log.format" config value is invalid`))
}

func TestRuntime_RunDemo(t *testing.T) {
	testCases := []struct {
		pipeline string
		want     int64
	}{
		{pipeline: DemoPipelineSum, want: 45},
		{pipeline: DemoPipelineOdd, want: 25},
	}

	for _, tc := range testCases {
		t.Run(tc.pipeline, func(t *testing.T) {
			is := is.New(t)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			cfg := testConfig()
			cfg.Metrics.Address = ""
			cfg.Demo.Pipeline = tc.pipeline
			cfg.Demo.Interval = time.Hour

			r, err := NewRuntime(cfg)
			is.NoErr(err)
			startRuntime(t, r)

			// the participants serve every run, one stream each
			for i := 0; i < 3; i++ {
				got, err := r.RunDemo(ctx)
				is.NoErr(err)
				is.Equal(got, tc.want)
			}
		})
	}
}

func TestRuntime_RunDemoWithoutPipeline(t *testing.T) {
	is := is.New(t)

	cfg := testConfig()
	cfg.Demo.Pipeline = DemoPipelineNone
	r, err := NewRuntime(cfg)
	is.NoErr(err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		is.NoErr(r.Shutdown(ctx))
	})

	_, err = r.RunDemo(context.Background())
	is.True(err != nil)
}

func TestRuntime_ServesMetrics(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := NewRuntime(testConfig())
	is.NoErr(err)
	stop := startRuntime(t, r)

	_, err = r.RunDemo(ctx)
	is.NoErr(err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+r.MetricsAddr().String()+"/metrics", nil)
	is.NoErr(err)
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)

	body, err := io.ReadAll(resp.Body)
	is.NoErr(err)
	for _, want := range []string{
		`creditflow_stream_batches_total{node="node1",role="source"}`,
		`creditflow_stream_elements_total{node="node1",role="stage"}`,
		`creditflow_demo_runs_total{node="node1",outcome="ok"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output does not contain %q", want)
		}
	}

	err = stop()
	is.True(cerrors.Is(err, context.Canceled))
}

func TestRuntime_ConnectsToPeers(t *testing.T) {
	is := is.New(t)

	cfgB := testConfig()
	cfgB.Remote.Node = "b"
	cfgB.Remote.Address = "127.0.0.1:0"
	cfgB.Metrics.Address = ""
	cfgB.Demo.Pipeline = DemoPipelineNone
	b, err := NewRuntime(cfgB)
	is.NoErr(err)
	startRuntime(t, b)

	cfgA := testConfig()
	cfgA.Remote.Node = "a"
	cfgA.Remote.Peers = "ws://" + b.RemoteAddr().String()
	cfgA.Metrics.Address = ""
	cfgA.Demo.Pipeline = DemoPipelineNone
	a, err := NewRuntime(cfgA)
	is.NoErr(err)
	startRuntime(t, a)

	is.Equal(a.Node.Peers(), []string{"b"})
}

func TestVersion(t *testing.T) {
	is := is.New(t)

	is.True(Version(false) != "")
	is.True(strings.HasSuffix(Version(true), "/"+runtime.GOARCH))
}

func TestVersion_Injected(t *testing.T) {
	is := is.New(t)

	old := version
	version = "v0.3.1"
	t.Cleanup(func() { version = old })

	is.Equal(Version(false), "v0.3.1")
	is.Equal(Version(true), "v0.3.1 "+runtime.GOOS+"/"+runtime.GOARCH)
}
