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
	"net"
	"net/http"
	"time"

	"github.com/conduitio/creditflow/pkg/actor"
	"github.com/conduitio/creditflow/pkg/actor/remote"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/creditflow/pkg/foundation/ctxutil"
	"github.com/conduitio/creditflow/pkg/foundation/log"
	"github.com/conduitio/creditflow/pkg/foundation/metrics"
	"github.com/conduitio/creditflow/pkg/foundation/metrics/prometheus"
	"github.com/conduitio/creditflow/pkg/stream"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"
)

const exitTimeout = 10 * time.Second

var demoRuns = metrics.NewLabeledCounter("creditflow_demo_runs_total",
	"Number of finished demo pipeline runs by outcome.",
	[]string{"outcome"})

// Runtime sets up an actor system with everything needed to run credit based
// streams and, optionally, talk to other nodes.
type Runtime struct {
	Config Config
	System *actor.System
	Node   *remote.Node

	// Ready is closed once all servers are listening.
	Ready chan struct{}

	gatherer    *promclient.Registry
	demo        *demoPipeline
	metricsAddr net.Addr
	remoteAddr  net.Addr

	logger log.CtxLogger
}

// NewRuntime validates the config and creates the runtime.
func NewRuntime(cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Log.Level, cfg.Log.Format)
	sys := actor.NewSystem(cfg.Remote.Node, logger)

	codec := remote.NewCodec()
	stream.RegisterWire(codec)
	node := remote.NewNode(sys, codec, logger)

	r := &Runtime{
		Config:   cfg,
		System:   sys,
		Node:     node,
		Ready:    make(chan struct{}),
		gatherer: configurePrometheus(cfg.Remote.Node),
		logger:   logger.WithComponent("creditflow.Runtime"),
	}

	if cfg.Demo.Pipeline != DemoPipelineNone {
		demo, err := newDemoPipeline(sys, cfg)
		if err != nil {
			return nil, cerrors.Errorf("failed to build demo pipeline: %w", err)
		}
		r.demo = demo
	}
	return r, nil
}

func newLogger(level string, format string) log.CtxLogger {
	l, _ := zerolog.ParseLevel(level)
	f, _ := log.ParseFormat(format)
	logger := log.InitLogger(l, f,
		ctxutil.StreamIDLogCtxHook{},
		ctxutil.ActorLogCtxHook{},
	)
	zerolog.DefaultContextLogger = &logger.Logger
	return logger
}

// configurePrometheus returns a gatherer collecting every creditflow metric.
// Each runtime gets its own gatherer so several can live in one process.
func configurePrometheus(node string) *promclient.Registry {
	var labels map[string]string
	if node != "" {
		labels = map[string]string{"node": node}
	}
	registry := prometheus.NewRegistry(labels)
	metrics.Register(registry)

	gatherer := promclient.NewRegistry()
	gatherer.MustRegister(registry)
	return gatherer
}

// Run starts the servers, connects to the configured peers and runs the demo
// pipeline until ctx is cancelled or a server fails.
func (r *Runtime) Run(ctx context.Context) (err error) {
	t, ctx := tomb.WithContext(ctx)

	defer func() {
		if err != nil {
			t.Kill(err)
		}
		<-t.Dying()
		r.logger.Warn(ctx).Msg("creditflow is stopping, stand by for shutdown ...")
		err = t.Wait()
	}()

	r.registerCleanup(t)

	if r.Config.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
		r.metricsAddr, err = r.serveHTTP(ctx, t, &http.Server{
			Addr:              r.Config.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
		if err != nil {
			return cerrors.Errorf("failed to serve metrics: %w", err)
		}
	}

	if r.Config.Remote.Address != "" {
		r.remoteAddr, err = r.serveHTTP(ctx, t, &http.Server{
			Addr:              r.Config.Remote.Address,
			Handler:           r.Node,
			ReadHeaderTimeout: 10 * time.Second,
		})
		if err != nil {
			return cerrors.Errorf("failed to serve remote node: %w", err)
		}
	}

	for _, peer := range r.Config.PeerURLs() {
		if err := r.Node.Dial(ctx, peer); err != nil {
			return cerrors.Errorf("failed to connect to peer %q: %w", peer, err)
		}
		r.logger.Info(ctx).Str(log.PeerField, peer).Msg("connected to peer")
	}

	if r.demo != nil {
		t.Go(func() error {
			r.runDemo(t.Context(nil))
			return nil
		})
	}

	close(r.Ready)
	return nil
}

func (r *Runtime) registerCleanup(t *tomb.Tomb) {
	t.Go(func() error {
		<-t.Dying()
		// start cleanup with a fresh context
		ctx, cancel := context.WithTimeout(context.Background(), exitTimeout)
		defer cancel()
		return r.Shutdown(ctx)
	})
}

// Shutdown stops the demo participants, closes all peer connections and
// stops the actor system. Run calls it on exit, it is only needed when the
// runtime is used without Run.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.demo != nil {
		r.demo.b.Stop()
	}
	err := r.Node.Close()
	shutdownErr := r.System.Shutdown(ctx)
	return cerrors.LogOrReplace(err, shutdownErr, func() {
		r.logger.Err(ctx, shutdownErr).Msg("failed to shut down actor system")
	})
}

// runDemo runs the demo pipeline repeatedly until ctx is cancelled.
func (r *Runtime) runDemo(ctx context.Context) {
	for {
		start := time.Now()
		total, err := r.RunDemo(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			r.logger.Err(ctx, err).Str("pipeline", r.demo.name).Msg("demo pipeline failed")
		default:
			r.logger.Info(ctx).
				Str("pipeline", r.demo.name).
				Int64("result", total).
				Dur(log.DurationField, time.Since(start)).
				Msg("demo pipeline finished")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.Config.Demo.Interval):
		}
	}
}

// RunDemo runs the demo pipeline once and returns its result.
func (r *Runtime) RunDemo(ctx context.Context) (int64, error) {
	if r.demo == nil {
		return 0, cerrors.New("no demo pipeline configured")
	}
	total, err := stream.RunAs[int64](ctx, r.demo.b, r.demo.src)
	if err != nil {
		demoRuns.WithValues("error").Inc()
		return 0, err
	}
	if want := r.demo.expected(); total != want {
		demoRuns.WithValues("mismatch").Inc()
		return total, cerrors.Errorf("demo pipeline %q produced %d, expected %d", r.demo.name, total, want)
	}
	demoRuns.WithValues("ok").Inc()
	return total, nil
}

// MetricsAddr returns the address the metrics server listens on, nil until
// Ready is closed or if the endpoint is disabled.
func (r *Runtime) MetricsAddr() net.Addr { return r.metricsAddr }

// RemoteAddr returns the address accepting peer connections, nil until Ready
// is closed or if remote connections are disabled.
func (r *Runtime) RemoteAddr() net.Addr { return r.remoteAddr }

func (r *Runtime) serveHTTP(
	ctx context.Context,
	t *tomb.Tomb,
	srv *http.Server,
) (net.Addr, error) {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, cerrors.Errorf("failed to listen on address %q: %w", srv.Addr, err)
	}

	t.Go(func() error {
		err := srv.Serve(ln)
		if err != nil {
			if err == http.ErrServerClosed {
				// ignore expected close
				return nil
			}
			return cerrors.Errorf("http server listening on %q stopped with error: %w", ln.Addr(), err)
		}
		return nil
	})
	t.Go(func() error {
		<-t.Dying()
		// start server shutdown with a timeout, use fresh context
		ctx, cancel := context.WithTimeout(context.Background(), exitTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	r.logger.Info(ctx).Str(log.ServerAddressField, ln.Addr().String()).Msg("http server started")
	return ln.Addr(), nil
}
