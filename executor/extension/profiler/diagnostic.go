// Copyright 2024 Fantom Foundation
// This file is part of Aida Testing Infrastructure for Sonic
//
// Aida is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Aida is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Aida. If not, see <http://www.gnu.org/licenses/>.


package profiler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/executor/extension"
	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "libfunc_replay"

// MakeDiagnosticServer creates an extension which runs a background HTTP
// server for real-time diagnosing of a replay. Besides the pprof endpoints it
// exports the replay progress as Prometheus metrics under /metrics.
func MakeDiagnosticServer(cfg *utils.Config) executor.Extension {
	return makeDiagnosticServer(cfg, logger.NewLogger(cfg.LogLevel, "Diagnostic-Server"))
}

func makeDiagnosticServer(cfg *utils.Config, log logger.Logger) executor.Extension {
	if cfg.DiagnosticServer < 1 || cfg.DiagnosticServer > math.MaxUint16 {
		return extension.NilExtension{}
	}
	return newDiagnosticServer(cfg.DiagnosticServer, log)
}

func newDiagnosticServer(port int64, log logger.Logger) *diagnosticServer {
	s := &diagnosticServer{
		port:     port,
		log:      log,
		registry: prometheus.NewRegistry(),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_total",
			Help:      "Number of blocks processed.",
		}),
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transactions_total",
			Help:      "Number of transactions replayed.",
		}),
		libfuncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "libfunc_calls_total",
			Help:      "Number of libfunc calls observed in replayed transactions.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failures_total",
			Help:      "Number of blocks and transactions which could not be replayed.",
		}, []string{"kind"}),
		lastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_finished_block",
			Help:      "Number of the most recently finished block.",
		}),
	}
	s.registry.MustRegister(s.blocks, s.transactions, s.libfuncs, s.failures, s.lastBlock)
	return s
}

type diagnosticServer struct {
	extension.NilExtension
	port int64
	log  logger.Logger

	registry     *prometheus.Registry
	blocks       prometheus.Counter
	transactions prometheus.Counter
	libfuncs     prometheus.Counter
	failures     *prometheus.CounterVec
	lastBlock    prometheus.Gauge

	server *http.Server
}

func (e *diagnosticServer) PreRun(executor.State, *executor.Context) error {
	addr := fmt.Sprintf("localhost:%d", e.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot start diagnostic server; %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	mux.Handle("/", http.DefaultServeMux)
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	e.log.Infof("Starting diagnostic server at port http://%s (see https://pkg.go.dev/net/http/pprof#hdr-Usage_examples for usage examples, metrics at /metrics)", addr)
	e.log.Warning("Block and mutex sampling rate is set to 100% for diagnostics, which may impact overall performance")
	go func() {
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Errorf("Diagnostic server stopped; %v", err)
		}
	}()
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)
	return nil
}

func (e *diagnosticServer) PostBlock(state executor.State, _ *executor.Context) error {
	e.blocks.Inc()
	e.lastBlock.Set(float64(state.Block))
	if state.Failure != nil {
		e.failures.WithLabelValues(state.Failure.Kind.String()).Inc()
	}
	return nil
}

func (e *diagnosticServer) PostTransaction(state executor.State, _ *executor.Context) error {
	e.transactions.Inc()
	if state.Failure != nil {
		e.failures.WithLabelValues(state.Failure.Kind.String()).Inc()
		return nil
	}
	e.libfuncs.Add(float64(len(state.Trace)))
	return nil
}

func (e *diagnosticServer) PostRun(executor.State, *executor.Context, error) error {
	if e.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.server.Shutdown(ctx)
}
