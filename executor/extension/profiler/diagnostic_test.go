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
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/executor/extension"
	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/txcontext"
	"github.com/Fantom-foundation/libfunc-replay/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"
)

func freePort(t *testing.T) int64 {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("cannot find a free port: %v", err)
	}
	defer l.Close()
	return int64(l.Addr().(*net.TCPAddr).Port)
}

func get(t *testing.T, url string) string {
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Unable to connect to server: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status of %v: %v", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("cannot read response: %v", err)
	}
	return string(body)
}

func TestDiagnosticServer_ServesProfilesAndMetricsIfEnabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)

	cfg := &utils.Config{}
	cfg.DiagnosticServer = freePort(t)
	ext := makeDiagnosticServer(cfg, log)

	// Expect a server info message and a warning on the performance impact.
	log.EXPECT().Infof(gomock.Any(), gomock.Any())
	log.EXPECT().Warning(gomock.Any())

	if err := ext.PreRun(executor.State{}, nil); err != nil {
		t.Fatalf("failed to to run pre-run: %v", err)
	}
	defer ext.PostRun(executor.State{}, nil, nil)

	ext.PostTransaction(executor.State{Block: 4, Trace: txcontext.Trace{"a", "b", "a"}}, nil)
	ext.PostTransaction(executor.State{Block: 4, Failure: &executor.Failure{Kind: executor.Timeout}}, nil)
	ext.PostBlock(executor.State{Block: 4}, nil)

	base := fmt.Sprintf("http://localhost:%d", cfg.DiagnosticServer)
	get(t, base+"/debug/pprof/")

	metrics := get(t, base+"/metrics")
	for _, want := range []string{
		"libfunc_replay_blocks_total 1",
		"libfunc_replay_transactions_total 2",
		"libfunc_replay_libfunc_calls_total 3",
		`libfunc_replay_failures_total{kind="Timeout"} 1`,
		"libfunc_replay_last_finished_block 4",
	} {
		if !strings.Contains(metrics, want) {
			t.Errorf("metric %q missing in\n%v", want, metrics)
		}
	}
}

func TestDiagnosticServer_CountsFailuresPerKind(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newDiagnosticServer(1, logger.NewMockLogger(ctrl))

	s.PostBlock(executor.State{Block: 1, Failure: &executor.Failure{Kind: executor.BlockNotFound}}, nil)
	s.PostBlock(executor.State{Block: 2, Failure: &executor.Failure{Kind: executor.BlockNotFound}}, nil)
	s.PostTransaction(executor.State{Block: 3, Failure: &executor.Failure{Kind: executor.ExecutionError}}, nil)
	s.PostBlock(executor.State{Block: 3}, nil)

	if got := testutil.ToFloat64(s.failures.WithLabelValues("BlockNotFound")); got != 2 {
		t.Errorf("unexpected number of missing blocks %v", got)
	}
	if got := testutil.ToFloat64(s.failures.WithLabelValues("ExecutionError")); got != 1 {
		t.Errorf("unexpected number of execution errors %v", got)
	}
	if got := testutil.ToFloat64(s.blocks); got != 3 {
		t.Errorf("unexpected number of blocks %v", got)
	}
	if got := testutil.ToFloat64(s.libfuncs); got != 0 {
		t.Errorf("failed transactions must not contribute libfunc calls, got %v", got)
	}
}

func TestDiagnosticServer_NoServerIsHostedWhenDisabled(t *testing.T) {
	cfg := &utils.Config{}
	ext := MakeDiagnosticServer(cfg)

	if _, ok := ext.(extension.NilExtension); !ok {
		t.Errorf("profiler is enabled although not set in configuration")
	}
}
