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

package utils

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/mock/gomock"
)

// prepareMockCliContext builds a context of the replay command with the
// given flag values and positional arguments.
func prepareMockCliContext(t *testing.T, values map[string]string, args ...string) *cli.Context {
	flagSet := flag.NewFlagSet("utils_config_test", flag.ContinueOnError)
	flagSet.String(logger.LogLevelFlag.Name, "critical", "")
	flagSet.String(RpcUrlFlag.Name, "", "")
	flagSet.String(TraceDbFlag.Name, "", "")
	flagSet.String(VmImplementationFlag.Name, "", "")
	flagSet.String(VmBinaryFlag.Name, "", "")
	flagSet.Int(WorkersFlag.Name, 0, "")
	flagSet.Bool(SerialReplayFlag.Name, false, "")
	flagSet.Duration(TxTimeoutFlag.Name, TxTimeoutFlag.Value, "")
	flagSet.Uint64(ThresholdFlag.Name, ThresholdFlag.Value, "")
	flagSet.String(HistogramOutFlag.Name, "", "")
	flagSet.String(TxtOutFlag.Name, "", "")
	flagSet.String(ReportDbFlag.Name, "", "")
	flagSet.Bool(OverwriteFlag.Name, false, "")

	flagArgs := []string{}
	for name, value := range values {
		flagArgs = append(flagArgs, "--"+name+"="+value)
	}
	if err := flagSet.Parse(append(flagArgs, args...)); err != nil {
		t.Fatalf("cannot parse flags: %v", err)
	}

	ctx := cli.NewContext(cli.NewApp(), flagSet, nil)
	ctx.Command = &cli.Command{
		Name: "replay",
		Flags: []cli.Flag{
			&logger.LogLevelFlag,
			&RpcUrlFlag,
			&TraceDbFlag,
			&VmImplementationFlag,
			&VmBinaryFlag,
			&WorkersFlag,
			&SerialReplayFlag,
			&TxTimeoutFlag,
			&ThresholdFlag,
			&HistogramOutFlag,
			&TxtOutFlag,
			&ReportDbFlag,
			&OverwriteFlag,
		},
	}
	return ctx
}

func TestUtilsConfig_NewConfigReadsFlagsAndRange(t *testing.T) {
	ctx := prepareMockCliContext(t, map[string]string{
		RpcUrlFlag.Name:    "http://localhost:9545",
		VmBinaryFlag.Name:  "/bin/true",
		TxTimeoutFlag.Name: "5s",
	}, "10", "20")

	cfg, err := NewConfig(ctx, BlockRangeArgs)
	if err != nil {
		t.Fatalf("Failed to create new config: %v", err)
	}
	if cfg.First != 10 || cfg.Last != 20 {
		t.Errorf("unexpected block range %d-%d", cfg.First, cfg.Last)
	}
	if cfg.RpcUrl != "http://localhost:9545" {
		t.Errorf("unexpected rpc url %v", cfg.RpcUrl)
	}
	if cfg.VmImpl != ExternalVm {
		t.Errorf("unexpected vm implementation %v", cfg.VmImpl)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("unexpected number of workers %d", cfg.Workers)
	}
	if cfg.TxTimeout != 5*time.Second {
		t.Errorf("unexpected timeout %v", cfg.TxTimeout)
	}
	if cfg.Threshold != 80 {
		t.Errorf("unexpected threshold %v", cfg.Threshold)
	}
	if cfg.CommandName != "replay" {
		t.Errorf("unexpected command name %v", cfg.CommandName)
	}
}

func TestUtilsConfig_SerialReplayUsesOneWorker(t *testing.T) {
	ctx := prepareMockCliContext(t, map[string]string{
		TraceDbFlag.Name:      t.TempDir(),
		SerialReplayFlag.Name: "true",
		WorkersFlag.Name:      "16",
	}, "1", "2")

	cfg, err := NewConfig(ctx, BlockRangeArgs)
	if err != nil {
		t.Fatalf("Failed to create new config: %v", err)
	}
	if cfg.Workers != 1 {
		t.Errorf("serial replay should use a single worker, got %d", cfg.Workers)
	}
	if cfg.VmImpl != RecordedVm {
		t.Errorf("a trace db without rpc url should select the recorded vm, got %v", cfg.VmImpl)
	}
}

func TestUtilsConfig_InvalidConfigurationsAreRejected(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "chart.html")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := map[string]struct {
		values map[string]string
		args   []string
		want   string
	}{
		"inverted range": {
			values: map[string]string{RpcUrlFlag.Name: "http://x", VmBinaryFlag.Name: "/bin/true"},
			args:   []string{"20", "10"},
			want:   "has larger number than last block",
		},
		"missing argument": {
			values: map[string]string{RpcUrlFlag.Name: "http://x", VmBinaryFlag.Name: "/bin/true"},
			args:   []string{"20"},
			want:   "requires 2 arguments",
		},
		"no source": {
			values: map[string]string{VmBinaryFlag.Name: "/bin/true"},
			args:   []string{"1", "2"},
			want:   "block source is required",
		},
		"no binary": {
			values: map[string]string{RpcUrlFlag.Name: "http://x"},
			args:   []string{"1", "2"},
			want:   "requires --vm-binary",
		},
		"recorded without db": {
			values: map[string]string{RpcUrlFlag.Name: "http://x", VmImplementationFlag.Name: RecordedVm},
			args:   []string{"1", "2"},
			want:   "requires --db",
		},
		"unknown vm": {
			values: map[string]string{RpcUrlFlag.Name: "http://x", VmImplementationFlag.Name: "magic"},
			args:   []string{"1", "2"},
			want:   "unknown VM implementation",
		},
		"threshold out of range": {
			values: map[string]string{RpcUrlFlag.Name: "http://x", VmBinaryFlag.Name: "/bin/true", ThresholdFlag.Name: "150"},
			args:   []string{"1", "2"},
			want:   "out of range",
		},
		"existing output": {
			values: map[string]string{RpcUrlFlag.Name: "http://x", VmBinaryFlag.Name: "/bin/true", HistogramOutFlag.Name: existing},
			args:   []string{"1", "2"},
			want:   "already exists",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := prepareMockCliContext(t, test.values, test.args...)
			_, err := NewConfig(ctx, BlockRangeArgs)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("unexpected error, wanted %q in %q", test.want, err.Error())
			}
		})
	}
}

func TestUtilsConfig_OverwriteAllowsExistingOutputs(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "report.csv")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := prepareMockCliContext(t, map[string]string{
		RpcUrlFlag.Name:    "http://x",
		VmBinaryFlag.Name:  "/bin/true",
		TxtOutFlag.Name:    existing,
		OverwriteFlag.Name: "true",
	}, "1", "2")

	if _, err := NewConfig(ctx, BlockRangeArgs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUtilsConfig_ExistingReportDbIsExtended(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "report.db")
	if err := os.WriteFile(existing, nil, 0644); err != nil {
		t.Fatal(err)
	}
	ctx := prepareMockCliContext(t, map[string]string{
		RpcUrlFlag.Name:   "http://x",
		VmBinaryFlag.Name: "/bin/true",
		ReportDbFlag.Name: existing,
	}, "1", "2")

	cfg, err := NewConfig(ctx, BlockRangeArgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReportDb != existing {
		t.Errorf("unexpected report db %v", cfg.ReportDb)
	}
}

func TestUtilsConfig_SetBlockRange(t *testing.T) {
	first, last, err := SetBlockRange("0", "40000000")
	if err != nil {
		t.Fatalf("Failed to set block range (0-40000000): %v", err)
	}
	if first != 0 || last != 40_000_000 {
		t.Fatalf("unexpected range %d-%d", first, last)
	}

	first, last, err = SetBlockRange("5", "LATEST")
	if err != nil {
		t.Fatalf("Failed to set block range (5-latest): %v", err)
	}
	if first != 5 || last != LatestBlock {
		t.Fatalf("unexpected range %d-%d", first, last)
	}

	if _, _, err = SetBlockRange("7", "7"); err != nil {
		t.Fatalf("single block range should be valid: %v", err)
	}
	if _, _, err = SetBlockRange("latest", "7"); err == nil {
		t.Fatalf("first block must be numeric")
	}
	if _, _, err = SetBlockRange("8", "7"); err == nil {
		t.Fatalf("inverted range must be rejected")
	}
}

func TestUtilsConfig_ClampLastBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)

	cfg := &Config{First: 10, Last: LatestBlock}
	if err := cfg.ClampLastBlock(100, log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Last != 100 {
		t.Errorf("latest should resolve to head, got %d", cfg.Last)
	}

	log.EXPECT().Warningf(gomock.Any(), uint64(200), uint64(100))
	cfg = &Config{First: 10, Last: 200}
	if err := cfg.ClampLastBlock(100, log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Last != 100 {
		t.Errorf("last block should be clamped, got %d", cfg.Last)
	}

	cfg = &Config{First: 101, Last: 200}
	if err := cfg.ClampLastBlock(100, log); err == nil {
		t.Errorf("range beyond head must be rejected")
	}
}
