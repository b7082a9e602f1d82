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
	"time"

	"github.com/urfave/cli/v2"
)

// Command line options shared by the replay and record commands.
var (
	RpcUrlFlag = cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "URL of the Starknet JSON-RPC endpoint providing blocks and classes",
		Aliases: []string{"rpc"},
	}
	TraceDbFlag = cli.PathFlag{
		Name:  "db",
		Usage: "path to a trace database; source of blocks and traces when replaying, target when recording",
	}
	VmImplementationFlag = cli.StringFlag{
		Name:  "vm-impl",
		Usage: "execution backend (\"external\" runs --vm-binary per transaction, \"recorded\" reads traces from --db)",
	}
	VmBinaryFlag = cli.PathFlag{
		Name:  "vm-binary",
		Usage: "path to the executable tracing a single transaction, used by the external backend",
	}
	WorkersFlag = cli.IntFlag{
		Name:  "workers",
		Usage: "number of transactions replayed concurrently; defaults to the number of CPUs",
	}
	SerialReplayFlag = cli.BoolFlag{
		Name:  "serial-replay",
		Usage: "replay transactions one at a time in chain order",
	}
	TxTimeoutFlag = cli.DurationFlag{
		Name:  "tx-timeout",
		Usage: "maximum time the backend may spend on a single transaction",
		Value: time.Minute,
	}
	ThresholdFlag = cli.Uint64Flag{
		Name:  "threshold",
		Usage: "share of all libfunc calls, in percent, covered by the filtered report",
		Value: 80,
	}
	HistogramOutFlag = cli.PathFlag{
		Name:  "histogram-out",
		Usage: "path of the HTML bar chart of the filtered report",
	}
	RequireHistogramFlag = cli.BoolFlag{
		Name:  "require-histogram",
		Usage: "fail the run if the histogram cannot be rendered",
	}
	TxtOutFlag = cli.PathFlag{
		Name:  "txt-out",
		Usage: "path of a CSV file receiving the full frequency table",
	}
	TraceOutFlag = cli.PathFlag{
		Name:  "trace-out",
		Usage: "path of a JSON-lines file receiving every replayed trace; gzip compressed if it ends with .gz",
	}
	ReportDbFlag = cli.PathFlag{
		Name:  "report-db",
		Usage: "path of a sqlite3 database collecting the full frequency table of every run, keyed by run id",
	}
	OverwriteFlag = cli.BoolFlag{
		Name:  "overwrite",
		Usage: "overwrite existing output files",
	}
	VerboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "list every replay failure in the final report",
	}
	CpuProfileFlag = cli.StringFlag{
		Name:  "cpu-profile",
		Usage: "enables CPU profiling",
	}
	MemoryProfileFlag = cli.StringFlag{
		Name:  "memory-profile",
		Usage: "enables memory allocation profiling",
	}
	DiagnosticServerFlag = cli.Int64Flag{
		Name:  "diagnostic-port",
		Usage: "enable hosting of a realtime diagnostic server (pprof and prometheus metrics) by providing a port",
		Value: 0,
	}
	NoHeartbeatLoggingFlag = cli.BoolFlag{
		Name:  "no-heartbeat-logging",
		Usage: "disables heartbeat logging",
	}
	ErrorLoggingFlag = cli.PathFlag{
		Name:  "error-log",
		Usage: "defines path to error-log-file where every replay failure is recorded",
	}
	RpcRetriesFlag = cli.Uint64Flag{
		Name:  "rpc-retries",
		Usage: "number of retries of a failing RPC request",
		Value: 3,
	}
	ClassCacheFlag = cli.IntFlag{
		Name:  "class-cache",
		Usage: "number of contract class kinds cached by the RPC source",
		Value: 8192,
	}
)
