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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	extlogger "github.com/Fantom-foundation/libfunc-replay/executor/extension/logger"
	"github.com/Fantom-foundation/libfunc-replay/executor/extension/profiler"
	"github.com/Fantom-foundation/libfunc-replay/executor/extension/tracker"
	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/profile/histogram"
	"github.com/Fantom-foundation/libfunc-replay/profile/report"
	"github.com/Fantom-foundation/libfunc-replay/register"
	"github.com/Fantom-foundation/libfunc-replay/rpc"
	"github.com/Fantom-foundation/libfunc-replay/tracedb"
	"github.com/Fantom-foundation/libfunc-replay/utils"
	"github.com/Fantom-foundation/libfunc-replay/vm"
	"github.com/urfave/cli/v2"
)

var ReplayCommand = cli.Command{
	Action:    RunReplay,
	Name:      "replay",
	Usage:     "replays transactions of a block range and reports the frequency of libfunc calls",
	ArgsUsage: "<blockNumFirst> <blockNumLast>",
	Flags: []cli.Flag{
		// source
		&utils.RpcUrlFlag,
		&utils.RpcRetriesFlag,
		&utils.ClassCacheFlag,
		&utils.TraceDbFlag,

		// execution
		&utils.VmImplementationFlag,
		&utils.VmBinaryFlag,
		&utils.WorkersFlag,
		&utils.SerialReplayFlag,
		&utils.TxTimeoutFlag,

		// report
		&utils.ThresholdFlag,
		&utils.HistogramOutFlag,
		&utils.RequireHistogramFlag,
		&utils.TxtOutFlag,
		&utils.TraceOutFlag,
		&utils.ReportDbFlag,
		&utils.OverwriteFlag,
		&utils.VerboseFlag,

		// diagnostics
		&logger.LogLevelFlag,
		&utils.CpuProfileFlag,
		&utils.MemoryProfileFlag,
		&utils.DiagnosticServerFlag,
		&utils.NoHeartbeatLoggingFlag,
		&utils.ErrorLoggingFlag,
	},
	Description: `
The replay command fetches every block of the given range, either from a
Starknet JSON-RPC node (--rpc-url) or from a trace database (--db), executes
all invoke transactions of Sierra contracts and counts the libfuncs they call.
The last block may be given as "latest".`,
}

// RunReplay replays a block range and prints the libfunc frequency report.
func RunReplay(ctx *cli.Context) error {
	cfg, err := utils.NewConfig(ctx, utils.BlockRangeArgs)
	if err != nil {
		return err
	}

	var db *tracedb.TraceDB
	if cfg.TraceDb != "" {
		db, err = tracedb.Open(cfg.TraceDb, true)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	source, err := openSource(ctx.Context, cfg, db)
	if err != nil {
		return err
	}
	defer source.Close()

	backend, err := openBackend(cfg, db)
	if err != nil {
		return err
	}

	return run(ctx.Context, cfg, source, backend, os.Stdout, nil)
}

// closableSource is a block source holding a connection.
type closableSource interface {
	executor.BlockSource
	Close()
}

type dbSource struct {
	*tracedb.Source
}

func (dbSource) Close() {}

// openSource prefers the RPC node over the trace database.
func openSource(ctx context.Context, cfg *utils.Config, db *tracedb.TraceDB) (closableSource, error) {
	if cfg.RpcUrl != "" {
		client, err := rpc.NewClient(ctx, cfg.RpcUrl, rpc.Options{
			Retries:        cfg.RpcRetries,
			ClassCacheSize: cfg.ClassCache,
			LogLevel:       cfg.LogLevel,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	if db == nil {
		return nil, errors.New("no block source; set --rpc-url or --db")
	}
	return dbSource{tracedb.NewSource(db)}, nil
}

func openBackend(cfg *utils.Config, db *tracedb.TraceDB) (executor.ExecutionBackend, error) {
	switch cfg.VmImpl {
	case utils.ExternalVm:
		external, err := vm.NewExternal(cfg.VmBinary, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		return external, nil
	case utils.RecordedVm:
		if db == nil {
			return nil, errors.New("the recorded VM requires --db")
		}
		return tracedb.NewBackend(db), nil
	default:
		return nil, fmt.Errorf("unknown VM implementation %q", cfg.VmImpl)
	}
}

// run executes the actual replay for RunReplay and RunRecord above.
// It is factored out to facilitate testing without the need to create
// a cli.Context or to connect to an actual node.
// It defines the full set of executor extensions and allows to define
// extra extensions for observing the execution, in particular during
// unit tests. The report is printed even if the replay was interrupted.
func run(
	ctx context.Context,
	cfg *utils.Config,
	source executor.BlockSource,
	backend executor.ExecutionBackend,
	console io.Writer,
	extra []executor.Extension,
) error {
	log := logger.NewLogger(cfg.LogLevel, "Replay")

	if head, ok := source.(executor.ChainHead); ok {
		latest, err := head.LatestBlock(ctx)
		if err != nil {
			return fmt.Errorf("cannot reach block source; %w", err)
		}
		if err := cfg.ClampLastBlock(latest, log); err != nil {
			return err
		}
	} else if cfg.Last == utils.LatestBlock {
		return errors.New("block source cannot resolve the latest block")
	}

	blocks, err := executor.NewBlockRange(cfg.First, cfg.Last)
	if err != nil {
		return err
	}

	extensions := []executor.Extension{
		profiler.MakeCpuProfiler(cfg),
		profiler.MakeDiagnosticServer(cfg),
		profiler.MakeMemoryProfiler(cfg),
		extlogger.MakeErrorLogger(cfg),
		extlogger.MakeTraceWriter(cfg),
		tracker.MakeProgressLogger(cfg, 0),
	}
	extensions = append(extensions, extra...)

	identity := register.MakeRunIdentity(time.Now().Unix(), cfg)
	var meta *register.RunMetadata
	if cfg.ReportDb != "" {
		meta, err = register.MakeRunMetadata(cfg.ReportDb, identity, register.FetchUnixInfo)
		if meta == nil {
			return err
		}
		if err != nil {
			log.Warningf("Run metadata is incomplete; %v", err)
		}
		defer meta.Close()
	}

	log.Noticef("Replaying blocks %v using %d workers", blocks, cfg.Workers)
	res, runErr := executor.NewExecutor(source, cfg.LogLevel).Run(
		ctx,
		executor.Params{
			Range:              blocks,
			NumWorkers:         cfg.Workers,
			TransactionTimeout: cfg.TxTimeout,
		},
		backend,
		extensions,
	)
	if res == nil || (runErr != nil && res.Blocks == 0) {
		return runErr
	}

	rep := report.New(blocks, cfg.Threshold, res)
	rep.RunId = identity.GetId()
	printers, err := rep.Printers(cfg, console)
	if err != nil {
		return errors.Join(runErr, err)
	}
	defer printers.Close()
	if err := printers.Print(); err != nil {
		return errors.Join(runErr, err)
	}
	if meta != nil {
		if err := meta.Print(); err != nil {
			return errors.Join(runErr, err)
		}
	}

	if cfg.HistogramOut != "" {
		err := histogram.Render(rep.Filtered, cfg.HistogramOut, histogram.Options{
			Title:     rep.Title(),
			Overwrite: cfg.Overwrite,
		})
		switch {
		case err == nil:
			log.Noticef("Histogram written into %v", cfg.HistogramOut)
		case cfg.RequireHistogram:
			return errors.Join(runErr, err)
		default:
			log.Warningf("Histogram was not rendered; %v", err)
		}
	}

	return runErr
}
