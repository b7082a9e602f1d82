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
	"os"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/tracedb"
	"github.com/Fantom-foundation/libfunc-replay/utils"
	"github.com/urfave/cli/v2"
)

var RecordCommand = cli.Command{
	Action:    RunRecord,
	Name:      "record",
	Usage:     "replays a block range from a node and records blocks and traces into a trace database",
	ArgsUsage: "<blockNumFirst> <blockNumLast>",
	Flags: []cli.Flag{
		&utils.RpcUrlFlag,
		&utils.RpcRetriesFlag,
		&utils.ClassCacheFlag,
		&utils.TraceDbFlag,
		&utils.VmBinaryFlag,
		&utils.WorkersFlag,
		&utils.SerialReplayFlag,
		&utils.TxTimeoutFlag,
		&utils.ThresholdFlag,
		&utils.TxtOutFlag,
		&utils.OverwriteFlag,
		&utils.VerboseFlag,
		&logger.LogLevelFlag,
		&utils.NoHeartbeatLoggingFlag,
		&utils.ErrorLoggingFlag,
	},
	Description: `
The record command replays the given range like the replay command using the
external VM and stores every fetched block together with the trace or failure
of each replayed transaction into the trace database given by --db. The
database can then be replayed offline with "replay --db <path> --vm-impl recorded".`,
}

// RunRecord replays a block range and records it into a trace database.
func RunRecord(ctx *cli.Context) error {
	cfg, err := utils.NewConfig(ctx, utils.BlockRangeArgs)
	if err != nil {
		return err
	}
	switch {
	case cfg.RpcUrl == "":
		return errors.New("recording requires --rpc-url")
	case cfg.TraceDb == "":
		return errors.New("recording requires --db")
	case cfg.VmBinary == "":
		return errors.New("recording requires --vm-binary")
	}
	cfg.VmImpl = utils.ExternalVm

	db, err := tracedb.Open(cfg.TraceDb, false)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := openSource(ctx.Context, cfg, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	backend, err := openBackend(cfg, nil)
	if err != nil {
		return err
	}

	return record(ctx.Context, cfg, client, backend, db)
}

// record wires the recording source and the recorder around run.
func record(ctx context.Context, cfg *utils.Config, source executor.BlockSource, backend executor.ExecutionBackend, db *tracedb.TraceDB) error {
	var recording executor.BlockSource = tracedb.NewRecordingSource(source, db)
	if head, ok := source.(executor.ChainHead); ok {
		recording = headedSource{recording, head}
	}
	return run(ctx, cfg, recording, backend, os.Stdout, []executor.Extension{tracedb.MakeRecorder(db)})
}

// headedSource keeps the chain head of a wrapped source visible.
type headedSource struct {
	executor.BlockSource
	executor.ChainHead
}
