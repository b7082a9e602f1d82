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
	"errors"
	"io"
	"os"

	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/tracedb"
	"github.com/Fantom-foundation/libfunc-replay/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
)

var InfoCommand = cli.Command{
	Action: RunInfo,
	Name:   "info",
	Usage:  "prints the chain and block range recorded in a trace database",
	Flags: []cli.Flag{
		&utils.TraceDbFlag,
		&logger.LogLevelFlag,
	},
}

func RunInfo(ctx *cli.Context) error {
	cfg, err := utils.NewConfig(ctx, utils.NoArgs)
	if err != nil {
		return err
	}
	if cfg.TraceDb == "" {
		return errors.New("info requires --db")
	}

	db, err := tracedb.Open(cfg.TraceDb, true)
	if err != nil {
		return err
	}
	defer db.Close()

	return printInfo(os.Stdout, db)
}

func printInfo(w io.Writer, db *tracedb.TraceDB) error {
	md, err := db.GetMetadata()
	if errors.Is(err, tracedb.ErrNotFound) {
		return errors.New("trace db holds no completed recording")
	}
	if err != nil {
		return err
	}
	stats, err := db.Stats()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendRows([]table.Row{
		{"Chain", md.ChainID},
		{"First block", md.First},
		{"Last block", md.Last},
		{"Blocks", stats.Blocks},
		{"Traces", stats.Traces},
		{"Failures", stats.Failures},
	})
	t.Render()
	return nil
}
