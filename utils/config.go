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
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/urfave/cli/v2"
)

type ArgumentMode int

// An enums of argument modes used by the commands of the tool
const (
	BlockRangeArgs ArgumentMode = iota // requires 2 arguments: first block and last block
	NoArgs                             // requires no arguments
)

// Execution backends
const (
	ExternalVm = "external"
	RecordedVm = "recorded"
)

// LatestBlock is the block number standing for the head of the chain; it is
// resolved against the block source before the replay starts.
const LatestBlock = math.MaxUint64

const (
	defaultTxTimeout = time.Minute
	defaultThreshold = 80
)

// Config summarizes the configuration of a run.
type Config struct {
	AppName     string
	CommandName string

	First uint64 // first block of the replayed range (inclusive)
	Last  uint64 // last block of the replayed range (inclusive)

	ClassCache         int           // number of cached class kinds in the rpc source
	CPUProfile         string        // pprof cpu profile output file name
	DiagnosticServer   int64         // if not zero, the port used for hosting a HTTP server for performance diagnostics
	ErrorLogging       string        // if defined, every replay failure is written into this file
	HistogramOut       string        // html bar chart of the filtered report
	LogLevel           string        // level of the logging of the app action
	MemoryProfile      string        // capture the memory heap profile into the file
	NoHeartbeatLogging bool          // disables heartbeat logging
	Overwrite          bool          // allow replacing existing output files
	ReportDb           string        // sqlite3 database collecting the full report of every run
	RequireHistogram   bool          // a failed rendering of the histogram fails the run
	RpcRetries         uint64        // number of retries of a failed rpc request
	RpcUrl             string        // url of the json-rpc endpoint
	SerialReplay       bool          // replay transactions one by one in chain order
	Threshold          uint64        // share of calls covered by the filtered report in percent
	TraceDb            string        // path of the trace database
	TraceOut           string        // json-lines file receiving every trace
	TxTimeout          time.Duration // time limit of a single transaction execution
	TxtOut             string        // csv file receiving the full report
	Verbose            bool          // list every failure in the final report
	VmBinary           string        // executable tracing a transaction for the external backend
	VmImpl             string        // execution backend
	Workers            int           // number of worker threads
}

type configContext struct {
	cfg *Config       // run configuration
	log logger.Logger // logger for printing logs in config functions
	ctx *cli.Context  // command line context for accessing flags and command line arguments
}

func NewConfigContext(cfg *Config, ctx *cli.Context) *configContext {
	return &configContext{
		log: logger.NewLogger(cfg.LogLevel, "Config"),
		cfg: cfg,
		ctx: ctx,
	}
}

// NewConfig creates and initializes Config with commandline arguments.
func NewConfig(ctx *cli.Context, mode ArgumentMode) (*Config, error) {
	// create config with user flag values, if not set default values are used
	cfg, _, err := createConfigFromFlags(ctx)
	if err != nil {
		return nil, err
	}

	cc := NewConfigContext(cfg, ctx)

	// set numbers of first block and last block
	err = cc.updateConfigBlockRange(ctx.Args().Slice(), mode)
	if err != nil {
		return nil, fmt.Errorf("unable to parse cli arguments; %w", err)
	}

	err = cc.adjustMissingConfigValues()
	if err != nil {
		return nil, fmt.Errorf("cannot adjust missing config values; %w", err)
	}

	if err = cc.checkOutputs(); err != nil {
		return nil, err
	}

	cc.reportNewConfig()

	return cfg, nil
}

// SetBlockRange checks the validity of a block range and return the first and last block as numbers.
// The last block may be given as "latest" which yields LatestBlock.
func SetBlockRange(firstArg string, lastArg string) (uint64, uint64, error) {
	first, err := strconv.ParseUint(firstArg, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid first block %q; %w", firstArg, err)
	}

	var last uint64
	if strings.EqualFold(lastArg, "latest") {
		last = LatestBlock
	} else if last, err = strconv.ParseUint(lastArg, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid last block %q; %w", lastArg, err)
	}

	if first > last {
		return 0, 0, fmt.Errorf("first block %v has larger number than last block %v", first, last)
	}

	return first, last, nil
}

// ClampLastBlock limits the configured range to the head of the chain.
// It fails if the range starts beyond the head.
func (cfg *Config) ClampLastBlock(head uint64, log logger.Logger) error {
	if cfg.First > head {
		return fmt.Errorf("first block %v is beyond the latest block %v", cfg.First, head)
	}
	if cfg.Last > head {
		if cfg.Last != LatestBlock {
			log.Warningf("Last block %v is not available yet; replaying up to latest block %v", cfg.Last, head)
		}
		cfg.Last = head
	}
	return nil
}

// updateConfigBlockRange parse the command line arguments according to the mode in which selected tool runs
// and store them into the config
func (cc *configContext) updateConfigBlockRange(args []string, mode ArgumentMode) error {
	switch mode {
	case BlockRangeArgs:
		if len(args) < 2 {
			return errors.New("command requires 2 arguments")
		}
		first, last, err := SetBlockRange(args[0], args[1])
		if err != nil {
			return err
		}
		cc.cfg.First = first
		cc.cfg.Last = last
	case NoArgs:
	default:
		return errors.New("unknown mode; unable to process commandline arguments")
	}
	return nil
}

// adjustMissingConfigValues fill the missing values in the config
func (cc *configContext) adjustMissingConfigValues() error {
	cfg := cc.cfg
	log := cc.log

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.SerialReplay && cfg.Workers != 1 {
		cfg.Workers = 1
		log.Info("Serial replay requested; using a single worker")
	}

	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = defaultTxTimeout
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Threshold > 100 {
		return fmt.Errorf("threshold %d%% is out of range (1-100)", cfg.Threshold)
	}

	if cc.ctx == nil || cc.ctx.Command == nil || cc.ctx.Command.Name != "replay" {
		return nil
	}

	// pick the backend matching the data source if none was selected
	if cfg.VmImpl == "" {
		if cfg.RpcUrl == "" && cfg.TraceDb != "" {
			cfg.VmImpl = RecordedVm
		} else {
			cfg.VmImpl = ExternalVm
		}
		log.Infof("No VM implementation selected; using %v", cfg.VmImpl)
	}

	switch cfg.VmImpl {
	case ExternalVm:
		if cfg.RpcUrl == "" && cfg.TraceDb == "" {
			return errors.New("a block source is required; set --rpc-url or --db")
		}
		if cfg.VmBinary == "" {
			return errors.New("the external VM requires --vm-binary")
		}
	case RecordedVm:
		if cfg.TraceDb == "" {
			return errors.New("the recorded VM requires --db")
		}
	default:
		return fmt.Errorf("unknown VM implementation %q", cfg.VmImpl)
	}
	return nil
}

// checkOutputs refuses to replace existing output files unless overwrite is enabled.
// The report database is exempt as it collects the reports of many runs.
func (cc *configContext) checkOutputs() error {
	if cc.cfg.Overwrite {
		return nil
	}
	for _, path := range []string{cc.cfg.HistogramOut, cc.cfg.TxtOut, cc.cfg.TraceOut} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("output file %v already exists; use --%v to replace it", path, OverwriteFlag.Name)
		}
	}
	return nil
}

// reportNewConfig logs out the state of config in current run
func (cc *configContext) reportNewConfig() {
	cfg := cc.cfg
	log := cc.log

	log.Noticef("Run config:")
	if cfg.Last == LatestBlock {
		log.Infof("Block range: %v to latest", cfg.First)
	} else {
		log.Infof("Block range: %v to %v", cfg.First, cfg.Last)
	}
	if cfg.RpcUrl != "" {
		log.Infof("RPC endpoint: %v", cfg.RpcUrl)
	}
	if cfg.TraceDb != "" {
		log.Infof("Trace DB: %v", cfg.TraceDb)
	}
	if cfg.VmImpl != "" {
		log.Noticef("Used VM implementation: %v", cfg.VmImpl)
	}
	log.Infof("Workers: %v; transaction timeout: %v", cfg.Workers, cfg.TxTimeout)
	log.Infof("Report threshold: %v%%", cfg.Threshold)
	if cfg.HistogramOut != "" {
		log.Infof("Histogram output: %v", cfg.HistogramOut)
	}
	if cfg.DiagnosticServer != 0 {
		log.Warning("Diagnostic server enabled, reducing Tx throughput")
	}
}
