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


package tracker

import (
	"sync"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/executor/extension"
	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/utils"
)

const (
	ProgressLoggerDefaultReportFrequency = 15 * time.Second

	progressLoggerReportFormat       = "Elapsed time: %v; current block %d; %d blocks, %d transactions replayed, %d failures; interval rate ~%.2f Tx/s"
	finalSummaryProgressReportFormat = "Total elapsed time: %v; last block %d; %d blocks, %d transactions replayed, %d failures; total rate ~%.2f Tx/s"
)

// MakeProgressLogger creates progress logger. It logs progress about the replay depending on reportFrequency.
// If reportFrequency is 0, it is set to ProgressLoggerDefaultReportFrequency.
func MakeProgressLogger(cfg *utils.Config, reportFrequency time.Duration) executor.Extension {
	if cfg.NoHeartbeatLogging {
		return extension.NilExtension{}
	}

	if reportFrequency <= 0 {
		reportFrequency = ProgressLoggerDefaultReportFrequency
	}

	return makeProgressLogger(cfg, reportFrequency, logger.NewLogger(cfg.LogLevel, "Progress-Logger"))
}

func makeProgressLogger(cfg *utils.Config, reportFrequency time.Duration, logger logger.Logger) *progressLogger {
	return &progressLogger{
		log:             logger,
		inputCh:         make(chan progressEvent, cfg.Workers*10),
		wg:              new(sync.WaitGroup),
		reportFrequency: reportFrequency,
	}
}

// progressEvent is either a finished block or a replayed transaction.
type progressEvent struct {
	block       uint64
	transaction bool
	failed      bool
}

// progressLogger logs human-readable information about progress
// in "heartbeat" depending on reportFrequency.
type progressLogger struct {
	extension.NilExtension
	log             logger.Logger
	inputCh         chan progressEvent
	wg              *sync.WaitGroup
	reportFrequency time.Duration
}

// PreRun starts the report goroutine
func (l *progressLogger) PreRun(executor.State, *executor.Context) error {
	l.wg.Add(1)

	// pass the value for thread safety
	go l.startReport(l.reportFrequency)
	return nil
}

// PostRun gracefully closes the Extension and awaits the report goroutine correct closure.
func (l *progressLogger) PostRun(executor.State, *executor.Context, error) error {
	close(l.inputCh)
	l.wg.Wait()

	return nil
}

func (l *progressLogger) PostBlock(state executor.State, _ *executor.Context) error {
	l.inputCh <- progressEvent{block: state.Block, failed: state.Failure != nil}
	return nil
}

func (l *progressLogger) PostTransaction(state executor.State, _ *executor.Context) error {
	l.inputCh <- progressEvent{block: state.Block, transaction: true, failed: state.Failure != nil}
	return nil
}

// startReport runs in own goroutine. It accepts data from Executor from PostBlock and
// PostTransaction. It reports current progress everytime we hit the ticker.
func (l *progressLogger) startReport(reportFrequency time.Duration) {
	defer l.wg.Done()

	var (
		currentBlock               uint64
		totalBlocks, totalFailed   uint64
		totalTx, currentIntervalTx uint64
		intervalEvents             uint64
	)

	start := time.Now()
	lastReport := time.Now()
	ticker := time.NewTicker(reportFrequency)
	defer ticker.Stop()

	defer func() {
		elapsed := time.Since(start)
		txRate := float64(totalTx) / elapsed.Seconds()

		l.log.Noticef(finalSummaryProgressReportFormat, elapsed.Round(time.Second), currentBlock, totalBlocks, totalTx, totalFailed, txRate)
	}()

	for {
		select {
		case in, ok := <-l.inputCh:
			if !ok {
				return
			}

			if in.block > currentBlock {
				currentBlock = in.block
			}
			if in.failed {
				totalFailed++
			}
			if in.transaction {
				currentIntervalTx++
				totalTx++
			} else {
				totalBlocks++
			}
			intervalEvents++

		case now := <-ticker.C:
			// skip if no data are present
			if intervalEvents == 0 {
				continue
			}
			elapsed := now.Sub(start)
			txRate := float64(currentIntervalTx) / now.Sub(lastReport).Seconds()

			l.log.Infof(progressLoggerReportFormat, elapsed.Round(1*time.Second), currentBlock, totalBlocks, totalTx, totalFailed, txRate)

			lastReport = now

			currentIntervalTx = 0
			intervalEvents = 0
		}
	}
}
