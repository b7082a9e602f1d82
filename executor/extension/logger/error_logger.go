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


package logger

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/executor/extension"
	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/utils"
)

// MakeErrorLogger creates an extension writing every replay failure into
// the file configured by --error-log. Failures never stop the replay, so
// the logger does not report them as errors.
func MakeErrorLogger(cfg *utils.Config) executor.Extension {
	if cfg.ErrorLogging == "" {
		return extension.NilExtension{}
	}
	return makeErrorLogger(cfg, logger.NewLogger(cfg.LogLevel, "Error-Logger"))
}

func makeErrorLogger(cfg *utils.Config, log logger.Logger) *errorLogger {
	return &errorLogger{
		cfg:   cfg,
		log:   log,
		input: make(chan executor.Failure, cfg.Workers*10),
		wg:    new(sync.WaitGroup),
	}
}

type errorLogger struct {
	extension.NilExtension
	cfg   *utils.Config
	log   logger.Logger
	input chan executor.Failure
	wg    *sync.WaitGroup
	file  *os.File
	count int
}

func (l *errorLogger) PreRun(executor.State, *executor.Context) error {
	l.log.Noticef("Creating log-file %v in which any replay failure will be recorded.", l.cfg.ErrorLogging)

	var err error
	l.file, err = os.Create(l.cfg.ErrorLogging)
	if err != nil {
		return fmt.Errorf("cannot create log file %v; %w", l.cfg.ErrorLogging, err)
	}

	l.wg.Add(1)
	go l.doLogging(bufio.NewWriter(l.file))
	return nil
}

func (l *errorLogger) PostBlock(state executor.State, _ *executor.Context) error {
	if state.Failure != nil {
		l.input <- *state.Failure
	}
	return nil
}

func (l *errorLogger) PostTransaction(state executor.State, _ *executor.Context) error {
	if state.Failure != nil {
		l.input <- *state.Failure
	}
	return nil
}

// PostRun closes the file and logging thread.
func (l *errorLogger) PostRun(executor.State, *executor.Context, error) error {
	if l.file == nil {
		return nil
	}
	close(l.input)
	l.wg.Wait()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("cannot close log-file; %w", err)
	}
	if l.count > 0 {
		l.log.Warningf("%d replay failures were written into %v", l.count, l.cfg.ErrorLogging)
	}
	return nil
}

func (l *errorLogger) doLogging(out *bufio.Writer) {
	defer l.wg.Done()
	defer func() {
		if err := out.Flush(); err != nil {
			l.log.Errorf("cannot write into log-file; %v", err)
		}
	}()

	for failure := range l.input {
		l.count++
		l.log.Debugf("New failure: %v", failure)
		if _, err := fmt.Fprintln(out, failure.String()); err != nil {
			l.log.Errorf("cannot write into log-file; %v", err)
		}
	}
}
