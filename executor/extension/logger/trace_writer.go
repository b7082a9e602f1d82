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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/executor/extension"
	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/utils"
	"github.com/c2h5oh/datasize"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// TraceRecord is a single line of a trace file.
type TraceRecord struct {
	Block    uint64   `json:"block"`
	Index    int      `json:"index"`
	Hash     string   `json:"hash"`
	Libfuncs []string `json:"libfuncs"`
}

// MakeTraceWriter creates an extension writing the trace of every
// successfully replayed transaction into --trace-out as JSON lines. Files
// ending in .gz are gzip compressed, files ending in .bz2 bzip2 compressed.
func MakeTraceWriter(cfg *utils.Config) executor.Extension {
	if cfg.TraceOut == "" {
		return extension.NilExtension{}
	}
	return makeTraceWriter(cfg, logger.NewLogger(cfg.LogLevel, "Trace-Writer"))
}

func makeTraceWriter(cfg *utils.Config, log logger.Logger) *traceWriter {
	return &traceWriter{path: cfg.TraceOut, log: log}
}

type traceWriter struct {
	extension.NilExtension
	path string
	log  logger.Logger

	mu      sync.Mutex
	file    *os.File
	zip     io.WriteCloser
	buffer  *bufio.Writer
	encoder *json.Encoder
	written uint64
}

func (w *traceWriter) PreRun(executor.State, *executor.Context) error {
	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("cannot create trace file %v; %w", w.path, err)
	}
	w.file = file

	var out io.Writer = file
	if w.zip, err = compressor(w.path, file); err != nil {
		file.Close()
		return err
	}
	if w.zip != nil {
		out = w.zip
	}
	w.buffer = bufio.NewWriter(out)
	w.encoder = json.NewEncoder(w.buffer)
	w.log.Noticef("Writing transaction traces into %v", w.path)
	return nil
}

func (w *traceWriter) PostTransaction(state executor.State, _ *executor.Context) error {
	if state.Failure != nil || state.Data == nil {
		return nil
	}
	record := TraceRecord{
		Block:    state.Block,
		Index:    state.Data.Index,
		Hash:     state.Data.Hash,
		Libfuncs: state.Trace,
	}
	if record.Libfuncs == nil {
		record.Libfuncs = []string{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("cannot write trace of %v; %w", record.Hash, err)
	}
	w.written++
	return nil
}

func (w *traceWriter) PostRun(executor.State, *executor.Context, error) error {
	if w.file == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.buffer.Flush()
	if w.zip != nil {
		err = errors.Join(err, w.zip.Close())
	}
	err = errors.Join(err, w.file.Close())
	w.file = nil
	if err != nil {
		return fmt.Errorf("cannot finish trace file %v; %w", w.path, err)
	}
	size := "unknown size"
	if info, err := os.Stat(w.path); err == nil {
		size = datasize.ByteSize(info.Size()).HumanReadable()
	}
	w.log.Infof("%d traces written into %v (%v)", w.written, w.path, size)
	return nil
}

// ReadTraces decodes a trace file written by the trace writer.
func ReadTraces(path string) ([]TraceRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var in io.Reader = file
	switch compression(path) {
	case ".gz":
		zip, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer zip.Close()
		in = zip
	case ".bz2":
		zip, err := bzip2.NewReader(file, &bzip2.ReaderConfig{})
		if err != nil {
			return nil, err
		}
		defer zip.Close()
		in = zip
	}

	var res []TraceRecord
	decoder := json.NewDecoder(in)
	for {
		var record TraceRecord
		if err := decoder.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				return res, nil
			}
			return nil, err
		}
		res = append(res, record)
	}
}

// compression returns the extension selecting the codec of path, or "" for
// plain files.
func compression(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gz", ".bz2":
		return ext
	}
	return ""
}

// compressor wraps out into the codec of path; plain files yield nil.
func compressor(path string, out io.Writer) (io.WriteCloser, error) {
	switch compression(path) {
	case ".gz":
		return gzip.NewWriterLevel(out, gzip.BestSpeed)
	case ".bz2":
		return bzip2.NewWriter(out, &bzip2.WriterConfig{Level: bzip2.BestSpeed})
	}
	return nil, nil
}
