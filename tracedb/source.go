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


package tracedb

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/txcontext"
)

// Source serves the blocks of a trace database.
type Source struct {
	db *TraceDB
}

func NewSource(db *TraceDB) *Source {
	return &Source{db: db}
}

func (s *Source) FetchBlock(ctx context.Context, number uint64) (*txcontext.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	block, err := s.db.GetBlock(number)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w; block %d is not recorded", executor.ErrBlockNotFound, number)
	}
	if err != nil {
		return nil, fmt.Errorf("%w; %v", executor.ErrSourceUnavailable, err)
	}
	return block, nil
}

// LatestBlock returns the last block of the recorded range.
func (s *Source) LatestBlock(context.Context) (uint64, error) {
	md, err := s.db.GetMetadata()
	if err != nil {
		return 0, fmt.Errorf("%w; cannot read metadata; %v", executor.ErrSourceUnavailable, err)
	}
	return md.Last, nil
}

// RecordingSource stores every block fetched from the underlying source.
type RecordingSource struct {
	source executor.BlockSource
	db     *TraceDB
}

func NewRecordingSource(source executor.BlockSource, db *TraceDB) *RecordingSource {
	return &RecordingSource{source: source, db: db}
}

func (s *RecordingSource) FetchBlock(ctx context.Context, number uint64) (*txcontext.Block, error) {
	block, err := s.source.FetchBlock(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := s.db.PutBlock(block); err != nil {
		return nil, fmt.Errorf("%w; cannot record block %d; %v", executor.ErrSourceUnavailable, number, err)
	}
	return block, nil
}

// Backend reports the traces recorded for transactions instead of
// executing them.
type Backend struct {
	db *TraceDB
}

func NewBackend(db *TraceDB) *Backend {
	return &Backend{db: db}
}

func (b *Backend) Execute(ctx context.Context, tx *txcontext.Transaction, snapshot *txcontext.Snapshot) (txcontext.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trace, err := b.db.GetTrace(snapshot.Number, tx.Index)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w; no trace recorded for %v", executor.ErrExecution, tx.Hash)
	}
	return trace, err
}
