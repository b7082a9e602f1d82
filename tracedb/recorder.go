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
	"sync"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/executor/extension"
)

// MakeRecorder creates an extension storing the outcome of every replayed
// transaction in the trace database. Blocks are stored by a RecordingSource.
func MakeRecorder(db *TraceDB) executor.Extension {
	return &recorder{db: db}
}

type recorder struct {
	extension.NilExtension
	db    *TraceDB
	first uint64

	mu      sync.Mutex
	chainID string
}

func (r *recorder) PreRun(state executor.State, _ *executor.Context) error {
	r.first = state.Block
	return nil
}

func (r *recorder) observeChain(ctx *executor.Context) {
	if ctx == nil || ctx.Snapshot == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chainID == "" {
		r.chainID = ctx.Snapshot.ChainID
	}
}

func (r *recorder) PostBlock(_ executor.State, ctx *executor.Context) error {
	r.observeChain(ctx)
	return nil
}

func (r *recorder) PostTransaction(state executor.State, ctx *executor.Context) error {
	r.observeChain(ctx)
	if state.Failure != nil {
		return r.db.PutFailure(state.Block, state.Transaction, state.Failure.Kind, state.Failure.Err)
	}
	return r.db.PutTrace(state.Block, state.Transaction, state.Trace)
}

// PostRun records the processed range. Interrupted runs record nothing as
// their range is incomplete.
func (r *recorder) PostRun(state executor.State, _ *executor.Context, err error) error {
	if err != nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.ExtendMetadata(r.chainID, r.first, state.Block)
}
