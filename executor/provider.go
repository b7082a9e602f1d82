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

package executor

//go:generate mockgen -source provider.go -destination provider_mocks.go -package executor

import (
	"context"
	"errors"

	"github.com/Fantom-foundation/libfunc-replay/txcontext"
)

// Errors reported by a BlockSource.
var (
	// ErrSourceUnavailable is returned if the source could not be reached
	// or produced malformed data.
	ErrSourceUnavailable = errors.New("block source unavailable")
	// ErrBlockNotFound is returned for blocks the source does not know.
	ErrBlockNotFound = errors.New("block not found")
)

// Errors reported by an ExecutionBackend.
var (
	ErrExecution              = errors.New("execution failed")
	ErrTimeout                = errors.New("execution timed out")
	ErrUnsupportedTransaction = errors.New("unsupported transaction")
)

// BlockSource provides the blocks to be replayed.
type BlockSource interface {
	// FetchBlock returns the transactions of the block with the given number
	// together with the environment needed to execute them. Failures should
	// wrap ErrSourceUnavailable or ErrBlockNotFound. Implementations must be
	// safe for concurrent use.
	FetchBlock(ctx context.Context, number uint64) (*txcontext.Block, error)
}

// ExecutionBackend runs a single transaction and reports the libfuncs it
// invoked.
type ExecutionBackend interface {
	// Execute replays the transaction on top of the state before the block
	// described by the snapshot. Failures should wrap ErrExecution, ErrTimeout
	// or ErrUnsupportedTransaction. Implementations must be safe for
	// concurrent use and should stop once ctx is done.
	Execute(ctx context.Context, tx *txcontext.Transaction, snapshot *txcontext.Snapshot) (txcontext.Trace, error)
}

// ChainHead is implemented by sources that know the most recent block.
type ChainHead interface {
	LatestBlock(ctx context.Context) (uint64, error)
}
