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

//go:generate mockgen -source executor.go -destination executor_mocks.go -package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/profile/libfunc"
	"github.com/Fantom-foundation/libfunc-replay/txcontext"
	"github.com/Fantom-foundation/libfunc-replay/utils"
	"golang.org/x/sync/errgroup"
)

// ----------------------------------------------------------------------------
//                             Interfaces
// ----------------------------------------------------------------------------

// Executor replays the transactions of a block range on an execution backend
// and counts the libfuncs they invoke. It implements the decorator pattern,
// allowing extensions to monitor the execution at various hook-in points.
//
// When running sequentially, the general execution is structured as follows:
//
//	PreRun()
//	for each block {
//	   PreBlock()
//	   BlockSource.FetchBlock(block)
//	   for each eligible transaction {
//	       PreTransaction()
//	       ExecutionBackend.Execute(transaction)
//	       PostTransaction()
//	   }
//	   PostBlock()
//	}
//	PostRun()
//
// When running with multiple workers, blocks are fetched concurrently and
// their transactions are executed by a pool of workers in no particular
// order. Block events are still delivered, PreBlock before the fetch and
// PostBlock once the last transaction of the block finished, but blocks
// overlap and events may be delivered concurrently.
//
// Failing fetches and executions are recorded as failures and never stop
// the run. Errors reported by extensions abort it.
type Executor interface {
	// Run replays all eligible transactions of the blocks in the given range
	// and returns the collected libfunc frequencies together with all
	// failures. PreXXX events are delivered to the extensions in the given
	// order, while PostXXX events are delivered in reverse order.
	// If ctx is cancelled, blocks not yet fetched are skipped, the partial
	// result is returned and the error reports the cancellation.
	Run(ctx context.Context, params Params, backend ExecutionBackend, extensions []Extension) (*Result, error)
}

// NewExecutor creates a new executor fetching blocks from the given source.
func NewExecutor(source BlockSource, logLevel string) Executor {
	return newExecutor(source, logger.NewLogger(logLevel, "Executor"))
}

func newExecutor(source BlockSource, log logger.Logger) *executor {
	return &executor{source: source, log: log}
}

// Params summarizes input parameters for a run of the executor.
type Params struct {
	// Range is the range of blocks to be replayed.
	Range BlockRange
	// NumWorkers is the number of transactions executed concurrently, which
	// is also the number of blocks fetched concurrently. Any number <= 1
	// runs the replay sequentially in chain order.
	NumWorkers int
	// TransactionTimeout limits the execution time of a single transaction.
	// Zero or less disables the limit.
	TransactionTimeout time.Duration
}

// Extension is an interface for modular annotations to the execution of
// a range of blocks. Since blocks may be processed in parallel, callbacks
// other than PreRun and PostRun are required to be thread safe.
type Extension interface {
	// PreRun is called before the begin of the execution of a block range,
	// with the state listing the first block of the range.
	PreRun(State, *Context) error

	// PostRun is guaranteed to be called at the end of each execution, with
	// the error that ended it, if any.
	PostRun(State, *Context, error) error

	// PreBlock is called once before the block listed in the state is
	// fetched.
	PreBlock(State, *Context) error

	// PostBlock is called once all eligible transactions of the block have
	// been replayed. If the block could not be fetched, the state lists
	// the failure.
	PostBlock(State, *Context) error

	// PreTransaction is called before each eligible transaction with the
	// state listing the block, the transaction index and the transaction.
	PreTransaction(State, *Context) error

	// PostTransaction is called after each replayed transaction. The state
	// carries either the trace or the failure of the execution.
	PostTransaction(State, *Context) error
}

// State summarizes the current state of an execution and is passed to
// Extensions as an input for their actions.
type State struct {
	// Block is the current block number, valid for all call-backs.
	Block uint64

	// Transaction is the index of the current transaction within its block.
	// It is valid for transaction events and for PostBlock.
	Transaction int

	// Data is the current transaction, valid for transaction events.
	Data *txcontext.Transaction

	// Trace lists the libfuncs invoked by a successful transaction; only
	// valid for PostTransaction.
	Trace txcontext.Trace

	// Failure is set in PostTransaction and PostBlock if the transaction or
	// block could not be replayed.
	Failure *Failure
}

// Context holds the data shared by the extensions of a run.
type Context struct {
	// Snapshot is the environment of the current block, valid for
	// transaction events and for PostBlock of fetched blocks.
	Snapshot *txcontext.Snapshot

	// Frequencies is the table all traces of the run are merged into.
	Frequencies *libfunc.Table

	// Failures collects the failures of the run.
	Failures *FailureLog
}

// Result is the outcome of a run.
type Result struct {
	Frequencies *libfunc.Table
	Failures    []Failure
	// Blocks is the number of blocks fetch attempts.
	Blocks uint64
	// Transactions is the number of transactions sent to the backend.
	Transactions uint64
	// Skipped is the number of transactions which were not eligible.
	Skipped uint64
}

// ----------------------------------------------------------------------------
//                               Implementations
// ----------------------------------------------------------------------------

type executor struct {
	source BlockSource
	log    logger.Logger
}

type counters struct {
	blocks, transactions, skipped atomic.Uint64
}

func (e *executor) Run(ctx context.Context, params Params, backend ExecutionBackend, extensions []Extension) (res *Result, err error) {
	state := State{Block: params.Range.First()}
	runCtx := Context{
		Frequencies: libfunc.NewTable(),
		Failures:    new(FailureLog),
	}
	count := new(counters)

	defer func() {
		// Skip PostRun actions if a panic occurred. In such a case there is no guarantee
		// on the state of anything, and PostRun operations may deadlock or cause damage.
		if r := recover(); r != nil {
			panic(r) // just forward
		}
		err = errors.Join(
			err,
			signalPostRun(state, &runCtx, err, extensions),
		)
		res = &Result{
			Frequencies:  runCtx.Frequencies,
			Failures:     runCtx.Failures.List(),
			Blocks:       count.blocks.Load(),
			Transactions: count.transactions.Load(),
			Skipped:      count.skipped.Load(),
		}
	}()

	if err := signalPreRun(state, &runCtx, extensions); err != nil {
		return nil, err
	}

	abort, stop := utils.MakeEventFromContext(ctx)
	defer stop()

	if params.NumWorkers <= 1 {
		err = e.runSequential(ctx, params, backend, extensions, abort, &state, &runCtx, count)
	} else {
		err = e.runParallel(ctx, params, backend, extensions, abort, &runCtx, count)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.log.Warningf("Replay interrupted after %d blocks; %v", count.blocks.Load(), ctxErr)
		return nil, errors.Join(err, ctxErr)
	}
	if err == nil {
		state.Block = params.Range.Last()
	}
	return nil, err
}

func (e *executor) runSequential(ctx context.Context, params Params, backend ExecutionBackend, extensions []Extension, abort utils.Event, state *State, runCtx *Context, count *counters) error {
	var err error
	params.Range.forEach(func(number uint64) bool {
		if aborted(ctx, abort) {
			return false
		}
		state.Block = number
		state.Transaction = 0
		state.Failure = nil
		if err = signalPreBlock(*state, runCtx, extensions); err != nil {
			return false
		}

		block, failure := e.fetchBlock(ctx, number, runCtx, count)
		if block == nil {
			if failure == nil {
				return false // interrupted
			}
			state.Failure = failure
			err = signalPostBlock(*state, runCtx, extensions)
			return err == nil
		}

		blockCtx := *runCtx
		blockCtx.Snapshot = &block.Snapshot
		for i := range block.Transactions {
			tx := &block.Transactions[i]
			if !tx.Eligible() {
				count.skipped.Add(1)
				continue
			}
			if aborted(ctx, abort) {
				break
			}
			state.Transaction = tx.Index
			if err = e.runTransaction(ctx, *state, &blockCtx, tx, params.TransactionTimeout, backend, extensions, count); err != nil {
				return false
			}
		}
		err = signalPostBlock(*state, &blockCtx, extensions)
		return err == nil
	})
	return err
}

// blockTask tracks a fetched block whose transactions are spread over
// the workers; the worker finishing the last one delivers PostBlock.
type blockTask struct {
	state   State
	ctx     Context
	pending atomic.Int64
}

type txTask struct {
	block *blockTask
	tx    *txcontext.Transaction
}

func (e *executor) runParallel(ctx context.Context, params Params, backend ExecutionBackend, extensions []Extension, abort utils.Event, runCtx *Context, count *counters) error {
	numWorkers := params.NumWorkers

	var cachedPanic atomic.Value
	tasks := make(chan *txTask, 10*numWorkers)

	// Start one go-routine scheduling block fetches, at most numWorkers at a time.
	var fetchErr error
	fetchDone := make(chan struct{})
	go func() {
		defer close(fetchDone)
		defer close(tasks)
		var group errgroup.Group
		group.SetLimit(numWorkers)
		params.Range.forEach(func(number uint64) bool {
			if aborted(ctx, abort) {
				return false
			}
			group.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						cachedPanic.Store(r)
						abort.Signal()
					}
				}()
				if err = e.fetchAndForward(ctx, number, runCtx, extensions, abort, tasks, count); err != nil {
					abort.Signal()
				}
				return err
			})
			return true
		})
		fetchErr = group.Wait()
	}()

	// Start numWorkers go-routines executing transactions in parallel.
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	workerErrs := make([]error, numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(i int) {
			// channel panics back to the main thread.
			defer func() {
				if r := recover(); r != nil {
					cachedPanic.Store(r)
					abort.Signal() // stop fetchers and other workers too
				}
				wg.Done()
			}()
			for {
				if aborted(ctx, abort) {
					return
				}
				select {
				case task, ok := <-tasks:
					if !ok {
						return // reached an end without abort
					}
					if err := e.runTask(ctx, task, params.TransactionTimeout, backend, extensions, count); err != nil {
						workerErrs[i] = err
						abort.Signal()
						return
					}
				case <-abort.Wait():
					return
				}
			}
		}(i)
	}
	wg.Wait()
	<-fetchDone

	if r := cachedPanic.Load(); r != nil {
		panic(r)
	}

	return errors.Join(
		fetchErr,
		errors.Join(workerErrs...),
	)
}

// fetchAndForward fetches a block and hands its eligible transactions to the workers.
func (e *executor) fetchAndForward(ctx context.Context, number uint64, runCtx *Context, extensions []Extension, abort utils.Event, tasks chan<- *txTask, count *counters) error {
	task := &blockTask{state: State{Block: number}, ctx: *runCtx}
	if err := signalPreBlock(task.state, &task.ctx, extensions); err != nil {
		return err
	}

	block, failure := e.fetchBlock(ctx, number, runCtx, count)
	if block == nil {
		if failure == nil {
			return nil // interrupted
		}
		task.state.Failure = failure
		return signalPostBlock(task.state, &task.ctx, extensions)
	}

	task.ctx.Snapshot = &block.Snapshot
	eligible := block.Eligible()
	count.skipped.Add(uint64(len(block.Transactions) - len(eligible)))
	if len(eligible) == 0 {
		return signalPostBlock(task.state, &task.ctx, extensions)
	}

	task.pending.Store(int64(len(eligible)))
	for _, tx := range eligible {
		select {
		case tasks <- &txTask{block: task, tx: tx}:
		case <-abort.Wait():
			return nil
		}
	}
	return nil
}

func (e *executor) runTask(ctx context.Context, task *txTask, timeout time.Duration, backend ExecutionBackend, extensions []Extension, count *counters) error {
	state := task.block.state
	state.Transaction = task.tx.Index
	localCtx := task.block.ctx
	if err := e.runTransaction(ctx, state, &localCtx, task.tx, timeout, backend, extensions, count); err != nil {
		return err
	}
	if task.block.pending.Add(-1) == 0 {
		return signalPostBlock(state, &task.block.ctx, extensions)
	}
	return nil
}

// fetchBlock fetches a block and records a failure if that is not possible.
// Both results are nil if the fetch was interrupted by a cancellation.
func (e *executor) fetchBlock(ctx context.Context, number uint64, runCtx *Context, count *counters) (*txcontext.Block, *Failure) {
	count.blocks.Add(1)
	block, err := e.source.FetchBlock(ctx, number)
	if err == nil && block == nil {
		err = fmt.Errorf("%w; no data for block %d", ErrSourceUnavailable, number)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		failure := Failure{Block: number, Index: -1, Kind: classifyFetchError(err), Err: err}
		runCtx.Failures.Append(failure)
		e.log.Debugf("Cannot fetch block %d; %v", number, err)
		return nil, &failure
	}
	return block, nil
}

func (e *executor) runTransaction(ctx context.Context, state State, runCtx *Context, tx *txcontext.Transaction, timeout time.Duration, backend ExecutionBackend, extensions []Extension, count *counters) error {
	state.Data = tx
	if err := signalPreTransaction(state, runCtx, extensions); err != nil {
		return err
	}

	trace, err := execute(ctx, backend, tx, runCtx.Snapshot, timeout)
	if err != nil {
		failure := Failure{Block: state.Block, Transaction: tx.Hash, Index: tx.Index, Kind: classifyExecutionError(err), Err: err}
		runCtx.Failures.Append(failure)
		state.Failure = &failure
		e.log.Debugf("Cannot replay %v", failure)
	} else {
		runCtx.Frequencies.Merge(trace)
		state.Trace = trace
	}
	count.transactions.Add(1)

	return signalPostTransaction(state, runCtx, extensions)
}

// execute runs the transaction on the backend. A cancellation of ctx does
// not reach the backend, so the transaction in flight is finished. The
// caller stops waiting once the timeout expires, even if the backend does
// not honour its context.
func execute(ctx context.Context, backend ExecutionBackend, tx *txcontext.Transaction, snapshot *txcontext.Snapshot, timeout time.Duration) (txcontext.Trace, error) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return backend.Execute(ctx, tx, snapshot)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		trace    txcontext.Trace
		err      error
		panicked any
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{panicked: r}
			}
		}()
		trace, err := backend.Execute(execCtx, tx, snapshot)
		done <- outcome{trace: trace, err: err}
	}()

	select {
	case res := <-done:
		if res.panicked != nil {
			panic(res.panicked)
		}
		return res.trace, res.err
	case <-execCtx.Done():
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}

func aborted(ctx context.Context, abort utils.Event) bool {
	return ctx.Err() != nil || abort.HasHappened()
}

func signalPreRun(state State, ctx *Context, extensions []Extension) error {
	return forEachForward(extensions, func(extension Extension) error {
		return extension.PreRun(state, ctx)
	})
}

func signalPostRun(state State, ctx *Context, err error, extensions []Extension) error {
	return forEachBackward(extensions, func(extension Extension) error {
		return extension.PostRun(state, ctx, err)
	})
}

func signalPreBlock(state State, ctx *Context, extensions []Extension) error {
	return forEachForward(extensions, func(extension Extension) error {
		return extension.PreBlock(state, ctx)
	})
}

func signalPostBlock(state State, ctx *Context, extensions []Extension) error {
	return forEachBackward(extensions, func(extension Extension) error {
		return extension.PostBlock(state, ctx)
	})
}

func signalPreTransaction(state State, ctx *Context, extensions []Extension) error {
	return forEachForward(extensions, func(extension Extension) error {
		return extension.PreTransaction(state, ctx)
	})
}

func signalPostTransaction(state State, ctx *Context, extensions []Extension) error {
	return forEachBackward(extensions, func(extension Extension) error {
		return extension.PostTransaction(state, ctx)
	})
}

func forEachForward(extensions []Extension, op func(extension Extension) error) error {
	errs := []error{}
	for _, extension := range extensions {
		if err := op(extension); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func forEachBackward(extensions []Extension, op func(extension Extension) error) error {
	errs := []error{}
	for i := len(extensions) - 1; i >= 0; i-- {
		if err := op(extensions[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
