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

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/txcontext"
	"go.uber.org/mock/gomock"
)

// ----------------------------------------------------------------------------
//                                 Fixtures
// ----------------------------------------------------------------------------

// fakeSource serves generated blocks and counts fetches per block.
type fakeSource struct {
	mu      sync.Mutex
	txs     int
	missing map[uint64]error
	fetches map[uint64]int
}

func newFakeSource(txsPerBlock int) *fakeSource {
	return &fakeSource{txs: txsPerBlock, missing: map[uint64]error{}, fetches: map[uint64]int{}}
}

func (s *fakeSource) FetchBlock(_ context.Context, number uint64) (*txcontext.Block, error) {
	s.mu.Lock()
	s.fetches[number]++
	err := s.missing[number]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return makeBlock(number, s.txs), nil
}

func (s *fakeSource) totalFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.fetches {
		total += n
	}
	return total
}

func makeBlock(number uint64, txs int) *txcontext.Block {
	block := &txcontext.Block{Snapshot: txcontext.Snapshot{Number: number}}
	for i := 0; i < txs; i++ {
		block.Transactions = append(block.Transactions, txcontext.Transaction{
			Hash:  fmt.Sprintf("0x%x_%d", number, i),
			Index: i,
			Kind:  txcontext.InvokeTx,
			Class: txcontext.SierraClass,
		})
	}
	return block
}

// fakeBackend reports the same trace for every transaction unless a
// transaction specific behaviour is registered.
type fakeBackend struct {
	behaviour map[string]func(ctx context.Context) (txcontext.Trace, error)
}

var defaultTrace = txcontext.Trace{"store_temp", "felt252_add", "store_temp"}

func (b *fakeBackend) Execute(ctx context.Context, tx *txcontext.Transaction, _ *txcontext.Snapshot) (txcontext.Trace, error) {
	if f, found := b.behaviour[tx.Hash]; found {
		return f(ctx)
	}
	return defaultTrace, nil
}

func newTestExecutor(t *testing.T, source BlockSource) Executor {
	return newExecutor(source, logger.NewLogger("critical", "Test"))
}

func mustRange(t *testing.T, first, last uint64) BlockRange {
	r, err := NewBlockRange(first, last)
	if err != nil {
		t.Fatalf("invalid range: %v", err)
	}
	return r
}

// ----------------------------------------------------------------------------
//                                   Tests
// ----------------------------------------------------------------------------

func TestExecutor_ExtensionsGetSignaledAboutEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockBlockSource(ctrl)
	backend := NewMockExecutionBackend(ctrl)
	extension := NewMockExtension(ctrl)

	trace := txcontext.Trace{"a", "b"}
	gomock.InOrder(
		extension.EXPECT().PreRun(AtBlock(10), gomock.Any()),

		extension.EXPECT().PreBlock(AtBlock(10), gomock.Any()),
		source.EXPECT().FetchBlock(gomock.Any(), uint64(10)).Return(makeBlock(10, 2), nil),
		extension.EXPECT().PreTransaction(AtTransaction(10, 0), gomock.Any()),
		backend.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(trace, nil),
		extension.EXPECT().PostTransaction(AtTransaction(10, 0), gomock.Any()),
		extension.EXPECT().PreTransaction(AtTransaction(10, 1), gomock.Any()),
		backend.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(trace, nil),
		extension.EXPECT().PostTransaction(AtTransaction(10, 1), gomock.Any()),
		extension.EXPECT().PostBlock(AtTransaction(10, 1), gomock.Any()),

		extension.EXPECT().PreBlock(AtBlock(11), gomock.Any()),
		source.EXPECT().FetchBlock(gomock.Any(), uint64(11)).Return(makeBlock(11, 1), nil),
		extension.EXPECT().PreTransaction(AtTransaction(11, 0), gomock.Any()),
		backend.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(trace, nil),
		extension.EXPECT().PostTransaction(AtTransaction(11, 0), gomock.Any()),
		extension.EXPECT().PostBlock(AtTransaction(11, 0), gomock.Any()),

		extension.EXPECT().PostRun(AtBlock(11), gomock.Any(), nil),
	)

	executor := newTestExecutor(t, source)
	res, err := executor.Run(context.Background(), Params{Range: mustRange(t, 10, 11)}, backend, []Extension{extension})
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if got, want := res.Frequencies.Count("a"), uint64(3); got != want {
		t.Errorf("unexpected count, wanted %d, got %d", want, got)
	}
	if res.Blocks != 2 || res.Transactions != 3 {
		t.Errorf("unexpected counters: %d blocks, %d transactions", res.Blocks, res.Transactions)
	}
}

func TestExecutor_IneligibleTransactionsAreSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockBlockSource(ctrl)
	backend := NewMockExecutionBackend(ctrl)

	block := &txcontext.Block{
		Snapshot: txcontext.Snapshot{Number: 3},
		Transactions: []txcontext.Transaction{
			{Hash: "declare", Index: 0, Kind: txcontext.DeclareTx, Class: txcontext.SierraClass},
			{Hash: "legacy", Index: 1, Kind: txcontext.InvokeTx, Class: txcontext.LegacyClass},
			{Hash: "reverted", Index: 2, Kind: txcontext.InvokeTx, Class: txcontext.SierraClass, Reverted: true},
			{Hash: "deploy", Index: 3, Kind: txcontext.DeployAccountTx, Class: txcontext.SierraClass},
		},
	}
	source.EXPECT().FetchBlock(gomock.Any(), uint64(3)).Return(block, nil)
	backend.EXPECT().Execute(gomock.Any(), &block.Transactions[2], &block.Snapshot).Return(txcontext.Trace{"x"}, nil)

	for _, workers := range []int{1, 4} {
		if workers > 1 {
			source.EXPECT().FetchBlock(gomock.Any(), uint64(3)).Return(block, nil)
			backend.EXPECT().Execute(gomock.Any(), &block.Transactions[2], &block.Snapshot).Return(txcontext.Trace{"x"}, nil)
		}
		res, err := newTestExecutor(t, source).Run(context.Background(), Params{Range: mustRange(t, 3, 3), NumWorkers: workers}, backend, nil)
		if err != nil {
			t.Fatalf("execution failed: %v", err)
		}
		if res.Transactions != 1 || res.Skipped != 3 {
			t.Errorf("unexpected counters: %d replayed, %d skipped", res.Transactions, res.Skipped)
		}
		if len(res.Failures) != 0 {
			t.Errorf("skipped transactions must not be reported as failures: %v", res.Failures)
		}
	}
}

func TestExecutor_EveryBlockIsFetchedExactlyOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 2, 3, 8, 64} {
		for _, r := range [][2]uint64{{0, 0}, {5, 5}, {5, 15}, {100, 199}} {
			t.Run(fmt.Sprintf("workers=%d/range=%v", workers, r), func(t *testing.T) {
				source := newFakeSource(3)
				res, err := newTestExecutor(t, source).Run(context.Background(), Params{Range: mustRange(t, r[0], r[1]), NumWorkers: workers}, &fakeBackend{}, nil)
				if err != nil {
					t.Fatalf("execution failed: %v", err)
				}
				want := int(r[1] - r[0] + 1)
				if got := source.totalFetches(); got != want {
					t.Errorf("unexpected number of fetches, wanted %d, got %d", want, got)
				}
				for b := r[0]; b <= r[1]; b++ {
					if n := source.fetches[b]; n != 1 {
						t.Errorf("block %d fetched %d times", b, n)
					}
				}
				if got, want := res.Frequencies.Count("store_temp"), uint64(2*3*want); got != want {
					t.Errorf("unexpected count, wanted %d, got %d", want, got)
				}
				if res.Blocks != uint64(want) {
					t.Errorf("unexpected block counter %d", res.Blocks)
				}
			})
		}
	}
}

func TestExecutor_ResultIsIndependentOfWorkerCount(t *testing.T) {
	backend := &fakeBackend{behaviour: map[string]func(context.Context) (txcontext.Trace, error){}}
	for b := uint64(0); b < 20; b++ {
		for i := 0; i < 4; i++ {
			trace := txcontext.Trace{fmt.Sprintf("f%d", (b+uint64(i))%7), fmt.Sprintf("f%d", b%3)}
			backend.behaviour[fmt.Sprintf("0x%x_%d", b, i)] = func(context.Context) (txcontext.Trace, error) {
				return trace, nil
			}
		}
	}

	reference, err := newTestExecutor(t, newFakeSource(4)).Run(context.Background(), Params{Range: mustRange(t, 0, 19), NumWorkers: 1}, backend, nil)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	want := reference.Frequencies.Snapshot()
	for _, workers := range []int{2, 5, 16} {
		res, err := newTestExecutor(t, newFakeSource(4)).Run(context.Background(), Params{Range: mustRange(t, 0, 19), NumWorkers: workers}, backend, nil)
		if err != nil {
			t.Fatalf("execution failed: %v", err)
		}
		if !res.Frequencies.Snapshot().Equal(want) {
			t.Errorf("table of %d workers differs from sequential table", workers)
		}
	}
}

func TestExecutor_MissingBlockIsRecordedAndOthersAreProcessed(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			source := newFakeSource(2)
			source.missing[10] = fmt.Errorf("%w: 10", ErrBlockNotFound)

			res, err := newTestExecutor(t, source).Run(context.Background(), Params{Range: mustRange(t, 5, 15), NumWorkers: workers}, &fakeBackend{}, nil)
			if err != nil {
				t.Fatalf("execution failed: %v", err)
			}
			if len(res.Failures) != 1 {
				t.Fatalf("expected exactly one failure, got %v", res.Failures)
			}
			failure := res.Failures[0]
			if failure.Block != 10 || failure.Kind != BlockNotFound || failure.Transaction != "" {
				t.Errorf("unexpected failure %v", failure)
			}
			if got, want := res.Frequencies.Count("felt252_add"), uint64(10*2); got != want {
				t.Errorf("unexpected count, wanted %d, got %d", want, got)
			}
			if res.Transactions != 20 {
				t.Errorf("unexpected number of replayed transactions %d", res.Transactions)
			}
		})
	}
}

func TestExecutor_UnreachableSourceIsRecordedPerBlock(t *testing.T) {
	source := newFakeSource(1)
	source.missing[1] = fmt.Errorf("%w: connection refused", ErrSourceUnavailable)
	source.missing[2] = errors.New("garbage")

	res, err := newTestExecutor(t, source).Run(context.Background(), Params{Range: mustRange(t, 1, 3), NumWorkers: 1}, &fakeBackend{}, nil)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	counts := CountByKind(res.Failures)
	if counts[SourceUnavailable] != 2 {
		t.Errorf("unexpected failures %v", res.Failures)
	}
	if res.Transactions != 1 {
		t.Errorf("block 3 should have been replayed")
	}
}

func TestExecutor_BackendErrorsAreClassified(t *testing.T) {
	backend := &fakeBackend{behaviour: map[string]func(context.Context) (txcontext.Trace, error){
		"0x1_0": func(context.Context) (txcontext.Trace, error) { return nil, fmt.Errorf("%w: panic in vm", ErrExecution) },
		"0x1_1": func(context.Context) (txcontext.Trace, error) { return nil, fmt.Errorf("%w: v0 invoke", ErrUnsupportedTransaction) },
		"0x1_2": func(context.Context) (txcontext.Trace, error) { return nil, fmt.Errorf("%w: subprocess", ErrTimeout) },
		"0x1_3": func(context.Context) (txcontext.Trace, error) { return nil, errors.New("something else") },
	}}

	for _, workers := range []int{1, 3} {
		res, err := newTestExecutor(t, newFakeSource(5)).Run(context.Background(), Params{Range: mustRange(t, 1, 1), NumWorkers: workers}, backend, nil)
		if err != nil {
			t.Fatalf("execution failed: %v", err)
		}
		want := map[string]FailureKind{
			"0x1_0": ExecutionError,
			"0x1_1": UnsupportedTransaction,
			"0x1_2": Timeout,
			"0x1_3": ExecutionError,
		}
		if len(res.Failures) != len(want) {
			t.Fatalf("unexpected failures %v", res.Failures)
		}
		for _, f := range res.Failures {
			if want[f.Transaction] != f.Kind {
				t.Errorf("unexpected kind of %v, wanted %v", f, want[f.Transaction])
			}
		}
		if got := res.Frequencies.Count("felt252_add"); got != 1 {
			t.Errorf("trace of the successful transaction missing, count %d", got)
		}
	}
}

func TestExecutor_TimeoutDoesNotBlockOtherTransactions(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	backend := &fakeBackend{behaviour: map[string]func(context.Context) (txcontext.Trace, error){
		// ignores its context on purpose
		"0x2_1": func(context.Context) (txcontext.Trace, error) {
			<-release
			return txcontext.Trace{"never"}, nil
		},
	}}

	for _, workers := range []int{1, 4} {
		res, err := newTestExecutor(t, newFakeSource(3)).Run(context.Background(), Params{
			Range:              mustRange(t, 1, 3),
			NumWorkers:         workers,
			TransactionTimeout: 50 * time.Millisecond,
		}, backend, nil)
		if err != nil {
			t.Fatalf("execution failed: %v", err)
		}
		if len(res.Failures) != 1 || res.Failures[0].Kind != Timeout || res.Failures[0].Transaction != "0x2_1" {
			t.Fatalf("expected a single timeout, got %v", res.Failures)
		}
		if got, want := res.Frequencies.Count("felt252_add"), uint64(8); got != want {
			t.Errorf("unexpected count, wanted %d, got %d", want, got)
		}
		if res.Frequencies.Count("never") != 0 {
			t.Errorf("timed out trace must not be counted")
		}
	}
}

func TestExecutor_BackendHonouringDeadlineIsReportedAsTimeout(t *testing.T) {
	backend := &fakeBackend{behaviour: map[string]func(context.Context) (txcontext.Trace, error){
		"0x0_0": func(ctx context.Context) (txcontext.Trace, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	res, err := newTestExecutor(t, newFakeSource(1)).Run(context.Background(), Params{
		Range:              mustRange(t, 0, 0),
		TransactionTimeout: 10 * time.Millisecond,
	}, backend, nil)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Kind != Timeout {
		t.Fatalf("expected a timeout, got %v", res.Failures)
	}
}

func TestExecutor_FailingExtensionStopsExecutionButEndEventsAreDelivered(t *testing.T) {
	ctrl := gomock.NewController(t)
	extension := NewMockExtension(ctrl)

	stop := fmt.Errorf("stop!")
	gomock.InOrder(
		extension.EXPECT().PreRun(AtBlock(10), gomock.Any()),
		extension.EXPECT().PreBlock(AtBlock(10), gomock.Any()),
		extension.EXPECT().PreTransaction(AtTransaction(10, 0), gomock.Any()).Return(stop),
		extension.EXPECT().PostRun(AtBlock(10), gomock.Any(), WithError(stop)),
	)

	res, err := newTestExecutor(t, newFakeSource(2)).Run(context.Background(), Params{Range: mustRange(t, 10, 20)}, &fakeBackend{}, []Extension{extension})
	if !errors.Is(err, stop) {
		t.Errorf("execution did not produce expected error, wanted %v, got %v", stop, err)
	}
	if res == nil || res.Blocks != 1 {
		t.Errorf("unexpected partial result %v", res)
	}
}

func TestExecutor_FailingExtensionStopsParallelExecution(t *testing.T) {
	ctrl := gomock.NewController(t)
	extension := NewMockExtension(ctrl)

	stop := fmt.Errorf("stop!")
	extension.EXPECT().PreRun(gomock.Any(), gomock.Any())
	extension.EXPECT().PreBlock(gomock.Any(), gomock.Any()).AnyTimes()
	extension.EXPECT().PostBlock(gomock.Any(), gomock.Any()).AnyTimes()
	extension.EXPECT().PreTransaction(gomock.Any(), gomock.Any()).AnyTimes()
	extension.EXPECT().PostTransaction(gomock.Any(), gomock.Any()).Return(stop).MinTimes(1)
	extension.EXPECT().PostRun(gomock.Any(), gomock.Any(), WithError(stop))

	_, err := newTestExecutor(t, newFakeSource(2)).Run(context.Background(), Params{Range: mustRange(t, 0, 1000), NumWorkers: 4}, &fakeBackend{}, []Extension{extension})
	if !errors.Is(err, stop) {
		t.Errorf("execution did not produce expected error, wanted %v, got %v", stop, err)
	}
}

func TestExecutor_MissingBlockIsDeliveredToPostBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	extension := NewMockExtension(ctrl)

	source := newFakeSource(1)
	source.missing[2] = ErrBlockNotFound

	gomock.InOrder(
		extension.EXPECT().PreRun(AtBlock(1), gomock.Any()),
		extension.EXPECT().PreBlock(AtBlock(1), gomock.Any()),
		extension.EXPECT().PreTransaction(AtTransaction(1, 0), gomock.Any()),
		extension.EXPECT().PostTransaction(WithoutFailure(), gomock.Any()),
		extension.EXPECT().PostBlock(AtBlock(1), gomock.Any()),
		extension.EXPECT().PreBlock(AtBlock(2), gomock.Any()),
		extension.EXPECT().PostBlock(WithFailure(BlockNotFound), gomock.Any()),
		extension.EXPECT().PostRun(AtBlock(2), gomock.Any(), nil),
	)

	if _, err := newTestExecutor(t, source).Run(context.Background(), Params{Range: mustRange(t, 1, 2)}, &fakeBackend{}, []Extension{extension}); err != nil {
		t.Fatalf("execution failed: %v", err)
	}
}

// countingExtension counts block and transaction events; it is thread safe.
type countingExtension struct {
	mu                sync.Mutex
	preBlocks         map[uint64]int
	postBlocks        map[uint64]int
	postTransactions  map[uint64]int
	txsAtPostBlock    map[uint64]int
	failedTxs         int
	postRunSeenFailed int
}

func newCountingExtension() *countingExtension {
	return &countingExtension{
		preBlocks:        map[uint64]int{},
		postBlocks:       map[uint64]int{},
		postTransactions: map[uint64]int{},
		txsAtPostBlock:   map[uint64]int{},
	}
}

func (c *countingExtension) PreRun(State, *Context) error { return nil }

func (c *countingExtension) PostRun(_ State, ctx *Context, _ error) error {
	c.postRunSeenFailed = ctx.Failures.Len()
	return nil
}

func (c *countingExtension) PreBlock(s State, _ *Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preBlocks[s.Block]++
	return nil
}

func (c *countingExtension) PostBlock(s State, _ *Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postBlocks[s.Block]++
	c.txsAtPostBlock[s.Block] = c.postTransactions[s.Block]
	return nil
}

func (c *countingExtension) PreTransaction(State, *Context) error { return nil }

func (c *countingExtension) PostTransaction(s State, _ *Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postTransactions[s.Block]++
	if s.Failure != nil {
		c.failedTxs++
	}
	return nil
}

func TestExecutor_ParallelBlockEventsAreDeliveredOncePerBlock(t *testing.T) {
	source := newFakeSource(5)
	source.missing[7] = ErrBlockNotFound
	ext := newCountingExtension()

	_, err := newTestExecutor(t, source).Run(context.Background(), Params{Range: mustRange(t, 0, 49), NumWorkers: 8}, &fakeBackend{}, []Extension{ext})
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	for b := uint64(0); b < 50; b++ {
		if ext.preBlocks[b] != 1 || ext.postBlocks[b] != 1 {
			t.Errorf("block %d: %d pre and %d post block events", b, ext.preBlocks[b], ext.postBlocks[b])
		}
		want := 5
		if b == 7 {
			want = 0
		}
		if ext.txsAtPostBlock[b] != want {
			t.Errorf("PostBlock of block %d delivered after %d of %d transactions", b, ext.txsAtPostBlock[b], want)
		}
	}
	if ext.postRunSeenFailed != 1 {
		t.Errorf("PostRun should see the failure log, got %d failures", ext.postRunSeenFailed)
	}
}

func TestExecutor_CancellationReturnsPartialResult(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var once sync.Once
			backend := &fakeBackend{behaviour: map[string]func(context.Context) (txcontext.Trace, error){
				"0x2_0": func(context.Context) (txcontext.Trace, error) {
					once.Do(cancel)
					return defaultTrace, nil
				},
			}}
			source := newFakeSource(1)

			res, err := newTestExecutor(t, source).Run(ctx, Params{Range: mustRange(t, 0, 100_000), NumWorkers: workers}, backend, nil)
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("expected cancellation error, got %v", err)
			}
			if res == nil {
				t.Fatalf("partial result missing")
			}
			if res.Frequencies.Count("store_temp") == 0 {
				t.Errorf("merged counts must be kept after cancellation")
			}
			if source.totalFetches() >= 100_001 {
				t.Errorf("pending fetches should have been skipped")
			}
			if len(res.Failures) != 0 {
				t.Errorf("cancellation must not be recorded as failure: %v", res.Failures)
			}
		})
	}
}

func TestExecutor_CancellationFinishesTransactionInFlight(t *testing.T) {
	for _, timeout := range []time.Duration{0, time.Minute} {
		for _, workers := range []int{1, 4} {
			t.Run(fmt.Sprintf("timeout=%v/workers=%d", timeout, workers), func(t *testing.T) {
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()

				backend := &fakeBackend{behaviour: map[string]func(context.Context) (txcontext.Trace, error){
					"0x0_0": func(ctx context.Context) (txcontext.Trace, error) {
						cancel()
						time.Sleep(50 * time.Millisecond)
						if err := ctx.Err(); err != nil {
							return nil, err
						}
						return txcontext.Trace{"in_flight"}, nil
					},
				}}

				res, err := newTestExecutor(t, newFakeSource(1)).Run(ctx, Params{
					Range:              mustRange(t, 0, 1000),
					NumWorkers:         workers,
					TransactionTimeout: timeout,
				}, backend, nil)
				if !errors.Is(err, context.Canceled) {
					t.Fatalf("expected cancellation error, got %v", err)
				}
				if got := res.Frequencies.Count("in_flight"); got != 1 {
					t.Errorf("transaction in flight must be merged, got count %d", got)
				}
				if res.Transactions == 0 {
					t.Errorf("transaction in flight must be counted")
				}
				if len(res.Failures) != 0 {
					t.Errorf("cancellation must not be recorded as failure: %v", res.Failures)
				}
			})
		}
	}
}

func TestExecutor_PanicsInWorkersAreForwarded(t *testing.T) {
	backend := &fakeBackend{behaviour: map[string]func(context.Context) (txcontext.Trace, error){
		"0x3_0": func(context.Context) (txcontext.Trace, error) { panic("boom") },
	}}

	for _, params := range []Params{
		{Range: mustRange(t, 0, 10), NumWorkers: 4},
		{Range: mustRange(t, 0, 10), NumWorkers: 1, TransactionTimeout: time.Second},
	} {
		func() {
			defer func() {
				if r := recover(); r != "boom" {
					t.Errorf("expected forwarded panic, got %v", r)
				}
			}()
			newTestExecutor(t, newFakeSource(1)).Run(context.Background(), params, backend, nil)
		}()
	}
}

func TestBlockRange_InvalidRangeIsRejected(t *testing.T) {
	if _, err := NewBlockRange(5, 4); err == nil {
		t.Errorf("inverted range must be rejected")
	}
	r, err := NewBlockRange(4, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Count() != 1 || r.First() != 4 || r.Last() != 4 {
		t.Errorf("unexpected range %v", r)
	}

	var visited []uint64
	r = mustRange(t, ^uint64(0)-2, ^uint64(0))
	r.forEach(func(b uint64) bool {
		visited = append(visited, b)
		return true
	})
	if len(visited) != 3 {
		t.Errorf("range ending at the largest block must terminate, visited %v", visited)
	}
}
