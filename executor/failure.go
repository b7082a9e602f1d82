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
)

// FailureKind classifies why a block or transaction could not be replayed.
type FailureKind byte

const (
	SourceUnavailable FailureKind = iota + 1
	BlockNotFound
	ExecutionError
	Timeout
	UnsupportedTransaction
)

// FailureKinds lists all kinds in reporting order.
var FailureKinds = []FailureKind{SourceUnavailable, BlockNotFound, ExecutionError, Timeout, UnsupportedTransaction}

func (k FailureKind) String() string {
	switch k {
	case SourceUnavailable:
		return "SourceUnavailable"
	case BlockNotFound:
		return "BlockNotFound"
	case ExecutionError:
		return "ExecutionError"
	case Timeout:
		return "Timeout"
	case UnsupportedTransaction:
		return "UnsupportedTransaction"
	default:
		return fmt.Sprintf("FailureKind(%d)", byte(k))
	}
}

// ParseFailureKind is the inverse of FailureKind.String.
func ParseFailureKind(s string) (FailureKind, error) {
	for _, k := range FailureKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown failure kind %q", s)
}

// Failure records a block or transaction which could not be replayed.
// Block level failures have an empty Transaction and an Index of -1.
type Failure struct {
	Block       uint64
	Transaction string
	Index       int
	Kind        FailureKind
	Err         error
}

func (f Failure) String() string {
	if f.Transaction == "" {
		return fmt.Sprintf("block %d: %v: %v", f.Block, f.Kind, f.Err)
	}
	return fmt.Sprintf("block %d, tx %d (%s): %v: %v", f.Block, f.Index, f.Transaction, f.Kind, f.Err)
}

// classifyFetchError maps a BlockSource error onto a failure kind.
func classifyFetchError(err error) FailureKind {
	if errors.Is(err, ErrBlockNotFound) {
		return BlockNotFound
	}
	return SourceUnavailable
}

// classifyExecutionError maps an ExecutionBackend error onto a failure kind.
func classifyExecutionError(err error) FailureKind {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, ErrUnsupportedTransaction):
		return UnsupportedTransaction
	default:
		return ExecutionError
	}
}

// FailureLog is an append-only list of failures, safe for concurrent use.
type FailureLog struct {
	mu       sync.Mutex
	failures []Failure
}

func (l *FailureLog) Append(f Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, f)
}

func (l *FailureLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.failures)
}

// List returns a copy of all failures recorded so far.
func (l *FailureLog) List() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := make([]Failure, len(l.failures))
	copy(res, l.failures)
	return res
}

// CountByKind summarizes failures per kind.
func CountByKind(failures []Failure) map[FailureKind]int {
	res := make(map[FailureKind]int)
	for _, f := range failures {
		res[f.Kind]++
	}
	return res
}
