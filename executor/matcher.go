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
	"errors"
	"fmt"

	gomock "go.uber.org/mock/gomock"
)

// ----------------------------------------------------------------------------
//                                   Matcher
// ----------------------------------------------------------------------------

// AtBlock matches executor.State instances with the given block.
func AtBlock(block uint64) gomock.Matcher {
	return atBlock{block}
}

// AtTransaction matches executor.State instances with the given block and
// transaction index.
func AtTransaction(block uint64, transaction int) gomock.Matcher {
	return atTransaction{block, transaction}
}

// WithFailure matches executor.State instances carrying a failure of the
// given kind.
func WithFailure(kind FailureKind) gomock.Matcher {
	return withFailure{kind}
}

// WithoutFailure matches executor.State instances without a failure.
func WithoutFailure() gomock.Matcher {
	return withFailure{}
}

// WithError matches errors wrapping the given error.
func WithError(err error) gomock.Matcher {
	return withError{err}
}

// ----------------------------------------------------------------------------

type atBlock struct {
	expectedBlock uint64
}

func (m atBlock) Matches(value any) bool {
	state, ok := value.(State)
	return ok && state.Block == m.expectedBlock
}

func (m atBlock) String() string {
	return fmt.Sprintf("at block %d", m.expectedBlock)
}

type atTransaction struct {
	expectedBlock       uint64
	expectedTransaction int
}

func (m atTransaction) Matches(value any) bool {
	state, ok := value.(State)
	return ok && state.Block == m.expectedBlock && state.Transaction == m.expectedTransaction
}

func (m atTransaction) String() string {
	return fmt.Sprintf("at transaction %d/%d", m.expectedBlock, m.expectedTransaction)
}

type withFailure struct {
	kind FailureKind
}

func (m withFailure) Matches(value any) bool {
	state, ok := value.(State)
	if !ok {
		return false
	}
	if m.kind == 0 {
		return state.Failure == nil
	}
	return state.Failure != nil && state.Failure.Kind == m.kind
}

func (m withFailure) String() string {
	if m.kind == 0 {
		return "without failure"
	}
	return fmt.Sprintf("with failure %v", m.kind)
}

type withError struct {
	err error
}

func (m withError) Matches(value any) bool {
	err, ok := value.(error)
	return ok && errors.Is(err, m.err)
}

func (m withError) String() string {
	return fmt.Sprintf("with error %v", m.err)
}
