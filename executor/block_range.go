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

import "fmt"

// BlockRange is an inclusive range of block numbers. The zero value is the
// range containing block 0 only.
type BlockRange struct {
	first, last uint64
}

// NewBlockRange creates the range [first, last]. It fails if first > last.
func NewBlockRange(first, last uint64) (BlockRange, error) {
	if first > last {
		return BlockRange{}, fmt.Errorf("first block %v has larger number than last block %v", first, last)
	}
	return BlockRange{first, last}, nil
}

func (r BlockRange) First() uint64 {
	return r.first
}

func (r BlockRange) Last() uint64 {
	return r.last
}

// Count returns the number of blocks in the range.
func (r BlockRange) Count() uint64 {
	return r.last - r.first + 1
}

// forEach calls f for every block of the range in ascending order until f
// returns false.
func (r BlockRange) forEach(f func(block uint64) bool) {
	for b := r.first; ; b++ {
		if !f(b) || b == r.last {
			return
		}
	}
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.first, r.last)
}
