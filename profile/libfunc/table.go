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

package libfunc

import (
	"sync"

	"github.com/Fantom-foundation/libfunc-replay/txcontext"
)

// Table counts libfunc invocations. It is safe for concurrent use; counts
// only ever grow.
type Table struct {
	mu     sync.Mutex
	counts map[string]uint64
}

// NewTable creates an empty frequency table.
func NewTable() *Table {
	return &Table{counts: make(map[string]uint64)}
}

// Merge adds one invocation for every entry of the trace. The trace is
// folded locally first so the table lock is taken once per trace.
func (t *Table) Merge(trace txcontext.Trace) {
	if len(trace) == 0 {
		return
	}
	local := make(map[string]uint64, len(trace))
	for _, name := range trace {
		local[name]++
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for name, n := range local {
		t.counts[name] += n
	}
}

// Add increases the counter of the given libfunc by n.
func (t *Table) Add(name string, n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[name] += n
}

// Count returns the current counter of the given libfunc.
func (t *Table) Count(name string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[name]
}

// Len returns the number of distinct libfuncs seen so far.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}

// Snapshot copies the current content of the table. Snapshots are only
// consistent once no more merges are running.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[string]uint64, len(t.counts))
	for name, n := range t.counts {
		counts[name] = n
	}
	return Snapshot{counts: counts}
}

// Snapshot is a read-only copy of a Table.
type Snapshot struct {
	counts map[string]uint64
}

// NewSnapshot creates a snapshot holding a copy of the given counts.
func NewSnapshot(counts map[string]uint64) Snapshot {
	copied := make(map[string]uint64, len(counts))
	for name, n := range counts {
		copied[name] = n
	}
	return Snapshot{counts: copied}
}

func (s Snapshot) Count(name string) uint64 {
	return s.counts[name]
}

func (s Snapshot) Len() int {
	return len(s.counts)
}

// Total is the sum of all counters.
func (s Snapshot) Total() uint64 {
	var total uint64
	for _, n := range s.counts {
		total += n
	}
	return total
}

// Equal reports whether both snapshots hold the same counters.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.counts) != len(other.counts) {
		return false
	}
	for name, n := range s.counts {
		if m, ok := other.counts[name]; !ok || m != n {
			return false
		}
	}
	return true
}
