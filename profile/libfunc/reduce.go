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
	"math/bits"
	"sort"
)

// DefaultThreshold is the share of all calls, in percent, the filtered
// report has to cover.
const DefaultThreshold = 80

// Entry is a row of a frequency report.
type Entry struct {
	Name  string
	Count uint64
	// Cumulative is the share of all calls made by this entry and every
	// entry sorted before it.
	Cumulative float64
}

// Reduce sorts the snapshot and cuts it down to the entries covering
// DefaultThreshold percent of all calls.
func Reduce(s Snapshot) (full []Entry, filtered []Entry) {
	return ReduceWithThreshold(s, DefaultThreshold)
}

// ReduceWithThreshold returns all entries of the snapshot sorted by count
// (descending, ties by name) and the shortest prefix of that list whose
// counts add up to at least percent of the total. Both are empty if no
// call was recorded. A percent above 100 is treated as 100.
func ReduceWithThreshold(s Snapshot, percent uint64) (full []Entry, filtered []Entry) {
	total := s.Total()
	if total == 0 {
		return []Entry{}, []Entry{}
	}
	if percent > 100 {
		percent = 100
	}

	full = make([]Entry, 0, len(s.counts))
	for name, n := range s.counts {
		full = append(full, Entry{Name: name, Count: n})
	}
	sort.Slice(full, func(i, j int) bool {
		if full[i].Count != full[j].Count {
			return full[i].Count > full[j].Count
		}
		return full[i].Name < full[j].Name
	})

	// An entry is part of the filtered prefix if the sum of all entries
	// before it is still below the threshold: sum*100 < total*percent.
	// Both sides are computed in 128 bits so large totals stay exact.
	thresholdHi, thresholdLo := bits.Mul64(total, percent)
	var sum uint64
	cut := 0
	for i := range full {
		hi, lo := bits.Mul64(sum, 100)
		if less128(hi, lo, thresholdHi, thresholdLo) {
			cut = i + 1
		}
		sum += full[i].Count
		full[i].Cumulative = float64(sum) / float64(total)
	}

	filtered = make([]Entry, cut)
	copy(filtered, full[:cut])
	return full, filtered
}

func less128(aHi, aLo, bHi, bLo uint64) bool {
	if aHi != bHi {
		return aHi < bHi
	}
	return aLo < bLo
}
