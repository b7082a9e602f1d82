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


// Package report turns the result of a replay into human and machine
// readable summaries.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/profile/libfunc"
	"github.com/Fantom-foundation/libfunc-replay/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	createFrequencyTable = `CREATE TABLE IF NOT EXISTS libfunc_frequency (
	run TEXT NOT NULL,
	first INTEGER,
	last INTEGER,
	name TEXT,
	count INTEGER,
	cumulative REAL
)`
	insertFrequency = "INSERT INTO libfunc_frequency (run, first, last, name, count, cumulative) VALUES (?, ?, ?, ?, ?, ?)"
)

// Report summarizes a replay of a block range.
type Report struct {
	// RunId tags the rows of the report database.
	RunId     string
	Range     executor.BlockRange
	Threshold uint64

	// Full holds all libfuncs sorted by count, Filtered the prefix covering
	// Threshold percent of all calls.
	Full     []libfunc.Entry
	Filtered []libfunc.Entry
	Total    uint64

	Blocks       uint64
	Transactions uint64
	Skipped      uint64
	Failures     []executor.Failure
}

// New reduces the frequencies of a replay result.
func New(blocks executor.BlockRange, threshold uint64, res *executor.Result) *Report {
	snapshot := res.Frequencies.Snapshot()
	full, filtered := libfunc.ReduceWithThreshold(snapshot, threshold)
	failures := make([]executor.Failure, len(res.Failures))
	copy(failures, res.Failures)
	sort.SliceStable(failures, func(i, j int) bool {
		if failures[i].Block != failures[j].Block {
			return failures[i].Block < failures[j].Block
		}
		return failures[i].Index < failures[j].Index
	})
	return &Report{
		Range:        blocks,
		Threshold:    threshold,
		Full:         full,
		Filtered:     filtered,
		Total:        snapshot.Total(),
		Blocks:       res.Blocks,
		Transactions: res.Transactions,
		Skipped:      res.Skipped,
		Failures:     failures,
	}
}

// Title names the report in charts and tables.
func (r *Report) Title() string {
	return fmt.Sprintf("Libfunc frequency of blocks %d-%d", r.Range.First(), r.Range.Last())
}

func (r *Report) prettyTable() table.Writer {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s (%d%% of all calls)", r.Title(), r.Threshold))
	t.AppendHeader(table.Row{"#", "libfunc", "calls", "share(%)", "cumulative(%)"})
	for i, e := range r.Filtered {
		t.AppendRow(table.Row{
			i + 1,
			e.Name,
			e.Count,
			fmt.Sprintf("%.2f", 100*float64(e.Count)/float64(r.Total)),
			fmt.Sprintf("%.2f", 100*e.Cumulative),
		})
	}
	var covered uint64
	for _, e := range r.Filtered {
		covered += e.Count
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d of %d libfuncs", len(r.Filtered), len(r.Full)), covered, "", ""})
	return t
}

// Table renders the filtered entries as a console table.
func (r *Report) Table() string {
	if len(r.Filtered) == 0 {
		return "No libfunc calls were recorded."
	}
	return r.prettyTable().Render()
}

// Summary is a one line account of the replay.
func (r *Report) Summary() string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("Replayed %d transactions of %d blocks (%d skipped, %d failures); %d libfunc calls of %d distinct libfuncs",
		r.Transactions, r.Blocks, r.Skipped, len(r.Failures), r.Total, len(r.Full))
}

// CSV renders the raw statistics as comma separated values, sorted by
// ascending weight.
func (r *Report) CSV() string {
	entries := make([]libfunc.Entry, len(r.Full))
	copy(entries, r.Full)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count < entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Function Name", "Weight"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Name, e.Count})
	}
	return t.RenderCSV() + "\n"
}

// Rows lists the full table in the layout of the report database.
func (r *Report) Rows() [][]any {
	res := make([][]any, 0, len(r.Full))
	for _, e := range r.Full {
		res = append(res, []any{r.RunId, int64(r.Range.First()), int64(r.Range.Last()), e.Name, int64(e.Count), e.Cumulative})
	}
	return res
}

// Printers assembles the sinks selected by the configuration: the console
// table and failure summary, the --txt-out file and the --report-db database.
func (r *Report) Printers(cfg *utils.Config, console io.Writer) (*utils.Printers, error) {
	ps := utils.NewPrinters()
	ps.AddPrintToWriter(console, func() string {
		return strings.Join([]string{r.Table(), r.Summary(), r.FailureSummary(cfg.Verbose)}, "\n")
	})
	ps.AddPrintToFile(cfg.TxtOut, r.CSV)
	if _, err := ps.AddPrintToSqlite3(cfg.ReportDb, createFrequencyTable, insertFrequency, r.Rows); err != nil {
		ps.Close()
		return nil, err
	}
	return ps, nil
}
