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


package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/utils"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// FailureSummary lists the number of failures per kind and, if verbose is
// set, every single failure.
func (r *Report) FailureSummary(verbose bool) string {
	bold := color.New(color.Bold).SprintfFunc()
	if len(r.Failures) == 0 {
		return color.New(color.FgGreen).Sprint("All blocks and transactions were replayed.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", color.New(color.FgRed, color.Bold).Sprintf("%d blocks or transactions could not be replayed", len(r.Failures)))

	counts := executor.CountByKind(r.Failures)
	tbl := tablewriter.NewWriter(&b)
	tbl.SetHeader([]string{"Kind", "Count"})
	tbl.SetBorder(true)
	for _, kind := range executor.FailureKinds {
		tbl.Append([]string{kind.String(), strconv.Itoa(counts[kind])})
	}
	tbl.Render()

	if !verbose {
		fmt.Fprintf(&b, "Use --%s to list all failures.\n", bold(utils.VerboseFlag.Name))
		return b.String()
	}

	list := tablewriter.NewWriter(&b)
	list.SetHeader([]string{"Block", "Index", "Transaction", "Kind", "Error"})
	list.SetBorder(true)
	list.SetAutoWrapText(false)
	for _, f := range r.Failures {
		index := ""
		if f.Index >= 0 {
			index = strconv.Itoa(f.Index)
		}
		list.Append([]string{
			strconv.FormatUint(f.Block, 10),
			index,
			f.Transaction,
			f.Kind.String(),
			fmt.Sprint(f.Err),
		})
	}
	list.Render()
	return b.String()
}
