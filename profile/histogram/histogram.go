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


// Package histogram renders libfunc frequency reports as bar charts.
package histogram

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/Fantom-foundation/libfunc-replay/profile/libfunc"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	pixelsPerBar      = 40
	extraMargins      = 250
	pixelsPerChar     = 15
	maxLabelArea      = 400
	maxLabelLength    = 48
	pixelsPerCall     = 2
	minPlotHeight     = 300
	maxPlotHeight     = 900
	defaultChartTitle = "Libfunc frequency"
)

var (
	ErrNoData            = errors.New("nothing to plot")
	ErrDestinationExists = errors.New("destination already exists")
)

// RenderError reports why a histogram could not be produced.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("cannot render histogram %v; %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Options customize the rendered chart.
type Options struct {
	Title string
	// Overwrite allows replacing an existing destination file.
	Overwrite bool
}

// Layout holds the dimensions of a chart in pixels.
type Layout struct {
	Width     int
	Height    int
	YMax      uint64
	LabelArea int
}

// ComputeLayout sizes the chart for the given entries: every bar gets a
// fixed width, the y axis ends at the next multiple of 100 above the
// largest count and the label area fits the longest (elided) name.
func ComputeLayout(entries []libfunc.Entry) Layout {
	var maxCount uint64
	longest := 0
	for _, e := range entries {
		if e.Count > maxCount {
			maxCount = e.Count
		}
		if n := utf8.RuneCountInString(axisLabel(e.Name)); n > longest {
			longest = n
		}
	}

	res := Layout{
		Width:     len(entries)*pixelsPerBar + extraMargins,
		YMax:      (maxCount/100 + 1) * 100,
		LabelArea: min(longest*pixelsPerChar, maxLabelArea),
	}
	plot := uint64(maxPlotHeight)
	if res.YMax < plot/pixelsPerCall {
		plot = max(res.YMax*pixelsPerCall, minPlotHeight)
	}
	res.Height = int(plot) + res.LabelArea
	return res
}

// axisLabel shortens names which would not fit below the axis.
func axisLabel(name string) string {
	if utf8.RuneCountInString(name) <= maxLabelLength {
		return name
	}
	runes := []rune(name)
	return string(runes[:maxLabelLength-1]) + "…"
}

// NewChart builds the bar chart of the given entries, one bar per entry in
// the given order.
func NewChart(entries []libfunc.Entry, title string) *charts.Bar {
	if title == "" {
		title = defaultChartTitle
	}
	layout := ComputeLayout(entries)

	labels := make([]string, 0, len(entries))
	data := make([]opts.BarData, 0, len(entries))
	for _, e := range entries {
		labels = append(labels, axisLabel(e.Name))
		data = append(data, opts.BarData{Name: e.Name, Value: e.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     fmt.Sprintf("%dpx", layout.Width),
			Height:    fmt.Sprintf("%dpx", layout.Height),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d libfuncs", len(entries)),
		}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: true,
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{
					Show:  true,
					Title: "Save",
				},
			},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "item", Formatter: "{b}: {c}"}),
		charts.WithGridOpts(opts.Grid{
			Left:   "150px",
			Bottom: fmt.Sprintf("%dpx", layout.LabelArea+30),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Libfunc name",
			AxisLabel: &opts.AxisLabel{
				Show:     true,
				Interval: "0",
				Rotate:   90,
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Frequency",
			Max:  layout.YMax,
			AxisLabel: &opts.AxisLabel{
				Show:      true,
				Formatter: "{value}",
			},
		}),
	)
	bar.SetXAxis(labels).AddSeries("Frequency", data)
	return bar
}

// Render writes the chart of the given entries into destination. All
// failures are reported as *RenderError.
func Render(entries []libfunc.Entry, destination string, options Options) error {
	if len(entries) == 0 {
		return &RenderError{Path: destination, Err: ErrNoData}
	}
	if !options.Overwrite {
		if _, err := os.Stat(destination); err == nil {
			return &RenderError{Path: destination, Err: ErrDestinationExists}
		}
	}

	return write(NewChart(entries, options.Title), destination)
}

// chart is the part of a go-echarts chart needed to write it out.
type chart interface {
	Render(w io.Writer) error
}

// write renders c into destination. Partially written files are removed.
func write(c chart, destination string) error {
	file, err := os.Create(destination)
	if err != nil {
		return &RenderError{Path: destination, Err: err}
	}
	err = c.Render(file)
	err = errors.Join(err, file.Close())
	if err != nil {
		os.Remove(destination)
		return &RenderError{Path: destination, Err: err}
	}
	return nil
}
