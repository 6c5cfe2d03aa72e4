// Package table provides common table formatting utilities for CLI commands.
package table

import (
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/neuromorphicsystems/undrdg/internal/cmd/emoji"
	"github.com/neuromorphicsystems/undrdg/pkg/convert"
	"github.com/neuromorphicsystems/undrdg/pkg/verify"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// FormatBytes renders a byte count for humans (e.g. "1.5 MB").
func FormatBytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return datasize.ByteSize(n).HumanReadable()
}

// FormatCount renders an integer, "-" for zero.
func FormatCount[T ~int | ~int64](n T) string {
	if n == 0 {
		return "-"
	}
	return strconv.FormatInt(int64(n), 10)
}

var keyValueAlignment = []Align{AlignLeft, AlignRight}

// SummaryToTableData converts a conversion summary to a key-value table.
func SummaryToTableData(s *convert.Summary) Data {
	rows := [][]string{
		{"Source files", FormatCount(s.Tasks)},
		{"Converted", FormatCount(s.Converted)},
		{"Copied", FormatCount(s.Copied)},
		{"Skipped", FormatCount(s.Skipped)},
		{"Files written", FormatCount(s.Files)},
		{"DVS events", FormatCount(s.Events)},
		{"APS frames", FormatCount(s.Frames)},
		{"IMU samples", FormatCount(s.IMUSamples)},
		{"Read", FormatBytes(s.BytesIn)},
		{"Written (uncompressed)", FormatBytes(s.BytesOut)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
	for _, warning := range s.Warnings {
		rows = append(rows, []string{emoji.Warning + " Warning", warning})
	}
	return Data{
		Headers:         []string{"Property", "Value"},
		Rows:            rows,
		ColumnAlignment: keyValueAlignment,
	}
}

// PlanToTableData converts a dry-run plan to a table, one row per source file.
func PlanToTableData(planned []convert.PlannedFile) Data {
	rows := make([][]string, 0, len(planned))
	for _, file := range planned {
		target := file.Target
		if target == "" {
			target = "-"
		}
		action := file.Action
		if file.Format != "" {
			action += " (" + file.Format + ")"
		}
		date := file.Date
		if date == "" {
			date = "-"
		}
		rows = append(rows, []string{file.Source, action, target, date})
	}
	return Data{
		Headers: []string{"Source", "Action", "Target", "Date"},
		Rows:    rows,
	}
}

// ReportToTableData converts the issues of a verification report to a table.
// A report without issues yields a single success row.
func ReportToTableData(r *verify.Report) Data {
	if r.OK() {
		return Data{
			Headers: []string{"Status", "Path"},
			Rows:    [][]string{{emoji.Success + " ok", r.Root}},
		}
	}
	rows := make([][]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		rows = append(rows, []string{emoji.Error + " " + issue.Problem, issue.Path})
	}
	return Data{
		Headers: []string{"Status", "Path"},
		Rows:    rows,
	}
}

// ReportTotalsToTableData converts the totals of a verification report to a
// key-value table.
func ReportTotalsToTableData(r *verify.Report) Data {
	return Data{
		Headers: []string{"Property", "Value"},
		Rows: [][]string{
			{"Directories", FormatCount(r.Directories)},
			{"Files", FormatCount(r.Files)},
			{"Other files", FormatCount(r.OtherFiles)},
			{"Size", FormatBytes(r.Size)},
			{"Compressed size", FormatBytes(r.CompressedSize)},
			{"Issues", strconv.Itoa(len(r.Issues))},
		},
		ColumnAlignment: keyValueAlignment,
	}
}
