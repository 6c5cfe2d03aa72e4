// Package inspect implements the inspect command.
package inspect

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuromorphicsystems/undrdg/internal/cmd/application"
	"github.com/neuromorphicsystems/undrdg/internal/cmd/output"
	"github.com/neuromorphicsystems/undrdg/internal/cmd/table"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/parsers"
)

// Inspection summarizes a decoded recording.
type Inspection struct {
	Path         string `json:"path" yaml:"path"`
	Format       string `json:"format" yaml:"format"`
	Size         int64  `json:"size" yaml:"size"`
	Header       string `json:"header,omitempty" yaml:"header,omitempty"`
	Events       int    `json:"events" yaml:"events"`
	OnEvents     int    `json:"on_events" yaml:"on_events"`
	FirstT       uint64 `json:"first_t" yaml:"first_t"`
	LastT        uint64 `json:"last_t" yaml:"last_t"`
	Resets       int    `json:"resets" yaml:"resets"`
	Width        int    `json:"width" yaml:"width"`
	Height       int    `json:"height" yaml:"height"`
	Frames       int    `json:"frames" yaml:"frames"`
	IMUSamples   int    `json:"imu_samples" yaml:"imu_samples"`
	APSCorrupted bool   `json:"aps_corrupted" yaml:"aps_corrupted"`
	IMUCorrupted bool   `json:"imu_corrupted" yaml:"imu_corrupted"`
}

// NewCommand creates the inspect command.
func NewCommand(app application.Application) *cobra.Command {
	var inputFormat string
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode a recording and print a summary",
		Long: `Inspect decodes one source recording with the same parsers as convert
and prints the number of events, frames and IMU samples it contains, the
timestamp range, the number of timestamp resets and the sensor extent.

The recording format is detected from the "#!AER-DAT" version line, or from
the ".bin" extension for N-MNIST; --input-format overrides the detection.`,
		Example: `  undrdg inspect "DVS128-2006-02-10T14-22-35-0800 hand.dat"
  undrdg inspect Train/00001.bin -o json
  undrdg inspect recording.aedat --input-format aerdat2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Execute(cmd.Context(), app, args[0], inputFormat, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&inputFormat, "input-format", "i", "",
		"recording format: "+joinFormats()+" (default: detect)")
	return cmd
}

func joinFormats() string {
	names := make([]string, len(parsers.Formats))
	for i, format := range parsers.Formats {
		names[i] = format.String()
	}
	return strings.Join(names, ", ")
}

// Execute decodes path and prints its inspection.
func Execute(_ context.Context, app application.Application, path, inputFormat string, stdout io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("recording", path)
		}
		return errors.WrapIO("read", path, err)
	}

	var format parsers.Format
	if inputFormat != "" {
		format, err = parsers.ParseFormat(inputFormat)
	} else {
		format, err = parsers.DetectFormat(filepath.Base(path), data)
	}
	if err != nil {
		return err
	}
	app.Logger().Debug().Str("path", path).Str("format", format.String()).Msg("Decoding recording")

	result, err := parsers.Decode(format, data)
	if err != nil {
		return errors.WrapParse(format.String(), path, err)
	}
	inspection := Inspect(result)
	inspection.Path = path
	inspection.Format = format.String()
	inspection.Size = int64(len(data))

	return output.Print(stdout, output.DetectFormat(app.OutputFormat()), inspection, toTableData(inspection))
}

// Inspect computes the statistics of a decoded recording.
func Inspect(result *parsers.Aerdat2) *Inspection {
	inspection := &Inspection{
		Header:       result.Header,
		Events:       len(result.DVS),
		Frames:       len(result.APS),
		IMUSamples:   len(result.IMU),
		APSCorrupted: result.APSCorrupted,
		IMUCorrupted: result.IMUCorrupted,
	}
	if len(result.DVS) > 0 {
		inspection.FirstT = result.DVS[0].T
		inspection.LastT = result.DVS[len(result.DVS)-1].T
		inspection.Resets = len(result.DVS.Resets())
	}
	for _, event := range result.DVS {
		if event.P&1 == 1 {
			inspection.OnEvents++
		}
		inspection.Width = max(inspection.Width, int(event.X)+1)
		inspection.Height = max(inspection.Height, int(event.Y)+1)
	}
	if len(result.APS) > 0 {
		inspection.Width = max(inspection.Width, int(result.APS[0].Width))
		inspection.Height = max(inspection.Height, int(result.APS[0].Height))
	}
	return inspection
}

func toTableData(inspection *Inspection) table.Data {
	rows := [][]string{
		{"Path", inspection.Path},
		{"Format", inspection.Format},
		{"Size", table.FormatBytes(inspection.Size)},
		{"Header lines", strconv.Itoa(strings.Count(inspection.Header, "\n"))},
		{"DVS events", table.FormatCount(inspection.Events)},
		{"ON events", table.FormatCount(inspection.OnEvents)},
		{"Time range (µs)", fmt.Sprintf("%d - %d", inspection.FirstT, inspection.LastT)},
		{"Timestamp resets", strconv.Itoa(inspection.Resets)},
		{"Extent", fmt.Sprintf("%d x %d", inspection.Width, inspection.Height)},
		{"APS frames", table.FormatCount(inspection.Frames)},
		{"IMU samples", table.FormatCount(inspection.IMUSamples)},
	}
	if inspection.APSCorrupted {
		rows = append(rows, []string{"APS", "corrupted"})
	}
	if inspection.IMUCorrupted {
		rows = append(rows, []string{"IMU", "corrupted"})
	}
	return table.Data{
		Headers:         []string{"Property", "Value"},
		Rows:            rows,
		ColumnAlignment: []table.Align{table.AlignLeft, table.AlignRight},
	}
}
