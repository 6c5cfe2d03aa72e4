// Package convert runs recipes: it decodes every source file selected by a
// recipe and writes the corresponding UNDR files.
package convert

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/logging"
	"github.com/neuromorphicsystems/undrdg/pkg/naming"
	"github.com/neuromorphicsystems/undrdg/pkg/parsers"
	"github.com/neuromorphicsystems/undrdg/pkg/raw"
	"github.com/neuromorphicsystems/undrdg/pkg/recipe"
	"github.com/neuromorphicsystems/undrdg/pkg/tree"
	"github.com/neuromorphicsystems/undrdg/pkg/undr"
)

// HeaderSuffix is appended to the output name of AER-DAT headers.
const HeaderSuffix = ".header"

// Summary reports what a conversion did.
type Summary struct {
	Tasks      int           `json:"tasks" yaml:"tasks"`
	Converted  int           `json:"converted" yaml:"converted"`
	Copied     int           `json:"copied" yaml:"copied"`
	Skipped    int           `json:"skipped" yaml:"skipped"`
	Files      int           `json:"files" yaml:"files"`
	Events     int64         `json:"events" yaml:"events"`
	Frames     int64         `json:"frames" yaml:"frames"`
	IMUSamples int64         `json:"imu_samples" yaml:"imu_samples"`
	BytesIn    int64         `json:"bytes_in" yaml:"bytes_in"`
	BytesOut   int64         `json:"bytes_out" yaml:"bytes_out"`
	Warnings   []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Converter is a tree.Handler driven by a recipe. It is safe for concurrent use.
type Converter struct {
	recipe *recipe.Recipe

	mu      sync.Mutex
	summary Summary
}

// New creates a converter for r.
func New(r *recipe.Recipe) *Converter {
	return &Converter{recipe: r}
}

// Summary returns a copy of the counters accumulated so far.
func (c *Converter) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary := c.summary
	summary.Warnings = append([]string(nil), c.summary.Warnings...)
	return summary
}

func (c *Converter) update(fn func(s *Summary)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.summary)
}

// outputName returns the base name of the generated files and the date
// found in the source name. Unmatched files renamed from the source stem
// keep the source extension.
func (c *Converter) outputName(relPath, targetName string, override recipe.FileOverride, matched bool) (string, string, error) {
	source := path.Base(relPath)
	rules := c.recipe.Naming
	var name, date string
	switch {
	case override.Name != "":
		name = override.Name
	case rules.StemAndDate:
		var err error
		name, date, err = naming.StemAndDate(tree.Stem(source), rules.TrimPrefixes, rules.TrimSuffixes)
		if err != nil {
			return "", "", err
		}
		for _, prefix := range rules.StripPrefixes {
			name = strings.TrimPrefix(name, prefix)
		}
	case matched:
		name = tree.Stem(targetName)
	default:
		return targetName, "", nil
	}
	if override.Date != "" {
		date = override.Date
	}
	if name == "" {
		return "", "", errors.NewValidationError("name", relPath, "the output name is empty")
	}
	if !matched {
		name += tree.Suffix(source)
	}
	return name, date, nil
}

// Handle converts one task.
func (c *Converter) Handle(ctx context.Context, task *tree.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.update(func(s *Summary) { s.Tasks++ })

	logger := logging.FromContext(ctx).With().Str("source", task.RelPath).Logger()
	override, _ := c.recipe.Override(task.RelPath)
	if override.Skip {
		logger.Debug().Msg("Skipping file")
		c.update(func(s *Summary) { s.Skipped++ })
		return nil
	}
	spec, matched := c.recipe.FormatFor(task.RelPath, override)
	if !matched {
		switch c.recipe.Unmatched {
		case recipe.UnmatchedSkip:
			logger.Debug().Msg("Skipping file without format")
			c.update(func(s *Summary) { s.Skipped++ })
			return nil
		case recipe.UnmatchedError:
			return unmatchedError(task.Source, task.RelPath)
		}
	}

	name, date, err := c.outputName(task.RelPath, task.TargetName, override, matched)
	if err != nil {
		return errors.WrapConversion(task.Source, "", err)
	}
	target := filepath.Join(task.TargetDirectory.Path(), name)
	base := map[string]any{"original_name": filepath.Base(task.Source)}
	if date != "" {
		base["date"] = date
	}

	if !matched {
		err = c.copy(task, name, merge(base, override.Metadata))
	} else {
		err = c.convert(ctx, task, spec, name, base, override)
	}
	if err != nil {
		return errors.WrapConversion(task.Source, target, err)
	}
	logger.Info().
		Int("index", task.Index+1).
		Int("total", task.Total).
		Str("target", target).
		Msg("Converted")
	return nil
}

func unmatchedError(source, relPath string) error {
	return errors.NewConversionError(source, "",
		errors.NewValidationError("format", relPath, "no format for this extension"))
}

func (c *Converter) copy(task *tree.Task, name string, metadata map[string]any) error {
	in, err := os.Open(task.Source)
	if err != nil {
		return errors.WrapIO("open", task.Source, err)
	}
	defer in.Close()
	out, err := task.TargetDirectory.CreateOtherFile(name, metadata)
	if err != nil {
		return err
	}
	n, err := io.CopyBuffer(out, in, make([]byte, constants.ReadChunkSize))
	if err != nil {
		_ = out.Discard()
		return errors.WrapIO("copy", task.Source, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	c.update(func(s *Summary) {
		s.Copied++
		s.Files++
		s.BytesIn += n
		s.BytesOut += n
	})
	return nil
}

// FixTimestamps applies a timestamp policy to events in place and returns
// the events to write.
func FixTimestamps(events raw.DVSEvents, policy string) (raw.DVSEvents, error) {
	switch policy {
	case recipe.TimestampFixAdd:
		events.AccumulateResets()
	case recipe.TimestampFixSort:
		events.SortByTimestamp()
	case recipe.TimestampFixNone, "":
		if resets := events.Resets(); len(resets) > 0 {
			return nil, fmt.Errorf("%w: timestamps decrease %d times (first after event %d), set timestamp_fix to add or sort",
				errors.ErrCorrupted, len(resets), resets[0])
		}
	default:
		return nil, errors.NewValidationError("timestamp_fix", policy, "unsupported policy")
	}
	return events, nil
}

func (c *Converter) convert(ctx context.Context, task *tree.Task, spec recipe.FormatSpec, name string, base map[string]any, override recipe.FileOverride) error {
	info, err := os.Stat(task.Source)
	if err != nil {
		return errors.WrapIO("stat", task.Source, err)
	}
	result, err := parsers.Read(parsers.Format(spec.Format), task.Source)
	if err != nil {
		return err
	}
	if result.DVS != nil {
		if result.DVS, err = FixTimestamps(result.DVS, spec.TimestampFix); err != nil {
			return err
		}
	}

	directory := task.TargetDirectory
	files := 0
	var bytesOut int64
	if spec.Headers && result.Header != "" {
		header, err := directory.CreateOtherFile(name+HeaderSuffix, base)
		if err != nil {
			return err
		}
		if _, err := header.WriteString(result.Header); err != nil {
			_ = header.Discard()
			return err
		}
		if err := header.Close(); err != nil {
			return err
		}
		files++
		bytesOut += int64(len(result.Header))
	}

	metadata := merge(base, c.recipe.Metadata, c.recipe.DirectoryMetadataFor(task.RelPath), override.Metadata)
	write := func(fileType raw.Type, records raw.Records) error {
		n, err := writeRecords(directory, fileType, name, metadata, records)
		if err != nil {
			return err
		}
		files++
		bytesOut += n
		return nil
	}
	if result.DVS != nil {
		if err := write(raw.NewDVSType(spec.Width, spec.Height), result.DVS); err != nil {
			return err
		}
	}
	if result.APS != nil {
		if err := write(raw.NewAPSType(constants.DAVIS240Width, constants.DAVIS240Height), result.APS); err != nil {
			return err
		}
	}
	if result.IMU != nil {
		if err := write(raw.IMUType{}, result.IMU); err != nil {
			return err
		}
	}

	logger := logging.FromContext(ctx)
	var warnings []string
	target := filepath.Join(directory.Path(), name)
	if result.APSCorrupted {
		logger.Warn().Str("target", target).Msg("APS corrupted")
		warnings = append(warnings, target+": APS corrupted")
	}
	if result.IMUCorrupted {
		logger.Warn().Str("target", target).Msg("IMU corrupted")
		warnings = append(warnings, target+": IMU corrupted")
	}

	c.update(func(s *Summary) {
		s.Converted++
		s.Files += files
		s.Events += int64(len(result.DVS))
		s.Frames += int64(len(result.APS))
		s.IMUSamples += int64(len(result.IMU))
		s.BytesIn += info.Size()
		s.BytesOut += bytesOut
		s.Warnings = append(s.Warnings, warnings...)
	})
	return nil
}

func writeRecords(directory *undr.Directory, fileType raw.Type, name string, metadata map[string]any, records raw.Records) (int64, error) {
	file, err := directory.CreateFile(fileType, name, metadata)
	if err != nil {
		return 0, err
	}
	if err := file.Write(records); err != nil {
		_ = file.Discard()
		return 0, err
	}
	size := file.Size()
	return size, file.Close()
}

// merge returns a new map holding the entries of all maps, later maps
// overriding earlier ones.
func merge(layers ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, layer := range layers {
		maps.Copy(result, layer)
	}
	return result
}

// Run converts the recipe source tree into its target dataset. Options
// override the recipe workers and DOI.
func Run(ctx context.Context, r *recipe.Recipe, opts ...tree.Option) (*Summary, error) {
	info, err := os.Stat(r.Source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("source directory", r.Source)
		}
		return nil, errors.WrapIO("stat", r.Source, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("source", r.Source, "not a directory")
	}
	if err := os.MkdirAll(filepath.Dir(r.Target), constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", filepath.Dir(r.Target), err)
	}

	ctx = logging.WithOperation(ctx, "convert")
	logging.FromContext(ctx).Info().
		Str("source", r.Source).
		Str("target", r.Target).
		Msg("Converting dataset")

	converter := New(r)
	options := append([]tree.Option{
		tree.WithWorkers(r.Workers),
		tree.WithDOI(r.DOI),
	}, opts...)
	start := time.Now()
	err = tree.CopyTree(ctx, r.Source, r.Target, r.TreeRules(), converter.Handle, options...)
	summary := converter.Summary()
	summary.Duration = time.Since(start)
	return &summary, err
}
