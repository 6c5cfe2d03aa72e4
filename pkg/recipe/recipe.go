// Package recipe loads declarative dataset conversions.
//
// A recipe is a YAML file describing where the source dataset lives, how
// its tree must be renamed or filtered, which parser handles each file
// extension and what metadata is attached to the generated files.
package recipe

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/parsers"
	"github.com/neuromorphicsystems/undrdg/pkg/tree"
)

// What to do with files whose extension has no format.
const (
	UnmatchedCopy  = "copy"
	UnmatchedSkip  = "skip"
	UnmatchedError = "error"
)

// Timestamp policies applied to decoded DVS events.
const (
	// TimestampFixNone rejects recordings whose timestamps decrease.
	TimestampFixNone = "none"
	// TimestampFixAdd offsets the events following each reset by the timestamp before it.
	TimestampFixAdd = "add"
	// TimestampFixSort sorts events by timestamp.
	TimestampFixSort = "sort"
)

// Recipe is a dataset conversion.
type Recipe struct {
	// Path is the recipe file, empty for recipes built in code.
	Path string `yaml:"-"`

	Source            string                    `yaml:"source" validate:"required"`
	Target            string                    `yaml:"target" validate:"required"`
	DOI               string                    `yaml:"doi"`
	Workers           int                       `yaml:"workers" validate:"gte=0"`
	Rules             []RuleSpec                `yaml:"rules"`
	Naming            Naming                    `yaml:"naming"`
	Formats           map[string]FormatSpec     `yaml:"formats" validate:"dive,keys,startswith=.,endkeys"`
	Unmatched         string                    `yaml:"unmatched" validate:"oneof=copy skip error"`
	Metadata          map[string]any            `yaml:"metadata"`
	DirectoryMetadata map[string]map[string]any `yaml:"directory_metadata"`
	Files             map[string]FileOverride   `yaml:"files" validate:"dive"`
}

// RuleSpec is the YAML form of a tree.Rule. Exactly one of Skip, Rename and
// RenameExtension must be set; renames require To.
type RuleSpec struct {
	Skip            string  `yaml:"skip,omitempty"`
	Rename          string  `yaml:"rename,omitempty"`
	RenameExtension string  `yaml:"rename_extension,omitempty"`
	To              *string `yaml:"to,omitempty"`
}

// Naming controls how output names are derived from source names.
type Naming struct {
	// StemAndDate extracts a date from the source stem and snake-cases the rest.
	StemAndDate  bool    `yaml:"stem_and_date"`
	TrimPrefixes Strings `yaml:"trim_prefixes"`
	TrimSuffixes Strings `yaml:"trim_suffixes"`
	// StripPrefixes are removed from the resulting name, in order.
	StripPrefixes Strings `yaml:"strip_prefixes"`
}

// Strings is a YAML list of strings. Items that YAML resolves to another
// type are rejected: an unquoted 00000075_0_ is the octal integer 488.
type Strings []string

// UnmarshalYAML implements yaml.InterfaceUnmarshaler.
func (s *Strings) UnmarshalYAML(unmarshal func(any) error) error {
	var values []any
	if err := unmarshal(&values); err != nil {
		return err
	}
	result := make(Strings, 0, len(values))
	for i, value := range values {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("item %d (%v) is not a string, quote it", i, value)
		}
		result = append(result, str)
	}
	*s = result
	return nil
}

// FormatSpec selects the parser for an extension.
type FormatSpec struct {
	Format       string `yaml:"format" validate:"required,oneof=aerdat1 aerdat2 nmnist"`
	Width        uint16 `yaml:"width"`
	Height       uint16 `yaml:"height"`
	Headers      bool   `yaml:"headers"`
	TimestampFix string `yaml:"timestamp_fix" validate:"omitempty,oneof=none add sort"`
}

// FileOverride customizes the conversion of one source file, keyed by its
// relative path or its base name.
type FileOverride struct {
	Name         string         `yaml:"name"`
	Date         string         `yaml:"date" validate:"omitempty,iso8601"`
	Format       string         `yaml:"format" validate:"omitempty,oneof=aerdat1 aerdat2 nmnist"`
	TimestampFix string         `yaml:"timestamp_fix" validate:"omitempty,oneof=none add sort"`
	Skip         bool           `yaml:"skip"`
	Metadata     map[string]any `yaml:"metadata"`
}

// Load reads, resolves and validates the recipe at path.
// Source and target are resolved relative to the recipe directory.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("recipe", path)
		}
		return nil, errors.WrapIO("read", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	r.Path = path
	r.resolve(filepath.Dir(path))
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Parse decodes a recipe and applies defaults. Unknown fields are rejected.
func Parse(data []byte) (*Recipe, error) {
	r := &Recipe{}
	if err := yaml.UnmarshalWithOptions(data, r, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	r.applyDefaults()
	return r, nil
}

func (r *Recipe) applyDefaults() {
	if r.Unmatched == "" {
		r.Unmatched = UnmatchedCopy
	}
	formats := make(map[string]FormatSpec, len(r.Formats))
	for extension, spec := range r.Formats {
		if spec.Width == 0 && spec.Height == 0 {
			spec.Width, spec.Height = DefaultGeometry(spec.Format)
		}
		if spec.TimestampFix == "" {
			spec.TimestampFix = TimestampFixNone
		}
		formats[strings.ToLower(extension)] = spec
	}
	r.Formats = formats
}

func (r *Recipe) resolve(dir string) {
	if r.Source != "" && !filepath.IsAbs(r.Source) {
		r.Source = filepath.Join(dir, r.Source)
	}
	if r.Target != "" && !filepath.IsAbs(r.Target) {
		r.Target = filepath.Join(dir, r.Target)
	}
}

// DefaultGeometry returns the sensor size usually recorded with format.
func DefaultGeometry(format string) (uint16, uint16) {
	switch parsers.Format(format) {
	case parsers.FormatAerdat1:
		return 128, 128
	case parsers.FormatNMNIST:
		return parsers.NMNISTWidth, parsers.NMNISTHeight
	default:
		return 240, 180
	}
}

// TreeRules converts the rule specs into tree rules.
func (r *Recipe) TreeRules() []tree.Rule {
	rules := make([]tree.Rule, 0, len(r.Rules))
	for _, spec := range r.Rules {
		switch {
		case spec.Skip != "":
			rules = append(rules, tree.NewSkipName(spec.Skip))
		case spec.Rename != "":
			rules = append(rules, tree.NewRename(spec.Rename, *spec.To))
		case spec.RenameExtension != "":
			rules = append(rules, tree.NewRenameExtension(spec.RenameExtension, *spec.To))
		}
	}
	return rules
}

// Override returns the override for a source file, matching its relative
// path first and its base name second.
func (r *Recipe) Override(relPath string) (FileOverride, bool) {
	if override, ok := r.Files[relPath]; ok {
		return override, true
	}
	override, ok := r.Files[path.Base(relPath)]
	return override, ok
}

// FormatFor returns the format spec of a source file, taking the override
// format into account. An override of a matched extension keeps the
// extension geometry.
func (r *Recipe) FormatFor(relPath string, override FileOverride) (FormatSpec, bool) {
	spec, ok := r.Formats[strings.ToLower(tree.Suffix(path.Base(relPath)))]
	switch {
	case override.Format == "":
	case ok:
		spec.Format = override.Format
	default:
		spec = FormatSpec{Format: override.Format, TimestampFix: TimestampFixNone}
		spec.Width, spec.Height = DefaultGeometry(override.Format)
		ok = true
	}
	if ok && override.TimestampFix != "" {
		spec.TimestampFix = override.TimestampFix
	}
	return spec, ok
}

// DirectoryMetadataFor returns the metadata attached to the top-level source
// directory containing relPath.
func (r *Recipe) DirectoryMetadataFor(relPath string) map[string]any {
	top, _, found := strings.Cut(relPath, "/")
	if !found {
		return nil
	}
	return r.DirectoryMetadata[top]
}
