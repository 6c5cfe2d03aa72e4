package convert

import (
	"path"

	"github.com/neuromorphicsystems/undrdg/pkg/recipe"
	"github.com/neuromorphicsystems/undrdg/pkg/tree"
)

// Actions reported by Plan.
const (
	ActionConvert = "convert"
	ActionCopy    = "copy"
	ActionSkip    = "skip"
)

// PlannedFile is what a conversion would do with one source file.
type PlannedFile struct {
	Source string `json:"source" yaml:"source"`
	// Target is the slash-separated output name relative to the dataset
	// root, without the extension of typed files.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	Action string `json:"action" yaml:"action"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	Date   string `json:"date,omitempty" yaml:"date,omitempty"`
}

// Plan lists the conversion of every source file without writing anything.
// Files rejected by the recipe (unmatched error policy or invalid names)
// make Plan fail like Run would.
func Plan(r *recipe.Recipe) ([]PlannedFile, error) {
	tasks, err := tree.Plan(r.Source, r.TreeRules())
	if err != nil {
		return nil, err
	}
	c := New(r)
	planned := make([]PlannedFile, 0, len(tasks))
	for _, task := range tasks {
		file := PlannedFile{Source: task.RelPath}
		override, _ := r.Override(task.RelPath)
		spec, matched := r.FormatFor(task.RelPath, override)
		switch {
		case override.Skip:
			file.Action = ActionSkip
		case !matched && r.Unmatched == recipe.UnmatchedSkip:
			file.Action = ActionSkip
		case !matched && r.Unmatched == recipe.UnmatchedError:
			return nil, unmatchedError(task.Source, task.RelPath)
		default:
			name, date, err := c.outputName(task.RelPath, task.TargetName, override, matched)
			if err != nil {
				return nil, err
			}
			file.Target = path.Join(task.TargetPath, name)
			file.Date = date
			file.Action = ActionCopy
			if matched {
				file.Action = ActionConvert
				file.Format = spec.Format
			}
		}
		planned = append(planned, file)
	}
	return planned, nil
}
