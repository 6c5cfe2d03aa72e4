package tree

import (
	"path"
	"path/filepath"
	"strings"
)

// Rule transforms or filters the nodes of the source tree.
// relPath is the slash-separated path of the node relative to the source root.
type Rule interface {
	Match(relPath string) bool
	Skip() bool
	Rename(name string) string
}

// Rename renames the node at an exact relative path.
type Rename struct {
	Path    string
	NewName string
}

// NewRename creates a Rename rule.
func NewRename(relPath, newName string) Rename {
	return Rename{Path: path.Clean(filepath.ToSlash(relPath)), NewName: newName}
}

func (r Rename) Match(relPath string) bool { return relPath == r.Path }
func (r Rename) Skip() bool                { return false }
func (r Rename) Rename(string) string      { return r.NewName }

// RenameExtension replaces the last suffix of matching nodes.
// An empty NewExtension removes the suffix.
type RenameExtension struct {
	Extension    string
	NewExtension string
}

// NewRenameExtension creates a RenameExtension rule.
func NewRenameExtension(extension, newExtension string) RenameExtension {
	return RenameExtension{Extension: extension, NewExtension: newExtension}
}

func (r RenameExtension) Match(relPath string) bool { return Suffix(path.Base(relPath)) == r.Extension }
func (r RenameExtension) Skip() bool                { return false }

func (r RenameExtension) Rename(name string) string {
	return Stem(name) + r.NewExtension
}

// SkipName skips every node with the given base name.
type SkipName struct {
	Name string
}

// NewSkipName creates a SkipName rule.
func NewSkipName(name string) SkipName {
	return SkipName{Name: name}
}

func (r SkipName) Match(relPath string) bool { return path.Base(relPath) == r.Name }
func (r SkipName) Skip() bool                { return true }
func (r SkipName) Rename(name string) string { return name }

// Apply runs the rules in order. It returns the new name of the node and
// false when a matching rule skips it.
func Apply(rules []Rule, relPath, name string) (string, bool) {
	for _, rule := range rules {
		if !rule.Match(relPath) {
			continue
		}
		if rule.Skip() {
			return "", false
		}
		name = rule.Rename(name)
	}
	return name, true
}

// Suffix returns the last extension of name, including the dot. A dot at
// the start or at the end of name does not start an extension, so
// ".bashrc" and "file." have none.
func Suffix(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

// Stem returns name without its Suffix.
func Stem(name string) string {
	return name[:len(name)-len(Suffix(name))]
}
