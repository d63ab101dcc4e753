// Package pattern loads pattern lists from YAML files.
package pattern

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/praetorian-inc/sieve/pkg/types"
	"gopkg.in/yaml.v3"
)

// DefaultBuiltin names the embedded pattern set used when none is given.
const DefaultBuiltin = "builtin"

// Loader handles loading pattern sets from YAML files.
type Loader struct {
	fs fs.FS // embedded filesystem for built-in pattern sets
}

// NewLoader creates a loader with built-in pattern sets from the embedded filesystem.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinPatternsFS,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// Load parses a pattern set from YAML bytes.
// Patterns without an explicit id get their position in the file.
func (l *Loader) Load(data []byte) (*types.PatternSet, error) {
	var file yamlPatternsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("no patterns found in YAML")
	}

	ps := types.NewPatternSet()
	for i, yp := range file.Patterns {
		p, err := convertYAMLPattern(i, yp)
		if err != nil {
			return nil, err
		}
		ps.Add(p)
	}
	return ps, nil
}

// LoadFile loads a pattern set from a YAML file path.
func (l *Loader) LoadFile(path string) (*types.PatternSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	ps, err := l.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, nil
}

// LoadBuiltin loads the named built-in pattern set (DefaultBuiltin when empty).
func (l *Loader) LoadBuiltin(name string) (*types.PatternSet, error) {
	if name == "" {
		name = DefaultBuiltin
	}
	path := filepath.ToSlash(filepath.Join("patterns", name+".yml"))
	data, err := fs.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	ps, err := l.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, nil
}

// BuiltinNames lists the embedded pattern sets.
func (l *Loader) BuiltinNames() ([]string, error) {
	entries, err := fs.ReadDir(l.fs, "patterns")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yml" {
			continue
		}
		names = append(names, e.Name()[:len(e.Name())-len(".yml")])
	}
	sort.Strings(names)
	return names, nil
}

func convertYAMLPattern(pos int, yp yamlPattern) (types.Pattern, error) {
	p := types.Pattern{
		ID:   uint(pos),
		Text: yp.Text,
	}
	if yp.ID != nil {
		p.ID = *yp.ID
	}
	for _, name := range yp.Flags {
		flag, err := types.ParseFlag(name)
		if err != nil {
			return types.Pattern{}, fmt.Errorf("pattern %d: %w", pos, err)
		}
		p.Flags |= flag
	}
	return p, nil
}
