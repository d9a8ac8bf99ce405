// Package presets loads named dice notations from YAML.
//
// A catalog file lists presets as:
//
//	presets:
//	  - name: advantage
//	    notation: 2d20kh1
//	    description: Roll two d20 and keep the higher.
//
// Every notation is parsed when the catalog loads, so a catalog that loads
// only holds rollable presets.
package presets

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/dicenotation/internal/core/dice"
)

//go:embed defaults.yaml
var defaultCatalog []byte

// Preset is a named notation.
type Preset struct {
	Name        string          `yaml:"name"`
	Notation    string          `yaml:"notation"`
	Description string          `yaml:"description"`
	Expression  dice.Expression `yaml:"-"`
}

type document struct {
	Presets []Preset `yaml:"presets"`
}

// Catalog is an immutable set of presets keyed by lower-case name.
type Catalog struct {
	byName map[string]Preset
	names  []string
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	catalog, err := Parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("load default presets: %w", err)
	}
	return catalog, nil
}

// Load returns the catalog at path, or the bundled one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets %s: %w", path, err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load presets %s: %w", path, err)
	}
	return catalog, nil
}

// Parse decodes a YAML catalog and validates every preset.
func Parse(data []byte) (*Catalog, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var doc document
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("presets document is empty")
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	catalog := &Catalog{byName: make(map[string]Preset, len(doc.Presets))}
	for i, preset := range doc.Presets {
		name := normalizeName(preset.Name)
		if name == "" {
			return nil, fmt.Errorf("preset %d: name is required", i+1)
		}
		if _, exists := catalog.byName[name]; exists {
			return nil, fmt.Errorf("preset %q is defined more than once", name)
		}
		expr, err := dice.Parse(preset.Notation)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		preset.Name = name
		preset.Notation = strings.TrimSpace(preset.Notation)
		preset.Description = strings.TrimSpace(preset.Description)
		preset.Expression = expr
		catalog.byName[name] = preset
		catalog.names = append(catalog.names, name)
	}
	sort.Strings(catalog.names)
	return catalog, nil
}

// Lookup finds a preset by name, ignoring case and surrounding space.
func (c *Catalog) Lookup(name string) (Preset, bool) {
	if c == nil {
		return Preset{}, false
	}
	preset, ok := c.byName[normalizeName(name)]
	return preset, ok
}

// List returns the presets sorted by name.
func (c *Catalog) List() []Preset {
	if c == nil {
		return nil
	}
	out := make([]Preset, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.byName[name])
	}
	return out
}

// Len returns the number of presets.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
