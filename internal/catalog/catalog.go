// Package catalog holds the ordered table of models the harness runs and
// their expected square input resolution.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

//go:embed default.yaml
var defaultCatalog []byte

// Entry is one catalog model.
type Entry struct {
	Name       string `mapstructure:"name"`
	Resolution int    `mapstructure:"resolution"`
	// USIEval marks models trained with USI preprocessing (no mean/std
	// normalization, 0.95 crop) for the validation pass.
	USIEval    bool   `mapstructure:"usi_eval"`
	InputName  string `mapstructure:"input_name"`
	OutputName string `mapstructure:"output_name"`
}

// Catalog is an immutable ordered list of entries.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

type catalogFile struct {
	Models []Entry `mapstructure:"models"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultCatalog)); err != nil {
		return nil, fmt.Errorf("read built-in catalog: %w", err)
	}

	return decode(v, "built-in catalog")
}

// Load reads a catalog file. The format follows the file extension
// (yaml, json or toml).
func Load(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	return decode(v, path)
}

// LoadOrDefault loads path, or the built-in catalog when path is empty.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	return Load(path)
}

// New builds a catalog from entries, applying the same validation as Load.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, errors.New("catalog has no models")
	}

	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}

	for i, e := range entries {
		e.Name = norm.NFC.String(strings.TrimSpace(e.Name))
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry %d has empty name", i)
		}

		if e.Resolution < 1 {
			return nil, fmt.Errorf("catalog entry %q has invalid resolution %d", e.Name, e.Resolution)
		}

		if _, exists := c.index[e.Name]; exists {
			return nil, fmt.Errorf("duplicate model name %q in catalog", e.Name)
		}

		if e.InputName == "" {
			e.InputName = DefaultInputName
		}

		if e.OutputName == "" {
			e.OutputName = DefaultOutputName
		}

		c.index[e.Name] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	return c, nil
}

func decode(v *viper.Viper, source string) (*Catalog, error) {
	var f catalogFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}

	c, err := New(f.Models)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	return c, nil
}

// Entries returns a copy of the entries in declared order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

func (c *Catalog) Lookup(name string) (Entry, bool) {
	i, ok := c.index[norm.NFC.String(name)]
	if !ok {
		return Entry{}, false
	}

	return c.entries[i], true
}

// Select returns the entries whose name matches filter, in declared order.
func (c *Catalog) Select(filter string) []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if Matches(e.Name, filter) {
			out = append(out, e)
		}
	}

	return out
}

// Matches reports whether name contains filter. The comparison is
// case-sensitive; an empty filter matches every name.
func Matches(name, filter string) bool {
	if filter == "" {
		return true
	}

	return strings.Contains(norm.NFC.String(name), norm.NFC.String(filter))
}
