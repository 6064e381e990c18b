package geo

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var defaultTable []byte

// Country is one row of the reference table.
type Country struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Lat     float64  `yaml:"lat"`
	Lon     float64  `yaml:"lon"`
}

// Table is an immutable country lookup keyed by normalised name or alias.
type Table struct {
	byKey map[string]Country
	size  int
}

// LoadTable parses the embedded reference table.
func LoadTable() (*Table, error) {
	return ParseTable(defaultTable)
}

// ParseTable builds a table from YAML rows. Duplicate keys are rejected.
func ParseTable(raw []byte) (*Table, error) {
	var rows []Country
	if err := yaml.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parse country table: %w", err)
	}

	t := &Table{byKey: make(map[string]Country, len(rows)*2)}
	for _, row := range rows {
		row.Name = strings.TrimSpace(row.Name)
		if row.Name == "" {
			return nil, fmt.Errorf("country table: row without name")
		}
		for _, key := range append([]string{row.Name}, row.Aliases...) {
			k := normalizeKey(key)
			if k == "" {
				continue
			}
			if prev, ok := t.byKey[k]; ok {
				return nil, fmt.Errorf("country table: %q maps to both %s and %s", key, prev.Name, row.Name)
			}
			t.byKey[k] = row
		}
		t.size++
	}

	return t, nil
}

// Lookup returns the canonical name for a country name or alias.
func (t *Table) Lookup(name string) (string, bool) {
	c, ok := t.find(name)
	if !ok {
		return "", false
	}
	return c.Name, true
}

// Coordinates returns the map position of a country.
func (t *Table) Coordinates(name string) (lat, lon float64, ok bool) {
	c, ok := t.find(name)
	if !ok {
		return 0, 0, false
	}
	return c.Lat, c.Lon, true
}

// Len is the number of distinct countries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

func (t *Table) find(name string) (Country, bool) {
	if t == nil {
		return Country{}, false
	}
	c, ok := t.byKey[normalizeKey(name)]
	return c, ok
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
