// Package campaign routes postbacks to campaign groups by matching sub1
// against an ordered table of substring keys.
package campaign

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownGroup is returned when a label does not name any configured group.
var ErrUnknownGroup = errors.New("unknown campaign group")

// Group is one row of the routing table.
type Group struct {
	Label  string   `yaml:"label" json:"label"`
	Keys   []string `yaml:"keys" json:"keys"`
	File   string   `yaml:"file" json:"file"`
	Income bool     `yaml:"income" json:"income"`
}

// Table is an immutable, ordered list of groups. The first group owning a
// key contained in sub1 wins.
type Table struct {
	groups []Group
}

type fileTable struct {
	Groups []Group `yaml:"groups"`
}

var defaultGroups = []Group{
	{Label: "krolik", Keys: []string{"krolik", "banknota"}, File: "krolik.json", Income: true},
	{Label: "1russ", Keys: []string{"1russ", "darya", "vadimtop"}, File: "1russ.json", Income: true},
	{Label: "insta", Keys: []string{"insta", "kud"}, File: "insta.json", Income: true},
	{Label: "utkavalutkarf", Keys: []string{"utkavalutkarf"}, File: "utkavalutkarf.json", Income: true},
	{Label: "monzi", Keys: []string{"monzi"}, File: "monzi.json", Income: true},
	{Label: "lisicka", Keys: []string{"lisicka"}, File: "lisicka.json", Income: true},
	{Label: "ptichka", Keys: []string{"ptichka"}, File: "ptichka.json", Income: true},
	{Label: "kupr", Keys: []string{"kupr"}, File: "kupr.json", Income: true},
	{Label: "nalickinrf", Keys: []string{"nalickinrf"}, File: "nalickinrf.json", Income: true},
	{Label: "zaymdozp", Keys: []string{"zaymdozp"}, File: "zaymdozp.json", Income: true},
	{Label: "pchelkazaim", Keys: []string{"pchelkazaim"}, File: "pchelkazaim.json", Income: true},
	{Label: "karakoz", Keys: []string{"karakoz"}, File: "karakoz.json", Income: false},
}

// Default returns the built-in routing table.
func Default() *Table {
	t, err := New(defaultGroups)
	if err != nil {
		panic(err)
	}
	return t
}

// New validates groups and builds a table preserving their order.
func New(groups []Group) (*Table, error) {
	if len(groups) == 0 {
		return nil, errors.New("campaign table is empty")
	}

	seen := make(map[string]bool, len(groups))
	out := make([]Group, 0, len(groups))
	for i, g := range groups {
		if strings.TrimSpace(g.Label) == "" {
			return nil, fmt.Errorf("group %d: label is required", i)
		}
		if seen[g.Label] {
			return nil, fmt.Errorf("group %q: duplicate label", g.Label)
		}
		seen[g.Label] = true

		if g.File == "" || filepath.Base(g.File) != g.File || filepath.Ext(g.File) != ".json" {
			return nil, fmt.Errorf("group %q: file must be a bare .json name, got %q", g.Label, g.File)
		}

		keys := make([]string, 0, len(g.Keys))
		for _, k := range g.Keys {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("group %q: at least one key is required", g.Label)
		}

		g.Keys = keys
		out = append(out, g)
	}

	return &Table{groups: out}, nil
}

// Load reads a YAML routing table of the form:
//
//	groups:
//	  - label: krolik
//	    keys: [krolik, banknota]
//	    file: krolik.json
//	    income: true
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read campaign table: %w", err)
	}

	var ft fileTable
	if err := yaml.Unmarshal(data, &ft); err != nil {
		return nil, fmt.Errorf("parse campaign table: %w", err)
	}

	return New(ft.Groups)
}

// Match returns the first group whose key is a substring of the lower-cased sub1.
func (t *Table) Match(sub1 string) (Group, bool) {
	s := strings.ToLower(sub1)
	for _, g := range t.groups {
		for _, k := range g.Keys {
			if strings.Contains(s, k) {
				return g, true
			}
		}
	}
	return Group{}, false
}

// Lookup finds a group by its label.
func (t *Table) Lookup(label string) (Group, error) {
	for _, g := range t.groups {
		if g.Label == label {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("%w: %s", ErrUnknownGroup, label)
}

// Groups returns a copy of the table rows in match order.
func (t *Table) Groups() []Group {
	out := make([]Group, len(t.groups))
	copy(out, t.groups)
	return out
}
