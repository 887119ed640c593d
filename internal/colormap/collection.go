package colormap

import (
	"slices"
)

// Collection is an ordered set of tables as handed over by configuration.
// Duplicate names are kept so consumers can decide how to treat them.
// A collection is immutable; its pointer identity is a valid cache key.
type Collection struct {
	tables []*Table
}

// NewCollection keeps tables in the given order, duplicates included.
func NewCollection(tables ...*Table) *Collection {
	return &Collection{tables: slices.Clone(tables)}
}

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tables)
}

// Tables returns the tables in configuration order.
func (c *Collection) Tables() []*Table {
	if c == nil {
		return nil
	}
	return slices.Clone(c.tables)
}

// Lookup finds a table by name. If the name is duplicated, the last one wins.
func (c *Collection) Lookup(name string) (*Table, bool) {
	if c == nil {
		return nil, false
	}
	for i := len(c.tables) - 1; i >= 0; i-- {
		if c.tables[i].name == name {
			return c.tables[i], true
		}
	}
	return nil, false
}

// Names returns the distinct table names, sorted.
func (c *Collection) Names() []string {
	seen := map[string]struct{}{}
	names := []string{}
	for _, t := range c.Tables() {
		if _, ok := seen[t.name]; ok {
			continue
		}
		seen[t.name] = struct{}{}
		names = append(names, t.name)
	}
	slices.Sort(names)
	return names
}

// Duplicates returns every name that appears more than once, sorted.
func (c *Collection) Duplicates() []string {
	counts := map[string]int{}
	for _, t := range c.Tables() {
		counts[t.name]++
	}
	dups := []string{}
	for name, n := range counts {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	slices.Sort(dups)
	return dups
}
