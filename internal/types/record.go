// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import "strings"

// Column describes one column of a row-set.
type Column struct {
	Name         string // Column name as reported by the catalog or the file header
	DeclaredType string // Advisory only; empty for file sources
}

// Schema is the ordered column list of a row-set.
// It is computed once per run and never modified afterwards.
type Schema struct {
	Columns []Column
}

// NewSchema builds a Schema from column names, leaving declared types empty.
func NewSchema(names ...string) Schema {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n}
	}
	return Schema{Columns: cols}
}

// Len returns the number of columns.
func (s Schema) Len() int {
	return len(s.Columns)
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// IndexFold is like Index but ignores case.
func (s Schema) IndexFold(name string) int {
	for i, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Record is one row, aligned positionally with a Schema.
type Record []any

// KeyedRecord is a mapped record together with its normalized primary key and
// its 1-based position in the source.
type KeyedRecord struct {
	Key    string
	Row    int
	Values Record
}
