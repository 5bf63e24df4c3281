// Package migrator moves one source row-set into one target table: it maps
// columns, makes sure the target exists, detects and resolves primary key
// conflicts and loads the change set in transactional chunks.
package migrator

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// Mapping maps source column names to target column names in declaration order.
type Mapping = orderedmap.OrderedMap[string, string]

// NewMapping builds a Mapping from configured entries. Source names must be unique.
func NewMapping(entries []config.MappingEntry) (*Mapping, error) {
	m := orderedmap.NewOrderedMap[string, string]()
	for _, e := range entries {
		if _, exists := m.Get(e.Source); exists {
			return nil, fmt.Errorf("source column %q is mapped more than once", e.Source)
		}
		m.Set(e.Source, e.Target)
	}
	return m, nil
}

// IdentityMapping maps every column of schema onto itself.
func IdentityMapping(schema types.Schema) *Mapping {
	m := orderedmap.NewOrderedMap[string, string]()
	for _, c := range schema.Columns {
		m.Set(c.Name, c.Name)
	}
	return m
}

// Projection is the compiled form of a Mapping against one source schema.
type Projection struct {
	Target  types.Schema // Target columns in mapping declaration order
	indexes []int        // Source position of each target column
	width   int          // Source schema width
}

// ApplyMapping checks mapping against the source schema and compiles it.
// An empty mapping is the identity. Every mapping key must be a source column;
// in strict mode every source column must also be mapped.
func ApplyMapping(schema types.Schema, mapping *Mapping, strict bool) (*Projection, error) {
	if mapping == nil || mapping.Len() == 0 {
		mapping = IdentityMapping(schema)
	}

	p := &Projection{
		indexes: make([]int, 0, mapping.Len()),
		width:   schema.Len(),
	}
	targets := make(map[string]string, mapping.Len())

	for el := mapping.Front(); el != nil; el = el.Next() {
		idx := schema.Index(el.Key)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownSourceColumn, el.Key)
		}
		if prev, dup := targets[el.Value]; dup {
			return nil, fmt.Errorf("source columns %q and %q both map to target column %q", prev, el.Key, el.Value)
		}
		targets[el.Value] = el.Key

		p.indexes = append(p.indexes, idx)
		p.Target.Columns = append(p.Target.Columns, types.Column{
			Name:         el.Value,
			DeclaredType: schema.Columns[idx].DeclaredType,
		})
	}

	if strict {
		for _, c := range schema.Columns {
			if _, mapped := mapping.Get(c.Name); !mapped {
				return nil, fmt.Errorf("%w: %q", types.ErrUnmappedColumn, c.Name)
			}
		}
	}

	return p, nil
}

// Apply projects a source record onto the target schema.
func (p *Projection) Apply(rec types.Record) (types.Record, error) {
	if len(rec) != p.width {
		return nil, fmt.Errorf("%w: got %d values, source has %d columns", types.ErrRaggedRow, len(rec), p.width)
	}
	out := make(types.Record, len(p.indexes))
	for i, idx := range p.indexes {
		out[i] = rec[idx]
	}
	return out, nil
}

// Dropped returns the source columns the projection leaves out.
func (p *Projection) Dropped(schema types.Schema) []string {
	used := make(map[int]bool, len(p.indexes))
	for _, idx := range p.indexes {
		used[idx] = true
	}
	var dropped []string
	for i, c := range schema.Columns {
		if !used[i] {
			dropped = append(dropped, c.Name)
		}
	}
	return dropped
}
