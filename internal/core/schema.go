package core

import (
	"fmt"
	"regexp"
	"sort"
)

// identifierPattern limits table and field names to plain SQL identifiers.
// Schemas are static configuration, so this is checked once at registry
// construction rather than per query.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// TableSchema describes one logical table: its natural key, the full field
// set, and the subset of fields that may change without override.
type TableSchema struct {
	Name          string
	NaturalKey    []string
	Fields        []string
	MutableFields []string

	fieldSet   map[string]bool
	mutableSet map[string]bool
	keySet     map[string]bool
}

// HasField reports whether name belongs to the table's field set.
func (s TableSchema) HasField(name string) bool { return s.fieldSet[name] }

// IsMutable reports whether name may change without override.
func (s TableSchema) IsMutable(name string) bool { return s.mutableSet[name] }

// IsKeyField reports whether name is part of the natural key.
func (s TableSchema) IsKeyField(name string) bool { return s.keySet[name] }

// Registry holds the table schemas of one product. It is populated once at
// adapter construction and read-only afterward, so it is freely shared
// across all records without locking.
type Registry struct {
	tables map[string]TableSchema
}

// NewRegistry validates and indexes the given schemas. It enforces the
// schema invariants up front: the natural key and mutable set must be
// subsets of the field set, and natural-key fields are never mutable.
func NewRegistry(schemas []TableSchema) (*Registry, error) {
	tables := make(map[string]TableSchema, len(schemas))

	for _, s := range schemas {
		if !identifierPattern.MatchString(s.Name) {
			return nil, fmt.Errorf("schema %q: invalid table name", s.Name)
		}
		if len(s.NaturalKey) == 0 {
			return nil, fmt.Errorf("schema %s: natural key is empty", s.Name)
		}
		if _, dup := tables[s.Name]; dup {
			return nil, fmt.Errorf("schema %s: duplicate table", s.Name)
		}

		s.fieldSet = make(map[string]bool, len(s.Fields))
		for _, f := range s.Fields {
			if !identifierPattern.MatchString(f) {
				return nil, fmt.Errorf("schema %s: invalid field name %q", s.Name, f)
			}
			s.fieldSet[f] = true
		}

		s.keySet = make(map[string]bool, len(s.NaturalKey))
		for _, k := range s.NaturalKey {
			if !s.fieldSet[k] {
				return nil, fmt.Errorf("schema %s: natural key field %q not in field set", s.Name, k)
			}
			s.keySet[k] = true
		}

		s.mutableSet = make(map[string]bool, len(s.MutableFields))
		for _, m := range s.MutableFields {
			if !s.fieldSet[m] {
				return nil, fmt.Errorf("schema %s: mutable field %q not in field set", s.Name, m)
			}
			if s.keySet[m] {
				return nil, fmt.Errorf("schema %s: natural key field %q cannot be mutable", s.Name, m)
			}
			s.mutableSet[m] = true
		}

		tables[s.Name] = s
	}

	return &Registry{tables: tables}, nil
}

// MustRegistry is NewRegistry for statically-defined product schemas, where
// a validation failure is a programming error.
func MustRegistry(schemas []TableSchema) *Registry {
	r, err := NewRegistry(schemas)
	if err != nil {
		panic(err)
	}
	return r
}

// SchemaFor returns the schema registered for table, or ErrUnknownTable.
func (r *Registry) SchemaFor(table string) (TableSchema, error) {
	s, ok := r.tables[table]
	if !ok {
		return TableSchema{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return s, nil
}

// Tables returns the registered table names, sorted.
func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for n := range r.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
