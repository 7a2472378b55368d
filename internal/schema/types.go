package schema

import "sort"

// Formats understood by the predicate compiler.
const (
	FormatDateTime       = "date-time"
	FormatDateTimeNoYear = "date-time-no-year"
)

// Relation kinds.
const (
	BelongsTo  = "belongs_to"
	HasMany    = "has_many"
	ManyToMany = "many_to_many"
)

// EntitySchema describes the filterable and sortable fields of one entity.
type EntitySchema struct {
	Entity     string
	Table      string
	PrimaryKey string
	Fields     map[string]FieldSchema
}

// FieldSchema describes one property of an entity schema.
type FieldSchema struct {
	Name     string
	Types    []string // sorted, lowercase, unique
	Format   string
	Relation *Relation
}

// Relation marks a field as addressing another entity. It replaces any guess
// based on the field name.
type Relation struct {
	Attribute  string // entity attribute holding the related entity
	Key        string // primary key attribute of the related entity
	MatchBy    string // display-name attribute used by list filters
	ForeignKey bool   // filter values address Key rather than MatchBy
	Kind       string
	Table      string
	FK         string
	Through    string
	ThroughFK  string
}

// Field returns the schema of name. Absence means "unfilterable", never an error.
func (s EntitySchema) Field(name string) (FieldSchema, bool) {
	f, ok := s.Fields[name]
	return f, ok
}

// FieldNames returns the property names in lexical order.
func (s EntitySchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RelationByAttribute finds the relation whose entity attribute is attr.
func (s EntitySchema) RelationByAttribute(attr string) (*Relation, bool) {
	for _, name := range s.FieldNames() {
		if rel := s.Fields[name].Relation; rel != nil && rel.Attribute == attr {
			return rel, true
		}
	}
	return nil, false
}

// Clone returns a deep copy that shares no memory with s.
func (s EntitySchema) Clone() EntitySchema {
	out := s
	out.Fields = make(map[string]FieldSchema, len(s.Fields))
	for name, f := range s.Fields {
		out.Fields[name] = f.Clone()
	}
	return out
}

func (f FieldSchema) Clone() FieldSchema {
	out := f
	out.Types = append([]string(nil), f.Types...)
	if f.Relation != nil {
		rel := *f.Relation
		out.Relation = &rel
	}
	return out
}

func (f FieldSchema) HasType(t string) bool {
	i := sort.SearchStrings(f.Types, t)
	return i < len(f.Types) && f.Types[i] == t
}

// IsNumeric reports whether the declared type set contains integer or number.
func (f FieldSchema) IsNumeric() bool {
	return f.HasType("integer") || f.HasType("number")
}

// IsIntegral reports an integer field that does not also accept fractions.
func (f FieldSchema) IsIntegral() bool {
	return f.HasType("integer") && !f.HasType("number")
}
