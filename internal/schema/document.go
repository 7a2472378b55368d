package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Document is one raw schema document as delivered by a Source.
type Document struct {
	Entity string
	Format string
	Data   []byte
	Origin string // file path or redis key, for error messages
}

type rawDocument struct {
	Table      string                      `json:"table"`
	PrimaryKey string                      `json:"primaryKey"`
	Properties map[string]rawFieldDocument `json:"properties"`
}

type rawFieldDocument struct {
	Type     typeList     `json:"type"`
	Format   string       `json:"format"`
	Relation *rawRelation `json:"x-relation"`
}

type rawRelation struct {
	Attribute  string `json:"attribute"`
	Key        string `json:"key"`
	MatchBy    string `json:"matchBy"`
	ForeignKey bool   `json:"foreignKey"`
	Kind       string `json:"kind"`
	Table      string `json:"table"`
	FK         string `json:"fk"`
	Through    string `json:"through"`
	ThroughFK  string `json:"throughFk"`
}

// typeList accepts both "type": "string" and "type": ["string", "null"].
type typeList []string

func (t *typeList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*t = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*t = typeList{one}
	return nil
}

// Parse decodes, meta-validates and normalises a document.
func Parse(doc Document) (EntitySchema, error) {
	generic, err := decodeGeneric(doc)
	if err != nil {
		return EntitySchema{}, fmt.Errorf("%s: %w", doc.Origin, err)
	}
	if err := Validate(generic); err != nil {
		return EntitySchema{}, fmt.Errorf("%s: %w", doc.Origin, err)
	}

	// generic -> typed through JSON keeps one decoding path for both formats
	normalized, err := json.Marshal(generic)
	if err != nil {
		return EntitySchema{}, fmt.Errorf("%s: %w", doc.Origin, err)
	}
	var raw rawDocument
	if err := json.Unmarshal(normalized, &raw); err != nil {
		return EntitySchema{}, fmt.Errorf("%s: %w", doc.Origin, err)
	}
	return raw.toEntitySchema(doc.Entity), nil
}

func decodeGeneric(doc Document) (any, error) {
	var generic map[string]any
	switch doc.Format {
	case FormatYAML:
		if err := yaml.Unmarshal(doc.Data, &generic); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(doc.Data, &generic); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported document format %q", doc.Format)
	}
	if generic == nil {
		return nil, fmt.Errorf("empty document")
	}
	return generic, nil
}

func (raw rawDocument) toEntitySchema(entity string) EntitySchema {
	s := EntitySchema{
		Entity:     entity,
		Table:      raw.Table,
		PrimaryKey: raw.PrimaryKey,
		Fields:     make(map[string]FieldSchema, len(raw.Properties)),
	}
	if s.Table == "" {
		s.Table = entity
	}
	if s.PrimaryKey == "" {
		s.PrimaryKey = "id"
	}
	for name, f := range raw.Properties {
		s.Fields[name] = FieldSchema{
			Name:     name,
			Types:    normalizeTypes(f.Type),
			Format:   f.Format,
			Relation: f.Relation.toRelation(name),
		}
	}
	return s
}

func normalizeTypes(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (r *rawRelation) toRelation(field string) *Relation {
	if r == nil {
		return nil
	}
	rel := &Relation{
		Attribute:  r.Attribute,
		Key:        r.Key,
		MatchBy:    r.MatchBy,
		ForeignKey: r.ForeignKey,
		Kind:       r.Kind,
		Table:      r.Table,
		FK:         r.FK,
		Through:    r.Through,
		ThroughFK:  r.ThroughFK,
	}
	if rel.Attribute == "" {
		rel.Attribute = relationAttribute(field)
	}
	if rel.Key == "" {
		rel.Key = "id"
	}
	if rel.MatchBy == "" {
		rel.MatchBy = "name"
	}
	if rel.Kind == "" {
		rel.Kind = BelongsTo
	}
	if rel.Table == "" {
		rel.Table = ToColumn(rel.Attribute)
	}
	if rel.FK == "" && rel.Kind == BelongsTo {
		rel.FK = ToColumn(rel.Attribute) + "_id"
	}
	return rel
}
