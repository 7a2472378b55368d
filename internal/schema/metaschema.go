package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// metaSchema constrains entity schema documents. Field objects may carry
// presentation keys (label, placeholder, errorMessage...) which are ignored.
const metaSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["properties"],
  "properties": {
    "table":      {"type": "string", "minLength": 1},
    "primaryKey": {"type": "string", "minLength": 1},
    "properties": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/field"}
    }
  },
  "definitions": {
    "typeName": {
      "type": "string",
      "enum": ["string", "integer", "number", "boolean", "array", "object", "null"]
    },
    "field": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {
          "oneOf": [
            {"$ref": "#/definitions/typeName"},
            {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/typeName"}}
          ]
        },
        "format":     {"type": "string", "minLength": 1},
        "x-relation": {"$ref": "#/definitions/relation"}
      }
    },
    "relation": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "attribute":  {"type": "string", "minLength": 1},
        "key":        {"type": "string", "minLength": 1},
        "matchBy":    {"type": "string", "minLength": 1},
        "foreignKey": {"type": "boolean"},
        "kind":       {"type": "string", "enum": ["belongs_to", "has_many", "many_to_many"]},
        "table":      {"type": "string", "minLength": 1},
        "fk":         {"type": "string", "minLength": 1},
        "through":    {"type": "string", "minLength": 1},
        "throughFk":  {"type": "string", "minLength": 1}
      }
    }
  }
}`

var (
	metaOnce     sync.Once
	metaCompiled *gojsonschema.Schema
	metaErr      error
)

func compiledMetaSchema() (*gojsonschema.Schema, error) {
	metaOnce.Do(func() {
		metaCompiled, metaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(metaSchema))
	})
	return metaCompiled, metaErr
}

// Validate checks a decoded schema document against the meta-schema.
func Validate(doc any) error {
	meta, err := compiledMetaSchema()
	if err != nil {
		return fmt.Errorf("compile meta-schema: %w", err)
	}
	result, err := meta.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("document invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
