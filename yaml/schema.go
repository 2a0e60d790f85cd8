package yaml

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/oj"
	"github.com/xeipuuv/gojsonschema"
)

// graphSchema is the JSON schema for graph documents. Pins accept the
// string form or the [nodeId, position] pair form.
const graphSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "$id": "https://github.com/fibo/PoC-dflow/graph.schema.json",
  "type": "object",
  "required": ["name"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "args": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "outs": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1}
        }
      }
    },
    "pipes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "additionalProperties": false,
        "properties": {
          "from": {"$ref": "#/definitions/pin"},
          "to": {"$ref": "#/definitions/pin"}
        }
      }
    },
    "funcs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "code"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "args": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "code": {"type": "string", "minLength": 1}
        }
      }
    },
    "graphs": {"type": "array", "items": {"$ref": "#"}}
  },
  "definitions": {
    "pin": {
      "oneOf": [
        {"type": "string", "minLength": 1},
        {
          "type": "array",
          "minItems": 1,
          "maxItems": 2,
          "items": [
            {"type": "string", "minLength": 1},
            {"type": "integer", "minimum": 0}
          ]
        }
      ]
    }
  }
}`

// ValidateSchema checks the document against the graph JSON schema. It
// complements Validate: the schema enforces shape, Validate enforces
// referential rules the schema cannot express.
func ValidateSchema(doc *GraphDocument) error {
	schemaLoader := gojsonschema.NewStringLoader(graphSchema)
	documentLoader := gojsonschema.NewStringLoader(oj.JSON(doc.value()))

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("yaml: schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("yaml: invalid graph document: %s", strings.Join(messages, "; "))
}
