package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// metadataSchema constrains what the metadata models may return. All
// fields must be present; empty strings mean the model could not tell.
const metadataSchema = `{
  "type": "object",
  "properties": {
    "date": {"type": "string", "pattern": "^(\\d{8})?$"},
    "party": {"type": "string"},
    "case": {"type": "string"},
    "description": {"type": "string"}
  },
  "required": ["date", "party", "case", "description"],
  "additionalProperties": false
}`

var compiledMetadataSchema = mustCompileMetadataSchema()

func mustCompileMetadataSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("metadata.json", strings.NewReader(metadataSchema)); err != nil {
		panic(fmt.Sprintf("providers: load metadata schema: %v", err))
	}
	schema, err := compiler.Compile("metadata.json")
	if err != nil {
		panic(fmt.Sprintf("providers: compile metadata schema: %v", err))
	}
	return schema
}

// ValidateMetadataJSON checks a raw model response against the metadata
// schema before it is trusted for file naming.
func ValidateMetadataJSON(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid metadata JSON: %w", err)
	}
	if err := compiledMetadataSchema.Validate(doc); err != nil {
		return fmt.Errorf("metadata does not match schema: %w", err)
	}
	return nil
}
