package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "ema-assistant configuration"
	return json.MarshalIndent(schema, "", "  ")
}
