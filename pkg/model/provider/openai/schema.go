package openai

import (
	"slices"

	"github.com/openai/openai-go/v3/shared"

	"github.com/docker/angi/pkg/tools"
)

// convertParametersToSchema renders an action schema the way the Chat
// Completions API accepts it.
func convertParametersToSchema(tool tools.Tool) (shared.FunctionParameters, error) {
	p, err := tools.SchemaToMap(tool.InputSchema)
	if err != nil {
		return nil, err
	}

	return fixSchemaArrayItems(closeObject(p)), nil
}

// closeObject forbids extra parameters and makes sure "required" is never
// null.
func closeObject(schema shared.FunctionParameters) shared.FunctionParameters {
	if _, ok := schema["required"]; !ok {
		schema["required"] = []any{}
	}
	schema["additionalProperties"] = false
	return schema
}

// Components may declare a bare "array" parameter. OpenAI rejects array
// schemas without items.
func fixSchemaArrayItems(schema shared.FunctionParameters) shared.FunctionParameters {
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return schema
	}

	for _, propValue := range properties {
		prop, ok := propValue.(map[string]any)
		if !ok {
			continue
		}

		isArray := false
		switch t := prop["type"].(type) {
		case string:
			isArray = t == "array"
		case []any:
			isArray = slices.Contains(t, any("array"))
		}
		if !isArray {
			continue
		}

		if _, ok := prop["items"]; !ok {
			prop["items"] = map[string]any{}
		}
	}

	return schema
}
