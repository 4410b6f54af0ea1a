// Package tools turns component payloads into provider-neutral tool
// definitions. A tool is named <componentId>__<actionName>.
package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/docker/angi/pkg/component"
)

type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// Name joins a component id and an action name.
func Name(componentID, actionName string) string {
	return componentID + component.Separator + actionName
}

// SplitName splits a tool name on the first separator. Action names may
// contain the separator, component ids may not.
func SplitName(name string) (componentID, actionName string, ok bool) {
	componentID, actionName, ok = strings.Cut(name, component.Separator)
	if !ok || componentID == "" || actionName == "" {
		return "", "", false
	}
	return componentID, actionName, true
}

// ValidateIdentifier reports whether the pair can be joined into a tool name
// that SplitName maps back to the same pair.
func ValidateIdentifier(componentID, actionName string) error {
	if err := component.ValidateID(componentID); err != nil {
		return err
	}
	return component.ValidateActionName(actionName)
}

// Build returns one tool per action of every writable component, in payload
// order. Actions whose names cannot round-trip through a tool name are
// skipped.
func Build(components []component.Payload) []Tool {
	var out []Tool
	for _, c := range components {
		if !c.Permissions.CanWrite() {
			continue
		}
		for pair := c.Actions.Oldest(); pair != nil; pair = pair.Next() {
			if err := ValidateIdentifier(c.ID, pair.Key); err != nil {
				slog.Warn("Skipping action with invalid tool name", "component", c.ID, "action", pair.Key, "error", err)
				continue
			}
			out = append(out, Tool{
				Name:        Name(c.ID, pair.Key),
				Description: fmt.Sprintf("[%s] %s", c.ID, pair.Value.Description),
				InputSchema: InputSchema(pair.Value),
			})
		}
	}
	return out
}

// InputSchema builds the object schema of an action: one property per
// parameter, all of them required.
func InputSchema(action component.ActionSpec) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
		Required:   []string{},
	}
	for pair := action.Schema.Oldest(); pair != nil; pair = pair.Next() {
		schema.Properties[pair.Key] = &jsonschema.Schema{
			Type:        pair.Value,
			Description: pair.Key,
		}
		schema.Required = append(schema.Required, pair.Key)
		schema.PropertyOrder = append(schema.PropertyOrder, pair.Key)
	}
	return schema
}

// SchemaToMap renders a schema as a generic JSON object, as expected by
// provider SDKs that take untyped parameters.
func SchemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	buf, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, err
	}
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	return m, nil
}
