package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidParams = errors.New("invalid action parameters")

func validateParams(schema map[string]string, params map[string]any) error {
	properties := map[string]any{}
	required := []string{}
	for name, typ := range schema {
		properties[name] = map[string]any{"type": typ}
		required = append(required, name)
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(doc), gojsonschema.NewGoLoader(params))
	if err != nil {
		// Unknown type tags make the schema itself invalid; let the handler decide.
		slog.Debug("Skipping parameter validation", "error", err)
		return nil
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(msgs, "; "))
}
