// Package prompt renders the system prompt describing registered components.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docker/angi/pkg/component"
)

var preamble = []string{
	"You are Angi, an AI assistant that can read and operate UI components on behalf of the user.",
	"When the user asks you to perform an action, use the provided tools to do it.",
	"When you perform actions, do so silently; just confirm briefly in text what you did.",
	"",
	"## Registered components:",
}

// BuildSystemPrompt describes every component. State is only included for
// components that grant read and carry a non-null state.
func BuildSystemPrompt(components []component.Payload) string {
	parts := append([]string(nil), preamble...)

	for _, c := range components {
		parts = append(parts, fmt.Sprintf("\n### %s (%s)", c.ID, c.Description))
		parts = append(parts, "Permissions: "+joinPermissions(c.Permissions))
		if c.Permissions.CanRead() && c.HasState() {
			if state, ok := indentState(c); ok {
				parts = append(parts, "Current state: "+state)
			}
		}
	}

	return strings.Join(parts, "\n")
}

func joinPermissions(perms component.Permissions) string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func indentState(c component.Payload) (string, bool) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, c.State, "", "  "); err != nil {
		slog.Warn("Ignoring malformed component state", "id", c.ID, "error", err)
		return "", false
	}
	return buf.String(), true
}
