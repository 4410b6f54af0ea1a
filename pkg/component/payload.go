package component

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Payload is the transport projection of a Definition. State is captured
// once, and handlers never cross the boundary.
type Payload struct {
	ID          string                                     `json:"id"`
	Description string                                     `json:"description"`
	Permissions Permissions                                `json:"permissions"`
	State       json.RawMessage                            `json:"state,omitempty"`
	Actions     *orderedmap.OrderedMap[string, ActionSpec] `json:"actions"`
}

// ActionSpec is an action without its handler.
type ActionSpec struct {
	Description string                                 `json:"description"`
	Schema      *orderedmap.OrderedMap[string, string] `json:"schema"`
}

// Serialize projects a definition for the wire: state only when readable,
// actions only when writable.
func Serialize(def Definition) Payload {
	p := Payload{
		ID:          def.ID,
		Description: def.Description,
		Permissions: def.Permissions,
		Actions:     orderedmap.New[string, ActionSpec](),
	}
	if p.Permissions == nil {
		p.Permissions = Permissions{}
	}
	if def.Permissions.CanRead() {
		p.State = snapshotState(def)
	}
	if def.Permissions.CanWrite() {
		for _, name := range def.ActionNames() {
			action := def.Actions[name]
			p.Actions.Set(name, ActionSpec{
				Description: action.Description,
				Schema:      sortedSchema(action.Schema),
			})
		}
	}
	return p
}

func SerializeAll(defs []Definition) []Payload {
	out := make([]Payload, 0, len(defs))
	for _, def := range defs {
		out = append(out, Serialize(def))
	}
	return out
}

// HasState reports whether the payload carries a non-null state.
func (p Payload) HasState() bool {
	trimmed := bytes.TrimSpace(p.State)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ActionCount returns the number of actions carried by the payload.
func (p Payload) ActionCount() int {
	return p.Actions.Len()
}

func sortedSchema(schema map[string]string) *orderedmap.OrderedMap[string, string] {
	out := orderedmap.New[string, string](len(schema))
	for _, name := range slices.Sorted(maps.Keys(schema)) {
		out.Set(name, schema[name])
	}
	return out
}

func snapshotState(def Definition) json.RawMessage {
	state := def.CurrentState()
	if state == nil {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(state); err != nil {
		slog.Warn("Failed to serialize component state", "id", def.ID, "error", err)
		return nil
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}
