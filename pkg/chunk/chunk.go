// Package chunk defines the normalized unit streamed from the parser to
// dispatchers and over the wire.
package chunk

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Type string

const (
	TypeText   Type = "text"
	TypeAction Type = "action"
)

// Chunk is either a text fragment or a fully parsed action invocation.
type Chunk struct {
	Type   Type    `json:"type"`
	Text   string  `json:"text,omitempty"`
	Action *Action `json:"action,omitempty"`
}

type Action struct {
	ComponentID string         `json:"componentId"`
	ActionName  string         `json:"actionName"`
	Params      map[string]any `json:"params"`
}

func Text(text string) Chunk {
	return Chunk{
		Type: TypeText,
		Text: text,
	}
}

func NewAction(componentID, actionName string, params map[string]any) Chunk {
	if params == nil {
		params = map[string]any{}
	}
	return Chunk{
		Type: TypeAction,
		Action: &Action{
			ComponentID: componentID,
			ActionName:  actionName,
			Params:      params,
		},
	}
}

func (c Chunk) IsText() bool   { return c.Type == TypeText }
func (c Chunk) IsAction() bool { return c.Type == TypeAction && c.Action != nil }

// Decode parses one serialized chunk, rejecting unknown types and action
// chunks without an action.
func Decode(data []byte) (Chunk, error) {
	var c Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return Chunk{}, fmt.Errorf("decoding chunk: %w", err)
	}
	switch c.Type {
	case TypeText:
		return c, nil
	case TypeAction:
		if c.Action == nil {
			return Chunk{}, errors.New("action chunk without action")
		}
		if c.Action.Params == nil {
			c.Action.Params = map[string]any{}
		}
		return c, nil
	default:
		return Chunk{}, fmt.Errorf("unknown chunk type %q", c.Type)
	}
}
