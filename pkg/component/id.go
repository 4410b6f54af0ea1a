package component

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/google/uuid"
)

// Separator joins a component id and an action name into a tool name.
const Separator = "__"

const derivedIDPrefix = "angi-"

var ErrInvalidIdentifier = errors.New("invalid identifier")

// DeriveID returns a stable id for a component that was registered without
// one. It hashes the description with djb2 over UTF-16 code units and keeps
// the first six hex digits of the 32-bit result, so ids stay compatible with
// browser-side registrations of the same description.
//
// The hash is not cryptographic: with 24 bits, two distinct descriptions
// collide with probability about 1 in 16 million. A collision surfaces as
// ErrDuplicateID at registration time.
func DeriveID(description string) string {
	var h uint32 = 5381
	for _, c := range utf16.Encode([]rune(description)) {
		h = (h * 33) ^ uint32(c)
	}
	return derivedIDPrefix + fmt.Sprintf("%08x", h)[:6]
}

// ResolveID returns explicit when set, the derived id otherwise.
func ResolveID(explicit, description string) string {
	if explicit != "" {
		return explicit
	}
	return DeriveID(description)
}

// NewInstanceID returns a token identifying one mounted instance.
func NewInstanceID() string {
	return uuid.NewString()
}

// ValidateID checks that id can be used as the component half of a tool name.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty component id", ErrInvalidIdentifier)
	}
	if strings.Contains(id, Separator) {
		return fmt.Errorf("%w: component id %q contains %q", ErrInvalidIdentifier, id, Separator)
	}
	if !isToolNameSafe(id) {
		return fmt.Errorf("%w: component id %q must only contain letters, digits, '-' and '_'", ErrInvalidIdentifier, id)
	}
	return nil
}

// ValidateActionName checks that name can be used as the action half of a
// tool name. Action names may contain the separator since tool names are
// split on its first occurrence.
func ValidateActionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty action name", ErrInvalidIdentifier)
	}
	if !isToolNameSafe(name) {
		return fmt.Errorf("%w: action name %q must only contain letters, digits, '-' and '_'", ErrInvalidIdentifier, name)
	}
	return nil
}

func isToolNameSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
