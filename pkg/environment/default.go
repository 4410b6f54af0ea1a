package environment

import (
	"context"
	"fmt"
)

// NewDefaultProvider reads the process environment first, then the given
// .env files in order.
func NewDefaultProvider(envFiles ...string) (Provider, error) {
	if len(envFiles) == 0 {
		return NewOsEnvProvider(), nil
	}

	files, err := NewEnvFilesProvider(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading env files: %w", err)
	}
	return NewMultiProvider(NewOsEnvProvider(), files), nil
}

// Require looks up every name and returns a *RequiredEnvError listing the
// ones that are missing or empty.
func Require(ctx context.Context, env Provider, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		value, ok := env.Get(ctx, name)
		if !ok || value == "" {
			missing = append(missing, name)
			continue
		}
		values[name] = value
	}
	if len(missing) > 0 {
		return nil, &RequiredEnvError{Missing: missing}
	}
	return values, nil
}
