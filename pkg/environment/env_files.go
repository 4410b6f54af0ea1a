package environment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/docker/angi/pkg/paths"
)

// EnvFilesProvider serves values read from .env files. When a key appears in
// several files, the first file wins.
type EnvFilesProvider struct {
	values map[string]string
}

func NewEnvFilesProvider(files ...string) (*EnvFilesProvider, error) {
	values := map[string]string{}
	for _, file := range files {
		absPath, err := AbsolutePath("", file)
		if err != nil {
			return nil, err
		}
		kv, err := godotenv.Read(absPath)
		if err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", file, err)
		}
		for k, v := range kv {
			if _, seen := values[k]; !seen {
				values[k] = v
			}
		}
	}
	return &EnvFilesProvider{values: values}, nil
}

func (p *EnvFilesProvider) Get(_ context.Context, name string) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

// AbsolutePath expands a leading ~ and resolves relative paths against
// parentDir (or the working directory when parentDir is empty).
func AbsolutePath(parentDir, relOrAbsPath string) (string, error) {
	p, err := expandTildePath(relOrAbsPath)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	if parentDir == "" {
		return filepath.Abs(p)
	}
	return filepath.Join(parentDir, p), nil
}

func expandTildePath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}

	homeDir := paths.GetHomeDir()
	if homeDir == "" {
		return "", errors.New("failed to get user home directory")
	}

	if p == "~" {
		return homeDir, nil
	}

	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return filepath.Join(homeDir, rest), nil
	}

	return "", fmt.Errorf("unsupported tilde expansion format: %s", p)
}
