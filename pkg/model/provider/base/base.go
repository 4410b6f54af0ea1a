package base

import (
	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/environment"
	"github.com/docker/angi/pkg/model/provider/options"
)

// Config is a common base configuration shared by all provider clients.
// It is embedded in provider-specific Client structs.
type Config struct {
	ModelConfig  config.ModelConfig
	ModelOptions options.ModelOptions
	Env          environment.Provider
}

// ID returns the provider and model ID in the format "provider/model"
func (c *Config) ID() string {
	return c.ModelConfig.Provider + "/" + c.ModelConfig.Model
}

// MaxTokens prefers the option over the configured value.
func (c *Config) MaxTokens() int64 {
	if m := c.ModelOptions.MaxTokens(); m != nil {
		return *m
	}
	if c.ModelConfig.MaxTokens > 0 {
		return c.ModelConfig.MaxTokens
	}
	return config.DefaultMaxTokens
}
