// Package config reads argo-lens configuration from a file and ARGO_*
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is a prefix of ENV variables related to argo-lens
	// configuration.
	EnvPrefix = "argo"
	// EnvSeparator is a section separator in ENV variables.
	EnvSeparator = "_"

	separator = "."
)

// Config represents a group of named values structured by tree type.
// Variables override values of the file, e.g. ARGO_CODEC_COMPRESSION sets
// "codec.compression".
type Config struct {
	v *viper.Viper
}

type opts struct {
	path string
}

// Option allows to set an optional parameter of the Config.
type Option func(*opts)

// WithConfigFile returns an option to set the system path to the
// configuration file. The format is detected by the extension.
func WithConfigFile(path string) Option {
	return func(o *opts) {
		o.path = path
	}
}

// New creates a new Config instance. Without WithConfigFile only defaults
// and environment are used.
func New(options ...Option) (*Config, error) {
	var o opts
	for i := range options {
		options[i](&o)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(separator, EnvSeparator))

	if o.path != "" {
		v.SetConfigFile(o.path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// Viper returns the underlying viper instance, e.g. for logger.NewLogger.
func (c *Config) Viper() *viper.Viper {
	return c.v
}

// Value returns the configuration value by name. Names of sub-sections are
// separated by dots.
func (c *Config) Value(name string) any {
	return c.v.Get(name)
}

// IsSet reports whether the value is set in the file or environment.
func (c *Config) IsSet(name string) bool {
	return c.v.IsSet(name)
}
