package config

import (
	"github.com/spf13/cast"
)

// StringSafe reads configuration value by name and casts it to string.
//
// Returns "" if value can not be casted.
func StringSafe(c *Config, name string) string {
	return cast.ToString(c.Value(name))
}

// StringSliceSafe reads configuration value by name and casts it to
// []string.
//
// Returns nil if value can not be casted.
func StringSliceSafe(c *Config, name string) []string {
	return cast.ToStringSlice(c.Value(name))
}

// Int reads configuration value by name and casts it to int.
func Int(c *Config, name string) (int, error) {
	return cast.ToIntE(c.Value(name))
}

// Uint32 reads configuration value by name and casts it to uint32.
func Uint32(c *Config, name string) (uint32, error) {
	return cast.ToUint32E(c.Value(name))
}

// BoolSafe reads configuration value by name and casts it to bool.
//
// Returns false if value can not be casted.
func BoolSafe(c *Config, name string) bool {
	return cast.ToBool(c.Value(name))
}
