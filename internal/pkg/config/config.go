// Package config defines the read-only configuration contract used across
// the application.
//
// Business code depends on the Config interface; the concrete implementation
// (Viper-backed, with hot reload) lives in this package as well.
package config

import (
	"io"
	"time"
)

// Config is the aggregate configuration contract consumed by the application.
//
// Implementations should return zero values for missing keys rather than
// panicking; callers are expected to apply their own defaults.
type Config interface {
	io.Closer

	// GetString retrieves the value for key as a string.
	GetString(key string) string

	// GetArray retrieves the value for key as a slice of strings
	// (comma separated in the source).
	GetArray(key string) []string

	// GetBool retrieves the value for key as a bool.
	GetBool(key string) bool

	// GetInt retrieves the value for key as an int.
	GetInt(key string) int

	// GetInt32 retrieves the value for key as an int32.
	GetInt32(key string) int32

	// GetInt64 retrieves the value for key as an int64.
	GetInt64(key string) int64

	// GetUint retrieves the value for key as a uint.
	GetUint(key string) uint

	// GetFloat64 retrieves the value for key as a float64.
	GetFloat64(key string) float64

	// GetSecond retrieves the value for key as a duration in seconds.
	GetSecond(key string) time.Duration

	// GetMinute retrieves the value for key as a duration in minutes.
	GetMinute(key string) time.Duration

	// GetHour retrieves the value for key as a duration in hours.
	GetHour(key string) time.Duration
}
