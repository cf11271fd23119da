// Package config resolves the admin tool's environment-driven
// settings (§6): primarily which atomic file backs the file transport.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// AtomicFileEnvVar is the environment variable that selects the
// default atomic file path (§6). It must be consulted before any
// command that reads or writes the file.
const AtomicFileEnvVar = "EBTABLES_ATOMIC_FILE"

// DefaultAtomicFile is used when AtomicFileEnvVar is unset.
const DefaultAtomicFile = "/var/lib/ebtables/atomic"

// Config is the resolved set of environment-driven settings a command
// invocation needs before touching a table.
type Config struct {
	AtomicFile string
}

// Load reads a .env file if present (development convenience) via
// godotenv, then resolves settings from the process environment. A
// missing .env file is not an error; godotenv.Load's error is ignored
// in that case, matching how an optional dev file is expected to be
// absent in production.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	atomicFile := os.Getenv(AtomicFileEnvVar)
	if atomicFile == "" {
		atomicFile = DefaultAtomicFile
	}

	return &Config{AtomicFile: atomicFile}, nil
}
