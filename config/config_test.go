package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadUsesEnvVarWhenSet(t *testing.T) {
	t.Setenv(AtomicFileEnvVar, "/tmp/my-atomic-file")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/my-atomic-file", cfg.AtomicFile)
}

func TestLoadFallsBackToDefault(t *testing.T) {
	os.Unsetenv(AtomicFileEnvVar)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultAtomicFile, cfg.AtomicFile)
}
