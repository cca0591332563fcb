package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "wiki")
	p := writeFile(t, "name: ${SAMPLE_NAME}\n")

	cfg := sample{Port: 8080}
	require.NoError(t, Load(p, &cfg))
	require.Equal(t, "wiki", cfg.Name)
	require.Equal(t, 8080, cfg.Port)
}

func TestLoad_Validates(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	cfg := sample{Port: 8080}
	require.ErrorContains(t, Load(p, &cfg), "port must be positive")
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg sample
	require.Error(t, Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
}

func TestLoadOptional(t *testing.T) {
	cfg := sample{Port: 9000}
	require.NoError(t, LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
	require.Equal(t, 9000, cfg.Port)

	bad := sample{}
	require.Error(t, LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad))

	p := writeFile(t, "port: 7000\n")
	require.NoError(t, LoadOptional(p, &cfg))
	require.Equal(t, 7000, cfg.Port)
}
