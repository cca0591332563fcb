package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/sowilo/internal/linkgraph"
	pkgconfig "github.com/starford/sowilo/pkg/config"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.App.HTTP.Port = 70000 }, wantErr: "65535"},
		{name: "no database path", mutate: func(c *Config) { c.SQLite.Path = "" }, wantErr: "cannot be blank"},
		{name: "reachable policy", mutate: func(c *Config) { c.Wiki.OrphanPolicy = "reachable" }},
		{name: "empty policy", mutate: func(c *Config) { c.Wiki.OrphanPolicy = "" }},
		{name: "unknown policy", mutate: func(c *Config) { c.Wiki.OrphanPolicy = "everything" }, wantErr: "unknown orphan policy"},
		{name: "no upload dir", mutate: func(c *Config) { c.Uploads.Path = "" }, wantErr: "cannot be blank"},
		{name: "import without path", mutate: func(c *Config) { c.Import = ImportConfig{Enabled: true} }, wantErr: "import"},
		{name: "import disabled without path", mutate: func(c *Config) { c.Import = ImportConfig{} }},
		{name: "token mode", mutate: func(c *Config) { c.Auth = AuthConfig{Mode: AuthModeToken, Token: "s3cret"} }},
		{name: "token mode without token", mutate: func(c *Config) { c.Auth = AuthConfig{Mode: AuthModeToken} }, wantErr: "token is empty"},
		{name: "unknown auth mode", mutate: func(c *Config) { c.Auth = AuthConfig{Mode: "magic"} }, wantErr: "valid value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAuthConfig_EmptyModeMeansDisabled(t *testing.T) {
	cfg := AuthConfig{}
	require.NoError(t, cfg.Validate())
	require.Equal(t, AuthModeDisabled, cfg.Mode)
	require.False(t, cfg.AuthEnabled())

	cfg = AuthConfig{Mode: AuthModeToken, Token: "x"}
	require.NoError(t, cfg.Validate())
	require.True(t, cfg.AuthEnabled())
}

func TestWikiConfig_Policy(t *testing.T) {
	require.Equal(t, linkgraph.PolicyReachable, (&WikiConfig{OrphanPolicy: "reachable"}).Policy())
	require.Equal(t, linkgraph.PolicyReferenced, (&WikiConfig{}).Policy())
}

func TestConfig_LoadYAML(t *testing.T) {
	t.Setenv("SOWILO_TEST_PASSWORD", "pswd")
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	body := `
app:
  log_level: debug
  http:
    port: 9090
wiki:
  default_password: ${SOWILO_TEST_PASSWORD}
  orphan_policy: reachable
import:
  enabled: true
  path: ` + dir + `
`
	require.NoError(t, os.WriteFile(file, []byte(body), 0o644))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(file, cfg))
	require.Equal(t, ":9090", cfg.App.HTTP.Address())
	require.Equal(t, "pswd", cfg.Wiki.DefaultPassword)
	require.Equal(t, linkgraph.PolicyReachable, cfg.Wiki.Policy())
	require.True(t, cfg.Import.Enabled)
	require.Equal(t, "./sowilo.db", cfg.SQLite.Path, "unset keys keep defaults")
	require.Equal(t, "./uploads", cfg.Uploads.Path)
}
