// ABOUTME: Tests for configuration loading, env expansion and validation
// ABOUTME: Uses temp YAML files to exercise the full load path

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shopdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http_addr: ":9090"
  cors_origins:
    - "http://localhost:3000"
database:
  path: "/tmp/test.db"
uploads:
  dir: "/tmp/uploads"
admin:
  email: "boss@example.com"
  password: "hunter2"
  name: "Boss"
logging:
  level: "debug"
  format: "json"
metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "/tmp/uploads", cfg.Uploads.Dir)
	assert.Equal(t, "boss@example.com", cfg.Admin.Email)
	assert.Equal(t, "hunter2", cfg.Admin.Password)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_UnsetFieldsFallBackToDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http_addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "data/shopdesk.db", cfg.Database.Path)
	assert.Equal(t, "data/uploads", cfg.Uploads.Dir)
	assert.Equal(t, "admin@shopdesk.local", cfg.Admin.Email)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_SHOPDESK_PASSWORD", "from-env")

	path := writeConfigFile(t, `
admin:
  email: "admin@example.com"
  password: "${TEST_SHOPDESK_PASSWORD}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Password)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [this is: not valid")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "http_addr"},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"missing uploads dir", func(c *Config) { c.Uploads.Dir = "" }, "uploads.dir"},
		{"missing admin password", func(c *Config) { c.Admin.Password = "" }, "admin.email and admin.password"},
		{"metrics enabled without path", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Path = ""
		}, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_ValidationFailureSurfaces(t *testing.T) {
	path := writeConfigFile(t, `
admin:
  password: ""
  email: ""
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin.email and admin.password")
}
