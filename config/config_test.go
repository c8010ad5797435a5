package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "storefront.yml")
	content := `
system:
  appid: TestShop
  location: UTC
  workdir: ` + dir + `
web:
  host: 127.0.0.1
  port: 9001
  secret: s3cret
database:
  type: sqlite
  name: test.db
admin:
  username: root
  password: pw
logger:
  mode: production
`
	require.NoError(t, os.WriteFile(cfile, []byte(content), 0o600))

	cfg := LoadConfig(cfile)
	assert.Equal(t, "TestShop", cfg.System.Appid)
	assert.Equal(t, 9001, cfg.Web.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "root", cfg.Admin.Username)
	assert.Equal(t, "storefront_session", cfg.Web.SessionName)
	assert.Equal(t, 24, cfg.Admin.TokenTTL)
	assert.DirExists(t, cfg.GetLogDir())
	assert.DirExists(t, cfg.GetMediaDir())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "storefront.yml")
	require.NoError(t, os.WriteFile(cfile, []byte("system:\n  workdir: "+dir+"\nweb:\n  port: 8000\n"), 0o600))

	t.Setenv("STOREFRONT_WEB_PORT", "8088")
	t.Setenv("STOREFRONT_DB_TYPE", "postgres")
	t.Setenv("STOREFRONT_SYSTEM_DEBUG", "true")

	cfg := LoadConfig(cfile)
	assert.Equal(t, 8088, cfg.Web.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.True(t, cfg.System.Debug)
}

func TestLoadConfigIgnoresBadInt(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "storefront.yml")
	require.NoError(t, os.WriteFile(cfile, []byte("system:\n  workdir: "+dir+"\nweb:\n  port: 8000\n"), 0o600))
	t.Setenv("STOREFRONT_WEB_PORT", "not-a-port")

	cfg := LoadConfig(cfile)
	assert.Equal(t, 8000, cfg.Web.Port)
}
