package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "data/storytime.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Hour, cfg.Auth.VerifyTTL)
	assert.Equal(t, 2*time.Hour, cfg.Auth.ResetTTL)
	assert.Equal(t, 720*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Error(t, cfg.Validate(), "missing jwt secret")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORYTIME_AUTH_JWTSECRET", "s3cret")
	t.Setenv("STORYTIME_AUTH_SESSIONTTL", "1h")
	t.Setenv("STORYTIME_MAIL_HOST", "smtp.example.com")
	t.Setenv("STORYTIME_MAIL_PORT", "2525")
	t.Setenv("STORYTIME_MAIL_FROM", "noreply@example.com")
	t.Setenv("STORYTIME_CATALOG_CLIENTID", "client")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, 2525, cfg.Mail.Port)
	assert.Equal(t, "client", cfg.Catalog.ClientID)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
server:
  addr: 127.0.0.1:9000
auth:
  jwtsecret: from-file
`), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
}

func TestValidate_MailFromRequired(t *testing.T) {
	var cfg Config
	cfg.Auth.JWTSecret = "x"
	cfg.Mail.Host = "smtp.example.com"
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	const key = "STORYTIME_DOTENV_TEST"
	const preset = "STORYTIME_DOTENV_PRESET"
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
	t.Setenv(preset, "kept")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# comment\n"+key+"=\"quoted value\"\n"+preset+"=overwritten\nbroken-line\n",
	), 0o600))

	loadDotEnv(path)

	assert.Equal(t, "quoted value", os.Getenv(key))
	assert.Equal(t, "kept", os.Getenv(preset))
}
