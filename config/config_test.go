package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token-from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "token-from-env", cfg.Discord.Token)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.OTPTimeout())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
discord:
  owner_id: "owner-1"
database:
  url: postgres://app@db:5432/campuslink
smtp:
  host: mail.campus.example
  port: 587
otp:
  timeout: 5m
  max_attempts: 3
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "owner-1", cfg.Discord.OwnerID)
	assert.Equal(t, "postgres://app@db:5432/campuslink", cfg.Database.URL)
	assert.Equal(t, "mail.campus.example", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, 5*time.Minute, cfg.OTPTimeout())
	assert.Equal(t, 3, cfg.OTP.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token-from-env")
	t.Setenv("SMTP_HOST", "env.campus.example")
	t.Setenv("OTP_MAX_ATTEMPTS", "2")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("smtp:\n  host: file.campus.example\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env.campus.example", cfg.SMTP.Host)
	assert.Equal(t, 2, cfg.OTP.MaxAttempts)
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "discord token")

	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("OTP_TIMEOUT", "not-a-duration")
	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "otp timeout")
}
