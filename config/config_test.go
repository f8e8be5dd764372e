package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  username: user@example.com
  password: hunter2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2tbuisnbl1t2a5gc36lhb2b6c3", cfg.Auth.ClientID)
	assert.Equal(t, "eu-west-1", cfg.Auth.Region)
	assert.Equal(t, "https://end-user-api.prod.garo-next-gen.com", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.Poller.Interval)
	assert.True(t, cfg.Poller.Enabled)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "garo", cfg.MQTT.TopicPrefix)
	assert.True(t, cfg.MQTT.Discovery)
	assert.Equal(t, "./garo.db", cfg.Database.Path)
	assert.Equal(t, 8046, cfg.Server.Port)
	assert.True(t, cfg.Server.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
auth:
  username: user@example.com
  password: hunter2
poller:
  interval: 30m
server:
  port: 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Poller.Interval)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadRejectsShortInterval(t *testing.T) {
	path := writeConfig(t, `
auth:
  username: user@example.com
  password: hunter2
poller:
  interval: 30s
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below the minimum")
}

func TestLoadRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
poller:
  interval: 15m
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.username")
}

func TestValidatePortRange(t *testing.T) {
	cfg := &Config{
		Auth:   AuthConfig{Username: "u", Password: "p"},
		Poller: PollerConfig{Interval: 15 * time.Minute},
		Server: ServerConfig{Enabled: true, Port: 70000},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
