package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempDir(t *testing.T, env string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", env)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	useTempDir(t, "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 30*time.Second, cfg.Rooms.EmptyTTL)
	assert.Equal(t, 5, cfg.Rooms.GuestMaxUsers)
	assert.Equal(t, 30*time.Minute, cfg.Rooms.GuestMaxDuration)
	assert.Equal(t, 24*time.Hour, cfg.Messages.GuestRetention)
	assert.Equal(t, "drop", cfg.Relay.SlowConsumer)
	assert.Empty(t, cfg.Federation.Peers)
	assert.Empty(t, cfg.Snapshot.RedisAddr)
	require.Len(t, cfg.WebRTC.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.WebRTC.ICEServers[0].URLs)
}

func TestLoadEnvOverrides(t *testing.T) {
	useTempDir(t, "missing")
	t.Setenv("VOICE_PORT", "9090")
	t.Setenv("VOICE_ROOMS_EMPTY_TTL", "45s")
	t.Setenv("VOICE_RELAY_SLOW_CONSUMER", "kick")
	t.Setenv("VOICE_ADMIN_TOKEN", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.Rooms.EmptyTTL)
	assert.Equal(t, "kick", cfg.Relay.SlowConsumer)
	assert.Equal(t, "s3cret", cfg.AdminToken)
}

func TestLoadFile(t *testing.T) {
	dir := useTempDir(t, "unit")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o755))
	yaml := `
mode: debug
port: 7000
rooms:
  guest_max_users: 3
  defaults:
    - id: lobby
      name: Lobby
      max_users: 25
federation:
  peers: ["http://peer-a:8080", "http://peer-b:8080"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.unit.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 3, cfg.Rooms.GuestMaxUsers)
	assert.Equal(t, 10, cfg.Rooms.DefaultMaxUsers, "unset keys keep defaults")
	require.Len(t, cfg.Rooms.Defaults, 1)
	assert.Equal(t, DefaultRoom{ID: "lobby", Name: "Lobby", MaxUsers: 25}, cfg.Rooms.Defaults[0])
	assert.Equal(t, []string{"http://peer-a:8080", "http://peer-b:8080"}, cfg.Federation.Peers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"port":          {"VOICE_PORT": "70000"},
		"durations":     {"VOICE_ROOMS_GUEST_MIN_DURATION": "1h"},
		"slow consumer": {"VOICE_RELAY_SLOW_CONSUMER": "block"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			useTempDir(t, "missing")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
