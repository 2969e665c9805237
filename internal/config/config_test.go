package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairpad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.CORS.AllowCredentials)
	assert.Contains(t, cfg.CORS.AllowedMethods, http.MethodPost)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedHeaders)
	assert.True(t, cfg.Relay.EchoSender)
	assert.Equal(t, 64, cfg.Relay.SendBuffer)
	assert.Equal(t, "process", cfg.Sandbox.Backend)
	assert.Equal(t, 10*time.Second, cfg.Sandbox.Timeout)
	assert.False(t, cfg.Suggest.HasProvider())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
cors:
  allowed_origins: ["https://pad.example.com"]
  allow_credentials: false
  allowed_methods: ["get", "post"]
relay:
  echo_sender: false
  max_room_size: 8
sandbox:
  timeout: 2s
  languages:
    lua:
      file: main.lua
      command: ["lua", "main.lua"]
suggest:
  provider:
    base_url: http://localhost:11434/v1/
    api_key: ${PAIRPAD_TEST_KEY}
    model: qwen3:8b
`)
	t.Setenv("PAIRPAD_TEST_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://pad.example.com"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.CORS.AllowCredentials)
	assert.Equal(t, []string{"GET", "POST"}, cfg.CORS.AllowedMethods)
	assert.False(t, cfg.Relay.EchoSender)
	assert.Equal(t, 8, cfg.Relay.MaxRoomSize)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.Timeout)
	require.Contains(t, cfg.Sandbox.Languages, "lua")
	assert.Equal(t, []string{"lua", "main.lua"}, cfg.Sandbox.Languages["lua"].Command)
	assert.Equal(t, "secret", cfg.Suggest.Provider.APIKey)
	assert.True(t, cfg.Suggest.HasProvider())
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 7000\n")
	t.Setenv("PAIRPAD_SERVER_PORT", "7100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad port", body: "server:\n  port: 70000\n"},
		{name: "bad backend", body: "sandbox:\n  backend: vm\n"},
		{name: "zero timeout", body: "sandbox:\n  timeout: 0s\n"},
		{name: "zero buffer", body: "relay:\n  send_buffer: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestAllowsAnyOrigin(t *testing.T) {
	assert.True(t, CORSConfig{AllowedOrigins: []string{"http://a", "*"}}.AllowsAnyOrigin())
	assert.False(t, CORSConfig{AllowedOrigins: []string{"http://a"}}.AllowsAnyOrigin())
}
