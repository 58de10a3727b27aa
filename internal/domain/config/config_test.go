package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scenariokit/harness/internal/domain/config"
	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStore_LoadYAML(t *testing.T) {
	path := writeFile(t, "harness.yaml", `
oauth:
  url: https://idp.example.com/token
  client_id: harness
script:
  folder: ./my-scripts
http:
  timeout: 10s
tags: [a, b]
`)
	cfg, err := config.NewStore(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://idp.example.com/token", cfg.Get("oauth.url"))
	assert.Equal(t, "harness", cfg.Get("oauth.client_id"))
	assert.Equal(t, "a,b", cfg.Get("tags"))
	assert.Equal(t, "", cfg.Get("oauth.missing"))
	assert.Equal(t, "fallback", cfg.GetDefault("oauth.missing", "fallback"))

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, "./my-scripts", s.ScriptFolder)
	assert.Equal(t, 10*time.Second, s.HTTPTimeout)
	assert.Equal(t, "data", s.DataDir, "absent keys keep defaults")
}

func TestStore_LoadTOML(t *testing.T) {
	path := writeFile(t, "harness.toml", `
[scenario]
timeout = 90

[mock]
host = "0.0.0.0"

[http]
insecure_skip_verify = true
max_body_log_size = 64
`)
	cfg, err := config.NewStore(path).Load()
	require.NoError(t, err)

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, s.ScenarioTimeout, "bare numbers are seconds")
	assert.Equal(t, "0.0.0.0", s.MockHost)
	assert.True(t, s.InsecureSkipVerify)
	assert.Equal(t, 64, s.MaxBodyLogSize)
}

func TestStore_LoadNonExistent(t *testing.T) {
	cfg, err := config.NewStore(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Keys())

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), s)
}

func TestStore_LoadMalformed(t *testing.T) {
	path := writeFile(t, "bad.yaml", "a: [unclosed")
	_, err := config.NewStore(path).Load()
	assert.Error(t, err)
}

func TestStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "harness.yaml")
	store := config.NewStore(path)

	cfg := config.New(map[string]string{
		"oauth.url":     "https://idp",
		"oauth.scope":   "read",
		"control.port":  "7000",
		"script.folder": "s",
	})
	require.NoError(t, store.Save(cfg))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Keys(), loaded.Keys())
	assert.Equal(t, "https://idp", loaded.Get("oauth.url"))

	s, err := loaded.Settings()
	require.NoError(t, err)
	assert.Equal(t, 7000, s.ControlPort)
}

func TestConfig_Require(t *testing.T) {
	cfg := config.New(map[string]string{"present": "yes", "blank": ""})

	v, err := cfg.Require("present")
	require.NoError(t, err)
	assert.Equal(t, "yes", v)

	for _, key := range []string{"blank", "absent"} {
		_, err := cfg.Require(key)
		var cm *fault.ConfigMissing
		require.ErrorAs(t, err, &cm)
		assert.Equal(t, key, cm.Key)
		assert.Equal(t, "config", cm.Source)
	}
}

func TestConfig_SettingsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{config.KeyHTTPTimeout, "soon"},
		{config.KeyControlPort, "high"},
		{config.KeyInsecureSkipVerify, "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := config.New(map[string]string{tt.key: tt.value}).Settings()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestEnv(t *testing.T) {
	env := config.MapEnv(map[string]string{"SET": "v", "BLANK": "  "})

	assert.Equal(t, "v", env.Get("SET"))
	assert.Equal(t, "", env.Get("UNSET"))
	assert.Equal(t, "d", env.GetDefault("UNSET", "d"))

	v, err := env.GetRequired("BLANK")
	require.NoError(t, err)
	assert.Equal(t, "  ", v)

	_, err = env.GetRequired("UNSET")
	assert.Equal(t, fault.KindConfigMissing, fault.KindOf(err))

	_, err = env.GetNotEmpty("BLANK")
	var cm *fault.ConfigMissing
	require.ErrorAs(t, err, &cm)
	assert.Equal(t, "env", cm.Source)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "HARNESS_TEST_FROM_FILE=file\nHARNESS_TEST_PRESET=file\n")
	t.Setenv("HARNESS_TEST_PRESET", "process")
	t.Cleanup(func() { os.Unsetenv("HARNESS_TEST_FROM_FILE") })

	require.NoError(t, config.LoadDotEnv(path))

	env := config.NewEnv()
	assert.Equal(t, "file", env.Get("HARNESS_TEST_FROM_FILE"))
	assert.Equal(t, "process", env.Get("HARNESS_TEST_PRESET"), "process environment wins")

	assert.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "none.env")))
}
