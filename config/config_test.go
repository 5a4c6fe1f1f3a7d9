package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data, err := json.Marshal(body)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{
		"llm":            map[string]interface{}{"api_key": "sk-test"},
		"notify_address": "me@example.com",
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1/chat/completions", cfg.LLM.Endpoint)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "UTC", cfg.TimeZone)
	assert.Equal(t, time.Hour, cfg.DispatcherInterval)
	assert.Equal(t, "inboxtriage.db", cfg.Store.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8090, cfg.Metrics.Port)
}

func TestLoadConfig_MissingAPIKey(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{
		"notify_address": "me@example.com",
	})

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingNotifyAddress(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{
		"llm": map[string]interface{}{"api_key": "sk-test"},
	})

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_DispatcherIntervalBelowFloor(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{
		"llm":                 map[string]interface{}{"api_key": "sk-test"},
		"notify_address":      "me@example.com",
		"dispatcher_interval": 5 * time.Minute,
	})

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestToEngineConfigAndToMailerConfig(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{
		"llm":             map[string]interface{}{"api_key": "sk-test"},
		"notify_address":  "me@example.com",
		"sender_name":     "Inbox Triage",
		"smtp":            map[string]interface{}{"host": "smtp.example.com", "port": 587, "from": "triage@example.com"},
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	ec := cfg.ToEngineConfig()
	assert.Equal(t, "sk-test", ec.LLM.APIKey)
	assert.Equal(t, "me@example.com", ec.NotifyAddress)
	assert.Equal(t, "Inbox Triage", ec.SenderName)

	mc := cfg.ToMailerConfig()
	assert.Equal(t, "smtp.example.com", mc.Host)
	assert.Equal(t, 587, mc.Port)
	assert.Equal(t, "triage@example.com", mc.From)
}
