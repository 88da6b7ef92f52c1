package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("urgent")
	assert.Error(t, err)
}

func TestNotificationJSONKeys(t *testing.T) {
	n := Notification{
		ID:        "abc",
		Title:     "Build",
		Message:   "Build passed",
		Kind:      KindSuccess,
		Timestamp: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]any{
		"id":        "abc",
		"title":     "Build",
		"message":   "Build passed",
		"type":      "success",
		"timestamp": "2026-03-01T09:30:00Z",
		"read":      false,
	}, raw)
}

func TestCountUnread(t *testing.T) {
	assert.Equal(t, 0, CountUnread(nil))
	assert.Equal(t, 2, CountUnread([]Notification{{Read: false}, {Read: true}, {}}))
}

func TestOfflineEntryFlattensPayload(t *testing.T) {
	at := time.UnixMilli(1_772_357_400_123)
	e := OfflineEntry{
		Payload:    map[string]any{"note": "hello", "count": 3.0},
		EnqueuedAt: at,
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "hello", raw["note"])
	assert.Equal(t, 3.0, raw["count"])
	assert.Equal(t, float64(1_772_357_400_123), raw["timestamp"])

	var back OfflineEntry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e.Payload, back.Payload)
	assert.True(t, at.Equal(back.EnqueuedAt))
}

func TestOfflineEntryTimestampIsOwnedByQueue(t *testing.T) {
	e := OfflineEntry{
		Payload:    map[string]any{"timestamp": "user value"},
		EnqueuedAt: time.UnixMilli(42),
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":42}`, string(data))

	var back OfflineEntry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Empty(t, back.Payload)
	assert.Equal(t, int64(42), back.EnqueuedAt.UnixMilli())
}

func TestNewOfflineEntryDropsTimestampKey(t *testing.T) {
	payload := map[string]any{"timestamp": "caller", "note": "x"}
	e := NewOfflineEntry(payload, time.UnixMilli(7))

	assert.Equal(t, map[string]any{"note": "x"}, e.Payload)
	assert.Equal(t, "caller", payload["timestamp"])

	payload["note"] = "y"
	assert.Equal(t, "x", e.Payload["note"])
}

func TestOfflineEntryRejectsNonObject(t *testing.T) {
	var e OfflineEntry
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &e))
	assert.Error(t, json.Unmarshal([]byte(`null`), &e))
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "@notifications", cfg.Storage.NotificationsKey)
	assert.Equal(t, "@offline_data", cfg.Storage.OfflineKey)
	assert.Equal(t, FlushPolicyAck, cfg.Offline.FlushPolicy)
	assert.Equal(t, ForwarderLog, cfg.Offline.Forwarder)
	assert.Equal(t, 5*time.Second, cfg.Connectivity.Interval())
	assert.Equal(t, 3*time.Second, cfg.Connectivity.Timeout())
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: redis
  redis_addr: cache:6379
offline:
  flush_policy: optimistic
  forwarder: kafka
forward:
  kafka:
    brokers: [k1:9092, k2:9092]
    topic: sync
log:
  level: debug
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, "pmcore:", cfg.Storage.RedisPrefix)
	assert.Equal(t, FlushPolicyOptimistic, cfg.Offline.FlushPolicy)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Forward.Kafka.Brokers)
	assert.Equal(t, "sync", cfg.Forward.Kafka.Topic)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PMCORE_STORAGE_BACKEND", "memory")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"shared key", func(c *AppConfig) { c.Storage.OfflineKey = c.Storage.NotificationsKey }},
		{"empty key", func(c *AppConfig) { c.Storage.NotificationsKey = "" }},
		{"backend", func(c *AppConfig) { c.Storage.Backend = "etcd" }},
		{"policy", func(c *AppConfig) { c.Offline.FlushPolicy = "eventually" }},
		{"forwarder", func(c *AppConfig) { c.Offline.Forwarder = "carrier-pigeon" }},
	}

	require.NoError(t, DefaultAppConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAppConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultAppConfig()
	cfg.Storage.Backend = BackendMemory
	cfg.Offline.Forwarder = ForwarderNone
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, loaded.Storage.Backend)
	assert.Equal(t, ForwarderNone, loaded.Offline.Forwarder)
}
