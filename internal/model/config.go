package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends accepted by StorageConfig.Backend.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendKeyring = "keyring"
	BackendRedis   = "redis"
)

// Forwarders accepted by OfflineConfig.Forwarder.
const (
	ForwarderNone  = "none"
	ForwarderLog   = "log"
	ForwarderKafka = "kafka"
	ForwarderIMAP  = "imap"
)

// Flush policies accepted by OfflineConfig.FlushPolicy.
const (
	FlushPolicyAck        = "ack"
	FlushPolicyOptimistic = "optimistic"
)

// StorageConfig selects and configures the key-value backend.
type StorageConfig struct {
	// Backend is one of "memory", "sqlite", "keyring" or "redis".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// NotificationsKey and OfflineKey must differ.
	NotificationsKey string `mapstructure:"notifications_key" yaml:"notifications_key"`
	OfflineKey       string `mapstructure:"offline_key" yaml:"offline_key"`

	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`

	KeyringService string `mapstructure:"keyring_service" yaml:"keyring_service"`
	KeyringDir     string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// OfflineConfig controls how the offline queue drains.
type OfflineConfig struct {
	FlushPolicy    string `mapstructure:"flush_policy" yaml:"flush_policy"`
	Forwarder      string `mapstructure:"forwarder" yaml:"forwarder"`
	ForwardTimeout int    `mapstructure:"forward_timeout_sec" yaml:"forward_timeout_sec"`
}

// KafkaConfig configures the Kafka forwarder.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

// IMAPConfig configures the mailbox forwarder. The password is read
// from the system keyring under PasswordKey.
type IMAPConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        string `mapstructure:"port" yaml:"port"`
	Username    string `mapstructure:"username" yaml:"username"`
	PasswordKey string `mapstructure:"password_key" yaml:"password_key"`
	TLS         bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox     string `mapstructure:"mailbox" yaml:"mailbox"`
	From        string `mapstructure:"from" yaml:"from"`
}

// ForwardConfig groups the remote forwarder settings.
type ForwardConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
	IMAP  IMAPConfig  `mapstructure:"imap" yaml:"imap"`
}

// ConnectivityConfig controls the background reachability prober.
type ConnectivityConfig struct {
	ProbeAddr   string `mapstructure:"probe_addr" yaml:"probe_addr"`
	IntervalSec int    `mapstructure:"interval_sec" yaml:"interval_sec"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Interval returns the probe interval as a duration.
func (c ConnectivityConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Timeout returns the probe dial timeout as a duration.
func (c ConnectivityConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Storage      StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Offline      OfflineConfig      `mapstructure:"offline" yaml:"offline"`
	Forward      ForwardConfig      `mapstructure:"forward" yaml:"forward"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity" yaml:"connectivity"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/pmcore/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "pmcore", "config.yaml")
}

// defaultDataDir is where file-backed stores live by default.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "pmcore")
}

// setDefaults registers every default on v so that missing keys and
// environment overrides resolve consistently.
func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.notifications_key", "@notifications")
	v.SetDefault("storage.offline_key", "@offline_data")
	v.SetDefault("storage.sqlite_path", filepath.Join(defaultDataDir(), "pmcore.db"))
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.redis_prefix", "pmcore:")
	v.SetDefault("storage.keyring_service", "pmcore")
	v.SetDefault("storage.keyring_dir", "~/.config/pmcore/keyring")

	v.SetDefault("offline.flush_policy", FlushPolicyAck)
	v.SetDefault("offline.forwarder", ForwarderLog)
	v.SetDefault("offline.forward_timeout_sec", 30)

	v.SetDefault("forward.kafka.topic", "pmcore.offline")
	v.SetDefault("forward.imap.port", "993")
	v.SetDefault("forward.imap.tls", true)
	v.SetDefault("forward.imap.mailbox", "Outbox")
	v.SetDefault("forward.imap.password_key", "imap-password")

	v.SetDefault("connectivity.probe_addr", "1.1.1.1:53")
	v.SetDefault("connectivity.interval_sec", 5)
	v.SetDefault("connectivity.timeout_sec", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// newViper returns a viper instance bound to path with defaults and
// PMCORE_-prefixed environment overrides.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("pmcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	cfg := &AppConfig{}
	// Unmarshalling the bare defaults cannot fail.
	_ = newViper(os.DevNull).Unmarshal(cfg)
	return cfg
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the enumerated settings and the key separation rule.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite, BackendKeyring, BackendRedis:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Storage.NotificationsKey == "" || c.Storage.OfflineKey == "" {
		return fmt.Errorf("storage keys must not be empty")
	}
	if c.Storage.NotificationsKey == c.Storage.OfflineKey {
		return fmt.Errorf("notifications and offline queue share key %q", c.Storage.OfflineKey)
	}

	switch c.Offline.FlushPolicy {
	case FlushPolicyAck, FlushPolicyOptimistic:
	default:
		return fmt.Errorf("unknown flush policy %q", c.Offline.FlushPolicy)
	}

	switch c.Offline.Forwarder {
	case ForwarderNone, ForwarderLog, ForwarderKafka, ForwarderIMAP:
	default:
		return fmt.Errorf("unknown forwarder %q", c.Offline.Forwarder)
	}

	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("storage", cfg.Storage)
	v.Set("offline", cfg.Offline)
	v.Set("forward", cfg.Forward)
	v.Set("connectivity", cfg.Connectivity)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
