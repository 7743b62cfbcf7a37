// Package config loads and validates the runtime's TOML configuration,
// grounded on the daemon config loader's DefaultConfig/LoadConfig/SaveConfig
// shape, extended with the schema validation the original firmware's
// interfaces.validate_configuration performed against its config template
// before ever attempting to connect.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// IdentityConfig names the device to the rest of the world.
type IdentityConfig struct {
	Model           string `toml:"model"`
	InstanceVersion string `toml:"instance_version"`
	UUID            string `toml:"uuid"` // empty means generate and persist one on first boot
}

// NetworkConfig controls the lower transport link (Wi-Fi on the original
// firmware; left generic here since Go targets are not board-specific).
type NetworkConfig struct {
	Interface      string `toml:"interface"`
	ConnectTimeout string `toml:"connect_timeout"`
}

// BrokerConfig controls the MQTT broker connection.
type BrokerConfig struct {
	URL           string `toml:"url"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	KeepAlive     string `toml:"keep_alive"`
	RetryMax      int    `toml:"retry_max"`
	RetryBaseWait string `toml:"retry_base_wait"`
}

// SerializerConfig picks the wire codec.
type SerializerConfig struct {
	Codec string `toml:"codec"` // "json" or "msgpack"
}

// VFSConfig controls the filesystem root core actions operate under.
type VFSConfig struct {
	Root string `toml:"root"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// DebugConfig controls the loopback-only local introspection HTTP server.
type DebugConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// StoreConfig controls the sqlite retained-state mirror.
type StoreConfig struct {
	Path string `toml:"path"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Config is the root configuration document.
type Config struct {
	Identity   IdentityConfig   `toml:"identity"`
	Network    NetworkConfig    `toml:"network"`
	Broker     BrokerConfig     `toml:"broker"`
	Serializer SerializerConfig `toml:"serializer"`
	VFS        VFSConfig        `toml:"vfs"`
	Logging    LoggingConfig    `toml:"logging"`
	Debug      DebugConfig      `toml:"debug"`
	Store      StoreConfig      `toml:"store"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// DefaultConfig returns sensible defaults; every field a deployment
// actually cares about is still expected to be set explicitly in
// config.toml, but the runtime must come up even from an empty file.
func DefaultConfig() Config {
	home := citylinkHome()
	return Config{
		Identity: IdentityConfig{
			Model:           "generic",
			InstanceVersion: "0.1.0",
		},
		Network: NetworkConfig{
			ConnectTimeout: "10s",
		},
		Broker: BrokerConfig{
			URL:           "tcp://localhost:1883",
			KeepAlive:     "60s",
			RetryMax:      0, // 0 = retry forever
			RetryBaseWait: "1s",
		},
		Serializer: SerializerConfig{Codec: "json"},
		VFS:        VFSConfig{Root: filepath.Join(home, "vfs")},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
		Debug:      DebugConfig{Enabled: false, Addr: "127.0.0.1:8766"},
		Store:      StoreConfig{Path: filepath.Join(home, "citylink.db")},
		Metrics:    MetricsConfig{Enabled: false, Addr: "127.0.0.1:9464"},
	}
}

// Load reads config from path, falling back to defaults for any key the
// file doesn't set, then validates the result. If identity.uuid is absent,
// a fresh one is generated and written back to path so the instance
// identity survives across restarts — the Go equivalent of the original
// firmware persisting its generated UUID to flash on first boot.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	isNew := false

	if _, err := os.Stat(path); os.IsNotExist(err) {
		isNew = true
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Identity.UUID == "" {
		cfg.Identity.UUID = uuid.NewString()
		isNew = true
	}
	if isNew {
		if err := Save(cfg, path); err != nil {
			return cfg, fmt.Errorf("config: persist generated identity: %w", err)
		}
	}

	return cfg, Validate(cfg)
}

// Save writes cfg to path, creating parent directories as needed.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func citylinkHome() string {
	if env := os.Getenv("CITYLINK_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".citylink")
}

// CitylinkHome is exported for use by the CLI package.
func CitylinkHome() string {
	return citylinkHome()
}
