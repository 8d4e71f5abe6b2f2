package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/scribe/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir         string      `json:"dataDir" yaml:"dataDir"`
	Backend         string      `json:"backend" yaml:"backend"` // "pebble" or "sqlite"
	Fsync           string      `json:"fsync" yaml:"fsync"`     // "always", "interval" or "never"
	FsyncIntervalMs int         `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	QueueLen        int         `json:"queueLen" yaml:"queueLen"`
	PublishCommands bool        `json:"publishCommands" yaml:"publishCommands"`
	Kafka           KafkaConfig `json:"kafka" yaml:"kafka"`
	Log             log.Config  `json:"log" yaml:"log"`
}

// KafkaConfig configures the optional Kafka notification sink. Publishing
// is off unless brokers are set.
type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		Backend:         "pebble",
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		QueueLen:        1024,
		Kafka: KafkaConfig{
			Topic: "scribe-journal-events",
		},
		Log: log.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If
// path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can act on.
func (c Config) Validate() error {
	switch c.Backend {
	case "pebble", "sqlite":
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	switch c.Fsync {
	case "always", "interval", "never":
	default:
		return fmt.Errorf("config: unknown fsync mode %q", c.Fsync)
	}
	if c.QueueLen < 0 {
		return fmt.Errorf("config: negative queueLen %d", c.QueueLen)
	}
	if c.FsyncIntervalMs < 0 {
		return fmt.Errorf("config: negative fsyncIntervalMs %d", c.FsyncIntervalMs)
	}
	return nil
}
