package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays SCRIBE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("SCRIBE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SCRIBE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("SCRIBE_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("SCRIBE_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("SCRIBE_QUEUE_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueLen = n
		}
	}
	if v := os.Getenv("SCRIBE_PUBLISH_COMMANDS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PublishCommands = b
		}
	}
	if v := os.Getenv("SCRIBE_KAFKA_BROKERS"); v != "" {
		parts := strings.Split(v, ",")
		cfg.Kafka.Brokers = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, p)
			}
		}
	}
	if v := os.Getenv("SCRIBE_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("SCRIBE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SCRIBE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
