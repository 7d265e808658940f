package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as a string ("100ms", "2s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full logdeck configuration.
type Config struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`

	Store    StoreConfig    `toml:"store"`
	Dispatch DispatchConfig `toml:"dispatch"`
	Listen   ListenConfig   `toml:"listen"`
	Poll     PollConfig     `toml:"poll"`
	Files    FilesConfig    `toml:"files"`
	Kafka    KafkaConfig    `toml:"kafka"`
}

// StoreConfig bounds the in-memory event store.
type StoreConfig struct {
	MaxEntries    int     `toml:"max_entries"`
	TrimThreshold float64 `toml:"trim_threshold"`
	TrimTarget    float64 `toml:"trim_target"`
}

// DispatchConfig tunes ingestion and liveness checks.
type DispatchConfig struct {
	QueueCap         int      `toml:"queue_cap"`
	BatchSize        int      `toml:"batch_size"`
	FlushInterval    Duration `toml:"flush_interval"`
	SlowDelivery     Duration `toml:"slow_delivery"`
	LivenessInterval Duration `toml:"liveness_interval"`
	StallMultiple    float64  `toml:"stall_multiple"`
}

// ListenConfig enables the HTTP/WebSocket listener when Addr is set.
type ListenConfig struct {
	Addr string `toml:"addr"`
}

// PollConfig enables the HTTP poller when URL is set.
type PollConfig struct {
	URL      string   `toml:"url"`
	Interval Duration `toml:"interval"`
}

// FilesConfig enables file import when Paths is non-empty.
type FilesConfig struct {
	Paths     []string `toml:"paths"`
	TailLines int      `toml:"tail_lines"`
	Follow    bool     `toml:"follow"`
}

// KafkaConfig enables the Kafka consumer when brokers and topic are set.
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	Group   string   `toml:"group"`
}

const (
	defaultConfigPath = "~/.config/logdeck/config.toml"
	defaultLogFile    = "~/.local/state/logdeck/logdeck.log"

	// minMaxEntries keeps one event after a trim.
	minMaxEntries = 2
)

// DefaultPath returns the config location used when none is given.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		LogFile:   defaultLogFile,
		Store: StoreConfig{
			MaxEntries:    100000,
			TrimThreshold: 0.95,
			TrimTarget:    0.9,
		},
		Dispatch: DispatchConfig{
			QueueCap:         50000,
			BatchSize:        1000,
			FlushInterval:    Duration{100 * time.Millisecond},
			SlowDelivery:     Duration{150 * time.Millisecond},
			LivenessInterval: Duration{time.Second},
			StallMultiple:    2.0,
		},
		Poll: PollConfig{
			Interval: Duration{2 * time.Second},
		},
		Files: FilesConfig{
			TailLines: 1000,
			Follow:    true,
		},
		Kafka: KafkaConfig{
			Group: "logdeck",
		},
	}
}

// Load reads the config at path, falling back to defaults when the file is
// missing. Keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.Normalize()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize trims strings, expands "~" in paths and replaces out-of-range
// values with defaults.
func (c *Config) Normalize() {
	def := Default()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != "json" {
		c.LogFormat = def.LogFormat
	}
	if strings.TrimSpace(c.LogFile) == "" {
		c.LogFile = def.LogFile
	}
	c.LogFile = mustExpand(c.LogFile)

	if c.Store.MaxEntries <= 0 {
		c.Store.MaxEntries = def.Store.MaxEntries
	}
	if c.Store.MaxEntries < minMaxEntries {
		c.Store.MaxEntries = minMaxEntries
	}
	if c.Store.TrimThreshold <= 0 || c.Store.TrimThreshold > 1 {
		c.Store.TrimThreshold = def.Store.TrimThreshold
	}
	if c.Store.TrimTarget <= 0 || c.Store.TrimTarget >= 1 {
		c.Store.TrimTarget = def.Store.TrimTarget
	}

	d := &c.Dispatch
	if d.QueueCap <= 0 {
		d.QueueCap = def.Dispatch.QueueCap
	}
	if d.BatchSize <= 0 {
		d.BatchSize = def.Dispatch.BatchSize
	}
	if d.FlushInterval.Duration <= 0 {
		d.FlushInterval = def.Dispatch.FlushInterval
	}
	if d.SlowDelivery.Duration <= 0 {
		d.SlowDelivery = def.Dispatch.SlowDelivery
	}
	if d.LivenessInterval.Duration <= 0 {
		d.LivenessInterval = def.Dispatch.LivenessInterval
	}
	if d.StallMultiple <= 1 {
		d.StallMultiple = def.Dispatch.StallMultiple
	}

	c.Listen.Addr = strings.TrimSpace(c.Listen.Addr)
	c.Poll.URL = strings.TrimSpace(c.Poll.URL)
	if c.Poll.Interval.Duration <= 0 {
		c.Poll.Interval = def.Poll.Interval
	}

	paths := c.Files.Paths[:0]
	for _, p := range c.Files.Paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		paths = append(paths, mustExpand(p))
	}
	c.Files.Paths = paths

	brokers := c.Kafka.Brokers[:0]
	for _, b := range c.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Kafka.Brokers = brokers
	c.Kafka.Topic = strings.TrimSpace(c.Kafka.Topic)
	if strings.TrimSpace(c.Kafka.Group) == "" {
		c.Kafka.Group = def.Kafka.Group
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
