// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/procsniff/internal/core"
)

// Config represents the top-level configuration.
// Maps to the `procsniff:` root key in YAML.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Feed    FeedConfig    `mapstructure:"feed" yaml:"feed"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
}

// ─── Capture ───

// Capture source types.
const (
	CaptureTypePcap     = "pcap"
	CaptureTypeAFPacket = "afpacket"
	CaptureTypeFile     = "file"
)

// CaptureConfig selects and tunes the capture device. The device is always
// explicit configuration handed to the source at construction.
type CaptureConfig struct {
	Type         string        `mapstructure:"type" yaml:"type"`               // pcap / afpacket / file
	Device       string        `mapstructure:"device" yaml:"device"`           // Empty = first pcap device
	File         string        `mapstructure:"file" yaml:"file"`               // pcap file for type=file
	SnapLen      int           `mapstructure:"snap_len" yaml:"snap_len"`       // Default 65535
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`         // Read timeout, bounds shutdown latency
	Promiscuous  bool          `mapstructure:"promiscuous" yaml:"promiscuous"` // pcap only
	BPFFilter    string        `mapstructure:"bpf_filter" yaml:"bpf_filter"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"` // afpacket ring size
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" yaml:"level"`   // debug / info / warn / error
	Format  string           `mapstructure:"format" yaml:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stderr.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Feed ───

// FeedConfig configures the websocket packet feed.
type FeedConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Listen       string        `mapstructure:"listen" yaml:"listen"`
	Path         string        `mapstructure:"path" yaml:"path"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxBatch     int           `mapstructure:"max_batch" yaml:"max_batch"` // Max packets per push
}

// ─── Watch ───

// WatchConfig configures the terminal printer of the watch command.
type WatchConfig struct {
	Refresh time.Duration `mapstructure:"refresh" yaml:"refresh"`
	Rows    int           `mapstructure:"rows" yaml:"rows"`
}

// ─── Loading ───

const rootKey = "procsniff"

// configRoot is the top-level wrapper matching the YAML structure `procsniff: ...`.
type configRoot struct {
	Procsniff Config `mapstructure:"procsniff" yaml:"procsniff"`
}

// Load loads configuration from file. An empty path yields defaults plus
// environment overrides. Env vars use the PROCSNIFF_ prefix
// (e.g. PROCSNIFF_CAPTURE_DEVICE).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `procsniff.` key prefix maps to `PROCSNIFF_` via the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&root, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Procsniff

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "procsniff." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	key := func(k string) string { return rootKey + "." + k }

	// Capture defaults
	v.SetDefault(key("capture.type"), CaptureTypePcap)
	v.SetDefault(key("capture.device"), "")
	v.SetDefault(key("capture.file"), "")
	v.SetDefault(key("capture.snap_len"), 65535)
	v.SetDefault(key("capture.timeout"), "100ms")
	v.SetDefault(key("capture.promiscuous"), true)
	v.SetDefault(key("capture.bpf_filter"), "")
	v.SetDefault(key("capture.buffer_size_mb"), 8)

	// Log defaults
	v.SetDefault(key("log.level"), "info")
	v.SetDefault(key("log.format"), "text")
	v.SetDefault(key("log.outputs.file.enabled"), false)
	v.SetDefault(key("log.outputs.file.path"), "/var/log/procsniff/procsniff.log")
	v.SetDefault(key("log.outputs.file.rotation.max_size_mb"), 100)
	v.SetDefault(key("log.outputs.file.rotation.max_age_days"), 30)
	v.SetDefault(key("log.outputs.file.rotation.max_backups"), 5)
	v.SetDefault(key("log.outputs.file.rotation.compress"), true)

	// Metrics defaults
	v.SetDefault(key("metrics.enabled"), false)
	v.SetDefault(key("metrics.listen"), ":9091")
	v.SetDefault(key("metrics.path"), "/metrics")

	// Feed defaults
	v.SetDefault(key("feed.enabled"), false)
	v.SetDefault(key("feed.listen"), "127.0.0.1:8686")
	v.SetDefault(key("feed.path"), "/ws")
	v.SetDefault(key("feed.poll_interval"), "250ms")
	v.SetDefault(key("feed.max_batch"), 256)

	// Watch defaults
	v.SetDefault(key("watch.refresh"), "1s")
	v.SetDefault(key("watch.rows"), 20)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	// ── Capture validation ──
	if err := cfg.Capture.Validate(); err != nil {
		return err
	}

	// ── Feed / watch ──
	if cfg.Feed.Enabled && cfg.Feed.Listen == "" {
		return fmt.Errorf("%w: feed.listen is required when feed.enabled=true", core.ErrConfigInvalid)
	}
	if cfg.Feed.PollInterval <= 0 {
		cfg.Feed.PollInterval = 250 * time.Millisecond
	}
	if cfg.Feed.MaxBatch <= 0 {
		cfg.Feed.MaxBatch = 256
	}
	if cfg.Watch.Refresh <= 0 {
		cfg.Watch.Refresh = time.Second
	}
	if cfg.Watch.Rows <= 0 {
		cfg.Watch.Rows = 20
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}

	return nil
}

// Validate checks the capture section and fills zero values.
func (c *CaptureConfig) Validate() error {
	switch c.Type {
	case CaptureTypePcap, CaptureTypeAFPacket:
	case CaptureTypeFile:
		if c.File == "" {
			return fmt.Errorf("%w: capture.file is required when capture.type=file", core.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: capture.type must be pcap/afpacket/file, got %q", core.ErrConfigInvalid, c.Type)
	}

	if c.Type == CaptureTypeAFPacket && c.Device == "" {
		return fmt.Errorf("%w: capture.device is required when capture.type=afpacket", core.ErrConfigInvalid)
	}
	if c.SnapLen <= 0 {
		c.SnapLen = 65535
	}
	if c.Timeout <= 0 {
		c.Timeout = 100 * time.Millisecond
	}
	if c.BufferSizeMB <= 0 {
		c.BufferSizeMB = 8
	}
	return nil
}

// Dump renders cfg as YAML under the `procsniff:` root key.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(configRoot{Procsniff: *cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
