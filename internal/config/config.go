// Package config loads and validates the agent's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "line"

	defaultQueueCapacity   = 64 * 1024
	defaultFlushInterval   = time.Second
	defaultShutdownTimeout = 30 * time.Second
	maxFlushInterval       = time.Minute

	defaultSamplerMode     = "none"
	defaultSamplerInterval = 15 * time.Second
	defaultSamplerTarget   = uint64(100)

	defaultCollectInterval = 10 * time.Second
	defaultOutputPath      = "-"
)

// Duration wraps time.Duration for TOML parsing.
// Params: text duration string (e.g. "5s", "1m").
// Returns: parse error on invalid duration.
type Duration struct {
	time.Duration
}

// UnmarshalText parses TOML duration values.
// Params: text is raw duration bytes from TOML.
// Returns: error when value is not a valid Go duration.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the root agent configuration.
// Params: TOML document sections.
// Returns: validated runtime configuration.
type Config struct {
	Global  GlobalConfig  `toml:"global"`
	Log     LogConfig     `toml:"log"`
	Queue   QueueConfig   `toml:"queue"`
	Sampler SamplerConfig `toml:"sampler"`
	Codec   CodecConfig   `toml:"codec"`
	Output  OutputConfig  `toml:"output"`
	Collect CollectConfig `toml:"collect"`
	Pprof   PprofConfig   `toml:"pprof"`
}

// GlobalConfig contains the metric identity shared by all entries.
// Params: namespace, service name, and host override.
// Returns: global identity settings.
type GlobalConfig struct {
	Namespace string `toml:"namespace"`
	Service   string `toml:"service"`
	Host      string `toml:"host"`
}

// LogConfig contains console/file logging configuration.
// Params: console and file sink options.
// Returns: logger sink settings.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink options from TOML.
// Returns: sink setup.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// QueueConfig tunes the background delivery queue.
// Params: queue capacity and flush/shutdown timing.
// Returns: queue runtime settings.
type QueueConfig struct {
	Capacity        int      `toml:"capacity"`
	FlushInterval   Duration `toml:"flush_interval"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// SamplerConfig selects the entry sampler in front of the codec.
// Params: mode none/fixed/congress plus mode-specific tuning.
// Returns: sampler runtime settings.
type SamplerConfig struct {
	Mode                   string   `toml:"mode"`
	Rate                   float32  `toml:"rate"`
	Interval               Duration `toml:"interval"`
	TargetEntriesPerSecond uint64   `toml:"target_entries_per_second"`
	ValidateGroups         bool     `toml:"validate_groups"`
}

// CodecConfig tunes the structured-metric serializer.
// Params: dimension sets, extra namespaces, and validation toggles.
// Returns: codec runtime settings.
type CodecConfig struct {
	Dimensions      [][]string `toml:"dimensions"`
	ExtraNamespaces []string   `toml:"extra_namespaces"`
	LogGroupName    string     `toml:"log_group_name"`
	SkipValidations bool       `toml:"skip_validations"`
}

// OutputConfig selects where serialized metric lines go.
// Params: path "-" for stdout or a file path.
// Returns: output settings.
type OutputConfig struct {
	Path string `toml:"path"`
}

// CollectConfig tunes the built-in system metric collectors.
// Params: enable flag, collection interval, and source list.
// Returns: collector runtime settings.
type CollectConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
	Sources  []string `toml:"sources"`
}

// PprofConfig enables the optional pprof HTTP endpoint.
// Params: enable flag and listen address.
// Returns: pprof settings.
type PprofConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Load reads, expands, validates, and returns config from path.
// Params: path to TOML config file or directory with *.toml files.
// Returns: validated config pointer or error.
func Load(path string) (*Config, error) {
	raw, err := readConfigSource(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode TOML %q: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// readConfigSource reads one TOML file or concatenates *.toml files from directory.
// Params: path to config file or directory.
// Returns: raw TOML bytes or error.
func readConfigSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %q: %w", path, err)
	}

	if !info.IsDir() {
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", path, readErr)
		}
		return raw, nil
	}

	return readConfigDir(path)
}

// readConfigDir concatenates config snippets from one directory.
// Params: path to directory that contains *.toml files.
// Returns: concatenated TOML content or error.
func readConfigDir(path string) ([]byte, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %q: %w", path, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".toml") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("read config dir %q: no *.toml files", path)
	}

	var builder strings.Builder
	for _, name := range files {
		filePath := filepath.Join(path, name)
		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", filePath, readErr)
		}
		builder.Write(raw)
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}

	return []byte(builder.String()), nil
}

// applyDefaults fills defaults for optional configuration fields.
// Params: receiver config pointer.
// Returns: error if defaulting needs host lookup and it fails.
func (c *Config) applyDefaults() error {
	c.Log.Console.Level = lowerOrDefault(c.Log.Console.Level, defaultLogLevel)
	c.Log.Console.Format = lowerOrDefault(c.Log.Console.Format, defaultLogFormat)
	c.Log.File.Level = lowerOrDefault(c.Log.File.Level, defaultLogLevel)
	c.Log.File.Format = lowerOrDefault(c.Log.File.Format, "json")

	if !c.Log.Console.Enabled && !c.Log.File.Enabled {
		c.Log.Console.Enabled = true
	}

	if strings.TrimSpace(c.Global.Host) == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
		c.Global.Host = host
	}

	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = defaultQueueCapacity
	}
	if c.Queue.FlushInterval.Duration == 0 {
		c.Queue.FlushInterval.Duration = defaultFlushInterval
	}
	if c.Queue.ShutdownTimeout.Duration == 0 {
		c.Queue.ShutdownTimeout.Duration = defaultShutdownTimeout
	}

	c.Sampler.Mode = lowerOrDefault(c.Sampler.Mode, defaultSamplerMode)
	if c.Sampler.Interval.Duration == 0 {
		c.Sampler.Interval.Duration = defaultSamplerInterval
	}
	if c.Sampler.TargetEntriesPerSecond == 0 {
		c.Sampler.TargetEntriesPerSecond = defaultSamplerTarget
	}

	if len(c.Codec.Dimensions) == 0 {
		c.Codec.Dimensions = [][]string{{"Service"}}
	}

	if strings.TrimSpace(c.Output.Path) == "" {
		c.Output.Path = defaultOutputPath
	}

	if c.Collect.Interval.Duration == 0 {
		c.Collect.Interval.Duration = defaultCollectInterval
	}
	if c.Collect.Enabled && len(c.Collect.Sources) == 0 {
		c.Collect.Sources = []string{"cpu", "memory", "disk"}
	}

	if c.Pprof.Enabled && strings.TrimSpace(c.Pprof.Listen) == "" {
		c.Pprof.Listen = "localhost:6060"
	}

	return nil
}

// validate checks config consistency and required fields.
// Params: receiver config pointer.
// Returns: validation error for invalid or incomplete config.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Global.Namespace) == "" {
		return fmt.Errorf("global.namespace is required")
	}
	if strings.TrimSpace(c.Global.Service) == "" {
		return fmt.Errorf("global.service is required")
	}
	if strings.TrimSpace(c.Global.Host) == "" {
		return fmt.Errorf("global.host resolved to empty value")
	}

	if err := validateSink("log.console", c.Log.Console, false); err != nil {
		return err
	}
	if err := validateSink("log.file", c.Log.File, true); err != nil {
		return err
	}

	if c.Queue.Capacity < 0 {
		return fmt.Errorf("queue.capacity cannot be negative")
	}
	if c.Queue.FlushInterval.Duration <= 0 || c.Queue.FlushInterval.Duration >= maxFlushInterval {
		return fmt.Errorf("queue.flush_interval must be within (0, 1m)")
	}
	if c.Queue.ShutdownTimeout.Duration <= 0 {
		return fmt.Errorf("queue.shutdown_timeout must be > 0")
	}

	switch c.Sampler.Mode {
	case "none":
	case "fixed":
		if c.Sampler.Rate <= 0 || c.Sampler.Rate > 1 {
			return fmt.Errorf("sampler.rate must be within (0, 1] for fixed mode")
		}
	case "congress":
		if c.Sampler.Interval.Duration <= 0 {
			return fmt.Errorf("sampler.interval must be > 0")
		}
		if c.Sampler.TargetEntriesPerSecond == 0 {
			return fmt.Errorf("sampler.target_entries_per_second must be > 0")
		}
	default:
		return fmt.Errorf("sampler.mode must be one of: none, fixed, congress")
	}

	for idx, set := range c.Codec.Dimensions {
		for nameIdx, name := range set {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("codec.dimensions[%d][%d] cannot be empty", idx, nameIdx)
			}
		}
	}
	for idx, ns := range c.Codec.ExtraNamespaces {
		if strings.TrimSpace(ns) == "" {
			return fmt.Errorf("codec.extra_namespaces[%d] cannot be empty", idx)
		}
	}

	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("output.path cannot be empty")
	}

	if c.Collect.Enabled {
		if c.Collect.Interval.Duration <= 0 {
			return fmt.Errorf("collect.interval must be > 0")
		}
		for idx, source := range c.Collect.Sources {
			switch strings.ToLower(strings.TrimSpace(source)) {
			case "cpu", "memory", "disk":
			default:
				return fmt.Errorf("collect.sources[%d] must be one of: cpu, memory, disk", idx)
			}
		}
	}

	return nil
}

// validateSink validates one logging sink configuration.
// Params: name is sink path for errors; sink is sink config; requirePath means path required when enabled.
// Returns: validation error or nil.
func validateSink(name string, sink LogSinkConfig, requirePath bool) error {
	if sink.Enabled && requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required when sink is enabled", name)
	}

	if err := validateLogLevel(sink.Level); err != nil {
		return fmt.Errorf("%s.level: %w", name, err)
	}
	if err := validateLogFormat(sink.Format); err != nil {
		return fmt.Errorf("%s.format: %w", name, err)
	}

	return nil
}

// validateLogLevel validates known log levels.
// Params: level is lower-case level name.
// Returns: error when level is unsupported.
func validateLogLevel(level string) error {
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", level)
	}
}

// validateLogFormat validates supported sink formats.
// Params: format is lower-case format name.
// Returns: error when format is unsupported.
func validateLogFormat(format string) error {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "line", "json":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", format)
	}
}

// lowerOrDefault returns a trimmed lower-case value or default fallback.
// Params: value to normalize; fallback value when empty.
// Returns: normalized value.
func lowerOrDefault(value, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return fallback
	}
	return normalized
}
