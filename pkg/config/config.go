// Package config handles corticai configuration from YAML files and
// environment variables.
//
// Settings start from Default(), are overlaid by a YAML file when one is
// given, and are finally overridden by CORTICAI_* environment variables.
// Validate the result with Validate() before use.
//
// Example Usage:
//
//	cfg, err := config.Load("./corticai.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables:
//   - CORTICAI_DATABASE_PATH="./data/graph"
//   - CORTICAI_AUTO_CREATE=true
//   - CORTICAI_DEBUG=true
//   - CORTICAI_IN_MEMORY=true
//   - CORTICAI_SYNC_WRITES=true
//   - CORTICAI_LOW_MEMORY=true
//   - CORTICAI_DUPLICATE_NODES="upsert" or "reject"
//   - CORTICAI_INDEX_PATH="./data/index.json"
//   - CORTICAI_TRAVERSAL_BUDGET=100000
//   - CORTICAI_LOG_LEVEL="info"
//   - CORTICAI_LOG_FORMAT="json" or "console"
//   - CORTICAI_MEMORY_LIMIT="2GB"
//   - CORTICAI_GC_PERCENT=100
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwynia/corticai/pkg/storage"
)

// Config holds all corticai configuration.
type Config struct {
	// DatabasePath is the BadgerDB data directory.
	DatabasePath string `yaml:"database_path"`
	// AutoCreate makes AddEdge create missing endpoints as placeholder nodes.
	AutoCreate bool `yaml:"auto_create"`
	// Debug switches logging to a development logger at debug level.
	Debug bool `yaml:"debug"`

	// InMemory keeps the graph in memory only; DatabasePath is ignored.
	InMemory bool `yaml:"in_memory"`
	// SyncWrites fsyncs every write instead of waiting for Sync.
	SyncWrites bool `yaml:"sync_writes"`
	// LowMemory shrinks BadgerDB memtables and caches.
	LowMemory bool `yaml:"low_memory"`
	// DuplicateNodes is "upsert" (default) or "reject".
	DuplicateNodes string `yaml:"duplicate_nodes"`

	// IndexPath is where the attribute index snapshot lives. Empty disables
	// index persistence.
	IndexPath string `yaml:"index_path"`

	// TraversalBudget caps edge expansions per traversal call; 0 is unlimited.
	TraversalBudget int `yaml:"traversal_budget"`

	Logging LoggingConfig `yaml:"logging"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error)
	Level string `yaml:"level"`
	// Format (json, console)
	Format string `yaml:"format"`
}

// RuntimeConfig holds Go runtime settings.
type RuntimeConfig struct {
	// MemoryLimit is the soft heap limit, e.g. "2GB". 0 means unlimited.
	MemoryLimit ByteSize `yaml:"memory_limit"`
	// GCPercent sets the GC target percentage. 100 is the Go default.
	GCPercent int `yaml:"gc_percent"`
}

// ByteSize is a byte count that reads human-readable sizes like "512MB".
type ByteSize int64

// UnmarshalYAML accepts plain integers and size strings.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: memory size must be a scalar", node.Line)
	}
	*b = ByteSize(parseMemorySize(node.Value))
	return nil
}

// String formats the size for humans.
func (b ByteSize) String() string {
	return FormatMemorySize(int64(b))
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DatabasePath:   "./data/graph",
		DuplicateNodes: storage.DuplicateUpsert.String(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Runtime: RuntimeConfig{
			GCPercent: 100,
		},
	}
}

// LoadFromEnv returns Default() overridden by environment variables.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML file over Default(). Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads path (when non-empty) and then applies environment overrides.
// Environment variables take precedence over file settings.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DatabasePath = getEnv("CORTICAI_DATABASE_PATH", c.DatabasePath)
	c.AutoCreate = getEnvBool("CORTICAI_AUTO_CREATE", c.AutoCreate)
	c.Debug = getEnvBool("CORTICAI_DEBUG", c.Debug)
	c.InMemory = getEnvBool("CORTICAI_IN_MEMORY", c.InMemory)
	c.SyncWrites = getEnvBool("CORTICAI_SYNC_WRITES", c.SyncWrites)
	c.LowMemory = getEnvBool("CORTICAI_LOW_MEMORY", c.LowMemory)
	c.DuplicateNodes = getEnv("CORTICAI_DUPLICATE_NODES", c.DuplicateNodes)
	c.IndexPath = getEnv("CORTICAI_INDEX_PATH", c.IndexPath)
	c.TraversalBudget = getEnvInt("CORTICAI_TRAVERSAL_BUDGET", c.TraversalBudget)
	c.Logging.Level = getEnv("CORTICAI_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("CORTICAI_LOG_FORMAT", c.Logging.Format)
	if val := os.Getenv("CORTICAI_MEMORY_LIMIT"); val != "" {
		c.Runtime.MemoryLimit = ByteSize(parseMemorySize(val))
	}
	c.Runtime.GCPercent = getEnvInt("CORTICAI_GC_PERCENT", c.Runtime.GCPercent)
}

// Validate checks the configuration for invalid values.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	if !c.InMemory && strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database path required unless in_memory is set")
	}
	if _, err := c.DuplicatePolicy(); err != nil {
		return err
	}
	if c.TraversalBudget < 0 {
		return fmt.Errorf("invalid traversal budget: %d", c.TraversalBudget)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Runtime.MemoryLimit < 0 {
		return fmt.Errorf("invalid memory limit: %d", c.Runtime.MemoryLimit)
	}
	return nil
}

// DuplicatePolicy returns the parsed duplicate node policy.
func (c *Config) DuplicatePolicy() (storage.DuplicatePolicy, error) {
	return storage.ParseDuplicatePolicy(strings.ToLower(c.DuplicateNodes))
}

// String returns a string representation of the Config suitable for logging.
func (c *Config) String() string {
	location := c.DatabasePath
	if c.InMemory {
		location = "memory"
	}
	index := c.IndexPath
	if index == "" {
		index = "none"
	}
	return fmt.Sprintf(
		"Config{Database: %s, AutoCreate: %v, Duplicates: %s, Index: %s, Budget: %d, Debug: %v}",
		location, c.AutoCreate, c.DuplicateNodes, index, c.TraversalBudget, c.Debug,
	)
}

// ApplyRuntimeMemory applies the runtime memory settings to the Go runtime.
// Should be called early in main() before heavy allocations.
func (c *RuntimeConfig) ApplyRuntimeMemory() {
	if c.MemoryLimit > 0 {
		debug.SetMemoryLimit(int64(c.MemoryLimit))
	}
	if c.GCPercent != 100 && c.GCPercent != 0 {
		debug.SetGCPercent(c.GCPercent)
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited"
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
