package sched

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
)

const (
	// MaxSyscallNum bounds the per-task syscall counter table.
	MaxSyscallNum = 500

	// MinPriority is the lowest priority SetPriority accepts.
	MinPriority uint64 = 2

	DefaultBigStride uint64 = 1 << 16
	DefaultPriority  uint64 = 16
)

// Config mirrors config.yml
type Config struct {
	TickMS          int    `yaml:"tick_ms"`          // 5 (by default)
	SliceTicks      int    `yaml:"slice_ticks"`      // 5 (by default)
	BigStride       uint64 `yaml:"big_stride"`       // 65536 (by default)
	DefaultPriority uint64 `yaml:"default_priority"` // 16 (by default)
	ExitWhenIdle    bool   `yaml:"exit_when_idle"`
	CSVPath         string `yaml:"csv_path"`
}

// If the config file is not found, we use default values
func DefaultConfig() Config {
	return Config{
		TickMS:          5,
		SliceTicks:      5,
		BigStride:       DefaultBigStride,
		DefaultPriority: DefaultPriority,
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only.
// A missing file also falls back to defaults, a malformed one is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.clamp()
	return cfg, nil
}

// sanity clamps
func (c *Config) clamp() {
	if c.SliceTicks <= 0 {
		c.SliceTicks = 5
	}
	if c.TickMS <= 0 {
		c.TickMS = 5
	}
	if c.BigStride == 0 {
		c.BigStride = DefaultBigStride
	}
	if c.DefaultPriority < MinPriority {
		c.DefaultPriority = DefaultPriority
	}
}
