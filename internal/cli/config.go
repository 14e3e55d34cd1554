package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/splitq/internal/cache"
	"github.com/roach88/splitq/internal/logic"
)

// DefaultCachePath is the cache database used when no config names one.
const DefaultCachePath = "splitq.db"

// Config is the YAML configuration shared by all commands.
//
//	catalog: ./datasets
//	cache:
//	  path: ./splitq.db
//	  memo_size: 1024
//	dnf:
//	  max_clauses: 20
type Config struct {
	Catalog string      `yaml:"catalog"`
	Cache   CacheConfig `yaml:"cache"`
	DNF     DNFConfig   `yaml:"dnf"`
}

// CacheConfig configures the persistent cache and the simplification memo.
type CacheConfig struct {
	Path     string `yaml:"path"`
	MemoSize int    `yaml:"memo_size"`
}

// DNFConfig configures DNF expansion.
type DNFConfig struct {
	// MaxClauses bounds truth-table expansion. Zero uses the default.
	MaxClauses int `yaml:"max_clauses"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{Path: DefaultCachePath, MemoSize: cache.DefaultMemoSize},
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults. Unknown fields are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data over the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Cache.MemoSize <= 0 {
		return cfg, fmt.Errorf("cache.memo_size must be positive, got %d", cfg.Cache.MemoSize)
	}
	if cfg.DNF.MaxClauses < 0 {
		return cfg, fmt.Errorf("dnf.max_clauses must not be negative, got %d", cfg.DNF.MaxClauses)
	}
	return cfg, nil
}

// LogicOptions returns the DNF options for the configured budget.
func (c Config) LogicOptions() logic.Options {
	return logic.Options{MaxTruthTableClauses: c.DNF.MaxClauses}
}
