// Package graphconfig configures a txgraph.Graph the way the rest of this
// module's ambient stack is configured: a YAML file for checked-in
// defaults, environment variables for Docker/Kubernetes overrides, and a
// DefaultConfig that's always safe to run with.
//
// Environment Variables:
//
//	TXGRAPH_N        - bloom filter target element count (default: 1000000)
//	TXGRAPH_P        - bloom filter target false positive rate (default: 0.01)
//	TXGRAPH_AUTOGC   - deactivations between automatic GC cycles; -1 disables (default: 1000)
//	TXGRAPH_BUDGET   - allocator byte budget; 0 or unset means unbounded
package graphconfig

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/txgraph/pkg/alloc"
	"github.com/orneryd/txgraph/txgraph"
)

// Config is the on-disk/env-var shape. It mirrors txgraph.Options field for
// field but stays independent of it so the wire format doesn't change
// whenever the graph package's internals do.
type Config struct {
	N      int64   `yaml:"n"`
	P      float64 `yaml:"p"`
	AutoGC int     `yaml:"autogc"`
	Budget int64   `yaml:"budget"`
}

// DefaultConfig returns the configuration a fresh deployment should start
// from: the graph's own defaults, and an unbounded allocator.
func DefaultConfig() *Config {
	return &Config{
		N:      1_000_000,
		P:      0.01,
		AutoGC: 1000,
		Budget: 0,
	}
}

// LoadFile reads and parses a YAML configuration file. Missing files are not
// an error: callers typically call LoadFile then LoadEnv to layer overrides
// atop whatever defaults the file establishes (or DefaultConfig() if there
// is no file at all).
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graphconfig: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("graphconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv applies TXGRAPH_* environment variable overrides atop cfg,
// mutating it in place. This is the recommended entry point for
// Docker/Kubernetes deployments where a mounted YAML file is inconvenient.
func LoadEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("TXGRAPH_N"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("graphconfig: TXGRAPH_N: %w", err)
		}
		cfg.N = n
	}
	if v, ok := os.LookupEnv("TXGRAPH_P"); ok {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("graphconfig: TXGRAPH_P: %w", err)
		}
		cfg.P = p
	}
	if v, ok := os.LookupEnv("TXGRAPH_AUTOGC"); ok {
		a, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("graphconfig: TXGRAPH_AUTOGC: %w", err)
		}
		cfg.AutoGC = a
	}
	if v, ok := os.LookupEnv("TXGRAPH_BUDGET"); ok {
		b, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("graphconfig: TXGRAPH_BUDGET: %w", err)
		}
		cfg.Budget = b
	}
	return nil
}

// Validate reports whether cfg can be turned into working txgraph.Options.
func (c *Config) Validate() error {
	if c.P < 0 {
		return fmt.Errorf("graphconfig: p must be non-negative, got %f", c.P)
	}
	if c.Budget < 0 {
		return fmt.Errorf("graphconfig: budget must be non-negative, got %d", c.Budget)
	}
	return nil
}

// Options converts cfg into txgraph.Options, wiring up an allocator: an
// unbounded alloc.Default() when Budget is 0, or a bounded one otherwise.
func (c *Config) Options() txgraph.Options {
	a := alloc.Default()
	if c.Budget > 0 {
		a = alloc.Bounded(c.Budget)
	}
	return txgraph.Options{
		Alloc:  a,
		N:      c.N,
		P:      c.P,
		AutoGC: c.AutoGC,
	}
}
