// Package config loads and validates the settings of a search run.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/simplexsearch/internal/objective"
	"github.com/cwbudde/simplexsearch/internal/profile"
	"github.com/cwbudde/simplexsearch/internal/search"
)

// Search methods.
const (
	MethodSimplex = "simplex"
	MethodMayfly  = "mayfly"
	MethodGonum   = "gonum"
)

// CollaboratorConfig describes the process contract with the scoring program.
type CollaboratorConfig struct {
	ProfileFlag string        `yaml:"profile_flag" json:"profileFlag"`
	EnvPrefix   string        `yaml:"env_prefix" json:"envPrefix"`
	ResetSlots  int           `yaml:"reset_slots" json:"resetSlots"`
	BestEnv     string        `yaml:"best_env" json:"bestEnv"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"` // 0 = wait forever
}

// Config holds everything needed to run (or resume) one search.
// It is also the job configuration persisted with checkpoints.
type Config struct {
	Binary string   `yaml:"binary" json:"binary"`
	Args   []string `yaml:"args,omitempty" json:"args,omitempty"`

	Dim            int     `yaml:"dim" json:"dim"`
	Amount         float64 `yaml:"amount" json:"amount"`
	MaxEvaluations int     `yaml:"max_evaluations" json:"maxEvaluations"`
	Seed           int64   `yaml:"seed" json:"seed"`
	Method         string  `yaml:"method" json:"method"` // simplex, mayfly, gonum

	// Origin is the starting point; empty starts at zero.
	Origin      []float64 `yaml:"origin,omitempty" json:"origin,omitempty"`
	MaxRestarts int       `yaml:"max_restarts,omitempty" json:"maxRestarts,omitempty"`

	// Mayfly settings. The library takes one scalar bound for all dimensions.
	Lower   float64 `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper   float64 `yaml:"upper,omitempty" json:"upper,omitempty"`
	PopSize int     `yaml:"pop_size,omitempty" json:"popSize,omitempty"`
	Iters   int     `yaml:"iters,omitempty" json:"iters,omitempty"`

	Profile      profile.Config           `yaml:"profile" json:"profile"`
	Collaborator CollaboratorConfig       `yaml:"collaborator" json:"collaborator"`
	Convergence  search.ConvergenceConfig `yaml:"convergence" json:"convergence"`

	// CheckpointInterval saves a checkpoint every N restarts (0 = only at the end)
	CheckpointInterval int `yaml:"checkpoint_interval,omitempty" json:"checkpointInterval,omitempty"`
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		Amount:         1.0,
		MaxEvaluations: 1000,
		Seed:           1,
		Method:         MethodSimplex,
		MaxRestarts:    search.DefaultMaxRestarts,
		Lower:          -10,
		Upper:          10,
		PopSize:        20,
		Iters:          100,
		Profile:        profile.DefaultConfig(),
		Collaborator: CollaboratorConfig{
			ProfileFlag: objective.DefaultProfileFlag,
			EnvPrefix:   objective.DefaultEnvPrefix,
			ResetSlots:  objective.DefaultResetSlots,
			BestEnv:     objective.DefaultBestEnv,
		},
		Convergence:        search.DisabledConvergenceConfig(),
		CheckpointInterval: 1,
	}
}

// Load reads a YAML config file on top of the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. It does not validate, so that
// command-line overrides can be applied first.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	if c.Dim < 1 {
		return fmt.Errorf("dim must be positive, got %d", c.Dim)
	}
	if c.Amount == 0 || math.IsNaN(c.Amount) || math.IsInf(c.Amount, 0) {
		return fmt.Errorf("amount must be a non-zero finite number, got %g", c.Amount)
	}
	if c.MaxEvaluations < 1 {
		return fmt.Errorf("max_evaluations must be positive, got %d", c.MaxEvaluations)
	}
	if len(c.Origin) > 0 && len(c.Origin) != c.Dim {
		return fmt.Errorf("origin has %d coordinates, dim is %d", len(c.Origin), c.Dim)
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("max_restarts cannot be negative, got %d", c.MaxRestarts)
	}

	switch c.Method {
	case MethodSimplex, MethodGonum:
	case MethodMayfly:
		if c.Upper <= c.Lower {
			return fmt.Errorf("mayfly: upper bound %g must exceed lower bound %g", c.Upper, c.Lower)
		}
		if c.PopSize < 20 {
			return fmt.Errorf("mayfly: pop_size must be at least 20, got %d", c.PopSize)
		}
		if c.Iters < 1 {
			return fmt.Errorf("mayfly: iters must be positive, got %d", c.Iters)
		}
	default:
		return fmt.Errorf("unknown method: %s (must be simplex, mayfly, or gonum)", c.Method)
	}

	if err := c.Profile.Validate(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if c.Collaborator.ResetSlots < 0 {
		return fmt.Errorf("collaborator.reset_slots cannot be negative, got %d", c.Collaborator.ResetSlots)
	}
	if c.Collaborator.Timeout < 0 {
		return fmt.Errorf("collaborator.timeout cannot be negative, got %s", c.Collaborator.Timeout)
	}
	if c.Convergence.Enabled {
		if c.Convergence.Patience < 1 {
			return fmt.Errorf("convergence.patience must be positive, got %d", c.Convergence.Patience)
		}
		if c.Convergence.Threshold < 0 {
			return fmt.Errorf("convergence.threshold cannot be negative, got %g", c.Convergence.Threshold)
		}
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint_interval cannot be negative, got %d", c.CheckpointInterval)
	}
	return nil
}

// ProcessConfig returns the collaborator invocation settings.
func (c *Config) ProcessConfig() objective.ProcessConfig {
	return objective.ProcessConfig{
		Binary:      c.Binary,
		Args:        append([]string(nil), c.Args...),
		ProfileFlag: c.Collaborator.ProfileFlag,
		EnvPrefix:   c.Collaborator.EnvPrefix,
		ResetSlots:  c.Collaborator.ResetSlots,
		BestEnv:     c.Collaborator.BestEnv,
		Timeout:     c.Collaborator.Timeout,
	}
}

// SearchConfig returns the driver settings.
func (c *Config) SearchConfig() search.Config {
	var origin []float64
	if len(c.Origin) > 0 {
		origin = append([]float64(nil), c.Origin...)
	}
	return search.Config{
		Dim:         c.Dim,
		Amount:      c.Amount,
		Origin:      origin,
		MaxRestarts: c.MaxRestarts,
		Convergence: c.Convergence,
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Args = append([]string(nil), c.Args...)
	out.Origin = append([]float64(nil), c.Origin...)
	return &out
}
