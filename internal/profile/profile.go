// Package profile generates the opaque parameter profile handed to the
// scoring program with every evaluation. The search re-randomizes it before
// each restart so that the objective is sampled under slightly different
// operating points.
package profile

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// Config describes a family of profiles: Steps settings of Codec whose
// distance targets are spaced geometrically between Min and Max.
type Config struct {
	Codec string  `yaml:"codec" json:"codec"`
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
	Steps int     `yaml:"steps" json:"steps"`

	// Static, when non-empty, is returned verbatim and disables randomization.
	Static string `yaml:"static,omitempty" json:"static,omitempty"`
}

// DefaultConfig returns the profile family used when none is configured.
func DefaultConfig() Config {
	return Config{
		Codec: "jxl:fast",
		Min:   0.6,
		Max:   5.0,
		Steps: 5,
	}
}

// Validate checks that the config can produce profiles.
func (c Config) Validate() error {
	if c.Static != "" {
		return nil
	}
	if c.Codec == "" {
		return fmt.Errorf("profile codec cannot be empty")
	}
	if c.Steps < 1 {
		return fmt.Errorf("profile steps must be positive: %d", c.Steps)
	}
	if c.Min <= 0 || c.Max <= 0 {
		return fmt.Errorf("profile bounds must be positive: min=%g max=%g", c.Min, c.Max)
	}
	return nil
}

// Generator produces randomized profiles.
type Generator struct {
	config Config
	rng    *rand.Rand
}

// NewGenerator creates a generator drawing jitter from rng.
func NewGenerator(config Config, rng *rand.Rand) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Generator{config: config, rng: rng}, nil
}

// Next returns a fresh profile such as
// "jxl:fast:d0.601,jxl:fast:d0.978,...". Each distance is jittered by a
// factor in [0.99, 1.04).
func (g *Generator) Next() string {
	if g.config.Static != "" {
		return g.config.Static
	}

	ratio := g.config.Max / g.config.Min
	parts := make([]string, g.config.Steps)
	for i := range parts {
		mul := g.config.Min
		if g.config.Steps > 1 {
			mul *= math.Pow(ratio, float64(i)/float64(g.config.Steps-1))
		}
		mul *= 0.99 + 0.05*g.rng.Float64()
		parts[i] = fmt.Sprintf("%s:d%.3f", g.config.Codec, mul)
	}
	return strings.Join(parts, ",")
}
