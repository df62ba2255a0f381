package search

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines when the restart loop may stop early.
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Patience is the number of restarts with no significant improvement before stopping
	Patience int `yaml:"patience" json:"patience"`

	// Threshold is the minimum relative improvement required to count as progress
	// Relative improvement = (lastSignificant - best) / lastSignificant
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// DefaultConvergenceConfig returns the settings used when convergence is
// switched on without further tuning.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  5,
		Threshold: 0.001,
	}
}

// DisabledConvergenceConfig returns a config with convergence detection disabled
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled: false,
	}
}

// ConvergenceTracker tracks the best value after each restart and detects stagnation
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	best            float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a new convergence tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		history:         []float64{},
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records the best value after a restart and returns true if convergence is detected
func (c *ConvergenceTracker) Update(value float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.history = append(c.history, value)
	if value < c.best {
		c.best = value
	}

	if len(c.history) == 1 {
		c.lastSignificant = value
		return false
	}

	relativeImprovement := (c.lastSignificant - value) / c.lastSignificant
	if relativeImprovement >= c.config.Threshold {
		c.lastSignificant = value
		c.staleCount = 0
		slog.Debug("Restart improved best value",
			"value", value,
			"relative_improvement", relativeImprovement,
		)
		return false
	}

	c.staleCount++
	slog.Debug("No significant improvement after restart",
		"value", value,
		"last_significant", c.lastSignificant,
		"relative_improvement", relativeImprovement,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best", c.best,
		)
		return true
	}
	return false
}

// Best returns the best value seen so far
func (c *ConvergenceTracker) Best() float64 {
	return c.best
}

// History returns the recorded values
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the current number of restarts without improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state
func (c *ConvergenceTracker) Reset() {
	c.history = []float64{}
	c.best = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
