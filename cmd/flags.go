package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/simplexsearch/internal/config"
)

// searchFlags holds command-line overrides of config file values.
type searchFlags struct {
	configPath string

	binary      string
	args        []string
	dim         int
	amount      float64
	maxEvals    int
	seed        int64
	method      string
	origin      []float64
	maxRestarts int
	timeout     time.Duration

	codec        string
	profileMin   float64
	profileMax   float64
	profileSteps int
	static       string

	lower   float64
	upper   float64
	popSize int
	iters   int

	converge  bool
	patience  int
	threshold float64

	checkpointInterval int
}

func addSearchFlags(c *cobra.Command, f *searchFlags) {
	d := config.Default()
	fs := c.Flags()

	fs.StringVar(&f.configPath, "config", "", "YAML config file; flags override its values")
	fs.StringVar(&f.binary, "binary", "", "Scoring program to run for each evaluation")
	fs.StringArrayVar(&f.args, "arg", nil, "Argument passed to the scoring program (repeatable)")
	fs.IntVar(&f.dim, "dim", 0, "Number of coordinates")
	fs.Float64Var(&f.amount, "amount", d.Amount, "Initial simplex step size")
	fs.IntVar(&f.maxEvals, "max-evals", d.MaxEvaluations, "Evaluation budget")
	fs.Int64Var(&f.seed, "seed", d.Seed, "Random seed")
	fs.StringVar(&f.method, "method", d.Method, "Search method: simplex, mayfly, gonum")
	fs.Float64SliceVar(&f.origin, "origin", nil, "Starting point (comma-separated, default all zeros)")
	fs.IntVar(&f.maxRestarts, "max-restarts", d.MaxRestarts, "Restart limit of the simplex search")
	fs.DurationVar(&f.timeout, "timeout", 0, "Per-evaluation timeout of the scoring program (0 = none)")

	fs.StringVar(&f.codec, "codec", d.Profile.Codec, "Codec prefix of generated profiles")
	fs.Float64Var(&f.profileMin, "profile-min", d.Profile.Min, "Smallest profile distance")
	fs.Float64Var(&f.profileMax, "profile-max", d.Profile.Max, "Largest profile distance")
	fs.IntVar(&f.profileSteps, "profile-steps", d.Profile.Steps, "Number of distances per profile")
	fs.StringVar(&f.static, "static-profile", "", "Fixed profile, disables randomized profiles")

	fs.Float64Var(&f.lower, "lower", d.Lower, "Lower bound for all coordinates (mayfly)")
	fs.Float64Var(&f.upper, "upper", d.Upper, "Upper bound for all coordinates (mayfly)")
	fs.IntVar(&f.popSize, "pop", d.PopSize, "Population size (mayfly)")
	fs.IntVar(&f.iters, "iters", d.Iters, "Iterations (mayfly)")

	fs.BoolVar(&f.converge, "converge", false, "Stop when restarts stop improving")
	fs.IntVar(&f.patience, "patience", 5, "Restarts without improvement before stopping (with --converge)")
	fs.Float64Var(&f.threshold, "threshold", 0.001, "Relative improvement that counts (with --converge)")

	fs.IntVar(&f.checkpointInterval, "checkpoint-interval", d.CheckpointInterval, "Checkpoint every N restarts (0 = only at the end)")
}

// loadConfig reads --config (or the defaults) and applies changed flags.
func loadConfig(c *cobra.Command, f *searchFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlags(c, f, cfg)
	return cfg, nil
}

func applyFlags(c *cobra.Command, f *searchFlags, cfg *config.Config) {
	changed := c.Flags().Changed

	if changed("binary") {
		cfg.Binary = f.binary
	}
	if changed("arg") {
		cfg.Args = f.args
	}
	if changed("dim") {
		cfg.Dim = f.dim
	}
	if changed("amount") {
		cfg.Amount = f.amount
	}
	if changed("max-evals") {
		cfg.MaxEvaluations = f.maxEvals
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("method") {
		cfg.Method = f.method
	}
	if changed("origin") {
		cfg.Origin = f.origin
	}
	if changed("max-restarts") {
		cfg.MaxRestarts = f.maxRestarts
	}
	if changed("timeout") {
		cfg.Collaborator.Timeout = f.timeout
	}
	if changed("codec") {
		cfg.Profile.Codec = f.codec
	}
	if changed("profile-min") {
		cfg.Profile.Min = f.profileMin
	}
	if changed("profile-max") {
		cfg.Profile.Max = f.profileMax
	}
	if changed("profile-steps") {
		cfg.Profile.Steps = f.profileSteps
	}
	if changed("static-profile") {
		cfg.Profile.Static = f.static
	}
	if changed("lower") {
		cfg.Lower = f.lower
	}
	if changed("upper") {
		cfg.Upper = f.upper
	}
	if changed("pop") {
		cfg.PopSize = f.popSize
	}
	if changed("iters") {
		cfg.Iters = f.iters
	}
	if changed("converge") {
		cfg.Convergence.Enabled = f.converge
	}
	if changed("patience") {
		cfg.Convergence.Patience = f.patience
	}
	if changed("threshold") {
		cfg.Convergence.Threshold = f.threshold
	}
	if changed("checkpoint-interval") {
		cfg.CheckpointInterval = f.checkpointInterval
	}
	if cfg.Convergence.Enabled && cfg.Convergence.Patience == 0 {
		cfg.Convergence.Patience = f.patience
		cfg.Convergence.Threshold = f.threshold
	}
}

// applyPositional handles the short form: <binary> <dim> <amount> <max-evals>.
func applyPositional(args []string, cfg *config.Config) error {
	if len(args) == 0 {
		return nil
	}
	if len(args) != 4 {
		return fmt.Errorf("expected <binary> <dim> <amount> <max-evals>, got %d arguments", len(args))
	}

	dim, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid dim %q: %w", args[1], err)
	}
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[2], err)
	}
	maxEvals, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid max-evals %q: %w", args[3], err)
	}

	cfg.Binary = args[0]
	cfg.Dim = dim
	cfg.Amount = amount
	cfg.MaxEvaluations = maxEvals
	return nil
}
