package simplex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"

	"github.com/cwbudde/simplexsearch/internal/objective"
)

// ErrBudgetExhausted is returned by Evaluate once the configured number of
// uncached evaluations has been reached. It marks a normal end of search.
var ErrBudgetExhausted = errors.New("evaluation budget exhausted")

// unpublishedBest is the best marker before any point has been ranked.
const unpublishedBest = "undefined"

// Evaluation describes one completed evaluation, cached or not.
type Evaluation struct {
	Index   int // uncached evaluations consumed so far
	Point   Point
	Cached  bool
	Profile string
}

// Options configures a Session.
type Options struct {
	// MaxEvaluations is the evaluation budget. Zero or negative means unbounded.
	MaxEvaluations int

	// Rand drives coordinate shuffling. Defaults to a source seeded with 1.
	Rand *rand.Rand

	// Profile is the initial parameter profile.
	Profile string

	// OnEvaluate, if set, is called after every successful evaluation.
	OnEvaluate func(Evaluation)
}

// Session holds the mutable state of one search: the evaluation cache, the
// budget counter, the current profile and the published best marker.
// A Session must only be used from one goroutine; run independent searches
// with independent sessions.
type Session struct {
	scorer         objective.Scorer
	cache          map[string]float64
	evaluations    int
	maxEvaluations int
	profile        string
	best           string
	lowest         Point
	rng            *rand.Rand
	onEvaluate     func(Evaluation)
}

// NewSession creates a session that scores points with scorer.
func NewSession(scorer objective.Scorer, opts Options) *Session {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Session{
		scorer:         scorer,
		cache:          make(map[string]float64),
		maxEvaluations: opts.MaxEvaluations,
		profile:        opts.Profile,
		best:           unpublishedBest,
		rng:            rng,
		onEvaluate:     opts.OnEvaluate,
	}
}

// Evaluate sets p[0] to the objective value at p's coordinates.
//
// With useCache, a previously seen coordinate vector is answered from the
// cache without consuming budget. Otherwise the budget counter is
// incremented and ErrBudgetExhausted is returned, without scoring, once it
// reaches the maximum. Scores <= 0 are stored as Sentinel.
func (s *Session) Evaluate(ctx context.Context, p Point, useCache bool) error {
	key := CacheKey(p)
	if useCache {
		if v, ok := s.cache[key]; ok {
			p[0] = v
			s.track(p)
			s.notify(p, true)
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.evaluations++
	if s.maxEvaluations > 0 && s.evaluations >= s.maxEvaluations {
		return fmt.Errorf("%w: reached %d evaluations", ErrBudgetExhausted, s.evaluations)
	}

	v, err := s.scorer.Score(ctx, objective.Request{
		Coords:  append([]float64(nil), p.Coords()...),
		Profile: s.profile,
		Best:    s.best,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var protoErr *objective.ProtocolError
		if !errors.As(err, &protoErr) {
			err = &objective.ProtocolError{Err: err}
		}
		return err
	}

	if v <= 0 {
		slog.Debug("Non-positive score replaced by sentinel", "score", v)
		v = Sentinel
	}
	p[0] = v
	s.cache[key] = v
	s.track(p)
	s.notify(p, false)
	return nil
}

func (s *Session) notify(p Point, cached bool) {
	if s.onEvaluate == nil {
		return
	}
	s.onEvaluate(Evaluation{
		Index:   s.evaluations,
		Point:   p.Clone(),
		Cached:  cached,
		Profile: s.profile,
	})
}

func (s *Session) track(p Point) {
	if s.lowest == nil || p[0] < s.lowest[0] {
		s.lowest = p.Clone()
	}
}

// Lowest returns a copy of the lowest-scoring point evaluated so far, across
// cache resets and profile changes, or nil if nothing has been scored.
func (s *Session) Lowest() Point {
	if s.lowest == nil {
		return nil
	}
	return s.lowest.Clone()
}

// CacheKey builds the canonical cache key from p's coordinates.
func CacheKey(p Point) string {
	var sb strings.Builder
	for _, v := range p.Coords() {
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		sb.WriteByte(':')
	}
	return sb.String()
}

// ForgetCache drops all cached evaluations.
func (s *Session) ForgetCache() {
	clear(s.cache)
}

// CacheSize returns the number of cached evaluations.
func (s *Session) CacheSize() int {
	return len(s.cache)
}

// Evaluations returns the number of uncached evaluations consumed.
func (s *Session) Evaluations() int {
	return s.evaluations
}

// MaxEvaluations returns the evaluation budget (<= 0 means unbounded).
func (s *Session) MaxEvaluations() int {
	return s.maxEvaluations
}

// Profile returns the current parameter profile.
func (s *Session) Profile() string {
	return s.profile
}

// SetProfile replaces the parameter profile used by later evaluations.
// Cached values are not invalidated.
func (s *Session) SetProfile(profile string) {
	s.profile = profile
}

// Rand returns the session's random source.
func (s *Session) Rand() *rand.Rand {
	return s.rng
}

// PublishBest records p as the current best point.
func (s *Session) PublishBest(p Point) {
	s.best = p.String()
}

// Best returns the published best marker.
func (s *Session) Best() string {
	return s.best
}

// Midpoint sorts the simplex, publishes its best point and returns the
// centroid of all points but the worst.
func (s *Session) Midpoint(sx Simplex) Point {
	sx.Sort()
	s.PublishBest(sx[0])
	return Centroid(sx)
}
