package recommend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/climate-alerts/internal/model"
)

// Store is the part of the recommendation store the engine writes to.
type Store interface {
	// Update replaces the stored list with fn(current) atomically.
	Update(fn func(current []model.Recommendation) []model.Recommendation)

	// Sweep drops entries expired at now and returns how many were removed.
	Sweep(now time.Time) int
}

// SkipReason explains why a cycle did not generate.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipNoInput   SkipReason = "no_input"
	SkipUnchanged SkipReason = "unchanged"
	SkipThrottled SkipReason = "throttled"
)

// Outcome reports what a Sync call did.
type Outcome struct {
	Generated  bool
	Skip       SkipReason
	Candidates int
	Stats      ReconcileStats
	// RetryAfter is set on a throttled cycle to the time left until the
	// next one may generate.
	RetryAfter time.Duration
}

// Options configures an Engine.
type Options struct {
	MinInterval time.Duration
	Clock       model.Clock
	Logger      *slog.Logger
	Rules       []Rule
}

// Engine decides when to regenerate advice and merges the result into
// the store. It retains the snapshot of the last generation and the
// throttle state; both advance only when a cycle actually runs.
type Engine struct {
	mu          sync.Mutex
	store       Store
	rules       []Rule
	minInterval time.Duration
	clock       model.Clock
	logger      *slog.Logger

	prev     *Snapshot
	throttle Throttle
}

// NewEngine creates an Engine writing to s. Nil options fall back to the
// rule table, the system clock and slog.Default(). A negative MinInterval
// selects DefaultMinInterval; zero disables throttling.
func NewEngine(s Store, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = model.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rules == nil {
		opts.Rules = Rules
	}
	if opts.MinInterval < 0 {
		opts.MinInterval = DefaultMinInterval
	}
	return &Engine{
		store:       s,
		rules:       opts.Rules,
		minInterval: opts.MinInterval,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
}

// Sync runs one engine cycle against snap. Generation happens only when
// the snapshot differs from the last generated one and the throttle
// interval has elapsed; otherwise the store is left as is, apart from the
// expiry sweep on unchanged input.
func (e *Engine) Sync(snap Snapshot) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()

	if snap.Empty() {
		return Outcome{Skip: SkipNoInput}
	}

	if !HasMeaningfulChange(e.prev, snap) {
		if n := e.store.Sweep(now); n > 0 {
			e.logger.Info("expired recommendations swept", "expired", n)
			return Outcome{Skip: SkipUnchanged, Stats: ReconcileStats{Expired: n}}
		}
		return Outcome{Skip: SkipUnchanged}
	}

	next, ok := e.throttle.Acquire(now, e.minInterval)
	if !ok {
		e.logger.Debug("generation throttled",
			"since_last", now.Sub(e.throttle.LastFire),
			"min_interval", e.minInterval,
		)
		return Outcome{
			Skip:       SkipThrottled,
			RetryAfter: e.throttle.LastFire.Add(e.minInterval).Sub(now),
		}
	}
	e.throttle = next

	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("upstream change detected", "diff", Diff(e.prev, snap))
	}

	candidates := GenerateWith(e.rules, Input{
		Crops:   snap.Crops,
		Alerts:  snap.Alerts,
		Weather: snap.Weather,
		Now:     now,
	})

	var stats ReconcileStats
	e.store.Update(func(current []model.Recommendation) []model.Recommendation {
		var merged []model.Recommendation
		merged, stats = ReconcileWithStats(current, candidates, now)
		return merged
	})

	kept := snap.Clone()
	e.prev = &kept

	e.logger.Info("recommendations generated",
		"candidates", len(candidates),
		"added", stats.Added,
		"duplicates", stats.Duplicates,
		"expired", stats.Expired,
	)

	return Outcome{
		Generated:  true,
		Candidates: len(candidates),
		Stats:      stats,
	}
}

// LastGenerated returns the time of the last generation cycle, or the
// zero time if none has run.
func (e *Engine) LastGenerated() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.throttle.LastFire
}
