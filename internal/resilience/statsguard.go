package resilience

import (
	"context"

	"github.com/MrWong99/roboto/internal/stats"
)

// StatsLookup is the upstream stats API the guard wraps.
type StatsLookup interface {
	GetStats(ctx context.Context, identity string) (*stats.PlayerStats, error)
}

// GuardedStats wraps a [StatsLookup] with a [Breaker] so that an unreachable
// stats service stops costing a full HTTP timeout per rank command.
type GuardedStats struct {
	inner   StatsLookup
	breaker *Breaker
}

// GuardStats wraps inner with a breaker built from s. An empty s.Name
// defaults to "stats".
func GuardStats(inner StatsLookup, s Settings) *GuardedStats {
	if s.Name == "" {
		s.Name = "stats"
	}
	return &GuardedStats{inner: inner, breaker: NewBreaker(s)}
}

// GetStats forwards to the wrapped lookup unless the breaker is open.
func (g *GuardedStats) GetStats(ctx context.Context, identity string) (*stats.PlayerStats, error) {
	var ps *stats.PlayerStats
	err := g.breaker.Do(func() error {
		var err error
		ps, err = g.inner.GetStats(ctx, identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// Breaker exposes the underlying breaker for state inspection.
func (g *GuardedStats) Breaker() *Breaker { return g.breaker }
