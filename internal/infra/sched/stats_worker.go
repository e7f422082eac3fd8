package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/repository"
	"voice-clone-studio/internal/infra/metrics"
)

type poolStatter interface {
	PoolStats() (total, idle, inUse int32, ok bool)
}

// CodeCounts buckets codes by state. Each code lands in exactly one bucket;
// disabled beats expired, which beats exhausted.
type CodeCounts struct {
	Active, Disabled, Expired, Exhausted int
}

// StatsWorker periodically publishes ledger gauges.
type StatsWorker struct {
	interval time.Duration
	codes    repository.ActivationCodeRepository
	log      *zerolog.Logger
}

func NewStatsWorker(interval time.Duration, codes repository.ActivationCodeRepository, logger *zerolog.Logger) *StatsWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	compLog := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{
		interval: interval,
		codes:    codes,
		log:      &compLog,
	}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting stats worker")
	// Run once on startup, then on every tick
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

const sweepTimeout = 30 * time.Second

func (w *StatsWorker) sweep(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, sweepTimeout)
	defer cancel()

	list, err := w.codes.List(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("stats sweep failed")
	} else {
		c := Count(list)
		metrics.SetActivationCodes(c.Active, c.Disabled, c.Expired, c.Exhausted)
		w.log.Debug().
			Int("active", c.Active).
			Int("disabled", c.Disabled).
			Int("expired", c.Expired).
			Int("exhausted", c.Exhausted).
			Msg("activation code stats")
	}

	if ps, ok := w.codes.(poolStatter); ok {
		if total, idle, inUse, ok := ps.PoolStats(); ok {
			metrics.SetDBPoolStats(total, idle, inUse)
		}
	}
}

func Count(list []*model.ActivationInfo) CodeCounts {
	var c CodeCounts
	for _, info := range list {
		switch {
		case info.Disabled:
			c.Disabled++
		case info.Expired:
			c.Expired++
		case info.Exhausted():
			c.Exhausted++
		default:
			c.Active++
		}
	}
	return c
}
