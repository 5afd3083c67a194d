package refresh

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper deletes expired refresh rows on an interval. Validation already
// treats expired records as invalid, so the sweeper is purely about keeping
// the table small; it can lag or skip a cycle without correctness impact.
type Sweeper struct {
	store    Store
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewSweeper constructs a Sweeper. A nil logger falls back to slog.Default;
// a non-positive interval uses the config default.
func NewSweeper(store Store, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultConfig().SweepInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, log: log, now: time.Now}
}

// Run sweeps until ctx is canceled. It sweeps once immediately so restarts
// do not postpone cleanup by a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("refresh sweep failed", slog.String("error", err.Error()))
		return
	}
	sweptTotal.Add(float64(n))
	if n > 0 {
		s.log.Info("refresh sweep removed expired rows", slog.Int64("count", n))
	}
}
