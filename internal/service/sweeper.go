package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// TempRemover deletes stale files from a directory
type TempRemover interface {
	RemoveOlderThan(dir string, cutoff time.Time) (int, error)
}

// TempSweeper is the retention policy for temp files: upload and crop never
// delete anything, so stale temp images are removed here after ttl.
type TempSweeper struct {
	store    TempRemover
	dir      string
	ttl      time.Duration
	interval time.Duration
	logger   *log.Logger
	removed  metric.Int64Counter
	now      func() time.Time
}

// NewTempSweeper creates a sweeper for dir. A zero ttl or interval disables Run.
func NewTempSweeper(store TempRemover, dir string, ttl, interval time.Duration, logger *log.Logger) *TempSweeper {
	if logger == nil {
		logger = log.Default()
	}

	removed, err := otel.Meter("fileserver").Int64Counter("fileserver.sweeper.removed",
		metric.WithDescription("Temp files removed by the retention sweeper"),
	)
	if err != nil {
		removed = noop.Int64Counter{}
	}

	return &TempSweeper{
		store:    store,
		dir:      dir,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		removed:  removed,
		now:      time.Now,
	}
}

// Enabled reports whether Run will do any work
func (s *TempSweeper) Enabled() bool {
	return s.ttl > 0 && s.interval > 0
}

// Sweep removes temp files last modified more than ttl ago
func (s *TempSweeper) Sweep(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-s.ttl)
	n, err := s.store.RemoveOlderThan(s.dir, cutoff)
	if n > 0 {
		s.removed.Add(ctx, int64(n))
	}
	if err != nil {
		s.logger.Error("temp sweep failed", "dir", s.dir, "removed", n, "err", err)
		return n, err
	}
	s.logger.Info("temp sweep finished", "dir", s.dir, "removed", n, "cutoff", cutoff.Format(time.RFC3339))
	return n, nil
}

// Run sweeps every interval until ctx is cancelled
func (s *TempSweeper) Run(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Info("temp sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// A failed sweep is retried on the next tick
			_, _ = s.Sweep(ctx)
		}
	}
}
