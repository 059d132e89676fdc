// Package sweep runs the background loops: the expiry-settlement sweep and
// the cold-storage archive.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/auricex/auricex/internal/domain"
)

// Settler settles expired trades in batches.
type Settler interface {
	SettleExpired(ctx context.Context, limit int) (int, error)
}

// Config holds sweep timing parameters.
type Config struct {
	Interval  time.Duration
	BatchSize int

	// ArchiveInterval and RetentionDays drive the cold-storage loop; a nil
	// archiver disables it regardless.
	ArchiveInterval time.Duration
	RetentionDays   int
}

// Sweeper drives the settlement sweep and, when an archiver is attached, the
// periodic archive of settled trades past the retention window.
type Sweeper struct {
	settler  Settler
	archiver domain.Archiver
	cfg      Config
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. archiver may be nil.
func NewSweeper(settler Settler, archiver domain.Archiver, cfg Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		settler:  settler,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Run starts both loops in an errgroup and blocks until ctx is cancelled or
// a loop fails.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper starting",
		slog.Duration("interval", s.cfg.Interval),
		slog.Int("batch_size", s.cfg.BatchSize),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.runSettleLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("settle loop: %w", err)
	})

	if s.archiver != nil && s.cfg.ArchiveInterval > 0 {
		g.Go(func() error {
			err := s.runArchiveLoop(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archive loop: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("sweeper stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("sweeper stopped cleanly")
	return nil
}

// runSettleLoop sweeps immediately on start, then on every tick.
func (s *Sweeper) runSettleLoop(ctx context.Context) error {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	settled, err := s.settler.SettleExpired(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "settlement sweep failed", slog.String("error", err.Error()))
		return
	}
	if settled > 0 {
		s.logger.InfoContext(ctx, "settlement sweep done", slog.Int("settled", settled))
	}
}

// runArchiveLoop exports settled trades older than the retention window.
func (s *Sweeper) runArchiveLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ArchiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
			archived, err := s.archiver.ArchiveSettledTrades(ctx, cutoff)
			if err != nil {
				s.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
				continue
			}
			if archived > 0 {
				s.logger.InfoContext(ctx, "archive run done", slog.Int64("archived", archived))
			}
		}
	}
}
