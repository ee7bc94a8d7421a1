// Package recovery implements the startup driver that reseeds the
// scheduling engine from whatever active documents survived a prior
// process's lifetime (§4.4).
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rezkam/retryq/internal/domain"
	"github.com/rezkam/retryq/internal/engine"
	"github.com/rezkam/retryq/internal/objectstore"
)

// Seeder is the subset of *engine.Engine the driver needs — narrowed to an
// interface so tests can seed a fake engine without standing up the full
// dispatch loop.
type Seeder interface {
	Seed(record *domain.Record)
}

// Config tunes the recovery driver's behavior.
type Config struct {
	// Concurrency bounds how many get_active calls run at once (default 16).
	Concurrency int

	// SkipSerializationErrors allows recovery to continue past a malformed
	// active document instead of aborting startup, per the "deliberately
	// skipped via a documented config flag" escape hatch (§4.4). Off by
	// default: the engine refuses to start over an unexplained gap.
	SkipSerializationErrors bool
}

// DefaultConfig returns the recovery driver's default tunables.
func DefaultConfig() Config {
	return Config{Concurrency: 16}
}

// Result summarizes one recovery pass.
type Result struct {
	Loaded   int
	Discarded int
	Skipped  int
}

// Run lists every active document, discards the ones that are not PENDING
// (issuing a cleanup delete for each), and seeds the engine with the rest.
// It returns an error — and seeds nothing — unless every listed key was
// either fully loaded or explicitly permitted to be skipped (§4.4).
func Run(ctx context.Context, gw objectstore.Gateway, eng Seeder, logger *slog.Logger, cfg Config) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}

	keys, err := gw.ListActive(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing active documents: %w", err)
	}

	type loaded struct {
		record    *domain.Record
		discarded bool
		skipped   bool
	}

	results := make([]loaded, len(keys))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for i, messageID := range keys {
		i, messageID := i, messageID
		g.Go(func() error {
			record, err := gw.GetActive(gCtx, messageID)
			if err != nil {
				if errors.Is(err, domain.ErrRecordNotFound) {
					// Deleted between list and get; nothing to recover.
					results[i] = loaded{discarded: true}
					return nil
				}
				var serErr *domain.SerializationError
				if errors.As(err, &serErr) && cfg.SkipSerializationErrors {
					logger.Warn("skipping malformed active document during recovery",
						"message_id", messageID, "error", err)
					results[i] = loaded{skipped: true}
					return nil
				}
				return fmt.Errorf("loading %s: %w", messageID, err)
			}

			if record.Status != domain.StatusPending {
				// The engine never writes a terminal status under the active
				// prefix, so such a document is treated as a stale artifact.
				// The driver does not verify a terminal document exists; it
				// simply cleans up.
				if err := gw.DeleteActive(gCtx, messageID); err != nil {
					logger.Warn("failed to clean up stale active document",
						"message_id", messageID, "error", err)
				}
				results[i] = loaded{discarded: true}
				return nil
			}

			results[i] = loaded{record: record}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("recovery failed, refusing to start dispatching: %w", err)
	}

	res := Result{}
	for _, r := range results {
		switch {
		case r.discarded:
			res.Discarded++
		case r.skipped:
			res.Skipped++
		case r.record != nil:
			eng.Seed(r.record)
			res.Loaded++
		}
	}

	logger.Info("recovery complete",
		"loaded", res.Loaded, "discarded", res.Discarded, "skipped", res.Skipped)
	return res, nil
}
