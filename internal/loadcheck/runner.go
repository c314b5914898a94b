package loadcheck

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/clickrank/pkg/logger"
)

// ScoreReader reads leaderboard scores straight from the store.
type ScoreReader interface {
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
}

// Run fires cfg.Visits single-click visits and verifies the counter moved by
// exactly the number of successful visits. When scores is non-nil every
// minted id is also checked for a score of 1.
func Run(ctx context.Context, cfg *Config, scores ScoreReader) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Named("loadcheck")
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg)

	log.Info(ctx, "starting load check",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("visits", cfg.Visits),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	if cfg.HealthURL != "" {
		if err := c.healthy(ctx, cfg.HealthURL); err != nil {
			return stats, err
		}
	}

	before, err := c.count(ctx)
	if err != nil {
		return stats, fmt.Errorf("read count before: %w", err)
	}
	stats.CountBefore = before

	visits := fire(ctx, c, cfg, log)
	stats.VisitsSent = len(visits)
	ok := make([]Visit, 0, len(visits))
	for _, v := range visits {
		if v.Err != nil {
			stats.VisitsFailed++
			continue
		}
		ok = append(ok, v)
	}
	stats.VisitsOK = len(ok)

	after, err := c.count(ctx)
	if err != nil {
		return stats, fmt.Errorf("read count after: %w", err)
	}
	stats.CountAfter = after

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	verr := verifyCount(stats)
	if scores != nil {
		if err := verifyScores(ctx, scores, ok, stats); err != nil && verr == nil {
			verr = err
		}
	}
	report(ctx, log, stats)
	return stats, verr
}

// fire runs the visits on a worker pool and returns every outcome.
func fire(ctx context.Context, c *client, cfg *Config, log logger.Logger) []Visit {
	var (
		out  = make([]Visit, 0, cfg.Visits)
		mu   sync.Mutex
		sent atomic.Int64
		wg   sync.WaitGroup
		jobs = make(chan struct{}, cfg.Workers*workerChannelMultiplier)
	)

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				v := c.visit(ctx)
				sent.Add(1)
				if v.Err != nil && cfg.Verbose {
					log.Warn(ctx, "visit failed", logger.Error(v.Err))
				}
				mu.Lock()
				out = append(out, v)
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < cfg.Visits; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- struct{}{}:
			}
		}
	}()

	wg.Wait()
	log.Debug(ctx, "visits finished", logger.Int64("sent", sent.Load()))
	return out
}

func report(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, visitsPerSecond float64
	if stats.VisitsSent > 0 {
		successRate = float64(stats.VisitsOK) / float64(stats.VisitsSent) * percentageMultiplier
	}
	if stats.Duration > 0 {
		visitsPerSecond = float64(stats.VisitsSent) / stats.Duration.Seconds()
	}
	log.Info(ctx, "load check finished",
		logger.Int64("countBefore", stats.CountBefore),
		logger.Int64("countAfter", stats.CountAfter),
		logger.Int("visitsSent", stats.VisitsSent),
		logger.Int("visitsOK", stats.VisitsOK),
		logger.Int("visitsFailed", stats.VisitsFailed),
		logger.Int("scoresChecked", stats.ScoresChecked),
		logger.Int("scoresMismatch", stats.ScoresMismatch),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("visitsPerSecond", visitsPerSecond))
}
