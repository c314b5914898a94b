package loadcheck

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/clickrank/internal/adapters/repository"
	"github.com/okian/clickrank/pkg/logger"
	"github.com/spf13/cobra"
)

const defaultRunTimeout = 10 * time.Minute

// NewCommand builds the loadcheck command.
func NewCommand() *cobra.Command {
	var (
		cfg        = Config{}
		redisURL   string
		keyPrefix  string
		logLevel   string
		runTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "loadcheck",
		Short: "Fire concurrent clicks at a clickrank server and verify none were lost",
		Long: `loadcheck sends one POST /increment per fresh visitor, in parallel, and
checks that the global count moved by exactly the number of successful
clicks. With --redis-url it also checks that every visitor's leaderboard
score is 1.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if logLevel != "" {
				if err := logger.SetLevelString(logLevel); err != nil {
					return err
				}
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			var scores ScoreReader
			if redisURL != "" {
				store, err := repository.NewRedisStore(redisURL, repository.WithKeyPrefix(keyPrefix))
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				scores = store
			}

			_, err := Run(ctx, &cfg, scores)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", DefaultBaseURL, "base URL of the API, including any base path")
	f.StringVar(&cfg.HealthURL, "health-url", "", "health endpoint checked before the run (skipped when empty)")
	f.IntVar(&cfg.Visits, "visits", DefaultVisits, "number of fresh visitors, one click each")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "number of concurrent workers")
	f.DurationVar(&cfg.Timeout, "timeout", DefaultTimeout, "HTTP request timeout")
	f.StringVar(&cfg.CookieName, "cookie", DefaultCookieName, "identity cookie name")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every failed visit")
	f.StringVar(&redisURL, "redis-url", "", "store URL for per-visitor score checks (skipped when empty)")
	f.StringVar(&keyPrefix, "key-prefix", "", "key prefix the server uses")
	f.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "overall run deadline")

	return cmd
}
