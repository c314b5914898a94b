// Package service composes the domain engines into the operations exposed
// by the HTTP API.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/okian/clickrank/internal/domain/authz"
	"github.com/okian/clickrank/internal/domain/counter"
	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/internal/domain/leaderboard"
	"github.com/okian/clickrank/internal/domain/model"
	"github.com/okian/clickrank/internal/domain/types"
	"github.com/okian/clickrank/internal/domain/users"
	"github.com/okian/clickrank/pkg/logger"
	"github.com/okian/clickrank/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Default leaderboard shape.
const (
	defaultLeaderboardLimit = 10
	defaultLeaderboardPool  = 50
)

// Public validation messages.
const (
	MsgInvalidScope = "Invalid scope"
)

// Store is everything the service needs from the backing store.
type Store interface {
	users.Store
	counter.Store
	leaderboard.Store
	SetAndDelete(ctx context.Context, key, value string, del ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// CountObserver is told about every new counter value. Enqueue must not
// block; a false return means the update was dropped.
type CountObserver interface {
	Enqueue(ctx context.Context, e model.CountEvent) bool
}

// Service implements the API dependencies for the counter and leaderboard.
type Service struct {
	mu sync.RWMutex

	store       Store
	users       *users.Accessor
	counter     *counter.Engine
	leaderboard *leaderboard.Engine
	gate        *authz.Gate
	observer    CountObserver

	limit int
	pool  int

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLeaderboardLimit sets how many leaders are returned.
func WithLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLeaderboardPool sets how many top members are scanned before ban
// filtering.
func WithLeaderboardPool(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pool = n
		}
	}
}

// WithObserver registers a receiver for counter changes.
func WithObserver(o CountObserver) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		limit: defaultLeaderboardLimit,
		pool:  defaultLeaderboardPool,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.pool < s.limit {
		s.pool = s.limit
	}
	if s.logger == nil {
		s.logger = logger.Named("app")
	}

	s.users = users.NewAccessor(store)
	s.counter = counter.New(store)
	s.leaderboard = leaderboard.New(store, s.users)
	s.gate = authz.NewGate(s.users)

	return s
}

// Start checks the store is reachable. An unreachable store is logged, not
// fatal: the handle connects lazily and requests report the failure.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "store not reachable at startup", logger.Error(err))
	}

	s.started = true
	s.logger.Info(ctx, "clickrank service started",
		logger.Int("leaderboardLimit", s.limit),
		logger.Int("leaderboardPool", s.pool),
		logger.Bool("observer", s.observer != nil),
	)
	return nil
}

// Stop releases the store handle.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "clickrank service stopped")
}

func (s *Service) notify(ctx context.Context, count int64, cause model.Cause) {
	if s.observer == nil {
		return
	}
	ev := model.CountEvent{Count: count, Cause: cause, TS: time.Now()}
	if !s.observer.Enqueue(context.WithoutCancel(ctx), ev) {
		s.logger.Debug(ctx, "count update dropped", logger.Int64("count", count))
	}
}

// Ping checks store connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return fault.Wrap("service.ping", s.store.Ping(ctx))
}

// Profile returns the caller's own record.
func (s *Service) Profile(ctx context.Context, id string) (types.Profile, error) {
	return s.users.Profile(ctx, id)
}

// Name returns the caller's stored name, "" if none.
func (s *Service) Name(ctx context.Context, id string) (string, error) {
	return s.users.Name(ctx, id)
}

// SetName normalizes raw and stores it as id's name.
func (s *Service) SetName(ctx context.Context, id, raw string) (string, error) {
	name, err := users.NormalizeName(raw)
	if err != nil {
		return "", err
	}
	if err := s.users.SetName(ctx, id, name); err != nil {
		return "", err
	}
	return name, nil
}

// Count returns the global counter.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.counter.Read(ctx)
}

// Increment records one visit by id: the global counter, id's score and
// id's default name are written concurrently and without a transaction.
// All three writes are always issued; any failure is returned after they
// settle.
func (s *Service) Increment(ctx context.Context, id string) (int64, error) {
	const op = "service.increment"
	if err := s.gate.RequireNotBanned(ctx, id); err != nil {
		return 0, err
	}

	var (
		g     errgroup.Group
		count int64
	)
	g.Go(func() error {
		n, err := s.counter.Increment(ctx)
		count = n
		return err
	})
	g.Go(func() error {
		_, err := s.leaderboard.Bump(ctx, id)
		return err
	})
	g.Go(func() error {
		return s.users.EnsureDefaultName(ctx, id)
	})
	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, "increment partially failed",
			logger.String("id", id),
			logger.Error(err),
		)
		return 0, fault.Wrap(op, err)
	}

	metrics.RecordVisitorIncrement()
	s.notify(ctx, count, model.CauseIncrement)
	return count, nil
}

// Leaders returns the visible top of the leaderboard.
func (s *Service) Leaders(ctx context.Context) ([]types.Leader, error) {
	return s.leaderboard.TopRanked(ctx, s.limit, s.pool)
}

// RequireAdmin returns nil if id may use administrative operations.
func (s *Service) RequireAdmin(ctx context.Context, id string) error {
	return s.gate.RequireAdmin(ctx, id)
}

// Stats returns the global counter and the number of ranked users.
func (s *Service) Stats(ctx context.Context) (types.Stats, error) {
	const op = "service.stats"
	var (
		g     errgroup.Group
		stats types.Stats
	)
	g.Go(func() error {
		n, err := s.counter.Read(ctx)
		stats.GlobalCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.leaderboard.Size(ctx)
		stats.LeaderboardSize = n
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Stats{}, fault.Wrap(op, err)
	}

	metrics.UpdateGlobalCount(stats.GlobalCount)
	metrics.UpdateLeaderboardSize(stats.LeaderboardSize)
	return stats, nil
}

// AdminSet overwrites the global counter.
func (s *Service) AdminSet(ctx context.Context, value float64) (int64, error) {
	n, err := s.counter.AdminSet(ctx, value)
	if err != nil {
		return 0, err
	}
	metrics.RecordAdminAction("set_count")
	s.notify(ctx, n, model.CauseSet)
	return n, nil
}

// AdminAdd adds a positive delta to the global counter.
func (s *Service) AdminAdd(ctx context.Context, delta float64) (int64, error) {
	n, err := s.counter.AdminAdd(ctx, delta)
	if err != nil {
		return 0, err
	}
	metrics.RecordAdminAction("add_count")
	s.notify(ctx, n, model.CauseAdd)
	return n, nil
}

// UserDelta adjusts id's score, clamping at zero.
func (s *Service) UserDelta(ctx context.Context, id string, delta float64) (int64, error) {
	n, err := s.leaderboard.AdminDelta(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	metrics.RecordAdminAction("user_delta")
	return n, nil
}

// Ban sets id's banned flag and, when purge is set, removes id from the
// leaderboard. It reports whether a purge was performed.
func (s *Service) Ban(ctx context.Context, id string, banned, purge bool) (bool, error) {
	const op = "service.ban"
	if strings.TrimSpace(id) == "" {
		return false, fault.Validation(op, leaderboard.MsgMissingID)
	}
	if err := s.users.SetFlag(ctx, id, types.AttrBanned, banned); err != nil {
		return false, err
	}
	if purge {
		if _, err := s.leaderboard.Purge(ctx, id); err != nil {
			return false, err
		}
	}
	metrics.RecordAdminAction("ban")
	s.logger.Info(ctx, "ban flag updated",
		logger.String("id", id),
		logger.Bool("banned", banned),
		logger.Bool("purged", purge),
	)
	return purge, nil
}

// SetAdmin sets id's admin flag.
func (s *Service) SetAdmin(ctx context.Context, id string, admin bool) error {
	const op = "service.set_admin"
	if strings.TrimSpace(id) == "" {
		return fault.Validation(op, leaderboard.MsgMissingID)
	}
	if err := s.users.SetFlag(ctx, id, types.AttrAdmin, admin); err != nil {
		return err
	}
	metrics.RecordAdminAction("admin")
	s.logger.Info(ctx, "admin flag updated",
		logger.String("id", id),
		logger.Bool("admin", admin),
	)
	return nil
}

// Reset clears the counter, the leaderboard or both. Clearing both is a
// single transaction.
func (s *Service) Reset(ctx context.Context, scope types.ResetScope) error {
	const op = "service.reset"
	var err error
	switch scope {
	case types.ResetCount:
		err = s.counter.Reset(ctx)
	case types.ResetLeaderboard:
		err = s.leaderboard.Reset(ctx)
	case types.ResetAll:
		err = fault.Wrap(op, s.store.SetAndDelete(ctx, types.CounterKey, "0", types.LeaderboardKey))
	default:
		return fault.Validation(op, MsgInvalidScope)
	}
	if err != nil {
		return err
	}

	metrics.RecordAdminAction("reset_" + string(scope))
	if scope != types.ResetLeaderboard {
		s.notify(ctx, 0, model.CauseReset)
	}
	s.logger.Warn(ctx, "state reset", logger.String("scope", string(scope)))
	return nil
}

// RefreshMetrics publishes the current counter and leaderboard size gauges.
func (s *Service) RefreshMetrics(ctx context.Context) error {
	_, err := s.Stats(ctx)
	return err
}
