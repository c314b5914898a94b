// Package leaderboard maintains the ranked per-visitor scores.
package leaderboard

import (
	"context"
	"math"
	"strings"

	"github.com/okian/clickrank/internal/domain/counter"
	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/internal/domain/types"
	"golang.org/x/sync/errgroup"
)

// Public validation messages.
const (
	MsgMissingID    = "Missing id"
	MsgNonZeroDelta = "delta must be a non-zero integer"
)

// Store is the subset of store operations the engine needs.
type Store interface {
	ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error)
	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key, member string) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]types.ScoredMember, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}

// Users resolves the per-candidate attributes shown on the board.
type Users interface {
	Name(ctx context.Context, id string) (string, error)
	Flag(ctx context.Context, id string, attr types.Attribute) (bool, error)
}

// Engine reads and mutates the leaderboard sorted set.
type Engine struct {
	store Store
	users Users
}

// New returns an Engine.
func New(store Store, users Users) *Engine {
	return &Engine{store: store, users: users}
}

// Bump adds one to id's score and returns the new score.
func (e *Engine) Bump(ctx context.Context, id string) (float64, error) {
	const op = "leaderboard.bump"
	score, err := e.store.ZIncrBy(ctx, types.LeaderboardKey, id, 1)
	if err != nil {
		return 0, fault.Wrap(op, err)
	}
	return score, nil
}

type candidate struct {
	id     string
	score  float64
	name   string
	banned bool
}

// TopRanked scans the best pool members, drops banned ones and returns at
// most limit survivors in descending score order. When bans exhaust the pool
// the result is shorter than limit; there is no backfill.
func (e *Engine) TopRanked(ctx context.Context, limit, pool int) ([]types.Leader, error) {
	const op = "leaderboard.top_ranked"
	if limit <= 0 || pool <= 0 {
		return []types.Leader{}, nil
	}
	members, err := e.store.ZRevRangeWithScores(ctx, types.LeaderboardKey, 0, int64(pool-1))
	if err != nil {
		return nil, fault.Wrap(op, err)
	}

	cands := make([]candidate, len(members))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range members {
		cands[i] = candidate{id: m.ID, score: m.Score}
		c := &cands[i]
		g.Go(func() error {
			name, err := e.users.Name(gctx, c.id)
			c.name = name
			return err
		})
		g.Go(func() error {
			banned, err := e.users.Flag(gctx, c.id, types.AttrBanned)
			c.banned = banned
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fault.Wrap(op, err)
	}

	leaders := make([]types.Leader, 0, limit)
	for _, c := range cands {
		if len(leaders) == limit {
			break
		}
		if c.banned {
			continue
		}
		name := c.name
		if name == "" {
			name = types.DefaultName
		}
		leaders = append(leaders, types.Leader{ID: c.id, Name: name, Count: clampScore(c.score)})
	}
	return leaders, nil
}

// AdminDelta adds floor(delta) to id's score. A result below zero is
// corrected to exactly zero with a follow-up write and reported as 0.
func (e *Engine) AdminDelta(ctx context.Context, id string, delta float64) (int64, error) {
	const op = "leaderboard.admin_delta"
	if strings.TrimSpace(id) == "" {
		return 0, fault.Validation(op, MsgMissingID)
	}
	d := math.Floor(delta)
	if math.IsNaN(d) || math.IsInf(d, 0) || d == 0 || math.Abs(d) > counter.MaxValue {
		return 0, fault.Validation(op, MsgNonZeroDelta)
	}
	score, err := e.store.ZIncrBy(ctx, types.LeaderboardKey, id, d)
	if err != nil {
		return 0, fault.Wrap(op, err)
	}
	if score < 0 {
		if err := e.store.ZAdd(ctx, types.LeaderboardKey, id, 0); err != nil {
			return 0, fault.Wrap(op, err)
		}
		return 0, nil
	}
	return clampScore(score), nil
}

// clampScore converts a stored score to a count in [0, math.MaxInt64].
func clampScore(score float64) int64 {
	switch {
	case math.IsNaN(score) || score <= 0:
		return 0
	case score >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(score)
}

// Purge removes id from the board and reports whether it was present.
func (e *Engine) Purge(ctx context.Context, id string) (bool, error) {
	const op = "leaderboard.purge"
	n, err := e.store.ZRem(ctx, types.LeaderboardKey, id)
	if err != nil {
		return false, fault.Wrap(op, err)
	}
	return n > 0, nil
}

// Size returns the number of ranked members.
func (e *Engine) Size(ctx context.Context) (int64, error) {
	const op = "leaderboard.size"
	n, err := e.store.ZCard(ctx, types.LeaderboardKey)
	if err != nil {
		return 0, fault.Wrap(op, err)
	}
	return n, nil
}

// Reset removes every member.
func (e *Engine) Reset(ctx context.Context) error {
	const op = "leaderboard.reset"
	_, err := e.store.Del(ctx, types.LeaderboardKey)
	return fault.Wrap(op, err)
}
