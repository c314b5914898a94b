// Package repository defines the store interface consumed by the domain
// engines and its Redis implementation.
package repository

import (
	"context"

	"github.com/okian/clickrank/internal/domain/types"
)

// Member is one sorted-set row.
type Member = types.ScoredMember

// Store is the narrow, atomic-operation-only view of the external store.
// Keys passed in are logical; implementations may namespace them.
// Absent keys and fields are reported with ok=false, never as errors.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	HGet(ctx context.Context, key, field string) (value string, ok bool, err error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetNX writes field only if it is absent and reports whether it wrote.
	HSetNX(ctx context.Context, key, field, value string) (bool, error)

	ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error)
	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key, member string) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)
	// ZRevRangeWithScores returns ranks start..stop (inclusive) by descending score.
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Member, error)

	Del(ctx context.Context, keys ...string) (int64, error)

	// SetAndDelete sets key to value and deletes del in one MULTI/EXEC block.
	SetAndDelete(ctx context.Context, key, value string, del ...string) error

	Ping(ctx context.Context) error
	Close() error
}
