// Package counter maintains the global scalar counter.
package counter

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/internal/domain/types"
)

// MaxValue is the largest value an administrator may set.
const MaxValue = 1e15

// Public validation messages.
const (
	MsgInvalidValue  = "Invalid value"
	MsgPositiveDelta = "delta must be a positive integer"
)

// Store is the subset of store operations the engine needs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// Engine reads and mutates the global counter. Atomicity comes from the
// store's INCR and INCRBY; the engine holds no state.
type Engine struct {
	store Store
}

// New returns an Engine over store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// Read returns the counter floored to an integer, or 0 if it is unset or not
// a finite number.
func (e *Engine) Read(ctx context.Context) (int64, error) {
	const op = "counter.read"
	v, ok, err := e.store.Get(ctx, types.CounterKey)
	if err != nil {
		return 0, fault.Wrap(op, err)
	}
	if !ok {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	f = math.Floor(f)
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64, nil
	case f <= math.MinInt64:
		return math.MinInt64, nil
	}
	return int64(f), nil
}

// Increment adds one and returns the new value.
func (e *Engine) Increment(ctx context.Context) (int64, error) {
	const op = "counter.increment"
	n, err := e.store.Incr(ctx, types.CounterKey)
	if err != nil {
		return 0, fault.Wrap(op, err)
	}
	return n, nil
}

// AdminSet overwrites the counter with floor(value).
func (e *Engine) AdminSet(ctx context.Context, value float64) (int64, error) {
	const op = "counter.admin_set"
	v := math.Floor(value)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > MaxValue {
		return 0, fault.Validation(op, MsgInvalidValue)
	}
	n := int64(v)
	if err := e.store.Set(ctx, types.CounterKey, strconv.FormatInt(n, 10)); err != nil {
		return 0, fault.Wrap(op, err)
	}
	return n, nil
}

// AdminAdd adds floor(delta), which must be positive, and returns the new value.
func (e *Engine) AdminAdd(ctx context.Context, delta float64) (int64, error) {
	const op = "counter.admin_add"
	d := math.Floor(delta)
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 || d >= math.MaxInt64 {
		return 0, fault.Validation(op, MsgPositiveDelta)
	}
	n, err := e.store.IncrBy(ctx, types.CounterKey, int64(d))
	if err != nil {
		return 0, fault.Wrap(op, err)
	}
	return n, nil
}

// Reset sets the counter to zero.
func (e *Engine) Reset(ctx context.Context) error {
	const op = "counter.reset"
	return fault.Wrap(op, e.store.Set(ctx, types.CounterKey, "0"))
}
