package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/pkg/logger"
	"github.com/okian/clickrank/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over go-redis. The client handle is created by
// the first operation that needs it and recreated if it is observed closed.
// The underlying pool is safe for concurrent use.
type RedisStore struct {
	opts     *redis.Options
	redacted string
	prefix   string

	mu     sync.Mutex
	handle atomic.Pointer[redis.Client]

	logger logger.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore parses rawURL and returns a store that connects lazily.
func NewRedisStore(rawURL string, opts ...Option) (*RedisStore, error) {
	ro, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	s := &RedisStore{
		opts:     ro,
		redacted: redact(rawURL),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("store")
	}
	return s, nil
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

// Addr returns the redacted connection URL.
func (s *RedisStore) Addr() string { return s.redacted }

func (s *RedisStore) client() *redis.Client {
	if c := s.handle.Load(); c != nil {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.handle.Load(); c != nil {
		return c
	}
	o := *s.opts
	c := redis.NewClient(&o)
	s.handle.Store(c)
	metrics.RecordStoreConnect()
	s.logger.Info(context.Background(), "store client created", logger.String("url", s.redacted))
	return c
}

// drop forgets c if it is still the current handle.
func (s *RedisStore) drop(c *redis.Client) {
	if s.handle.CompareAndSwap(c, nil) {
		_ = c.Close()
	}
}

func (s *RedisStore) do(ctx context.Context, op string, fn func(c *redis.Client) error) error {
	start := time.Now()
	c := s.client()
	err := fn(c)
	if errors.Is(err, redis.ErrClosed) {
		s.logger.Warn(ctx, "store handle closed; reconnecting", logger.String("op", op))
		s.drop(c)
		err = fn(s.client())
	}
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(op)
		return s.wrap(op, err)
	}
	return nil
}

// wrap labels err for the public message. Replies the server rejected are
// store errors; everything else means the store could not be reached. Only the
// host is surfaced, never the credentials.
func (s *RedisStore) wrap(op string, err error) error {
	label := "Store unavailable"
	var reply redis.Error
	if errors.As(err, &reply) {
		label = "Store error"
	}
	return &fault.Error{
		Op:   "store." + op,
		Kind: fault.ErrUpstream,
		Msg:  fmt.Sprintf("%s (%s): %v", label, s.opts.Addr, err),
		Err:  fmt.Errorf("%w: %w", ErrStore, err),
	}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := s.do(ctx, "get", func(c *redis.Client) error {
		res, err := c.Get(ctx, s.key(key)).Result()
		if errors.Is(err, redis.Nil) {
			v, ok = "", false
			return nil
		}
		v, ok = res, err == nil
		return err
	})
	return v, ok, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.do(ctx, "set", func(c *redis.Client) error {
		return c.Set(ctx, s.key(key), value, 0).Err()
	})
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.do(ctx, "incr", func(c *redis.Client) error {
		var err error
		n, err = c.Incr(ctx, s.key(key)).Result()
		return err
	})
	return n, err
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var n int64
	err := s.do(ctx, "incrby", func(c *redis.Client) error {
		var err error
		n, err = c.IncrBy(ctx, s.key(key), delta).Result()
		return err
	})
	return n, err
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := s.do(ctx, "hget", func(c *redis.Client) error {
		res, err := c.HGet(ctx, s.key(key), field).Result()
		if errors.Is(err, redis.Nil) {
			v, ok = "", false
			return nil
		}
		v, ok = res, err == nil
		return err
	})
	return v, ok, err
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for f, v := range fields {
		args = append(args, f, v)
	}
	return s.do(ctx, "hset", func(c *redis.Client) error {
		return c.HSet(ctx, s.key(key), args...).Err()
	})
}

func (s *RedisStore) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	var wrote bool
	err := s.do(ctx, "hsetnx", func(c *redis.Client) error {
		var err error
		wrote, err = c.HSetNX(ctx, s.key(key), field, value).Result()
		return err
	})
	return wrote, err
}

func (s *RedisStore) ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error) {
	var score float64
	err := s.do(ctx, "zincrby", func(c *redis.Client) error {
		var err error
		score, err = c.ZIncrBy(ctx, s.key(key), delta, member).Result()
		return err
	})
	return score, err
}

func (s *RedisStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	return s.do(ctx, "zadd", func(c *redis.Client) error {
		return c.ZAdd(ctx, s.key(key), redis.Z{Score: score, Member: member}).Err()
	})
}

func (s *RedisStore) ZRem(ctx context.Context, key, member string) (int64, error) {
	var n int64
	err := s.do(ctx, "zrem", func(c *redis.Client) error {
		var err error
		n, err = c.ZRem(ctx, s.key(key), member).Result()
		return err
	})
	return n, err
}

// ZScore reports a member's score; ok is false when the member is absent.
func (s *RedisStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	var (
		score float64
		ok    bool
	)
	err := s.do(ctx, "zscore", func(c *redis.Client) error {
		res, err := c.ZScore(ctx, s.key(key), member).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		score, ok = res, err == nil
		return err
	})
	return score, ok, err
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.do(ctx, "zcard", func(c *redis.Client) error {
		var err error
		n, err = c.ZCard(ctx, s.key(key)).Result()
		return err
	})
	return n, err
}

func (s *RedisStore) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	var out []Member
	err := s.do(ctx, "zrange", func(c *redis.Client) error {
		zs, err := c.ZRangeArgsWithScores(ctx, redis.ZRangeArgs{
			Key:   s.key(key),
			Start: start,
			Stop:  stop,
			Rev:   true,
		}).Result()
		if err != nil {
			return err
		}
		out = make([]Member, 0, len(zs))
		for _, z := range zs {
			id, _ := z.Member.(string)
			out = append(out, Member{ID: id, Score: z.Score})
		}
		return nil
	})
	return out, err
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	var n int64
	err := s.do(ctx, "del", func(c *redis.Client) error {
		var err error
		n, err = c.Del(ctx, full...).Result()
		return err
	})
	return n, err
}

func (s *RedisStore) SetAndDelete(ctx context.Context, key, value string, del ...string) error {
	return s.do(ctx, "multi", func(c *redis.Client) error {
		_, err := c.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, s.key(key), value, 0)
			for _, k := range del {
				p.Del(ctx, s.key(k))
			}
			return nil
		})
		return err
	})
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", func(c *redis.Client) error {
		return c.Ping(ctx).Err()
	})
}

// Close releases the current handle. A later operation reconnects.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.handle.Swap(nil)
	if c == nil {
		return nil
	}
	if err := c.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: close: %w", ErrStore, err)
	}
	s.logger.Info(context.Background(), "store client closed")
	return nil
}
