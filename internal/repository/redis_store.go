package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/veranemoloko/tgdl-core/internal/domain"
	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
)

const maxUpdateAttempts = 10

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps each aggregate as one JSON value so that a batch and
// its tasks change in a single optimistic transaction.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func aggKey(id uuid.UUID) string  { return "tgdl:agg:" + id.String() }
func rootKey(id uuid.UUID) string { return "tgdl:task-root:" + id.String() }
func expiryKey() string           { return "tgdl:agg:expiry" }

// Create writes the aggregate and its task index in one transaction. It
// fails if the aggregate already exists.
func (s *RedisStore) Create(ctx context.Context, agg *domain.BatchAggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("marshal aggregate: %w", err)
	}

	key := aggKey(agg.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("aggregate %s already exists", agg.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			for _, t := range agg.Tasks {
				pipe.Set(ctx, rootKey(t.ID), agg.ID.String(), 0)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("aggregate %s already exists", agg.ID)
	}
	if err != nil {
		return fmt.Errorf("redis create aggregate: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, rootID uuid.UUID) (*domain.BatchAggregate, error) {
	return s.load(ctx, s.rdb, rootID)
}

func (s *RedisStore) load(ctx context.Context, c getter, rootID uuid.UUID) (*domain.BatchAggregate, error) {
	data, err := c.Get(ctx, aggKey(rootID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errpkg.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get aggregate: %w", err)
	}

	var agg domain.BatchAggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, fmt.Errorf("unmarshal aggregate %s: %w", rootID, err)
	}
	return &agg, nil
}

func (s *RedisStore) RootOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error) {
	v, err := s.rdb.Get(ctx, rootKey(taskID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, errpkg.ErrTaskNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("redis get task root: %w", err)
	}
	return uuid.Parse(v)
}

// Update retries on write conflicts and gives up with ErrConcurrentUpdate.
func (s *RedisStore) Update(ctx context.Context, rootID uuid.UUID, fn MutateFunc) (*domain.BatchAggregate, error) {
	key := aggKey(rootID)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var committed *domain.BatchAggregate

		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			agg, err := s.load(ctx, tx, rootID)
			if err != nil {
				return err
			}
			if err := fn(agg); err != nil {
				return err
			}

			data, err := json.Marshal(agg)
			if err != nil {
				return fmt.Errorf("marshal aggregate: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				for _, t := range agg.Tasks {
					pipe.Set(ctx, rootKey(t.ID), rootID.String(), 0)
				}
				if exp := agg.ExpiresAt(); agg.IsTerminal() && exp != nil {
					pipe.ZAdd(ctx, expiryKey(), redis.Z{Score: float64(exp.Unix()), Member: rootID.String()})
				} else {
					pipe.ZRem(ctx, expiryKey(), rootID.String())
				}
				return nil
			})
			if err != nil {
				return err
			}
			committed = agg
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			slog.Debug("Aggregate update conflict, retrying", "root_id", rootID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return committed, nil
	}

	return nil, fmt.Errorf("%w: aggregate %s", errpkg.ErrConcurrentUpdate, rootID)
}

func (s *RedisStore) ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	members, err := s.rdb.ZRangeByScore(ctx, expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list expired: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			slog.Warn("Skipping malformed expiry entry", "member", m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteExpired re-checks expiry under WATCH. A concurrent write to the
// aggregate aborts the delete; the next sweep looks at it again.
func (s *RedisStore) DeleteExpired(ctx context.Context, rootID uuid.UUID, now time.Time) (bool, error) {
	key := aggKey(rootID)
	var deleted bool

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		agg, err := s.load(ctx, tx, rootID)
		if err != nil {
			return err
		}
		if !agg.Expired(now) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			for _, t := range agg.Tasks {
				pipe.Del(ctx, rootKey(t.ID))
			}
			pipe.ZRem(ctx, expiryKey(), rootID.String())
			return nil
		})
		if err != nil {
			return err
		}
		deleted = true
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		slog.Debug("Aggregate changed during expiry delete, skipping", "root_id", rootID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis delete aggregate: %w", err)
	}
	return deleted, nil
}
