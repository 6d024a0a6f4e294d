package repository

import (
	"context"
	"errors"

	"github.com/example/neomart/pkg/config"
	"github.com/go-redis/redis/v8"
)

// RedisRepository stores state as plain redis strings. Transactions use
// WATCH/MULTI/EXEC on the declared keys.
type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return NewRedisRepositoryFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}), cfg)
}

func NewRedisRepositoryFromClient(client *redis.Client, cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{client: client, config: cfg}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, error) {
	return redisBytes(r.client.Get(ctx, key))
}

func (r *RedisRepository) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) Txn(ctx context.Context, keys []string, fn func(Txn) error) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		ws := newWriteSet(func(key string) ([]byte, error) {
			return redisBytes(tx.Get(ctx, key))
		})
		if err := fn(ws); err != nil {
			return err
		}
		if ws.empty() {
			return nil
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, v := range ws.writes {
				pipe.Set(ctx, k, v, 0)
			}
			if dels := ws.deletedKeys(); len(dels) > 0 {
				pipe.Del(ctx, dels...)
			}
			return nil
		})
		return err
	}, keys...)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func redisBytes(cmd *redis.StringCmd) ([]byte, error) {
	b, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}
