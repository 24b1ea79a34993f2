package docstore

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
)

const redisKeyPrefix = "desklab:doc:"

// RedisStore keeps each document as a string key desklab:doc:<name>:<tag>.
type RedisStore struct {
	rdb *goredis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// OpenRedis connects to url and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, deskerrors.ConfigError("invalid redis url", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, deskerrors.ExternalFailure("redis ping", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func redisKey(ref Ref) string {
	return redisKeyPrefix + ref.Name + ":" + ref.Tag
}

func (s *RedisStore) Get(ctx context.Context, ref Ref) ([]byte, error) {
	data, err := s.rdb.Get(ctx, redisKey(ref)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNotFound
		}
		return nil, deskerrors.ExternalFailure("redis get", err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, ref Ref, doc []byte) error {
	if err := s.rdb.Set(ctx, redisKey(ref), doc, 0).Err(); err != nil {
		return deskerrors.ExternalFailure("redis set", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

var _ Store = (*RedisStore)(nil)
