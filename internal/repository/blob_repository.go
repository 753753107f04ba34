package repository

import (
	"context"
	"fmt"

	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// BlobRepository stores output artifacts in a Redis hash keyed by uuid.
type BlobRepository interface {
	persistence.FileStorage
}

type blobRedisRepo struct {
	rdb *redis.Client
}

func NewBlobRepository(rdb *redis.Client) BlobRepository {
	return &blobRedisRepo{rdb: rdb}
}

func (r *blobRedisRepo) keyBlobs() string { return "flowdb:blobs" }
func (r *blobRedisRepo) keyNames() string { return "flowdb:blobs:names" }

func (r *blobRedisRepo) Put(ctx context.Context, name string, data []byte) (string, error) {
	id := uuid.NewString()
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.keyBlobs(), id, data)
		p.HSet(ctx, r.keyNames(), id, name)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("redis HSET blob: %w", err)
	}
	return id, nil
}

func (r *blobRedisRepo) Get(ctx context.Context, id string) ([]byte, error) {
	b, err := r.rdb.HGet(ctx, r.keyBlobs(), id).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("blob %s: %w", id, persistence.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET blob: %w", err)
	}
	return b, nil
}

func (r *blobRedisRepo) Delete(ctx context.Context, id string) error {
	n, err := r.rdb.HDel(ctx, r.keyBlobs(), id).Result()
	if err != nil {
		return fmt.Errorf("redis HDEL blob: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("blob %s: %w", id, persistence.ErrNotFound)
	}
	_ = r.rdb.HDel(ctx, r.keyNames(), id).Err()
	return nil
}
