package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"disposisi/internal/attachment/models"
	"disposisi/pkg/platform/sentinel"
)

const keyPrefix = "disposisi:attachment:"

// Redis stores each blob as a hash under disposisi:attachment:<locator>.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Put(ctx context.Context, locator string, blob models.Blob) error {
	key := keyPrefix + locator
	// HSETNX on the data field keeps the first upload when content repeats.
	created, err := s.client.HSetNX(ctx, key, "data", blob.Data).Result()
	if err != nil {
		return fmt.Errorf("store attachment: %w", err)
	}
	if !created {
		return nil
	}
	if err := s.client.HSet(ctx, key, "name", blob.Name, "content_type", blob.ContentType).Err(); err != nil {
		return fmt.Errorf("store attachment metadata: %w", err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, locator string) (*models.Blob, error) {
	fields, err := s.client.HGetAll(ctx, keyPrefix+locator).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load attachment: %w", err)
	}
	data, ok := fields["data"]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &models.Blob{
		Name:        fields["name"],
		ContentType: fields["content_type"],
		Data:        []byte(data),
	}, nil
}
