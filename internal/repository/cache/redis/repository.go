package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinemate/server/internal/repository/cache"
)

type repo struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRepo(rc *redis.Client, ttl time.Duration) *repo {
	return &repo{rc: rc, ttl: ttl}
}

func (r *repo) key(sourceUrl string) string {
	return "media:" + sourceUrl
}

func (r *repo) GetMedia(ctx context.Context, sourceUrl string) (cache.Media, error) {
	raw, err := r.rc.Get(ctx, r.key(sourceUrl)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cache.Media{}, cache.ErrNotFound
		}

		return cache.Media{}, fmt.Errorf("failed to get media from redis: %w", err)
	}

	var media cache.Media
	if err := json.Unmarshal(raw, &media); err != nil {
		return cache.Media{}, fmt.Errorf("failed to unmarshal cached media: %w", err)
	}

	return media, nil
}

func (r *repo) SetMedia(ctx context.Context, sourceUrl string, media cache.Media) error {
	raw, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("failed to marshal media: %w", err)
	}

	if err := r.rc.Set(ctx, r.key(sourceUrl), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set media in redis: %w", err)
	}

	return nil
}
