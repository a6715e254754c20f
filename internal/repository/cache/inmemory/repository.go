package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cinemate/server/internal/repository/cache"
)

type entry struct {
	media    cache.Media
	storedAt time.Time
}

// repo is the single-process fallback used when no redis address is
// configured.
type repo struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   clockwork.Clock
}

func NewRepo(ttl time.Duration, clock clockwork.Clock) *repo {
	return &repo{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (r *repo) GetMedia(_ context.Context, sourceUrl string) (cache.Media, error) {
	r.mu.RLock()
	e, ok := r.entries[sourceUrl]
	r.mu.RUnlock()

	if !ok {
		return cache.Media{}, cache.ErrNotFound
	}

	if r.clock.Since(e.storedAt) > r.ttl {
		r.mu.Lock()
		delete(r.entries, sourceUrl)
		r.mu.Unlock()

		return cache.Media{}, cache.ErrNotFound
	}

	return e.media, nil
}

func (r *repo) SetMedia(_ context.Context, sourceUrl string, media cache.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[sourceUrl] = entry{media: media, storedAt: r.clock.Now()}

	return nil
}
