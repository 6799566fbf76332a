package directory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-scheduling/internal/cache"
)

// CachedUserDirectory memoizes display names. Cache failures degrade to the
// wrapped directory and are never returned to the caller.
type CachedUserDirectory struct {
	next  UserDirectory
	cache cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedUserDirectory(next UserDirectory, c cache.Cache, ttl time.Duration, log zerolog.Logger) *CachedUserDirectory {
	return &CachedUserDirectory{next: next, cache: c, ttl: ttl, log: log}
}

func nameKey(id uuid.UUID) string {
	return "user:name:" + id.String()
}

func (c *CachedUserDirectory) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	ids = uniqueIDs(ids)
	result := make(map[uuid.UUID]string, len(ids))

	var missing []uuid.UUID
	for _, id := range ids {
		val, ok, err := c.cache.Get(ctx, nameKey(id))
		if err != nil {
			c.log.Warn().Err(err).Msg("name cache read failed")
		}
		if ok {
			result[id] = string(val)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := c.next.DisplayNames(ctx, missing)
	if err != nil {
		return nil, err
	}

	for id, name := range fetched {
		result[id] = name
		if err := c.cache.Set(ctx, nameKey(id), []byte(name), c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("name cache write failed")
		}
	}

	return result, nil
}
