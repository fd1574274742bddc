package eml

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/biohubbc/biohub-platform/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const indexObjectName = "index.json"

// StylesheetStore fetches versioned stylesheets from object storage,
// with a redis cache in front. A cache miss or an unavailable redis
// falls through to storage.
type StylesheetStore struct {
	objects   storage.ObjectStore
	cache     *redis.Client
	keyPrefix string
	cacheTTL  time.Duration
}

func NewStylesheetStore(objects storage.ObjectStore, cache *redis.Client, keyPrefix string, cacheTTL time.Duration) *StylesheetStore {
	return &StylesheetStore{
		objects:   objects,
		cache:     cache,
		keyPrefix: keyPrefix,
		cacheTTL:  cacheTTL,
	}
}

// ForSchemaVersion resolves the stylesheet compatible with the given
// data schema version and returns it.
func (s *StylesheetStore) ForSchemaVersion(ctx context.Context, name, schemaVersion string) (*Stylesheet, error) {
	index, err := s.fetchIndex(ctx, name)
	if err != nil {
		return nil, err
	}
	version, err := index.Resolve(schemaVersion)
	if err != nil {
		return nil, err
	}
	return s.Fetch(ctx, name, version)
}

// Fetch returns the named stylesheet at an exact version.
func (s *StylesheetStore) Fetch(ctx context.Context, name, version string) (*Stylesheet, error) {
	cacheKey := fmt.Sprintf("stylesheet:%s:%s", name, version)

	if data := s.cacheGet(ctx, cacheKey); data != nil {
		if ss, err := ParseStylesheet(data); err == nil {
			return ss, nil
		}
	}

	key := storage.StylesheetKey(s.keyPrefix, name, version)
	data, _, err := s.objects.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetching stylesheet %s@%s: %w", name, version, err)
	}

	ss, err := ParseStylesheet(data)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, data)
	return ss, nil
}

func (s *StylesheetStore) fetchIndex(ctx context.Context, name string) (*CompatibilityIndex, error) {
	data, _, err := s.objects.GetObject(ctx, fmt.Sprintf("%s/%s/%s", s.keyPrefix, name, indexObjectName))
	if err != nil {
		return nil, fmt.Errorf("fetching stylesheet index for %s: %w", name, err)
	}

	var index CompatibilityIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parsing stylesheet index for %s: %w", name, err)
	}
	return &index, nil
}

func (s *StylesheetStore) cacheGet(ctx context.Context, key string) []byte {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	return data
}

func (s *StylesheetStore) cacheSet(ctx context.Context, key string, data []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("failed to cache stylesheet")
	}
}
