package memory

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/med-tracker/backend/internal/metrics"
	"github.com/med-tracker/backend/pkg/logger"
)

// Tier identifies one of the three independent caches.
type Tier string

const (
	// TierQuery holds full end-to-end responses keyed by a normalized
	// request fingerprint.
	TierQuery Tier = "query"
	// TierDrug holds single-drug lookups keyed by normalized name.
	TierDrug Tier = "drug"
	// TierInteraction holds drug-pair results keyed by an
	// order-independent pair fingerprint.
	TierInteraction Tier = "interaction"
)

type Config struct {
	QueryTTL       time.Duration
	DrugTTL        time.Duration
	InteractionTTL time.Duration
}

type entry struct {
	value     interface{}
	createdAt time.Time
}

type tierCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	hits    int64
	misses  int64
}

// Cache is a three-tier, time-boxed memoization layer. It holds no
// reference to the query engine or any collaborator; callers decide what
// to cache and under which tier. Expiry is lazy: an entry past its TTL is
// treated as absent on the next read.
type Cache struct {
	tiers map[Tier]*tierCache
}

type TierStats struct {
	Hits    int64
	Misses  int64
	HitRate float64
	Entries int
}

func New(cfg Config) *Cache {
	if cfg.QueryTTL == 0 {
		cfg.QueryTTL = 15 * time.Minute
	}
	if cfg.DrugTTL == 0 {
		cfg.DrugTTL = 7 * 24 * time.Hour
	}
	if cfg.InteractionTTL == 0 {
		cfg.InteractionTTL = 7 * 24 * time.Hour
	}

	return &Cache{
		tiers: map[Tier]*tierCache{
			TierQuery:       {entries: make(map[string]entry), ttl: cfg.QueryTTL},
			TierDrug:        {entries: make(map[string]entry), ttl: cfg.DrugTTL},
			TierInteraction: {entries: make(map[string]entry), ttl: cfg.InteractionTTL},
		},
	}
}

// Get returns the cached value for key, or false on a miss. An expired
// entry counts as a miss and is removed in place.
func (c *Cache) Get(tier Tier, key string) (interface{}, bool) {
	t, ok := c.tiers[tier]
	if !ok {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cached, exists := t.entries[key]
	if exists && time.Since(cached.createdAt) < t.ttl {
		t.hits++
		metrics.CacheHits.WithLabelValues(string(tier)).Inc()
		logger.Debug("Cache hit", zap.String("tier", string(tier)), zap.String("key", key))
		return cached.value, true
	}

	if exists {
		delete(t.entries, key)
	}

	t.misses++
	metrics.CacheMisses.WithLabelValues(string(tier)).Inc()
	return nil, false
}

// Put stores a value. Last write wins on key collision.
func (c *Cache) Put(tier Tier, key string, value interface{}) {
	t, ok := c.tiers[tier]
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[key] = entry{value: value, createdAt: time.Now()}
	logger.Debug("Cache store", zap.String("tier", string(tier)), zap.String("key", key))
}

// Stats returns hit/miss counts, hit rate and entry count per tier.
func (c *Cache) Stats() map[Tier]TierStats {
	stats := make(map[Tier]TierStats, len(c.tiers))

	for tier, t := range c.tiers {
		t.mu.Lock()
		s := TierStats{
			Hits:    t.hits,
			Misses:  t.misses,
			Entries: len(t.entries),
		}
		if total := s.Hits + s.Misses; total > 0 {
			s.HitRate = float64(s.Hits) / float64(total)
		}
		t.mu.Unlock()
		stats[tier] = s
	}

	return stats
}

// Clear wipes every tier. Diagnostics only, not part of normal request
// handling.
func (c *Cache) Clear() {
	for tier, t := range c.tiers {
		t.mu.Lock()
		t.entries = make(map[string]entry)
		t.mu.Unlock()
		logger.Debug("Cache cleared", zap.String("tier", string(tier)))
	}
}
