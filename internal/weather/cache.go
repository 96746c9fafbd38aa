package weather

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/weather-diary-sync/internal/state"
	log "github.com/sirupsen/logrus"
)

// DefaultCacheTTL bounds how long a resolved record is served without a
// fresh upstream call.
const DefaultCacheTTL = 30 * time.Minute

// CacheKey rounds coordinates to 4 decimal places, which is how cache slots
// are identified.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

type cacheSlot struct {
	Data        Record `json:"data"`
	TimestampMs int64  `json:"timestampMs"`
	LocationKey string `json:"locationKey"`
}

// Cache is the two-tier weather cache: a single in-memory slot mirrored to
// the durable kv store so a warm record survives restarts. Writes replace
// the slot atomically under the mutex.
type Cache struct {
	mu     sync.Mutex
	slot   *cacheSlot
	states *state.Store
	ttl    time.Duration
	now    func() time.Time
}

// NewCache builds a cache over the durable store. A nil store disables the
// persistent tier.
func NewCache(states *state.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{states: states, ttl: ttl, now: time.Now}
}

// Get returns the cached record for the key if it is still fresh. On a
// memory miss the durable mirror is consulted.
func (c *Cache) Get(key string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.fresh(c.slot, key); ok {
		return rec, true
	}
	c.loadLocked()
	if rec, ok := c.fresh(c.slot, key); ok {
		return rec, true
	}
	return Record{}, false
}

// Stale returns whatever record is cached, regardless of age or key. Used
// as the second-to-last fallback.
func (c *Cache) Stale() (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slot == nil {
		c.loadLocked()
	}
	if c.slot == nil {
		return Record{}, false
	}
	return c.slot.Data, true
}

// Put stores the record for the key in both tiers.
func (c *Cache) Put(rec Record, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slot = &cacheSlot{
		Data:        rec,
		TimestampMs: c.now().UnixMilli(),
		LocationKey: key,
	}

	if c.states == nil {
		return
	}
	body, err := json.Marshal(c.slot)
	if err != nil {
		return
	}
	if err := c.states.Set(state.KeyWeatherCache, string(body)); err != nil {
		log.WithField("error", err).Warn("weather cache: durable mirror write failed")
	}
}

func (c *Cache) fresh(slot *cacheSlot, key string) (Record, bool) {
	if slot == nil || slot.LocationKey != key {
		return Record{}, false
	}
	if c.now().UnixMilli()-slot.TimestampMs >= c.ttl.Milliseconds() {
		return Record{}, false
	}
	return slot.Data, true
}

func (c *Cache) loadLocked() {
	if c.states == nil {
		return
	}
	body, err := c.states.Get(state.KeyWeatherCache)
	if err != nil {
		return
	}
	var slot cacheSlot
	if err := json.Unmarshal([]byte(body), &slot); err != nil {
		c.states.Delete(state.KeyWeatherCache)
		return
	}
	c.slot = &slot
}
