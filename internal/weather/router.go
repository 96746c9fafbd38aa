package weather

import (
	"context"
	"sync"

	"github.com/i474232898/weather-diary-sync/internal/geo"
	"github.com/i474232898/weather-diary-sync/internal/state"
	log "github.com/sirupsen/logrus"
)

// Source names recorded for observability when no provider succeeded.
const (
	SourceCache = "cache"
	SourceMock  = "mock"
)

// isDomestic classifies coordinates against the broad national bounding box
// (lat 18..54, lon 73..135) that drives provider ordering.
func isDomestic(lat, lon float64) bool {
	return lat >= 18 && lat <= 54 && lon >= 73 && lon <= 135
}

type inflight struct {
	done chan struct{}
	rec  Record
}

// Router resolves the current weather through the cascading fallback chain:
// fresh cache, region-ordered providers, stale cache, canned record.
// Current never fails.
type Router struct {
	resolver *geo.Resolver
	cache    *Cache
	domestic []Provider
	roaming  []Provider
	clock    Clock
	states   *state.Store

	// OnSourceChange, when set, is invoked with the provider (or fallback)
	// name after each resolution.
	OnSourceChange func(source string)

	mu      sync.Mutex
	pending *inflight
}

// NewRouter builds a router. domestic and roaming are the provider chains
// tried in order for in-box and out-of-box coordinates respectively.
func NewRouter(resolver *geo.Resolver, cache *Cache, domestic, roaming []Provider, clock Clock, states *state.Store) *Router {
	return &Router{
		resolver: resolver,
		cache:    cache,
		domestic: domestic,
		roaming:  roaming,
		clock:    clock,
		states:   states,
	}
}

// Current resolves the weather for the device location. Concurrent callers
// during an in-flight resolution share its result instead of triggering
// duplicate upstream calls.
func (r *Router) Current(ctx context.Context) Record {
	r.mu.Lock()
	if r.pending != nil {
		call := r.pending
		r.mu.Unlock()
		log.Debug("weather: joining in-flight resolution")
		select {
		case <-call.done:
			return call.rec
		case <-ctx.Done():
			// The shared resolution keeps running; this caller settles for
			// the best effort fallback.
			return r.fallback()
		}
	}
	call := &inflight{done: make(chan struct{})}
	r.pending = call
	r.mu.Unlock()

	call.rec = r.resolve(ctx)
	close(call.done)

	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()

	return call.rec
}

func (r *Router) resolve(ctx context.Context) Record {
	coords := r.resolver.Locate(ctx)
	key := CacheKey(coords.Lat, coords.Lon)

	if rec, ok := r.cache.Get(key); ok {
		log.WithField("key", key).Debug("weather: cache hit")
		return rec
	}

	chain := r.roaming
	if isDomestic(coords.Lat, coords.Lon) {
		chain = r.domestic
	}

	for _, p := range chain {
		if !p.Covers(coords.Lat, coords.Lon) {
			continue
		}
		rec, err := p.Fetch(ctx, coords.Lat, coords.Lon)
		if err != nil {
			kind := ErrorKindOf(err)
			entry := log.WithField("provider", p.Name()).WithField("kind", kind.String())
			if kind == KindCoverage {
				entry.Debug("weather: provider skipped")
			} else {
				entry.WithField("error", err).Warn("weather: provider failed")
			}
			continue
		}

		r.cache.Put(rec, key)
		r.recordSource(p.Name())
		return rec
	}

	log.Warn("weather: all providers failed, using fallback")
	return r.fallback()
}

// fallback serves the stale cache if any record exists, else a canned
// record. This terminal step never fails.
func (r *Router) fallback() Record {
	if rec, ok := r.cache.Stale(); ok {
		r.recordSource(SourceCache)
		return rec
	}
	r.recordSource(SourceMock)
	return MockRecord(r.clock)
}

func (r *Router) recordSource(source string) {
	if r.states != nil {
		if err := r.states.Set(state.KeyCurrentSource, source); err != nil {
			log.WithField("error", err).Debug("weather: failed to persist source name")
		}
	}
	if r.OnSourceChange != nil {
		r.OnSourceChange(source)
	}
}

// ActiveSource reports the provider name used by the most recent
// resolution, if recorded.
func (r *Router) ActiveSource() string {
	if r.states == nil {
		return ""
	}
	source, err := r.states.Get(state.KeyCurrentSource)
	if err != nil {
		return ""
	}
	return source
}
