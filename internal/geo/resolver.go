// Package geo resolves the device location, degrading to a fixed default
// rather than failing.
package geo

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/i474232898/weather-diary-sync/internal/state"
	log "github.com/sirupsen/logrus"
)

// Default coordinates (Beijing) used whenever the device location is
// unavailable, denied or times out.
const (
	DefaultLat = 39.9042
	DefaultLon = 116.4074
)

const (
	// LocateTimeout bounds a single device lookup.
	LocateTimeout = 15 * time.Second
	// FixMaxAge is how long a previous fix counts as fresh enough to reuse.
	FixMaxAge = 5 * time.Minute
)

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Locator is the device-location collaborator. Implementations may block up
// to the timeout and fail for permission or capability reasons.
type Locator interface {
	Locate(ctx context.Context, timeout, maxAge time.Duration) (Coordinates, error)
}

type lastFix struct {
	Coordinates
	TimestampMs int64 `json:"timestamp"`
}

// Resolver wraps a Locator with a timeout, a freshness window, and the
// default-coordinate fallback. Locate never fails.
type Resolver struct {
	locator Locator
	states  *state.Store
	now     func() time.Time

	mu  sync.Mutex
	fix *lastFix
}

// NewResolver builds a resolver. locator may be nil when the platform has no
// location capability; states may be nil to skip persistence.
func NewResolver(locator Locator, states *state.Store) *Resolver {
	return &Resolver{locator: locator, states: states, now: time.Now}
}

// Locate returns the best-known coordinates. Callers never need a
// null-location branch: on any failure the default is returned.
func (r *Resolver) Locate(ctx context.Context) Coordinates {
	r.mu.Lock()
	if r.fix != nil && r.now().UnixMilli()-r.fix.TimestampMs < FixMaxAge.Milliseconds() {
		coords := r.fix.Coordinates
		r.mu.Unlock()
		return coords
	}
	r.mu.Unlock()

	if r.locator == nil {
		log.Warn("geo: no location capability, using default position")
		return Coordinates{Lat: DefaultLat, Lon: DefaultLon}
	}

	ctx, cancel := context.WithTimeout(ctx, LocateTimeout)
	defer cancel()

	coords, err := r.locator.Locate(ctx, LocateTimeout, FixMaxAge)
	if err != nil {
		log.WithField("error", err).Warn("geo: location lookup failed, using default position")
		return Coordinates{Lat: DefaultLat, Lon: DefaultLon}
	}

	fix := &lastFix{Coordinates: coords, TimestampMs: r.now().UnixMilli()}
	r.mu.Lock()
	r.fix = fix
	r.mu.Unlock()
	r.persist(fix)

	return coords
}

// LastKnown returns the most recent successful fix, falling back to the
// persisted one and then the default.
func (r *Resolver) LastKnown() Coordinates {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fix != nil {
		return r.fix.Coordinates
	}
	if r.states != nil {
		if body, err := r.states.Get(state.KeyLastPosition); err == nil {
			var fix lastFix
			if json.Unmarshal([]byte(body), &fix) == nil {
				return fix.Coordinates
			}
		}
	}
	return Coordinates{Lat: DefaultLat, Lon: DefaultLon}
}

func (r *Resolver) persist(fix *lastFix) {
	if r.states == nil {
		return
	}
	body, err := json.Marshal(fix)
	if err != nil {
		return
	}
	if err := r.states.Set(state.KeyLastPosition, string(body)); err != nil {
		log.WithField("error", err).Debug("geo: failed to persist last position")
	}
}
