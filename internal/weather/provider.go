package weather

import "context"

// Provider abstracts an upstream weather data source (regional, national,
// or the global fallback).
type Provider interface {
	Name() string

	// Covers reports whether the provider claims validity for the
	// coordinates. Callers check before invoking Fetch; Fetch self-rejects
	// with a coverage error anyway.
	Covers(lat, lon float64) bool

	// Fetch resolves the current weather at the coordinates, or fails with
	// a *ProviderError.
	Fetch(ctx context.Context, lat, lon float64) (Record, error)
}
