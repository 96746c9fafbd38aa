package diary

import (
	"github.com/i474232898/weather-diary-sync/internal/weather"
)

// Mood is the author's self-reported mood for an entry.
type Mood struct {
	Emoji string `json:"emoji"`
	Type  string `json:"type"`
}

// Entry is one diary entry. Timestamp is unix milliseconds and doubles as
// the ordering key everywhere entries are listed or merged.
type Entry struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Mood      Mood           `json:"mood"`
	Weather   weather.Record `json:"weather"`
	Timestamp int64          `json:"timestamp"`
}

// Draft is the caller-supplied part of a new entry; id and timestamp are
// assigned by the store.
type Draft struct {
	Title   string         `json:"title" validate:"required"`
	Content string         `json:"content" validate:"required"`
	Mood    Mood           `json:"mood"`
	Weather weather.Record `json:"weather"`
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	Title   *string         `json:"title"`
	Content *string         `json:"content"`
	Mood    *Mood           `json:"mood"`
	Weather *weather.Record `json:"weather"`
}

// Apply overlays the patch onto an entry.
func (p Patch) Apply(e Entry) Entry {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.Mood != nil {
		e.Mood = *p.Mood
	}
	if p.Weather != nil {
		e.Weather = *p.Weather
	}
	return e
}
