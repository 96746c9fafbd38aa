package providers

import (
	"strings"

	"github.com/i474232898/weather-diary-sync/internal/weather"
)

// condIcon pairs the shared condition enum with the provider's day icon.
type condIcon struct {
	cond weather.Condition
	icon string
}

// applyNight rewrites a daytime record for the night hours: the condition
// becomes "night", clear-sky icons become the current moon phase glyph and
// the description gets a night prefix. Non-clear icons keep their weather
// meaning.
func applyNight(rec weather.Record, clock weather.Clock) weather.Record {
	if !clock.Night() {
		return rec
	}
	switch rec.Condition {
	case weather.ConditionSunny, weather.ConditionClear:
		rec.Icon = clock.MoonIcon()
	default:
		if rec.Icon == "⛅" {
			rec.Icon = "☁️"
		}
	}
	rec.Condition = weather.ConditionNight
	if rec.Description != "" && !strings.HasPrefix(rec.Description, "夜晚 - ") {
		rec.Description = "夜晚 - " + rec.Description
	}
	return rec
}

// formatParts joins the non-empty location components with ", ".
func formatParts(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	if len(kept) == 0 {
		return "未知位置"
	}
	return strings.Join(kept, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
