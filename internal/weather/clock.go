package weather

import "time"

// Clock supplies the local time used for the night window and moon phase.
// ForceNight mirrors the manual night-mode override; tests pin Now.
type Clock struct {
	Now        func() time.Time
	ForceNight bool
}

// SystemClock uses wall-clock local time with no override.
var SystemClock = Clock{Now: time.Now}

func (c Clock) time() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Night reports whether the current local time falls in [18:00, 06:00),
// or the manual override is set.
func (c Clock) Night() bool {
	if c.ForceNight {
		return true
	}
	hour := c.time().Hour()
	return hour >= 18 || hour < 6
}

// MoonPhase returns the phase for the current time.
func (c Clock) MoonPhase() MoonPhase {
	return Phase(c.time())
}

// MoonIcon returns the glyph for the current phase.
func (c Clock) MoonIcon() string {
	return MoonPhaseIcons[c.MoonPhase()]
}
