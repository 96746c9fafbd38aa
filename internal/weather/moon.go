package weather

import (
	"math"
	"time"
)

// Lunar cycle length in days.
const lunarCycle = 29.53058867

// Julian day of the reference new moon on 2000-01-06.
const newMoon2000 = 2451550.1

// Phase computes the moon phase for the given date using a Julian day
// approximation. Accurate to within a day, which is enough for picking
// a glyph.
func Phase(t time.Time) MoonPhase {
	year := t.Year()
	month := int(t.Month())
	day := t.Day()

	jd := float64(367*year) -
		math.Floor(7*(float64(year)+math.Floor(float64(month+9)/12))/4) +
		math.Floor(275*float64(month)/9) +
		float64(day) + 1721013.5

	phase := math.Mod(jd-newMoon2000, lunarCycle) / lunarCycle
	if phase < 0 {
		phase += 1
	}

	switch {
	case phase < 0.0625:
		return MoonNew
	case phase < 0.1875:
		return MoonWaxingCrescent
	case phase < 0.3125:
		return MoonFirstQuarter
	case phase < 0.4375:
		return MoonWaxingGibbous
	case phase < 0.5625:
		return MoonFull
	case phase < 0.6875:
		return MoonWaningGibbous
	case phase < 0.8125:
		return MoonLastQuarter
	case phase < 0.9375:
		return MoonWaningCrescent
	default:
		return MoonNew
	}
}
