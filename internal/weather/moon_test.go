package weather

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestPhaseAroundReferenceCycle(t *testing.T) {
	cases := []struct {
		day  time.Time
		want MoonPhase
	}{
		{date(2000, time.January, 6), MoonNew},
		{date(2000, time.January, 14), MoonFirstQuarter},
		{date(2000, time.January, 21), MoonFull},
		{date(2000, time.January, 28), MoonLastQuarter},
	}
	for _, tc := range cases {
		if got := Phase(tc.day); got != tc.want {
			t.Errorf("Phase(%s) = %s, want %s", tc.day.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestPhaseAlwaysHasIcon(t *testing.T) {
	day := date(2024, time.January, 1)
	for i := 0; i < 60; i++ {
		phase := Phase(day.AddDate(0, 0, i))
		if _, ok := MoonPhaseIcons[phase]; !ok {
			t.Fatalf("no icon for phase %s on %s", phase, day.AddDate(0, 0, i).Format("2006-01-02"))
		}
	}
}
