package weather

import (
	"testing"
	"time"
)

func fixedClock(hour int) Clock {
	return Clock{Now: func() time.Time {
		return time.Date(2024, time.June, 15, hour, 30, 0, 0, time.Local)
	}}
}

func TestNightWindow(t *testing.T) {
	cases := []struct {
		hour int
		want bool
	}{
		{5, true},
		{6, false},
		{12, false},
		{17, false},
		{18, true},
		{23, true},
	}
	for _, tc := range cases {
		if got := fixedClock(tc.hour).Night(); got != tc.want {
			t.Errorf("Night at %02d:30 = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestForceNightOverridesClock(t *testing.T) {
	c := fixedClock(12)
	c.ForceNight = true
	if !c.Night() {
		t.Fatal("expected forced night at noon")
	}
}
