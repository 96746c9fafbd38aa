package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weather-diary-sync/internal/weather"
)

func dayClock() weather.Clock {
	return weather.Clock{Now: func() time.Time {
		return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.Local)
	}}
}

func nightClock() weather.Clock {
	c := dayClock()
	c.ForceNight = true
	return c
}

func newAmapServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/geocode/regeo"):
			w.Write([]byte(`{
				"status": "1",
				"regeocode": {
					"addressComponent": {
						"adcode": "110101",
						"city": [],
						"district": "东城区",
						"province": "北京市"
					}
				}
			}`))
		case strings.HasPrefix(r.URL.Path, "/weather/weatherInfo"):
			if r.URL.Query().Get("city") != "110101" {
				t.Errorf("weather lookup used city %q, want the adcode", r.URL.Query().Get("city"))
			}
			w.Write([]byte(`{
				"status": "1",
				"lives": [{
					"weather": "晴",
					"temperature": "28",
					"humidity": "40",
					"winddirection": "东南",
					"windpower": "3"
				}]
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestAmapTwoStepResolution(t *testing.T) {
	var calls int32
	srv := newAmapServer(t, &calls)
	defer srv.Close()

	p := NewAmapProvider(srv.Client(), "test-key", srv.URL, dayClock())
	rec, err := p.Fetch(context.Background(), 39.9042, 116.4074)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Condition != weather.ConditionSunny || rec.Icon != "☀️" {
		t.Fatalf("expected sunny/☀️, got %s/%s", rec.Condition, rec.Icon)
	}
	if rec.Location != "东城区, 北京市" {
		t.Fatalf("expected district fallback for the municipality, got %q", rec.Location)
	}
	if rec.WindSpeed != "东南风3级" {
		t.Fatalf("unexpected wind %q", rec.WindSpeed)
	}
	if rec.TemperatureC != "28" || rec.Humidity != "40" {
		t.Fatalf("unexpected pass-through values: %+v", rec)
	}
}

func TestAmapShortCacheSkipsSecondRoundTrip(t *testing.T) {
	var calls int32
	srv := newAmapServer(t, &calls)
	defer srv.Close()

	p := NewAmapProvider(srv.Client(), "test-key", srv.URL, dayClock())
	if _, err := p.Fetch(context.Background(), 39.9042, 116.4074); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := atomic.LoadInt32(&calls)

	// Nearby coordinates within the short-cache radius reuse the record.
	if _, err := p.Fetch(context.Background(), 39.9051, 116.4080); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != first {
		t.Fatalf("expected no extra round trips, got %d -> %d", first, calls)
	}
}

func TestAmapErrorKinds(t *testing.T) {
	p := NewAmapProvider(http.DefaultClient, "", "http://unused.invalid", dayClock())
	_, err := p.Fetch(context.Background(), 39.9, 116.4)
	if weather.ErrorKindOf(err) != weather.KindConfig {
		t.Fatalf("missing key should be a config error, got %v", err)
	}

	p = NewAmapProvider(http.DefaultClient, "key", "http://unused.invalid", dayClock())
	_, err = p.Fetch(context.Background(), 60.0, 10.0)
	if weather.ErrorKindOf(err) != weather.KindCoverage {
		t.Fatalf("out-of-range coordinates should be a coverage error, got %v", err)
	}
}

func TestAmapNightRewrite(t *testing.T) {
	var calls int32
	srv := newAmapServer(t, &calls)
	defer srv.Close()

	clock := nightClock()
	p := NewAmapProvider(srv.Client(), "test-key", srv.URL, clock)
	rec, err := p.Fetch(context.Background(), 39.9042, 116.4074)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Condition != weather.ConditionNight {
		t.Fatalf("expected night condition, got %s", rec.Condition)
	}
	if rec.Icon != clock.MoonIcon() {
		t.Fatalf("clear night should show the moon glyph, got %q", rec.Icon)
	}
	if !strings.HasPrefix(rec.Description, "夜晚 - ") {
		t.Fatalf("expected night prefix, got %q", rec.Description)
	}
}
