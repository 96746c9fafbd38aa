package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/i474232898/weather-diary-sync/internal/common"
	"github.com/i474232898/weather-diary-sync/internal/translate"
	"github.com/i474232898/weather-diary-sync/internal/weather"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
)

// WttrProvider is the keyless worldwide fallback. It is slower than the
// keyed providers and reports in English, so results go through the
// translation layer before they reach the caller.
type WttrProvider struct {
	name       string
	baseURL    string
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
	clock      weather.Clock
	translator *translate.Translator
}

const wttrTimeout = 15 * time.Second

// NewWttrProvider builds the adapter. baseURL is overridable for tests;
// empty means the public endpoint.
func NewWttrProvider(client *http.Client, baseURL string, clock weather.Clock, translator *translate.Translator) *WttrProvider {
	if baseURL == "" {
		baseURL = "https://wttr.in"
	}
	return &WttrProvider{
		name:       "wttr",
		baseURL:    baseURL,
		httpCfg:    HTTPClientConfig{Client: client, Backoff: defaultBackoff()},
		circuit:    newBreaker("wttr"),
		clock:      clock,
		translator: translator,
	}
}

func (p *WttrProvider) Name() string { return p.name }

// Covers is worldwide; this provider is the end of every fallback chain.
func (p *WttrProvider) Covers(lat, lon float64) bool { return true }

func (p *WttrProvider) Fetch(ctx context.Context, lat, lon float64) (weather.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, wttrTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/%.4f,%.4f?format=j1", p.baseURL, lat, lon)
	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return weather.Record{}, weather.TransportError(p.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return weather.Record{}, weather.TransportError(p.name, err)
	}

	current := gjson.GetBytes(body, "current_condition.0")
	if !current.Exists() {
		return weather.Record{}, weather.TransportError(p.name, errors.New("no current condition in payload"))
	}

	desc := current.Get("weatherDesc.0.value").String()
	area := gjson.GetBytes(body, "nearest_area.0.areaName.0.value").String()
	country := gjson.GetBytes(body, "nearest_area.0.country.0.value").String()

	base := wttrCondition(desc)

	// Everything user-visible gets translated; failures fall back to the
	// original English inside the translator.
	descZh := p.translator.Translate(ctx, desc, translate.DomainWeather)
	areaZh := p.translator.Translate(ctx, area, translate.DomainLocation)
	countryZh := p.translator.Translate(ctx, country, translate.DomainLocation)

	rec := weather.Record{
		Location:     translate.FormatLocation(areaZh, countryZh),
		Description:  orDefault(descZh, "未知"),
		TemperatureC: orDefault(current.Get("temp_C").String(), "0"),
		Condition:    base.cond,
		Icon:         base.icon,
		Humidity:     orDefault(current.Get("humidity").String(), "0"),
		WindSpeed:    current.Get("windspeedKmph").String(),
		MoonPhase:    p.clock.MoonPhase(),
	}
	return applyNight(rec, p.clock), nil
}

// wttrCondition classifies the English condition text. Order matters:
// more specific phrases first, "clear" already means a night sky to this
// service so it keeps a moon icon even before the night rewrite.
func wttrCondition(desc string) condIcon {
	switch {
	case common.HasAny(desc, "thunder"):
		return condIcon{weather.ConditionRainy, "⛈️"}
	case common.HasAny(desc, "sleet", "snow", "blizzard", "ice"):
		return condIcon{weather.ConditionSnowy, "❄️"}
	case common.HasAny(desc, "drizzle", "rain", "shower"):
		return condIcon{weather.ConditionRainy, "🌧️"}
	case common.HasAny(desc, "fog", "mist", "haze"):
		return condIcon{weather.ConditionCloudy, "🌫️"}
	case common.HasAny(desc, "overcast"):
		return condIcon{weather.ConditionCloudy, "☁️"}
	case common.HasAny(desc, "partly cloudy"):
		return condIcon{weather.ConditionCloudy, "⛅"}
	case common.HasAny(desc, "cloudy", "cloud"):
		return condIcon{weather.ConditionCloudy, "☁️"}
	case common.HasAny(desc, "sunny"):
		return condIcon{weather.ConditionSunny, "☀️"}
	case common.HasAny(desc, "clear"):
		return condIcon{weather.ConditionClear, "🌙"}
	default:
		return condIcon{weather.ConditionCloudy, "🌤️"}
	}
}
