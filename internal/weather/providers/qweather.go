package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weather-diary-sync/internal/weather"
	"github.com/sony/gobreaker"
)

// QWeatherProvider is the national weather provider: wider coverage than
// the regional map service, numeric icon codes and a separate city-lookup
// endpoint for the location label.
type QWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	geoURL  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   weather.Clock
}

const qweatherTimeout = 8 * time.Second

// NewQWeatherProvider builds the adapter. Base URLs are overridable for
// tests; empty means the public endpoints.
func NewQWeatherProvider(client *http.Client, apiKey, baseURL, geoURL string, clock weather.Clock) *QWeatherProvider {
	if baseURL == "" {
		baseURL = "https://devapi.qweather.com/v7"
	}
	if geoURL == "" {
		geoURL = "https://geoapi.qweather.com/v2"
	}
	return &QWeatherProvider{
		name:    "qweather",
		apiKey:  apiKey,
		baseURL: baseURL,
		geoURL:  geoURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: defaultBackoff()},
		circuit: newBreaker("qweather"),
		clock:   clock,
	}
}

func (p *QWeatherProvider) Name() string { return p.name }

// Covers matches the service region: lat 10..60, lon 70..140.
func (p *QWeatherProvider) Covers(lat, lon float64) bool {
	return lat >= 10 && lat <= 60 && lon >= 70 && lon <= 140
}

type qweatherNowResponse struct {
	Code string `json:"code"`
	Now  struct {
		Temp      string `json:"temp"`
		Text      string `json:"text"`
		Icon      string `json:"icon"`
		Humidity  string `json:"humidity"`
		WindSpeed string `json:"windSpeed"`
	} `json:"now"`
}

type qweatherCityResponse struct {
	Code     string `json:"code"`
	Location []struct {
		Name string `json:"name"`
		Adm2 string `json:"adm2"`
		Adm1 string `json:"adm1"`
	} `json:"location"`
}

func (p *QWeatherProvider) Fetch(ctx context.Context, lat, lon float64) (weather.Record, error) {
	if p.apiKey == "" {
		return weather.Record{}, weather.ConfigError(p.name, errors.New("api key not configured"))
	}
	if !p.Covers(lat, lon) {
		return weather.Record{}, weather.CoverageError(p.name,
			fmt.Errorf("coordinates out of service range: lat=%.2f lon=%.2f", lat, lon))
	}

	ctx, cancel := context.WithTimeout(ctx, qweatherTimeout)
	defer cancel()

	location := fmt.Sprintf("%.2f,%.2f", lon, lat)

	var now qweatherNowResponse
	nowURL := fmt.Sprintf("%s/weather/now?location=%s&key=%s", p.baseURL, url.QueryEscape(location), p.apiKey)
	if err := getJSON(ctx, p.httpCfg, p.circuit, nowURL, &now); err != nil {
		return weather.Record{}, weather.TransportError(p.name, err)
	}
	if now.Code != "200" {
		return weather.Record{}, weather.TransportError(p.name,
			fmt.Errorf("weather lookup returned code %s", now.Code))
	}

	// Location label is best effort; a failed lookup keeps the weather.
	locationName := p.lookupCity(ctx, location)

	code, _ := strconv.Atoi(now.Now.Icon)
	base := qweatherCondition(code)

	desc := now.Now.Text
	if desc == "" {
		desc = "未知"
	}

	rec := weather.Record{
		Location:     locationName,
		Description:  desc,
		TemperatureC: orDefault(now.Now.Temp, "0"),
		Condition:    base.cond,
		Icon:         base.icon,
		Humidity:     orDefault(now.Now.Humidity, "0"),
		WindSpeed:    now.Now.WindSpeed,
		MoonPhase:    p.clock.MoonPhase(),
	}
	return applyNight(rec, p.clock), nil
}

func (p *QWeatherProvider) lookupCity(ctx context.Context, location string) string {
	var city qweatherCityResponse
	cityURL := fmt.Sprintf("%s/city/lookup?location=%s&key=%s", p.geoURL, url.QueryEscape(location), p.apiKey)
	if err := getJSON(ctx, p.httpCfg, p.circuit, cityURL, &city); err != nil {
		return "未知位置"
	}
	if city.Code != "200" || len(city.Location) == 0 {
		return "未知位置"
	}
	loc := city.Location[0]
	return formatParts(loc.Name, loc.Adm2, loc.Adm1)
}

// qweatherCondition maps the numeric icon codes (100..508) onto the shared
// condition enum. Codes cluster by hundreds: 1xx sky, 3xx rain, 4xx snow,
// 5xx fog and haze.
func qweatherCondition(code int) condIcon {
	switch {
	case code == 100 || code == 150:
		return condIcon{weather.ConditionSunny, "☀️"}
	case code >= 101 && code <= 103, code >= 151 && code <= 153:
		return condIcon{weather.ConditionCloudy, "⛅"}
	case code == 104:
		return condIcon{weather.ConditionCloudy, "☁️"}
	case code >= 302 && code <= 304:
		return condIcon{weather.ConditionRainy, "⛈️"}
	case code >= 300 && code <= 399:
		return condIcon{weather.ConditionRainy, "🌧️"}
	case code == 404 || code == 405 || code == 406:
		return condIcon{weather.ConditionSnowy, "🌨️"}
	case code >= 400 && code <= 499:
		return condIcon{weather.ConditionSnowy, "❄️"}
	case code >= 500 && code <= 508:
		return condIcon{weather.ConditionCloudy, "🌫️"}
	default:
		return condIcon{weather.ConditionCloudy, "🌤️"}
	}
}
