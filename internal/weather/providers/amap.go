package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/i474232898/weather-diary-sync/internal/weather"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
)

// AmapProvider is the regional map provider: lowest latency inside its
// coverage box, requires an API key, and resolves weather in two steps
// (reverse geocode to a city code, then weather by city code).
type AmapProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   weather.Clock

	// Same-coordinate short cache and in-progress guard, because the
	// two-step flow doubles the request cost.
	mu         sync.Mutex
	lastAt     time.Time
	lastLat    float64
	lastLon    float64
	lastRec    weather.Record
	inProgress bool
}

const (
	amapTimeout    = 8 * time.Second
	amapShortCache = 10 * time.Minute
)

// NewAmapProvider builds the adapter. baseURL is overridable for tests;
// empty means the public endpoint.
func NewAmapProvider(client *http.Client, apiKey, baseURL string, clock weather.Clock) *AmapProvider {
	if baseURL == "" {
		baseURL = "https://restapi.amap.com/v3"
	}
	return &AmapProvider{
		name:    "amap",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: defaultBackoff()},
		circuit: newBreaker("amap"),
		clock:   clock,
	}
}

func (p *AmapProvider) Name() string { return p.name }

// Covers matches the service region: lat 18..54, lon 73..135.
func (p *AmapProvider) Covers(lat, lon float64) bool {
	return lat >= 18 && lat <= 54 && lon >= 73 && lon <= 135
}

func (p *AmapProvider) Fetch(ctx context.Context, lat, lon float64) (weather.Record, error) {
	if p.apiKey == "" {
		return weather.Record{}, weather.ConfigError(p.name, errors.New("api key not configured"))
	}
	if !p.Covers(lat, lon) {
		return weather.Record{}, weather.CoverageError(p.name,
			fmt.Errorf("coordinates out of service range: lat=%.2f lon=%.2f", lat, lon))
	}

	p.mu.Lock()
	if !p.lastAt.IsZero() && time.Since(p.lastAt) < amapShortCache &&
		math.Abs(p.lastLat-lat) < 0.01 && math.Abs(p.lastLon-lon) < 0.01 {
		rec := p.lastRec
		p.mu.Unlock()
		return rec, nil
	}
	if p.inProgress {
		p.mu.Unlock()
		return weather.Record{}, weather.TransportError(p.name, errors.New("request already in progress"))
	}
	p.inProgress = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inProgress = false
		p.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, amapTimeout)
	defer cancel()

	rec, err := p.fetch(ctx, lat, lon)
	if err != nil {
		return weather.Record{}, err
	}

	p.mu.Lock()
	p.lastAt = time.Now()
	p.lastLat = lat
	p.lastLon = lon
	p.lastRec = rec
	p.mu.Unlock()

	return rec, nil
}

func (p *AmapProvider) fetch(ctx context.Context, lat, lon float64) (weather.Record, error) {
	// Step 1: reverse geocode to city code. The location format is
	// "lon,lat" with 6 decimal places.
	geoValues := url.Values{}
	geoValues.Set("location", fmt.Sprintf("%.6f,%.6f", lon, lat))
	geoValues.Set("key", p.apiKey)
	geoValues.Set("output", "json")
	geoValues.Set("radius", "1000")
	geoValues.Set("extensions", "base")

	geoBody, err := p.getRaw(ctx, fmt.Sprintf("%s/geocode/regeo?%s", p.baseURL, geoValues.Encode()))
	if err != nil {
		return weather.Record{}, weather.TransportError(p.name, err)
	}

	if gjson.GetBytes(geoBody, "status").String() != "1" {
		return weather.Record{}, weather.TransportError(p.name,
			fmt.Errorf("regeo failed: %s", gjson.GetBytes(geoBody, "info").String()))
	}

	addr := gjson.GetBytes(geoBody, "regeocode.addressComponent")
	cityCode := addr.Get("adcode").String()
	if cityCode == "" {
		return weather.Record{}, weather.TransportError(p.name, errors.New("regeo returned no city code"))
	}

	// Municipalities report "city" as an empty array; fall back to district.
	city := addr.Get("city")
	cityName := city.String()
	if city.Type != gjson.String || cityName == "" {
		cityName = addr.Get("district").String()
	}
	locationName := formatParts(cityName, addr.Get("province").String())

	// Step 2: live weather by city code.
	wxValues := url.Values{}
	wxValues.Set("city", cityCode)
	wxValues.Set("key", p.apiKey)
	wxValues.Set("extensions", "base")
	wxValues.Set("output", "json")

	wxBody, err := p.getRaw(ctx, fmt.Sprintf("%s/weather/weatherInfo?%s", p.baseURL, wxValues.Encode()))
	if err != nil {
		return weather.Record{}, weather.TransportError(p.name, err)
	}

	if gjson.GetBytes(wxBody, "status").String() != "1" {
		return weather.Record{}, weather.TransportError(p.name,
			fmt.Errorf("weather lookup failed: %s", gjson.GetBytes(wxBody, "info").String()))
	}
	live := gjson.GetBytes(wxBody, "lives.0")
	if !live.Exists() {
		return weather.Record{}, weather.TransportError(p.name, errors.New("no live weather in payload"))
	}

	return p.parse(live, locationName), nil
}

func (p *AmapProvider) parse(live gjson.Result, locationName string) weather.Record {
	desc := live.Get("weather").String()
	if desc == "" {
		desc = "未知"
	}

	base, ok := amapConditions[desc]
	if !ok {
		base = condIcon{weather.ConditionCloudy, "🌤️"}
	}

	wind := ""
	dir, power := live.Get("winddirection").String(), live.Get("windpower").String()
	if dir != "" && power != "" {
		wind = fmt.Sprintf("%s风%s级", dir, power)
	}

	rec := weather.Record{
		Location:     locationName,
		Description:  desc,
		TemperatureC: orDefault(live.Get("temperature").String(), "0"),
		Condition:    base.cond,
		Icon:         base.icon,
		Humidity:     orDefault(live.Get("humidity").String(), "0"),
		WindSpeed:    wind,
		MoonPhase:    p.clock.MoonPhase(),
	}
	return applyNight(rec, p.clock)
}

func (p *AmapProvider) getRaw(ctx context.Context, u string) ([]byte, error) {
	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// amapConditions maps the provider's Chinese condition text to the shared
// condition enum plus a day icon.
var amapConditions = map[string]condIcon{
	"晴":       {weather.ConditionSunny, "☀️"},
	"平静":      {weather.ConditionSunny, "☀️"},
	"少云":      {weather.ConditionCloudy, "⛅"},
	"晴间多云":    {weather.ConditionCloudy, "⛅"},
	"多云":      {weather.ConditionCloudy, "☁️"},
	"阴":       {weather.ConditionCloudy, "☁️"},
	"有风":      {weather.ConditionCloudy, "🌬️"},
	"微风":      {weather.ConditionCloudy, "🌬️"},
	"和风":      {weather.ConditionCloudy, "🌬️"},
	"清风":      {weather.ConditionCloudy, "🌬️"},
	"强风/劲风":   {weather.ConditionCloudy, "💨"},
	"疾风":      {weather.ConditionCloudy, "💨"},
	"大风":      {weather.ConditionCloudy, "💨"},
	"烈风":      {weather.ConditionCloudy, "💨"},
	"风暴":      {weather.ConditionRainy, "⛈️"},
	"狂爆风":     {weather.ConditionRainy, "⛈️"},
	"飓风":      {weather.ConditionRainy, "🌪️"},
	"热带风暴":    {weather.ConditionRainy, "🌪️"},
	"龙卷风":     {weather.ConditionRainy, "🌪️"},
	"霾":       {weather.ConditionCloudy, "🌫️"},
	"中度霾":     {weather.ConditionCloudy, "🌫️"},
	"重度霾":     {weather.ConditionCloudy, "🌫️"},
	"严重霾":     {weather.ConditionCloudy, "🌫️"},
	"雾":       {weather.ConditionCloudy, "🌫️"},
	"浓雾":      {weather.ConditionCloudy, "🌫️"},
	"强浓雾":     {weather.ConditionCloudy, "🌫️"},
	"轻雾":      {weather.ConditionCloudy, "🌫️"},
	"大雾":      {weather.ConditionCloudy, "🌫️"},
	"特强浓雾":    {weather.ConditionCloudy, "🌫️"},
	"阵雨":      {weather.ConditionRainy, "🌧️"},
	"雷阵雨":     {weather.ConditionRainy, "⛈️"},
	"雷阵雨并伴有冰雹": {weather.ConditionRainy, "⛈️"},
	"小雨":      {weather.ConditionRainy, "🌧️"},
	"中雨":      {weather.ConditionRainy, "🌧️"},
	"大雨":      {weather.ConditionRainy, "🌧️"},
	"暴雨":      {weather.ConditionRainy, "⛈️"},
	"大暴雨":     {weather.ConditionRainy, "⛈️"},
	"特大暴雨":    {weather.ConditionRainy, "⛈️"},
	"强阵雨":     {weather.ConditionRainy, "⛈️"},
	"强雷阵雨":    {weather.ConditionRainy, "⛈️"},
	"极端降雨":    {weather.ConditionRainy, "⛈️"},
	"毛毛雨/细雨":  {weather.ConditionRainy, "🌦️"},
	"雨":       {weather.ConditionRainy, "🌧️"},
	"小雨-中雨":   {weather.ConditionRainy, "🌧️"},
	"中雨-大雨":   {weather.ConditionRainy, "🌧️"},
	"大雨-暴雨":   {weather.ConditionRainy, "⛈️"},
	"暴雨-大暴雨":  {weather.ConditionRainy, "⛈️"},
	"大暴雨-特大暴雨": {weather.ConditionRainy, "⛈️"},
	"冰雹":      {weather.ConditionRainy, "🧊"},
	"雨雪天气":    {weather.ConditionSnowy, "🌨️"},
	"雨夹雪":     {weather.ConditionSnowy, "🌨️"},
	"阵雨夹雪":    {weather.ConditionSnowy, "🌨️"},
	"冻雨":      {weather.ConditionSnowy, "🧊"},
	"雪":       {weather.ConditionSnowy, "❄️"},
	"阵雪":      {weather.ConditionSnowy, "🌨️"},
	"小雪":      {weather.ConditionSnowy, "🌨️"},
	"中雪":      {weather.ConditionSnowy, "❄️"},
	"大雪":      {weather.ConditionSnowy, "❄️"},
	"暴雪":      {weather.ConditionSnowy, "❄️"},
	"小雪-中雪":   {weather.ConditionSnowy, "🌨️"},
	"中雪-大雪":   {weather.ConditionSnowy, "❄️"},
	"大雪-暴雪":   {weather.ConditionSnowy, "❄️"},
	"浮尘":      {weather.ConditionCloudy, "🌫️"},
	"扬沙":      {weather.ConditionCloudy, "🌫️"},
	"沙尘暴":     {weather.ConditionCloudy, "🌪️"},
	"强沙尘暴":    {weather.ConditionCloudy, "🌪️"},
	"热":       {weather.ConditionSunny, "🔥"},
	"冷":       {weather.ConditionCloudy, "🥶"},
	"未知":      {weather.ConditionCloudy, "❓"},
}
