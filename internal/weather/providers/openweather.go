package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-history/internal/common"
	"github.com/i474232898/weather-history/internal/weather"
)

const (
	openWeatherCurrentURL = "https://api.openweathermap.org/data/2.5/weather"
	openWeatherGeocodeURL = "https://api.openweathermap.org/geo/1.0/direct"
)

// OpenWeatherProvider implements weather.GeocodeProvider and
// weather.CurrentProvider for OpenWeatherMap.
type OpenWeatherProvider struct {
	name       string
	apiKey     string
	baseURL    string
	geocodeURL string
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(cfg HTTPClientConfig, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:       "openweathermap",
		apiKey:     apiKey,
		baseURL:    openWeatherCurrentURL,
		geocodeURL: openWeatherGeocodeURL,
		httpCfg:    cfg,
		circuit:    newCircuitBreaker("openweathermap"),
	}
}

// WithBaseURLs points the provider at other endpoints, e.g. a test server.
func (p *OpenWeatherProvider) WithBaseURLs(current, geocode string) *OpenWeatherProvider {
	p.baseURL = current
	p.geocodeURL = geocode
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// Geocode asks the direct geocoding endpoint for the single best match.
func (p *OpenWeatherProvider) Geocode(ctx context.Context, query string) ([]weather.Location, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errNoAPIKey)
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("limit", "1")
	values.Set("appid", p.apiKey)

	resp, err := getJSON(ctx, p.httpCfg, p.circuit, p.geocodeURL, values)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload []struct {
		Name    string   `json:"name"`
		Lat     *float64 `json:"lat"`
		Lon     *float64 `json:"lon"`
		Country string   `json:"country"`
		State   string   `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}

	locs := make([]weather.Location, 0, len(payload))
	for _, item := range payload {
		if item.Lat == nil || item.Lon == nil {
			return nil, fmt.Errorf("geocoding match %q has no coordinates", item.Name)
		}
		locs = append(locs, weather.Location{
			Name:    item.Name,
			Lat:     *item.Lat,
			Lon:     *item.Lon,
			Country: item.Country,
			State:   item.State,
		})
	}
	return locs, nil
}

// Current fetches current conditions in metric units.
func (p *OpenWeatherProvider) Current(ctx context.Context, lat, lon float64) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("openweather: %w", errNoAPIKey)
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	resp, err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL, values)
	if err != nil {
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Dt   int64 `json:"dt"`
		Main *struct {
			Temp    float64 `json:"temp"`
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Rain struct {
			OneH   float64 `json:"1h"`
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
		Snow struct {
			OneH float64 `json:"1h"`
		} `json:"snow"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, fmt.Errorf("decode current weather response: %w", err)
	}
	if payload.Main == nil {
		return weather.Observation{}, fmt.Errorf("current weather response has no main block")
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	precip := payload.Rain.OneH
	if precip == 0 {
		precip = payload.Rain.ThreeH
	}
	if precip == 0 {
		precip = payload.Snow.OneH
	}

	var main, desc string
	if len(payload.Weather) > 0 {
		main, desc = payload.Weather[0].Main, payload.Weather[0].Description
	}

	return weather.Observation{
		Date:          weather.DateOf(ts),
		AvgTemp:       payload.Main.Temp,
		MinTemp:       payload.Main.TempMin,
		MaxTemp:       payload.Main.TempMax,
		Condition:     mapOpenWeatherCondition(main, desc),
		Precipitation: precip,
	}, nil
}

func mapOpenWeatherCondition(main, description string) weather.Condition {
	switch main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke":
		return weather.ConditionMist
	}
	return conditionFromText(description)
}

// conditionFromText maps free-text descriptions used by several providers.
func conditionFromText(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case common.HasAnyFold(text, "thunder", "storm"):
		return weather.ConditionStorm
	case common.HasAnyFold(text, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case common.HasAnyFold(text, "snow", "sleet", "blizzard", "ice pellets"):
		return weather.ConditionSnow
	case common.HasAnyFold(text, "mist", "fog", "haze"):
		return weather.ConditionMist
	case common.HasAnyFold(text, "cloud", "overcast"):
		return weather.ConditionCloudy
	case common.HasAnyFold(text, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
