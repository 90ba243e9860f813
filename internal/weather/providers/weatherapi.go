package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-history/internal/weather"
)

const weatherAPIHistoryURL = "https://api.weatherapi.com/v1/history.json"

// WeatherAPIProvider implements weather.HistoricalProvider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(cfg HTTPClientConfig, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: weatherAPIHistoryURL,
		httpCfg: cfg,
		circuit: newCircuitBreaker("weatherapi"),
	}
}

// WithBaseURL points the provider at another history endpoint.
func (p *WeatherAPIProvider) WithBaseURL(u string) *WeatherAPIProvider {
	p.baseURL = u
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

// Historical asks history.json for the whole range in one call.
func (p *WeatherAPIProvider) Historical(ctx context.Context, lat, lon float64, start, end weather.Date) ([]weather.Observation, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi: %w", errNoAPIKey)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI accepts "lat,lon" in q.
	values.Set("q", fmt.Sprintf("%f,%f", lat, lon))
	values.Set("dt", start.String())
	values.Set("end_dt", end.String())

	resp, err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL, values)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Forecast struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  struct {
					AvgTempC     float64 `json:"avgtemp_c"`
					MinTempC     float64 `json:"mintemp_c"`
					MaxTempC     float64 `json:"maxtemp_c"`
					TotalPrecipM float64 `json:"totalprecip_mm"`
					Condition    struct {
						Text string `json:"text"`
					} `json:"condition"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}

	days := payload.Forecast.ForecastDay
	series := make([]weather.Observation, 0, len(days))
	for _, fd := range days {
		d, err := weather.ParseDate(fd.Date)
		if err != nil {
			return nil, fmt.Errorf("history day %q: %w", fd.Date, err)
		}
		series = append(series, weather.Observation{
			Date:          d,
			AvgTemp:       fd.Day.AvgTempC,
			MinTemp:       fd.Day.MinTempC,
			MaxTemp:       fd.Day.MaxTempC,
			Condition:     conditionFromText(fd.Day.Condition.Text),
			Precipitation: fd.Day.TotalPrecipM,
		})
	}
	return series, nil
}
