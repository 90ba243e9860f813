package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-history/internal/weather"
)

const openMeteoArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

const openMeteoDaily = "temperature_2m_mean,temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code"

// OpenMeteoProvider implements weather.HistoricalProvider using the
// Open-Meteo archive. It needs no api key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(cfg HTTPClientConfig) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: openMeteoArchiveURL,
		httpCfg: cfg,
		circuit: newCircuitBreaker("openmeteo"),
	}
}

// WithBaseURL points the provider at another archive endpoint.
func (p *OpenMeteoProvider) WithBaseURL(u string) *OpenMeteoProvider {
	p.baseURL = u
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Historical returns one observation per day in [start, end]. Days the
// archive has no temperature for are skipped.
func (p *OpenMeteoProvider) Historical(ctx context.Context, lat, lon float64, start, end weather.Date) ([]weather.Observation, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("start_date", start.String())
	values.Set("end_date", end.String())
	values.Set("daily", openMeteoDaily)
	values.Set("timezone", "UTC")

	resp, err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL, values)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time          []string   `json:"time"`
			TempMean      []*float64 `json:"temperature_2m_mean"`
			TempMax       []*float64 `json:"temperature_2m_max"`
			TempMin       []*float64 `json:"temperature_2m_min"`
			Precipitation []*float64 `json:"precipitation_sum"`
			WeatherCode   []*int     `json:"weather_code"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode archive response: %w", err)
	}

	daily := payload.Daily
	series := make([]weather.Observation, 0, len(daily.Time))
	for i, day := range daily.Time {
		d, err := weather.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("archive day %q: %w", day, err)
		}
		minT, maxT := at(daily.TempMin, i), at(daily.TempMax, i)
		if minT == nil || maxT == nil {
			continue
		}
		avg := at(daily.TempMean, i)
		obs := weather.Observation{
			Date:      d,
			MinTemp:   *minT,
			MaxTemp:   *maxT,
			AvgTemp:   (*minT + *maxT) / 2,
			Condition: weather.ConditionUnknown,
		}
		if avg != nil {
			obs.AvgTemp = *avg
		}
		if pr := at(daily.Precipitation, i); pr != nil {
			obs.Precipitation = *pr
		}
		if code := at(daily.WeatherCode, i); code != nil {
			obs.Condition = mapOpenMeteoCondition(*code)
		}
		series = append(series, obs)
	}
	return series, nil
}

func at[T any](xs []*T, i int) *T {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// WMO weather interpretation codes.
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
