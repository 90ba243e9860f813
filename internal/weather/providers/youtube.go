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

const (
	youTubeSearchURL = "https://www.googleapis.com/youtube/v3/search"
	youTubeWatchURL  = "https://www.youtube.com/watch?v="
)

// YouTubeProvider implements weather.VideoProvider with the YouTube Data API.
type YouTubeProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewYouTubeProvider(cfg HTTPClientConfig, apiKey string) *YouTubeProvider {
	return &YouTubeProvider{
		name:    "youtube",
		apiKey:  apiKey,
		baseURL: youTubeSearchURL,
		httpCfg: cfg,
		circuit: newCircuitBreaker("youtube"),
	}
}

// WithBaseURL points the provider at another search endpoint.
func (p *YouTubeProvider) WithBaseURL(u string) *YouTubeProvider {
	p.baseURL = u
	return p
}

func (p *YouTubeProvider) Name() string {
	return p.name
}

// Search returns travel videos about query. Without an api key the feature
// is reported as unavailable and no request is made.
func (p *YouTubeProvider) Search(ctx context.Context, query string, limit int) ([]weather.Video, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("youtube: %w", weather.ErrFeatureUnavailable)
	}
	if limit <= 0 {
		limit = weather.DefaultVideoLimit
	}

	values := url.Values{}
	values.Set("part", "snippet")
	values.Set("type", "video")
	values.Set("q", query+" travel")
	values.Set("maxResults", strconv.Itoa(limit))
	values.Set("key", p.apiKey)

	resp, err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL, values)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	videos := make([]weather.Video, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, weather.Video{
			ID:      item.ID.VideoID,
			Title:   item.Snippet.Title,
			Channel: item.Snippet.ChannelTitle,
			URL:     youTubeWatchURL + item.ID.VideoID,
		})
	}
	return videos, nil
}
