package providers

import "net/url"

const (
	googleMapsEmbedURL  = "https://www.google.com/maps/embed/v1/place"
	googleMapsSearchURL = "https://www.google.com/maps/search/"
)

// GoogleMaps implements weather.MapLinker. It only builds urls; nothing is
// fetched.
type GoogleMaps struct {
	apiKey string
}

func NewGoogleMaps(apiKey string) *GoogleMaps {
	return &GoogleMaps{apiKey: apiKey}
}

// EmbedURL reports false when no api key is configured.
func (m *GoogleMaps) EmbedURL(name string) (string, bool) {
	if m.apiKey == "" {
		return "", false
	}
	values := url.Values{}
	values.Set("key", m.apiKey)
	values.Set("q", name)
	return googleMapsEmbedURL + "?" + values.Encode(), true
}

// SearchURL is a keyless link that opens name in Google Maps.
func (m *GoogleMaps) SearchURL(name string) string {
	return googleMapsSearchURL + url.QueryEscape(name)
}
