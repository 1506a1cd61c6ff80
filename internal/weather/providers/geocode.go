package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"
)

// Place is a geocoded city.
type Place struct {
	Name string
	Lat  float64
	Lon  float64
}

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Locate(ctx context.Context, city string) (Place, error)
}

// GoogleGeocoder resolves cities through the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey string
}

// geocoder.ApiKey is package state in the upstream library.
var googleMu sync.Mutex

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey}
}

func (g *GoogleGeocoder) Locate(ctx context.Context, city string) (Place, error) {
	if g.apiKey == "" {
		return Place{}, fmt.Errorf("geocoder api key is not configured")
	}
	if err := ctx.Err(); err != nil {
		return Place{}, err
	}

	googleMu.Lock()
	defer googleMu.Unlock()

	geocoder.ApiKey = g.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: strings.TrimSpace(city)})
	if err != nil {
		return Place{}, fmt.Errorf("geocoding %q: %w", city, err)
	}
	return Place{Name: strings.TrimSpace(city), Lat: loc.Latitude, Lon: loc.Longitude}, nil
}

// OpenMeteoGeocoder resolves cities through the keyless Open-Meteo geocoding API.
type OpenMeteoGeocoder struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoGeocoder(client *http.Client) *OpenMeteoGeocoder {
	return &OpenMeteoGeocoder{
		baseURL: "https://geocoding-api.open-meteo.com/v1/search",
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newCircuitBreaker("openmeteo-geocoding"),
	}
}

// WithBaseURL points the geocoder at another endpoint.
func (g *OpenMeteoGeocoder) WithBaseURL(u string) *OpenMeteoGeocoder {
	g.baseURL = u
	return g
}

func (g *OpenMeteoGeocoder) Locate(ctx context.Context, city string) (Place, error) {
	values := url.Values{}
	values.Set("name", strings.TrimSpace(city))
	values.Set("count", "1")
	values.Set("format", "json")

	var payload struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := getJSON(ctx, g.httpCfg, g.circuit, g.baseURL+"?"+values.Encode(), &payload); err != nil {
		return Place{}, err
	}
	if len(payload.Results) == 0 {
		return Place{}, fmt.Errorf("%w: %s", errNotFound, city)
	}

	first := payload.Results[0]
	return Place{Name: first.Name, Lat: first.Latitude, Lon: first.Longitude}, nil
}
