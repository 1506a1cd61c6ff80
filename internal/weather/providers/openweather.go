package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/sony/gobreaker"
)

// OpenWeatherProvider implements weather.Source for OpenWeatherMap current weather.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	units   string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey, units string) *OpenWeatherProvider {
	if units == "" {
		units = "metric"
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		units:   units,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newCircuitBreaker("openweather"),
	}
}

// WithBaseURL points the provider at another endpoint.
func (p *OpenWeatherProvider) WithBaseURL(u string) *OpenWeatherProvider {
	p.baseURL = u
	return p
}

// WithBackoff overrides the retry policy.
func (p *OpenWeatherProvider) WithBackoff(b BackoffConfig) *OpenWeatherProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherPayload struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Coord *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, location string) (weather.Record, error) {
	if p.apiKey == "" {
		return weather.Record{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("q", strings.TrimSpace(location))
	values.Set("units", p.units)
	values.Set("appid", p.apiKey)

	var payload openWeatherPayload
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Record{}, err
	}
	if len(payload.Weather) == 0 {
		return weather.Record{}, fmt.Errorf("%w: openweather response for %q has no conditions", errMalformed, location)
	}

	rec := weather.Record{
		ID:   payload.ID,
		Name: payload.Name,
		Main: weather.Main{
			Temp:      payload.Main.Temp,
			FeelsLike: payload.Main.FeelsLike,
			TempMin:   payload.Main.TempMin,
			TempMax:   payload.Main.TempMax,
			Pressure:  payload.Main.Pressure,
			Humidity:  payload.Main.Humidity,
		},
		Wind: weather.Wind{Speed: payload.Wind.Speed, Direction: payload.Wind.Deg},
	}
	if payload.Coord != nil {
		rec.Coord = weather.Coordinates{Lat: payload.Coord.Lat, Lon: payload.Coord.Lon, Known: true}
	}
	for _, w := range payload.Weather {
		rec.Conditions = append(rec.Conditions, weather.Descriptor{
			Code:        w.ID,
			Label:       w.Main,
			Description: w.Description,
			Icon:        w.Icon,
			Kind:        weather.ClassifyOpenWeatherCode(w.ID),
		})
	}
	return rec, nil
}
