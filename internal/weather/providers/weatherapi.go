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

// WeatherAPIProvider implements weather.Source for WeatherAPI.com.
type WeatherAPIProvider struct {
	name     string
	apiKey   string
	imperial bool
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey, units string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:     "weatherapi",
		apiKey:   apiKey,
		imperial: units == "imperial",
		baseURL:  "https://api.weatherapi.com/v1/current.json",
		httpCfg:  HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit:  newCircuitBreaker("weatherapi"),
	}
}

// WithBaseURL points the provider at another endpoint.
func (p *WeatherAPIProvider) WithBaseURL(u string) *WeatherAPIProvider {
	p.baseURL = u
	return p
}

// WithBackoff overrides the retry policy.
func (p *WeatherAPIProvider) WithBackoff(b BackoffConfig) *WeatherAPIProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, location string) (weather.Record, error) {
	if p.apiKey == "" {
		return weather.Record{}, fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", strings.TrimSpace(location))

	var payload struct {
		Location *struct {
			Name string   `json:"name"`
			Lat  *float64 `json:"lat"`
			Lon  *float64 `json:"lon"`
		} `json:"location"`
		Current *struct {
			TempC      float64 `json:"temp_c"`
			TempF      float64 `json:"temp_f"`
			FeelsLikeC float64 `json:"feelslike_c"`
			FeelsLikeF float64 `json:"feelslike_f"`
			Humidity   float64 `json:"humidity"`
			PressureMb float64 `json:"pressure_mb"`
			WindKph    float64 `json:"wind_kph"`
			WindMph    float64 `json:"wind_mph"`
			WindDegree float64 `json:"wind_degree"`
			Condition  struct {
				Text string `json:"text"`
				Icon string `json:"icon"`
				Code int    `json:"code"`
			} `json:"condition"`
		} `json:"current"`
	}

	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Record{}, err
	}

	if payload.Current == nil || payload.Location == nil {
		return weather.Record{}, fmt.Errorf("%w: weatherapi response for %q has no current conditions", errMalformed, location)
	}

	cur := payload.Current
	temp, feels := cur.TempC, cur.FeelsLikeC
	// Convert wind from kph to m/s (approx).
	wind := cur.WindKph / 3.6
	if p.imperial {
		temp, feels, wind = cur.TempF, cur.FeelsLikeF, cur.WindMph
	}

	// WeatherAPI has no numeric city id; ID stays zero.
	rec := weather.Record{
		Name: payload.Location.Name,
		Main: weather.Main{
			Temp:      temp,
			FeelsLike: feels,
			TempMin:   temp,
			TempMax:   temp,
			Pressure:  cur.PressureMb,
			Humidity:  cur.Humidity,
		},
		Conditions: []weather.Descriptor{{
			Code:        cur.Condition.Code,
			Label:       cur.Condition.Text,
			Description: strings.ToLower(cur.Condition.Text),
			Icon:        cur.Condition.Icon,
			Kind:        weather.ClassifyText(cur.Condition.Text),
		}},
		Wind: weather.Wind{Speed: wind, Direction: cur.WindDegree},
	}
	if payload.Location.Lat != nil && payload.Location.Lon != nil {
		rec.Coord = weather.Coordinates{Lat: *payload.Location.Lat, Lon: *payload.Location.Lon, Known: true}
	}
	if rec.Name == "" {
		rec.Name = strings.TrimSpace(location)
	}
	return rec, nil
}
