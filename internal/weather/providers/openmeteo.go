package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/sony/gobreaker"
)

// OpenMeteoProvider implements weather.Source for Open-Meteo.
// Open-Meteo only accepts coordinates, so the city is geocoded first.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	imperial bool
	geocoder Geocoder
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, geo Geocoder, units string) *OpenMeteoProvider {
	if geo == nil {
		geo = NewOpenMeteoGeocoder(client)
	}
	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  "https://api.open-meteo.com/v1/forecast",
		imperial: units == "imperial",
		geocoder: geo,
		httpCfg:  HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit:  newCircuitBreaker("openmeteo"),
	}
}

// WithBaseURL points the provider at another endpoint.
func (p *OpenMeteoProvider) WithBaseURL(u string) *OpenMeteoProvider {
	p.baseURL = u
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, location string) (weather.Record, error) {
	place, err := p.geocoder.Locate(ctx, location)
	if err != nil {
		return weather.Record{}, err
	}

	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(place.Lat, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(place.Lon, 'f', 4, 64))
	values.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,surface_pressure,wind_speed_10m,wind_direction_10m,weather_code")
	values.Set("daily", "temperature_2m_max,temperature_2m_min")
	values.Set("forecast_days", "1")
	values.Set("wind_speed_unit", "ms")
	if p.imperial {
		values.Set("temperature_unit", "fahrenheit")
		values.Set("wind_speed_unit", "mph")
	}

	var payload struct {
		Current *struct {
			Temperature   float64 `json:"temperature_2m"`
			Humidity      float64 `json:"relative_humidity_2m"`
			Apparent      float64 `json:"apparent_temperature"`
			Pressure      float64 `json:"surface_pressure"`
			WindSpeed     float64 `json:"wind_speed_10m"`
			WindDirection float64 `json:"wind_direction_10m"`
			WeatherCode   int     `json:"weather_code"`
		} `json:"current"`
		Daily struct {
			Max []float64 `json:"temperature_2m_max"`
			Min []float64 `json:"temperature_2m_min"`
		} `json:"daily"`
	}

	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Record{}, err
	}

	if payload.Current == nil {
		return weather.Record{}, fmt.Errorf("%w: openmeteo response for %q has no current conditions", errMalformed, location)
	}

	cur := payload.Current
	kind := weather.ClassifyWMOCode(cur.WeatherCode)
	rec := weather.Record{
		Name: place.Name,
		Main: weather.Main{
			Temp:      cur.Temperature,
			FeelsLike: cur.Apparent,
			TempMin:   cur.Temperature,
			TempMax:   cur.Temperature,
			Pressure:  cur.Pressure,
			Humidity:  cur.Humidity,
		},
		Conditions: []weather.Descriptor{{
			Code:        cur.WeatherCode,
			Label:       string(kind),
			Description: fmt.Sprintf("wmo code %d", cur.WeatherCode),
			Kind:        kind,
		}},
		Wind:  weather.Wind{Speed: cur.WindSpeed, Direction: cur.WindDirection},
		Coord: weather.Coordinates{Lat: place.Lat, Lon: place.Lon, Known: true},
	}
	if len(payload.Daily.Max) > 0 && len(payload.Daily.Min) > 0 {
		rec.Main.TempMax = payload.Daily.Max[0]
		rec.Main.TempMin = payload.Daily.Min[0]
	}
	return rec, nil
}
