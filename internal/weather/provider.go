package weather

import (
	"context"
)

// Source abstracts a remote weather lookup (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
// Any returned error is treated as a network failure by the Service.
type Source interface {
	Name() string
	Fetch(ctx context.Context, location string) (Record, error)
}

// Cache is the contract the local cache (memory, file snapshot or Redis) must satisfy.
// Keys are normalized by the implementation. Lookup reports absence, never an error.
type Cache interface {
	Upsert(key string, record Record)
	Lookup(key string) (Record, bool)
}

// Notifier receives every result accepted by the State, in acceptance order.
// Notify is called with the State locked and must not block.
type Notifier interface {
	Notify(key string, result Result)
}
