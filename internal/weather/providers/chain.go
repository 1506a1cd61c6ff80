package providers

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/i474232898/weather-tracker/internal/weather"
)

var errNoProviders = errors.New("no weather providers configured")

// Chain tries each source in order and returns the first record.
type Chain struct {
	sources []weather.Source
}

func NewChain(sources ...weather.Source) *Chain {
	var nonNil []weather.Source
	for _, s := range sources {
		if s != nil {
			nonNil = append(nonNil, s)
		}
	}
	return &Chain{sources: nonNil}
}

func (c *Chain) Name() string {
	return "chain"
}

// Len returns the number of configured sources.
func (c *Chain) Len() int {
	return len(c.sources)
}

// Fetch fails only when every source failed; the error joins each failure.
func (c *Chain) Fetch(ctx context.Context, location string) (weather.Record, error) {
	if len(c.sources) == 0 {
		return weather.Record{}, errNoProviders
	}

	var errs []error
	for _, s := range c.sources {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		rec, err := s.Fetch(ctx, location)
		if err == nil {
			return rec, nil
		}
		log.Printf("provider %s fetch failed for %q: %v", s.Name(), location, err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return weather.Record{}, errors.Join(errs...)
}
