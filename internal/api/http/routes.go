package httpapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-tracker/internal/weather"
)

var validate = validator.New()

const (
	// resolveTimeout bounds synchronous resolutions triggered over HTTP.
	resolveTimeout = 30 * time.Second

	// maxWait caps long-poll requests below the server write timeout.
	maxWait = 30 * time.Second
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, debouncer *weather.Debouncer) {
	v1 := app.Group("/api/v1")

	// Upstream location signal. Blank locations are accepted and ignored.
	v1.Post("/location", func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		accepted := debouncer.Submit(req.Location)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"accepted": accepted,
			"location": strings.TrimSpace(req.Location),
		})
	})

	// Current state. With ?wait=<duration> the request long-polls until the
	// state moves past ?since=<version> or the wait runs out.
	v1.Get("/weather", func(c *fiber.Ctx) error {
		q, err := parseWatchQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap := waitForChange(service.State(), q.Since, q.Wait)
		env := weather.NewEnvelope(snap.Location, snap.Result, snap.UpdatedAt)
		env.Version = snap.Version
		return c.JSON(env)
	})

	v1.Get("/weather/resolve", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		result := service.Resolve(ctx, q.City)
		env := weather.NewEnvelope(q.City, result, time.Now())
		if _, failed := result.(weather.Failure); failed {
			return c.Status(fiber.StatusServiceUnavailable).JSON(env)
		}
		return c.JSON(env)
	})

	v1.Get("/weather/cached", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, ok := service.Lookup(q.City)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no cached weather for requested location")
		}
		return c.JSON(rec)
	})
}

// locationRequest is the body of a location change.
type locationRequest struct {
	Location string `json:"location" validate:"max=200"`
}

// cityQuery holds query parameters for identifying a location.
type cityQuery struct {
	City string `validate:"required,max=200"`
}

func parseCityQuery(c *fiber.Ctx) (cityQuery, error) {
	q := cityQuery{City: strings.TrimSpace(c.Query("city"))}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// watchQuery holds the long-poll parameters of GET /weather.
type watchQuery struct {
	Since uint64
	Wait  time.Duration
}

func parseWatchQuery(c *fiber.Ctx) (watchQuery, error) {
	var q watchQuery

	if raw := c.Query("since"); raw != "" {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return q, fmt.Errorf("invalid since: %w", err)
		}
		q.Since = since
	}
	if raw := c.Query("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			return q, fmt.Errorf("invalid wait %q", raw)
		}
		q.Wait = min(wait, maxWait)
	}
	return q, nil
}

// waitForChange returns the first snapshot whose version differs from since,
// or the current one once wait has elapsed.
func waitForChange(state *weather.State, since uint64, wait time.Duration) weather.Snapshot {
	if wait <= 0 {
		return state.Snapshot()
	}

	changed, unsubscribe := state.Subscribe()
	defer unsubscribe()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		snap := state.Snapshot()
		if snap.Version != since {
			return snap
		}
		select {
		case <-changed:
		case <-timer.C:
			return state.Snapshot()
		}
	}
}
