package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-tracker/internal/api/http"
	"github.com/i474232898/weather-tracker/internal/config"
	"github.com/i474232898/weather-tracker/internal/events"
	"github.com/i474232898/weather-tracker/internal/scheduler"
	"github.com/i474232898/weather-tracker/internal/store"
	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/i474232898/weather-tracker/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Local cache: Redis when configured, otherwise memory with an optional file snapshot.
	var cache weather.Cache
	var memStore *store.MemoryStore
	if cfg.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		client, err := store.ConnectRedis(pingCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer client.Close()
		cache = store.NewRedisStore(client, 2*time.Second)
		log.Println("INFO: using redis weather cache")
	} else {
		memStore = store.NewMemoryStore()
		if cfg.CacheFile != "" {
			n, err := memStore.LoadFile(cfg.CacheFile)
			if err != nil {
				log.Printf("ERROR: loading cache snapshot: %v", err)
			} else {
				log.Printf("INFO: loaded %d cached locations from %s", n, cfg.CacheFile)
			}
		}
		cache = memStore
	}

	// Providers with resilience (backoff + circuit breaker), tried in order.
	var geo providers.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geo = providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}
	var sources []weather.Source
	if cfg.OpenWeatherAPIKey != "" {
		sources = append(sources, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.Units))
	}
	if cfg.WeatherAPIKey != "" {
		sources = append(sources, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.Units))
	}
	// Open-Meteo needs no key and geocodes through Open-Meteo unless a Google key is set.
	sources = append(sources, providers.NewOpenMeteoProvider(httpClient, geo, cfg.Units))
	chain := providers.NewChain(sources...)
	log.Printf("INFO: %d weather providers configured", chain.Len())

	// Optional publishing of terminal results.
	var notifier weather.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := pub.Close(); err != nil {
				log.Printf("ERROR: closing kafka publisher: %v", err)
			}
		}()
		notifier = pub
		log.Printf("INFO: publishing results to kafka topic %s", cfg.KafkaTopic)
	}

	// Core orchestrator and the debouncer feeding it.
	service := weather.NewService(cache, chain, weather.NewState(), notifier, cfg.FetchTimeout)
	debouncer := weather.NewDebouncer(ctx, service, cfg.DebounceInterval)
	defer debouncer.Close()

	if cfg.DefaultLocation != "" {
		debouncer.Submit(cfg.DefaultLocation)
	}

	// Scheduler that periodically refreshes the settled location.
	sched := scheduler.New(cfg.RefreshInterval, debouncer)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-tracker",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          40 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-tracker",
		})
	})

	httpapi.RegisterRoutes(app, service, debouncer)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s", cfg.Port)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}

	sched.Stop()
	debouncer.Close()

	if memStore != nil && cfg.CacheFile != "" {
		if err := memStore.SaveFile(cfg.CacheFile); err != nil {
			log.Printf("ERROR: saving cache snapshot: %v", err)
		} else {
			log.Printf("INFO: saved %d cached locations to %s", memStore.Len(), cfg.CacheFile)
		}
	}
}
