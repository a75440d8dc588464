package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ProjectID   string `validate:"required"`
	SerpAPIKey  string
	ImageBucket string
	Port        string `validate:"required"`

	// Search parameters for the event source.
	SearchQuery    string `validate:"required"`
	LocaleLanguage string
	LocaleCountry  string

	// Pipeline bounds.
	FetchCap          int           `validate:"gte=1"`
	EnrichConcurrency int           `validate:"gte=1"`
	ScrapeTimeout     time.Duration `validate:"gt=0"`

	// Tags attached to every synced event.
	DefaultTags []string

	// Bearer secret for the scheduled trigger endpoint.
	SyncCronSecret string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required but not set")
	}

	serpAPIKey := os.Getenv("SERPAPI_KEY")
	if serpAPIKey == "" {
		slog.Warn("SERPAPI_KEY not set, sync runs will fail at fetch time")
	}

	imageBucket := os.Getenv("IMAGE_BUCKET")
	if imageBucket == "" {
		slog.Warn("IMAGE_BUCKET not set, images will not be persisted")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	searchQuery := os.Getenv("EVENT_SEARCH_QUERY")
	if searchQuery == "" {
		searchQuery = "Events in Pune"
	}

	localeLanguage := os.Getenv("EVENT_SEARCH_HL")
	if localeLanguage == "" {
		localeLanguage = "en"
	}

	localeCountry := os.Getenv("EVENT_SEARCH_GL")
	if localeCountry == "" {
		localeCountry = "in"
	}

	fetchCap := 100
	if v := os.Getenv("EVENT_FETCH_CAP"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EVENT_FETCH_CAP %q: %w", v, err)
		}
		fetchCap = parsed
	}

	enrichConcurrency := 5
	if v := os.Getenv("ENRICH_CONCURRENCY"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ENRICH_CONCURRENCY %q: %w", v, err)
		}
		enrichConcurrency = parsed
	}

	scrapeTimeoutStr := os.Getenv("SCRAPE_TIMEOUT")
	if scrapeTimeoutStr == "" {
		scrapeTimeoutStr = "3s"
	}
	scrapeTimeout, err := time.ParseDuration(scrapeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_TIMEOUT %q: %w", scrapeTimeoutStr, err)
	}

	syncCronSecret := os.Getenv("SYNC_CRON_SECRET")
	if syncCronSecret == "" {
		slog.Warn("SYNC_CRON_SECRET not set, the cron trigger endpoint will reject all requests")
	}

	cfg := &Config{
		ProjectID:         projectID,
		SerpAPIKey:        serpAPIKey,
		ImageBucket:       imageBucket,
		Port:              port,
		SearchQuery:       searchQuery,
		LocaleLanguage:    localeLanguage,
		LocaleCountry:     localeCountry,
		FetchCap:          fetchCap,
		EnrichConcurrency: enrichConcurrency,
		ScrapeTimeout:     scrapeTimeout,
		DefaultTags:       []string{"Pune"},
		SyncCronSecret:    syncCronSecret,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
