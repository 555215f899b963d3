package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/mission-search-api/models"
)

// Storage backends
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Config holds the project config values
type Config struct {
	Url            string
	DatabaseName   string
	BaseUrl        string
	Port           string
	Environment    string
	StorageBackend string

	PostgresUrl      string
	PostgresMaxConns int32
	PostgresMigrate  bool

	RedisUrl           string
	WidgetCacheTTL     time.Duration
	WidgetCacheRefresh string

	ModeratorPublisherID string
	FacetConcurrency     int
	ArrayFacetSampleCap  int
	QueryTimeout         time.Duration
	RequestTimeout       time.Duration
}

// New sets up all config related services
func New() *Config {

	//setup zap logger and replace default logger
	env := os.Getenv("ENVIRONMENT")
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		Url:                  os.Getenv("DB_URI"),
		DatabaseName:         os.Getenv("DB_NAME"),
		BaseUrl:              os.Getenv("BASE_URL"),
		Port:                 getString("PORT", "8080"),
		Environment:          env,
		StorageBackend:       getString("STORAGE_BACKEND", BackendMongo),
		PostgresUrl:          os.Getenv("POSTGRES_URL"),
		PostgresMaxConns:     int32(getInt("POSTGRES_MAX_CONNS", 10)),
		PostgresMigrate:      getBool("POSTGRES_MIGRATE", false),
		RedisUrl:             os.Getenv("REDIS_URL"),
		WidgetCacheTTL:       getDuration("WIDGET_CACHE_TTL", 5*time.Minute),
		WidgetCacheRefresh:   getString("WIDGET_CACHE_REFRESH", "@every 10m"),
		ModeratorPublisherID: getString("MODERATOR_PUBLISHER_ID", "5f5931496c7ea514150a818f"),
		FacetConcurrency:     getInt("FACET_CONCURRENCY", 1),
		ArrayFacetSampleCap:  getInt("ARRAY_FACET_SAMPLE_CAP", 50000),
		QueryTimeout:         getDuration("QUERY_TIMEOUT", 10*time.Second),
		RequestTimeout:       getDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// Validate reports settings the selected backend cannot run without
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case BackendMongo:
		if c.Url == "" {
			errs = append(errs, errors.New("DB_URI is required for the mongo backend"))
		}
		if c.DatabaseName == "" {
			errs = append(errs, errors.New("DB_NAME is required for the mongo backend"))
		}
	case BackendPostgres:
		if c.PostgresUrl == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendMongo, BackendPostgres, c.StorageBackend))
	}
	if c.FacetConcurrency < 1 {
		errs = append(errs, fmt.Errorf("FACET_CONCURRENCY must be at least 1, got %d", c.FacetConcurrency))
	}
	if c.QueryTimeout <= 0 || c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("QUERY_TIMEOUT and REQUEST_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// setLogger picks the zap preset for the running environment
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	}
	return zap.NewExample(), nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "status", httpStatusCode, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	resp := models.ErrorMessageResponse{Response: models.MessageError{Message: message}}
	if err != nil {
		resp.Response.Error = err.Error()
	}
	_ = json.NewEncoder(w).Encode(resp)
}
