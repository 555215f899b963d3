package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/mission-search-api/api"
	"github.com/linesmerrill/mission-search-api/api/scheduler"
	"github.com/linesmerrill/mission-search-api/cache"
	"github.com/linesmerrill/mission-search-api/config"
	"github.com/linesmerrill/mission-search-api/databases"
	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/postgres"
	"github.com/linesmerrill/mission-search-api/search"
)

const (
	connectTimeout        = 30 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// App stores the router and the search engine behind it
type App struct {
	Router  *mux.Router
	Config  config.Config
	Engine  SearchEngine
	Metrics *api.MetricsCollector

	scheduler *scheduler.Scheduler
	closers   []func()
}

// widgetStore is what each backend offers for widgets: lookups for the
// engine and the active list for the cache warm-up
type widgetStore interface {
	search.WidgetLookup
	scheduler.WidgetSource
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.Metrics == nil {
		a.Metrics = api.NewMetricsCollector()
	}
	requestTimeout := a.Config.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	timeout := api.TimeoutMiddleware(requestTimeout)

	r := mux.NewRouter()
	r.Use(api.RequestIDMiddleware, api.MetricsMiddleware(a.Metrics))
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	s := Search{Engine: a.Engine, QueryTimeout: a.Config.QueryTimeout}
	m := Metrics{Collector: a.Metrics}

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Handle("/widget/{widget_id}/search", timeout(api.Middleware(http.HandlerFunc(s.SearchHandler)))).Methods("GET")
	apiV1.Handle("/widget/{widget_id}/aggs", timeout(api.Middleware(http.HandlerFunc(s.AggsHandler)))).Methods("GET")
	apiV1.Handle("/metrics", api.Middleware(http.HandlerFunc(m.MetricsHandler))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect the storage backend, build the
// search engine and create a router
func (a *App) Initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	var (
		missions search.Repository
		widgets  widgetStore
		orgs     search.OrganizationLookup
		err      error
	)
	switch a.Config.StorageBackend {
	case config.BackendPostgres:
		missions, widgets, orgs, err = a.connectPostgres(ctx)
	default:
		missions, widgets, orgs, err = a.connectMongo(ctx)
	}
	if err != nil {
		return err
	}

	var lookup search.WidgetLookup = widgets
	if a.Config.RedisUrl != "" {
		rdb, err := cache.NewRedisClient(ctx, a.Config.RedisUrl)
		if err != nil {
			zap.S().With(err).Error("failed to connect to redis")
			return err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		wc := cache.NewWidgetCache(widgets, rdb, a.Config.WidgetCacheTTL)
		lookup = wc
		a.scheduler = scheduler.NewScheduler(a.Config.WidgetCacheRefresh, widgets, wc)
		if err := a.scheduler.Start(); err != nil {
			zap.S().With(err).Error("failed to start widget cache scheduler")
			return err
		}
		zap.S().Infow("widget cache enabled", "ttl", a.Config.WidgetCacheTTL, "refresh", a.Config.WidgetCacheRefresh)
	}

	engine, err := search.NewEngine(missions, lookup, orgs, search.Options{
		ModeratorPublisherID: a.Config.ModeratorPublisherID,
		FacetConcurrency:     a.Config.FacetConcurrency,
		ArrayFacetSampleCap:  a.Config.ArrayFacetSampleCap,
	})
	if err != nil {
		zap.S().With(err).Error("failed to build search engine")
		return err
	}
	a.Engine = engine

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) connectMongo(ctx context.Context) (search.Repository, widgetStore, search.OrganizationLookup, error) {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return nil, nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return nil, nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		zap.S().With(err).Error("failed to ping database")
		return nil, nil, nil, err
	}
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	})
	zap.S().Infow("mission-search-api has connected to the database", "backend", config.BackendMongo)

	db := databases.NewDatabase(&a.Config, client)
	return databases.NewMissionDatabase(db), databases.NewWidgetDatabase(db), databases.NewOrganizationDatabase(db), nil
}

func (a *App) connectPostgres(ctx context.Context) (search.Repository, widgetStore, search.OrganizationLookup, error) {
	db, err := postgres.NewDatabase(ctx, &postgres.DatabaseConfig{
		ConnectionString: a.Config.PostgresUrl,
		MaxConnections:   a.Config.PostgresMaxConns,
		ConnectTimeout:   connectTimeout,
	})
	if err != nil {
		zap.S().With(err).Error("failed to connect to database")
		return nil, nil, nil, err
	}
	a.closers = append(a.closers, db.Close)

	if a.Config.PostgresMigrate {
		if err := db.MigrateToLatest(); err != nil {
			zap.S().With(err).Error("failed to migrate database")
			return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	zap.S().Infow("mission-search-api has connected to the database", "backend", config.BackendPostgres)

	widgets := postgres.NewWidgetRepository(db.Pool())
	return postgres.NewMissionRepository(db.Pool()), widgets, widgets, nil
}

// Close stops the background jobs and releases the storage connections
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
