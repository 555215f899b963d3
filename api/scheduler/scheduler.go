package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/mission-search-api/models"
)

// WidgetSource lists the widgets worth keeping warm
type WidgetSource interface {
	ActiveWidgets(ctx context.Context) ([]models.Widget, error)
}

// Warmer loads widgets into a cache and drops the ones no longer served
type Warmer interface {
	Warm(ctx context.Context, widgets []models.Widget) error
	Invalidate(ctx context.Context, id string) error
}

// Scheduler handles periodic background jobs for the widget cache
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	source  WidgetSource
	warmer  Warmer
	timeout time.Duration

	// mu serializes refreshes; warmed holds the ids stored by the last one
	mu     sync.Mutex
	warmed map[string]bool
	// startup tracks the refresh launched by Start
	startup sync.WaitGroup
}

// NewScheduler creates a scheduler refreshing the widget cache on spec, a
// cron expression such as "@every 10m"
func NewScheduler(spec string, source WidgetSource, warmer Warmer) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		spec:    spec,
		source:  source,
		warmer:  warmer,
		timeout: 5 * time.Minute,
	}
}

// Start registers the refresh job, starts the scheduler and runs one refresh
// right away without blocking
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RefreshWidgets); err != nil {
		return fmt.Errorf("failed to register widget cache job %q: %w", s.spec, err)
	}

	s.cron.Start()
	zap.S().Infow("widget cache scheduler started", "spec", s.spec)

	s.startup.Add(1)
	go func() {
		defer s.startup.Done()
		s.RefreshWidgets()
	}()
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.startup.Wait()
	zap.S().Info("widget cache scheduler stopped")
}

// RefreshWidgets loads every active widget into the cache and invalidates
// the widgets stored by the previous refresh that are no longer active
func (s *Scheduler) RefreshWidgets() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	widgets, err := s.source.ActiveWidgets(ctx)
	if err != nil {
		zap.S().Errorw("failed to list active widgets", "error", err)
		return
	}
	if err := s.warmer.Warm(ctx, widgets); err != nil {
		zap.S().Errorw("failed to warm widget cache", "error", err, "widgets", len(widgets))
		return
	}

	active := make(map[string]bool, len(widgets))
	for _, w := range widgets {
		active[w.ID] = true
	}
	for id := range s.warmed {
		if active[id] {
			continue
		}
		if err := s.warmer.Invalidate(ctx, id); err != nil {
			zap.S().Warnw("failed to invalidate widget", "widgetId", id, "error", err)
			// retried on the next refresh
			active[id] = true
		}
	}
	s.warmed = active
	zap.S().Debugw("widget cache refreshed", "widgets", len(widgets))
}
