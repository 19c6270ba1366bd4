package semantic

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic maintenance jobs: refreshing discovered entity
// types and any housekeeping registered by the caller.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID // job name → cron entry
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule registers fn under name with a standard five-field cron spec or a
// descriptor such as "@every 5m". A job registered again replaces the old one.
func (s *Scheduler) Schedule(name, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled job panicked", "job", name, "panic", r)
			}
		}()
		fn()
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old)
	}
	s.entries[name] = id
	s.logger.Info("scheduled job", "job", name, "schedule", spec)
	return nil
}

// ScheduleRefresh invalidates every open data source of r on spec, so
// discovered tables are introspected again on next use.
func (s *Scheduler) ScheduleRefresh(r *Registry, spec string) error {
	return s.Schedule("schema-refresh", spec, r.InvalidateAll)
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start starts the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
