package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/source-open-meteo/internal/logger"
	"github.com/i474232898/source-open-meteo/internal/openmeteo"
)

// Syncer is the part of the connector service the scheduler drives.
type Syncer interface {
	SyncAndStore(ctx context.Context, cfg openmeteo.SourceConfig) error
}

// Scheduler periodically syncs the connector's streams into the store.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Syncer
	source    openmeteo.SourceConfig
	interval  time.Duration
	timeout   time.Duration
	log       *zap.SugaredLogger
}

// New creates a new Scheduler.
func New(source openmeteo.SourceConfig, interval time.Duration, service Syncer) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		source:    source,
		interval:  interval,
		timeout:   30 * time.Second,
		log:       logger.GetLogger().With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Infow("scheduler started", "intervalMinutes", minutes)
	return nil
}

func (s *Scheduler) run() {
	s.log.Infow("running sync job")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.service.SyncAndStore(ctx, s.source); err != nil {
		s.log.Errorw("sync failed", "error", err)
		return
	}
	s.log.Infow("completed sync job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
