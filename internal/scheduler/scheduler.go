package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-history/internal/export"
	"github.com/i474232898/weather-history/internal/weather"
)

// RecordLister is the read side the export job needs.
type RecordLister interface {
	ListRecords(ctx context.Context) ([]weather.HistoryRecord, error)
}

// Config controls the export job. An Interval of zero disables it. A Path
// without an extension gets the one matching Format.
type Config struct {
	Interval time.Duration
	Path     string
	Format   export.Format
	Timeout  time.Duration
}

// Scheduler periodically writes an export snapshot of every history record.
type Scheduler struct {
	scheduler *gocron.Scheduler
	records   RecordLister
	cfg       Config
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(cfg Config, records RecordLister, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if filepath.Ext(cfg.Path) == "" {
		cfg.Path += "." + cfg.Format.Ext()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		records:   records,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Start schedules the export job and starts the underlying scheduler. The
// first snapshot is written immediately.
func (s *Scheduler) Start() error {
	if s.cfg.Interval <= 0 {
		s.logger.Info("export interval not set; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.cfg.Interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()

		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("export job failed", slog.String("path", s.cfg.Path), slog.Any("error", err))
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("export job scheduled",
		slog.Duration("interval", s.cfg.Interval),
		slog.String("path", s.cfg.Path),
		slog.String("format", string(s.cfg.Format)),
	)
	return nil
}

// RunOnce writes one snapshot. The target file is replaced atomically so
// readers never see a partial export.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	records, err := s.records.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	dir := filepath.Dir(s.cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.cfg.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := export.Write(tmp, records, s.cfg.Format); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.cfg.Path); err != nil {
		return err
	}

	s.logger.Info("export written", slog.String("path", s.cfg.Path), slog.Int("records", len(records)))
	return nil
}

// Path returns the file the job writes.
func (s *Scheduler) Path() string {
	return s.cfg.Path
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
