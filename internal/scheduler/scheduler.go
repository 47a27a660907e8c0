package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/examsrs/internal/leech"
	"github.com/example/examsrs/internal/logger"
	"github.com/example/examsrs/internal/metrics"
)

// DefaultScanInterval is how often the leech scan runs
const DefaultScanInterval = 6 * time.Hour

// LearnerLister lists every learner that owns cards
type LearnerLister interface {
	ListLearners(ctx context.Context) ([]int64, error)
}

// LeechDetector runs leech detection for one learner
type LeechDetector interface {
	Detect(ctx context.Context, learnerID int64, opts leech.DetectOptions) ([]leech.Analysis, error)
}

// DueLister returns the ids of a learner's due cards
type DueLister interface {
	DueCards(ctx context.Context, learnerID int64, now time.Time, limit int) ([]int64, error)
}

// Notifier interface for sending notifications
type Notifier interface {
	NotifyLeeches(learnerID int64, leeches []leech.Analysis) error
	SendReminders(learnerID int64, due int) error
}

// Config controls the periodic scan
type Config struct {
	Interval  time.Duration
	Threshold int // leech threshold, 0 for the default
}

// Scheduler runs the periodic leech scan and due reminders
type Scheduler struct {
	scheduler *gocron.Scheduler
	learners  LearnerLister
	detector  LeechDetector
	due       DueLister
	notifier  Notifier
	cfg       Config
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates a new scheduler instance
func New(learners LearnerLister, detector LeechDetector, due DueLister, notifier Notifier, cfg Config, log *logger.Logger, m *metrics.Metrics) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultScanInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		learners:  learners,
		detector:  detector,
		due:       due,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// Start schedules the scan and runs it in the background until ctx is done
// or Stop is called
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.cfg.Interval).Do(func() {
		if err := s.scan(ctx); err != nil {
			s.log.Error("leech scan failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.log.Info("scheduler started", "interval", s.cfg.Interval.String())
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) scan(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	learners, err := s.learners.ListLearners(ctx)
	if err != nil {
		s.metrics.RecordScan(false)
		return err
	}

	failed := false
	for _, id := range learners {
		if err := s.RunManualScan(ctx, id); err != nil {
			s.log.Warn("scan for learner failed", "learner_id", id, "error", err)
			failed = true
		}
	}
	s.metrics.RecordScan(!failed)
	s.log.Debug("leech scan finished", "learners", len(learners), "failed", failed)
	return nil
}

// RunManualScan detects leeches for one learner and sends the resulting
// notifications
func (s *Scheduler) RunManualScan(ctx context.Context, learnerID int64) error {
	found, err := s.detector.Detect(ctx, learnerID, leech.DetectOptions{Threshold: s.cfg.Threshold})
	if err != nil {
		return err
	}
	if len(found) > 0 {
		if err := s.notifier.NotifyLeeches(learnerID, found); err != nil {
			return err
		}
	}

	due, err := s.due.DueCards(ctx, learnerID, s.now(), 0)
	if err != nil {
		return err
	}
	if len(due) > 0 {
		return s.notifier.SendReminders(learnerID, len(due))
	}
	return nil
}
