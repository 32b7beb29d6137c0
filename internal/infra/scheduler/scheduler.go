package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"khatm_bot/internal/app"
)

// Auditor is the job run on every tick.
type Auditor interface {
	AuditAll(ctx context.Context) (app.AuditReport, error)
}

// AuditScheduler runs the periodic read-only audit of all khatms.
type AuditScheduler struct {
	cronEngine *cron.Cron
	auditor    Auditor
	logger     *logrus.Entry
	cronSpec   string // e.g. "0 * * * *" (hourly)
	jobTimeout time.Duration
}

func NewAuditScheduler(auditor Auditor, logger *logrus.Entry, cronSpec string) *AuditScheduler {
	return &AuditScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		auditor:    auditor,
		logger:     logger,
		cronSpec:   cronSpec,
		jobTimeout: 5 * time.Minute,
	}
}

// Start registers the audit job and starts the cron engine.
func (s *AuditScheduler) Start() error {
	s.logger.Info("Starting audit scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.runAudit); err != nil {
		return fmt.Errorf("add audit cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpec).Info("Audit scheduler started")
	return nil
}

func (s *AuditScheduler) runAudit() {
	s.logger.Debug("Cron job triggered for khatm audit")
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	if _, err := s.auditor.AuditAll(ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled audit failed")
	}
}

func (s *AuditScheduler) Stop() {
	s.logger.Info("Stopping audit scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Audit scheduler gracefully stopped")
}
