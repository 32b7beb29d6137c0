package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/infra/metrics"
)

// AuditReport summarizes one sweep.
type AuditReport struct {
	Checked    int
	OutOfRange int
}

// AuditService inspects all records without modifying them. Out-of-range
// pages are only reported; the next assignment resets them.
type AuditService struct {
	repo    khatm.Repository
	metrics metrics.Collector
	logger  *logrus.Entry
}

func NewAuditService(repo khatm.Repository, collector metrics.Collector, logger *logrus.Entry) *AuditService {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AuditService{repo: repo, metrics: collector, logger: logger}
}

func (s *AuditService) AuditAll(ctx context.Context) (AuditReport, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("list khatms: %w", err)
	}

	var report AuditReport
	for _, k := range all {
		report.Checked++
		log := s.logger.WithFields(logrus.Fields{
			"khatm_id":        k.ID,
			"slug":            k.Slug,
			"current_page":    k.CurrentPage,
			"total_pages":     k.TotalPages,
			"completed_count": k.CompletedCount,
		})
		if khatm.IsCorrupt(*k) {
			report.OutOfRange++
			log.Warn("Current page out of range, will reset on next assignment")
		}
		progress := khatm.Progress(*k)
		s.metrics.SetKhatmProgress(k.Slug, progress, k.CompletedCount)
		log.WithField("progress", progress).Debug("Khatm audited")
	}
	s.metrics.SetCorruptRecords(report.OutOfRange)

	s.logger.WithFields(logrus.Fields{"checked": report.Checked, "out_of_range": report.OutOfRange}).Info("Audit finished")
	return report, nil
}
