package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/infra/events"
	"khatm_bot/internal/infra/metrics"
)

// slugAttempts bounds how many fresh slugs CreateKhatm tries on collision.
const slugAttempts = 3

// Assignment outcomes recorded in metrics.
const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeLocked      = "locked"
	outcomeConflict    = "conflict"
	outcomeUnavailable = "unavailable"
	outcomeInvalid     = "invalid"
	outcomeError       = "error"
)

// KhatmStatus is the read-only progress view of a record.
type KhatmStatus struct {
	Khatm          *khatm.Khatm
	Cycle          int
	ProgressPct    int
	RemainingPages int
}

// KhatmService creates records and hands out page ranges.
type KhatmService struct {
	repo       khatm.Repository
	totalPages int
	policy     khatm.CompletionPolicy
	metrics    metrics.Collector
	publisher  events.Publisher
	logger     *logrus.Entry
	now        func() time.Time
}

func NewKhatmService(
	repo khatm.Repository,
	totalPages int,
	policy khatm.CompletionPolicy,
	collector metrics.Collector,
	publisher events.Publisher,
	logger *logrus.Entry,
) *KhatmService {
	if totalPages <= 0 {
		totalPages = khatm.DefaultTotalPages
	}
	if policy == "" {
		policy = khatm.CompletionReset
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &KhatmService{
		repo:       repo,
		totalPages: totalPages,
		policy:     policy,
		metrics:    collector,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Policy returns the configured completion policy.
func (s *KhatmService) Policy() khatm.CompletionPolicy {
	return s.policy
}

// CreateKhatm starts a new record at page 1 with a freshly generated slug.
func (s *KhatmService) CreateKhatm(ctx context.Context, name string) (*khatm.Khatm, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, khatm.ErrInvalidName
	}

	var lastErr error
	for attempt := 1; attempt <= slugAttempts; attempt++ {
		slug, err := khatm.GenerateSlug(name)
		if err != nil {
			return nil, fmt.Errorf("generate slug: %w", err)
		}

		k := &khatm.Khatm{
			Name:        name,
			Slug:        slug,
			TotalPages:  s.totalPages,
			CurrentPage: 1,
		}
		err = s.repo.Create(ctx, k)
		if err == nil {
			s.logger.WithFields(logrus.Fields{"khatm_id": k.ID, "slug": k.Slug}).Info("Khatm created")
			return k, nil
		}
		if !errors.Is(err, khatm.ErrDuplicateSlug) {
			return nil, fmt.Errorf("create khatm: %w", err)
		}
		s.logger.WithFields(logrus.Fields{"slug": slug, "attempt": attempt}).Warn("Slug collision, regenerating")
		lastErr = err
	}
	return nil, fmt.Errorf("create khatm after %d slug attempts: %w", slugAttempts, lastErr)
}

// FindBySlug returns khatm.ErrNotFound when no record has the slug.
func (s *KhatmService) FindBySlug(ctx context.Context, slug string) (*khatm.Khatm, error) {
	k, err := s.repo.GetBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, fmt.Errorf("find khatm by slug: %w", err)
	}
	return k, nil
}

func (s *KhatmService) GetByID(ctx context.Context, id string) (*khatm.Khatm, error) {
	k, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get khatm: %w", err)
	}
	return k, nil
}

// AssignPages grants the next contiguous range of up to requested pages.
// The allocation, the wraparound and the counter update commit together or
// not at all.
func (s *KhatmService) AssignPages(ctx context.Context, id string, requested int) (*khatm.Assignment, error) {
	started := s.now()
	log := s.logger.WithFields(logrus.Fields{"khatm_id": id, "requested": requested})

	if requested <= 0 {
		s.metrics.RecordAssignment(outcomeInvalid, 0, false, 0)
		return nil, khatm.ErrInvalidPageCount
	}

	// Overwritten on every attempt so only the committed one survives.
	var (
		assignment khatm.Assignment
		committed  khatm.Khatm
	)
	err := s.repo.Transact(ctx, id, func(current khatm.Khatm) (khatm.Khatm, error) {
		a, next, err := khatm.Allocate(current, requested, s.policy)
		if err != nil {
			return current, err
		}
		assignment = a
		committed = next
		return next, nil
	})
	elapsed := s.now().Sub(started)
	if err != nil {
		s.metrics.RecordAssignment(assignmentOutcome(err), 0, false, elapsed)
		log.WithError(err).Warn("Page assignment failed")
		return nil, fmt.Errorf("assign pages: %w", err)
	}

	s.metrics.RecordAssignment(outcomeOK, assignment.Pages(), assignment.CycleCompleted, elapsed)
	log.WithFields(logrus.Fields{
		"start_page":      assignment.StartPage,
		"end_page":        assignment.EndPage,
		"cycle":           assignment.Cycle,
		"cycle_completed": assignment.CycleCompleted,
	}).Info("Pages assigned")

	s.publishAssignment(ctx, committed, assignment)
	return &assignment, nil
}

func (s *KhatmService) publishAssignment(ctx context.Context, k khatm.Khatm, a khatm.Assignment) {
	at := s.now().UTC()
	if err := s.publisher.Publish(ctx, events.SubjectPagesAssigned, events.PagesAssigned{
		KhatmID:    a.KhatmID,
		Slug:       k.Slug,
		StartPage:  a.StartPage,
		EndPage:    a.EndPage,
		Requested:  a.Requested,
		Cycle:      a.Cycle,
		AssignedAt: at,
	}); err != nil {
		s.logger.WithError(err).WithField("khatm_id", a.KhatmID).Warn("Failed to publish assignment event")
	}
	if !a.CycleCompleted {
		return
	}
	if err := s.publisher.Publish(ctx, events.SubjectCycleCompleted, events.CycleCompleted{
		KhatmID:     a.KhatmID,
		Slug:        k.Slug,
		Name:        k.Name,
		Cycle:       a.Cycle,
		CompletedAt: at,
	}); err != nil {
		s.logger.WithError(err).WithField("khatm_id", a.KhatmID).Warn("Failed to publish cycle completion event")
	}
}

// Status reads the record outside any transaction; the view may be stale.
func (s *KhatmService) Status(ctx context.Context, slug string) (*KhatmStatus, error) {
	k, err := s.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &KhatmStatus{
		Khatm:          k,
		Cycle:          khatm.CurrentCycle(*k),
		ProgressPct:    khatm.Progress(*k),
		RemainingPages: khatm.RemainingPages(*k),
	}, nil
}

// Reopen clears the completed flag so a locked record accepts assignments
// again. Reopening an open record is a no-op.
func (s *KhatmService) Reopen(ctx context.Context, id string) (*khatm.Khatm, error) {
	var reopened khatm.Khatm
	err := s.repo.Transact(ctx, id, func(current khatm.Khatm) (khatm.Khatm, error) {
		current.IsCompleted = false
		reopened = current
		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reopen khatm: %w", err)
	}
	s.logger.WithField("khatm_id", id).Info("Khatm reopened")
	return &reopened, nil
}

func assignmentOutcome(err error) string {
	switch {
	case errors.Is(err, khatm.ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, khatm.ErrCycleLocked):
		return outcomeLocked
	case errors.Is(err, khatm.ErrConflict):
		return outcomeConflict
	case errors.Is(err, khatm.ErrStoreUnavailable):
		return outcomeUnavailable
	case errors.Is(err, khatm.ErrInvalidPageCount), errors.Is(err, khatm.ErrCorruptRecord):
		return outcomeInvalid
	default:
		return outcomeError
	}
}
