// Package memstore keeps cycle records in process memory. Transactions are
// optimistic: a record is read with its version, mutated outside the lock and
// committed only if the version has not moved, otherwise the whole transaction
// is retried.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/infra/txretry"
)

type versioned struct {
	record  khatm.Khatm
	version uint64
}

// KhatmStore implements khatm.Repository in memory.
type KhatmStore struct {
	mu      sync.RWMutex
	records map[string]*versioned
	bySlug  map[string]string
	runner  *txretry.Runner
	now     func() time.Time

	// beforeCommit runs between the mutation and the commit; tests use it to
	// interleave competing transactions.
	beforeCommit func(id string)
}

var _ khatm.Repository = (*KhatmStore)(nil)

func NewKhatmStore(runner *txretry.Runner) *KhatmStore {
	return &KhatmStore{
		records: make(map[string]*versioned),
		bySlug:  make(map[string]string),
		runner:  runner,
		now:     time.Now,
	}
}

func (s *KhatmStore) Create(ctx context.Context, k *khatm.Khatm) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.bySlug[k.Slug]; taken {
		return khatm.ErrDuplicateSlug
	}
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	now := s.now().UTC()
	k.CreatedAt = now
	k.UpdatedAt = now

	s.records[k.ID] = &versioned{record: *k, version: 1}
	s.bySlug[k.Slug] = k.ID
	return nil
}

func (s *KhatmStore) GetByID(ctx context.Context, id string) (*khatm.Khatm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.records[id]
	if !ok {
		return nil, khatm.ErrNotFound
	}
	k := v.record
	return &k, nil
}

func (s *KhatmStore) GetBySlug(ctx context.Context, slug string) (*khatm.Khatm, error) {
	s.mu.RLock()
	id, ok := s.bySlug[slug]
	s.mu.RUnlock()
	if !ok {
		return nil, khatm.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *KhatmStore) ListAll(ctx context.Context) ([]*khatm.Khatm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*khatm.Khatm, 0, len(s.records))
	for _, v := range s.records {
		k := v.record
		out = append(out, &k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *KhatmStore) Transact(ctx context.Context, id string, fn khatm.MutateFunc) error {
	return s.runner.Run(ctx, func() error {
		return s.transactOnce(ctx, id, fn)
	})
}

func (s *KhatmStore) transactOnce(ctx context.Context, id string, fn khatm.MutateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	v, ok := s.records[id]
	var (
		snapshot khatm.Khatm
		version  uint64
	)
	if ok {
		snapshot, version = v.record, v.version
	}
	s.mu.RUnlock()
	if !ok {
		return khatm.ErrNotFound
	}

	updated, err := fn(snapshot)
	if err != nil {
		return err
	}
	if s.beforeCommit != nil {
		s.beforeCommit(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok = s.records[id]
	if !ok {
		return khatm.ErrNotFound
	}
	if v.version != version {
		return fmt.Errorf("khatm %s: version %d moved to %d: %w", id, version, v.version, txretry.ErrTransientConflict)
	}

	// Identity and metadata are owned by Create.
	updated.ID = snapshot.ID
	updated.Slug = snapshot.Slug
	updated.CreatedAt = snapshot.CreatedAt
	updated.UpdatedAt = s.now().UTC()
	v.record = updated
	v.version++
	return nil
}

// Put stores a record as-is, bypassing validation. Intended for seeding
// legacy or corrupted states.
func (s *KhatmStore) Put(k khatm.Khatm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.records[k.ID]; ok {
		delete(s.bySlug, old.record.Slug)
		s.records[k.ID] = &versioned{record: k, version: old.version + 1}
	} else {
		s.records[k.ID] = &versioned{record: k, version: 1}
	}
	s.bySlug[k.Slug] = k.ID
}
