package memstore

import (
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/infra/txretry"
)

func newTestStore() *KhatmStore {
	l := logrus.New()
	l.SetOutput(io.Discard)
	policy := txretry.Policy{MaxElapsed: 10 * time.Second, InitialInterval: time.Millisecond, MaxInterval: 3 * time.Millisecond}
	return NewKhatmStore(txretry.NewRunner("memory", policy, nil, logrus.NewEntry(l)))
}

func createKhatm(t *testing.T, s *KhatmStore, total int) *khatm.Khatm {
	t.Helper()
	k := &khatm.Khatm{Name: "group", Slug: "group-000001", TotalPages: total, CurrentPage: 1}
	require.NoError(t, s.Create(context.Background(), k))
	return k
}

func assign(ctx context.Context, s *KhatmStore, id string, n int) (khatm.Assignment, error) {
	var a khatm.Assignment
	err := s.Transact(ctx, id, func(current khatm.Khatm) (khatm.Khatm, error) {
		granted, next, err := khatm.Allocate(current, n, khatm.CompletionReset)
		if err != nil {
			return current, err
		}
		a = granted
		return next, nil
	})
	return a, err
}

func TestKhatmStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	k := createKhatm(t, s, 604)

	require.NotEmpty(t, k.ID)
	require.False(t, k.CreatedAt.IsZero())

	byID, err := s.GetByID(ctx, k.ID)
	require.NoError(t, err)
	require.Equal(t, "group-000001", byID.Slug)

	bySlug, err := s.GetBySlug(ctx, "group-000001")
	require.NoError(t, err)
	require.Equal(t, k.ID, bySlug.ID)

	_, err = s.GetBySlug(ctx, "missing")
	require.ErrorIs(t, err, khatm.ErrNotFound)

	err = s.Create(ctx, &khatm.Khatm{Name: "other", Slug: "group-000001", TotalPages: 604, CurrentPage: 1})
	require.ErrorIs(t, err, khatm.ErrDuplicateSlug)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestKhatmStore_Transact(t *testing.T) {
	ctx := context.Background()

	t.Run("missing record is not found and nothing is written", func(t *testing.T) {
		s := newTestStore()
		called := false

		err := s.Transact(ctx, "nope", func(current khatm.Khatm) (khatm.Khatm, error) {
			called = true
			return current, nil
		})

		require.ErrorIs(t, err, khatm.ErrNotFound)
		require.False(t, called)
	})

	t.Run("mutation error leaves the record untouched", func(t *testing.T) {
		s := newTestStore()
		k := createKhatm(t, s, 10)

		_, err := assign(ctx, s, k.ID, 0)
		require.ErrorIs(t, err, khatm.ErrInvalidPageCount)

		got, err := s.GetByID(ctx, k.ID)
		require.NoError(t, err)
		require.Equal(t, 1, got.CurrentPage)
	})

	t.Run("worked example over 604 pages", func(t *testing.T) {
		s := newTestStore()
		k := createKhatm(t, s, 604)

		a, err := assign(ctx, s, k.ID, 10)
		require.NoError(t, err)
		require.Equal(t, khatm.Assignment{KhatmID: k.ID, StartPage: 1, EndPage: 10, Requested: 10, Cycle: 1}, a)

		got, _ := s.GetByID(ctx, k.ID)
		require.Equal(t, 11, got.CurrentPage)

		a, err = assign(ctx, s, k.ID, 600)
		require.NoError(t, err)
		require.Equal(t, 11, a.StartPage)
		require.Equal(t, 604, a.EndPage)
		require.True(t, a.CycleCompleted)

		got, _ = s.GetByID(ctx, k.ID)
		require.Equal(t, 1, got.CurrentPage)
		require.Equal(t, 1, got.CompletedCount)
	})

	t.Run("corrupted record heals on the next assignment", func(t *testing.T) {
		s := newTestStore()
		s.Put(khatm.Khatm{ID: "legacy", Slug: "legacy-aaaaaa", TotalPages: 604, CurrentPage: 609})

		a, err := assign(ctx, s, "legacy", 4)
		require.NoError(t, err)
		require.Equal(t, 1, a.StartPage)
		require.Equal(t, 4, a.EndPage)

		got, _ := s.GetByID(ctx, "legacy")
		require.Equal(t, 5, got.CurrentPage)
	})
}

func TestKhatmStore_ConflictingAssignmentsAreSerialized(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	k := createKhatm(t, s, 10)

	// Hold both first attempts after their reads so that they conflict.
	var arrived atomic.Int32
	release := make(chan struct{})
	s.beforeCommit = func(string) {
		switch arrived.Add(1) {
		case 1:
			<-release
		case 2:
			close(release)
		}
	}

	results := make([]khatm.Assignment, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = assign(ctx, s, k.ID, 5)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.GreaterOrEqual(t, arrived.Load(), int32(3), "one transaction must have retried")

	sort.Slice(results, func(i, j int) bool { return results[i].StartPage < results[j].StartPage })
	require.Equal(t, 1, results[0].StartPage)
	require.Equal(t, 5, results[0].EndPage)
	require.False(t, results[0].CycleCompleted)
	require.Equal(t, 6, results[1].StartPage)
	require.Equal(t, 10, results[1].EndPage)
	require.True(t, results[1].CycleCompleted)

	got, err := s.GetByID(ctx, k.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.CurrentPage)
	require.Equal(t, 1, got.CompletedCount)
}

func TestKhatmStore_ConcurrentAssignmentsTileCycles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	const total = 10
	const callers = 60
	k := createKhatm(t, s, total)

	var (
		mu        sync.Mutex
		covered   = make(map[int]int)
		completed int
		wg        sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := assign(ctx, s, k.ID, 1)
			require.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			covered[a.StartPage]++
			if a.CycleCompleted {
				completed++
			}
		}()
	}
	wg.Wait()

	for p := 1; p <= total; p++ {
		require.Equal(t, callers/total, covered[p], "page %d", p)
	}
	require.Equal(t, callers/total, completed)

	got, err := s.GetByID(ctx, k.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.CurrentPage)
	require.Equal(t, callers/total, got.CompletedCount)
}
