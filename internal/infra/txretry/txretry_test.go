package txretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"khatm_bot/internal/domain/khatm"
)

type countingObserver struct {
	retries atomic.Int32
}

func (o *countingObserver) RecordTxRetry(string) { o.retries.Add(1) }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func fastPolicy(attempts uint) Policy {
	return Policy{
		MaxAttempts:     attempts,
		MaxElapsed:      5 * time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestRunner_Run(t *testing.T) {
	t.Run("retries transient conflicts until success", func(t *testing.T) {
		obs := &countingObserver{}
		r := NewRunner("test", fastPolicy(0), obs, testLogger())
		calls := 0

		err := r.Run(context.Background(), func() error {
			calls++
			if calls < 4 {
				return fmt.Errorf("version moved: %w", ErrTransientConflict)
			}
			return nil
		})

		require.NoError(t, err)
		require.Equal(t, 4, calls)
		require.EqualValues(t, 3, obs.retries.Load())
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		r := NewRunner("test", fastPolicy(0), nil, testLogger())
		calls := 0

		err := r.Run(context.Background(), func() error {
			calls++
			return khatm.ErrNotFound
		})

		require.ErrorIs(t, err, khatm.ErrNotFound)
		require.Equal(t, 1, calls)
	})

	t.Run("reports an exhausted budget as a conflict", func(t *testing.T) {
		r := NewRunner("test", fastPolicy(3), nil, testLogger())
		calls := 0

		err := r.Run(context.Background(), func() error {
			calls++
			return ErrTransientConflict
		})

		require.ErrorIs(t, err, khatm.ErrConflict)
		require.Equal(t, 3, calls)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		r := NewRunner("test", fastPolicy(0), nil, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := r.Run(ctx, func() error {
			return ErrTransientConflict
		})

		require.Error(t, err)
		require.False(t, errors.Is(err, khatm.ErrNotFound))
	})
}
