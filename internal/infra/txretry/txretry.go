// Package txretry runs store transactions under an optimistic-concurrency
// retry loop. Stores classify their own driver errors; the runner only
// distinguishes transient conflicts from everything else.
package txretry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"khatm_bot/internal/domain/khatm"
)

// ErrTransientConflict marks a failure that is safe to retry from scratch,
// e.g. a serialization failure or a compare-and-swap version mismatch.
var ErrTransientConflict = errors.New("transient transaction conflict")

const (
	defaultInitialInterval = 5 * time.Millisecond
	defaultMaxInterval     = 250 * time.Millisecond
	defaultMaxElapsed      = 30 * time.Second
)

// Policy bounds the retry loop. MaxAttempts 0 means no attempt limit; the
// elapsed-time bound still applies.
type Policy struct {
	MaxAttempts     uint
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy is unbounded in attempts and bounded in time.
func DefaultPolicy() Policy {
	return Policy{
		MaxElapsed:      defaultMaxElapsed,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
	}
}

// Observer is notified of each retried conflict.
type Observer interface {
	RecordTxRetry(store string)
}

// Runner retries operations that fail with ErrTransientConflict.
type Runner struct {
	store    string
	policy   Policy
	observer Observer
	logger   *logrus.Entry
}

func NewRunner(store string, policy Policy, observer Observer, logger *logrus.Entry) *Runner {
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = defaultInitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = defaultMaxInterval
	}
	return &Runner{
		store:    store,
		policy:   policy,
		observer: observer,
		logger:   logger.WithField("store", store),
	}
}

// Run executes op until it succeeds, fails with a non-conflict error, or the
// retry budget runs out. An exhausted budget is reported as khatm.ErrConflict.
func (r *Runner) Run(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if r.observer != nil {
				r.observer.RecordTxRetry(r.store)
			}
			r.logger.WithError(err).WithField("wait", wait).Debug("Retrying conflicting transaction")
		}),
	}
	if r.policy.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(r.policy.MaxAttempts))
	}
	if r.policy.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(r.policy.MaxElapsed))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil || errors.Is(err, ErrTransientConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, opts...)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransientConflict) {
		return fmt.Errorf("%w: %v", khatm.ErrConflict, err)
	}
	return err
}
