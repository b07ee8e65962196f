package poll

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExhausted is returned when MaxAttempts checks ran without completion.
var ErrBudgetExhausted = errors.New("poll budget exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CheckFunc reports whether polling is done. A non-nil error stops polling.
type CheckFunc func(ctx context.Context, attempt int) (bool, error)

// Loop is a bounded fixed-interval poller.
type Loop struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       SleepFunc
}

// Run calls check up to MaxAttempts times, sleeping Interval between calls.
// It returns the number of checks performed.
func (l Loop) Run(ctx context.Context, check CheckFunc) (int, error) {
	if l.MaxAttempts < 1 {
		l.MaxAttempts = 1
	}
	if l.Interval < 0 {
		l.Interval = 0
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; attempt <= l.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		done, err := check(ctx, attempt)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
		if attempt == l.MaxAttempts {
			break
		}
		if err := sleep(ctx, l.Interval); err != nil {
			return attempt, err
		}
	}
	return l.MaxAttempts, ErrBudgetExhausted
}
