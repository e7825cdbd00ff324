package service

import (
	"context"
	"errors"
	"time"

	"docqa/internal/domain"
	"docqa/internal/metrics"
)

// RetryPolicy controls how remote failures are retried. Only errors matching
// domain.ErrRemote are retried; configuration and parameter errors and
// context errors are returned immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	return p
}

// delay is exponential in attempt and capped at MaxDelay.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return p.MaxDelay
	}
	d := p.BaseDelay << attempt
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := s.retry.delay(attempt - 1)
			metrics.Retries.Add(1)
			s.log.Warn("retrying remote call", "op", op, "attempt", attempt+1, "wait", wait, "err", err)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrRemote) {
			return err
		}
		metrics.RemoteErrors.Add(1)
	}
	s.log.Error("remote call failed", "op", op, "attempts", s.retry.MaxAttempts, "err", err)
	return err
}
