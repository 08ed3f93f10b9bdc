package reminders

import (
	"context"
	"errors"
	"time"
)

// NextRun is the first time at hour:00 in loc strictly after now.
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	n := now.In(loc)
	next := time.Date(n.Year(), n.Month(), n.Day(), hour, 0, 0, 0, loc)
	if !next.After(n) {
		next = time.Date(n.Year(), n.Month(), n.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

// RunDaily sweeps once a day at hour in the scheduler's zone until ctx is done.
func (s *Scheduler) RunDaily(ctx context.Context, hour int) error {
	for {
		next := NextRun(s.Now(), hour, s.loc)
		s.log.WithField("next_run", next.Format(time.RFC3339)).Info("waiting for next sweep")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := s.Sweep(ctx); err != nil {
			if errors.Is(err, ErrLeaseHeld) {
				s.log.Info("sweep skipped: another sweep is running")
				continue
			}
			s.log.WithError(err).Error("sweep failed")
		}
	}
}
