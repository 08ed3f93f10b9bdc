// Package reminders runs the daily sweep that nudges assignees 3 weeks, 2
// weeks, 1 week and on the day a task is due.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kluncker/rockville-cg-app/internal/email"
	"github.com/Kluncker/rockville-cg-app/internal/logging"
	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/notify"
	"github.com/Kluncker/rockville-cg-app/internal/recipients"
	"github.com/Kluncker/rockville-cg-app/internal/store"
)

type Offset struct {
	Days  int
	Flag  models.ReminderFlag
	Label string
}

var Offsets = []Offset{
	{Days: 21, Flag: models.FlagThreeWeek, Label: "3 weeks"},
	{Days: 14, Flag: models.FlagTwoWeek, Label: "2 weeks"},
	{Days: 7, Flag: models.FlagOneWeek, Label: "1 week"},
	{Days: 0, Flag: models.FlagDayOf, Label: "Day of"},
}

func offsetFor(days int) (Offset, bool) {
	for _, o := range Offsets {
		if o.Days == days {
			return o, true
		}
	}
	return Offset{}, false
}

// Lease keeps two sweeps from running at the same time. A re-run after a
// sweep finishes is allowed; the per-task flags stop double sends.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const (
	leaseKey = "reminders:sweep"
	// leaseTTL bounds how long a crashed sweep blocks the next one.
	leaseTTL = 30 * time.Minute
)

// ErrLeaseHeld means another sweep is running.
var ErrLeaseHeld = errors.New("reminders: another sweep is running")

type Report struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Deps struct {
	Store    store.Store
	Sender   email.Sender
	Composer *notify.Composer
	Lease    Lease
	Location *time.Location
	Log      logrus.FieldLogger
}

type Scheduler struct {
	store    store.Store
	resolver *recipients.Resolver
	sender   email.Sender
	composer *notify.Composer
	lease    Lease
	loc      *time.Location
	log      logrus.FieldLogger

	Now func() time.Time
}

func NewScheduler(d Deps) *Scheduler {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		store:    d.Store,
		resolver: recipients.NewResolver(d.Store),
		sender:   d.Sender,
		composer: d.Composer,
		lease:    d.Lease,
		loc:      loc,
		log:      logging.Component(log, "reminders"),
		Now:      time.Now,
	}
}

// DaysUntil is the number of calendar days from now to the YYYY-MM-DD date,
// both read in loc. It is negative for past dates.
func DaysUntil(date string, now time.Time, loc *time.Location) (int, error) {
	due, err := time.ParseInLocation(models.DateLayout, date, loc)
	if err != nil {
		return 0, fmt.Errorf("parse due date %q: %w", date, err)
	}
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(today).Hours() / 24), nil
}

// Sweep sends every reminder due today. Per-task failures are logged and
// counted; they never stop the sweep.
func (s *Scheduler) Sweep(ctx context.Context) (Report, error) {
	now := s.Now().In(s.loc)

	if s.lease != nil {
		ok, err := s.lease.Acquire(ctx, leaseKey, leaseTTL)
		switch {
		case err != nil:
			s.log.WithError(err).Warn("lease unavailable, relying on reminder flags")
		case !ok:
			return Report{}, ErrLeaseHeld
		default:
			defer s.releaseLease(ctx)
		}
	}

	tasks, err := s.store.ListTasksByStatus(ctx, models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return Report{}, fmt.Errorf("list tasks: %w", err)
	}

	var rep Report
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++
		log := s.log.WithField("task_id", t.ID)

		if t.AssignedTo == "" {
			rep.Skipped++
			continue
		}
		days, err := DaysUntil(t.EventDate, now, s.loc)
		if err != nil {
			log.WithError(err).Warn("bad due date")
			rep.Failed++
			continue
		}
		off, ok := offsetFor(days)
		if !ok || t.EmailReminders.Sent(off.Flag) {
			rep.Skipped++
			continue
		}

		if err := s.remind(ctx, t, off, days, now); err != nil {
			log.WithError(err).WithField("reminder", off.Label).Error("reminder failed")
			rep.Failed++
			continue
		}
		log.WithField("reminder", off.Label).Info("reminder sent")
		rep.Sent++
	}

	s.log.WithFields(logrus.Fields{
		"scanned": rep.Scanned,
		"sent":    rep.Sent,
		"skipped": rep.Skipped,
		"failed":  rep.Failed,
	}).Info("sweep finished")
	return rep, nil
}

func (s *Scheduler) releaseLease(ctx context.Context) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.lease.Release(rctx, leaseKey); err != nil {
		s.log.WithError(err).Warn("release lease failed; it expires on its own")
	}
}

func (s *Scheduler) remind(ctx context.Context, t models.Task, off Offset, days int, now time.Time) error {
	event, err := s.store.GetEventByID(ctx, t.EventID)
	if err != nil {
		return fmt.Errorf("get event %s: %w", t.EventID, err)
	}
	if event == nil {
		return fmt.Errorf("event %s not found", t.EventID)
	}
	assignee, err := s.store.GetUserByID(ctx, t.AssignedTo)
	if err != nil {
		return fmt.Errorf("get assignee %s: %w", t.AssignedTo, err)
	}
	if assignee == nil {
		return fmt.Errorf("assignee %s not found", t.AssignedTo)
	}

	to, err := s.resolver.FamilyMemberEmails(ctx, assignee.ID)
	if err != nil {
		return err
	}
	if to.Len() == 0 {
		return email.ErrNoRecipients
	}
	cc, err := s.resolver.CCRecipients(ctx, event.CreatedBy)
	if err != nil {
		return err
	}

	var links *notify.Links
	if t.Status == models.StatusPending {
		links, err = s.actionLinks(ctx, t, now)
		if err != nil {
			// still remind, without buttons
			s.log.WithField("task_id", t.ID).WithError(err).Warn("load action tokens failed")
		}
	}

	msg, err := s.composer.Reminder(t, *event, *assignee, off.Label, days, to, cc, links)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	if err := s.store.MarkReminderSent(ctx, t.ID, off.Flag, now.UnixMilli()); err != nil {
		return fmt.Errorf("mark %s: %w", off.Flag, err)
	}
	return nil
}

// actionLinks reuses the newest live token pair issued to the current
// assignee. It returns nil when there is none.
func (s *Scheduler) actionLinks(ctx context.Context, t models.Task, now time.Time) (*notify.Links, error) {
	toks, err := s.store.ListUnusedTokensForTask(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	var confirm, decline string
	for _, tok := range toks {
		if tok.UserID != t.AssignedTo || tok.ExpiresAt < now.UnixMilli() {
			continue
		}
		// oldest first, so later tokens win
		switch tok.Action {
		case models.ActionConfirm:
			confirm = tok.Token
		case models.ActionDecline:
			decline = tok.Token
		}
	}
	return s.composer.ActionLinks(confirm, decline), nil
}
