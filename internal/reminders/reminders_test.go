package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kluncker/rockville-cg-app/internal/email/emailtest"
	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/notify"
	"github.com/Kluncker/rockville-cg-app/internal/store"
)

var eastern = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type memLease struct {
	held map[string]bool
	err  error
}

func (l *memLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memLease) Release(ctx context.Context, key string) error {
	delete(l.held, key)
	return nil
}

type env struct {
	st     *store.MemoryStore
	sender *emailtest.Recorder
	s      *Scheduler
}

// today is 2026-03-01 at 09:00 in New York.
func newEnv(t *testing.T, lease Lease) *env {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	for _, u := range []models.User{
		{ID: "leader", Email: "leader@x.org", Role: models.RoleLeader},
		{ID: "creator", Email: "creator@x.org", Role: models.RoleMember},
		{ID: "ann", Email: "ann@x.org", DisplayName: "Ann", FamilyID: "f1"},
		{ID: "sam", Email: "sam@x.org", FamilyID: "f1"},
	} {
		require.NoError(t, st.PutUser(ctx, u))
	}
	require.NoError(t, st.PutEvent(ctx, models.Event{ID: "ev1", Title: "Picnic", Date: "2026-03-08", CreatedBy: "creator"}))

	sender := &emailtest.Recorder{}
	log, _ := test.NewNullLogger()
	s := NewScheduler(Deps{
		Store:    st,
		Sender:   sender,
		Composer: notify.NewComposer("https://app.example.org", eastern),
		Lease:    lease,
		Location: eastern,
		Log:      log,
	})
	s.Now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, eastern) }
	return &env{st: st, sender: sender, s: s}
}

func (e *env) putTask(t *testing.T, task models.Task) {
	t.Helper()
	if task.EventID == "" {
		task.EventID = "ev1"
	}
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	require.NoError(t, e.st.PutTask(context.Background(), task))
}

func (e *env) task(t *testing.T, id string) models.Task {
	t.Helper()
	got, err := e.st.GetTaskByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	return *got
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, eastern)

	d, err := DaysUntil("2026-03-08", now, eastern)
	require.NoError(t, err)
	assert.Equal(t, 7, d)

	d, err = DaysUntil("2026-03-01", now, eastern)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	d, err = DaysUntil("2026-02-27", now, eastern)
	require.NoError(t, err)
	assert.Equal(t, -2, d)

	// 04:30 UTC on the 2nd is still the 1st in New York
	d, err = DaysUntil("2026-03-08", time.Date(2026, 3, 2, 4, 30, 0, 0, time.UTC), eastern)
	require.NoError(t, err)
	assert.Equal(t, 7, d)

	// spans the March DST change
	d, err = DaysUntil("2026-03-22", now, eastern)
	require.NoError(t, err)
	assert.Equal(t, 21, d)

	_, err = DaysUntil("next week", now, eastern)
	assert.Error(t, err)
}

func TestOneWeekReminder(t *testing.T) {
	e := newEnv(t, nil)
	e.putTask(t, models.Task{ID: "t1", Title: "Snacks", EventDate: "2026-03-08", AssignedTo: "ann"})

	rep, err := e.s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 1, Sent: 1}, rep)

	sent := e.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Task Reminder (1 week): Snacks", sent[0].Subject)
	assert.ElementsMatch(t, []string{"ann@x.org", "sam@x.org"}, sent[0].To)
	assert.ElementsMatch(t, []string{"leader@x.org", "creator@x.org"}, sent[0].CC)

	got := e.task(t, "t1")
	assert.True(t, got.EmailReminders.OneWeekSent)
	assert.False(t, got.EmailReminders.TwoWeekSent)
	assert.Equal(t, e.s.Now().UnixMilli(), got.EmailReminders.LastReminderSent)
}

func TestNoDoubleReminderSameDay(t *testing.T) {
	e := newEnv(t, nil)
	e.putTask(t, models.Task{ID: "t1", Title: "Snacks", EventDate: "2026-03-08", AssignedTo: "ann"})

	_, err := e.s.Sweep(context.Background())
	require.NoError(t, err)
	rep, err := e.s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Sent)
	assert.Equal(t, 1, rep.Skipped)
	assert.Len(t, e.sender.Sent(), 1)
}

func TestOffsetsAreExact(t *testing.T) {
	e := newEnv(t, nil)
	dates := map[string]string{
		"d22": "2026-03-23",
		"d21": "2026-03-22",
		"d15": "2026-03-16",
		"d14": "2026-03-15",
		"d8":  "2026-03-09",
		"d0":  "2026-03-01",
		"dm1": "2026-02-28",
	}
	for id, date := range dates {
		e.putTask(t, models.Task{ID: id, Title: id, EventDate: date, AssignedTo: "ann"})
	}

	rep, err := e.s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, rep.Scanned)
	assert.Equal(t, 3, rep.Sent)
	assert.Equal(t, 4, rep.Skipped)

	assert.True(t, e.task(t, "d21").EmailReminders.ThreeWeekSent)
	assert.True(t, e.task(t, "d14").EmailReminders.TwoWeekSent)
	assert.True(t, e.task(t, "d0").EmailReminders.DayOfSent)
	assert.Equal(t, models.EmailReminders{}, e.task(t, "d22").EmailReminders)
	assert.Equal(t, models.EmailReminders{}, e.task(t, "d8").EmailReminders)
}

func TestSkipsUnassignedDeclinedAndFlagged(t *testing.T) {
	e := newEnv(t, nil)
	e.putTask(t, models.Task{ID: "unassigned", EventDate: "2026-03-08"})
	e.putTask(t, models.Task{ID: "declined", EventDate: "2026-03-08", AssignedTo: "ann", Status: models.StatusDeclined})
	e.putTask(t, models.Task{
		ID: "flagged", EventDate: "2026-03-08", AssignedTo: "ann",
		EmailReminders: models.EmailReminders{OneWeekSent: true},
	})

	rep, err := e.s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 2, Skipped: 2}, rep)
	assert.Empty(t, e.sender.Sent())
}

func TestConfirmedTaskReminderHasNoButtons(t *testing.T) {
	e := newEnv(t, nil)
	e.putTask(t, models.Task{ID: "t1", Title: "Snacks", EventDate: "2026-03-08", AssignedTo: "ann", Status: models.StatusConfirmed})
	require.NoError(t, e.st.PutToken(context.Background(), models.ActionToken{
		Token: "c1", TaskID: "t1", UserID: "ann", Action: models.ActionConfirm, ExpiresAt: e.s.Now().Add(time.Hour).UnixMilli(),
	}))

	_, err := e.s.Sweep(context.Background())
	require.NoError(t, err)
	sent := e.sender.Sent()
	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0].HTML, "token=c1")
	assert.Contains(t, sent[0].HTML, "already confirmed")
}

func TestPendingReminderReusesLatestTokens(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.putTask(t, models.Task{ID: "t1", Title: "Snacks", EventDate: "2026-03-08", AssignedTo: "ann"})
	exp := e.s.Now().Add(24 * time.Hour).UnixMilli()
	for _, tok := range []models.ActionToken{
		{Token: "old-c", TaskID: "t1", UserID: "ann", Action: models.ActionConfirm, CreatedAt: 1, ExpiresAt: exp},
		{Token: "old-d", TaskID: "t1", UserID: "ann", Action: models.ActionDecline, CreatedAt: 1, ExpiresAt: exp},
		{Token: "new-c", TaskID: "t1", UserID: "ann", Action: models.ActionConfirm, CreatedAt: 2, ExpiresAt: exp},
		{Token: "new-d", TaskID: "t1", UserID: "ann", Action: models.ActionDecline, CreatedAt: 2, ExpiresAt: exp},
		{Token: "other-c", TaskID: "t1", UserID: "bob", Action: models.ActionConfirm, CreatedAt: 3, ExpiresAt: exp},
	} {
		require.NoError(t, e.st.PutToken(ctx, tok))
	}

	_, err := e.s.Sweep(ctx)
	require.NoError(t, err)
	sent := e.sender.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTML, "token=new-c")
	assert.Contains(t, sent[0].HTML, "token=new-d")
	assert.NotContains(t, sent[0].HTML, "other-c")

	// tokens are read, never minted
	toks, err := e.st.ListUnusedTokensForTask(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, toks, 5)
}

func TestFailuresAreCountedAndSweepContinues(t *testing.T) {
	e := newEnv(t, nil)
	e.putTask(t, models.Task{ID: "a-missing-event", EventID: "gone", EventDate: "2026-03-08", AssignedTo: "ann"})
	e.putTask(t, models.Task{ID: "b-missing-user", EventDate: "2026-03-08", AssignedTo: "ghost"})
	e.putTask(t, models.Task{ID: "c-bad-date", EventDate: "soon", AssignedTo: "ann"})
	e.putTask(t, models.Task{ID: "d-ok", Title: "ok", EventDate: "2026-03-08", AssignedTo: "ann"})

	rep, err := e.s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 4, Sent: 1, Failed: 3}, rep)
}

func TestSendFailureLeavesFlagUnset(t *testing.T) {
	e := newEnv(t, nil)
	e.putTask(t, models.Task{ID: "t1", EventDate: "2026-03-08", AssignedTo: "ann"})
	e.sender.Err = errors.New("provider down")

	rep, err := e.s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.False(t, e.task(t, "t1").EmailReminders.OneWeekSent)
}

func TestLeasePreventsOverlappingSweep(t *testing.T) {
	lease := &memLease{held: map[string]bool{"reminders:sweep": true}}
	e := newEnv(t, lease)
	e.putTask(t, models.Task{ID: "t1", EventDate: "2026-03-08", AssignedTo: "ann"})

	_, err := e.s.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrLeaseHeld)
	assert.Empty(t, e.sender.Sent())
}

func TestSameDayRerunAfterFailure(t *testing.T) {
	lease := &memLease{}
	e := newEnv(t, lease)
	e.putTask(t, models.Task{ID: "t1", EventDate: "2026-03-08", AssignedTo: "ann"})

	e.sender.Err = errors.New("provider down")
	rep, err := e.s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.False(t, lease.held["reminders:sweep"], "released when the sweep returns")

	e.sender.Err = nil
	rep, err = e.s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)

	// a third run finds the flag set
	rep, err = e.s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 1, Skipped: 1}, rep)
	assert.Len(t, e.sender.Sent(), 1)
}

func TestLeaseErrorFallsBackToFlags(t *testing.T) {
	e := newEnv(t, &memLease{err: errors.New("redis down")})
	e.putTask(t, models.Task{ID: "t1", EventDate: "2026-03-08", AssignedTo: "ann"})

	rep, err := e.s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
}

func TestNextRun(t *testing.T) {
	before := time.Date(2026, 3, 1, 8, 0, 0, 0, eastern)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, eastern), NextRun(before, 9, eastern))

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, eastern)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, eastern), NextRun(at, 9, eastern))

	// 01:00 UTC on the 2nd is the evening of the 1st in New York
	utc := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	assert.True(t, NextRun(utc, 9, eastern).Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, eastern)))
}
