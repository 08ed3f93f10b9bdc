// Package lifecycle owns task state transitions and the emails they trigger.
//
// Every operation commits its state change first and then tries to notify.
// A failed email never rolls the change back; it is reported in Result.EmailErr.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kluncker/rockville-cg-app/internal/apperr"
	"github.com/Kluncker/rockville-cg-app/internal/email"
	"github.com/Kluncker/rockville-cg-app/internal/logging"
	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/notify"
	"github.com/Kluncker/rockville-cg-app/internal/recipients"
	"github.com/Kluncker/rockville-cg-app/internal/store"
)

// Minter issues the confirm/decline tokens embedded in assignment emails.
type Minter interface {
	Mint(ctx context.Context, taskID, userID, userEmail string) (models.TokenPair, error)
}

const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
)

// ChangePublisher hands task changes to the worker. When it is nil or fails,
// the manager runs the triggers itself.
type ChangePublisher interface {
	PublishTaskChange(ctx context.Context, kind string, before, after *models.Task) error
}

type Result struct {
	Task     models.Task
	EmailErr error
}

type Deps struct {
	Store     store.Store
	Sender    email.Sender
	Composer  *notify.Composer
	Minter    Minter
	Publisher ChangePublisher
	Log       logrus.FieldLogger
}

type Manager struct {
	store     store.Store
	resolver  *recipients.Resolver
	sender    email.Sender
	composer  *notify.Composer
	minter    Minter
	publisher ChangePublisher
	log       logrus.FieldLogger

	Now   func() time.Time
	NewID func() string
}

func NewManager(d Deps) *Manager {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		store:     d.Store,
		resolver:  recipients.NewResolver(d.Store),
		sender:    d.Sender,
		composer:  d.Composer,
		minter:    d.Minter,
		publisher: d.Publisher,
		log:       logging.Component(log, "lifecycle"),
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

func (m *Manager) nowMs() int64 { return m.Now().UnixMilli() }

func (m *Manager) getTask(ctx context.Context, taskID string) (*models.Task, error) {
	t, err := m.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if t == nil {
		return nil, apperr.New(apperr.NotFound, "task not found")
	}
	return t, nil
}

// AssignTask gives the task to assigneeID and puts it back to pending. Moving
// it away from a previous assignee resets the reminder flags. An empty
// assigneeID unassigns the task and sends nothing.
func (m *Manager) AssignTask(ctx context.Context, taskID, assigneeID string) (Result, error) {
	t, err := m.getTask(ctx, taskID)
	if err != nil {
		return Result{}, err
	}
	if assigneeID != "" {
		u, err := m.store.GetUserByID(ctx, assigneeID)
		if err != nil {
			return Result{}, fmt.Errorf("get assignee %s: %w", assigneeID, err)
		}
		if u == nil {
			return Result{}, apperr.New(apperr.NotFound, "assignee not found")
		}
	}

	now := m.nowMs()
	var reminders *models.EmailReminders
	switch {
	case assigneeID == "":
		reminders = &models.EmailReminders{}
	case t.AssignedTo != "" && t.AssignedTo != assigneeID:
		r := models.ReassignedReminders(now)
		reminders = &r
	}
	if err := m.store.AssignTask(ctx, taskID, assigneeID, reminders, now); err != nil {
		return Result{}, fmt.Errorf("assign task %s: %w", taskID, err)
	}

	t, err = m.getTask(ctx, taskID)
	if err != nil {
		return Result{}, err
	}
	res := Result{Task: *t}
	if assigneeID == "" {
		return res, nil
	}
	res.EmailErr = m.notifyAssigned(ctx, *t)
	m.logEmailErr(res.EmailErr, t.ID, "assigned")
	return m.refresh(ctx, res), nil
}

// Confirm moves a pending task to confirmed on behalf of userID.
func (m *Manager) Confirm(ctx context.Context, taskID, userID string) (Result, error) {
	t, err := m.transition(ctx, taskID, userID, models.StatusConfirmed, "cannot confirm a non-pending task")
	if err != nil {
		return Result{}, err
	}
	res := Result{Task: *t}
	res.EmailErr = m.notifyConfirmed(ctx, *t)
	m.logEmailErr(res.EmailErr, t.ID, "confirmed")
	return res, nil
}

// Decline moves a pending task to declined on behalf of userID. Only leaders
// and the event creator hear about it.
func (m *Manager) Decline(ctx context.Context, taskID, userID string) (Result, error) {
	t, err := m.transition(ctx, taskID, userID, models.StatusDeclined, "cannot decline a non-pending task")
	if err != nil {
		return Result{}, err
	}
	res := Result{Task: *t}
	res.EmailErr = m.notifyDeclined(ctx, *t)
	m.logEmailErr(res.EmailErr, t.ID, "declined")
	return res, nil
}

func (m *Manager) transition(ctx context.Context, taskID, userID, to, rejectMsg string) (*models.Task, error) {
	t, err := m.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusPending {
		return nil, apperr.New(apperr.PreconditionFailed, "%s", rejectMsg)
	}
	ok, err := m.store.TransitionTask(ctx, taskID, models.StatusPending, to, userID, m.nowMs())
	if err != nil {
		return nil, fmt.Errorf("transition task %s to %s: %w", taskID, to, err)
	}
	if !ok {
		// someone else moved it first
		return nil, apperr.New(apperr.PreconditionFailed, "%s", rejectMsg)
	}
	return m.getTask(ctx, taskID)
}

// OnTaskCreated runs the assignment side effects for a task stored with an
// assignee. The stored task decides, so a redelivered change sends nothing.
func (m *Manager) OnTaskCreated(ctx context.Context, t models.Task) error {
	if t.AssignedTo == "" {
		return nil
	}
	stored, pending, err := m.assignmentPending(ctx, t.ID, t.AssignedTo)
	if err != nil || !pending || stored.EmailReminders.AssignmentSent {
		return err
	}
	err = m.notifyAssigned(ctx, *stored)
	m.logEmailErr(err, t.ID, "assigned")
	return err
}

// assignmentPending reloads the task and reports whether assigneeID is still
// its assignee and has not been sent the assignment email yet.
func (m *Manager) assignmentPending(ctx context.Context, taskID, assigneeID string) (*models.Task, bool, error) {
	stored, err := m.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, false, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if stored == nil || stored.AssignedTo != assigneeID {
		// deleted, or a later change owns the assignment
		return stored, false, nil
	}
	if assigneeID != "" && stored.EmailReminders.NotifiedAssignee == assigneeID {
		return stored, false, nil
	}
	return stored, true, nil
}

// OnTaskUpdated reacts to a stored change of a task.
func (m *Manager) OnTaskUpdated(ctx context.Context, before, after models.Task) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, tr := range DetectTransitions(before, after) {
		switch tr {
		case AssigneeChanged:
			stored, pending, err := m.assignmentPending(ctx, after.ID, after.AssignedTo)
			if err != nil {
				keep(err)
				continue
			}
			if !pending {
				continue
			}
			after = *stored
			if before.AssignedTo != "" {
				reset := models.ReassignedReminders(m.nowMs())
				if err := m.store.ResetReminders(ctx, after.ID, reset, m.nowMs()); err != nil {
					keep(fmt.Errorf("reset reminders %s: %w", after.ID, err))
					continue
				}
				after.EmailReminders = reset
			}
			if after.AssignedTo == "" {
				continue
			}
			err = m.notifyAssigned(ctx, after)
			m.logEmailErr(err, after.ID, "assigned")
			keep(err)
		case StatusConfirmed:
			err := m.notifyConfirmed(ctx, after)
			m.logEmailErr(err, after.ID, "confirmed")
			keep(err)
		case StatusDeclined:
			err := m.notifyDeclined(ctx, after)
			m.logEmailErr(err, after.ID, "declined")
			keep(err)
		}
	}
	return firstErr
}

func (m *Manager) refresh(ctx context.Context, res Result) Result {
	t, err := m.store.GetTaskByID(ctx, res.Task.ID)
	if err == nil && t != nil {
		res.Task = *t
	}
	return res
}

func (m *Manager) logEmailErr(err error, taskID, kind string) {
	if err == nil {
		return
	}
	m.log.WithFields(logrus.Fields{
		"task_id": taskID,
		"email":   kind,
	}).WithError(err).Error("email failed")
}
