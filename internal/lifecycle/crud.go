package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kluncker/rockville-cg-app/internal/apperr"
	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/recipients"
	"github.com/Kluncker/rockville-cg-app/internal/store"
)

type EventInput struct {
	Title       string
	Date        string
	Time        string
	Location    string
	Description string
	Attendees   []string
	CreatedBy   string
}

type EventResult struct {
	Event    models.Event
	EmailErr error
}

// CreateEvent stores the event and tells its attendees about it.
func (m *Manager) CreateEvent(ctx context.Context, in EventInput) (EventResult, error) {
	if strings.TrimSpace(in.Title) == "" {
		return EventResult{}, apperr.New(apperr.InvalidArgument, "title is required")
	}
	if _, err := time.Parse(models.DateLayout, in.Date); err != nil {
		return EventResult{}, apperr.New(apperr.InvalidArgument, "date must be YYYY-MM-DD")
	}

	e := models.Event{
		ID:          m.NewID(),
		Title:       in.Title,
		Date:        in.Date,
		Time:        in.Time,
		Location:    in.Location,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		Attendees:   in.Attendees,
		CreatedAt:   m.nowMs(),
	}
	if err := m.store.PutEvent(ctx, e); err != nil {
		return EventResult{}, fmt.Errorf("put event: %w", err)
	}

	res := EventResult{Event: e}
	res.EmailErr = m.notifyEventCreated(ctx, e)
	if res.EmailErr != nil {
		m.log.WithField("event_id", e.ID).WithError(res.EmailErr).Error("event email failed")
	}
	return res, nil
}

func (m *Manager) notifyEventCreated(ctx context.Context, e models.Event) error {
	tasks, err := m.store.ListTasksByEvent(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("list tasks for event %s: %w", e.ID, err)
	}
	to, err := m.resolver.AttendeeEmails(ctx, recipients.EventAttendeeIDs(e, tasks))
	if err != nil {
		return err
	}
	if to.Len() == 0 {
		// nobody to tell yet
		return nil
	}
	msg, err := m.composer.EventCreated(e, to)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send event email: %w", err)
	}
	return nil
}

// DeleteEvent removes the event and every task that belongs to it. It returns
// how many tasks were removed.
func (m *Manager) DeleteEvent(ctx context.Context, eventID string) (int, error) {
	e, err := m.store.GetEventByID(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("get event %s: %w", eventID, err)
	}
	if e == nil {
		return 0, apperr.New(apperr.NotFound, "event not found")
	}

	tasks, err := m.store.ListTasksByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("list tasks for event %s: %w", eventID, err)
	}
	for i, t := range tasks {
		if err := m.store.DeleteTask(ctx, t.ID); err != nil {
			return i, fmt.Errorf("delete task %s: %w", t.ID, err)
		}
	}
	if err := m.store.DeleteEvent(ctx, eventID); err != nil {
		return len(tasks), fmt.Errorf("delete event %s: %w", eventID, err)
	}
	m.log.WithFields(logrus.Fields{
		"event_id": eventID,
		"tasks":    len(tasks),
	}).Info("event deleted")
	return len(tasks), nil
}

type TaskInput struct {
	EventID     string
	Title       string
	Description string
	// EventDate defaults to the event's date.
	EventDate  string
	AssignedTo string
}

// CreateTask stores a pending task. Assignment side effects run through the
// change publisher, or inline when there is none.
func (m *Manager) CreateTask(ctx context.Context, in TaskInput) (models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Task{}, apperr.New(apperr.InvalidArgument, "title is required")
	}
	e, err := m.store.GetEventByID(ctx, in.EventID)
	if err != nil {
		return models.Task{}, fmt.Errorf("get event %s: %w", in.EventID, err)
	}
	if e == nil {
		return models.Task{}, apperr.New(apperr.NotFound, "event not found")
	}
	date := in.EventDate
	if date == "" {
		date = e.Date
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return models.Task{}, apperr.New(apperr.InvalidArgument, "event_date must be YYYY-MM-DD")
	}
	if err := m.checkUser(ctx, in.AssignedTo); err != nil {
		return models.Task{}, err
	}

	now := m.nowMs()
	t := models.Task{
		ID:          m.NewID(),
		EventID:     in.EventID,
		Title:       in.Title,
		Description: in.Description,
		EventDate:   date,
		AssignedTo:  in.AssignedTo,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.PutTask(ctx, t); err != nil {
		return models.Task{}, fmt.Errorf("put task: %w", err)
	}
	m.dispatch(ctx, ChangeCreated, nil, t)
	if stored, err := m.store.GetTaskByID(ctx, t.ID); err == nil && stored != nil {
		return *stored, nil
	}
	return t, nil
}

// TaskPatch holds the editable fields; nil leaves a field alone.
type TaskPatch struct {
	Title       *string
	Description *string
	EventDate   *string
	AssignedTo  *string
}

// UpdateTask edits a task. A changed assignee keeps the current status; the
// update trigger resets reminders and mails the new assignee.
func (m *Manager) UpdateTask(ctx context.Context, taskID string, p TaskPatch) (models.Task, error) {
	before, err := m.getTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	after := *before
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return models.Task{}, apperr.New(apperr.InvalidArgument, "title is required")
		}
		after.Title = *p.Title
	}
	if p.Description != nil {
		after.Description = *p.Description
	}
	if p.EventDate != nil {
		if _, err := time.Parse(models.DateLayout, *p.EventDate); err != nil {
			return models.Task{}, apperr.New(apperr.InvalidArgument, "event_date must be YYYY-MM-DD")
		}
		after.EventDate = *p.EventDate
	}
	if p.AssignedTo != nil && *p.AssignedTo != before.AssignedTo {
		if err := m.checkUser(ctx, *p.AssignedTo); err != nil {
			return models.Task{}, err
		}
		after.AssignedTo = *p.AssignedTo
	}
	after.UpdatedAt = m.nowMs()

	// field-level write: a confirm or decline landing meanwhile keeps its status
	err = m.store.UpdateTaskFields(ctx, taskID, store.TaskFields{
		Title:       after.Title,
		Description: after.Description,
		EventDate:   after.EventDate,
		AssignedTo:  after.AssignedTo,
	}, after.UpdatedAt)
	if errors.Is(err, store.ErrNoSuchItem) {
		return models.Task{}, apperr.New(apperr.NotFound, "task not found")
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("update task %s: %w", taskID, err)
	}
	m.dispatch(ctx, ChangeUpdated, before, after)
	if t, err := m.store.GetTaskByID(ctx, taskID); err == nil && t != nil {
		return *t, nil
	}
	return after, nil
}

func (m *Manager) checkUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	u, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user %s: %w", userID, err)
	}
	if u == nil {
		return apperr.New(apperr.NotFound, "assignee not found")
	}
	return nil
}

// dispatch hands a stored change to the worker, or runs the trigger here when
// no publisher is configured or publishing fails.
func (m *Manager) dispatch(ctx context.Context, kind string, before *models.Task, after models.Task) {
	if m.publisher != nil {
		err := m.publisher.PublishTaskChange(ctx, kind, before, &after)
		if err == nil {
			return
		}
		m.log.WithField("task_id", after.ID).WithError(err).Warn("publish task change failed, running trigger inline")
	}
	switch kind {
	case ChangeCreated:
		_ = m.OnTaskCreated(ctx, after)
	case ChangeUpdated:
		_ = m.OnTaskUpdated(ctx, *before, after)
	}
}
