package store

import (
	"context"
	"errors"

	"github.com/Kluncker/rockville-cg-app/internal/models"
)

// ErrNoSuchItem is returned by field updates that target a missing document.
// Getters return (nil, nil) instead.
var ErrNoSuchItem = errors.New("store: no such item")

type TaskStore interface {
	PutTask(ctx context.Context, t models.Task) error
	GetTaskByID(ctx context.Context, taskID string) (*models.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	ListTasksByStatus(ctx context.Context, statuses ...string) ([]models.Task, error)
	ListTasksByEvent(ctx context.Context, eventID string) ([]models.Task, error)
	ListTasksByAssignees(ctx context.Context, userIDs ...string) ([]models.Task, error)

	// UpdateTaskFields writes the editable fields only. Status and the
	// confirm/decline stamps are left as stored.
	UpdateTaskFields(ctx context.Context, taskID string, f TaskFields, nowMs int64) error

	// TransitionTask moves a task from one status to another and stamps the
	// actor, only if the stored status still equals from. It reports false when
	// the condition did not hold.
	TransitionTask(ctx context.Context, taskID, from, to, actorID string, nowMs int64) (bool, error)

	// AssignTask sets the assignee and puts the task back to pending. A non-nil
	// reminders value replaces the stored reminder state.
	AssignTask(ctx context.Context, taskID, assigneeID string, reminders *models.EmailReminders, nowMs int64) error

	// ResetReminders replaces the reminder state without touching status.
	ResetReminders(ctx context.Context, taskID string, reminders models.EmailReminders, nowMs int64) error

	// MarkAssignmentSent records that assigneeID was sent the assignment email.
	MarkAssignmentSent(ctx context.Context, taskID, assigneeID string, nowMs int64) error
	MarkReminderSent(ctx context.Context, taskID string, flag models.ReminderFlag, nowMs int64) error
}

// TaskFields are the fields an edit may change.
type TaskFields struct {
	Title       string
	Description string
	EventDate   string
	AssignedTo  string
}

type UserStore interface {
	PutUser(ctx context.Context, u models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	// GetUsersByIDs skips ids with no matching document.
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error)
	ListUsersByRole(ctx context.Context, roles ...string) ([]models.User, error)
	ListUsersByFamily(ctx context.Context, familyID string) ([]models.User, error)
}

type EventStore interface {
	PutEvent(ctx context.Context, e models.Event) error
	GetEventByID(ctx context.Context, eventID string) (*models.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

type TokenStore interface {
	PutToken(ctx context.Context, t models.ActionToken) error
	// FindUnusedToken returns nil for unknown tokens and for used ones alike.
	FindUnusedToken(ctx context.Context, token string) (*models.ActionToken, error)
	// MarkTokenUsed flips used to true only if it is still false.
	MarkTokenUsed(ctx context.Context, token string, nowMs int64) (bool, error)
	ListUnusedTokensForTask(ctx context.Context, taskID string) ([]models.ActionToken, error)
}

type Store interface {
	TaskStore
	UserStore
	EventStore
	TokenStore
}
