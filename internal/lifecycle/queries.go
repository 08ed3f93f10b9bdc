package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"github.com/Kluncker/rockville-cg-app/internal/apperr"
	"github.com/Kluncker/rockville-cg-app/internal/models"
)

// TasksForHousehold lists the tasks assigned to userID or anyone in their
// family, soonest first.
func (m *Manager) TasksForHousehold(ctx context.Context, userID string) ([]models.Task, error) {
	u, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	if u == nil {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}

	ids := []string{u.ID}
	if u.FamilyID != "" {
		members, err := m.store.ListUsersByFamily(ctx, u.FamilyID)
		if err != nil {
			return nil, fmt.Errorf("list family %s: %w", u.FamilyID, err)
		}
		for _, fm := range members {
			if fm.ID != u.ID {
				ids = append(ids, fm.ID)
			}
		}
	}

	tasks, err := m.store.ListTasksByAssignees(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("list household tasks: %w", err)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].EventDate != tasks[j].EventDate {
			return tasks[i].EventDate < tasks[j].EventDate
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

func (m *Manager) Task(ctx context.Context, taskID string) (models.Task, error) {
	t, err := m.getTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	return *t, nil
}

// Event returns the event with its tasks.
func (m *Manager) Event(ctx context.Context, eventID string) (models.Event, []models.Task, error) {
	e, err := m.store.GetEventByID(ctx, eventID)
	if err != nil {
		return models.Event{}, nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	if e == nil {
		return models.Event{}, nil, apperr.New(apperr.NotFound, "event not found")
	}
	tasks, err := m.store.ListTasksByEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, nil, fmt.Errorf("list tasks for event %s: %w", eventID, err)
	}
	return *e, tasks, nil
}
