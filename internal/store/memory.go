package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/Kluncker/rockville-cg-app/internal/models"
)

// MemoryStore keeps every collection in process. Used for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[string]models.Task
	users  map[string]models.User
	events map[string]models.Event
	tokens map[string]models.ActionToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:  map[string]models.Task{},
		users:  map[string]models.User{},
		events: map[string]models.Event{},
		tokens: map[string]models.ActionToken{},
	}
}

func (s *MemoryStore) PutTask(ctx context.Context, t models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

func (s *MemoryStore) GetTaskByID(ctx context.Context, taskID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryStore) DeleteTask(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

func (s *MemoryStore) ListTasksByStatus(ctx context.Context, statuses ...string) ([]models.Task, error) {
	return s.listTasks(ctx, func(t models.Task) bool {
		return slices.Contains(statuses, t.Status)
	})
}

func (s *MemoryStore) ListTasksByEvent(ctx context.Context, eventID string) ([]models.Task, error) {
	return s.listTasks(ctx, func(t models.Task) bool { return t.EventID == eventID })
}

func (s *MemoryStore) ListTasksByAssignees(ctx context.Context, userIDs ...string) ([]models.Task, error) {
	return s.listTasks(ctx, func(t models.Task) bool {
		return t.AssignedTo != "" && slices.Contains(userIDs, t.AssignedTo)
	})
}

func (s *MemoryStore) listTasks(ctx context.Context, match func(models.Task) bool) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) TransitionTask(ctx context.Context, taskID, from, to, actorID string, nowMs int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	switch to {
	case models.StatusConfirmed:
		t.ConfirmedAt = nowMs
		t.ConfirmedBy = actorID
	case models.StatusDeclined:
		t.DeclinedAt = nowMs
		t.DeclinedBy = actorID
	}
	t.UpdatedAt = nowMs
	s.tasks[taskID] = t
	return true, nil
}

func (s *MemoryStore) AssignTask(ctx context.Context, taskID, assigneeID string, reminders *models.EmailReminders, nowMs int64) error {
	return s.updateTask(ctx, taskID, func(t *models.Task) {
		t.AssignedTo = assigneeID
		t.Status = models.StatusPending
		if reminders != nil {
			t.EmailReminders = *reminders
		}
		t.UpdatedAt = nowMs
	})
}

func (s *MemoryStore) UpdateTaskFields(ctx context.Context, taskID string, f TaskFields, nowMs int64) error {
	return s.updateTask(ctx, taskID, func(t *models.Task) {
		t.Title = f.Title
		t.Description = f.Description
		t.EventDate = f.EventDate
		t.AssignedTo = f.AssignedTo
		t.UpdatedAt = nowMs
	})
}

func (s *MemoryStore) ResetReminders(ctx context.Context, taskID string, reminders models.EmailReminders, nowMs int64) error {
	return s.updateTask(ctx, taskID, func(t *models.Task) {
		t.EmailReminders = reminders
		t.UpdatedAt = nowMs
	})
}

func (s *MemoryStore) MarkAssignmentSent(ctx context.Context, taskID, assigneeID string, nowMs int64) error {
	return s.updateTask(ctx, taskID, func(t *models.Task) {
		t.EmailReminders.AssignmentSent = true
		t.EmailReminders.NotifiedAssignee = assigneeID
		t.EmailReminders.LastEmailSent = nowMs
	})
}

func (s *MemoryStore) MarkReminderSent(ctx context.Context, taskID string, flag models.ReminderFlag, nowMs int64) error {
	return s.updateTask(ctx, taskID, func(t *models.Task) {
		t.EmailReminders.MarkSent(flag, nowMs)
	})
}

func (s *MemoryStore) updateTask(ctx context.Context, taskID string, fn func(*models.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrNoSuchItem
	}
	fn(&t)
	s.tasks[taskID] = t
	return nil
}

func (s *MemoryStore) PutUser(ctx context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *MemoryStore) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListUsersByRole(ctx context.Context, roles ...string) ([]models.User, error) {
	return s.listUsers(ctx, func(u models.User) bool { return slices.Contains(roles, u.Role) })
}

func (s *MemoryStore) ListUsersByFamily(ctx context.Context, familyID string) ([]models.User, error) {
	return s.listUsers(ctx, func(u models.User) bool { return u.FamilyID == familyID })
}

func (s *MemoryStore) listUsers(ctx context.Context, match func(models.User) bool) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.User{}
	for _, u := range s.users {
		if match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PutEvent(ctx context.Context, e models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
	return nil
}

func (s *MemoryStore) GetEventByID(ctx context.Context, eventID string) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) DeleteEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, eventID)
	return nil
}

func (s *MemoryStore) PutToken(ctx context.Context, t models.ActionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.Token] = t
	return nil
}

func (s *MemoryStore) FindUnusedToken(ctx context.Context, token string) (*models.ActionToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[token]
	if !ok || t.Used {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryStore) MarkTokenUsed(ctx context.Context, token string, nowMs int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || t.Used {
		return false, nil
	}
	t.Used = true
	t.UsedAt = nowMs
	s.tokens[token] = t
	return true, nil
}

func (s *MemoryStore) ListUnusedTokensForTask(ctx context.Context, taskID string) ([]models.ActionToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.ActionToken{}
	for _, t := range s.tokens {
		if t.TaskID == taskID && !t.Used {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
