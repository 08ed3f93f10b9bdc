// Package recipients works out who receives a notification: leaders, event
// creators, attendees and the households of assignees.
package recipients

import (
	"context"
	"fmt"

	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/store"
)

type Resolver struct {
	users store.UserStore
}

func NewResolver(users store.UserStore) *Resolver {
	return &Resolver{users: users}
}

// LeaderEmails returns every leader and admin address.
func (r *Resolver) LeaderEmails(ctx context.Context) (Set, error) {
	leaders, err := r.users.ListUsersByRole(ctx, models.RoleLeader, models.RoleAdmin)
	if err != nil {
		return Set{}, fmt.Errorf("list leaders: %w", err)
	}
	var s Set
	for _, u := range leaders {
		s.Add(u.Email)
	}
	return s, nil
}

// EventCreatorEmail returns "" when the creator is unknown or has no address.
func (r *Resolver) EventCreatorEmail(ctx context.Context, creatorID string) (string, error) {
	if creatorID == "" {
		return "", nil
	}
	u, err := r.users.GetUserByID(ctx, creatorID)
	if err != nil {
		return "", fmt.Errorf("get event creator %s: %w", creatorID, err)
	}
	if u == nil {
		return "", nil
	}
	return u.Email, nil
}

// CCRecipients is the set copied on task notifications: leaders plus the event
// creator. Callers remove the primary recipients before sending.
func (r *Resolver) CCRecipients(ctx context.Context, eventCreatorID string) (Set, error) {
	cc, err := r.LeaderEmails(ctx)
	if err != nil {
		return Set{}, err
	}
	creator, err := r.EventCreatorEmail(ctx, eventCreatorID)
	if err != nil {
		return Set{}, err
	}
	cc.Add(creator)
	return cc, nil
}

// AttendeeEmails resolves user ids, skipping unknown users and users without
// an address.
func (r *Resolver) AttendeeEmails(ctx context.Context, userIDs []string) (Set, error) {
	if len(userIDs) == 0 {
		return Set{}, nil
	}
	users, err := r.users.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return Set{}, fmt.Errorf("get attendees: %w", err)
	}
	var s Set
	for _, u := range users {
		s.Add(u.Email)
	}
	return s, nil
}

// FamilyMemberEmails returns the addresses of everyone in the user's household,
// or just the user's own address when they have no family. Any household
// member may act for the assignee.
func (r *Resolver) FamilyMemberEmails(ctx context.Context, userID string) (Set, error) {
	u, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		return Set{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	if u == nil {
		return Set{}, nil
	}
	if u.FamilyID == "" {
		return NewSet(u.Email), nil
	}

	members, err := r.users.ListUsersByFamily(ctx, u.FamilyID)
	if err != nil {
		return Set{}, fmt.Errorf("list family %s: %w", u.FamilyID, err)
	}
	s := NewSet(u.Email)
	for _, m := range members {
		s.Add(m.Email)
	}
	return s, nil
}

// EventAttendeeIDs merges the declared attendees with everyone assigned a task
// on the event.
func EventAttendeeIDs(e models.Event, tasks []models.Task) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range e.Attendees {
		add(id)
	}
	for _, t := range tasks {
		add(t.AssignedTo)
	}
	return out
}
