package lifecycle

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kluncker/rockville-cg-app/internal/email"
	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/notify"
	"github.com/Kluncker/rockville-cg-app/internal/recipients"
)

func (m *Manager) loadEvent(ctx context.Context, eventID string) (models.Event, error) {
	e, err := m.store.GetEventByID(ctx, eventID)
	if err != nil {
		return models.Event{}, fmt.Errorf("get event %s: %w", eventID, err)
	}
	if e == nil {
		return models.Event{}, fmt.Errorf("event %s not found", eventID)
	}
	return *e, nil
}

// loadUser falls back to a bare user carrying only the id.
func (m *Manager) loadUser(ctx context.Context, userID string) (models.User, bool, error) {
	if userID == "" {
		return models.User{}, false, nil
	}
	u, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, false, fmt.Errorf("get user %s: %w", userID, err)
	}
	if u == nil {
		return models.User{ID: userID}, false, nil
	}
	return *u, true, nil
}

// notifyAssigned mails the assignee's household with a fresh token pair and
// records that the assignment email went out.
func (m *Manager) notifyAssigned(ctx context.Context, t models.Task) error {
	event, err := m.loadEvent(ctx, t.EventID)
	if err != nil {
		return err
	}
	assignee, found, err := m.loadUser(ctx, t.AssignedTo)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("assignee %s not found", t.AssignedTo)
	}

	to, err := m.resolver.FamilyMemberEmails(ctx, assignee.ID)
	if err != nil {
		return err
	}
	if to.Len() == 0 {
		return fmt.Errorf("assigned email for task %s: %w", t.ID, email.ErrNoRecipients)
	}
	cc, err := m.resolver.CCRecipients(ctx, event.CreatedBy)
	if err != nil {
		return err
	}

	var links *notify.Links
	if m.minter != nil {
		pair, err := m.minter.Mint(ctx, t.ID, assignee.ID, assignee.Email)
		if err != nil {
			// the email still goes out, pointing at the dashboard instead
			m.log.WithField("task_id", t.ID).WithError(err).Warn("mint action tokens failed")
		} else {
			links = m.composer.ActionLinks(pair.Confirm, pair.Decline)
		}
	}

	msg, err := m.composer.Assigned(t, event, assignee, to, cc, links)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send assigned email: %w", err)
	}
	m.log.WithFields(logrus.Fields{
		"task_id": t.ID,
		"to":      msg.To,
		"cc":      len(msg.CC),
	}).Info("assigned email sent")

	if err := m.store.MarkAssignmentSent(ctx, t.ID, assignee.ID, m.nowMs()); err != nil {
		return fmt.Errorf("mark assignment sent %s: %w", t.ID, err)
	}
	return nil
}

// notifyConfirmed mails the assignee, copying leaders and the event creator.
func (m *Manager) notifyConfirmed(ctx context.Context, t models.Task) error {
	event, err := m.loadEvent(ctx, t.EventID)
	if err != nil {
		return err
	}
	assignee, found, err := m.loadUser(ctx, t.AssignedTo)
	if err != nil {
		return err
	}
	actor, _, err := m.loadUser(ctx, t.ConfirmedBy)
	if err != nil {
		return err
	}
	if actor.ID == "" {
		actor = assignee
	}

	to := recipients.NewSet(assignee.Email)
	if !found || to.Len() == 0 {
		return fmt.Errorf("confirmed email for task %s: %w", t.ID, email.ErrNoRecipients)
	}
	cc, err := m.resolver.CCRecipients(ctx, event.CreatedBy)
	if err != nil {
		return err
	}

	msg, err := m.composer.Confirmed(t, event, actor, to, cc)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send confirmed email: %w", err)
	}
	m.log.WithField("task_id", t.ID).Info("confirmed email sent")
	return nil
}

// notifyDeclined mails leaders and the event creator only.
func (m *Manager) notifyDeclined(ctx context.Context, t models.Task) error {
	event, err := m.loadEvent(ctx, t.EventID)
	if err != nil {
		return err
	}
	actor, _, err := m.loadUser(ctx, t.DeclinedBy)
	if err != nil {
		return err
	}

	to, err := m.resolver.CCRecipients(ctx, event.CreatedBy)
	if err != nil {
		return err
	}
	if to.Len() == 0 {
		return fmt.Errorf("declined email for task %s: %w", t.ID, email.ErrNoRecipients)
	}

	msg, err := m.composer.Declined(t, event, actor, to)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send declined email: %w", err)
	}
	m.log.WithField("task_id", t.ID).Info("declined email sent")
	return nil
}
