// Package notify renders the task and event emails.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/Kluncker/rockville-cg-app/internal/email"
	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/recipients"
)

const displayDate = "Monday, January 2, 2006"

// Links are the confirm/decline buttons of an email. nil means no buttons.
type Links struct {
	ConfirmURL string
	DeclineURL string
}

type Composer struct {
	BaseURL  string
	AppName  string
	Location *time.Location
}

func NewComposer(baseURL string, loc *time.Location) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	return &Composer{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		AppName:  "Rockville CG",
		Location: loc,
	}
}

// ActionLinks builds the token redemption URLs. Either token may be empty, in
// which case no buttons are rendered.
func (c *Composer) ActionLinks(confirmToken, declineToken string) *Links {
	if confirmToken == "" || declineToken == "" {
		return nil
	}
	return &Links{
		ConfirmURL: c.BaseURL + "/api/task/confirm?token=" + url.QueryEscape(confirmToken),
		DeclineURL: c.BaseURL + "/api/task/decline?token=" + url.QueryEscape(declineToken),
	}
}

type taskView struct {
	AppName        string
	Task           models.Task
	Event          models.Event
	EventDate      string
	DueDate        string
	AssigneeName   string
	IncludesFamily bool
	Links          *Links
	DashboardURL   string
	EventURL       string

	Label     string
	Color     string
	DaysUntil int
	Confirmed bool

	ActorName string
	At        string
}

func (c *Composer) view(task models.Task, event models.Event) taskView {
	return taskView{
		AppName:      c.AppName,
		Task:         task,
		Event:        event,
		EventDate:    c.formatDate(event.Date),
		DueDate:      c.formatDate(task.EventDate),
		DashboardURL: c.BaseURL + "/dashboard",
		EventURL:     c.BaseURL + "/event/" + url.PathEscape(event.ID),
	}
}

// Assigned is sent to the assignee's household when a task gets a new owner.
func (c *Composer) Assigned(task models.Task, event models.Event, assignee models.User, to, cc recipients.Set, links *Links) (email.Message, error) {
	v := c.view(task, event)
	v.AssigneeName = assignee.Name()
	v.IncludesFamily = to.Len() > 1
	v.Links = links
	subject := fmt.Sprintf("New Task Assigned: %s - Due %s", task.Title, c.formatDate(task.EventDate))
	return c.render(assignedTmpl, v, subject, to, cc)
}

// Reminder is the periodic nudge for an assigned task. Confirmed tasks get no
// action buttons.
func (c *Composer) Reminder(task models.Task, event models.Event, assignee models.User, label string, daysUntil int, to, cc recipients.Set, links *Links) (email.Message, error) {
	v := c.view(task, event)
	v.AssigneeName = assignee.Name()
	v.IncludesFamily = to.Len() > 1
	v.Label = label
	v.DaysUntil = daysUntil
	v.Confirmed = task.Status == models.StatusConfirmed
	v.Color = reminderColor(daysUntil)
	if !v.Confirmed {
		v.Links = links
	}
	subject := fmt.Sprintf("Task Reminder (%s): %s", label, task.Title)
	return c.render(reminderTmpl, v, subject, to, cc)
}

func (c *Composer) Confirmed(task models.Task, event models.Event, actor models.User, to, cc recipients.Set) (email.Message, error) {
	v := c.view(task, event)
	v.ActorName = actor.Name()
	v.At = c.formatMillis(task.ConfirmedAt)
	subject := fmt.Sprintf("Task Confirmed: %s", task.Title)
	return c.render(confirmedTmpl, v, subject, to, cc)
}

func (c *Composer) Declined(task models.Task, event models.Event, actor models.User, to recipients.Set) (email.Message, error) {
	v := c.view(task, event)
	v.ActorName = actor.Name()
	v.At = c.formatMillis(task.DeclinedAt)
	subject := fmt.Sprintf("Task Declined: %s", task.Title)
	return c.render(declinedTmpl, v, subject, to, recipients.Set{})
}

func (c *Composer) EventCreated(event models.Event, to recipients.Set) (email.Message, error) {
	v := c.view(models.Task{}, event)
	subject := fmt.Sprintf("New Event Created - %s", event.Title)
	return c.render(eventCreatedTmpl, v, subject, to, recipients.Set{})
}

func (c *Composer) render(t *template.Template, v taskView, subject string, to, cc recipients.Set) (email.Message, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return email.Message{}, fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return email.Message{
		To:      to.Slice(),
		CC:      cc.Without(to).Slice(),
		Subject: subject,
		HTML:    buf.String(),
	}, nil
}

// formatDate renders a YYYY-MM-DD date; anything unparsable is shown as is.
func (c *Composer) formatDate(d string) string {
	t, err := time.ParseInLocation(models.DateLayout, d, c.Location)
	if err != nil {
		return d
	}
	return t.Format(displayDate)
}

func (c *Composer) formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).In(c.Location).Format("Jan 2, 2006 3:04 PM MST")
}

func reminderColor(daysUntil int) string {
	switch {
	case daysUntil <= 0:
		return "#d32f2f"
	case daysUntil <= 7:
		return "#f57c00"
	default:
		return "#1976d2"
	}
}
