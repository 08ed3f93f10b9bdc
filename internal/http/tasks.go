package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kluncker/rockville-cg-app/internal/apperr"
	"github.com/Kluncker/rockville-cg-app/internal/lifecycle"
	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/reminders"
)

type CreateEventRequest struct {
	Title       string   `json:"title" validate:"required"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string   `json:"time"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Attendees   []string `json:"attendees"`
}

type CreateTaskRequest struct {
	EventID     string `json:"event_id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	EventDate   string `json:"event_date" validate:"omitempty,datetime=2006-01-02"`
	AssignedTo  string `json:"assigned_to"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1"`
	Description *string `json:"description"`
	EventDate   *string `json:"event_date" validate:"omitempty,datetime=2006-01-02"`
	AssignedTo  *string `json:"assigned_to"`
}

type AssignTaskRequest struct {
	AssignedTo string `json:"assigned_to"`
}

// TaskResponse reports a committed change and whether its email went out.
type TaskResponse struct {
	Task       models.Task `json:"task"`
	EmailSent  bool        `json:"email_sent"`
	EmailError string      `json:"email_error,omitempty"`
}

func taskResponse(res lifecycle.Result) TaskResponse {
	out := TaskResponse{Task: res.Task, EmailSent: res.EmailErr == nil}
	if res.EmailErr != nil {
		out.EmailError = res.EmailErr.Error()
	}
	return out
}

func (a *App) createEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	u, _ := userFrom(r.Context())

	res, err := a.Lifecycle.CreateEvent(r.Context(), lifecycle.EventInput{
		Title:       req.Title,
		Date:        req.Date,
		Time:        req.Time,
		Location:    req.Location,
		Description: req.Description,
		Attendees:   req.Attendees,
		CreatedBy:   u.ID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	body := map[string]any{"event": res.Event, "email_sent": res.EmailErr == nil}
	writeJSON(w, http.StatusCreated, body)
}

func (a *App) deleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	n, err := a.Lifecycle.DeleteEvent(r.Context(), eventID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "event_id": eventID, "tasks_deleted": n})
}

func (a *App) createTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	t, err := a.Lifecycle.CreateTask(r.Context(), lifecycle.TaskInput{
		EventID:     req.EventID,
		Title:       req.Title,
		Description: req.Description,
		EventDate:   req.EventDate,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *App) updateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	t, err := a.Lifecycle.UpdateTask(r.Context(), chi.URLParam(r, "task_id"), lifecycle.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		EventDate:   req.EventDate,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *App) assignTask(w http.ResponseWriter, r *http.Request) {
	var req AssignTaskRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.Lifecycle.AssignTask(r.Context(), chi.URLParam(r, "task_id"), req.AssignedTo)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse(res))
}

// myTasks lists what the caller's household has been asked to do.
func (a *App) myTasks(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	tasks, err := a.Lifecycle.TasksForHousehold(r.Context(), u.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (a *App) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := a.Lifecycle.Task(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *App) getEvent(w http.ResponseWriter, r *http.Request) {
	e, tasks, err := a.Lifecycle.Event(r.Context(), chi.URLParam(r, "event_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": e, "tasks": tasks})
}

func (a *App) confirmTask(w http.ResponseWriter, r *http.Request) {
	a.actOnTask(w, r, a.Lifecycle.Confirm)
}

func (a *App) declineTask(w http.ResponseWriter, r *http.Request) {
	a.actOnTask(w, r, a.Lifecycle.Decline)
}

type lifecycleAction func(ctx context.Context, taskID, userID string) (lifecycle.Result, error)

func (a *App) actOnTask(w http.ResponseWriter, r *http.Request, act lifecycleAction) {
	taskID := chi.URLParam(r, "task_id")
	u, _ := userFrom(r.Context())

	t, err := a.Store.GetTaskByID(r.Context(), taskID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if t == nil {
		a.writeError(w, r, apperr.New(apperr.NotFound, "task not found"))
		return
	}
	ok, err := a.canActFor(r.Context(), u, t.AssignedTo)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !ok {
		a.writeError(w, r, apperr.New(apperr.PermissionDenied, "only the assignee, their family or a leader can do this"))
		return
	}

	res, err := act(r.Context(), taskID, u.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse(res))
}

func (a *App) runReminders(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Reminders.Sweep(r.Context())
	if errors.Is(err, reminders.ErrLeaseHeld) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
