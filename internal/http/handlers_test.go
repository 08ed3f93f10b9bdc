package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kluncker/rockville-cg-app/internal/email/emailtest"
	"github.com/Kluncker/rockville-cg-app/internal/lifecycle"
	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/notify"
	"github.com/Kluncker/rockville-cg-app/internal/reminders"
	"github.com/Kluncker/rockville-cg-app/internal/store"
	"github.com/Kluncker/rockville-cg-app/internal/tokens"
)

var secret = []byte("test-secret")

type server struct {
	st     *store.MemoryStore
	sender *emailtest.Recorder
	iss    *tokens.Issuer
	h      http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	for _, u := range []models.User{
		{ID: "admin", Email: "admin@x.org", Role: models.RoleAdmin},
		{ID: "leader", Email: "leader@x.org", Role: models.RoleLeader},
		{ID: "ann", Email: "ann@x.org", Role: models.RoleMember, FamilyID: "f1"},
		{ID: "sam", Email: "sam@x.org", Role: models.RoleMember, FamilyID: "f1"},
		{ID: "bob", Email: "bob@x.org", Role: models.RoleMember},
	} {
		require.NoError(t, st.PutUser(ctx, u))
	}
	require.NoError(t, st.PutEvent(ctx, models.Event{ID: "ev1", Title: "Picnic", Date: "2026-03-08", CreatedBy: "leader"}))
	require.NoError(t, st.PutTask(ctx, models.Task{
		ID: "t1", EventID: "ev1", Title: "Snacks", EventDate: "2026-03-08", AssignedTo: "ann", Status: models.StatusPending,
	}))

	log, _ := test.NewNullLogger()
	sender := &emailtest.Recorder{}
	composer := notify.NewComposer("https://app.example.org", time.UTC)
	iss := tokens.NewIssuer(st, 0)
	mgr := lifecycle.NewManager(lifecycle.Deps{Store: st, Sender: sender, Composer: composer, Minter: iss, Log: log})
	app := &App{
		Store:     st,
		Lifecycle: mgr,
		Tokens:    tokens.NewService(iss, st, mgr, log),
		Reminders: reminders.NewScheduler(reminders.Deps{Store: st, Sender: sender, Composer: composer, Log: log}),
		JWTSecret: secret,
		Log:       log,
	}
	return &server{st: st, sender: sender, iss: iss, h: NewRouter(app)}
}

func (s *server) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		tok, err := IssueToken(secret, userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *server) taskStatus(t *testing.T, id string) string {
	t.Helper()
	got, err := s.st.GetTaskByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	return got.Status
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestConfirmLink(t *testing.T) {
	s := newServer(t)
	pair, err := s.iss.Mint(context.Background(), "t1", "ann", "ann@x.org")
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/task/confirm?token="+pair.Confirm, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, models.StatusConfirmed, s.taskStatus(t, "t1"))

	// spent
	rec = s.do(t, http.MethodGet, "/api/task/confirm?token="+pair.Confirm, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])

	// decline after confirm
	rec = s.do(t, http.MethodGet, "/api/task/decline?token="+pair.Decline, "", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "cannot decline a confirmed task", decodeBody(t, rec)["message"])
}

func TestExpiredLinkIsGone(t *testing.T) {
	s := newServer(t)
	s.iss.Now = func() time.Time { return time.Now().Add(-31 * 24 * time.Hour) }
	pair, err := s.iss.Mint(context.Background(), "t1", "ann", "ann@x.org")
	require.NoError(t, err)
	s.iss.Now = time.Now

	rec := s.do(t, http.MethodGet, "/api/task/decline?token="+pair.Decline, "", "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestDeclineByTokenBody(t *testing.T) {
	s := newServer(t)
	pair, err := s.iss.Mint(context.Background(), "t1", "ann", "ann@x.org")
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/tasks/decline-by-token", "", `{"token":"`+pair.Decline+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusDeclined, s.taskStatus(t, "t1"))

	rec = s.do(t, http.MethodPost, "/api/tasks/confirm-by-token", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "token is required", decodeBody(t, rec)["message"])
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/tasks/t1/confirm", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/t1/confirm", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rec = s.do(t, http.MethodPost, "/api/tasks/t1/confirm", "stranger", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfirmTaskPermissions(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/tasks/t1/confirm", "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// family members may act for the assignee
	rec = s.do(t, http.MethodPost, "/api/tasks/t1/confirm", "sam", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["email_sent"])
	assert.Equal(t, models.StatusConfirmed, s.taskStatus(t, "t1"))

	rec = s.do(t, http.MethodPost, "/api/tasks/t1/decline", "leader", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/tasks/missing/confirm", "leader", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaderOnlyRoutes(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/tasks", "ann", `{"event_id":"ev1","title":"Cups"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/reminders/run", "leader", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateTaskAndEvent(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/events", "leader", `{"title":"Retreat","date":"2026-04-01","attendees":["bob"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	ev := decodeBody(t, rec)["event"].(map[string]any)
	assert.Equal(t, "leader", ev["created_by"])
	eventID := ev["id"].(string)

	rec = s.do(t, http.MethodPost, "/api/tasks", "leader", `{"event_id":"`+eventID+`","title":"Cups","assigned_to":"bob"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	task := decodeBody(t, rec)
	assert.Equal(t, "2026-04-01", task["event_date"])
	assert.Equal(t, "pending", task["status"])

	sent := s.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "New Event Created - Retreat", sent[0].Subject)
	assert.Equal(t, []string{"bob@x.org"}, sent[1].To)
}

func TestValidationErrors(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/events", "leader", `{"title":"Retreat","date":"April 1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date must be a YYYY-MM-DD date", decodeBody(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/api/tasks", "leader", `{"title":"Cups"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "event_id is required", decodeBody(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/api/tasks", "leader", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndAssignTask(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPatch, "/api/tasks/t1", "leader", `{"title":"Drinks"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Drinks", decodeBody(t, rec)["title"])

	rec = s.do(t, http.MethodPost, "/api/tasks/t1/assign", "leader", `{"assigned_to":"bob"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	task := body["task"].(map[string]any)
	assert.Equal(t, "bob", task["assigned_to"])
	assert.Equal(t, true, body["email_sent"])

	rec = s.do(t, http.MethodPost, "/api/tasks/t1/assign", "leader", `{"assigned_to":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEvent(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodDelete, "/api/events/ev1", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["tasks_deleted"])

	rec = s.do(t, http.MethodDelete, "/api/events/ev1", "admin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunReminders(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/reminders/run", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["scanned"])
}

func TestMyTasksCoversHousehold(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	require.NoError(t, s.st.PutTask(ctx, models.Task{ID: "t2", EventID: "ev1", Title: "Chairs", EventDate: "2026-02-20", AssignedTo: "sam", Status: models.StatusPending}))
	require.NoError(t, s.st.PutTask(ctx, models.Task{ID: "t3", EventID: "ev1", Title: "Cups", EventDate: "2026-02-10", AssignedTo: "bob", Status: models.StatusPending}))

	rec := s.do(t, http.MethodGet, "/api/tasks/mine", "ann", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Tasks []models.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Tasks, 2)
	assert.Equal(t, "t2", out.Tasks[0].ID, "soonest first")
	assert.Equal(t, "t1", out.Tasks[1].ID)

	rec = s.do(t, http.MethodGet, "/api/tasks/mine", "bob", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "t3", out.Tasks[0].ID)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/tasks/mine", "", "").Code)
}

func TestGetTaskAndEvent(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/tasks/t1", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Snacks", decodeBody(t, rec)["title"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tasks/nope", "bob", "").Code)

	rec = s.do(t, http.MethodGet, "/api/events/ev1", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Event models.Event  `json:"event"`
		Tasks []models.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Picnic", out.Event.Title)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "t1", out.Tasks[0].ID)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/events/nope", "bob", "").Code)
}

func TestConcurrentDecode(t *testing.T) {
	a := &App{}
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":""}`))
			var body TokenRequest
			errs[i] = a.decode(req, &body)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.EqualError(t, err, "token is required")
	}
}
