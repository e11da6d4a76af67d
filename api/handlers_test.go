package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tasksync/board"
	"tasksync/domain"
	"tasksync/storage"
)

// headerAuth treats "Bearer <user>" as a valid token for <user>.
type headerAuth struct{}

func (headerAuth) UserIDFromAuthHeader(h string) (string, error) {
	uid, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || uid == "" {
		return "", errors.New("missing authorization header")
	}
	return uid, nil
}

type testServer struct {
	e        *echo.Echo
	remote   *storage.Memory
	sessions *Sessions
	hook     *test.Hook
	logger   *log.Logger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, hook := test.NewNullLogger()
	remote := storage.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	sessions := NewSessions(ctx, func() *board.Board {
		return board.New(remote, board.WithLogger(logger))
	}, logger)
	t.Cleanup(func() {
		sessions.Close()
		cancel()
	})

	prev := now
	now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })

	e := echo.New()
	Register(e, sessions, headerAuth{}, logger, time.UTC)
	return &testServer{e: e, remote: remote, sessions: sessions, hook: hook, logger: logger}
}

func (s *testServer) do(t *testing.T, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) tasks(t *testing.T, target, user string) tasksResponse {
	t.Helper()
	rec := s.do(t, http.MethodGet, target, user, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status %d body %s", target, rec.Code, rec.Body.String())
	}
	var resp tasksResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func (s *testServer) waitTasks(t *testing.T, user string, n int) tasksResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp := s.tasks(t, "/api/tasks", user)
		if len(resp.Tasks) == n {
			return resp
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d tasks, got %d", n, len(resp.Tasks))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateAndListTasks(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"Buy milk","priority":"P1","dueDate":"2024-05-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if created.ID == "" || created.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected created task %+v", created)
	}
	_ = s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"Call mom"}`)

	resp := s.waitTasks(t, "u1", 2)
	if resp.Tasks[0].Title != "Buy milk" || resp.Status != "live" || resp.Criteria.Sort != domain.SortDateAsc {
		t.Fatalf("unexpected response %+v", resp)
	}

	filtered := s.tasks(t, "/api/tasks?priority=P2", "u1")
	if len(filtered.Tasks) != 1 || filtered.Tasks[0].Title != "Call mom" {
		t.Fatalf("unexpected filtered tasks %+v", filtered.Tasks)
	}
	// Query params do not change the stored criteria.
	if got := s.tasks(t, "/api/tasks", "u1"); len(got.Tasks) != 2 {
		t.Fatalf("query params leaked into the board, got %d tasks", len(got.Tasks))
	}

	other := s.tasks(t, "/api/tasks", "u2")
	if len(other.Tasks) != 0 {
		t.Fatalf("u2 sees u1 tasks: %+v", other.Tasks)
	}
}

func TestCreateRejectsBlankTitleAndBadBody(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"   "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank title, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"x","color":"red"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"x","dueDate":"tomorrow"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestUnauthorized(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, http.MethodGet, "/api/tasks", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestToggleUpdateDelete(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/tasks", "u1", `{"id":"t1","title":"Draft"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	s.waitTasks(t, "u1", 1)

	if rec := s.do(t, http.MethodPost, "/api/tasks/t1/toggle", "u1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("toggle: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPut, "/api/tasks/t1", "u1", `{"title":"Final","isDone":true,"priority":"P3"}`); rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPut, "/api/tasks/t1", "u1", `{"id":"t2","title":"x"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected id mismatch to fail, got %d", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp := s.tasks(t, "/api/tasks", "u1")
		if len(resp.Tasks) == 1 && resp.Tasks[0].Title == "Final" && resp.Tasks[0].IsDone && resp.Tasks[0].Priority == domain.PriorityLow {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("update never reached the mirror: %+v", resp.Tasks)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if rec := s.do(t, http.MethodDelete, "/api/tasks/t1", "u1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	s.waitTasks(t, "u1", 0)
}

func TestErrorSlotEndpoints(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, http.MethodPost, "/api/tasks/missing/toggle", "u1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}

	var status statusResponse
	rec := s.do(t, http.MethodGet, "/api/status", "u1", "")
	_ = sonic.Unmarshal(rec.Body.Bytes(), &status)
	if !strings.Contains(status.Error, domain.ErrNotFound.Error()) {
		t.Fatalf("expected error slot to hold not found, got %+v", status)
	}

	if rec := s.do(t, http.MethodDelete, "/api/error", "u1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("dismiss: %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/status", "u1", "")
	status = statusResponse{}
	_ = sonic.Unmarshal(rec.Body.Bytes(), &status)
	if status.Error != "" {
		t.Fatalf("expected cleared error, got %q", status.Error)
	}
}

func TestPutViewPersistsCriteria(t *testing.T) {
	s := newTestServer(t)
	_ = s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"A","priority":"P1","dueDate":"2024-05-01"}`)
	_ = s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"B","priority":"P3"}`)
	s.waitTasks(t, "u1", 2)

	rec := s.do(t, http.MethodPut, "/api/view", "u1", `{"priority":"high","sort":"PRIORITY_LOW_FIRST"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put view: %d %s", rec.Code, rec.Body.String())
	}
	resp := s.tasks(t, "/api/tasks", "u1")
	if len(resp.Tasks) != 1 || resp.Tasks[0].Title != "A" {
		t.Fatalf("criteria not applied: %+v", resp.Tasks)
	}
	if resp.Criteria.Priority == nil || *resp.Criteria.Priority != domain.PriorityHigh || resp.Criteria.Sort != domain.SortPriorityLowFirst {
		t.Fatalf("unexpected criteria %+v", resp.Criteria)
	}

	if rec := s.do(t, http.MethodPut, "/api/view", "u1", `{"sort":"random"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", rec.Code)
	}
}

func TestSectionsAndCalendar(t *testing.T) {
	s := newTestServer(t)
	_ = s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"A","dueDate":"2024-05-01"}`)
	_ = s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"Today","dueDate":"2024-05-10"}`)
	_ = s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"B"}`)
	s.waitTasks(t, "u1", 3)

	rec := s.do(t, http.MethodGet, "/api/sections", "u1", "")
	var sections struct {
		Today  []domain.Task `json:"today"`
		Future []domain.Task `json:"future"`
		Past   []domain.Task `json:"past"`
		NoDate []domain.Task `json:"noDate"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &sections); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(sections.Today) != 1 || len(sections.Past) != 1 || len(sections.NoDate) != 1 || len(sections.Future) != 0 {
		t.Fatalf("unexpected sections %+v", sections)
	}

	rec = s.do(t, http.MethodGet, "/api/calendar?month=2024-05", "u1", "")
	var cal calendarResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &cal); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	first := cal.Days[0]
	if !first.Date.Equal(time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC)) || first.InMonth {
		t.Fatalf("unexpected first cell %+v", first)
	}
	if !cal.Days[2].HasTasks || !cal.Days[11].IsToday || !cal.Days[11].HasTasks {
		t.Fatalf("unexpected markers %+v %+v", cal.Days[2], cal.Days[11])
	}

	if rec := s.do(t, http.MethodGet, "/api/calendar?month=May", "u1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad month, got %d", rec.Code)
	}
}

func TestLogoutReleasesSession(t *testing.T) {
	s := newTestServer(t)
	_ = s.do(t, http.MethodPost, "/api/tasks", "u1", `{"title":"A"}`)
	s.waitTasks(t, "u1", 1)

	if rec := s.do(t, http.MethodDelete, "/api/session", "u1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rec.Code)
	}
	s.sessions.mu.Lock()
	_, live := s.sessions.boards["u1"]
	s.sessions.mu.Unlock()
	if live {
		t.Fatal("session still registered after logout")
	}
	// Signing in again resubscribes and sees the stored task.
	s.waitTasks(t, "u1", 1)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
