// Package api exposes task boards over HTTP and server-sent events.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasksync/board"
	"tasksync/domain"
	"tasksync/view"
)

// now is replaced in tests.
var now = time.Now

type server struct {
	sessions *Sessions
	auth     Authenticator
	logger   *log.Logger
	loc      *time.Location
}

// Register wires up all routes on the provided Echo instance. Calendar days
// are evaluated in loc.
func Register(e *echo.Echo, sessions *Sessions, auth Authenticator, logger *log.Logger, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	s := &server{sessions: sessions, auth: auth, logger: logger, loc: loc}
	e.JSONSerializer = sonicSerializer{}

	e.GET("/api/tasks", s.getTasks)
	e.POST("/api/tasks", s.createTask)
	e.PUT("/api/tasks/:id", s.updateTask)
	e.DELETE("/api/tasks/:id", s.deleteTask)
	e.POST("/api/tasks/:id/toggle", s.toggleTask)
	e.GET("/api/sections", s.getSections)
	e.GET("/api/calendar", s.getCalendar)
	e.PUT("/api/view", s.putView)
	e.GET("/api/status", s.getStatus)
	e.DELETE("/api/error", s.dismissError)
	e.DELETE("/api/session", s.logout)
	e.GET("/stream", s.stream)
	e.GET("/healthz", healthz)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *server) today() time.Time {
	return now().In(s.loc)
}

// session authenticates the request and returns the caller's board. On
// failure the response has already been written.
func (s *server) session(c echo.Context, header string) (string, *board.Board, bool) {
	userID, err := s.auth.UserIDFromAuthHeader(header)
	if err != nil {
		_ = c.String(http.StatusUnauthorized, err.Error())
		return "", nil, false
	}
	b, err := s.sessions.Acquire(userID)
	if err != nil {
		s.logger.WithField("user", userID).WithError(err).Error("unable to start session")
		_ = c.String(http.StatusInternalServerError, err.Error())
		return "", nil, false
	}
	return userID, b, true
}

func authHeader(c echo.Context) string {
	return c.Request().Header.Get(echo.HeaderAuthorization)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyTitle), errors.Is(err, domain.ErrMissingID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoSession):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (s *server) getTasks(c echo.Context) (err error) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), s.logger, "/api/tasks")
	c.SetRequest(c.Request().WithContext(ctx))
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	userID, b, ok := s.session(c, authHeader(c))
	if !ok {
		metrics.SetErrorStage("session")
		return nil
	}
	metrics.SetUser(userID)

	in := viewInput{
		Priority: c.QueryParam("priority"),
		Query:    c.QueryParam("q"),
		Date:     c.QueryParam("date"),
		Sort:     c.QueryParam("sort"),
	}
	tasks, crit := b.Tasks(), b.Criteria()
	if !in.empty() {
		metrics.SetFiltersUsed(true)
		crit, err = in.criteria(s.loc)
		if err != nil {
			metrics.SetErrorStage("criteria")
			return c.String(http.StatusBadRequest, err.Error())
		}
		tasks = view.Derive(b.Mirror().Get(), crit)
	}
	metrics.SetTasksReturned(len(tasks))
	err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks, Status: b.Status().String(), Criteria: newCriteriaView(crit)})
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

func (s *server) putView(c echo.Context) error {
	_, b, ok := s.session(c, authHeader(c))
	if !ok {
		return nil
	}
	var in viewInput
	if err := decodeBody(c, &in); err != nil {
		return c.String(http.StatusBadRequest, errBadRequestBody.Error())
	}
	crit, err := in.criteria(s.loc)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	b.SetCriteria(crit)
	return c.JSON(http.StatusOK, tasksResponse{Tasks: b.Tasks(), Status: b.Status().String(), Criteria: newCriteriaView(b.Criteria())})
}

func (s *server) getSections(c echo.Context) error {
	_, b, ok := s.session(c, authHeader(c))
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, b.Sections(s.today()))
}

func (s *server) getCalendar(c echo.Context) error {
	_, b, ok := s.session(c, authHeader(c))
	if !ok {
		return nil
	}
	today := s.today()
	month := today
	if raw := c.QueryParam("month"); raw != "" {
		m, err := time.ParseInLocation("2006-01", raw, s.loc)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid month")
		}
		month = m
	}
	month = view.FirstOfMonth(month)
	return c.JSON(http.StatusOK, calendarResponse{Month: month.Format("2006-01"), Days: b.Calendar(month, today)})
}

func (s *server) createTask(c echo.Context) error {
	_, b, ok := s.session(c, authHeader(c))
	if !ok {
		return nil
	}
	var in taskInput
	if err := decodeBody(c, &in); err != nil {
		return c.String(http.StatusBadRequest, errBadRequestBody.Error())
	}
	task, err := in.task(s.loc)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	created, err := b.Create(c.Request().Context(), task)
	if err != nil {
		return c.String(statusFor(err), err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *server) updateTask(c echo.Context) error {
	_, b, ok := s.session(c, authHeader(c))
	if !ok {
		return nil
	}
	var in taskInput
	if err := decodeBody(c, &in); err != nil {
		return c.String(http.StatusBadRequest, errBadRequestBody.Error())
	}
	id := c.Param("id")
	if in.ID != "" && in.ID != id {
		return c.String(http.StatusBadRequest, "task id does not match path")
	}
	in.ID = id
	task, err := in.task(s.loc)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	if err := b.Update(c.Request().Context(), task); err != nil {
		return c.String(statusFor(err), err.Error())
	}
	return c.JSON(http.StatusOK, task)
}

func (s *server) deleteTask(c echo.Context) error {
	_, b, ok := s.session(c, authHeader(c))
	if !ok {
		return nil
	}
	if err := b.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return c.String(statusFor(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) toggleTask(c echo.Context) error {
	_, b, ok := s.session(c, authHeader(c))
	if !ok {
		return nil
	}
	if err := b.ToggleCompletion(c.Request().Context(), domain.Task{ID: c.Param("id")}); err != nil {
		return c.String(statusFor(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) getStatus(c echo.Context) error {
	_, b, ok := s.session(c, authHeader(c))
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, statusResponse{Status: b.Status().String(), Error: errorText(b.Err())})
}

func (s *server) dismissError(c echo.Context) error {
	_, b, ok := s.session(c, authHeader(c))
	if !ok {
		return nil
	}
	b.DismissError()
	return c.NoContent(http.StatusNoContent)
}

func (s *server) logout(c echo.Context) error {
	userID, err := s.auth.UserIDFromAuthHeader(authHeader(c))
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	s.sessions.Release(userID)
	return c.NoContent(http.StatusNoContent)
}
