package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tasksync/domain"
	"tasksync/view"
)

const dayLayout = "2006-01-02"

// taskInput is the body of create and update requests. Due dates are either
// a calendar day (YYYY-MM-DD) or an RFC 3339 timestamp.
type taskInput struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueDate     *string         `json:"dueDate"`
	IsDone      bool            `json:"isDone"`
	Priority    domain.Priority `json:"priority"`
}

func (in taskInput) task(loc *time.Location) (domain.Task, error) {
	due, err := parseDay(in.DueDate, loc)
	if err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     due,
		IsDone:      in.IsDone,
		Priority:    in.Priority.Normalize(),
	}, nil
}

// viewInput replaces the board's criteria. Empty strings clear a filter.
type viewInput struct {
	Priority string `json:"priority"`
	Query    string `json:"query"`
	Date     string `json:"date"`
	Sort     string `json:"sort"`
}

func (in viewInput) criteria(loc *time.Location) (view.Criteria, error) {
	var c view.Criteria
	if strings.TrimSpace(in.Priority) != "" {
		p, err := domain.ParsePriority(in.Priority)
		if err != nil {
			return c, err
		}
		c.Priority = &p
	}
	c.Query = in.Query
	if strings.TrimSpace(in.Date) != "" {
		d, err := parseDay(&in.Date, loc)
		if err != nil {
			return c, err
		}
		c.Date = d
	}
	order, err := domain.ParseSortOrder(in.Sort)
	if err != nil {
		return c, err
	}
	c.Order = order
	return c, nil
}

func (in viewInput) empty() bool {
	return in == viewInput{}
}

func parseDay(s *string, loc *time.Location) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(*s)
	if t, err := time.ParseInLocation(dayLayout, raw, loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", raw)
	}
	return &t, nil
}

type criteriaView struct {
	Priority *domain.Priority `json:"priority"`
	Query    string           `json:"query"`
	Date     string           `json:"date,omitempty"`
	Sort     domain.SortOrder `json:"sort"`
}

func newCriteriaView(c view.Criteria) criteriaView {
	v := criteriaView{Priority: c.Priority, Query: c.Query, Sort: c.Order}
	if c.Date != nil {
		v.Date = c.Date.Format(dayLayout)
	}
	return v
}

type tasksResponse struct {
	Tasks    []domain.Task `json:"tasks"`
	Status   string        `json:"status"`
	Criteria criteriaView  `json:"criteria"`
}

type calendarResponse struct {
	Month string                       `json:"month"`
	Days  [view.GridDays]view.DayCell `json:"days"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var errBadRequestBody = errors.New("invalid body")
