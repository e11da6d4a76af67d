// Package view derives the presentation list from the task mirror.
//
// Everything here is pure: inputs are never mutated and identical inputs
// always produce identical outputs.
package view

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"tasksync/domain"
)

// Criteria are the user selected filters and ordering.
type Criteria struct {
	Priority *domain.Priority
	Query    string
	Date     *time.Time
	Order    domain.SortOrder
}

// Derive filters and sorts tasks. Stages always run in the same order:
// priority, calendar day, text, then a stable sort.
func Derive(tasks []domain.Task, c Criteria) []domain.Task {
	out := filterPriority(tasks, c.Priority)
	out = filterDate(out, c.Date)
	out = filterText(out, c.Query)
	sortTasks(out, c.Order)
	return out
}

func filterPriority(tasks []domain.Task, p *domain.Priority) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if p != nil && t.Priority != *p {
			continue
		}
		out = append(out, t)
	}
	return out
}

func filterDate(tasks []domain.Task, day *time.Time) []domain.Task {
	if day == nil {
		return tasks
	}
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.DueDate != nil && SameDay(*t.DueDate, *day) {
			out = append(out, t)
		}
	}
	return out
}

func filterText(tasks []domain.Task, query string) []domain.Task {
	if strings.TrimSpace(query) == "" {
		return tasks
	}
	fold := cases.Fold()
	q := fold.String(query)
	out := tasks[:0:0]
	for _, t := range tasks {
		if strings.Contains(fold.String(t.Title), q) || strings.Contains(fold.String(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}

func sortTasks(tasks []domain.Task, order domain.SortOrder) {
	switch order {
	case domain.SortDateDesc:
		slices.SortStableFunc(tasks, func(a, b domain.Task) int { return compareDue(a, b, true) })
	case domain.SortPriorityHighFirst:
		slices.SortStableFunc(tasks, func(a, b domain.Task) int { return a.Priority.Rank() - b.Priority.Rank() })
	case domain.SortPriorityLowFirst:
		slices.SortStableFunc(tasks, func(a, b domain.Task) int { return b.Priority.Rank() - a.Priority.Rank() })
	case domain.SortCompletionStatus:
		slices.SortStableFunc(tasks, func(a, b domain.Task) int { return boolRank(a.IsDone) - boolRank(b.IsDone) })
	default:
		slices.SortStableFunc(tasks, func(a, b domain.Task) int { return compareDue(a, b, false) })
	}
}

// compareDue orders by due date; undated tasks go last in both directions.
func compareDue(a, b domain.Task, desc bool) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	}
	if desc {
		return b.DueDate.Compare(*a.DueDate)
	}
	return a.DueDate.Compare(*b.DueDate)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
