package view

import (
	"time"

	"tasksync/domain"
)

// Sections partitions a derived list into temporal buckets. Each bucket
// keeps the relative order of the input.
type Sections struct {
	Today  []domain.Task `json:"today"`
	Future []domain.Task `json:"future"`
	Past   []domain.Task `json:"past"`
	NoDate []domain.Task `json:"noDate"`
}

// GroupSections buckets tasks relative to the calendar day containing now.
func GroupSections(tasks []domain.Task, now time.Time) Sections {
	today := StartOfDay(now)
	s := Sections{
		Today:  []domain.Task{},
		Future: []domain.Task{},
		Past:   []domain.Task{},
		NoDate: []domain.Task{},
	}
	for _, t := range tasks {
		switch {
		case t.DueDate == nil:
			s.NoDate = append(s.NoDate, t)
		case SameDay(*t.DueDate, today):
			s.Today = append(s.Today, t)
		case t.DueDate.After(today):
			s.Future = append(s.Future, t)
		default:
			s.Past = append(s.Past, t)
		}
	}
	return s
}
