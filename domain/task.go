package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task represents a single user task in the mirror.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	IsDone      bool       `json:"isDone"`
	Priority    Priority   `json:"priority"`
}

// NewID returns a fresh client-side task identifier.
func NewID() string {
	return uuid.NewString()
}

// HasTitle reports whether the task carries a non-blank title.
func (t Task) HasTitle() bool {
	return strings.TrimSpace(t.Title) != ""
}

// Equal compares two tasks field by field, using instant equality for the due date.
func (t Task) Equal(o Task) bool {
	if t.ID != o.ID || t.Title != o.Title || t.Description != o.Description ||
		t.IsDone != o.IsDone || t.Priority != o.Priority {
		return false
	}
	if t.DueDate == nil || o.DueDate == nil {
		return t.DueDate == nil && o.DueDate == nil
	}
	return t.DueDate.Equal(*o.DueDate)
}
