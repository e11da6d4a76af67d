package domain

import "time"

// Command kinds recorded in the command journal.
const (
	CommandCreate = "task-created"
	CommandUpdate = "task-updated"
	CommandDelete = "task-deleted"
	CommandToggle = "task-toggled"
)

// CommandRecord describes a command that reached the remote store.
type CommandRecord struct {
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	TaskID    string    `json:"taskId"`
	Task      *Task     `json:"task,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
