package domain

import "errors"

var (
	// ErrEmptyTitle rejects tasks that would be persisted without a title.
	ErrEmptyTitle = errors.New("task title is empty")
	// ErrMissingID is returned when a command needs an existing task id.
	ErrMissingID = errors.New("task id is empty")
	// ErrNotFound indicates the task document does not exist remotely.
	ErrNotFound = errors.New("task not found")
	// ErrConflict indicates that a conditional write lost against a newer
	// version of the document.
	ErrConflict = errors.New("concurrency conflict")
	// ErrNoSession is returned when no user is signed in.
	ErrNoSession = errors.New("no active user session")
)
