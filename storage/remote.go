// Package storage defines the remote task document store and its adapters.
package storage

import (
	"context"

	"tasksync/domain"
)

// Document is one task document as held by a remote store.
type Document struct {
	ID     string
	Fields domain.Fields
	// Version is an opaque concurrency token used by WriteIf.
	Version string
}

// Subscription is a live query over one collection.
//
// Snapshots delivers the full collection after every change, ordered
// ascending by the subscription's field with missing values first and ties
// broken by document id. The channel is closed when the subscription ends;
// Err then reports why, or nil after Close or context cancellation.
type Subscription interface {
	Snapshots() <-chan []Document
	Err() error
	Close() error
}

// Remote is a per-user document collection with push subscriptions.
type Remote interface {
	Subscribe(ctx context.Context, path, orderBy string) (Subscription, error)
	// Write stores fields under id, replacing any existing document.
	Write(ctx context.Context, path, id string, fields domain.Fields) error
	// WriteIf stores fields only if the current version equals version.
	// An empty version requires the document to be absent. A mismatch
	// yields domain.ErrConflict.
	WriteIf(ctx context.Context, path, id string, fields domain.Fields, version string) error
	Delete(ctx context.Context, path, id string) error
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, path, id string) (*Document, error)
}

// TasksPath is the collection path holding a user's tasks.
func TasksPath(userID string) string {
	return "users/" + userID + "/tasks"
}

// ListFunc loads every document of a collection.
type ListFunc func(ctx context.Context, path string) ([]Document, error)
