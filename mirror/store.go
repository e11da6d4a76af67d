// Package mirror keeps a live local copy of one user's task collection.
package mirror

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"tasksync/domain"
	"tasksync/reactive"
	"tasksync/storage"
)

// Status describes the subscription backing a Store.
type Status int

const (
	Idle Status = iota
	Loading
	Live
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Live:
		return "live"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Store owns at most one subscription at a time and replaces its task list
// wholesale with every snapshot the subscription delivers.
type Store struct {
	remote storage.Remote
	logger log.FieldLogger

	tasks *reactive.Value[[]domain.Task]
	state *reactive.Value[Status]

	lifecycle sync.Mutex

	mu      sync.Mutex
	userID  string
	sub     storage.Subscription
	done    chan struct{}
	err     error
	onError func(error)
}

func New(remote storage.Remote, logger log.FieldLogger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{
		remote: remote,
		logger: logger,
		tasks:  reactive.NewValue([]domain.Task{}),
		state:  reactive.NewValue(Idle),
	}
}

// Tasks is the mirror. Observers must treat the slices as read-only.
func (s *Store) Tasks() *reactive.Value[[]domain.Task] { return s.tasks }

func (s *Store) State() *reactive.Value[Status] { return s.state }

// Err returns the error that terminated the current subscription, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// UserID returns the user the store is subscribed for, or "".
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// OnError registers fn to be called when the subscription fails.
func (s *Store) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Start subscribes to userID's tasks, releasing any previous subscription
// first. The subscription also ends when ctx is done.
func (s *Store) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrNoSession
	}
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stop()

	s.mu.Lock()
	s.userID = userID
	s.err = nil
	s.mu.Unlock()
	s.state.Set(Loading)

	sub, err := s.remote.Subscribe(ctx, storage.TasksPath(userID), domain.FieldDueDate)
	if err != nil {
		err = fmt.Errorf("subscribe tasks: %w", err)
		s.fail(userID, err)
		return err
	}
	done := make(chan struct{})
	s.mu.Lock()
	s.sub = sub
	s.done = done
	s.mu.Unlock()

	go s.consume(userID, sub, done)
	return nil
}

// Stop releases the subscription and clears the mirror.
func (s *Store) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stop()
}

func (s *Store) stop() {
	s.mu.Lock()
	sub, done := s.sub, s.done
	s.sub, s.done = nil, nil
	s.userID = ""
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
		<-done
	}
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.tasks.Set([]domain.Task{})
	s.state.Set(Idle)
}

func (s *Store) consume(userID string, sub storage.Subscription, done chan struct{}) {
	defer close(done)
	logger := s.logger.WithField("user", userID)
	for docs := range sub.Snapshots() {
		s.tasks.Set(decodeAll(logger, docs))
		s.state.Set(Live)
	}
	if err := sub.Err(); err != nil {
		s.fail(userID, fmt.Errorf("task subscription: %w", err))
		return
	}
	logger.Debug("task subscription closed")
}

func (s *Store) fail(userID string, err error) {
	s.mu.Lock()
	s.err = err
	cb := s.onError
	s.mu.Unlock()

	s.logger.WithField("user", userID).WithError(err).Error("task subscription failed")
	s.state.Set(Failed)
	if cb != nil {
		cb(err)
	}
}

func decodeAll(logger log.FieldLogger, docs []storage.Document) []domain.Task {
	tasks := make([]domain.Task, 0, len(docs))
	for _, d := range docs {
		t, bad := domain.DecodeTask(d.ID, d.Fields)
		if len(bad) > 0 {
			logger.WithFields(log.Fields{"task": t.ID, "fields": bad}).Debug("task decoded with defaults")
		}
		tasks = append(tasks, t)
	}
	return tasks
}
