// Package command turns task intents into remote writes. Commands never
// touch the local mirror; their effect arrives through the subscription.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tasksync/domain"
	"tasksync/storage"
)

const (
	tracerName      = "tasksync/command"
	commandSpanName = "tasks.command"
)

// ConflictPolicy selects how ToggleCompletion writes back.
type ConflictPolicy int

const (
	// CompareAndSwap writes only if the document is unchanged since it was
	// read and otherwise fails with domain.ErrConflict.
	CompareAndSwap ConflictPolicy = iota
	// LastWriteWins overwrites the document unconditionally.
	LastWriteWins
)

func (p ConflictPolicy) String() string {
	if p == LastWriteWins {
		return "lww"
	}
	return "cas"
}

func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cas":
		return CompareAndSwap, nil
	case "lww":
		return LastWriteWins, nil
	}
	return 0, fmt.Errorf("unknown conflict policy %q", s)
}

// ErrorSink receives the outcome of every command: the error on failure,
// nil on success.
type ErrorSink interface {
	Report(err error)
}

// Journal records commands that reached the remote store.
type Journal interface {
	Record(ctx context.Context, rec domain.CommandRecord) error
}

type discardSink struct{}

func (discardSink) Report(error) {}

// Service validates commands and forwards them to the remote store for the
// user returned by the session func.
type Service struct {
	remote  storage.Remote
	session func() string
	policy  ConflictPolicy
	sink    ErrorSink
	journal Journal
	logger  log.FieldLogger
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Service)

func WithPolicy(p ConflictPolicy) Option { return func(s *Service) { s.policy = p } }

func WithErrorSink(sink ErrorSink) Option { return func(s *Service) { s.sink = sink } }

func WithJournal(j Journal) Option { return func(s *Service) { s.journal = j } }

func WithLogger(l log.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

func New(remote storage.Remote, session func() string, opts ...Option) *Service {
	s := &Service{
		remote:  remote,
		session: session,
		sink:    discardSink{},
		logger:  log.StandardLogger(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create stores a new task. An empty ID is replaced with a fresh one.
func (s *Service) Create(ctx context.Context, task domain.Task) (domain.Task, error) {
	task = normalize(task)
	if task.ID == "" {
		task.ID = domain.NewID()
	}
	err := s.run(ctx, domain.CommandCreate, task.ID, func(ctx context.Context, path string) (*domain.Task, error) {
		if !task.HasTitle() {
			return nil, domain.ErrEmptyTitle
		}
		if err := s.remote.Write(ctx, path, task.ID, domain.EncodeTask(task)); err != nil {
			return nil, fmt.Errorf("create task: %w", err)
		}
		return &task, nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// Update replaces the stored task with task.
func (s *Service) Update(ctx context.Context, task domain.Task) error {
	task = normalize(task)
	return s.run(ctx, domain.CommandUpdate, task.ID, func(ctx context.Context, path string) (*domain.Task, error) {
		if task.ID == "" {
			return nil, domain.ErrMissingID
		}
		if !task.HasTitle() {
			return nil, domain.ErrEmptyTitle
		}
		if err := s.remote.Write(ctx, path, task.ID, domain.EncodeTask(task)); err != nil {
			return nil, fmt.Errorf("update task: %w", err)
		}
		return &task, nil
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.run(ctx, domain.CommandDelete, id, func(ctx context.Context, path string) (*domain.Task, error) {
		if id == "" {
			return nil, domain.ErrMissingID
		}
		if err := s.remote.Delete(ctx, path, id); err != nil {
			return nil, fmt.Errorf("delete task: %w", err)
		}
		return nil, nil
	})
}

// ToggleCompletion flips isDone on the stored copy of task.
func (s *Service) ToggleCompletion(ctx context.Context, task domain.Task) error {
	id := task.ID
	return s.run(ctx, domain.CommandToggle, id, func(ctx context.Context, path string) (*domain.Task, error) {
		if id == "" {
			return nil, domain.ErrMissingID
		}
		doc, err := s.remote.Get(ctx, path, id)
		if err != nil {
			return nil, fmt.Errorf("toggle task: %w", err)
		}
		if doc == nil {
			return nil, fmt.Errorf("toggle task %s: %w", id, domain.ErrNotFound)
		}
		cur, _ := domain.DecodeTask(doc.ID, doc.Fields)
		cur.IsDone = !cur.IsDone

		fields := domain.EncodeTask(cur)
		if s.policy == CompareAndSwap {
			err = s.remote.WriteIf(ctx, path, id, fields, doc.Version)
		} else {
			err = s.remote.Write(ctx, path, id, fields)
		}
		if err != nil {
			return nil, fmt.Errorf("toggle task: %w", err)
		}
		return &cur, nil
	})
}

func (s *Service) run(ctx context.Context, kind, taskID string, fn func(ctx context.Context, path string) (*domain.Task, error)) error {
	ctx, span := s.tracer.Start(ctx, commandSpanName, trace.WithAttributes(
		attribute.String("tasksync.command", kind),
		attribute.String("tasksync.task_id", taskID),
	))
	defer span.End()

	uid := s.session()
	logger := s.logger.WithFields(log.Fields{"user": uid, "command": kind, "task": taskID})

	var (
		task *domain.Task
		err  = domain.ErrNoSession
	)
	if uid != "" {
		task, err = fn(ctx, storage.TasksPath(uid))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithError(err).Warn("task command failed")
		s.sink.Report(err)
		return err
	}

	span.SetStatus(codes.Ok, "")
	s.sink.Report(nil)
	logger.Debug("task command applied")
	if s.journal != nil {
		rec := domain.CommandRecord{UserID: uid, Type: kind, TaskID: taskID, Task: task, Timestamp: s.now().UTC()}
		if err := s.journal.Record(ctx, rec); err != nil {
			logger.WithError(err).Warn("unable to journal command")
		}
	}
	return nil
}

func normalize(t domain.Task) domain.Task {
	t.Title = strings.TrimSpace(t.Title)
	t.Priority = t.Priority.Normalize()
	return t
}
