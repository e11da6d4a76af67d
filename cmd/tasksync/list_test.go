package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/board"
	"tasksync/config"
	"tasksync/domain"
	"tasksync/storage"
	"tasksync/view"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func resetListOpts(t *testing.T) {
	saved := listOpts
	t.Cleanup(func() { listOpts = saved })
}

func TestPrintTasks(t *testing.T) {
	var buf bytes.Buffer
	err := printTasks(&buf, []domain.Task{
		{ID: "t1", Title: "Buy milk", DueDate: day(2024, 5, 1), Priority: domain.PriorityHigh},
		{ID: "t2", Title: "Call mom", IsDone: true, Priority: domain.PriorityLow},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[ ]")
	assert.Contains(t, lines[0], "P1")
	assert.Contains(t, lines[0], "2024-05-01")
	assert.Contains(t, lines[0], "Buy milk")
	assert.Contains(t, lines[1], "[x]")
	assert.Contains(t, lines[1], "P3")
	assert.Contains(t, lines[1], "-")
}

func TestPrintTasksEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTasks(&buf, nil))
	assert.Equal(t, "No tasks found.\n", buf.String())
}

func TestPrintSectionsSkipsEmptyGroups(t *testing.T) {
	var buf bytes.Buffer
	err := printSections(&buf, view.GroupSections([]domain.Task{{ID: "t1", Title: "Someday"}}, time.Now()))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No date (1)")
	assert.NotContains(t, buf.String(), "Today")
}

func TestListCriteria(t *testing.T) {
	resetListOpts(t)
	listOpts.priority = "high"
	listOpts.query = "milk"
	listOpts.date = "2024-05-01"
	listOpts.sort = "PRIORITY_HIGH_FIRST"

	c, err := listCriteria(time.UTC)
	require.NoError(t, err)
	require.NotNil(t, c.Priority)
	assert.Equal(t, domain.PriorityHigh, *c.Priority)
	assert.Equal(t, "milk", c.Query)
	assert.True(t, c.Date.Equal(*day(2024, 5, 1)))
	assert.Equal(t, domain.SortPriorityHighFirst, c.Order)

	listOpts.date = "May 1"
	_, err = listCriteria(time.UTC)
	assert.Error(t, err)

	listOpts.date = ""
	listOpts.sort = "shuffle"
	_, err = listCriteria(time.UTC)
	assert.Error(t, err)
}

func TestWaitReadyReturnsOnFirstSnapshot(t *testing.T) {
	remote := storage.NewMemory()
	ctx := context.Background()
	task := domain.Task{ID: "t1", Title: "Buy milk", Priority: domain.PriorityMedium}
	require.NoError(t, remote.Write(ctx, storage.TasksPath("u1"), task.ID, domain.EncodeTask(task)))

	b := board.New(remote)
	defer b.Close()
	require.NoError(t, b.SetUser(ctx, "u1"))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, waitReady(waitCtx, b))

	// The derived list is recomputed synchronously with the mirror.
	require.Len(t, b.Tasks(), 1)
	assert.Equal(t, "Buy milk", b.Tasks()[0].Title)
}

// silentRemote accepts subscriptions that never deliver a snapshot.
type silentRemote struct {
	*storage.Memory
}

type silentSub struct {
	ch   chan []storage.Document
	once sync.Once
}

func (s *silentSub) Snapshots() <-chan []storage.Document { return s.ch }
func (s *silentSub) Err() error                           { return nil }

func (s *silentSub) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

func (silentRemote) Subscribe(ctx context.Context, path, orderBy string) (storage.Subscription, error) {
	return &silentSub{ch: make(chan []storage.Document)}, nil
}

func TestWaitReadyTimesOut(t *testing.T) {
	b := board.New(silentRemote{storage.NewMemory()})
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, b.SetUser(ctx, "u1"))

	err := waitReady(ctx, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestOpenBackend(t *testing.T) {
	mem, err := openBackend(config.Config{StorageBackend: config.BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.Memory{}, mem.remote)
	assert.Nil(t, mem.journal)
	assert.Len(t, mem.boardOptions(config.Config{}, nil), 2)

	mr := miniredis.RunT(t)
	rds, err := openBackend(config.Config{StorageBackend: config.BackendRedis, RedisConnectionString: mr.Addr()}, nil)
	require.NoError(t, err)
	defer rds.Close()
	assert.IsType(t, &storage.Redis{}, rds.remote)

	_, err = openBackend(config.Config{StorageBackend: "sqlite"}, nil)
	assert.Error(t, err)
}

func TestBackendBoardsShareRemote(t *testing.T) {
	be, err := openBackend(config.Config{StorageBackend: config.BackendMemory}, nil)
	require.NoError(t, err)
	newBoard := be.newBoard(config.Config{TogglePolicy: "cas"}, nil)

	ctx := context.Background()
	writer := newBoard()
	defer writer.Close()
	require.NoError(t, writer.SetUser(ctx, "u1"))
	_, err = writer.Create(ctx, domain.Task{Title: "Shared"})
	require.NoError(t, err)

	reader := newBoard()
	defer reader.Close()
	require.NoError(t, reader.SetUser(ctx, "u1"))
	assert.Eventually(t, func() bool {
		return len(reader.Tasks()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}
