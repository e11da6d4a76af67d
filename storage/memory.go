package storage

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync"

	"tasksync/domain"
)

// Memory is an in-process Remote. Versions come from a store-wide counter so
// a version is never reused, even after a delete.
type Memory struct {
	mu          sync.Mutex
	seq         uint64
	collections map[string]map[string]memDoc
	watchers    map[string]map[*feed]struct{}
}

type memDoc struct {
	fields  domain.Fields
	version uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]memDoc),
		watchers:    make(map[string]map[*feed]struct{}),
	}
}

func (m *Memory) Subscribe(ctx context.Context, path, orderBy string) (Subscription, error) {
	f := newFeed(ctx, path, orderBy, m.list)
	m.mu.Lock()
	if m.watchers[path] == nil {
		m.watchers[path] = make(map[*feed]struct{})
	}
	m.watchers[path][f] = struct{}{}
	m.mu.Unlock()

	f.start(func() {
		m.mu.Lock()
		delete(m.watchers[path], f)
		if len(m.watchers[path]) == 0 {
			delete(m.watchers, path)
		}
		m.mu.Unlock()
	})
	return f, nil
}

func (m *Memory) list(ctx context.Context, path string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]Document, 0, len(m.collections[path]))
	for id, d := range m.collections[path] {
		docs = append(docs, Document{ID: id, Fields: maps.Clone(d.fields), Version: formatVersion(d.version)})
	}
	return docs, nil
}

func (m *Memory) Write(ctx context.Context, path, id string, fields domain.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.put(path, id, fields)
	watchers := m.watching(path)
	m.mu.Unlock()
	signalAll(watchers)
	return nil
}

func (m *Memory) WriteIf(ctx context.Context, path, id string, fields domain.Fields, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	cur, exists := m.collections[path][id]
	switch {
	case version == "" && exists,
		version != "" && (!exists || formatVersion(cur.version) != version):
		m.mu.Unlock()
		return fmt.Errorf("write %s/%s: %w", path, id, domain.ErrConflict)
	}
	m.put(path, id, fields)
	watchers := m.watching(path)
	m.mu.Unlock()
	signalAll(watchers)
	return nil
}

func (m *Memory) Delete(ctx context.Context, path, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.collections[path][id]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.collections[path], id)
	watchers := m.watching(path)
	m.mu.Unlock()
	signalAll(watchers)
	return nil
}

func (m *Memory) Get(ctx context.Context, path, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.collections[path][id]
	if !ok {
		return nil, nil
	}
	return &Document{ID: id, Fields: maps.Clone(d.fields), Version: formatVersion(d.version)}, nil
}

// Interrupt terminates every live subscription on path with err, the way a
// dropped connection would.
func (m *Memory) Interrupt(path string, err error) {
	m.mu.Lock()
	watchers := m.watching(path)
	m.mu.Unlock()
	for _, f := range watchers {
		f.fail(err)
	}
}

func (m *Memory) put(path, id string, fields domain.Fields) {
	if m.collections[path] == nil {
		m.collections[path] = make(map[string]memDoc)
	}
	m.seq++
	m.collections[path][id] = memDoc{fields: maps.Clone(fields), version: m.seq}
}

func (m *Memory) watching(path string) []*feed {
	out := make([]*feed, 0, len(m.watchers[path]))
	for f := range m.watchers[path] {
		out = append(out, f)
	}
	return out
}

func signalAll(feeds []*feed) {
	for _, f := range feeds {
		f.signal()
	}
}

func formatVersion(v uint64) string {
	return strconv.FormatUint(v, 10)
}
