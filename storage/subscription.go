package storage

import (
	"context"
	"sync"
)

// feed drives a Subscription: it lists the collection once, then again on
// every change signal, until its context ends or it fails.
type feed struct {
	path    string
	orderBy string
	list    ListFunc

	out    chan []Document
	notify chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	err     error
	release func()
}

func newFeed(ctx context.Context, path, orderBy string, list ListFunc) *feed {
	fctx, cancel := context.WithCancel(ctx)
	return &feed{
		path:    path,
		orderBy: orderBy,
		list:    list,
		out:     make(chan []Document),
		notify:  make(chan struct{}, 1),
		ctx:     fctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// start runs the feed. release is invoked once the feed has stopped.
func (f *feed) start(release func()) {
	f.mu.Lock()
	f.release = release
	f.mu.Unlock()
	go f.run()
}

func (f *feed) run() {
	defer close(f.done)
	defer close(f.out)
	defer func() {
		f.cancel()
		f.mu.Lock()
		release := f.release
		f.mu.Unlock()
		if release != nil {
			release()
		}
	}()

	for {
		docs, err := f.list(f.ctx, f.path)
		if err != nil {
			if f.ctx.Err() == nil {
				f.fail(err)
			}
			return
		}
		sortDocuments(docs, f.orderBy)
		select {
		case f.out <- docs:
		case <-f.ctx.Done():
			return
		}
		select {
		case <-f.notify:
		case <-f.ctx.Done():
			return
		}
	}
}

// signal schedules a re-list. Signals arriving while one is pending coalesce.
func (f *feed) signal() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// fail ends the feed with err. Only the first failure is kept.
func (f *feed) fail(err error) {
	f.mu.Lock()
	if f.err == nil {
		f.err = err
	}
	f.mu.Unlock()
	f.cancel()
}

func (f *feed) Snapshots() <-chan []Document { return f.out }

func (f *feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *feed) Close() error {
	f.cancel()
	<-f.done
	return nil
}
