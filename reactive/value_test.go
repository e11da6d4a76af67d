package reactive

import (
	"context"
	"testing"
	"time"
)

func TestValueSetNotifiesInRegistrationOrder(t *testing.T) {
	v := NewValue(0)
	var calls []string
	v.Observe(func(n int) { calls = append(calls, "first") })
	v.Observe(func(n int) { calls = append(calls, "second") })

	v.Set(7)

	if got := v.Get(); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected notification order %v", calls)
	}
	if v.Version() != 1 {
		t.Fatalf("expected version 1, got %d", v.Version())
	}
}

func TestValueObserveCancel(t *testing.T) {
	v := NewValue("a")
	var seen []string
	cancel := v.Observe(func(s string) { seen = append(seen, s) })
	v.Set("b")
	cancel()
	cancel()
	v.Set("c")

	if len(seen) != 1 || seen[0] != "b" {
		t.Fatalf("expected only b, got %v", seen)
	}
}

func TestValueUpdate(t *testing.T) {
	v := NewValue(1)
	v.Update(func(n int) int { return n + 41 })
	if v.Get() != 42 {
		t.Fatalf("expected 42, got %d", v.Get())
	}
}

func TestValueWatchConflatesAndCloses(t *testing.T) {
	v := NewValue(0)
	ctx, cancel := context.WithCancel(context.Background())
	ch := v.Watch(ctx)

	if got := <-ch; got != 0 {
		t.Fatalf("expected initial 0, got %d", got)
	}
	v.Set(1)
	v.Set(2)
	v.Set(3)
	if got := <-ch; got != 3 {
		t.Fatalf("expected latest value 3, got %d", got)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// a value may still be buffered; the next read must see the close
			if _, ok := <-ch; ok {
				t.Fatal("expected closed channel")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel was not closed")
	}

	// Set after the watcher is gone must not block.
	done := make(chan struct{})
	go func() {
		v.Set(4)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Set blocked after watcher cancellation")
	}
}
