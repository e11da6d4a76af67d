package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Notifier fans out collection change signals over Redis pub/sub.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func changesChannel(path string) string {
	return "changes:" + path
}

// Publish announces that the collection at path changed.
func (n *Notifier) Publish(ctx context.Context, path string) error {
	return n.client.Publish(ctx, changesChannel(path), path).Err()
}

// attach subscribes f to change signals for its path. The returned func
// releases the pub/sub connection. A broken connection fails the feed.
func (n *Notifier) attach(f *feed) (func(), error) {
	ps := n.client.Subscribe(f.ctx, changesChannel(f.path))
	if _, err := ps.Receive(f.ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	go func() {
		for {
			if _, err := ps.ReceiveMessage(f.ctx); err != nil {
				if f.ctx.Err() == nil {
					f.fail(err)
				}
				return
			}
			f.signal()
		}
	}()
	return func() { _ = ps.Close() }, nil
}
