package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"tasksync/domain"
)

// Redis keeps each collection in a hash of encoded documents with a sibling
// hash of per-document versions. Versions are bumped on every write and
// delete and never reset, so a stale version cannot match a recreated
// document.
type Redis struct {
	client   *redis.Client
	notifier *Notifier
	logger   log.FieldLogger
}

func NewRedis(client *redis.Client, logger log.FieldLogger) *Redis {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Redis{client: client, notifier: NewNotifier(client), logger: logger}
}

func docsKey(path string) string     { return "docs:" + path }
func versionsKey(path string) string { return "versions:" + path }

func (r *Redis) Subscribe(ctx context.Context, path, orderBy string) (Subscription, error) {
	f := newFeed(ctx, path, orderBy, r.list)
	release, err := r.notifier.attach(f)
	if err != nil {
		f.cancel()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	f.start(release)
	return f, nil
}

func (r *Redis) list(ctx context.Context, path string) ([]Document, error) {
	var rawCmd, versionsCmd *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		rawCmd = p.HGetAll(ctx, docsKey(path))
		versionsCmd = p.HGetAll(ctx, versionsKey(path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	raw, versions := rawCmd.Val(), versionsCmd.Val()
	docs := make([]Document, 0, len(raw))
	for id, data := range raw {
		fields, err := decodeFields([]byte(data))
		if err != nil {
			r.logger.WithError(err).WithField("doc", path+"/"+id).Warn("skipping unreadable document")
			continue
		}
		docs = append(docs, Document{ID: id, Fields: fields, Version: versions[id]})
	}
	return docs, nil
}

func (r *Redis) Write(ctx context.Context, path, id string, fields domain.Fields) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, docsKey(path), id, data)
		p.HIncrBy(ctx, versionsKey(path), id, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", path, id, err)
	}
	r.publish(ctx, path)
	return nil
}

func (r *Redis) WriteIf(ctx context.Context, path, id string, fields domain.Fields, version string) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}
	dk, vk := docsKey(path), versionsKey(path)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, dk, id).Result()
		if err != nil {
			return err
		}
		cur, err := tx.HGet(ctx, vk, id).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if version == "" && exists || version != "" && (!exists || cur != version) {
			return domain.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, dk, id, data)
			p.HIncrBy(ctx, vk, id, 1)
			return nil
		})
		return err
	}, dk, vk)
	if errors.Is(err, redis.TxFailedErr) {
		err = domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", path, id, err)
	}
	r.publish(ctx, path)
	return nil
}

func (r *Redis) Delete(ctx context.Context, path, id string) error {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.HDel(ctx, docsKey(path), id)
		p.HIncrBy(ctx, versionsKey(path), id, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", path, id, err)
	}
	if removed.Val() > 0 {
		r.publish(ctx, path)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, path, id string) (*Document, error) {
	var docCmd, versionCmd *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		docCmd = p.HGet(ctx, docsKey(path), id)
		versionCmd = p.HGet(ctx, versionsKey(path), id)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	data, err := docCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fields, err := decodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", path, id, err)
	}
	return &Document{ID: id, Fields: fields, Version: versionCmd.Val()}, nil
}

func (r *Redis) publish(ctx context.Context, path string) {
	if err := r.notifier.Publish(ctx, path); err != nil {
		r.logger.WithError(err).WithField("path", path).Error("unable to publish change")
	}
}
