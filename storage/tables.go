package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"tasksync/domain"
)

const (
	edmDateTime   = "Edm.DateTime"
	odataTypeMark = "@odata.type"
	odataETag     = "odata.etag"
)

// tableClient is the subset of *aztables.Client used by Tables.
type tableClient interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	NewListEntitiesPager(listOptions *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

// Tables stores each collection as one Azure Tables partition. Tables has
// no change feed, so change signals go through a Redis Notifier.
type Tables struct {
	table    tableClient
	notifier *Notifier
	cache    *Cache
	list     ListFunc
	logger   log.FieldLogger
}

// NewTables connects to the named table. cache may be nil.
func NewTables(connStr, table string, notifier *Notifier, cache *Cache, logger log.FieldLogger) (*Tables, error) {
	if notifier == nil {
		return nil, errors.New("tables store requires a change notifier")
	}
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return newTables(svc.NewClient(table), notifier, cache, logger), nil
}

func newTables(client tableClient, notifier *Notifier, cache *Cache, logger log.FieldLogger) *Tables {
	if logger == nil {
		logger = log.StandardLogger()
	}
	t := &Tables{table: client, notifier: notifier, cache: cache, logger: logger}
	t.list = t.listPartition
	if cache != nil {
		t.list = cache.Wrap(t.listPartition)
	}
	return t
}

// partitionKey maps a collection path onto a valid PartitionKey; '/' is not
// allowed in table keys.
func partitionKey(path string) string {
	return strings.ReplaceAll(path, "/", ":")
}

func (t *Tables) Subscribe(ctx context.Context, path, orderBy string) (Subscription, error) {
	f := newFeed(ctx, path, orderBy, t.list)
	release, err := t.notifier.attach(f)
	if err != nil {
		f.cancel()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	f.start(release)
	return f, nil
}

func (t *Tables) listPartition(ctx context.Context, path string) ([]Document, error) {
	filter := "PartitionKey eq '" + strings.ReplaceAll(partitionKey(path), "'", "''") + "'"
	pager := t.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	docs := []Document{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			doc, err := decodeEntity(raw)
			if err != nil {
				t.logger.WithError(err).WithField("path", path).Warn("skipping unreadable entity")
				continue
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (t *Tables) Write(ctx context.Context, path, id string, fields domain.Fields) error {
	payload, err := encodeEntity(path, id, fields)
	if err == nil {
		_, err = t.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	}
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", path, id, err)
	}
	t.changed(ctx, path)
	return nil
}

func (t *Tables) WriteIf(ctx context.Context, path, id string, fields domain.Fields, version string) error {
	payload, err := encodeEntity(path, id, fields)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", path, id, err)
	}
	if version == "" {
		_, err = t.table.AddEntity(ctx, payload, nil)
		if statusCode(err) == http.StatusConflict {
			err = domain.ErrConflict
		}
	} else {
		etag := azcore.ETag(version)
		_, err = t.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
		switch statusCode(err) {
		case http.StatusPreconditionFailed, http.StatusNotFound:
			err = domain.ErrConflict
		}
	}
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", path, id, err)
	}
	t.changed(ctx, path)
	return nil
}

func (t *Tables) Delete(ctx context.Context, path, id string) error {
	_, err := t.table.DeleteEntity(ctx, partitionKey(path), id, nil)
	if statusCode(err) == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", path, id, err)
	}
	t.changed(ctx, path)
	return nil
}

func (t *Tables) Get(ctx context.Context, path, id string) (*Document, error) {
	ent, err := t.table.GetEntity(ctx, partitionKey(path), id, nil)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	doc, err := decodeEntity(ent.Value)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", path, id, err)
	}
	doc.Version = string(ent.ETag)
	return &doc, nil
}

func (t *Tables) changed(ctx context.Context, path string) {
	if t.cache != nil {
		t.cache.Evict(ctx, path)
	}
	if err := t.notifier.Publish(ctx, path); err != nil {
		t.logger.WithError(err).WithField("path", path).Error("unable to publish change")
	}
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// encodeEntity writes fields as entity properties. Time values carry an
// Edm.DateTime annotation; nil values are omitted since Tables has no null.
func encodeEntity(path, id string, fields domain.Fields) ([]byte, error) {
	ent := map[string]any{
		"PartitionKey": partitionKey(path),
		"RowKey":       id,
	}
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
		case time.Time:
			ent[k] = val.UTC().Format(time.RFC3339Nano)
			ent[k+odataTypeMark] = edmDateTime
		case *time.Time:
			if val != nil {
				ent[k] = val.UTC().Format(time.RFC3339Nano)
				ent[k+odataTypeMark] = edmDateTime
			}
		default:
			ent[k] = v
		}
	}
	return sonic.Marshal(ent)
}

func decodeEntity(raw []byte) (Document, error) {
	var ent map[string]any
	if err := sonic.Unmarshal(raw, &ent); err != nil {
		return Document{}, err
	}
	doc := Document{Fields: domain.Fields{}}
	doc.ID, _ = ent["RowKey"].(string)
	doc.Version, _ = ent[odataETag].(string)
	for k, v := range ent {
		switch {
		case k == "PartitionKey", k == "RowKey", k == "Timestamp",
			strings.HasPrefix(k, "odata."), strings.HasSuffix(k, odataTypeMark):
			continue
		}
		if typ, _ := ent[k+odataTypeMark].(string); typ == edmDateTime {
			if s, ok := v.(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
					v = ts
				}
			}
		}
		doc.Fields[k] = v
	}
	return doc, nil
}
