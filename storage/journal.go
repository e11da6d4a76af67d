package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"tasksync/domain"
)

// Journal appends successful commands to an Azure Storage queue.
type Journal struct {
	enqueue func(ctx context.Context, content string) error
}

// NewJournal connects to the named queue.
func NewJournal(connStr, queue string) (*Journal, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	qc, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
	if err != nil {
		return nil, err
	}
	return &Journal{enqueue: func(ctx context.Context, content string) error {
		_, err := qc.EnqueueMessage(ctx, content, nil)
		return err
	}}, nil
}

// Record enqueues rec as a JSON message.
func (j *Journal) Record(ctx context.Context, rec domain.CommandRecord) error {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return err
	}
	return j.enqueue(ctx, string(data))
}
