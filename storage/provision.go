package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// Provision creates the tasks table and, when named, the journal queue.
// Existing resources are left untouched.
func Provision(ctx context.Context, connStr, table, queue string) error {
	if table != "" {
		svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
		if err != nil {
			return err
		}
		if _, err := svc.NewClient(table).CreateTable(ctx, nil); err != nil && !alreadyExists(err, string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	if queue != "" {
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, nil)
		if err != nil {
			return err
		}
		if _, err := q.Create(ctx, nil); err != nil && !alreadyExists(err, "QueueAlreadyExists") {
			return err
		}
	}
	return nil
}

func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}
