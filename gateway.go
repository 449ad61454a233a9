package dynamodbadapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
)

// maxBatchSize is the DynamoDB BatchWriteItem item limit per request.
const maxBatchSize = 25

// maxBatchRetries bounds how many times a chunk's unprocessed items are
// resubmitted before giving up with a PartialBatchError.
const maxBatchRetries = 5

// DynamoClient is the subset of the DynamoDB API the adapter uses. It is
// satisfied by *dynamodb.Client and by test fakes.
type DynamoClient interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ DynamoClient = (*dynamodb.Client)(nil)

// gateway wraps the remote table, hiding scan pagination and batch-write
// chunking from the synchronizer.
type gateway struct {
	client DynamoClient
	table  string
}

// scanAll returns every item in the table, following LastEvaluatedKey until
// the scan is exhausted. A failed page aborts the whole scan; it never
// returns a partial result as if it were complete.
func (g *gateway) scanAll(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue

	for {
		out, err := g.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(g.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, classify("scan", err)
		}

		items = append(items, out.Items...)

		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (g *gateway) putItem(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.table),
		Item:      item,
	})
	if err != nil {
		return classify("put item", err)
	}
	return nil
}

func (g *gateway) deleteItem(ctx context.Context, key string) error {
	_, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.table),
		Key:       itemKey(key),
	})
	if err != nil {
		return classify("delete item", err)
	}
	return nil
}

// batchWrite applies a mixed list of put/delete requests, chunked to the
// store's batch limit. Items the store reports as unprocessed are resubmitted
// with exponential backoff; if retries are exhausted the remaining requests
// are returned inside a PartialBatchError.
func (g *gateway) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(requests) {
			end = len(requests)
		}

		if err := g.writeChunk(ctx, requests[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (g *gateway) writeChunk(ctx context.Context, chunk []types.WriteRequest) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	pending := chunk
	for attempt := 0; ; attempt++ {
		out, err := g.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{g.table: pending},
		})
		if err != nil {
			return classify("batch write", err)
		}

		pending = out.UnprocessedItems[g.table]
		if len(pending) == 0 {
			return nil
		}
		if attempt >= maxBatchRetries {
			return &PartialBatchError{Unapplied: pending}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID: &types.AttributeValueMemberS{Value: key},
	}
}

// transientCodes are DynamoDB error codes worth retrying at the caller level.
var transientCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"TransactionInProgressException":         true,
}

// classify maps an SDK error onto the adapter's taxonomy: transient remote
// faults wrap ErrStoreUnavailable, permanent ones wrap ErrStoreRejected.
func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if transientCodes[apiErr.ErrorCode()] || apiErr.ErrorFault() == smithy.FaultServer {
			return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
		}
		return fmt.Errorf("%s: %w: %w", op, ErrStoreRejected, err)
	}

	// Anything that never reached the service (connection reset, timeout,
	// DNS) is transient from the caller's point of view.
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
