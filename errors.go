package dynamodbadapter

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Common errors returned by the adapter. Use errors.Is to distinguish them;
// wrapped errors retain the underlying SDK failure for inspection.
var (
	// ErrMalformedRecord means a stored item could not be decoded into a
	// policy rule (missing type tag or a gap in the field attributes).
	ErrMalformedRecord = errors.New("malformed policy record")

	// ErrStoreUnavailable means a transient remote failure (throttling,
	// network, server-side 5xx). Safe to retry the whole operation.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreRejected means a permanent remote failure (missing table,
	// invalid request, access denied). Retrying will not help.
	ErrStoreRejected = errors.New("store rejected request")
)

// PartialBatchError is returned when a batch write could not be fully applied
// after retrying the store's unprocessed items. Unapplied holds the write
// requests that were never confirmed, so callers can re-issue just those.
type PartialBatchError struct {
	Unapplied []types.WriteRequest
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("batch write incomplete: %d items unapplied after retries", len(e.Unapplied))
}
