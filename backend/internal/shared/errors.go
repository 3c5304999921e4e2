package shared

import (
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrMissingDependency means a related record needed to derive an
	// identifier or validate a row does not exist.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrDuplicateKey means a unique constraint rejected the write.
	ErrDuplicateKey = errors.New("duplicate key")

	ErrNotFound = errors.New("not found")
)

// Issue kinds reported per row by batch operations
const (
	IssueMissingDependency = "missing_dependency"
	IssueRangeViolation    = "range_violation"
	IssueTotalExceeded     = "total_exceeded"
	IssueInvalidValue      = "invalid_value"
	IssueDuplicateKey      = "duplicate_key"
)

// Issue is one rejected item of a batch. Row is 1-based: the sheet row for
// uploads, the position in the request array otherwise.
type Issue struct {
	Row     int    `json:"row"`
	Key     string `json:"key,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// BatchError rejects a whole batch. Nothing from the batch was persisted.
type BatchError struct {
	Message string
	Issues  []Issue
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: %d issue(s)", e.Message, len(e.Issues))
}

// MissingDependencyf wraps ErrMissingDependency with context
func MissingDependencyf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMissingDependency, fmt.Sprintf(format, args...))
}

// IsDuplicateKey reports unique constraint violations from the driver or
// from an in-memory store.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || mongo.IsDuplicateKeyError(err)
}

// ToStatus converts a domain or driver error into the gRPC status the
// gateway maps onto HTTP. Errors that already carry a status and batch
// errors pass through unchanged. Anything else is logged and reported as
// Internal with the given message.
func ToStatus(err error, internalMsg string) error {
	if err == nil {
		return nil
	}

	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		return err
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrMissingDependency):
		return status.Error(codes.FailedPrecondition, err.Error())
	case IsDuplicateKey(err):
		return status.Error(codes.AlreadyExists, "a record with the same unique key already exists")
	case errors.Is(err, ErrNotFound), errors.Is(err, mongo.ErrNoDocuments):
		return status.Error(codes.NotFound, "record not found")
	}

	log.Printf("ERROR: %s: %v", internalMsg, err)
	return status.Error(codes.Internal, internalMsg)
}
