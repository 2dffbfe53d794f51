package errs

import (
	"context"
	"errors"
	"fmt"
)

// StorageError marks an infrastructure fault in a durable store or the object store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it already is one.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ExternalServiceError marks a failed call to the extractor or the email transport.
type ExternalServiceError struct {
	Service string
	Timeout bool
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timed out: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// External wraps err as an ExternalServiceError, flagging deadline expiry as a timeout.
func External(service string, err error) *ExternalServiceError {
	if err == nil {
		return nil
	}
	var ee *ExternalServiceError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExternalServiceError{
		Service: service,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

// IsStorage reports whether err carries a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
