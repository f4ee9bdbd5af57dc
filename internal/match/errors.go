package match

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// errEmptyDataset marks a load that succeeded but returned no entities.
var errEmptyDataset = eris.New("dataset has no entities")

// InputError reports a request the engine refuses to process: empty or
// oversized batches, out-of-range option values, queries beyond the size
// limit. Never retried.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "match: invalid input: " + e.Reason
}

// NewInputError builds an InputError with a formatted reason.
func NewInputError(format string, args ...any) *InputError {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// DatasetUnavailableError means no usable dataset snapshot exists: the
// store is unreachable after retries, or it holds zero entities.
type DatasetUnavailableError struct {
	Err error
}

func (e *DatasetUnavailableError) Error() string {
	if e.Err == nil {
		return "match: dataset unavailable"
	}
	return "match: dataset unavailable: " + e.Err.Error()
}

func (e *DatasetUnavailableError) Unwrap() error { return e.Err }

// TimeoutError means the context deadline expired mid-match. Batch calls
// return partial results with pending items carrying this error.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return "match: timed out"
	}
	return "match: timed out: " + e.Err.Error()
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// CacheBackendError wraps a cache failure. It is logged and degraded to
// direct computation, never surfaced as a request failure.
type CacheBackendError struct {
	Err error
}

func (e *CacheBackendError) Error() string {
	return "match: cache backend: " + e.Err.Error()
}

func (e *CacheBackendError) Unwrap() error { return e.Err }

// IsInputError reports whether err is (or wraps) an InputError.
func IsInputError(err error) bool {
	var t *InputError
	return errors.As(err, &t)
}

// IsDatasetUnavailable reports whether err is (or wraps) a
// DatasetUnavailableError.
func IsDatasetUnavailable(err error) bool {
	var t *DatasetUnavailableError
	return errors.As(err, &t)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}
