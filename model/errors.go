package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedValue is returned when a value blob or bitmask is
	// inconsistent with its framing. It indicates store corruption or
	// misconfiguration and is never skipped silently.
	ErrMalformedValue = errors.New("malformed value")

	// ErrUnknownAdapter is returned when a row's adapter id cannot be resolved.
	ErrUnknownAdapter = errors.New("unknown adapter")

	// ErrIllegalState is returned when an operation is attempted on a closed query.
	ErrIllegalState = errors.New("illegal state")

	// ErrPartialRead marks a scan that failed after it started reading.
	ErrPartialRead = errors.New("partial read")
)

// PartialReadError reports a scan aborted mid-way.
//
// Rows is the number of raw rows consumed before the failure and Key the key
// of the failing row, if any. The cause can be accessed via errors.Unwrap.
type PartialReadError struct {
	Rows int64
	Key  *Key
	Err  error
}

func (e *PartialReadError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("partial read after %d rows at %s: %v", e.Rows, e.Key, e.Err)
	}
	return fmt.Sprintf("partial read after %d rows: %v", e.Rows, e.Err)
}

func (e *PartialReadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPartialRead.
func (e *PartialReadError) Is(target error) bool { return target == ErrPartialRead }
