package geokv

import (
	"errors"
	"fmt"

	"github.com/hupe1980/geokv/kv"
	"github.com/hupe1980/geokv/model"
)

var (
	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("geokv: closed")

	// ErrNoIndex is returned when neither the caller nor the store supplies an index model.
	ErrNoIndex = errors.New("geokv: no index model")

	// ErrUnknownAdapter is returned when an adapter id is not registered.
	ErrUnknownAdapter = model.ErrUnknownAdapter

	// ErrInvalidQuery is returned for inconsistent query options.
	ErrInvalidQuery = errors.New("geokv: invalid query")
)

// ErrIndexMismatch indicates that the index model given to Open differs from
// the one the store was created with.
type ErrIndexMismatch struct {
	Stored string
	Given  string
}

func (e *ErrIndexMismatch) Error() string {
	return fmt.Sprintf("geokv: store uses index %s, got %s", e.Stored, e.Given)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kv.ErrClosed) && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
