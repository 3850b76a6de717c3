package scan

import (
	"errors"
	"fmt"

	"github.com/hupe1980/geokv/model"
)

// ErrCallbackPanic is wrapped into the PartialReadError of a scan whose
// callback panicked.
var ErrCallbackPanic = errors.New("scan callback panicked")

var errClosed = fmt.Errorf("%w: query is closed", model.ErrIllegalState)
