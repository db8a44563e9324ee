package datasync

import (
	"errors"
	"fmt"
)

// ErrStaleConflict is returned when a resolution no longer matches the
// recorded storage snapshot: storage changed again since the conflict was
// written, so resolving blindly would lose data. The caller must re-run
// reconciliation to refresh the conflict first.
var ErrStaleConflict = errors.New("datasync: conflict is stale, storage changed since it was recorded")

// ErrQuotaExceeded is returned when the tenant's quota check fails before a
// run starts.
var ErrQuotaExceeded = errors.New("datasync: tenant quota exceeded")

// ExtractionError scopes a failure to a single key. It degrades that key's
// action to "error"; the run continues with the remaining keys.
type ExtractionError struct {
	Key string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Key, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
