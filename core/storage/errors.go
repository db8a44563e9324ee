package storage

import (
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
)

// ErrObjectNotFound is returned by Stat/Fetch when the key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// ListingError wraps a transient listing failure. A run aborted by a
// ListingError can be retried as-is.
type ListingError struct {
	Err error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("storage listing failed: %v", e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }

// AuthError wraps a credential or permission failure. It is fatal: retrying
// without fixing the storage configuration cannot succeed.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("storage authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// minio error codes that indicate bad credentials rather than a flaky page.
var authErrorCodes = map[string]struct{}{
	"AccessDenied":            {},
	"InvalidAccessKeyId":      {},
	"SignatureDoesNotMatch":   {},
	"AllAccessDisabled":       {},
	"AccountProblem":          {},
	"CredentialsNotSupported": {},
}

// classifyListError maps a provider error to the ListingError/AuthError
// taxonomy.
func classifyListError(err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		if _, ok := authErrorCodes[resp.Code]; ok {
			return &AuthError{Err: err}
		}
	}
	return &ListingError{Err: err}
}
