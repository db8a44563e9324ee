package datasync

import (
	"context"
	"fmt"
)

// QuotaChecker decides whether a tenant may reconcile the given number of
// storage objects. Billing-aware implementations live outside this
// subsystem; the pipeline only consumes the pass/fail verdict.
type QuotaChecker interface {
	Check(ctx context.Context, tenantID string, objectCount int) error
}

// maxObjectsQuota is the default checker: a flat per-tenant object cap.
type maxObjectsQuota struct {
	max int
}

// NewMaxObjectsQuota returns a QuotaChecker enforcing a flat object cap.
// A non-positive cap disables the check.
func NewMaxObjectsQuota(max int) QuotaChecker {
	return &maxObjectsQuota{max: max}
}

func (q *maxObjectsQuota) Check(_ context.Context, tenantID string, objectCount int) error {
	if q.max > 0 && objectCount > q.max {
		return fmt.Errorf("%w: tenant %s has %d objects, limit %d", ErrQuotaExceeded, tenantID, objectCount, q.max)
	}
	return nil
}
