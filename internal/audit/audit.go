// Package audit maintains the append-only action trail. Writes are
// best-effort: a failed append is reported on the diagnostic channel and
// never blocks the mutation it accompanies.
package audit

import (
	"context"
	"strings"

	"linoslms.org/internal/obs"
	"linoslms.org/internal/records"
)

// Action tags follow the <VERB>_<ENTITY> convention the screens rely on.
const (
	ActionLogin          = "LOGIN"
	ActionCreateUser     = "CREATE_USER"
	ActionUpdateUser     = "UPDATE_USER"
	ActionDeleteUser     = "DELETE_USER"
	ActionResetPassword  = "RESET_PASSWORD"
	ActionCreatePatient  = "CREATE_PATIENT"
	ActionUpdatePatient  = "UPDATE_PATIENT"
	ActionDeletePatient  = "DELETE_PATIENT"
	ActionCreateSpecimen = "CREATE_SPECIMEN"
	ActionUpdateSpecimen = "UPDATE_SPECIMEN"
	ActionCreateTest     = "CREATE_TEST"
	ActionUpdateTest     = "UPDATE_TEST"
	ActionCreateResult   = "CREATE_RESULT"
	ActionUpdateResult   = "UPDATE_RESULT"
	ActionApproveResult  = "APPROVE_RESULT"
	ActionRejectResult   = "REJECT_RESULT"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Recorder appends entries to the audit collection.
type Recorder struct {
	store *records.Store
}

// NewRecorder wraps the record store's audit collection.
func NewRecorder(store *records.Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one entry. It always succeeds from the caller's point
// of view; persistence failures only reach the diagnostic log.
func (r *Recorder) Record(ctx context.Context, action, userID string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		details["requestId"] = rid
	}
	if _, err := r.store.AppendAudit(ctx, action, userID, details); err != nil {
		obs.Diag("audit.write_failed", map[string]any{
			"action": action,
			"userId": userID,
			"error":  err.Error(),
		})
	}
}

// List returns the trail in insertion order, most recent last. Consumers
// wanting recency first reverse or slice on their side.
func (r *Recorder) List(ctx context.Context) []records.AuditEntry {
	return r.store.ListAudit(ctx)
}
