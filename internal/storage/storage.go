// Package storage provides the keyed persistence substrate backing the
// record collections. Each collection lives under a distinct namespaced
// key as a single serialized payload.
package storage

import (
	"context"
	"errors"
)

// Namespaced collection keys.
const (
	KeyUsers     = "lms_users"
	KeyPatients  = "lms_patients"
	KeySpecimens = "lms_specimens"
	KeyTests     = "lms_tests"
	KeyResults   = "lms_results"
	KeyAuditLogs = "lms_audit_logs"
)

// ErrNoKey indicates the key has never been written.
var ErrNoKey = errors.New("storage: key not found")

// Backend persists opaque payloads under namespaced keys.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, payload []byte) error
}
