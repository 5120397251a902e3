package audit

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"linoslms.org/internal/obs"
	"linoslms.org/internal/records"
	"linoslms.org/internal/storage"
)

func TestRecordAppendsEntry(t *testing.T) {
	store := records.NewStore(storage.NewMemory())
	rec := NewRecorder(store)
	ctx := WithRequestID(context.Background(), "req-123")

	rec.Record(ctx, ActionCreatePatient, "USR-1", map[string]any{"patientId": "PAT-9"})

	trail := rec.List(context.Background())
	if len(trail) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(trail))
	}
	entry := trail[0]
	if entry.Action != ActionCreatePatient || entry.UserID != "USR-1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Details["requestId"] != "req-123" {
		t.Fatalf("request id not attached: %v", entry.Details)
	}
	if entry.Timestamp.IsZero() {
		t.Fatal("timestamp not stamped")
	}
}

type failingBackend struct{}

func (failingBackend) Load(ctx context.Context, key string) ([]byte, error) {
	return nil, storage.ErrNoKey
}

func (failingBackend) Store(ctx context.Context, key string, payload []byte) error {
	return context.DeadlineExceeded
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	store := records.NewStore(failingBackend{})
	rec := NewRecorder(store)

	// Must not panic or propagate anything.
	rec.Record(context.Background(), ActionUpdateTest, "USR-1", nil)

	if !strings.Contains(buf.String(), "audit.write_failed") {
		t.Fatalf("expected diagnostic log, got: %s", buf.String())
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
	if same := WithRequestID(ctx, "  "); same != ctx {
		t.Fatal("blank request id should not allocate a new context")
	}
	ctx = WithRequestID(ctx, "req-9")
	if got := RequestIDFromContext(ctx); got != "req-9" {
		t.Fatalf("unexpected request id %q", got)
	}
}
