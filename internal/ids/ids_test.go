package ids

import (
	"strings"
	"testing"
)

func TestNewIsPrefixed(t *testing.T) {
	id := New(KindPatient)
	if !strings.HasPrefix(id, "PAT-") {
		t.Fatalf("expected PAT- prefix, got %s", id)
	}
	if Kind(id) != KindPatient {
		t.Fatalf("Kind(%s) = %s", id, Kind(id))
	}
}

func TestNewUniqueWithinTick(t *testing.T) {
	const n = 1000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := New(KindTest)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d creates: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewWithoutKind(t *testing.T) {
	id := New("")
	if strings.Contains(id, "-") {
		t.Fatalf("unprefixed id should have no separator: %s", id)
	}
	if Kind(id) != "" {
		t.Fatalf("expected empty kind, got %s", Kind(id))
	}
}
