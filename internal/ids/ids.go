package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind prefixes distinguish record identifiers across collections.
const (
	KindUser     = "USR"
	KindPatient  = "PAT"
	KindSpecimen = "SPC"
	KindTest     = "TST"
	KindResult   = "RES"
	KindAudit    = "LOG"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a kind-prefixed, time-ordered identifier. The monotonic
// entropy source keeps ids unique even when the clock value repeats
// within a single millisecond.
func New(kind string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	if kind == "" {
		return id
	}
	return kind + "-" + id
}

// Kind extracts the prefix from an identifier, or "" if it has none.
func Kind(id string) string {
	i := strings.IndexByte(id, '-')
	if i <= 0 {
		return ""
	}
	return id[:i]
}
