package service

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Namer issues file identifiers
type Namer interface {
	Next() string
}

// UniqueNamer issues lowercase ULIDs. Within a process the IDs are strictly
// increasing; across processes they differ by 80 bits of randomness.
type UniqueNamer struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewUniqueNamer creates a namer backed by crypto/rand
func NewUniqueNamer() *UniqueNamer {
	return &UniqueNamer{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a fresh identifier
func (n *UniqueNamer) Next() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), n.entropy).String())
}
