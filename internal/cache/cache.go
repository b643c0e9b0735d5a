package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConflict reports a Set whose key already holds a different value.
// Identical fingerprints are assumed to imply identical payloads, so a
// divergent store is an internal-invariant violation. The original value
// is kept; callers log the conflict and use their fresh result.
var ErrConflict = errors.New("cache: conflicting value for existing key")

// Key identifies one cached dual response. Hash is a hex sha256 of the
// canonical (query, history, session) encoding, derived in the chat package.
type Key struct {
	SessionID string
	Hash      string
}

// String converts the structured key into the final string used in Redis/map.
func (k Key) String() string {
	// chat:<SESSION_ID>:<HASH_HEX>
	return fmt.Sprintf("chat:%s:%s", k.SessionID, k.Hash)
}

// QueryCache is the interface used by the chat service.
// Implemented by the memory cache (dev) and the Redis cache (prod).
// Values are immutable once stored: Set on an existing key with the same
// value is a no-op, with a different value it returns ErrConflict.
type QueryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
