package chat

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"chatbridge/internal/cache"
)

// DeriveKey computes the cache key for one request: a sha256 digest over
// the session id, the full ordered history and the new query. The
// encoding is length-prefixed so it is injective: two requests produce
// the same key iff all three inputs are byte-identical.
//
// The history passed in must be the state BEFORE the current user turn
// is appended; the key identifies "this question given this prior
// context", not the post-response state.
func DeriveKey(query string, history History, sessionID string) cache.Key {
	h := sha256.New()

	writeField(h, sessionID)
	for _, t := range history {
		writeField(h, t.Role)
		writeField(h, t.Content)
	}
	writeField(h, query)

	return cache.Key{
		SessionID: sessionID,
		Hash:      hex.EncodeToString(h.Sum(nil)),
	}
}

func writeField(h hash.Hash, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}
