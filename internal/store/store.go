// Package store provides the durable key-value persistence abstraction
// underlying all entity collections. Values are opaque JSON documents;
// the engine guarantees nothing beyond per-call atomicity of Get/Set.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnavailable marks any failure to reach the backing engine. Callers
// must degrade (skip the current firing, keep the process alive) rather
// than crash; see the error handling policy in the server package.
var ErrUnavailable = errors.New("store unavailable")

// Store is the injected persistence dependency. Get reports ok=false when
// the key has never been set; that is not an error. Set is an upsert with
// last-write-wins semantics for concurrent writers. SetDefault writes the
// value only when the key is absent, making startup initialization
// idempotent. No multi-key transaction exists: compound read-then-write
// sequences are best-effort and callers must not assume atomicity across
// calls.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	SetDefault(ctx context.Context, key string, value json.RawMessage) error
	Ping(ctx context.Context) error
}
