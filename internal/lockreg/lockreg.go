// Package lockreg provides process-wide per-lead mutual exclusion so that
// at most one audit is in flight for a given lead at any time.
package lockreg

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-cli/internal/model"
)

// Registry is a mutex-guarded held-key table. The registry holds no TTL; a
// holder that never releases leaves the key locked, so callers must go
// through WithLock or release in every exit path.
type Registry struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewRegistry creates an empty Registry. Inject one instance into every
// entry point that audits; separate instances do not exclude each other.
func NewRegistry() *Registry {
	return &Registry{held: make(map[string]bool)}
}

// Acquire records key as held and returns true iff it was not already held.
// The check-and-set is atomic with respect to concurrent callers.
func (r *Registry) Acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held[key] {
		return false
	}
	r.held[key] = true
	return true
}

// Release unconditionally clears the held marker for key. Safe to call for
// a key that was never acquired.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, key)
}

// Held reports whether key is currently held.
func (r *Registry) Held(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[key]
}

// WithLock runs fn while holding key, releasing it on every exit path
// including panics. Returns ErrLockConflict without calling fn if the key
// is already held.
func (r *Registry) WithLock(key string, fn func() error) error {
	if !r.Acquire(key) {
		return eris.Wrapf(model.ErrLockConflict, "lockreg: %s", key)
	}
	defer r.Release(key)
	return fn()
}
