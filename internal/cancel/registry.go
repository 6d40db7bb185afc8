// Package cancel correlates create-and-wait sessions with out-of-band cancel
// requests through caller-chosen identifiers.
package cancel

import (
	"errors"
	"sync"
)

// ErrInUse is returned by Register when a live session already holds the
// identifier.
var ErrInUse = errors.New("cancel token is already in use by a running wait")

type entry struct {
	cancelled bool
}

// Registry maps cancel token identifiers to one-shot cancellation flags.
//
// An identifier belongs to at most one live session. The session registers
// it when it starts and releases it when it ends. A cancel request signals
// the identifier; the session consumes the signal on its next check, which
// also removes the entry so the identifier can be reused by a later session
// without inheriting the old signal.
//
// The registry exposes no way to enumerate identifiers. All methods are safe
// for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// Register claims id for one session and returns the function that releases
// the claim. The release only removes the entry this call created, so a
// session that ends after its signal was consumed never drops the entry of
// a later session reusing id. An empty id registers nothing.
func (r *Registry) Register(id string) (release func(), err error) {
	if id == "" {
		return func() {}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return nil, ErrInUse
	}
	e := &entry{}
	r.entries[id] = e
	return func() { r.release(id, e) }, nil
}

// Signal marks id as cancelled. It reports whether an entry existed; an
// unknown id is a no-op, not an error.
func (r *Registry) Signal(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.cancelled = true
	return true
}

// IsCancelled reports whether id has been signalled. A positive answer
// consumes the signal and removes the entry, so exactly one caller observes
// each signal.
func (r *Registry) IsCancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || !e.cancelled {
		return false
	}
	delete(r.entries, id)
	return true
}

func (r *Registry) release(id string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[id] == e {
		delete(r.entries, id)
	}
}
