package vector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Registry hands out exactly one Store per username. Concurrent callers for
// the same username get the same Store; construction runs at most once per
// username unless it failed, in which case the slot is evicted so the next
// caller retries.
type Registry struct {
	construct func(namespace, owner string) (Store, error)
	prefix    string

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once  sync.Once
	store Store
	err   error
}

// NewRegistry creates a registry that builds stores with the given
// constructor. The prefix namespaces collections so several deployments can
// share one Qdrant instance.
func NewRegistry(prefix string, construct func(namespace, owner string) (Store, error)) *Registry {
	if prefix == "" {
		prefix = "docuchat"
	}
	return &Registry{
		construct: construct,
		prefix:    prefix,
		entries:   make(map[string]*registryEntry),
	}
}

// Namespace derives the collection name for a username. Hashing keeps
// usernames with characters Qdrant rejects (or that would collide after
// sanitizing) from mapping to the same collection.
func (r *Registry) Namespace(username string) string {
	sum := sha256.Sum256([]byte(username))
	return fmt.Sprintf("%s_%s", r.prefix, hex.EncodeToString(sum[:])[:32])
}

// Resolve returns the store for the given username, constructing it on first
// use.
func (r *Registry) Resolve(username string) (Store, error) {
	r.mu.Lock()
	e, ok := r.entries[username]
	if !ok {
		e = &registryEntry{}
		r.entries[username] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.store, e.err = r.construct(r.Namespace(username), username)
	})
	if e.err != nil {
		// Evict the failed entry so a later call can retry, but only if
		// nobody replaced it already.
		r.mu.Lock()
		if cur, ok := r.entries[username]; ok && cur == e {
			delete(r.entries, username)
		}
		r.mu.Unlock()
		return nil, e.err
	}
	return e.store, nil
}
