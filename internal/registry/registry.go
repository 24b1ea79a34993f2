package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/firefly-engineering/desklab/internal/docstore"
	"github.com/firefly-engineering/desklab/internal/logging"
)

// ErrNotFound is returned when a (user, session) pair has no entry.
var ErrNotFound = errors.New("session not registered")

// Session is one registry entry.
type Session struct {
	Port       int    `json:"port"`
	Credential string `json:"vnckey"`
}

// Document is the persisted registry: user -> session id -> entry.
type Document map[string]map[string]Session

func cloneSessions(s map[string]Session) map[string]Session {
	out := make(map[string]Session, len(s))
	for sid, e := range s {
		out[sid] = e
	}
	return out
}

// Registry maps (user, session id) to a port and display credential. The
// whole mapping is one document in the store; every mutation loads it,
// changes it and writes it back while holding the write lock.
//
// The lock only orders writers inside this process. Two processes sharing a
// store can still interleave their load and store steps and lose an update.
type Registry struct {
	store docstore.Store
	ref   docstore.Ref

	mu    sync.RWMutex
	cache Document
}

// New creates a registry persisted at ref.
func New(store docstore.Store, ref docstore.Ref) *Registry {
	return &Registry{store: store, ref: ref}
}

// Ref returns where the registry document lives.
func (r *Registry) Ref() docstore.Ref {
	return r.ref
}

func (r *Registry) load(ctx context.Context) (Document, error) {
	data, err := r.store.Get(ctx, r.ref)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("failed to load session registry: %w", err)
	}

	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("session registry %s is malformed: %w", r.ref, err)
	}
	for user, sessions := range doc {
		if sessions == nil {
			doc[user] = map[string]Session{}
		}
	}
	return doc, nil
}

// mutate runs fn on a freshly loaded document and stores the result when fn
// reports a change.
func (r *Registry) mutate(ctx context.Context, fn func(Document) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return err
	}

	if fn(doc) {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode session registry: %w", err)
		}
		if err := r.store.Put(ctx, r.ref, data); err != nil {
			return fmt.Errorf("failed to store session registry: %w", err)
		}
	}

	r.cache = doc
	return nil
}

// List returns a user's sessions from the cached snapshot. The snapshot is
// loaded on first use and refreshed after every local mutation.
func (r *Registry) List(ctx context.Context, user string) (map[string]Session, error) {
	r.mu.RLock()
	cache := r.cache
	r.mu.RUnlock()

	if cache == nil {
		r.mu.Lock()
		if r.cache == nil {
			doc, err := r.load(ctx)
			if err != nil {
				r.mu.Unlock()
				return nil, err
			}
			r.cache = doc
		}
		cache = r.cache
		r.mu.Unlock()
	}

	return cloneSessions(cache[user]), nil
}

// GetFresh reads the entry straight from the store. It waits for an in-flight
// local mutation and sees writes made by other processes.
func (r *Registry) GetFresh(ctx context.Context, user, sessionID string) (Session, error) {
	r.mu.RLock()
	doc, err := r.load(ctx)
	r.mu.RUnlock()
	if err != nil {
		return Session{}, err
	}

	s, ok := doc[user][sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

// Put adds or overwrites an entry.
func (r *Registry) Put(ctx context.Context, user, sessionID string, port int, credential string) error {
	err := r.mutate(ctx, func(doc Document) bool {
		if doc[user] == nil {
			doc[user] = map[string]Session{}
		}
		doc[user][sessionID] = Session{Port: port, Credential: credential}
		return true
	})
	if err == nil {
		logging.Debug("registered session", "user", user, "session", sessionID, "port", port)
	}
	return err
}

// Remove deletes an entry. It reports false when there was none.
func (r *Registry) Remove(ctx context.Context, user, sessionID string) (bool, error) {
	removed := false
	err := r.mutate(ctx, func(doc Document) bool {
		if _, ok := doc[user][sessionID]; !ok {
			return false
		}
		delete(doc[user], sessionID)
		if len(doc[user]) == 0 {
			delete(doc, user)
		}
		removed = true
		return true
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// SetCredential replaces the credential of an existing entry. It reports
// false when there is no entry.
func (r *Registry) SetCredential(ctx context.Context, user, sessionID, credential string) (bool, error) {
	updated := false
	err := r.mutate(ctx, func(doc Document) bool {
		s, ok := doc[user][sessionID]
		if !ok {
			return false
		}
		s.Credential = credential
		doc[user][sessionID] = s
		updated = true
		return true
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// Ports returns the ports held by every registered session, read fresh.
func (r *Registry) Ports(ctx context.Context) (map[int]bool, error) {
	doc, err := r.All(ctx)
	if err != nil {
		return nil, err
	}

	ports := make(map[int]bool)
	for _, sessions := range doc {
		for _, s := range sessions {
			ports[s.Port] = true
		}
	}
	return ports, nil
}

// All returns the whole document, read fresh.
func (r *Registry) All(ctx context.Context) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load(ctx)
}
