// Package presence tracks which users currently have a live connection.
// The registry is advisory: it controls live push delivery only, never
// durability. Users absent from it reconcile over the read path on
// reconnect.
package presence

import "sync"

// Registry maps a user identity to its current connection identifier.
// At most one connection per user; a newer connection silently replaces an
// older one. The registry is the single mutual-exclusion domain for all
// presence mutations.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connID
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]string)}
}

// MarkOnline records connID as the live connection for userID, replacing
// any previous mapping. Idempotent for repeated identical calls.
func (r *Registry) MarkOnline(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = connID
}

// MarkOffline removes the mapping owned by connID and returns the user it
// belonged to. Returns ok=false when the connection never authenticated or
// was already replaced by a newer connection for the same user.
func (r *Registry) MarkOffline(connID string) (userID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, cid := range r.byUser {
		if cid == connID {
			delete(r.byUser, uid)
			return uid, true
		}
	}
	return "", false
}

// Lookup returns the connection identifier for userID, if online.
func (r *Registry) Lookup(userID string) (connID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok = r.byUser[userID]
	return connID, ok
}

// Online returns the set of currently online user identities.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.byUser))
	for uid := range r.byUser {
		users = append(users, uid)
	}
	return users
}
