// Package identity maps self-asserted client tokens to stable anonymous
// numbers and tracks which connection, if any, each identity is bound to.
//
// A Registry is not safe for concurrent use. It is owned by the session
// coordinator, which drives it from a single event loop.
package identity

import (
	"slices"
	"time"
)

// one pseudonymous participant
type Identity struct {
	Token    string
	Number   int
	ConnID   string // empty while offline
	LastSeen time.Time
}

// reports whether the identity has a live connection
func (i Identity) Online() bool {
	return i.ConnID != ""
}

type Registry struct {
	byToken  map[string]*Identity
	byConn   map[string]string // connection ID -> token
	byNumber map[int]string    // anonymous number -> token
	next     int
	now      func() time.Time
}

// creates an empty registry; numbering starts at 1
func NewRegistry() *Registry {
	return &Registry{
		byToken:  make(map[string]*Identity),
		byConn:   make(map[string]string),
		byNumber: make(map[int]string),
		next:     1,
		now:      time.Now,
	}
}

// binds connID to the identity for token, creating it on first sight.
// a previous connection of the same identity is forgotten.
func (r *Registry) RegisterOrRefresh(token, connID string) (number int, isNew bool) {
	id, exists := r.byToken[token]

	if !exists {
		id = &Identity{
			Token:  token,
			Number: r.next,
		}
		r.next++

		r.byToken[token] = id
		r.byNumber[id.Number] = token
		isNew = true
	}

	if id.ConnID != "" && id.ConnID != connID {
		delete(r.byConn, id.ConnID)
	}

	// the connection may previously have belonged to another token
	if prevToken, ok := r.byConn[connID]; ok && prevToken != token {
		if prev, ok := r.byToken[prevToken]; ok {
			prev.ConnID = ""
			prev.LastSeen = r.now()
		}
	}

	id.ConnID = connID
	id.LastSeen = r.now()
	r.byConn[connID] = token

	return id.Number, isNew
}

// clears the connection of whichever identity is bound to connID.
// returns false for connections that were never registered or were superseded.
func (r *Registry) MarkOffline(connID string) (Identity, bool) {
	token, ok := r.byConn[connID]
	if !ok {
		return Identity{}, false
	}

	delete(r.byConn, connID)

	id := r.byToken[token]
	id.ConnID = ""
	id.LastSeen = r.now()

	return *id, true
}

// removes the identity only if it is still offline.
// reconnected and already evicted identities are left alone.
func (r *Registry) EvictIfStillOffline(number int) bool {
	token, ok := r.byNumber[number]
	if !ok {
		return false
	}

	id := r.byToken[token]
	if id.Online() {
		return false
	}

	delete(r.byToken, token)
	delete(r.byNumber, number)

	return true
}

// returns the identity bound to connID
func (r *Registry) Lookup(connID string) (Identity, bool) {
	token, ok := r.byConn[connID]
	if !ok {
		return Identity{}, false
	}

	return *r.byToken[token], true
}

// returns the numbers of all connected identities in ascending order
func (r *Registry) ListOnline() []int {
	online := make([]int, 0, len(r.byConn))

	for _, token := range r.byConn {
		online = append(online, r.byToken[token].Number)
	}

	slices.Sort(online)

	return online
}

// returns the number of known identities, online or offline
func (r *Registry) Len() int {
	return len(r.byToken)
}
