package server

import (
	"sync"

	"github.com/numbleroot/nestor/imap"
)

// Structs

// Registry keeps track of all live sessions of a
// server so that they can be shut down together.
type Registry struct {
	lock     sync.Mutex
	sessions map[string]*imap.Session
	closed   bool
}

// Functions

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {

	return &Registry{
		sessions: make(map[string]*imap.Session),
	}
}

// Add registers sess. If the registry was shut down
// already, sess is closed instead and Add reports false.
func (r *Registry) Add(sess *imap.Session) bool {

	r.lock.Lock()

	if r.closed {
		r.lock.Unlock()
		sess.Close()
		return false
	}

	r.sessions[sess.ID()] = sess
	r.lock.Unlock()

	return true
}

// Remove forgets sess.
func (r *Registry) Remove(sess *imap.Session) {

	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.sessions, sess.ID())
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {

	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.sessions)
}

// Shutdown closes every registered session and refuses
// all sessions added afterwards. Sessions are closed
// outside the registry lock, as closing runs their
// exit hooks.
func (r *Registry) Shutdown() {

	r.lock.Lock()

	r.closed = true

	sessions := make([]*imap.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}

	r.lock.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
