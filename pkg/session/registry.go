package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry keeps one orchestrator per campaign for long-running servers.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	sessions map[uuid.UUID]*Orchestrator
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*Orchestrator),
	}
}

// Get returns the orchestrator for id, creating an unstarted one if none
// exists.
func (r *Registry) Get(id uuid.UUID) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.sessions[id]; ok {
		return o
	}
	o := New(id, r.cfg)
	r.sessions[id] = o
	return o
}

// Lookup returns an existing orchestrator.
func (r *Registry) Lookup(id uuid.UUID) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.sessions[id]
	return o, ok
}

// Remove forgets the orchestrator for id, e.g. after the campaign is
// deleted.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
