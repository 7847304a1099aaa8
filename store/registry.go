package store

import (
	"sync"

	"maildash/utils"
)

// Registry owns one Store per user id
type Registry struct {
	api  API
	log  *utils.Logger
	opts []Option

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates a registry whose stores share api and opts
func NewRegistry(api API, log *utils.Logger, opts ...Option) *Registry {
	if log == nil {
		log = utils.Log
	}
	return &Registry{
		api:    api,
		log:    log,
		opts:   opts,
		stores: make(map[string]*Store),
	}
}

// For returns the store of userID, creating it on first use
func (r *Registry) For(userID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stores[userID]
	if !ok {
		s = New(r.api, r.log.WithField("user_id", userID), r.opts...)
		r.stores[userID] = s
	}
	return s
}

// Drop resets and forgets the store of userID
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	s, ok := r.stores[userID]
	delete(r.stores, userID)
	r.mu.Unlock()

	if ok {
		s.Reset()
	}
}

// Len returns the number of live stores
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
