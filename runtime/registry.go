package runtime

import (
	"chatline/contract"
	"sync"
)

type Set map[string]struct{}

// Registry tracks live query subscriptions of the document store.
type Registry struct {
	mu                sync.RWMutex
	sessions          map[string]contract.LiveQuery // map subscription -> live query
	collectionMembers map[string]Set                // map collection to subscriptions
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:          make(map[string]contract.LiveQuery),
		collectionMembers: make(map[string]Set),
	}
}

// GetForCollection retrieves every live query watching a collection.
// It resolves the collection's subscription ids into their registered queries.
// Returns nil if nobody watches the collection.
func (r *Registry) GetForCollection(collection string) []contract.LiveQuery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.collectionMembers[collection]
	if !ok {
		return nil
	}
	var active []contract.LiveQuery
	for id := range members {
		if live, exists := r.sessions[id]; exists {
			active = append(active, live)
		}
	}
	return active
}

// Subscribe registers a live query under its collection.
// If the collection is not watched yet, its set is initialized on the fly.
func (r *Registry) Subscribe(live contract.LiveQuery) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[live.ID] = live

	collection := live.Query.Collection
	if _, ok := r.collectionMembers[collection]; !ok {
		r.collectionMembers[collection] = make(Set)
	}
	r.collectionMembers[collection][live.ID] = struct{}{}
}

// Unsubscribe removes a live query. Empty collection sets are dropped
// so the maps do not grow with every mount.
func (r *Registry) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)

	collection := live.Query.Collection
	if members, ok := r.collectionMembers[collection]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.collectionMembers, collection)
		}
	}
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Count returns the number of active subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
