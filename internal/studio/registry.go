package studio

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry keeps one Controller per browser session. Sessions expire after
// a period without access; an expired controller is closed, which cancels
// any polling it still runs.
type Registry struct {
	mu      sync.Mutex
	items   *cache.Cache
	factory func() *Controller
}

// NewRegistry creates a registry whose controllers come from factory and
// expire after ttl of inactivity.
func NewRegistry(ttl time.Duration, factory func() *Controller) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	items := cache.New(ttl, ttl/2)
	items.OnEvicted(func(_ string, v interface{}) {
		if ctrl, ok := v.(*Controller); ok {
			go ctrl.Close()
		}
	})
	return &Registry{items: items, factory: factory}
}

// Get returns the controller for sessionID, creating it on first use, and
// extends the session's lifetime.
func (r *Registry) Get(sessionID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.items.Get(sessionID); ok {
		ctrl := v.(*Controller)
		r.items.SetDefault(sessionID, ctrl)
		return ctrl
	}
	ctrl := r.factory()
	r.items.SetDefault(sessionID, ctrl)
	return ctrl
}

// Lookup returns the controller for sessionID without creating one.
func (r *Registry) Lookup(sessionID string) (*Controller, bool) {
	v, ok := r.items.Get(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Controller), true
}

// Drop removes a session and closes its controller, waiting for any run to stop.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	v, ok := r.items.Get(sessionID)
	r.items.Delete(sessionID)
	r.mu.Unlock()
	if ok {
		v.(*Controller).Close()
	}
}

// Len reports how many sessions are held.
func (r *Registry) Len() int {
	return r.items.ItemCount()
}

// Close closes every controller. The registry must not be used afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	items := r.items.Items()
	r.items.Flush()
	r.mu.Unlock()
	for _, item := range items {
		if ctrl, ok := item.Object.(*Controller); ok {
			ctrl.Close()
		}
	}
}
