package registry

import (
	"sync"

	"github.com/dd0wney/cluso-leader/pkg/metrics"
)

// InMemory is a process-local Registry. It backs single-node embeddings and
// tests: all masters and callers in the same process share one instance.
//
// Concurrent Safety:
// 1. All state access protected by sync.Mutex
// 2. Owner termination is observed via the handle's Done channel in a
//    dedicated goroutine per binding
// 3. Monitor channels are closed exactly once, under the lock
type InMemory struct {
	mu       sync.Mutex
	bindings map[string]Handle          // serviceID -> owner
	watchers map[string][]chan struct{} // handleID -> monitor channels
	dead     map[string]bool            // handleIDs whose owner already terminated
	closed   bool

	metricsRegistry *metrics.Registry
}

// NewInMemory creates an empty in-process registry
func NewInMemory() *InMemory {
	return &InMemory{
		bindings:        make(map[string]Handle),
		watchers:        make(map[string][]chan struct{}),
		dead:            make(map[string]bool),
		metricsRegistry: metrics.DefaultRegistry(),
	}
}

// Lookup returns the live binding for serviceID, if any
func (r *InMemory) Lookup(serviceID string) (Handle, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrClosed
	}

	h, ok := r.bindings[serviceID]
	if !ok || r.dead[h.ID()] {
		r.metricsRegistry.RegistryLookupsTotal.WithLabelValues("absent").Inc()
		return nil, false, nil
	}

	r.metricsRegistry.RegistryLookupsTotal.WithLabelValues("found").Inc()
	return h, true, nil
}

// RegisterIfAbsent atomically binds serviceID to h
func (r *InMemory) RegisterIfAbsent(serviceID string, h Handle) error {
	term, ok := h.(Terminatable)
	if !ok {
		return ErrNotMonitorable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if existing, exists := r.bindings[serviceID]; exists && !r.dead[existing.ID()] {
		r.metricsRegistry.RegistryRegistrationsTotal.WithLabelValues("conflict").Inc()
		return ErrConflict
	}

	r.bindings[serviceID] = h
	r.metricsRegistry.RegistryRegistrationsTotal.WithLabelValues("success").Inc()
	r.metricsRegistry.RegistryBindings.Set(float64(r.liveBindingsLocked()))

	// Sweep the binding when its owner terminates
	go func() {
		<-term.Done()
		r.ownerTerminated(serviceID, h.ID())
	}()

	return nil
}

// Monitor subscribes to termination of h's owner
func (r *InMemory) Monitor(h Handle) (<-chan struct{}, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, nil, ErrClosed
	}

	ch := make(chan struct{})
	id := h.ID()

	if r.dead[id] {
		// Owner already gone: deliver the notification immediately
		close(ch)
		return ch, func() {}, nil
	}

	r.watchers[id] = append(r.watchers[id], ch)

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		chans := r.watchers[id]
		for i, c := range chans {
			if c == ch {
				r.watchers[id] = append(chans[:i], chans[i+1:]...)
				return
			}
		}
	}

	return ch, cancel, nil
}

// Close shuts the registry down; subsequent operations fail with ErrClosed
func (r *InMemory) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *InMemory) ownerTerminated(serviceID, handleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dead[handleID] = true

	// Drop the binding only if it still belongs to this incarnation
	if h, ok := r.bindings[serviceID]; ok && h.ID() == handleID {
		delete(r.bindings, serviceID)
	}

	for _, ch := range r.watchers[handleID] {
		close(ch)
	}
	delete(r.watchers, handleID)

	r.metricsRegistry.RegistryBindings.Set(float64(r.liveBindingsLocked()))
}

func (r *InMemory) liveBindingsLocked() int {
	n := 0
	for _, h := range r.bindings {
		if !r.dead[h.ID()] {
			n++
		}
	}
	return n
}
