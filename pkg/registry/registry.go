package registry

import (
	"context"
	"errors"
	"io"
	"time"
)

// Registration and lookup errors
var (
	ErrConflict       = errors.New("another handle is already registered for this service")
	ErrNotMonitorable = errors.New("handle termination cannot be observed")
	ErrClosed         = errors.New("registry is closed")
)

// Handle is an addressable reference to the process that owns a service's
// leadership slot. Handles are compared by ID: two handles with the same ID
// refer to the same owner incarnation. A restarted owner carries a fresh ID.
type Handle interface {
	// ID uniquely identifies this owner incarnation
	ID() string
	// Addr is the address other nodes can route calls to (may be empty for
	// purely in-process handles)
	Addr() string
	// Call sends a request to the owner and waits for its reply
	Call(ctx context.Context, msg any, timeout time.Duration) (any, error)
	// Cast sends a fire-and-forget message to the owner
	Cast(msg any) error
}

// Terminatable is implemented by handles whose owner termination can be
// observed directly. In-process handles close Done when their actor stops.
type Terminatable interface {
	Done() <-chan struct{}
}

// Registry is a cluster-wide mutual-exclusion name service. It guarantees
// that at most one registration for a given service succeeds at a time, and
// that a binding disappears once its owner terminates.
type Registry interface {
	// Lookup returns the handle currently registered for serviceID, if any
	Lookup(serviceID string) (Handle, bool, error)

	// RegisterIfAbsent atomically binds serviceID to h. Returns ErrConflict
	// if a live binding already exists.
	RegisterIfAbsent(serviceID string, h Handle) error

	// Monitor reports termination of h's owner: the returned channel is
	// closed exactly once when the owner terminates. The cancel function
	// releases the subscription.
	Monitor(h Handle) (<-chan struct{}, func(), error)
}

// SameHandle reports whether two handles refer to the same owner incarnation
func SameHandle(a, b Handle) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}

// Release returns a handle obtained from Lookup once the caller is done with
// it. Backends that dial mint a connected handle per lookup; those implement
// io.Closer and must be released or their sockets accumulate. In-process
// handles are shared and Release leaves them untouched.
func Release(h Handle) {
	if closer, ok := h.(io.Closer); ok {
		closer.Close()
	}
}
