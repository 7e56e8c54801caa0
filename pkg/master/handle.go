package master

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// localHandle is the in-process handle registered for this node's actor.
// Its ID carries the node ID plus a per-start incarnation suffix so a
// restarted actor is never confused with its previous life.
type localHandle struct {
	id        string
	addr      string
	mailbox   chan<- any
	done      chan struct{}
	closeOnce sync.Once
}

func newLocalHandle(nodeID, addr string, mailbox chan<- any) *localHandle {
	return &localHandle{
		id:      nodeID + "#" + uuid.NewString(),
		addr:    addr,
		mailbox: mailbox,
		done:    make(chan struct{}),
	}
}

func (h *localHandle) ID() string   { return h.id }
func (h *localHandle) Addr() string { return h.addr }

// Call enqueues a request on the actor's mailbox and waits for the reply.
// An unhandled message produces no reply, so the timeout bounds the wait.
func (h *localHandle) Call(ctx context.Context, msg any, timeout time.Duration) (any, error) {
	replyCh := make(chan callReply, 1)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case h.mailbox <- callMsg{msg: msg, replyCh: replyCh}:
	case <-h.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("call to local actor timed out after %s", timeout)
	}

	select {
	case reply := <-replyCh:
		return reply.value, reply.err
	case <-h.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("call to local actor timed out after %s", timeout)
	}
}

// Cast enqueues a fire-and-forget message without blocking
func (h *localHandle) Cast(msg any) error {
	select {
	case h.mailbox <- castMsg{msg: msg}:
		return nil
	case <-h.done:
		return ErrStopped
	default:
		return ErrMailboxFull
	}
}

// Done is closed when the owning actor terminates
func (h *localHandle) Done() <-chan struct{} { return h.done }

func (h *localHandle) close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Process-local table of running actors, used by the caller to distinguish
// "no leader yet" (retryable) from "service not started here" (terminal).
var (
	localMu        sync.RWMutex
	localInstances = make(map[string]int)
)

func registerLocalInstance(serviceID string) {
	localMu.Lock()
	defer localMu.Unlock()
	localInstances[serviceID]++
}

func deregisterLocalInstance(serviceID string) {
	localMu.Lock()
	defer localMu.Unlock()
	if localInstances[serviceID] <= 1 {
		delete(localInstances, serviceID)
		return
	}
	localInstances[serviceID]--
}

// HasLocalInstance reports whether any actor for serviceID runs in this
// process
func HasLocalInstance(serviceID string) bool {
	localMu.RLock()
	defer localMu.RUnlock()
	return localInstances[serviceID] > 0
}
