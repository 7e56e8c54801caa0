package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// RemoteHandle routes calls to a leader running on another node. It
// implements the registry Handle contract; liveness of the remote owner is
// the registry backend's concern, not the handle's.
type RemoteHandle struct {
	serviceID string
	ownerID   string
	addr      string
	nodeID    string // calling node, stamped into the identity token
	factory   SocketFactory
	minter    *TokenMinter

	mu   sync.Mutex // REQ sockets require strict send/recv alternation
	sock DialSocket
}

// NewRemoteHandle creates a handle for the owner of serviceID at addr
func NewRemoteHandle(factory SocketFactory, minter *TokenMinter, nodeID, serviceID, ownerID, addr string) *RemoteHandle {
	return &RemoteHandle{
		serviceID: serviceID,
		ownerID:   ownerID,
		addr:      addr,
		nodeID:    nodeID,
		factory:   factory,
		minter:    minter,
	}
}

// ID returns the owner incarnation this handle routes to
func (h *RemoteHandle) ID() string { return h.ownerID }

// Addr returns the owner's call listener address
func (h *RemoteHandle) Addr() string { return h.addr }

// Call forwards a request to the remote owner and waits for its reply
func (h *RemoteHandle) Call(ctx context.Context, msg any, timeout time.Duration) (any, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	payload, err := marshalPayload(msg)
	if err != nil {
		return nil, err
	}

	token, err := h.minter.Mint(h.nodeID)
	if err != nil {
		return nil, err
	}

	env := NewCallEnvelope(h.serviceID, token, payload)
	reply, err := h.roundTrip(env, timeout)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(reply.Payload), nil
}

// Cast sends a fire-and-forget message to the remote owner
func (h *RemoteHandle) Cast(msg any) error {
	payload, err := marshalPayload(msg)
	if err != nil {
		return err
	}

	token, err := h.minter.Mint(h.nodeID)
	if err != nil {
		return err
	}

	env := NewCastEnvelope(h.serviceID, token, payload)
	_, err = h.roundTrip(env, DefaultConfig().CastDeadline)
	return err
}

// Close releases the underlying socket
func (h *RemoteHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sock == nil {
		return nil
	}
	err := h.sock.Close()
	h.sock = nil
	return err
}

func (h *RemoteHandle) roundTrip(env Envelope, timeout time.Duration) (Envelope, error) {
	data, err := env.Encode()
	if err != nil {
		return Envelope{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ensureConnectedLocked(); err != nil {
		return Envelope{}, err
	}

	h.sock.SetSendDeadline(timeout)
	h.sock.SetRecvDeadline(timeout)

	if err := h.sock.Send(data); err != nil {
		h.resetLocked()
		return Envelope{}, fmt.Errorf("failed to send to leader: %w", err)
	}

	raw, err := h.sock.Recv()
	if err != nil {
		// A timed-out REQ socket cannot be reused for the next request
		h.resetLocked()
		return Envelope{}, fmt.Errorf("no reply from leader: %w", err)
	}

	reply, err := DecodeEnvelope(raw)
	if err != nil {
		return Envelope{}, err
	}
	if reply.Kind == KindError {
		return Envelope{}, fmt.Errorf("leader returned error: %s", reply.Error)
	}
	return reply, nil
}

func (h *RemoteHandle) ensureConnectedLocked() error {
	if h.sock != nil {
		return nil
	}
	sock, err := h.factory.NewReqSocket()
	if err != nil {
		return err
	}
	if err := sock.Dial(h.addr); err != nil {
		sock.Close()
		return fmt.Errorf("failed to dial leader at %s: %w", h.addr, err)
	}
	h.sock = sock
	return nil
}

func (h *RemoteHandle) resetLocked() {
	if h.sock != nil {
		h.sock.Close()
		h.sock = nil
	}
}

func marshalPayload(msg any) ([]byte, error) {
	switch v := msg.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("message is not JSON-marshalable: %w", err)
		}
		return data, nil
	}
}
