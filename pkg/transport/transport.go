package transport

import (
	"errors"
	"io"
	"time"
)

// Transport errors
var (
	ErrUnknownService = errors.New("service has no local instance on this node")
	ErrBadToken       = errors.New("call rejected: invalid node token")
	ErrNotConnected   = errors.New("socket is not connected")
)

// Socket represents a messaging socket that can send and receive messages.
// This interface abstracts the underlying transport (NNG, ZMQ, or mock for
// testing).
type Socket interface {
	io.Closer
	Send([]byte) error
	Recv() ([]byte, error)
	SetRecvDeadline(d time.Duration) error
	SetSendDeadline(d time.Duration) error
}

// ListenSocket is a socket that can bind to an address and accept connections.
type ListenSocket interface {
	Socket
	Listen(addr string) error
}

// DialSocket is a socket that can connect to a remote address.
type DialSocket interface {
	Socket
	Dial(addr string) error
}

// SocketFactory creates sockets for the leader-call request/reply pattern.
// Implementations can provide real NNG sockets or mocks for testing.
type SocketFactory interface {
	// NewRepSocket creates the leader-side reply socket
	NewRepSocket() (ListenSocket, error)
	// NewReqSocket creates the caller-side request socket
	NewReqSocket() (DialSocket, error)
}

// Config holds addresses and limits for the call transport.
type Config struct {
	ListenAddr   string        // e.g. "tcp://0.0.0.0:9411"
	RecvTimeout  time.Duration // server receive poll timeout (default: 1s)
	CastDeadline time.Duration // send/ack deadline for casts (default: 5s)
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "tcp://0.0.0.0:9411",
		RecvTimeout:  1 * time.Second,
		CastDeadline: 5 * time.Second,
	}
}
