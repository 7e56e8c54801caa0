package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var errMockTimeout = errors.New("mock socket timeout")

// mockNetwork connects mock req sockets to mock rep sockets by address
type mockNetwork struct {
	mu        sync.Mutex
	listeners map[string]*mockRepSocket
}

func newMockNetwork() *mockNetwork {
	return &mockNetwork{listeners: make(map[string]*mockRepSocket)}
}

func (n *mockNetwork) factory() *mockSocketFactory {
	return &mockSocketFactory{net: n}
}

type mockSocketFactory struct {
	net *mockNetwork
}

func (f *mockSocketFactory) NewRepSocket() (ListenSocket, error) {
	return &mockRepSocket{
		net:         f.net,
		in:          make(chan []byte, 16),
		out:         make(chan []byte, 16),
		closed:      make(chan struct{}),
		recvTimeout: time.Second,
	}, nil
}

func (f *mockSocketFactory) NewReqSocket() (DialSocket, error) {
	return &mockReqSocket{
		net:         f.net,
		closed:      make(chan struct{}),
		recvTimeout: time.Second,
	}, nil
}

type mockRepSocket struct {
	net         *mockNetwork
	in          chan []byte
	out         chan []byte
	closed      chan struct{}
	closeOnce   sync.Once
	recvTimeout time.Duration
}

func (s *mockRepSocket) Listen(addr string) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if _, exists := s.net.listeners[addr]; exists {
		return fmt.Errorf("address %s already bound", addr)
	}
	s.net.listeners[addr] = s
	return nil
}

func (s *mockRepSocket) Recv() ([]byte, error) {
	select {
	case data := <-s.in:
		return data, nil
	case <-s.closed:
		return nil, ErrNotConnected
	case <-time.After(s.recvTimeout):
		return nil, errMockTimeout
	}
}

func (s *mockRepSocket) Send(data []byte) error {
	select {
	case s.out <- data:
		return nil
	case <-s.closed:
		return ErrNotConnected
	}
}

func (s *mockRepSocket) SetRecvDeadline(d time.Duration) error {
	s.recvTimeout = d
	return nil
}

func (s *mockRepSocket) SetSendDeadline(time.Duration) error { return nil }

func (s *mockRepSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

type mockReqSocket struct {
	net         *mockNetwork
	peer        *mockRepSocket
	closed      chan struct{}
	closeOnce   sync.Once
	recvTimeout time.Duration
}

func (s *mockReqSocket) Dial(addr string) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	peer, ok := s.net.listeners[addr]
	if !ok {
		return fmt.Errorf("nothing listening on %s", addr)
	}
	s.peer = peer
	return nil
}

func (s *mockReqSocket) Send(data []byte) error {
	if s.peer == nil {
		return ErrNotConnected
	}
	select {
	case s.peer.in <- data:
		return nil
	case <-s.closed:
		return ErrNotConnected
	case <-s.peer.closed:
		return ErrNotConnected
	}
}

func (s *mockReqSocket) Recv() ([]byte, error) {
	if s.peer == nil {
		return nil, ErrNotConnected
	}
	select {
	case data := <-s.peer.out:
		return data, nil
	case <-s.closed:
		return nil, ErrNotConnected
	case <-s.peer.closed:
		return nil, ErrNotConnected
	case <-time.After(s.recvTimeout):
		return nil, errMockTimeout
	}
}

func (s *mockReqSocket) SetRecvDeadline(d time.Duration) error {
	s.recvTimeout = d
	return nil
}

func (s *mockReqSocket) SetSendDeadline(time.Duration) error { return nil }

func (s *mockReqSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
