package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-leader/pkg/logging"
)

// Handler processes a forwarded call payload for one local service instance
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Server is the leader-side call listener. Every node runs one; it only
// answers for services whose local instance is registered on it. Remote
// callers reach it through the handle stored in the registry.
//
// Concurrent Safety:
// 1. Start/Stop use sync.Once to ensure single initialization/cleanup
// 2. serveLoop respects stopCh for clean shutdown
// 3. The service table is guarded by RWMutex
type Server struct {
	factory SocketFactory
	cfg     Config
	minter  *TokenMinter
	logger  logging.Logger

	mu       sync.RWMutex
	services map[string]Handler

	sock      ListenSocket
	stopCh    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewServer creates a call server bound to the given socket factory
func NewServer(factory SocketFactory, cfg Config, minter *TokenMinter, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{
		factory:  factory,
		cfg:      cfg,
		minter:   minter,
		logger:   logger.With(logging.Component("call-server")),
		services: make(map[string]Handler),
		stopCh:   make(chan struct{}),
	}
}

// RegisterService makes a local service instance reachable for forwarded calls
func (s *Server) RegisterService(serviceID string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[serviceID] = h
}

// DeregisterService removes a local service instance
func (s *Server) DeregisterService(serviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services, serviceID)
}

// Start binds the reply socket and begins serving calls
func (s *Server) Start() error {
	var startErr error
	s.startOnce.Do(func() {
		sock, err := s.factory.NewRepSocket()
		if err != nil {
			startErr = fmt.Errorf("failed to create reply socket: %w", err)
			return
		}
		if err := sock.SetRecvDeadline(s.cfg.RecvTimeout); err != nil {
			sock.Close()
			startErr = fmt.Errorf("failed to set receive deadline: %w", err)
			return
		}
		if err := sock.Listen(s.cfg.ListenAddr); err != nil {
			sock.Close()
			startErr = fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
			return
		}
		s.sock = sock

		s.wg.Add(1)
		go s.serveLoop()

		s.logger.Info("Call server started", logging.String("addr", s.cfg.ListenAddr))
	})
	return startErr
}

// Stop shuts the server down and closes the socket
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		if s.sock != nil {
			s.sock.Close()
		}
		s.logger.Info("Call server stopped")
	})
}

func (s *Server) serveLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		data, err := s.sock.Recv()
		if err != nil {
			// Deadline expiry is the normal idle path; anything else is
			// logged and retried
			continue
		}

		reply := s.handleFrame(data)
		encoded, err := reply.Encode()
		if err != nil {
			s.logger.Error("Failed to encode reply", logging.Error(err))
			continue
		}
		if err := s.sock.Send(encoded); err != nil {
			s.logger.Warn("Failed to send reply", logging.Error(err))
		}
	}
}

func (s *Server) handleFrame(data []byte) Envelope {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return Envelope{Kind: KindError, Error: err.Error()}
	}

	caller, err := s.minter.Verify(env.Token)
	if err != nil {
		s.logger.Warn("Rejected call with bad token", logging.Service(env.Service))
		return env.ReplyError(ErrBadToken)
	}

	s.mu.RLock()
	handler, ok := s.services[env.Service]
	s.mu.RUnlock()
	if !ok {
		return env.ReplyError(ErrUnknownService)
	}

	switch env.Kind {
	case KindCall:
		result, err := handler(context.Background(), env.Payload)
		if err != nil {
			return env.ReplyError(err)
		}
		return env.Reply(result)
	case KindCast:
		// Acknowledge immediately; the handler runs detached
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, err := handler(context.Background(), env.Payload); err != nil {
				s.logger.Debug("Cast handler failed",
					logging.Service(env.Service),
					logging.Node(caller),
					logging.Error(err))
			}
		}()
		return env.Reply(nil)
	default:
		return env.ReplyError(fmt.Errorf("unexpected envelope kind %q", env.Kind))
	}
}
