package master

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dd0wney/cluso-leader/pkg/logging"
	"github.com/dd0wney/cluso-leader/pkg/metrics"
	"github.com/dd0wney/cluso-leader/pkg/registry"
)

// Default actor timings
const (
	DefaultCheckInterval = 5000 * time.Millisecond
	DefaultJitterMin     = 1 * time.Millisecond
	DefaultJitterMax     = 1000 * time.Millisecond
	defaultMailboxSize   = 64
)

// Options configures one Master actor
type Options struct {
	NodeID        string
	Addr          string        // call listener address published with the binding
	CheckInterval time.Duration // default 5s
	JitterMin     time.Duration // leader-down recovery jitter lower bound (default 1ms)
	JitterMax     time.Duration // leader-down recovery jitter upper bound (default 1s)
	MailboxSize   int
	Logger        logging.Logger
}

func (o *Options) applyDefaults() {
	if o.CheckInterval <= 0 {
		o.CheckInterval = DefaultCheckInterval
	}
	if o.JitterMin <= 0 {
		o.JitterMin = DefaultJitterMin
	}
	if o.JitterMax < o.JitterMin {
		o.JitterMax = DefaultJitterMax
	}
	if o.MailboxSize <= 0 {
		o.MailboxSize = defaultMailboxSize
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
}

// Master is the per-node, per-service election and failover actor. It owns
// the local role state, runs the periodic check cycle against the registry,
// monitors the current leader for termination, and dispatches unrecognized
// messages to the hook contract.
//
// Concurrent Safety:
// 1. All role state lives inside the actor loop; only loop code touches it
// 2. External callers communicate exclusively through the mailbox channel
// 3. The observable role mirror is guarded by its own mutex
type Master struct {
	serviceID string
	opts      Options
	reg       registry.Registry
	hooks     Hooks
	strategy  Strategy
	logger    logging.Logger
	metrics   *metrics.Registry

	mailbox chan any
	handle  *localHandle
	done    chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	// loop-owned, never touched outside the actor goroutine
	state         RoleState
	leader        registry.Handle
	hookState     any
	monitorCh     <-chan struct{}
	cancelMonitor func()

	obsMu     sync.RWMutex
	obsState  RoleState
	obsLeader string
	termErr   error
}

// New creates a stopped actor for serviceID. Call Start to run it.
func New(serviceID string, reg registry.Registry, hooks Hooks, strategy Strategy, opts Options) *Master {
	opts.applyDefaults()
	if hooks == nil {
		hooks = NopHooks{}
	}
	if strategy == nil {
		strategy = AlwaysLead{}
	}

	mailbox := make(chan any, opts.MailboxSize)
	return &Master{
		serviceID: serviceID,
		opts:      opts,
		reg:       reg,
		hooks:     hooks,
		strategy:  strategy,
		logger: opts.Logger.With(
			logging.Component("master"),
			logging.Service(serviceID),
			logging.Node(opts.NodeID)),
		metrics: metrics.DefaultRegistry(),
		mailbox: mailbox,
		handle:  newLocalHandle(opts.NodeID, opts.Addr, mailbox),
		done:    make(chan struct{}),
	}
}

// Start initializes hook state and launches the actor loop. The first check
// cycle runs immediately; subsequent cycles follow the check interval.
func (m *Master) Start() error {
	var startErr error
	m.startOnce.Do(func() {
		st, err := m.hooks.Init(m.serviceID)
		if err != nil {
			startErr = fmt.Errorf("init hook failed: %w", err)
			return
		}
		m.hookState = st

		registerLocalInstance(m.serviceID)
		m.setObservable(StateUnknown, "")
		m.metrics.SetRole(m.serviceID, StateUnknown.String())

		go m.loop()
		m.logger.Info("Master actor started",
			logging.Duration("check_interval", m.opts.CheckInterval))
	})
	return startErr
}

// Stop terminates the actor and waits for it to finish. Safe to call more
// than once; later calls only wait.
func (m *Master) Stop(reason error) {
	m.stopOnce.Do(func() {
		select {
		case m.mailbox <- stopMsg{reason: reason}:
		case <-m.done:
		}
	})
	<-m.done
}

// Done is closed when the actor has terminated
func (m *Master) Done() <-chan struct{} { return m.done }

// Err returns the terminal error, if any, once the actor has stopped
func (m *Master) Err() error {
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	return m.termErr
}

// State returns the actor's current role
func (m *Master) State() RoleState {
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	return m.obsState
}

// LeaderID returns the cached leader's handle ID, empty when unknown
func (m *Master) LeaderID() string {
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	return m.obsLeader
}

// IsLeader reports whether this node currently holds the leadership slot
func (m *Master) IsLeader() bool { return m.State() == StateLeader }

// ServiceID returns the service this actor elects for
func (m *Master) ServiceID() string { return m.serviceID }

// Handle returns the registerable handle for this actor
func (m *Master) Handle() registry.Handle { return m.handle }

// Call routes a request into the actor's mailbox and waits for the hook's
// reply. An unhandled message yields no reply, bounded by timeout.
func (m *Master) Call(ctx context.Context, msg any, timeout time.Duration) (any, error) {
	return m.handle.Call(ctx, msg, timeout)
}

// Cast enqueues a fire-and-forget message for the actor
func (m *Master) Cast(msg any) error { return m.handle.Cast(msg) }

// Info enqueues an out-of-band message for the actor
func (m *Master) Info(msg any) error {
	select {
	case m.mailbox <- infoMsg{msg: msg}:
		return nil
	case <-m.done:
		return ErrStopped
	default:
		return ErrMailboxFull
	}
}

// CodeChange runs the code-change hook inside the actor loop
func (m *Master) CodeChange(oldVersion string) error {
	replyCh := make(chan error, 1)
	select {
	case m.mailbox <- codeChangeMsg{oldVersion: oldVersion, replyCh: replyCh}:
	case <-m.done:
		return ErrStopped
	}
	select {
	case err := <-replyCh:
		return err
	case <-m.done:
		return ErrStopped
	}
}

func (m *Master) loop() {
	timer := time.NewTimer(m.opts.CheckInterval)
	defer timer.Stop()

	// First cycle runs immediately so a fresh node learns the current
	// leader without waiting a full interval
	if err := m.checkCycle(); err != nil {
		m.terminate(err)
		return
	}

	for {
		select {
		case <-timer.C:
			if err := m.checkCycle(); err != nil {
				m.terminate(err)
				return
			}
			timer.Reset(m.opts.CheckInterval)

		case <-m.monitorCh:
			m.onLeaderDown()
			if err := m.checkCycle(); err != nil {
				m.terminate(err)
				return
			}
			resetTimer(timer, m.opts.CheckInterval)

		case raw := <-m.mailbox:
			switch msg := raw.(type) {
			case callMsg:
				m.dispatchCall(msg)
			case castMsg:
				m.dispatchCast(msg)
			case infoMsg:
				m.dispatchInfo(msg)
			case codeChangeMsg:
				m.dispatchCodeChange(msg)
			case stopMsg:
				m.terminate(msg.reason)
				return
			default:
				m.dispatchInfo(infoMsg{msg: raw})
			}
		}
	}
}

// checkCycle runs one pass of the election state machine. Any returned
// error is fatal to the actor.
func (m *Master) checkCycle() error {
	start := time.Now()
	defer func() {
		m.metrics.RecordCheckCycle(time.Since(start))
	}()

	owner, found, err := m.reg.Lookup(m.serviceID)
	if err != nil {
		return fmt.Errorf("registry lookup failed: %w", err)
	}
	adopted := false
	if found {
		// Dialing backends mint a connected handle per lookup; release it
		// unless this cycle cached it
		defer func() {
			if !adopted && owner != m.leader {
				registry.Release(owner)
			}
		}()
	}

	switch m.state {
	case StateUnknown:
		if found {
			if registry.SameHandle(owner, m.handle) {
				// Our own registration from an interrupted earlier cycle
				m.transition(StateLeader, m.handle)
			} else if err := m.adoptFollower(owner); err != nil {
				return err
			} else {
				adopted = true
			}
		} else if err := m.tryElect(); err != nil {
			return err
		}

	case StateLeader:
		if !found {
			// The binding lapsed while we ran, as a leased backend allows
			// after a long stall. Reclaim it; losing the reclaim means
			// someone else took over.
			if err := m.reg.RegisterIfAbsent(m.serviceID, m.handle); err != nil {
				if errors.Is(err, registry.ErrConflict) {
					return ErrOtherIsLeader
				}
				return fmt.Errorf("failed to reclaim binding: %w", err)
			}
			m.logger.Warn("Reclaimed lapsed leadership binding")
		} else if !registry.SameHandle(owner, m.handle) {
			m.logger.Error("Registry reports a different leader while in leader state",
				logging.Leader(owner.ID()))
			return ErrOtherIsLeader
		}

	case StateFollower:
		// A divergent or absent binding is left to the termination
		// notification; acting on one transient read here would make
		// followers flap
		if !found {
			m.logger.Warn("Leader binding absent; awaiting down notification",
				logging.Leader(m.leader.ID()))
		} else if !registry.SameHandle(owner, m.leader) {
			m.logger.Warn("Registered leader differs from cached handle; awaiting down notification",
				logging.Leader(m.leader.ID()),
				logging.String("registered", owner.ID()))
		}
	}

	st, err := m.hooks.TimedCheck(m.state == StateLeader, m.serviceID, m.hookState)
	if err != nil {
		return fmt.Errorf("timed check hook failed: %w", err)
	}
	m.hookState = st
	return nil
}

// tryElect asks the hooks, then the strategy, whether to claim the slot,
// and attempts registration on yes. A lost race is not an error.
func (m *Master) tryElect() error {
	decision, st := m.hooks.BecomeLeader(m.serviceID, m.hookState)
	m.hookState = st

	if decision == DecideDefer {
		if m.strategy.ShouldLead(m.serviceID) {
			decision = DecideYes
		} else {
			decision = DecideNo
		}
	}
	if decision != DecideYes {
		m.metrics.RecordElection(m.serviceID, "declined")
		return nil
	}

	if err := m.reg.RegisterIfAbsent(m.serviceID, m.handle); err != nil {
		if errors.Is(err, registry.ErrConflict) {
			m.metrics.RecordElection(m.serviceID, "lost")
			m.logger.Info("Lost registration race; retrying next cycle")
			return nil
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	m.metrics.RecordElection(m.serviceID, "won")
	m.transition(StateLeader, m.handle)
	m.logger.Info("Became leader")
	return nil
}

// adoptFollower caches the discovered leader and begins monitoring it
func (m *Master) adoptFollower(owner registry.Handle) error {
	ch, cancel, err := m.reg.Monitor(owner)
	if err != nil {
		return fmt.Errorf("failed to monitor leader: %w", err)
	}

	m.monitorCh = ch
	m.cancelMonitor = cancel
	m.transition(StateFollower, owner)
	m.logger.Info("Following leader", logging.Leader(owner.ID()))
	return nil
}

// onLeaderDown handles the monitored leader's termination: clear the
// cached handle, sleep a randomized jitter to spread competing
// re-elections, then the caller runs an immediate check cycle.
func (m *Master) onLeaderDown() {
	if m.state != StateFollower {
		return
	}

	m.metrics.ElectionLeaderDowns.Inc()
	m.logger.Warn("Leader terminated", logging.Leader(m.leader.ID()))

	m.monitorCh = nil
	m.cancelMonitor = nil
	m.transition(StateUnknown, nil)

	jitter := m.opts.JitterMin
	if span := m.opts.JitterMax - m.opts.JitterMin; span > 0 {
		jitter += rand.N(span + 1)
	}
	time.Sleep(jitter)
}

func (m *Master) dispatchCall(msg callMsg) {
	reply, st, err := m.hooks.HandleCall(msg.msg, m.serviceID, m.hookState)
	if errors.Is(err, ErrUnhandled) {
		// No reply; the caller times out
		m.logger.Warn("Dropped unhandled call", logging.Any("message", msg.msg))
		return
	}
	m.hookState = st
	msg.replyCh <- callReply{value: reply, err: err}
}

func (m *Master) dispatchCast(msg castMsg) {
	st, err := m.hooks.HandleCast(msg.msg, m.serviceID, m.hookState)
	if errors.Is(err, ErrUnhandled) {
		m.logger.Warn("Dropped unhandled cast", logging.Any("message", msg.msg))
		return
	}
	if err != nil {
		m.logger.Error("Cast hook failed", logging.Error(err))
		return
	}
	m.hookState = st
}

func (m *Master) dispatchInfo(msg infoMsg) {
	st, err := m.hooks.HandleInfo(msg.msg, m.serviceID, m.hookState)
	if errors.Is(err, ErrUnhandled) {
		m.logger.Warn("Dropped unhandled info message", logging.Any("message", msg.msg))
		return
	}
	if err != nil {
		m.logger.Error("Info hook failed", logging.Error(err))
		return
	}
	m.hookState = st
}

func (m *Master) dispatchCodeChange(msg codeChangeMsg) {
	st, err := m.hooks.CodeChange(msg.oldVersion, m.serviceID, m.hookState)
	if err == nil {
		m.hookState = st
	}
	msg.replyCh <- err
}

// terminate runs the terminate hook best-effort and releases everything
func (m *Master) terminate(reason error) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("Terminate hook panicked", logging.Any("panic", r))
			}
		}()
		m.hooks.Terminate(reason, m.serviceID, m.hookState)
	}()

	if m.cancelMonitor != nil {
		m.cancelMonitor()
	}
	if m.leader != nil {
		registry.Release(m.leader)
		m.leader = nil
	}
	deregisterLocalInstance(m.serviceID)
	m.handle.close()

	m.obsMu.Lock()
	m.termErr = reason
	m.obsMu.Unlock()

	if reason != nil {
		m.logger.Error("Master actor stopped with error", logging.Error(reason))
	} else {
		m.logger.Info("Master actor stopped")
	}
	close(m.done)
}

// transition updates the loop-owned state and its observable mirror. A
// replaced leader handle is released; our own handle is never a closer.
func (m *Master) transition(state RoleState, leader registry.Handle) {
	if m.leader != nil && m.leader != leader {
		registry.Release(m.leader)
	}
	m.state = state
	m.leader = leader

	leaderID := ""
	if leader != nil {
		leaderID = leader.ID()
	}
	m.setObservable(state, leaderID)
	m.metrics.SetRole(m.serviceID, state.String())
	m.logger.Debug("State transition",
		logging.State(state.String()),
		logging.Leader(leaderID))
}

func (m *Master) setObservable(state RoleState, leaderID string) {
	m.obsMu.Lock()
	m.obsState = state
	m.obsLeader = leaderID
	m.obsMu.Unlock()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
