package master

import "errors"

// ErrUnhandled is returned by a hook to decline a message. The actor logs
// the message and drops it; for calls the caller gets no reply and times out.
var ErrUnhandled = errors.New("hook declined message")

// Decision is a hook's answer to "should this node attempt to lead?"
type Decision int

const (
	// DecideDefer leaves the answer to the configured election strategy
	DecideDefer Decision = iota
	// DecideYes attempts registration this cycle
	DecideYes
	// DecideNo skips registration this cycle
	DecideNo
)

// Hooks is the contract a hosting service implements to customize the
// actor's behavior. Hook state is opaque to the actor: it is created by
// Init, threaded through every subsequent hook, and discarded on Terminate.
//
// Embed NopHooks to implement only the hooks you need.
type Hooks interface {
	// Init runs once at actor start and produces the initial hook state.
	// A non-nil error aborts the start.
	Init(serviceID string) (any, error)

	// BecomeLeader is consulted when no leader is registered. DecideDefer
	// falls back to the Strategy.
	BecomeLeader(serviceID string, state any) (Decision, any)

	// TimedCheck runs at the end of every check cycle regardless of role.
	// A non-nil error is fatal to the actor.
	TimedCheck(isLeader bool, serviceID string, state any) (any, error)

	// HandleCall processes a request forwarded to this actor. Return
	// ErrUnhandled to decline; the caller then receives no reply.
	HandleCall(msg any, serviceID string, state any) (reply any, newState any, err error)

	// HandleCast processes a fire-and-forget message. Return ErrUnhandled
	// to decline.
	HandleCast(msg any, serviceID string, state any) (any, error)

	// HandleInfo processes an out-of-band message. Return ErrUnhandled to
	// decline.
	HandleInfo(msg any, serviceID string, state any) (any, error)

	// CodeChange migrates hook state across a live version upgrade
	CodeChange(oldVersion, serviceID string, state any) (any, error)

	// Terminate runs on actor stop. Best effort; panics and errors are
	// swallowed.
	Terminate(reason error, serviceID string, state any)
}

// NopHooks declines everything and keeps no state
type NopHooks struct{}

func (NopHooks) Init(string) (any, error) { return nil, nil }

func (NopHooks) BecomeLeader(_ string, state any) (Decision, any) { return DecideDefer, state }

func (NopHooks) TimedCheck(_ bool, _ string, state any) (any, error) { return state, nil }

func (NopHooks) HandleCall(_ any, _ string, state any) (any, any, error) {
	return nil, state, ErrUnhandled
}

func (NopHooks) HandleCast(_ any, _ string, state any) (any, error) { return state, ErrUnhandled }

func (NopHooks) HandleInfo(_ any, _ string, state any) (any, error) { return state, ErrUnhandled }

func (NopHooks) CodeChange(_, _ string, state any) (any, error) { return state, nil }

func (NopHooks) Terminate(error, string, any) {}

// Ensure NopHooks satisfies the contract
var _ Hooks = NopHooks{}
