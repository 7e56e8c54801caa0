package master

import "errors"

// Actor and caller errors
var (
	// ErrOtherIsLeader means the registry reported a different owner while
	// this node believed it was leader. This is unrecoverable for the actor;
	// the hosting process is expected to restart it.
	ErrOtherIsLeader = errors.New("another node is registered as leader")

	// ErrServiceNotStarted means no local instance of the service exists on
	// this node at all. Retrying cannot help.
	ErrServiceNotStarted = errors.New("service not started on this node")

	// ErrLeaderNotFound means the retry budget was exhausted without
	// reaching a registered leader.
	ErrLeaderNotFound = errors.New("no leader found within the retry budget")

	// ErrStopped is returned for operations against an actor that has
	// already terminated.
	ErrStopped = errors.New("master actor is stopped")

	// ErrMailboxFull is returned when a cast cannot be enqueued.
	ErrMailboxFull = errors.New("master mailbox is full")
)
