package master

// RoleState is the actor's cached belief about the leadership slot
type RoleState int

const (
	// StateUnknown means no leader handle is cached
	StateUnknown RoleState = iota
	// StateFollower means a leader handle is cached and it is not self
	StateFollower
	// StateLeader means self is the registered leader
	StateLeader
)

func (s RoleState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateFollower:
		return "follower"
	case StateLeader:
		return "leader"
	default:
		return "invalid"
	}
}

// Mailbox messages. The actor loop processes exactly one at a time, so all
// state mutation is serialized without locks.

type callReply struct {
	value any
	err   error
}

type callMsg struct {
	msg     any
	replyCh chan callReply
}

type castMsg struct {
	msg any
}

type infoMsg struct {
	msg any
}

type codeChangeMsg struct {
	oldVersion string
	replyCh    chan error
}

type stopMsg struct {
	reason error
}
