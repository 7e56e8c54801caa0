package cluster

import "errors"

// Configuration errors
var (
	ErrInvalidNodeID   = errors.New("node ID cannot be empty")
	ErrInvalidNodeAddr = errors.New("node address cannot be empty")
	ErrInvalidMinPeers = errors.New("minimum peer count cannot be negative")
	ErrShortSecret     = errors.New("cluster secret must be at least 16 characters")
	ErrNoSeedNodes     = errors.New("seed nodes required for multi-node operation")
)

// Membership errors
var (
	ErrNodeNotFound      = errors.New("node not found in membership")
	ErrNodeAlreadyExists = errors.New("node already exists in membership")
	ErrCannotRemoveSelf  = errors.New("cannot remove self from cluster")
)

// Discovery errors
var (
	ErrNoHealthySeeds  = errors.New("no healthy seed nodes available")
	ErrDiscoveryFailed = errors.New("node discovery failed")
)
