package master

import (
	"context"
	"time"

	"github.com/dd0wney/cluso-leader/pkg/logging"
	"github.com/dd0wney/cluso-leader/pkg/metrics"
	"github.com/dd0wney/cluso-leader/pkg/registry"
)

// Default caller budget
const (
	DefaultCallTries   = 30
	DefaultCallTimeout = 5000 * time.Millisecond
	DefaultCallBackoff = 500 * time.Millisecond
)

// CallOptions bounds one leader call. The total wait is at most
// Tries x (Timeout + Backoff).
type CallOptions struct {
	Tries   int           // attempt budget (default 30)
	Timeout time.Duration // per-attempt call timeout (default 5s)
	Backoff time.Duration // fixed sleep between attempts (default 500ms)
}

func (o *CallOptions) applyDefaults() {
	if o.Tries <= 0 {
		o.Tries = DefaultCallTries
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultCallTimeout
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultCallBackoff
	}
}

// Caller routes requests to whichever handle is currently registered as
// leader for a service, retrying across leader handoffs. Safe for
// concurrent use.
type Caller struct {
	reg     registry.Registry
	logger  logging.Logger
	metrics *metrics.Registry
}

// NewCaller creates a leader caller over the given registry
func NewCaller(reg registry.Registry, logger logging.Logger) *Caller {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Caller{
		reg:     reg,
		logger:  logger.With(logging.Component("leader-caller")),
		metrics: metrics.DefaultRegistry(),
	}
}

// CallLeader sends msg to the current leader of serviceID with the default
// retry budget
func (c *Caller) CallLeader(serviceID string, msg any, timeout time.Duration) (any, error) {
	return c.CallLeaderContext(context.Background(), serviceID, msg, CallOptions{Timeout: timeout})
}

// CallLeaderContext sends msg to the current leader, retrying transient
// failures until the budget or context expires. It returns the leader's
// reply, ErrServiceNotStarted, ErrLeaderNotFound, or the context's error.
func (c *Caller) CallLeaderContext(ctx context.Context, serviceID string, msg any, opts CallOptions) (any, error) {
	opts.applyDefaults()
	start := time.Now()

	for attempt := 1; attempt <= opts.Tries; attempt++ {
		leader, found, err := c.reg.Lookup(serviceID)
		if err != nil {
			c.logger.Warn("Leader lookup failed",
				logging.Service(serviceID),
				logging.Attempt(attempt),
				logging.Error(err))
			c.metrics.RecordCallAttempt(serviceID, "lookup_error")
		} else if !found {
			if !HasLocalInstance(serviceID) {
				// Nothing to wait for: the service is not running here
				c.metrics.RecordCallError(serviceID, "service_not_started", time.Since(start))
				return nil, ErrServiceNotStarted
			}
			c.metrics.RecordCallAttempt(serviceID, "no_leader")
		} else {
			reply, err := leader.Call(ctx, msg, opts.Timeout)
			// Dialing backends mint a connected handle per lookup
			registry.Release(leader)
			if err == nil {
				c.metrics.RecordCallAttempt(serviceID, "ok")
				c.metrics.CallerDuration.Observe(time.Since(start).Seconds())
				return reply, nil
			}
			// The leader may have terminated between lookup and delivery;
			// the next lookup resolves its successor
			c.metrics.RecordCallAttempt(serviceID, "call_failed")
			c.logger.Debug("Leader call attempt failed",
				logging.Service(serviceID),
				logging.Leader(leader.ID()),
				logging.Attempt(attempt),
				logging.Error(err))
		}

		if attempt == opts.Tries {
			break
		}
		c.metrics.CallerRetriesTotal.Inc()
		select {
		case <-time.After(opts.Backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.metrics.RecordCallError(serviceID, "leader_not_found", time.Since(start))
	c.logger.Warn("Leader call budget exhausted",
		logging.Service(serviceID),
		logging.Int("tries", opts.Tries))
	return nil, ErrLeaderNotFound
}
