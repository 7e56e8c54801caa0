package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/cluso-leader/pkg/logging"
)

// Dialer constructs a routable handle for a remote owner discovered in the
// database. Typically backed by the transport package.
type Dialer func(serviceID, ownerID, ownerAddr string) Handle

// PGConfig configures the PostgreSQL-backed registry
type PGConfig struct {
	DatabaseURL  string
	LeaseTTL     time.Duration // binding expires this long after last refresh (default: 10s)
	PollInterval time.Duration // monitor poll interval (default: 1s)
}

// PGRegistry is a Registry backed by PostgreSQL. Atomicity of
// register-if-absent comes from a primary-key insert; implicit removal on
// owner termination comes from lease expiry: each owner refreshes its lease
// while alive, and bindings past their lease are treated as absent.
type PGRegistry struct {
	pool   *pgxpool.Pool
	cfg    PGConfig
	dialer Dialer
	logger logging.Logger

	mu       sync.Mutex
	monitors map[string][]chan struct{} // ownerID -> monitor channels
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPGRegistry connects to PostgreSQL and prepares the bindings table
func NewPGRegistry(ctx context.Context, cfg PGConfig, dialer Dialer, logger logging.Logger) (*PGRegistry, error) {
	if cfg.LeaseTTL == 0 {
		cfg.LeaseTTL = 10 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 1 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	r := &PGRegistry{
		pool:     pool,
		cfg:      cfg,
		dialer:   dialer,
		logger:   logger.With(logging.Component("pg-registry")),
		monitors: make(map[string][]chan struct{}),
		stopCh:   make(chan struct{}),
	}

	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return r, nil
}

func (r *PGRegistry) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS leader_bindings (
			service_id TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			owner_addr TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)
	`
	_, err := r.pool.Exec(ctx, query)
	return err
}

// Ping checks database connectivity
func (r *PGRegistry) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close stops lease refreshers and monitors and closes the pool
func (r *PGRegistry) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
	r.pool.Close()
}

// Lookup returns the current unexpired binding for serviceID
func (r *PGRegistry) Lookup(serviceID string) (Handle, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	query := `
		SELECT owner_id, owner_addr
		FROM leader_bindings
		WHERE service_id = $1 AND expires_at > now()
	`

	var ownerID, ownerAddr string
	err := r.pool.QueryRow(ctx, query, serviceID).Scan(&ownerID, &ownerAddr)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("binding lookup failed: %w", err)
	}

	return r.dialer(serviceID, ownerID, ownerAddr), true, nil
}

// RegisterIfAbsent atomically claims the leadership slot for serviceID and
// keeps the lease refreshed until the handle's owner terminates
func (r *PGRegistry) RegisterIfAbsent(serviceID string, h Handle) error {
	term, ok := h.(Terminatable)
	if !ok {
		return ErrNotMonitorable
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Reap an expired binding first so the insert below can win the slot
	reap := `DELETE FROM leader_bindings WHERE service_id = $1 AND expires_at <= now()`
	if _, err := r.pool.Exec(ctx, reap, serviceID); err != nil {
		return fmt.Errorf("failed to reap expired binding: %w", err)
	}

	insert := `
		INSERT INTO leader_bindings (service_id, owner_id, owner_addr, expires_at)
		VALUES ($1, $2, $3, now() + $4)
		ON CONFLICT (service_id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, insert, serviceID, h.ID(), h.Addr(), r.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("registration insert failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	r.wg.Add(1)
	go r.refreshLease(serviceID, h.ID(), term.Done())

	return nil
}

// refreshLease keeps the binding alive while the owner runs, then deletes it
func (r *PGRegistry) refreshLease(serviceID, ownerID string, done <-chan struct{}) {
	defer r.wg.Done()

	interval := r.cfg.LeaseTTL / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			r.release(serviceID, ownerID)
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			refresh := `
				UPDATE leader_bindings
				SET expires_at = now() + $3
				WHERE service_id = $1 AND owner_id = $2
			`
			tag, err := r.pool.Exec(ctx, refresh, serviceID, ownerID, r.cfg.LeaseTTL)
			cancel()
			if err != nil {
				r.logger.Warn("Lease refresh failed", logging.Service(serviceID), logging.Error(err))
				continue
			}
			if tag.RowsAffected() == 0 {
				// Binding was reaped out from under us; stop refreshing
				r.logger.Warn("Lease lost", logging.Service(serviceID), logging.Node(ownerID))
				return
			}
		}
	}
}

func (r *PGRegistry) release(serviceID, ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	query := `DELETE FROM leader_bindings WHERE service_id = $1 AND owner_id = $2`
	if _, err := r.pool.Exec(ctx, query, serviceID, ownerID); err != nil {
		r.logger.Warn("Failed to release binding", logging.Service(serviceID), logging.Error(err))
	}
}

// Monitor polls for disappearance of all bindings owned by h
func (r *PGRegistry) Monitor(h Handle) (<-chan struct{}, func(), error) {
	ch := make(chan struct{})
	ownerID := h.ID()

	r.mu.Lock()
	r.monitors[ownerID] = append(r.monitors[ownerID], ch)
	first := len(r.monitors[ownerID]) == 1
	r.mu.Unlock()

	if first {
		r.wg.Add(1)
		go r.pollOwner(ownerID)
	}

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		chans := r.monitors[ownerID]
		for i, c := range chans {
			if c == ch {
				r.monitors[ownerID] = append(chans[:i], chans[i+1:]...)
				return
			}
		}
	}

	return ch, cancel, nil
}

// pollOwner closes all monitor channels for ownerID once it has no live binding
func (r *PGRegistry) pollOwner(ownerID string) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			query := `SELECT count(*) FROM leader_bindings WHERE owner_id = $1 AND expires_at > now()`
			var live int
			err := r.pool.QueryRow(ctx, query, ownerID).Scan(&live)
			cancel()
			if err != nil {
				r.logger.Warn("Monitor poll failed", logging.Node(ownerID), logging.Error(err))
				continue
			}
			if live == 0 {
				r.mu.Lock()
				for _, c := range r.monitors[ownerID] {
					close(c)
				}
				delete(r.monitors, ownerID)
				r.mu.Unlock()
				return
			}
		}
	}
}

// Ensure both backends satisfy the Registry contract
var (
	_ Registry = (*InMemory)(nil)
	_ Registry = (*PGRegistry)(nil)
)
