package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-leader/pkg/cluster"
	"github.com/dd0wney/cluso-leader/pkg/health"
	"github.com/dd0wney/cluso-leader/pkg/logging"
	"github.com/dd0wney/cluso-leader/pkg/master"
	"github.com/dd0wney/cluso-leader/pkg/metrics"
	"github.com/dd0wney/cluso-leader/pkg/registry"
	"github.com/dd0wney/cluso-leader/pkg/transport"
)

func main() {
	configPath := flag.String("config", "leaderd.yaml", "Path to YAML configuration")
	nodeID := flag.String("node", "", "Override node_id from config")
	httpAddr := flag.String("http", ":8080", "Admin HTTP listen address")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := logging.DefaultLogger()
	if *logLevel != "" {
		logger.SetLevel(logging.ParseLevel(*logLevel))
	}
	log := logger.With(logging.Component("leaderd"))

	cfg, err := cluster.LoadConfig(*configPath)
	if err != nil {
		log.Error("Failed to load configuration", logging.Error(err))
		os.Exit(1)
	}
	if *nodeID != "" {
		cfg.NodeID = *nodeID
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = transport.DefaultConfig().ListenAddr
	}

	log.Info("Starting leader election daemon",
		logging.Node(cfg.NodeID),
		logging.String("addr", cfg.NodeAddr),
		logging.Any("services", cfg.Services))

	startTime := time.Now()
	metricsRegistry := metrics.DefaultRegistry()

	// Cluster membership and seed discovery
	membership := cluster.NewMembership(cfg.NodeID, cfg.NodeAddr)
	discovery := cluster.NewDiscovery(cfg, membership, logger)
	if err := discovery.Start(); err != nil {
		log.Error("Failed to start discovery", logging.Error(err))
		os.Exit(1)
	}
	defer discovery.Stop()

	// Call transport: every node answers forwarded calls for the services
	// it leads
	minter := transport.NewTokenMinter(cfg.ClusterSecret)
	factory := transport.NewDefaultSocketFactory()

	transportCfg := transport.DefaultConfig()
	transportCfg.ListenAddr = cfg.ListenAddr
	callServer := transport.NewServer(factory, transportCfg, minter, logger)
	if err := callServer.Start(); err != nil {
		log.Error("Failed to start call server", logging.Error(err))
		os.Exit(1)
	}
	defer callServer.Stop()

	reg, registryPing, closeRegistry, err := buildRegistry(cfg, factory, minter, logger)
	if err != nil {
		log.Error("Failed to initialize registry backend", logging.Error(err))
		os.Exit(1)
	}
	defer closeRegistry()

	// One master actor per configured service
	masters := make(map[string]*master.Master, len(cfg.Services))
	for _, serviceID := range cfg.Services {
		strategy := master.NewMinPeersStrategy(membership, cfg.MinPeers, cfg.HealthTimeout.Std(), logger)
		m := master.New(serviceID, reg, master.NopHooks{}, strategy, master.Options{
			NodeID:        cfg.NodeID,
			Addr:          cfg.ListenAddr,
			CheckInterval: cfg.CheckInterval.Std(),
			Logger:        logger,
		})
		if err := m.Start(); err != nil {
			log.Error("Failed to start master actor",
				logging.Service(serviceID),
				logging.Error(err))
			os.Exit(1)
		}
		masters[serviceID] = m

		callServer.RegisterService(serviceID, callHandler(m, cfg.CallTimeout.Std()))
	}
	defer func() {
		for _, m := range masters {
			m.Stop(nil)
		}
	}()

	// Reflect leadership into the membership announcements
	stopRoleSync := make(chan struct{})
	defer close(stopRoleSync)
	go syncLocalRole(membership, masters, metricsRegistry, startTime, stopRoleSync)

	checker := buildHealthChecker(registryPing, membership, masters, cfg, logger)

	caller := master.NewCaller(reg, logger)
	callOpts := master.CallOptions{
		Tries:   cfg.CallRetries,
		Timeout: cfg.CallTimeout.Std(),
		Backoff: cfg.CallBackoff.Std(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", checker.HTTPHandler()).Methods("GET")
	router.HandleFunc("/ready", checker.ReadinessHandler()).Methods("GET")
	router.HandleFunc("/live", checker.LivenessHandler()).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(metricsRegistry.GetPrometheusRegistry(), promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/status", statusHandler(cfg, membership, masters, startTime)).Methods("GET")
	router.HandleFunc("/call/{service}", leaderCallHandler(caller, callOpts)).Methods("POST")

	adminServer := &http.Server{
		Addr:         *httpAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Admin HTTP listening", logging.String("addr", *httpAddr))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Admin HTTP server failed", logging.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("Shutting down", logging.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	adminServer.Shutdown(shutdownCtx)
}

// leaderCallHandler forwards an admin API request body to whichever node
// currently leads the service, using the configured retry budget
func leaderCallHandler(caller *master.Caller, opts master.CallOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID := mux.Vars(r)["service"]

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		reply, err := caller.CallLeaderContext(r.Context(), serviceID, json.RawMessage(body), opts)
		switch {
		case errors.Is(err, master.ErrServiceNotStarted):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case errors.Is(err, master.ErrLeaderNotFound):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reply); err != nil {
			http.Error(w, fmt.Sprintf("failed to encode reply: %v", err), http.StatusInternalServerError)
		}
	}
}

// callHandler bridges the wire transport into a master's mailbox
func callHandler(m *master.Master, timeout time.Duration) transport.Handler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		reply, err := m.Call(ctx, json.RawMessage(payload), timeout)
		if err != nil {
			return nil, err
		}
		return json.Marshal(reply)
	}
}

// buildRegistry selects the configured backend. The in-memory registry only
// coordinates within one process; multi-node deployments need postgres.
func buildRegistry(cfg cluster.Config, factory transport.SocketFactory, minter *transport.TokenMinter, logger logging.Logger) (registry.Registry, func() error, func(), error) {
	switch cfg.RegistryBackend {
	case "postgres":
		dialer := func(serviceID, ownerID, ownerAddr string) registry.Handle {
			return transport.NewRemoteHandle(factory, minter, cfg.NodeID, serviceID, ownerID, ownerAddr)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pg, err := registry.NewPGRegistry(ctx, registry.PGConfig{DatabaseURL: cfg.DatabaseURL}, dialer, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		ping := func() error {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer pingCancel()
			return pg.Ping(pingCtx)
		}
		return pg, ping, pg.Close, nil

	default:
		mem := registry.NewInMemory()
		return mem, func() error { return nil }, mem.Close, nil
	}
}

// syncLocalRole keeps the announced node role and system gauges current
func syncLocalRole(membership *cluster.Membership, masters map[string]*master.Master, metricsRegistry *metrics.Registry, startTime time.Time, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			role := cluster.RoleFollower
			for _, m := range masters {
				if m.IsLeader() {
					role = cluster.RoleLeader
					break
				}
			}
			membership.SetLocalRole(role)
			metricsRegistry.UpdateSystemMetrics(startTime)
		}
	}
}

func buildHealthChecker(registryPing func() error, membership *cluster.Membership, masters map[string]*master.Master, cfg cluster.Config, logger logging.Logger) *health.HealthChecker {
	checker := health.NewHealthChecker(logger)

	electionState := func() (running, withLeader, total int) {
		total = len(masters)
		for _, m := range masters {
			select {
			case <-m.Done():
			default:
				running++
			}
			if m.State() != master.StateUnknown {
				withLeader++
			}
		}
		return running, withLeader, total
	}

	clusterState := func() (bool, int, int) {
		healthy := len(membership.GetHealthyNodes(cfg.HealthTimeout.Std()))
		total := membership.GetNodeCount()
		return membership.HasMinPeers(cfg.MinPeers, cfg.HealthTimeout.Std()), healthy, total
	}

	memoryUsage := func() (uint64, uint64) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		return mem.Alloc, mem.Sys
	}

	checker.RegisterCheck("registry", health.RegistryCheck(registryPing))
	checker.RegisterCheck("election", health.ElectionCheck(electionState))
	checker.RegisterCheck("membership", health.MembershipCheck(clusterState))
	checker.RegisterCheck("memory", health.MemoryCheck(memoryUsage))

	// Liveness only needs the actors alive; readiness also wants the
	// registry reachable
	checker.RegisterLivenessCheck("election", health.ElectionCheck(electionState))
	checker.RegisterReadinessCheck("registry", health.RegistryCheck(registryPing))
	checker.RegisterReadinessCheck("election", health.ElectionCheck(electionState))

	return checker
}

type serviceStatus struct {
	Service string `json:"service"`
	State   string `json:"state"`
	Leader  string `json:"leader,omitempty"`
}

type nodeStatus struct {
	NodeID   string             `json:"node_id"`
	NodeAddr string             `json:"node_addr"`
	Uptime   string             `json:"uptime"`
	Services []serviceStatus    `json:"services"`
	Nodes    []cluster.NodeInfo `json:"nodes"`
}

func statusHandler(cfg cluster.Config, membership *cluster.Membership, masters map[string]*master.Master, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := nodeStatus{
			NodeID:   cfg.NodeID,
			NodeAddr: cfg.NodeAddr,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Services: make([]serviceStatus, 0, len(masters)),
			Nodes:    membership.GetAllNodes(),
		}
		for _, serviceID := range cfg.Services {
			m, ok := masters[serviceID]
			if !ok {
				continue
			}
			status.Services = append(status.Services, serviceStatus{
				Service: serviceID,
				State:   m.State().String(),
				Leader:  m.LeaderID(),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			http.Error(w, fmt.Sprintf("failed to encode status: %v", err), http.StatusInternalServerError)
		}
	}
}
