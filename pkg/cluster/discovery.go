package cluster

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dd0wney/cluso-leader/pkg/logging"
)

// Discovery handles node registration and discovery using seed nodes. Each
// node periodically announces itself to the seeds and learns the rest of the
// cluster from their responses; seeds answer announcements with the full
// node list.
//
// Concurrent Safety:
// 1. Start/Stop use sync.Once to ensure single initialization/cleanup
// 2. Background goroutines (announceLoop, serveLoop) respect stopCh
// 3. Uses membership's thread-safe methods for node registration
type Discovery struct {
	config           Config
	membership       *Membership
	logger           logging.Logger
	announceInterval time.Duration
	listener         net.Listener
	stopCh           chan struct{}
	wg               sync.WaitGroup
	startOnce        sync.Once
	stopOnce         sync.Once
}

// AnnouncementMessage is sent to seed nodes to register presence
type AnnouncementMessage struct {
	MessageType string    `json:"message_type"` // "node_announcement"
	NodeID      string    `json:"node_id"`
	NodeAddr    string    `json:"node_addr"`
	Incarnation string    `json:"incarnation"`
	Role        NodeRole  `json:"role"`
	Timestamp   time.Time `json:"timestamp"`
}

// DiscoveryResponse is returned from seed nodes
type DiscoveryResponse struct {
	MessageType string     `json:"message_type"` // "node_list"
	Nodes       []NodeInfo `json:"nodes"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
}

// NewDiscovery creates a new discovery service
func NewDiscovery(config Config, membership *Membership, logger logging.Logger) *Discovery {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Discovery{
		config:           config,
		membership:       membership,
		logger:           logger.With(logging.Component("discovery")),
		announceInterval: 30 * time.Second,
		stopCh:           make(chan struct{}),
	}
}

// Start begins listening for announcements and announcing to seeds
func (d *Discovery) Start() error {
	var startErr error
	d.startOnce.Do(func() {
		ln, err := net.Listen("tcp", d.config.NodeAddr)
		if err != nil {
			startErr = fmt.Errorf("failed to listen on %s: %w", d.config.NodeAddr, err)
			return
		}
		d.listener = ln

		d.wg.Add(1)
		go d.serveLoop()

		// Initial discovery from seed nodes
		if err := d.discoverFromSeeds(); err != nil {
			d.logger.Warn("Initial seed discovery failed", logging.Error(err))
			// Continue anyway - seeds may be unreachable initially
		}

		d.wg.Add(1)
		go d.announceLoop()

		d.logger.Info("Node discovery started", logging.Any("seeds", d.config.SeedNodes))
	})

	return startErr
}

// Stop stops the discovery process
func (d *Discovery) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		if d.listener != nil {
			d.listener.Close()
		}
		d.wg.Wait()
		d.logger.Info("Node discovery stopped")
	})
}

// discoverFromSeeds contacts seed nodes to discover cluster members
func (d *Discovery) discoverFromSeeds() error {
	if len(d.config.SeedNodes) == 0 {
		return ErrNoHealthySeeds
	}

	localNode := d.membership.GetLocalNode()
	announcement := AnnouncementMessage{
		MessageType: "node_announcement",
		NodeID:      localNode.ID,
		NodeAddr:    localNode.Addr,
		Incarnation: localNode.Incarnation,
		Role:        localNode.Role,
		Timestamp:   time.Now(),
	}

	successCount := 0
	for _, seedAddr := range d.config.SeedNodes {
		// Skip if seed is ourselves
		if seedAddr == localNode.Addr {
			continue
		}

		if err := d.announceTo(seedAddr, announcement); err != nil {
			d.logger.Debug("Failed to announce to seed", logging.String("seed", seedAddr), logging.Error(err))
			continue
		}

		successCount++
	}

	if successCount == 0 {
		return ErrNoHealthySeeds
	}

	return nil
}

// announceTo sends an announcement to a specific seed node
func (d *Discovery) announceTo(addr string, announcement AnnouncementMessage) error {
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(announcement); err != nil {
		return fmt.Errorf("failed to send announcement: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var response DiscoveryResponse
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}

	if !response.Success {
		return fmt.Errorf("announcement rejected: %s", response.Error)
	}

	// Register discovered nodes
	for _, nodeInfo := range response.Nodes {
		// Skip self
		if nodeInfo.ID == d.membership.GetLocalNode().ID {
			continue
		}

		if err := d.membership.AddNode(nodeInfo); err != nil {
			if err == ErrNodeAlreadyExists {
				d.membership.TouchNode(nodeInfo.ID, nodeInfo.Incarnation)
			}
		} else {
			d.logger.Info("Discovered new node",
				logging.Node(nodeInfo.ID),
				logging.String("addr", nodeInfo.Addr),
				logging.State(nodeInfo.Role.String()))
		}
	}

	return nil
}

// announceLoop periodically announces this node to seed nodes
func (d *Discovery) announceLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.announceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			if err := d.discoverFromSeeds(); err != nil {
				d.logger.Debug("Periodic seed discovery failed", logging.Error(err))
			}
		}
	}
}

// serveLoop accepts announcement connections from other nodes
func (d *Discovery) serveLoop() {
	defer d.wg.Done()

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.stopCh:
				return
			default:
				d.logger.Debug("Accept failed", logging.Error(err))
				continue
			}
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.serveConn(conn)
		}()
	}
}

func (d *Discovery) serveConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var announcement AnnouncementMessage
	if err := json.NewDecoder(conn).Decode(&announcement); err != nil {
		return
	}

	response := d.HandleAnnouncement(announcement)
	json.NewEncoder(conn).Encode(response)
}

// HandleAnnouncement processes an announcement from another node and returns
// the current cluster membership
func (d *Discovery) HandleAnnouncement(announcement AnnouncementMessage) *DiscoveryResponse {
	if announcement.NodeID == "" || announcement.NodeAddr == "" {
		return &DiscoveryResponse{
			MessageType: "node_list",
			Success:     false,
			Error:       "invalid announcement: missing node ID or address",
		}
	}

	nodeInfo := NodeInfo{
		ID:          announcement.NodeID,
		Addr:        announcement.NodeAddr,
		Incarnation: announcement.Incarnation,
		Role:        announcement.Role,
		LastSeen:    time.Now(),
	}

	// Add or refresh the announcing node
	if err := d.membership.AddNode(nodeInfo); err != nil {
		if err == ErrNodeAlreadyExists {
			d.membership.TouchNode(nodeInfo.ID, nodeInfo.Incarnation)
			d.membership.UpdateNodeRole(nodeInfo.ID, nodeInfo.Role)
		} else {
			return &DiscoveryResponse{
				MessageType: "node_list",
				Success:     false,
				Error:       fmt.Sprintf("failed to register node: %v", err),
			}
		}
	} else {
		d.logger.Info("Registered node from announcement",
			logging.Node(nodeInfo.ID),
			logging.String("addr", nodeInfo.Addr))
	}

	return &DiscoveryResponse{
		MessageType: "node_list",
		Nodes:       d.membership.GetAllNodes(),
		Success:     true,
	}
}

// GetSeeds returns the configured seed nodes
func (d *Discovery) GetSeeds() []string {
	return d.config.SeedNodes
}
