package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/agleyzer/hlslocalizer/internal/registry"
	"github.com/hashicorp/raft"
)

var _ registry.Store = (*Manager)(nil)

const retainSnapshots = 2

// Manager runs a Raft node and exposes the replicated registry as a registry.Store.
type Manager struct {
	config    Config
	raft      *raft.Raft
	fsm       *RegistryFSM
	transport *raft.NetworkTransport
	logger    *slog.Logger
	mu        sync.RWMutex
	shutdown  bool
}

// NewManager creates a new cluster manager.
func NewManager(config Config, logger *slog.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{
		config: config,
		fsm:    NewRegistryFSM(logger),
		logger: logger,
	}, nil
}

// Start creates the Raft node, bootstraps it with the configured peers and
// returns without waiting for an election.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.raft != nil {
		return fmt.Errorf("cluster already started")
	}

	snapshots, err := m.snapshotStore()
	if err != nil {
		return err
	}

	addr, err := net.ResolveTCPAddr("tcp", m.config.BindAddr)
	if err != nil {
		return fmt.Errorf("resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(m.config.BindAddr, addr, 3, 10*time.Second, nil)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	// Log entries are kept in memory; only snapshots may go to disk.
	store := raft.NewInmemStore()
	r, err := raft.NewRaft(m.raftConfig(), m.fsm, store, store, snapshots, transport)
	if err != nil {
		transport.Close()
		return fmt.Errorf("create raft: %w", err)
	}
	m.raft = r
	m.transport = transport

	if err := r.BootstrapCluster(m.bootstrapConfiguration()).Error(); err != nil && err != raft.ErrCantBootstrap {
		// A node restarted from a snapshot already has a configuration.
		m.logger.Warn("failed to bootstrap cluster", "error", err)
	}

	m.logger.Info("cluster started",
		"node_id", m.config.RaftID,
		"bind", m.config.BindAddr,
		"peers", len(m.config.Peers),
		"data_dir", m.config.DataDir)

	return nil
}

func (m *Manager) raftConfig() *raft.Config {
	c := raft.DefaultConfig()
	// Server IDs are the bind addresses so the bootstrap configuration matches on every node.
	c.LocalID = raft.ServerID(m.config.BindAddr)
	c.HeartbeatTimeout = m.config.HeartbeatTimeout
	c.ElectionTimeout = m.config.ElectionTimeout
	c.LeaderLeaseTimeout = m.config.HeartbeatTimeout
	c.SnapshotInterval = m.config.SnapshotInterval
	c.SnapshotThreshold = m.config.SnapshotThreshold
	c.Logger = newRaftLogger(m.config)
	return c
}

func (m *Manager) bootstrapConfiguration() raft.Configuration {
	servers := make([]raft.Server, 0, len(m.config.Peers))
	for _, peer := range m.config.Peers {
		servers = append(servers, raft.Server{
			ID:       raft.ServerID(peer),
			Address:  raft.ServerAddress(peer),
			Suffrage: raft.Voter,
		})
	}
	return raft.Configuration{Servers: servers}
}

func (m *Manager) snapshotStore() (raft.SnapshotStore, error) {
	if m.config.DataDir == "" {
		return raft.NewInmemSnapshotStore(), nil
	}

	output := m.config.LogOutput
	if output == nil {
		output = io.Discard
	}
	snapshots, err := raft.NewFileSnapshotStore(m.config.DataDir, retainSnapshots, output)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}
	return snapshots, nil
}

// Add registers item and its plan through the Raft log.
func (m *Manager) Add(item registry.Item, plan registry.Plan) error {
	_, err := m.apply(Command{Type: CommandAddItem, Data: AddItemCommand{Item: item, Plan: plan}})
	return err
}

// Get reads an item from this node's replica.
func (m *Manager) Get(id string) (registry.Item, error) {
	return m.fsm.Registry().Get(id)
}

// Plan reads an item's plan from this node's replica.
func (m *Manager) Plan(id string) (registry.Plan, error) {
	return m.fsm.Registry().Plan(id)
}

// List reads all items from this node's replica.
func (m *Manager) List() ([]registry.Item, error) {
	return m.fsm.Registry().List()
}

// SetState changes an item's state through the Raft log.
func (m *Manager) SetState(id string, state registry.State) error {
	_, err := m.apply(Command{Type: CommandSetState, Data: SetStateCommand{ID: id, State: state}})
	return err
}

// CompleteTask records a finished task through the Raft log and returns the updated item.
func (m *Manager) CompleteTask(id string, order int) (registry.Item, error) {
	resp, err := m.apply(Command{Type: CommandCompleteTask, Data: CompleteTaskCommand{ID: id, Order: order}})
	if err != nil {
		return registry.Item{}, err
	}

	item, ok := resp.(registry.Item)
	if !ok {
		return registry.Item{}, fmt.Errorf("unexpected complete task response %T", resp)
	}
	return item, nil
}

// Remove deletes an item through the Raft log.
func (m *Manager) Remove(id string) error {
	_, err := m.apply(Command{Type: CommandRemoveItem, Data: RemoveItemCommand{ID: id}})
	return err
}

// apply submits cmd and waits for it to be applied on this node.
// Errors returned by the FSM are passed through unwrapped so callers can match them.
func (m *Manager) apply(cmd Command) (any, error) {
	m.mu.RLock()
	if m.shutdown {
		m.mu.RUnlock()
		return nil, fmt.Errorf("cluster is shut down")
	}
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return nil, fmt.Errorf("cluster not started")
	}

	data, err := EncodeCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	future := r.Apply(data, m.config.ApplyTimeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("apply command: %w", err)
	}

	resp := future.Response()
	if err, ok := resp.(error); ok {
		return nil, err
	}
	return resp, nil
}

// IsLeader returns true if this node is the Raft leader.
func (m *Manager) IsLeader() bool {
	m.mu.RLock()
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return false
	}

	return r.State() == raft.Leader
}

// LeaderAddr returns the address of the current Raft leader.
func (m *Manager) LeaderAddr() string {
	m.mu.RLock()
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return ""
	}

	leaderAddr, _ := r.LeaderWithID()
	return string(leaderAddr)
}

// State returns the current Raft state, e.g. "Leader" or "Follower".
func (m *Manager) State() string {
	m.mu.RLock()
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return "NotStarted"
	}
	return r.State().String()
}

// Peers returns the list of peer addresses.
func (m *Manager) Peers() []string {
	return m.config.Peers
}

// NodeID returns this node's Raft ID.
func (m *Manager) NodeID() string {
	return m.config.RaftID
}

// Shutdown stops the Raft node, writing a final snapshot when DataDir is set.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil
	}

	m.shutdown = true

	if m.raft != nil && m.config.DataDir != "" {
		if err := m.raft.Snapshot().Error(); err != nil && !errors.Is(err, raft.ErrNothingNewToSnapshot) {
			m.logger.Warn("failed to snapshot registry", "error", err)
		}
	}

	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			m.logger.Error("failed to shutdown raft", "error", err)
			return fmt.Errorf("shutdown raft: %w", err)
		}
	}

	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			m.logger.Error("failed to close transport", "error", err)
			return fmt.Errorf("close transport: %w", err)
		}
	}

	m.logger.Info("cluster shut down")
	return nil
}

// WaitForLeader blocks until a leader is elected or context is canceled.
func (m *Manager) WaitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.LeaderAddr() != "" {
				return nil
			}
		}
	}
}
