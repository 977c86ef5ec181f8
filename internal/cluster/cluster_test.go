package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/agleyzer/hlslocalizer/internal/registry"
)

func TestManager_NewManager(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				RaftID:   "node1",
				BindAddr: "127.0.0.1:9000",
				Peers:    []string{"127.0.0.1:9000"},
			},
			wantErr: false,
		},
		{
			name: "missing raft-id",
			config: Config{
				BindAddr: "127.0.0.1:9000",
				Peers:    []string{"127.0.0.1:9000"},
			},
			wantErr: true,
		},
		{
			name: "missing bind-addr",
			config: Config{
				RaftID: "node1",
				Peers:  []string{"127.0.0.1:9000"},
			},
			wantErr: true,
		},
		{
			name: "missing peers",
			config: Config{
				RaftID:   "node1",
				BindAddr: "127.0.0.1:9000",
			},
			wantErr: true,
		},
		{
			name: "peers without bind-addr",
			config: Config{
				RaftID:   "node1",
				BindAddr: "127.0.0.1:9000",
				Peers:    []string{"127.0.0.1:9001", "127.0.0.1:9002"},
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			config: Config{
				RaftID:   "node1",
				BindAddr: "127.0.0.1:9000",
				Peers:    []string{"127.0.0.1:9000"},
				LogLevel: "chatty",
			},
			wantErr: true,
		},
		{
			name: "invalid bind-addr",
			config: Config{
				RaftID:   "node1",
				BindAddr: "invalid",
				Peers:    []string{"127.0.0.1:9000"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.config, logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewManager() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManager_StartAndShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	config := Config{
		RaftID:            "node1",
		BindAddr:          "127.0.0.1:0", // Use port 0 for auto-assignment
		Peers:             []string{"127.0.0.1:0"},
		HeartbeatTimeout:  100 * time.Millisecond,
		ElectionTimeout:   100 * time.Millisecond,
		SnapshotInterval:  1 * time.Hour,
		SnapshotThreshold: 10000,
		LogLevel:          "error",
		LogOutput:         io.Discard,
	}

	manager, err := NewManager(config, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Verify manager is running
	if manager.State() == "NotStarted" {
		t.Error("Manager should be started")
	}

	// Shutdown
	if err := manager.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	// Verify shutdown is idempotent
	if err := manager.Shutdown(); err != nil {
		t.Errorf("Second Shutdown() error = %v", err)
	}
}

func TestManager_RegistryOperations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Create a single-node cluster
	manager := createTestCluster(t, logger, 20000, 1)[0]
	defer manager.Shutdown()

	// Wait for leader election
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.WaitForLeader(ctx); err != nil {
		t.Fatalf("WaitForLeader() error = %v", err)
	}

	item := registry.Item{
		ID:       "item1",
		URL:      "https://example.com/master.m3u8",
		Duration: 42,
	}
	if err := manager.Add(item, testPlan("item1", 2)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := manager.Add(item, registry.Plan{}); !errors.Is(err, registry.ErrExists) {
		t.Errorf("second Add() error = %v, want ErrExists", err)
	}

	got, err := manager.Get("item1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != registry.StateNew || got.Duration != 42 || got.TotalTasks != 2 {
		t.Errorf("Get() = %+v", got)
	}

	plan, err := manager.Plan("item1")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(plan.Tasks) != 2 {
		t.Errorf("Plan() tasks = %d, want 2", len(plan.Tasks))
	}

	got, err = manager.CompleteTask("item1", 1)
	if err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	if got.CompletedTasks != 1 || got.State != registry.StateInProgress {
		t.Errorf("CompleteTask() = %+v", got)
	}
	if _, err := manager.CompleteTask("item1", 1); !errors.Is(err, registry.ErrTaskDone) {
		t.Errorf("repeated CompleteTask() error = %v, want ErrTaskDone", err)
	}

	if err := manager.SetState("item1", registry.StatePaused); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	items, err := manager.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 || items[0].State != registry.StatePaused {
		t.Errorf("List() = %+v", items)
	}

	if err := manager.Remove("item1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := manager.Get("item1"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("Get() after Remove error = %v, want ErrNotFound", err)
	}
	if err := manager.Remove("item1"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestManager_Replication(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	managers := createTestCluster(t, logger, 20010, 3)
	defer func() {
		for _, m := range managers {
			m.Shutdown()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := managers[0].WaitForLeader(ctx); err != nil {
		t.Fatalf("WaitForLeader() error = %v", err)
	}

	var leader *Manager
	deadline := time.Now().Add(5 * time.Second)
	for leader == nil && time.Now().Before(deadline) {
		for _, m := range managers {
			if m.IsLeader() {
				leader = m
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	if leader == nil {
		t.Fatal("no leader elected")
	}

	if err := leader.Add(registry.Item{ID: "replicated"}, testPlan("replicated", 5)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	for _, m := range managers {
		deadline := time.Now().Add(5 * time.Second)
		for {
			if plan, err := m.Plan("replicated"); err == nil && len(plan.Tasks) == 5 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("item not replicated to %s", m.NodeID())
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
}

func TestManager_SnapshotOnShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dataDir := t.TempDir()

	start := func(addr string) *Manager {
		t.Helper()
		manager, err := NewManager(Config{
			RaftID:           "node1",
			BindAddr:         addr,
			Peers:            []string{addr},
			HeartbeatTimeout: 100 * time.Millisecond,
			ElectionTimeout:  100 * time.Millisecond,
			DataDir:          dataDir,
		}, logger)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if err := manager.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		return manager
	}

	first := start("127.0.0.1:20020")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := first.WaitForLeader(ctx); err != nil {
		t.Fatalf("WaitForLeader() error = %v", err)
	}

	for _, id := range []string{"a", "b"} {
		if err := first.Add(registry.Item{ID: id}, testPlan(id, 4)); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}
	if _, err := first.CompleteTask("b", 3); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	if err := first.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	// The registry is restored from the snapshot before any election.
	second := start("127.0.0.1:20021")
	defer second.Shutdown()

	items, err := second.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 restored items, got %d", len(items))
	}
	b, err := second.Get("b")
	if err != nil {
		t.Fatalf("Get(b) error = %v", err)
	}
	if b.CompletedTasks != 1 {
		t.Errorf("restored CompletedTasks = %d, want 1", b.CompletedTasks)
	}
	plan, err := second.Plan("b")
	if err != nil {
		t.Fatalf("Plan(b) error = %v", err)
	}
	if len(plan.Tasks) != 4 || plan.Master == "" {
		t.Errorf("restored plan = %+v", plan)
	}
}

func TestManager_NotStarted(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager, err := NewManager(Config{
		RaftID:   "node1",
		BindAddr: "127.0.0.1:9000",
		Peers:    []string{"127.0.0.1:9000"},
	}, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if err := manager.Add(registry.Item{ID: "x"}, registry.Plan{}); err == nil {
		t.Error("Add() on a stopped manager should fail")
	}
	if _, err := manager.CompleteTask("x", 0); err == nil {
		t.Error("CompleteTask() on a stopped manager should fail")
	}
	if manager.State() != "NotStarted" {
		t.Errorf("State() = %s, want NotStarted", manager.State())
	}
	if manager.IsLeader() {
		t.Error("IsLeader() should be false before Start")
	}
	if manager.LeaderAddr() != "" {
		t.Error("LeaderAddr() should be empty before Start")
	}

	items, err := manager.List()
	if err != nil || len(items) != 0 {
		t.Errorf("List() = %v, %v", items, err)
	}
}

// createTestCluster creates a test cluster with the specified number of nodes.
func createTestCluster(t *testing.T, logger *slog.Logger, basePort, nodeCount int) []*Manager {
	t.Helper()

	// Allocate ports
	peers := make([]string, nodeCount)
	for i := 0; i < nodeCount; i++ {
		peers[i] = fmt.Sprintf("127.0.0.1:%d", basePort+i)
	}

	managers := make([]*Manager, nodeCount)
	for i := 0; i < nodeCount; i++ {
		config := Config{
			RaftID:            peers[i],
			BindAddr:          peers[i],
			Peers:             peers,
			HeartbeatTimeout:  100 * time.Millisecond,
			ElectionTimeout:   100 * time.Millisecond,
			SnapshotInterval:  1 * time.Hour,
			SnapshotThreshold: 10000,
		}

		manager, err := NewManager(config, logger)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}

		ctx := context.Background()
		if err := manager.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		managers[i] = manager
	}

	return managers
}
