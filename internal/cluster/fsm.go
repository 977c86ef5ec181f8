// Package cluster replicates the download item registry across nodes with Raft.
package cluster

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"

	"github.com/agleyzer/hlslocalizer/internal/registry"
	"github.com/hashicorp/raft"
)

func init() {
	gob.Register(AddItemCommand{})
	gob.Register(SetStateCommand{})
	gob.Register(CompleteTaskCommand{})
	gob.Register(RemoveItemCommand{})
}

// CommandType identifies the type of Raft command.
type CommandType uint8

const (
	// CommandAddItem registers a new item.
	CommandAddItem CommandType = 1
	// CommandSetState changes an item's state.
	CommandSetState CommandType = 2
	// CommandCompleteTask records a finished download task.
	CommandCompleteTask CommandType = 3
	// CommandRemoveItem deletes an item.
	CommandRemoveItem CommandType = 4
)

// Command represents a Raft log command.
type Command struct {
	Type CommandType
	Data any
}

// AddItemCommand carries the item to register and its plan.
type AddItemCommand struct {
	Item registry.Item
	Plan registry.Plan
}

// SetStateCommand moves an item to State.
type SetStateCommand struct {
	ID    string
	State registry.State
}

// CompleteTaskCommand marks the task with Order done.
type CompleteTaskCommand struct {
	ID    string
	Order int
}

// RemoveItemCommand deletes an item.
type RemoveItemCommand struct {
	ID string
}

// RegistryFSM implements raft.FSM on top of an in-memory registry.
// Apply returns nil, an error, or for CommandCompleteTask the updated registry.Item.
type RegistryFSM struct {
	items  *registry.Memory
	logger *slog.Logger
}

// NewRegistryFSM creates an FSM with an empty registry.
func NewRegistryFSM(logger *slog.Logger) *RegistryFSM {
	return &RegistryFSM{
		items:  registry.NewMemory(),
		logger: logger,
	}
}

// Apply applies a Raft log entry to the FSM.
func (f *RegistryFSM) Apply(log *raft.Log) any {
	var cmd Command
	if err := gob.NewDecoder(bytes.NewReader(log.Data)).Decode(&cmd); err != nil {
		f.logger.Error("failed to decode command", "error", err)
		return fmt.Errorf("decode command: %w", err)
	}

	switch cmd.Type {
	case CommandAddItem:
		c, ok := cmd.Data.(AddItemCommand)
		if !ok {
			return fmt.Errorf("invalid add item command data")
		}
		if err := f.items.Add(c.Item, c.Plan); err != nil {
			return err
		}
		f.logger.Debug("added item", "id", c.Item.ID, "tasks", len(c.Plan.Tasks))
		return nil

	case CommandSetState:
		c, ok := cmd.Data.(SetStateCommand)
		if !ok {
			return fmt.Errorf("invalid set state command data")
		}
		if err := f.items.SetState(c.ID, c.State); err != nil {
			return err
		}
		f.logger.Debug("changed item state", "id", c.ID, "state", c.State)
		return nil

	case CommandCompleteTask:
		c, ok := cmd.Data.(CompleteTaskCommand)
		if !ok {
			return fmt.Errorf("invalid complete task command data")
		}
		item, err := f.items.CompleteTask(c.ID, c.Order)
		if err != nil {
			return err
		}
		return item

	case CommandRemoveItem:
		c, ok := cmd.Data.(RemoveItemCommand)
		if !ok {
			return fmt.Errorf("invalid remove item command data")
		}
		if err := f.items.Remove(c.ID); err != nil {
			return err
		}
		f.logger.Debug("removed item", "id", c.ID)
		return nil

	default:
		f.logger.Error("unknown command type", "type", cmd.Type)
		return fmt.Errorf("unknown command type: %d", cmd.Type)
	}
}

// Snapshot returns an FSMSnapshot for creating a point-in-time snapshot.
func (f *RegistryFSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{state: snapshotState{Entries: f.items.Snapshot()}}, nil
}

// Restore replaces the registry with the entries of a snapshot.
func (f *RegistryFSM) Restore(snapshot io.ReadCloser) error {
	defer snapshot.Close()

	var state snapshotState
	if err := gob.NewDecoder(snapshot).Decode(&state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.items.Replace(state.Entries)

	f.logger.Info("restored registry from snapshot", "items", len(state.Entries))
	return nil
}

// Registry returns the FSM's registry for reads. Writes must go through Raft.
func (f *RegistryFSM) Registry() *registry.Memory {
	return f.items
}

// snapshotState is the persisted form of the registry: items, plans and completed task orders.
type snapshotState struct {
	Entries []registry.Entry
}

// fsmSnapshot implements raft.FSMSnapshot.
type fsmSnapshot struct {
	state snapshotState
}

// Persist writes the snapshot to the given sink.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.state); err != nil {
		sink.Cancel()
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if _, err := sink.Write(buf.Bytes()); err != nil {
		sink.Cancel()
		return fmt.Errorf("write snapshot: %w", err)
	}

	return sink.Close()
}

// Release releases any resources held by the snapshot.
func (s *fsmSnapshot) Release() {}

// EncodeCommand encodes a command for Raft submission.
func EncodeCommand(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cmd); err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return buf.Bytes(), nil
}
