// Package registry keeps track of download items and their progress.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agleyzer/hlslocalizer/internal/task"
	"github.com/google/uuid"
)

// ErrNotFound is returned for operations on an item that is not registered.
var ErrNotFound = errors.New("item not found")

// ErrExists is returned when adding an item whose ID is already registered.
var ErrExists = errors.New("item already exists")

// ErrTaskNotFound is returned for a task order outside the item's plan.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskDone is returned when a task is reported complete twice.
var ErrTaskDone = errors.New("task already complete")

// State is the lifecycle state of a download item.
type State string

const (
	StateNew            State = "new"
	StateMetadataLoaded State = "metadataLoaded"
	StateInProgress     State = "inProgress"
	StatePaused         State = "paused"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
	StateRemoved        State = "removed"
)

var states = []State{
	StateNew, StateMetadataLoaded, StateInProgress, StatePaused,
	StateCompleted, StateFailed, StateRemoved,
}

// ParseState returns the State named s.
func ParseState(s string) (State, error) {
	for _, st := range states {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown item state %q", s)
}

// Item is a registered download.
type Item struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	State          State     `json:"state"`
	TotalTasks     int       `json:"total_tasks"`
	CompletedTasks int       `json:"completed_tasks"`
	Duration       float64   `json:"duration"`
	EstimatedSize  int64     `json:"estimated_size"`
	AddedAt        time.Time `json:"added_at"`
}

// Progress returns the completed fraction of the item's tasks in [0, 1].
func (i Item) Progress() float64 {
	if i.TotalTasks == 0 {
		return 0
	}
	return float64(i.CompletedTasks) / float64(i.TotalTasks)
}

// Plan is the part of a download plan kept with its item: the tasks and the
// localized playlists. It is read-only once added.
type Plan struct {
	Tasks  []task.Task
	Master string
	Media  map[string]string
}

// Entry is an item together with its plan and the orders of its completed tasks.
type Entry struct {
	Item Item
	Plan Plan
	Done map[int]bool
}

// Store is the item registry used by the server. Implementations must be safe for concurrent use.
type Store interface {
	// Add registers item with its plan. When the plan has tasks, the item's
	// TotalTasks is their count.
	Add(item Item, plan Plan) error
	Get(id string) (Item, error)
	Plan(id string) (Plan, error)
	List() ([]Item, error)
	SetState(id string, state State) error
	// CompleteTask marks the task with the given order done; the item becomes
	// completed with its last task.
	CompleteTask(id string, order int) (Item, error)
	Remove(id string) error
}

// NewItemID returns a fresh random item ID.
func NewItemID() string {
	return uuid.NewString()
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

// Add registers item and its plan. An empty state becomes StateNew.
func (m *Memory) Add(item Item, plan Plan) error {
	if item.ID == "" {
		return fmt.Errorf("item ID must not be empty")
	}
	if item.State == "" {
		item.State = StateNew
	}
	if len(plan.Tasks) > 0 {
		item.TotalTasks = len(plan.Tasks)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[item.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, item.ID)
	}
	m.entries[item.ID] = &Entry{Item: item, Plan: plan, Done: make(map[int]bool)}
	return nil
}

// Get returns the item with the given ID.
func (m *Memory) Get(id string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.Item, nil
}

// Plan returns the plan registered with the item.
func (m *Memory) Plan(id string) (Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.Plan, nil
}

// List returns all items, oldest first.
func (m *Memory) List() ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Item, 0, len(m.entries))
	for _, e := range m.entries {
		items = append(items, e.Item)
	}
	sort.Slice(items, func(i, j int) bool { return before(items[i], items[j]) })
	return items, nil
}

// before orders items by AddedAt, then ID.
func before(a, b Item) bool {
	if a.AddedAt.Equal(b.AddedAt) {
		return a.ID < b.ID
	}
	return a.AddedAt.Before(b.AddedAt)
}

// SetState changes the item's state.
func (m *Memory) SetState(id string, state State) error {
	if _, err := ParseState(string(state)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.Item.State = state
	return nil
}

// CompleteTask records the task with the given order as done.
// Valid orders are 0 to TotalTasks-1.
func (m *Memory) CompleteTask(id string, order int) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if order < 0 || order >= e.Item.TotalTasks {
		return e.Item, fmt.Errorf("%w: item %s has no task %d", ErrTaskNotFound, id, order)
	}
	if e.Done[order] {
		return e.Item, fmt.Errorf("%w: item %s task %d", ErrTaskDone, id, order)
	}

	e.Done[order] = true
	e.Item.CompletedTasks = len(e.Done)
	switch {
	case e.Item.CompletedTasks == e.Item.TotalTasks:
		e.Item.State = StateCompleted
	case e.Item.State == StateNew || e.Item.State == StateMetadataLoaded:
		e.Item.State = StateInProgress
	}
	return e.Item, nil
}

// Remove deletes the item.
func (m *Memory) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.entries, id)
	return nil
}

// Snapshot returns a copy of every entry, oldest item first.
// Plans are shared with the store.
func (m *Memory) Snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		done := make(map[int]bool, len(e.Done))
		for order := range e.Done {
			done[order] = true
		}
		entries = append(entries, Entry{Item: e.Item, Plan: e.Plan, Done: done})
	}
	sort.Slice(entries, func(i, j int) bool { return before(entries[i].Item, entries[j].Item) })
	return entries
}

// Replace swaps the store's contents for entries.
func (m *Memory) Replace(entries []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*Entry, len(entries))
	for _, e := range entries {
		if e.Done == nil {
			e.Done = make(map[int]bool)
		}
		entry := e
		m.entries[e.Item.ID] = &entry
	}
}

// Len returns the number of registered items.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
