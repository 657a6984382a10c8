package task

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrTaskNotFound is returned for unknown task identifiers.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskTerminal is returned when acting on an already-terminal task.
	ErrTaskTerminal = errors.New("task is already terminal")
)

// Registry is the process-wide, thread-safe mapping of task id to Task.
type Registry struct {
	mu        sync.Mutex
	tasks     map[uuid.UUID]*Task
	retention time.Duration
}

// NewRegistry builds a Registry which retains terminal tasks for the
// given duration before they are swept.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		tasks:     make(map[uuid.UUID]*Task),
		retention: retention,
	}
}

// Create constructs a pending task with an attached event bus.
func (r *Registry) Create(kind Kind, owner uuid.UUID, input Input) *Task {
	var t = newTask(kind, owner, input)

	r.mu.Lock()
	r.tasks[t.id] = t
	r.mu.Unlock()

	tasksCreated.WithLabelValues(string(kind)).Inc()
	log.WithFields(log.Fields{
		"task":  t.id,
		"kind":  kind,
		"owner": owner,
	}).Info("created task")

	return t
}

// Get returns the live task of the given id.
func (r *Registry) Get(id uuid.UUID) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t, ok = r.tasks[id]
	return t, ok
}

// Snapshot returns a copy of the task's observable state.
func (r *Registry) Snapshot(id uuid.UUID) (Snapshot, bool) {
	var t, ok = r.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return t.Snapshot(), true
}

// ListFilter narrows List results. Zero-valued fields match everything.
type ListFilter struct {
	Kind   Kind
	Status Status
}

// List returns snapshots of the owner's tasks matching the filter,
// newest first.
func (r *Registry) List(owner uuid.UUID, filter ListFilter) []Snapshot {
	r.mu.Lock()
	var matched []*Task
	for _, t := range r.tasks {
		if t.owner != owner {
			continue
		}
		if filter.Kind != "" && t.kind != filter.Kind {
			continue
		}
		matched = append(matched, t)
	}
	r.mu.Unlock()

	var out = make([]Snapshot, 0, len(matched))
	for _, t := range matched {
		var s = t.Snapshot()
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Cancel sets the cooperative cancellation signal of a task. Running
// stages observe it between stages and at model-call boundaries.
func (r *Registry) Cancel(id uuid.UUID) error {
	var t, ok = r.Get(id)
	if !ok {
		return ErrTaskNotFound
	}
	if err := t.requestCancel(); err != nil {
		return err
	}
	log.WithField("task", id).Info("cancellation requested")
	return nil
}

// Sweep removes tasks whose terminal age exceeds the retention TTL,
// returning how many were removed.
func (r *Registry) Sweep() int {
	var cutoff = time.Now().Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	for id, t := range r.tasks {
		t.mu.Lock()
		var expired = t.status.Terminal() && !t.completedAt.IsZero() && t.completedAt.Before(cutoff)
		t.mu.Unlock()

		if expired {
			delete(r.tasks, id)
			removed++
		}
	}
	if removed != 0 {
		tasksSwept.Add(float64(removed))
		log.WithField("count", removed).Info("swept terminal tasks")
	}
	return removed
}

// ServeSweeper periodically sweeps until the context is done.
func (r *Registry) ServeSweeper(ctx context.Context, interval time.Duration) {
	var ticker = time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
