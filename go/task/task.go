// Package task implements the in-memory task registry, lifecycle state
// machine, and concurrency gate of the note-processing pipelines.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/events"
	"github.com/google/uuid"
)

// Kind selects which pipeline a task runs.
type Kind string

const (
	// KindSmartNote is the four-stage single-note pipeline.
	KindSmartNote Kind = "smart_note"
	// KindMultiSummary is the fan-out/fan-in multi-note workflow.
	KindMultiSummary Kind = "multi_summary"
)

// Status is the lifecycle state of a task. Transitions are monotonic:
// pending -> running -> one of the terminal states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// Note is one element of a multi-note summary request.
type Note struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Input is the raw payload of a task: image bytes plus title, free text
// plus title, or an ordered list of notes.
type Input struct {
	Image []byte
	Text  string
	Title string
	Notes []Note

	// MinNotesThreshold overrides the configured threshold when > 0.
	MinNotesThreshold int
}

// intermediates which are retained on the task snapshot. Other stages
// (cache hits, per-note summaries) are event-only.
var snapshotStages = map[string]bool{
	events.StageOCRText:       true,
	events.StageCorrectedText: true,
	events.StageSummary:       true,
	events.StageComprehensive: true,
	events.StageConfidence:    true,
	events.StageContentID:     true,
	events.StageTags:          true,
}

// Task is one pipeline invocation. Observable fields mutate only through
// the transition methods below, each of which also publishes the
// corresponding event on the task's bus.
type Task struct {
	id    uuid.UUID
	owner uuid.UUID
	kind  Kind
	bus   *events.Bus

	mu              sync.Mutex
	status          Status
	progress        int
	currentStep     string
	input           Input
	intermediates   map[string]interface{}
	result          interface{}
	errClass        ErrorClass
	errMsg          string
	createdAt       time.Time
	startedAt       time.Time
	completedAt     time.Time
	deadline        time.Time
	cancel          context.CancelFunc
	cancelRequested bool
}

func newTask(kind Kind, owner uuid.UUID, input Input) *Task {
	return &Task{
		id:            uuid.New(),
		owner:         owner,
		kind:          kind,
		bus:           events.NewBus(),
		status:        StatusPending,
		input:         input,
		intermediates: make(map[string]interface{}),
		createdAt:     time.Now(),
	}
}

// ID is the task's process-wide unique identifier.
func (t *Task) ID() uuid.UUID { return t.id }

// Owner is the identifier of the submitting user. Never mutated.
func (t *Task) Owner() uuid.UUID { return t.owner }

// Kind is the task's pipeline kind.
func (t *Task) Kind() Kind { return t.kind }

// Bus is the task's progress event bus.
func (t *Task) Bus() *events.Bus { return t.bus }

// Input returns the task's raw payload.
func (t *Task) Input() Input {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input
}

// Status is a point-in-time read of the task's lifecycle state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Snapshot is an immutable copy of a task's observable state. It never
// includes the input payload.
type Snapshot struct {
	ID            string                 `json:"task_id"`
	Owner         string                 `json:"owner,omitempty"`
	Kind          Kind                   `json:"kind"`
	Status        Status                 `json:"status"`
	Progress      int                    `json:"progress"`
	CurrentStep   string                 `json:"current_step,omitempty"`
	Intermediates map[string]interface{} `json:"intermediates,omitempty"`
	Result        interface{}            `json:"result,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ErrorClass    ErrorClass             `json:"error_class,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}

// Snapshot copies the task's observable state.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Task) snapshotLocked() Snapshot {
	var s = Snapshot{
		ID:          t.id.String(),
		Owner:       t.owner.String(),
		Kind:        t.kind,
		Status:      t.status,
		Progress:    t.progress,
		CurrentStep: t.currentStep,
		Result:      t.result,
		Error:       t.errMsg,
		ErrorClass:  t.errClass,
		CreatedAt:   t.createdAt,
	}
	if len(t.intermediates) != 0 {
		s.Intermediates = make(map[string]interface{}, len(t.intermediates))
		for k, v := range t.intermediates {
			s.Intermediates[k] = v
		}
	}
	if !t.startedAt.IsZero() {
		var at = t.startedAt
		s.StartedAt = &at
	}
	if !t.completedAt.IsZero() {
		var at = t.completedAt
		s.CompletedAt = &at
	}
	return s
}

// arm installs the cancellation function of the task's worker context.
// It returns false when cancellation was requested before the worker
// started, in which case the worker must not run.
func (t *Task) arm(cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelRequested || t.status.Terminal() {
		return false
	}
	t.cancel = cancel
	return true
}

// begin transitions pending -> running and fixes the task deadline.
func (t *Task) begin(deadline time.Time) {
	t.mu.Lock()
	if t.status != StatusPending {
		t.mu.Unlock()
		return
	}
	t.status = StatusRunning
	t.startedAt = time.Now()
	t.deadline = deadline
	var ev = t.statusEventLocked()
	t.mu.Unlock()

	t.bus.Publish(ev)
}

// SetStep advances the current step and progress, publishing a status
// event. Progress is clamped to be monotonically non-decreasing.
func (t *Task) SetStep(step string, progress int) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return
	}
	t.currentStep = step
	if progress > t.progress && progress < 100 {
		t.progress = progress
	}
	var ev = t.statusEventLocked()
	t.mu.Unlock()

	t.bus.Publish(ev)
}

// Intermediate records a stage artifact and publishes it.
func (t *Task) Intermediate(stage string, payload interface{}) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return
	}
	if snapshotStages[stage] {
		t.intermediates[stage] = payload
	}
	t.mu.Unlock()

	t.bus.Publish(events.Event{
		Type:    events.TypeIntermediate,
		Stage:   stage,
		Payload: payload,
	})
}

// complete transitions the task to its completed terminal state.
func (t *Task) complete(result interface{}) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return
	}
	t.status = StatusCompleted
	t.progress = 100
	t.currentStep = ""
	t.result = result
	t.completedAt = time.Now()
	t.input = Input{} // Release the payload.
	t.mu.Unlock()

	t.bus.Publish(events.Event{Type: events.TypeComplete, Result: result})
	tasksFinished.WithLabelValues(string(t.kind), string(StatusCompleted)).Inc()
}

// fail transitions the task to the terminal state of the given class.
func (t *Task) fail(class ErrorClass, msg string) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return
	}
	switch class {
	case ErrorTimeout:
		t.status = StatusTimedOut
	case ErrorCancelled:
		t.status = StatusCancelled
	default:
		t.status = StatusFailed
	}
	t.errClass = class
	t.errMsg = msg
	t.completedAt = time.Now()
	t.input = Input{}
	var status = t.status
	t.mu.Unlock()

	t.bus.Publish(events.Event{
		Type:    events.TypeError,
		Error:   string(class),
		Message: msg,
	})
	tasksFinished.WithLabelValues(string(t.kind), string(status)).Inc()
}

// requestCancel sets the cooperative cancellation signal.
func (t *Task) requestCancel() error {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return ErrTaskTerminal
	}
	t.cancelRequested = true
	var cancel = t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func (t *Task) statusEventLocked() events.Event {
	return events.Event{
		Type:        events.TypeStatus,
		Status:      string(t.status),
		Progress:    t.progress,
		CurrentStep: t.currentStep,
	}
}
