package task

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// ProcessFunc executes the stages of one task and returns its final
// result. It must poll ctx between stages and at every model-call
// boundary, and return classified *Error values for surfaced failures.
type ProcessFunc func(ctx context.Context, t *Task) (interface{}, error)

// Runner drives tasks from pending through their terminal transition:
// it acquires a gate slot, fixes the task deadline, invokes the task's
// ProcessFunc, and maps its outcome onto the task state machine.
type Runner struct {
	Gate    *Gate
	Timeout time.Duration
}

// Launch starts the task's worker goroutine.
func (r *Runner) Launch(t *Task, fn ProcessFunc) {
	go r.run(t, fn)
}

func (r *Runner) run(t *Task, fn ProcessFunc) {
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	if !t.arm(cancel) {
		t.fail(ErrorCancelled, "cancelled")
		return
	}

	if err := r.Gate.Acquire(ctx); err != nil {
		var class, msg = Classify(err)
		t.fail(class, msg)
		return
	}
	defer r.Gate.Release()

	var deadline = time.Now().Add(r.Timeout)
	ctx, cancelDeadline := context.WithDeadline(ctx, deadline)
	defer cancelDeadline()

	t.begin(deadline)
	runningTasks.Inc()
	defer runningTasks.Dec()

	var result, err = fn(ctx, t)
	if err != nil {
		var class, msg = Classify(err)
		var entry = log.WithFields(log.Fields{
			"task":  t.id,
			"kind":  t.kind,
			"class": class,
			"err":   err,
		})
		if class == ErrorInternal {
			entry.Error("task failed")
		} else {
			entry.Warn("task failed")
		}
		t.fail(class, msg)
		return
	}

	t.complete(result)
	log.WithFields(log.Fields{"task": t.id, "kind": t.kind}).Info("task completed")
}
