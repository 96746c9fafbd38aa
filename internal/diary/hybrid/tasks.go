package hybrid

import (
	"sync"
	"time"
)

// Task is a cancellable deferred job with an observable end. Done is
// closed when the job has either run to completion or been cancelled,
// whichever comes first, so tests and shutdown paths can wait on it.
type Task struct {
	timer *time.Timer
	done  chan struct{}
	once  sync.Once
}

// After schedules fn to run once after d.
func After(d time.Duration, fn func()) *Task {
	t := &Task{done: make(chan struct{})}
	t.timer = time.AfterFunc(d, func() {
		defer t.finish()
		fn()
	})
	return t
}

// Done is closed once the task has run or been cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the task if it has not fired yet.
func (t *Task) Cancel() {
	t.timer.Stop()
	t.finish()
}

func (t *Task) finish() {
	t.once.Do(func() { close(t.done) })
}
