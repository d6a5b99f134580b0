package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one unit of background work owned by a Ledger.
type Task struct {
	key  string
	done chan struct{}
	err  error
}

// Err is valid once Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait reports whether the task finished within timeout.
func (t *Task) Wait(timeout time.Duration) bool {
	select {
	case <-t.done:
		return true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

// Ledger tracks the background tasks of one connection by key. At most one
// task per key is pending at any time; finished tasks remove themselves.
//
// Tasks run on the ledger's base context, not the caller's, so a
// disconnect stops the waiting but never cancels an in-flight call.
type Ledger struct {
	base context.Context
	log  *logrus.Entry

	mu    sync.Mutex
	tasks map[string]*Task
}

func NewLedger(base context.Context, log *logrus.Entry) *Ledger {
	return &Ledger{base: base, log: log, tasks: map[string]*Task{}}
}

// Schedule starts fn under key. If a task with the same key is still
// pending, fn is not run and the pending task is returned with false.
func (l *Ledger) Schedule(key string, fn func(ctx context.Context) error) (*Task, bool) {
	l.mu.Lock()
	if t, ok := l.tasks[key]; ok {
		l.mu.Unlock()
		return t, false
	}
	t := &Task{key: key, done: make(chan struct{})}
	l.tasks[key] = t
	l.mu.Unlock()

	go l.run(t, fn)
	return t, true
}

func (l *Ledger) run(t *Task, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("task %s panicked: %v", t.key, r)
			l.log.WithField("task", t.key).Errorf("background task panic: %v", r)
		}
		l.mu.Lock()
		if l.tasks[t.key] == t {
			delete(l.tasks, t.key)
		}
		l.mu.Unlock()
		close(t.done)
	}()
	t.err = fn(l.base)
}

func (l *Ledger) Get(key string) (*Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[key]
	return t, ok
}

// Wait blocks until the task under key finishes or timeout elapses. It
// reports true when nothing is pending under key anymore.
func (l *Ledger) Wait(key string, timeout time.Duration) bool {
	t, ok := l.Get(key)
	if !ok {
		return true
	}
	return t.Wait(timeout)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// AwaitAll waits for every pending task, including ones scheduled while
// waiting, until the ledger is empty or timeout elapses. It returns how
// many tasks were still pending.
func (l *Ledger) AwaitAll(timeout time.Duration) int {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		l.mu.Lock()
		pending := make([]*Task, 0, len(l.tasks))
		for _, t := range l.tasks {
			pending = append(pending, t)
		}
		l.mu.Unlock()

		if len(pending) == 0 {
			return 0
		}
		for _, t := range pending {
			select {
			case <-t.done:
			case <-timer.C:
				return l.Len()
			}
		}
	}
}
