package battle

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ragrace/internal/domain"
)

var errPanicked = errors.New("persistence task panicked")

// Task is a background persistence job for one battle.
type Task struct {
	done  chan struct{}
	mu    sync.Mutex
	state domain.BattleState
	err   error
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's error once Done is closed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// State reports where the task is in the persistence lifecycle.
func (t *Task) State() domain.BattleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	t.err = err
	if err != nil {
		t.state = domain.BattleStatePersistFailed
	} else {
		t.state = domain.BattleStatePersisted
	}
	t.mu.Unlock()
}

// PendingRegistry tracks battles whose persistence is still running. An entry
// lives exactly as long as its task.
type PendingRegistry struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
	wg    sync.WaitGroup
}

// NewPendingRegistry creates an empty registry.
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{tasks: make(map[uuid.UUID]*Task)}
}

// Track runs fn in the background under id. The entry is removed when fn
// returns, whatever the outcome, before waiters are released.
func (r *PendingRegistry) Track(id uuid.UUID, fn func() error) *Task {
	task := &Task{done: make(chan struct{}), state: domain.BattleStatePersisting}

	r.mu.Lock()
	r.tasks[id] = task
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		var err error
		defer func() {
			if p := recover(); p != nil {
				slog.Error("battle.PendingRegistry: persistence task panicked", "battle_id", id, "panic", p)
				err = errPanicked
			}
			task.finish(err)
			r.remove(id, task)
			close(task.done)
		}()
		err = fn()
	}()

	return task
}

// Lookup returns the in-flight task for id, if any.
func (r *PendingRegistry) Lookup(id uuid.UUID) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Wait blocks until the task for id finishes or ctx ends. It reports whether
// a task was found. The task's own error is returned when it finished.
func (r *PendingRegistry) Wait(ctx context.Context, id uuid.UUID) (bool, error) {
	task, ok := r.Lookup(id)
	if !ok {
		return false, nil
	}
	select {
	case <-task.Done():
		return true, task.Err()
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// Len returns the number of in-flight tasks.
func (r *PendingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Shutdown waits for every tracked task or for ctx to end.
func (r *PendingRegistry) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *PendingRegistry) remove(id uuid.UUID, task *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tasks[id] == task {
		delete(r.tasks, id)
	}
}
