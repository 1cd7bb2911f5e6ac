package agent

import (
	"context"
	"sync"
)

// Task is one slice of work. To keep going on a later tick it passes its
// continuation to next; otherwise it is done.
type Task func(ctx context.Context, next func(Task))

// TickRunner spreads work over host ticks: each Tick runs at most one task,
// so a long job never eats a whole tick's CPU.
type TickRunner struct {
	mu    sync.Mutex
	queue []Task
}

// CreateTask appends t to the queue.
func (r *TickRunner) CreateTask(t Task) {
	r.mu.Lock()
	r.queue = append(r.queue, t)
	r.mu.Unlock()
}

// Tick runs the task at the head of the queue. It reports whether one ran.
func (r *TickRunner) Tick(ctx context.Context) bool {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		return false
	}
	t := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	r.mu.Unlock()

	t(ctx, r.CreateTask)
	return true
}

func (r *TickRunner) HasTask() bool {
	return r.Len() > 0
}

func (r *TickRunner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
