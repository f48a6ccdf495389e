package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Fired is delivered when a scheduled task comes due. Generation is the
// value captured at scheduling time; consumers discard it when stale.
type Fired struct {
	Key        string
	Generation uint64
}

// DeliverFunc hands a fired task to its owner.
type DeliverFunc func(Fired)

type task struct {
	timer clockwork.Timer
	done  chan struct{}
}

// Scheduler runs one-shot, generation-stamped tasks keyed by name. Scheduling
// a key that is already pending replaces the pending task.
type Scheduler struct {
	clock   Clock
	deliver DeliverFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks map[string]*task
}

// New creates a scheduler whose tasks stop when parent is cancelled.
func New(parent context.Context, clock Clock, deliver DeliverFunc) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		clock:   clock,
		deliver: deliver,
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(map[string]*task),
	}
}

// Schedule arms a task for key that fires after the given delay.
func (s *Scheduler) Schedule(key string, generation uint64, after time.Duration) {
	if s.ctx.Err() != nil {
		return
	}

	t := &task{timer: s.clock.NewTimer(after), done: make(chan struct{})}
	s.replaceTask(key, t)

	go func() {
		select {
		case <-t.timer.Chan():
			if !s.removeTask(key, t) {
				// replaced or cancelled while firing
				return
			}
			s.deliver(Fired{Key: key, Generation: generation})
		case <-t.done:
		case <-s.ctx.Done():
			stopAndDrainTimer(t.timer)
		}
	}()

	log.Debug().
		Str("task", key).
		Uint64("generation", generation).
		Dur("after", after).
		Msg("scheduled task")
}

// Cancel stops the pending task for key, if any.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, exists := s.tasks[key]; exists {
		stopAndDrainTimer(t.timer)
		close(t.done)
		delete(s.tasks, key)
		log.Debug().Str("task", key).Msg("cancelled task")
	}
}

// Pending reports whether a task is armed for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.tasks[key]
	return exists
}

// Stop cancels every pending task. The scheduler accepts no new tasks afterwards.
func (s *Scheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.tasks {
		stopAndDrainTimer(t.timer)
		close(t.done)
		delete(s.tasks, key)
	}
}

// replaceTask atomically replaces the task for key, cancelling any existing one.
func (s *Scheduler) replaceTask(key string, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.tasks[key]; exists {
		stopAndDrainTimer(existing.timer)
		close(existing.done)
		log.Debug().Str("task", key).Msg("replaced existing task")
	}
	s.tasks[key] = t
}

// removeTask drops t if it is still the current task for key.
func (s *Scheduler) removeTask(key string, t *task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks[key] != t {
		return false
	}
	delete(s.tasks, key)
	return true
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent goroutine leaks.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
