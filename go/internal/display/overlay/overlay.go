package overlay

import "time"

// TaskKey names the auto-close task in the session scheduler.
const TaskKey = "overlay.autoclose"

// AutoCloseDelay is how long an overlay stays open without user action.
const AutoCloseDelay = 8 * time.Second

// Scheduler arms and cancels generation-stamped tasks.
type Scheduler interface {
	Schedule(key string, generation uint64, after time.Duration)
	Cancel(key string)
}

// Overlay is the single transient dialog of a display session. Each open
// instance carries its own generation so a late auto-close can only close
// the instance that scheduled it.
type Overlay struct {
	scheduler  Scheduler
	delay      time.Duration
	open       bool
	content    string
	generation uint64
}

// New creates a closed overlay that auto-closes after AutoCloseDelay.
func New(scheduler Scheduler) *Overlay {
	return &Overlay{scheduler: scheduler, delay: AutoCloseDelay}
}

// IsOpen reports whether the overlay is showing.
func (o *Overlay) IsOpen() bool { return o.open }

// Content returns what the open overlay shows.
func (o *Overlay) Content() string { return o.content }

// Open shows content and arms the auto-close. It returns false when an
// overlay is already open; the pending auto-close is left untouched.
func (o *Overlay) Open(content string) bool {
	if o.open {
		return false
	}
	o.open = true
	o.content = content
	o.generation++
	o.scheduler.Schedule(TaskKey, o.generation, o.delay)
	return true
}

// Close hides the overlay and cancels its auto-close.
func (o *Overlay) Close() bool {
	if !o.open {
		return false
	}
	o.scheduler.Cancel(TaskKey)
	o.open = false
	o.content = ""
	return true
}

// Fire handles an auto-close delivered for generation. It closes the
// overlay only if that same instance is still open.
func (o *Overlay) Fire(generation uint64) bool {
	if !o.open || generation != o.generation {
		return false
	}
	o.open = false
	o.content = ""
	return true
}
