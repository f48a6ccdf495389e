package breaktimer

import (
	"time"

	"github.com/mcdev12/liftdisplay/go/internal/display/events"
	"github.com/rs/zerolog/log"
)

// TaskKey names the local tick task in the session scheduler.
const TaskKey = "breaktimer.tick"

// DefaultCadence is how often a running bounded countdown ticks locally.
const DefaultCadence = time.Second

// Scheduler arms and cancels generation-stamped tasks.
type Scheduler interface {
	Schedule(key string, generation uint64, after time.Duration)
	Cancel(key string)
}

// Kind identifies what changed in an Update.
type Kind uint8

const (
	KindStarted Kind = iota + 1
	KindSet
	KindPaused
	KindStopped
	KindTick
	KindExpired
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindSet:
		return "set"
	case KindPaused:
		return "paused"
	case KindStopped:
		return "stopped"
	case KindTick:
		return "tick"
	case KindExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// State is the countdown as seen by the rendering surface.
type State struct {
	// RemainingMillis is nil for an indefinite timer.
	RemainingMillis *int   `json:"remainingMs,omitempty"`
	Running         bool   `json:"running"`
	Generation      uint64 `json:"generation"`
}

// Indefinite reports whether the timer has no bounded remaining time.
func (s State) Indefinite() bool {
	return s.RemainingMillis == nil
}

// Update is the visible effect of a command or tick.
type Update struct {
	Kind  Kind
	State State
}

// Synchronizer keeps one break countdown aligned with the remote timekeeper
// of a single platform. It is not safe for concurrent use; the owning
// session serializes every call.
type Synchronizer struct {
	platform  string
	cadence   time.Duration
	scheduler Scheduler
	state     State
	// step is the delay of the pending tick, at most one cadence.
	step time.Duration
}

// New creates a synchronizer for platform. A non-positive cadence selects DefaultCadence.
func New(platform string, cadence time.Duration, scheduler Scheduler) *Synchronizer {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Synchronizer{
		platform:  platform,
		cadence:   cadence,
		scheduler: scheduler,
	}
}

// State returns a copy of the current timer state.
func (s *Synchronizer) State() State {
	return s.snapshot()
}

// Handle applies a remote command. Commands for another platform are ignored.
func (s *Synchronizer) Handle(cmd events.TimerCommand) (Update, bool) {
	if cmd.PlatformName != s.platform {
		log.Debug().
			Str("platform", s.platform).
			Str("event_platform", cmd.PlatformName).
			Msg("ignoring timer command for another platform")
		return Update{}, false
	}

	switch cmd.Op {
	case events.TimerStart:
		return s.Start(cmd.Millis, cmd.Indefinite), true
	case events.TimerSet:
		return s.Set(cmd.Millis, cmd.Indefinite), true
	case events.TimerPause:
		return s.Pause(), true
	case events.TimerStop:
		return s.Stop(), true
	default:
		log.Warn().Str("platform", s.platform).Str("op", string(cmd.Op)).Msg("unknown timer command")
		return Update{}, false
	}
}

// Start begins counting down from remaining milliseconds, or runs without
// a bound when indefinite.
func (s *Synchronizer) Start(remaining int, indefinite bool) Update {
	s.supersede()
	s.state.RemainingMillis = bounded(remaining, indefinite)
	s.state.Running = true
	if !indefinite {
		s.scheduleTick()
	}
	return Update{Kind: KindStarted, State: s.snapshot()}
}

// Set replaces the remaining time without running the countdown.
func (s *Synchronizer) Set(remaining int, indefinite bool) Update {
	s.supersede()
	s.state.RemainingMillis = bounded(remaining, indefinite)
	s.state.Running = false
	return Update{Kind: KindSet, State: s.snapshot()}
}

// Pause freezes the countdown at its current remaining time.
func (s *Synchronizer) Pause() Update {
	s.supersede()
	s.state.Running = false
	return Update{Kind: KindPaused, State: s.snapshot()}
}

// Stop ends the break countdown.
func (s *Synchronizer) Stop() Update {
	s.supersede()
	s.state.Running = false
	return Update{Kind: KindStopped, State: s.snapshot()}
}

// Resync realigns a running break countdown with the authority's remaining
// time. Non-positive values are ignored.
func (s *Synchronizer) Resync(remaining int) (Update, bool) {
	if remaining <= 0 {
		return Update{}, false
	}
	return s.Start(remaining, false), true
}

// Fire handles a local tick scheduled under generation. Ticks from a
// superseded generation, or arriving while stopped, change nothing.
func (s *Synchronizer) Fire(generation uint64) (Update, bool) {
	if generation != s.state.Generation || !s.state.Running || s.state.RemainingMillis == nil {
		log.Debug().
			Str("platform", s.platform).
			Uint64("generation", generation).
			Uint64("current_generation", s.state.Generation).
			Msg("discarding stale timer tick")
		return Update{}, false
	}

	left := *s.state.RemainingMillis - int(s.step/time.Millisecond)
	if left <= 0 {
		s.state.RemainingMillis = millis(0)
		s.state.Running = false
		return Update{Kind: KindExpired, State: s.snapshot()}, true
	}

	s.state.RemainingMillis = millis(left)
	s.scheduleTick()
	return Update{Kind: KindTick, State: s.snapshot()}, true
}

// supersede invalidates any tick scheduled under the previous generation.
func (s *Synchronizer) supersede() {
	s.state.Generation++
	s.scheduler.Cancel(TaskKey)
}

// scheduleTick arms the next tick. The last one lands on the remaining time
// so a countdown expires on time when it is not a whole number of cadences.
func (s *Synchronizer) scheduleTick() {
	s.step = s.cadence
	if left := time.Duration(*s.state.RemainingMillis) * time.Millisecond; left < s.step {
		s.step = left
	}
	s.scheduler.Schedule(TaskKey, s.state.Generation, s.step)
}

func (s *Synchronizer) snapshot() State {
	st := s.state
	if st.RemainingMillis != nil {
		st.RemainingMillis = millis(*st.RemainingMillis)
	}
	return st
}

func bounded(remaining int, indefinite bool) *int {
	if indefinite {
		return nil
	}
	if remaining < 0 {
		remaining = 0
	}
	return millis(remaining)
}

func millis(v int) *int {
	return &v
}
