package history

import (
	"strings"

	"github.com/mcdev12/liftdisplay/go/internal/display/events"
)

// Tracker decides which feed notifications are significant for one display
// and derives the summary title it renders.
//
// The authority emits a short-lived CURRENT_ATHLETE_DISPLAYED between a
// group completion and the next phase, and repeats GROUP_DONE after a
// decision reset. The look-back rules in Phases and Summary hide both.
type Tracker struct {
	platform  string
	window    Window
	lastTitle string
}

// NewTracker creates a tracker for platform, reset to its attach state.
func NewTracker(platform string) *Tracker {
	t := &Tracker{platform: platform}
	t.Reset()
	return t
}

// Reset forgets all history. The window is seeded with two INACTIVE phases so
// the first summary after attach has a previous phase.
func (t *Tracker) Reset() {
	t.window.Clear()
	t.window.Push(events.Snapshot{State: events.StateInactive})
	t.window.Push(events.Snapshot{State: events.StateInactive})
	t.lastTitle = ""
}

// Platform returns the platform name used in summaries.
func (t *Tracker) Platform() string { return t.platform }

// Window returns a copy of the history window.
func (t *Tracker) Window() Window { return t.window }

// Observe records s if it is a significant transition: a different state, or
// a different break kind while in BREAK. Anything else is a repeat.
func (t *Tracker) Observe(s events.Snapshot) bool {
	s = s.Normalize()

	head, ok := t.window.At(0)
	switch {
	case !ok || s.State != head.State:
		t.window.Push(s)
		return true
	case s.State == events.StateBreak && s.Break != head.Break:
		t.window.Push(events.Snapshot{State: s.State, Break: s.Break})
		return true
	default:
		return false
	}
}

// Phases returns the current phase and the phase that preceded it. When the
// current phase is CURRENT_ATHLETE_DISPLAYED right after a GROUP_DONE break,
// that break is a transient middle state and the one before it is reported.
func (t *Tracker) Phases() (current, previous events.Snapshot, ok bool) {
	current, ok = t.window.At(0)
	if !ok {
		return events.Snapshot{}, events.Snapshot{}, false
	}

	prevIndex := 1
	if h1, exists := t.window.At(1); exists &&
		current.State == events.StateCurrentAthleteDisplayed &&
		h1.State == events.StateBreak && h1.Break == events.BreakGroupDone {
		prevIndex = 2
	}

	previous, ok = t.window.At(prevIndex)
	if !ok {
		return events.Snapshot{}, events.Snapshot{}, false
	}
	return current, previous, true
}

// Summary renders the current and previous phases with the platform name.
// It reports false when no previous phase is known yet, and for the first
// GROUP_DONE following a decision, which the authority repeats shortly after.
func (t *Tracker) Summary() (string, bool) {
	current, previous, ok := t.Phases()
	if !ok {
		return "", false
	}

	if current.State == events.StateBreak && current.Break == events.BreakGroupDone &&
		previous.State == events.StateDecisionVisible {
		return "", false
	}

	var b strings.Builder
	if current.State == events.StateInactive || current.State == events.StateBreak {
		b.WriteString("break=")
	} else {
		b.WriteString("state=")
	}
	b.WriteString(current.Label())
	b.WriteString(";previous=")
	b.WriteString(previous.Label())
	b.WriteString(";fop=")
	b.WriteString(t.platform)
	return b.String(), true
}

// Update returns the summary when it should be rendered: computable,
// non-blank and different from the last rendered summary.
func (t *Tracker) Update() (string, bool) {
	title, ok := t.Summary()
	if !ok || strings.TrimSpace(title) == "" || title == t.lastTitle {
		return "", false
	}
	t.lastTitle = title
	return title, true
}
