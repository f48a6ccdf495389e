package events

// State is the competition state broadcast by the authority for one platform.
type State string

const (
	StateInactive                State = "INACTIVE"
	StateBreak                   State = "BREAK"
	StateCurrentAthleteDisplayed State = "CURRENT_ATHLETE_DISPLAYED"
	StateTimeRunning             State = "TIME_RUNNING"
	StateTimeStopped             State = "TIME_STOPPED"
	StateDownSignalVisible       State = "DOWN_SIGNAL_VISIBLE"
	StateDecisionVisible         State = "DECISION_VISIBLE"
)

// Known reports whether s is one of the authority's states.
func (s State) Known() bool {
	switch s {
	case StateInactive, StateBreak, StateCurrentAthleteDisplayed, StateTimeRunning,
		StateTimeStopped, StateDownSignalVisible, StateDecisionVisible:
		return true
	}
	return false
}

// BreakKind qualifies a BREAK state. The empty value means no break kind.
type BreakKind string

const (
	BreakNone               BreakKind = ""
	BreakBeforeIntroduction BreakKind = "BEFORE_INTRODUCTION"
	BreakDuringIntroduction BreakKind = "DURING_INTRODUCTION"
	BreakFirstSnatch        BreakKind = "FIRST_SNATCH"
	BreakFirstCJ            BreakKind = "FIRST_CJ"
	BreakTechnical          BreakKind = "TECHNICAL"
	BreakJury               BreakKind = "JURY"
	BreakMarshal            BreakKind = "MARSHAL"
	BreakCeremony           BreakKind = "CEREMONY"
	BreakGroupDone          BreakKind = "GROUP_DONE"
)

// Known reports whether k is empty or one of the authority's break kinds.
func (k BreakKind) Known() bool {
	switch k {
	case BreakNone, BreakBeforeIntroduction, BreakDuringIntroduction, BreakFirstSnatch, BreakFirstCJ,
		BreakTechnical, BreakJury, BreakMarshal, BreakCeremony, BreakGroupDone:
		return true
	}
	return false
}

// Decision labels used when a snapshot is rendered as text.
const (
	LabelUndecided = "UNDECIDED"
	LabelGoodLift  = "GOOD_LIFT"
	LabelBadLift   = "BAD_LIFT"
)

// Snapshot is one observed (state, break kind, decision) tuple.
type Snapshot struct {
	State    State     `json:"state" cbor:"state"`
	Break    BreakKind `json:"break,omitempty" cbor:"break,omitempty"`
	Decision *bool     `json:"decision,omitempty" cbor:"decision,omitempty"`
}

// Normalize drops sub-states that do not belong to the snapshot's state:
// a break kind outside BREAK and a decision outside DECISION_VISIBLE.
func (s Snapshot) Normalize() Snapshot {
	n := Snapshot{State: s.State}
	if s.State == StateBreak {
		n.Break = s.Break
	}
	if s.State == StateDecisionVisible && s.Decision != nil {
		d := *s.Decision
		n.Decision = &d
	}
	return n
}

// Label renders the snapshot as STATE or STATE.SUBSTATE.
func (s Snapshot) Label() string {
	switch {
	case s.State == StateBreak && s.Break != BreakNone:
		return string(s.State) + "." + string(s.Break)
	case s.State == StateDecisionVisible:
		return string(s.State) + "." + DecisionLabel(s.Decision)
	default:
		return string(s.State)
	}
}

// DecisionLabel maps the tri-state decision to its label.
func DecisionLabel(d *bool) string {
	switch {
	case d == nil:
		return LabelUndecided
	case *d:
		return LabelGoodLift
	default:
		return LabelBadLift
	}
}

// TimerOp is a remote break timer command.
type TimerOp string

const (
	TimerStart TimerOp = "start"
	TimerSet   TimerOp = "set"
	TimerPause TimerOp = "pause"
	TimerStop  TimerOp = "stop"
)

// Event is the closed set of notifications carried by the feed.
type Event interface {
	Platform() string
	isEvent()
}

// StateChanged reports the authority's current snapshot for a platform.
// BreakRemainingMillis is positive when a break countdown is in progress.
type StateChanged struct {
	PlatformName         string
	Snapshot             Snapshot
	BreakRemainingMillis int
}

// TimerCommand is a break timer command issued by the remote timekeeper.
type TimerCommand struct {
	PlatformName string
	Op           TimerOp
	Millis       int
	Indefinite   bool
}

// DecisionShown reports that the referee decision became visible.
type DecisionShown struct {
	PlatformName string
	Decision     *bool
}

func (e StateChanged) Platform() string  { return e.PlatformName }
func (e TimerCommand) Platform() string  { return e.PlatformName }
func (e DecisionShown) Platform() string { return e.PlatformName }

func (StateChanged) isEvent()  {}
func (TimerCommand) isEvent()  {}
func (DecisionShown) isEvent() {}

// Snapshot returns the snapshot implied by a decision becoming visible.
func (e DecisionShown) Snapshot() Snapshot {
	return Snapshot{State: StateDecisionVisible, Decision: e.Decision}.Normalize()
}
