package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/liftdisplay/go/internal/display/events"
)

// PlatformState is the last known authority state of one platform, kept so
// that a display attaching mid-competition starts from the current phase.
type PlatformState struct {
	Platform    string               `json:"platform"`
	Snapshot    *events.Snapshot     `json:"snapshot,omitempty"`
	BreakMillis int                  `json:"break_remaining_ms,omitempty"`
	Timer       *events.TimerCommand `json:"timer,omitempty"`
	LastEventID string               `json:"last_event_id,omitempty"`
	LastEventAt time.Time            `json:"last_event_at"`
	EventsSeen  int                  `json:"events_seen"`
}

// PlatformStateManager tracks the latest state of every platform seen on the feed.
type PlatformStateManager struct {
	mu        sync.RWMutex
	platforms map[string]*PlatformState
}

// NewPlatformStateManager creates an empty state manager.
func NewPlatformStateManager() *PlatformStateManager {
	return &PlatformStateManager{platforms: make(map[string]*PlatformState)}
}

// ProcessEvent folds an event into the platform's state.
func (m *PlatformStateManager) ProcessEvent(env events.Envelope, ev events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, exists := m.platforms[ev.Platform()]
	if !exists {
		st = &PlatformState{Platform: ev.Platform()}
		m.platforms[ev.Platform()] = st
	}

	switch e := ev.(type) {
	case events.StateChanged:
		snap := e.Snapshot.Normalize()
		st.Snapshot = &snap
		st.BreakMillis = e.BreakRemainingMillis
		if snap.State != events.StateBreak {
			st.BreakMillis = 0
		}
	case events.DecisionShown:
		snap := e.Snapshot()
		st.Snapshot = &snap
		st.BreakMillis = 0
	case events.TimerCommand:
		cmd := e
		st.Timer = &cmd
	}

	st.LastEventID = env.EventID
	st.LastEventAt = env.Timestamp
	st.EventsSeen++
}

// GetState returns a copy of the platform's state.
func (m *PlatformStateManager) GetState(platform string) (PlatformState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, exists := m.platforms[platform]
	if !exists {
		return PlatformState{}, false
	}
	out := *st
	if st.Snapshot != nil {
		snap := *st.Snapshot
		out.Snapshot = &snap
	}
	if st.Timer != nil {
		cmd := *st.Timer
		out.Timer = &cmd
	}
	return out, true
}

// Platforms lists the known platform names in order.
func (m *PlatformStateManager) Platforms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.platforms))
	for name := range m.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SyncEvents returns the events that bring a freshly attached display up to
// date: the current snapshot first, then the last timer command.
func (m *PlatformStateManager) SyncEvents(platform string) []events.Event {
	st, ok := m.GetState(platform)
	if !ok {
		return nil
	}

	var out []events.Event
	if st.Snapshot != nil {
		out = append(out, events.StateChanged{
			PlatformName:         platform,
			Snapshot:             *st.Snapshot,
			BreakRemainingMillis: st.BreakMillis,
		})
	}
	if st.Timer != nil {
		out = append(out, *st.Timer)
	}
	return out
}
