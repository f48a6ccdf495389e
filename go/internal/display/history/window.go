package history

import "github.com/mcdev12/liftdisplay/go/internal/display/events"

// Capacity is the number of snapshots a Window remembers.
const Capacity = 3

// Window holds the most recent accepted snapshots, most recent first.
// The zero value is an empty window.
type Window struct {
	entries [Capacity]events.Snapshot
	size    int
}

// Push records s as the most recent snapshot, evicting the oldest on overflow.
func (w *Window) Push(s events.Snapshot) {
	copy(w.entries[1:], w.entries[:Capacity-1])
	w.entries[0] = s
	if w.size < Capacity {
		w.size++
	}
}

// At returns the snapshot at index i, 0 being the most recent.
func (w *Window) At(i int) (events.Snapshot, bool) {
	if i < 0 || i >= w.size {
		return events.Snapshot{}, false
	}
	return w.entries[i], true
}

// Len returns how many snapshots are held.
func (w *Window) Len() int { return w.size }

// Snapshots returns the held snapshots, most recent first.
func (w *Window) Snapshots() []events.Snapshot {
	out := make([]events.Snapshot, w.size)
	copy(out, w.entries[:w.size])
	return out
}

// Clear empties the window.
func (w *Window) Clear() {
	*w = Window{}
}
