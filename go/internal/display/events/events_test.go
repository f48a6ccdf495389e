package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestSnapshotNormalize_DropsForeignSubStates(t *testing.T) {
	s := Snapshot{State: StateCurrentAthleteDisplayed, Break: BreakGroupDone, Decision: boolPtr(true)}.Normalize()
	assert.Equal(t, Snapshot{State: StateCurrentAthleteDisplayed}, s)

	s = Snapshot{State: StateBreak, Break: BreakJury, Decision: boolPtr(false)}.Normalize()
	assert.Equal(t, BreakJury, s.Break)
	assert.Nil(t, s.Decision)

	s = Snapshot{State: StateDecisionVisible, Break: BreakJury, Decision: boolPtr(false)}.Normalize()
	assert.Equal(t, BreakNone, s.Break)
	require.NotNil(t, s.Decision)
	assert.False(t, *s.Decision)
}

func TestSnapshotLabel(t *testing.T) {
	tests := []struct {
		snap Snapshot
		want string
	}{
		{Snapshot{State: StateInactive}, "INACTIVE"},
		{Snapshot{State: StateBreak}, "BREAK"},
		{Snapshot{State: StateBreak, Break: BreakGroupDone}, "BREAK.GROUP_DONE"},
		{Snapshot{State: StateDecisionVisible}, "DECISION_VISIBLE.UNDECIDED"},
		{Snapshot{State: StateDecisionVisible, Decision: boolPtr(true)}, "DECISION_VISIBLE.GOOD_LIFT"},
		{Snapshot{State: StateDecisionVisible, Decision: boolPtr(false)}, "DECISION_VISIBLE.BAD_LIFT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.snap.Label())
	}
}

func TestDecisionShown_Snapshot(t *testing.T) {
	e := DecisionShown{PlatformName: "A", Decision: boolPtr(true)}
	assert.Equal(t, "DECISION_VISIBLE.GOOD_LIFT", e.Snapshot().Label())
}

func TestCodec_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	all := []Event{
		StateChanged{PlatformName: "A", Snapshot: Snapshot{State: StateBreak, Break: BreakFirstCJ}, BreakRemainingMillis: 600000},
		DecisionShown{PlatformName: "A", Decision: boolPtr(false)},
		TimerCommand{PlatformName: "B", Op: TimerStart, Millis: 5000},
		TimerCommand{PlatformName: "B", Op: TimerSet, Indefinite: true},
		TimerCommand{PlatformName: "B", Op: TimerPause, Millis: 1200},
		TimerCommand{PlatformName: "B", Op: TimerStop},
	}

	for _, contentType := range []string{ContentTypeJSON, ContentTypeCBOR} {
		for _, ev := range all {
			data, err := Encode(contentType, "evt-1", at, ev)
			require.NoError(t, err)

			env, got, err := Decode(contentType, data)
			require.NoError(t, err, "%s %T", contentType, ev)
			assert.Equal(t, "evt-1", env.EventID)
			assert.Equal(t, ev.Platform(), env.Platform)
			assert.Equal(t, ev, got, contentType)
		}
	}
}

func TestDecode_JSONWireFormat(t *testing.T) {
	data := []byte(`{"eventId":"1","eventType":"BreakStarted","platform":"A",` +
		`"timestamp":"2026-03-14T09:30:00Z","payload":{"time_remaining_ms":90000}}`)

	env, ev, err := Decode("", data)
	require.NoError(t, err)
	assert.Equal(t, EventTypeBreakStarted, env.EventType)
	assert.Equal(t, TimerCommand{PlatformName: "A", Op: TimerStart, Millis: 90000}, ev)
}

func TestDecode_UnknownEventType(t *testing.T) {
	data := []byte(`{"eventId":"1","eventType":"LiftingOrderUpdated","platform":"A","payload":{}}`)

	_, _, err := Decode(ContentTypeJSON, data)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecode_Malformed(t *testing.T) {
	_, _, err := Decode(ContentTypeJSON, []byte(`{"eventId":`))
	assert.Error(t, err)

	_, _, err = Decode(ContentTypeCBOR, []byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestDecode_RejectsUnknownStates(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing state", `{}`},
		{"unknown state", `{"state":"BOGUS"}`},
		{"unknown break kind", `{"state":"BREAK","break":"LUNCH"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(`{"eventId":"1","eventType":"StateChanged","platform":"A","payload":` + tt.payload + `}`)
			_, _, err := Decode("", data)
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestKnown(t *testing.T) {
	assert.True(t, StateDownSignalVisible.Known())
	assert.False(t, State("").Known())
	assert.True(t, BreakNone.Known())
	assert.True(t, BreakGroupDone.Known())
	assert.False(t, BreakKind("LUNCH").Known())
}
