package gateway

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liftdisplay/go/internal/display/events"
)

type recordingBroadcaster struct {
	platforms []string
	events    []events.Event
}

func (b *recordingBroadcaster) BroadcastToPlatform(platform string, event events.Event) {
	b.platforms = append(b.platforms, platform)
	b.events = append(b.events, event)
}

func newTestConsumer() (*EventConsumer, *recordingBroadcaster, *PlatformStateManager) {
	b := &recordingBroadcaster{}
	state := NewPlatformStateManager()
	return &EventConsumer{broadcaster: b, state: state, config: DefaultJetStreamConsumerConfig()}, b, state
}

func TestEventConsumer_HandlePayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	good := true

	tests := []struct {
		name        string
		contentType string
		event       events.Event
	}{
		{
			name:        "json state change",
			contentType: events.ContentTypeJSON,
			event: events.StateChanged{
				PlatformName: "A",
				Snapshot:     events.Snapshot{State: events.StateCurrentAthleteDisplayed},
			},
		},
		{
			name:        "cbor decision",
			contentType: events.ContentTypeCBOR,
			event:       events.DecisionShown{PlatformName: "B", Decision: &good},
		},
		{
			name:        "cbor timer",
			contentType: events.ContentTypeCBOR,
			event:       events.TimerCommand{PlatformName: "A", Op: events.TimerSet, Millis: 120000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec, b, state := newTestConsumer()
			data, err := events.Encode(tt.contentType, "evt-1", at, tt.event)
			require.NoError(t, err)

			require.NoError(t, ec.handlePayload(tt.contentType, "competition.events.x", data))

			require.Len(t, b.events, 1)
			assert.Equal(t, tt.event, b.events[0])
			assert.Equal(t, tt.event.Platform(), b.platforms[0])

			st, ok := state.GetState(tt.event.Platform())
			require.True(t, ok)
			assert.Equal(t, "evt-1", st.LastEventID)
			assert.True(t, at.Equal(st.LastEventAt))
		})
	}
}

func TestEventConsumer_HandlePayloadUndecodable(t *testing.T) {
	ec, b, _ := newTestConsumer()

	err := ec.handlePayload(events.ContentTypeJSON, "s", []byte("{not json"))
	assert.ErrorIs(t, err, errUndecodable)

	err = ec.handlePayload(events.ContentTypeJSON, "s", []byte(`{"eventId":"x","eventType":"Nope","platform":"A"}`))
	assert.ErrorIs(t, err, errUndecodable)
	assert.ErrorIs(t, err, events.ErrUnknownEvent)

	err = ec.handlePayload(events.ContentTypeJSON, "s", []byte(`{"eventId":"z","eventType":"StateChanged","platform":"A","payload":{"state":"BOGUS"}}`))
	assert.ErrorIs(t, err, errUndecodable)
	assert.ErrorIs(t, err, events.ErrInvalidEvent)

	data, err := events.Encode(events.ContentTypeJSON, "y", time.Now(), events.DecisionShown{})
	require.NoError(t, err)
	err = ec.handlePayload(events.ContentTypeJSON, "s", data)
	assert.ErrorIs(t, err, errUndecodable, "events without a platform cannot be routed")

	assert.Empty(t, b.events)
}

type settledMsg struct {
	jetstream.Msg
	acked, termed bool
}

func (m *settledMsg) Subject() string { return "competition.events.A" }
func (m *settledMsg) Ack() error      { m.acked = true; return nil }
func (m *settledMsg) Term() error     { m.termed = true; return nil }

func TestEventConsumer_Settle(t *testing.T) {
	ec, _, _ := newTestConsumer()

	ok := &settledMsg{}
	ec.settle(ok, nil)
	assert.True(t, ok.acked)
	assert.False(t, ok.termed)

	bad := &settledMsg{}
	ec.settle(bad, ec.handlePayload(events.ContentTypeJSON, "s", []byte("{not json")))
	assert.True(t, bad.termed, "undecodable messages are not redelivered")
	assert.False(t, bad.acked)
}
