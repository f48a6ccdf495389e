package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Content types understood by the feed codec.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// EventType names the payload carried by an envelope.
type EventType string

const (
	EventTypeStateChanged  EventType = "StateChanged"
	EventTypeDecisionShown EventType = "DecisionShown"
	EventTypeBreakStarted  EventType = "BreakStarted"
	EventTypeBreakSetTime  EventType = "BreakSetTime"
	EventTypeBreakPaused   EventType = "BreakPaused"
	EventTypeBreakDone     EventType = "BreakDone"
)

var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrInvalidEvent = errors.New("invalid event payload")
)

// Envelope is the header shared by every feed message.
type Envelope struct {
	EventID   string    `json:"eventId" cbor:"eventId"`
	EventType EventType `json:"eventType" cbor:"eventType"`
	Platform  string    `json:"platform" cbor:"platform"`
	Timestamp time.Time `json:"timestamp" cbor:"timestamp"`
}

// StateChangedPayload is the payload of a StateChanged event.
type StateChangedPayload struct {
	State                State     `json:"state" cbor:"state"`
	Break                BreakKind `json:"break,omitempty" cbor:"break,omitempty"`
	Decision             *bool     `json:"decision,omitempty" cbor:"decision,omitempty"`
	BreakRemainingMillis int       `json:"break_remaining_ms,omitempty" cbor:"break_remaining_ms,omitempty"`
}

// DecisionShownPayload is the payload of a DecisionShown event.
type DecisionShownPayload struct {
	Decision *bool `json:"decision,omitempty" cbor:"decision,omitempty"`
}

// BreakTimerPayload is the payload of the four break timer events.
type BreakTimerPayload struct {
	TimeRemainingMillis int  `json:"time_remaining_ms" cbor:"time_remaining_ms"`
	Indefinite          bool `json:"indefinite,omitempty" cbor:"indefinite,omitempty"`
}

type jsonMessage struct {
	Envelope
	Payload json.RawMessage `json:"payload"`
}

type cborMessage struct {
	Envelope
	Payload cbor.RawMessage `cbor:"payload"`
}

var timerOps = map[EventType]TimerOp{
	EventTypeBreakStarted: TimerStart,
	EventTypeBreakSetTime: TimerSet,
	EventTypeBreakPaused:  TimerPause,
	EventTypeBreakDone:    TimerStop,
}

var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create feed CBOR encoder mode: %v", err))
	}
}

func isCBOR(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), ContentTypeCBOR)
}

// Decode parses a feed message. JSON is assumed unless the content type is CBOR.
func Decode(contentType string, data []byte) (Envelope, Event, error) {
	var (
		env       Envelope
		unmarshal func(v any) error
	)
	if isCBOR(contentType) {
		var msg cborMessage
		if err := cbor.Unmarshal(data, &msg); err != nil {
			return Envelope{}, nil, fmt.Errorf("unmarshal event envelope: %w", err)
		}
		env = msg.Envelope
		unmarshal = func(v any) error { return cbor.Unmarshal(msg.Payload, v) }
	} else {
		var msg jsonMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return Envelope{}, nil, fmt.Errorf("unmarshal event envelope: %w", err)
		}
		env = msg.Envelope
		unmarshal = func(v any) error { return json.Unmarshal(msg.Payload, v) }
	}

	event, err := parsePayload(env, unmarshal)
	if err != nil {
		return env, nil, err
	}
	return env, event, nil
}

func parsePayload(env Envelope, unmarshal func(v any) error) (Event, error) {
	switch env.EventType {
	case EventTypeStateChanged:
		var p StateChangedPayload
		if err := unmarshal(&p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.EventType, err)
		}
		if !p.State.Known() {
			return nil, fmt.Errorf("%w: state %q", ErrInvalidEvent, p.State)
		}
		if !p.Break.Known() {
			return nil, fmt.Errorf("%w: break kind %q", ErrInvalidEvent, p.Break)
		}
		return StateChanged{
			PlatformName:         env.Platform,
			Snapshot:             Snapshot{State: p.State, Break: p.Break, Decision: p.Decision},
			BreakRemainingMillis: p.BreakRemainingMillis,
		}, nil

	case EventTypeDecisionShown:
		var p DecisionShownPayload
		if err := unmarshal(&p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.EventType, err)
		}
		return DecisionShown{PlatformName: env.Platform, Decision: p.Decision}, nil

	case EventTypeBreakStarted, EventTypeBreakSetTime, EventTypeBreakPaused, EventTypeBreakDone:
		var p BreakTimerPayload
		if err := unmarshal(&p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.EventType, err)
		}
		return TimerCommand{
			PlatformName: env.Platform,
			Op:           timerOps[env.EventType],
			Millis:       p.TimeRemainingMillis,
			Indefinite:   p.Indefinite,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.EventType)
	}
}

// Encode builds a feed message for an event in the requested content type.
func Encode(contentType, eventID string, at time.Time, event Event) ([]byte, error) {
	env := Envelope{EventID: eventID, Platform: event.Platform(), Timestamp: at}

	var payload any
	switch e := event.(type) {
	case StateChanged:
		env.EventType = EventTypeStateChanged
		payload = StateChangedPayload{
			State:                e.Snapshot.State,
			Break:                e.Snapshot.Break,
			Decision:             e.Snapshot.Decision,
			BreakRemainingMillis: e.BreakRemainingMillis,
		}
	case DecisionShown:
		env.EventType = EventTypeDecisionShown
		payload = DecisionShownPayload{Decision: e.Decision}
	case TimerCommand:
		for t, op := range timerOps {
			if op == e.Op {
				env.EventType = t
			}
		}
		if env.EventType == "" {
			return nil, fmt.Errorf("%w: timer op %q", ErrUnknownEvent, e.Op)
		}
		payload = BreakTimerPayload{TimeRemainingMillis: e.Millis, Indefinite: e.Indefinite}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}

	if isCBOR(contentType) {
		raw, err := cborEncMode.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return cborEncMode.Marshal(cborMessage{Envelope: env, Payload: raw})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(jsonMessage{Envelope: env, Payload: raw})
}
