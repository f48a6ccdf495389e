package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liftdisplay/go/internal/display/events"
)

// Broadcaster fans an event out to the displays of a platform.
type Broadcaster interface {
	BroadcastToPlatform(platform string, event events.Event)
}

// EventConsumer consumes competition events from JetStream, records them as
// platform state and broadcasts them to display sessions
type EventConsumer struct {
	broadcaster Broadcaster
	state       *PlatformStateManager
	nc          *nats.Conn
	js          jetstream.JetStream
	consumer    jetstream.Consumer
	config      JetStreamConsumerConfig
}

// NewEventConsumer connects to NATS and binds the durable consumer
func NewEventConsumer(b Broadcaster, state *PlatformStateManager, config JetStreamConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.Name(config.ConsumerName),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{
		broadcaster: b,
		state:       state,
		nc:          nc,
		js:          js,
		config:      config,
	}

	if err := ec.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return ec, nil
}

// ensureConsumer creates or gets the JetStream consumer
func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Display gateway consumer",
		FilterSubject: ec.config.SubjectFilter,
		// the last event per platform subject is enough to rebuild state
		DeliverPolicy: jetstream.DeliverLastPerSubjectPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, ec.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", ec.config.ConsumerName).
			Str("stream", ec.config.StreamName).
			Msg("created JetStream consumer")
	} else {
		log.Info().
			Str("consumer", ec.config.ConsumerName).
			Str("stream", ec.config.StreamName).
			Msg("using existing JetStream consumer")
	}

	ec.consumer = consumer
	return nil
}

// Start consumes events until ctx is cancelled
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			ec.settle(msg, ec.processMessage(msg))
		}
	}
}

// settle acks a processed message. Processing only fails for messages that
// cannot be decoded or routed, and redelivery cannot fix those, so they are
// terminated.
func (ec *EventConsumer) settle(msg jetstream.Msg, err error) {
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
		return
	}

	log.Error().
		Err(err).
		Str("subject", msg.Subject()).
		Msg("failed to process message")

	if termErr := msg.Term(); termErr != nil {
		log.Error().Err(termErr).Msg("failed to TERM message")
	}
}

var errUndecodable = errors.New("undecodable event")

func (ec *EventConsumer) processMessage(msg jetstream.Msg) error {
	contentType := ""
	if h := msg.Headers(); h != nil {
		contentType = h.Get("Content-Type")
	}
	return ec.handlePayload(contentType, msg.Subject(), msg.Data())
}

// handlePayload decodes one feed message and fans it out.
func (ec *EventConsumer) handlePayload(contentType, subject string, data []byte) error {
	env, event, err := events.Decode(contentType, data)
	if err != nil {
		return fmt.Errorf("%w: %w", errUndecodable, err)
	}
	if event.Platform() == "" {
		return fmt.Errorf("%w: event %s has no platform", errUndecodable, env.EventID)
	}

	log.Debug().
		Str("event_id", env.EventID).
		Str("platform", env.Platform).
		Str("event_type", string(env.EventType)).
		Str("subject", subject).
		Msg("processing JetStream event")

	ec.state.ProcessEvent(env, event)
	ec.broadcaster.BroadcastToPlatform(event.Platform(), event)

	log.Info().
		Str("event_id", env.EventID).
		Str("platform", env.Platform).
		Str("event_type", string(env.EventType)).
		Msg("event broadcasted to displays")

	return nil
}

// Stop closes the NATS connection
func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")

	if ec.nc != nil {
		if err := ec.nc.Drain(); err != nil {
			ec.nc.Close()
			return fmt.Errorf("drain NATS connection: %w", err)
		}
	}
	return nil
}
