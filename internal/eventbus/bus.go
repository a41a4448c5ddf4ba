// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package eventbus fans location updates out across server instances over
// NATS.
//
// Every instance delivers its own fixes to its local hub directly and also
// publishes them to <prefix>.<userId>. Each instance subscribes to
// <prefix>.> and forwards fixes published by other instances into its
// local hub, so a viewer on any instance sees fixes ingested anywhere.
// Publishing goes through a bounded queue and a circuit breaker: when NATS
// is slow or down, remote delivery is dropped and ingestion is unaffected.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fieldtrack/internal/config"
	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/metrics"
	"github.com/tomtom215/fieldtrack/internal/models"
)

const (
	originHeader   = "fieldtrack-origin"
	breakerName    = "nats-publish"
	publishTimeout = 5 * time.Second
)

// LocalHub receives fixes for local viewers. *websocket.Hub satisfies it.
type LocalHub interface {
	Publish(fix models.LocationFix)
}

// Bus publishes local fixes to NATS and relays remote ones to the hub.
type Bus struct {
	cfg        config.NATSConfig
	hub        LocalHub
	instanceID string
	logger     watermill.LoggerAdapter

	publisher  message.Publisher
	subscriber message.Subscriber
	breaker    *gobreaker.CircuitBreaker[interface{}]
	embedded   *EmbeddedServer

	queue chan models.LocationFix

	mu     sync.Mutex
	closed bool
}

// New connects to NATS, starting the embedded server first when configured.
func New(cfg config.NATSConfig, hub LocalHub) (*Bus, error) {
	if hub == nil {
		return nil, errors.New("eventbus: hub required")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "fieldtrack.locations"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	b := &Bus{
		cfg:        cfg,
		hub:        hub,
		instanceID: uuid.New().String(),
		logger:     NewLoggerAdapter(),
		queue:      make(chan models.LocationFix, cfg.QueueSize),
	}

	url := cfg.URL
	if cfg.EmbeddedServer {
		srv, err := StartEmbeddedServer(cfg.EmbeddedHost, cfg.EmbeddedPort)
		if err != nil {
			return nil, err
		}
		b.embedded = srv
		url = srv.ClientURL()
	}
	if url == "" {
		url = natsgo.DefaultURL
	}

	b.breaker = newBreaker(cfg)

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: b.natsOptions("publisher"),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, b.logger)
	if err != nil {
		b.shutdownEmbedded()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	b.publisher = pub

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      b.natsOptions("subscriber"),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, b.logger)
	if err != nil {
		_ = pub.Close()
		b.shutdownEmbedded()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	b.subscriber = sub

	logging.Info().
		Str("url", url).
		Str("subject_prefix", cfg.SubjectPrefix).
		Bool("embedded", cfg.EmbeddedServer).
		Str("instance_id", b.instanceID).
		Msg("Event bus connected")
	return b, nil
}

func (b *Bus) natsOptions(role string) []natsgo.Option {
	maxReconnects := b.cfg.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = -1
	}
	wait := b.cfg.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return []natsgo.Option{
		natsgo.Name("fieldtrack-" + role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(maxReconnects),
		natsgo.ReconnectWait(wait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				b.logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			b.logger.Info("NATS reconnected", watermill.LogFields{
				"role": role,
				"url":  nc.ConnectedUrl(),
			})
		}),
	}
}

func newBreaker(cfg config.NATSConfig) *gobreaker.CircuitBreaker[interface{}] {
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, int(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
	metrics.SetCircuitBreakerState(breakerName, int(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker[interface{}](settings)
}

// Subject returns the subject a user's fixes are published on.
func (b *Bus) Subject(userID string) string {
	return b.cfg.SubjectPrefix + "." + subjectToken(userID)
}

// subjectToken makes a user id safe as a single NATS subject token.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, id)
}

// Publish delivers fix to the local hub and queues it for NATS. It never
// blocks; a full queue drops the remote copy.
func (b *Bus) Publish(fix models.LocationFix) {
	b.hub.Publish(fix)

	select {
	case b.queue <- fix:
		metrics.EventBusQueueDepth.Set(float64(len(b.queue)))
	default:
		metrics.EventBusPublishFailures.WithLabelValues("queue_full").Inc()
		logging.Warn().Str("user_id", fix.UserID).Msg("Event bus queue full, dropping remote delivery")
	}
}

// Serve implements suture.Service: it runs the publish loop and the relay
// subscription until ctx ends, then closes the NATS connections.
func (b *Bus) Serve(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, b.cfg.SubjectPrefix+".>")
	if err != nil {
		return fmt.Errorf("subscribe to %s.>: %w", b.cfg.SubjectPrefix, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.publishLoop(loopCtx)
	}()

	b.relayLoop(loopCtx, messages)
	cancel()
	wg.Wait()

	if ctx.Err() == nil {
		// Subscription ended on its own; let the supervisor restart us.
		return errors.New("eventbus: subscription closed")
	}
	b.Close()
	return ctx.Err()
}

func (b *Bus) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fix := <-b.queue:
			metrics.EventBusQueueDepth.Set(float64(len(b.queue)))
			b.publish(fix)
		}
	}
}

func (b *Bus) publish(fix models.LocationFix) {
	payload, err := json.Marshal(fix)
	if err != nil {
		metrics.EventBusPublishFailures.WithLabelValues("error").Inc()
		logging.Error().Err(err).Str("fix_id", fix.ID).Msg("Failed to encode location event")
		return
	}

	msg := message.NewMessage(fix.ID, payload)
	msg.Metadata.Set(originHeader, b.instanceID)
	msg.Metadata.Set("event", models.LocationUpdateEvent)

	_, err = b.breaker.Execute(func() (interface{}, error) {
		return nil, b.publisher.Publish(b.Subject(fix.UserID), msg)
	})
	switch {
	case err == nil:
		metrics.EventBusPublished.Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EventBusPublishFailures.WithLabelValues("circuit_open").Inc()
	default:
		metrics.EventBusPublishFailures.WithLabelValues("error").Inc()
		logging.Warn().Err(err).Str("fix_id", fix.ID).Msg("Failed to publish location event")
	}
}

func (b *Bus) relayLoop(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.relay(msg)
		}
	}
}

func (b *Bus) relay(msg *message.Message) {
	defer msg.Ack()

	if msg.Metadata.Get(originHeader) == b.instanceID {
		return
	}

	var fix models.LocationFix
	if err := json.Unmarshal(msg.Payload, &fix); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed location event")
		return
	}
	metrics.EventBusReceived.Inc()
	b.hub.Publish(fix)
}

// Close closes the NATS connections and the embedded server. It is safe
// to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	if err := b.subscriber.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close NATS subscriber")
	}
	if err := b.publisher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close NATS publisher")
	}
	b.shutdownEmbedded()
	logging.Info().Msg("Event bus closed")
}

func (b *Bus) shutdownEmbedded() {
	if b.embedded != nil {
		b.embedded.Shutdown()
		b.embedded = nil
	}
}

// String implements fmt.Stringer for suture logging.
func (b *Bus) String() string {
	return "eventbus"
}
