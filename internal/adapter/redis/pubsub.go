// Package redis publishes and consumes country update events over Redis
// pub/sub, decoupling aggregation from the instances serving websockets.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dkrasnow/worldmood/internal/domain"
	"github.com/dkrasnow/worldmood/internal/metrics"
)

// ChannelCountryUpdated carries one event per fresh aggregation result.
const ChannelCountryUpdated = "country.updated"

// CountryUpdatedEvent is the wire format on the country.updated channel.
type CountryUpdatedEvent struct {
	EventID   string                   `json:"event_id"`
	Timestamp time.Time                `json:"timestamp"`
	Result    domain.AggregationResult `json:"result"`
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Publisher emits country update events.
type Publisher struct {
	client *goredis.Client
	clock  clockwork.Clock
}

func NewPublisher(client *goredis.Client, clock clockwork.Clock) *Publisher {
	return &Publisher{client: client, clock: clock}
}

// PublishCountryUpdated announces a fresh result on the country.updated
// channel.
func (p *Publisher) PublishCountryUpdated(ctx context.Context, result domain.AggregationResult) error {
	event := CountryUpdatedEvent{
		EventID:   uuid.NewString(),
		Timestamp: p.clock.Now(),
		Result:    result,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal country updated event: %w", err)
	}

	if err := p.client.Publish(ctx, ChannelCountryUpdated, payload).Err(); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish country updated event: %w", err)
	}

	metrics.EventsPublishedTotal.WithLabelValues("ok").Inc()
	return nil
}

// Subscriber consumes country update events and hands them to a sink,
// typically the websocket hub.
type Subscriber struct {
	client *goredis.Client
	sink   func(domain.AggregationResult)
}

func NewSubscriber(client *goredis.Client, sink func(domain.AggregationResult)) *Subscriber {
	return &Subscriber{client: client, sink: sink}
}

// Run consumes events until the context is cancelled. Malformed messages are
// logged and skipped.
func (s *Subscriber) Run(ctx context.Context) {
	pubsub := s.client.Subscribe(ctx, ChannelCountryUpdated)
	defer pubsub.Close()

	channel := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-channel:
			if !ok {
				return
			}
			var event CountryUpdatedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Warn("dropping malformed country updated event", "error", err)
				continue
			}
			s.sink(event.Result)
		}
	}
}
