// publisher.go: event bus consumer that forwards catalog events to MQTT topics.
package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/events"
	"github.com/mousetube/mousetube-go/internal/observability"
	"github.com/mousetube/mousetube-go/internal/observability/metrics"
)

const defaultBaseTopic = "mousetube"

// Message is the JSON envelope published for every catalog event.
// Topic layout is <base>/<entity>/<action>, e.g. mousetube/recording/published.
type Message struct {
	Node      string         `json:"node,omitempty"`
	Event     string         `json:"event"`
	EntityID  uint           `json:"entityId"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher consumes catalog events and publishes them to the MQTT broker.
// It implements events.Consumer.
type Publisher struct {
	client    Client
	baseTopic string
	node      string
	timeout   time.Duration
	metrics   *metrics.MQTTMetrics
}

// NewPublisher creates a Publisher forwarding events through the given client.
func NewPublisher(settings *conf.Settings, client Client, obs *observability.Metrics) *Publisher {
	base := strings.TrimRight(settings.MQTT.Topic, "/")
	if base == "" {
		base = defaultBaseTopic
	}
	p := &Publisher{
		client:    client,
		baseTopic: base,
		node:      settings.Main.Name,
		timeout:   DefaultConfig().PublishTimeout,
	}
	if obs != nil {
		p.metrics = obs.MQTT
	}
	return p
}

// Name implements events.Consumer.
func (p *Publisher) Name() string {
	return "mqtt-publisher"
}

// ProcessEvent implements events.Consumer. Events arriving while the broker
// is unreachable are not queued; the bus records the consumer error and the
// event is lost, which is acceptable for advisory notifications.
func (p *Publisher) ProcessEvent(event events.Event) error {
	msg := Message{
		Node:      p.node,
		Event:     event.Type,
		EntityID:  event.EntityID,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Data:      event.Payload,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Context("event", event.Type).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.TopicFor(event.Type), string(payload)); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.RecordMessageDelivered(metricLabel(event.Type))
	}
	return nil
}

// TopicFor maps an event type to its MQTT topic, turning the dotted event
// name into topic levels under the configured base topic.
func (p *Publisher) TopicFor(eventType string) string {
	return p.baseTopic + "/" + strings.ReplaceAll(eventType, ".", "/")
}

func metricLabel(eventType string) string {
	return strings.ReplaceAll(eventType, ".", "_")
}

// Service ties a client and a publisher to the application lifecycle.
type Service struct {
	client    Client
	publisher *Publisher
}

// NewService builds the MQTT client and event publisher from settings.
func NewService(settings *conf.Settings, obs *observability.Metrics) (*Service, error) {
	client, err := NewClient(settings, obs)
	if err != nil {
		return nil, err
	}
	return &Service{
		client:    client,
		publisher: NewPublisher(settings, client, obs),
	}, nil
}

// Start registers the publisher on the event bus and connects in the
// background. The paho client keeps retrying the initial connection, so a
// connect error here is logged rather than returned.
func (s *Service) Start(ctx context.Context) error {
	if bus := events.GetBus(); bus != nil {
		if err := bus.RegisterConsumer(s.publisher); err != nil {
			return err
		}
	}

	go func() {
		if err := s.client.Connect(ctx); err != nil {
			logger.Warn("initial MQTT connection failed, retrying in background", "error", err)
		}
	}()

	return nil
}

// Stop disconnects from the broker.
func (s *Service) Stop() {
	s.client.Disconnect()
}

// Client returns the underlying MQTT client.
func (s *Service) Client() Client {
	return s.client
}
