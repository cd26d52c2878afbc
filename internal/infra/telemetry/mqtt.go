package telemetry

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	domainTelemetry "watering_notification_bot/internal/domain/telemetry"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// pahoPublisher is the part of paho.Client the publisher uses.
type pahoPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes telemetry to an MQTT broker with QoS 0.
type MQTTPublisher struct {
	client pahoPublisher
	prefix string
}

// NewMQTTPublisher connects to broker (e.g. tcp://localhost:1883).
func NewMQTTPublisher(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return newMQTTPublisher(client, prefix), nil
}

func newMQTTPublisher(client pahoPublisher, prefix string) *MQTTPublisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTPublisher{client: client, prefix: prefix}
}

func (p *MQTTPublisher) PublishReading(ctx context.Context, r domainTelemetry.Reading) error {
	payload, err := FormatReadingPayload(r)
	if err != nil {
		return fmt.Errorf("format reading payload: %w", err)
	}
	return p.publish(ctx, Topic(p.prefix, r.UserID, r.PlantID, "moisture"), payload)
}

func (p *MQTTPublisher) PublishDecision(ctx context.Context, d domainTelemetry.Decision) error {
	payload, err := FormatDecisionPayload(d)
	if err != nil {
		return fmt.Errorf("format decision payload: %w", err)
	}
	return p.publish(ctx, Topic(p.prefix, d.UserID, d.PlantID, "decision"), payload)
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: timeout", topic)
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(1000) // 1 second quiesce
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishReading(context.Context, domainTelemetry.Reading) error {
	return nil
}

func (NopPublisher) PublishDecision(context.Context, domainTelemetry.Decision) error {
	return nil
}

func (NopPublisher) Close() {}
