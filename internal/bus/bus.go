// Package bus publishes internal location and clock-out events over MQTT
// for operational consumers subscribed to the broker. The dashboard's
// websocket feed does not read from the bus; it receives the same events
// in-process through a Broadcaster.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// LocationIngestedEvent is published whenever a location update is
// accepted for an employee.
type LocationIngestedEvent struct {
	EmployeeUID string    `json:"employeeUid"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	IsLive      bool      `json:"isLive"`
	Timestamp   time.Time `json:"timestamp"`
}

// AutoClockedOutEvent is published whenever the monitor loop performs an
// automatic clock-out.
type AutoClockedOutEvent struct {
	EmployeeUID string    `json:"employeeUid"`
	ProjectName string    `json:"projectName"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	locationTopicPrefix = "tracking/location/"
	clockoutTopicPrefix = "tracking/clockout/"
	publishQoS          = byte(1)
	publishTimeout      = 5 * time.Second
)

// Bus wraps a paho MQTT client for publish-only use; nothing in this core
// subscribes over MQTT itself, so only Publish-shaped methods are exposed.
type Bus struct {
	client mqtt.Client
	logger *zap.Logger
}

// Config describes how to reach the broker backing the internal event bus.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Connect dials the broker, matching the teacher's paho option-building and
// connect-with-timeout shape.
func Connect(cfg Config, logger *zap.Logger) (*Bus, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetKeepAlive(30 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("bus: connect timed out after %s", cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("bus: connect failed: %w", err)
	}

	return &Bus{client: client, logger: logger}, nil
}

// PublishLocationIngested publishes a LocationIngestedEvent, best-effort.
// Publish never blocks the caller on a broker outage beyond publishTimeout.
func (b *Bus) PublishLocationIngested(ev LocationIngestedEvent) {
	b.publish(locationTopicPrefix+ev.EmployeeUID, ev)
}

// PublishAutoClockedOut publishes an AutoClockedOutEvent, best-effort.
func (b *Bus) PublishAutoClockedOut(ev AutoClockedOutEvent) {
	b.publish(clockoutTopicPrefix+ev.EmployeeUID, ev)
}

func (b *Bus) publish(topic string, payload any) {
	if b == nil || b.client == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("bus: failed to marshal event", zap.String("topic", topic), zap.Error(err))
		}
		return
	}
	token := b.client.Publish(topic, publishQoS, false, raw)
	if !token.WaitTimeout(publishTimeout) {
		if b.logger != nil {
			b.logger.Warn("bus: publish timed out", zap.String("topic", topic))
		}
		return
	}
	if err := token.Error(); err != nil && b.logger != nil {
		b.logger.Warn("bus: publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Close disconnects from the broker.
func (b *Bus) Close() {
	if b != nil && b.client != nil {
		b.client.Disconnect(250)
	}
}
