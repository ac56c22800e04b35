package risk

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// FieldMessage is the retained payload published for every processed cycle
type FieldMessage struct {
	Cycle     uint64      `json:"cycle"`
	Timestamp int64       `json:"timestamp"`
	Field     SafetyField `json:"field"`
}

// Publisher pushes safety fields to MQTT. It implements ProbabilitySink so
// it can be handed straight to the estimator.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	retain bool
	logger *slog.Logger

	mu     sync.RWMutex
	cycle  uint64
	latest *FieldMessage
}

// NewPublisher creates a field publisher. If client is nil publishing is
// disabled and fields are only kept as the latest message.
func NewPublisher(client mqtt.Client, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultPublishTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		topic:  topic,
		qos:    0,    // QoS 0, the next cycle supersedes a lost one
		retain: true, // Retain the latest field for late subscribers
		logger: logger,
	}
}

// SetProbability publishes field and logs any failure
func (p *Publisher) SetProbability(field SafetyField) {
	if err := p.Publish(field); err != nil {
		p.logger.Warn("publishing safety field failed", "topic", p.topic, "error", err)
	}
}

// Publish numbers field as the next cycle and publishes it
func (p *Publisher) Publish(field SafetyField) error {
	p.mu.Lock()
	p.cycle++
	msg := &FieldMessage{
		Cycle:     p.cycle,
		Timestamp: time.Now().Unix(),
		Field:     field.Clone(),
	}
	p.latest = msg
	p.mu.Unlock()

	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling safety field: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic, token.Error())
	}
	return nil
}

// Latest returns the most recent message handed to the publisher
func (p *Publisher) Latest() (FieldMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return FieldMessage{}, false
	}
	msg := *p.latest
	msg.Field = p.latest.Field.Clone()
	return msg, true
}

// Topic returns the publish topic
func (p *Publisher) Topic() string {
	return p.topic
}
