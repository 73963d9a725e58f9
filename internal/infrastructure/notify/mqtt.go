package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/log"
)

// Publisher is the part of mqtt.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes inspection events for the SCADA system.
type MQTTSink struct {
	client Publisher
	topic  string
	qos    byte
}

// Event is the JSON document published per inspection.
type Event struct {
	ID          string    `json:"id"`
	Verdict     string    `json:"verdict"`
	Confidence  float64   `json:"confidence"`
	Command     string    `json:"command"`
	Unavailable bool      `json:"unavailable"`
	Distance    float64   `json:"distance"`
	TriggeredAt time.Time `json:"triggered_at"`
	DecidedAt   time.Time `json:"decided_at"`
}

// NewEvent flattens an inspection for publishing.
func NewEvent(i entity.Inspection) Event {
	return Event{
		ID:          i.ID,
		Verdict:     i.Verdict.Class.String(),
		Confidence:  i.Verdict.Confidence,
		Command:     i.Command.String(),
		Unavailable: i.Unavailable,
		Distance:    i.Detection.Distance,
		TriggeredAt: i.TriggeredAt,
		DecidedAt:   i.DecidedAt,
	}
}

// NewMQTTSink wraps an already connected client.
func NewMQTTSink(client Publisher, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: 1}
}

// ConnectMQTT connects to broker with auto-reconnect enabled.
func ConnectMQTT(ctx context.Context, broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Info("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
		}
	case <-ctx.Done():
		// connect retry keeps going in the background
		log.Warn("mqtt broker not reachable yet", "broker", broker)
	}
	return client, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Publish sends the event and waits for the broker ack within ctx.
func (s *MQTTSink) Publish(ctx context.Context, inspection entity.Inspection) error {
	payload, err := json.Marshal(NewEvent(inspection))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	token := s.client.Publish(s.topic, s.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish: %w", ctx.Err())
	}
}
