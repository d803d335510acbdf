package rabbitmq

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
)

// IPublisher publishes a message on a fixed topic.
type IPublisher interface {
	PublishMessage(message interface{}) error
	Close()
}

// PublisherFactory returns a publisher bound to topic.
type PublisherFactory func(topic string) IPublisher

// Publisher publishes with QoS 1 on a single topic.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	owned  bool // Close disconnects client
}

// NewPublisher takes ownership of client: Close disconnects it.
func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, qos: 1, owned: true}
}

// Factory builds publishers sharing client. The connection stays with the
// caller; closing one of these publishers leaves it open.
func Factory(client mqtt.Client) PublisherFactory {
	return func(topic string) IPublisher {
		return &Publisher{client: client, topic: topic, qos: 1}
	}
}

// PublishMessage sends strings and byte slices as they are; any other value
// is encoded as JSON.
func (p *Publisher) PublishMessage(message interface{}) error {
	var payload []byte
	switch m := message.(type) {
	case string:
		payload = []byte(m)
	case []byte:
		payload = m
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message for %s: %w", p.topic, err)
		}
		payload = b
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message on %s: %w", p.topic, err)
	}

	logger.Default().Debug("message published", "topic", p.topic, "bytes", len(payload))
	return nil
}

func (p *Publisher) Close() {
	if p.owned {
		CloseRabbitMQConn(p.client)
	}
}

// Topic fills the {name} placeholders of tmpl. MQTT separators and wildcards
// in the values are replaced with '_'.
func Topic(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		v = strings.Map(func(r rune) rune {
			switch r {
			case '/', '+', '#':
				return '_'
			}
			return r
		}, strings.TrimSpace(v))
		if v == "" {
			v = "_"
		}
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
