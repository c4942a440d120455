package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// DefaultMQTTTopic is where status changes are published when no topic is configured.
const DefaultMQTTTopic = "tileping/alerts"

// publisher is the part of mqtt.Client MQTT uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes each message as a JSON document on Topic.
type MQTT struct {
	Topic string
	QoS   byte

	client publisher
	now    func() time.Time
}

type mqttMessage struct {
	Title  string    `json:"title"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// DialMQTT connects to broker (e.g. tcp://mqtt.local:1883). The returned
// close func disconnects.
func DialMQTT(broker, topic, clientID string, log *zap.Logger) (*MQTT, func(), error) {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	if clientID == "" {
		clientID = fmt.Sprintf("tileping-%d", time.Now().Unix())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt_connection_lost", zap.String("broker", broker), zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, nil, fmt.Errorf("mqtt connect %s: %w", broker, tok.Error())
	}
	log.Info("mqtt_connected", zap.String("broker", broker), zap.String("topic", topic))

	return newMQTT(client, topic), func() { client.Disconnect(250) }, nil
}

func newMQTT(client publisher, topic string) *MQTT {
	return &MQTT{Topic: topic, QoS: 1, client: client, now: time.Now}
}

func (m *MQTT) Send(ctx context.Context, title, text string) error {
	payload, err := json.Marshal(mqttMessage{Title: title, Text: text, SentAt: m.now().UTC()})
	if err != nil {
		return err
	}
	tok := m.client.Publish(m.Topic, m.QoS, false, payload)
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt publish: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
