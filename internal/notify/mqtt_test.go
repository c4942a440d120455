package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakePublisher struct {
	topic   string
	payload []byte
	token   mqtt.Token
}

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.payload, _ = payload.([]byte)
	return p.token
}

func TestMQTT_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{token: doneToken(nil)}
	m := newMQTT(pub, "tiles/alerts")
	m.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	if err := m.Send(context.Background(), "🔴 landsat failed", "HTTP 500"); err != nil {
		t.Fatal(err)
	}
	if pub.topic != "tiles/alerts" {
		t.Errorf("topic = %q", pub.topic)
	}
	var msg mqttMessage
	if err := json.Unmarshal(pub.payload, &msg); err != nil {
		t.Fatalf("payload %q: %v", pub.payload, err)
	}
	if msg.Title != "🔴 landsat failed" || msg.Text != "HTTP 500" || !msg.SentAt.Equal(m.now()) {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestMQTT_PublishError(t *testing.T) {
	m := newMQTT(&fakePublisher{token: doneToken(errors.New("not connected"))}, DefaultMQTTTopic)
	if err := m.Send(context.Background(), "t", "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMQTT_ContextCancelled(t *testing.T) {
	pending := &fakeToken{done: make(chan struct{})}
	m := newMQTT(&fakePublisher{token: pending}, DefaultMQTTTopic)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, "t", "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
