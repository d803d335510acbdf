package rabbitmq

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mqtt.Client
	connected bool
	err       error
	sent      []published
}

func (c *fakeClient) IsConnected() bool { return c.connected }
func (c *fakeClient) Disconnect(uint)   { c.connected = false }
func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func TestPublisher(t *testing.T) {
	t.Run("Should encode structs as JSON", func(t *testing.T) {
		c := &fakeClient{connected: true}
		p := NewPublisher(c, "event/soilAnalysis/north")

		err := p.PublishMessage(struct {
			ID string `json:"id"`
		}{ID: "a1"})

		require.NoError(t, err)
		require.Len(t, c.sent, 1)
		assert.Equal(t, "event/soilAnalysis/north", c.sent[0].topic)
		assert.Equal(t, byte(1), c.sent[0].qos)
		assert.JSONEq(t, `{"id":"a1"}`, string(c.sent[0].payload))
	})

	t.Run("Should send strings unchanged", func(t *testing.T) {
		c := &fakeClient{connected: true}

		require.NoError(t, Factory(c)("t").PublishMessage("hello"))

		assert.Equal(t, "hello", string(c.sent[0].payload))
	})

	t.Run("Should surface broker errors", func(t *testing.T) {
		c := &fakeClient{connected: true, err: errors.New("not authorized")}

		err := NewPublisher(c, "t").PublishMessage([]byte("x"))

		assert.ErrorContains(t, err, "not authorized")
	})

	t.Run("Should disconnect on close", func(t *testing.T) {
		c := &fakeClient{connected: true}
		NewPublisher(c, "t").Close()
		assert.False(t, c.connected)
	})

	t.Run("Should leave the shared client open when a factory publisher closes", func(t *testing.T) {
		c := &fakeClient{connected: true}
		publishers := Factory(c)

		publishers("a").Close()
		require.NoError(t, publishers("b").PublishMessage("x"))

		assert.True(t, c.connected)
		require.Len(t, c.sent, 1)
		assert.Equal(t, "b", c.sent[0].topic)
	})
}

func TestTopic(t *testing.T) {
	t.Run("Should fill placeholders", func(t *testing.T) {
		got := Topic("event/soilAnalysis/{farm}/{sensor}", map[string]string{"farm": "north", "sensor": "s1"})
		assert.Equal(t, "event/soilAnalysis/north/s1", got)
	})

	t.Run("Should neutralize separators and wildcards", func(t *testing.T) {
		got := Topic("event/soilAnalysis/{farm}", map[string]string{"farm": "a/b+#"})
		assert.Equal(t, "event/soilAnalysis/a_b__", got)
	})

	t.Run("Should replace empty values", func(t *testing.T) {
		got := Topic("event/{farm}", map[string]string{"farm": " "})
		assert.Equal(t, "event/_", got)
	})
}
