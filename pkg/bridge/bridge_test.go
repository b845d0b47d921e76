package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/linecart/pkg/mission"
)

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu        sync.Mutex
	open      bool
	handlers  map[string]mqtt.MessageHandler
	published []published
}

func newFakeClient() *fakeClient {
	return &fakeClient{open: true, handlers: map[string]mqtt.MessageHandler{}}
}

func (f *fakeClient) IsConnected() bool      { return f.open }
func (f *fakeClient) IsConnectionOpen() bool { return f.open }
func (f *fakeClient) Connect() mqtt.Token    { return &mqtt.DummyToken{} }
func (f *fakeClient) Disconnect(uint)        { f.open = false }

func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: topic, payload: payload.([]byte)})
	return &mqtt.DummyToken{}
}

func (f *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	f.handlers[topic] = cb
	return &mqtt.DummyToken{}
}

func (f *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &mqtt.DummyToken{}
}
func (f *fakeClient) Unsubscribe(...string) mqtt.Token        { return &mqtt.DummyToken{} }
func (f *fakeClient) AddRoute(string, mqtt.MessageHandler)    {}
func (f *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }
func (f *fakeClient) deliver(topic string, payload string) {
	f.handlers[topic](f, message{topic, payload})
}
func (f *fakeClient) count() int { f.mu.Lock(); defer f.mu.Unlock(); return len(f.published) }

type message struct {
	topic   string
	payload string
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 0 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte   { return []byte(m.payload) }
func (m message) Ack()              {}

type commands []mission.Command

func (c *commands) Submit(cmd mission.Command) bool {
	*c = append(*c, cmd)
	return true
}

func testConfig() *Config {
	return &Config{
		BrokerURL:       "tcp://localhost:1883",
		ClientID:        "test",
		CartID:          "c7",
		ConnectTimeout:  time.Second,
		PublishInterval: time.Second,
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "linecart/c7/command", CommandTopic("c7"))
	assert.Equal(t, "linecart/c7/telemetry", TelemetryTopic("c7"))
}

func TestCommandsAreForwarded(t *testing.T) {
	fc := newFakeClient()
	var got commands
	c := newClient(testConfig(), fc, &got, nil)
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.subscribe())

	topic := CommandTopic("c7")
	fc.deliver(topic, "start")
	fc.deliver(topic, `{"command":"STOP"}`)
	fc.deliver(topic, "launch")
	fc.deliver(topic, `{"command":`)
	fc.deliver(topic, " RESET\n")

	assert.Equal(t, commands{mission.Start, mission.Stop, mission.Reset}, got)
}

func TestPublishOnChangeOrInterval(t *testing.T) {
	fc := newFakeClient()
	c := newClient(testConfig(), fc, &commands{}, nil)
	ctx := context.Background()

	t0 := time.Unix(100, 0)
	snap := mission.Telemetry{RunID: "r1", Time: t0, Mission: mission.ObjectFind}
	require.NoError(t, c.Publish(ctx, snap))
	assert.Equal(t, 1, fc.count())

	snap.Time = t0.Add(100 * time.Millisecond)
	snap.Position = 40
	require.NoError(t, c.Publish(ctx, snap))
	assert.Equal(t, 1, fc.count(), "position alone is not a change")

	snap.Time = t0.Add(200 * time.Millisecond)
	snap.Zone = 1
	require.NoError(t, c.Publish(ctx, snap))
	assert.Equal(t, 2, fc.count())

	snap.Time = t0.Add(1200 * time.Millisecond)
	require.NoError(t, c.Publish(ctx, snap))
	assert.Equal(t, 3, fc.count())

	last := fc.published[2]
	assert.Equal(t, TelemetryTopic("c7"), last.topic)
	var body map[string]any
	require.NoError(t, json.Unmarshal(last.payload, &body))
	assert.Equal(t, "r1", body["run_id"])
	assert.Equal(t, "object_find", body["mission"])
}

func TestPublishSkipsWhenDisconnected(t *testing.T) {
	fc := newFakeClient()
	fc.open = false
	c := newClient(testConfig(), fc, &commands{}, nil)
	require.NoError(t, c.Publish(context.Background(), mission.Telemetry{}))
	assert.Zero(t, fc.count())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LINECART_CART_ID", "bay3")
	t.Setenv("LINECART_MQTT_BROKER_URL", "tcp://broker:1883")
	t.Setenv("LINECART_MQTT_QOS", "1")
	t.Setenv("LINECART_MQTT_CONNECT_TIMEOUT", "not-a-number")

	cfg := loadConfig()
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, "bay3", cfg.CartID)
	assert.Equal(t, "linecart-bay3", cfg.ClientID)
	assert.Equal(t, "tcp://broker:1883", cfg.BrokerURL)
	assert.Equal(t, byte(1), cfg.QoS)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, time.Second, cfg.PublishInterval)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no broker", func(c *Config) { c.BrokerURL = "" }},
		{"no client id", func(c *Config) { c.ClientID = "" }},
		{"no cart", func(c *Config) { c.CartID = "" }},
		{"bad qos", func(c *Config) { c.QoS = 3 }},
		{"no timeout", func(c *Config) { c.ConnectTimeout = 0 }},
	}
	require.NoError(t, validateConfig(testConfig()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}
