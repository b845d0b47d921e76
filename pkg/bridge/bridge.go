// Package bridge connects a cart to an MQTT broker: operator commands
// arrive on linecart/<cart>/command and telemetry leaves on
// linecart/<cart>/telemetry.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gwillem/linecart/pkg/mission"
)

const topicRoot = "linecart"

// CommandTopic is where operator commands for cartID are published.
func CommandTopic(cartID string) string { return topicRoot + "/" + cartID + "/command" }

// TelemetryTopic is where cartID publishes its telemetry.
func TelemetryTopic(cartID string) string { return topicRoot + "/" + cartID + "/telemetry" }

// Commander accepts operator commands. cart.Controller implements it.
type Commander interface {
	Submit(mission.Command) bool
}

// Client is the MQTT side of the cart.
type Client struct {
	client mqtt.Client
	cfg    *Config
	cmd    Commander
	logger *slog.Logger

	mu       sync.Mutex
	last     mission.Telemetry
	lastSent time.Time
	sent     bool
}

// New creates a bridge client. Call Connect before use.
func New(cfg *Config, cmd Commander, logger *slog.Logger) *Client {
	c := newClient(cfg, nil, cmd, logger)
	c.client = mqtt.NewClient(c.options())
	return c
}

func newClient(cfg *Config, mc mqtt.Client, cmd Commander, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client: mc,
		cfg:    cfg,
		cmd:    cmd,
		logger: logger.With("component", "bridge", "cart", cfg.CartID),
	}
}

func (c *Client) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.BrokerURL)
	opts.SetClientID(c.cfg.ClientID)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetKeepAlive(c.cfg.KeepAlive)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	// Subscribe on every (re)connection
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Info("mqtt connected", "broker", c.cfg.BrokerURL)
		if err := c.subscribe(); err != nil {
			c.logger.Error("subscribe failed", "err", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("mqtt connection lost", "err", err)
	})
	return opts
}

// Connect connects to the broker, giving up after the configured timeout
// or when ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(c.cfg.ConnectTimeout):
		return fmt.Errorf("connect %s: timeout after %s", c.cfg.BrokerURL, c.cfg.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect %s: %w", c.cfg.BrokerURL, err)
	}
	return nil
}

func (c *Client) subscribe() error {
	topic := CommandTopic(c.cfg.CartID)
	token := c.client.Subscribe(topic, c.cfg.QoS, c.handleCommand)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.logger.Info("subscribed", "topic", topic)
	return nil
}

// commandMessage is the JSON form of a command. A bare command name is
// accepted too.
type commandMessage struct {
	Command mission.Command `json:"command"`
}

func parseCommand(payload []byte) (mission.Command, error) {
	p := strings.TrimSpace(string(payload))
	if strings.HasPrefix(p, "{") {
		var msg commandMessage
		if err := json.Unmarshal([]byte(p), &msg); err != nil {
			return 0, err
		}
		return msg.Command, nil
	}
	return mission.ParseCommand(p)
}

func (c *Client) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	cmd, err := parseCommand(msg.Payload())
	if err != nil {
		c.logger.Warn("bad command", "topic", msg.Topic(), "payload", string(msg.Payload()), "err", err)
		return
	}
	c.logger.Info("remote command", "command", cmd)
	c.cmd.Submit(cmd)
}

// Publish sends t when the mission state changed or when the publish
// interval has passed. It does not wait for the broker.
func (c *Client) Publish(_ context.Context, t mission.Telemetry) error {
	c.mu.Lock()
	due := !c.sent || t.Changed(c.last) || t.Time.Sub(c.lastSent) >= c.cfg.PublishInterval
	if due {
		c.last = t
		c.lastSent = t.Time
		c.sent = true
	}
	c.mu.Unlock()
	if !due {
		return nil
	}

	if !c.client.IsConnectionOpen() {
		return nil
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	token := c.client.Publish(TelemetryTopic(c.cfg.CartID), c.cfg.QoS, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			c.logger.Warn("publish failed", "err", token.Error())
		}
	}()
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
