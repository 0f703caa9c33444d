package robot

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"
)

var (
	ErrNotConfigured = errors.New("robot is not configured")
	ErrNotConnected  = errors.New("robot is not connected")
)

const (
	mqttPort       = 8883
	connectTimeout = 15 * time.Second
	publishTimeout = 10 * time.Second
)

// StateHandler receives a snapshot after every state change.
type StateHandler func(State)

// Client speaks the robot's local MQTT protocol: TLS on port 8883, BLID as
// both client id and username. The robot's broker pushes shadow updates to
// the connected client without any subscription.
type Client struct {
	host     string
	blid     string
	password string
	logger   *slog.Logger

	// The robot's broker drops the connection when flooded with commands,
	// so sends are throttled.
	limiter *rate.Limiter

	mu       sync.RWMutex
	conn     mqtt.Client
	state    State
	handlers []StateHandler
}

// NewClient builds a client for the given robot credentials. An empty host
// leaves the client unconfigured; commands then fail with ErrNotConfigured.
func NewClient(host, blid, password string, logger *slog.Logger) *Client {
	return &Client{
		host:     host,
		blid:     blid,
		password: password,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
}

// Configured reports whether robot credentials were provided.
func (c *Client) Configured() bool {
	return c.host != "" && c.blid != "" && c.password != ""
}

// OnState registers a handler invoked after every merged state change.
// Handlers run on the MQTT receive goroutine and must not block.
func (c *Client) OnState(h StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Connect dials the robot's broker. The paho client reconnects on its own
// after transient drops.
func (c *Client) Connect(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("ssl://%s:%d", c.host, mqttPort)).
		SetClientID(c.blid).
		SetUsername(c.blid).
		SetPassword(c.password).
		SetProtocolVersion(4).
		SetAutoReconnect(true).
		SetKeepAlive(30 * time.Second).
		SetTLSConfig(&tls.Config{
			// The robot presents a self-signed certificate.
			InsecureSkipVerify: true, // #nosec G402
		})
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(msg.Topic(), msg.Payload())
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("robot connection lost", "err", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.logger.Info("robot connected", "host", c.host)
	})

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect to %s: timeout", c.host)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", c.host, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Disconnect(250)
	}
}

// State returns the current merged robot state snapshot.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SendCommand translates the action into a robot command and publishes it.
func (c *Client) SendCommand(ctx context.Context, action string, payload json.RawMessage) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !conn.IsConnectionOpen() {
		return ErrNotConnected
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	topic, message, err := buildCommand(action, payload, time.Now())
	if err != nil {
		return err
	}
	c.logger.Debug("publishing robot command", "topic", topic, "action", action)
	token := conn.Publish(topic, 0, false, message)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", action)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", action, err)
	}
	return nil
}

// handleMessage merges a broker push into the state document and notifies
// handlers. The robot publishes on shadow and wifistat topics; anything
// that does not parse as a shadow document is ignored.
func (c *Client) handleMessage(topic string, payload []byte) {
	if !strings.Contains(topic, "shadow") && !strings.Contains(topic, "wifistat") {
		return
	}
	c.mu.Lock()
	changed := c.state.merge(payload, time.Now())
	snapshot := c.state
	handlers := c.handlers
	c.mu.Unlock()
	if !changed {
		return
	}
	for _, h := range handlers {
		h(snapshot)
	}
}
