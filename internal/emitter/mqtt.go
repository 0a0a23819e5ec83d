// Package emitter publishes live classification events to an MQTT broker
// so studio displays off the daemon's network can render feedback. It is
// optional: deployments without a broker simply never construct one.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kinetic-data/posture.report/internal/monitoring"
	"github.com/kinetic-data/posture.report/internal/session"
)

// DefaultTopicPrefix is the topic root used when the trainer config does
// not set one. Events for a session publish to <prefix>/<uuid>/codes.
const DefaultTopicPrefix = "posture"

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

var logf = monitoring.Prefixed("emitter: ")

// Config describes the broker connection.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string
	// TopicPrefix replaces DefaultTopicPrefix when non-empty.
	TopicPrefix string
	// ClientID identifies this daemon to the broker; empty derives one
	// from the topic prefix.
	ClientID string
	// Retain marks published events as retained so displays joining
	// mid-session render the latest frame immediately.
	Retain bool
}

// Emitter publishes classification events. The zero value is not usable;
// construct with New and Connect before publishing.
type Emitter struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// Stats contains emitter counters for the health endpoint.
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

// New creates an emitter for the given broker config.
func New(cfg Config) *Emitter {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.ClientID == "" {
		cfg.ClientID = cfg.TopicPrefix + "-daemon"
	}
	return &Emitter{cfg: cfg}
}

// Connect establishes the broker connection. The paho client keeps
// reconnecting on its own afterwards; a lost connection only surfaces as
// skipped publishes until it heals.
func (e *Emitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		logf("connected to %s", e.cfg.Broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		logf("connection lost (%v), reconnecting", err)
	}

	e.client = mqtt.NewClient(opts)

	token := e.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect to %s timed out", e.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s failed: %w", e.cfg.Broker, err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	return nil
}

// Disconnect closes the broker connection.
func (e *Emitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250) // 250ms grace period
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

// Publish sends one classification event for the named session.
func (e *Emitter) Publish(sessionUUID string, ev session.Event) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/codes", e.cfg.TopicPrefix, sessionUUID)
	token := e.client.Publish(topic, 0, e.cfg.Retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	return nil
}

// Run subscribes to the hub and publishes every event that arrives while
// a session is recording. activeUUID reports the recording session's
// UUID, empty when idle; idle events are dropped since the topic names
// the session. Blocks until the context is cancelled or the hub closes.
func (e *Emitter) Run(ctx context.Context, hub *session.Hub, activeUUID func() string) error {
	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			uuid := activeUUID()
			if uuid == "" {
				continue
			}
			if err := e.Publish(uuid, ev); err != nil {
				logf("%v", err)
			}
		}
	}
}

// Stats returns the emitter counters.
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Connected: e.connected,
		Published: e.published,
		Errors:    e.errors,
	}
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
