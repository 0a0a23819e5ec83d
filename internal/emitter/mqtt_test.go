package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kinetic-data/posture.report/internal/pose"
	"github.com/kinetic-data/posture.report/internal/session"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type publishRecord struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient satisfies mqtt.Client for publish-path tests.
type fakeClient struct {
	mu       sync.Mutex
	records  []publishRecord
	tokenErr error
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token    { return &fakeToken{} }
func (c *fakeClient) Disconnect(uint)        {}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, publishRecord{
		topic:    topic,
		qos:      qos,
		retained: retained,
		payload:  payload.([]byte),
	})
	return &fakeToken{err: c.tokenErr}
}

func (c *fakeClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (c *fakeClient) Unsubscribe(...string) mqtt.Token       { return &fakeToken{} }
func (c *fakeClient) AddRoute(string, mqtt.MessageHandler)   {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *fakeClient) record(i int) publishRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[i]
}

func connectedEmitter(cfg Config, client *fakeClient) *Emitter {
	e := New(cfg)
	e.client = client
	e.connected = true
	return e
}

func testEvent(seq uint32) session.Event {
	return session.Event{
		Seq:             seq,
		SkeletonID:      1,
		CapturedAtUnix:  1700000000,
		Arms:            pose.CodeCorrect,
		Leg:             pose.CodeAbove,
		LegAngleDegrees: 9.46,
		ArmsColor:       "#34c759",
		LegColor:        "#32ade6",
	}
}

func TestNew_Defaults(t *testing.T) {
	e := New(Config{Broker: "tcp://localhost:1883"})
	if e.cfg.TopicPrefix != "posture" {
		t.Errorf("topic prefix = %q, want %q", e.cfg.TopicPrefix, "posture")
	}
	if e.cfg.ClientID != "posture-daemon" {
		t.Errorf("client id = %q, want %q", e.cfg.ClientID, "posture-daemon")
	}

	e = New(Config{Broker: "tcp://localhost:1883", TopicPrefix: "clinic/room2", ClientID: "kiosk"})
	if e.cfg.TopicPrefix != "clinic/room2" || e.cfg.ClientID != "kiosk" {
		t.Errorf("custom config not kept: %+v", e.cfg)
	}
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	e := connectedEmitter(Config{Broker: "tcp://x"}, client)

	if err := e.Publish("abc-123", testEvent(7)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if client.count() != 1 {
		t.Fatalf("publish count = %d, want 1", client.count())
	}
	rec := client.record(0)
	if rec.topic != "posture/abc-123/codes" {
		t.Errorf("topic = %q, want %q", rec.topic, "posture/abc-123/codes")
	}
	if rec.qos != 0 {
		t.Errorf("qos = %d, want 0", rec.qos)
	}
	if rec.retained {
		t.Error("retained set without Retain config")
	}

	var got session.Event
	if err := json.Unmarshal(rec.payload, &got); err != nil {
		t.Fatalf("payload not an event: %v", err)
	}
	if got.Seq != 7 || got.Arms != pose.CodeCorrect || got.Leg != pose.CodeAbove {
		t.Errorf("payload = %+v", got)
	}

	if s := e.Stats(); !s.Connected || s.Published != 1 || s.Errors != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPublish_Retain(t *testing.T) {
	client := &fakeClient{}
	e := connectedEmitter(Config{Broker: "tcp://x", Retain: true}, client)

	if err := e.Publish("abc", testEvent(0)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !client.record(0).retained {
		t.Error("retained not set")
	}
}

func TestPublish_NotConnected(t *testing.T) {
	e := New(Config{Broker: "tcp://x"})
	e.client = &fakeClient{}

	if err := e.Publish("abc", testEvent(0)); err == nil {
		t.Fatal("Publish succeeded while disconnected")
	}
	if s := e.Stats(); s.Errors != 1 || s.Published != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPublish_TokenError(t *testing.T) {
	client := &fakeClient{tokenErr: errors.New("broker gone")}
	e := connectedEmitter(Config{Broker: "tcp://x"}, client)

	if err := e.Publish("abc", testEvent(0)); err == nil {
		t.Fatal("Publish did not surface the token error")
	}
	if s := e.Stats(); s.Errors != 1 {
		t.Errorf("errors = %d, want 1", s.Errors)
	}
}

func TestRun_PublishesOnlyDuringSession(t *testing.T) {
	client := &fakeClient{}
	e := connectedEmitter(Config{Broker: "tcp://x"}, client)

	hub := session.NewHub(4)
	defer hub.Close()

	// Run consults activeUUID once per event, in arrival order; report the
	// session as gone exactly for the second event.
	var calls atomic.Int32
	activeUUID := func() string {
		if calls.Add(1) == 2 {
			return ""
		}
		return "abc-123"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx, hub, activeUUID) }()

	waitSubscribed(t, hub)

	hub.Publish(testEvent(1))
	hub.Publish(testEvent(2))
	hub.Publish(testEvent(3))
	waitCount(t, client, 2)

	// the idle-time event was dropped, not queued
	var first, second session.Event
	json.Unmarshal(client.record(0).payload, &first)
	json.Unmarshal(client.record(1).payload, &second)
	if first.Seq != 1 || second.Seq != 3 {
		t.Errorf("published seqs = (%d, %d), want (1, 3)", first.Seq, second.Seq)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func waitSubscribed(t *testing.T, hub *session.Hub) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Run never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitCount(t *testing.T, client *fakeClient, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for client.count() < want {
		if time.Now().After(deadline) {
			t.Fatalf("publish count = %d, want %d", client.count(), want)
		}
		time.Sleep(time.Millisecond)
	}
}
