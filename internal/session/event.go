// Package session owns the recording lifecycle: which practice session
// is active, buffering classified frames for it, flushing them to the
// store in batches, and fanning live classification events out to the
// SSE feed, the MQTT emitter, and any other subscriber.
package session

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/kinetic-data/posture.report/internal/overlay"
	"github.com/kinetic-data/posture.report/internal/pose"
	"github.com/kinetic-data/posture.report/internal/skeleton"
)

// Event is one classified skeleton frame as it flows through the live
// pipeline. It carries everything a feedback surface needs to render the
// frame without re-running the classifiers: both region codes, the
// computed leg angle, and the overlay colors. Codes that draw nothing
// (invalid) have an empty color.
type Event struct {
	Seq             uint32          `json:"seq"`
	SkeletonID      uint32          `json:"skeleton_id"`
	CapturedAtUnix  float64         `json:"captured_at_unix"`
	Arms            pose.RegionCode `json:"arms"`
	Leg             pose.RegionCode `json:"leg"`
	LegAngleDegrees float64         `json:"leg_angle_degrees"`
	ArmsColor       string          `json:"arms_color,omitempty"`
	LegColor        string          `json:"leg_color,omitempty"`
}

// NewEvent classifies a frame under the given config and assembles the
// pipeline event. The leg angle is zero when the snapshot's shin ratio is
// undefined, matching what the store records for such frames.
func NewEvent(f skeleton.Frame, cfg pose.Config) Event {
	c := pose.ClassifyFrame(f.Snapshot, cfg)
	angle, _ := pose.LegLiftAngleDegrees(f.Snapshot)

	ev := Event{
		Seq:             f.Seq,
		SkeletonID:      f.SkeletonID,
		CapturedAtUnix:  unixSeconds(f.CapturedAt),
		Arms:            c.Arms,
		Leg:             c.Leg,
		LegAngleDegrees: angle,
	}
	if col, ok := overlay.ColorFor(c.Arms); ok {
		ev.ArmsColor = col.Hex()
	}
	if col, ok := overlay.ColorFor(c.Leg); ok {
		ev.LegColor = col.Hex()
	}
	return ev
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// DefaultQueueSize is the per-subscriber event buffer used when the
// trainer config does not set one.
const DefaultQueueSize = 16

// Hub fans classification events out to subscribers. Sends never block:
// a subscriber that stops draining its channel loses events rather than
// stalling the capture loop.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	queueSize   int
	closed      bool
}

// NewHub creates a Hub. queueSize <= 0 selects DefaultQueueSize.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		subscribers: make(map[string]chan Event),
		queueSize:   queueSize,
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new event channel. The returned ID identifies the
// channel when unsubscribing. A hub that has been closed hands back a
// channel that is already closed.
func (h *Hub) Subscribe() (string, chan Event) {
	id := randomID()
	ch := make(chan Event, h.queueSize)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Publish delivers an event to every subscriber whose buffer has room.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is not draining; skip so the capture loop never blocks
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close closes every subscriber channel. Further publishes are dropped
// and further subscribes receive closed channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
