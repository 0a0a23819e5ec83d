package network

import (
	"context"
	"errors"
	"sync"
	"time"
)

// PCAPPacket is one bridge datagram payload recovered from a capture file,
// with its original capture timestamp.
type PCAPPacket struct {
	Data      []byte
	Timestamp time.Time
}

// PCAPReader yields bridge datagram payloads from a capture source. The
// abstraction keeps the replay timing engine testable without libpcap.
type PCAPReader interface {
	// NextPacket returns the next payload, or (nil, nil) at end of capture.
	NextPacket() (*PCAPPacket, error)

	// Close releases the underlying capture resources.
	Close()
}

// ReplayConfig configures PCAP replay behaviour.
type ReplayConfig struct {
	// SpeedMultiplier controls replay pacing relative to the original
	// capture timing (1.0 = real time, 2.0 = double speed). Values <= 0
	// default to 1.0.
	SpeedMultiplier float64

	// Forwarder re-emits raw payloads to a UDP destination (optional).
	Forwarder *PacketForwarder

	// Parser decodes payloads into frames for Sink (optional).
	Parser Parser

	// Sink consumes parsed frames (optional, requires Parser).
	Sink FrameSink

	// Stats receives ingest statistics (optional).
	Stats FrameStatsInterface
}

// replayFromReader drives a capture through the shared datagram path,
// sleeping between packets to reproduce the original spacing scaled by the
// speed multiplier. It returns nil at end of capture.
func replayFromReader(ctx context.Context, reader PCAPReader, cfg ReplayConfig) error {
	speed := cfg.SpeedMultiplier
	if speed <= 0 {
		speed = 1.0
	}

	stats := cfg.Stats
	if stats == nil {
		stats = &noopStats{}
	}

	var (
		firstCapture time.Time
		replayStart  = time.Now()
		packetCount  int
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, err := reader.NextPacket()
		if err != nil {
			return err
		}
		if pkt == nil {
			return nil
		}
		packetCount++

		if firstCapture.IsZero() {
			firstCapture = pkt.Timestamp
		} else {
			// Hold each packet until its capture offset, scaled by speed.
			due := replayStart.Add(time.Duration(float64(pkt.Timestamp.Sub(firstCapture)) / speed))
			if wait := time.Until(due); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}

		if err := handlePayload(pkt.Data, stats, cfg.Forwarder, cfg.Parser, cfg.Sink); err != nil {
			// Parse failures are counted by handlePayload; keep replaying.
			continue
		}
	}
}

// MockPCAPReader implements PCAPReader for testing.
type MockPCAPReader struct {
	mu        sync.Mutex
	packets   []PCAPPacket
	readIndex int
	closed    bool
}

// NewMockPCAPReader creates a mock reader over the given payloads.
func NewMockPCAPReader(packets []PCAPPacket) *MockPCAPReader {
	return &MockPCAPReader{packets: packets}
}

// NextPacket returns the next payload from the mock buffer.
func (m *MockPCAPReader) NextPacket() (*PCAPPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("reader closed")
	}
	if m.readIndex >= len(m.packets) {
		return nil, nil
	}
	pkt := m.packets[m.readIndex]
	m.readIndex++
	return &pkt, nil
}

// Close marks the reader as closed.
func (m *MockPCAPReader) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}
