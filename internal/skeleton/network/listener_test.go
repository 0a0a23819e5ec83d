package network

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kinetic-data/posture.report/internal/pose"
	"github.com/kinetic-data/posture.report/internal/skeleton"
)

// mockFrameStats implements FrameStatsInterface for testing
type mockFrameStats struct {
	mu          sync.Mutex
	frames      int
	bytes       int
	parseErrors int
	dropped     int
	logCalls    int
}

func (m *mockFrameStats) AddFrame(bytes int, seq uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames++
	m.bytes += bytes
}

func (m *mockFrameStats) AddParseError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseErrors++
}

func (m *mockFrameStats) AddDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

func (m *mockFrameStats) LogStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logCalls++
}

func (m *mockFrameStats) counts() (frames, parseErrors int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames, m.parseErrors
}

// recordingSink implements FrameSink and records frames in arrival order
type recordingSink struct {
	mu     sync.Mutex
	frames []skeleton.Frame
}

func (s *recordingSink) HandleFrame(frame skeleton.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *recordingSink) snapshot() []skeleton.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]skeleton.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// bridgeDatagram builds a valid wire-format datagram for the given sequence.
func bridgeDatagram(seq uint32) []byte {
	frame := skeleton.Frame{
		Seq:        seq,
		SkeletonID: 1,
		CapturedAt: time.UnixMicro(1700000000000000 + int64(seq)*33000),
		Snapshot: pose.NewSnapshot(
			pose.Joint{Type: pose.JointShoulderLeft, Position: pose.Position{X: -0.25, Y: 1.5, Z: 2}, Tracking: pose.TrackingTracked},
			pose.Joint{Type: pose.JointShoulderRight, Position: pose.Position{X: 0.25, Y: 1.5, Z: 2}, Tracking: pose.TrackingTracked},
		),
	}
	return skeleton.MarshalFrame(frame)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewUDPListener_Defaults(t *testing.T) {
	config := UDPListenerConfig{
		Address: ":7556",
		RcvBuf:  1024 * 1024,
	}

	listener := NewUDPListener(config)

	if listener == nil {
		t.Fatal("NewUDPListener returned nil")
	}
	if listener.address != ":7556" {
		t.Errorf("Expected address ':7556', got '%s'", listener.address)
	}
	if listener.rcvBuf != 1024*1024 {
		t.Errorf("Expected rcvBuf %d, got %d", 1024*1024, listener.rcvBuf)
	}
	// Check default log interval is set
	if listener.logInterval != time.Minute {
		t.Errorf("Expected default log interval 1 minute, got %v", listener.logInterval)
	}
	// stats should be noopStats by default
	if listener.stats == nil {
		t.Error("Expected default noop stats, got nil")
	}
	// socket factory should default to the real implementation
	if listener.socketFactory == nil {
		t.Error("Expected default socket factory, got nil")
	}
}

func TestNewUDPListener_WithStats(t *testing.T) {
	stats := &mockFrameStats{}
	config := UDPListenerConfig{
		Address:     ":7556",
		Stats:       stats,
		LogInterval: 30 * time.Second,
	}

	listener := NewUDPListener(config)

	if listener.stats != stats {
		t.Error("Expected custom stats to be used")
	}
	if listener.logInterval != 30*time.Second {
		t.Errorf("Expected log interval 30s, got %v", listener.logInterval)
	}
}

func TestNewUDPListener_WithParserAndSink(t *testing.T) {
	parser := skeleton.NewParser()
	sink := &recordingSink{}

	config := UDPListenerConfig{
		Address: ":7556",
		Parser:  parser,
		Sink:    sink,
	}

	listener := NewUDPListener(config)

	if listener.parser != parser {
		t.Error("Expected custom parser to be set")
	}
	if listener.sink != sink {
		t.Error("Expected custom sink to be set")
	}
}

func TestNewUDPListener_DisableParsing(t *testing.T) {
	config := UDPListenerConfig{
		Address:        ":7556",
		Parser:         skeleton.NewParser(),
		DisableParsing: true,
	}

	listener := NewUDPListener(config)

	if !listener.disableParsing {
		t.Error("Expected disableParsing to be true")
	}
	if listener.effectiveParser() != nil {
		t.Error("Expected effectiveParser to be nil when parsing disabled")
	}
}

func TestUDPListener_Close_Nil(t *testing.T) {
	listener := &UDPListener{}

	// Close with nil connection should not error
	err := listener.Close()
	if err != nil {
		t.Errorf("Close with nil conn returned error: %v", err)
	}
}

func TestNoopStats(t *testing.T) {
	stats := &noopStats{}

	// These should all be no-ops and not panic
	stats.AddFrame(304, 1)
	stats.AddParseError()
	stats.AddDropped()
	stats.LogStats()
}

func TestUDPListener_Start_DeliversFrames(t *testing.T) {
	socket := &MockUDPSocket{
		Datagrams: [][]byte{bridgeDatagram(1), bridgeDatagram(2), bridgeDatagram(3)},
	}
	stats := &mockFrameStats{}
	sink := &recordingSink{}

	listener := NewUDPListener(UDPListenerConfig{
		Address:       "127.0.0.1:0",
		RcvBuf:        1 << 20,
		Stats:         stats,
		Parser:        skeleton.NewParser(),
		Sink:          sink,
		SocketFactory: &MockUDPSocketFactory{Socket: socket},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Start(ctx) }()

	waitFor(t, func() bool { return len(sink.snapshot()) == 3 })
	cancel()
	<-done

	frames := sink.snapshot()
	for i, want := range []uint32{1, 2, 3} {
		if frames[i].Seq != want {
			t.Errorf("frame %d: expected seq %d, got %d", i, want, frames[i].Seq)
		}
	}

	gotFrames, gotParseErrors := stats.counts()
	if gotFrames != 3 {
		t.Errorf("Expected 3 frames counted, got %d", gotFrames)
	}
	if gotParseErrors != 0 {
		t.Errorf("Expected 0 parse errors, got %d", gotParseErrors)
	}
	if socket.ReadBufferSize != 1<<20 {
		t.Errorf("Expected read buffer %d, got %d", 1<<20, socket.ReadBufferSize)
	}
	if !socket.Closed {
		t.Error("Expected socket to be closed after Start returned")
	}
}

func TestUDPListener_Start_CountsParseErrors(t *testing.T) {
	socket := &MockUDPSocket{
		Datagrams: [][]byte{
			[]byte("not a bridge frame"),
			bridgeDatagram(7),
		},
	}
	stats := &mockFrameStats{}
	sink := &recordingSink{}

	listener := NewUDPListener(UDPListenerConfig{
		Address:       "127.0.0.1:0",
		Stats:         stats,
		Parser:        skeleton.NewParser(),
		Sink:          sink,
		SocketFactory: &MockUDPSocketFactory{Socket: socket},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Start(ctx) }()

	waitFor(t, func() bool {
		_, parseErrors := stats.counts()
		return len(sink.snapshot()) == 1 && parseErrors == 1
	})
	cancel()
	<-done

	if frames := sink.snapshot(); frames[0].Seq != 7 {
		t.Errorf("Expected surviving frame seq 7, got %d", frames[0].Seq)
	}
}

func TestUDPListener_Start_DisableParsingSkipsSink(t *testing.T) {
	socket := &MockUDPSocket{
		Datagrams: [][]byte{bridgeDatagram(1)},
	}
	stats := &mockFrameStats{}
	sink := &recordingSink{}

	listener := NewUDPListener(UDPListenerConfig{
		Address:        "127.0.0.1:0",
		Stats:          stats,
		Parser:         skeleton.NewParser(),
		Sink:           sink,
		DisableParsing: true,
		SocketFactory:  &MockUDPSocketFactory{Socket: socket},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Start(ctx) }()

	// Give the receive loop time to drain the datagram queue.
	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done

	if got := len(sink.snapshot()); got != 0 {
		t.Errorf("Expected no frames with parsing disabled, got %d", got)
	}
	if gotFrames, _ := stats.counts(); gotFrames != 0 {
		t.Errorf("Expected no frames counted with parsing disabled, got %d", gotFrames)
	}
}

func TestUDPListener_Start_InvalidAddress(t *testing.T) {
	listener := NewUDPListener(UDPListenerConfig{Address: "no-port"})

	err := listener.Start(context.Background())
	if err == nil {
		t.Fatal("Expected error for unresolvable address")
	}
	if !strings.Contains(err.Error(), "resolve") {
		t.Errorf("Expected resolve error, got: %v", err)
	}
}

func TestUDPListener_Start_ListenError(t *testing.T) {
	listener := NewUDPListener(UDPListenerConfig{
		Address:       "127.0.0.1:0",
		SocketFactory: &MockUDPSocketFactory{Err: errors.New("address in use")},
	})

	err := listener.Start(context.Background())
	if err == nil {
		t.Fatal("Expected error when socket creation fails")
	}
	if !strings.Contains(err.Error(), "failed to listen") {
		t.Errorf("Expected listen error, got: %v", err)
	}
}

func TestUDPListener_Start_ClosedSocketStopsCleanly(t *testing.T) {
	socket := &MockUDPSocket{Closed: true}

	listener := NewUDPListener(UDPListenerConfig{
		Address:       "127.0.0.1:0",
		SocketFactory: &MockUDPSocketFactory{Socket: socket},
	})

	err := listener.Start(context.Background())
	if err != nil {
		t.Errorf("Expected clean stop on closed socket, got: %v", err)
	}
}

func TestHandlePayload_NilParser(t *testing.T) {
	stats := &mockFrameStats{}

	err := handlePayload(bridgeDatagram(1), stats, nil, nil, nil)
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if gotFrames, _ := stats.counts(); gotFrames != 0 {
		t.Errorf("Expected no frames counted without parser, got %d", gotFrames)
	}
}

func TestHandlePayload_ParseError(t *testing.T) {
	stats := &mockFrameStats{}
	sink := &recordingSink{}

	err := handlePayload([]byte("garbage"), stats, nil, skeleton.NewParser(), sink)
	if err == nil {
		t.Fatal("Expected parse error")
	}
	if _, parseErrors := stats.counts(); parseErrors != 1 {
		t.Errorf("Expected 1 parse error, got %d", parseErrors)
	}
	if len(sink.snapshot()) != 0 {
		t.Error("Expected no frames delivered on parse error")
	}
}

func TestHandlePayload_DeliversToSink(t *testing.T) {
	stats := &mockFrameStats{}
	sink := &recordingSink{}
	payload := bridgeDatagram(42)

	err := handlePayload(payload, stats, nil, skeleton.NewParser(), sink)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	frames := sink.snapshot()
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if frames[0].Seq != 42 {
		t.Errorf("Expected seq 42, got %d", frames[0].Seq)
	}
	if gotFrames, _ := stats.counts(); gotFrames != 1 {
		t.Errorf("Expected 1 frame counted, got %d", gotFrames)
	}
	if stats.bytes != len(payload) {
		t.Errorf("Expected %d bytes counted, got %d", len(payload), stats.bytes)
	}
}
