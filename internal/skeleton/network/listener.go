// Package network receives bridge skeleton traffic over UDP, fans raw
// datagrams out to optional forwarding sinks, and feeds parsed frames to
// the classification pipeline. PCAP replay of recorded bridge traffic
// lives here too, behind the pcap build tag.
package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/kinetic-data/posture.report/internal/skeleton"
)

// FrameStatsInterface provides ingest statistics management.
type FrameStatsInterface interface {
	AddFrame(bytes int, seq uint32)
	AddParseError()
	AddDropped()
	LogStats()
}

// Parser decodes bridge datagrams into skeleton frames.
type Parser interface {
	ParseFrame(data []byte) (skeleton.Frame, error)
}

// FrameSink consumes parsed frames. Implementations must not block for
// long: the listener calls HandleFrame on its receive goroutine.
type FrameSink interface {
	HandleFrame(frame skeleton.Frame)
}

// UDPListener receives and processes bridge skeleton datagrams with
// configurable components for parsing, statistics and forwarding.
type UDPListener struct {
	address        string
	rcvBuf         int
	logInterval    time.Duration
	conn           UDPSocket
	socketFactory  UDPSocketFactory
	stats          FrameStatsInterface
	forwarder      *PacketForwarder
	parser         Parser
	sink           FrameSink
	disableParsing bool
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address        string
	RcvBuf         int
	LogInterval    time.Duration
	Stats          FrameStatsInterface
	Forwarder      *PacketForwarder
	Parser         Parser
	Sink           FrameSink
	DisableParsing bool
	// SocketFactory creates the listening socket. Defaults to the real
	// net.ListenUDP implementation; tests supply mocks.
	SocketFactory UDPSocketFactory
}

// NewUDPListener creates a new UDP listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	// Provide a no-op stats implementation when none is supplied to avoid
	// nil checks in the datagram handling and logging paths.
	var stats FrameStatsInterface
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = &noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	socketFactory := config.SocketFactory
	if socketFactory == nil {
		socketFactory = realUDPSocketFactory{}
	}

	return &UDPListener{
		address:        config.Address,
		rcvBuf:         config.RcvBuf,
		logInterval:    logInterval,
		socketFactory:  socketFactory,
		stats:          stats,
		forwarder:      config.Forwarder,
		parser:         config.Parser,
		sink:           config.Sink,
		disableParsing: config.DisableParsing,
	}
}

// noopStats is a FrameStatsInterface implementation that does nothing.
type noopStats struct{}

func (n *noopStats) AddFrame(bytes int, seq uint32) {}
func (n *noopStats) AddParseError()                 {}
func (n *noopStats) AddDropped()                    {}
func (n *noopStats) LogStats()                      {}

// Start begins listening for bridge datagrams and processing them. It
// blocks until the context is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := l.socketFactory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			log.Printf("Warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	log.Printf("Bridge listener started on %s", l.address)

	if l.forwarder != nil {
		l.forwarder.Start(ctx)
	}

	go l.startStatsLogging(ctx)

	// Bridge datagrams are 304 bytes; leave margin for future versions.
	buffer := make([]byte, 1024)
	deadlineErrLogged := false

	for {
		select {
		case <-ctx.Done():
			log.Print("Bridge listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Bounded read so context cancellation is noticed promptly.
			if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
				if !deadlineErrLogged {
					log.Printf("Warning: failed to set read deadline: %v", err)
					deadlineErrLogged = true
				}
			}

			n, addr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(err, net.ErrClosed) {
					log.Print("Bridge listener socket closed, stopping")
					return nil
				}
				log.Printf("UDP read error: %v", err)
				continue
			}

			if err := handlePayload(buffer[:n], l.stats, l.forwarder, l.effectiveParser(), l.sink); err != nil {
				log.Printf("Error handling datagram from %v: %v", addr, err)
			}
		}
	}
}

func (l *UDPListener) effectiveParser() Parser {
	if l.disableParsing {
		return nil
	}
	return l.parser
}

// startStatsLogging periodically logs ingest statistics. An initial report
// fires shortly after startup so the first interval is not silent.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		l.stats.LogStats()
	}

	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

// handlePayload runs one bridge datagram through the shared processing
// path: statistics, optional raw forwarding, parse, sink. Parse failures
// are counted but do not stop the stream.
func handlePayload(payload []byte, stats FrameStatsInterface, forwarder *PacketForwarder, parser Parser, sink FrameSink) error {
	if forwarder != nil {
		forwarder.ForwardAsync(payload)
	}

	if parser == nil {
		return nil
	}

	frame, err := parser.ParseFrame(payload)
	if err != nil {
		stats.AddParseError()
		return fmt.Errorf("frame parse failed: %w", err)
	}
	stats.AddFrame(len(payload), frame.Seq)

	if sink != nil {
		sink.HandleFrame(frame)
	}
	return nil
}

// Close closes the UDP listener and releases resources.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
