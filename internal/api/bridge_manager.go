package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/serialmux"
)

// BridgeMuxFactory constructs a serialmux.SerialMuxInterface for the
// given port path and options. It is injected so the manager can be
// tested and so different runtime modes (real, mock, disabled) can
// supply their own constructors.
type BridgeMuxFactory func(path string, opts serialmux.PortOptions) (serialmux.SerialMuxInterface, error)

// BridgeSnapshot describes the configuration currently applied to the
// running serial mux. It mirrors the stored bridge configuration model
// so API responses can report the active settings.
type BridgeSnapshot struct {
	ConfigID int                   `json:"config_id,omitempty"`
	Name     string                `json:"name,omitempty"`
	PortPath string                `json:"port_path"`
	Source   string                `json:"source"`
	Options  serialmux.PortOptions `json:"options"`
}

// BridgeReloadResult is returned to API clients when a reload request is
// processed.
type BridgeReloadResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Config  *BridgeSnapshot `json:"config,omitempty"`
}

// BridgeManager wraps a SerialMuxInterface and enables hot-reloading of
// the underlying serial configuration. It implements SerialMuxInterface
// itself so existing call sites (API handlers, the frame pipeline, the
// debug routes) delegate to the active mux without extra wiring.
//
// To preserve subscriptions across mux reloads the manager keeps an
// internal line fanout: Subscribe hands out channels owned by the
// manager, and a background goroutine forwards lines from whichever mux
// is current. Reloading swaps the mux; subscriber channels stay valid.
type BridgeManager struct {
	mu       sync.RWMutex
	current  serialmux.SerialMuxInterface
	snapshot *BridgeSnapshot
	closed   bool

	db      *db.DB
	factory BridgeMuxFactory

	reloadMu sync.Mutex

	fanoutDone  chan struct{}
	fanoutMu    sync.RWMutex
	subscribers map[string]chan string
}

// NewBridgeManager constructs a BridgeManager around the provided mux.
// The initial snapshot is optional; an empty port path means no
// configuration has been applied yet. The line fanout goroutine runs
// until Close is called.
func NewBridgeManager(database *db.DB, initial serialmux.SerialMuxInterface, snapshot BridgeSnapshot, factory BridgeMuxFactory) *BridgeManager {
	mgr := &BridgeManager{
		current:     initial,
		db:          database,
		factory:     factory,
		fanoutDone:  make(chan struct{}),
		subscribers: make(map[string]chan string),
	}

	if snapshot.PortPath != "" {
		snap := snapshot
		mgr.snapshot = &snap
	}

	go mgr.runLineFanout()

	return mgr
}

// CurrentMux returns the underlying serial mux currently in use. Callers
// must treat the returned value as read-only; reconfiguration goes
// through ReloadConfig.
func (m *BridgeManager) CurrentMux() serialmux.SerialMuxInterface {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Snapshot returns a copy of the active configuration snapshot.
func (m *BridgeManager) Snapshot() BridgeSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return BridgeSnapshot{}
	}
	snap := *m.snapshot
	return snap
}

// runLineFanout bridges subscriptions across mux reloads. It subscribes
// to the current mux and forwards every line to the persistent
// subscriber channels, reconnecting whenever the mux subscription closes
// (which is what a reload looks like from here).
func (m *BridgeManager) runLineFanout() {
	var subID string
	var subCh chan string

	defer func() {
		if subID != "" {
			m.mu.RLock()
			mux := m.current
			m.mu.RUnlock()
			if mux != nil {
				mux.Unsubscribe(subID)
			}
		}

		m.fanoutMu.Lock()
		for _, ch := range m.subscribers {
			close(ch)
		}
		m.subscribers = make(map[string]chan string)
		m.fanoutMu.Unlock()
	}()

	for {
		if subID == "" {
			m.mu.RLock()
			mux := m.current
			closed := m.closed
			m.mu.RUnlock()

			if closed {
				return
			}

			if mux == nil {
				select {
				case <-m.fanoutDone:
					return
				case <-time.After(250 * time.Millisecond):
				}
				continue
			}

			subID, subCh = mux.Subscribe()
			if subID == "" {
				select {
				case <-m.fanoutDone:
					return
				case <-time.After(250 * time.Millisecond):
				}
				continue
			}
		}

		select {
		case <-m.fanoutDone:
			return

		case line, ok := <-subCh:
			if !ok {
				// Mux subscription closed (likely a reload);
				// reconnect on the next loop.
				subID = ""
				subCh = nil
				time.Sleep(50 * time.Millisecond)
				continue
			}

			m.fanoutMu.RLock()
			targets := make([]chan string, 0, len(m.subscribers))
			for _, ch := range m.subscribers {
				targets = append(targets, ch)
			}
			m.fanoutMu.RUnlock()

			for _, ch := range targets {
				select {
				case ch <- line:
				default:
					// Subscriber is not draining; drop rather
					// than stall the bridge reader.
				}
			}
		}
	}
}

// Subscribe returns a persistent channel from the internal fanout. The
// channel remains valid across mux reloads. A closed manager hands back
// a closed channel.
func (m *BridgeManager) Subscribe() (string, chan string) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		ch := make(chan string)
		close(ch)
		return "", ch
	}

	id := fmt.Sprintf("bridge-%d", time.Now().UnixNano())
	ch := make(chan string, 10)

	m.fanoutMu.Lock()
	m.subscribers[id] = ch
	m.fanoutMu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscriber from the fanout and closes its channel.
func (m *BridgeManager) Unsubscribe(id string) {
	m.fanoutMu.Lock()
	defer m.fanoutMu.Unlock()

	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// SendCommand delegates to the current serial mux.
func (m *BridgeManager) SendCommand(command string) error {
	m.mu.RLock()
	mux := m.current
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return errors.New("bridge manager is closed")
	}
	if mux == nil {
		return errors.New("serial bridge unavailable")
	}
	return mux.SendCommand(command)
}

// Monitor proxies Monitor calls to the active mux. When the underlying
// mux is swapped out by a reload this loop attaches to the new one.
func (m *BridgeManager) Monitor(ctx context.Context) error {
	for {
		mux := m.CurrentMux()
		if mux == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(250 * time.Millisecond):
				continue
			}
		}

		err := mux.Monitor(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("bridge monitor terminated with error: %v", err)
			time.Sleep(500 * time.Millisecond)
		} else if err == nil {
			// Monitor exited cleanly (likely a reload). Loop back to
			// pick up the new mux.
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// Close closes the active mux and marks the manager closed. It also
// stops the line fanout; all subscriber channels are closed. After
// Close, SendCommand and Initialize return errors and Subscribe hands
// back a closed channel.
func (m *BridgeManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.current != nil {
		if err := m.current.Close(); err != nil {
			log.Printf("warning: failed to close serial mux during shutdown: %v", err)
		}
	}
	m.current = nil
	m.mu.Unlock()

	close(m.fanoutDone)

	return nil
}

// Initialize delegates to the active mux.
func (m *BridgeManager) Initialize() error {
	m.mu.RLock()
	mux := m.current
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return errors.New("bridge manager is closed")
	}
	if mux == nil {
		return errors.New("serial bridge unavailable")
	}
	return mux.Initialize()
}

// AttachAdminRoutes attaches the debug routes so they call through the
// manager and keep working across reloads.
func (m *BridgeManager) AttachAdminRoutes(mux *http.ServeMux) {
	serialmux.AttachAdminRoutesForMux(mux, m)
}

// ReloadConfig loads the enabled bridge configuration from the database
// and swaps the active mux onto it.
//
// Monitor and Subscribe callers are unaffected: the monitor loop and the
// line fanout both reattach to the new mux automatically, and
// subscriber-facing channels persist across the swap.
func (m *BridgeManager) ReloadConfig(ctx context.Context) (*BridgeReloadResult, error) {
	if m.factory == nil {
		return nil, errors.New("bridge mux factory not configured")
	}
	if m.db == nil {
		return nil, errors.New("database not configured")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	configs, err := m.db.GetEnabledBridgeConfigs()
	if err != nil {
		return nil, fmt.Errorf("failed to load bridge configurations: %w", err)
	}
	if len(configs) == 0 {
		return nil, errors.New("no enabled bridge configurations found")
	}

	cfg := configs[0]
	opts, err := serialmux.PortOptions{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
	}.Normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid bridge configuration: %w", err)
	}

	currentSnap := m.Snapshot()
	if currentSnap.PortPath == cfg.PortPath && currentSnap.Options.Equal(opts) {
		return &BridgeReloadResult{
			Success: true,
			Message: fmt.Sprintf("Bridge configuration %q already active", cfg.Name),
			Config: &BridgeSnapshot{
				ConfigID: cfg.ID,
				Name:     cfg.Name,
				PortPath: cfg.PortPath,
				Source:   "database",
				Options:  opts,
			},
		}, nil
	}

	// Close the old mux BEFORE opening the new one. Serial ports cannot
	// be opened twice, and the new configuration may use the same port
	// with different settings.
	m.mu.Lock()
	oldMux := m.current
	m.current = nil
	m.mu.Unlock()

	if oldMux != nil {
		log.Printf("Closing current serial mux before reload...")
		if err := oldMux.Close(); err != nil {
			log.Printf("warning: failed to close previous serial mux: %v", err)
		}
	}

	newMux, err := m.factory(cfg.PortPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.PortPath, err)
	}

	if err := newMux.Initialize(); err != nil {
		newMux.Close()
		return nil, fmt.Errorf("failed to initialize serial port: %w", err)
	}

	m.mu.Lock()
	snap := BridgeSnapshot{
		ConfigID: cfg.ID,
		Name:     cfg.Name,
		PortPath: cfg.PortPath,
		Source:   "database",
		Options:  opts,
	}
	m.current = newMux
	m.snapshot = &snap
	m.mu.Unlock()

	return &BridgeReloadResult{
		Success: true,
		Message: fmt.Sprintf("Reloaded bridge configuration %q", cfg.Name),
		Config:  &snap,
	}, nil
}
