package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/monitoring"
	"github.com/kinetic-data/posture.report/internal/pose"
	"github.com/kinetic-data/posture.report/internal/timeutil"
)

// DefaultFlushInterval is how often buffered frames are written to the
// store when the trainer config does not set one.
const DefaultFlushInterval = time.Second

// ErrNoActiveSession is returned by End when nothing is recording.
var ErrNoActiveSession = errors.New("no active session")

// ErrSessionActive is returned by Start while a session is recording.
var ErrSessionActive = errors.New("a session is already active")

var logf = monitoring.Prefixed("recorder: ")

// Store is the slice of the session store the recorder drives.
// *db.DB satisfies it.
type Store interface {
	CreateSession(*db.Session) error
	EndSession(id int, endedAtUnix float64) error
	RecordFrameCodes([]db.FrameCode) error
}

// RecorderConfig contains configuration for Recorder.
type RecorderConfig struct {
	// Store receives sessions and frame batches.
	Store Store
	// Clock drives flush ticks and timestamps; nil uses the real clock.
	Clock timeutil.Clock
	// FlushInterval is how often the buffer is written out
	// (<= 0 selects DefaultFlushInterval).
	FlushInterval time.Duration
}

// Recorder tracks the active practice session and buffers its classified
// frames, writing them to the store in one transaction per flush
// interval. At a 30 Hz capture rate a row-per-frame write path would
// thrash the WAL, so frames accumulate in memory between ticks.
type Recorder struct {
	store    Store
	clock    timeutil.Clock
	interval time.Duration

	mu      sync.Mutex
	current *db.Session
	buf     []db.FrameCode

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecorder creates a Recorder. The flush loop does not start until Run
// is called; Observe and Flush work without it.
func NewRecorder(cfg RecorderConfig) *Recorder {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Recorder{
		store:    cfg.Store,
		clock:    clock,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start opens a new session named name, recording the classifier settings
// in force so stored codes stay interpretable after the config changes.
// Only one session records at a time.
func (r *Recorder) Start(name string, cfg pose.Config) (*db.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return nil, ErrSessionActive
	}

	s := &db.Session{
		Name:          name,
		StartedAtUnix: unixSeconds(r.clock.Now()),
		TargetAngle:   cfg.TargetLegAngleDegrees,
		Tolerance:     cfg.ToleranceFactor,
	}
	if err := r.store.CreateSession(s); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	r.current = s
	logf("session %d (%s) started", s.ID, s.UUID)

	out := *s
	return &out, nil
}

// Active returns a copy of the recording session, or nil.
func (r *Recorder) Active() *db.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	out := *r.current
	return &out
}

// Observe buffers one classified frame against the active session. It
// reports whether the frame was recorded; frames arriving with no active
// session are dropped.
func (r *Recorder) Observe(ev Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return false
	}

	r.buf = append(r.buf, db.FrameCode{
		SessionID:      r.current.ID,
		Seq:            int64(ev.Seq),
		CapturedAtUnix: ev.CapturedAtUnix,
		ArmsCode:       string(ev.Arms),
		LegCode:        string(ev.Leg),
		LegAngle:       ev.LegAngleDegrees,
	})
	return true
}

// Pending returns the number of buffered, unflushed frames.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Flush writes the buffered frames to the store in one transaction. On
// error the batch is dropped; the insert is transactional, so a failed
// flush never leaves a partial batch behind.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	batch := r.buf
	r.buf = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := r.store.RecordFrameCodes(batch); err != nil {
		return fmt.Errorf("failed to flush %d frames: %w", len(batch), err)
	}
	return nil
}

// End flushes the remaining frames and closes the active session.
func (r *Recorder) End() (*db.Session, error) {
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	s := r.current
	r.current = nil
	r.mu.Unlock()

	if err := r.Flush(); err != nil {
		logf("flush on end: %v", err)
	}

	endedAt := unixSeconds(r.clock.Now())
	if err := r.store.EndSession(s.ID, endedAt); err != nil {
		return nil, fmt.Errorf("failed to end session %d: %w", s.ID, err)
	}

	s.EndedAtUnix = &endedAt
	logf("session %d (%s) ended", s.ID, s.UUID)

	out := *s
	return &out, nil
}

// Run starts the periodic flush loop. It blocks until the context is
// cancelled or Stop() is called, flushing once more on the way out.
// Returns nil on clean shutdown.
func (r *Recorder) Run(ctx context.Context) error {
	r.runMu.Lock()
	if r.running {
		r.runMu.Unlock()
		return nil // already running
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.runMu.Unlock()

	defer func() {
		close(r.doneCh)
		r.runMu.Lock()
		r.running = false
		r.runMu.Unlock()
	}()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	logf("flush loop started: interval=%v", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.flushLogged()
			return nil
		case <-r.stopCh:
			r.flushLogged()
			return nil
		case <-ticker.C():
			r.flushLogged()
		}
	}
}

// Stop requests the flush loop to stop and waits for it to finish. It is
// safe to call multiple times.
func (r *Recorder) Stop() {
	r.runMu.Lock()
	if !r.running {
		r.runMu.Unlock()
		return
	}
	select {
	case <-r.stopCh:
		// already closed
	default:
		close(r.stopCh)
	}
	r.runMu.Unlock()

	<-r.doneCh
}

// IsRunning returns whether the flush loop is currently running.
func (r *Recorder) IsRunning() bool {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.running
}

func (r *Recorder) flushLogged() {
	if err := r.Flush(); err != nil {
		logf("%v", err)
	}
}
