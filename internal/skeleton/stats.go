package skeleton

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// StatsSnapshot is a point-in-time view of ingest health for the web and
// debug surfaces.
type StatsSnapshot struct {
	FramesPerSec   float64
	KBPerSec       float64
	ParseErrors    int64
	DroppedForward int64
	SeqGaps        int64
	LastSeq        uint32
	Timestamp      time.Time
}

// FrameStats tracks ingest statistics with thread-safe operations. Gaps in
// the bridge sequence counter are recorded as lost frames.
type FrameStats struct {
	mu             sync.Mutex
	frameCount     int64
	byteCount      int64
	parseErrors    int64
	droppedForward int64
	seqGaps        int64
	lastSeq        uint32
	haveSeq        bool
	lastReset      time.Time
	startTime      time.Time
	latestSnapshot *StatsSnapshot
}

// NewFrameStats creates a new FrameStats instance.
func NewFrameStats() *FrameStats {
	now := time.Now()
	return &FrameStats{
		lastReset: now,
		startTime: now,
	}
}

// AddFrame records a successfully parsed frame and its sequence number.
func (fs *FrameStats) AddFrame(bytes int, seq uint32) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frameCount++
	fs.byteCount += int64(bytes)
	if fs.haveSeq && seq > fs.lastSeq+1 {
		fs.seqGaps += int64(seq - fs.lastSeq - 1)
	}
	fs.lastSeq = seq
	fs.haveSeq = true
}

// AddParseError records a datagram the parser rejected.
func (fs *FrameStats) AddParseError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.parseErrors++
}

// AddDropped records a frame dropped on the forwarding path.
func (fs *FrameStats) AddDropped() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.droppedForward++
}

// getAndReset returns the interval counters and starts a new interval.
// Sequence tracking carries across intervals.
func (fs *FrameStats) getAndReset() (frames, bytes, errors, dropped, gaps int64, lastSeq uint32, duration time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := time.Now()
	duration = now.Sub(fs.lastReset)
	frames = fs.frameCount
	bytes = fs.byteCount
	errors = fs.parseErrors
	dropped = fs.droppedForward
	gaps = fs.seqGaps
	lastSeq = fs.lastSeq

	fs.frameCount = 0
	fs.byteCount = 0
	fs.parseErrors = 0
	fs.droppedForward = 0
	fs.seqGaps = 0
	fs.lastReset = now

	return
}

// LogStats logs formatted ingest statistics and stores a snapshot for the
// web interface. Intervals without traffic and without errors stay quiet.
func (fs *FrameStats) LogStats() {
	frames, bytes, errors, dropped, gaps, lastSeq, duration := fs.getAndReset()
	if frames == 0 && errors == 0 && dropped == 0 {
		return
	}

	framesPerSec := float64(frames) / duration.Seconds()
	kbPerSec := float64(bytes) / duration.Seconds() / 1024

	fs.mu.Lock()
	fs.latestSnapshot = &StatsSnapshot{
		FramesPerSec:   framesPerSec,
		KBPerSec:       kbPerSec,
		ParseErrors:    errors,
		DroppedForward: dropped,
		SeqGaps:        gaps,
		LastSeq:        lastSeq,
		Timestamp:      time.Now(),
	}
	fs.mu.Unlock()

	logMsg := fmt.Sprintf("Bridge stats (/sec): %.1f frames, %.1f KB", framesPerSec, kbPerSec)
	if errors > 0 {
		logMsg += fmt.Sprintf(", %d parse errors", errors)
	}
	if gaps > 0 {
		logMsg += fmt.Sprintf(", %d lost to seq gaps", gaps)
	}
	if dropped > 0 {
		logMsg += fmt.Sprintf(", %d dropped on forward", dropped)
	}
	log.Print(logMsg)
}

// Uptime returns the time since the stats were created.
func (fs *FrameStats) Uptime() time.Duration {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return time.Since(fs.startTime)
}

// LatestSnapshot returns the most recent stats snapshot, or nil before the
// first logging interval completes.
func (fs *FrameStats) LatestSnapshot() *StatsSnapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.latestSnapshot == nil {
		return nil
	}
	snapshot := *fs.latestSnapshot
	return &snapshot
}
