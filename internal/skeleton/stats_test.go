package skeleton

import "testing"

func TestFrameStats_Counters(t *testing.T) {
	fs := NewFrameStats()
	fs.AddFrame(FRAME_SIZE, 1)
	fs.AddFrame(FRAME_SIZE, 2)
	fs.AddParseError()
	fs.AddDropped()

	frames, bytes, errors, dropped, gaps, lastSeq, _ := fs.getAndReset()
	if frames != 2 {
		t.Errorf("frames = %d, want 2", frames)
	}
	if bytes != int64(2*FRAME_SIZE) {
		t.Errorf("bytes = %d, want %d", bytes, 2*FRAME_SIZE)
	}
	if errors != 1 || dropped != 1 {
		t.Errorf("errors = %d, dropped = %d, want 1, 1", errors, dropped)
	}
	if gaps != 0 {
		t.Errorf("gaps = %d, want 0", gaps)
	}
	if lastSeq != 2 {
		t.Errorf("lastSeq = %d, want 2", lastSeq)
	}

	// Counters reset per interval.
	frames, _, _, _, _, _, _ = fs.getAndReset()
	if frames != 0 {
		t.Errorf("frames after reset = %d, want 0", frames)
	}
}

func TestFrameStats_SeqGaps(t *testing.T) {
	fs := NewFrameStats()
	fs.AddFrame(FRAME_SIZE, 10)
	fs.AddFrame(FRAME_SIZE, 11)
	fs.AddFrame(FRAME_SIZE, 15) // 12-14 lost

	_, _, _, _, gaps, _, _ := fs.getAndReset()
	if gaps != 3 {
		t.Errorf("gaps = %d, want 3", gaps)
	}

	// A sequence restart (bridge reboot) must not count as loss.
	fs.AddFrame(FRAME_SIZE, 1)
	_, _, _, _, gaps, _, _ = fs.getAndReset()
	if gaps != 0 {
		t.Errorf("gaps after restart = %d, want 0", gaps)
	}
}

func TestFrameStats_LatestSnapshot(t *testing.T) {
	fs := NewFrameStats()
	if fs.LatestSnapshot() != nil {
		t.Error("expected nil snapshot before first interval")
	}

	fs.AddFrame(FRAME_SIZE, 1)
	fs.LogStats()

	snap := fs.LatestSnapshot()
	if snap == nil {
		t.Fatal("expected snapshot after LogStats")
	}
	if snap.LastSeq != 1 {
		t.Errorf("snapshot lastSeq = %d, want 1", snap.LastSeq)
	}
}
