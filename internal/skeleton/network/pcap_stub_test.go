//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"strings"
	"testing"
)

// TestReplayPCAP_Stub tests the stub implementation returns an error
func TestReplayPCAP_Stub(t *testing.T) {
	err := ReplayPCAP(context.Background(), "capture.pcap", 7556, ReplayConfig{})

	if err == nil {
		t.Fatal("Expected error from stub implementation")
	}
	if !strings.HasPrefix(err.Error(), "PCAP support not enabled") {
		t.Errorf("Expected error message to start with 'PCAP support not enabled', got '%s'", err.Error())
	}
}

// TestCountPCAPFrames_Stub tests the stub count implementation returns an error
func TestCountPCAPFrames_Stub(t *testing.T) {
	count, err := CountPCAPFrames("capture.pcap", 7556)

	if err == nil {
		t.Fatal("Expected error from stub implementation")
	}
	if count != 0 {
		t.Errorf("Expected zero count from stub, got %d", count)
	}
}
