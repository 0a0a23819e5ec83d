//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"fmt"
)

// ReplayPCAP is a stub implementation when PCAP support is disabled.
// Build with -tags=pcap to enable PCAP replay.
func ReplayPCAP(ctx context.Context, pcapFile string, udpPort int, cfg ReplayConfig) error {
	return fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to enable PCAP replay")
}

// CountPCAPFrames is a stub implementation when PCAP support is disabled.
func CountPCAPFrames(pcapFile string, udpPort int) (uint64, error) {
	return 0, fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to enable PCAP counting")
}
