//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// pcapFileReader adapts a gopacket capture handle to PCAPReader, yielding
// UDP payloads only.
type pcapFileReader struct {
	handle *pcap.Handle
	source *gopacket.PacketSource
}

func openPCAPFile(pcapFile string, udpPort int) (*pcapFileReader, error) {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}

	return &pcapFileReader{
		handle: handle,
		source: gopacket.NewPacketSource(handle, handle.LinkType()),
	}, nil
}

func (r *pcapFileReader) NextPacket() (*PCAPPacket, error) {
	for packet := range r.source.Packets() {
		if packet == nil {
			return nil, nil
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}

		return &PCAPPacket{
			Data:      udp.Payload,
			Timestamp: packet.Metadata().Timestamp,
		}, nil
	}
	return nil, nil
}

func (r *pcapFileReader) Close() {
	r.handle.Close()
}

// ReplayPCAP replays recorded bridge traffic from a PCAP file, preserving
// the original inter-packet spacing scaled by the configured speed
// multiplier. Only available when building with the 'pcap' tag.
func ReplayPCAP(ctx context.Context, pcapFile string, udpPort int, cfg ReplayConfig) error {
	reader, err := openPCAPFile(pcapFile, udpPort)
	if err != nil {
		return err
	}
	defer reader.Close()

	speed := cfg.SpeedMultiplier
	if speed <= 0 {
		speed = 1.0
	}
	log.Printf("PCAP replay: %s, udp port %d, speed %.1fx", pcapFile, udpPort, speed)

	start := time.Now()
	err = replayFromReader(ctx, reader, cfg)
	if err == nil {
		log.Printf("PCAP replay complete in %v", time.Since(start))
	}
	return err
}

// CountPCAPFrames counts the UDP packets matching the given port in a PCAP
// file, for progress reporting before a replay.
func CountPCAPFrames(pcapFile string, udpPort int) (uint64, error) {
	reader, err := openPCAPFile(pcapFile, udpPort)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	var count uint64
	for {
		pkt, err := reader.NextPacket()
		if err != nil {
			return count, err
		}
		if pkt == nil {
			return count, nil
		}
		count++
	}
}
