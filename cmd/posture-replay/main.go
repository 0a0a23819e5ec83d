package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kinetic-data/posture.report/internal/skeleton"
	"github.com/kinetic-data/posture.report/internal/skeleton/network"
	"github.com/kinetic-data/posture.report/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("posture-replay %s (%s) built %s\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	var pcapFile string
	var port int
	var targetAddr string
	var targetPort int
	var speed float64
	var countOnly bool
	var validate bool

	flag.StringVar(&pcapFile, "pcap", "", "capture of bridge traffic to replay")
	flag.IntVar(&port, "port", 2426, "UDP port the capture filter matches")
	flag.StringVar(&targetAddr, "target", "localhost", "host to replay datagrams to")
	flag.IntVar(&targetPort, "target-port", 2426, "UDP port to replay datagrams to")
	flag.Float64Var(&speed, "speed", 1.0, "speed multiplier relative to capture timing")
	flag.BoolVar(&countOnly, "count", false, "count matching datagrams and exit")
	flag.BoolVar(&validate, "validate", false, "parse each datagram and report parse errors and sequence gaps")
	flag.Parse()

	if pcapFile == "" {
		log.Fatalf("a capture file must be provided with -pcap")
	}

	if countOnly {
		count, err := network.CountPCAPFrames(pcapFile, port)
		if err != nil {
			log.Fatalf("count failed: %v", err)
		}
		fmt.Printf("%d datagrams on udp port %d in %s\n", count, port, pcapFile)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := skeleton.NewFrameStats()

	forwarder, err := network.NewPacketForwarder(targetAddr, targetPort, stats, time.Minute)
	if err != nil {
		log.Fatalf("Failed to create forwarder: %v", err)
	}
	defer forwarder.Close()
	forwarder.Start(ctx)

	cfg := network.ReplayConfig{
		SpeedMultiplier: speed,
		Forwarder:       forwarder,
		Stats:           stats,
	}
	if validate {
		cfg.Parser = skeleton.NewParser()
	}

	if err := network.ReplayPCAP(ctx, pcapFile, port, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("Replay interrupted")
		} else {
			log.Fatalf("Replay failed: %v", err)
		}
	}

	// Queued datagrams may still be in flight on the forwarder.
	time.Sleep(100 * time.Millisecond)
	stats.LogStats()
}
