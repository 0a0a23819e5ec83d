package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/kinetic-data/posture.report/internal/api"
	"github.com/kinetic-data/posture.report/internal/config"
	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/emitter"
	"github.com/kinetic-data/posture.report/internal/serialmux"
	"github.com/kinetic-data/posture.report/internal/session"
	"github.com/kinetic-data/posture.report/internal/skeleton"
	"github.com/kinetic-data/posture.report/internal/skeleton/network"
	"github.com/kinetic-data/posture.report/internal/units"
	"github.com/kinetic-data/posture.report/internal/version"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode     = flag.Bool("dev", false, "Run in dev mode (mock bridge, static files from disk)")
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	udpListen   = flag.String("udp-listen", ":2426", "UDP listen address for bridge datagrams")
	serialDev   = flag.String("serial", "", "Bridge serial device (ignored in dev mode)")
	dbFile      = flag.String("db", "posture_data.db", "Path to the SQLite database file")
	configPath  = flag.String("config", "", "Trainer config JSON file")
	mqttBroker  = flag.String("mqtt", "", "MQTT broker URL for the live classification feed")
	angleUnits  = flag.String("units", units.Degrees, "Angle units in API responses ("+units.GetValidUnitsString()+")")
	rcvBuf      = flag.Int("rcvbuf", 1<<20, "UDP receive buffer size in bytes")
	logInterval = flag.Int("log-interval", 60, "Frame statistics logging interval in seconds")
	forward     = flag.Bool("forward", false, "Forward received bridge datagrams to another address")
	forwardAddr = flag.String("forward-addr", "localhost", "Address to forward bridge datagrams to")
	forwardPort = flag.Int("forward-port", 2427, "Port to forward bridge datagrams to")
)

// envFlags maps environment variables onto flags so deployments can keep
// their settings in a .env file. Flags passed explicitly win.
var envFlags = map[string]string{
	"POSTURE_LISTEN":     "listen",
	"POSTURE_UDP_LISTEN": "udp-listen",
	"POSTURE_SERIAL":     "serial",
	"POSTURE_DB":         "db",
	"POSTURE_CONFIG":     "config",
	"POSTURE_MQTT":       "mqtt",
	"POSTURE_UNITS":      "units",
}

// applyEnvDefaults fills in flags the user did not pass on the command line
// from the environment. Must run after the flag set is parsed.
func applyEnvDefaults(fs *flag.FlagSet) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for env, name := range envFlags {
		if set[name] || fs.Lookup(name) == nil {
			continue
		}
		if v, ok := os.LookupEnv(env); ok && v != "" {
			if err := fs.Set(name, v); err != nil {
				log.Printf("ignoring %s=%q: %v", env, v, err)
			}
		}
	}
}

// pipeline classifies each parsed frame once and fans the event out to the
// recorder and the live hub. It is the frame sink for both the UDP listener
// and the serial bridge, so a frame is handled the same way regardless of
// which transport delivered it.
type pipeline struct {
	trainer  *api.TrainerState
	recorder *session.Recorder
	hub      *session.Hub
}

func (p *pipeline) HandleFrame(f skeleton.Frame) {
	ev := session.NewEvent(f, p.trainer.PoseConfig())
	p.recorder.Observe(ev)
	p.hub.Publish(ev)
}

func handleBridgeLine(p *pipeline, line string) error {
	f, err := serialmux.ParseFrameLine(line)
	if err != nil {
		return fmt.Errorf("failed to parse bridge line: %w", err)
	}
	p.HandleFrame(f)
	return nil
}

// Main
func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("posture-daemon %s (%s) built %s\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if err := godotenv.Load(); err != nil {
		log.Println("[WARN] No .env file found, relying on flags and environment")
	} else {
		log.Println("[INFO] Loaded environment variables from .env file")
	}

	flag.Parse()
	applyEnvDefaults(flag.CommandLine)

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}
	if *udpListen == "" {
		log.Fatal("UDP listen address is required")
	}
	if !units.IsValid(*angleUnits) {
		log.Fatalf("invalid -units %q: expected one of %s", *angleUnits, units.GetValidUnitsString())
	}

	var trainerCfg *config.TrainerConfig
	if *configPath != "" {
		var err error
		trainerCfg, err = config.LoadTrainerConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load trainer config: %v", err)
		}
		log.Printf("loaded trainer config from %s", *configPath)
	} else {
		trainerCfg = config.EmptyTrainerConfig()
	}
	trainer := api.NewTrainerState(trainerCfg)

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	hub := session.NewHub(trainerCfg.GetLiveQueueSize())
	defer hub.Close()

	recorder := session.NewRecorder(session.RecorderConfig{
		Store:         database,
		FlushInterval: trainerCfg.GetFlushInterval(),
	})

	pipe := &pipeline{trainer: trainer, recorder: recorder, hub: hub}

	// Open the initial bridge mux: a mock in dev mode, the flag-named
	// device otherwise. With neither the manager starts idle and a
	// database-backed config can be activated via /api/bridge/reload.
	var initialMux serialmux.SerialMuxInterface
	var snapshot api.BridgeSnapshot
	if *devMode {
		initialMux = serialmux.NewMockSerialMux(nil)
		snapshot = api.BridgeSnapshot{PortPath: "mock", Source: "dev"}
	} else if *serialDev != "" {
		initialMux, err = serialmux.NewRealSerialMux(*serialDev, serialmux.PortOptions{})
		if err != nil {
			log.Fatalf("failed to open bridge serial device: %v", err)
		}
		snapshot = api.BridgeSnapshot{PortPath: *serialDev, Source: "flag"}
	}
	if initialMux != nil {
		if err := initialMux.Initialize(); err != nil {
			log.Fatalf("failed to initialize bridge: %v", err)
		}
		log.Printf("initialized bridge on %s", snapshot.PortPath)
	}

	bridge := api.NewBridgeManager(database, initialMux, snapshot, func(path string, opts serialmux.PortOptions) (serialmux.SerialMuxInterface, error) {
		return serialmux.NewRealSerialMux(path, opts)
	})
	defer bridge.Close()

	// Frame statistics are shared between the UDP listener and the
	// forwarder so drops show up in the same periodic log line.
	stats := skeleton.NewFrameStats()
	logEvery := time.Duration(*logInterval) * time.Second

	var forwarder *network.PacketForwarder
	if *forward {
		forwarder, err = network.NewPacketForwarder(*forwardAddr, *forwardPort, stats, logEvery)
		if err != nil {
			log.Fatalf("failed to create datagram forwarder: %v", err)
		}
		defer forwarder.Close()
		log.Printf("Forwarding bridge datagrams to %s:%d", *forwardAddr, *forwardPort)
	}

	// MQTT is optional; the flag takes precedence over the config file.
	broker := *mqttBroker
	if broker == "" {
		broker = trainerCfg.GetMQTTBroker()
	}
	var em *emitter.Emitter
	if broker != "" {
		em = emitter.New(emitter.Config{
			Broker:      broker,
			TopicPrefix: trainerCfg.GetMQTTTopicPrefix(),
			Retain:      trainerCfg.GetMQTTRetain(),
		})
		if err := em.Connect(); err != nil {
			log.Printf("MQTT connect failed, client keeps retrying: %v", err)
		}
	}

	// Create a wait group for the HTTP server, bridge, UDP listener,
	// recorder and emitter routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the bridge serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bridge.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor bridge: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to bridge frame lines and feed them through the pipeline
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := bridge.Subscribe()
		defer bridge.Unsubscribe(id)
		for {
			select {
			case line, ok := <-c:
				if !ok {
					log.Print("subscribe routine terminated: bridge closed")
					return
				}
				if err := handleBridgeLine(pipe, line); err != nil {
					log.Printf("error handling bridge line: %v", err)
				}
			case <-ctx.Done():
				log.Print("subscribe routine terminated")
				return
			}
		}
	}()

	// UDP listener routine for networked bridges
	wg.Add(1)
	go func() {
		defer wg.Done()
		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address:     *udpListen,
			RcvBuf:      *rcvBuf,
			LogInterval: logEvery,
			Stats:       stats,
			Forwarder:   forwarder,
			Parser:      skeleton.NewParser(),
			Sink:        pipe,
		})
		if err := listener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("UDP listener error: %v", err)
		}
		log.Print("UDP listener routine terminated")
	}()

	// recorder flush loop writes buffered frames out once per interval
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := recorder.Run(ctx); err != nil {
			log.Printf("recorder error: %v", err)
		}
		log.Print("recorder routine terminated")
	}()

	// emitter routine publishes hub events while a session is recording
	if em != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer em.Disconnect()
			if err := em.Run(ctx, hub, func() string {
				if s := recorder.Active(); s != nil {
					return s.UUID
				}
				return ""
			}); err != nil {
				log.Printf("emitter error: %v", err)
			}
			log.Print("emitter routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		serverCfg := api.ServerConfig{
			DB:         database,
			Recorder:   recorder,
			Hub:        hub,
			Trainer:    trainer,
			Bridge:     bridge,
			CommandOK:  commandAllowed,
			AngleUnits: *angleUnits,
		}
		// Leave MQTT unset when there is no emitter: a nil *Emitter in
		// the interface field would pass the health handler's nil check.
		if em != nil {
			serverCfg.MQTT = em
		}
		mux := api.NewServer(serverCfg).ServeMux()

		// mount the admin debugging routes
		database.AttachAdminRoutes(mux)
		bridge.AttachAdminRoutes(mux)

		// read static files from the embedded filesystem in production or
		// from the local ./static in dev for easier iteration without
		// restarting the server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			sub, err := fs.Sub(staticFiles, "static")
			if err != nil {
				log.Fatalf("failed to open embedded static files: %v", err)
			}
			staticHandler = http.FileServer(http.FS(sub))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a shorter timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
