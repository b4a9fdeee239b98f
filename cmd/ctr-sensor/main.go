// Command ctr-sensor polls GPIO inputs, rate-limits or latches each one, and
// publishes the accepted events to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/ctr-sensor/internal/config"
	"github.com/sweeney/ctr-sensor/internal/gpio"
	"github.com/sweeney/ctr-sensor/internal/logic"
	"github.com/sweeney/ctr-sensor/internal/mqtt"
	"github.com/sweeney/ctr-sensor/internal/status"
	"github.com/sweeney/ctr-sensor/internal/timer"
	"github.com/sweeney/ctr-sensor/internal/web"
)

// options holds what the command line asked for.
type options struct {
	cfg        config.Config
	configPath string
	printState bool
}

// parseFlags loads the config file named by -config and lets explicitly set
// flags override it.
func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("ctr-sensor", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file (empty for built-in defaults)")
	poll := fs.String("poll", "", "GPIO polling interval")
	heartbeat := fs.String("heartbeat", "", "Heartbeat interval (0 to disable)")
	broker := fs.String("broker", "", "MQTT broker address")
	prefix := fs.String("topic-prefix", "", "MQTT topic prefix")
	httpAddr := fs.String("http", "", "HTTP status address")
	chip := fs.String("chip", "", "GPIO chip name")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	printState := fs.Bool("print-state", false, "Print current channel levels and exit")
	noHTTP := fs.Bool("no-http", false, "Disable the HTTP status server")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return options{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.Poll = *poll
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "broker":
			cfg.Broker = *broker
		case "topic-prefix":
			cfg.TopicPrefix = *prefix
		case "http":
			cfg.HTTP = *httpAddr
		case "chip":
			cfg.Chip = *chip
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if *noHTTP {
		cfg.HTTP = ""
	}

	return options{cfg: cfg, configPath: *configPath, printState: *printState}, nil
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatalf("fatal: %v", err)
	}
	if err := setupLogging(opts.cfg.LogLevel); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts options) error {
	cfg := opts.cfg
	poll, heartbeat, err := cfg.Durations()
	if err != nil {
		return err
	}
	specs, err := cfg.Specs()
	if err != nil {
		return err
	}
	lines, err := cfg.Lines()
	if err != nil {
		return err
	}

	// Initialize GPIO
	reader, err := gpio.NewRealReader(cfg.Chip, lines)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	// Print state mode
	if opts.printState {
		return printState(reader, specs)
	}

	// Initialize MQTT
	topics := mqtt.TopicsFor(cfg.TopicPrefix)
	publisher, err := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID, topics)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	startTime := time.Now()
	monitor, err := logic.NewMonitor(specs, reader, timer.ForUnit, startTime, heartbeat)
	if err != nil {
		return fmt.Errorf("init monitor: %w", err)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(startTime, status.Config{
		PollMs:      poll.Milliseconds(),
		HeartbeatMs: heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		TopicPrefix: cfg.TopicPrefix,
		HTTPAddr:    cfg.HTTP,
		ConfigPath:  opts.configPath,
	})
	tracker.Update(monitor.Channels())
	tracker.SetMQTTConnected(publisher.IsConnected())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Threshold commands arrive on paho's goroutine; the loop owns the monitor.
	control := make(chan mqtt.Command, 16)
	if err := publisher.SubscribeControl(forwardCommands(control)); err != nil {
		log.Printf("control subscription failed: %v", err)
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	log.WithFields(log.Fields{
		"poll":      poll,
		"heartbeat": heartbeat,
		"broker":    cfg.Broker,
		"channels":  len(specs),
	}).Info("started")

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(monitor, publisher, publisher, control, tracker, time.Now, ticker.C, sigCh)
}

// forwardCommands returns a control handler that queues commands for the run
// loop, dropping them if the loop is not keeping up.
func forwardCommands(ch chan<- mqtt.Command) func(mqtt.Command) {
	return func(cmd mqtt.Command) {
		select {
		case ch <- cmd:
		default:
			log.WithField("channel", cmd.Channel).Warn("control: queue full, dropping command")
		}
	}
}

func printState(reader gpio.Reader, specs []logic.ChannelSpec) error {
	for _, s := range specs {
		level, err := reader.Read(s.Pin)
		if err != nil {
			return fmt.Errorf("read %s: %w", s.Name, err)
		}
		fmt.Printf("%s (pin %d): %s\n", s.Name, s.Pin, activeString(level != s.ActiveLow))
	}
	return nil
}

func runLoop(monitor *logic.Monitor, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, control <-chan mqtt.Command, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			tracker.Update(monitor.Channels())
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case cmd := <-control:
			if err := monitor.SetThreshold(cmd.Channel, cmd.Threshold); err != nil {
				log.WithField("channel", cmd.Channel).Warnf("control: %v", err)
				continue
			}
			log.WithFields(log.Fields{
				"channel":   cmd.Channel,
				"threshold": cmd.Threshold,
			}).Info("control: threshold updated")
			tracker.Update(monitor.Channels())

		case <-tick:
			t := now()
			events, err := monitor.Poll(t)
			if err != nil {
				log.Printf("gpio read error: %v", err)
				tracker.RecordReadError()
			}

			for _, event := range events {
				log.WithFields(log.Fields{
					"channel": event.Channel,
					"type":    event.Type,
					"count":   event.Count,
				}).Info("event")
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}
			tracker.RecordEvents(events)

			// Update status tracker before the heartbeat so its snapshot is current
			tracker.Update(monitor.Channels())
			tracker.SetMQTTConnected(mqttStatus.IsConnected())

			if hb := monitor.CheckHeartbeat(t); hb != nil {
				log.WithFields(log.Fields{
					"uptime": hb.Uptime,
					"counts": hb.Counts,
				}).Info("heartbeat")

				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				hbEvent := mqtt.SystemEvent{
					Timestamp:  hb.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func activeString(active bool) string {
	if active {
		return "ACTIVE"
	}
	return "INACTIVE"
}
