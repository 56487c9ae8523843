// Package monitor runs the realtime attendance pipeline: it wires the frame
// source, detector, tracker, stores and servers together and handles
// shutdown signals.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/jvaltonen/facewatch-go/internal/attendance"
	"github.com/jvaltonen/facewatch-go/internal/conf"
	"github.com/jvaltonen/facewatch-go/internal/datastore"
	"github.com/jvaltonen/facewatch-go/internal/facedet"
	"github.com/jvaltonen/facewatch-go/internal/frame"
	"github.com/jvaltonen/facewatch-go/internal/httpcontroller"
	"github.com/jvaltonen/facewatch-go/internal/ledger"
	"github.com/jvaltonen/facewatch-go/internal/logging"
	"github.com/jvaltonen/facewatch-go/internal/mqtt"
	"github.com/jvaltonen/facewatch-go/internal/pipeline"
	"github.com/jvaltonen/facewatch-go/internal/telemetry"
)

// Run starts realtime attendance monitoring and blocks until SIGINT/SIGTERM
// or until the frame producer halts with no source at all.
func Run(settings *conf.Settings) error {
	log := logging.ForService("monitor")

	if info, err := host.Info(); err != nil {
		log.Warn("retrieving host info failed", "error", err)
	} else {
		log.Info("starting realtime attendance monitoring",
			"os", info.OS, "platform", info.Platform, "platform_version", info.PlatformVersion)
	}

	// Attendance ledger, the authoritative record.
	led := ledger.New(settings.Attendance.LedgerPath)
	if err := led.EnsureInitialized(); err != nil {
		return fmt.Errorf("initializing attendance ledger: %w", err)
	}

	tracker := attendance.NewTracker(led, settings.AttendanceWindow())
	if err := tracker.Rebuild(); err != nil {
		return fmt.Errorf("rebuilding attendance state from ledger: %w", err)
	}
	log.Info("attendance state rebuilt", "date", tracker.CurrentDate(), "marked", tracker.MarkedCount())

	// Known face encodings. Missing file starts an empty registry.
	registry, err := facedet.LoadRegistry(settings.Detection.EncodingsPath)
	if err != nil {
		return fmt.Errorf("loading face encodings: %w", err)
	}
	matcher := facedet.NewMatcher(registry, settings.Detection.MaxDistance)
	detector := facedet.NewHTTPDetector(settings.Detection.Endpoint, settings.DetectionTimeout())

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	tracker.AddMarkListener(func(rec ledger.Record) {
		metrics.MarksRecorded.WithLabelValues(rec.Status).Inc()
	})

	// Optional rotating event log, alongside the CSV ledger.
	if settings.Main.Log.Enabled {
		fileLog, closeLog := logging.NewFileLogger(settings.Main.Log.Path, "attendance", slog.LevelInfo)
		defer closeLog() //nolint:errcheck
		tracker.AddMarkListener(func(rec ledger.Record) {
			fileLog.Info("attendance marked", "name", rec.Name, "date", rec.Date, "time", rec.Time, "status", rec.Status)
		})
	}

	// Optional database mirror of the ledger.
	dataStore := datastore.New(settings)
	if dataStore != nil {
		if err := dataStore.Open(); err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer closeDataStore(dataStore, log)
		tracker.AddMarkListener(func(rec ledger.Record) {
			record := datastore.MarkRecord{Name: rec.Name, Date: rec.Date, Time: rec.Time, Status: rec.Status}
			if err := dataStore.Save(&record); err != nil {
				log.Warn("mirroring mark to database failed", "name", rec.Name, "error", err)
			}
		})
	}

	// Optional MQTT mark events.
	var mqttClient mqtt.Client
	if settings.MQTT.Enabled {
		mqttClient = mqtt.NewClient(settings)
		if err := mqttClient.Connect(context.Background()); err != nil {
			log.Warn("MQTT connect failed, events will be dropped until reconnect", "error", err)
		}
		defer mqttClient.Disconnect()
		tracker.AddMarkListener(mqtt.MarkListener(mqttClient, settings.MQTT.Topic))
	}

	broadcaster := pipeline.NewBroadcaster(metrics.ActiveViewers)
	proc := pipeline.NewProcessor(detector, matcher, tracker, broadcaster, metrics, settings.DetectionTimeout())

	sources := newSourceManager(settings, metrics)

	quitChan := make(chan struct{})
	var wg sync.WaitGroup

	if settings.WebServer.Enabled {
		httpServer := httpcontroller.New(settings, dataStore, tracker, led, registry, broadcaster, sources)
		httpServer.Start(&wg, quitChan)
	}

	if settings.Telemetry.Enabled {
		endpoint, err := telemetry.NewEndpoint(settings)
		if err != nil {
			return fmt.Errorf("initializing telemetry endpoint: %w", err)
		}
		endpoint.Start(&wg, quitChan)
	}

	// Frame producer. A halt here stops marking but the query surface keeps
	// serving until shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	producerDone := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		producerDone <- sources.Run(ctx, proc.Handler(ctx))
	}()

	monitorCtrlC(quitChan, log)

	select {
	case <-quitChan:
		cancel()
	case err := <-producerDone:
		if err != nil && ctx.Err() == nil {
			log.Error("frame producer halted", "error", err)
		}
		log.Info("frame producer stopped, query surface stays up until shutdown signal")
		<-quitChan
		cancel()
	}

	wg.Wait()
	log.Info("shutdown complete")
	return nil
}

// newSourceManager builds the frame source manager from the stream settings.
func newSourceManager(settings *conf.Settings, metrics *telemetry.Metrics) *frame.Manager {
	var primary, fallback frame.Opener
	if settings.Stream.URL != "" {
		primary = frame.NewMJPEGOpener(settings.Stream.URL)
	}
	if settings.Stream.FallbackDevice != "" {
		fallback = &frame.DeviceOpener{
			Device:     settings.Stream.FallbackDevice,
			FfmpegPath: settings.Stream.FfmpegPath,
		}
	}
	if primary == nil {
		// Device-only configuration: the device is the primary source.
		primary, fallback = fallback, nil
	}

	m := frame.NewManager(primary, fallback, settings.StreamStallTimeout())
	m.OnReconnect = func() { metrics.StreamReconnects.Inc() }
	return m
}

// monitorCtrlC listens for SIGINT/SIGTERM and triggers shutdown.
func monitorCtrlC(quitChan chan struct{}, log *slog.Logger) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("received shutdown signal")
		close(quitChan)
	}()
}

func closeDataStore(store datastore.Interface, log *slog.Logger) {
	if err := store.Close(); err != nil {
		log.Warn("closing database failed", "error", err)
	}
}
