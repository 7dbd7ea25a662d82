package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"planesail/internal/ais"
	"planesail/internal/archive"
	"planesail/internal/dump1090"
	"planesail/internal/export"
	"planesail/internal/feed"
	"planesail/internal/lookup"
	"planesail/internal/metrics"
	"planesail/internal/sbs"
	"planesail/internal/track"
)

const (
	statisticsInterval = 30 * time.Second
	cleanupInterval    = 1 * time.Hour
	shutdownTimeout    = 5 * time.Second
)

// runner is a feed that runs until its context is cancelled
type runner interface {
	Run(ctx context.Context) error
	Monitor() *feed.Monitor
}

// source ties a feed to its metric label
type source struct {
	label   string
	monitor *feed.Monitor
}

// Application represents the main application
type Application struct {
	config   Config
	logger   *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	table    *track.Table
	tables   *lookup.Tables

	receiver    *ais.Receiver
	runners     []runner
	sources     []source
	recorders   []*archive.Recorder
	snapshotter *export.Snapshotter
	httpServer  *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config: config,
		logger: logger,
		table:  track.NewTable(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Table returns the shared track table
func (app *Application) Table() *track.Table {
	return app.table
}

// Start runs the application until SIGINT or SIGTERM
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting Plane/Sail track server")

	if err := app.initializeComponents(); err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := app.run(); err != nil {
		app.logger.WithError(err).Error("Application error")
		app.shutdown()
		return err
	}

	<-sigChan
	app.logger.Info("Received shutdown signal")
	app.shutdown()

	return nil
}

// initializeComponents builds every component from the configuration
func (app *Application) initializeComponents() error {
	if err := app.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var err error
	app.tables, err = lookup.Load()
	if err != nil {
		return fmt.Errorf("failed to load lookup tables: %w", err)
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics, err = metrics.NewCollector(app.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	if err := app.loadStaticTracks(); err != nil {
		return fmt.Errorf("failed to load static tracks: %w", err)
	}

	// AIS over UDP
	app.receiver = ais.NewReceiver(ais.ReceiverConfig{Port: app.config.AISPort},
		ais.NewHandler(app.table, app.logger), app.logger, app.metrics)
	if rec, err := app.newRecorder(ais.Source); err != nil {
		return err
	} else if rec != nil {
		app.receiver.SetArchive(rec)
	}
	app.sources = append(app.sources, source{ais.Source, app.receiver.Monitor()})

	// SBS over TCP
	if app.config.SBSHost != "" {
		if err := app.addSBSClient(app.config.SBSHost, app.config.SBSPort, false); err != nil {
			return err
		}
	}
	if app.config.MLATHost != "" {
		if err := app.addSBSClient(app.config.MLATHost, app.config.MLATPort, true); err != nil {
			return err
		}
	}

	// dump1090 JSON
	if app.config.Dump1090URL != "" {
		reader, err := dump1090.NewReader(dump1090.ReaderConfig{URL: app.config.Dump1090URL},
			app.table, app.logger, app.metrics)
		if err != nil {
			return fmt.Errorf("failed to create dump1090 reader: %w", err)
		}
		app.runners = append(app.runners, reader)
		app.sources = append(app.sources, source{dump1090.Source, reader.Monitor()})
	}

	if app.config.SnapshotFile != "" {
		app.snapshotter = export.NewSnapshotter(app.table, app.tables,
			app.config.SnapshotFile, app.config.SnapshotInterval, app.logger)
	}

	if app.config.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.metrics.Handler())
		app.httpServer = &http.Server{
			Addr:              app.config.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return nil
}

// loadStaticTracks inserts configured airports and base stations
func (app *Application) loadStaticTracks() error {
	for i, a := range app.config.Airports {
		id := fmt.Sprintf("AIRPORT-%d", i)
		if err := app.table.Put(track.NewAirport(id, a.Name, a.ICAOCode, a.Lat, a.Lon)); err != nil {
			return err
		}
	}
	for i, b := range app.config.BaseStations {
		id := fmt.Sprintf("BASESTATION-%d", i)
		if err := app.table.Put(track.NewBaseStation(id, b.Name, b.Lat, b.Lon)); err != nil {
			return err
		}
	}

	app.logger.WithFields(logrus.Fields{
		"airports":      len(app.config.Airports),
		"base_stations": len(app.config.BaseStations),
	}).Info("Loaded static tracks")
	return nil
}

func (app *Application) addSBSClient(host string, port int, mlat bool) error {
	label := sbs.Source(mlat)
	handler := sbs.NewHandler(app.table, label, app.logger, app.metrics)

	rec, err := app.newRecorder(label)
	if err != nil {
		return err
	}
	if rec != nil {
		handler.SetArchive(rec)
	}

	client := sbs.NewClient(host, port, mlat, handler, app.logger, app.metrics)
	app.runners = append(app.runners, client)
	app.sources = append(app.sources, source{label, client.Monitor()})
	return nil
}

// newRecorder opens a raw feed archive when archiving is enabled
func (app *Application) newRecorder(prefix string) (*archive.Recorder, error) {
	if app.config.ArchiveDir == "" {
		return nil, nil
	}
	rec, err := archive.NewRecorder(app.config.ArchiveDir, prefix, app.config.LogRotateUTC, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s archive: %w", prefix, err)
	}
	app.recorders = append(app.recorders, rec)
	return rec, nil
}

// run starts one goroutine per source plus the housekeeping loops
func (app *Application) run() error {
	// A bind failure stops AIS ingestion only
	if err := app.receiver.Start(app.ctx); err != nil {
		app.logger.WithError(err).Error("AIS receiver failed to start")
	}

	for _, r := range app.runners {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := r.Run(app.ctx); err != nil {
				app.logger.WithError(err).WithField("source", r.Monitor().Name()).Error("Feed stopped")
			}
		}()
	}

	for _, rec := range app.recorders {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			rec.Start(app.ctx)
		}()
	}

	if app.snapshotter != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.snapshotter.Run(app.ctx)
		}()
	}

	if app.httpServer != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.logger.WithField("addr", app.httpServer.Addr).Info("Serving metrics")
			if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.runMaintenance()
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.reportStatistics()
	}()

	app.logger.Info("All components started successfully")
	return nil
}

// runMaintenance expires stale tracks and refreshes gauges
func (app *Application) runMaintenance() {
	ticker := time.NewTicker(app.config.MaintenanceInterval)
	defer ticker.Stop()

	app.cleanupArchives()
	lastCleanup := time.Now()

	for {
		select {
		case <-app.ctx.Done():
			return
		case now := <-ticker.C:
			app.maintain(now)
			if now.Sub(lastCleanup) >= cleanupInterval {
				app.cleanupArchives()
				lastCleanup = now
			}
		}
	}
}

// maintain runs one maintenance pass
func (app *Application) maintain(now time.Time) track.MaintenanceResult {
	res := app.table.Maintain(now, app.config.Expiry)

	counts := make(map[string]int, len(res.Counts))
	for t, n := range res.Counts {
		counts[string(t)] = n
	}
	app.metrics.SetTrackCounts(counts)

	for _, s := range app.sources {
		app.metrics.SetFeedOnline(s.label, s.monitor.Status(now) == feed.StatusOnline)
	}

	if len(res.Removed) > 0 {
		app.logger.WithFields(logrus.Fields{
			"removed": len(res.Removed),
			"pruned":  res.Pruned,
		}).Debug("Dropped stale tracks")
	}
	return res
}

func (app *Application) cleanupArchives() {
	if app.config.ArchiveMaxDays <= 0 {
		return
	}
	for _, rec := range app.recorders {
		if _, err := rec.CleanupOldFiles(app.config.ArchiveMaxDays); err != nil {
			app.logger.WithError(err).Warn("Failed to clean up archive files")
		}
	}
}

// reportStatistics logs feed status and track counts periodically
func (app *Application) reportStatistics() {
	ticker := time.NewTicker(statisticsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case now := <-ticker.C:
			app.logStatistics(now)
		}
	}
}

func (app *Application) logStatistics(now time.Time) {
	for _, s := range app.sources {
		app.logger.WithFields(logrus.Fields{
			"source":    s.label,
			"status":    s.monitor.Status(now).String(),
			"last_data": s.monitor.LastData().Format(time.RFC3339),
		}).Infof("%s status", s.monitor.Name())
	}

	fields := logrus.Fields{"total": app.table.Len()}
	for t, n := range app.table.CountByType() {
		fields[string(t)] = n
	}
	app.logger.WithFields(fields).Info("Track statistics")
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() {
	app.logger.Info("Shutting down application")
	app.cancel()

	if app.receiver != nil {
		app.receiver.Stop()
	}

	if app.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.httpServer.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Warn("Metrics server shutdown failed")
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info("All goroutines finished")
	case <-time.After(shutdownTimeout):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	for _, rec := range app.recorders {
		if err := rec.Close(); err != nil {
			app.logger.WithError(err).Warn("Failed to close archive")
		}
	}

	app.logger.Info("Shutdown completed")
}
