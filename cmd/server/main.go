// Command server runs the geofence attendance core: it ingests chat
// location events, sweeps expired live sessions, and periodically scans
// clocked-in employees to auto-clock-out anyone outside their working
// area, stale, or no longer sharing live location.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bbt-251/geofence-attendance-core/internal/api"
	"github.com/bbt-251/geofence-attendance-core/internal/bus"
	"github.com/bbt-251/geofence-attendance-core/internal/config"
	"github.com/bbt-251/geofence-attendance-core/internal/ingestion"
	"github.com/bbt-251/geofence-attendance-core/internal/monitor"
	"github.com/bbt-251/geofence-attendance-core/internal/notify"
	"github.com/bbt-251/geofence-attendance-core/internal/registry"
	"github.com/bbt-251/geofence-attendance-core/internal/scanner"
	"github.com/bbt-251/geofence-attendance-core/internal/store"
	"github.com/bbt-251/geofence-attendance-core/internal/transport"
)

const sweepInterval = 60 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config: failed to load", zap.Error(err))
	}

	metricsRegistry := setupMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	projects, err := connectProjects(ctx, cfg.Projects, logger)
	if err != nil {
		logger.Fatal("store: failed to connect projects", zap.Error(err))
	}
	defer projects.CloseAll()

	eventBus, err := bus.Connect(bus.Config{
		BrokerURL:      cfg.Bus.BrokerURL,
		ClientID:       cfg.Bus.ClientID,
		Username:       cfg.Bus.Username,
		Password:       cfg.Bus.Password,
		ConnectTimeout: cfg.Bus.ConnectTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("bus: failed to connect", zap.Error(err))
	}
	defer eventBus.Close()

	sessions := ingestion.NewChatSessionMap()
	liveRegistry := registry.New(makeFinalizer(projects), logger)
	liveRegistry.StartSweeper(ctx, sweepInterval)
	defer liveRegistry.StopSweeper()

	feed := api.NewFeed(logger)

	ingestSvc := ingestion.New(sessions, liveRegistry, projects, eventBus, feed, logger)

	chatTransport := transport.NewHTTPPollTransport(transport.HTTPPollConfig{
		BaseURL:        cfg.Transport.BaseURL,
		BotToken:       cfg.Transport.BotToken,
		PollTimeout:    cfg.Transport.PollTimeout,
		ConnectTimeout: cfg.Transport.ConnectTimeout,
	}, logger)

	go runTransport(ctx, chatTransport, ingestSvc, logger)

	notifier := notify.New(chatTransport, 1, 5, logger)
	notifier.Enabled = cfg.Monitor.NotificationsEnabled

	scan := scanner.New(projects, logger)

	monitorCfg := monitor.Config{
		CheckInterval:        cfg.Monitor.CheckInterval,
		MaxLocationAge:       cfg.Monitor.MaxLocationAge,
		Enabled:              cfg.Monitor.Enabled,
		NotificationsEnabled: cfg.Monitor.NotificationsEnabled,
		WarmUp:               30 * time.Second,
	}
	monitorLoop := monitor.New(monitorCfg, scan, projects, notifier, eventBus, feed, metricsRegistry, logger)
	monitorLoop.Start(ctx)
	defer monitorLoop.Stop()

	router := api.NewRouter(api.Dependencies{
		Projects: projects,
		Monitor:  monitorLoop,
		Feed:     feed,
		Registry: metricsRegistry,
		Logger:   logger,
		RateSpec: cfg.Service.RateLimitSpec,
	})

	server := &http.Server{
		Addr:    cfg.Service.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Info("server: listening", zap.String("addr", cfg.Service.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server: listen failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("server: shutdown signal received")
	cancel()
	gracefulShutdown(server, logger)
}

// setupMetrics mirrors the teacher's setupMetrics: a dedicated registry
// carrying the Go runtime collector plus whatever components register
// against it.
func setupMetrics() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return registry
}

func connectProjects(ctx context.Context, projectCfgs []config.ProjectConfig, logger *zap.Logger) (*store.Projects, error) {
	var stores []store.Store
	for _, pc := range projectCfgs {
		pgStore, err := store.NewPostgresStore(ctx, store.PostgresConfig{
			ProjectName:    pc.Name,
			DSN:            pc.DSN,
			MaxConns:       pc.MaxConns,
			ConnectTimeout: pc.ConnectTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		stores = append(stores, store.WithRetry(pgStore, logger))
	}
	return store.NewProjects(stores, logger), nil
}

// makeFinalizer closes over the project registry so the live-session
// sweeper can mark an employee's location as no longer live without
// depending on ingestion or monitor packages directly.
func makeFinalizer(projects *store.Projects) registry.Finalizer {
	return func(ctx context.Context, employeeUID, projectName string, endedAt time.Time) error {
		st, ok := projects.Get(projectName)
		if !ok {
			return nil
		}
		emp, err := st.GetEmployee(ctx, employeeUID)
		if err != nil {
			return err
		}
		if emp.CurrentLocation == nil {
			return nil
		}
		emp.CurrentLocation.IsLive = false
		emp.CurrentLocation.EndedAt = &endedAt
		return st.UpdateEmployeeLocation(ctx, employeeUID, emp.CurrentLocation, endedAt)
	}
}

func runTransport(ctx context.Context, t transport.ChatTransport, ingestSvc *ingestion.Service, logger *zap.Logger) {
	go func() {
		if err := t.Run(ctx); err != nil {
			logger.Error("transport: run loop exited", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-t.Events():
			if !ok {
				return
			}
			if err := ingestSvc.OnLocationEvent(ctx, ev); err != nil {
				logger.Warn("ingestion: failed to process event", zap.Error(err))
			}
		}
	}
}

// gracefulShutdown stops accepting new connections and waits up to 30s for
// in-flight requests to finish, matching the teacher's shutdown timeout.
func gracefulShutdown(server *http.Server, logger *zap.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server: graceful shutdown failed", zap.Error(err))
	}
}
