package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/procwarden/internal/api"
	"github.com/nerrad567/procwarden/internal/audit"
	"github.com/nerrad567/procwarden/internal/events"
	"github.com/nerrad567/procwarden/internal/infrastructure/config"
	"github.com/nerrad567/procwarden/internal/infrastructure/database"
	"github.com/nerrad567/procwarden/internal/infrastructure/influxdb"
	"github.com/nerrad567/procwarden/internal/infrastructure/logging"
	"github.com/nerrad567/procwarden/internal/infrastructure/mqtt"
	"github.com/nerrad567/procwarden/internal/launcher"
	"github.com/nerrad567/procwarden/internal/process"

	_ "github.com/nerrad567/procwarden/migrations" // registers embedded SQL migrations
)

const (
	// shutdownTimeout bounds stopping every supervised child on exit.
	shutdownTimeout = 30 * time.Second

	// auditPruneInterval is how often expired audit rows are removed.
	auditPruneInterval = time.Hour
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	if path == "" {
		log.Warn("config file not found, using defaults", "path", defaultConfigPath)
	} else {
		log.Info("configuration loaded", "path", path)
	}

	return run(ctx, cfg, log)
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	log.Info("procwarden starting",
		"version", version,
		"commit", commit,
		"instance", cfg.Instance.ID,
		"executable", cfg.Launcher.Executable,
	)

	// Audit database
	var auditRepo audit.Repository
	if cfg.Database.Enabled {
		db, err := database.Open(database.ConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", db.Path())

		repo := audit.NewSQLiteRepository(db.DB)
		auditRepo = repo
		if cfg.Database.AuditRetentionDays > 0 {
			retention := time.Duration(cfg.Database.AuditRetentionDays) * 24 * time.Hour
			go pruneAuditLogs(ctx, repo, retention, log.Component("audit"))
		}
	} else {
		log.Warn("database disabled, audit log not recorded")
	}

	// MQTT
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		c, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer c.Close()
		c.SetLogger(log.Component("mqtt"))
		c.SetOnConnect(func() { log.Info("MQTT reconnected") })
		c.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		mqttClient = c
		log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))
	} else {
		log.Warn("MQTT disabled, events and commands not bridged")
	}

	// InfluxDB
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		c, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer c.Close()
		c.SetOnError(func(err error) { log.Warn("InfluxDB write failed", "error", err) })
		influxClient = c
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Supervisor
	manager := process.NewManager(process.Config{
		BufferCapacity:     cfg.Supervisor.BufferCapacity,
		StopTimeout:        cfg.Supervisor.StopTimeout,
		StopAllTimeout:     cfg.Supervisor.StopAllTimeout,
		GracefulTimeout:    cfg.Supervisor.GracefulTimeout,
		StopAllConcurrency: cfg.Supervisor.StopAllConcurrency,
	}, process.NewRegistry())
	manager.SetLogger(log.Component("process"))

	launch := launcher.New(cfg.Launcher)
	launch.SetLogger(log.Component("launcher"))
	if _, err := launch.Resolve(); err != nil {
		log.Warn("managed executable not found, starts will fail until it exists", "path", launch.ExecutablePath())
	}

	// API server
	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log.Component("api"),
		Manager:   manager,
		Launcher:  launch,
		AuditRepo: auditRepo,
		Version:   version,

		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  cfg.GetIdleTimeout(),
	}
	// Interface fields stay nil unless the backend exists.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}
	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Event fan-out
	dispatcher := events.NewDispatcher(0, log.Component("events"))
	dispatcher.Add(api.NewHubSink(srv.Hub()))
	if auditRepo != nil {
		dispatcher.Add(events.NewAuditSink(auditRepo))
	}
	if mqttClient != nil {
		dispatcher.Add(events.NewMQTTSink(mqttClient, manager))
	}
	if influxClient != nil {
		dispatcher.Add(events.NewMetricsSink(influxClient))
		sampler := events.NewSampler(manager, influxClient, cfg.Instance.ID, cfg.Supervisor.SampleInterval)
		go sampler.Run(ctx)
	}
	manager.AddEventSink(dispatcher)

	if mqttClient != nil {
		listener := events.NewCommandListener(mqttClient, manager, log.Component("commands"))
		if err := listener.Start(); err != nil {
			return fmt.Errorf("starting MQTT command listener: %w", err)
		}
		defer func() {
			if err := listener.Stop(); err != nil {
				log.Warn("unsubscribing command listener", "error", err)
			}
		}()
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	healthCheck(ctx, log, srv, mqttClient, influxClient)
	log.Info("procwarden started successfully")

	<-ctx.Done()
	log.Info("shutdown signal received")

	return shutdown(log, srv, manager, dispatcher)
}

// shutdown stops intake first, then every child, then drains queued events
// so the final stop notifications still reach their sinks.
func shutdown(log *logging.Logger, srv *api.Server, manager *process.Manager, dispatcher *events.Dispatcher) error {
	var errs []error

	if err := srv.Close(); err != nil {
		errs = append(errs, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := manager.Close(ctx); err != nil {
		log.Error("stopping supervised processes", "error", err)
		errs = append(errs, err)
	}
	if err := dispatcher.Close(ctx); err != nil {
		log.Warn("event queue not drained", "error", err, "dropped", dispatcher.Dropped())
	}

	log.Info("procwarden stopped",
		"events_delivered", dispatcher.Delivered(),
		"events_dropped", dispatcher.Dropped(),
	)
	return errors.Join(errs...)
}

// healthCheck logs the reachability of each optional backend once at startup.
func healthCheck(ctx context.Context, log *logging.Logger, srv *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := srv.HealthCheck(ctx); err != nil {
		log.Warn("API health check failed", "error", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			log.Warn("MQTT health check failed", "error", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			log.Warn("InfluxDB health check failed", "error", err)
		}
	}
}

// auditPruner is the part of the audit repository used for retention.
type auditPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// pruneAuditLogs removes rows older than retention now and then hourly.
func pruneAuditLogs(ctx context.Context, repo auditPruner, retention time.Duration, log *logging.Logger) {
	prune := func() {
		n, err := repo.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("pruning audit log", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("audit log pruned", "rows", n)
		}
	}

	prune()
	ticker := time.NewTicker(auditPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
