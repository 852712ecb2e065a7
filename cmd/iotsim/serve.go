package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/iotsim-core/migrations"

	"github.com/nerrad567/iotsim-core/internal/api"
	"github.com/nerrad567/iotsim-core/internal/infrastructure/config"
	"github.com/nerrad567/iotsim-core/internal/infrastructure/database"
	"github.com/nerrad567/iotsim-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/iotsim-core/internal/infrastructure/logging"
	"github.com/nerrad567/iotsim-core/internal/infrastructure/mirror"
	"github.com/nerrad567/iotsim-core/internal/metrics"
	"github.com/nerrad567/iotsim-core/internal/runstore"
	"github.com/nerrad567/iotsim-core/internal/sim"
)

// storeWriteTimeout bounds run-store writes made from run callbacks.
const storeWriteTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulator control server",
	Long: `Serve starts the long-running control server: the HTTP REST API for
run control and history, the WebSocket snapshot stream for dashboards,
and optional mirrors of run metrics to InfluxDB and a real MQTT broker.

The server runs one simulation at a time; runs are started via
POST /api/v1/runs and recorded in the SQLite run store.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serve is the actual daemon logic, separated from the cobra handler for
// testability. Returning an error lets Execute handle exit codes
// consistently.
func serve(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting iotsim",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", path)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the run store database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	store := runstore.New(db)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect the MQTT mirror (optional)
	var mirrorClient *mirror.Client
	if cfg.Mirror.Enabled {
		mirrorClient, err = mirror.Connect(cfg.Mirror)
		if err != nil {
			return fmt.Errorf("connecting MQTT mirror: %w", err)
		}
		defer func() {
			log.Info("disconnecting MQTT mirror")
			if closeErr := mirrorClient.Close(); closeErr != nil {
				log.Error("error closing MQTT mirror", "error", closeErr)
			}
		}()
		mirrorClient.SetLogger(log)
		mirrorClient.SetOnConnect(func() {
			log.Info("MQTT mirror reconnected")
		})
		mirrorClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT mirror disconnected", "error", err)
		})
		log.Info("MQTT mirror connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Mirror.Broker.Host, cfg.Mirror.Broker.Port),
			"client_id", cfg.Mirror.Broker.ClientID,
		)
	} else {
		log.Info("MQTT mirror disabled")
	}

	// Run controller and WebSocket hub
	controller := sim.NewController(log)
	hub := api.NewHub(cfg.API.WebSocket, log)
	go hub.Run(ctx)

	wireRunEvents(controller, store, hub, influxClient, mirrorClient, log)

	// Operators can inject broker outages by publishing to the mirror's
	// control topic (e.g. with mosquitto_pub).
	if mirrorClient != nil {
		if subErr := mirrorClient.SubscribeFailover(controller.TriggerFailover); subErr != nil {
			return fmt.Errorf("subscribing to failover control: %w", subErr)
		}
	}

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		Logger:      log,
		Controller:  controller,
		Store:       store,
		BaseConfig:  cfg,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server listening",
		"addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"ws_path", cfg.API.WebSocket.Path,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, influxClient, mirrorClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Stop any active run so its record is finalised before the store closes.
	if controller.IsRunning() {
		if stopErr := controller.Stop(); stopErr != nil {
			log.Error("error stopping active run", "error", stopErr)
		}
	}

	log.Info("iotsim stopped")
	return nil
}

// wireRunEvents connects the controller's run lifecycle to the run store,
// the WebSocket hub, and the optional metric sinks.
//
// Snapshot callbacks run on the simulation goroutine; everything here must
// return quickly. The InfluxDB writes are batched and non-blocking, the hub
// broadcast drops messages for slow clients, and the mirror publishes are
// fire-and-forget at the broker.
func wireRunEvents(
	controller *sim.Controller,
	store *runstore.Store,
	hub *api.Hub,
	influxClient *influxdb.Client,
	mirrorClient *mirror.Client,
	log *logging.Logger,
) {
	controller.OnStart = func(runID string, scenario sim.Scenario) {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		defer cancel()
		if err := store.CreateRun(ctx, runID, scenario.Name, scenario.Seed); err != nil {
			log.Error("recording run start", "run_id", runID, "error", err)
		}
		if mirrorClient != nil {
			if err := mirrorClient.PublishRunStatus(runID, string(sim.StatusRunning)); err != nil {
				log.Warn("mirroring run status", "run_id", runID, "error", err)
			}
		}
	}

	controller.OnSnapshot = func(runID string, snap metrics.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		defer cancel()
		if err := store.InsertSnapshot(ctx, runID, snap); err != nil {
			log.Error("persisting snapshot", "run_id", runID, "t", snap.Timestamp, "error", err)
		}

		hub.Broadcast(api.ChannelRunSnapshot, map[string]any{
			"run_id":   runID,
			"snapshot": snap,
		})

		if influxClient != nil {
			influxClient.WriteSnapshot(runID, snap)
		}
		if mirrorClient != nil {
			if err := mirrorClient.PublishSnapshot(runID, snap); err != nil {
				log.Warn("mirroring snapshot", "run_id", runID, "error", err)
			}
		}
	}

	controller.OnComplete = func(runID string, result sim.Result, runErr error) {
		status := runstore.StatusCompleted
		switch {
		case runErr != nil:
			status = runstore.StatusFailed
		case result.Stopped:
			status = runstore.StatusStopped
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		defer cancel()
		if err := store.FinishRun(ctx, runID, status, result.Summary); err != nil {
			log.Error("recording run completion", "run_id", runID, "error", err)
		}

		hub.Broadcast(api.ChannelRunCompleted, map[string]any{
			"run_id":  runID,
			"status":  status,
			"summary": result.Summary,
		})

		if influxClient != nil && len(result.Snapshots) > 0 {
			final := result.Snapshots[len(result.Snapshots)-1]
			for clientID, energyMJ := range final.EnergyPerClient {
				influxClient.WriteClientEnergy(runID, clientID, energyMJ)
			}
			influxClient.Flush()
		}

		if mirrorClient != nil {
			if err := mirrorClient.PublishSummary(runID, result.Summary); err != nil {
				log.Warn("mirroring summary", "run_id", runID, "error", err)
			}
			if err := mirrorClient.PublishRunStatus(runID, status); err != nil {
				log.Warn("mirroring run status", "run_id", runID, "error", err)
			}
		}

		log.Info("run finished",
			"run_id", runID,
			"status", status,
			"delivery_ratio", result.Summary.DeliveryRatio,
			"avg_latency_ms", result.Summary.AvgLatencyMS,
		)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients may be nil when their feature is disabled.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client, mirrorClient *mirror.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if mirrorClient != nil {
		if err := mirrorClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
	}
	return nil
}
