// FleetCore - Branch Device Fleet Platform
//
// This is the main entry point for the FleetCore application.
// FleetCore tracks the device fleet of a bank branch network:
//   - Device registration and lifecycle management
//   - Status transitions with a durable audit trail
//   - Fault reporting and alerting over MQTT
//   - Warranty, fault and branch health analytics
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/oakline/fleetcore/migrations"

	"github.com/oakline/fleetcore/internal/audit"
	"github.com/oakline/fleetcore/internal/device"
	"github.com/oakline/fleetcore/internal/infrastructure/config"
	"github.com/oakline/fleetcore/internal/infrastructure/database"
	"github.com/oakline/fleetcore/internal/infrastructure/influxdb"
	"github.com/oakline/fleetcore/internal/infrastructure/logging"
	"github.com/oakline/fleetcore/internal/infrastructure/mqtt"
	"github.com/oakline/fleetcore/internal/ingest"
	"github.com/oakline/fleetcore/internal/notify"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting FleetCore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
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

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled, fault alerts and fleet reports are off")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the device service with its audit and notification sinks
	svc := buildDeviceService(db, mqttClient, influxClient, cfg, log)

	// Listen for fault reports from branch monitors
	if mqttClient != nil {
		listener := ingest.NewFaultReportListener(mqttClient, svc, byte(cfg.MQTT.QoS))
		listener.SetLogger(log)
		if startErr := listener.Start(ctx); startErr != nil {
			return fmt.Errorf("starting fault report listener: %w", startErr)
		}
		defer func() {
			log.Info("stopping fault report listener")
			listener.Stop()
		}()
	}

	// Start the periodic fleet status reporter
	if cfg.Reporter.Enabled && (mqttClient != nil || influxClient != nil) {
		go runReporter(ctx, svc, mqttClient, influxClient, cfg, log)
		log.Info("fleet reporter started", "interval", cfg.GetReporterInterval())
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Fault report listener
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("FleetCore stopped")
	return nil
}

// buildDeviceService wires the device service to its storage, audit trail,
// fault alerting and telemetry.
//
// Parameters:
//   - db: Open database handle
//   - mqttClient: MQTT client, or nil when disabled
//   - influxClient: InfluxDB client, or nil when disabled
//   - cfg: Application configuration
//   - log: Logger instance
//
// Returns:
//   - *device.Service: Fully wired service
func buildDeviceService(db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, cfg *config.Config, log *logging.Logger) *device.Service {
	store := device.NewSQLiteStore(db.DB)
	faults := device.NewSQLiteFaultSource(db.DB)

	// Audit trail: SQLite is the durable record, InfluxDB mirrors
	// transitions best-effort for dashboards.
	var auditSink device.AuditSink = audit.NewRecorder(audit.NewSQLiteRepository(db.DB))
	if influxClient != nil {
		auditSink = &auditTee{primary: auditSink, influx: influxClient}
	}

	// Fault alerts go out over MQTT, mirrored to InfluxDB when enabled.
	var notifySink device.NotificationSink
	if mqttClient != nil {
		pub := notify.NewFaultPublisher(mqttClient)
		pub.SetLogger(log)
		notifySink = pub
	}
	if influxClient != nil {
		notifySink = &notifyTee{primary: notifySink, influx: influxClient}
	}

	svc := device.NewService(store, faults, auditSink, notifySink)
	svc.SetLogger(log)
	svc.SetWarrantyLookahead(cfg.Warranty.LookaheadDays)
	return svc
}

// fleetReport is the payload published to the retained fleet status topic.
type fleetReport struct {
	FleetID      string               `json:"fleet_id"`
	TotalDevices int64                `json:"total_devices"`
	Online       int64                `json:"online"`
	OnlineRate   string               `json:"online_rate"`
	Distribution []device.StatusCount `json:"distribution"`
	At           time.Time            `json:"at"`
}

// runReporter periodically publishes a fleet availability snapshot.
//
// Each tick computes fleet statistics and fans them out to the retained
// MQTT fleet status topic and the InfluxDB fleet gauge. Runs until the
// context is cancelled.
func runReporter(ctx context.Context, svc *device.Service, mqttClient *mqtt.Client, influxClient *influxdb.Client, cfg *config.Config, log *logging.Logger) {
	ticker := time.NewTicker(cfg.GetReporterInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publishFleetReport(ctx, svc, mqttClient, influxClient, cfg, log)
		}
	}
}

// publishFleetReport computes and publishes a single fleet snapshot.
func publishFleetReport(ctx context.Context, svc *device.Service, mqttClient *mqtt.Client, influxClient *influxdb.Client, cfg *config.Config, log *logging.Logger) {
	stats, err := svc.GetStatistics(ctx)
	if err != nil {
		log.Error("fleet report failed", "error", err)
		return
	}

	var online int64
	for _, sc := range stats.StatusDistribution {
		if sc.Status == device.StatusOnline {
			online = sc.Count
		}
	}

	if mqttClient != nil {
		report := fleetReport{
			FleetID:      cfg.Fleet.ID,
			TotalDevices: stats.TotalDevices,
			Online:       online,
			OnlineRate:   stats.OnlineRate,
			Distribution: stats.StatusDistribution,
			At:           stats.LastUpdateTime,
		}
		payload, marshalErr := json.Marshal(report)
		if marshalErr != nil {
			log.Error("fleet report marshal failed", "error", marshalErr)
			return
		}
		if pubErr := mqttClient.PublishRetained(mqtt.Topics{}.FleetStatus(), payload); pubErr != nil {
			log.Error("fleet report publish failed", "error", pubErr)
		}
	}

	if influxClient != nil {
		ratio := 0.0
		if stats.TotalDevices > 0 {
			ratio = float64(online) / float64(stats.TotalDevices)
		}
		influxClient.WriteFleetGauge(int(stats.TotalDevices), int(online), ratio)
	}
}

// getConfigPath returns the configuration file path.
// Uses FLEETCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLEETCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// auditTee records transitions durably and mirrors them to InfluxDB.
// The SQLite record is authoritative: a telemetry write never fails the
// transition, and the mirror is skipped when the primary record fails.
type auditTee struct {
	primary device.AuditSink
	influx  *influxdb.Client
}

// Record implements device.AuditSink.
func (t *auditTee) Record(ctx context.Context, entry device.AuditEntry) error {
	if err := t.primary.Record(ctx, entry); err != nil {
		return err
	}
	t.influx.WriteStatusChange(entry.DeviceID, "", string(entry.OldStatus), string(entry.NewStatus))
	return nil
}

// notifyTee mirrors fault alerts to InfluxDB alongside the primary sink.
type notifyTee struct {
	primary device.NotificationSink
	influx  *influxdb.Client
}

// NotifyFault implements device.NotificationSink.
func (t *notifyTee) NotifyFault(ctx context.Context, d device.Device, reason string, at time.Time) {
	if t.primary != nil {
		t.primary.NotifyFault(ctx, d, reason, at)
	}
	t.influx.WriteFaultEvent(d.DeviceID, d.Branch, reason)
}
