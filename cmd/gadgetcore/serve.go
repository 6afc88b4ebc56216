package main

import (
	"context"
	"fmt"

	"github.com/imf-gadgets/gadget-core/internal/api"
	"github.com/imf-gadgets/gadget-core/internal/audit"
	"github.com/imf-gadgets/gadget-core/internal/auth"
	"github.com/imf-gadgets/gadget-core/internal/gadget"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/config"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/database"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/influxdb"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/logging"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/mqtt"
	"github.com/imf-gadgets/gadget-core/migrations"
)

// run is the serve loop, separated from the cobra wiring for testability.
// It returns nil on a clean shutdown after ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gadget Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	authSvc, err := newAuthService(cfg, db)
	if err != nil {
		return err
	}
	authSvc.SetLogger(log.With("component", "auth"))

	// Lifecycle event sinks. The hub and metrics are always on; MQTT and
	// InfluxDB are optional.
	hub := api.NewHub(cfg.WebSocket, log)
	metrics := api.NewMetrics(hub.ClientCount)
	sinks := gadget.Sinks{hub, metrics}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		sinks = append(sinks, newMQTTSink(mqttClient, log))
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		sinks = append(sinks, newInfluxSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	gadgetSvc := newGadgetService(cfg.Gadgets, db, sinks)
	gadgetSvc.SetLogger(log.With("component", "gadget"))

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		MetricsConfig: cfg.Metrics,
		Logger:        log,
		Gadgets:       gadgetSvc,
		Auth:          authSvc,
		AuditRepo:     audit.NewSQLiteRepository(db.DB),
		DB:            db,
		Hub:           hub,
		Metrics:       metrics,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("Gadget Core started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"token_ttl", authSvc.Tokens().TTL().String(),
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// loadConfig reads the config named by --config, $GADGETS_CONFIG or the
// default path.
func loadConfig() (*config.Config, error) {
	path, explicit := getConfigPath()
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openDatabase(cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func newAuthService(cfg *config.Config, db *database.DB) (*auth.Service, error) {
	pw := cfg.Security.Password
	hasher, err := auth.NewPasswordHasher(auth.HasherOptions{
		Algorithm: pw.Algorithm,
		Argon2: auth.Argon2Params{
			Time:    pw.Argon2.Time,
			Memory:  pw.Argon2.Memory,
			Threads: pw.Argon2.Threads,
		},
		BcryptCost: pw.BcryptCost,
	})
	if err != nil {
		return nil, fmt.Errorf("creating password hasher: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Security.JWT.Secret, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	return auth.NewService(auth.NewUserRepository(db.DB), hasher, tokens), nil
}

func newGadgetService(cfg config.GadgetsConfig, db *database.DB, events gadget.EventSink) *gadget.Service {
	return gadget.NewService(gadget.NewSQLiteRepository(db.DB), events, gadget.Options{
		CodenamePrefix: cfg.CodenamePrefix,
		MaxNameLength:  cfg.MaxNameLength,
	})
}
