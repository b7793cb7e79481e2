package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/geappliances-bridge/migrations"

	"github.com/nerrad567/geappliances-bridge/internal/api"
	"github.com/nerrad567/geappliances-bridge/internal/bridge"
	"github.com/nerrad567/geappliances-bridge/internal/discovery"
	"github.com/nerrad567/geappliances-bridge/internal/entity"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/config"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/database"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/geappliances-bridge/internal/metaerd"
	"github.com/nerrad567/geappliances-bridge/internal/schema"
)

// serve wires every component and blocks until ctx is cancelled.
// Components shut down in reverse order through the defer chain.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting geabridge",
		"version", version,
		"commit", commit,
		"build_date", date,
		"site", cfg.Site.ID,
	)

	docs, err := loadDocuments(cfg.Appliance)
	if err != nil {
		return err
	}
	log.Info("appliance documents loaded",
		"erds", docs.definitions.Len(),
		"meta_table", docs.meta != nil,
	)

	// Database
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
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", db.Path())

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New()
	if regErr := m.Register(registry); regErr != nil {
		return fmt.Errorf("registering metrics: %w", regErr)
	}

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"namespace", cfg.MQTT.Namespace,
	)

	br, err := bridge.New(bridge.Options{
		MQTT:   mqttClient,
		Topics: mqttClient.Topics(),
		QoS:    mqttClient.QoS(),
		Logger: log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	// Store, schema and entities. The bridge is the store's outbound transport.
	store := erd.NewStore(br)
	store.SetLogger(log.Component("store"))

	resolver := schema.NewResolver(docs.definitions, store)
	resolver.SetLogger(log.Component("schema"))

	entities := entity.NewRegistry(store, entity.NewSQLiteRepository(db.DB))
	entities.SetLogger(log.Component("entity"))
	entities.SetMetrics(m)

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
		entities.SetStateSink(influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	engine, err := discovery.New(discovery.Options{
		Store:    store,
		Resolver: resolver,
		Registry: entities,
		Manifest: docs.manifest,
		Metrics:  m,
		Logger:   log.Component("discovery"),
	})
	if err != nil {
		return fmt.Errorf("creating discovery engine: %w", err)
	}

	if docs.meta != nil {
		coordinator, coordErr := metaerd.NewCoordinator(docs.meta, docs.definitions, docs.manifest, store, entities)
		if coordErr != nil {
			return fmt.Errorf("creating meta ERD coordinator: %w", coordErr)
		}
		coordinator.SetLogger(log.Component("metaerd"))
		coordinator.SetMetrics(m)
		engine.SetMetaCoordinator(coordinator)
	}

	br.SetHandler(engine)
	if startErr := br.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer br.Stop()
	log.Info("bridge started", "subscription", mqttClient.Topics().AllDevices())

	// HTTP API
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Store:    store,
			Entities: entities,
			MQTT:     mqttClient,
			Database: db,
			Devices:  engine,
			Gatherer: registry,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}
