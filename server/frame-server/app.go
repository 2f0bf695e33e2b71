package main

import (
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/yeti47/framesight/server/core/ccc/db"
	"github.com/yeti47/framesight/server/core/ccc/logging"
	"github.com/yeti47/framesight/server/core/classification"
	"github.com/yeti47/framesight/server/core/config"
	"github.com/yeti47/framesight/server/core/frames"
	"github.com/yeti47/framesight/server/core/pipeline"
	"github.com/yeti47/framesight/server/core/sessions"
	"github.com/yeti47/framesight/server/frame-server/handlers"
	"github.com/yeti47/framesight/server/frame-server/uploads"
)

// app bundles everything the commands need, built once from the config
type app struct {
	cfg          *config.Config
	logger       logging.Logger
	database     *sql.DB
	registry     *prometheus.Registry
	orchestrator *pipeline.Orchestrator
	janitor      *sessions.Janitor
	store        *uploads.Store
	handler      *handlers.UploadHandler
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(cfg *config.Config) (*app, error) {
	logger := logging.CreateLogger(logging.LogLevel(cfg.LogLevel), cfg.LogPath, "frame-server")

	ledger := sessions.NopLedger
	var database *sql.DB
	if cfg.DatabasePath != "" {
		var err error
		database, err = db.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		sqliteLedger, err := sessions.NewSQLiteLedger(database)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to create session ledger: %w", err)
		}
		ledger = sqliteLedger
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	extractor := frames.NewExtractor(logger, newDecoder(cfg, logger), frames.ExtractorSettings{
		FrameRate: cfg.Decoder.FrameRate,
		Timeout: frames.TimeoutPolicy{
			Base:           cfg.DecodeBaseTimeout(),
			PerVideoSecond: cfg.DecodeTimeoutPerVideoSecond(),
			Max:            cfg.DecodeMaxTimeout(),
		},
	})

	classifier := classification.NewHTTPClassifier(logger, classification.Settings{
		URL:       cfg.Classifier.URL,
		FieldName: cfg.Classifier.FieldName,
		ResultKey: cfg.Classifier.ResultKey,
		Timeout:   cfg.ClassifierTimeout(),
	})

	orchestrator := pipeline.NewOrchestrator(
		logger,
		sessions.NewDirectoryAllocator(logger),
		extractor,
		classifier,
		ledger,
		pipeline.NewMetrics(registry),
		pipeline.Settings{
			EmptyFramePolicy:  cfg.Pipeline.EmptyFramePolicy,
			MaxConcurrentJobs: cfg.Pipeline.MaxConcurrentJobs,
		},
	)

	store := uploads.NewStore(logger, cfg.UploadDir)

	return &app{
		cfg:          cfg,
		logger:       logger,
		database:     database,
		registry:     registry,
		orchestrator: orchestrator,
		janitor:      sessions.NewJanitor(logger, ledger, cfg.FramesDir(), cfg.JanitorStaleAfter(), cfg.JanitorInterval()),
		store:        store,
		handler:      handlers.NewUploadHandler(logger, store, orchestrator, cfg.FramesDir()),
	}, nil
}

func newDecoder(cfg *config.Config, logger logging.Logger) frames.Decoder {
	if cfg.Decoder.Backend == config.DecoderBackendCommand {
		return frames.NewCommandDecoder(logger, cfg.Decoder.Command, cfg.Decoder.Args)
	}
	return frames.NewFFmpegDecoder(logger)
}

func (a *app) Close() {
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Warn("Failed to close database", "error", err)
		}
	}
}
