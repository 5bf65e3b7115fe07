package app

import (
	"errors"
	"fmt"
	"os"

	"upload-server-go/internal/config"
	"upload-server-go/internal/files"
	"upload-server-go/internal/logger"
	"upload-server-go/internal/observability"
	"upload-server-go/internal/sentryx"
	"upload-server-go/internal/stream"
	"upload-server-go/internal/workspace"
)

const serviceName = "upload-server"

// ServerApp holds all runtime dependencies for the upload server.
type ServerApp struct {
	Config      *config.AppConfig
	Root        workspace.StorageRoot
	Metrics     *observability.Metrics
	Service     *files.Service
	FileHandler *files.Handler
	WSHandler   *stream.Handler
	Logger      *logger.Logger
}

// ConfigureLogging initializes the base logger from cfg.
func ConfigureLogging(cfg *config.AppConfig) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger.Init(logger.Config{
		Output:   os.Stdout,
		MinLevel: level,
		JSON:     cfg.LogFormat == "json",
	})
	return nil
}

// New builds a fully wired server application.
func New(cfg *config.AppConfig) (*ServerApp, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if err := ConfigureLogging(cfg); err != nil {
		return nil, err
	}
	log := logger.WithComponent("MAIN")

	if err := sentryx.Init(serviceName, cfg.SentryDSN, cfg.Env); err != nil {
		log.Warn("Sentry disabled: %v", err)
	}

	root, err := workspace.NewStorageRoot(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}

	log.Info("Environment: %s", cfg.Env)
	log.Info("Listen address: %s", cfg.Addr())
	log.Info("Storage root: %s", root.Path())
	log.Info("Create parents: %v", cfg.CreateParents)
	if sentryx.Enabled() {
		log.Info("Sentry error reporting enabled")
	}

	metrics := observability.NewMetrics()
	service := files.NewService(workspace.NewResolver(root), files.ServiceOptions{
		FileMode:      cfg.FileMode,
		CreateParents: cfg.CreateParents,
		Metrics:       metrics,
	})

	return &ServerApp{
		Config:      cfg,
		Root:        root,
		Metrics:     metrics,
		Service:     service,
		FileHandler: files.NewHandler(service, cfg.Env),
		WSHandler:   stream.NewHandler(service),
		Logger:      log,
	}, nil
}

// Run initializes and starts the server until shutdown.
func Run(cfg *config.AppConfig) error {
	app, err := New(cfg)
	if err != nil {
		return err
	}
	return app.Run()
}
