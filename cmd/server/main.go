package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diapredict-server/internal/api"
	"github.com/diapredict-server/internal/config"
	"github.com/diapredict-server/internal/database"
	"github.com/diapredict-server/internal/domain"
	"github.com/diapredict-server/internal/report"
	"github.com/diapredict-server/internal/repository"
	"github.com/diapredict-server/internal/service"
	"github.com/diapredict-server/pkg/model"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting DiaPredict server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	predictor, err := model.NewHTTPPredictor(model.Config{
		BaseURL:            cfg.Model.BaseURL,
		Timeout:            cfg.Model.Timeout,
		CacheSize:          cfg.Model.CacheSize,
		BreakerMaxRequests: cfg.Model.BreakerMaxFails,
		BreakerInterval:    cfg.Model.BreakerInterval,
		BreakerTimeout:     cfg.Model.BreakerOpenPeriod,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create model client")
	}

	store, err := newStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize evaluation store")
	}
	if store != nil {
		defer store.Close()
	}

	evaluations := service.NewEvaluationService(logger, predictor, service.NewClinicalRuleEngine(logger), store)
	compiler := report.NewPDFCompiler(logger, nil)

	server := api.NewServer(configManager, logger, evaluations, compiler)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	return logger
}

// newStore builds the evaluation store for the configured driver. A "none"
// driver disables history persistence.
func newStore(ctx context.Context, cfg domain.StorageConfig, logger *logrus.Logger) (domain.EvaluationStore, error) {
	switch cfg.Driver {
	case "sqlite":
		return repository.NewSQLiteStore(cfg.SQLite.Path)
	case "postgres":
		db, err := database.NewConnection(ctx, database.Config{
			Host:        cfg.Postgres.Host,
			Port:        cfg.Postgres.Port,
			Database:    cfg.Postgres.Database,
			Username:    cfg.Postgres.Username,
			Password:    cfg.Postgres.Password,
			MaxConns:    cfg.Postgres.MaxConns,
			MinConns:    cfg.Postgres.MinConns,
			MaxConnLife: cfg.Postgres.ConnMaxLifetime,
			MaxConnIdle: cfg.Postgres.ConnMaxIdleTime,
			SSLMode:     cfg.Postgres.SSLMode,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return repository.NewPostgresStore(db.Pool, logger), nil
	case "none":
		logger.Warn("Evaluation history persistence disabled")
		return nil, nil
	default:
		return repository.NewSQLiteStore(cfg.SQLite.Path)
	}
}
