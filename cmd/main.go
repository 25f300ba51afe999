package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rryowa/lms_session/internal/client"
	"github.com/rryowa/lms_session/internal/migrations"
	"github.com/rryowa/lms_session/internal/monitor"
	"github.com/rryowa/lms_session/internal/service"
	"github.com/rryowa/lms_session/internal/storage"
	memorystore "github.com/rryowa/lms_session/internal/storage/memory"
	redisstore "github.com/rryowa/lms_session/internal/storage/redis"
	sqlitestore "github.com/rryowa/lms_session/internal/storage/sqlite"
	"github.com/rryowa/lms_session/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := util.NewZapLogger()

	store, cleanup, err := buildStore(logger, util.NewStoreConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	defer cleanup()

	sessionCfg := util.NewSessionConfig()
	authClient := client.NewAuthClient(util.NewClientConfig(), logger)

	sessions := service.NewSessionService(
		authClient,
		store,
		&logNotifier{log: logger},
		&logNavigator{log: logger},
		sessionCfg,
		logger,
	)
	if err := sessions.Restore(ctx); err != nil {
		logger.Warnf("Could not restore persisted session: %v", err)
	}

	mon := monitor.New(sessions, sessionCfg, logger)
	mon.Start(ctx)
	logger.Infof("Session agent started")

	<-ctx.Done()
	mon.Stop()
	logger.Info("Session agent shut down")
}

func buildStore(logger *zap.SugaredLogger, cfg *util.StoreConfig) (storage.CredentialStore, func(), error) {
	switch cfg.Backend {
	case "memory":
		return memorystore.NewCredentialStore(), func() {}, nil

	case "sqlite":
		db, cleanup, err := util.NewSQLiteConnection(logger, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := migrations.RunMigrations(db, logger); err != nil {
			cleanup()
			return nil, nil, err
		}
		return sqlitestore.NewCredentialStore(db), cleanup, nil

	case "redis":
		redisClient, cleanup, err := util.NewRedisClient(logger, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return redisstore.NewCredentialStore(redisClient), cleanup, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend: %q", cfg.Backend)
}

// logNotifier stands in for the UI toast channel when the agent runs
// headless.
type logNotifier struct {
	log *zap.SugaredLogger
}

func (n *logNotifier) Notify(message string) {
	n.log.Infof("notification: %s", message)
}

type logNavigator struct {
	log *zap.SugaredLogger
}

func (n *logNavigator) NavigateTo(path string) {
	n.log.Infof("navigate: %s", path)
}
