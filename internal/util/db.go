package util

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// NewSQLiteConnection opens the local credential database. The CGO-free
// driver keeps the agent a single static binary.
func NewSQLiteConnection(logger *zap.SugaredLogger, cfg *StoreConfig) (*sql.DB, func(), error) {
	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}

	// The store is single-writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		return nil, nil, err
	}

	logger.Infof("Opened credential database: %s", cfg.SQLitePath)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Errorf("Failed to close credential database: %v", err)
		} else {
			logger.Info("Credential database closed successfully.")
		}
	}

	return db, cleanup, nil
}

func NewRedisClient(logger *zap.SugaredLogger, cfg *StoreConfig) (*redis.Client, func(), error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: "",
		DB:       0,
	})

	logger.Infof("Connected to Redis at %s", cfg.RedisAddr)

	cleanup := func() {
		if err := redisClient.Close(); err != nil {
			logger.Errorf("Failed to close Redis connection: %v", err)
		} else {
			logger.Info("Redis connection closed successfully.")
		}
	}

	return redisClient, cleanup, nil
}
