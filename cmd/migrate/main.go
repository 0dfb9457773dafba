package main

import (
	"context"
	"log"

	"zawj-chat/internal/config"
	"zawj-chat/internal/database"
	"zawj-chat/internal/services"
	"zawj-chat/pkg/logger"
)

const schemaVersion = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logg, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logg.Sync()

	logg.Info("Starting database migration...", "driver", cfg.Database.Driver)

	db, err := database.NewSQLConnection(cfg.Database, logg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	if err := database.Migrate(db, logg); err != nil {
		log.Fatal("Migration failed:", err)
	}

	// Recording the state is best effort; Redis may not be running.
	if redisClient, err := database.NewRedisConnection(cfg.Redis, logg); err == nil {
		defer redisClient.Close()
		if err := services.NewRedisService(redisClient, logg).SetMigrationState(context.Background(), schemaVersion, "completed"); err != nil {
			logg.Warn("Failed to record migration state", "error", err)
		}
	}

	logg.Info("Database migration completed successfully!", "version", schemaVersion)
}
