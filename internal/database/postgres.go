package database

import (
	"fmt"
	"strings"
	"time"

	"zawj-chat/internal/config"
	"zawj-chat/internal/models"
	"zawj-chat/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewSQLConnection opens the relational store selected by cfg.Driver.
func NewSQLConnection(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		AllowGlobalUpdate:                        false,
		// Unique violations surface as gorm.ErrDuplicatedKey on both drivers.
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Database connection established", "driver", cfg.Driver, "host", cfg.Host, "db", cfg.DBName)
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB, log *logger.Logger) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.Connection{},
		&models.BlockedUser{},
		&models.Report{},
	)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			log.Warn("Schema objects already exist, continuing with existing schema", "error", err)
		} else {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	if err := addIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}
	log.Info("Database schema is up to date")
	return nil
}

func addIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		columns []string
	}{
		{"blocked_users", []string{"blocked_user_id"}},
		{"connections", []string{"status"}},
	}

	for _, idx := range indexes {
		for _, column := range idx.columns {
			indexName := fmt.Sprintf("idx_%s_%s", idx.table, column)
			if db.Migrator().HasIndex(idx.table, indexName) {
				continue
			}
			if err := db.Exec(fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
				indexName, idx.table, column)).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
