package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fines-service/internal/config"
	"fines-service/internal/repository"
)

// Open connects to the configured database and brings the schema up to
// date. Postgres runs the explicit migration statements; sqlite (dev and
// tests) relies on AutoMigrate.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.Driver {
	case "postgres":
		conn, err := gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := runMigrations(conn); err != nil {
			return nil, err
		}
		return conn, nil

	case "sqlite":
		conn, err := gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := conn.AutoMigrate(&repository.FineRow{}); err != nil {
			return nil, fmt.Errorf("migrate sqlite schema: %w", err)
		}
		return conn, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
