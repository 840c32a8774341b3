package database

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Armour007/docproc-backend/internal/config"
)

// DB holds the database connection pool (exported so other packages can use it)
var DB *sqlx.DB

// Connect opens the pool described by cfg, pings it and stores it in DB.
func Connect(ctx context.Context, cfg config.DatabaseConfig) error {
	db, err := sqlx.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	DB = db
	zap.L().Info("connected to the database", zap.String("host", cfg.Host), zap.String("name", cfg.Name))
	return nil
}

// Close releases the pool if one is open.
func Close() {
	if DB == nil {
		return
	}
	if err := DB.Close(); err != nil {
		zap.L().Warn("error closing database connection", zap.Error(err))
		return
	}
	zap.L().Info("database connection closed")
}
