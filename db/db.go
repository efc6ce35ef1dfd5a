package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver
	_ "modernc.org/sqlite"
)

// DriverName maps a storage driver to the database/sql driver name.
func DriverName(storageDriver string) (string, error) {
	switch storageDriver {
	case "postgres":
		return "postgres", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("no SQL driver for storage driver %q", storageDriver)
	}
}

// Connect opens a pool for storageDriver ("postgres" or "sqlite") and pings it within timeout.
func Connect(storageDriver, dsn string, timeout time.Duration) (*sql.DB, error) {
	driver, err := DriverName(storageDriver)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		dsn = withBusyTimeout(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	if driver == "sqlite" {
		// один писатель на файл
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database handle after ping error", slog.Any("error", closeErr))
		}
		return nil, fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	return db, nil
}

func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}
