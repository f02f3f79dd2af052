package store

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"

	"github.com/lib/pq"
)

func connectDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func databaseDoesNotExist(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 3D000: invalid_catalog_name
		return string(pqErr.Code) == "3D000"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") && strings.Contains(msg, "database")
}

func ensureDatabaseExists(ctx context.Context, databaseURL, maintenanceDB string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return err
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if strings.TrimSpace(dbName) == "" {
		return errors.New("DATABASE_URL missing database name")
	}

	maint := *u
	maint.Path = "/" + strings.TrimSpace(maintenanceDB)
	maintDB, err := connectDB(ctx, maint.String())
	if err != nil {
		return err
	}
	defer maintDB.Close()

	var exists int
	err = maintDB.QueryRowContext(ctx, "SELECT 1 FROM pg_database WHERE datname = $1", dbName).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		exists = 0
		err = nil
	}
	if err != nil {
		return err
	}
	if exists == 1 {
		return nil
	}

	_, err = maintDB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName))
	return err
}

// Open connects to Postgres. With autoCreate set, a missing database is
// created through the maintenance database first.
func Open(ctx context.Context, databaseURL string, autoCreate bool, maintenanceDB string) (*sql.DB, error) {
	db, err := connectDB(ctx, databaseURL)
	if err != nil && autoCreate && databaseDoesNotExist(err) {
		if err2 := ensureDatabaseExists(ctx, databaseURL, maintenanceDB); err2 != nil {
			return nil, err2
		}
		db, err = connectDB(ctx, databaseURL)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}
