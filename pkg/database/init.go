package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/lib/pq"
)

// TargetDatabases lists the databases Bookspot needs: the application and
// Casbin databases followed by any extra names from server.databases.
// Empty and repeated names are dropped.
func TargetDatabases(cfg *config.Config) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	add(cfg.Database.DBName)
	add(cfg.CasbinDatabase.DBName)
	for _, name := range cfg.Server.Databases {
		add(name)
	}
	return names
}

// InitializeDatabases creates every database from TargetDatabases that does
// not exist yet, connecting through the server's 'postgres' maintenance
// database. It returns the names it created.
func InitializeDatabases(ctx context.Context, cfg *config.Config) ([]string, error) {
	names := TargetDatabases(cfg)
	if len(names) == 0 {
		return nil, fmt.Errorf("no database names configured")
	}

	conn, err := openSQLDB(FromCentralConfig(cfg.Database).Maintenance())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer conn.Close()

	var created []string
	for _, name := range names {
		ok, err := createDatabaseIfNotExists(ctx, conn, name)
		if err != nil {
			return created, fmt.Errorf("failed to create database %q: %w", name, err)
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

func createDatabaseIfNotExists(ctx context.Context, conn *sql.DB, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var exists bool
	err := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check if database exists: %w", err)
	}
	if exists {
		return false, nil
	}

	// CREATE DATABASE takes no bind parameters.
	if _, err := conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return false, fmt.Errorf("failed to create database: %w", err)
	}
	return true, nil
}
