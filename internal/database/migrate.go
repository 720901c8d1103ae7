package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the relational schema at dsn up to date. It uses its own
// connection, which is closed before returning.
func Migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("error opening postgres: %w", err)
	}
	defer db.Close()

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("error reading migrations: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("error creating migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("error creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations: %w", err)
	}
	return nil
}

// EnsureIndexes creates the document store indexes. Each content record is
// owned by exactly one metadata row.
func EnsureIndexes(ctx context.Context, contents *mongo.Collection) error {
	_, err := contents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pg_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("pg_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("error creating content indexes: %w", err)
	}
	return nil
}
