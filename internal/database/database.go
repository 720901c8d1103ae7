package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"notely/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const contentCollection = "note_contents"

// Service represents a service that interacts with both stores.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Close terminates the database connections.
	Close() error

	// DB is the relational store holding accounts and note metadata.
	DB() *sql.DB

	// Contents is the document collection holding note bodies and tags.
	Contents() *mongo.Collection
}

type service struct {
	db       *sql.DB
	mongo    *mongo.Client
	contents *mongo.Collection
}

// New opens the relational pool and the document store client. Both are
// verified with a ping before New returns.
func New(ctx context.Context, cfg config.Config) (Service, error) {
	db, err := sql.Open("pgx", cfg.DB.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error opening mongo: %w", err)
	}
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = db.Close()
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}

	return &service{
		db:       db,
		mongo:    client,
		contents: client.Database(cfg.MongoDatabase).Collection(contentCollection),
	}, nil
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Contents() *mongo.Collection {
	return s.contents
}

// Health checks the health of both stores. It returns a map with keys
// indicating various health statistics of the relational pool.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("postgres down: %v", err)
		return stats
	}
	if err := s.mongo.Ping(ctx, readpref.Primary()); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("mongo down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 20 {
		stats["message"] = "The database is experiencing heavy load."
	}
	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

func (s *service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mongoErr := s.mongo.Disconnect(ctx)
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("error closing postgres: %w", err)
	}
	return mongoErr
}
