package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"payment-orchestrator/internal/config"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// DB exposes the shared pool for the hand-written repositories.
	DB() *sql.DB

	// Gorm returns a gorm handle sharing the same pool.
	Gorm() *gorm.DB

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error
}

type service struct {
	name   string
	db     *sql.DB
	gormDB *gorm.DB
	logger *zap.SugaredLogger
}

func NewPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func New(cfg config.Database, logger *zap.SugaredLogger) (Service, error) {
	db, err := NewPostgres(cfg.DSN())
	if err != nil {
		return nil, err
	}
	return Wrap(cfg.Name, db, logger)
}

// Wrap builds a Service around an existing pool.
func Wrap(name string, db *sql.DB, logger *zap.SugaredLogger) (Service, error) {
	gormDB, err := OpenGorm(db)
	if err != nil {
		return nil, err
	}
	return &service{name: name, db: db, gormDB: gormDB, logger: logger}, nil
}

func OpenGorm(db *sql.DB) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm.Open: %w", err)
	}
	return gormDB, nil
}

func (s *service) DB() *sql.DB { return s.db }

func (s *service) Gorm() *gorm.DB { return s.gormDB }

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		s.logger.Errorw("db down", "err", err)
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

// Close closes the database connection.
func (s *service) Close() error {
	s.logger.Infow("disconnected from database", "database", s.name)
	return s.db.Close()
}
