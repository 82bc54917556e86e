package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// Driver selects the database backend.
type Driver string

const (
	// DriverSQLite is the single-node default.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is used when an external database is configured.
	DriverPostgres Driver = "postgres"
)

// Config is the persistence configuration.
type Config struct {
	Driver Driver
	// Path is the sqlite database file. ":memory:" keeps the store
	// process-local, used by tests.
	Path string
	// DSN is the postgres connection string.
	DSN string
}

// Store is the repository over all chat tables.
type Store struct {
	db *gorm.DB
}

// New opens the database, applies pragmas and runs auto-migration.
func New(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		dsn := cfg.Path
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
			// WAL keeps readers open during the flush writer; busy_timeout
			// covers checkpoint stalls.
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	// Deletions manage child rows explicitly inside transactions; replies
	// to deleted messages keep their dangling ids and render as null.
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return nil, fmt.Errorf("run database migration: %w", err)
	}

	return &Store{db: db}, nil
}

// NewMemory opens an in-process sqlite store. Test helper.
func NewMemory() (*Store, error) {
	return New(Config{Driver: DriverSQLite, Path: ":memory:"})
}

// DB exposes the underlying handle for advanced queries and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueConstraintError matches sqlite and postgres unique violations.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// convertNotFoundError maps gorm.ErrRecordNotFound onto a domain sentinel.
func convertNotFoundError(err, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
