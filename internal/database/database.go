package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"prokipsync/internal/config"
	"prokipsync/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	DB *gorm.DB
}

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func New(cfg config.DatabaseConfig, production bool) (*Database, error) {
	var db *gorm.DB
	var err error

	logLevel := logger.Info
	if production {
		logLevel = logger.Warn
	}
	gormConfig := &gorm.Config{
		Logger:         newGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags), logLevel),
		TranslateError: true,
	}

	if strings.HasPrefix(cfg.URL, "sqlite://") {
		// SQLite for development and tests
		dbPath := strings.TrimPrefix(cfg.URL, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), gormConfig)
	} else {
		// PostgreSQL through the lib/pq driver
		db, err = gorm.Open(postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        cfg.URL,
		}), gormConfig)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &Database{DB: db}, nil
}

// newGormLogger skips "record not found": lookups that may miss are routine.
func newGormLogger(w logger.Writer, level logger.LogLevel) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Connection{},
		&models.ProkipConfig{},
		&models.SalesLog{},
		&models.InventoryCache{},
		&models.InventoryLog{},
		&models.SyncError{},
		&models.WebhookEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err came from a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	// sqlite builds without error translation
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// OpenMemory returns a migrated, private in-memory SQLite database.
func OpenMemory() (*Database, error) {
	return New(config.DatabaseConfig{
		URL:          fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
	}, true)
}
