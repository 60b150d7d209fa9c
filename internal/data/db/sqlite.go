package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

// SQLiteService backs single-instance deployments and tests. Writers are serialized
// through a single connection, which also gives the event log its total order.
type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteService(logg *logger.Logger, path string) (*SQLiteService, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("missing sqlite path")
	}
	db, err := OpenSQLite(path, newGormLogger())
	if err != nil {
		return nil, err
	}
	serviceLog := logg.With("service", "SQLiteService")
	serviceLog.Info("Opened SQLite database", "path", path)
	return &SQLiteService{db: db, log: serviceLog}, nil
}

// OpenSQLite opens path (a file or a "file:...?mode=memory" DSN) with a single connection.
func OpenSQLite(path string, gl gormLogger.Interface) (*gorm.DB, error) {
	if gl == nil {
		gl = gormLogger.Default.LogMode(gormLogger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return nil, fmt.Errorf("sqlite busy_timeout: %w", err)
	}
	return db, nil
}

func (s *SQLiteService) DB() *gorm.DB { return s.db }

func (s *SQLiteService) AutoMigrateAll() error { return AutoMigrateAll(s.db) }

func (s *SQLiteService) Close() error { return closeDB(s.db) }
