package store

import (
	"context"
	"fmt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"os"
	"path/filepath"
	"set-tools/config"
	"set-tools/models"
	"sync"
)

// Store is the record store of one project. Writes are serialized so a
// document's fields and tracks always change as one unit.
type Store struct {
	DB         *gorm.DB
	writeMutex sync.Mutex
}

// OpenForProject opens (creating if needed) <project>/.<tool>/db/<file>.
func OpenForProject(c *config.Config, projectPath string) (*Store, error) {
	dbPath := c.DBPath(projectPath)

	err := os.MkdirAll(filepath.Dir(dbPath), 0750)

	if err != nil {
		return nil, err
	}

	return Open(dbPath, c.IsDebug)
}

func Open(dsn string, isDebug bool) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(getLogLevel(isDebug)),
	}

	db, err := GetDriver(dsn, gormConfig)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	sqlDB, err := db.DB()

	if err != nil {
		return nil, err
	}

	// sqlite allows one writer; a single connection avoids busy errors
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Project{},
		&models.ProjectItem{},
		&models.Track{},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to migrate the database: %w", err)
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}

	sqlDB, err := s.DB.DB()

	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func getLogLevel(isDebug bool) logger.LogLevel {
	if isDebug {
		return logger.Info
	}

	return logger.Silent
}

func (s *Store) db(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.DB == nil {
		return nil, ErrStoreUnavailable
	}

	return s.DB.WithContext(ctx), nil
}

// write runs fn in a transaction while holding the writer lock.
func (s *Store) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db, err := s.db(ctx)

	if err != nil {
		return err
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	return db.Transaction(fn)
}
