//go:build alternative_driver

package store

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// GetDriver is pure Go, build with -tags alternative_driver where CGO is unavailable
func GetDriver(dsn string, gormConfig *gorm.Config) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), gormConfig)
}
