// Package storagetest opens throwaway SQLite databases migrated with the
// production schema.
package storagetest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB returns an in-memory database private to tb.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := storage.Migrate(db); err != nil {
		tb.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// Store returns a storage service over a fresh database.
func Store(tb testing.TB) *storage.Service {
	tb.Helper()
	return storage.NewStorageService(DB(tb))
}

// CreateUser inserts a user with a placeholder credential hash.
func CreateUser(tb testing.TB, s storage.Storage, name, email string) *models.User {
	tb.Helper()
	user := &models.User{Name: name, Email: email, PasswordHash: "x"}
	if err := s.CreateUser(context.Background(), user); err != nil {
		tb.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}
