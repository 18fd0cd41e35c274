// Package storetest builds throwaway stores for tests in other packages
package storetest

import (
	"strings"
	"testing"
	"time"

	"bitwise74/account-api/db"
	"bitwise74/account-api/internal/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLite returns a GormStore over a private in-memory SQLite database
// that is closed when the test ends
func NewSQLite(t testing.TB) *store.GormStore {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + gonanoid.Must(8)
	dsn := "file:" + name + "?mode=memory&cache=shared"

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	// Shared-cache memory databases lock whole tables, serialize access
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	s := store.NewGorm(gdb, 5*time.Second)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return s
}
