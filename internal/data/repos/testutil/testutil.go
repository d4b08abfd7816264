package testutil

import (
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/mentora-app/mentora-backend/internal/data/db"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

var (
	dbOnce     sync.Once
	sharedDB   *gorm.DB
	sharedPG   bool
	sharedDBEr error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated test database: postgres when TEST_POSTGRES_DSN is
// set, an in-memory sqlite database otherwise.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		cfg := &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		}

		dsn := os.Getenv("TEST_POSTGRES_DSN")
		var err error
		if dsn != "" {
			sharedPG = true
			sharedDB, err = gorm.Open(postgres.Open(dsn), cfg)
		} else {
			sharedDB, err = gorm.Open(sqlite.Open("file::memory:?cache=shared&_busy_timeout=5000"), cfg)
		}
		if err != nil {
			sharedDBEr = err
			return
		}

		if err := db.AutoMigrateAll(sharedDB); err != nil {
			sharedDBEr = err
			return
		}
	})

	if sharedDBEr != nil {
		tb.Fatalf("failed to init test db: %v", sharedDBEr)
	}
	return sharedDB
}

// IsPostgres reports whether DB(tb) is backed by postgres. Tests that lean on
// concurrent writers skip under sqlite.
func IsPostgres(tb testing.TB) bool {
	tb.Helper()
	_ = DB(tb)
	return sharedPG
}

// Tx opens a transaction that is rolled back when the test finishes, so
// tests never leak rows into each other.
func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
