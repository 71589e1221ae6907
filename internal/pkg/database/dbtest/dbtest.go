// Package dbtest provides throwaway SQLite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AutoClub/internal/pkg/config"
	"github.com/ManuelReschke/AutoClub/internal/pkg/database"
	"github.com/ManuelReschke/AutoClub/internal/pkg/sequence"
)

// Config returns a SQLite configuration pointing into the test's temp dir.
func Config(t testing.TB) config.DBConfig {
	t.Helper()
	return config.DBConfig{
		Driver:         "sqlite",
		Path:           filepath.Join(t.TempDir(), "autoclub.db"),
		ConnectRetries: 1,
	}
}

// Open returns a migrated database that is closed when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	return OpenWithStart(t, sequence.DefaultStart)
}

// OpenWithStart is Open with a custom first membership number.
func OpenWithStart(t testing.TB, start int64) *gorm.DB {
	t.Helper()

	db, err := database.Open(Config(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, database.Migrate(context.Background(), db, start))
	return db
}
