package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/config"
	"github.com/ManuelReschke/AutoClub/internal/pkg/logging"
	"github.com/ManuelReschke/AutoClub/internal/pkg/sequence"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

// sqlitePragmas turn on foreign keys and let concurrent sessions wait for
// the write lock instead of failing immediately.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// SetupDatabase connects to the configured store, registers the write
// callbacks, creates missing tables and seeds the membership sequence.
func SetupDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*gorm.DB, error) {
	db, err := Open(cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, cfg.Sequence.Start); err != nil {
		return nil, err
	}
	return db, nil
}

// Open connects to the store, retrying while it is unreachable.
func Open(cfg config.DBConfig, logger zerolog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	retries := max(cfg.ConnectRetries, 1)
	var db *gorm.DB
	for i := 0; i < retries; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger: logging.NewGormLogger(logger, cfg.SlowThreshold),
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		if err == nil {
			break
		}

		logger.Warn().Err(err).Int("attempt", i+1).Int("max_attempts", retries).Msg("failed to connect to database")
		if i < retries-1 {
			logger.Info().Dur("delay", cfg.RetryDelay).Msg("retrying database connection")
			time.Sleep(cfg.RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("database: connect %s: %w", cfg.Driver, storeerr.Classify(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: pool: %w", err)
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

	if err := RegisterCallbacks(db); err != nil {
		return nil, err
	}
	return db, nil
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		return mysql.New(mysql.Config{
			DSN:                       cfg.DSN(), // data source name
			DefaultStringSize:         256,       // default size for string fields
			DisableDatetimePrecision:  true,      // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,      // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,      // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false,     // auto configure based on currently MySQL version
		}), nil
	case "postgres":
		return postgres.New(postgres.Config{DSN: cfg.DSN()}), nil
	case "sqlite":
		return sqlite.Open(SQLiteDSN(cfg.DSN())), nil
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}
}

// SQLiteDSN appends the pragmas the session layer relies on to a SQLite path.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqlitePragmas
}

// Migrate creates or updates every table and seeds the membership sequence.
func Migrate(ctx context.Context, db *gorm.DB, sequenceStart int64) error {
	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("database: migrate: %w", storeerr.Classify(err))
	}
	if err := sequence.Seed(ctx, db, sequenceStart); err != nil {
		return fmt.Errorf("database: seed sequence: %w", err)
	}
	return nil
}

// Ping checks that the store answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", storeerr.ErrStoreUnavailable, err)
	}
	return nil
}
