package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	Attempts   int
	MaxBackoff time.Duration
	Logger     log.Logger
}

func DefaultOptions() Options {
	return Options{
		Attempts:   15,
		MaxBackoff: 10 * time.Second,
		Logger:     log.NewNopLogger(),
	}
}

// Backoff is the pause after the given 1-based failed attempt: 1s, 2s, 4s...
// capped at max.
func Backoff(attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 31 {
		return max
	}
	wait := time.Duration(1<<uint(attempt-1)) * time.Second
	if wait > max {
		wait = max
	}
	return wait
}

// NewPostgres connects to PostgreSQL, retrying with exponential backoff.
func NewPostgres(ctx context.Context, dsn string, opts Options) (*gorm.DB, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	var err error
	level.Info(opts.Logger).Log("msg", "connecting to database")

	for i := 1; i <= opts.Attempts; i++ {
		var db *gorm.DB
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err == nil {
			sqlDB, dbErr := db.DB()
			if dbErr == nil {
				if err = sqlDB.PingContext(ctx); err == nil {
					level.Info(opts.Logger).Log("msg", "database connected", "attempt", i)
					return db, nil
				}
			} else {
				err = dbErr
			}
		}

		level.Warn(opts.Logger).Log("msg", "database connection failed", "attempt", i, "err", err)
		if i == opts.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(Backoff(i, opts.MaxBackoff)):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", opts.Attempts, err)
}

// AutoMigrateTables creates or updates the tables of the given models.
func AutoMigrateTables(db *gorm.DB, models ...interface{}) error {
	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model: %w", err)
		}
	}
	return nil
}
