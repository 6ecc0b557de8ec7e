package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Queries above this duration get logged even when they succeed.
const slowQueryThreshold = 200 * time.Millisecond

const maxLoggedSQLLen = 512

// Client wraps the shared GORM connection.
type Client struct {
	conn *gorm.DB
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New boots a GORM client using the provided configuration. The driver is
// postgres unless the config selects sqlite (demo installs, local smoke runs).
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	if cfg.Driver == config.DriverSQLite {
		dialector = sqlite.Open(cfg.DSN)
	} else {
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		})
	}

	gormCfg := &gorm.Config{
		Logger:                 &queryLogger{logg: logg, slow: slowQueryThreshold},
		SkipDefaultTransaction: true,
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}

	applyPoolSettings(sqlDB, cfg)

	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if logg != nil {
		logg.Info(ctx, "database connection established")
	}

	return &Client{conn: conn}, nil
}

func applyPoolSettings(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the pooled connections.
func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx executes fn inside a transaction, rolling back on error/panic.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}

// queryLogger adapts the service logger to GORM's logging interface. Routine
// statements stay quiet; failed and slow queries come out with row counts and
// the statement itself so they can be traced from the request log.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func (l *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.logg == nil {
		return
	}
	l.logg.Info(ctx, fmt.Sprintf(msg, args...))
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.logg == nil {
		return
	}
	l.logg.Warn(ctx, fmt.Sprintf(msg, args...))
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.logg == nil {
		return
	}
	l.logg.Error(ctx, fmt.Sprintf(msg, args...), nil)
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logg == nil {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		stmt, rows := fc()
		ctx = l.logg.WithFields(ctx, queryFields(stmt, rows, elapsed))
		l.logg.Error(ctx, "query failed", err)
	case elapsed >= l.slow:
		stmt, rows := fc()
		ctx = l.logg.WithFields(ctx, queryFields(stmt, rows, elapsed))
		l.logg.Warn(ctx, "slow query")
	}
}

func queryFields(stmt string, rows int64, elapsed time.Duration) map[string]any {
	if len(stmt) > maxLoggedSQLLen {
		stmt = stmt[:maxLoggedSQLLen] + "..."
	}
	fields := map[string]any{
		"sql":        stmt,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	// GORM reports -1 before a statement produces a row count.
	if rows >= 0 {
		fields["rows"] = rows
	}
	return fields
}
