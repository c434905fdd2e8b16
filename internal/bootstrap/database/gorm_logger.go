package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stmap/internal/bootstrap/logging"
	"stmap/internal/errs"
)

const slowQueryThreshold = 200 * time.Millisecond

// slogGormLogger sends gorm output through the context logger. gorm's default logger
// writes to stdout, which export-to-stdout and the MCP transport both own.
type slogGormLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger() gormlogger.Interface {
	return slogGormLogger{level: gormlogger.Warn, slow: slowQueryThreshold}
}

func (l slogGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	l.level = level
	return l
}

func (l slogGormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		logging.Debug(componentContext(ctx), fmt.Sprintf(msg, args...))
	}
}

func (l slogGormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		logging.Warn(componentContext(ctx), fmt.Sprintf(msg, args...))
	}
}

func (l slogGormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		logging.Error(componentContext(ctx), fmt.Sprintf(msg, args...))
	}
}

// Trace skips gorm.ErrRecordNotFound: a missing kv slot is an empty store.
func (l slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		logging.Error(componentContext(ctx), "sql failed",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.Any("err", errs.Loggable(err)),
		)
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		logging.Warn(componentContext(ctx), "slow sql",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		logging.Debug(componentContext(ctx), "sql", slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed))
	}
}

func componentContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithComponent(ctx, "bootstrap.database.gorm")
}
