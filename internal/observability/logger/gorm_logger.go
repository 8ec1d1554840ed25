package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the gorm to zap bridge.
type GormLoggerConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        200 * time.Millisecond,
		IgnoreRecordNotFound: true,
	}
}

// GormLogger writes gorm diagnostics and statement traces to zap. Failed
// statements log at error, slow ones at warn and the rest at debug.
type GormLogger struct {
	log *zap.Logger
	cfg GormLoggerConfig
}

func NewGormLogger(base *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &GormLogger{log: base.Named("gorm"), cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.printf(ctx, gormlogger.Info, msg, args)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.printf(ctx, gormlogger.Warn, msg, args)
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.printf(ctx, gormlogger.Error, msg, args)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	level, ok := l.traceLevel(time.Since(begin), err)
	if !ok {
		return
	}

	ce := WithContext(ctx, l.log).Check(level, "gorm.query")
	if ce == nil {
		return
	}
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", statementKind(sql)),
		zap.Duration("elapsed", time.Since(begin)),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// ParamsFilter drops bound values so message content never reaches the logs.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) traceLevel(elapsed time.Duration, err error) (zapcore.Level, bool) {
	switch {
	case l.cfg.Level <= gormlogger.Silent:
		return 0, false
	case err != nil && l.cfg.Level >= gormlogger.Error:
		if l.cfg.IgnoreRecordNotFound && errors.Is(err, gormlogger.ErrRecordNotFound) {
			return 0, false
		}
		return zapcore.ErrorLevel, true
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		return zapcore.WarnLevel, true
	case l.cfg.Level >= gormlogger.Info:
		return zapcore.DebugLevel, true
	}
	return 0, false
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, msg string, args []interface{}) {
	if l.cfg.Level < min {
		return
	}
	level := zapcore.InfoLevel
	switch min {
	case gormlogger.Warn:
		level = zapcore.WarnLevel
	case gormlogger.Error:
		level = zapcore.ErrorLevel
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	if ce := WithContext(ctx, l.log).Check(level, msg); ce != nil {
		ce.Write()
	}
}

func statementKind(sql string) string {
	for _, token := range strings.Fields(sql) {
		switch kind := strings.ToUpper(strings.Trim(token, "();")); kind {
		case "SELECT", "INSERT", "UPDATE", "DELETE", "WITH":
			return kind
		}
	}
	return "OTHER"
}

var _ gormlogger.Interface = (*GormLogger)(nil)
