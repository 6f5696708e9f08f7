package zap

import (
	"context"
	"time"

	"go.uber.org/zap"
	gorml "gorm.io/gorm/logger"
)

// GormLogger adapts a *zap.Logger to gorm's logger.Interface, logging
// every statement at debug and anything over the configured slow
// query threshold at warn — the same two-tier shape as the teacher's
// GormLogger.Trace, with the OTEL/IAM trace-id plumbing stripped since
// crudgate carries no distributed tracing dependency.
type GormLogger struct {
	l        *zap.Logger
	slowTime time.Duration
}

var _ gorml.Interface = (*GormLogger)(nil)

func NewGormLogger(l *zap.Logger, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{l: l, slowTime: slowThreshold}
}

func (g *GormLogger) LogMode(gorml.LogLevel) gorml.Interface { return g }

func (g *GormLogger) Info(_ context.Context, str string, args ...any) {
	g.l.Sugar().Infof(str, args...)
}

func (g *GormLogger) Warn(_ context.Context, str string, args ...any) {
	g.l.Sugar().Warnf(str, args...)
}

func (g *GormLogger) Error(_ context.Context, str string, args ...any) {
	g.l.Sugar().Errorf(str, args...)
}

func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil:
		g.l.Error("sql failed", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed), zap.Error(err))
	case g.slowTime > 0 && elapsed > g.slowTime:
		g.l.Warn("slow sql", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed), zap.Duration("threshold", g.slowTime))
	default:
		g.l.Debug("sql executed", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	}
}
