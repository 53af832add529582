package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// GormLogger bridges gorm's logger onto zerolog.
type GormLogger struct {
	// SlowThreshold is the delay which defines a query as slow.
	SlowThreshold time.Duration

	// IgnoreRecordNotFoundError suppresses logging for missed lookups.
	IgnoreRecordNotFoundError bool
}

var _ logger.Interface = &GormLogger{}

func NewGormLogger(slowThreshold time.Duration, ignoreRecordNotFoundError bool) *GormLogger {
	return &GormLogger{
		SlowThreshold:             slowThreshold,
		IgnoreRecordNotFoundError: ignoreRecordNotFoundError,
	}
}

func (l *GormLogger) LogMode(_ logger.LogLevel) logger.Interface {
	return l
}

func (l GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	zerolog.Ctx(ctx).Info().Msg(fmt.Sprintf(msg, data...))
}

func (l GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	zerolog.Ctx(ctx).Warn().Msg(fmt.Sprintf(msg, data...))
}

func (l GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	zerolog.Ctx(ctx).Error().Msg(fmt.Sprintf(msg, data...))
}

func (l GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	z := zerolog.Ctx(ctx)
	if z.GetLevel() == zerolog.Disabled {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	var event *zerolog.Event
	msg := "SQL"
	switch {
	case err != nil && !(l.IgnoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		event = z.Error().Err(err)
		msg = "SQL error"
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold:
		event = z.Warn()
		msg = "SQL slow query"
	default:
		event = z.Trace()
	}

	event.
		Dur("elapsed_ms", elapsed).
		Str("file", utils.FileWithLineNum()).
		Str("sql", sql)
	if rows > -1 {
		event.Int64("rows", rows)
	}
	event.Msg(msg)
}
