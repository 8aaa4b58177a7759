package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigLoadFailed     = errors.New("config load failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerStartFailed    = errors.New("server start failed")
	ErrServerStopFailed     = errors.New("server stop failed")
)

var (
	ErrCacheClosed          = errors.New("cache is closed")
	ErrCacheLoadFailed      = errors.New("cache load failed")
	ErrCacheWriteBackFailed = errors.New("cache write-back failed")
	ErrCacheConfigInvalid   = errors.New("cache config invalid")
)

var (
	ErrDatabaseTypeUnknown = errors.New("database type unknown")
	ErrDatabaseNotRunning  = errors.New("database not running")
	ErrDatabaseOpenFailed  = errors.New("database open failed")
	ErrDatabaseKeyInvalid  = errors.New("database key invalid")
	ErrDatabaseBucketEmpty = errors.New("database bucket name is empty")
	ErrCodecFailed         = errors.New("codec failed")
)

var (
	ErrCronJobNotFound       = errors.New("cron job not found")
	ErrCronIsRunning         = errors.New("cron is running")
	ErrCronSchedulerStopped  = errors.New("cron scheduler stopped")
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
	ErrCronJobTimeout        = errors.New("cron job timeout")
)

var (
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
)

var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrPlayerNameEmpty = errors.New("player name is empty")
	ErrServerNameEmpty = errors.New("server name is empty")
)

var (
	ErrServiceIsRunning    = errors.New("service is running")
	ErrServiceIsNotRunning = errors.New("service is not running")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
