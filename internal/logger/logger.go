package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	"github.com/zsiec/hostpanel/internal/config"
	"github.com/zsiec/hostpanel/pkg/version"
)

// Logger defines the interface for structured logging
type Logger interface {
	WithFields(fields map[string]interface{}) Logger
	WithField(key string, value interface{}) Logger
	WithError(err error) Logger
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Log(level logrus.Level, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
}

// LogrusAdapter wraps logrus.Entry to implement Logger interface
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusAdapter creates a new LogrusAdapter
func NewLogrusAdapter(entry *logrus.Entry) Logger {
	return &LogrusAdapter{entry: entry}
}

func (l *LogrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &LogrusAdapter{entry: l.entry.WithFields(fields)}
}

func (l *LogrusAdapter) WithField(key string, value interface{}) Logger {
	return &LogrusAdapter{entry: l.entry.WithField(key, value)}
}

func (l *LogrusAdapter) WithError(err error) Logger {
	return &LogrusAdapter{entry: l.entry.WithError(err)}
}

func (l *LogrusAdapter) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *LogrusAdapter) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *LogrusAdapter) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *LogrusAdapter) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *LogrusAdapter) Log(level logrus.Level, args ...interface{}) {
	l.entry.Log(level, args...)
}

func (l *LogrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *LogrusAdapter) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *LogrusAdapter) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *LogrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *LogrusAdapter) Fatal(args ...interface{}) {
	l.entry.Log(logrus.FatalLevel, args...)
	l.entry.Logger.Exit(1)
}

// defaultFields stamps every entry with fields that identify the process.
type defaultFields logrus.Fields

func (defaultFields) Levels() []logrus.Level { return logrus.AllLevels }

func (d defaultFields) Fire(e *logrus.Entry) error {
	for k, v := range d {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}

// New creates a new configured logger instance.
func New(cfg *config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		dir := filepath.Dir(cfg.Output)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   true,
		})
	}

	logger.AddHook(defaultFields{
		"service": "hostpanel",
		"version": version.GetInfo().Short(),
	})

	return logger, nil
}

// SetLevel changes the level of a running logger, used on config reload.
func SetLevel(logger *logrus.Logger, level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if logger.GetLevel() != lvl {
		logger.WithFields(logrus.Fields{
			"from": logger.GetLevel().String(),
			"to":   lvl.String(),
		}).Info("Log level changed")
		logger.SetLevel(lvl)
	}
	return nil
}

// WithComponent creates a logger entry with component field.
func WithComponent(logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithField("component", component)
}

// Component is WithComponent wrapped in the Logger interface.
func Component(logger *logrus.Logger, component string) Logger {
	return NewLogrusAdapter(WithComponent(logger, component))
}

// WithSession creates a logger entry scoped to one dashboard.
func WithSession(logger *logrus.Logger, sessionID, userID string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"user_id":    userID,
	})
}

// Fields is a type alias for logrus.Fields for convenience
type Fields = logrus.Fields

// Entry is a type alias for logrus.Entry
type Entry = logrus.Entry
