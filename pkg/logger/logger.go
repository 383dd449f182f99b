package logger

import (
	"go.uber.org/zap"
)

// Logger wraps a zap.SugaredLogger with the key/value call signature used
// throughout this repository (msg string, alternating key/value pairs).
type Logger struct {
	sugar *zap.SugaredLogger
}

// New creates a new logger. In development mode it uses a human-readable
// console encoder at debug level; otherwise it logs structured JSON at
// info level, suitable for a systemd journal.
func New(development bool) (*Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{sugar: base.Sugar()}, nil
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Sync flushes any buffered log entries. Call before process exit.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
