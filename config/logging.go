package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps the configured level name onto a zap level.
func (l LoggingConfig) ParseLevel() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the process logger. The returned AtomicLevel lets a config
// reload change verbosity without rebuilding the logger.
func (l LoggingConfig) NewLogger() (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := l.ParseLevel()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	var zc zap.Config
	if l.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := zc.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("build logger: %w", err)
	}
	return logger, zc.Level, nil
}
