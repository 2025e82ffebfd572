package config

import (
	"go.uber.org/zap"
)

// NewLogger builds a zap logger: JSON output in production, console output
// when Development is set.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	var zapConfig zap.Config
	if l.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(l.ZapLevel())
	return zapConfig.Build()
}
