package main

import (
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/techbrief/config"
)

// newLogger builds the root logger: console output in debug mode, JSON otherwise.
func newLogger(g config.GeneralConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if g.Debug {
		zc = zap.NewDevelopmentConfig()
	}
	if g.LogLevel != "" {
		lvl, err := zap.ParseAtomicLevel(g.LogLevel)
		if err != nil {
			return nil, err
		}
		zc.Level = lvl
	}
	if g.Debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}
