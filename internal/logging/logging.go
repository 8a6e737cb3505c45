// Package logging builds the core's structured logger. Unlike the
// package-global zap.Logger in the example pack (waverless's pkg/logger), every
// worker here receives its own *zap.SugaredLogger via constructor
// injection — the core runs many concurrent, independently-lifecycled
// goroutines (loaders, evaluators, the allocator), and each is tagged with
// its own role/id fields rather than sharing one mutable global.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's verbosity and encoding.
type Config struct {
	// Debug enables debug-level logging and the development encoder
	// (human-readable, stack traces on warn+).
	Debug bool
}

// New builds a *zap.SugaredLogger per Config. Debug builds use
// zap.NewDevelopmentConfig (console encoding, debug level); otherwise a
// production JSON encoder at info level, matching the teacher's
// level-cases-in-a-switch approach generalized to a two-way choice.
func New(cfg Config) (*zap.SugaredLogger, error) {
	var zcfg zap.Config
	if cfg.Debug {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
