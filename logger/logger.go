package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global logger instance
var Log *zap.Logger = zap.NewNop()

// Initialize builds the process logger for env and stores it in Log.
func Initialize(env string) (*zap.Logger, error) {
	l, err := Config(env).Build()
	if err != nil {
		return nil, err
	}
	Log = l
	return l, nil
}

// Config returns the zap configuration used for env. Production logs JSON with
// ISO8601 timestamps, anything else logs colored console output.
func Config(env string) zap.Config {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.InitialFields = map[string]interface{}{"service": "bakery-checkout"}
	return config
}
