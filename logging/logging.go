package logging

import "go.uber.org/zap"

// New creates a zap logger for the named environment: local logs at debug with the
// development encoder, development uses the development config, anything else is
// production JSON.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "local":
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return cfg.Build()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
