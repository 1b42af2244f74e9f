package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Deployment environments recognised by NewLogger and the HTTP error boundary.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// NewLogger builds the process logger for the given environment. Test deployments
// get a no-op logger. LOG_LEVEL overrides the environment's default level.
func NewLogger(env string) (*zap.Logger, error) {
	if env == EnvTest {
		return zap.NewNop(), nil
	}

	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = defaultLevel(env)
	if lvl := os.Getenv("LOG_LEVEL"); strings.TrimSpace(lvl) != "" {
		config.Level = parseLogLevel(lvl)
	}

	return config.Build()
}

func defaultLevel(env string) zap.AtomicLevel {
	if env == EnvDevelopment {
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zap.NewAtomicLevelAt(zap.InfoLevel)
}

func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
