// Package logging builds the zap logger shared by the whole service.
// Handlers and services receive it through constructors; nothing reads
// the global zap logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger tuned for the given environment.  "prod" gets
// JSON output at info level; anything else gets the human-readable
// development encoder with debug enabled.
func New(env string) (*zap.Logger, error) {
	if env == "prod" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	return zap.NewDevelopment()
}
