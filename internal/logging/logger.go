package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New construye un logger de producción con el nivel indicado
// ("debug", "info", "warn", "error"); un nivel inválido cae en info.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
