package config

import (
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// NewLogger returns a JSON logger in production and a colored console
// logger everywhere else.
func NewLogger(env string) *zap.Logger {
    var cfg zap.Config

    if env == "production" {
        cfg = zap.NewProductionConfig()
    } else {
        cfg = zap.NewDevelopmentConfig()
        cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
    }

    cfg.OutputPaths = []string{"stdout"}

    logger, err := cfg.Build()
    if err != nil {
        panic("failed to create logger: " + err.Error())
    }
    return logger
}
