package app

import (
	"github.com/Freeeeeet/mentorship_api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "mentorship-api"

// NewLogger собирает zap-логгер: JSON в production, цветная консоль иначе.
// Каждая запись несёт имя сервиса и окружение.
func NewLogger(cfg *config.Config) *zap.Logger {
	logger, err := loggerConfig(cfg.IsProduction()).Build(
		zap.Fields(
			zap.String("service", serviceName),
			zap.String("env", cfg.Environment),
		),
	)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}

	return logger
}

func loggerConfig(production bool) zap.Config {
	var zcfg zap.Config

	if production {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	return zcfg
}
