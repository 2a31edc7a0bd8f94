package logger

import (
	"go.uber.org/zap"

	"github.com/aliskhannn/grammar-practice-bot/internal/config"
)

// New builds a JSON production logger for env=production and a console
// development logger otherwise.
func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == "production" {
		return zap.NewProduction()
	}

	return zap.NewDevelopment()
}
