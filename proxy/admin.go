package proxy

import (
	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/types"
)

// Admin runs administrative actions that are not tied to a record.
type Admin struct {
	config types.ConfigManager
	logger types.Logger
}

func NewAdmin(config types.ConfigManager, logger types.Logger) *Admin {
	return &Admin{config: config, logger: logger}
}

// Reload re-reads the config file. On failure the previous config stays in
// effect and the error is returned to the caller.
func (a *Admin) Reload() error {
	if err := a.config.Reload(); err != nil {
		a.logger.Warn("Config reload failed, keeping previous config", zap.Error(err))
		return err
	}

	if cfg := a.config.GetConfig(); cfg != nil && cfg.Proxy != nil {
		a.logger.Info(cfg.Proxy.JoinMessage)
	}

	return nil
}

func (a *Admin) JoinMessage() string {
	cfg := a.config.GetConfig()
	if cfg == nil || cfg.Proxy == nil {
		return ""
	}
	return cfg.Proxy.JoinMessage
}
