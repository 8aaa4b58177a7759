package metrics

import (
	"github.com/saiset-co/sai-proxy/types"
)

// NewManager returns a Prometheus-backed manager, or a no-op one when
// metrics are disabled so callers never need nil checks.
func NewManager(config types.ConfigManager, logger types.Logger) types.MetricsManager {
	metricsConfig := config.GetConfig().Metrics
	if metricsConfig == nil || !metricsConfig.Enabled {
		logger.Debug("Metrics disabled")
		return NewNoopMetrics()
	}

	return NewPrometheusMetrics(logger, metricsConfig)
}
