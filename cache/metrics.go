package cache

import (
	"github.com/saiset-co/sai-proxy/types"
)

type cacheMetrics struct {
	manager       types.MetricsManager
	name          string
	hits          types.Counter
	misses        types.Counter
	sentinelSkips types.Counter
	entries       types.Gauge
}

func newCacheMetrics(manager types.MetricsManager, name string) *cacheMetrics {
	labels := map[string]string{"cache": name}

	return &cacheMetrics{
		manager:       manager,
		name:          name,
		hits:          manager.Counter("cache_hits_total", labels),
		misses:        manager.Counter("cache_misses_total", labels),
		sentinelSkips: manager.Counter("cache_sentinel_skips_total", labels),
		entries:       manager.Gauge("cache_entries", labels),
	}
}

func (m *cacheMetrics) load(result string) types.Counter {
	return m.manager.Counter("cache_loads_total", map[string]string{"cache": m.name, "result": result})
}

func (m *cacheMetrics) writeBack(result string) types.Counter {
	return m.manager.Counter("cache_writebacks_total", map[string]string{"cache": m.name, "result": result})
}

func (m *cacheMetrics) eviction(reason string) types.Counter {
	return m.manager.Counter("cache_evictions_total", map[string]string{"cache": m.name, "reason": reason})
}
