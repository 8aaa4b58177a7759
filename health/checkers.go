package health

import (
	"context"

	"github.com/saiset-co/sai-proxy/types"
)

// DatabaseChecker pings the store engine.
func DatabaseChecker(db types.Database) types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		if !db.IsRunning() {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: types.ErrDatabaseNotRunning.Error()}
		}
		if err := db.Ping(ctx); err != nil {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: err.Error()}
		}
		return types.HealthCheck{Status: types.StatusHealthy}
	}
}

// CacheChecker reports residency. A cache holding more entries than its
// capacity is still serving but has write-backs pending after failures.
func CacheChecker(cache types.Cache) types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		entries, capacity := cache.Len(), cache.Capacity()

		check := types.HealthCheck{
			Status: types.StatusHealthy,
			Details: map[string]interface{}{
				"entries":  entries,
				"capacity": capacity,
			},
		}
		if entries > capacity {
			check.Status = types.StatusDegraded
			check.Message = "cache over capacity, write-back pending"
		}

		return check
	}
}
